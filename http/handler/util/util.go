package util

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

func PathParam(c echo.Context, name string) string {
	param := c.Param(name)

	param, err := url.PathUnescape(param)
	if err != nil {
		return ""
	}

	return param
}

func DefaultQuery(c echo.Context, name, defValue string) string {
	param := c.QueryParam(name)

	if len(param) == 0 {
		return defValue
	}

	return param
}

// IntQuery returns the query parameter as integer. The default value is
// returned if the parameter is missing. An error is returned if it isn't a number.
func IntQuery(c echo.Context, name string, defValue int) (int, error) {
	param := c.QueryParam(name)

	if len(param) == 0 {
		return defValue, nil
	}

	return strconv.Atoi(param)
}
