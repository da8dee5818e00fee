package errorhandler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/datarhei/ffstats/history"
	"github.com/datarhei/ffstats/http/api"
	"github.com/datarhei/ffstats/source"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler is a general handler for echo handler errors
func HTTPErrorHandler(err error, c echo.Context) {
	var code int = 0
	var details []string
	message := ""

	if he, ok := err.(api.Error); ok {
		code = he.Code
		message = he.Message
		details = he.Details
	} else if he, ok := err.(*echo.HTTPError); ok {
		if he.Internal != nil {
			if herr, ok := he.Internal.(*echo.HTTPError); ok {
				he = herr
			}
		}

		code = he.Code
		message = http.StatusText(he.Code)
		details = strings.Split(fmt.Sprintf("%v", he.Message), "\n")
	} else if errors.Is(err, source.ErrNotFound) || errors.Is(err, history.ErrNotFound) {
		code = http.StatusNotFound
		message = http.StatusText(http.StatusNotFound)
		details = []string{err.Error()}
	} else {
		code = http.StatusInternalServerError
		message = http.StatusText(http.StatusInternalServerError)
		details = strings.Split(err.Error(), "\n")
	}

	// Send response
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code)
		} else {
			c.JSON(code, api.Error{
				Code:    code,
				Message: message,
				Details: details,
			})
		}
	}
}
