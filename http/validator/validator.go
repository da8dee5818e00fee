package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var sourceNameRe = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

type jsonValidator struct {
	validator *validator.Validate
}

// New returns a new Validator for the echo webserver framework. Besides
// the builtin validations it knows about "sourcename", i.e. letters, digits,
// dots, dashes and underscores.
func New() echo.Validator {
	v := &jsonValidator{
		validator: validator.New(),
	}

	// Report the JSON names of the fields in the errors
	v.validator.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	v.validator.RegisterValidation("sourcename", func(fl validator.FieldLevel) bool {
		return sourceNameRe.MatchString(fl.Field().String())
	})

	return v
}

func (cv *jsonValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
