package router

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var slugRgx = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// NewValidator returns a validator with the catalog tags registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slug", validateSlug)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("query"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func validateSlug(fl validator.FieldLevel) bool {
	return slugRgx.MatchString(fl.Field().String())
}

// ValidationMessage converts a validator error into a readable message
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "slug":
		return "must be lowercase letters, digits and single dashes"
	case "oneof":
		return "must be one of: " + err.Param()
	case "numeric":
		return "must be a number"
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", err.Param())
	case "min", "gte":
		return "must be at least " + err.Param()
	case "max", "lte":
		return "must be at most " + err.Param()
	default:
		return "is invalid"
	}
}

// fieldErrors flattens a validation failure into field -> message.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		out["request"] = err.Error()
		return out
	}
	for _, fe := range ves {
		out[fe.Field()] = ValidationMessage(fe)
	}
	return out
}
