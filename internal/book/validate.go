package book

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs the struct rules on v and returns the first failure as a
// ValidationError.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return newValidationError("", "invalid input")
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]

	var message string
	switch fe.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Param() == "1" {
			message = fmt.Sprintf("%s must not be empty", field)
		} else {
			message = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
	case "max":
		message = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		message = fmt.Sprintf("%s is invalid", field)
	}
	return &ValidationError{Field: field, Message: message}
}
