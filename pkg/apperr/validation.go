package apperr

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FromValidator turns the first field failure reported by go-playground/validator into a
// Validation error with a readable message.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Validation(err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return Validationf("%s is required", fe.Field())
	case "min":
		if fe.Kind().String() == "slice" {
			return Validationf("%s must have at least %s entries", fe.Field(), fe.Param())
		}
		return Validationf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "gte":
		return Validationf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return Validationf("%s is invalid", fe.Field())
	}
}
