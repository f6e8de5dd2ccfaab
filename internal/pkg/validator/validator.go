package validator

import (
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate returns a field→tag map of violations, or nil when the struct is
// valid.
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	violations := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		violations[err.Field()] = err.Tag()
	}
	return violations
}
