package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FieldError is one field-level failure in a 400 response body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors flattens gin binding errors (validator.ValidationErrors)
// into field-level details. Anything else becomes a single generic entry.
func FormatValidationErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Field() + " is invalid"
		if fe.Tag() == "required" {
			msg = fe.Field() + " is required"
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}
