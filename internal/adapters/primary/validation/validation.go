// Package validation provides request input checks for the primary adapters.
package validation

import (
	"regexp"
	"strings"

	apperrors "github.com/swaraj/complaints-backend/internal/core/errors"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsUUID reports whether s looks like a canonical UUID.
func IsUUID(s string) bool {
	return uuidRegex.MatchString(s)
}

// Validator accumulates field errors across a chain of checks so a response
// can report every problem at once.
type Validator struct {
	errors *apperrors.ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{errors: apperrors.NewValidationErrors()}
}

// HasErrors reports whether any check has failed so far.
func (v *Validator) HasErrors() bool {
	return v.errors.HasErrors()
}

// Errors returns the accumulated field errors.
func (v *Validator) Errors() *apperrors.ValidationErrors {
	return v.errors
}

// Required fails the field when the value is empty or whitespace.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors.Add(field, "This field is required")
	}
	return v
}

// UUID fails the field when a non-empty value is not a canonical UUID.
// Empty values pass so Required can report them separately.
func (v *Validator) UUID(field, value string) *Validator {
	if value != "" && !IsUUID(value) {
		v.errors.Add(field, "Must be a valid UUID")
	}
	return v
}

// Custom fails the field with message when valid is false.
func (v *Validator) Custom(field string, valid bool, message string) *Validator {
	if !valid {
		v.errors.Add(field, message)
	}
	return v
}
