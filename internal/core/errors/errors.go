// Package errors defines the sentinel errors of the engagement domain and
// the wrapper types the HTTP layer translates into responses.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("action forbidden")

	// Upvote rules.
	ErrSelfUpvote         = errors.New("cannot upvote own complaint")
	ErrComplaintNotPublic = errors.New("complaint is not public")

	// Input validation.
	ErrComplaintIDRequired = errors.New("complaint ID is required")
	ErrUserIDRequired      = errors.New("user ID is required")

	// Store failures. ErrTransientStore marks serialization conflicts,
	// deadlocks, constraint violations raced by a concurrent commit, and
	// timeouts, all of which the caller may retry.
	ErrComplaintNotFound = errors.New("complaint not found")
	ErrTransientStore    = errors.New("transient store error")

	ErrNotFound    = errors.New("resource not found")
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// IsRetryable reports whether the caller may safely retry the failed
// operation. Only whole-transaction failures qualify; business rule
// violations never do.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStore)
}

// AppError pairs an underlying error with the HTTP status, code and message
// the client should see.
type AppError struct {
	Err        error
	Message    string
	Code       string
	StatusCode int
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewBadRequestError wraps err as a 400 with a client-facing message.
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

// ValidationErrors collects per-field validation failures.
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Errors: make(map[string][]string)}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
