package services

import (
	"errors"
	"strings"

	"github.com/yeremiapane/restaurant-reservation/store"
)

var (
	ErrReservationNotFound     = store.ErrNotFound
	ErrForbidden               = errors.New("you do not have permission to perform this action")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrTableServiceUnavailable = errors.New("table service unavailable")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every invalid field of a request.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Err returns nil when nothing was added.
func (e *ValidationError) Err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
