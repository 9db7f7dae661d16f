package service

import (
	"errors"
	"strings"
)

// ErrRateLimited is returned when a user submits too many bookings in a
// short time.
var ErrRateLimited = errors.New("잠시 후 다시 시도해주세요.")

// ValidationError is an expected user-input failure. It is reported before
// anything is written.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func invalidErr(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// FieldErrors collects several validation failures of one request.
type FieldErrors []*ValidationError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (fe *FieldErrors) add(field, message string) {
	*fe = append(*fe, invalid(field, message))
}

// err returns nil for an empty set so callers can return it directly.
func (fe FieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// IsValidation reports whether err is a ValidationError or FieldErrors.
func IsValidation(err error) bool {
	var ve *ValidationError
	var fe FieldErrors
	return errors.As(err, &ve) || errors.As(err, &fe)
}
