package domain

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrValidation        ErrorType = "validation_error"
	ErrNotFound          ErrorType = "not_found"
	ErrInvalidState      ErrorType = "invalid_state"
	ErrInsufficientFunds ErrorType = "insufficient_funds"
	ErrExpired           ErrorType = "expired"
	ErrLockExpired       ErrorType = "lock_expired"
	ErrDriftExceeded     ErrorType = "drift_exceeded"
	ErrUpstream          ErrorType = "upstream_error"
)

// Error is the machine-readable failure shape returned by every state machine.
// Context carries operation-specific detail (balances, drift percentages,
// expiry timestamps) for the API error body.
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
}

func NewError(t ErrorType, code, message string) *Error {
	return &Error{Type: t, Code: code, Message: message}
}

func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsType reports whether err is (or wraps) a domain Error of the given type.
func IsType(err error, t ErrorType) bool {
	var de *Error
	return errors.As(err, &de) && de.Type == t
}
