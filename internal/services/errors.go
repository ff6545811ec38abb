package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors so handlers can map them to transport
// status codes without string matching.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindInvalidState ErrorKind = "invalid_state"
	KindExpired      ErrorKind = "expired"
	KindValidation   ErrorKind = "validation"
)

// Error is a recoverable-by-caller domain error. Infrastructure failures are
// wrapped with fmt.Errorf instead and surface as internal errors.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a domain error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrOfferNoLongerValid is the conflict error returned when a state-changing
// operation loses the row-lock race or finds the offer already resolved.
func ErrOfferNoLongerValid() *Error {
	return &Error{Kind: KindInvalidState, Message: "offer no longer valid"}
}

// KindOf returns the domain error kind, or "" for non-domain errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
