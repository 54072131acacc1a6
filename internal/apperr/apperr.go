// Package apperr defines the error kinds surfaced by the booking and payment
// services. Each kind carries a fixed HTTP status and a retry hint so the
// transport layer can render any error without knowing where it came from.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind names a class of failure. The string value is what clients see in
// the "kind" field of an error response.
type Kind string

const (
	NotFound                  Kind = "NotFound"
	MalformedPayload          Kind = "MalformedPayload"
	InvalidSignature          Kind = "InvalidSignature"
	PaymentNotCompleted       Kind = "PaymentNotCompleted"
	PaymentVerificationFailed Kind = "PaymentVerificationFailed"
	GatewayUnavailable        Kind = "GatewayUnavailable"
	SlotConflict              Kind = "SlotConflict"
	InvalidStatus             Kind = "InvalidStatus"
	Validation                Kind = "Validation"
	Unauthorized              Kind = "Unauthorized"
	Forbidden                 Kind = "Forbidden"
	ReconciliationInProgress  Kind = "ReconciliationInProgress"
	Internal                  Kind = "Internal"
)

// Status returns the HTTP status used when an error of this kind reaches a
// client.
func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case MalformedPayload, InvalidSignature, PaymentNotCompleted,
		PaymentVerificationFailed, InvalidStatus, Validation:
		return http.StatusBadRequest
	case GatewayUnavailable:
		return http.StatusServiceUnavailable
	case SlotConflict, ReconciliationInProgress:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// Retryable reports whether repeating the same request later can succeed.
func (k Kind) Retryable() bool {
	return k == GatewayUnavailable || k == ReconciliationInProgress
}

// Error is a classified failure with a client-facing message and an
// optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. The cause stays reachable through
// errors.Is / errors.As but is never shown to clients.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Message returns the client-facing message for err. Unclassified errors
// never leak their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
