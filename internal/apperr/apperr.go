// Package apperr classifies errors crossing the service boundary into a
// small set of kinds so handlers can map them to HTTP statuses without
// inspecting error chains from three different integrations.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an error with its boundary classification.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindIntegration
)

// Error is a kind-tagged error. Integration errors carry the name of the
// originating system (OpenAI, Pipefy, Calendar, ...).
type Error struct {
	Kind    Kind
	System  string // set for KindIntegration only
	Message string
	Err     error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.System != "" {
		return fmt.Sprintf("%s: %s", e.System, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation creates a user-correctable input error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound creates an unknown-resource error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Integration creates a downstream-failure error tagged with the source
// system's name.
func Integration(system, message string, cause error) *Error {
	return &Error{Kind: KindIntegration, System: system, Message: message, Err: cause}
}

// KindOf extracts the kind from an error chain. Untagged errors are
// internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to its HTTP status code equivalent.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindIntegration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
