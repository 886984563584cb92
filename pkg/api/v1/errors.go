// Package v1 defines the error taxonomy shared by the ragbrain HTTP API and
// the orchestration pipeline.
package v1

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindUpstream   Kind = "upstream"
	KindInternal   Kind = "internal"
)

// Common API errors.
var (
	ErrInvalidJSON       = errors.New("Invalid JSON body")
	ErrMissingKey        = errors.New("Missing gateway key")
	ErrInvalidAdminToken = errors.New("Unauthorized: missing/invalid admin token")
)

// Error is an API error carrying the HTTP status and the message shown to
// the caller. Err holds the internal cause, which is never rendered.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a 400 error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: msg}
}

// Auth returns a 401 error.
func Auth(msg string) *Error {
	return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: msg}
}

// Upstream returns an error carrying the provider's status, or 500 when
// the provider gave none.
func Upstream(status int, msg string, err error) *Error {
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: KindUpstream, Status: status, Message: msg, Err: err}
}

// Internal returns a 500 error.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// StatusOf returns the HTTP status for err. Errors outside the taxonomy
// map to 500.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the caller-facing message for err. Errors outside the
// taxonomy render their own text.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// KindOf returns the Kind of err, or KindInternal.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}
