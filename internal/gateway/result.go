package gateway

import (
	"errors"
	"fmt"

	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
)

// Result is the outcome of one gateway call. Status is the HTTP status, or
// 0 when no response arrived. Err is nil, *TransportError, *ParseError or
// *StatusError.
type Result[T any] struct {
	Status int
	Value  T
	Err    error
}

// OK reports whether the call produced a parsed 2xx response.
func (r Result[T]) OK() bool { return r.Err == nil }

// TransportError means the request never produced a response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means a 2xx response body was not valid JSON.
type ParseError struct {
	Op     string
	Status int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gateway %s: parse HTTP %d body: %v", e.Op, e.Status, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response. Message is the provider's "error"
// field when the body carried one.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway %s: HTTP %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway %s: HTTP %d", e.Op, e.Status)
}

// UpstreamMessage returns the provider's error text for err, or "" when err
// is not a *StatusError or carried none.
func UpstreamMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}

// UpstreamStatus returns the provider status for a *StatusError, or 0.
func UpstreamStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// APIError maps a failed call onto the API taxonomy as an upstream error.
// It carries the provider's status and error text when the provider sent
// them. Otherwise the status is 500 and the message is prefix followed by
// the HTTP status, e.g. "Embedding failed (HTTP 502)".
func APIError(prefix string, status int, err error) error {
	msg := UpstreamMessage(err)
	if msg == "" {
		if status == 0 {
			msg = prefix + " (gateway unreachable)"
		} else {
			msg = fmt.Sprintf("%s (HTTP %d)", prefix, status)
		}
	}
	return v1.Upstream(UpstreamStatus(err), msg, err)
}
