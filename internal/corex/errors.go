// Package corex holds primitives shared by every core package: the error
// taxonomy, request context, and identifier generation.
package corex

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the top-level error taxonomy from the error handling design.
type Kind string

const (
	KindValidation Kind = "validation"
	KindRouting    Kind = "routing"
	KindBinding    Kind = "binding"
	KindInstance   Kind = "instance"
	KindUpstream   Kind = "upstream"
	KindAuth       Kind = "auth"
	KindTool       Kind = "tool"
	KindInternal   Kind = "internal"
)

// RouteCodexError is the one struct every core error surfaces as. A single
// reused shape (mirroring the teacher's CommonError/AnthropicError pattern)
// keeps propagation uniform across kernel, connector, pool and toolbridge.
type RouteCodexError struct {
	Kind      Kind           `json:"kind"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Location  string         `json:"location,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"requestId,omitempty"`
	Cause     error          `json:"-"`
}

func (e *RouteCodexError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RouteCodexError) Unwrap() error {
	return e.Cause
}

// New builds a RouteCodexError stamped with the current time.
func New(kind Kind, code, message string) *RouteCodexError {
	return &RouteCodexError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap builds a RouteCodexError around an existing error.
func Wrap(kind Kind, code string, err error) *RouteCodexError {
	return &RouteCodexError{
		Kind:      kind,
		Code:      code,
		Message:   err.Error(),
		Cause:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails attaches structured detail fields and returns the receiver for
// chaining at the call site.
func (e *RouteCodexError) WithDetails(details map[string]any) *RouteCodexError {
	e.Details = details
	return e
}

// WithLocation records which component raised the error.
func (e *RouteCodexError) WithLocation(location string) *RouteCodexError {
	e.Location = location
	return e
}

// WithRequestID stamps the error with the request it occurred in.
func (e *RouteCodexError) WithRequestID(id string) *RouteCodexError {
	e.RequestID = id
	return e
}

// NewRequestID produces a correlation id for a Request Context.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// NewConnectionID produces an id for a transient connection object (§4.2).
func NewConnectionID() string {
	return "conn_" + uuid.NewString()
}
