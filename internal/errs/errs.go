// Package errs provides the governance core's stable, machine-readable
// error classification. All components use *Error instead of bare fmt
// errors so embedding applications can errors.Is/errors.As against the
// Kind sentinels below, the same way a typed ErrorCode enum forms a
// stable public API contract for callers across a process boundary.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error classification. These form a public
// API contract — do not rename or remove existing kinds.
type Kind string

const (
	Ok                Kind = "OK"
	InvalidConfig     Kind = "INVALID_CONFIG"
	InstanceNotFound  Kind = "INSTANCE_NOT_FOUND"
	NetworkFailed     Kind = "NETWORK_FAILED"
	ServerError       Kind = "SERVER_ERROR"
	Timeout           Kind = "TIMEOUT"
	ResourceExhausted Kind = "RESOURCE_EXHAUSTED"
	Internal          Kind = "INTERNAL"
)

// Error is the governance core's structured error type. Op names the
// failing operation (e.g. "ChooseInstance"), Instance is the instance ID
// involved when applicable, and Err is the wrapped cause, if any.
type Error struct {
	Kind     Kind
	Op       string
	Instance string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Instance != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s [%s]: %v", e.Op, e.Kind, e.Instance, e.Err)
	case e.Instance != "":
		return fmt.Sprintf("%s: %s [%s]", e.Op, e.Kind, e.Instance)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error for the given operation.
func New(op string, kind Kind) *Error {
	return &Error{Op: op, Kind: kind}
}

// Wrap builds a classified error wrapping an underlying cause.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithInstance attaches an instance ID to the error and returns it.
func (e *Error) WithInstance(instanceID string) *Error {
	e.Instance = instanceID
	return e
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, else Internal.
func KindOf(err error) Kind {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
