// Package errors provides the operation-oriented error helpers shared by
// every package in this module: a structured OperationError type plus a
// small set of constructor functions for the common failure shapes
// (database, network, validation, configuration, timeout, auth, parse).
package errors

import (
	"fmt"
	"strings"
)

// OperationError describes a failure in terms of what was being done, the
// component doing it, and (optionally) the resource involved.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s", e.Operation)
	if e.Component != "" {
		fmt.Fprintf(&b, ", component: %s", e.Component)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ", cause: %s", e.Cause)
	}
	return b.String()
}

func (e *OperationError) Unwrap() error { return e.Cause }

// FailedTo builds a minimal "failed to <action>: <cause>" error.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return fmt.Errorf("failed to %s", action)
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// FailedToWithDetails builds the full OperationError shape.
func FailedToWithDetails(operation, component, resource string, cause error) error {
	return &OperationError{Operation: operation, Component: component, Resource: resource, Cause: cause}
}

// Wrapf wraps err with a formatted prefix, passing nil through unchanged.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func DatabaseError(operation string, cause error) error {
	return FailedToWithDetails(operation, "database", "", cause)
}

func NetworkError(operation, endpoint string, cause error) error {
	return FailedToWithDetails(operation, "network", endpoint, cause)
}

func ValidationError(field, msg string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, msg)
}

func ConfigurationError(setting, msg string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, msg)
}

func TimeoutError(operation, duration string) error {
	return fmt.Errorf("timeout while %s after %s", operation, duration)
}

func AuthenticationError(msg string) error {
	return fmt.Errorf("authentication failed: %s", msg)
}

func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

func ParseError(what, format string, cause error) error {
	return fmt.Errorf("failed to parse %s as %s: %w", what, format, cause)
}

// IsRetryable does a best-effort substring check against well-known
// transient failure phrases. It is a heuristic, not a type assertion.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "timed out", "connection refused", "connection reset", "service unavailable", "temporarily unavailable", "eof"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// Chain joins multiple non-nil errors into one, prefixing with
// "multiple errors: " when there's more than one.
func Chain(errs ...error) error {
	var msgs []string
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Error())
		}
	}
	switch len(msgs) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", msgs[0])
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(msgs, "; "))
	}
}
