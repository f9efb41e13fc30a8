// Package apperr implements the error-kind taxonomy from the
// specification's error handling design: a closed set of semantic kinds
// (not Go types) that callers can test for with errors.Is. Kinds are
// plain stdlib sentinels; this package does not build on the shared
// errors package's helpers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a sentinel identifying one of the taxonomy's error kinds. Wrap a
// Kind with fmt.Errorf("%w: ...", kind) or use the New constructor below so
// errors.Is(err, apperr.MissingCredential) keeps working through wrapping.
type Kind error

var (
	ConfigError          Kind = errors.New("config_error")
	MissingCredential    Kind = errors.New("missing_credential")
	MalformedCredential  Kind = errors.New("malformed_credential")
	CryptoError          Kind = errors.New("crypto_error")
	MissingParameter     Kind = errors.New("missing_parameter")
	InvalidParameterType Kind = errors.New("invalid_parameter_type")
	InvalidComparison    Kind = errors.New("invalid_comparison")
	RefreshFailed        Kind = errors.New("refresh_failed")
	UpstreamHTTPError    Kind = errors.New("upstream_http_error")
	NotFound             Kind = errors.New("not_found")
	StateCorruption      Kind = errors.New("state_corruption")
	UnsupportedAPI       Kind = errors.New("unsupported_api")
)

// wrappedError pairs a Kind with a human-readable message while keeping
// errors.Is/errors.Unwrap working against the Kind sentinel.
type wrappedError struct {
	kind Kind
	msg  string
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.kind }

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &wrappedError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err (or something it wraps) is of the given kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
