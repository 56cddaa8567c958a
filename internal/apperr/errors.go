// Package apperr defines the error taxonomy shared across the historian
// core. Errors carry a Kind so callers can distinguish configuration
// problems from connection failures, pool exhaustion, query errors and
// caller-data validation errors.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindConnection
	KindPool
	KindQuery
	KindProcessing
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindConnection:
		return "connection"
	case KindPool:
		return "pool"
	case KindQuery:
		return "query"
	case KindProcessing:
		return "processing"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	default:
		return "internal"
	}
}

// Error is a kinded application error, optionally wrapping a cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsRetryable reports whether the caller may reasonably retry the
// operation. Connection and pool errors are retryable; configuration,
// validation and query errors are not.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindConnection || k == KindPool
}

// ConnectionWithHint classifies a connection-establishment failure into a
// user-facing message. Recognized patterns cover SQL Server error codes
// (4060 missing database, 18456 bad login), Postgres SQLSTATEs (3D000,
// 28P01) and common network failures.
func ConnectionWithHint(err error, database string) *Error {
	text := err.Error()
	switch {
	case strings.Contains(text, "4060") || strings.Contains(text, "3D000"):
		return Wrap(KindConnection, err,
			"database %q does not exist or is not accessible; check the database name", database)
	case strings.Contains(text, "18456") || strings.Contains(text, "28P01") ||
		strings.Contains(text, "Login failed") ||
		strings.Contains(text, "password authentication failed"):
		return Wrap(KindConnection, err, "login failed; check username and password")
	case strings.Contains(text, "connection refused") ||
		strings.Contains(text, "no such host") ||
		strings.Contains(text, "network is unreachable") ||
		strings.Contains(text, "i/o timeout"):
		return Wrap(KindConnection, err, "server unreachable; check host, port and network")
	default:
		return Wrap(KindConnection, err, "connection to database %q failed", database)
	}
}
