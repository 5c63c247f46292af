// Package graphliteerr defines GraphLite's stable error-kind taxonomy (§7).
//
// Error kinds are sentinel-wrapped values, following the teacher's pattern
// of package-level `var Err... = errors.New(...)` (pkg/storage/types.go,
// pkg/storage/transaction.go) generalized into a single typed Kind so the
// executor can switch on it once instead of re-declaring sentinels per
// package.
package graphliteerr

import (
	"errors"
	"fmt"
)

// Kind is one of the stable error kinds enumerated in spec §7.
type Kind string

const (
	KindParse              Kind = "ParseError"
	KindValidation          Kind = "ValidationError"
	KindCatalog             Kind = "CatalogError"
	KindSchemaValidation    Kind = "SchemaValidation"
	KindRuntime             Kind = "RuntimeError"
	KindStorage             Kind = "StorageError"
	KindExpression          Kind = "ExpressionError"
	KindUnsupportedOperator Kind = "UnsupportedOperator"
	KindMemoryLimitExceeded Kind = "MemoryLimitExceeded"
	KindTransaction         Kind = "TransactionError"
	KindPermissionDenied    Kind = "PermissionDenied"
)

// Error is a GraphLite error carrying a stable Kind alongside a message and
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Newf constructs an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err (or any error it wraps) and
// whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err (or any error it wraps) carries kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
