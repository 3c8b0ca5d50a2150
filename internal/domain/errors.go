package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for API mapping
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindOutOfStock       Kind = "out_of_stock"
	KindValidation       Kind = "validation"
	KindPermissionDenied Kind = "permission_denied"
	KindRateLimited      Kind = "rate_limited"
	KindIntegrity        Kind = "integrity"
	KindInternal         Kind = "internal"
)

// Error is a typed domain failure carried across service boundaries
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a lookup miss
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// OutOfStock reports that no unused activation key is available for a product
func OutOfStock(format string, args ...any) *Error {
	return &Error{Kind: KindOutOfStock, Message: fmt.Sprintf(format, args...)}
}

// Validation reports invalid or conflicting input
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied reports unauthenticated access to a gated operation
func PermissionDenied(format string, args ...any) *Error {
	return &Error{Kind: KindPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// RateLimited reports that a caller exhausted their request budget
func RateLimited(format string, args ...any) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf(format, args...)}
}

// Integrity reports a referential-integrity violation
func Integrity(format string, args ...any) *Error {
	return &Error{Kind: KindIntegrity, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected infrastructure failure
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, KindInternal if untyped
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
