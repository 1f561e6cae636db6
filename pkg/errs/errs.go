// Package errs defines the error taxonomy shared by every RPC-calling
// component. Callers use errors.Is against the sentinel
// Kind values, or errors.As against *Error to recover status codes and
// bodies carried by HTTPRequestFailed.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error without reference to any particular call site.
type Kind int

const (
	KindGeneric Kind = iota
	KindHTTPRequestFailed
	KindSnodeMigrated
	KindInsufficientProofOfWork
	KindTokenExpired
	KindParsingFailed
	KindMessageSigningFailed
	KindMessageConversionFailed
	KindProofOfWorkCalculationFailed
	KindMaxSizeExceeded
)

func (k Kind) String() string {
	switch k {
	case KindHTTPRequestFailed:
		return "HTTPRequestFailed"
	case KindSnodeMigrated:
		return "SnodeMigrated"
	case KindInsufficientProofOfWork:
		return "InsufficientProofOfWork"
	case KindTokenExpired:
		return "TokenExpired"
	case KindParsingFailed:
		return "ParsingFailed"
	case KindMessageSigningFailed:
		return "MessageSigningFailed"
	case KindMessageConversionFailed:
		return "MessageConversionFailed"
	case KindProofOfWorkCalculationFailed:
		return "ProofOfWorkCalculationFailed"
	case KindMaxSizeExceeded:
		return "MaxSizeExceeded"
	default:
		return "Generic"
	}
}

// Error is the concrete error type carried through the RPC stack.
type Error struct {
	Kind Kind
	// StatusCode is the HTTP status that produced this error, or 0 for a
	// transport-level failure.
	StatusCode int
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Kind == KindHTTPRequestFailed {
		return fmt.Sprintf("%s: status=%d", e.Kind, e.StatusCode)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, errs.SnodeMigrated) to match any *Error of the
// same Kind, ignoring the wrapped cause and status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel values for errors.Is comparisons; status/body/cause are not
// populated on these and must not be inspected — construct a fresh
// *Error via the New* helpers when those fields matter.
var (
	Generic                      = &Error{Kind: KindGeneric}
	SnodeMigrated                = &Error{Kind: KindSnodeMigrated}
	InsufficientProofOfWork      = &Error{Kind: KindInsufficientProofOfWork}
	TokenExpired                 = &Error{Kind: KindTokenExpired}
	ParsingFailed                = &Error{Kind: KindParsingFailed}
	MessageSigningFailed         = &Error{Kind: KindMessageSigningFailed}
	MessageConversionFailed      = &Error{Kind: KindMessageConversionFailed}
	ProofOfWorkCalculationFailed = &Error{Kind: KindProofOfWorkCalculationFailed}
	MaxSizeExceeded              = &Error{Kind: KindMaxSizeExceeded}
)

// NewHTTPRequestFailed wraps a transport or non-2xx failure. status == 0
// signals a transport error with no body.
func NewHTTPRequestFailed(status int, body []byte, cause error) *Error {
	return &Error{Kind: KindHTTPRequestFailed, StatusCode: status, Body: body, Err: cause}
}

// NewParsingFailed wraps a structural JSON error or a missing required
// field with the underlying cause.
func NewParsingFailed(cause error) *Error {
	return &Error{Kind: KindParsingFailed, Err: cause}
}

// Wrap attaches cause to a sentinel Kind without losing the original
// error for %w-style unwrapping.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Fatal reports whether err belongs to the "fatal to this call" set that
// the bounded retry wrapper must not retry: SnodeMigrated,
// InsufficientProofOfWork (difficulty has already been updated as a side
// effect), and TokenExpired (the cached token has already been cleared).
func Fatal(err error) bool {
	return errors.Is(err, SnodeMigrated) ||
		errors.Is(err, InsufficientProofOfWork) ||
		errors.Is(err, TokenExpired)
}
