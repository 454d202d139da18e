// Package apperr defines the error kinds that cross component boundaries.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation decisions.
type Kind string

const (
	// KindInvalidInput is returned before the pipeline starts; no audit entry exists.
	KindInvalidInput Kind = "invalid_input"
	// KindConfiguration is fatal at startup; the pipeline is never constructed.
	KindConfiguration Kind = "configuration"
	// KindUpstreamUnavailable marks a retryable Reviewer or Composer failure.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(op, format string, a ...any) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, a...)}
}

// Configuration builds a KindConfiguration error.
func Configuration(op, format string, a ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, a...)}
}

// UpstreamUnavailable wraps a failed Reviewer or Composer call.
func UpstreamUnavailable(op string, cause error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Op: op, Message: "upstream unavailable", Cause: cause}
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func IsInvalidInput(err error) bool        { return KindOf(err) == KindInvalidInput }
func IsConfiguration(err error) bool       { return KindOf(err) == KindConfiguration }
func IsUpstreamUnavailable(err error) bool { return KindOf(err) == KindUpstreamUnavailable }
