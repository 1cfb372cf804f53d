// Package apperr defines the error taxonomy shared by the battle engine and its transports.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and transports.
type Kind int

const (
	KindInternal Kind = iota
	KindNotAuthenticated
	KindNotFound
	KindInvalidAction
	KindRuleViolation
)

func (k Kind) String() string {
	switch k {
	case KindNotAuthenticated:
		return "NOT_AUTHENTICATED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidAction:
		return "INVALID_ACTION"
	case KindRuleViolation:
		return "RULE_VIOLATION"
	default:
		return "INTERNAL"
	}
}

// Error is a classified error carrying a human readable reason.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Reason == "" {
		return e.Err.Error()
	}
	if e.Err != nil && e.Kind == KindInternal {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the request was rejected without touching state.
func (e *Error) Recoverable() bool {
	return e.Kind == KindInvalidAction || e.Kind == KindRuleViolation
}

// New creates a classified error.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap classifies err under kind with a reason.
func Wrap(kind Kind, err error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func NotAuthenticated(format string, args ...any) *Error {
	return New(KindNotAuthenticated, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func InvalidAction(format string, args ...any) *Error {
	return New(KindInvalidAction, fmt.Sprintf(format, args...))
}

func RuleViolation(format string, args ...any) *Error {
	return New(KindRuleViolation, fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected failure (usually persistence).
func Internal(err error, format string, args ...any) *Error {
	return Wrap(KindInternal, err, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Reason returns the human readable reason of err.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
