// Package errs implements the closed error taxonomy from spec.md §7. Every
// public Edison operation returns either a success value or an *errs.Error
// carrying a Kind, a machine-readable Reason, and the smallest set of
// identifying Fields a caller needs to act. Human-readable rendering is left
// to callers (spec.md §7 "Human-readable rendering is the caller's
// concern").
package errs

import (
	"errors"
	"fmt"
)

// Kind is the closed set of abstract error kinds spec.md §7 names.
type Kind string

const (
	KindStateTransitionRejected Kind = "StateTransitionRejected"
	KindStaleState              Kind = "StaleStateError"
	KindInvariantViolation      Kind = "InvariantViolation"
	KindHandlerUnresolved       Kind = "HandlerUnresolved"
	KindConfiguration           Kind = "ConfigurationError"
	KindEvidenceMissing         Kind = "EvidenceMissing"
	KindValidatorTimeout        Kind = "ValidatorTimeout"
	KindValidatorBlocked        Kind = "ValidatorBlocked"
	KindBundleApprovalMissing   Kind = "BundleApprovalMissing"
	KindIO                      Kind = "IOError"
)

// Error is the concrete shape every Kind above is carried in.
type Error struct {
	Kind    Kind
	Reason  string         // machine-readable reason code, e.g. "dependency_blocked"
	Fields  map[string]any // task/qa/session IDs, file paths, handler names
	Wrapped error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an *Error with the given kind, reason code, and fields.
func New(kind Kind, reason string, fields map[string]any) *Error {
	return &Error{Kind: kind, Reason: reason, Fields: fields}
}

// Wrap builds an *Error that also carries an underlying cause.
func Wrap(kind Kind, reason string, fields map[string]any, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Fields: fields, Wrapped: cause}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the caller is expected to retry the operation
// (spec.md §7: StaleStateError and lock-timeout IOError are retryable).
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindStaleState:
		return true
	case KindIO:
		return e.Reason == "lock_timeout"
	default:
		return false
	}
}
