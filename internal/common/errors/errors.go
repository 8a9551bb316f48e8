// Package errors provides the standardized error taxonomy shared by the
// lifecycle engines. Every engine operation either succeeds or returns one
// of these typed errors; the excluded API layer translates them into
// user-facing responses.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeForbidden             ErrorCode = "FORBIDDEN"
	ErrCodeConflict              ErrorCode = "CONFLICT"
	ErrCodeInvalidState          ErrorCode = "INVALID_STATE"
	ErrCodeInvalidArgument       ErrorCode = "INVALID_ARGUMENT"
	ErrCodeDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE"
	ErrCodeInternal              ErrorCode = "INTERNAL"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *StandardError) Unwrap() error { return e.cause }

// ==========================
// Constructors
// ==========================

// NewNotFoundError creates a non-retryable error for an absent entity.
func NewNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError creates a non-retryable error for an actor lacking the
// required relationship to the entity.
func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "actor is not authorized for this operation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError creates a non-retryable uniqueness-violation error.
func NewConflictError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   "entity already exists",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStateError creates a non-retryable error for a transition
// attempted from a state that does not permit it.
func NewInvalidStateError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   "state transition not permitted",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidArgumentError creates a non-retryable malformed-input error.
func NewInvalidArgumentError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidArgument,
		Message:   "invalid argument",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDependencyUnavailableError creates a retryable error for an
// unreachable external collaborator. Callers of the scoring oracle recover
// from this locally; it never surfaces to the API layer.
func NewDependencyUnavailableError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDependencyUnavailable,
		Message:   fmt.Sprintf("dependency '%s' unavailable", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected storage or infrastructure failure.
func NewInternalError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   fmt.Sprintf("operation '%s' failed", op),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// Inspection helpers
// ==========================

// CodeOf returns the error code carried by err, or ErrCodeInternal for
// untyped errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool        { return CodeOf(err) == ErrCodeNotFound }
func IsForbidden(err error) bool       { return CodeOf(err) == ErrCodeForbidden }
func IsConflict(err error) bool        { return CodeOf(err) == ErrCodeConflict }
func IsInvalidState(err error) bool    { return CodeOf(err) == ErrCodeInvalidState }
func IsInvalidArgument(err error) bool { return CodeOf(err) == ErrCodeInvalidArgument }

// IsDependencyUnavailable reports whether err stems from an unreachable
// external collaborator.
func IsDependencyUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeDependencyUnavailable
}
