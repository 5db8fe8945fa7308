// Package cli implements the command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aidanlsb/kb/internal/capability"
	"github.com/aidanlsb/kb/internal/paths"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	ErrUsage              = "USAGE"
	ErrFeatureUnavailable = "FEATURE_UNAVAILABLE"

	// KB errors
	ErrKBNotFound    = "KB_NOT_FOUND"
	ErrConfigInvalid = "CONFIG_INVALID"

	// File errors
	ErrFileNotFound  = "FILE_NOT_FOUND"
	ErrFileOutsideKB = "FILE_OUTSIDE_KB"

	// Database errors
	ErrDatabaseError = "DATABASE_ERROR"
	ErrInvalidQuery  = "INVALID_QUERY"

	// Validation errors
	ErrValidationFailed = "VALIDATION_FAILED"

	// Sync errors
	ErrSyncFailed = "SYNC_FAILED"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// Warning codes for non-fatal issues.
const (
	WarnEntrySkipped     = "ENTRY_SKIPPED"
	WarnValidation       = "VALIDATION_WARNING"
	WarnIndexRebuilt     = "INDEX_REBUILT"
	WarnUsageNotRecorded = "USAGE_NOT_RECORDED"
)

// Kind classifies a CLI failure. Each kind maps to one exit code.
type Kind int

const (
	// KindHandler is a failure reported by a command handler.
	KindHandler Kind = iota + 1
	// KindUsage is a malformed invocation.
	KindUsage
	// KindCapability is a handler that needs an unavailable collaborator.
	KindCapability
)

// Exit codes.
const (
	ExitOK         = 0
	ExitHandler    = 1
	ExitUsage      = 2
	ExitCapability = 3
)

// Error is a CLI failure with a stable code. Rendering happens once, in App.Run.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Suggestion string
	Details    interface{}
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// usageErrorf builds a usage error.
func usageErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUsage, Code: ErrUsage, Message: fmt.Sprintf(format, args...)}
}

// handlerError builds a handler error with code wrapping err.
func handlerError(code string, err error, suggestion string) *Error {
	return &Error{Kind: KindHandler, Code: code, Message: err.Error(), Suggestion: suggestion, Err: err}
}

// handlerErrorf builds a handler error from a message.
func handlerErrorf(code, suggestion, format string, args ...interface{}) *Error {
	return &Error{Kind: KindHandler, Code: code, Message: fmt.Sprintf(format, args...), Suggestion: suggestion}
}

// capabilityError converts a missing capability into a CLI error.
func capabilityError(err *capability.UnavailableError) *Error {
	e := &Error{
		Kind:    KindCapability,
		Code:    ErrFeatureUnavailable,
		Message: err.Error(),
		Details: map[string]string{"capability": string(err.Name)},
		Err:     err,
	}
	if err.Cause != nil {
		e.Suggestion = fmt.Sprintf("%s is unavailable: %v", err.Name, err.Cause)
	}
	return e
}

// asHandlerError classifies an error returned by a handler.
func asHandlerError(err error) *Error {
	var cliErr *Error
	if errors.As(err, &cliErr) {
		return cliErr
	}
	var unavailable *capability.UnavailableError
	if errors.As(err, &unavailable) {
		return capabilityError(unavailable)
	}
	switch {
	case errors.Is(err, paths.ErrPathOutsideKB):
		return handlerError(ErrFileOutsideKB, err, "")
	case errors.Is(err, os.ErrNotExist):
		return handlerError(ErrFileNotFound, err, "")
	case errors.Is(err, context.Canceled):
		return handlerError(ErrInternal, fmt.Errorf("interrupted"), "")
	}
	return handlerError(ErrInternal, err, "")
}

// classify turns any error surfacing from the cobra tree into an *Error.
// Untyped errors come from cobra's own argument and flag parsing and are
// therefore usage errors.
func classify(err error) *Error {
	var cliErr *Error
	if errors.As(err, &cliErr) {
		return cliErr
	}
	var unavailable *capability.UnavailableError
	if errors.As(err, &unavailable) {
		return capabilityError(unavailable)
	}
	return &Error{Kind: KindUsage, Code: ErrUsage, Message: err.Error(), Err: err}
}

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch classify(err).Kind {
	case KindHandler:
		return ExitHandler
	case KindCapability:
		return ExitCapability
	default:
		return ExitUsage
	}
}
