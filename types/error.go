package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Conversation error codes
const (
	ErrGenerationFailed  ErrorCode = "GENERATION_FAILED"
	ErrInvalidConfig     ErrorCode = "INVALID_CONFIG"
	ErrCancelled         ErrorCode = "CANCELLED"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// =============================================================================
// Conversation failure taxonomy
// =============================================================================

// FailureKind distinguishes the subtypes of a GenerationFailure.
type FailureKind string

const (
	FailureConnectivity FailureKind = "connectivity"
	FailureRateLimit    FailureKind = "rate_limit"
	FailureQuota        FailureKind = "quota"
	FailureTimeout      FailureKind = "timeout"
	FailureMalformed    FailureKind = "malformed_response"
	FailureRejected     FailureKind = "rejected"
	FailureUnknown      FailureKind = "unknown"
)

// GenerationFailure is returned when an agent could not obtain a completion.
// Turn is the 1-based turn the failed message would have occupied.
type GenerationFailure struct {
	Agent string
	Turn  int
	Kind  FailureKind
	Cause error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed: agent=%s turn=%d kind=%s: %v", e.Agent, e.Turn, e.Kind, e.Cause)
}

func (e *GenerationFailure) Unwrap() error { return e.Cause }

// Retryable reports whether retrying the same request may succeed.
func (e *GenerationFailure) Retryable() bool {
	switch e.Kind {
	case FailureConnectivity, FailureRateLimit, FailureTimeout:
		return true
	}
	return IsRetryable(e.Cause)
}

// ConfigurationError is raised at construction time, before any turn runs.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError creates a ConfigurationError for field.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// CancelledError reports a cancellation honored at a turn boundary.
// Turn is the number of turns completed before the cancellation took effect.
type CancelledError struct {
	Turn  int
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cancelled after turn %d: %v", e.Turn, e.Cause)
	}
	return fmt.Sprintf("cancelled after turn %d", e.Turn)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// =============================================================================
// Helpers
// =============================================================================

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var gf *GenerationFailure
	if errors.As(err, &gf) {
		return gf.Retryable()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var (
		gf  *GenerationFailure
		ce  *ConfigurationError
		cnl *CancelledError
		e   *Error
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cnl):
		return ErrCancelled
	case errors.As(err, &ce):
		return ErrInvalidConfig
	case errors.As(err, &gf):
		return ErrGenerationFailed
	case errors.As(err, &e):
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
