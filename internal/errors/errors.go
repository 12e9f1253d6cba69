// Package errors provides structured error handling for netprobe.
// Errors carry a machine-readable code so that the orchestrator can tag
// phase failures in the result document and callers can branch on them.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodePermission    ErrorCode = "PERMISSION"

	// Discovery errors.
	CodeTargetInvalid       ErrorCode = "TARGET_INVALID"
	CodeToolUnavailable     ErrorCode = "TOOL_UNAVAILABLE"
	CodeScanFailed          ErrorCode = "SCAN_FAILED"
	CodeDiscoveryFailed     ErrorCode = "DISCOVERY_FAILED"
	CodeProtocolUnavailable ErrorCode = "PROTOCOL_UNAVAILABLE"
	CodeParseFailed         ErrorCode = "PARSE_FAILED"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
)

// DiscoveryError represents a failure of a discovery run or one of its phases.
type DiscoveryError struct {
	Code    ErrorCode
	Message string
	Network string
	Method  string
	Cause   error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Method != "" {
		msg += fmt.Sprintf(" (method: %s)", e.Method)
	}
	if e.Network != "" {
		msg += fmt.Sprintf(" (network: %s)", e.Network)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// WithMethod tags the error with the discovery method that raised it.
func (e *DiscoveryError) WithMethod(method string) *DiscoveryError {
	e.Method = method
	return e
}

// WithNetwork tags the error with the target network.
func (e *DiscoveryError) WithNetwork(network string) *DiscoveryError {
	e.Network = network
	return e
}

// NewDiscoveryError creates a new discovery error.
func NewDiscoveryError(code ErrorCode, message string) *DiscoveryError {
	return &DiscoveryError{Code: code, Message: message}
}

// WrapDiscoveryError wraps an existing error as a discovery error.
func WrapDiscoveryError(code ErrorCode, message string, err error) *DiscoveryError {
	return &DiscoveryError{Code: code, Message: message, Cause: err}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message, operation string, err error) *DatabaseError {
	return &DatabaseError{Code: code, Message: message, Operation: operation, Cause: err}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   any
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value any) *ConfigError {
	return &ConfigError{Code: code, Message: message, Field: field, Value: value}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{Code: code, Message: message, Cause: err}
}

// GetCode extracts the error code from the first coded error in the chain.
func GetCode(err error) ErrorCode {
	var de *DiscoveryError
	if errors.As(err, &de) {
		return de.Code
	}
	var dbe *DatabaseError
	if errors.As(err, &dbe) {
		return dbe.Code
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknown
}

// IsCode checks if an error carries a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsFatal reports whether an error must abort a discovery run rather than
// being recorded against a single phase.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeTargetInvalid, CodeConfiguration, CodePermission:
		return true
	default:
		return false
	}
}

// ErrInvalidTarget creates an error for an unparseable target range.
func ErrInvalidTarget(network string, err error) *DiscoveryError {
	return WrapDiscoveryError(CodeTargetInvalid, "invalid target network", err).WithNetwork(network)
}

// ErrToolUnavailable creates an error for a missing external tool or library.
func ErrToolUnavailable(method, tool string, err error) *DiscoveryError {
	return WrapDiscoveryError(CodeToolUnavailable, tool+" is not available", err).WithMethod(method)
}

// ErrPhaseFailed creates an error for a phase that could not complete.
func ErrPhaseFailed(method string, err error) *DiscoveryError {
	return WrapDiscoveryError(CodeScanFailed, "phase failed", err).WithMethod(method)
}

// ErrConfigInvalid creates an error for an invalid configuration value.
func ErrConfigInvalid(field string, value any) *ConfigError {
	return NewConfigFieldError(CodeValidation, "invalid configuration value", field, value)
}
