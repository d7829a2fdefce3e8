// Package errors defines the error taxonomy shared by the coordination
// engine. Every failure surfaced by the engine carries one of the codes
// below so callers can distinguish malformed input from storage faults
// and chain-access faults without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different categories of engine errors
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed input shape, rejected before any write
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeInvalidSignature indicates a signature blob that failed signer recovery
	ErrCodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	// ErrCodeStorage indicates database I/O or corruption errors
	ErrCodeStorage ErrorCode = "STORAGE"

	// ErrCodeOracle indicates chain read failures (RPC, logs, bytecode)
	ErrCodeOracle ErrorCode = "ORACLE"

	// ErrCodeTracker indicates remote configuration tracker failures
	ErrCodeTracker ErrorCode = "TRACKER"

	// ErrCodeIncompleteConfig indicates a configuration update whose target
	// configuration could not be fully resolved
	ErrCodeIncompleteConfig ErrorCode = "INCOMPLETE_CONFIG"

	// ErrCodeNotFound indicates a lookup for an entity that is not stored
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// EngineError is the concrete error type carried across package
// boundaries. Wallet is an optional annotation for logging.
type EngineError struct {
	Code    ErrorCode
	Message string
	Wallet  string
	Cause   error
}

// New creates an EngineError with the given code.
func New(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithWallet annotates the error with the wallet it relates to.
func (e *EngineError) WithWallet(wallet string) *EngineError {
	e.Wallet = wallet
	return e
}

// HasCode reports whether err is an EngineError carrying the given code
// anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// Common error constructors

// NewValidationError creates a validation error
func NewValidationError(format string, args ...any) *EngineError {
	return New(ErrCodeValidation, fmt.Sprintf(format, args...), nil)
}

// NewInvalidSignatureError creates an invalid-signature error
func NewInvalidSignatureError(message string, cause error) *EngineError {
	return New(ErrCodeInvalidSignature, message, cause)
}

// NewStorageError creates a storage error
func NewStorageError(message string, cause error) *EngineError {
	return New(ErrCodeStorage, message, cause)
}

// NewOracleError creates a chain oracle error
func NewOracleError(message string, cause error) *EngineError {
	return New(ErrCodeOracle, message, cause)
}

// NewTrackerError creates a remote tracker error
func NewTrackerError(message string, cause error) *EngineError {
	return New(ErrCodeTracker, message, cause)
}

// NewIncompleteConfigError creates an incomplete-configuration error
func NewIncompleteConfigError(message string) *EngineError {
	return New(ErrCodeIncompleteConfig, message, nil)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(format string, args ...any) *EngineError {
	return New(ErrCodeNotFound, fmt.Sprintf(format, args...), nil)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return HasCode(err, ErrCodeValidation) }

// IsInvalidSignature reports whether err is an invalid-signature error.
func IsInvalidSignature(err error) bool { return HasCode(err, ErrCodeInvalidSignature) }

// IsStorage reports whether err is a storage error.
func IsStorage(err error) bool { return HasCode(err, ErrCodeStorage) }

// IsOracle reports whether err is an oracle error.
func IsOracle(err error) bool { return HasCode(err, ErrCodeOracle) }

// IsIncompleteConfig reports whether err is an incomplete-configuration error.
func IsIncompleteConfig(err error) bool { return HasCode(err, ErrCodeIncompleteConfig) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return HasCode(err, ErrCodeNotFound) }
