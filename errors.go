package deniable

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors. Wrong passwords and
// absent sessions are not errors: they surface as nil results.

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// LifecycleError is returned when an operation is invoked in the wrong state
type LifecycleError struct {
	Operation string // The operation that was attempted
	Err       error  // Underlying error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("lifecycle error: %s: %v", e.Operation, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// EncryptionError represents a failure to encrypt or derive a key. Decryption
// failures are never reported through it.
type EncryptionError struct {
	Operation string // "encrypt", "derive-key", ...
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Operation, e.Message)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// IOError represents a storage adapter failure
type IOError struct {
	Operation string // "read", "write", "size", "wipe", ...
	Target    string // Blob or path being accessed
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Target, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptionError represents persisted state that cannot be used at all,
// such as an addressing blob of the wrong size. It is never produced for
// per-session decryption failures.
type CorruptionError struct {
	Target  string // Blob name
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *CorruptionError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("corruption error: %s: %s", e.Target, e.Message)
	}
	return fmt.Sprintf("corruption error: %s", e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// Common sentinel errors
var (
	ErrNotInitialized    = errors.New("storage not initialized")
	ErrSessionNotFound   = errors.New("session not found")
	ErrBlobNotFound      = errors.New("blob not found")
	ErrInvalidKey        = errors.New("invalid encryption key")
	ErrAuthFailed        = errors.New("authentication failed - data may be corrupted or tampered")
	ErrUnsupportedCipher = errors.New("unsupported cipher suite")
	ErrNilConfig         = errors.New("config cannot be nil")
	ErrNilAdapter        = errors.New("storage adapter cannot be nil")
	ErrEmptyPassword     = errors.New("password cannot be empty")
	ErrPasswordTooLong   = errors.New("password too long")
	ErrDataTooLarge      = errors.New("data too large")
	ErrSamePassword      = errors.New("new password must differ from the old one")
	ErrInvalidSize       = errors.New("invalid size parameter")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewLifecycleError creates a new lifecycle error
func NewLifecycleError(operation string, err error) error {
	return &LifecycleError{
		Operation: operation,
		Err:       err,
	}
}

// NewEncryptionError creates a new encryption error
func NewEncryptionError(operation string, err error) error {
	return &EncryptionError{
		Operation: operation,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, target string, err error) error {
	return &IOError{
		Operation: operation,
		Target:    target,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewCorruptionError creates a new corruption error
func NewCorruptionError(target string, message string) error {
	return &CorruptionError{
		Target:  target,
		Message: message,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsLifecycleError checks if an error is a lifecycle error
func IsLifecycleError(err error) bool {
	var le *LifecycleError
	return errors.As(err, &le)
}

// IsEncryptionError checks if an error is an encryption error
func IsEncryptionError(err error) bool {
	var ee *EncryptionError
	return errors.As(err, &ee)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsCorruptionError checks if an error is a corruption error
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}
