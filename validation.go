package deniable

import (
	"fmt"
)

// Input validation helpers. Everything here runs before any I/O.

// ValidatePassword checks that a password is non-empty and within maxLen bytes.
// Passwords are compared byte for byte; no trimming or normalization happens.
func ValidatePassword(password []byte, maxLen int) error {
	if len(password) == 0 {
		return &ValidationError{
			Field:   "password",
			Message: "password cannot be empty",
			Err:     ErrEmptyPassword,
		}
	}
	if maxLen > 0 && len(password) > maxLen {
		return &ValidationError{
			Field:   "password",
			Value:   len(password),
			Message: fmt.Sprintf("password too long: got %d bytes, maximum is %d bytes", len(password), maxLen),
			Err:     ErrPasswordTooLong,
		}
	}
	return nil
}

// ValidateData checks that a session payload fits within maxSize bytes
func ValidateData(data []byte, maxSize int) error {
	if maxSize > 0 && len(data) > maxSize {
		return &ValidationError{
			Field:   "data",
			Value:   len(data),
			Message: fmt.Sprintf("data too large: got %d bytes, maximum is %d bytes", len(data), maxSize),
			Err:     ErrDataTooLarge,
		}
	}
	if int64(len(data)) > int64(^uint32(0)) {
		return &ValidationError{
			Field:   "data",
			Value:   len(data),
			Message: "data exceeds the 4 GiB session limit",
			Err:     ErrDataTooLarge,
		}
	}
	return nil
}

// ValidateBuffer checks if a buffer is valid (non-nil and has expected size)
func ValidateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return &ValidationError{
			Field:   name,
			Message: "buffer cannot be nil",
		}
	}
	if minSize > 0 && len(buf) < minSize {
		return &ValidationError{
			Field:   name,
			Value:   len(buf),
			Message: fmt.Sprintf("buffer too small: got %d bytes, need at least %d bytes", len(buf), minSize),
		}
	}
	return nil
}

// ValidateSize checks if a size parameter is valid
func ValidateSize(size int, name string, minSize, maxSize int) error {
	if size < 0 {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: "size cannot be negative",
			Err:     ErrInvalidSize,
		}
	}
	if minSize >= 0 && size < minSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too small: got %d, minimum is %d", size, minSize),
			Err:     ErrInvalidSize,
		}
	}
	if maxSize > 0 && size > maxSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too large: got %d, maximum is %d", size, maxSize),
			Err:     ErrInvalidSize,
		}
	}
	return nil
}

// ValidateKey checks if a key has the correct size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
			Err:     ErrInvalidKey,
		}
	}

	if len(key) != expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
			Err:     ErrInvalidKey,
		}
	}

	return nil
}

// Validate checks Argon2id parameters against the limits of the algorithm
func (p Argon2idParams) Validate() error {
	if p.Iterations < 1 {
		return NewValidationError("argon2.iterations", p.Iterations, "must be at least 1")
	}
	if p.Parallelism < 1 {
		return NewValidationError("argon2.parallelism", p.Parallelism, "must be at least 1")
	}
	if p.Memory < 8*uint32(p.Parallelism) {
		return NewValidationError("argon2.memory", p.Memory, "must be at least 8 KiB per lane")
	}
	if p.Memory > 4*1024*1024 {
		return NewValidationError("argon2.memory", p.Memory, "must not exceed 4 GiB")
	}
	return nil
}

// Validate checks PBKDF2 parameters
func (p PBKDF2Params) Validate() error {
	if p.Iterations < 1 {
		return NewValidationError("pbkdf2.iterations", p.Iterations, "must be at least 1")
	}
	if p.HashFunc != SHA256 && p.HashFunc != SHA512 {
		return NewValidationError("pbkdf2.hash", p.HashFunc, "unsupported hash function")
	}
	return nil
}
