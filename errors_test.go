package deniable

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &ValidationError{
				Field:   "password",
				Value:   0,
				Message: "cannot be empty",
			},
			wantMsg: "validation error: password: cannot be empty",
		},
		{
			name: "without field",
			err: &ValidationError{
				Message: "invalid configuration",
			},
			wantMsg: "validation error: invalid configuration",
		},
		{
			name: "with wrapped error",
			err: &ValidationError{
				Field:   "data",
				Message: "too large",
				Err:     ErrDataTooLarge,
			},
			wantMsg: "validation error: data: too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
			if tt.err.Err != nil {
				if unwrapped := tt.err.Unwrap(); unwrapped != tt.err.Err {
					t.Errorf("ValidationError.Unwrap() = %v, want %v", unwrapped, tt.err.Err)
				}
			}
		})
	}
}

func TestLifecycleError(t *testing.T) {
	err := NewLifecycleError("unlock", ErrNotInitialized)
	if got, want := err.Error(), "lifecycle error: unlock: storage not initialized"; got != want {
		t.Errorf("LifecycleError.Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNotInitialized) {
		t.Error("LifecycleError should unwrap to ErrNotInitialized")
	}
}

func TestIOError(t *testing.T) {
	baseErr := errors.New("permission denied")

	tests := []struct {
		name    string
		err     *IOError
		wantMsg string
	}{
		{
			name: "with target",
			err: &IOError{
				Operation: "read",
				Target:    "addressing blob",
				Message:   "permission denied",
				Err:       baseErr,
			},
			wantMsg: "io error: read addressing blob: permission denied",
		},
		{
			name: "operation only",
			err: &IOError{
				Operation: "wipe",
				Message:   "failed to wipe",
			},
			wantMsg: "io error: wipe: failed to wipe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("IOError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestCorruptionError(t *testing.T) {
	err := NewCorruptionError("addressing blob", "unexpected size 12")
	if got, want := err.Error(), "corruption error: addressing blob: unexpected size 12"; got != want {
		t.Errorf("CorruptionError.Error() = %q, want %q", got, want)
	}
	generic := &CorruptionError{Message: "truncated"}
	if got, want := generic.Error(), "corruption error: truncated"; got != want {
		t.Errorf("CorruptionError.Error() = %q, want %q", got, want)
	}
}

func TestErrorCheckers(t *testing.T) {
	ve := &ValidationError{Message: "test"}
	le := &LifecycleError{Operation: "create", Err: ErrNotInitialized}
	ee := &EncryptionError{Operation: "encrypt", Message: "test"}
	ie := &IOError{Operation: "read", Message: "test"}
	ce := &CorruptionError{Message: "test"}
	genericErr := errors.New("generic error")

	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"IsValidationError with ValidationError", ve, IsValidationError, true},
		{"IsValidationError with wrapped ValidationError", fmt.Errorf("outer: %w", ve), IsValidationError, true},
		{"IsValidationError with other error", genericErr, IsValidationError, false},
		{"IsLifecycleError with LifecycleError", le, IsLifecycleError, true},
		{"IsLifecycleError with other error", genericErr, IsLifecycleError, false},
		{"IsEncryptionError with EncryptionError", ee, IsEncryptionError, true},
		{"IsEncryptionError with other error", genericErr, IsEncryptionError, false},
		{"IsIOError with IOError", ie, IsIOError, true},
		{"IsIOError with other error", genericErr, IsIOError, false},
		{"IsCorruptionError with CorruptionError", ce, IsCorruptionError, true},
		{"IsCorruptionError with other error", genericErr, IsCorruptionError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("error checker = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	t.Run("NewValidationError", func(t *testing.T) {
		err := NewValidationError("field", 123, "invalid value")
		ve, ok := err.(*ValidationError)
		if !ok {
			t.Fatal("NewValidationError should create ValidationError")
		}
		if ve.Field != "field" || ve.Value != 123 || ve.Message != "invalid value" {
			t.Errorf("NewValidationError fields incorrect: %+v", ve)
		}
	})

	t.Run("NewEncryptionError", func(t *testing.T) {
		baseErr := errors.New("test")
		err := NewEncryptionError("encrypt", baseErr)
		if !IsEncryptionError(err) || !errors.Is(err, baseErr) {
			t.Errorf("NewEncryptionError should wrap the cause: %v", err)
		}
	})

	t.Run("NewIOError", func(t *testing.T) {
		err := NewIOError("write", "data blob", ErrBlobNotFound)
		ie, ok := err.(*IOError)
		if !ok {
			t.Fatal("NewIOError should create IOError")
		}
		if ie.Operation != "write" || ie.Target != "data blob" || !errors.Is(err, ErrBlobNotFound) {
			t.Errorf("NewIOError fields incorrect: %+v", ie)
		}
	})
}
