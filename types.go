package deniable

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// CipherSuite represents the AEAD algorithm used for blocks and slots
type CipherSuite uint8

const (
	// CipherAuto selects the default cipher (AES-256-GCM)
	CipherAuto CipherSuite = iota
	// CipherAES256GCM uses AES-256 with Galois/Counter Mode and a 16-byte nonce
	CipherAES256GCM
	// CipherXChaCha20Poly1305 uses XChaCha20 with Poly1305 MAC
	CipherXChaCha20Poly1305
)

// String returns the string representation of the cipher suite
func (c CipherSuite) String() string {
	switch c {
	case CipherAuto:
		return "auto"
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherXChaCha20Poly1305:
		return "xchacha20-poly1305"
	default:
		return "unknown"
	}
}

// ParseCipherSuite returns the cipher suite named by s
func ParseCipherSuite(s string) (CipherSuite, error) {
	switch s {
	case "", "auto":
		return CipherAuto, nil
	case "aes-256-gcm":
		return CipherAES256GCM, nil
	case "xchacha20-poly1305":
		return CipherXChaCha20Poly1305, nil
	default:
		return CipherAuto, ErrUnsupportedCipher
	}
}

// KDFAlgorithm selects the password-based key derivation function
type KDFAlgorithm uint8

const (
	// KDFArgon2id uses Argon2id (recommended)
	KDFArgon2id KDFAlgorithm = iota
	// KDFPBKDF2 uses PBKDF2 with HMAC-SHA256 or HMAC-SHA512
	KDFPBKDF2
)

// HashFunc represents hash function types for PBKDF2
type HashFunc uint8

const (
	// SHA256 hash function
	SHA256 HashFunc = iota
	// SHA512 hash function
	SHA512
)

// PBKDF2Params contains parameters for PBKDF2 key derivation
type PBKDF2Params struct {
	Iterations int      // Number of iterations (minimum 100,000 recommended)
	HashFunc   HashFunc // Hash function to use
}

// Argon2idParams contains parameters for Argon2id key derivation
type Argon2idParams struct {
	Memory      uint32 // Memory in KiB (e.g., 64*1024 for 64MB)
	Iterations  uint32 // Number of iterations (time parameter)
	Parallelism uint8  // Degree of parallelism
}

// ParallelConfig controls parallel decryption of allocation entries
type ParallelConfig struct {
	// Enabled enables parallel entry processing
	Enabled bool

	// MaxWorkers is the maximum number of worker goroutines.
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int

	// MinEntriesForParallel is the minimum number of entries to use the pool.
	// Below this threshold, entries are decrypted sequentially
	MinEntriesForParallel int
}

// Config contains configuration for a DeniableStorage instance
type Config struct {
	// Cipher suite used for every block and addressing slot
	Cipher CipherSuite

	// KDF selects the password-based key derivation function
	KDF KDFAlgorithm

	// Argon2 parameters, used when KDF is KDFArgon2id
	Argon2 Argon2idParams

	// PBKDF2 parameters, used when KDF is KDFPBKDF2
	PBKDF2 PBKDF2Params

	// Primitives overrides the crypto primitives built from the fields above
	Primitives Primitives

	// BlockSizes is the distribution used to split large payloads
	BlockSizes Distribution

	// Padding is the distribution used for random padding between blocks
	Padding Distribution

	// SplitLargePayloads stores a payload as several blocks whose sizes are
	// drawn from BlockSizes instead of a single block
	SplitLargePayloads bool

	// MaxPasswordLength bounds the password length in bytes
	MaxPasswordLength int

	// MaxDataSize bounds a session payload in bytes
	MaxDataSize int

	// MinUnlockDuration is the minimum wall-clock time of UnlockSession
	MinUnlockDuration time.Duration

	// UnlockThroughput is the payload decryption rate, in bytes per second,
	// assumed when padding UnlockSession. Every unlock lasts at least
	// MinUnlockDuration plus the time to decrypt the largest payload the
	// data blob could hold, so a valid password on a large session takes
	// no longer than a wrong one. Negative disables the size term.
	UnlockThroughput int64

	// Parallel controls parallel entry decryption during reconstruction
	Parallel ParallelConfig

	// Logger receives structured operation logs. If nil, logs are discarded
	Logger logrus.FieldLogger
}

const (
	// DefaultMaxPasswordLength is the default password length cap
	DefaultMaxPasswordLength = 1024

	// DefaultMaxDataSize is the default session payload cap (256 MiB)
	DefaultMaxDataSize = 256 * MiB

	// DefaultMinUnlockDuration is the default floor for unlock timing
	DefaultMinUnlockDuration = 250 * time.Millisecond

	// DefaultUnlockThroughput is a conservative payload decryption rate
	DefaultUnlockThroughput = 128 * MiB
)

// DefaultConfig returns a configuration with the production defaults
func DefaultConfig() *Config {
	return &Config{
		Cipher: CipherAES256GCM,
		KDF:    KDFArgon2id,
		Argon2: Argon2idParams{
			Memory:      64 * 1024,
			Iterations:  3,
			Parallelism: 4,
		},
		PBKDF2: PBKDF2Params{
			Iterations: 600000,
			HashFunc:   SHA256,
		},
		BlockSizes:        DefaultBlockDistribution,
		Padding:           DefaultPaddingDistribution,
		MaxPasswordLength: DefaultMaxPasswordLength,
		MaxDataSize:       DefaultMaxDataSize,
		MinUnlockDuration: DefaultMinUnlockDuration,
		UnlockThroughput:  DefaultUnlockThroughput,
		Parallel:          DefaultParallelConfig(),
	}
}

// setDefaults fills zero-valued fields
func (c *Config) setDefaults() {
	if c.Cipher == CipherAuto {
		c.Cipher = CipherAES256GCM
	}
	if c.Argon2.Memory == 0 {
		c.Argon2.Memory = 64 * 1024
	}
	if c.Argon2.Iterations == 0 {
		c.Argon2.Iterations = 3
	}
	if c.Argon2.Parallelism == 0 {
		c.Argon2.Parallelism = 4
	}
	if c.PBKDF2.Iterations == 0 {
		c.PBKDF2.Iterations = 600000
	}
	if c.BlockSizes.Kind == 0 {
		c.BlockSizes = DefaultBlockDistribution
	}
	if c.Padding.Kind == 0 {
		c.Padding = DefaultPaddingDistribution
	}
	if c.MaxPasswordLength == 0 {
		c.MaxPasswordLength = DefaultMaxPasswordLength
	}
	if c.MaxDataSize == 0 {
		c.MaxDataSize = DefaultMaxDataSize
	}
	if c.UnlockThroughput == 0 {
		c.UnlockThroughput = DefaultUnlockThroughput
	}
	if c.Parallel.MinEntriesForParallel == 0 {
		c.Parallel.MinEntriesForParallel = 4
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Cipher != CipherAES256GCM && c.Cipher != CipherXChaCha20Poly1305 && c.Cipher != CipherAuto {
		return ErrUnsupportedCipher
	}
	if c.KDF != KDFArgon2id && c.KDF != KDFPBKDF2 {
		return NewValidationError("kdf", c.KDF, "unsupported key derivation function")
	}
	if c.Primitives == nil {
		if c.KDF == KDFArgon2id {
			if err := c.Argon2.Validate(); err != nil {
				return err
			}
		} else if err := c.PBKDF2.Validate(); err != nil {
			return err
		}
	}
	if err := c.BlockSizes.Validate(); err != nil {
		return err
	}
	if err := c.Padding.Validate(); err != nil {
		return err
	}
	if err := ValidateSize(c.MaxPasswordLength, "max_password_length", 0, 0); err != nil {
		return err
	}
	if err := ValidateSize(c.MaxDataSize, "max_data_size", 0, 0); err != nil {
		return err
	}
	if int64(c.MaxDataSize) > MaxBlockPayload {
		return NewValidationError("max_data_size", c.MaxDataSize, "exceeds the largest block payload")
	}
	if c.MinUnlockDuration < 0 {
		return errors.New("minimum unlock duration cannot be negative")
	}
	return c.Parallel.Validate()
}

// SessionData is the result of a successful unlock
type SessionData struct {
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats reports the size of the persisted blobs. It never reports anything
// about sessions, which are not observable without a password.
type Stats struct {
	Initialized        bool
	AddressingBlobSize int64
	DataBlobSize       int64
	TotalSlots         int
	SlotSize           int
}
