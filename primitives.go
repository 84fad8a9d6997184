package deniable

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// Primitives is the cryptographic contract the storage engine is built on.
// Implementations must be safe for concurrent use.
type Primitives interface {
	// DeriveKeyFromPassword derives a KeySize key from a password and salt
	DeriveKeyFromPassword(password, salt []byte) ([]byte, error)

	// DeriveKeyFromKey derives an independent KeySize key from a parent key
	DeriveKeyFromKey(parent, context []byte) ([]byte, error)

	// GenerateNonce returns NonceSize random bytes
	GenerateNonce() ([]byte, error)

	// Encrypt seals plaintext under key
	Encrypt(key, nonce, plaintext, ad []byte) ([]byte, error)

	// Decrypt opens ciphertext under key. Any failure returns an error.
	Decrypt(key, nonce, ciphertext, ad []byte) ([]byte, error)
}

// StandardPrimitives implements Primitives with Argon2id or PBKDF2 for
// passwords, HKDF-SHA256 for key separation and the configured AEAD suite.
type StandardPrimitives struct {
	cipher       CipherSuite
	kdf          KDFAlgorithm
	argon2Params Argon2idParams
	pbkdf2Params PBKDF2Params
}

// NewArgon2idPrimitives creates primitives using Argon2id (recommended)
func NewArgon2idPrimitives(suite CipherSuite, params Argon2idParams) *StandardPrimitives {
	if params.Memory == 0 {
		params.Memory = 64 * 1024 // 64 MB
	}
	if params.Iterations == 0 {
		params.Iterations = 3
	}
	if params.Parallelism == 0 {
		params.Parallelism = 4
	}

	return &StandardPrimitives{
		cipher:       suite,
		kdf:          KDFArgon2id,
		argon2Params: params,
	}
}

// NewPBKDF2Primitives creates primitives using PBKDF2
func NewPBKDF2Primitives(suite CipherSuite, params PBKDF2Params) *StandardPrimitives {
	if params.Iterations == 0 {
		params.Iterations = 600000
	}

	return &StandardPrimitives{
		cipher:       suite,
		kdf:          KDFPBKDF2,
		pbkdf2Params: params,
	}
}

// NewPrimitivesFromConfig builds the primitives described by cfg
func NewPrimitivesFromConfig(cfg *Config) Primitives {
	if cfg.Primitives != nil {
		return cfg.Primitives
	}
	if cfg.KDF == KDFPBKDF2 {
		return NewPBKDF2Primitives(cfg.Cipher, cfg.PBKDF2)
	}
	return NewArgon2idPrimitives(cfg.Cipher, cfg.Argon2)
}

// DeriveKeyFromPassword derives an encryption key from the password and salt
func (p *StandardPrimitives) DeriveKeyFromPassword(password, salt []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(salt) == 0 {
		return nil, errors.New("salt cannot be empty")
	}

	if p.kdf == KDFArgon2id {
		return argon2.IDKey(
			password,
			salt,
			p.argon2Params.Iterations,
			p.argon2Params.Memory,
			p.argon2Params.Parallelism,
			KeySize,
		), nil
	}

	var hashFunc func() hash.Hash
	switch p.pbkdf2Params.HashFunc {
	case SHA256:
		hashFunc = sha256.New
	case SHA512:
		hashFunc = sha512.New
	default:
		return nil, fmt.Errorf("unsupported hash function: %v", p.pbkdf2Params.HashFunc)
	}

	return pbkdf2.Key(password, salt, p.pbkdf2Params.Iterations, KeySize, hashFunc), nil
}

// DeriveKeyFromKey expands parent into a new key bound to context
func (p *StandardPrimitives) DeriveKeyFromKey(parent, context []byte) ([]byte, error) {
	if err := ValidateKey(parent, KeySize); err != nil {
		return nil, err
	}

	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, parent, context, []byte("deniable/v1/key"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to expand key: %w", err)
	}
	return key, nil
}

// GenerateNonce generates a random nonce
func (p *StandardPrimitives) GenerateNonce() ([]byte, error) {
	return GenerateNonce()
}

// Encrypt seals plaintext with the configured cipher suite
func (p *StandardPrimitives) Encrypt(key, nonce, plaintext, ad []byte) ([]byte, error) {
	if err := ValidateBuffer(nonce, "nonce", NonceSize); err != nil {
		return nil, err
	}
	engine, err := NewCipherEngine(p.cipher, key)
	if err != nil {
		return nil, err
	}
	return engine.Encrypt(nonce, plaintext, ad)
}

// Decrypt opens ciphertext with the configured cipher suite
func (p *StandardPrimitives) Decrypt(key, nonce, ciphertext, ad []byte) ([]byte, error) {
	if err := ValidateBuffer(nonce, "nonce", NonceSize); err != nil {
		return nil, err
	}
	engine, err := NewCipherEngine(p.cipher, key)
	if err != nil {
		return nil, err
	}
	return engine.Decrypt(nonce, ciphertext, ad)
}
