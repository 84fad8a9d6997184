package deniable

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// NonceSize is the nonce size stored with every block and slot
	NonceSize = 16

	// KeySize is the size of every symmetric key
	KeySize = 32

	// TagSize is the AEAD authentication tag size of both suites
	TagSize = 16
)

// CipherEngine provides AEAD encryption/decryption with a 16-byte nonce
type CipherEngine interface {
	// Encrypt encrypts plaintext with the given nonce and associated data
	Encrypt(nonce, plaintext, ad []byte) ([]byte, error)

	// Decrypt decrypts ciphertext with the given nonce and associated data
	Decrypt(nonce, ciphertext, ad []byte) ([]byte, error)

	// Overhead returns the authentication tag size
	Overhead() int
}

// AESGCMEngine implements CipherEngine using AES-256-GCM with 16-byte nonces
type AESGCMEngine struct {
	aead cipher.AEAD
}

// NewAESGCMEngine creates a new AES-256-GCM cipher engine
func NewAESGCMEngine(key []byte) (*AESGCMEngine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("AES-256 requires a 32-byte key, got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMEngine{aead: aead}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM
func (e *AESGCMEngine) Encrypt(nonce, plaintext, ad []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	return e.aead.Seal(nil, nonce, plaintext, ad), nil
}

// Decrypt decrypts ciphertext using AES-256-GCM
func (e *AESGCMEngine) Decrypt(nonce, ciphertext, ad []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}

	plaintext, err := e.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Overhead returns the authentication tag size (16 bytes)
func (e *AESGCMEngine) Overhead() int {
	return e.aead.Overhead()
}

// XChaCha20Poly1305Engine implements CipherEngine using XChaCha20-Poly1305.
// The 16-byte stored nonce is zero-extended to the 24-byte XChaCha nonce.
type XChaCha20Poly1305Engine struct {
	aead cipher.AEAD
}

// NewXChaCha20Poly1305Engine creates a new XChaCha20-Poly1305 cipher engine
func NewXChaCha20Poly1305Engine(key []byte) (*XChaCha20Poly1305Engine, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("XChaCha20-Poly1305 requires a %d-byte key, got %d bytes",
			chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create XChaCha20-Poly1305 cipher: %w", err)
	}

	return &XChaCha20Poly1305Engine{aead: aead}, nil
}

func (e *XChaCha20Poly1305Engine) extendNonce(nonce []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	ext := make([]byte, chacha20poly1305.NonceSizeX)
	copy(ext, nonce)
	return ext, nil
}

// Encrypt encrypts plaintext using XChaCha20-Poly1305
func (e *XChaCha20Poly1305Engine) Encrypt(nonce, plaintext, ad []byte) ([]byte, error) {
	ext, err := e.extendNonce(nonce)
	if err != nil {
		return nil, err
	}
	return e.aead.Seal(nil, ext, plaintext, ad), nil
}

// Decrypt decrypts ciphertext using XChaCha20-Poly1305
func (e *XChaCha20Poly1305Engine) Decrypt(nonce, ciphertext, ad []byte) ([]byte, error) {
	ext, err := e.extendNonce(nonce)
	if err != nil {
		return nil, err
	}

	plaintext, err := e.aead.Open(nil, ext, ciphertext, ad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Overhead returns the authentication tag size (16 bytes)
func (e *XChaCha20Poly1305Engine) Overhead() int {
	return e.aead.Overhead()
}

// NewCipherEngine creates a new cipher engine based on the cipher suite
func NewCipherEngine(suite CipherSuite, key []byte) (CipherEngine, error) {
	switch suite {
	case CipherAES256GCM, CipherAuto:
		return NewAESGCMEngine(key)
	case CipherXChaCha20Poly1305:
		return NewXChaCha20Poly1305Engine(key)
	default:
		return nil, ErrUnsupportedCipher
	}
}

// GenerateNonce generates a random 16-byte nonce
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}
