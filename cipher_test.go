package deniable

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func newTestEngines(t *testing.T) map[string]CipherEngine {
	t.Helper()

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	engines := make(map[string]CipherEngine)
	for _, suite := range []CipherSuite{CipherAES256GCM, CipherXChaCha20Poly1305} {
		engine, err := NewCipherEngine(suite, key)
		if err != nil {
			t.Fatalf("Failed to create %s engine: %v", suite, err)
		}
		engines[suite.String()] = engine
	}
	return engines
}

func TestCipherEngine_EncryptDecrypt(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
		ad        []byte
	}{
		{name: "simple text", plaintext: []byte("Hello, World!")},
		{name: "empty plaintext", plaintext: []byte("")},
		{name: "with AD", plaintext: []byte("secret message"), ad: []byte("context")},
		{name: "long plaintext", plaintext: bytes.Repeat([]byte("A"), 100000)},
	}

	for suite, engine := range newTestEngines(t) {
		for _, tt := range tests {
			t.Run(suite+"/"+tt.name, func(t *testing.T) {
				nonce, err := GenerateNonce()
				if err != nil {
					t.Fatalf("GenerateNonce failed: %v", err)
				}

				ciphertext, err := engine.Encrypt(nonce, tt.plaintext, tt.ad)
				if err != nil {
					t.Fatalf("Encrypt failed: %v", err)
				}
				if len(ciphertext) != len(tt.plaintext)+engine.Overhead() {
					t.Errorf("ciphertext length = %d, want %d", len(ciphertext), len(tt.plaintext)+engine.Overhead())
				}

				decrypted, err := engine.Decrypt(nonce, ciphertext, tt.ad)
				if err != nil {
					t.Fatalf("Decrypt failed: %v", err)
				}
				if !bytes.Equal(decrypted, tt.plaintext) {
					t.Errorf("Decrypted plaintext doesn't match")
				}
			})
		}
	}
}

func TestCipherEngine_Tampering(t *testing.T) {
	for suite, engine := range newTestEngines(t) {
		t.Run(suite, func(t *testing.T) {
			nonce, _ := GenerateNonce()
			ciphertext, err := engine.Encrypt(nonce, []byte("important message"), []byte("ad1"))
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}

			tampered := append([]byte(nil), ciphertext...)
			tampered[len(tampered)-1] ^= 0x01
			if _, err := engine.Decrypt(nonce, tampered, []byte("ad1")); err != ErrAuthFailed {
				t.Errorf("Expected ErrAuthFailed for tampered ciphertext, got: %v", err)
			}

			if _, err := engine.Decrypt(nonce, ciphertext, []byte("ad2")); err != ErrAuthFailed {
				t.Errorf("Expected ErrAuthFailed for mismatched AD, got: %v", err)
			}
		})
	}
}

func TestCipherEngine_InvalidInput(t *testing.T) {
	if _, err := NewAESGCMEngine(make([]byte, 16)); err == nil {
		t.Error("NewAESGCMEngine should reject a 16-byte key")
	}
	if _, err := NewXChaCha20Poly1305Engine(make([]byte, 31)); err == nil {
		t.Error("NewXChaCha20Poly1305Engine should reject a 31-byte key")
	}
	if _, err := NewCipherEngine(CipherSuite(99), make([]byte, KeySize)); err != ErrUnsupportedCipher {
		t.Errorf("Expected ErrUnsupportedCipher, got %v", err)
	}

	for suite, engine := range newTestEngines(t) {
		t.Run(suite, func(t *testing.T) {
			if _, err := engine.Encrypt(make([]byte, 12), []byte("x"), nil); err == nil {
				t.Error("Encrypt should reject a 12-byte nonce")
			}
		})
	}
}

func TestGenerateNonce_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		nonce, err := GenerateNonce()
		if err != nil {
			t.Fatalf("GenerateNonce failed: %v", err)
		}
		if len(nonce) != NonceSize {
			t.Fatalf("nonce length = %d, want %d", len(nonce), NonceSize)
		}
		if seen[string(nonce)] {
			t.Fatal("duplicate nonce generated")
		}
		seen[string(nonce)] = true
	}
}
