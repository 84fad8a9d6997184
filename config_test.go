package deniable

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFileConfigMatchesDefaultConfig(t *testing.T) {
	cfg, err := DefaultFileConfig().Config()
	require.NoError(t, err)

	d := DefaultConfig()
	assert.Equal(t, d.Cipher, cfg.Cipher)
	assert.Equal(t, d.KDF, cfg.KDF)
	assert.Equal(t, d.Argon2, cfg.Argon2)
	assert.Equal(t, d.PBKDF2, cfg.PBKDF2)
	assert.Equal(t, d.BlockSizes, cfg.BlockSizes)
	assert.Equal(t, d.Padding, cfg.Padding)
	assert.Equal(t, d.MaxPasswordLength, cfg.MaxPasswordLength)
	assert.Equal(t, d.MaxDataSize, cfg.MaxDataSize)
	assert.Equal(t, d.MinUnlockDuration, cfg.MinUnlockDuration)
	assert.Equal(t, d.UnlockThroughput, cfg.UnlockThroughput)
	assert.Equal(t, d.Parallel, cfg.Parallel)
}

func TestParseConfig(t *testing.T) {
	yml := `
cipher: xchacha20-poly1305
kdf: pbkdf2
pbkdf2:
  iterations: 200000
  hash: sha512
size_scale: 64
split_large_payloads: true
min_unlock_duration: 1s
unlock_throughput: -1
parallel:
  enabled: false
log_level: debug
storage:
  backend: fs
  dir: /srv/vault
`
	fc, err := ParseConfig([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, "debug", fc.LogLevel)
	assert.Equal(t, "fs", fc.Storage.Backend)
	assert.Equal(t, "/srv/vault", fc.Storage.Dir)

	cfg, err := fc.Config()
	require.NoError(t, err)
	assert.Equal(t, CipherXChaCha20Poly1305, cfg.Cipher)
	assert.Equal(t, KDFPBKDF2, cfg.KDF)
	assert.Equal(t, PBKDF2Params{Iterations: 200000, HashFunc: SHA512}, cfg.PBKDF2)
	assert.Equal(t, ScaledDistribution(DefaultPaddingDistribution, 64), cfg.Padding)
	assert.Equal(t, ScaledDistribution(DefaultBlockDistribution, 64), cfg.BlockSizes)
	assert.True(t, cfg.SplitLargePayloads)
	assert.Equal(t, time.Second, cfg.MinUnlockDuration)
	assert.Equal(t, int64(-1), cfg.UnlockThroughput)
	assert.False(t, cfg.Parallel.Enabled)

	// Unset fields keep their defaults
	assert.Equal(t, DefaultConfig().Argon2, cfg.Argon2)
	assert.Equal(t, DefaultMaxPasswordLength, cfg.MaxPasswordLength)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"unknown field", "ciphers: aes-256-gcm\n"},
		{"bad cipher", "cipher: rot13\n"},
		{"bad kdf", "kdf: scrypt\n"},
		{"bad hash", "pbkdf2:\n  hash: md5\n"},
		{"bad duration", "min_unlock_duration: soon\n"},
		{"negative scale", "size_scale: -2\n"},
		{"zero argon2 lanes", "argon2:\n  parallelism: 0\n  memory_kib: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := ParseConfig([]byte(tt.yml))
			if err != nil {
				return
			}
			_, err = fc.Config()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	fc := DefaultFileConfig()
	fc.Cipher = "xchacha20-poly1305"
	fc.SizeScale = 8
	fc.Storage.Dir = "/data"

	out, err := fc.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "deniable.yaml")
	require.NoError(t, os.WriteFile(path, out, 0600))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, fc, loaded)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
