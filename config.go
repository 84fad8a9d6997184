package deniable

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// FileConfig is the YAML form of Config, as read by LoadConfig:
//
//	cipher: aes-256-gcm
//	kdf: argon2id
//	argon2:
//	  memory_kib: 65536
//	  iterations: 3
//	  parallelism: 4
//	size_scale: 1
//	min_unlock_duration: 250ms
//	unlock_throughput: 134217728
//	storage:
//	  backend: badger
//	  dir: ./vault
type FileConfig struct {
	Cipher string `yaml:"cipher"`
	KDF    string `yaml:"kdf"`

	Argon2 struct {
		MemoryKiB   uint32 `yaml:"memory_kib"`
		Iterations  uint32 `yaml:"iterations"`
		Parallelism uint8  `yaml:"parallelism"`
	} `yaml:"argon2"`

	PBKDF2 struct {
		Iterations int    `yaml:"iterations"`
		Hash       string `yaml:"hash"`
	} `yaml:"pbkdf2"`

	// SizeScale divides every block and padding size. 1 keeps the defaults.
	SizeScale          int64 `yaml:"size_scale"`
	SplitLargePayloads bool  `yaml:"split_large_payloads"`

	MaxPasswordLength int    `yaml:"max_password_length"`
	MaxDataSize       int    `yaml:"max_data_size"`
	MinUnlockDuration string `yaml:"min_unlock_duration"`
	UnlockThroughput  int64  `yaml:"unlock_throughput"`

	Parallel struct {
		Enabled    bool `yaml:"enabled"`
		MaxWorkers int  `yaml:"max_workers"`
		MinEntries int  `yaml:"min_entries"`
	} `yaml:"parallel"`

	LogLevel string `yaml:"log_level"`

	Storage struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
	} `yaml:"storage"`
}

// DefaultFileConfig returns the file form of DefaultConfig
func DefaultFileConfig() *FileConfig {
	d := DefaultConfig()

	fc := &FileConfig{
		Cipher:            d.Cipher.String(),
		KDF:               "argon2id",
		SizeScale:         1,
		MaxPasswordLength: d.MaxPasswordLength,
		MaxDataSize:       d.MaxDataSize,
		MinUnlockDuration: d.MinUnlockDuration.String(),
		UnlockThroughput:  d.UnlockThroughput,
		LogLevel:          "info",
	}
	fc.Argon2.MemoryKiB = d.Argon2.Memory
	fc.Argon2.Iterations = d.Argon2.Iterations
	fc.Argon2.Parallelism = d.Argon2.Parallelism
	fc.PBKDF2.Iterations = d.PBKDF2.Iterations
	fc.PBKDF2.Hash = "sha256"
	fc.Parallel.Enabled = d.Parallel.Enabled
	fc.Parallel.MaxWorkers = d.Parallel.MaxWorkers
	fc.Parallel.MinEntries = d.Parallel.MinEntriesForParallel
	fc.Storage.Backend = "badger"
	fc.Storage.Dir = "./deniable-data"
	return fc
}

// ParseConfig parses YAML on top of DefaultFileConfig
func ParseConfig(data []byte) (*FileConfig, error) {
	fc := DefaultFileConfig()
	if err := yaml.UnmarshalStrict(data, fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return fc, nil
}

// LoadConfig reads and parses a YAML config file
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// Marshal returns the YAML form of fc
func (fc *FileConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(fc)
}

// Config converts fc into a validated Config
func (fc *FileConfig) Config() (*Config, error) {
	cfg := DefaultConfig()

	suite, err := ParseCipherSuite(strings.ToLower(fc.Cipher))
	if err != nil {
		return nil, NewValidationError("cipher", fc.Cipher, "unsupported cipher suite")
	}
	cfg.Cipher = suite

	switch strings.ToLower(fc.KDF) {
	case "", "argon2id":
		cfg.KDF = KDFArgon2id
	case "pbkdf2":
		cfg.KDF = KDFPBKDF2
	default:
		return nil, NewValidationError("kdf", fc.KDF, "unsupported key derivation function")
	}

	cfg.Argon2 = Argon2idParams{
		Memory:      fc.Argon2.MemoryKiB,
		Iterations:  fc.Argon2.Iterations,
		Parallelism: fc.Argon2.Parallelism,
	}

	cfg.PBKDF2.Iterations = fc.PBKDF2.Iterations
	switch strings.ToLower(fc.PBKDF2.Hash) {
	case "", "sha256":
		cfg.PBKDF2.HashFunc = SHA256
	case "sha512":
		cfg.PBKDF2.HashFunc = SHA512
	default:
		return nil, NewValidationError("pbkdf2.hash", fc.PBKDF2.Hash, "unsupported hash function")
	}

	if fc.SizeScale < 0 {
		return nil, NewValidationError("size_scale", fc.SizeScale, "cannot be negative")
	}
	cfg.BlockSizes = ScaledDistribution(DefaultBlockDistribution, fc.SizeScale)
	cfg.Padding = ScaledDistribution(DefaultPaddingDistribution, fc.SizeScale)
	cfg.SplitLargePayloads = fc.SplitLargePayloads

	cfg.MaxPasswordLength = fc.MaxPasswordLength
	cfg.MaxDataSize = fc.MaxDataSize

	if fc.MinUnlockDuration != "" {
		d, err := time.ParseDuration(fc.MinUnlockDuration)
		if err != nil {
			return nil, NewValidationError("min_unlock_duration", fc.MinUnlockDuration, err.Error())
		}
		cfg.MinUnlockDuration = d
	}

	cfg.UnlockThroughput = fc.UnlockThroughput

	cfg.Parallel = ParallelConfig{
		Enabled:               fc.Parallel.Enabled,
		MaxWorkers:            fc.Parallel.MaxWorkers,
		MinEntriesForParallel: fc.Parallel.MinEntries,
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
