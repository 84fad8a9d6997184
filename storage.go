package deniable

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DeniableStorage combines any number of password-protected sessions into one
// addressing blob and one data blob. Without a password nothing in the blobs
// reveals how many sessions exist or which bytes belong to them.
//
// Operations on one instance are serialized. Several instances over the same
// adapter target need external mutual exclusion.
type DeniableStorage struct {
	mu          sync.Mutex
	adapter     StorageAdapter
	config      Config
	primitives  Primitives
	log         logrus.FieldLogger
	initialized bool

	// slowestUnlock is the longest unlock seen so far; later unlocks are
	// padded to at least this long
	slowestUnlock time.Duration
}

// New creates a storage facade over adapter. cfg may be nil for defaults.
func New(adapter StorageAdapter, cfg *Config) (*DeniableStorage, error) {
	if adapter == nil {
		return nil, ErrNilAdapter
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	config := *cfg
	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := config.Logger
	if log == nil {
		log = discardLogger()
	}

	return &DeniableStorage{
		adapter:    adapter,
		config:     config,
		primitives: NewPrimitivesFromConfig(&config),
		log:        log.WithField("component", "deniable"),
	}, nil
}

// Initialize makes sure both blobs exist, creating a random addressing blob
// and a padding-only data blob when they are missing. Existing blobs are
// never modified, so calling it again is harmless.
func (s *DeniableStorage) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.adapter.Initialize(ctx); err != nil {
		return NewIOError("initialize", "adapter", err)
	}

	_, err := s.adapter.DataBlobSize(ctx)
	switch {
	case errors.Is(err, ErrBlobNotFound):
		blob, err := Assemble(nil, s.config.Padding)
		if err != nil {
			return err
		}
		if err := s.adapter.WriteDataBlob(ctx, blob); err != nil {
			return NewIOError("write", "data blob", err)
		}
		s.log.WithField("size", len(blob)).Info("created data blob")
	case err != nil:
		return NewIOError("size", "data blob", err)
	}

	addressing, err := s.adapter.ReadAddressingBlob(ctx)
	switch {
	case errors.Is(err, ErrBlobNotFound):
		blob, err := NewAddressingBlob()
		if err != nil {
			return err
		}
		if err := s.adapter.WriteAddressingBlob(ctx, blob); err != nil {
			return NewIOError("write", "addressing blob", err)
		}
		s.log.Info("created addressing blob")
	case err != nil:
		return NewIOError("read", "addressing blob", err)
	default:
		if err := checkAddressingBlob(addressing); err != nil {
			return err
		}
	}

	s.initialized = true
	return nil
}

// Initialized reports whether Initialize has completed
func (s *DeniableStorage) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *DeniableStorage) requireInitialized(op string) error {
	if !s.initialized {
		return NewLifecycleError(op, ErrNotInitialized)
	}
	return nil
}

// loadBlobs reads both blobs from the adapter
func (s *DeniableStorage) loadBlobs(ctx context.Context) (addressing, data []byte, err error) {
	addressing, err = s.adapter.ReadAddressingBlob(ctx)
	if err != nil {
		return nil, nil, NewIOError("read", "addressing blob", err)
	}
	if err := checkAddressingBlob(addressing); err != nil {
		return nil, nil, err
	}

	data, err = s.adapter.ReadDataBlob(ctx)
	if err != nil {
		return nil, nil, NewIOError("read", "data blob", err)
	}
	return addressing, data, nil
}

// persist writes the data blob before the addressing blob. If the second
// write fails, the previous session addresses still point at blocks that
// exist, so nothing becomes unreachable.
func (s *DeniableStorage) persist(ctx context.Context, addressing, data []byte) error {
	if data != nil {
		if err := s.adapter.WriteDataBlob(ctx, data); err != nil {
			return NewIOError("write", "data blob", err)
		}
	}
	if err := s.adapter.WriteAddressingBlob(ctx, addressing); err != nil {
		return NewIOError("write", "addressing blob", err)
	}
	return nil
}

// sessionKey derives the key that protects a session's root block
func (s *DeniableStorage) sessionKey(password []byte, salt [SaltSize]byte) ([]byte, error) {
	key, err := s.primitives.DeriveKeyFromPassword(password, salt[:])
	if err != nil {
		return nil, NewEncryptionError("derive-key", err)
	}
	return key, nil
}

// appendPayload writes data as one or more blocks and returns the grown blob
// and a root block describing them
func (s *DeniableStorage) appendPayload(blob, data, sessionKey []byte) ([]byte, *RootBlock, error) {
	root := NewRootBlock()

	chunks, err := s.splitPayload(data)
	if err != nil {
		return nil, nil, err
	}

	logical := 0
	for _, chunk := range chunks {
		id, err := NewBlockID()
		if err != nil {
			return nil, nil, err
		}
		blockKey, err := DeriveBlockKey(s.primitives, sessionKey, id)
		if err != nil {
			return nil, nil, err
		}
		block, err := CreateBlock(s.primitives, chunk, blockKey)
		Wipe(blockKey)
		if err != nil {
			return nil, nil, err
		}

		var offset uint64
		blob, offset, err = AppendBlock(blob, block, s.config.Padding)
		if err != nil {
			return nil, nil, err
		}

		root.AddEntry(AllocationEntry{
			Offset:         offset,
			Length:         uint32(len(chunk)),
			LogicalAddress: uint32(logical),
			BlockSize:      block.Size,
			BlockID:        id,
		})
		logical += len(chunk)
	}
	return blob, root, nil
}

// splitPayload returns data as a single chunk, or as chunks sized by the
// block distribution when SplitLargePayloads is set
func (s *DeniableStorage) splitPayload(data []byte) ([][]byte, error) {
	if !s.config.SplitLargePayloads || len(data) == 0 {
		return [][]byte{data}, nil
	}

	var chunks [][]byte
	for len(data) > 0 {
		size, err := s.config.BlockSizes.Sample(rand.Reader)
		if err != nil {
			return nil, err
		}
		n := int(size)
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks, nil
}

// appendRoot encrypts root under the session key and appends it
func (s *DeniableStorage) appendRoot(blob []byte, root *RootBlock, sessionKey []byte) ([]byte, *Block, uint64, error) {
	block, err := EncryptRootBlock(s.primitives, root, sessionKey)
	if err != nil {
		return nil, nil, 0, err
	}
	blob, offset, err := AppendBlock(blob, block, s.config.Padding)
	if err != nil {
		return nil, nil, 0, err
	}
	return blob, block, offset, nil
}

func (s *DeniableStorage) validateInput(op string, password, data []byte) error {
	if err := s.requireInitialized(op); err != nil {
		return err
	}
	if err := ValidatePassword(password, s.config.MaxPasswordLength); err != nil {
		return err
	}
	if data != nil {
		return ValidateData(data, s.config.MaxDataSize)
	}
	return nil
}

// now returns the current time at the millisecond precision of the format
func now() time.Time {
	return time.Now().Truncate(time.Millisecond)
}

// CreateSession stores data as a new session reachable with password. A
// session already stored under the same password is superseded.
func (s *DeniableStorage) CreateSession(ctx context.Context, password, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data == nil {
		data = []byte{}
	}
	if err := s.validateInput("create", password, data); err != nil {
		return err
	}

	addressing, blob, err := s.loadBlobs(ctx)
	if err != nil {
		return err
	}

	slots, err := resolveSlots(s.primitives, password)
	if err != nil {
		return err
	}
	defer slots.wipe()

	var salt [SaltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := s.sessionKey(password, salt)
	if err != nil {
		return err
	}
	defer Wipe(key)

	blob, root, err := s.appendPayload(blob, data, key)
	if err != nil {
		return err
	}
	blob, rootBlock, rootOffset, err := s.appendRoot(blob, root, key)
	if err != nil {
		return err
	}

	t := now()
	addr := &SessionAddress{
		RootBlockOffset: rootOffset,
		RootBlockSize:   rootBlock.Size,
		Salt:            salt,
		CreatedAt:       t,
		UpdatedAt:       t,
	}
	if err := writeSlots(s.primitives, addressing, slots, addr); err != nil {
		return err
	}

	if err := s.persist(ctx, addressing, blob); err != nil {
		return err
	}
	s.log.WithField("op", "create").Debug("operation complete")
	return nil
}

// UnlockSession returns the session stored under password, or nil when the
// password opens nothing. Wrong passwords and missing sessions are not
// errors and take the same time to report as a successful unlock: every
// call is padded to unlockBudget.
//
// On success every slot of the password is rewritten under fresh nonces,
// repairing slots damaged since the last write.
func (s *DeniableStorage) UnlockSession(ctx context.Context, password []byte) (*SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateInput("unlock", password, nil); err != nil {
		return nil, err
	}

	size, err := s.adapter.DataBlobSize(ctx)
	if err != nil {
		return nil, NewIOError("size", "data blob", err)
	}

	result, err := WithMinimumDuration(ctx, s.unlockBudget(size), func() (*SessionData, error) {
		start := time.Now()
		session, err := s.unlock(ctx, password)
		if elapsed := time.Since(start); elapsed > s.slowestUnlock {
			s.slowestUnlock = elapsed
		}
		return session, err
	})
	s.log.WithField("op", "unlock").Debug("operation complete")
	return result, err
}

// unlockBudget is the wall-clock time every unlock is padded to. It covers
// decrypting the largest payload a data blob of dataBlobSize bytes could
// hold, whether or not the password opens anything.
func (s *DeniableStorage) unlockBudget(dataBlobSize int64) time.Duration {
	budget := s.config.MinUnlockDuration
	if s.config.UnlockThroughput > 0 {
		payload := dataBlobSize
		if limit := int64(s.config.MaxDataSize); payload > limit {
			payload = limit
		}
		budget += time.Duration(float64(payload) / float64(s.config.UnlockThroughput) * float64(time.Second))
	}
	if s.slowestUnlock > budget {
		budget = s.slowestUnlock
	}
	return budget
}

func (s *DeniableStorage) unlock(ctx context.Context, password []byte) (*SessionData, error) {
	addressing, blob, err := s.loadBlobs(ctx)
	if err != nil {
		return nil, err
	}

	slots, err := resolveSlots(s.primitives, password)
	if err != nil {
		return nil, err
	}
	defer slots.wipe()

	addr, err := readSlots(s.primitives, addressing, slots)
	if err != nil {
		return nil, err
	}

	// The session key is derived even without an address so the expensive
	// KDF runs on every path.
	var salt [SaltSize]byte
	if addr != nil {
		salt = addr.Salt
	} else if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := s.sessionKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)

	if addr == nil {
		return nil, nil
	}

	root := DecryptRootBlock(s.primitives, blob, addr.RootBlockOffset, key)
	if root == nil {
		return nil, nil
	}
	data := reconstructSession(s.primitives, blob, root, key, s.config.Parallel)
	if data == nil {
		return nil, nil
	}

	if err := writeSlots(s.primitives, addressing, slots, addr); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, addressing, nil); err != nil {
		return nil, err
	}

	return &SessionData{
		Data:      data,
		CreatedAt: addr.CreatedAt,
		UpdatedAt: addr.UpdatedAt,
	}, nil
}

// openSession resolves password to its address, session key and root block.
// Any failure along the way is reported as ErrSessionNotFound.
func (s *DeniableStorage) openSession(addressing, blob []byte, slots *slotSet, password []byte) (*SessionAddress, []byte, *RootBlock, error) {
	addr, err := readSlots(s.primitives, addressing, slots)
	if err != nil {
		return nil, nil, nil, err
	}
	if addr == nil {
		return nil, nil, nil, ErrSessionNotFound
	}

	key, err := s.sessionKey(password, addr.Salt)
	if err != nil {
		return nil, nil, nil, err
	}

	root := DecryptRootBlock(s.primitives, blob, addr.RootBlockOffset, key)
	if root == nil {
		Wipe(key)
		return nil, nil, nil, ErrSessionNotFound
	}
	return addr, key, root, nil
}

// UpdateSession replaces the payload of the session stored under password.
// The previous blocks stay in the data blob, where they pass for padding.
func (s *DeniableStorage) UpdateSession(ctx context.Context, password, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data == nil {
		data = []byte{}
	}
	if err := s.validateInput("update", password, data); err != nil {
		return err
	}

	addressing, blob, err := s.loadBlobs(ctx)
	if err != nil {
		return err
	}

	slots, err := resolveSlots(s.primitives, password)
	if err != nil {
		return err
	}
	defer slots.wipe()

	addr, key, _, err := s.openSession(addressing, blob, slots, password)
	if err != nil {
		return err
	}
	defer Wipe(key)

	blob, root, err := s.appendPayload(blob, data, key)
	if err != nil {
		return err
	}
	blob, rootBlock, rootOffset, err := s.appendRoot(blob, root, key)
	if err != nil {
		return err
	}

	updated := now()
	if !updated.After(addr.UpdatedAt) {
		updated = addr.UpdatedAt.Add(time.Millisecond)
	}
	next := &SessionAddress{
		RootBlockOffset: rootOffset,
		RootBlockSize:   rootBlock.Size,
		Salt:            addr.Salt,
		CreatedAt:       addr.CreatedAt,
		UpdatedAt:       updated,
	}
	if err := writeSlots(s.primitives, addressing, slots, next); err != nil {
		return err
	}

	if err := s.persist(ctx, addressing, blob); err != nil {
		return err
	}
	s.log.WithField("op", "update").Debug("operation complete")
	return nil
}

// shredSession overwrites the session's live blocks and root block with
// random bytes in place
func shredSession(blob []byte, addr *SessionAddress, root *RootBlock) error {
	for _, e := range root.Entries {
		if err := OverwriteRange(blob, e.Offset, uint64(e.BlockSize)); err != nil {
			return err
		}
	}
	return OverwriteRange(blob, addr.RootBlockOffset, uint64(addr.RootBlockSize))
}

// DeleteSession destroys the session stored under password: its blocks, its
// root block and its addressing slots are replaced with random bytes.
func (s *DeniableStorage) DeleteSession(ctx context.Context, password []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateInput("delete", password, nil); err != nil {
		return err
	}

	addressing, blob, err := s.loadBlobs(ctx)
	if err != nil {
		return err
	}

	slots, err := resolveSlots(s.primitives, password)
	if err != nil {
		return err
	}
	defer slots.wipe()

	addr, key, root, err := s.openSession(addressing, blob, slots, password)
	if err != nil {
		return err
	}
	Wipe(key)

	if err := shredSession(blob, addr, root); err != nil {
		return err
	}
	if err := shredSlots(addressing, slots); err != nil {
		return err
	}

	if err := s.persist(ctx, addressing, blob); err != nil {
		return err
	}
	s.log.WithField("op", "delete").Debug("operation complete")
	return nil
}

// GetStats reports blob sizes and the addressing geometry. It fails with a
// lifecycle error before Initialize.
func (s *DeniableStorage) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized("stats"); err != nil {
		return nil, err
	}
	stats := &Stats{
		Initialized: true,
		TotalSlots:  TotalSlots,
		SlotSize:    SlotSize,
	}

	addressing, err := s.adapter.ReadAddressingBlob(ctx)
	if err != nil {
		return nil, NewIOError("read", "addressing blob", err)
	}
	stats.AddressingBlobSize = int64(len(addressing))

	size, err := s.adapter.DataBlobSize(ctx)
	if err != nil {
		return nil, NewIOError("size", "data blob", err)
	}
	stats.DataBlobSize = size
	return stats, nil
}

// SecureWipeAll destroys everything persisted by the adapter. The storage
// returns to the uninitialized state.
func (s *DeniableStorage) SecureWipeAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized("wipe"); err != nil {
		return err
	}
	if err := s.adapter.SecureWipe(ctx); err != nil {
		return NewIOError("wipe", "adapter", err)
	}
	s.initialized = false
	s.log.Info("storage wiped")
	return nil
}
