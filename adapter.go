package deniable

import (
	"context"
	"sync"
)

// StorageAdapter persists the two blobs of one storage target. Adapters do
// not interpret the bytes. A target shared by several DeniableStorage
// instances needs external mutual exclusion.
type StorageAdapter interface {
	// Initialize prepares the persistence target (directories, handles)
	Initialize(ctx context.Context) error

	// ReadAddressingBlob returns ErrBlobNotFound if the blob was never written
	ReadAddressingBlob(ctx context.Context) ([]byte, error)

	WriteAddressingBlob(ctx context.Context, blob []byte) error

	// ReadDataBlob returns ErrBlobNotFound if the blob was never written
	ReadDataBlob(ctx context.Context) ([]byte, error)

	WriteDataBlob(ctx context.Context, blob []byte) error

	// DataBlobSize returns ErrBlobNotFound if the blob was never written
	DataBlobSize(ctx context.Context) (int64, error)

	// SecureWipe destroys all persisted state of the target
	SecureWipe(ctx context.Context) error
}

// MemoryAdapter keeps both blobs in process memory
type MemoryAdapter struct {
	mu         sync.RWMutex
	addressing []byte
	data       []byte
}

// NewMemoryAdapter creates an empty in-memory adapter
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

// Initialize is a no-op for the in-memory adapter
func (m *MemoryAdapter) Initialize(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryAdapter) read(ctx context.Context, blob *[]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if *blob == nil {
		return nil, ErrBlobNotFound
	}
	out := make([]byte, len(*blob))
	copy(out, *blob)
	return out, nil
}

func (m *MemoryAdapter) write(ctx context.Context, dst *[]byte, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)

	m.mu.Lock()
	defer m.mu.Unlock()
	Wipe(*dst)
	*dst = cp
	return nil
}

// ReadAddressingBlob returns a copy of the addressing blob
func (m *MemoryAdapter) ReadAddressingBlob(ctx context.Context) ([]byte, error) {
	return m.read(ctx, &m.addressing)
}

// WriteAddressingBlob stores a copy of blob
func (m *MemoryAdapter) WriteAddressingBlob(ctx context.Context, blob []byte) error {
	return m.write(ctx, &m.addressing, blob)
}

// ReadDataBlob returns a copy of the data blob
func (m *MemoryAdapter) ReadDataBlob(ctx context.Context) ([]byte, error) {
	return m.read(ctx, &m.data)
}

// WriteDataBlob stores a copy of blob
func (m *MemoryAdapter) WriteDataBlob(ctx context.Context, blob []byte) error {
	return m.write(ctx, &m.data, blob)
}

// DataBlobSize returns the length of the data blob
func (m *MemoryAdapter) DataBlobSize(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return 0, ErrBlobNotFound
	}
	return int64(len(m.data)), nil
}

// SecureWipe wipes and forgets both blobs
func (m *MemoryAdapter) SecureWipe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	Wipe(m.addressing)
	Wipe(m.data)
	m.addressing = nil
	m.data = nil
	return nil
}
