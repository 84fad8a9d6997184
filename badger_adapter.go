package deniable

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Badger key layout, per blob:
//
//	<prefix>:<blob>:len            uint64 BE, blob length
//	<prefix>:<blob>:chunk:<index>  up to badgerChunkSize bytes
//
// The length record is written after the chunks, so a reader never sees a
// length that covers chunks not yet written.
const (
	badgerChunkSize = 1 * MiB

	badgerAddressingBlob = "addressing"
	badgerDataBlob       = "data"
)

// BadgerAdapter stores the two blobs in a BadgerDB key-value store
type BadgerAdapter struct {
	db     *badger.DB
	prefix string
	owned  bool
}

// NewBadgerAdapter stores blobs in db under keys starting with prefix. The
// caller keeps ownership of db.
func NewBadgerAdapter(db *badger.DB, prefix string) (*BadgerAdapter, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db cannot be nil: %w", ErrNilAdapter)
	}
	if prefix == "" {
		prefix = "deniable"
	}
	return &BadgerAdapter{db: db, prefix: prefix}, nil
}

// OpenBadgerAdapter opens a BadgerDB at dir, or an in-memory one when dir is
// empty, and returns an adapter that closes it on Close.
func OpenBadgerAdapter(dir string, log logrus.FieldLogger) (*BadgerAdapter, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if log != nil {
		opts = opts.WithLogger(log.WithField("component", "badger"))
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	a, err := NewBadgerAdapter(db, "")
	if err != nil {
		db.Close()
		return nil, err
	}
	a.owned = true
	return a, nil
}

// Close closes the database if the adapter opened it
func (a *BadgerAdapter) Close() error {
	if !a.owned {
		return nil
	}
	return a.db.Close()
}

func (a *BadgerAdapter) lengthKey(blob string) []byte {
	return []byte(a.prefix + ":" + blob + ":len")
}

func (a *BadgerAdapter) chunkKey(blob string, index int) []byte {
	return []byte(fmt.Sprintf("%s:%s:chunk:%08d", a.prefix, blob, index))
}

func chunkCount(length uint64) int {
	return int((length + badgerChunkSize - 1) / badgerChunkSize)
}

// Initialize checks that the database is open
func (a *BadgerAdapter) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

func (a *BadgerAdapter) blobLength(txn *badger.Txn, blob string) (uint64, error) {
	item, err := txn.Get(a.lengthKey(blob))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrBlobNotFound
	}
	if err != nil {
		return 0, err
	}

	var length uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return NewCorruptionError(blob+" blob", "malformed length record")
		}
		length = binary.BigEndian.Uint64(val)
		return nil
	})
	return length, err
}

func (a *BadgerAdapter) readBlob(ctx context.Context, blob string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := a.db.View(func(txn *badger.Txn) error {
		length, err := a.blobLength(txn, blob)
		if err != nil {
			return err
		}

		out = make([]byte, 0, length)
		for i := 0; i < chunkCount(length); i++ {
			item, err := txn.Get(a.chunkKey(blob, i))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			chunk, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, chunk...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *BadgerAdapter) writeBlob(ctx context.Context, blob string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var previous uint64
	err := a.db.View(func(txn *badger.Txn) error {
		length, err := a.blobLength(txn, blob)
		if errors.Is(err, ErrBlobNotFound) {
			return nil
		}
		previous = length
		return err
	})
	if err != nil {
		return err
	}

	wb := a.db.NewWriteBatch()
	defer wb.Cancel()

	n := chunkCount(uint64(len(data)))
	for i := 0; i < n; i++ {
		start := i * badgerChunkSize
		end := start + badgerChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := make([]byte, end-start)
		copy(chunk, data[start:end])
		if err := wb.Set(a.chunkKey(blob, i), chunk); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", i, err)
		}
	}
	for i := n; i < chunkCount(previous); i++ {
		if err := wb.Delete(a.chunkKey(blob, i)); err != nil {
			return fmt.Errorf("failed to delete chunk %d: %w", i, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s blob: %w", blob, err)
	}

	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(a.lengthKey(blob), length[:])
	})
}

// ReadAddressingBlob reassembles the addressing blob from its chunks
func (a *BadgerAdapter) ReadAddressingBlob(ctx context.Context) ([]byte, error) {
	return a.readBlob(ctx, badgerAddressingBlob)
}

// WriteAddressingBlob stores the addressing blob
func (a *BadgerAdapter) WriteAddressingBlob(ctx context.Context, blob []byte) error {
	return a.writeBlob(ctx, badgerAddressingBlob, blob)
}

// ReadDataBlob reassembles the data blob from its chunks
func (a *BadgerAdapter) ReadDataBlob(ctx context.Context) ([]byte, error) {
	return a.readBlob(ctx, badgerDataBlob)
}

// WriteDataBlob stores the data blob
func (a *BadgerAdapter) WriteDataBlob(ctx context.Context, blob []byte) error {
	return a.writeBlob(ctx, badgerDataBlob, blob)
}

// DataBlobSize reads the length record of the data blob
func (a *BadgerAdapter) DataBlobSize(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size, err := a.sizeOf(badgerDataBlob)
	return int64(size), err
}

// SecureWipe overwrites every chunk with random bytes and then deletes the
// blob keys. Badger may keep older versions in its value log until
// compaction.
func (a *BadgerAdapter) SecureWipe(ctx context.Context) error {
	for _, blob := range []string{badgerAddressingBlob, badgerDataBlob} {
		if err := ctx.Err(); err != nil {
			return err
		}
		size, err := a.sizeOf(blob)
		if errors.Is(err, ErrBlobNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		noise, err := randomBytes(int(size))
		if err != nil {
			return err
		}
		if err := a.writeBlob(ctx, blob, noise); err != nil {
			return err
		}
		if err := a.deleteBlob(blob, size); err != nil {
			return err
		}
	}
	return nil
}

// deleteBlob removes the length record first, then the chunks
func (a *BadgerAdapter) deleteBlob(blob string, size uint64) error {
	if err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(a.lengthKey(blob))
	}); err != nil {
		return fmt.Errorf("failed to delete %s blob: %w", blob, err)
	}

	wb := a.db.NewWriteBatch()
	defer wb.Cancel()
	for i := 0; i < chunkCount(size); i++ {
		if err := wb.Delete(a.chunkKey(blob, i)); err != nil {
			return fmt.Errorf("failed to delete chunk %d: %w", i, err)
		}
	}
	return wb.Flush()
}

func (a *BadgerAdapter) sizeOf(blob string) (uint64, error) {
	var size uint64
	err := a.db.View(func(txn *badger.Txn) error {
		length, err := a.blobLength(txn, blob)
		size = length
		return err
	})
	return size, err
}
