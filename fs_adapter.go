package deniable

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

const (
	// AddressingBlobFile is the file name of the addressing blob
	AddressingBlobFile = "addressing.blob"

	// DataBlobFile is the file name of the data blob
	DataBlobFile = "data.blob"

	wipeBufferSize = 64 * KiB
)

// FSAdapter stores the two blobs as files in one directory of an
// absfs.FileSystem. Writes go to a temporary file that is synced and then
// renamed over the blob, so a reader never sees a partial blob.
type FSAdapter struct {
	mu  sync.Mutex
	fs  absfs.FileSystem
	dir string
}

// NewFSAdapter creates an adapter storing blobs under dir on fs
func NewFSAdapter(fs absfs.FileSystem, dir string) (*FSAdapter, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem cannot be nil: %w", ErrNilAdapter)
	}
	if dir == "" {
		dir = "/"
	}
	return &FSAdapter{fs: fs, dir: dir}, nil
}

func (a *FSAdapter) path(name string) string {
	return path.Join(a.dir, name)
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, os.ErrNotExist)
}

// Initialize creates the blob directory
func (a *FSAdapter) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.fs.MkdirAll(a.dir, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", a.dir, err)
	}
	return nil
}

func (a *FSAdapter) readFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := a.fs.Open(a.path(name))
	if err != nil {
		if isNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (a *FSAdapter) writeFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	tmp := a.path("." + name + "." + uuid.NewString() + ".tmp")
	f, err := a.fs.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		a.fs.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		a.fs.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		a.fs.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := a.rename(tmp, a.path(name)); err != nil {
		a.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// rename moves tmp over dst. Filesystems that refuse to rename over an
// existing file get dst removed first, which loses atomicity.
func (a *FSAdapter) rename(tmp, dst string) error {
	err := a.fs.Rename(tmp, dst)
	if err == nil {
		return nil
	}
	if _, statErr := a.fs.Stat(dst); statErr != nil {
		return err
	}
	if err := a.fs.Remove(dst); err != nil {
		return err
	}
	return a.fs.Rename(tmp, dst)
}

// ReadAddressingBlob reads the addressing blob file
func (a *FSAdapter) ReadAddressingBlob(ctx context.Context) ([]byte, error) {
	return a.readFile(ctx, AddressingBlobFile)
}

// WriteAddressingBlob replaces the addressing blob file
func (a *FSAdapter) WriteAddressingBlob(ctx context.Context, blob []byte) error {
	return a.writeFile(ctx, AddressingBlobFile, blob)
}

// ReadDataBlob reads the data blob file
func (a *FSAdapter) ReadDataBlob(ctx context.Context) ([]byte, error) {
	return a.readFile(ctx, DataBlobFile)
}

// WriteDataBlob replaces the data blob file
func (a *FSAdapter) WriteDataBlob(ctx context.Context, blob []byte) error {
	return a.writeFile(ctx, DataBlobFile, blob)
}

// DataBlobSize returns the size of the data blob file
func (a *FSAdapter) DataBlobSize(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	info, err := a.fs.Stat(a.path(DataBlobFile))
	if err != nil {
		if isNotExist(err) {
			return 0, ErrBlobNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

// SecureWipe overwrites both blob files with random bytes, syncs them and
// removes them. On journaling or copy-on-write filesystems old copies of
// the data may survive the overwrite.
func (a *FSAdapter) SecureWipe(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, name := range []string{AddressingBlobFile, DataBlobFile} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.wipeFile(a.path(name)); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", name, err)
		}
	}
	return nil
}

func (a *FSAdapter) wipeFile(name string) error {
	info, err := a.fs.Stat(name)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}

	f, err := a.fs.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return err
	}

	buf := make([]byte, wipeBufferSize)
	for remaining := info.Size(); remaining > 0; {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := rand.Read(buf[:n]); err != nil {
			f.Close()
			return err
		}
		if _, err := f.Write(buf[:n]); err != nil {
			f.Close()
			return err
		}
		remaining -= n
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return a.fs.Remove(name)
}
