package deniable

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemFSAdapter(t *testing.T) StorageAdapter {
	t.Helper()
	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("failed to create memfs: %v", err)
	}
	a, err := NewFSAdapter(fs, "/vault")
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	return a
}

func newDirFSAdapter(t *testing.T) StorageAdapter {
	t.Helper()
	fs, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create dirfs: %v", err)
	}
	a, err := NewFSAdapter(fs, "/vault")
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	return a
}

func TestFSAdapterMemFS(t *testing.T) {
	testAdapterContract(t, newMemFSAdapter)
}

func TestFSAdapterDirFS(t *testing.T) {
	testAdapterContract(t, newDirFSAdapter)
}

func TestNewFSAdapterNilFilesystem(t *testing.T) {
	_, err := NewFSAdapter(nil, "/")
	assert.ErrorIs(t, err, ErrNilAdapter)
}

func TestFSAdapterLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewDirFS(root)
	require.NoError(t, err)
	a, err := NewFSAdapter(fs, "/vault")
	require.NoError(t, err)

	s := setupTestStorage(t, a, nil)
	require.NoError(t, s.CreateSession(ctx, []byte("files"), []byte("on disk")))
	require.NoError(t, s.UpdateSession(ctx, []byte("files"), []byte("on disk, again")))

	entries, err := os.ReadDir(filepath.Join(root, "vault"))
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
	assert.ElementsMatch(t, []string{AddressingBlobFile, DataBlobFile}, names)

	info, err := os.Stat(filepath.Join(root, "vault", AddressingBlobFile))
	require.NoError(t, err)
	assert.Equal(t, int64(AddressingBlobSize), info.Size())
}

func TestFSAdapterSecureWipeRemovesFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewDirFS(root)
	require.NoError(t, err)
	a, err := NewFSAdapter(fs, "/")
	require.NoError(t, err)

	s := setupTestStorage(t, a, nil)
	require.NoError(t, s.SecureWipeAll(ctx))

	for _, name := range []string{AddressingBlobFile, DataBlobFile} {
		_, err := os.Stat(filepath.Join(root, name))
		assert.True(t, os.IsNotExist(err), name)
	}
}

func TestDirFSConfinesPaths(t *testing.T) {
	root := t.TempDir()
	fs, err := NewDirFS(root)
	require.NoError(t, err)

	var _ absfs.FileSystem = fs

	f, err := fs.Create("/../../escape.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)

	require.NoError(t, fs.MkdirAll("/a/b", 0700))
	require.NoError(t, fs.Chdir("/a"))
	wd, err := fs.Getwd()
	require.NoError(t, err)
	assert.Equal(t, "/a", wd)

	f, err = fs.Create("b/relative.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = os.Stat(filepath.Join(root, "a", "b", "relative.txt"))
	assert.NoError(t, err)
}
