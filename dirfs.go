package deniable

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/absfs/absfs"
)

// DirFS is an absfs.FileSystem rooted at a directory of the host
// filesystem. Every name is resolved below the root; ".." cannot escape it.
type DirFS struct {
	root string
	cwd  string
}

var _ absfs.FileSystem = (*DirFS)(nil)

// NewDirFS returns a filesystem rooted at root, creating the directory
func NewDirFS(root string) (*DirFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, err
	}
	return &DirFS{root: abs, cwd: "/"}, nil
}

// resolve maps name onto the host path below root
func (fs *DirFS) resolve(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = path.Join(fs.cwd, name)
	}
	return filepath.Join(fs.root, filepath.FromSlash(path.Clean("/"+name)))
}

func (fs *DirFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	f, err := os.OpenFile(fs.resolve(name), flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (fs *DirFS) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(fs.resolve(name), perm)
}

func (fs *DirFS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(fs.resolve(name), perm)
}

func (fs *DirFS) Remove(name string) error {
	return os.Remove(fs.resolve(name))
}

func (fs *DirFS) RemoveAll(path string) error {
	return os.RemoveAll(fs.resolve(path))
}

func (fs *DirFS) Rename(oldpath, newpath string) error {
	return os.Rename(fs.resolve(oldpath), fs.resolve(newpath))
}

func (fs *DirFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(fs.resolve(name))
}

func (fs *DirFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(fs.resolve(name), mode)
}

func (fs *DirFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(fs.resolve(name), atime, mtime)
}

func (fs *DirFS) Chown(name string, uid, gid int) error {
	return os.Chown(fs.resolve(name), uid, gid)
}

func (fs *DirFS) Separator() uint8 {
	return '/'
}

func (fs *DirFS) ListSeparator() uint8 {
	return os.PathListSeparator
}

// Chdir changes the directory relative names are resolved against
func (fs *DirFS) Chdir(dir string) error {
	info, err := os.Stat(fs.resolve(dir))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "chdir", Path: dir, Err: os.ErrInvalid}
	}
	rel, err := filepath.Rel(fs.root, fs.resolve(dir))
	if err != nil {
		return err
	}
	fs.cwd = "/" + filepath.ToSlash(rel)
	if rel == "." {
		fs.cwd = "/"
	}
	return nil
}

func (fs *DirFS) Getwd() (string, error) {
	return fs.cwd, nil
}

func (fs *DirFS) TempDir() string {
	return "/tmp"
}

func (fs *DirFS) Open(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

func (fs *DirFS) Create(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
}

func (fs *DirFS) Truncate(name string, size int64) error {
	return os.Truncate(fs.resolve(name), size)
}
