package vfs

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// AferoFile is a File backed by an afero filesystem. The underlying handle is
// opened on first read and released by Close.
type AferoFile struct {
	fs   afero.Fs
	path string
	size int64

	mu sync.Mutex
	f  afero.File
}

// OpenFile stats path on fs and returns a lazily opened handle.
func OpenFile(fs afero.Fs, path string) (*AferoFile, error) {
	st, err := fs.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat failed")
	}
	if st.IsDir() {
		return nil, errors.Errorf("%s is a directory", path)
	}
	return &AferoFile{fs: fs, path: filepath.Clean(path), size: st.Size()}, nil
}

// OpenHostFile opens a file on the host filesystem.
func OpenHostFile(path string) (*AferoFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return OpenFile(afero.NewOsFs(), abs)
}

func (a *AferoFile) Name() string     { return filepath.Base(a.path) }
func (a *AferoFile) Size() int64      { return a.size }
func (a *AferoFile) FullPath() string { return filepath.ToSlash(a.path) }

func (a *AferoFile) ContainingDir() Dir {
	return &AferoDir{fs: a.fs, path: filepath.Dir(a.path)}
}

func (a *AferoFile) ReadAt(p []byte, off int64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		f, err := a.fs.Open(a.path)
		if err != nil {
			return 0, errors.Wrap(err, "open failed")
		}
		a.f = f
	}
	return a.f.ReadAt(p, off)
}

func (a *AferoFile) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

// AferoDir is a Dir backed by an afero filesystem.
type AferoDir struct {
	fs   afero.Fs
	path string
}

func NewAferoDir(fs afero.Fs, path string) *AferoDir {
	return &AferoDir{fs: fs, path: filepath.Clean(path)}
}

func (a *AferoDir) Name() string     { return filepath.Base(a.path) }
func (a *AferoDir) FullPath() string { return filepath.ToSlash(a.path) }

func (a *AferoDir) Parent() Dir {
	parent := filepath.Dir(a.path)
	if parent == a.path {
		return nil
	}
	return &AferoDir{fs: a.fs, path: parent}
}

func (a *AferoDir) File(name string) File {
	f, err := OpenFile(a.fs, filepath.Join(a.path, name))
	if err != nil {
		return nil
	}
	return f
}

func (a *AferoDir) Subdir(name string) Dir {
	p := filepath.Join(a.path, name)
	if st, err := a.fs.Stat(p); err != nil || !st.IsDir() {
		return nil
	}
	return &AferoDir{fs: a.fs, path: p}
}

func (a *AferoDir) entries() []os.FileInfo {
	infos, err := afero.ReadDir(a.fs, a.path)
	if err != nil {
		return nil
	}
	return infos
}

func (a *AferoDir) Files() []File {
	var files []File
	for _, info := range a.entries() {
		if info.Mode().IsRegular() {
			files = append(files, &AferoFile{fs: a.fs, path: filepath.Join(a.path, info.Name()), size: info.Size()})
		}
	}
	return files
}

func (a *AferoDir) Subdirs() []Dir {
	var dirs []Dir
	for _, info := range a.entries() {
		if info.IsDir() {
			dirs = append(dirs, &AferoDir{fs: a.fs, path: filepath.Join(a.path, info.Name())})
		}
	}
	return dirs
}
