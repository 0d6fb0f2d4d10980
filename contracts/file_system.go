package contracts

import (
	"io"
	"os"
	"time"
)

type PathLister interface {
	Listing() ([]FileInfo, error)
}

type FileOpener interface {
	Open(path string) (io.ReadCloser, error)
}

type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

type FileChecker interface {
	Stat(path string) (FileInfo, error)
}

type Deleter interface {
	Remove(path string) error
}

type RootPath interface {
	RootPath() string
}

type TempFile interface {
	io.WriteCloser
	Name() string
}

// FileSystem is everything placement needs. Stat reports a missing path with
// an error satisfying errors.Is(err, os.ErrNotExist).
type FileSystem interface {
	FileChecker
	FileOpener
	Deleter
	Mkdir(path string, perm os.FileMode) error
	CreateTemp(dir, pattern string) (TempFile, error)
	Rename(source, target string) error
	Link(source, target string) error
	Chmod(path string, mode os.FileMode) error
	Available(path string) (uint64, error)
}

type FileInfo interface {
	Path() string
	Size() int64
	ModTime() time.Time
	Mode() os.FileMode
}

type Environment interface {
	LookupEnv(key string) (value string, set bool)
}

func IsExecutable(mode os.FileMode) bool {
	return mode.Perm()&0111 > 0
}
