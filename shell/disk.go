package shell

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/smarty/prebuilt/contracts"
)

type DiskFileSystem struct{ root string }

func NewDiskFileSystem(root string) *DiskFileSystem {
	return &DiskFileSystem{root: filepath.Clean(root)}
}

func (this *DiskFileSystem) RootPath() string {
	return this.root
}

func (this *DiskFileSystem) Listing() (listing []contracts.FileInfo, err error) {
	err = filepath.WalkDir(this.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		listing = append(listing, newFileInfo(path, info))
		return nil
	})
	return listing, err
}

func (this *DiskFileSystem) Stat(path string) (contracts.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return newFileInfo(path, info), nil
}

func (this *DiskFileSystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (this *DiskFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (this *DiskFileSystem) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

func (this *DiskFileSystem) CreateTemp(dir, pattern string) (contracts.TempFile, error) {
	return os.CreateTemp(dir, pattern)
}

func (this *DiskFileSystem) Rename(source, target string) error {
	return os.Rename(source, target)
}

func (this *DiskFileSystem) Link(source, target string) error {
	return os.Link(source, target)
}

func (this *DiskFileSystem) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

func (this *DiskFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// Available reports the free bytes on the volume holding path. A path that
// does not exist yet is measured at its nearest existing ancestor.
func (this *DiskFileSystem) Available(path string) (uint64, error) {
	for {
		usage, err := disk.Usage(path)
		if err == nil {
			return usage.Free, nil
		}
		parent := filepath.Dir(path)
		if parent == path {
			return 0, err
		}
		path = parent
	}
}

////////////////////////////////////////

type FileInfo struct {
	path string
	size int64
	mod  time.Time
	mode os.FileMode
}

func newFileInfo(path string, info os.FileInfo) FileInfo {
	return FileInfo{path: path, size: info.Size(), mod: info.ModTime(), mode: info.Mode()}
}

func (this FileInfo) Path() string       { return this.path }
func (this FileInfo) Size() int64        { return this.size }
func (this FileInfo) ModTime() time.Time { return this.mod }
func (this FileInfo) Mode() os.FileMode  { return this.mode }
