package shell

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smarty/prebuilt/contracts"
)

// InMemoryFileSystem is a contracts.FileSystem for tests. Directories are
// explicit: files may only be created inside a directory that exists. It can
// simulate a full disk (SetCapacity) and failing renames (FailRename).
type InMemoryFileSystem struct {
	lock        sync.Mutex
	fileSystem  map[string]*file
	directories map[string]struct{}
	faults      map[string]error
	capacity    int64
	temps       int
	Root        string
}

func NewInMemoryFileSystem() *InMemoryFileSystem {
	return &InMemoryFileSystem{
		fileSystem:  make(map[string]*file),
		directories: map[string]struct{}{string(filepath.Separator): {}},
		faults:      make(map[string]error),
		capacity:    -1,
		Root:        string(filepath.Separator),
	}
}

func (this *InMemoryFileSystem) RootPath() string {
	return this.Root
}

// SetCapacity limits the total bytes held by all files; negative means
// unlimited.
func (this *InMemoryFileSystem) SetCapacity(capacity int64) {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.capacity = capacity
}

func (this *InMemoryFileSystem) FailRename(target string, err error) {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.faults[filepath.Clean(target)] = err
}

func (this *InMemoryFileSystem) Stat(path string) (contracts.FileInfo, error) {
	this.lock.Lock()
	defer this.lock.Unlock()

	path = filepath.Clean(path)
	if target, found := this.fileSystem[path]; found {
		return target.info(), nil
	}
	if _, found := this.directories[path]; found {
		return FileInfo{path: path, mod: InMemoryModTime, mode: os.ModeDir | 0755}, nil
	}
	return nil, notExist("stat", path)
}

func (this *InMemoryFileSystem) Listing() (files []contracts.FileInfo, err error) {
	this.lock.Lock()
	defer this.lock.Unlock()

	for _, file := range this.fileSystem {
		files = append(files, file.info())
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path() < files[j].Path() })
	return files, nil
}

// Paths lists every file and directory (except the root), sorted.
func (this *InMemoryFileSystem) Paths() (paths []string) {
	this.lock.Lock()
	defer this.lock.Unlock()

	for path := range this.fileSystem {
		paths = append(paths, path)
	}
	for path := range this.directories {
		if path != this.Root {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

func (this *InMemoryFileSystem) Open(path string) (io.ReadCloser, error) {
	contents, err := this.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(contents)), nil
}

func (this *InMemoryFileSystem) ReadFile(path string) ([]byte, error) {
	this.lock.Lock()
	defer this.lock.Unlock()

	target, found := this.fileSystem[filepath.Clean(path)]
	if !found {
		return nil, notExist("open", path)
	}
	return append([]byte(nil), target.contents...), nil
}

// WriteFile creates the file (and any missing parents) outright; it is meant
// for arranging test state and ignores capacity.
func (this *InMemoryFileSystem) WriteFile(path string, content []byte) {
	this.lock.Lock()
	defer this.lock.Unlock()

	path = filepath.Clean(path)
	for parent := filepath.Dir(path); ; parent = filepath.Dir(parent) {
		this.directories[parent] = struct{}{}
		if parent == filepath.Dir(parent) {
			break
		}
	}
	this.fileSystem[path] = &file{parent: this, path: path, contents: content, mode: 0644}
}

func (this *InMemoryFileSystem) Mkdir(path string, perm os.FileMode) error {
	this.lock.Lock()
	defer this.lock.Unlock()

	path = filepath.Clean(path)
	if _, found := this.directories[filepath.Dir(path)]; !found {
		return notExist("mkdir", path)
	}
	if this.exists(path) {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}
	this.directories[path] = struct{}{}
	return nil
}

func (this *InMemoryFileSystem) CreateTemp(dir, pattern string) (contracts.TempFile, error) {
	this.lock.Lock()
	defer this.lock.Unlock()

	dir = filepath.Clean(dir)
	if _, found := this.directories[dir]; !found {
		return nil, notExist("createtemp", dir)
	}
	this.temps++
	name := strings.Replace(pattern, "*", fmt.Sprint(this.temps), 1)
	if !strings.Contains(pattern, "*") {
		name += fmt.Sprint(this.temps)
	}
	path := filepath.Join(dir, name)
	created := &file{parent: this, name: path, path: path, mode: 0600}
	this.fileSystem[created.path] = created
	return created, nil
}

func (this *InMemoryFileSystem) Rename(source, target string) error {
	this.lock.Lock()
	defer this.lock.Unlock()

	source, target = filepath.Clean(source), filepath.Clean(target)
	if err, found := this.faults[target]; found {
		return &os.LinkError{Op: "rename", Old: source, New: target, Err: err}
	}
	moved, found := this.fileSystem[source]
	if !found {
		return &os.LinkError{Op: "rename", Old: source, New: target, Err: fs.ErrNotExist}
	}
	if _, found := this.directories[filepath.Dir(target)]; !found {
		return &os.LinkError{Op: "rename", Old: source, New: target, Err: fs.ErrNotExist}
	}
	delete(this.fileSystem, source)
	moved.path = target
	this.fileSystem[target] = moved
	return nil
}

func (this *InMemoryFileSystem) Link(source, target string) error {
	this.lock.Lock()
	defer this.lock.Unlock()

	source, target = filepath.Clean(source), filepath.Clean(target)
	original, found := this.fileSystem[source]
	if !found {
		return &os.LinkError{Op: "link", Old: source, New: target, Err: fs.ErrNotExist}
	}
	if this.exists(target) {
		return &os.LinkError{Op: "link", Old: source, New: target, Err: fs.ErrExist}
	}
	this.fileSystem[target] = &file{parent: this, path: target, contents: append([]byte(nil), original.contents...), mode: original.mode}
	return nil
}

func (this *InMemoryFileSystem) Chmod(path string, mode os.FileMode) error {
	this.lock.Lock()
	defer this.lock.Unlock()

	target, found := this.fileSystem[filepath.Clean(path)]
	if !found {
		return notExist("chmod", path)
	}
	target.mode = mode.Perm()
	return nil
}

// Remove deletes a file or an empty directory.
func (this *InMemoryFileSystem) Remove(path string) error {
	this.lock.Lock()
	defer this.lock.Unlock()

	path = filepath.Clean(path)
	if _, found := this.fileSystem[path]; found {
		delete(this.fileSystem, path)
		return nil
	}
	if _, found := this.directories[path]; !found {
		return notExist("remove", path)
	}
	prefix := path + string(filepath.Separator)
	for child := range this.fileSystem {
		if strings.HasPrefix(child, prefix) {
			return &fs.PathError{Op: "remove", Path: path, Err: syscall.ENOTEMPTY}
		}
	}
	for child := range this.directories {
		if strings.HasPrefix(child, prefix) {
			return &fs.PathError{Op: "remove", Path: path, Err: syscall.ENOTEMPTY}
		}
	}
	delete(this.directories, path)
	return nil
}

func (this *InMemoryFileSystem) Available(string) (uint64, error) {
	this.lock.Lock()
	defer this.lock.Unlock()

	if this.capacity < 0 {
		return math.MaxInt64, nil
	}
	if used := this.used(); used < this.capacity {
		return uint64(this.capacity - used), nil
	}
	return 0, nil
}

func (this *InMemoryFileSystem) exists(path string) bool {
	_, isFile := this.fileSystem[path]
	_, isDirectory := this.directories[path]
	return isFile || isDirectory
}

func (this *InMemoryFileSystem) used() (total int64) {
	for _, file := range this.fileSystem {
		total += int64(len(file.contents))
	}
	return total
}

func (this *InMemoryFileSystem) write(target *file, p []byte) (int, error) {
	this.lock.Lock()
	defer this.lock.Unlock()

	if this.capacity >= 0 && this.used()+int64(len(p)) > this.capacity {
		return 0, &fs.PathError{Op: "write", Path: target.path, Err: syscall.ENOSPC}
	}
	target.contents = append(target.contents, p...)
	return len(p), nil
}

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

/////////////////////////////////////////////////

type file struct {
	parent   *InMemoryFileSystem
	name     string
	path     string
	contents []byte
	mode     os.FileMode
}

var InMemoryModTime = time.Now()

func (this *file) info() FileInfo {
	return FileInfo{path: this.path, size: int64(len(this.contents)), mod: InMemoryModTime, mode: this.mode}
}

func (this *file) Name() string { return this.name }

func (this *file) Write(p []byte) (n int, err error) {
	return this.parent.write(this, p)
}

func (this *file) Close() error {
	return nil
}
