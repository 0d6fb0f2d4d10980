package core

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/smartystreets/logging"

	"github.com/smarty/prebuilt/contracts"
	"github.com/smarty/prebuilt/shell"
)

const (
	directoryMode  os.FileMode = 0755
	executableMode os.FileMode = 0755
	regularMode    os.FileMode = 0644

	stagingSuffix = ".prebuilt-*"
	backupSuffix  = ".prebuilt-backup"
)

// placement stages archive entries next to their destinations and then moves
// them into place. Until Finish is called every change it made can be undone
// with Rollback.
type placement struct {
	logger       *logging.Logger
	fileSystem   contracts.FileSystem
	maxEntrySize int64

	staged      map[string]*stagedFile
	order       []string
	directories []string
	committed   []string
	backups     map[string]string
}

type stagedFile struct {
	temp        string
	destination string
	mode        os.FileMode
	size        int64
	checksum    string
}

func newPlacement(fileSystem contracts.FileSystem, maxEntrySize int64, logger *logging.Logger) *placement {
	return &placement{
		logger:       logger,
		fileSystem:   fileSystem,
		maxEntrySize: maxEntrySize,
		staged:       make(map[string]*stagedFile),
		backups:      make(map[string]string),
	}
}

// Stage copies the content of entry into one temp file per mapping. A later
// entry staged for the same destination replaces the earlier one.
func (this *placement) Stage(ctx context.Context, entry contracts.ArchiveEntry, mappings []contracts.EntryMapping) error {
	if entry.Size > this.maxEntrySize {
		return &contracts.FilesystemError{Op: "stage", Path: entry.Name, Cause: errEntryTooLarge}
	}

	files := make([]*stagedFile, 0, len(mappings))
	writers := make([]io.Writer, 0, len(mappings))
	temps := make([]contracts.TempFile, 0, len(mappings))
	closeAll := func() {
		for _, temp := range temps {
			_ = temp.Close()
		}
	}

	for _, mapping := range mappings {
		destination := mapping.Destination
		directory := filepath.Dir(destination)
		if err := this.ensureDirectory(directory); err != nil {
			closeAll()
			return err
		}
		if err := this.reserve(directory, destination, entry.Size); err != nil {
			closeAll()
			return err
		}
		this.discard(destination)

		temp, err := this.fileSystem.CreateTemp(directory, "."+filepath.Base(destination)+stagingSuffix)
		if err != nil {
			closeAll()
			return &contracts.FilesystemError{Op: "create", Path: destination, Cause: err}
		}
		staged := &stagedFile{temp: temp.Name(), destination: destination, mode: entryMode(entry, mapping)}
		this.track(staged)
		files = append(files, staged)
		temps = append(temps, temp)
		writers = append(writers, &stagingWriter{Writer: temp, path: destination})
	}

	reader := NewHashReader(newContextReader(ctx, io.LimitReader(entry.Content, this.maxEntrySize+1)), sha256.New())
	_, err := io.Copy(io.MultiWriter(writers...), reader)
	if err != nil {
		closeAll()
		return err
	}
	if reader.Count() > this.maxEntrySize {
		closeAll()
		return &contracts.FilesystemError{Op: "stage", Path: entry.Name, Cause: errEntryTooLarge}
	}

	for x, temp := range temps {
		if err = temp.Close(); err != nil {
			return &contracts.FilesystemError{Op: "close", Path: files[x].destination, Cause: err}
		}
		if err = this.fileSystem.Chmod(files[x].temp, files[x].mode); err != nil {
			return &contracts.FilesystemError{Op: "chmod", Path: files[x].destination, Cause: err}
		}
		files[x].size = reader.Count()
		files[x].checksum = reader.Checksum()
	}
	return nil
}

// Commit renames every staged file onto its destination, keeping a backup of
// whatever was there before.
func (this *placement) Commit(ctx context.Context) error {
	for _, destination := range this.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		staged := this.staged[destination]
		if err := this.backup(destination); err != nil {
			return err
		}
		if err := this.fileSystem.Rename(staged.temp, destination); err != nil {
			return &contracts.FilesystemError{Op: "rename", Path: destination, Cause: err}
		}
		this.committed = append(this.committed, destination)
	}
	return nil
}

// Rollback undoes everything (best effort) and reports what it could not undo.
func (this *placement) Rollback() error {
	var failures []error
	committed := make(map[string]struct{}, len(this.committed))
	for _, destination := range this.committed {
		committed[destination] = struct{}{}
	}
	for _, destination := range this.order {
		if _, found := committed[destination]; found {
			continue
		}
		failures = append(failures, this.remove(this.staged[destination].temp))
	}
	for x := len(this.committed) - 1; x >= 0; x-- {
		destination := this.committed[x]
		if backup, found := this.backups[destination]; found {
			delete(this.backups, destination)
			if err := this.fileSystem.Rename(backup, destination); err != nil {
				failures = append(failures, &contracts.FilesystemError{Op: "restore", Path: destination, Cause: err})
			}
			continue
		}
		failures = append(failures, this.remove(destination))
	}
	for _, backup := range this.backups {
		failures = append(failures, this.remove(backup))
	}
	for x := len(this.directories) - 1; x >= 0; x-- {
		_ = this.fileSystem.Remove(this.directories[x]) // only succeeds when empty
	}
	this.reset()
	return errors.Join(failures...)
}

// Finish drops the backups of replaced files and reports what was installed.
func (this *placement) Finish() []contracts.InstalledFile {
	for destination, backup := range this.backups {
		if err := this.remove(backup); err != nil {
			this.logger.Printf("[WARN] Could not remove backup of %s: %v", destination, err)
		}
	}
	files := this.Files()
	this.reset()
	return files
}

// Files reports each staged file by destination, in staging order.
func (this *placement) Files() (files []contracts.InstalledFile) {
	for _, destination := range this.order {
		staged := this.staged[destination]
		files = append(files, contracts.InstalledFile{Path: destination, Size: staged.size, SHA256: staged.checksum})
	}
	return files
}

func (this *placement) track(staged *stagedFile) {
	if _, found := this.staged[staged.destination]; !found {
		this.order = append(this.order, staged.destination)
	}
	this.staged[staged.destination] = staged
}

func (this *placement) discard(destination string) {
	if previous, found := this.staged[destination]; found {
		_ = this.fileSystem.Remove(previous.temp)
	}
}

// ensureDirectory creates directory and any missing parents, remembering the
// ones it created so Rollback can remove them again.
func (this *placement) ensureDirectory(directory string) error {
	var missing []string
	for current := directory; ; current = filepath.Dir(current) {
		if _, err := this.fileSystem.Stat(current); err == nil {
			break
		} else if !errors.Is(err, os.ErrNotExist) {
			return &contracts.FilesystemError{Op: "stat", Path: current, Cause: err}
		}
		missing = append(missing, current)
		if current == filepath.Dir(current) {
			break
		}
	}
	for x := len(missing) - 1; x >= 0; x-- {
		err := this.fileSystem.Mkdir(missing[x], directoryMode)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return &contracts.FilesystemError{Op: "mkdir", Path: missing[x], Cause: err}
		}
		this.directories = append(this.directories, missing[x])
	}
	return nil
}

func (this *placement) reserve(directory, destination string, size int64) error {
	if size <= 0 {
		return nil
	}
	available, err := this.fileSystem.Available(directory)
	if err != nil {
		this.logger.Printf("[WARN] Could not determine free space for %s: %v", directory, err)
		return nil
	}
	if available < uint64(size) {
		return &contracts.FilesystemError{
			Op:    "reserve",
			Path:  destination,
			Cause: fmt.Errorf("%w: %s needed, %s available", errInsufficientSpace, humanSize(size), humanSize(int64(available))),
		}
	}
	return nil
}

func (this *placement) backup(destination string) error {
	info, err := this.fileSystem.Stat(destination)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &contracts.FilesystemError{Op: "stat", Path: destination, Cause: err}
	}
	if info.Mode().IsDir() {
		return &contracts.FilesystemError{Op: "replace", Path: destination, Cause: errDestinationIsDirectory}
	}

	backup := filepath.Join(filepath.Dir(destination), "."+filepath.Base(destination)+backupSuffix)
	_ = this.fileSystem.Remove(backup)
	if err = this.fileSystem.Link(destination, backup); err != nil {
		if backup, err = this.copyAside(destination); err != nil {
			return &contracts.FilesystemError{Op: "backup", Path: destination, Cause: err}
		}
	}
	this.backups[destination] = backup
	return nil
}

func (this *placement) copyAside(destination string) (string, error) {
	source, err := this.fileSystem.Open(destination)
	if err != nil {
		return "", err
	}
	defer func() { _ = source.Close() }()

	target, err := this.fileSystem.CreateTemp(filepath.Dir(destination), "."+filepath.Base(destination)+backupSuffix+"-*")
	if err != nil {
		return "", err
	}
	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		_ = this.fileSystem.Remove(target.Name())
		return "", err
	}
	if err = target.Close(); err != nil {
		_ = this.fileSystem.Remove(target.Name())
		return "", err
	}
	return target.Name(), nil
}

func (this *placement) remove(path string) error {
	err := this.fileSystem.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return &contracts.FilesystemError{Op: "remove", Path: path, Cause: err}
}

func (this *placement) reset() {
	this.staged = make(map[string]*stagedFile)
	this.backups = make(map[string]string)
	this.order = nil
	this.directories = nil
	this.committed = nil
}

func entryMode(entry contracts.ArchiveEntry, mapping contracts.EntryMapping) os.FileMode {
	if mapping.Executable {
		return executableMode
	}
	if perm := entry.Mode.Perm(); perm != 0 {
		return perm
	}
	return regularMode
}

func humanSize(size int64) string {
	return strings.TrimSpace(shell.HumanFileSize(float64(size)))
}

///////////////////////////////////////////////////////////////////////////////

type stagingWriter struct {
	io.Writer
	path string
}

func (this *stagingWriter) Write(p []byte) (int, error) {
	n, err := this.Writer.Write(p)
	if err != nil {
		return n, &contracts.FilesystemError{Op: "write", Path: this.path, Cause: err}
	}
	return n, nil
}

type contextReader struct {
	ctx context.Context
	io.Reader
}

func newContextReader(ctx context.Context, reader io.Reader) io.Reader {
	return &contextReader{ctx: ctx, Reader: reader}
}

func (this *contextReader) Read(p []byte) (int, error) {
	if err := this.ctx.Err(); err != nil {
		return 0, err
	}
	return this.Reader.Read(p)
}

var (
	errEntryTooLarge          = errors.New("archive entry exceeds the maximum entry size")
	errInsufficientSpace      = errors.New("insufficient disk space")
	errDestinationIsDirectory = errors.New("destination is a directory")
)
