package core

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"path/filepath"
	"time"

	"github.com/smartystreets/logging"

	"github.com/smarty/prebuilt/contracts"
	"github.com/smarty/prebuilt/shell"
)

type PackageBuilderFileSystem interface {
	contracts.PathLister
	contracts.FileOpener
	contracts.RootPath
}

// PackedEntry describes one archived file, enough to write the entries of an
// install spec for the resulting archive.
type PackedEntry struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	SHA256     string `json:"sha256"`
	Executable bool   `json:"executable,omitempty"`
}

// PackageBuilder writes every regular file below the storage root into an
// archive. Paths inside the archive are relative to the root and
// slash-separated.
type PackageBuilder struct {
	logger   *logging.Logger
	storage  PackageBuilderFileSystem
	archive  contracts.ArchiveWriter
	hasher   func() hash.Hash
	contents []PackedEntry
	interval time.Duration
}

func NewPackageBuilder(storage PackageBuilderFileSystem, archive contracts.ArchiveWriter, hasher func() hash.Hash) *PackageBuilder {
	return &PackageBuilder{
		storage:  storage,
		archive:  archive,
		hasher:   hasher,
		interval: 2 * time.Second,
	}
}

func (this *PackageBuilder) Build() error {
	listing, err := this.storage.Listing()
	if err != nil {
		return err
	}
	for _, file := range listing {
		if !file.Mode().IsRegular() {
			this.logger.Printf("[WARN] Skipping \"%s\" (not a regular file).", file.Path())
			continue
		}
		err = this.add(file)
		if err != nil {
			return err
		}
	}
	return this.archive.Close()
}

func (this *PackageBuilder) add(file contracts.FileInfo) error {
	this.logger.Printf("Adding \"%s\" to archive.", file.Path())
	header, err := this.buildHeader(file)
	if err != nil {
		return err
	}
	err = this.archive.WriteHeader(header)
	if err != nil {
		return err
	}
	hasher := this.hasher()
	err = this.archiveContents(file, hasher)
	if err != nil {
		return err
	}
	this.contents = append(this.contents, PackedEntry{
		Name:       header.Name,
		Size:       header.Size,
		SHA256:     hex.EncodeToString(hasher.Sum(nil)),
		Executable: header.Executable,
	})
	return nil
}

func (this *PackageBuilder) archiveContents(file contracts.FileInfo, hasher hash.Hash) error {
	progress := shell.NewProgressCounter(file.Size(), this.interval, func(archived, total string) {
		this.logger.Printf("Archived %s of %s.", archived, total)
	})
	defer func() { _ = progress.Close() }()

	reader, err := this.storage.Open(file.Path())
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	_, err = io.Copy(io.MultiWriter(hasher, this.archive, progress), reader)
	return err
}

func (this *PackageBuilder) buildHeader(file contracts.FileInfo) (header contracts.ArchiveHeader, err error) {
	header.Name, err = this.archiveName(file.Path())
	if err != nil {
		return header, err
	}
	header.Size = file.Size()
	header.ModTime = file.ModTime()
	header.Executable = contracts.IsExecutable(file.Mode())
	return header, nil
}

// archiveName is the path relative to the root; a root that is itself a file
// is archived under its base name.
func (this *PackageBuilder) archiveName(path string) (string, error) {
	relative, err := filepath.Rel(this.storage.RootPath(), path)
	if err != nil {
		return "", err
	}
	if relative == "." {
		return filepath.Base(path), nil
	}
	name := filepath.ToSlash(relative)
	if contracts.NormalizeEntryName(name) != name || name == ".." || len(name) > 2 && name[:3] == "../" {
		return "", fmt.Errorf("the file \"%s\" is outside of the configured root directory: \"%s\"", path, this.storage.RootPath())
	}
	return name, nil
}

func (this *PackageBuilder) Contents() []PackedEntry {
	return this.contents
}
