package core

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/smartystreets/logging"

	"github.com/smarty/prebuilt/contracts"
)

// Installer runs the fetch, verify, extract and place pipeline for one
// InstallSpec at a time. It is safe for concurrent use; installs that share a
// destination are serialized.
type Installer struct {
	logger       *logging.Logger
	fetcher      contracts.Fetcher
	checksums    contracts.ChecksumVerifier
	signatures   contracts.SignatureVerifier
	extractor    contracts.ArchiveExtractor
	fileSystem   contracts.FileSystem
	locks        *DestinationLocks
	maxEntrySize int64
}

func NewInstaller(
	fetcher contracts.Fetcher,
	checksums contracts.ChecksumVerifier,
	signatures contracts.SignatureVerifier,
	extractor contracts.ArchiveExtractor,
	fileSystem contracts.FileSystem,
	locks *DestinationLocks,
	maxEntrySize int64,
) *Installer {
	if locks == nil {
		locks = NewDestinationLocks()
	}
	if maxEntrySize <= 0 {
		maxEntrySize = contracts.DefaultMaxEntrySize
	}
	return &Installer{
		fetcher:      fetcher,
		checksums:    checksums,
		signatures:   signatures,
		extractor:    extractor,
		fileSystem:   fileSystem,
		locks:        locks,
		maxEntrySize: maxEntrySize,
	}
}

// Install returns a result describing the outcome in either case; the error,
// when not nil, is always a *contracts.InstallFailed.
func (this *Installer) Install(ctx context.Context, spec contracts.InstallSpec) (contracts.InstallResult, error) {
	result := contracts.InstallResult{Name: spec.Name, Version: spec.Version}

	files, err := this.install(ctx, spec)
	if err != nil {
		var failed *contracts.InstallFailed
		errors.As(err, &failed)
		result.Status = contracts.StatusFailure
		result.Stage = failed.Stage
		result.Detail = failed.Cause.Error()
		this.logger.Printf("[WARN] %s %v", spec.Title(), err)
		return result, err
	}

	result.Status = contracts.StatusSuccess
	result.Paths = spec.Destinations()
	result.Files = files
	this.logger.Printf("[INFO] %s installed %d file(s).", spec.Title(), len(files))
	return result, nil
}

func (this *Installer) install(ctx context.Context, spec contracts.InstallSpec) ([]contracts.InstalledFile, error) {
	artifact, err := this.acquire(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer func() { _ = artifact.Close() }()

	release, err := this.locks.Acquire(ctx, spec.Destinations())
	if err != nil {
		return nil, fail(contracts.StagePlace, err)
	}
	defer release()

	if err = this.scan(ctx, spec, artifact); err != nil {
		return nil, err
	}

	placement := newPlacement(this.fileSystem, this.maxEntrySize, this.logger)
	err = this.walk(ctx, spec, artifact, func(entry contracts.ArchiveEntry, mappings []contracts.EntryMapping) error {
		return placement.Stage(ctx, entry, mappings)
	})
	if err == nil {
		if err = placement.Commit(ctx); err != nil {
			err = fail(contracts.StagePlace, err)
		}
	}
	if err != nil {
		if rollbackErr := placement.Rollback(); rollbackErr != nil {
			this.logger.Printf("[WARN] %s rollback was incomplete: %v", spec.Title(), rollbackErr)
		}
		return nil, err
	}
	return ordered(spec, placement.Finish()), nil
}

// Describe runs the same pipeline as Install without touching the file
// system and reports the files an install would produce.
func (this *Installer) Describe(ctx context.Context, spec contracts.InstallSpec) ([]contracts.InstalledFile, error) {
	artifact, err := this.acquire(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer func() { _ = artifact.Close() }()

	described := make(map[string]contracts.InstalledFile)
	err = this.walk(ctx, spec, artifact, func(entry contracts.ArchiveEntry, mappings []contracts.EntryMapping) error {
		reader := NewHashReader(newContextReader(ctx, entry.Content), sha256.New())
		if _, err := io.Copy(io.Discard, reader); err != nil {
			return err
		}
		for _, mapping := range mappings {
			described[mapping.Destination] = contracts.InstalledFile{
				Path:   mapping.Destination,
				Size:   reader.Count(),
				SHA256: reader.Checksum(),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	files := make([]contracts.InstalledFile, 0, len(described))
	for _, destination := range spec.Destinations() {
		files = append(files, described[destination])
	}
	return files, nil
}

// acquire validates the spec, then fetches and verifies the artifact. The
// returned artifact is positioned at its first byte.
func (this *Installer) acquire(ctx context.Context, spec contracts.InstallSpec) (contracts.Artifact, error) {
	if err := spec.Validate(); err != nil {
		return nil, fail(contracts.StageValidate, err)
	}

	this.logger.Printf("[INFO] %s fetching %s", spec.Title(), spec.SourceURL.String())
	artifact, err := this.fetcher.Fetch(ctx, spec.SourceURL.String())
	if err != nil {
		return nil, fail(contracts.StageFetch, err)
	}
	if err = this.verify(ctx, spec, artifact); err != nil {
		_ = artifact.Close()
		return nil, fail(contracts.StageVerify, err)
	}
	return artifact, nil
}

func (this *Installer) verify(ctx context.Context, spec contracts.InstallSpec, artifact contracts.Artifact) error {
	if err := rewind(artifact); err != nil {
		return err
	}
	if err := this.checksums.Verify(artifact, spec.Checksum); err != nil {
		return err
	}
	if spec.SignatureURL != nil {
		address := spec.SignatureURL.String()
		if this.signatures == nil {
			return &contracts.SignatureMismatch{URL: address, Cause: errMissingKeyring}
		}
		if err := rewind(artifact); err != nil {
			return err
		}
		if err := this.signatures.Verify(ctx, artifact, address); err != nil {
			return err
		}
	}
	return rewind(artifact)
}

// walk feeds every mapped archive entry to visit and fails when a mapped
// entry is absent or is not a regular file. Entries not in the mapping are
// still read (and checked for unsafe names) but otherwise ignored.
func (this *Installer) walk(
	ctx context.Context,
	spec contracts.InstallSpec,
	artifact contracts.Artifact,
	visit func(contracts.ArchiveEntry, []contracts.EntryMapping) error,
) error {
	reader, err := this.extractor.Extract(artifact, spec.Format)
	if err != nil {
		return fail(contracts.StageExtract, err)
	}
	defer func() { _ = reader.Close() }()

	targets := spec.Targets()
	found := make(map[string]struct{}, len(targets))
	for {
		if err = ctx.Err(); err != nil {
			return fail(contracts.StageExtract, err)
		}
		entry, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(contracts.StageExtract, err)
		}
		mappings, wanted := targets[entry.Name]
		if !wanted {
			continue
		}
		if !entry.IsRegular() {
			return fail(contracts.StageExtract, fmt.Errorf("%w: %q is not a regular file", contracts.ErrMissingEntry, entry.Name))
		}
		if err = visit(entry, mappings); err != nil {
			return fail(stageOf(err), err)
		}
		found[entry.Name] = struct{}{}
	}

	for _, mapping := range spec.Entries {
		name := contracts.NormalizeEntryName(mapping.Name)
		if _, ok := found[name]; !ok {
			return fail(contracts.StageExtract, fmt.Errorf("%w: %q", contracts.ErrMissingEntry, mapping.Name))
		}
	}
	return nil
}

// scan reads the archive once without writing anything so that unsafe names,
// corruption and missing entries fail the install before any file is staged.
func (this *Installer) scan(ctx context.Context, spec contracts.InstallSpec, artifact contracts.Artifact) error {
	err := this.walk(ctx, spec, artifact, func(contracts.ArchiveEntry, []contracts.EntryMapping) error { return nil })
	if err != nil {
		return err
	}
	if err = rewind(artifact); err != nil {
		return fail(contracts.StageExtract, err)
	}
	return nil
}

func rewind(artifact contracts.Artifact) error {
	if _, err := artifact.Seek(0, io.SeekStart); err != nil {
		return &contracts.FilesystemError{Op: "seek", Path: "artifact", Cause: err}
	}
	return nil
}

// stageOf attributes a failure while copying an entry: archive problems
// belong to extraction, everything else to placement.
func stageOf(err error) contracts.Stage {
	if errors.Is(err, contracts.ErrCorruptArchive) || errors.Is(err, contracts.ErrUnsafeArchiveEntry) {
		return contracts.StageExtract
	}
	return contracts.StagePlace
}

func fail(stage contracts.Stage, err error) error {
	var failed *contracts.InstallFailed
	if errors.As(err, &failed) {
		return failed
	}
	return &contracts.InstallFailed{Stage: stage, Cause: err}
}

func ordered(spec contracts.InstallSpec, files []contracts.InstalledFile) []contracts.InstalledFile {
	index := make(map[string]contracts.InstalledFile, len(files))
	for _, file := range files {
		index[file.Path] = file
	}
	sorted := make([]contracts.InstalledFile, 0, len(files))
	for _, destination := range spec.Destinations() {
		if file, found := index[destination]; found {
			sorted = append(sorted, file)
		}
	}
	return sorted
}
