package archive

import (
	stdtar "archive/tar"
	stdzip "archive/zip"
	"errors"
	"fmt"
	"io"
	"os"

	kzip "github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/mholt/archiver/v3"

	"github.com/smarty/prebuilt/contracts"
)

// Extractor satisfies contracts.ArchiveExtractor.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (this *Extractor) Extract(artifact contracts.Artifact, declared contracts.ArchiveFormat) (contracts.EntryReader, error) {
	return Open(artifact, declared)
}

// Open sniffs the artifact and returns a single-pass reader over its entries.
// A declared format, when given, must agree with the content.
func Open(artifact contracts.Artifact, declared contracts.ArchiveFormat) (contracts.EntryReader, error) {
	sniffed, err := Sniff(artifact)
	if err != nil {
		return nil, &contracts.CorruptArchive{Format: declared, Cause: err}
	}
	if sniffed == contracts.FormatUnknown {
		return nil, &contracts.CorruptArchive{Format: declared, Cause: errUnrecognizedFormat}
	}
	format, ok := contracts.ParseArchiveFormat(string(declared))
	if !ok {
		return nil, &contracts.CorruptArchive{Cause: fmt.Errorf("%w: %q", errUnrecognizedFormat, declared)}
	}
	if format != contracts.FormatUnknown && format != sniffed {
		return nil, &contracts.CorruptArchive{Format: format, Cause: fmt.Errorf("content is %s", sniffed)}
	}
	if _, err = artifact.Seek(0, io.SeekStart); err != nil {
		return nil, &contracts.CorruptArchive{Format: sniffed, Cause: err}
	}

	reader := &entryReader{format: sniffed}
	var source io.Reader = artifact

	switch sniffed {
	case contracts.FormatZip:
		reader.inner = archiver.NewZip()
	case contracts.FormatTar:
		reader.inner = archiver.NewTar()
	case contracts.FormatTarGzip:
		reader.inner = archiver.NewTarGz()
	case contracts.FormatTarZstd:
		decoder, err := zstd.NewReader(artifact)
		if err != nil {
			return nil, &contracts.CorruptArchive{Format: sniffed, Cause: err}
		}
		reader.release = decoder.Close
		reader.inner = archiver.NewTar()
		source = decoder
	}

	if err = reader.inner.Open(source, artifact.Size()); err != nil {
		reader.releaseDecoder()
		return nil, &contracts.CorruptArchive{Format: sniffed, Cause: err}
	}
	return reader, nil
}

type archiveReader interface {
	Open(in io.Reader, size int64) error
	Read() (archiver.File, error)
	Close() error
}

type entryReader struct {
	format  contracts.ArchiveFormat
	inner   archiveReader
	current io.Closer
	release func()
}

func (this *entryReader) Next() (contracts.ArchiveEntry, error) {
	this.closeCurrent()

	file, err := this.inner.Read()
	if errors.Is(err, io.EOF) {
		return contracts.ArchiveEntry{}, io.EOF
	}
	if err != nil {
		if file.ReadCloser != nil {
			_ = file.Close()
		}
		return contracts.ArchiveEntry{}, this.translate(headerName(file), err)
	}
	this.current = file.ReadCloser

	name, err := SafeName(headerName(file))
	if err != nil {
		return contracts.ArchiveEntry{}, err
	}

	mode := file.Mode()
	return contracts.ArchiveEntry{
		Name:    name,
		Size:    file.Size(),
		Mode:    mode.Perm(),
		Type:    entryType(mode),
		Content: &contentReader{format: this.format, inner: file.ReadCloser},
	}, nil
}

func (this *entryReader) translate(name string, err error) error {
	if errors.Is(err, stdtar.ErrInsecurePath) || errors.Is(err, stdzip.ErrInsecurePath) {
		return &contracts.UnsafeArchiveEntry{Name: name, Reason: err.Error()}
	}
	return &contracts.CorruptArchive{Format: this.format, Cause: err}
}

func (this *entryReader) Close() error {
	this.closeCurrent()
	err := this.inner.Close()
	this.releaseDecoder()
	return err
}

func (this *entryReader) closeCurrent() {
	if this.current != nil {
		_ = this.current.Close()
		this.current = nil
	}
}

func (this *entryReader) releaseDecoder() {
	if this.release != nil {
		this.release()
		this.release = nil
	}
}

func headerName(file archiver.File) string {
	switch header := file.Header.(type) {
	case kzip.FileHeader:
		return header.Name
	case *kzip.FileHeader:
		return header.Name
	case stdzip.FileHeader:
		return header.Name
	case *stdzip.FileHeader:
		return header.Name
	case *stdtar.Header:
		return header.Name
	}
	if file.FileInfo != nil {
		return file.Name()
	}
	return ""
}

func entryType(mode os.FileMode) contracts.EntryType {
	switch {
	case mode.IsDir():
		return contracts.EntryDirectory
	case mode&os.ModeSymlink != 0:
		return contracts.EntrySymlink
	case mode.IsRegular():
		return contracts.EntryFile
	default:
		return contracts.EntryOther
	}
}

// contentReader reports decompression failures inside an entry as a corrupt
// archive rather than as a generic read error.
type contentReader struct {
	format contracts.ArchiveFormat
	inner  io.Reader
}

func (this *contentReader) Read(p []byte) (int, error) {
	n, err := this.inner.Read(p)
	if err != nil && err != io.EOF {
		err = &contracts.CorruptArchive{Format: this.format, Cause: err}
	}
	return n, err
}

var errUnrecognizedFormat = errors.New("unrecognized archive format")
