package contracts

import (
	"io"
	"os"
	"strings"
	"time"
)

type ArchiveFormat string

const (
	FormatUnknown ArchiveFormat = ""
	FormatZip     ArchiveFormat = "zip"
	FormatTar     ArchiveFormat = "tar"
	FormatTarGzip ArchiveFormat = "tar.gz"
	FormatTarZstd ArchiveFormat = "tar.zst"
)

// ParseArchiveFormat accepts the canonical names plus the common aliases
// used in release pages ("tgz", "tar.zstd").
func ParseArchiveFormat(raw string) (ArchiveFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return FormatUnknown, true
	case "zip":
		return FormatZip, true
	case "tar":
		return FormatTar, true
	case "tar.gz", "tgz", "tar-gzip", "gzip":
		return FormatTarGzip, true
	case "tar.zst", "tar.zstd", "tzst", "zstd":
		return FormatTarZstd, true
	default:
		return FormatUnknown, false
	}
}

type EntryType int

const (
	EntryFile EntryType = iota
	EntryDirectory
	EntrySymlink
	EntryOther
)

type ArchiveEntry struct {
	Name    string
	Size    int64
	Mode    os.FileMode
	Type    EntryType
	Content io.Reader
}

func (this ArchiveEntry) IsDirectory() bool { return this.Type == EntryDirectory }
func (this ArchiveEntry) IsRegular() bool   { return this.Type == EntryFile }

// EntryReader is a single pass over an archive. Next returns io.EOF once the
// archive is exhausted; the Content of an entry is only valid until the
// following call to Next.
type EntryReader interface {
	Next() (ArchiveEntry, error)
	Close() error
}

type ArchiveExtractor interface {
	Extract(artifact Artifact, declared ArchiveFormat) (EntryReader, error)
}

type ArchiveHeader struct {
	Name       string
	Size       int64
	ModTime    time.Time
	Executable bool
}

type ArchiveWriter interface {
	io.WriteCloser
	WriteHeader(header ArchiveHeader) error
}
