package archive

import (
	"bytes"
	"errors"
	"io"

	"github.com/smarty/prebuilt/contracts"
)

const sniffLength = 512

var (
	zipLocalMagic = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
	zstdMagic     = []byte{0x28, 0xb5, 0x2f, 0xfd}
	ustarMagic    = []byte("ustar")
)

const ustarOffset = 257

// Sniff identifies the archive format from its leading bytes. File names and
// declared formats play no part.
func Sniff(reader io.ReaderAt) (contracts.ArchiveFormat, error) {
	buffer := make([]byte, sniffLength)
	n, err := reader.ReadAt(buffer, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return contracts.FormatUnknown, err
	}
	return sniffBytes(buffer[:n]), nil
}

func sniffBytes(head []byte) contracts.ArchiveFormat {
	switch {
	case bytes.HasPrefix(head, zipLocalMagic), bytes.HasPrefix(head, zipEmptyMagic):
		return contracts.FormatZip
	case bytes.HasPrefix(head, gzipMagic):
		return contracts.FormatTarGzip
	case bytes.HasPrefix(head, zstdMagic):
		return contracts.FormatTarZstd
	case len(head) >= ustarOffset+len(ustarMagic) && bytes.Equal(head[ustarOffset:ustarOffset+len(ustarMagic)], ustarMagic):
		return contracts.FormatTar
	default:
		return contracts.FormatUnknown
	}
}
