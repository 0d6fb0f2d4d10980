package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/smarty/prebuilt/contracts"
)

const DefaultCompressionLevel = 6

// NewWriter returns an ArchiveWriter producing the given format. The level is
// the deflate/gzip level (1-9); for zstd it is mapped onto the nearest
// encoder speed.
func NewWriter(target io.Writer, format contracts.ArchiveFormat, level int) (contracts.ArchiveWriter, error) {
	if level == 0 {
		level = DefaultCompressionLevel
	}
	switch format {
	case contracts.FormatZip:
		return NewZipArchiveWriter(target, level), nil
	case contracts.FormatTar:
		return NewTarArchiveWriter(target), nil
	case contracts.FormatTarGzip:
		compressor, err := gzip.NewWriterLevel(target, level)
		if err != nil {
			return nil, err
		}
		return newCompressedTarArchiveWriter(compressor), nil
	case contracts.FormatTarZstd:
		compressor, err := zstd.NewWriter(target, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, err
		}
		return newCompressedTarArchiveWriter(compressor), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnrecognizedFormat, format)
	}
}

var errMissingHeader = errors.New("write before header")
