package archive

import (
	"archive/tar"
	"io"

	"github.com/smarty/prebuilt/contracts"
)

type TarArchiveWriter struct {
	*tar.Writer
	compressor io.Closer
}

func NewTarArchiveWriter(writer io.Writer) *TarArchiveWriter {
	return &TarArchiveWriter{Writer: tar.NewWriter(writer)}
}

func newCompressedTarArchiveWriter(compressor io.WriteCloser) *TarArchiveWriter {
	return &TarArchiveWriter{Writer: tar.NewWriter(compressor), compressor: compressor}
}

func (this *TarArchiveWriter) WriteHeader(header contracts.ArchiveHeader) error {
	return this.Writer.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     header.Name,
		Size:     header.Size,
		ModTime:  header.ModTime,
		Mode:     fileMode(header),
		Format:   tar.FormatPAX,
	})
}

// Close flushes the tar footer and then the compression stream (if any).
func (this *TarArchiveWriter) Close() error {
	err := this.Writer.Close()
	if this.compressor != nil {
		if closeErr := this.compressor.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

func fileMode(header contracts.ArchiveHeader) int64 {
	if header.Executable {
		return 0755
	}
	return 0644
}
