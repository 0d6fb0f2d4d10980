package archive

import (
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/smarty/prebuilt/contracts"
)

type ZipArchiveWriter struct {
	inner   *zip.Writer
	current io.Writer
	once    sync.Once
}

func NewZipArchiveWriter(writer io.Writer, level int) *ZipArchiveWriter {
	inner := zip.NewWriter(writer)
	inner.RegisterCompressor(zip.Deflate, func(target io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(target, level)
	})
	return &ZipArchiveWriter{inner: inner}
}

func (this *ZipArchiveWriter) WriteHeader(header contracts.ArchiveHeader) (err error) {
	zipHeader := &zip.FileHeader{
		Name:               header.Name,
		Modified:           header.ModTime,
		UncompressedSize64: uint64(header.Size),
		Method:             zip.Deflate,
	}
	zipHeader.SetMode(os.FileMode(fileMode(header)))
	this.current, err = this.inner.CreateHeader(zipHeader)
	return err
}

func (this *ZipArchiveWriter) Write(buffer []byte) (int, error) {
	if this.current == nil {
		return 0, errMissingHeader
	}
	return this.current.Write(buffer)
}

func (this *ZipArchiveWriter) Close() (err error) {
	this.current = nil
	this.once.Do(func() { err = this.inner.Close() })
	return err
}
