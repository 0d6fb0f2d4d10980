package shell

import (
	"bytes"
	"os"
)

// FileArtifact is a downloaded archive held in a file. Temporary artifacts
// delete their file on Close.
type FileArtifact struct {
	*os.File
	size      int64
	temporary bool
}

func NewFileArtifact(file *os.File, size int64, temporary bool) *FileArtifact {
	return &FileArtifact{File: file, size: size, temporary: temporary}
}

func (this *FileArtifact) Size() int64 { return this.size }

func (this *FileArtifact) Close() error {
	err := this.File.Close()
	if this.temporary {
		if removeErr := os.Remove(this.File.Name()); err == nil {
			err = removeErr
		}
	}
	return err
}

type MemoryArtifact struct {
	*bytes.Reader
	Closed bool
}

func NewMemoryArtifact(raw []byte) *MemoryArtifact {
	return &MemoryArtifact{Reader: bytes.NewReader(raw)}
}

func (this *MemoryArtifact) Close() error {
	this.Closed = true
	return nil
}
