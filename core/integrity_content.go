package core

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/smarty/prebuilt/contracts"
)

// FileContentIntegrityCheck rehashes every installed file. It is the slow
// half of a check and is skipped entirely in quick mode.
type FileContentIntegrityCheck struct {
	hasher     func() hash.Hash
	fileSystem contracts.FileOpener
	enabled    bool
}

func NewFileContentIntegrityCheck(hasher func() hash.Hash, fileSystem contracts.FileOpener, enabled bool) *FileContentIntegrityCheck {
	return &FileContentIntegrityCheck{hasher: hasher, fileSystem: fileSystem, enabled: enabled}
}

func (this *FileContentIntegrityCheck) Verify(expected []contracts.InstalledFile) error {
	if !this.enabled {
		return nil
	}
	for _, item := range expected {
		hasher := this.hasher()
		reader, err := this.fileSystem.Open(item.Path)
		if err != nil {
			return err
		}
		_, err = io.Copy(hasher, reader)
		_ = reader.Close()
		if err != nil {
			return err
		}
		checksum := hex.EncodeToString(hasher.Sum(nil))
		if checksum != item.SHA256 {
			return fmt.Errorf("checksum mismatch for \"%s\" (expected: [%s], actual: [%s])", item.Path, item.SHA256, checksum)
		}
	}
	return nil
}
