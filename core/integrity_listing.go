package core

import (
	"errors"
	"fmt"
	"os"

	"github.com/smarty/prebuilt/contracts"
)

type FileListingIntegrityChecker struct {
	fileSystem contracts.FileChecker
}

func NewFileListingIntegrityChecker(fileSystem contracts.FileChecker) *FileListingIntegrityChecker {
	return &FileListingIntegrityChecker{fileSystem: fileSystem}
}

func (this *FileListingIntegrityChecker) Verify(expected []contracts.InstalledFile) error {
	for _, item := range expected {
		fileInfo, err := this.fileSystem.Stat(item.Path)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file not found: \"%s\"", item.Path)
		}
		if err != nil {
			return err
		}
		if !fileInfo.Mode().IsRegular() {
			return fmt.Errorf("not a regular file: \"%s\"", item.Path)
		}
		if item.Size != fileInfo.Size() {
			return fmt.Errorf("file size mismatch for \"%s\" (expected: [%d], actual: [%d])", item.Path, item.Size, fileInfo.Size())
		}
	}
	return nil
}
