package core

import (
	"errors"
	"os"

	"github.com/smarty/prebuilt/contracts"
)

// Uninstall removes every destination of spec. Destinations that are already
// gone are not an error; the remaining failures are joined.
func Uninstall(spec contracts.InstallSpec, remove func(string) error) error {
	var failures []error
	for _, path := range spec.Destinations() {
		if err := remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			failures = append(failures, &contracts.FilesystemError{Op: "remove", Path: path, Cause: err})
		}
	}
	return errors.Join(failures...)
}
