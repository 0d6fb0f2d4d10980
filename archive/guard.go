package archive

import (
	"path"
	"strings"

	"github.com/smarty/prebuilt/contracts"
)

// SafeName normalizes an archive entry name and rejects any name that could
// resolve outside of the extraction root.
func SafeName(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", &contracts.UnsafeArchiveEntry{Name: name, Reason: "contains a NUL byte"}
	}
	slashed := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(slashed, "/") || hasVolumeName(slashed) {
		return "", &contracts.UnsafeArchiveEntry{Name: name, Reason: "absolute path"}
	}
	cleaned := path.Clean(slashed)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", &contracts.UnsafeArchiveEntry{Name: name, Reason: "escapes the extraction root"}
	}
	return contracts.NormalizeEntryName(slashed), nil
}

func hasVolumeName(name string) bool {
	if len(name) < 2 || name[1] != ':' {
		return false
	}
	letter := name[0]
	return ('a' <= letter && letter <= 'z') || ('A' <= letter && letter <= 'Z')
}
