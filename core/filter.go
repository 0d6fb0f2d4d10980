package core

import "github.com/smarty/prebuilt/contracts"

// Filter keeps the specs named in filter; an empty filter keeps everything.
func Filter(original []contracts.InstallSpec, filter []string) (filtered []contracts.InstallSpec) {
	if len(filter) == 0 {
		return original
	}
	for _, spec := range original {
		if contains(filter, spec.Name) {
			filtered = append(filtered, spec)
		}
	}
	return filtered
}

func contains(haystack []string, needle string) bool {
	for _, straw := range haystack {
		if straw == needle {
			return true
		}
	}
	return false
}
