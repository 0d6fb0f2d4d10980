package contracts

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

type Listing struct {
	Packages []InstallSpec `json:"packages" yaml:"packages"`
}

func (this *Listing) Validate() error {
	inventory := make(map[string]string) // map[Destination]PackageName

	for _, spec := range this.Packages {
		if spec.Name == "" {
			return errors.New("name is required")
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("%s: %w", spec.Title(), err)
		}
		for _, entry := range spec.Entries {
			destination := filepath.Clean(entry.Destination)
			if owner, found := inventory[destination]; found {
				return fmt.Errorf("destination conflict: %q is claimed by [%s] and [%s]", destination, owner, spec.Name)
			}
			inventory[destination] = spec.Name
		}
	}
	return nil
}

func (this Listing) RequiresGoogleCredentials() bool {
	for _, spec := range this.Packages {
		if spec.SourceURL.Scheme == SchemeGoogleCloudStorage {
			return true
		}
		if spec.SignatureURL != nil && spec.SignatureURL.Scheme == SchemeGoogleCloudStorage {
			return true
		}
	}
	return false
}

///////////////////////////////////////////////////////////////////////////////

type InstallSpec struct {
	Name         string         `json:"name" yaml:"name"`
	Version      string         `json:"version" yaml:"version"`
	Homepage     string         `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	SourceURL    URL            `json:"url" yaml:"url"`
	Checksum     string         `json:"checksum" yaml:"checksum"`
	Format       ArchiveFormat  `json:"format,omitempty" yaml:"format,omitempty"`
	SignatureURL *URL           `json:"signature_url,omitempty" yaml:"signature_url,omitempty"`
	Entries      []EntryMapping `json:"entries" yaml:"entries"`
}

type EntryMapping struct {
	Name        string `json:"name" yaml:"name"`
	Destination string `json:"destination" yaml:"destination"`
	Executable  bool   `json:"executable,omitempty" yaml:"executable,omitempty"`
}

func (this InstallSpec) Title() string {
	return fmt.Sprintf("[%s @ %s]", this.Name, this.Version)
}

func (this InstallSpec) Validate() error {
	if this.SourceURL.Value().String() == "" {
		return errBlankSourceURL
	}
	if !supportedScheme(this.SourceURL.Scheme) {
		return fmt.Errorf("%w: %q", errUnsupportedScheme, this.SourceURL.Scheme)
	}
	if this.SignatureURL != nil && !supportedScheme(this.SignatureURL.Scheme) {
		return fmt.Errorf("%w: %q", errUnsupportedScheme, this.SignatureURL.Scheme)
	}
	if _, _, err := SplitChecksum(this.Checksum); err != nil {
		return err
	}
	if _, ok := ParseArchiveFormat(string(this.Format)); !ok {
		return fmt.Errorf("%w: %q", errUnsupportedFormat, this.Format)
	}
	if len(this.Entries) == 0 {
		return errNoEntries
	}

	destinations := make(map[string]struct{})
	for _, entry := range this.Entries {
		if NormalizeEntryName(entry.Name) == "" {
			return errBlankEntryName
		}
		if !filepath.IsAbs(entry.Destination) {
			return fmt.Errorf("%w: %q", errRelativeDestination, entry.Destination)
		}
		destination := filepath.Clean(entry.Destination)
		if _, found := destinations[destination]; found {
			return fmt.Errorf("%w: %q", errDuplicateDestination, destination)
		}
		destinations[destination] = struct{}{}
	}
	return nil
}

// Destinations returns the cleaned destination paths in mapping order.
func (this InstallSpec) Destinations() (paths []string) {
	for _, entry := range this.Entries {
		paths = append(paths, filepath.Clean(entry.Destination))
	}
	return paths
}

// Targets groups the mapping by normalized archive entry name; one entry may
// be installed to several destinations.
func (this InstallSpec) Targets() map[string][]EntryMapping {
	targets := make(map[string][]EntryMapping, len(this.Entries))
	for _, entry := range this.Entries {
		name := NormalizeEntryName(entry.Name)
		entry.Destination = filepath.Clean(entry.Destination)
		targets[name] = append(targets[name], entry)
	}
	return targets
}

// NormalizeEntryName maps archive member names onto one canonical,
// slash-separated form ("./include/a.h" and "include//a.h" both become
// "include/a.h").
func NormalizeEntryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	if strings.Trim(name, "/.") == "" {
		return ""
	}
	return strings.TrimSuffix(path.Clean(name), "/")
}

func supportedScheme(scheme string) bool {
	switch scheme {
	case SchemeHTTPS, SchemeHTTP, SchemeFile, SchemeGoogleCloudStorage:
		return true
	default:
		return false
	}
}

const (
	SchemeHTTPS              = "https"
	SchemeHTTP               = "http"
	SchemeFile               = "file"
	SchemeGoogleCloudStorage = "gcs"
)

var (
	errBlankSourceURL       = errors.New("source url is required")
	errUnsupportedScheme    = errors.New("unsupported url scheme")
	errUnsupportedFormat    = errors.New("unsupported archive format")
	errNoEntries            = errors.New("at least one entry mapping is required")
	errBlankEntryName       = errors.New("entry name is required")
	errRelativeDestination  = errors.New("destination must be an absolute path")
	errDuplicateDestination = errors.New("duplicate destination")
)
