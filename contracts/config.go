package contracts

import (
	"time"

	"github.com/smartystreets/gcs"
)

const (
	DefaultMaxRetry        = 5
	DefaultTimeout         = 5 * time.Minute
	DefaultMaxArtifactSize = 1 << 30 // 1 GiB
	DefaultMaxEntrySize    = 4 << 30 // 4 GiB
)

type InstallConfig struct {
	MaxRetry          int
	Timeout           time.Duration
	MaxArtifactSize   int64
	MaxEntrySize      int64
	TempDirectory     string
	KeyringPath       string
	QuickVerification bool
	SpecPath          string
	UserAgent         string
	GoogleCredentials *gcs.Credentials
	PackageFilter     []string
	Listing           Listing
}

type PackConfig struct {
	SourceDirectory string
	OutputPath      string
	Format          ArchiveFormat
	Level           int
}
