package contracts

import (
	"context"
	"io"
)

type ChecksumVerifier interface {
	Verify(reader io.Reader, expected string) error
}

type IntegrityCheck interface {
	Verify(expected []InstalledFile) error
}

type PackageInstaller interface {
	Install(ctx context.Context, spec InstallSpec) (InstallResult, error)
	Describe(ctx context.Context, spec InstallSpec) ([]InstalledFile, error)
}

// SignatureVerifier checks a detached signature published at signatureURL
// against the signed bytes.
type SignatureVerifier interface {
	Verify(ctx context.Context, signed io.Reader, signatureURL string) error
}
