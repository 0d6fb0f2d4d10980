package contracts

import (
	"errors"
	"fmt"
)

var (
	RetryErr = errors.New("retry")

	ErrNetwork            = errors.New("network error")
	ErrHTTPStatus         = errors.New("unexpected http status")
	ErrTimeout            = errors.New("timeout")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrSignatureMismatch  = errors.New("signature mismatch")
	ErrUnsafeArchiveEntry = errors.New("unsafe archive entry")
	ErrCorruptArchive     = errors.New("corrupt archive")
	ErrMissingEntry       = errors.New("archive entry not found")
	ErrFilesystem         = errors.New("filesystem error")
	ErrInstallFailed      = errors.New("install failed")
)

type Stage string

const (
	StageValidate Stage = "validate"
	StageFetch    Stage = "fetch"
	StageVerify   Stage = "verify"
	StageExtract  Stage = "extract"
	StagePlace    Stage = "place"
)

// InstallFailed is the only error returned by Installer.Install. Cause carries
// one of the typed errors below (or a context error on cancellation).
type InstallFailed struct {
	Stage Stage
	Cause error
}

func (this *InstallFailed) Error() string {
	return fmt.Sprintf("install failed at %s stage: %v", this.Stage, this.Cause)
}
func (this *InstallFailed) Unwrap() error { return this.Cause }
func (this *InstallFailed) Is(target error) bool {
	return target == ErrInstallFailed
}

///////////////////////////////////////////////////////////////////////////////

type NetworkError struct {
	URL   string
	Cause error
}

func (this *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %q: %v", this.URL, this.Cause)
}
func (this *NetworkError) Unwrap() error { return this.Cause }
func (this *NetworkError) Is(target error) bool {
	return target == ErrNetwork || target == RetryErr
}

type TimeoutError struct {
	URL   string
	Cause error
}

func (this *TimeoutError) Error() string {
	return fmt.Sprintf("timed out fetching %q: %v", this.URL, this.Cause)
}
func (this *TimeoutError) Unwrap() error { return this.Cause }
func (this *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == RetryErr
}

type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (this *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code fetching %q: %s", this.URL, this.Status)
}

// Is reports server-side (5xx) failures as retryable; client errors never are.
func (this *HTTPStatusError) Is(target error) bool {
	if target == ErrHTTPStatus {
		return true
	}
	return target == RetryErr && this.StatusCode >= 500
}

///////////////////////////////////////////////////////////////////////////////

type ChecksumMismatch struct {
	Algorithm string
	Actual    string
	Expected  string
}

func (this *ChecksumMismatch) Error() string {
	return fmt.Sprintf("%s checksum mismatch (expected: [%s], actual: [%s])", this.Algorithm, this.Expected, this.Actual)
}
func (this *ChecksumMismatch) Is(target error) bool { return target == ErrChecksumMismatch }

type SignatureMismatch struct {
	URL   string
	Cause error
}

func (this *SignatureMismatch) Error() string {
	return fmt.Sprintf("signature verification failed for %q: %v", this.URL, this.Cause)
}
func (this *SignatureMismatch) Unwrap() error        { return this.Cause }
func (this *SignatureMismatch) Is(target error) bool { return target == ErrSignatureMismatch }

///////////////////////////////////////////////////////////////////////////////

type UnsafeArchiveEntry struct {
	Name   string
	Reason string
}

func (this *UnsafeArchiveEntry) Error() string {
	return fmt.Sprintf("unsafe archive entry %q: %s", this.Name, this.Reason)
}
func (this *UnsafeArchiveEntry) Is(target error) bool { return target == ErrUnsafeArchiveEntry }

type CorruptArchive struct {
	Format ArchiveFormat
	Cause  error
}

func (this *CorruptArchive) Error() string {
	if this.Format == "" {
		return fmt.Sprintf("corrupt archive: %v", this.Cause)
	}
	return fmt.Sprintf("corrupt %s archive: %v", this.Format, this.Cause)
}
func (this *CorruptArchive) Unwrap() error        { return this.Cause }
func (this *CorruptArchive) Is(target error) bool { return target == ErrCorruptArchive }

///////////////////////////////////////////////////////////////////////////////

type FilesystemError struct {
	Op    string
	Path  string
	Cause error
}

func (this *FilesystemError) Error() string {
	return fmt.Sprintf("%s %q: %v", this.Op, this.Path, this.Cause)
}
func (this *FilesystemError) Unwrap() error        { return this.Cause }
func (this *FilesystemError) Is(target error) bool { return target == ErrFilesystem }
