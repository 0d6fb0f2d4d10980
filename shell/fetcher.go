package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/smartystreets/gcs"
	"github.com/smartystreets/logging"

	"github.com/smarty/prebuilt/contracts"
)

const progressInterval = 2 * time.Second

// HTTPFetcher performs a single attempt to download an artifact into a
// temporary file. Retrying is the caller's business.
type HTTPFetcher struct {
	logger      *logging.Logger
	client      *http.Client
	credentials *gcs.Credentials
	tempDir     string
	maxSize     int64
	timeout     time.Duration
	userAgent   string
}

func NewHTTPFetcher(client *http.Client, config contracts.InstallConfig) *HTTPFetcher {
	maxSize := config.MaxArtifactSize
	if maxSize <= 0 {
		maxSize = contracts.DefaultMaxArtifactSize
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = contracts.DefaultTimeout
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "prebuilt"
	}
	return &HTTPFetcher{
		client:      client,
		credentials: config.GoogleCredentials,
		tempDir:     config.TempDirectory,
		maxSize:     maxSize,
		timeout:     timeout,
		userAgent:   userAgent,
	}
}

func (this *HTTPFetcher) Fetch(ctx context.Context, address string) (contracts.Artifact, error) {
	parsed, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("malformed url %q: %w", address, err)
	}
	if parsed.Scheme == contracts.SchemeFile {
		return this.openLocal(parsed)
	}

	attempt, cancel := context.WithTimeout(ctx, this.timeout)
	defer cancel()

	request, err := this.newRequest(attempt, parsed)
	if err != nil {
		return nil, err
	}
	response, err := this.client.Do(request)
	if err != nil {
		return nil, this.classify(ctx, attempt, address, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return nil, &contracts.HTTPStatusError{URL: address, StatusCode: response.StatusCode, Status: response.Status}
	}
	if response.ContentLength > this.maxSize {
		return nil, fmt.Errorf("%w: %s declares %d bytes", errArtifactTooLarge, address, response.ContentLength)
	}
	return this.download(ctx, attempt, address, response)
}

func (this *HTTPFetcher) newRequest(ctx context.Context, address *url.URL) (*http.Request, error) {
	if address.Scheme == contracts.SchemeGoogleCloudStorage {
		return newGoogleCloudStorageRequest(ctx, this.credentials, address)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, address.String(), nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("User-Agent", this.userAgent)
	return request, nil
}

func (this *HTTPFetcher) download(ctx, attempt context.Context, address string, response *http.Response) (contracts.Artifact, error) {
	temp, err := os.CreateTemp(this.tempDir, "prebuilt-*.artifact")
	if err != nil {
		return nil, &contracts.FilesystemError{Op: "create temp", Path: this.tempDir, Cause: err}
	}
	artifact := NewFileArtifact(temp, 0, true)

	progress := NewProgressCounter(response.ContentLength, progressInterval, func(written, total string) {
		this.logger.Printf("[INFO] Downloading %s: %s of %s", address, written, total)
	})
	defer func() { _ = progress.Close() }()

	limited := io.LimitReader(response.Body, this.maxSize+1)
	size, err := io.Copy(io.MultiWriter(temp, progress), limited)
	if err != nil {
		_ = artifact.Close()
		var pathErr *os.PathError
		if errors.As(err, &pathErr) && pathErr.Path == temp.Name() {
			return nil, &contracts.FilesystemError{Op: "write", Path: temp.Name(), Cause: err}
		}
		return nil, this.classify(ctx, attempt, address, err)
	}
	if size > this.maxSize {
		_ = artifact.Close()
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", errArtifactTooLarge, address, this.maxSize)
	}
	if response.ContentLength >= 0 && size != response.ContentLength {
		_ = artifact.Close()
		return nil, &contracts.NetworkError{URL: address, Cause: io.ErrUnexpectedEOF}
	}
	if _, err = temp.Seek(0, io.SeekStart); err != nil {
		_ = artifact.Close()
		return nil, &contracts.FilesystemError{Op: "seek", Path: temp.Name(), Cause: err}
	}
	artifact.size = size
	return artifact, nil
}

func (this *HTTPFetcher) openLocal(address *url.URL) (contracts.Artifact, error) {
	path := address.Path
	if path == "" {
		path = address.Opaque
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, &contracts.FilesystemError{Op: "open", Path: path, Cause: err}
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, &contracts.FilesystemError{Op: "stat", Path: path, Cause: err}
	}
	if info.Size() > this.maxSize {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes", errArtifactTooLarge, path, info.Size())
	}
	return NewFileArtifact(file, info.Size(), false), nil
}

// classify maps a transport failure onto the fetch error taxonomy. The
// caller's own cancellation is returned as-is so that it is never retried.
func (this *HTTPFetcher) classify(ctx, attempt context.Context, address string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if attempt.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return &contracts.TimeoutError{URL: address, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &contracts.TimeoutError{URL: address, Cause: err}
	}
	return &contracts.NetworkError{URL: address, Cause: err}
}

var errArtifactTooLarge = errors.New("artifact too large")
