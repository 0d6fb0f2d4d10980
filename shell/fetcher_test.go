package shell

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"
	"github.com/smartystreets/logging"

	"github.com/smarty/prebuilt/contracts"
)

func TestHTTPFetcherFixture(t *testing.T) {
	gunit.Run(new(HTTPFetcherFixture), t)
}

type HTTPFetcherFixture struct {
	*gunit.Fixture

	server    *httptest.Server
	handler   http.HandlerFunc
	config    contracts.InstallConfig
	userAgent string
}

func (this *HTTPFetcherFixture) Setup() {
	this.handler = func(response http.ResponseWriter, request *http.Request) {
		_, _ = io.WriteString(response, "archive-bytes")
	}
	this.server = httptest.NewServer(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		this.userAgent = request.UserAgent()
		this.handler(response, request)
	}))
	this.config = contracts.InstallConfig{Timeout: time.Second, MaxArtifactSize: 1024, UserAgent: "prebuilt/test"}
}

func (this *HTTPFetcherFixture) Teardown() {
	this.server.Close()
}

func (this *HTTPFetcherFixture) fetch(ctx context.Context, address string) (contracts.Artifact, error) {
	fetcher := NewHTTPFetcher(this.server.Client(), this.config)
	fetcher.logger = logging.Capture()
	return fetcher.Fetch(ctx, address)
}

func (this *HTTPFetcherFixture) TestBodyIsStreamedToTemporaryArtifact() {
	artifact, err := this.fetch(context.Background(), this.server.URL+"/a.zip")

	this.So(err, should.BeNil)
	this.So(artifact.Size(), should.Equal, int64(len("archive-bytes")))
	raw, _ := io.ReadAll(artifact)
	this.So(string(raw), should.Equal, "archive-bytes")
	this.So(this.userAgent, should.Equal, "prebuilt/test")

	name := artifact.(*FileArtifact).Name()
	this.So(artifact.Close(), should.BeNil)
	_, err = os.Stat(name)
	this.So(errors.Is(err, os.ErrNotExist), should.BeTrue)
}

func (this *HTTPFetcherFixture) TestClientErrorIsNotRetryable() {
	this.handler = func(response http.ResponseWriter, request *http.Request) {
		response.WriteHeader(http.StatusNotFound)
	}

	artifact, err := this.fetch(context.Background(), this.server.URL+"/a.zip")

	this.So(artifact, should.BeNil)
	var statusErr *contracts.HTTPStatusError
	this.So(errors.As(err, &statusErr), should.BeTrue)
	this.So(statusErr.StatusCode, should.Equal, http.StatusNotFound)
	this.So(errors.Is(err, contracts.RetryErr), should.BeFalse)
}

func (this *HTTPFetcherFixture) TestServerErrorIsRetryable() {
	this.handler = func(response http.ResponseWriter, request *http.Request) {
		response.WriteHeader(http.StatusServiceUnavailable)
	}

	_, err := this.fetch(context.Background(), this.server.URL+"/a.zip")

	this.So(err, should.Wrap, contracts.ErrHTTPStatus)
	this.So(err, should.Wrap, contracts.RetryErr)
}

func (this *HTTPFetcherFixture) TestSlowServerTimesOut() {
	this.config.Timeout = 20 * time.Millisecond
	this.handler = func(response http.ResponseWriter, request *http.Request) {
		select {
		case <-request.Context().Done():
		case <-time.After(time.Second):
		}
	}

	_, err := this.fetch(context.Background(), this.server.URL+"/a.zip")

	this.So(err, should.Wrap, contracts.ErrTimeout)
	this.So(err, should.Wrap, contracts.RetryErr)
}

func (this *HTTPFetcherFixture) TestCallerCancellationIsReturnedUnwrapped() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := this.fetch(ctx, this.server.URL+"/a.zip")

	this.So(err, should.Equal, context.Canceled)
}

func (this *HTTPFetcherFixture) TestConnectionFailureIsNetworkError() {
	address := this.server.URL + "/a.zip"
	this.server.Close()

	_, err := this.fetch(context.Background(), address)

	this.So(err, should.Wrap, contracts.ErrNetwork)
	this.So(err, should.Wrap, contracts.RetryErr)
}

func (this *HTTPFetcherFixture) TestOversizedArtifactIsRejected() {
	this.config.MaxArtifactSize = 4

	_, err := this.fetch(context.Background(), this.server.URL+"/a.zip")

	this.So(err, should.Wrap, errArtifactTooLarge)
	this.So(errors.Is(err, contracts.RetryErr), should.BeFalse)
}

func (this *HTTPFetcherFixture) TestOversizedChunkedArtifactIsRejected() {
	this.config.MaxArtifactSize = 4
	this.handler = func(response http.ResponseWriter, request *http.Request) {
		_, _ = io.WriteString(response, "part one, ")
		response.(http.Flusher).Flush()
		_, _ = io.WriteString(response, "part two")
	}

	_, err := this.fetch(context.Background(), this.server.URL+"/a.zip")

	this.So(errors.Is(err, errArtifactTooLarge), should.BeTrue)
}

func (this *HTTPFetcherFixture) TestLocalFileIsOpenedInPlace() {
	directory, err := os.MkdirTemp("", "prebuilt-fetch-*")
	this.So(err, should.BeNil)
	defer func() { _ = os.RemoveAll(directory) }()
	path := filepath.Join(directory, "a.zip")
	this.So(os.WriteFile(path, []byte("local-bytes"), 0644), should.BeNil)

	artifact, err := this.fetch(context.Background(), "file://"+path)

	this.So(err, should.BeNil)
	raw, _ := io.ReadAll(artifact)
	this.So(string(raw), should.Equal, "local-bytes")
	this.So(artifact.Close(), should.BeNil)
	_, err = os.Stat(path)
	this.So(err, should.BeNil)
}

func (this *HTTPFetcherFixture) TestMissingLocalFile() {
	_, err := this.fetch(context.Background(), "file:///does/not/exist.zip")

	this.So(err, should.Wrap, contracts.ErrFilesystem)
	this.So(err, should.Wrap, os.ErrNotExist)
}

func (this *HTTPFetcherFixture) TestGoogleCloudStorageRequiresCredentials() {
	_, err := this.fetch(context.Background(), "gcs://bucket/path/a.zip")

	this.So(err, should.Equal, errMissingGoogleCredentials)
}

///////////////////////////////////////////////////////////////////////////////

func TestProgressFixture(t *testing.T) {
	gunit.Run(new(ProgressFixture), t)
}

type ProgressFixture struct {
	*gunit.Fixture
}

func (this *ProgressFixture) TestHumanFileSize() {
	this.So(HumanFileSize(0), should.Equal, "0 B")
	this.So(HumanFileSize(500), should.Equal, "500 B")
	this.So(HumanFileSize(1024), should.Equal, "1 KB")
	this.So(HumanFileSize(1536), should.Equal, "1.5 KB")
}

func (this *ProgressFixture) TestCountsWrittenBytes() {
	reports := make(chan string, 16)
	counter := NewProgressCounter(2048, time.Millisecond, func(written, total string) {
		select {
		case reports <- written + "/" + total:
		default:
		}
	})

	_, _ = io.Copy(counter, strings.NewReader(strings.Repeat("x", 1536)))
	report := <-reports
	this.So(counter.Close(), should.BeNil)
	this.So(counter.Close(), should.BeNil)

	this.So(counter.Written(), should.Equal, int64(1536))
	this.So(report, should.EndWith, "/2 KB")
}
