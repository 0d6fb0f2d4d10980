package shell

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/smartystreets/gcs"
)

// newGoogleCloudStorageRequest signs a GET for gcs://bucket/resource.
func newGoogleCloudStorageRequest(ctx context.Context, credentials *gcs.Credentials, address *url.URL) (*http.Request, error) {
	if credentials == nil {
		return nil, errMissingGoogleCredentials
	}
	request, err := gcs.NewRequest("GET",
		gcs.WithCredentials(*credentials),
		gcs.WithBucket(address.Host),
		gcs.WithResource(address.Path),
	)
	if err != nil {
		return nil, err
	}
	return request.WithContext(ctx), nil
}

var errMissingGoogleCredentials = errors.New("google cloud storage credentials are required for gcs:// addresses")
