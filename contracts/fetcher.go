package contracts

import (
	"context"
	"io"
)

// Artifact is a downloaded archive. Closing it releases any temporary
// storage the Fetcher used to hold the bytes.
type Artifact interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
	Size() int64
}

type Fetcher interface {
	Fetch(ctx context.Context, address string) (Artifact, error)
}
