package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a remote permit export.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// must close it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
