// Package fetcher locates and parses the tabular and geometry sources a map is
// built from. Sources may be local files or HTTP, HTTPS or FTP URLs, optionally
// wrapped in a ZIP archive.
package fetcher

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
)

// ErrSourceUnavailable is wrapped by every error caused by a missing or
// unreadable input source.
var ErrSourceUnavailable = eris.New("data source unavailable")

// Fetcher downloads a remote resource.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

func unavailable(err error, format string, args ...any) error {
	return eris.Wrapf(ErrSourceUnavailable, format+": %v", append(args, err)...)
}
