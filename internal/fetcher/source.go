package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Resolver turns a source location into a readable local file. Remote sources
// are downloaded into a scratch directory and ZIP archives are unpacked there.
type Resolver struct {
	HTTP Fetcher
	FTP  Fetcher

	mu      sync.Mutex
	dir     string
	ownsDir bool
}

// NewResolver returns a Resolver that stages files in dir. An empty dir means a
// temporary directory, removed by Cleanup.
func NewResolver(dir string, httpF, ftpF Fetcher) *Resolver {
	return &Resolver{HTTP: httpF, FTP: ftpF, dir: dir}
}

// Resolve returns a local path for location. When location is (or downloads
// to) a .zip archive and ext names another extension, the archive is unpacked
// and the first member with that extension is returned.
func (r *Resolver) Resolve(ctx context.Context, location, ext string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", eris.Wrap(ErrSourceUnavailable, "source: empty location")
	}

	local, err := r.fetch(ctx, location)
	if err != nil {
		return "", err
	}

	if !strings.EqualFold(filepath.Ext(local), ".zip") || strings.EqualFold(ext, ".zip") {
		return local, nil
	}

	dir, err := r.scratch()
	if err != nil {
		return "", err
	}
	dest, err := os.MkdirTemp(dir, strings.TrimSuffix(filepath.Base(local), filepath.Ext(local))+"-")
	if err != nil {
		return "", eris.Wrap(err, "source: create extract dir")
	}
	files, err := ExtractZIP(local, dest)
	if err != nil {
		return "", err
	}
	found, err := FindByExt(files, ext)
	if err != nil {
		return "", eris.Wrapf(err, "source: %s", location)
	}
	zap.L().Debug("source: extracted archive member",
		zap.String("archive", local),
		zap.String("member", found),
	)
	return found, nil
}

func (r *Resolver) fetch(ctx context.Context, location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path (a one-letter scheme is a Windows drive).
		if _, statErr := os.Stat(location); statErr != nil {
			return "", unavailable(statErr, "source: stat %s", location)
		}
		return location, nil
	}

	var f Fetcher
	switch u.Scheme {
	case "file":
		if _, statErr := os.Stat(u.Path); statErr != nil {
			return "", unavailable(statErr, "source: stat %s", u.Path)
		}
		return u.Path, nil
	case "http", "https":
		f = r.HTTP
	case "ftp":
		f = r.FTP
	default:
		return "", eris.Wrapf(ErrSourceUnavailable, "source: unsupported scheme %q", u.Scheme)
	}
	if f == nil {
		return "", eris.Wrapf(ErrSourceUnavailable, "source: no fetcher for scheme %q", u.Scheme)
	}

	dir, err := r.scratch()
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	dest := filepath.Join(dir, name)

	n, err := f.DownloadToFile(ctx, location, dest)
	if err != nil {
		return "", err
	}
	zap.L().Info("source: downloaded", zap.String("url", location), zap.Int64("bytes", n))
	return dest, nil
}

func (r *Resolver) scratch() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return "", eris.Wrap(err, "source: create scratch dir")
		}
		return r.dir, nil
	}
	dir, err := os.MkdirTemp("", "bivariate-map-")
	if err != nil {
		return "", eris.Wrap(err, "source: create temp dir")
	}
	r.dir = dir
	r.ownsDir = true
	return dir, nil
}

// Cleanup removes the scratch directory if the Resolver created it.
func (r *Resolver) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ownsDir || r.dir == "" {
		return nil
	}
	err := os.RemoveAll(r.dir)
	r.dir = ""
	r.ownsDir = false
	return eris.Wrap(err, "source: cleanup")
}
