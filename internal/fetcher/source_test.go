package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figure-data.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	r := NewResolver(t.TempDir(), nil, nil)
	got, err := r.Resolve(context.Background(), path, ".xlsx")
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestResolve_MissingFile(t *testing.T) {
	r := NewResolver(t.TempDir(), nil, nil)
	_, err := r.Resolve(context.Background(), filepath.Join(t.TempDir(), "missing.shp"), ".shp")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))

	_, err = r.Resolve(context.Background(), "  ", ".shp")
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestResolve_LocalZip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"ne_10m_admin_0_countries.shp": "shp",
		"ne_10m_admin_0_countries.dbf": "dbf",
	})

	r := NewResolver(t.TempDir(), nil, nil)
	got, err := r.Resolve(context.Background(), zipPath, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "ne_10m_admin_0_countries.shp", filepath.Base(got))

	got, err = r.Resolve(context.Background(), zipPath, ".zip")
	require.NoError(t, err)
	assert.Equal(t, zipPath, got)
}

func TestResolve_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Country\nEgypt\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := NewResolver(dir, newTestFetcher(), nil)
	got, err := r.Resolve(context.Background(), srv.URL+"/data/figure.csv", ".csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "figure.csv"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "Country\nEgypt\n", string(data))
}

func TestResolve_UnsupportedScheme(t *testing.T) {
	r := NewResolver(t.TempDir(), nil, nil)
	_, err := r.Resolve(context.Background(), "s3://bucket/key.xlsx", ".xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported scheme "s3"`)

	_, err = r.Resolve(context.Background(), "ftp://host/file.xlsx", ".xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher")
}

func TestResolver_CleanupTempDir(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"a.csv": "x"})
	r := NewResolver("", nil, nil)
	got, err := r.Resolve(context.Background(), zipPath, ".csv")
	require.NoError(t, err)
	_, err = os.Stat(got)
	require.NoError(t, err)

	require.NoError(t, r.Cleanup())
	_, err = os.Stat(got)
	assert.True(t, os.IsNotExist(err))
}
