package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"ne/countries.shp": "shp",
		"ne/countries.dbf": "dbf",
		"README.txt":       "readme",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	data, err := os.ReadFile(filepath.Join(destDir, "ne", "countries.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "dbf", string(data))
}

func TestExtractZIP_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../evil.txt": "x"})

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
}

func TestFindByExt(t *testing.T) {
	paths := []string{
		"/tmp/x/__MACOSX/b.shp",
		"/tmp/x/b.SHP",
		"/tmp/x/a.dbf",
		"/tmp/x/.hidden.shp",
	}
	got, err := FindByExt(paths, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x/b.SHP", got)

	_, err = FindByExt(paths, ".xlsx")
	assert.Error(t, err)
}
