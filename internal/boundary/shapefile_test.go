package boundary

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bivariate-map/internal/fetcher"
)

func writeTestShapefile(t *testing.T, names []string, polys []*shp.Polygon) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "countries.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 40)}))
	for i, p := range polys {
		n := w.Write(p)
		require.NoError(t, w.WriteAttribute(int(n), 0, names[i]))
	}
	w.Close()
	fixDBFName(t, path)
	return path
}

// fixDBFName moves the attribute table that shp.Create writes as "<base>dbf"
// to "<base>.dbf", where shp.Open looks for it.
func fixDBFName(t *testing.T, shpPath string) {
	t.Helper()
	base := strings.TrimSuffix(shpPath, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	require.FileExists(t, base+".dbf")
}

func TestReadShapefile(t *testing.T) {
	path := writeTestShapefile(t,
		[]string{"Egypt", "Chad"},
		[]*shp.Polygon{newPolygon(cwSquare(25, 22, 10)), newPolygon(cwSquare(14, 8, 8))},
	)

	features, err := ReadShapefile(path, Options{})
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "Egypt", features[0].Name)
	assert.Equal(t, "Chad", features[1].Name)
	assert.Equal(t, 1, features[1].Geometry.NumPolygons())
}

func TestReadShapefile_UnknownField(t *testing.T) {
	path := writeTestShapefile(t, []string{"Egypt"}, []*shp.Polygon{newPolygon(cwSquare(0, 0, 1))})

	_, err := ReadShapefile(path, Options{NameField: "ADMIN"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "ADMIN" not found`)
}

func TestReadShapefile_Missing(t *testing.T) {
	_, err := ReadShapefile(filepath.Join(t.TempDir(), "none.shp"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetcher.ErrSourceUnavailable))
}
