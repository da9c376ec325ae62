// Package boundary reads country boundaries from an ESRI shapefile into
// go-geom multipolygons keyed by name.
package boundary

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bivariate-map/internal/fetcher"
	"github.com/sells-group/bivariate-map/internal/model"
)

// Options configures shapefile reading.
type Options struct {
	// NameField is the attribute holding the join key. Default "NAME".
	NameField string
}

// ReadShapefile reads every polygon record of the shapefile at shpPath.
// Records without a polygon geometry are skipped and counted.
func ReadShapefile(shpPath string, opts Options) ([]model.Feature, error) {
	nameField := opts.NameField
	if nameField == "" {
		nameField = "NAME"
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(fetcher.ErrSourceUnavailable, "boundary: open shapefile %s: %v", shpPath, err)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	var available []string
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		available = append(available, name)
		if strings.EqualFold(name, nameField) {
			nameIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("boundary: field %q not found in %s (have %s)", nameField, shpPath, strings.Join(available, ", "))
	}

	var features []model.Feature
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		mp := ToMultiPolygon(shape)
		if mp == nil {
			skipped++
			continue
		}

		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		features = append(features, model.Feature{Name: name, Geometry: mp})
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	zap.L().Info("boundary: loaded features",
		zap.String("path", shpPath),
		zap.Int("features", len(features)),
	)

	return features, nil
}
