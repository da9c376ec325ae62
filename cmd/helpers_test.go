//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/bivariate-map/internal/config"
	"github.com/sells-group/bivariate-map/internal/dataset"
	"github.com/sells-group/bivariate-map/internal/model"
	"github.com/sells-group/bivariate-map/internal/pipeline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Data:       config.DataConfig{Source: "data/figure.csv", NameColumn: "Country", MissingMarker: " "},
		Boundaries: config.BoundaryConfig{Source: "data/countries.shp", NameField: "NAME"},
		AxisB: config.AxisConfig{
			Column: "y_IDR", MissingColumn: "no_IDR",
			Cutoffs: []float64{0, 10, 40, 100},
			Label:   "Wheat Import Dependence (%)",
		},
		Colors: config.ColorConfig{
			AScale: []string{"#e8e8e8", "#83c3da", "#0069A6"},
			BScale: []string{"#f4e3da", "#f4a36a", "#E76800"},
			Blend:  0.5,
		},
		Maps: []config.MapConfig{{
			Name: "undernourishment", Column: "x_Under", MissingColumn: "no_Under",
			Cutoffs: []float64{0, 5, 20, 55}, Output: "figure-1.png",
			Label: "Prevalence of Undernourishment (%)",
		}},
		Render: config.RenderConfig{OutputDir: t.TempDir(), WidthIn: 4, HeightIn: 2, DPI: 72, Concurrency: 2},
		Server: config.ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}},
		Store:  config.StoreConfig{Driver: "sqlite"},
	}
}

func square(minLon, minLat, size float64) *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{minLon, minLat}, {minLon, minLat + size}, {minLon + size, minLat + size}, {minLon + size, minLat}, {minLon, minLat},
	}}})
}

func testGenerator(t *testing.T, c *config.Config) *pipeline.Generator {
	t.Helper()
	table, err := dataset.FromRows([][]string{
		{"Country", "y_IDR", "no_IDR", "x_Under", "no_Under"},
		{"Chad", "12", "", "31.5", ""},
		{"Peru", "5", " ", "3", ""},
		{"Atlantis", "50", "", "10", ""},
	}, dataset.Options{NameColumn: "Country", MissingMarker: " "})
	require.NoError(t, err)

	opts, err := pipeline.OptionsFromConfig(c)
	require.NoError(t, err)
	gen, err := pipeline.New(opts, pipeline.Inputs{
		Table: table,
		Features: []model.Feature{
			{Name: "Chad", Geometry: square(14, 8, 10)},
			{Name: "Peru", Geometry: square(-80, -15, 10)},
			{Name: "Greenland", Geometry: square(-50, 60, 20)},
		},
	})
	require.NoError(t, err)
	return gen
}
