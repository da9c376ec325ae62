package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bivariate-map/internal/bivariate"
	"github.com/sells-group/bivariate-map/internal/config"
	"github.com/sells-group/bivariate-map/internal/render"
)

func testConfig() *config.Config {
	return &config.Config{
		Data: config.DataConfig{Source: "data/figure.csv", Delimiter: ";", NameColumn: "Country", MissingMarker: " "},
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
		Maps: []config.MapConfig{
			{Name: "undernourishment", Column: "x_Under", Cutoffs: []float64{0, 5, 20, 55}, Output: "a.png"},
			{Name: "stunting", Column: "x_Stunting", Cutoffs: []float64{0, 10, 20, 40}, Output: "b.svg"},
		},
		Join: config.JoinConfig{Aliases: map[string]string{"cote d'ivoire": "Côte d'Ivoire"}},
		Render: config.RenderConfig{
			OutputDir: "outputs",
			DPI:       150,
			Extent:    []float64{-20, -40, 60, 40},
		},
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(testConfig())
	require.NoError(t, err)

	assert.Equal(t, bivariate.Cutoffs{0, 10, 40, 100}, opts.AxisB.Cutoffs)
	assert.Equal(t, "#0069a6", opts.AScale[2].Hex())
	assert.InDelta(t, 0.5, opts.Blend, 1e-9)
	assert.Equal(t, "outputs", opts.OutputDir)
	assert.Equal(t, "Côte d'Ivoire", opts.Join.Aliases["cote d'ivoire"])
	assert.Equal(t, 150, opts.Render.DPI)
	assert.Equal(t, render.Extent{MinLon: -20, MinLat: -40, MaxLon: 60, MaxLat: 40}, opts.Render.Extent)

	cfg := testConfig()
	cfg.Colors.BScale = []string{"orange"}
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}

func TestRenderOptions_Defaults(t *testing.T) {
	o, err := RenderOptions(config.RenderConfig{})
	require.NoError(t, err)
	assert.Equal(t, render.DefaultOptions(), o)

	o, err = RenderOptions(config.RenderConfig{MissingFill: "#cccccc", Legend: config.LegendConfig{X: 0.1, Y: 0.2, Size: 0.3}})
	require.NoError(t, err)
	assert.Equal(t, "#cccccc", o.MissingFill.Hex())
	assert.Equal(t, render.LegendBox{X: 0.1, Y: 0.2, Size: 0.3}, o.Legend)

	_, err = RenderOptions(config.RenderConfig{Extent: []float64{1, 2}})
	assert.Error(t, err)
	_, err = RenderOptions(config.RenderConfig{MissingFill: "grey"})
	assert.Error(t, err)
}

func TestSpecsFromConfig(t *testing.T) {
	cfg := testConfig()

	all, err := SpecsFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "x_Under", all[0].AColumn)
	assert.Equal(t, bivariate.Cutoffs{0, 5, 20, 55}, all[0].ACutoffs)

	one, err := SpecsFromConfig(cfg, "stunting")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "b.svg", one[0].Output)

	_, err = SpecsFromConfig(cfg, "wasting")
	assert.Error(t, err)
}

func TestSourcesFromConfig(t *testing.T) {
	src := SourcesFromConfig(testConfig())
	assert.Equal(t, "data/figure.csv", src.Data)
	assert.Equal(t, ';', src.Dataset.Delimiter)
	assert.Equal(t, " ", src.Dataset.MissingMarker)
}

func TestResolverFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Fetch = config.FetchConfig{CacheDir: t.TempDir(), TimeoutSecs: 5, MaxRetries: 1, RatePerHost: 2}
	assert.NotNil(t, ResolverFromConfig(cfg))
}
