package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/figure-data.xlsx", cfg.Data.Source)
	assert.Equal(t, "data", cfg.Data.Sheet)
	assert.Equal(t, "Country", cfg.Data.NameColumn)
	assert.Equal(t, " ", cfg.Data.MissingMarker)
	assert.Equal(t, "NAME", cfg.Boundaries.NameField)
	assert.Equal(t, "y_IDR", cfg.AxisB.Column)
	assert.Equal(t, "no_IDR", cfg.AxisB.MissingColumn)
	assert.Equal(t, []float64{0, 10, 40, 100}, cfg.AxisB.Cutoffs)
	assert.Equal(t, "Wheat Import Dependence (%)", cfg.AxisB.Label)
	assert.Equal(t, []string{"#e8e8e8", "#83c3da", "#0069A6"}, cfg.Colors.AScale)
	assert.Equal(t, []string{"#f4e3da", "#f4a36a", "#E76800"}, cfg.Colors.BScale)
	assert.InDelta(t, 0.5, cfg.Colors.Blend, 0.001)

	require.Len(t, cfg.Maps, 1)
	m := cfg.Maps[0]
	assert.Equal(t, "undernourishment", m.Name)
	assert.Equal(t, "x_Undernourishment", m.Column)
	assert.Equal(t, "no_Undernourishment", m.MissingColumn)
	assert.Equal(t, []float64{0, 5, 20, 55}, m.Cutoffs)
	assert.Equal(t, "figure-1-undernourishment.jpeg", m.Output)

	assert.InDelta(t, 20, cfg.Render.WidthIn, 0.001)
	assert.InDelta(t, 10, cfg.Render.HeightIn, 0.001)
	assert.Equal(t, 300, cfg.Render.DPI)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.NoError(t, cfg.Validate("render"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data:
  source: table.csv
log:
  level: debug
  format: console
maps:
  - name: stunting
    column: x_Stunting
    missing_column: no_Stunting
    cutoffs: [0, 10, 30, 60]
    output: stunting.png
    label: Stunting (%)
  - name: wasting
    column: x_Wasting
    cutoffs: [0, 2, 5, 15]
    output: wasting.svg
join:
  aliases:
    United States of America: United States
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "table.csv", cfg.Data.Source)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	require.Len(t, cfg.Maps, 2)
	assert.Equal(t, []float64{0, 10, 30, 60}, cfg.Maps[0].Cutoffs)

	m, ok := cfg.Map("wasting")
	require.True(t, ok)
	assert.Equal(t, "wasting.svg", m.Output)
	_, ok = cfg.Map("missing")
	assert.False(t, ok)

	// viper lower-cases map keys
	assert.Equal(t, "United States", cfg.Join.Aliases["united states of america"])

	// Defaults still apply for unset values
	assert.Equal(t, "y_IDR", cfg.AxisB.Column)
}

func TestLoadFile_ExplicitPath(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("render:\n  dpi: 150\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Render.DPI)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("BIVARIATE_STORE_DRIVER", "postgres")
	t.Setenv("BIVARIATE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("BIVARIATE_SERVER_PORT", "3000")
	t.Setenv("BIVARIATE_RENDER_DPI", "96")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 96, cfg.Render.DPI)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Data.Source = "data.xlsx"
	cfg.Data.MissingMarker = " "
	cfg.Boundaries.Source = "world.shp"
	cfg.AxisB = AxisConfig{Column: "y_IDR", Cutoffs: []float64{0, 10, 40, 100}}
	cfg.Colors = ColorConfig{
		AScale: []string{"#e8e8e8", "#83c3da", "#0069A6"},
		BScale: []string{"#f4e3da", "#f4a36a", "#E76800"},
		Blend:  0.5,
	}
	cfg.Maps = []MapConfig{{Name: "m", Column: "x", Cutoffs: []float64{0, 5, 20, 55}, Output: "m.png"}}
	cfg.Render = RenderConfig{WidthIn: 20, HeightIn: 10, DPI: 300, Concurrency: 2}
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	for _, mode := range []string{"render", "serve", "watch"} {
		assert.NoError(t, validDefaults().Validate(mode), mode)
	}
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("render"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_MalformedCutoffsNameTheAxis(t *testing.T) {
	cfg := validDefaults()
	cfg.AxisB.Cutoffs = []float64{0, 40, 10, 100}
	cfg.Maps[0].Cutoffs = []float64{5}

	err := cfg.Validate("render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "axis B")
	assert.Contains(t, err.Error(), "map m: bivariate: axis A")
}

func TestValidate_EmptyMissingMarker(t *testing.T) {
	cfg := validDefaults()
	cfg.Data.MissingMarker = ""

	err := cfg.Validate("render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.missing_marker must not be empty")
}

func TestValidate_ScaleMismatch(t *testing.T) {
	cfg := validDefaults()
	cfg.Maps[0].Cutoffs = []float64{0, 5, 20, 55, 80}

	err := cfg.Validate("render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map m: 4 bins but colors.a_scale has 3 colors")
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Data.Source = ""
	cfg.Colors.AScale = []string{"blue"}
	cfg.Colors.Blend = 1.5
	cfg.Maps = append(cfg.Maps, MapConfig{Name: "m", Cutoffs: []float64{0, 1, 2, 3}})
	cfg.Store.Driver = "mysql"
	cfg.Render.Concurrency = 0

	err := cfg.Validate("render")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "data.source is required")
	assert.Contains(t, msg, "colors.a_scale")
	assert.Contains(t, msg, "colors.blend must be between 0 and 1")
	assert.Contains(t, msg, `map "m" is defined twice`)
	assert.Contains(t, msg, "map m: column is required")
	assert.Contains(t, msg, `store.driver "mysql"`)
	assert.Contains(t, msg, "render.concurrency must be between 1 and 16")
}
