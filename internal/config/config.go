package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/bivariate-map/internal/bivariate"
)

// Config holds the full application configuration.
type Config struct {
	Data       DataConfig     `yaml:"data" mapstructure:"data"`
	Boundaries BoundaryConfig `yaml:"boundaries" mapstructure:"boundaries"`
	AxisB      AxisConfig     `yaml:"axis_b" mapstructure:"axis_b"`
	Colors     ColorConfig    `yaml:"colors" mapstructure:"colors"`
	Maps       []MapConfig    `yaml:"maps" mapstructure:"maps"`
	Join       JoinConfig     `yaml:"join" mapstructure:"join"`
	Render     RenderConfig   `yaml:"render" mapstructure:"render"`
	Fetch      FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Store      StoreConfig    `yaml:"store" mapstructure:"store"`
	Server     ServerConfig   `yaml:"server" mapstructure:"server"`
	Watch      WatchConfig    `yaml:"watch" mapstructure:"watch"`
	Log        LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the entity table.
type DataConfig struct {
	Source        string `yaml:"source" mapstructure:"source"`
	Sheet         string `yaml:"sheet" mapstructure:"sheet"`
	Delimiter     string `yaml:"delimiter" mapstructure:"delimiter"`
	NameColumn    string `yaml:"name_column" mapstructure:"name_column"`
	MissingMarker string `yaml:"missing_marker" mapstructure:"missing_marker"`
}

// BoundaryConfig locates the country polygons.
type BoundaryConfig struct {
	Source    string `yaml:"source" mapstructure:"source"`
	NameField string `yaml:"name_field" mapstructure:"name_field"`
}

// AxisConfig describes one measurement axis.
type AxisConfig struct {
	Column        string    `yaml:"column" mapstructure:"column"`
	MissingColumn string    `yaml:"missing_column" mapstructure:"missing_column"`
	Cutoffs       []float64 `yaml:"cutoffs" mapstructure:"cutoffs"`
	Label         string    `yaml:"label" mapstructure:"label"`
}

// ColorConfig holds the two base scales and their blend ratio.
type ColorConfig struct {
	AScale []string `yaml:"a_scale" mapstructure:"a_scale"`
	BScale []string `yaml:"b_scale" mapstructure:"b_scale"`
	Blend  float64  `yaml:"blend" mapstructure:"blend"`
}

// MapConfig is one figure: an axis-A indicator paired with the shared axis B.
type MapConfig struct {
	Name          string    `yaml:"name" mapstructure:"name"`
	Column        string    `yaml:"column" mapstructure:"column"`
	MissingColumn string    `yaml:"missing_column" mapstructure:"missing_column"`
	Cutoffs       []float64 `yaml:"cutoffs" mapstructure:"cutoffs"`
	Output        string    `yaml:"output" mapstructure:"output"`
	Label         string    `yaml:"label" mapstructure:"label"`
}

// JoinConfig tunes matching table names to boundary names.
type JoinConfig struct {
	Aliases map[string]string `yaml:"aliases" mapstructure:"aliases"`
}

// RenderConfig controls the figure.
type RenderConfig struct {
	OutputDir    string       `yaml:"output_dir" mapstructure:"output_dir"`
	WidthIn      float64      `yaml:"width_in" mapstructure:"width_in"`
	HeightIn     float64      `yaml:"height_in" mapstructure:"height_in"`
	DPI          int          `yaml:"dpi" mapstructure:"dpi"`
	Extent       []float64    `yaml:"extent" mapstructure:"extent"`
	EdgeWidth    float64      `yaml:"edge_width" mapstructure:"edge_width"`
	HatchWidth   float64      `yaml:"hatch_width" mapstructure:"hatch_width"`
	HatchSpacing float64      `yaml:"hatch_spacing" mapstructure:"hatch_spacing"`
	DotSpacing   float64      `yaml:"dot_spacing" mapstructure:"dot_spacing"`
	DotRadius    float64      `yaml:"dot_radius" mapstructure:"dot_radius"`
	FontSize     float64      `yaml:"font_size" mapstructure:"font_size"`
	MissingFill  string       `yaml:"missing_fill" mapstructure:"missing_fill"`
	Legend       LegendConfig `yaml:"legend" mapstructure:"legend"`
	Concurrency  int          `yaml:"concurrency" mapstructure:"concurrency"`
}

// LegendConfig places the color key in figure fractions.
type LegendConfig struct {
	X    float64 `yaml:"x" mapstructure:"x"`
	Y    float64 `yaml:"y" mapstructure:"y"`
	Size float64 `yaml:"size" mapstructure:"size"`
}

// FetchConfig configures remote data sources.
type FetchConfig struct {
	CacheDir       string  `yaml:"cache_dir" mapstructure:"cache_dir"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerHost    float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	FTPTimeoutSecs int     `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
	FTPUser        string  `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword    string  `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Record      bool   `yaml:"record" mapstructure:"record"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// WatchConfig configures re-rendering on change.
type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_millis" mapstructure:"debounce_millis"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml in the working directory and the
// environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from config.yaml in the working
// directory when path is empty. A missing default file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("BIVARIATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.source", "data/figure-data.xlsx")
	v.SetDefault("data.sheet", "data")
	v.SetDefault("data.name_column", "Country")
	v.SetDefault("data.missing_marker", " ")
	v.SetDefault("boundaries.source", "data/ne_10m_admin_0_countries/ne_10m_admin_0_countries.shp")
	v.SetDefault("boundaries.name_field", "NAME")

	v.SetDefault("axis_b.column", "y_IDR")
	v.SetDefault("axis_b.missing_column", "no_IDR")
	v.SetDefault("axis_b.cutoffs", []float64{0, 10, 40, 100})
	v.SetDefault("axis_b.label", "Wheat Import Dependence (%)")

	v.SetDefault("colors.a_scale", []string{"#e8e8e8", "#83c3da", "#0069A6"})
	v.SetDefault("colors.b_scale", []string{"#f4e3da", "#f4a36a", "#E76800"})
	v.SetDefault("colors.blend", 0.5)

	v.SetDefault("maps", []map[string]any{{
		"name":           "undernourishment",
		"column":         "x_Undernourishment",
		"missing_column": "no_Undernourishment",
		"cutoffs":        []float64{0, 5, 20, 55},
		"output":         "figure-1-undernourishment.jpeg",
		"label":          "Prevelance of Undernourishment (%)",
	}})

	v.SetDefault("render.output_dir", "outputs")
	v.SetDefault("render.width_in", 20.0)
	v.SetDefault("render.height_in", 10.0)
	v.SetDefault("render.dpi", 300)
	v.SetDefault("render.extent", []float64{-180, -90, 180, 90})
	v.SetDefault("render.edge_width", 1.0)
	v.SetDefault("render.hatch_width", 0.5)
	v.SetDefault("render.hatch_spacing", 3.0)
	v.SetDefault("render.dot_spacing", 4.5)
	v.SetDefault("render.dot_radius", 0.6)
	v.SetDefault("render.font_size", 12.0)
	v.SetDefault("render.missing_fill", "#ffffff")
	v.SetDefault("render.legend.x", 0.12)
	v.SetDefault("render.legend.y", 0.32)
	v.SetDefault("render.legend.size", 0.2)
	v.SetDefault("render.concurrency", 2)

	v.SetDefault("fetch.user_agent", "bivariate-map/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_host", 5.0)
	v.SetDefault("fetch.ftp_timeout_secs", 30)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bivariate.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("watch.debounce_millis", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Map returns the map named name.
func (c *Config) Map(name string) (MapConfig, bool) {
	for _, m := range c.Maps {
		if m.Name == name {
			return m, true
		}
	}
	return MapConfig{}, false
}

// Validate checks the configuration needed by mode: render, serve or watch.
// All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "render", "watch":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Data.Source == "" {
		errs = append(errs, "data.source is required")
	}
	if c.Data.MissingMarker == "" {
		errs = append(errs, "data.missing_marker must not be empty")
	}
	if c.Boundaries.Source == "" {
		errs = append(errs, "boundaries.source is required")
	}
	if c.AxisB.Column == "" {
		errs = append(errs, "axis_b.column is required")
	}
	if err := bivariate.Cutoffs(c.AxisB.Cutoffs).Validate("B"); err != nil {
		errs = append(errs, err.Error())
	}
	if len(c.Colors.AScale) == 0 || len(c.Colors.BScale) == 0 {
		errs = append(errs, "colors.a_scale and colors.b_scale are required")
	}
	if _, err := bivariate.ParseHexes(c.Colors.AScale); err != nil {
		errs = append(errs, "colors.a_scale: "+err.Error())
	}
	if _, err := bivariate.ParseHexes(c.Colors.BScale); err != nil {
		errs = append(errs, "colors.b_scale: "+err.Error())
	}
	if c.Colors.Blend < 0 || c.Colors.Blend > 1 {
		errs = append(errs, "colors.blend must be between 0 and 1")
	}
	if len(c.AxisB.Cutoffs) > 0 && len(c.Colors.BScale) > 0 && len(c.AxisB.Cutoffs)-1 != len(c.Colors.BScale) {
		errs = append(errs, fmt.Sprintf("axis_b has %d bins but colors.b_scale has %d colors",
			len(c.AxisB.Cutoffs)-1, len(c.Colors.BScale)))
	}

	if len(c.Maps) == 0 {
		errs = append(errs, "at least one map is required")
	}
	seen := make(map[string]bool, len(c.Maps))
	for i, m := range c.Maps {
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("maps[%d]", i)
			errs = append(errs, name+".name is required")
		} else if seen[name] {
			errs = append(errs, fmt.Sprintf("map %q is defined twice", name))
		}
		seen[name] = true
		if m.Column == "" {
			errs = append(errs, fmt.Sprintf("map %s: column is required", name))
		}
		if m.Output == "" {
			errs = append(errs, fmt.Sprintf("map %s: output is required", name))
		}
		if err := bivariate.Cutoffs(m.Cutoffs).Validate("A"); err != nil {
			errs = append(errs, fmt.Sprintf("map %s: %s", name, err.Error()))
		} else if len(c.Colors.AScale) > 0 && len(m.Cutoffs)-1 != len(c.Colors.AScale) {
			errs = append(errs, fmt.Sprintf("map %s: %d bins but colors.a_scale has %d colors",
				name, len(m.Cutoffs)-1, len(c.Colors.AScale)))
		}
	}

	if c.Render.DPI <= 0 {
		errs = append(errs, "render.dpi must be > 0")
	}
	if c.Render.WidthIn <= 0 || c.Render.HeightIn <= 0 {
		errs = append(errs, "render.width_in and render.height_in must be > 0")
	}
	if n := len(c.Render.Extent); n != 0 && n != 4 {
		errs = append(errs, "render.extent must be [min_lon, min_lat, max_lon, max_lat]")
	}
	if c.Render.Concurrency < 1 || c.Render.Concurrency > 16 {
		errs = append(errs, "render.concurrency must be between 1 and 16")
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
