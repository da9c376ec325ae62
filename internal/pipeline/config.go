package pipeline

import (
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/bivariate-map/internal/bivariate"
	"github.com/sells-group/bivariate-map/internal/boundary"
	"github.com/sells-group/bivariate-map/internal/choropleth"
	"github.com/sells-group/bivariate-map/internal/config"
	"github.com/sells-group/bivariate-map/internal/dataset"
	"github.com/sells-group/bivariate-map/internal/fetcher"
	"github.com/sells-group/bivariate-map/internal/render"
)

// OptionsFromConfig translates the loaded configuration into generator
// options. The store is left for the caller to attach.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	aScale, err := bivariate.ParseHexes(cfg.Colors.AScale)
	if err != nil {
		return Options{}, eris.Wrap(err, "pipeline: colors.a_scale")
	}
	bScale, err := bivariate.ParseHexes(cfg.Colors.BScale)
	if err != nil {
		return Options{}, eris.Wrap(err, "pipeline: colors.b_scale")
	}
	ro, err := RenderOptions(cfg.Render)
	if err != nil {
		return Options{}, err
	}
	return Options{
		AxisB: Axis{
			Column:        cfg.AxisB.Column,
			MissingColumn: cfg.AxisB.MissingColumn,
			Cutoffs:       bivariate.Cutoffs(cfg.AxisB.Cutoffs).Clone(),
			Label:         cfg.AxisB.Label,
		},
		AScale:    aScale,
		BScale:    bScale,
		Blend:     cfg.Colors.Blend,
		Join:      choropleth.JoinOptions{Aliases: cfg.Join.Aliases},
		Render:    ro,
		OutputDir: cfg.Render.OutputDir,
	}, nil
}

// RenderOptions converts the render section, keeping defaults for unset values.
func RenderOptions(rc config.RenderConfig) (render.Options, error) {
	o := render.DefaultOptions()
	if rc.WidthIn > 0 {
		o.WidthIn = rc.WidthIn
	}
	if rc.HeightIn > 0 {
		o.HeightIn = rc.HeightIn
	}
	if rc.DPI > 0 {
		o.DPI = rc.DPI
	}
	switch len(rc.Extent) {
	case 0:
	case 4:
		o.Extent = render.Extent{MinLon: rc.Extent[0], MinLat: rc.Extent[1], MaxLon: rc.Extent[2], MaxLat: rc.Extent[3]}
	default:
		return render.Options{}, eris.Errorf("pipeline: render.extent needs 4 values, got %d", len(rc.Extent))
	}
	if rc.EdgeWidth > 0 {
		o.EdgeWidth = rc.EdgeWidth
	}
	if rc.HatchWidth > 0 {
		o.HatchWidth = rc.HatchWidth
	}
	if rc.HatchSpacing > 0 {
		o.HatchSpacing = rc.HatchSpacing
	}
	if rc.DotSpacing > 0 {
		o.DotSpacing = rc.DotSpacing
	}
	if rc.DotRadius > 0 {
		o.DotRadius = rc.DotRadius
	}
	if rc.FontSize > 0 {
		o.FontSize = rc.FontSize
	}
	if rc.MissingFill != "" {
		c, err := bivariate.ParseHex(rc.MissingFill)
		if err != nil {
			return render.Options{}, eris.Wrap(err, "pipeline: render.missing_fill")
		}
		o.MissingFill = c
	}
	if rc.Legend.Size > 0 {
		o.Legend = render.LegendBox{X: rc.Legend.X, Y: rc.Legend.Y, Size: rc.Legend.Size}
	}
	return o, nil
}

// SpecsFromConfig returns the configured maps, restricted to names when any
// are given. An unknown name is an error.
func SpecsFromConfig(cfg *config.Config, names ...string) ([]MapSpec, error) {
	toSpec := func(m config.MapConfig) MapSpec {
		return MapSpec{
			Name:           m.Name,
			AColumn:        m.Column,
			AMissingColumn: m.MissingColumn,
			ACutoffs:       bivariate.Cutoffs(m.Cutoffs).Clone(),
			Output:         m.Output,
			ALabel:         m.Label,
		}
	}
	if len(names) == 0 {
		specs := make([]MapSpec, len(cfg.Maps))
		for i, m := range cfg.Maps {
			specs[i] = toSpec(m)
		}
		return specs, nil
	}
	specs := make([]MapSpec, 0, len(names))
	for _, n := range names {
		m, ok := cfg.Map(n)
		if !ok {
			return nil, eris.Errorf("pipeline: unknown map %q", n)
		}
		specs = append(specs, toSpec(m))
	}
	return specs, nil
}

// SourcesFromConfig returns the data and boundary locations.
func SourcesFromConfig(cfg *config.Config) Sources {
	var delim rune
	if d := []rune(cfg.Data.Delimiter); len(d) > 0 {
		delim = d[0]
	}
	return Sources{
		Data: cfg.Data.Source,
		Dataset: dataset.Options{
			Sheet:         cfg.Data.Sheet,
			Delimiter:     delim,
			NameColumn:    cfg.Data.NameColumn,
			MissingMarker: cfg.Data.MissingMarker,
		},
		Boundaries: cfg.Boundaries.Source,
		Boundary:   boundary.Options{NameField: cfg.Boundaries.NameField},
	}
}

// ResolverFromConfig builds the source resolver with HTTP and FTP fetchers.
func ResolverFromConfig(cfg *config.Config) *fetcher.Resolver {
	httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   cfg.Fetch.UserAgent,
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:  cfg.Fetch.MaxRetries,
		RatePerHost: rate.Limit(cfg.Fetch.RatePerHost),
	})
	ftpF := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		Timeout:  time.Duration(cfg.Fetch.FTPTimeoutSecs) * time.Second,
		User:     cfg.Fetch.FTPUser,
		Password: cfg.Fetch.FTPPassword,
	})
	return fetcher.NewResolver(cfg.Fetch.CacheDir, httpF, ftpF)
}
