// Package pipeline turns a loaded table and boundary set into bivariate maps:
// classify, color, join, render and optionally record each run.
package pipeline

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bivariate-map/internal/bivariate"
	"github.com/sells-group/bivariate-map/internal/boundary"
	"github.com/sells-group/bivariate-map/internal/choropleth"
	"github.com/sells-group/bivariate-map/internal/dataset"
	"github.com/sells-group/bivariate-map/internal/model"
	"github.com/sells-group/bivariate-map/internal/render"
	"github.com/sells-group/bivariate-map/internal/store"
)

// MapSpec is one figure: the axis-A indicator, its cutoffs, the output file
// and the legend's x label.
type MapSpec struct {
	Name           string
	AColumn        string
	AMissingColumn string
	ACutoffs       bivariate.Cutoffs
	Output         string
	ALabel         string
}

// Axis names the table columns and cutoffs of the shared axis B.
type Axis struct {
	Column        string
	MissingColumn string
	Cutoffs       bivariate.Cutoffs
	Label         string
}

// Options is the configuration fixed for every map a Generator produces.
type Options struct {
	AxisB     Axis
	AScale    []bivariate.Color
	BScale    []bivariate.Color
	Blend     float64
	Join      choropleth.JoinOptions
	Render    render.Options
	OutputDir string
	// Store records runs when set.
	Store store.Store
}

// Inputs are the loaded sources shared read-only by all maps.
type Inputs struct {
	Table    *dataset.Table
	Features []model.Feature
}

// Generator produces maps from fixed inputs. It is safe for concurrent use.
type Generator struct {
	opts       Options
	in         Inputs
	classifier *bivariate.Classifier
	palette    bivariate.Palette
}

// New validates the fixed configuration and builds the palette. Malformed
// axis-B cutoffs or color scales fail here, before any map is attempted.
func New(opts Options, in Inputs) (*Generator, error) {
	if in.Table == nil {
		return nil, eris.New("pipeline: no table loaded")
	}
	c, err := bivariate.NewClassifier(opts.AxisB.Cutoffs)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: axis B")
	}
	p, err := bivariate.BuildPalette(opts.AScale, opts.BScale, opts.Blend)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: palette")
	}
	if _, rows := p.Dims(); rows != c.Cutoffs().Bins() {
		return nil, eris.Wrapf(bivariate.ErrPaletteMismatch,
			"pipeline: axis B has %d bins, palette has %d rows", c.Cutoffs().Bins(), rows)
	}
	return &Generator{opts: opts, in: in, classifier: c, palette: p}, nil
}

// Palette returns the blended palette.
func (g *Generator) Palette() bivariate.Palette { return g.palette }

// AxisB returns the shared axis configuration.
func (g *Generator) AxisB() Axis { return g.opts.AxisB }

// Inputs returns the loaded sources.
func (g *Generator) Inputs() Inputs { return g.in }

// Classification is a classified, colored and joined map ready to draw.
type Classification struct {
	Spec        MapSpec
	Binding     bivariate.Binding
	Assignments []choropleth.Assignment
	Join        choropleth.JoinResult
	Counts      []int
}

// Map returns the drawable map with its legend.
func (c *Classification) Map(p bivariate.Palette, b Axis) render.Map {
	return render.Map{
		Regions: c.Join.Regions,
		Legend: &render.Legend{
			Palette:  p,
			ACutoffs: c.Binding.ACutoffs(),
			BCutoffs: c.Binding.BCutoffs(),
			ALabel:   c.Spec.ALabel,
			BLabel:   b.Label,
		},
	}
}

// Classify runs every step except drawing.
func (g *Generator) Classify(ctx context.Context, spec MapSpec) (*Classification, error) {
	if spec.Name == "" {
		return nil, eris.New("pipeline: map name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bd, err := g.classifier.Bind(spec.ACutoffs)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: map %s", spec.Name)
	}
	if err := g.palette.Check(bd); err != nil {
		return nil, eris.Wrapf(err, "pipeline: map %s", spec.Name)
	}

	entities, err := g.in.Table.Entities(dataset.Selector{
		A:        spec.AColumn,
		AMissing: spec.AMissingColumn,
		B:        g.opts.AxisB.Column,
		BMissing: g.opts.AxisB.MissingColumn,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: map %s", spec.Name)
	}

	assignments := choropleth.Colorize(entities, bd, g.palette)
	joined := choropleth.Join(g.in.Features, assignments, g.opts.Join)

	log := zap.L().With(zap.String("map", spec.Name))
	if n := len(joined.UnmatchedEntities); n > 0 {
		log.Warn("pipeline: table rows without a boundary",
			zap.Int("count", n),
			zap.Strings("names", joined.UnmatchedEntities),
		)
	}
	if n := len(joined.UnmatchedFeatures); n > 0 {
		log.Debug("pipeline: boundaries without a table row",
			zap.Int("count", n),
			zap.Strings("names", joined.UnmatchedFeatures),
		)
	}

	return &Classification{
		Spec:        spec,
		Binding:     bd,
		Assignments: assignments,
		Join:        joined,
		Counts:      choropleth.Counts(assignments, bd.Len()),
	}, nil
}

// Result summarizes one generated map.
type Result struct {
	Map               string        `json:"map"`
	Output            string        `json:"output"`
	RunID             string        `json:"run_id,omitempty"`
	Entities          int           `json:"entities"`
	Matched           int           `json:"matched"`
	Counts            []int         `json:"counts"`
	UnmatchedEntities []string      `json:"unmatched_entities,omitempty"`
	UnmatchedFeatures []string      `json:"unmatched_features,omitempty"`
	Duration          time.Duration `json:"duration"`
}

// OutputPath resolves spec.Output against the configured output directory.
func (g *Generator) OutputPath(spec MapSpec) string {
	if spec.Output == "" || filepath.IsAbs(spec.Output) || g.opts.OutputDir == "" {
		return spec.Output
	}
	return filepath.Join(g.opts.OutputDir, spec.Output)
}

// Generate classifies, draws and writes one map. The output format follows the
// file extension.
func (g *Generator) Generate(ctx context.Context, spec MapSpec) (*Result, error) {
	start := time.Now()
	out := g.OutputPath(spec)
	if out == "" {
		return nil, eris.Errorf("pipeline: map %s has no output path", spec.Name)
	}
	if _, err := render.FormatFromPath(out); err != nil {
		return nil, eris.Wrapf(err, "pipeline: map %s", spec.Name)
	}

	log := zap.L().With(zap.String("map", spec.Name), zap.String("output", out))
	log.Info("pipeline: generating map")

	var run *model.Run
	if g.opts.Store != nil {
		var err error
		run, err = g.opts.Store.CreateRun(ctx, spec.Name, out)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
	}
	fail := func(err error) error {
		if run != nil {
			if ferr := g.opts.Store.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
				log.Warn("pipeline: failed to record failure", zap.Error(ferr))
			}
		}
		return err
	}

	cl, err := g.Classify(ctx, spec)
	if err != nil {
		return nil, fail(err)
	}
	if err := render.WriteFile(out, cl.Map(g.palette, g.opts.AxisB), g.opts.Render); err != nil {
		return nil, fail(eris.Wrapf(err, "pipeline: map %s", spec.Name))
	}

	res := &Result{
		Map:               spec.Name,
		Output:            out,
		Entities:          len(cl.Assignments),
		Matched:           cl.Join.Matched(),
		Counts:            cl.Counts,
		UnmatchedEntities: cl.Join.UnmatchedEntities,
		UnmatchedFeatures: cl.Join.UnmatchedFeatures,
	}

	if run != nil {
		res.RunID = run.ID
		if err := g.record(ctx, run.ID, cl); err != nil {
			return nil, fail(err)
		}
	}

	res.Duration = time.Since(start)
	log.Info("pipeline: map written",
		zap.Int("entities", res.Entities),
		zap.Int("matched", res.Matched),
		zap.Int("unmatched", len(res.UnmatchedEntities)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// Render draws the map for spec in format f onto w without touching disk or
// the run store.
func (g *Generator) Render(ctx context.Context, spec MapSpec, f render.Format, w io.Writer) error {
	cl, err := g.Classify(ctx, spec)
	if err != nil {
		return err
	}
	return render.Render(w, f, cl.Map(g.palette, g.opts.AxisB), g.opts.Render)
}

func (g *Generator) record(ctx context.Context, runID string, cl *Classification) error {
	geoms := make(map[*choropleth.Assignment]*geom.MultiPolygon, len(cl.Join.Regions))
	for _, r := range cl.Join.Regions {
		if r.Assignment != nil {
			geoms[r.Assignment] = r.Feature.Geometry
		}
	}

	records := make([]model.AssignmentRecord, len(cl.Assignments))
	for i := range cl.Assignments {
		a := &cl.Assignments[i]
		rec := model.AssignmentRecord{
			RunID:    runID,
			Name:     a.Entity.Name,
			A:        store.Nullable(a.Entity.A),
			B:        store.Nullable(a.Entity.B),
			ABin:     a.Class.A,
			BBin:     a.Class.B,
			Class:    a.Class.Index,
			Color:    a.Color.Hex(),
			MissingA: a.Entity.MissingA,
			MissingB: a.Entity.MissingB,
		}
		if mp, ok := geoms[a]; ok {
			rec.Matched = true
			wkb, err := boundary.EncodeEWKB(mp)
			if err != nil {
				return eris.Wrapf(err, "pipeline: encode %s", a.Entity.Name)
			}
			rec.Geometry = wkb
		}
		records[i] = rec
	}

	if err := g.opts.Store.SaveAssignments(ctx, runID, records); err != nil {
		return eris.Wrap(err, "pipeline: save assignments")
	}
	summary := store.RunSummary{
		Entities:  len(cl.Assignments),
		Matched:   cl.Join.Matched(),
		Unmatched: len(cl.Join.UnmatchedEntities),
	}
	return eris.Wrap(g.opts.Store.CompleteRun(ctx, runID, summary), "pipeline: complete run")
}

// GenerateAll generates specs concurrently, at most concurrency at a time.
// Results keep the order of specs. The first failure cancels maps not yet
// started and is returned.
func (g *Generator) GenerateAll(ctx context.Context, specs []MapSpec, concurrency int) ([]*Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]*Result, len(specs))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, spec := range specs {
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := g.Generate(gCtx, spec)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
