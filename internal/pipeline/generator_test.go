package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/bivariate-map/internal/bivariate"
	"github.com/sells-group/bivariate-map/internal/choropleth"
	"github.com/sells-group/bivariate-map/internal/dataset"
	"github.com/sells-group/bivariate-map/internal/model"
	"github.com/sells-group/bivariate-map/internal/render"
	"github.com/sells-group/bivariate-map/internal/store"
)

func square(minLon, minLat, size float64) *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{minLon, minLat}, {minLon, minLat + size}, {minLon + size, minLat + size}, {minLon + size, minLat}, {minLon, minLat},
	}}})
}

func hexes(t *testing.T, ss ...string) []bivariate.Color {
	t.Helper()
	cs, err := bivariate.ParseHexes(ss)
	require.NoError(t, err)
	return cs
}

func testTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.FromRows([][]string{
		{"Country", "y_IDR", "no_IDR", "x_Under", "no_Under"},
		{"Chad", "12", "", "31.5", ""},
		{"Peru", "5", " ", "3", ""},
		{"Yemen", "", "", "", " "},
		{"Atlantis", "50", "", "10", ""},
	}, dataset.Options{NameColumn: "Country", MissingMarker: " "})
	require.NoError(t, err)
	return tbl
}

func testOptions(t *testing.T) Options {
	t.Helper()
	ro := render.DefaultOptions()
	ro.WidthIn, ro.HeightIn, ro.DPI = 4, 2, 72
	return Options{
		AxisB: Axis{
			Column:        "y_IDR",
			MissingColumn: "no_IDR",
			Cutoffs:       bivariate.Cutoffs{0, 10, 40, 100},
			Label:         "Wheat Import Dependence (%)",
		},
		AScale:    hexes(t, "#e8e8e8", "#83c3da", "#0069A6"),
		BScale:    hexes(t, "#f4e3da", "#f4a36a", "#E76800"),
		Blend:     0.5,
		Render:    ro,
		OutputDir: t.TempDir(),
	}
}

func testInputs(t *testing.T) Inputs {
	return Inputs{
		Table: testTable(t),
		Features: []model.Feature{
			{Name: "Chad", Geometry: square(14, 8, 10)},
			{Name: "Peru", Geometry: square(-80, -15, 10)},
			{Name: "Yemen", Geometry: square(44, 13, 5)},
			{Name: "Greenland", Geometry: square(-50, 60, 20)},
		},
	}
}

func testSpec() MapSpec {
	return MapSpec{
		Name:           "undernourishment",
		AColumn:        "x_Under",
		AMissingColumn: "no_Under",
		ACutoffs:       bivariate.Cutoffs{0, 5, 20, 55},
		Output:         "figure.png",
		ALabel:         "Prevalence of Undernourishment (%)",
	}
}

func newTestGenerator(t *testing.T, st store.Store) *Generator {
	t.Helper()
	opts := testOptions(t)
	opts.Store = st
	g, err := New(opts, testInputs(t))
	require.NoError(t, err)
	return g
}

func TestNew_RejectsMalformedConfig(t *testing.T) {
	opts := testOptions(t)
	opts.AxisB.Cutoffs = bivariate.Cutoffs{0, 40, 10, 100}
	_, err := New(opts, testInputs(t))
	assert.ErrorIs(t, err, bivariate.ErrInvalidCutoffs)

	opts = testOptions(t)
	opts.BScale = opts.BScale[:2]
	_, err = New(opts, testInputs(t))
	assert.ErrorIs(t, err, bivariate.ErrPaletteMismatch)

	opts = testOptions(t)
	opts.AScale = nil
	_, err = New(opts, testInputs(t))
	assert.Error(t, err)

	_, err = New(testOptions(t), Inputs{})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	g := newTestGenerator(t, nil)

	cl, err := g.Classify(context.Background(), testSpec())
	require.NoError(t, err)
	require.Len(t, cl.Assignments, 4)

	byName := map[string]choropleth.Assignment{}
	for _, a := range cl.Assignments {
		byName[a.Entity.Name] = a
	}

	chad := byName["Chad"]
	assert.Equal(t, bivariate.Class{A: 2, B: 1, Index: 5}, chad.Class)
	assert.Equal(t, "#7a8688", chad.Color.Hex())
	assert.Equal(t, choropleth.HatchNone, chad.Hatch)

	peru := byName["Peru"]
	assert.Equal(t, 0, peru.Class.Index)
	assert.True(t, peru.Hatch.Has(choropleth.HatchDiagonal))

	// blank values saturate to the top bins and keep the dots overlay
	yemen := byName["Yemen"]
	assert.Equal(t, 8, yemen.Class.Index)
	assert.True(t, yemen.Hatch.Has(choropleth.HatchDots))

	assert.Equal(t, 3, cl.Join.Matched())
	assert.Equal(t, []string{"Atlantis"}, cl.Join.UnmatchedEntities)
	assert.Equal(t, []string{"Greenland"}, cl.Join.UnmatchedFeatures)
	assert.Equal(t, 4, sum(cl.Counts))
	assert.Equal(t, 1, cl.Counts[5])
}

func sum(xs []int) int {
	var n int
	for _, x := range xs {
		n += x
	}
	return n
}

func TestClassify_Errors(t *testing.T) {
	g := newTestGenerator(t, nil)
	ctx := context.Background()

	spec := testSpec()
	spec.ACutoffs = bivariate.Cutoffs{5}
	_, err := g.Classify(ctx, spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, bivariate.ErrInvalidCutoffs)
	assert.Contains(t, err.Error(), "axis A")

	spec = testSpec()
	spec.ACutoffs = bivariate.Cutoffs{0, 5, 20, 55, 80}
	_, err = g.Classify(ctx, spec)
	assert.ErrorIs(t, err, bivariate.ErrPaletteMismatch)

	spec = testSpec()
	spec.AColumn = "x_Stunting"
	_, err = g.Classify(ctx, spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x_Stunting")

	spec = testSpec()
	spec.Name = ""
	_, err = g.Classify(ctx, spec)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = g.Classify(cancelled, testSpec())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_WritesAndRecords(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	g := newTestGenerator(t, st)
	res, err := g.Generate(context.Background(), testSpec())
	require.NoError(t, err)

	assert.Equal(t, "undernourishment", res.Map)
	assert.Equal(t, 4, res.Entities)
	assert.Equal(t, 3, res.Matched)
	assert.Equal(t, []string{"Atlantis"}, res.UnmatchedEntities)
	info, err := os.Stat(res.Output)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.NotEmpty(t, res.RunID)
	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 3, run.Matched)
	assert.Equal(t, 1, run.Unmatched)

	recs, err := st.ListAssignments(context.Background(), res.RunID)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	for _, r := range recs {
		if r.Name == "Atlantis" {
			assert.False(t, r.Matched)
			assert.Nil(t, r.Geometry)
			continue
		}
		assert.True(t, r.Matched, r.Name)
		assert.NotEmpty(t, r.Geometry, r.Name)
		if r.Name == "Yemen" {
			assert.Nil(t, r.A)
			assert.True(t, r.MissingA)
		}
	}
}

func TestGenerate_FailureIsRecorded(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	g := newTestGenerator(t, st)
	spec := testSpec()
	spec.AColumn = "nope"
	_, err = g.Generate(context.Background(), spec)
	require.Error(t, err)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{MapName: spec.Name})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "nope")
}

func TestGenerate_RejectsUnknownExtension(t *testing.T) {
	g := newTestGenerator(t, nil)
	spec := testSpec()
	spec.Output = "figure.gif"
	_, err := g.Generate(context.Background(), spec)
	assert.ErrorIs(t, err, render.ErrUnsupportedFormat)
}

func TestGenerateAll(t *testing.T) {
	g := newTestGenerator(t, nil)

	second := testSpec()
	second.Name = "second"
	second.Output = "second.svg"
	second.ACutoffs = bivariate.Cutoffs{0, 2, 8, 40}

	results, err := g.GenerateAll(context.Background(), []MapSpec{testSpec(), second}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "undernourishment", results[0].Map)
	assert.Equal(t, "second", results[1].Map)
	for _, r := range results {
		_, err := os.Stat(r.Output)
		assert.NoError(t, err)
	}
}

func TestGenerateAll_StopsOnError(t *testing.T) {
	g := newTestGenerator(t, nil)
	bad := testSpec()
	bad.Name = "bad"
	bad.ACutoffs = nil

	_, err := g.GenerateAll(context.Background(), []MapSpec{bad, testSpec()}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, bivariate.ErrInvalidCutoffs)
}

func TestRender_ToWriter(t *testing.T) {
	g := newTestGenerator(t, nil)
	var buf bytes.Buffer
	require.NoError(t, g.Render(context.Background(), testSpec(), render.SVG, &buf))
	assert.Contains(t, buf.String(), "<svg")
}

func TestOutputPath(t *testing.T) {
	g := newTestGenerator(t, nil)
	dir := g.opts.OutputDir

	assert.Equal(t, filepath.Join(dir, "a.png"), g.OutputPath(MapSpec{Output: "a.png"}))
	abs := filepath.Join(t.TempDir(), "b.png")
	assert.Equal(t, abs, g.OutputPath(MapSpec{Output: abs}))
	assert.Empty(t, g.OutputPath(MapSpec{}))
}
