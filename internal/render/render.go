// Package render draws joined regions and the bivariate color key onto a
// plate carrée canvas and encodes the result by file extension.
package render

import (
	"bytes"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/bivariate-map/internal/bivariate"
	"github.com/sells-group/bivariate-map/internal/choropleth"
)

func init() {
	font.DefaultCache.Add(liberation.Collection())
}

// Options control page size, resolution and stroke geometry. Lengths are in
// points unless noted.
type Options struct {
	WidthIn  float64
	HeightIn float64
	DPI      int
	Extent   Extent

	Background  color.Color
	MissingFill bivariate.Color

	EdgeWidth    float64
	HatchWidth   float64
	HatchSpacing float64
	DotSpacing   float64
	DotRadius    float64
	FontSize     float64
	Frame        bool

	Legend LegendBox
}

// DefaultOptions reproduces a 20x10 inch figure at 300 dpi with the key in the
// South Pacific.
func DefaultOptions() Options {
	return Options{
		WidthIn:      20,
		HeightIn:     10,
		DPI:          300,
		Extent:       World,
		Background:   color.White,
		MissingFill:  bivariate.Color{R: 255, G: 255, B: 255},
		EdgeWidth:    1,
		HatchWidth:   0.5,
		HatchSpacing: 3,
		DotSpacing:   4.5,
		DotRadius:    0.6,
		FontSize:     12,
		Frame:        true,
		Legend:       LegendBox{X: 0.12, Y: 0.32, Size: 0.2},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WidthIn <= 0 {
		o.WidthIn = d.WidthIn
	}
	if o.HeightIn <= 0 {
		o.HeightIn = d.HeightIn
	}
	if o.DPI <= 0 {
		o.DPI = d.DPI
	}
	if !o.Extent.valid() {
		o.Extent = d.Extent
	}
	if o.Background == nil {
		o.Background = d.Background
	}
	if o.FontSize <= 0 {
		o.FontSize = d.FontSize
	}
	if o.Legend.Size <= 0 {
		o.Legend = d.Legend
	}
	return o
}

// Size returns the page size.
func (o Options) Size() (w, h vg.Length) {
	return vg.Length(o.WidthIn) * vg.Inch, vg.Length(o.HeightIn) * vg.Inch
}

// Map is everything drawn on one figure.
type Map struct {
	Regions []choropleth.Region
	Legend  *Legend
}

var sansSerif = font.Font{Typeface: "Liberation", Variant: "Sans"}

// Draw paints m onto c. Each region is filled, hatched and outlined in order;
// the legend goes on top.
func Draw(c draw.Canvas, m Map, opts Options) {
	opts = opts.withDefaults()
	page := c.Rectangle
	c.FillPolygon(opts.Background, rectPoints(page))

	proj := NewPlateCarree(opts.Extent, page)
	edge := draw.LineStyle{Color: color.Black, Width: vg.Points(opts.EdgeWidth)}

	for _, r := range m.Regions {
		fill := r.Fill(opts.MissingFill)
		h := r.Hatch()
		for _, rings := range proj.projectPolygons(r.Feature.Geometry) {
			path := ringsPath(rings)
			if len(path) == 0 {
				continue
			}
			c.SetColor(fill)
			c.Fill(path)
			if overlay := hatchOverlay(rings, h, opts); len(overlay) > 0 {
				c.SetColor(color.Black)
				c.Fill(overlay)
			}
			if opts.EdgeWidth > 0 {
				c.SetLineStyle(edge)
				c.Stroke(path)
			}
		}
	}

	if opts.Frame {
		c.StrokeLines(draw.LineStyle{Color: color.Black, Width: vg.Points(0.8)}, closedRect(proj.Frame()))
	}
	if m.Legend != nil {
		f := sansSerif
		f.Size = vg.Points(opts.FontSize)
		sty := text.Style{Color: color.Black, Font: f, Handler: text.Plain{Fonts: font.DefaultCache}}
		drawLegend(c, *m.Legend, opts.Legend.gridRect(page), sty,
			draw.LineStyle{Color: color.Black, Width: vg.Points(0.8)})
	}
}

func rectPoints(r vg.Rectangle) []vg.Point {
	return []vg.Point{r.Min, {X: r.Max.X, Y: r.Min.Y}, r.Max, {X: r.Min.X, Y: r.Max.Y}}
}

func closedRect(r vg.Rectangle) []vg.Point {
	return append(rectPoints(r), r.Min)
}

// Render draws m and encodes it as f onto w.
func Render(w io.Writer, f Format, m Map, opts Options) error {
	opts = opts.withDefaults()
	width, height := opts.Size()
	cv, err := newCanvas(f, width, height, opts.DPI, opts.Background)
	if err != nil {
		return err
	}
	Draw(draw.New(cv), m, opts)
	if _, err := cv.WriteTo(w); err != nil {
		return eris.Wrapf(err, "render: encode %s", f)
	}
	return nil
}

// Bytes renders m into memory.
func Bytes(f Format, m Map, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, f, m, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile renders m to path, choosing the format from its extension and
// creating parent directories.
func WriteFile(path string, m Map, opts Options) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "render: create dir %s", dir)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	if err := Render(out, f, m, opts); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "render: close %s", path)
	}
	return nil
}
