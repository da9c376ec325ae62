package render

import (
	"math"
	"strconv"

	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/bivariate-map/internal/bivariate"
)

// Legend is the color key: one cell per class, axis A across and axis B up,
// with the cutoffs printed at the cell edges.
type Legend struct {
	Palette  bivariate.Palette
	ACutoffs bivariate.Cutoffs
	BCutoffs bivariate.Cutoffs
	ALabel   string
	BLabel   string
}

// LegendBox places the legend. X and Y are fractions of the canvas width and
// height for the lower-left corner of the grid; Size is the grid side as a
// fraction of the shorter canvas side.
type LegendBox struct {
	X    float64
	Y    float64
	Size float64
}

const (
	tickLength = 3.5 * vg.Inch / 72
	tickPad    = 3.5 * vg.Inch / 72
	labelPad   = 4 * vg.Inch / 72
)

// FormatCutoff prints a cutoff the way it was configured: 10 not 10.000.
func FormatCutoff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// gridRect returns the legend grid rectangle inside the canvas rectangle r.
func (b LegendBox) gridRect(r vg.Rectangle) vg.Rectangle {
	w, h := r.Max.X-r.Min.X, r.Max.Y-r.Min.Y
	side := vg.Length(b.Size) * vg.Length(math.Min(float64(w), float64(h)))
	lo := vg.Point{X: r.Min.X + vg.Length(b.X)*w, Y: r.Min.Y + vg.Length(b.Y)*h}
	return vg.Rectangle{Min: lo, Max: vg.Point{X: lo.X + side, Y: lo.Y + side}}
}

// drawLegend draws the grid, the tick marks and both axis labels.
func drawLegend(c draw.Canvas, l Legend, grid vg.Rectangle, sty text.Style, line draw.LineStyle) {
	cols, rows := l.Palette.Dims()
	if cols == 0 || rows == 0 {
		return
	}
	cw := (grid.Max.X - grid.Min.X) / vg.Length(cols)
	ch := (grid.Max.Y - grid.Min.Y) / vg.Length(rows)

	// origin lower-left: row 0 of axis B is the bottom row
	for b := 0; b < rows; b++ {
		for a := 0; a < cols; a++ {
			x0 := grid.Min.X + vg.Length(a)*cw
			y0 := grid.Min.Y + vg.Length(b)*ch
			c.FillPolygon(l.Palette.Cell(a, b), []vg.Point{
				{X: x0, Y: y0}, {X: x0 + cw, Y: y0}, {X: x0 + cw, Y: y0 + ch}, {X: x0, Y: y0 + ch},
			})
		}
	}
	c.StrokeLines(line, []vg.Point{
		grid.Min, {X: grid.Max.X, Y: grid.Min.Y}, grid.Max, {X: grid.Min.X, Y: grid.Max.Y}, grid.Min,
	})

	xLabelTop := grid.Min.Y - tickLength - tickPad
	for i, v := range l.ACutoffs {
		if i > cols {
			break
		}
		x := grid.Min.X + vg.Length(i)*cw
		c.StrokeLine2(line, x, grid.Min.Y, x, grid.Min.Y-tickLength)
		s := sty
		s.XAlign, s.YAlign = text.XCenter, text.YTop
		c.FillText(s, vg.Point{X: x, Y: xLabelTop}, FormatCutoff(v))
	}

	var widest vg.Length
	for i, v := range l.BCutoffs {
		if i > rows {
			break
		}
		y := grid.Min.Y + vg.Length(i)*ch
		c.StrokeLine2(line, grid.Min.X, y, grid.Min.X-tickLength, y)
		s := sty
		s.XAlign, s.YAlign = text.XRight, text.YCenter
		label := FormatCutoff(v)
		c.FillText(s, vg.Point{X: grid.Min.X - tickLength - tickPad, Y: y}, label)
		if w := s.Width(label); w > widest {
			widest = w
		}
	}

	if l.ALabel != "" {
		s := sty
		s.XAlign, s.YAlign = text.XCenter, text.YTop
		y := xLabelTop - sty.Height("0") - labelPad
		c.FillText(s, vg.Point{X: (grid.Min.X + grid.Max.X) / 2, Y: y}, l.ALabel)
	}
	if l.BLabel != "" {
		s := sty
		s.Rotation = math.Pi / 2
		s.XAlign, s.YAlign = text.XCenter, text.YBottom
		x := grid.Min.X - tickLength - tickPad - widest - labelPad
		c.FillText(s, vg.Point{X: x, Y: (grid.Min.Y + grid.Max.Y) / 2}, l.BLabel)
	}
}
