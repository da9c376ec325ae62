package render

import (
	"math"

	"github.com/tdewolff/canvas"
	"gonum.org/v1/plot/vg"

	"github.com/sells-group/bivariate-map/internal/choropleth"
)

// dotSides approximates each dot with a regular polygon so that clipped
// patterns contain only straight segments.
const dotSides = 12

// hatchOverlay returns the hatch geometry for one projected polygon, clipped
// to its rings and ready to be filled. It is empty when h has no pattern.
func hatchOverlay(rings [][]vg.Point, h choropleth.Hatch, opts Options) vg.Path {
	if h == choropleth.HatchNone || len(rings) == 0 {
		return nil
	}
	clip := clipPath(rings)

	var out vg.Path
	if h.Has(choropleth.HatchDiagonal) && opts.HatchSpacing > 0 && opts.HatchWidth > 0 {
		lines := canvas.NewLineHatch(canvas.Black, 45, opts.HatchSpacing, opts.HatchWidth)
		out = appendPath(out, lines.Tile(clip))
	}
	if h.Has(choropleth.HatchDots) && opts.DotSpacing > 0 && opts.DotRadius > 0 {
		dots := canvas.NewShapeHatch(canvas.Black, dotShape(opts.DotRadius), opts.DotSpacing, 0)
		out = appendPath(out, dots.Tile(clip))
	}
	return out
}

// clipPath converts projected rings into a canvas path. Holes keep their
// opposite winding.
func clipPath(rings [][]vg.Point) *canvas.Path {
	p := &canvas.Path{}
	for _, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		p.MoveTo(float64(ring[0].X), float64(ring[0].Y))
		for _, q := range ring[1:] {
			p.LineTo(float64(q.X), float64(q.Y))
		}
		p.Close()
	}
	return p
}

func dotShape(r float64) *canvas.Path {
	p := &canvas.Path{}
	for i := 0; i < dotSides; i++ {
		a := 2 * math.Pi * float64(i) / dotSides
		x, y := r*math.Cos(a), r*math.Sin(a)
		if i == 0 {
			p.MoveTo(x, y)
		} else {
			p.LineTo(x, y)
		}
	}
	p.Close()
	return p
}

// appendPath copies the segments of p onto dst. Arcs are replaced by chords.
func appendPath(dst vg.Path, p *canvas.Path) vg.Path {
	if p == nil {
		return dst
	}
	s := p.Scanner()
	for s.Scan() {
		end := toVG(s.End())
		switch s.Cmd() {
		case canvas.MoveToCmd:
			dst.Move(end)
		case canvas.LineToCmd, canvas.ArcToCmd:
			dst.Line(end)
		case canvas.QuadToCmd:
			dst.QuadTo(toVG(s.CP1()), end)
		case canvas.CubeToCmd:
			dst.CubeTo(toVG(s.CP1()), toVG(s.CP2()), end)
		case canvas.CloseCmd:
			dst.Close()
		}
	}
	return dst
}

func toVG(p canvas.Point) vg.Point {
	return vg.Point{X: vg.Length(p.X), Y: vg.Length(p.Y)}
}
