package boundary

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// SRID of the geographic coordinates carried by every feature.
const SRID = 4326

// ToMultiPolygon converts a shapefile polygon into a MultiPolygon. Shapefile
// outer rings are clockwise and holes counter-clockwise; each hole is attached
// to the outer ring that contains it. Returns nil for non-polygon, empty or
// degenerate shapes.
func ToMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	var parts []int32
	var points []shp.Point
	switch s := shape.(type) {
	case *shp.Polygon:
		if s == nil {
			return nil
		}
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		if s == nil {
			return nil
		}
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		if s == nil {
			return nil
		}
		parts, points = s.Parts, s.Points
	default:
		return nil
	}
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	type poly struct{ rings [][]float64 }
	var polys []*poly
	var holes [][]float64

	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || end-start < 4 {
			zap.L().Debug("boundary: skipping degenerate ring", zap.Int("part", i))
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		if signedArea(flat) < 0 {
			polys = append(polys, &poly{rings: [][]float64{flat}})
		} else {
			holes = append(holes, flat)
		}
	}

	for _, h := range holes {
		var owner *poly
		for _, p := range polys {
			if ringContains(p.rings[0], h[0], h[1]) {
				owner = p
				break
			}
		}
		if owner == nil {
			// A lone counter-clockwise ring is treated as an outer ring.
			polys = append(polys, &poly{rings: [][]float64{h}})
			continue
		}
		owner.rings = append(owner.rings, h)
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID)
	for _, p := range polys {
		var flat []float64
		var ends []int
		for _, r := range p.rings {
			flat = append(flat, r...)
			ends = append(ends, len(flat))
		}
		if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, ends)); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon", zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea returns twice the signed area of a flat XY ring; negative for
// clockwise rings.
func signedArea(flat []float64) float64 {
	var a float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return a
}

// ringContains reports whether (x, y) lies inside the flat XY ring by the
// even-odd rule.
func ringContains(flat []float64, x, y float64) bool {
	n := len(flat) / 2
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := flat[2*i], flat[2*i+1]
		xj, yj := flat[2*j], flat[2*j+1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// EncodeEWKB returns the little-endian EWKB encoding of g, or nil for nil.
func EncodeEWKB(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	if mp, ok := g.(*geom.MultiPolygon); ok && mp == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode EWKB")
	}
	return data, nil
}
