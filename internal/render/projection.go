package render

import (
	"github.com/twpayne/go-geom"
	"gonum.org/v1/plot/vg"
)

// Extent is a lon/lat bounding box in degrees.
type Extent struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// World covers the whole globe.
var World = Extent{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: 90}

func (e Extent) valid() bool {
	return e.MaxLon > e.MinLon && e.MaxLat > e.MinLat
}

// PlateCarree maps lon/lat linearly onto a canvas rectangle with one scale
// for both axes, centering the extent in the rectangle.
type PlateCarree struct {
	extent Extent
	origin vg.Point
	scale  float64 // canvas units per degree
}

// NewPlateCarree fits extent into the rectangle r.
func NewPlateCarree(extent Extent, r vg.Rectangle) PlateCarree {
	if !extent.valid() {
		extent = World
	}
	w := float64(r.Max.X - r.Min.X)
	h := float64(r.Max.Y - r.Min.Y)
	dLon := extent.MaxLon - extent.MinLon
	dLat := extent.MaxLat - extent.MinLat

	scale := w / dLon
	if s := h / dLat; s < scale {
		scale = s
	}
	return PlateCarree{
		extent: extent,
		scale:  scale,
		origin: vg.Point{
			X: r.Min.X + vg.Length((w-dLon*scale)/2),
			Y: r.Min.Y + vg.Length((h-dLat*scale)/2),
		},
	}
}

// Project returns the canvas point of lon/lat.
func (p PlateCarree) Project(lon, lat float64) vg.Point {
	return vg.Point{
		X: p.origin.X + vg.Length((lon-p.extent.MinLon)*p.scale),
		Y: p.origin.Y + vg.Length((lat-p.extent.MinLat)*p.scale),
	}
}

// Frame returns the canvas rectangle covered by the extent.
func (p PlateCarree) Frame() vg.Rectangle {
	return vg.Rectangle{
		Min: p.Project(p.extent.MinLon, p.extent.MinLat),
		Max: p.Project(p.extent.MaxLon, p.extent.MaxLat),
	}
}

// projectPolygons converts every polygon of mp into projected rings. The first
// ring of each polygon is its shell.
func (p PlateCarree) projectPolygons(mp *geom.MultiPolygon) [][][]vg.Point {
	if mp == nil {
		return nil
	}
	out := make([][][]vg.Point, 0, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		coords := mp.Polygon(i).Coords()
		rings := make([][]vg.Point, 0, len(coords))
		for _, ring := range coords {
			pts := make([]vg.Point, len(ring))
			for j, c := range ring {
				pts[j] = p.Project(c.X(), c.Y())
			}
			rings = append(rings, pts)
		}
		out = append(out, rings)
	}
	return out
}

func ringsPath(rings [][]vg.Point) vg.Path {
	var path vg.Path
	for _, r := range rings {
		if len(r) == 0 {
			continue
		}
		path.Move(r[0])
		for _, pt := range r[1:] {
			path.Line(pt)
		}
		path.Close()
	}
	return path
}
