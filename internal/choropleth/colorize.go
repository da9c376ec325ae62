// Package choropleth attaches bivariate classes and colors to entities and
// joins them to boundary features.
package choropleth

import (
	"github.com/sells-group/bivariate-map/internal/bivariate"
	"github.com/sells-group/bivariate-map/internal/model"
)

// Hatch is a set of missing-data overlays drawn on top of a region's fill.
type Hatch uint8

const (
	// HatchDiagonal marks a missing axis-B value.
	HatchDiagonal Hatch = 1 << iota
	// HatchDots marks a missing axis-A value.
	HatchDots
)

// HatchNone means no overlay.
const HatchNone Hatch = 0

// Has reports whether h includes every flag in f.
func (h Hatch) Has(f Hatch) bool { return h&f == f && f != 0 }

// Pattern returns the hatch pattern string, diagonal first.
func (h Hatch) Pattern() string {
	var s string
	if h.Has(HatchDiagonal) {
		s += "//////"
	}
	if h.Has(HatchDots) {
		s += "...."
	}
	return s
}

// HatchFor returns the overlays implied by an entity's missing markers.
func HatchFor(e model.Entity) Hatch {
	var h Hatch
	if e.MissingB {
		h |= HatchDiagonal
	}
	if e.MissingA {
		h |= HatchDots
	}
	return h
}

// Assignment is the derived class and color of one entity.
type Assignment struct {
	Entity model.Entity
	Class  bivariate.Class
	Color  bivariate.Color
	Hatch  Hatch
}

// Colorize classifies every entity and looks its color up in the palette. The
// raw values are classified as-is, including when a missing marker is set.
func Colorize(entities []model.Entity, bd bivariate.Binding, p bivariate.Palette) []Assignment {
	out := make([]Assignment, len(entities))
	for i, e := range entities {
		c := bd.Classify(e.A, e.B)
		out[i] = Assignment{
			Entity: e,
			Class:  c,
			Color:  p.Lookup(bivariate.Normalize(c.Index, p.Len())),
			Hatch:  HatchFor(e),
		}
	}
	return out
}

// Counts returns the number of assignments per class index.
func Counts(assignments []Assignment, classes int) []int {
	counts := make([]int, classes)
	for _, a := range assignments {
		if a.Class.Index >= 0 && a.Class.Index < classes {
			counts[a.Class.Index]++
		}
	}
	return counts
}
