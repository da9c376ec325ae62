// Package model defines the records shared by the loaders, the map pipeline and
// the run store.
package model

import (
	"github.com/twpayne/go-geom"
)

// Entity is one row of the input table: a geographic unit with two raw
// measurements and a missing-data marker per axis. Entities are never modified
// after loading.
type Entity struct {
	Name     string  `json:"name"`
	A        float64 `json:"a"`
	B        float64 `json:"b"`
	MissingA bool    `json:"missing_a"`
	MissingB bool    `json:"missing_b"`
}

// Feature is a named boundary from the geometry source.
type Feature struct {
	Name     string
	Geometry *geom.MultiPolygon
}
