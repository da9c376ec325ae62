package model

import "time"

// RunStatus represents the state of a map generation run.
type RunStatus string

const (
	RunStatusRendering RunStatus = "rendering"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one generation of one map.
type Run struct {
	ID        string    `json:"id"`
	MapName   string    `json:"map_name"`
	Output    string    `json:"output"`
	Status    RunStatus `json:"status"`
	Entities  int       `json:"entities"`
	Matched   int       `json:"matched"`
	Unmatched int       `json:"unmatched"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AssignmentRecord is the persisted classification of one entity in a run.
// A and B are nil when the raw value was not a number.
type AssignmentRecord struct {
	RunID    string   `json:"run_id"`
	Name     string   `json:"name"`
	A        *float64 `json:"a"`
	B        *float64 `json:"b"`
	ABin     int      `json:"a_bin"`
	BBin     int      `json:"b_bin"`
	Class    int      `json:"class"`
	Color    string   `json:"color"`
	MissingA bool     `json:"missing_a"`
	MissingB bool     `json:"missing_b"`
	Matched  bool     `json:"matched"`
	Geometry []byte   `json:"-"` // EWKB, nil when no boundary matched
}
