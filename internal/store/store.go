// Package store records map generation runs and their per-entity assignments.
package store

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bivariate-map/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	MapName string          `json:"map_name,omitempty"`
	Status  model.RunStatus `json:"status,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// RunSummary is what a finished run reports back.
type RunSummary struct {
	Entities  int
	Matched   int
	Unmatched int
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, mapName, output string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary RunSummary) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Assignments
	SaveAssignments(ctx context.Context, runID string, records []model.AssignmentRecord) error
	ListAssignments(ctx context.Context, runID string) ([]model.AssignmentRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver, "sqlite" or "postgres", and migrates it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "sqlite", "":
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// Nullable maps NaN to nil so it is stored as NULL.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Value returns v, or NaN for a NULL value.
func Value(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
