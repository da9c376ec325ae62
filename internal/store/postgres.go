package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bivariate-map/internal/db"
	"github.com/sells-group/bivariate-map/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	map_name   TEXT NOT NULL,
	output     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'rendering',
	entities   INTEGER NOT NULL DEFAULT 0,
	matched    INTEGER NOT NULL DEFAULT 0,
	unmatched  INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assignments (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	a         DOUBLE PRECISION,
	b         DOUBLE PRECISION,
	a_bin     INTEGER NOT NULL,
	b_bin     INTEGER NOT NULL,
	class     INTEGER NOT NULL,
	color     TEXT NOT NULL,
	missing_a BOOLEAN NOT NULL DEFAULT false,
	missing_b BOOLEAN NOT NULL DEFAULT false,
	matched   BOOLEAN NOT NULL DEFAULT false,
	geom      BYTEA,
	PRIMARY KEY (run_id, name)
);

CREATE INDEX IF NOT EXISTS idx_runs_map_name ON runs(map_name);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

var assignmentColumns = []string{
	"run_id", "name", "a", "b", "a_bin", "b_bin", "class", "color", "missing_a", "missing_b", "matched", "geom",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, mapName, output string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, map_name, output, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, mapName, output, string(model.RunStatusRendering), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		MapName:   mapName,
		Output:    output,
		Status:    model.RunStatusRendering,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary RunSummary) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, entities = $2, matched = $3, unmatched = $4, updated_at = $5 WHERE id = $6`,
		string(model.RunStatusComplete), summary.Entities, summary.Matched, summary.Unmatched, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	err := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID).
		Scan(&r.ID, &r.MapName, &r.Output, &r.Status, &r.Entities, &r.Matched, &r.Unmatched,
			&r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.MapName != "" {
		query += fmt.Sprintf(` AND map_name = $%d`, argIdx)
		args = append(args, filter.MapName)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.MapName, &r.Output, &r.Status, &r.Entities, &r.Matched, &r.Unmatched,
			&r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveAssignments bulk-loads records with COPY.
func (s *PostgresStore) SaveAssignments(ctx context.Context, runID string, records []model.AssignmentRecord) error {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			runID, r.Name, r.A, r.B, r.ABin, r.BBin, r.Class, r.Color,
			r.MissingA, r.MissingB, r.Matched, r.Geometry,
		}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "assignments", assignmentColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: save assignments for run %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, runID string) ([]model.AssignmentRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, name, a, b, a_bin, b_bin, class, color, missing_a, missing_b, matched, geom
		FROM assignments WHERE run_id = $1 ORDER BY class, name`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assignments")
	}
	defer rows.Close()

	var out []model.AssignmentRecord
	for rows.Next() {
		var r model.AssignmentRecord
		if err := rows.Scan(&r.RunID, &r.Name, &r.A, &r.B, &r.ABin, &r.BBin, &r.Class, &r.Color,
			&r.MissingA, &r.MissingB, &r.Matched, &r.Geometry); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list assignments iterate")
}
