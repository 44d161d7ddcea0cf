package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-verifier/internal/db"
	"github.com/sells-group/brand-verifier/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const setCachedOutcomeSQL = `INSERT INTO verdict_cache (holding, brand, data, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (holding, brand) DO UPDATE SET data = EXCLUDED.data, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL,
	mode        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     JSONB,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	row_index  INTEGER NOT NULL,
	holding    TEXT NOT NULL,
	brand      TEXT NOT NULL,
	status     TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	data       JSONB NOT NULL,
	PRIMARY KEY (run_id, row_index)
);

CREATE TABLE IF NOT EXISTS verdict_cache (
	holding    TEXT NOT NULL,
	brand      TEXT NOT NULL,
	data       JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (holding, brand)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_verdict_cache_expires_at ON verdict_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, input, output string, mode model.RunMode) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, input, output, mode, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, input, output, string(mode), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Input:     input,
		Output:    output,
		Mode:      mode,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.Summary, runErr error) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}
	status, msg := runStatusFor(runErr)

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(status), summaryJSON, msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPGRun(s.pool.QueryRow(ctx,
		`SELECT id, input, output, mode, status, summary, error, created_at, finished_at FROM runs WHERE id = $1`,
		runID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input, output, mode, status, summary, error, created_at, finished_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
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
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// outcomeColumns are the columns written by SaveOutcomes, in row order.
var outcomeColumns = []string{"run_id", "row_index", "holding", "brand", "status", "confidence", "data"}

func (s *PostgresStore) SaveOutcomes(ctx context.Context, runID string, outcomes []*model.Outcome) error {
	rows := make([][]any, 0, len(outcomes))
	for _, o := range outcomes {
		data, err := json.Marshal(o)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal outcome")
		}
		rows = append(rows, []any{
			runID, int32(o.Request.Row), o.Request.Holding, o.Request.Brand, string(o.Status), o.Confidence, string(data),
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "outcomes",
		Columns:      outcomeColumns,
		ConflictKeys: []string{"run_id", "row_index"},
	}, rows)
	return eris.Wrapf(err, "postgres: save outcomes for run %s", runID)
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, runID string) ([]*model.Outcome, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM outcomes WHERE run_id = $1 ORDER BY row_index`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list outcomes")
	}
	defer rows.Close()

	var out []*model.Outcome
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		o, err := decodeOutcome(data)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list outcomes iterate")
}

func (s *PostgresStore) GetCachedOutcome(ctx context.Context, key model.PairKey) (*model.Outcome, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM verdict_cache WHERE holding = $1 AND brand = $2 AND expires_at > now()`,
		key.Holding, key.Brand,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached outcome")
	}
	return decodeOutcome(data)
}

func (s *PostgresStore) SetCachedOutcome(ctx context.Context, o *model.Outcome, ttl time.Duration) error {
	data, err := json.Marshal(o)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal outcome")
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx, setCachedOutcomeSQL,
		o.Request.Holding, o.Request.Brand, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached outcome")
}

func (s *PostgresStore) DeleteExpiredOutcomes(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verdict_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired outcomes")
	}
	return int(tag.RowsAffected()), nil
}

func scanPGRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var mode, status string
	var summaryJSON *[]byte

	if err := row.Scan(&r.ID, &r.Input, &r.Output, &mode, &status, &summaryJSON, &r.Error, &r.CreatedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	r.Mode = model.RunMode(mode)
	r.Status = model.RunStatus(status)

	if summaryJSON != nil && len(*summaryJSON) > 0 && string(*summaryJSON) != "null" {
		r.Summary = &model.Summary{}
		if err := json.Unmarshal(*summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}
