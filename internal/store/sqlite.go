package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/brand-verifier/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL,
	mode        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     TEXT,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	row_index  INTEGER NOT NULL,
	holding    TEXT NOT NULL,
	brand      TEXT NOT NULL,
	status     TEXT NOT NULL,
	confidence REAL NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (run_id, row_index)
);

CREATE TABLE IF NOT EXISTS verdict_cache (
	holding    TEXT NOT NULL,
	brand      TEXT NOT NULL,
	data       TEXT NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (holding, brand)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_verdict_cache_expires_at ON verdict_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, input, output string, mode model.RunMode) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, output, mode, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, input, output, string(mode), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.Summary, runErr error) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	status, msg := runStatusFor(runErr)

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input, output, mode, status, summary, error, created_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input, output, mode, status, summary, error, created_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveOutcomes(ctx context.Context, runID string, outcomes []*model.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save outcomes")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO outcomes (run_id, row_index, holding, brand, status, confidence, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save outcomes")
	}
	defer stmt.Close() //nolint:errcheck

	for _, o := range outcomes {
		data, err := json.Marshal(o)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal outcome")
		}
		if _, err := stmt.ExecContext(ctx,
			runID, o.Request.Row, o.Request.Holding, o.Request.Brand, string(o.Status), o.Confidence, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: save outcome row %d", o.Request.Row)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit outcomes")
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, runID string) ([]*model.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM outcomes WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list outcomes")
	}
	defer rows.Close() //nolint:errcheck

	var out []*model.Outcome
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		o, err := decodeOutcome([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list outcomes iterate")
}

func (s *SQLiteStore) GetCachedOutcome(ctx context.Context, key model.PairKey) (*model.Outcome, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM verdict_cache WHERE holding = ? AND brand = ? AND expires_at > ?`,
		key.Holding, key.Brand, time.Now().UTC().Unix(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached outcome")
	}
	return decodeOutcome([]byte(data))
}

func (s *SQLiteStore) SetCachedOutcome(ctx context.Context, o *model.Outcome, ttl time.Duration) error {
	data, err := json.Marshal(o)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal outcome")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO verdict_cache (holding, brand, data, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		o.Request.Holding, o.Request.Brand, string(data), now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrap(err, "sqlite: set cached outcome")
}

func (s *SQLiteStore) DeleteExpiredOutcomes(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM verdict_cache WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired outcomes")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var summaryJSON sql.NullString
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.Input, &r.Output, &r.Mode, &r.Status, &summaryJSON, &r.Error, &r.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if summaryJSON.Valid && summaryJSON.String != "" && summaryJSON.String != "null" {
		r.Summary = &model.Summary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}

func decodeOutcome(data []byte) (*model.Outcome, error) {
	var o model.Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal outcome")
	}
	return &o, nil
}
