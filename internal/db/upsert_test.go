package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outcomeCfg = UpsertConfig{
	Table:        "outcomes",
	Columns:      []string{"run_id", "row_index", "data"},
	ConflictKeys: []string{"run_id", "row_index"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, outcomeCfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "outcomes",
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "outcomes",
		Columns: []string{"id", "name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_outcomes"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_outcomes"}, outcomeCfg.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "outcomes"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"run-1", 0, `{}`}, {"run-1", 1, `{}`}}
	n, err := BulkUpsert(context.Background(), mock, outcomeCfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_outcomes"}, outcomeCfg.Columns).WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, outcomeCfg, [][]any{{"run-1", 0, `{}`}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for outcomes")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

	_, err = BulkUpsert(context.Background(), mock, outcomeCfg, [][]any{{"run-1", 0, `{}`}})
	assert.ErrorContains(t, err, "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL(outcomeCfg, "_tmp")
	assert.Equal(t,
		`INSERT INTO "outcomes" ("run_id", "row_index", "data") SELECT "run_id", "row_index", "data" FROM "_tmp" ON CONFLICT ("run_id", "row_index") DO UPDATE SET "data" = EXCLUDED."data"`,
		got)

	keysOnly := UpsertConfig{Table: "t", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
	assert.Contains(t, upsertSQL(keysOnly, "_tmp"), "ON CONFLICT (\"id\") DO NOTHING")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.outcomes", `"public"."outcomes"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}

func TestPoolInterface(_ *testing.T) {
	var _ Pool = pgxmock.PgxPoolIface(nil)
}
