package discover

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/internal/resilience"
	"github.com/sells-group/brand-verifier/internal/table"
	"github.com/sells-group/brand-verifier/internal/verify"
)

const verifiedCSV = `Holding Name,Brand Name,Owned,Confidence
Henkel,Persil,true,100
Henkel,persil ,true,100
Henkel,Dove,false,40
Henkel,Loctite,true,90
Colgate-Palmolive,Ajax,true,100
,Orphan,true,100
`

func TestCleanBrands(t *testing.T) {
	got := CleanBrands([]string{" Persil", "PERSIL", "", "Loctite", "loctite ", "Straße", "STRASSE"})
	assert.Equal(t, []string{"Persil", "Loctite", "Straße"}, got)
}

func TestGroupOwned(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader(verifiedCSV))
	require.NoError(t, err)

	groups, err := GroupOwned(tbl)
	require.NoError(t, err)
	assert.Equal(t, []model.HoldingBrands{
		{Holding: "Henkel", Brands: []string{"Persil", "Loctite"}},
		{Holding: "Colgate-Palmolive", Brands: []string{"Ajax"}},
	}, groups)
}

func TestGroupOwned_MissingColumns(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader("Holding Name,Brand Name\nHenkel,Persil\n"))
	require.NoError(t, err)
	_, err = GroupOwned(tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Owned"`)

	tbl, err = table.ReadCSV(strings.NewReader("Brand Name,Owned\nPersil,true\n"))
	require.NoError(t, err)
	_, err = GroupOwned(tbl)
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Henkel", []string{"Persil", "Loctite"})
	assert.Contains(t, p, "Known brands of Henkel: Persil, Loctite")
	assert.Contains(t, p, `"marques_manquantes"`)
	assert.Contains(t, p, `"sous_marques"`)
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		want     *Answer
		wantKind verify.ExtractionKind
	}{
		{
			name:    "both keys in fences",
			message: "```json\n{\"marques_manquantes\": [\"Schwarzkopf\", \"schwarzkopf\", 3], \"sous_marques\": [{\"marque_principale\": \"Persil\", \"sous_marque\": \"Persil Gel\"}, {\"marque_principale\": \"\"}, \"x\"]}\n```",
			want: &Answer{
				Missing:   []string{"Schwarzkopf"},
				SubBrands: []SubBrandPair{{Main: "Persil", Sub: "Persil Gel"}},
			},
		},
		{
			name:    "only sub-brands",
			message: `Voici: {"sous_marques": []}`,
			want:    &Answer{Missing: []string{}},
		},
		{
			name:     "neither key",
			message:  `{"brands": []}`,
			wantKind: verify.MissingFields,
		},
		{
			name:     "wrong type",
			message:  `{"marques_manquantes": "Schwarzkopf"}`,
			wantKind: verify.MalformedJSON,
		},
		{
			name:     "no json",
			message:  "Je ne sais pas",
			wantKind: verify.NoJSONFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswer(tt.message)
			if tt.wantKind != "" {
				var xerr *verify.ExtractionError
				require.ErrorAs(t, err, &xerr)
				assert.Equal(t, tt.wantKind, xerr.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func executor(a verify.Answerer, attempts int) *verify.Executor {
	return verify.NewExecutor(a, verify.ExecutorConfig{
		Service: "test",
		Retry:   resilience.RetryConfig{MaxAttempts: attempts},
	})
}

func TestRun(t *testing.T) {
	var calls atomic.Int32
	a := verify.AnswererFunc(func(_ context.Context, q verify.Query) (*verify.RawAnswer, error) {
		calls.Add(1)
		assert.Equal(t, SystemInstructions, q.System)
		switch {
		case strings.Contains(q.Prompt, "Henkel"):
			return &verify.RawAnswer{Message: `{
				"marques_manquantes": ["Schwarzkopf", "Pritt"],
				"sous_marques": [
					{"marque_principale": "Persil", "sous_marque": "Persil Gel"},
					{"marque_principale": "Persil", "sous_marque": "Persil Discs"}
				]
			}`}, nil
		default:
			return &verify.RawAnswer{Message: "no idea"}, nil
		}
	})

	res, err := New(executor(a, 2)).Run(context.Background(), []model.HoldingBrands{
		{Holding: "Henkel", Brands: []string{"Persil", "PERSIL", "Loctite"}},
		{Holding: "Colgate-Palmolive", Brands: []string{"Ajax"}},
	})
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []model.HoldingBrands{
		{Holding: "Henkel", Brands: []string{"Persil", "Loctite"}, NewBrands: []string{"Schwarzkopf", "Pritt"}},
		{Holding: "Colgate-Palmolive", Brands: []string{"Ajax"}},
	}, res.Holdings)

	assert.Equal(t, [][]string{
		{"Henkel", "Persil, Loctite", "Schwarzkopf, Pritt"},
		{"Colgate-Palmolive", "Ajax", NoNewBrands},
	}, res.HoldingRows())
	assert.Equal(t, [][]string{
		{"Henkel", "Persil", "", "", "false"},
		{"Henkel", "Persil Gel", "Persil Gel", "Persil", "true"},
		{"Henkel", "Persil Discs", "Persil Discs", "Persil", "true"},
	}, res.SubBrandRows())
	assert.Equal(t, 2, res.totalSubBrands())
	assert.Equal(t, 3, res.totalBrands())
	assert.Equal(t, 2, res.totalNewBrands())
}

func TestRun_TransportErrorsRetried(t *testing.T) {
	var calls atomic.Int32
	a := verify.AnswererFunc(func(context.Context, verify.Query) (*verify.RawAnswer, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return &verify.RawAnswer{Message: `{"marques_manquantes": ["Pritt"]}`}, nil
	})

	res, err := New(executor(a, 3)).Run(context.Background(), []model.HoldingBrands{{Holding: "Henkel", Brands: []string{"Persil"}}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"Pritt"}, res.Holdings[0].NewBrands)
	assert.Zero(t, res.Failed)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(executor(verify.AnswererFunc(func(context.Context, verify.Query) (*verify.RawAnswer, error) {
		t.Fatal("no query after cancel")
		return nil, nil
	}), 1)).Run(ctx, []model.HoldingBrands{{Holding: "Henkel"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Holdings)
}

func TestResult_Write(t *testing.T) {
	dir := t.TempDir()
	res := &Result{
		Holdings:  []model.HoldingBrands{{Holding: "Henkel", Brands: []string{"Persil"}}},
		SubBrands: []model.SubBrand{{Holding: "Henkel", Brand: "Persil"}},
	}

	holdings := filepath.Join(dir, "holdings.csv")
	subs := filepath.Join(dir, "sub_brands.xlsx")
	require.NoError(t, res.Write(holdings, subs))

	h, err := table.Read(holdings)
	require.NoError(t, err)
	assert.Equal(t, HoldingsHeader, h.Header)
	assert.Equal(t, [][]string{{"Henkel", "Persil", NoNewBrands}}, h.Rows)

	s, err := table.Read(subs)
	require.NoError(t, err)
	assert.Equal(t, SubBrandsHeader, s.Header)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, "Persil", s.Value(s.Rows[0], table.ColBrand))
	assert.Equal(t, "false", s.Value(s.Rows[0], "Is Sub-Brand"))

	assert.NoError(t, res.Write("", ""))
	assert.Error(t, res.Write(filepath.Join(dir, "out.txt"), ""))
}
