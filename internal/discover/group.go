package discover

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/internal/table"
)

// CleanBrands trims names, drops blanks and removes case-insensitive
// duplicates, keeping the first spelling of each brand.
func CleanBrands(brands []string) []string {
	fold := cases.Fold()
	seen := make(map[string]bool, len(brands))
	out := make([]string, 0, len(brands))
	for _, b := range brands {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		key := fold.String(b)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}

// GroupOwned collects the brands marked as owned in a verification output
// table, grouped by holding in order of first appearance.
func GroupOwned(t *table.Table) ([]model.HoldingBrands, error) {
	holdingCol, err := t.HoldingColumn()
	if err != nil {
		return nil, err
	}
	for _, col := range []string{table.ColBrand, table.ColOwned} {
		if !t.Has(col) {
			return nil, eris.Errorf("discover: missing column %q", col)
		}
	}

	var groups []model.HoldingBrands
	index := make(map[string]int)
	for _, row := range t.Rows {
		owned, _ := strconv.ParseBool(strings.TrimSpace(t.Value(row, table.ColOwned)))
		holding := strings.TrimSpace(t.Value(row, holdingCol))
		if !owned || holding == "" {
			continue
		}
		i, ok := index[holding]
		if !ok {
			i = len(groups)
			index[holding] = i
			groups = append(groups, model.HoldingBrands{Holding: holding})
		}
		groups[i].Brands = append(groups[i].Brands, t.Value(row, table.ColBrand))
	}

	for i := range groups {
		groups[i].Brands = CleanBrands(groups[i].Brands)
	}
	return groups, nil
}
