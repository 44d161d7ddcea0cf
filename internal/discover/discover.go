// Package discover asks the search service, per holding, which brands are
// missing from the verified list and how the brands nest into sub-brands.
package discover

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/internal/table"
	"github.com/sells-group/brand-verifier/internal/verify"
)

// NoNewBrands fills the New Brands cell when nothing was found.
const NoNewBrands = "None"

// Output headers.
var (
	HoldingsHeader  = []string{"Holding", "Brands", "New Brands"}
	SubBrandsHeader = []string{table.ColMainHolding, table.ColBrand, "Sub-Brand Name", "Parent Brand", "Is Sub-Brand"}
)

// Result is the outcome of a discovery run.
type Result struct {
	Holdings  []model.HoldingBrands
	SubBrands []model.SubBrand
	Failed    int
}

// Discoverer runs discovery queries through an Executor.
type Discoverer struct {
	exec *verify.Executor
}

// New creates a Discoverer.
func New(exec *verify.Executor) *Discoverer {
	return &Discoverer{exec: exec}
}

// Discover queries one holding. The returned error is non-nil when no
// usable answer arrived within the executor's attempts.
func (d *Discoverer) Discover(ctx context.Context, holding string, known []string) (*Answer, error) {
	q := verify.Query{Prompt: BuildPrompt(holding, known), System: SystemInstructions}
	ans, attempts, err := verify.Run(ctx, d.exec, q, func(raw *verify.RawAnswer) (*Answer, error) {
		return ParseAnswer(raw.Message)
	})
	if err != nil {
		return nil, err
	}
	zap.L().Debug("discover: answer accepted",
		zap.String("holding", holding),
		zap.Int("attempts", attempts),
	)
	return ans, nil
}

// Run processes every group in order. A holding whose query fails keeps
// its known brands and gets no new ones; only a done context stops the run.
func (d *Discoverer) Run(ctx context.Context, groups []model.HoldingBrands) (*Result, error) {
	start := time.Now()
	res := &Result{}
	mains := make(map[[2]string]bool)

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		hb := model.HoldingBrands{Holding: g.Holding, Brands: CleanBrands(g.Brands)}
		ans, err := d.Discover(ctx, hb.Holding, hb.Brands)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			zap.L().Warn("discover: holding failed", zap.String("holding", hb.Holding), zap.Error(err))
			res.Failed++
			res.Holdings = append(res.Holdings, hb)
			continue
		}

		hb.NewBrands = ans.Missing
		res.Holdings = append(res.Holdings, hb)

		for _, p := range ans.SubBrands {
			key := [2]string{hb.Holding, p.Main}
			if !mains[key] {
				mains[key] = true
				res.SubBrands = append(res.SubBrands, model.SubBrand{Holding: hb.Holding, Brand: p.Main})
			}
			res.SubBrands = append(res.SubBrands, model.SubBrand{
				Holding:     hb.Holding,
				Brand:       p.Sub,
				SubBrand:    p.Sub,
				ParentBrand: p.Main,
				IsSubBrand:  true,
			})
		}

		zap.L().Info("discover: holding done",
			zap.String("holding", hb.Holding),
			zap.Int("known", len(hb.Brands)),
			zap.Int("new", len(hb.NewBrands)),
			zap.Int("sub_brands", len(ans.SubBrands)),
		)
	}

	zap.L().Info("discover: complete",
		zap.Int("holdings", len(res.Holdings)),
		zap.Int("failed", res.Failed),
		zap.Int("brands", res.totalBrands()),
		zap.Int("new_brands", res.totalNewBrands()),
		zap.Int("sub_brands", res.totalSubBrands()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (r *Result) totalBrands() int {
	n := 0
	for _, h := range r.Holdings {
		n += len(h.Brands)
	}
	return n
}

func (r *Result) totalNewBrands() int {
	n := 0
	for _, h := range r.Holdings {
		n += len(h.NewBrands)
	}
	return n
}

func (r *Result) totalSubBrands() int {
	n := 0
	for _, s := range r.SubBrands {
		if s.IsSubBrand {
			n++
		}
	}
	return n
}

// HoldingRows lays out the holdings table.
func (r *Result) HoldingRows() [][]string {
	rows := make([][]string, len(r.Holdings))
	for i, h := range r.Holdings {
		newBrands := NoNewBrands
		if len(h.NewBrands) > 0 {
			newBrands = strings.Join(h.NewBrands, ", ")
		}
		rows[i] = []string{h.Holding, strings.Join(h.Brands, ", "), newBrands}
	}
	return rows
}

// SubBrandRows lays out the sub-brands table.
func (r *Result) SubBrandRows() [][]string {
	rows := make([][]string, len(r.SubBrands))
	for i, s := range r.SubBrands {
		rows[i] = []string{s.Holding, s.Brand, s.SubBrand, s.ParentBrand, strconv.FormatBool(s.IsSubBrand)}
	}
	return rows
}

// Write saves both tables. Either path may be empty to skip that table.
func (r *Result) Write(holdingsPath, subBrandsPath string) error {
	if holdingsPath != "" {
		if err := table.Write(holdingsPath, HoldingsHeader, r.HoldingRows()); err != nil {
			return err
		}
	}
	if subBrandsPath != "" {
		if err := table.Write(subBrandsPath, SubBrandsHeader, r.SubBrandRows()); err != nil {
			return err
		}
	}
	return nil
}
