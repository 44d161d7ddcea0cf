// Package batch verifies every row of an input table, deduplicating pairs
// and writing one output record per row.
package batch

import (
	"context"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/brand-verifier/internal/model"
)

// Verifier produces the outcome of one request.
type Verifier interface {
	Verify(ctx context.Context, req model.VerificationRequest) (*model.Outcome, error)
}

// EmitFunc receives the outcome of row i. Sequential mode calls it after
// every row; an error aborts the batch.
type EmitFunc func(i int, o *model.Outcome) error

// Result holds one outcome per input row, in row order.
type Result struct {
	Outcomes []*model.Outcome
	Summary  model.Summary
}

// Driver runs batches against a Verifier.
type Driver struct {
	verifier Verifier
	cache    *Cache
	workers  int
}

// New creates a Driver. workers <= 0 uses runtime.NumCPU().
func New(v Verifier, cache *Cache, workers int) *Driver {
	if cache == nil {
		cache = NewCache(nil, 0)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Driver{verifier: v, cache: cache, workers: workers}
}

// RunSequential processes rows one at a time, calling emit after each.
// When ctx is cancelled it stops before the next row and returns the rows
// completed so far along with ctx's error.
func (d *Driver) RunSequential(ctx context.Context, reqs []model.VerificationRequest, emit EmitFunc) (*Result, error) {
	start := time.Now()
	res := &Result{Outcomes: make([]*model.Outcome, 0, len(reqs))}

	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("batch: cancelled", zap.Int("processed", i), zap.Int("total", len(reqs)))
			return res, err
		}

		o, hit, err := d.process(ctx, req)
		if err != nil {
			return res, err
		}
		o = bind(o, req)

		if emit != nil {
			if err := emit(i, o); err != nil {
				return res, eris.Wrapf(err, "batch: write row %d", i)
			}
		}
		res.Outcomes = append(res.Outcomes, o)
		res.Summary.Add(o, hit)

		zap.L().Info("batch: row done",
			zap.Int("row", i+1),
			zap.Int("total", len(reqs)),
			zap.String("brand", req.Brand),
			zap.String("status", string(o.Status)),
			zap.Bool("cached", hit),
		)
	}

	logSummary(&res.Summary, d.cache.Len(), time.Since(start))
	return res, nil
}

// RunParallel verifies each unique pair once on a bounded pool, then fans
// the outcomes back out to every row in input order and calls emit for
// each row after the pool has finished.
func (d *Driver) RunParallel(ctx context.Context, reqs []model.VerificationRequest, emit EmitFunc) (*Result, error) {
	start := time.Now()

	index := make(map[model.PairKey]int)
	var unique []model.VerificationRequest
	for _, req := range reqs {
		if _, ok := index[req.Key()]; !ok {
			index[req.Key()] = len(unique)
			unique = append(unique, req)
		}
	}

	zap.L().Info("batch: starting parallel run",
		zap.Int("rows", len(reqs)),
		zap.Int("unique_pairs", len(unique)),
		zap.Int("workers", d.workers),
	)

	// each worker writes only its own slot
	slots := make([]*model.Outcome, len(unique))
	hits := make([]bool, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, req := range unique {
		g.Go(func() error {
			o, hit, err := d.process(gctx, req)
			if err != nil {
				return err
			}
			slots[i], hits[i] = o, hit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Outcomes: make([]*model.Outcome, len(reqs))}
	seen := make([]bool, len(unique))
	for i, req := range reqs {
		slot := index[req.Key()]
		o := bind(slots[slot], req)
		res.Outcomes[i] = o
		res.Summary.Add(o, hits[slot] || seen[slot])
		seen[slot] = true
	}

	if emit != nil {
		for i, o := range res.Outcomes {
			if err := emit(i, o); err != nil {
				return res, eris.Wrapf(err, "batch: write row %d", i)
			}
		}
	}

	logSummary(&res.Summary, d.cache.Len(), time.Since(start))
	return res, nil
}

// process verifies req through the cache. The only error it returns is a
// done context; any other fault becomes an Error outcome.
func (d *Driver) process(ctx context.Context, req model.VerificationRequest) (*model.Outcome, bool, error) {
	o, hit, err := d.cache.GetOrCompute(ctx, req.Key(), func(ctx context.Context) (o *model.Outcome, err error) {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("batch: verification panicked",
					zap.String("brand", req.Brand),
					zap.String("holding", req.Holding),
					zap.Any("panic", r),
				)
				o, err = model.ErrorOutcome(req, eris.Errorf("panic: %v", r)), nil
			}
		}()
		return d.verifier.Verify(ctx, req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return model.ErrorOutcome(req, err), false, nil
	}
	return o, hit, nil
}

// bind returns o attached to req. Cached outcomes belong to the row that
// first produced them, so other rows get a copy.
func bind(o *model.Outcome, req model.VerificationRequest) *model.Outcome {
	if o.Request.Row == req.Row && o.Request.Key() == req.Key() {
		return o
	}
	c := *o
	c.Request = req
	return &c
}

func logSummary(s *model.Summary, cached int, elapsed time.Duration) {
	zap.L().Info("batch: complete",
		zap.Int("total", s.Total),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Int("errored", s.Errored),
		zap.Int("owned", s.Owned),
		zap.Int("not_owned", s.NotOwned),
		zap.Int("needs_review", s.NeedsReview),
		zap.Int("cache_hits", s.CacheHits),
		zap.Int("cached_pairs", cached),
		zap.Duration("elapsed", elapsed),
	)
	for _, a := range s.Anomalies {
		zap.L().Warn("batch: brand not owned by its holding",
			zap.String("holding", a.Holding),
			zap.String("brand", a.Brand),
		)
	}
}
