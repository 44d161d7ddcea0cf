package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-verifier/internal/model"
)

// Backing is a persistent verdict cache consulted before computing.
type Backing interface {
	GetCachedOutcome(ctx context.Context, key model.PairKey) (*model.Outcome, error)
	SetCachedOutcome(ctx context.Context, o *model.Outcome, ttl time.Duration) error
}

type entry struct {
	done      chan struct{}
	outcome   *model.Outcome
	err       error
	fromStore bool
}

// Cache deduplicates verifications by (holding, brand). Concurrent callers
// for the same key share one computation. Outcomes are stored as computed
// and must not be modified.
type Cache struct {
	mu      sync.Mutex
	entries map[model.PairKey]*entry
	backing Backing
	ttl     time.Duration

	successOnly bool
	preset      string
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// SuccessOnly keeps only Success outcomes once computed. Long-lived callers
// use it so a transient failure is retried on the next request.
func SuccessOnly() CacheOption {
	return func(c *Cache) {
		c.successOnly = true
	}
}

// ForPreset ignores stored outcomes scored under another preset.
func ForPreset(name string) CacheOption {
	return func(c *Cache) {
		c.preset = name
	}
}

// NewCache creates a cache. backing may be nil; only Success outcomes are
// written to it, each valid for ttl.
func NewCache(backing Backing, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[model.PairKey]*entry),
		backing: backing,
		ttl:     ttl,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Len returns the number of keys held, including in-flight ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrCompute returns the outcome for key, calling compute at most once per
// key while it succeeds. hit is true when the outcome came from an earlier
// computation or from the backing store. A compute error or panic is
// returned to every waiting caller and is not cached. With SuccessOnly,
// non-Success outcomes are shared with concurrent callers only.
func (c *Cache) GetOrCompute(ctx context.Context, key model.PairKey, compute func(context.Context) (*model.Outcome, error)) (o *model.Outcome, hit bool, err error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		select {
		case <-e.done:
			return e.outcome, true, e.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	e := &entry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	defer func() {
		if !c.keep(e) {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		close(e.done)
	}()

	if stored := c.lookup(ctx, key); stored != nil {
		e.outcome, e.fromStore = stored, true
		return stored, true, nil
	}

	e.outcome, e.err = safeCompute(ctx, key, compute)
	if e.err == nil {
		c.persist(ctx, e.outcome)
	}
	return e.outcome, false, e.err
}

func (c *Cache) keep(e *entry) bool {
	if e.err != nil {
		return false
	}
	return !c.successOnly || e.outcome.Status == model.StatusSuccess
}

// safeCompute turns a panic or a missing outcome into an error.
func safeCompute(ctx context.Context, key model.PairKey, compute func(context.Context) (*model.Outcome, error)) (o *model.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("batch: compute panicked",
				zap.String("holding", key.Holding),
				zap.String("brand", key.Brand),
				zap.Any("panic", r),
			)
			o, err = nil, eris.Errorf("batch: compute panicked: %v", r)
		}
	}()
	o, err = compute(ctx)
	if err == nil && o == nil {
		err = eris.New("batch: verifier returned no outcome")
	}
	return o, err
}

func (c *Cache) lookup(ctx context.Context, key model.PairKey) *model.Outcome {
	if c.backing == nil {
		return nil
	}
	o, err := c.backing.GetCachedOutcome(ctx, key)
	if err != nil {
		zap.L().Warn("batch: cache lookup failed",
			zap.String("holding", key.Holding),
			zap.String("brand", key.Brand),
			zap.Error(err),
		)
		return nil
	}
	if o == nil || o.Status != model.StatusSuccess {
		return nil
	}
	if c.preset != "" && o.Preset != c.preset {
		zap.L().Debug("batch: stored verdict scored under another preset",
			zap.String("brand", key.Brand),
			zap.String("stored", o.Preset),
			zap.String("want", c.preset),
		)
		return nil
	}
	return o
}

func (c *Cache) persist(ctx context.Context, o *model.Outcome) {
	if c.backing == nil || o == nil || o.Status != model.StatusSuccess {
		return
	}
	if err := c.backing.SetCachedOutcome(ctx, o, c.ttl); err != nil {
		zap.L().Warn("batch: cache write failed",
			zap.String("holding", o.Request.Holding),
			zap.String("brand", o.Request.Brand),
			zap.Error(err),
		)
	}
}
