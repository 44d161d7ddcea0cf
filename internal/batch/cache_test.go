package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-verifier/internal/model"
)

type memBacking struct {
	mu      sync.Mutex
	entries map[model.PairKey]*model.Outcome
	ttls    []time.Duration
	getErr  error
}

func newMemBacking() *memBacking {
	return &memBacking{entries: make(map[model.PairKey]*model.Outcome)}
}

func (m *memBacking) GetCachedOutcome(_ context.Context, key model.PairKey) (*model.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[key], nil
}

func (m *memBacking) SetCachedOutcome(_ context.Context, o *model.Outcome, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[o.Request.Key()] = o
	m.ttls = append(m.ttls, ttl)
	return nil
}

var persilKey = model.PairKey{Holding: "Henkel", Brand: "Persil"}

func TestCache_ConcurrentCallersShareOneComputation(t *testing.T) {
	c := NewCache(nil, 0)
	var calls atomic.Int32
	release := make(chan struct{})

	compute := func(context.Context) (*model.Outcome, error) {
		calls.Add(1)
		<-release
		return owned(model.NewRequest(0, "Henkel", "Persil", nil)), nil
	}

	var wg sync.WaitGroup
	results := make([]*model.Outcome, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, _, err := c.GetOrCompute(context.Background(), persilKey, compute)
			assert.NoError(t, err)
			results[i] = o
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, o := range results {
		assert.Same(t, results[0], o)
	}
	assert.Equal(t, 1, c.Len())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := NewCache(nil, 0)
	_, _, err := c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Zero(t, c.Len())

	o, hit, err := c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
		return owned(model.NewRequest(0, "Henkel", "Persil", nil)), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotNil(t, o)

	assert.Equal(t, 1, c.Len())
	again, hit, err := c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
		t.Fatal("a completed outcome must be reused")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, o, again)
}

func TestCache_PanicIsReturnedAndNotCached(t *testing.T) {
	c := NewCache(nil, 0)
	o, _, err := c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute panicked: boom")
	assert.Nil(t, o)
	assert.Zero(t, c.Len())

	var calls int
	o, hit, err := c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
		calls++
		return owned(model.NewRequest(0, "Henkel", "Persil", nil)), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, o)
	assert.Equal(t, 1, calls)
}

func TestCache_NilOutcomeIsAnError(t *testing.T) {
	c := NewCache(nil, 0)
	_, _, err := c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
		return nil, nil
	})
	assert.ErrorContains(t, err, "returned no outcome")
	assert.Zero(t, c.Len())
}

func TestCache_SuccessOnlyRecomputesFailures(t *testing.T) {
	c := NewCache(nil, 0, SuccessOnly())
	req := model.NewRequest(0, "Henkel", "Persil", nil)

	var calls int
	compute := func(context.Context) (*model.Outcome, error) {
		calls++
		if calls == 1 {
			return model.FailedOutcome(req, "search unavailable"), nil
		}
		return owned(req), nil
	}

	o, hit, err := c.GetOrCompute(context.Background(), persilKey, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, model.StatusFailed, o.Status)
	assert.Zero(t, c.Len())

	o, hit, err = c.GetOrCompute(context.Background(), persilKey, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, model.StatusSuccess, o.Status)
	assert.Equal(t, 1, c.Len())

	_, hit, err = c.GetOrCompute(context.Background(), persilKey, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, calls)
}

func TestCache_FailuresKeptByDefault(t *testing.T) {
	c := NewCache(nil, 0)
	req := model.NewRequest(0, "Henkel", "Persil", nil)

	var calls int
	compute := func(context.Context) (*model.Outcome, error) {
		calls++
		return model.FailedOutcome(req, "search unavailable"), nil
	}
	_, _, err := c.GetOrCompute(context.Background(), persilKey, compute)
	require.NoError(t, err)
	o, hit, err := c.GetOrCompute(context.Background(), persilKey, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, model.StatusFailed, o.Status)
	assert.Equal(t, 1, calls)
}

func TestCache_BackingPreSeedsAndPersistsSuccess(t *testing.T) {
	backing := newMemBacking()
	stored := owned(model.NewRequest(9, "Henkel", "Persil", nil))
	backing.entries[persilKey] = stored

	c := NewCache(backing, 48*time.Hour)
	o, hit, err := c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
		t.Fatal("compute should not run for a stored verdict")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, stored, o)

	loctite := model.PairKey{Holding: "Henkel", Brand: "Loctite"}
	_, hit, err = c.GetOrCompute(context.Background(), loctite, func(context.Context) (*model.Outcome, error) {
		return owned(model.NewRequest(1, "Henkel", "Loctite", nil)), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Contains(t, backing.entries, loctite)
	assert.Equal(t, []time.Duration{48 * time.Hour}, backing.ttls)
}

func TestCache_OnlySuccessIsPersisted(t *testing.T) {
	backing := newMemBacking()
	c := NewCache(backing, time.Hour)

	_, _, err := c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
		return model.FailedOutcome(model.NewRequest(0, "Henkel", "Persil", nil), "no JSON"), nil
	})
	require.NoError(t, err)
	assert.Empty(t, backing.entries)
}

func TestCache_StoredVerdictFromOtherPresetIsRecomputed(t *testing.T) {
	backing := newMemBacking()
	stored := owned(model.NewRequest(0, "Henkel", "Persil", nil))
	stored.Preset = "ownership"
	backing.entries[persilKey] = stored

	var calls int
	compute := func(context.Context) (*model.Outcome, error) {
		calls++
		o := owned(model.NewRequest(0, "Henkel", "Persil", nil))
		o.Preset = "remote-prior"
		return o, nil
	}

	o, hit, err := NewCache(backing, time.Hour, ForPreset("remote-prior")).GetOrCompute(context.Background(), persilKey, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "remote-prior", o.Preset)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "remote-prior", backing.entries[persilKey].Preset)

	o, hit, err = NewCache(backing, time.Hour, ForPreset("remote-prior")).GetOrCompute(context.Background(), persilKey, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "remote-prior", o.Preset)
	assert.Equal(t, 1, calls)
}

func TestCache_BackingErrorFallsBackToCompute(t *testing.T) {
	backing := newMemBacking()
	backing.getErr = errors.New("database is locked")
	c := NewCache(backing, time.Hour)

	var calls int
	_, hit, err := c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
		calls++
		return owned(model.NewRequest(0, "Henkel", "Persil", nil)), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)
}

func TestCache_WaiterHonoursContext(t *testing.T) {
	c := NewCache(nil, 0)
	release := make(chan struct{})
	defer close(release)

	started := make(chan struct{})
	go func() {
		_, _, _ = c.GetOrCompute(context.Background(), persilKey, func(context.Context) (*model.Outcome, error) {
			close(started)
			<-release
			return owned(model.NewRequest(0, "Henkel", "Persil", nil)), nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := c.GetOrCompute(ctx, persilKey, func(context.Context) (*model.Outcome, error) {
		t.Fatal("second caller must wait, not compute")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, c.Len())
}
