package verify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-verifier/internal/resilience"
)

func fastRetry(n int) resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: n, Delay: 0}
}

func staticAnswerer(calls *atomic.Int32, msg string) Answerer {
	return AnswererFunc(func(context.Context, Query) (*RawAnswer, error) {
		calls.Add(1)
		return &RawAnswer{Message: msg}, nil
	})
}

func TestRun_StopsOnFirstAccepted(t *testing.T) {
	var calls atomic.Int32
	answers := []string{"garbage", "still garbage", "ok"}
	a := AnswererFunc(func(context.Context, Query) (*RawAnswer, error) {
		n := calls.Add(1)
		return &RawAnswer{Message: answers[n-1]}, nil
	})

	e := NewExecutor(a, ExecutorConfig{Retry: fastRetry(5)})
	got, attempts, err := Run(context.Background(), e, Query{}, func(ans *RawAnswer) (string, error) {
		if ans.Message != "ok" {
			return "", errors.New("rejected")
		}
		return ans.Message, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRun_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	e := NewExecutor(staticAnswerer(&calls, "nope"), ExecutorConfig{Retry: fastRetry(4)})

	_, attempts, err := Run(context.Background(), e, Query{}, func(*RawAnswer) (int, error) {
		return 0, errors.New("rejected")
	})
	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, int32(4), calls.Load())
}

func TestRun_TransportErrorsConsumeAttempts(t *testing.T) {
	var calls atomic.Int32
	a := AnswererFunc(func(context.Context, Query) (*RawAnswer, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset")
		}
		return &RawAnswer{Message: "fine"}, nil
	})

	e := NewExecutor(a, ExecutorConfig{Retry: fastRetry(2)})
	got, attempts, err := Run(context.Background(), e, Query{}, func(ans *RawAnswer) (string, error) {
		return ans.Message, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
	assert.Equal(t, 2, attempts)
}

func TestExecutor_PerAttemptTimeout(t *testing.T) {
	a := AnswererFunc(func(ctx context.Context, _ Query) (*RawAnswer, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	e := NewExecutor(a, ExecutorConfig{Timeout: 20 * time.Millisecond})
	start := time.Now()
	_, err := e.Execute(context.Background(), Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecutor_NilAnswer(t *testing.T) {
	e := NewExecutor(AnswererFunc(func(context.Context, Query) (*RawAnswer, error) {
		return nil, nil
	}), ExecutorConfig{})
	_, err := e.Execute(context.Background(), Query{})
	assert.ErrorContains(t, err, "empty answer")
}

func TestExecutor_RateLimit(t *testing.T) {
	var calls atomic.Int32
	e := NewExecutor(staticAnswerer(&calls, "x"), ExecutorConfig{RateLimit: 20})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := e.Execute(context.Background(), Query{})
		require.NoError(t, err)
	}
	// burst of one, then one token every 50ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecutor_RateLimitCancelled(t *testing.T) {
	var calls atomic.Int32
	e := NewExecutor(staticAnswerer(&calls, "x"), ExecutorConfig{RateLimit: 0.01})
	_, err := e.Execute(context.Background(), Query{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.Execute(ctx, Query{})
	assert.ErrorContains(t, err, "rate limit wait")
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_MaxAttemptsDefault(t *testing.T) {
	e := NewExecutor(nil, ExecutorConfig{})
	assert.Equal(t, 3, e.MaxAttempts())
	assert.Equal(t, 7, NewExecutor(nil, ExecutorConfig{Retry: fastRetry(7)}).MaxAttempts())
}

func TestRun_ContextCancelled(t *testing.T) {
	var calls atomic.Int32
	e := NewExecutor(staticAnswerer(&calls, "x"), ExecutorConfig{
		Retry: resilience.RetryConfig{MaxAttempts: 5, Delay: time.Hour},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, attempts, err := Run(ctx, e, Query{}, func(*RawAnswer) (string, error) {
		return "", errors.New("rejected")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
