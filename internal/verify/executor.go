package verify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/brand-verifier/internal/resilience"
)

// ExecutorConfig bounds calls to the search service.
type ExecutorConfig struct {
	Service   string // label for logs
	Retry     resilience.RetryConfig
	Timeout   time.Duration // per attempt; 0 = none
	RateLimit float64       // requests per second shared by all callers; 0 = unlimited
}

// Executor sends queries to an Answerer with a per-attempt timeout, a fixed
// delay between attempts and an optional shared rate limit. It is safe for
// concurrent use.
type Executor struct {
	answerer Answerer
	cfg      ExecutorConfig
	limiter  *rate.Limiter
}

// NewExecutor creates an Executor.
func NewExecutor(answerer Answerer, cfg ExecutorConfig) *Executor {
	if cfg.Service == "" {
		cfg.Service = "search"
	}
	e := &Executor{answerer: answerer, cfg: cfg}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return e
}

// MaxAttempts returns the configured attempt limit.
func (e *Executor) MaxAttempts() int {
	if e.cfg.Retry.MaxAttempts <= 0 {
		return resilience.DefaultRetryConfig().MaxAttempts
	}
	return e.cfg.Retry.MaxAttempts
}

// Execute performs a single attempt.
func (e *Executor) Execute(ctx context.Context, q Query) (*RawAnswer, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "verify: rate limit wait")
		}
	}

	callCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	ans, err := e.answerer.Answer(callCtx, q)
	if err != nil {
		return nil, err
	}
	if ans == nil {
		return nil, eris.New("verify: empty answer")
	}
	return ans, nil
}

// Run executes q and hands every answer to parse until parse accepts one or
// the attempts run out. Transport failures and parse rejections each
// consume one attempt. It returns the parsed value and the number of
// attempts made.
func Run[T any](ctx context.Context, e *Executor, q Query, parse func(*RawAnswer) (T, error)) (T, int, error) {
	retry := e.cfg.Retry
	retry.MaxAttempts = e.MaxAttempts()
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(e.cfg.Service, "answer")
	}

	attempts := 0
	val, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (T, error) {
		attempts++
		var zero T
		ans, err := e.Execute(ctx, q)
		if err != nil {
			return zero, err
		}
		v, err := parse(ans)
		if err != nil {
			zap.L().Debug("verify: answer rejected",
				zap.String("service", e.cfg.Service),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			return zero, err
		}
		return v, nil
	})
	return val, attempts, err
}
