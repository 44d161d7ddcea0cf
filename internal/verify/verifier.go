// Package verify turns a brand/holding pair into a scored ownership verdict
// by querying a web-search answering service.
package verify

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/internal/scorer"
)

// DefaultDualPassThreshold is the confidence below which a second pass runs.
const DefaultDualPassThreshold = 70

// Config tunes a Verifier.
type Config struct {
	Scorer            scorer.Config
	DualPass          bool
	DualPassThreshold float64
	System            string // overrides SystemInstructions when set
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithRepairer enables repair of answers whose JSON could not be extracted.
func WithRepairer(r Repairer) Option {
	return func(v *Verifier) {
		v.repairer = r
	}
}

// WithRegistry adds matching trademark registrations to every answer's
// sources before scoring.
func WithRegistry(r *RegistryCheck) Option {
	return func(v *Verifier) {
		v.registry = r
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// Verifier runs the full verification of one request. It holds no per-call
// state and is safe for concurrent use.
type Verifier struct {
	exec      *Executor
	validator *Validator
	repairer  Repairer
	registry  *RegistryCheck
	cfg       Config
	now       func() time.Time
}

// New creates a Verifier.
func New(exec *Executor, validator *Validator, cfg Config, opts ...Option) *Verifier {
	v := &Verifier{
		exec:      exec,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify produces the outcome for req. Exhausted attempts yield a Failed
// outcome, not an error; an error is returned only when ctx is done.
func (v *Verifier) Verify(ctx context.Context, req model.VerificationRequest) (*model.Outcome, error) {
	log := zap.L().With(zap.String("brand", req.Brand), zap.String("holding", req.Holding))

	if !req.Valid() {
		return v.stamp(model.ErrorOutcome(req, eris.New("verify: brand and holding are required"))), nil
	}

	var registered []model.SourceRef
	if v.registry != nil {
		registered = v.registry.Sources(ctx, req)
	}

	first, attempts, err := v.pass(ctx, req, registered)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("verify: no usable answer", zap.Int("attempts", attempts), zap.Error(err))
		return v.stamp(model.FailedOutcome(req, err.Error())), nil
	}

	result, passes := first, 1
	if v.cfg.DualPass && first.Confidence < v.threshold() {
		log.Info("verify: low confidence, running second pass", zap.Float64("confidence", first.Confidence))
		second, _, err := v.pass(ctx, req, registered)
		switch {
		case err == nil:
			result = Reconcile(first, &second)
			passes = 2
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			log.Warn("verify: second pass failed, keeping first", zap.Error(err))
		}
	}

	out := v.stamp(&model.Outcome{
		Request:     req,
		Verdict:     result.Verdict,
		Confidence:  scorer.Clamp(result.Confidence),
		NeedsReview: NeedsManualReview(result.Confidence, result.Verdict.Explanation),
		Status:      model.StatusSuccess,
		Passes:      passes,
	})
	log.Info("verify: done",
		zap.Bool("belongs_to", out.Verdict.BelongsTo),
		zap.Float64("confidence", out.Confidence),
		zap.Int("passes", passes),
	)
	return out, nil
}

// Preset returns the name of the scoring preset outcomes are stamped with.
func (v *Verifier) Preset() string {
	return v.cfg.Scorer.Name
}

func (v *Verifier) threshold() float64 {
	if v.cfg.DualPassThreshold <= 0 {
		return DefaultDualPassThreshold
	}
	return v.cfg.DualPassThreshold
}

func (v *Verifier) stamp(o *model.Outcome) *model.Outcome {
	o.Preset = v.cfg.Scorer.Name
	o.VerifiedAt = v.now()
	return o
}

// pass runs one independent query and scores the accepted answer together
// with the registered sources.
func (v *Verifier) pass(ctx context.Context, req model.VerificationRequest, registered []model.SourceRef) (Scored, int, error) {
	q := Query{Prompt: BuildPrompt(req), System: SystemInstructions}
	if v.cfg.System != "" {
		q.System = v.cfg.System
	}
	return Run(ctx, v.exec, q, func(ans *RawAnswer) (Scored, error) {
		verdict, err := v.parse(ctx, req, ans.Message)
		if err != nil {
			return Scored{}, err
		}
		verdict.Sources = model.MergeSources(ans.Sources, verdict.Sources, registered)
		b := scorer.Evaluate(verdict, verdict.Sources, v.cfg.Scorer)
		zap.L().Debug("verify: scored",
			zap.String("brand", req.Brand),
			zap.String("preset", v.cfg.Scorer.Name),
			zap.Int("official", b.Official),
			zap.Int("recent", b.Recent),
			zap.Float64("base", b.Base),
			zap.Bool("short_circuit", b.ShortCircuit),
			zap.Strings("adjustments", b.Applied),
			zap.Float64("confidence", b.Final),
		)
		return Scored{Verdict: verdict, Confidence: b.Final}, nil
	})
}

func (v *Verifier) parse(ctx context.Context, req model.VerificationRequest, message string) (model.Verdict, error) {
	verdict, err := v.validator.Parse(message)
	if err == nil || v.repairer == nil {
		return verdict, err
	}

	var xerr *ExtractionError
	if !errors.As(err, &xerr) || xerr.Kind == MissingFields {
		return verdict, err
	}

	fixed, rerr := v.repairer.Repair(ctx, req, message)
	if rerr != nil {
		zap.L().Debug("verify: repair failed", zap.String("brand", req.Brand), zap.Error(rerr))
		return verdict, err
	}
	repaired, perr := v.validator.Parse(fixed)
	if perr != nil {
		return verdict, err
	}
	return repaired, nil
}
