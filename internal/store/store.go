// Package store persists batch runs, their outcomes and the verdict cache.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-verifier/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("not found")

// DefaultCacheTTL is how long a cached verdict stays valid.
const DefaultCacheTTL = 7 * 24 * time.Hour

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for verification runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, input, output string, mode model.RunMode) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.Summary, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Outcomes
	SaveOutcomes(ctx context.Context, runID string, outcomes []*model.Outcome) error
	ListOutcomes(ctx context.Context, runID string) ([]*model.Outcome, error)

	// Verdict cache
	GetCachedOutcome(ctx context.Context, key model.PairKey) (*model.Outcome, error)
	SetCachedOutcome(ctx context.Context, o *model.Outcome, ttl time.Duration) error
	DeleteExpiredOutcomes(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// runStatusFor maps a run error to its final status.
func runStatusFor(runErr error) (model.RunStatus, string) {
	if runErr != nil {
		return model.RunStatusFailed, runErr.Error()
	}
	return model.RunStatusComplete, ""
}

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return 100
	}
	return filter.Limit
}
