package model

import "time"

// RunStatus represents the state of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunMode is the batch execution mode.
type RunMode string

const (
	RunModeSequential RunMode = "sequential"
	RunModeParallel   RunMode = "parallel"
	RunModeSingle     RunMode = "single"
)

// Run is one batch execution over an input file.
type Run struct {
	ID         string     `json:"id"`
	Input      string     `json:"input"`
	Output     string     `json:"output"`
	Mode       RunMode    `json:"mode"`
	Status     RunStatus  `json:"status"`
	Summary    *Summary   `json:"summary,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Summary tallies the outcomes of a run.
type Summary struct {
	Total       int `json:"total"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Errored     int `json:"errored"`
	Owned       int `json:"owned"`
	NotOwned    int `json:"not_owned"`
	NeedsReview int `json:"needs_review"`
	CacheHits   int `json:"cache_hits"`

	// Anomalies lists pairs verified as not owned by their holding.
	Anomalies []PairKey `json:"anomalies,omitempty"`
}

// Add folds one outcome into the summary.
func (s *Summary) Add(o *Outcome, cached bool) {
	s.Total++
	if cached {
		s.CacheHits++
	}
	switch o.Status {
	case StatusSuccess:
		s.Succeeded++
		if o.Verdict.BelongsTo {
			s.Owned++
		} else {
			s.NotOwned++
			s.Anomalies = append(s.Anomalies, o.Request.Key())
		}
	case StatusFailed:
		s.Failed++
	case StatusError:
		s.Errored++
	}
	if o.NeedsReview {
		s.NeedsReview++
	}
}
