package verify

import (
	"strings"

	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/internal/scorer"
)

// Reconciliation weights and the penalty per differing detail field.
const (
	firstPassWeight  = 0.4
	secondPassWeight = 0.6
	mismatchPenalty  = 0.9
)

// Scored is a verdict with its confidence.
type Scored struct {
	Verdict    model.Verdict
	Confidence float64
}

// Reconcile merges two independent passes over the same pair. A nil second
// pass leaves the first unchanged.
func Reconcile(first Scored, second *Scored) Scored {
	if second == nil {
		return first
	}

	if first.Verdict.BelongsTo != second.Verdict.BelongsTo {
		if second.Confidence > first.Confidence {
			return *second
		}
		return first
	}

	conf := first.Confidence*firstPassWeight + second.Confidence*secondPassWeight
	if first.Verdict.TypeRelation != second.Verdict.TypeRelation {
		conf *= mismatchPenalty
	}
	if first.Verdict.Zones != second.Verdict.Zones {
		conf *= mismatchPenalty
	}
	if first.Verdict.ChangeDate != second.Verdict.ChangeDate {
		conf *= mismatchPenalty
	}

	merged := first.Verdict
	merged.Explanation = strings.TrimSpace(first.Verdict.Explanation + " " + second.Verdict.Explanation)
	merged.Sources = append(append([]model.SourceRef(nil), first.Verdict.Sources...), second.Verdict.Sources...)

	return Scored{Verdict: merged, Confidence: scorer.Clamp(conf)}
}
