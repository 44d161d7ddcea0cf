package scorer

import (
	"strings"

	"github.com/sells-group/brand-verifier/internal/model"
)

// Breakdown records the intermediate values of one scoring.
type Breakdown struct {
	Official       int
	Recent         int
	Quantity       int
	Quality        float64
	Recency        float64
	Base           float64
	OwnershipChain bool
	ShortCircuit   bool
	Applied        []string // adjustment names, in order
	Final          float64
}

// Score returns the confidence in [0,100] for verdict given its sources.
func Score(v model.Verdict, sources []model.SourceRef, cfg Config) float64 {
	return Evaluate(v, sources, cfg).Final
}

// Evaluate scores verdict and reports how the score was reached.
func Evaluate(v model.Verdict, sources []model.SourceRef, cfg Config) Breakdown {
	var b Breakdown

	for _, s := range sources {
		n := s.Normalize()
		if containsAny(cfg.OfficialDomains, n.URL, n.Title, n.Content) {
			b.Official++
		}
		if containsAny(cfg.RecentYears, n.Title, n.URL) {
			b.Recent++
		}
		if containsAny(cfg.OwnershipKeywords, n.Content) {
			b.OwnershipChain = true
		}
	}

	if cfg.ShortCircuit && v.BelongsTo && b.Official > 0 {
		b.ShortCircuit = true
		b.Final = 100
		return b
	}

	b.Quantity = max(len(sources), 1)
	b.Quality = float64(b.Official) / float64(b.Quantity) * 100
	b.Recency = float64(b.Recent) / float64(b.Quantity) * 100
	b.Base = base(v, cfg)

	score := b.Base*cfg.Weights.Base + b.Quality*cfg.Weights.Quality + b.Recency*cfg.Weights.Recency

	explanation := strings.ToLower(v.Explanation)
	for _, a := range cfg.Adjustments {
		if !applies(a, b, explanation) {
			continue
		}
		score = Clamp(score * a.Factor)
		b.Applied = append(b.Applied, a.Name)
	}

	b.Final = Clamp(score)
	return b
}

func base(v model.Verdict, cfg Config) float64 {
	if cfg.BaseSource == BaseFromRemote && v.RemoteConfidence != nil {
		return Clamp(*v.RemoteConfidence)
	}
	if v.BelongsTo {
		return cfg.BaseOwned
	}
	return cfg.BaseNotOwned
}

func applies(a Adjustment, b Breakdown, explanation string) bool {
	if a.MinOfficial > 0 && b.Official < a.MinOfficial {
		return false
	}
	if a.MinQuality > 0 && b.Quality < a.MinQuality {
		return false
	}
	if a.OwnershipChain && !b.OwnershipChain {
		return false
	}
	if a.NoRecentSources && b.Recent > 0 {
		return false
	}
	if len(a.ExplanationAny) > 0 && !containsAny(a.ExplanationAny, explanation) {
		return false
	}
	return true
}

// containsAny reports whether any haystack contains any of needles
// (case-insensitive; haystacks are expected lowercased).
func containsAny(needles []string, haystacks ...string) bool {
	for _, h := range haystacks {
		if h == "" {
			continue
		}
		for _, n := range needles {
			if n != "" && strings.Contains(h, strings.ToLower(n)) {
				return true
			}
		}
	}
	return false
}

// Clamp bounds a score to [0,100].
func Clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
