package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-verifier/internal/model"
)

var testYears = []string{"2023", "2024", "2025"}

func ownership() Config {
	cfg := OwnershipPreset()
	cfg.RecentYears = testYears
	return cfg
}

func remotePrior() Config {
	cfg := RemotePriorPreset()
	cfg.RecentYears = testYears
	return cfg
}

func ptr(f float64) *float64 { return &f }

func TestScore_OwnershipPreset(t *testing.T) {
	tests := []struct {
		name    string
		verdict model.Verdict
		sources []model.SourceRef
		want    float64
		applied []string
	}{
		{
			name:    "official source short-circuits",
			verdict: model.Verdict{BelongsTo: true},
			sources: []model.SourceRef{model.BareSource("https://www.henkel.com/brands")},
			want:    100,
		},
		{
			name:    "owned without sources",
			verdict: model.Verdict{BelongsTo: true},
			want:    32,
		},
		{
			name:    "recent non-official source",
			verdict: model.Verdict{BelongsTo: false},
			sources: []model.SourceRef{model.StructuredSource("https://example.net/x", "Article 2024", "")},
			want:    28,
		},
		{
			name:    "stale sale malus",
			verdict: model.Verdict{BelongsTo: false, Explanation: "The brand was SOLD in 2010"},
			sources: []model.SourceRef{model.StructuredSource("https://example.net/a", "Old news", "")},
			want:    5.6,
			applied: []string{"stale_sale"},
		},
		{
			name:    "official corroboration and ownership chain",
			verdict: model.Verdict{BelongsTo: false},
			sources: []model.SourceRef{
				model.StructuredSource("https://a.gov/x", "Report 2024", "X is a subsidiary of Y"),
				model.StructuredSource("https://b.org/y", "Old", ""),
			},
			want:    80.04,
			applied: []string{"multiple_official", "ownership_chain"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Evaluate(tt.verdict, tt.sources, ownership())
			assert.InDelta(t, tt.want, b.Final, 0.001)
			assert.Equal(t, tt.applied, b.Applied)
		})
	}
}

func TestScore_RemotePriorPreset(t *testing.T) {
	v := model.Verdict{BelongsTo: false, Explanation: "Acquisition by X in 2019", RemoteConfidence: ptr(90)}
	sources := []model.SourceRef{
		model.BareSource("https://x.com/a"),
		model.BareSource("https://x.org/b"),
		model.BareSource("https://x.gov/c"),
	}

	b := Evaluate(v, sources, remotePrior())
	assert.Equal(t, 3, b.Official)
	assert.InDelta(t, 90, b.Base, 0.001)
	assert.Equal(t, []string{"reliable_official", "documented_acquisition", "corroborated"}, b.Applied)
	assert.InDelta(t, 100, b.Final, 0.001)
}

func TestScore_RemotePriorFallsBackToOwnershipBase(t *testing.T) {
	b := Evaluate(model.Verdict{BelongsTo: false}, nil, remotePrior())
	assert.InDelta(t, 20, b.Base, 0.001)
	assert.InDelta(t, 10, b.Final, 0.001)
}

func TestScore_ShortCircuitDisabled(t *testing.T) {
	cfg := ownership()
	cfg.ShortCircuit = false
	got := Score(model.Verdict{BelongsTo: true}, []model.SourceRef{model.BareSource("https://henkel.com")}, cfg)
	// 80*0.4 + 100*0.4 = 72
	assert.InDelta(t, 72, got, 0.001)
}

func TestScore_AlwaysClamped(t *testing.T) {
	cfg := ownership()
	cfg.ShortCircuit = false
	cfg.Adjustments = []Adjustment{
		{Name: "huge", Factor: 50},
		{Name: "tiny", Factor: 0.0001, ExplanationAny: []string{"tiny"}},
	}

	verdicts := []model.Verdict{
		{BelongsTo: true},
		{BelongsTo: false, Explanation: "tiny"},
		{BelongsTo: false, RemoteConfidence: ptr(500)},
		{BelongsTo: true, RemoteConfidence: ptr(-40)},
	}
	sourceSets := [][]model.SourceRef{
		nil,
		{model.BareSource("https://a.com")},
		{model.BareSource("nothing"), model.StructuredSource("https://b.gov", "2024", "owned by c")},
	}

	for _, base := range []BaseSource{BaseFromOwnership, BaseFromRemote} {
		cfg.BaseSource = base
		for _, v := range verdicts {
			for _, s := range sourceSets {
				got := Score(v, s, cfg)
				assert.GreaterOrEqual(t, got, 0.0)
				assert.LessOrEqual(t, got, 100.0)
			}
		}
	}
}

func TestScore_OfficialMatchesTitleAndContent(t *testing.T) {
	cfg := ownership()
	b := Evaluate(model.Verdict{}, []model.SourceRef{
		model.StructuredSource("", "INPI official registry", ""),
		model.StructuredSource("", "", "filed with wipo.int"),
		model.StructuredSource("", "Blog", "nothing"),
	}, cfg)
	assert.Equal(t, 2, b.Official)
	assert.Equal(t, 3, b.Quantity)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1))
	assert.Equal(t, 100.0, Clamp(101))
	assert.Equal(t, 42.5, Clamp(42.5))
}

func TestRecentYearsFrom(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"2024", "2025", "2026"}, RecentYearsFrom(now))
}

func TestParsePresets(t *testing.T) {
	data := []byte(`
presets:
  strict:
    weights: {base: 0.6, quality: 0.3, recency: 0.1}
    short_circuit: false
    adjustments:
      - name: rumor
        factor: 0.5
        explanation_any: [rumor]
`)
	presets, err := ParsePresets(data)
	require.NoError(t, err)
	require.Len(t, presets, 3)

	strict, err := Resolve(presets, "strict")
	require.NoError(t, err)
	assert.Equal(t, "strict", strict.Name)
	assert.Equal(t, BaseFromOwnership, strict.BaseSource)
	assert.Equal(t, DefaultOfficialDomains, strict.OfficialDomains)
	assert.InDelta(t, 80, strict.BaseOwned, 0.001)
	assert.False(t, strict.ShortCircuit)

	def, err := Resolve(presets, "")
	require.NoError(t, err)
	assert.Equal(t, PresetOwnership, def.Name)
}

func TestParsePresets_Invalid(t *testing.T) {
	_, err := ParsePresets([]byte(`
presets:
  broken:
    weights: {base: 1, quality: 1, recency: 0}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights should sum to 1")

	_, err = ParsePresets([]byte("presets: [nope"))
	assert.Error(t, err)
}

func TestResolve_Unknown(t *testing.T) {
	_, err := Resolve(Presets(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ownership, remote-prior")
}

func TestValidate_BuiltinPresets(t *testing.T) {
	for name, cfg := range Presets() {
		assert.NoError(t, Validate(cfg), name)
	}
}
