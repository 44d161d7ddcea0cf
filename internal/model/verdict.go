package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Verdict fields as they appear in the answer JSON.
const (
	FieldBelongsTo       = "belongs_to"
	FieldExplanation     = "explanation"
	FieldConfidence      = "confidence"
	FieldSources         = "sources"
	FieldTypeRelation    = "type_relation"
	FieldZones           = "zones_geographiques"
	FieldRelationDetails = "details_relation"
	FieldChangeDate      = "date_changement"
)

// Verdict is the ownership answer parsed from the search service.
type Verdict struct {
	BelongsTo       bool        `json:"belongs_to"`
	Explanation     string      `json:"explanation"`
	Sources         []SourceRef `json:"sources"`
	TypeRelation    string      `json:"type_relation"`
	Zones           string      `json:"zones_geographiques"`
	RelationDetails string      `json:"details_relation"`
	ChangeDate      string      `json:"date_changement,omitempty"`

	// RemoteConfidence is the service's own estimate, a weak prior at best.
	RemoteConfidence *float64 `json:"remote_confidence,omitempty"`
}

// VerdictFromMap converts a validated answer object into a Verdict. Optional
// fields of unexpected types are stringified rather than rejected.
func VerdictFromMap(m map[string]any) Verdict {
	v := Verdict{
		Explanation:     stringField(m, FieldExplanation),
		TypeRelation:    stringField(m, FieldTypeRelation),
		Zones:           stringField(m, FieldZones),
		RelationDetails: stringField(m, FieldRelationDetails),
		ChangeDate:      stringField(m, FieldChangeDate),
	}
	if b, ok := m[FieldBelongsTo].(bool); ok {
		v.BelongsTo = b
	}
	if c, ok := numberField(m, FieldConfidence); ok {
		v.RemoteConfidence = &c
	}

	switch src := m[FieldSources].(type) {
	case []any:
		for _, s := range src {
			ref := SourceFromAny(s)
			if ref.Kind == SourceBare && ref.Text == "" {
				continue
			}
			v.Sources = append(v.Sources, ref)
		}
	case string:
		if src != "" {
			v.Sources = []SourceRef{BareSource(src)}
		}
	}
	return v
}

func stringField(m map[string]any, key string) string {
	switch t := m[key].(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

func numberField(m map[string]any, key string) (float64, bool) {
	switch t := m[key].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Status is the verification status of one output row.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
)

// Defaults used when no verdict could be obtained.
const (
	FailedExplanation  = "Verification failed: no usable answer from the search service"
	FailedTypeRelation = "Undetermined"
	FailedZones        = "Not applicable"
	FailedDetails      = "Verification impossible"
)

// Outcome is the final result for one request. Outcomes are shared through
// the dedup cache and must not be modified once built.
type Outcome struct {
	Request     VerificationRequest `json:"request"`
	Verdict     Verdict             `json:"verdict"`
	Confidence  float64             `json:"confidence"`
	NeedsReview bool                `json:"needs_manual_review"`
	Status      Status              `json:"status"`
	ErrorDetail string              `json:"error_detail,omitempty"`
	Passes      int                 `json:"passes"`
	Preset      string              `json:"preset,omitempty"` // scoring preset of Confidence
	VerifiedAt  time.Time           `json:"verified_at"`
}

// FailedOutcome is the default outcome after every attempt was rejected.
func FailedOutcome(req VerificationRequest, detail string) *Outcome {
	return &Outcome{
		Request: req,
		Verdict: Verdict{
			Explanation:     FailedExplanation,
			TypeRelation:    FailedTypeRelation,
			Zones:           FailedZones,
			RelationDetails: FailedDetails,
		},
		NeedsReview: true,
		Status:      StatusFailed,
		ErrorDetail: detail,
		VerifiedAt:  time.Now().UTC(),
	}
}

// ErrorOutcome records an unexpected fault while processing a row.
func ErrorOutcome(req VerificationRequest, err error) *Outcome {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &Outcome{
		Request: req,
		Verdict: Verdict{
			Explanation:  "Error: " + detail,
			TypeRelation: FailedTypeRelation,
		},
		NeedsReview: true,
		Status:      StatusError,
		ErrorDetail: detail,
		VerifiedAt:  time.Now().UTC(),
	}
}
