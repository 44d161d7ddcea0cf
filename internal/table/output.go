package table

import (
	"strconv"

	"github.com/sells-group/brand-verifier/internal/model"
)

// Output columns appended to every input row.
const (
	ColOwned           = "Owned"
	ColConfidence      = "Confidence"
	ColRelationType    = "Relation Type"
	ColZones           = "Geographic Zones"
	ColChangeDate      = "Change Date"
	ColRelationDetails = "Relation Details"
	ColExplanation     = "Explanation"
	ColSources         = "Sources"
	ColNeedsReview     = "Needs Review"
	ColStatus          = "Verification Status"
	ColError           = "Verification Error"
)

// OutputColumns lists the result columns in output order.
var OutputColumns = []string{
	ColOwned,
	ColConfidence,
	ColRelationType,
	ColZones,
	ColChangeDate,
	ColRelationDetails,
	ColExplanation,
	ColSources,
	ColNeedsReview,
	ColStatus,
	ColError,
}

// OutputHeader is the input header followed by the result columns. Input
// columns that share a result column's name are overwritten in place.
func OutputHeader(input []string) []string {
	header := append([]string(nil), input...)
	for _, c := range OutputColumns {
		if indexOf(input, c) < 0 {
			header = append(header, c)
		}
	}
	return header
}

// OutputRow lays out the input cells and the outcome under header, which
// must come from OutputHeader(input).
func OutputRow(header, input []string, o *model.Outcome) []string {
	row := make([]string, len(header))
	copy(row, input)
	for i, v := range OutcomeValues(o) {
		if j := indexOf(header, OutputColumns[i]); j >= 0 {
			row[j] = v
		}
	}
	return row
}

// OutcomeValues renders o in OutputColumns order.
func OutcomeValues(o *model.Outcome) []string {
	v := o.Verdict
	return []string{
		strconv.FormatBool(v.BelongsTo),
		strconv.FormatFloat(o.Confidence, 'f', 2, 64),
		v.TypeRelation,
		v.Zones,
		v.ChangeDate,
		v.RelationDetails,
		v.Explanation,
		model.FormatSources(v.Sources),
		strconv.FormatBool(o.NeedsReview),
		string(o.Status),
		o.ErrorDetail,
	}
}

func indexOf(cols []string, col string) int {
	for i, c := range cols {
		if c == col {
			return i
		}
	}
	return -1
}
