package model

import "strings"

// Optional context columns read from input rows.
const (
	ContextProductCategory = "Class Key - Description"
	ContextSubCategory     = "Group Class Key - Description"
	ContextBusinessUnit    = "Business Unit Description"
)

// ContextColumns lists the optional context columns in prompt order.
var ContextColumns = []string{
	ContextProductCategory,
	ContextSubCategory,
	ContextBusinessUnit,
}

// PairKey identifies a (holding, brand) pair for deduplication.
type PairKey struct {
	Holding string `json:"holding"`
	Brand   string `json:"brand"`
}

// String renders the key as "holding_brand".
func (k PairKey) String() string {
	return k.Holding + "_" + k.Brand
}

// VerificationRequest is one brand/holding pair read from an input row.
type VerificationRequest struct {
	Row     int               `json:"row"`
	Brand   string            `json:"brand_name"`
	Holding string            `json:"holding_name"`
	Context map[string]string `json:"context,omitempty"`
}

// NewRequest builds a request with trimmed names and only non-empty context values.
func NewRequest(row int, holding, brand string, ctx map[string]string) VerificationRequest {
	req := VerificationRequest{
		Row:     row,
		Brand:   strings.TrimSpace(brand),
		Holding: strings.TrimSpace(holding),
	}
	for k, v := range ctx {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if req.Context == nil {
			req.Context = make(map[string]string, len(ctx))
		}
		req.Context[k] = v
	}
	return req
}

// Key returns the dedup key of the request.
func (r VerificationRequest) Key() PairKey {
	return PairKey{Holding: r.Holding, Brand: r.Brand}
}

// Valid reports whether both names are present.
func (r VerificationRequest) Valid() bool {
	return r.Brand != "" && r.Holding != ""
}
