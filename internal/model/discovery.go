package model

// HoldingBrands is a holding with its verified brands and the brands a
// discovery query reported as missing.
type HoldingBrands struct {
	Holding   string   `json:"holding"`
	Brands    []string `json:"brands"`
	NewBrands []string `json:"new_brands,omitempty"`
}

// SubBrand is one row of the brand hierarchy reported for a holding. Main
// brands have IsSubBrand false and an empty ParentBrand.
type SubBrand struct {
	Holding     string `json:"holding"`
	Brand       string `json:"brand"`
	SubBrand    string `json:"sub_brand,omitempty"`
	ParentBrand string `json:"parent_brand,omitempty"`
	IsSubBrand  bool   `json:"is_sub_brand"`
}
