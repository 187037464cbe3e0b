package dataset

// Package dataset holds the in-memory commission-rate tables the gateway
// serves lookups from. The shape mirrors the normalized JSON produced by the
// sheet-extraction pass (see etl.go): per company, an ordered list of
// products, each carrying a label→rate map.
//
// Rate values are fractions at the 60% commission base: 0.405 means 40.5% of
// face value when the agent's commission tier is 60%. Scaling to another tier
// is a linear rescale by tier/60, performed by the resolver, never here.

// BaseCommissionPercent is the commission tier the stored fractions are
// defined at.
const BaseCommissionPercent = 60.0

// Aggregate rate labels. TotalKey is a normalized alias of FCTotalKey; the
// extraction pass writes both with the same value.
const (
	FCTotalKey = "FC계"
	TotalKey   = "Total"
)

// Dataset is the full multi-company commission table. Immutable after load;
// reload publishes a freshly built value through Store.
type Dataset struct {
	Companies map[string]*CompanyRecord `json:"companies"`
}

// CompanyRecord groups one insurer's products in source-row order. The order
// is the stable tie-break for equal match scores.
type CompanyRecord struct {
	CompanyName string           `json:"company_name"`
	Products    []*ProductRecord `json:"products"`
}

// ProductRecord is one product / payment-term row from the source sheet.
type ProductRecord struct {
	RowNumber           int                `json:"row_number"`
	Metadata            ProductMetadata    `json:"metadata"`
	BaseCommissionRates map[string]float64 `json:"base_commission_rates"`
}

// ProductMetadata carries the display attributes of a product. JSON keys are
// the source sheet's Korean column names.
type ProductMetadata struct {
	ProductName    string  `json:"상품명"`
	PaymentPeriod  string  `json:"납입기간"`
	ConversionRate float64 `json:"환산율"`
}

// Total returns the aggregate rate at the 60% base, preferring the native
// FC계 label over its Total alias.
func (p *ProductRecord) Total() (float64, bool) {
	if v, ok := p.BaseCommissionRates[FCTotalKey]; ok {
		return v, true
	}
	if v, ok := p.BaseCommissionRates[TotalKey]; ok {
		return v, true
	}
	return 0, false
}

// CloneRates returns a copy of the rate map so callers can scale values
// without touching the shared dataset.
func (p *ProductRecord) CloneRates() map[string]float64 {
	out := make(map[string]float64, len(p.BaseCommissionRates))
	for k, v := range p.BaseCommissionRates {
		out[k] = v
	}
	return out
}

// CompanyNames returns the insurer names in no particular order.
func (d *Dataset) CompanyNames() []string {
	names := make([]string, 0, len(d.Companies))
	for name := range d.Companies {
		names = append(names, name)
	}
	return names
}

// NumProducts counts products across all companies.
func (d *Dataset) NumProducts() int {
	n := 0
	for _, c := range d.Companies {
		n += len(c.Products)
	}
	return n
}
