package resolver

import (
	"fmt"

	"github.com/bohumlab/commission-gateway/dataset"
)

// Resolver scales a matched product's stored commission fractions to a
// requested commission tier.
//
// The arithmetic contract: stored values are fractions at the 60% base, so
// the tier rescale is value × (percentage / 60). Converting a scaled value to
// a display percentage is a separate ×100 at the presentation boundary —
// intermediate values are never rounded.

// Resolved is the scaled rate breakdown for one product.
type Resolved struct {
	Company            string          `json:"company"`
	Percentage         float64         `json:"percentage"`
	MultiplierRatio    float64         `json:"multiplier_ratio"`
	CalculationFormula string          `json:"calculation_formula"`
	Product            ResolvedProduct `json:"product"`
}

// ResolvedProduct carries the scaled rate map alongside provenance.
type ResolvedProduct struct {
	RowNumber       int                     `json:"row_number"`
	Metadata        dataset.ProductMetadata `json:"metadata"`
	CommissionRates map[string]float64      `json:"commission_rates"`
}

// ErrPercentageOutOfRange rejects tiers outside the 1–200% range the dataset
// is meant to serve.
type ErrPercentageOutOfRange struct {
	Percentage float64
}

func (e *ErrPercentageOutOfRange) Error() string {
	return fmt.Sprintf("percentage %.0f%% not in range (1%%-200%%)", e.Percentage)
}

// Resolve scales every rate key of record by percentage/60. A zero percentage
// means the query named no tier and resolves at the 60% base.
func Resolve(company string, record *dataset.ProductRecord, percentage float64) (*Resolved, error) {
	if percentage == 0 {
		percentage = dataset.BaseCommissionPercent
	}
	if percentage < 1 || percentage > 200 {
		return nil, &ErrPercentageOutOfRange{Percentage: percentage}
	}

	multiplier := percentage / dataset.BaseCommissionPercent
	rates := record.CloneRates()
	for key, base := range rates {
		rates[key] = base * multiplier
	}

	return &Resolved{
		Company:            company,
		Percentage:         percentage,
		MultiplierRatio:    multiplier,
		CalculationFormula: fmt.Sprintf("%.0f%% = (60%% × %.6f)", percentage, multiplier),
		Product: ResolvedProduct{
			RowNumber:       record.RowNumber,
			Metadata:        record.Metadata,
			CommissionRates: rates,
		},
	}, nil
}

// Total returns the resolved aggregate rate, preferring the native FC계 label.
func (r *Resolved) Total() (float64, bool) {
	if v, ok := r.Product.CommissionRates[dataset.FCTotalKey]; ok {
		return v, true
	}
	if v, ok := r.Product.CommissionRates[dataset.TotalKey]; ok {
		return v, true
	}
	return 0, false
}

// DisplayPercent converts a scaled fraction to its display percentage. The
// ×100 happens only here, at the presentation boundary.
func DisplayPercent(scaled float64) float64 {
	return scaled * 100
}
