package matcher

import (
	"sort"
	"strings"

	"github.com/bohumlab/commission-gateway/dataset"
)

// Matcher fuzzy-matches parsed queries against the commission dataset. It is
// deterministic: identical query and dataset always produce identical output,
// which matters because downstream consumers present the resolved numbers as
// authoritative.
type Matcher struct {
	minScore        float64
	maxAlternatives int
}

// Candidate is one scored product.
type Candidate struct {
	ProductName   string                  `json:"product_name"`
	Company       string                  `json:"company"`
	PaymentPeriod string                  `json:"payment_period"`
	RowNumber     int                     `json:"row_number"`
	MatchScore    float64                 `json:"match_score"`
	Metadata      dataset.ProductMetadata `json:"metadata"`
	Record        *dataset.ProductRecord  `json:"-"`
}

// Result is the matching outcome. BestMatch is nil when nothing cleared the
// acceptance floor; Reason then says why.
type Result struct {
	BestMatch    *Candidate  `json:"best_match,omitempty"`
	Alternatives []Candidate `json:"alternatives,omitempty"`
	Reason       string      `json:"reason,omitempty"`
}

// Found reports whether a best match was selected.
func (r *Result) Found() bool {
	return r.BestMatch != nil
}

// New builds a matcher. minScore is the acceptance floor below which a
// no-match result is reported instead of a guess.
func New(minScore float64, maxAlternatives int) *Matcher {
	if minScore <= 0 {
		minScore = 0.5
	}
	if maxAlternatives <= 0 {
		maxAlternatives = 3
	}
	return &Matcher{minScore: minScore, maxAlternatives: maxAlternatives}
}

// Match scores every product in ds against the parsed query.
//
// Per keyword: +1.0 for a substring hit on the normalized name, +0.5 × edit
// similarity, +0.8 for exact membership in the name's token list. A payment
// period hit adds +2.0 (exact periods dominate fuzzy name noise) and a
// company hint +1.5. Ties break by row number, then company name.
func (m *Matcher) Match(ds *dataset.Dataset, parsed ParsedQuery) Result {
	if ds == nil || len(ds.Companies) == 0 {
		return Result{Reason: "empty dataset"}
	}

	var candidates []Candidate
	companies := ds.CompanyNames()
	sort.Strings(companies)

	periodNorm := normalizeName(parsed.PaymentPeriod)
	for _, companyName := range companies {
		company := ds.Companies[companyName]
		for _, p := range company.Products {
			score := m.scoreProduct(p, companyName, parsed, periodNorm)
			if score <= 0 {
				continue
			}
			candidates = append(candidates, Candidate{
				ProductName:   p.Metadata.ProductName,
				Company:       companyName,
				PaymentPeriod: p.Metadata.PaymentPeriod,
				RowNumber:     p.RowNumber,
				MatchScore:    score,
				Metadata:      p.Metadata,
				Record:        p,
			})
		}
	}

	if len(candidates) == 0 {
		return Result{Reason: "no products matched the query"}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].MatchScore != candidates[j].MatchScore {
			return candidates[i].MatchScore > candidates[j].MatchScore
		}
		if candidates[i].RowNumber != candidates[j].RowNumber {
			return candidates[i].RowNumber < candidates[j].RowNumber
		}
		return candidates[i].Company < candidates[j].Company
	})

	if candidates[0].MatchScore < m.minScore {
		return Result{Reason: "best candidate below acceptance threshold"}
	}

	best := candidates[0]
	n := m.maxAlternatives
	if n > len(candidates)-1 {
		n = len(candidates) - 1
	}
	alts := make([]Candidate, n)
	copy(alts, candidates[1:1+n])
	return Result{BestMatch: &best, Alternatives: alts}
}

func (m *Matcher) scoreProduct(p *dataset.ProductRecord, company string, parsed ParsedQuery, periodNorm string) float64 {
	nameNorm := normalizeName(stripQualifiers(p.Metadata.ProductName))
	tokens := nameKeywords(p.Metadata.ProductName)

	score := 0.0
	for _, keyword := range parsed.ProductKeywords {
		kw := normalizeName(keyword)
		if kw == "" {
			continue
		}
		if strings.Contains(nameNorm, kw) {
			score += 1.0
		}
		score += similarity(kw, nameNorm) * 0.5
		for _, tok := range tokens {
			if tok == kw {
				score += 0.8
				break
			}
		}
	}

	if periodNorm != "" {
		if productPeriod := normalizeName(p.Metadata.PaymentPeriod); productPeriod != "" &&
			strings.Contains(productPeriod, periodNorm) {
			score += 2.0
		}
	}

	if parsed.CompanyHint != "" && strings.Contains(company, parsed.CompanyHint) {
		score += 1.5
	}
	return score
}
