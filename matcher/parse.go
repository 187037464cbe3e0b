package matcher

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bohumlab/commission-gateway/dataset"
)

// ParsedQuery is the structured form of a free-text commission question.
type ParsedQuery struct {
	ProductKeywords []string `json:"product_keywords"`
	PaymentPeriod   string   `json:"payment_period,omitempty"`
	// Percentage is the requested commission tier, 0 when the query named
	// none (the resolver then falls back to the 60% base).
	Percentage  float64 `json:"percentage,omitempty"`
	CompanyHint string  `json:"company_hint,omitempty"`
}

var (
	percentTokenPattern  = regexp.MustCompile(`(\d+)\s*[%프]`)
	paymentPeriodPattern = regexp.MustCompile(`(\d+년납|일시납|전기납|평생납)`)
	// strippedChars removes percent tokens, digits and payment-period
	// syllables before keyword extraction.
	strippedChars = regexp.MustCompile(`[%프\d년납일시전기평생]`)
)

// ParseQuery extracts product keywords, the payment period, the requested
// percentage and a company hint from free text. Percentages outside 1–200 are
// treated as absent rather than errors.
func ParseQuery(query string, ds *dataset.Dataset) ParsedQuery {
	parsed := ParsedQuery{}

	if m := percentTokenPattern.FindStringSubmatch(query); m != nil {
		if pct, err := strconv.Atoi(m[1]); err == nil && pct >= 1 && pct <= 200 {
			parsed.Percentage = float64(pct)
		}
	}

	if m := paymentPeriodPattern.FindStringSubmatch(query); m != nil {
		parsed.PaymentPeriod = m[1]
	}

	cleaned := strippedChars.ReplaceAllString(query, " ")
	for _, w := range strings.Fields(cleaned) {
		if len([]rune(w)) > 1 {
			parsed.ProductKeywords = append(parsed.ProductKeywords, w)
		}
	}

	parsed.CompanyHint = detectCompanyHint(query, ds)
	return parsed
}

// companyAliases are short insurer names users actually type, checked in
// fixed order after the full dataset names.
var companyAliases = []string{"미래에셋", "메리츠", "라이나", "삼성", "한화", "교보", "현대", "KB", "DB", "IM"}

// detectCompanyHint looks for an insurer name in the query. Full dataset
// names win over short aliases; when several insurers match, the hint is
// dropped as ambiguous. A hint only ever boosts candidate scores, it never
// filters candidates, so a wrong hint cannot exclude the true match.
func detectCompanyHint(query string, ds *dataset.Dataset) string {
	if ds != nil {
		names := ds.CompanyNames()
		sort.Strings(names)
		var found []string
		for _, name := range names {
			if strings.Contains(query, name) {
				found = append(found, name)
			}
		}
		if len(found) == 1 {
			return found[0]
		}
		if len(found) > 1 {
			return ""
		}
	}
	var found []string
	for _, alias := range companyAliases {
		if strings.Contains(query, alias) {
			found = append(found, alias)
		}
	}
	if len(found) == 1 {
		return found[0]
	}
	return ""
}
