package detector

import (
	"fmt"
	"regexp"
	"strings"
)

// Detector classifies free-text queries as commission questions before any
// matching work happens. It is a pure lexical pass: keyword hits plus a
// number-with-percent-unit pattern, combined into a confidence score.
type Detector struct {
	keywords         []string
	strongIndicators []string
	insuranceCombo   map[string]struct{}
}

// Result is the classification outcome for one query.
type Result struct {
	IsCommissionQuery bool     `json:"is_commission_query"`
	Confidence        float64  `json:"confidence"`
	MatchedKeywords   []string `json:"matched_keywords"`
	Reasoning         string   `json:"reasoning"`
}

// CommissionThreshold is the confidence at which a query counts as a
// commission question.
const CommissionThreshold = 0.5

// percentMarker is the synthetic keyword appended when the percent pattern
// fires.
const percentMarker = "percentage_indicator"

// percentPattern matches a number followed by a percent unit character
// (e.g. "75%", "85프로", "60 퍼센트").
var percentPattern = regexp.MustCompile(`(\d+)\s*[%프로센트]`)

// DefaultKeywords is the built-in signal vocabulary: commission terms,
// insurance types, well-known products, insurer names, payment periods and
// percent units.
var DefaultKeywords = []string{
	// commission terms
	"수수료", "커미션", "commission", "보험료", "수당",
	// insurance types
	"종신보험", "변액연금", "건강보험", "실손보험", "암보험",
	"종신", "변액", "연금", "보험",
	// common products
	"약속플러스", "변액유니버셜", "무배당", "유니버셜", "어린이보험",
	// insurers
	"KB", "삼성", "미래에셋", "한화", "교보", "동양", "메트라이프",
	"처브", "라이나", "흥국", "AIA", "푸르덴셜", "DB",
	// payment periods
	"년납", "일시납", "전기납", "평생납",
	// percent units
	"%", "프로", "퍼센트", "프로센트",
}

// DefaultStrongIndicators are keywords that alone mark a commission query.
var DefaultStrongIndicators = []string{"수수료", "커미션", "commission", "%", "프로"}

// insuranceComboKeywords paired with a percent pattern push confidence to the
// maximum tier.
var insuranceComboKeywords = []string{"종신보험", "변액연금", "보험"}

// New builds a detector. Empty slices fall back to the built-in vocabulary,
// so the keyword set stays configurable without code changes.
func New(keywords, strongIndicators []string) *Detector {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	if len(strongIndicators) == 0 {
		strongIndicators = DefaultStrongIndicators
	}
	combo := make(map[string]struct{}, len(insuranceComboKeywords))
	for _, k := range insuranceComboKeywords {
		combo[k] = struct{}{}
	}
	return &Detector{
		keywords:         keywords,
		strongIndicators: strongIndicators,
		insuranceCombo:   combo,
	}
}

// Detect classifies query. It never errs and has no side effects.
func (d *Detector) Detect(query string) Result {
	queryLower := strings.ToLower(strings.TrimSpace(query))

	var matched []string
	strongMatch := false
	for _, keyword := range d.keywords {
		if !strings.Contains(queryLower, strings.ToLower(keyword)) {
			continue
		}
		matched = append(matched, keyword)
		for _, strong := range d.strongIndicators {
			if strings.Contains(strings.ToLower(keyword), strings.ToLower(strong)) {
				strongMatch = true
				break
			}
		}
	}

	confidence := 0.0
	switch {
	case strongMatch:
		confidence = 0.9
	case len(matched) >= 3:
		confidence = 0.8
	case len(matched) >= 2:
		confidence = 0.6
	case len(matched) == 1:
		confidence = 0.3
	}

	hasPercent := percentPattern.MatchString(queryLower)
	if hasPercent {
		if confidence < 0.85 {
			confidence = 0.85
		}
		matched = append(matched, percentMarker)
	}

	hasInsurance := false
	for _, k := range matched {
		if _, ok := d.insuranceCombo[k]; ok {
			hasInsurance = true
			break
		}
	}
	if hasInsurance && hasPercent {
		confidence = 0.95
	}

	isCommission := confidence >= CommissionThreshold

	var reasoning string
	if isCommission {
		reasoning = fmt.Sprintf("발견된 키워드: %s. ", strings.Join(matched, ", "))
		switch {
		case strongMatch:
			reasoning += "강한 수수료 관련 키워드 발견."
		case hasInsurance && hasPercent:
			reasoning += "보험 상품과 퍼센트 조합 발견."
		default:
			reasoning += fmt.Sprintf("%d개의 관련 키워드 발견.", len(matched))
		}
	} else {
		reasoning = "수수료 관련 키워드가 충분하지 않음."
	}

	return Result{
		IsCommissionQuery: isCommission,
		Confidence:        confidence,
		MatchedKeywords:   matched,
		Reasoning:         reasoning,
	}
}
