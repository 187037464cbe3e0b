package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bohumlab/commission-gateway/dataset"
)

func testDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Companies: map[string]*dataset.CompanyRecord{
			"KB라이프": {
				CompanyName: "KB라이프",
				Products: []*dataset.ProductRecord{
					{
						RowNumber: 12,
						Metadata: dataset.ProductMetadata{
							ProductName:    "(무)약속플러스종신보험",
							PaymentPeriod:  "20년납",
							ConversionRate: 1.0,
						},
						BaseCommissionRates: map[string]float64{
							"1차년": 1.2, dataset.FCTotalKey: 2.91582, dataset.TotalKey: 2.91582,
						},
					},
					{
						RowNumber: 13,
						Metadata: dataset.ProductMetadata{
							ProductName:   "(무)약속플러스종신보험",
							PaymentPeriod: "10년납",
						},
						BaseCommissionRates: map[string]float64{
							"1차년": 1.0, dataset.FCTotalKey: 2.5, dataset.TotalKey: 2.5,
						},
					},
				},
			},
			"삼성생명": {
				CompanyName: "삼성생명",
				Products: []*dataset.ProductRecord{
					{
						RowNumber: 12,
						Metadata: dataset.ProductMetadata{
							ProductName:   "변액유니버셜종신보험",
							PaymentPeriod: "20년납",
						},
						BaseCommissionRates: map[string]float64{
							"1차년": 0.9, dataset.FCTotalKey: 2.2, dataset.TotalKey: 2.2,
						},
					},
				},
			},
		},
	}
}

func TestParseQuery(t *testing.T) {
	ds := testDataset()

	tests := []struct {
		name       string
		query      string
		percentage float64
		period     string
		hint       string
	}{
		{"percent and period", "KB 약속플러스 20년납 75% 수수료", 75, "20년납", "KB"},
		{"percent out of range", "약속플러스 300% 수수료", 0, "", ""},
		{"korean percent unit", "약속플러스 85프로", 85, "", ""},
		{"lump sum period", "변액유니버셜 일시납", 0, "일시납", ""},
		{"full company name", "삼성생명 변액유니버셜 수수료", 0, "", "삼성생명"},
		{"ambiguous companies", "삼성 한화 연금 비교", 0, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseQuery(tt.query, ds)
			assert.Equal(t, tt.percentage, parsed.Percentage)
			assert.Equal(t, tt.period, parsed.PaymentPeriod)
			assert.Equal(t, tt.hint, parsed.CompanyHint)
		})
	}
}

func TestMatch_TypoStillFindsProduct(t *testing.T) {
	ds := testDataset()
	m := New(0.5, 3)

	// 약속프러스 is a one-syllable typo of 약속플러스.
	parsed := ParseQuery("KB 약속프러스 20년납 수수료", ds)
	res := m.Match(ds, parsed)

	require.True(t, res.Found(), "reason: %s", res.Reason)
	assert.Equal(t, "KB라이프", res.BestMatch.Company)
	assert.Equal(t, "(무)약속플러스종신보험", res.BestMatch.ProductName)
	assert.Equal(t, "20년납", res.BestMatch.PaymentPeriod)
	require.NotNil(t, res.BestMatch.Record)
}

func TestMatch_PaymentPeriodSelectsRow(t *testing.T) {
	ds := testDataset()
	m := New(0.5, 3)

	parsed := ParseQuery("약속플러스 10년납", ds)
	res := m.Match(ds, parsed)

	require.True(t, res.Found(), "reason: %s", res.Reason)
	assert.Equal(t, "10년납", res.BestMatch.PaymentPeriod)
	assert.Equal(t, 13, res.BestMatch.RowNumber)
}

func TestMatch_Deterministic(t *testing.T) {
	ds := testDataset()
	m := New(0.5, 3)
	parsed := ParseQuery("종신보험 수수료", ds)

	first := m.Match(ds, parsed)
	require.True(t, first.Found(), "reason: %s", first.Reason)
	for i := 0; i < 20; i++ {
		again := m.Match(ds, parsed)
		require.True(t, again.Found())
		assert.Equal(t, first.BestMatch.Company, again.BestMatch.Company)
		assert.Equal(t, first.BestMatch.RowNumber, again.BestMatch.RowNumber)
		assert.Equal(t, first.BestMatch.MatchScore, again.BestMatch.MatchScore)
		require.Len(t, again.Alternatives, len(first.Alternatives))
		for j := range again.Alternatives {
			assert.Equal(t, first.Alternatives[j].Company, again.Alternatives[j].Company)
			assert.Equal(t, first.Alternatives[j].RowNumber, again.Alternatives[j].RowNumber)
		}
	}
}

func TestMatch_TieBreaksByRowThenCompany(t *testing.T) {
	ds := &dataset.Dataset{
		Companies: map[string]*dataset.CompanyRecord{
			"나생명": {
				CompanyName: "나생명",
				Products: []*dataset.ProductRecord{{
					RowNumber:           12,
					Metadata:            dataset.ProductMetadata{ProductName: "행복종신보험"},
					BaseCommissionRates: map[string]float64{dataset.FCTotalKey: 1},
				}},
			},
			"가생명": {
				CompanyName: "가생명",
				Products: []*dataset.ProductRecord{{
					RowNumber:           12,
					Metadata:            dataset.ProductMetadata{ProductName: "행복종신보험"},
					BaseCommissionRates: map[string]float64{dataset.FCTotalKey: 1},
				}},
			},
		},
	}
	m := New(0.5, 3)
	res := m.Match(ds, ParsedQuery{ProductKeywords: []string{"행복종신보험"}})

	require.True(t, res.Found(), "reason: %s", res.Reason)
	assert.Equal(t, "가생명", res.BestMatch.Company)
	require.Len(t, res.Alternatives, 1)
	assert.Equal(t, "나생명", res.Alternatives[0].Company)
}

func TestMatch_NoMatchBelowThreshold(t *testing.T) {
	ds := testDataset()
	m := New(0.5, 3)

	res := m.Match(ds, ParseQuery("오늘 점심 메뉴 추천", ds))
	require.False(t, res.Found())
	assert.NotEmpty(t, res.Reason)
}

func TestMatch_EmptyDataset(t *testing.T) {
	m := New(0.5, 3)
	res := m.Match(&dataset.Dataset{}, ParsedQuery{ProductKeywords: []string{"보험"}})
	require.False(t, res.Found())
	assert.Equal(t, "empty dataset", res.Reason)
}

func TestMatch_AlternativesCapped(t *testing.T) {
	ds := testDataset()
	m := New(0.1, 1)
	res := m.Match(ds, ParseQuery("종신보험", ds))
	require.True(t, res.Found())
	assert.LessOrEqual(t, len(res.Alternatives), 1)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("약속플러스", "약속플러스"))
	assert.Greater(t, similarity("약속프러스", "약속플러스"), 0.7)
	assert.Less(t, similarity("전혀다른말", "약속플러스"), 0.3)
}
