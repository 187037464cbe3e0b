package gating

import (
	"fmt"
	"strings"
	"time"

	"github.com/bohumlab/commission-gateway/metrics"
	"github.com/bohumlab/commission-gateway/schema"
)

// Provider decides whether retrieved passages are relevant enough to answer
// from. Low-relevance results (or greeting/abuse queries with only mediocre
// relevance) get a canned guidance reply instead of a hallucinated answer.
type Provider interface {
	Evaluate(query string, results []schema.SearchResult) Decision
	GuidanceMessage(now time.Time) string
}

// Decision is the gate outcome for one query.
type Decision struct {
	Answerable bool
	TopScore   float64
	Reason     string
}

// RelevanceThreshold is the minimum top score for results to count as
// relevant; lowQualityThreshold is the stricter bar applied to greeting or
// abusive queries.
const (
	RelevanceThreshold  = 0.3
	lowQualityThreshold = 0.5
)

// lowQualityKeywords flag greetings and abusive queries that should never be
// answered from marginal retrieval hits.
var lowQualityKeywords = []string{
	"hey", "hi", "hello", "안녕", "하이", "욕", "씨발", "개새", "병신", "fuck", "shit",
}

type defaultProvider struct {
	threshold float64
}

// NewProvider builds the relevance gate. A non-positive threshold uses the
// default.
func NewProvider(threshold float64) Provider {
	if threshold <= 0 {
		threshold = RelevanceThreshold
	}
	return &defaultProvider{threshold: threshold}
}

func (p *defaultProvider) Evaluate(query string, results []schema.SearchResult) Decision {
	if len(results) == 0 {
		// Nothing retrieved at all still gets an answer from general
		// knowledge; the prompt builder handles the empty-context case.
		return Decision{Answerable: true, Reason: "no_results"}
	}

	top := 0.0
	for _, r := range results {
		if r.Score > top {
			top = r.Score
		}
	}

	lowQuality := false
	queryLower := strings.ToLower(query)
	for _, kw := range lowQualityKeywords {
		if strings.Contains(queryLower, kw) {
			lowQuality = true
			break
		}
	}

	d := Decision{Answerable: true, TopScore: top, Reason: "relevant"}
	switch {
	case top < p.threshold:
		d.Answerable = false
		d.Reason = "below_threshold"
	case lowQuality && top < lowQualityThreshold:
		d.Answerable = false
		d.Reason = "low_quality_query"
	}
	metrics.ObserveGating(d.Reason)
	return d
}

var weekdaysKorean = map[time.Weekday]string{
	time.Monday:    "월요일",
	time.Tuesday:   "화요일",
	time.Wednesday: "수요일",
	time.Thursday:  "목요일",
	time.Friday:    "금요일",
	time.Saturday:  "토요일",
	time.Sunday:    "일요일",
}

// GuidanceMessage is the reply for gated-off queries: current time plus
// example questions that retrieve well.
func (p *defaultProvider) GuidanceMessage(now time.Time) string {
	ampm, hour12 := "오전", now.Hour()
	if now.Hour() >= 12 {
		ampm = "오후"
		if hour12 > 12 {
			hour12 -= 12
		}
	} else if hour12 == 0 {
		hour12 = 12
	}
	timeStr := fmt.Sprintf("%d년 %d월 %d일 (%s) %s %d시 %d분",
		now.Year(), int(now.Month()), now.Day(), weekdaysKorean[now.Weekday()], ampm, hour12, now.Minute())

	return fmt.Sprintf(`안녕하세요. AI 어시스턴트입니다.

현재 시각: %s

질문하신 내용과 관련된 정보를 찾기 어렵습니다.

구체적인 질문을 해주시면 더 정확한 답변을 드릴 수 있습니다.

예시:
- 11월 워크샵 일정 알려줘
- 삼성화재 프로모션 정보
- 신입 FC 교육 일정
- 환수 규정 알려줘

무엇을 도와드릴까요?`, timeStr)
}
