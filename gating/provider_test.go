package gating

import (
	"strings"
	"testing"
	"time"

	"github.com/bohumlab/commission-gateway/schema"
)

func results(scores ...float64) []schema.SearchResult {
	out := make([]schema.SearchResult, len(scores))
	for i, s := range scores {
		out[i] = schema.SearchResult{Document: schema.Document{ID: "d", Content: "내용"}, Score: s}
	}
	return out
}

func TestEvaluate(t *testing.T) {
	p := NewProvider(0)

	tests := []struct {
		name       string
		query      string
		results    []schema.SearchResult
		answerable bool
		reason     string
	}{
		{"relevant", "환수 규정 알려줘", results(0.7, 0.2), true, "relevant"},
		{"below threshold", "환수 규정 알려줘", results(0.1, 0.05), false, "below_threshold"},
		{"no results", "환수 규정 알려줘", nil, true, "no_results"},
		{"greeting with mediocre hits", "안녕하세요", results(0.4), false, "low_quality_query"},
		{"greeting with strong hits", "안녕하세요 환수 규정", results(0.8), true, "relevant"},
		{"abusive query", "hey 뭐해", results(0.35), false, "low_quality_query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Evaluate(tt.query, tt.results)
			if d.Answerable != tt.answerable {
				t.Fatalf("Answerable = %v, want %v (%+v)", d.Answerable, tt.answerable, d)
			}
			if d.Reason != tt.reason {
				t.Fatalf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestEvaluate_CustomThreshold(t *testing.T) {
	p := NewProvider(0.6)
	d := p.Evaluate("환수 규정", results(0.5))
	if d.Answerable {
		t.Fatalf("0.5 should not clear a 0.6 threshold: %+v", d)
	}
}

func TestGuidanceMessage(t *testing.T) {
	p := NewProvider(0)

	// 2025-11-03 is a Monday; 14:05 renders as 오후 2시.
	msg := p.GuidanceMessage(time.Date(2025, 11, 3, 14, 5, 0, 0, time.UTC))
	for _, want := range []string{
		"2025년 11월 3일 (월요일) 오후 2시 5분",
		"AI 어시스턴트입니다",
		"예시:",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("guidance message missing %q:\n%s", want, msg)
		}
	}

	// Midnight is 오전 12시.
	msg = p.GuidanceMessage(time.Date(2025, 11, 9, 0, 30, 0, 0, time.UTC))
	if !strings.Contains(msg, "(일요일) 오전 12시 30분") {
		t.Fatalf("midnight rendering wrong:\n%s", msg)
	}
}
