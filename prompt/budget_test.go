package prompt

import (
	"strings"
	"testing"

	"github.com/bohumlab/commission-gateway/schema"
)

func result(content string) schema.SearchResult {
	return schema.SearchResult{Document: schema.Document{Content: content}}
}

func TestFit_KeepsRankOrderPrefix(t *testing.T) {
	b := NewBudgeter(20)
	in := []schema.SearchResult{
		result("짧은 문서"),
		result("두번째 문서"),
		result(strings.Repeat("긴 문서 내용 ", 50)),
		result("마지막"),
	}
	out := b.Fit(in)
	if len(out) == 0 || len(out) >= len(in) {
		t.Fatalf("expected a proper prefix, got %d of %d", len(out), len(in))
	}
	for i := range out {
		if out[i].Document.Content != in[i].Document.Content {
			t.Fatalf("order changed at %d", i)
		}
	}
}

func TestFit_FirstPassageAlwaysAdmitted(t *testing.T) {
	b := NewBudgeter(5)
	in := []schema.SearchResult{result(strings.Repeat("아주 긴 문서 ", 100))}
	out := b.Fit(in)
	if len(out) != 1 {
		t.Fatalf("oversized first passage must still be admitted, got %d", len(out))
	}
}

func TestFit_Empty(t *testing.T) {
	b := NewBudgeter(100)
	if out := b.Fit(nil); out != nil {
		t.Fatalf("nil in should stay nil, got %v", out)
	}
}

func TestCountTokens_Positive(t *testing.T) {
	b := NewBudgeter(100)
	if n := b.countTokens("수수료 조회"); n <= 0 {
		t.Fatalf("token count = %d", n)
	}
}
