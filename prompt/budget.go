package prompt

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/bohumlab/commission-gateway/common/logger"
	"github.com/bohumlab/commission-gateway/schema"
)

// Budgeter trims retrieved passages to a model-context token budget before
// the completion call, so a handful of long documents cannot crowd out the
// question itself. Passages are kept in rank order; the first one is always
// admitted even if oversized.
type Budgeter struct {
	encoding *tiktoken.Tiktoken
	budget   int
}

const defaultEncoding = "cl100k_base"

// NewBudgeter builds a budgeter for the given token budget. When the
// tokenizer cannot be initialized the budgeter falls back to a rune-count
// approximation rather than failing the pipeline.
func NewBudgeter(budget int) *Budgeter {
	if budget <= 0 {
		budget = 3000
	}
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		logger.Warnf("prompt: tokenizer unavailable (%v), using rune approximation", err)
		enc = nil
	}
	return &Budgeter{encoding: enc, budget: budget}
}

func (b *Budgeter) countTokens(text string) int {
	if b.encoding != nil {
		return len(b.encoding.Encode(text, nil, nil))
	}
	// Rough heuristic: Korean text runs close to one token per rune.
	return len([]rune(text))
}

// Fit returns the longest rank-order prefix of results whose total content
// stays inside the budget.
func (b *Budgeter) Fit(results []schema.SearchResult) []schema.SearchResult {
	var out []schema.SearchResult
	used := 0
	for i, r := range results {
		n := b.countTokens(r.Document.Content)
		if i > 0 && used+n > b.budget {
			break
		}
		out = append(out, r)
		used += n
	}
	if len(out) < len(results) {
		logger.Debugf("prompt: budget %d tokens kept %d/%d passages", b.budget, len(out), len(results))
	}
	return out
}
