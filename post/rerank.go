package post

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/bohumlab/commission-gateway/common/httpx"
	"github.com/bohumlab/commission-gateway/common/logger"
	"github.com/bohumlab/commission-gateway/schema"
)

// Reranker reorders retrieved passages, typically via an external
// cross-encoder service. Rerank failures are never fatal: the caller gets the
// original order back, clamped to topN.
type Reranker interface {
	Rerank(ctx context.Context, query string, in []schema.SearchResult, topN int) ([]schema.SearchResult, error)
}

// ModelReranker calls a cross-encoder reranking service.
// Request body: {"query":"...","documents":["..."],"model":"...","top_n":5}
// Response body: {"results":[{"index":0,"relevance_score":0.93}]}
type ModelReranker struct {
	Endpoint string
	Model    string
	APIKey   string
	Client   *httpx.Client
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func NewModelReranker(endpoint, model string, client *httpx.Client) *ModelReranker {
	return &ModelReranker{Endpoint: endpoint, Model: model, Client: client}
}

func (m *ModelReranker) Rerank(ctx context.Context, query string, in []schema.SearchResult, topN int) ([]schema.SearchResult, error) {
	if m.Endpoint == "" || len(in) == 0 {
		return passthrough(in, topN), nil
	}

	documents := make([]string, len(in))
	for i, result := range in {
		documents[i] = result.Document.Content
	}
	body, _ := json.Marshal(rerankRequest{Query: query, Documents: documents, Model: m.Model, TopN: topN})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return passthrough(in, topN), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.APIKey))
	}

	if m.Client == nil {
		m.Client = httpx.New(httpx.Options{})
	}
	resp, err := m.Client.Do(httpReq)
	if err != nil {
		logger.Warnf("rerank: request failed: %v, keeping original order", err)
		return passthrough(in, topN), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warnf("rerank: server returned status %d, keeping original order", resp.StatusCode)
		return passthrough(in, topN), nil
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil || len(rr.Results) == 0 {
		logger.Warnf("rerank: unusable response (%v), keeping original order", err)
		return passthrough(in, topN), nil
	}

	out := make([]schema.SearchResult, 0, len(rr.Results))
	for _, r := range rr.Results {
		if r.Index >= 0 && r.Index < len(in) {
			doc := in[r.Index]
			doc.Score = r.RelevanceScore
			out = append(out, doc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return passthrough(out, topN), nil
}

// passthrough clamps results to topN without reordering.
func passthrough(in []schema.SearchResult, topN int) []schema.SearchResult {
	if topN > 0 && len(in) > topN {
		return append([]schema.SearchResult(nil), in[:topN]...)
	}
	return in
}
