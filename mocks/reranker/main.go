// Mock cross-encoder rerank service for local development. Speaks the same
// wire shape as the production reranker: documents in, index/score pairs out.
// Scoring is naive query-term overlap, good enough to exercise the pipeline.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
)

type rerankReq struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopN      int      `json:"top_n"`
}

type rerankItem struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResp struct {
	Results []rerankItem `json:"results"`
}

func score(query, doc string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	docLower := strings.ToLower(doc)
	hits := 0
	for _, t := range terms {
		if strings.Contains(docLower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func handleRerank(w http.ResponseWriter, r *http.Request) {
	var req rerankReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := rerankResp{}
	for i, doc := range req.Documents {
		resp.Results = append(resp.Results, rerankItem{Index: i, RelevanceScore: score(req.Query, doc)})
	}
	sort.SliceStable(resp.Results, func(i, j int) bool {
		return resp.Results[i].RelevanceScore > resp.Results[j].RelevanceScore
	})
	if req.TopN > 0 && len(resp.Results) > req.TopN {
		resp.Results = resp.Results[:req.TopN]
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func main() {
	addr := ":8082"
	if v := os.Getenv("RERANK_ADDR"); v != "" {
		addr = v
	}
	http.HandleFunc("/rerank", handleRerank)
	log.Printf("rerank mock listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
