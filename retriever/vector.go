package retriever

import (
	"context"
	"time"

	"github.com/bohumlab/commission-gateway/cache"
	"github.com/bohumlab/commission-gateway/embedding"
	"github.com/bohumlab/commission-gateway/metrics"
	"github.com/bohumlab/commission-gateway/schema"
	"github.com/bohumlab/commission-gateway/vectordb"
)

// VectorRetriever embeds the query and searches the vector store. An
// optional metadata filter narrows the first attempt; when the filtered
// search returns nothing the retriever retries once without filters, because
// an over-narrow filter loses to no answer at all.
type VectorRetriever struct {
	Embed  embedding.Provider
	Store  vectordb.Provider
	TopK   int
	Filter string

	// EmbedCache avoids re-embedding repeated queries. Optional.
	EmbedCache *cache.LRU[[]float32]
}

func (r *VectorRetriever) Type() string { return "vector" }

func (r *VectorRetriever) Search(ctx context.Context, query string, topK int) ([]schema.SearchResult, error) {
	if topK <= 0 {
		if r.TopK > 0 {
			topK = r.TopK
		} else {
			topK = 10
		}
	}

	vec, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := r.Store.SearchDocs(ctx, vec, &vectordb.SearchOptions{TopK: topK, Filter: r.Filter})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && r.Filter != "" {
		results, err = r.Store.SearchDocs(ctx, vec, &vectordb.SearchOptions{TopK: topK})
		if err != nil {
			return nil, err
		}
	}
	metrics.ObserveRetriever(r.Type(), start, len(results))
	return results, nil
}

func (r *VectorRetriever) embed(ctx context.Context, query string) ([]float32, error) {
	if r.EmbedCache != nil {
		if vec, ok := r.EmbedCache.Get(query); ok {
			return vec, nil
		}
	}
	vecs, err := r.Embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	vec := vecs[0]
	if r.EmbedCache != nil {
		r.EmbedCache.Set(query, vec, 0)
	}
	return vec, nil
}
