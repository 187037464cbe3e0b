package retriever

import (
	"context"

	"github.com/bohumlab/commission-gateway/schema"
)

// Retriever is the retrieval port of the general branch: text in, ranked
// reference passages out.
type Retriever interface {
	Type() string
	Search(ctx context.Context, query string, topK int) ([]schema.SearchResult, error)
}
