package vectordb

import (
	"context"
	"fmt"
	"strings"

	"github.com/bohumlab/commission-gateway/config"
	"github.com/bohumlab/commission-gateway/schema"
)

// SearchOptions tune one nearest-neighbor query.
type SearchOptions struct {
	TopK int
	// Filter is a boolean expression over metadata fields, provider syntax.
	// Empty means no filtering.
	Filter string
}

// Provider is the nearest-neighbor port. The general branch treats it as an
// opaque ranked-passage service.
type Provider interface {
	SearchDocs(ctx context.Context, vector []float32, opts *SearchOptions) ([]schema.SearchResult, error)
	Close() error
}

// NewProvider builds the configured vector store provider.
func NewProvider(ctx context.Context, cfg config.VectorDBConfig, dimensions int) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "milvus", "":
		return newMilvusProvider(ctx, cfg, dimensions)
	default:
		return nil, fmt.Errorf("unsupported vectordb provider: %s", cfg.Provider)
	}
}
