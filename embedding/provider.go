package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/bohumlab/commission-gateway/config"
)

// Provider is the text-embedding port for the general branch.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// NewProvider builds the configured embedding provider.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
