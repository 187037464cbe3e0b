package vectordb

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/tidwall/gjson"

	"github.com/bohumlab/commission-gateway/common/logger"
	"github.com/bohumlab/commission-gateway/config"
	"github.com/bohumlab/commission-gateway/schema"
)

// Field names in the reference-corpus collection.
const (
	fieldID       = "id"
	fieldContent  = "content"
	fieldMetadata = "metadata"
	fieldVector   = "vector"
)

type milvusProvider struct {
	client     client.Client
	collection string
	metricType entity.MetricType
	dimensions int
}

func newMilvusProvider(ctx context.Context, cfg config.VectorDBConfig, dimensions int) (Provider, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("milvus connect: %w", err)
	}
	metric := entity.IP
	if cfg.MetricType != "" {
		metric = entity.MetricType(cfg.MetricType)
	}
	logger.Infof("vectordb: connected to milvus at %s:%d, collection %s", cfg.Host, cfg.Port, cfg.Collection)
	return &milvusProvider{
		client:     c,
		collection: cfg.Collection,
		metricType: metric,
		dimensions: dimensions,
	}, nil
}

func (p *milvusProvider) SearchDocs(ctx context.Context, vector []float32, opts *SearchOptions) ([]schema.SearchResult, error) {
	topK := 10
	expr := ""
	if opts != nil {
		if opts.TopK > 0 {
			topK = opts.TopK
		}
		expr = opts.Filter
	}

	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, fmt.Errorf("milvus search param: %w", err)
	}
	results, err := p.client.Search(ctx, p.collection, nil, expr,
		[]string{fieldID, fieldContent, fieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector, p.metricType, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	var out []schema.SearchResult
	for _, rs := range results {
		idCol := rs.Fields.GetColumn(fieldID)
		contentCol := rs.Fields.GetColumn(fieldContent)
		metadataCol := rs.Fields.GetColumn(fieldMetadata)
		for i := 0; i < rs.ResultCount; i++ {
			doc := schema.Document{}
			if idCol != nil {
				if id, err := idCol.GetAsString(i); err == nil {
					doc.ID = id
				}
			}
			if contentCol != nil {
				if content, err := contentCol.GetAsString(i); err == nil {
					doc.Content = content
				}
			}
			if metadataCol != nil {
				if raw, err := metadataCol.GetAsString(i); err == nil && raw != "" {
					doc.Metadata = parseMetadata(raw)
				}
			}
			out = append(out, schema.SearchResult{
				Document: doc,
				Score:    float64(rs.Scores[i]),
			})
		}
	}
	return out, nil
}

// parseMetadata tolerantly decodes the metadata JSON column. Malformed
// entries degrade to an empty map instead of failing the whole search.
func parseMetadata(raw string) map[string]any {
	meta := map[string]any{}
	if !gjson.Valid(raw) {
		return meta
	}
	gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
		meta[key.String()] = value.Value()
		return true
	})
	return meta
}

func (p *milvusProvider) Close() error {
	return p.client.Close()
}
