package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateDataset()...)
	errs = append(errs, c.validateRouting()...)
	errs = append(errs, c.validateLLM()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateVectorDB()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateRerank()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateDataset() ValidationErrors {
	var errs ValidationErrors
	if c.Dataset.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "dataset.path",
			Message: "commission dataset path is required",
		})
	}
	return errs
}

func (c *Config) validateRouting() ValidationErrors {
	var errs ValidationErrors
	if c.Router.ConfidenceThreshold < 0 || c.Router.ConfidenceThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "router.confidence_threshold",
			Message: fmt.Sprintf("confidence threshold must be in [0, 1], got %.2f", c.Router.ConfidenceThreshold),
		})
	}
	if c.Matcher.MinScore < 0 {
		errs = append(errs, ValidationError{
			Field:   "matcher.min_score",
			Message: fmt.Sprintf("min score must be non-negative, got %.2f", c.Matcher.MinScore),
		})
	}
	return errs
}

func (c *Config) validateLLM() ValidationErrors {
	var errs ValidationErrors
	if c.LLM.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.provider",
			Message: "llm provider is required",
		})
	}
	if c.LLM.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.model",
			Message: "llm model is required",
		})
	}
	return errs
}

func (c *Config) validateEmbedding() ValidationErrors {
	var errs ValidationErrors
	if c.Embedding.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.provider",
			Message: "embedding provider is required",
		})
	}
	if c.Embedding.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.model",
			Message: "embedding model is required",
		})
	}
	if c.Embedding.Dimensions < 128 || c.Embedding.Dimensions > 4096 {
		errs = append(errs, ValidationError{
			Field:   "embedding.dimensions",
			Message: fmt.Sprintf("embedding dimensions %d is outside typical range [128, 4096]", c.Embedding.Dimensions),
		})
	}
	return errs
}

func (c *Config) validateVectorDB() ValidationErrors {
	var errs ValidationErrors
	if c.VectorDB.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: "vectordb provider is required",
		})
	}
	// An empty host disables the knowledge-base branch entirely; only a
	// configured store is checked further.
	if c.VectorDB.Host == "" {
		return errs
	}
	switch strings.ToLower(c.VectorDB.Provider) {
	case "milvus":
		if c.VectorDB.Collection == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.collection",
				Message: "collection name is required for milvus provider",
			})
		}
	}
	return errs
}

func (c *Config) validateRetrieval() ValidationErrors {
	var errs ValidationErrors
	if c.Retrieval.TopK > 100 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.top_k",
			Message: fmt.Sprintf("retrieval.top_k %d is too large (max recommended: 100)", c.Retrieval.TopK),
		})
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.threshold",
			Message: fmt.Sprintf("retrieval.threshold must be in [0, 1], got %.2f", c.Retrieval.Threshold),
		})
	}
	return errs
}

func (c *Config) validateRerank() ValidationErrors {
	var errs ValidationErrors
	if c.Rerank.Enable && c.Rerank.Endpoint == "" {
		errs = append(errs, ValidationError{
			Field:   "rerank.endpoint",
			Message: "rerank endpoint is required when rerank is enabled",
		})
	}
	return errs
}
