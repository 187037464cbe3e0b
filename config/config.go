package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the commission gateway.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Dataset   DatasetConfig   `json:"dataset" yaml:"dataset"`
	Detector  DetectorConfig  `json:"detector" yaml:"detector"`
	Matcher   MatcherConfig   `json:"matcher" yaml:"matcher"`
	Router    RouterConfig    `json:"router" yaml:"router"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	VectorDB  VectorDBConfig  `json:"vectordb" yaml:"vectordb"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Rerank    RerankConfig    `json:"rerank" yaml:"rerank"`
	Callback  CallbackConfig  `json:"callback" yaml:"callback"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Memory    MemoryConfig    `json:"memory" yaml:"memory"`
	MCP       MCPConfig       `json:"mcp" yaml:"mcp"`
}

// ServerConfig configures the webhook HTTP listener.
type ServerConfig struct {
	Addr            string `json:"addr" yaml:"addr"`
	ReadTimeoutMs   int    `json:"read_timeout_ms,omitempty" yaml:"read_timeout_ms,omitempty"`
	WriteTimeoutMs  int    `json:"write_timeout_ms,omitempty" yaml:"write_timeout_ms,omitempty"`
	RequestTimeoutS int    `json:"request_timeout_s,omitempty" yaml:"request_timeout_s,omitempty"`
	AdminToken      string `json:"admin_token,omitempty" yaml:"admin_token,omitempty"`
}

type LogConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty"` // debug, info, warn, error
}

// DatasetConfig points at the normalized commission dataset file.
type DatasetConfig struct {
	Path string `json:"path" yaml:"path"`
}

// DetectorConfig carries the keyword sets for commission-query detection.
// Empty lists fall back to the built-in defaults.
type DetectorConfig struct {
	Keywords         []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	StrongIndicators []string `json:"strong_indicators,omitempty" yaml:"strong_indicators,omitempty"`
}

// MatcherConfig tunes fuzzy product matching.
type MatcherConfig struct {
	MinScore        float64 `json:"min_score,omitempty" yaml:"min_score,omitempty"`
	MaxAlternatives int     `json:"max_alternatives,omitempty" yaml:"max_alternatives,omitempty"`
}

// RouterConfig tunes branch selection.
type RouterConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty" yaml:"confidence_threshold,omitempty"`
	LLMTimeoutS         int     `json:"llm_timeout_s,omitempty" yaml:"llm_timeout_s,omitempty"`
	RetrievalTimeoutS   int     `json:"retrieval_timeout_s,omitempty" yaml:"retrieval_timeout_s,omitempty"`
}

// LLMConfig defines the text-completion provider.
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // openai
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// EmbeddingConfig defines the embedding provider.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // openai
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// VectorDBConfig defines the nearest-neighbor store for the general branch.
type VectorDBConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // milvus
	Host       string `json:"host,omitempty" yaml:"host,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	MetricType string `json:"metric_type,omitempty" yaml:"metric_type,omitempty"`
}

// RetrievalConfig tunes the general branch.
type RetrievalConfig struct {
	TopK           int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	Threshold      float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	TokenBudget    int     `json:"token_budget,omitempty" yaml:"token_budget,omitempty"`
	ContextHistory int     `json:"context_history,omitempty" yaml:"context_history,omitempty"`
}

// RerankConfig defines the optional HTTP reranker.
type RerankConfig struct {
	Enable        bool     `json:"enable" yaml:"enable"`
	Endpoint      string   `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	TopN          int      `json:"top_n,omitempty" yaml:"top_n,omitempty"`
	TimeoutMs     int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry         int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	HostAllowlist []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
}

// CallbackConfig tunes the asynchronous messaging-platform callback.
type CallbackConfig struct {
	TimeoutMs     int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry         int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	HostAllowlist []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
}

// CacheConfig sizes the in-process caches.
type CacheConfig struct {
	EmbeddingCapacity  int `json:"embedding_capacity,omitempty" yaml:"embedding_capacity,omitempty"`
	EmbeddingTTLS      int `json:"embedding_ttl_s,omitempty" yaml:"embedding_ttl_s,omitempty"`
	CommissionCapacity int `json:"commission_capacity,omitempty" yaml:"commission_capacity,omitempty"`
	CommissionTTLS     int `json:"commission_ttl_s,omitempty" yaml:"commission_ttl_s,omitempty"`
}

// MemoryConfig configures the conversation history store.
type MemoryConfig struct {
	LastNRounds int `json:"last_n_rounds,omitempty" yaml:"last_n_rounds,omitempty"`
}

// MCPConfig configures the optional MCP tool listener.
type MCPConfig struct {
	Enable bool   `json:"enable" yaml:"enable"`
	Addr   string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Load reads a YAML config file, applies defaults and environment overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.SetDefaults()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills unset fields with sane defaults.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeoutS <= 0 {
		c.Server.RequestTimeoutS = 25
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Matcher.MinScore <= 0 {
		c.Matcher.MinScore = 0.5
	}
	if c.Matcher.MaxAlternatives <= 0 {
		c.Matcher.MaxAlternatives = 3
	}
	if c.Router.ConfidenceThreshold <= 0 {
		c.Router.ConfidenceThreshold = 0.5
	}
	if c.Router.LLMTimeoutS <= 0 {
		c.Router.LLMTimeoutS = 20
	}
	if c.Router.RetrievalTimeoutS <= 0 {
		c.Router.RetrievalTimeoutS = 10
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-large"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.VectorDB.Provider == "" {
		c.VectorDB.Provider = "milvus"
	}
	if c.VectorDB.Port <= 0 {
		c.VectorDB.Port = 19530
	}
	if c.VectorDB.MetricType == "" {
		c.VectorDB.MetricType = "IP"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.Threshold <= 0 {
		c.Retrieval.Threshold = 0.3
	}
	if c.Retrieval.TokenBudget <= 0 {
		c.Retrieval.TokenBudget = 3000
	}
	if c.Retrieval.ContextHistory <= 0 {
		c.Retrieval.ContextHistory = 5
	}
	if c.Rerank.TopN <= 0 {
		c.Rerank.TopN = 5
	}
	if c.Rerank.TimeoutMs <= 0 {
		c.Rerank.TimeoutMs = 1200
	}
	if c.Callback.TimeoutMs <= 0 {
		c.Callback.TimeoutMs = 5000
	}
	if c.Callback.Retry <= 0 {
		c.Callback.Retry = 1
	}
	if c.Cache.EmbeddingCapacity <= 0 {
		c.Cache.EmbeddingCapacity = 1024
	}
	if c.Cache.EmbeddingTTLS <= 0 {
		c.Cache.EmbeddingTTLS = 600
	}
	if c.Cache.CommissionCapacity <= 0 {
		c.Cache.CommissionCapacity = 512
	}
	if c.Cache.CommissionTTLS <= 0 {
		c.Cache.CommissionTTLS = 300
	}
	if c.Memory.LastNRounds <= 0 {
		c.Memory.LastNRounds = 10
	}
	if c.MCP.Addr == "" {
		c.MCP.Addr = ":8091"
	}
}

// ApplyEnv overrides secrets from the environment so API keys never have to
// live in the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
	}
	if v := os.Getenv("VECTORDB_PASSWORD"); v != "" && c.VectorDB.Password == "" {
		c.VectorDB.Password = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" && c.Server.AdminToken == "" {
		c.Server.AdminToken = v
	}
}
