package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the retrieval core.
type Config struct {
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Order     OrderConfig     `yaml:"order" mapstructure:"order"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Caption   CaptionConfig   `yaml:"caption" mapstructure:"caption"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Pack      PackConfig      `yaml:"pack" mapstructure:"pack"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// IndexConfig holds knowledge index configuration.
type IndexConfig struct {
	Store            string   `yaml:"store" mapstructure:"store"` // "bolt" or "memory"
	KnowledgeDir     string   `yaml:"knowledge_dir" mapstructure:"knowledge_dir"`
	Includes         []string `yaml:"includes" mapstructure:"includes"`
	Excludes         []string `yaml:"excludes" mapstructure:"excludes"`
	BatchSize        int      `yaml:"batch_size" mapstructure:"batch_size"`
	EmbedConcurrency int      `yaml:"embed_concurrency" mapstructure:"embed_concurrency"`
	DefaultK         int      `yaml:"default_k" mapstructure:"default_k"`
	ContextK         int      `yaml:"context_k" mapstructure:"context_k"`
}

// MatchConfig holds the product matcher's weights and caps.
type MatchConfig struct {
	SemanticWeight   float64 `yaml:"semantic_weight" mapstructure:"semantic_weight"`
	KeywordWeight    float64 `yaml:"keyword_weight" mapstructure:"keyword_weight"`
	CategoryWeight   float64 `yaml:"category_weight" mapstructure:"category_weight"`
	VisualTextWeight float64 `yaml:"visual_text_weight" mapstructure:"visual_text_weight"`
	VisualThreshold  float64 `yaml:"visual_threshold" mapstructure:"visual_threshold"`
	MaxKeywords      int     `yaml:"max_keywords" mapstructure:"max_keywords"`
	VisualCap        int     `yaml:"visual_cap" mapstructure:"visual_cap"`
	CompositeCap     int     `yaml:"composite_cap" mapstructure:"composite_cap"`
	DefaultLimit     int     `yaml:"default_limit" mapstructure:"default_limit"`
	MinScore         float64 `yaml:"min_score" mapstructure:"min_score"` // Results must score above this
	FeatureWorkers   int     `yaml:"feature_workers" mapstructure:"feature_workers"`
}

// OrderConfig holds the order-status day boundaries.
type OrderConfig struct {
	DeliveryDays         int    `yaml:"delivery_days" mapstructure:"delivery_days"`
	ShipWindowDays       int    `yaml:"ship_window_days" mapstructure:"ship_window_days"`
	InferredDeliveryDays int    `yaml:"inferred_delivery_days" mapstructure:"inferred_delivery_days"`
	TrackingPrefix       string `yaml:"tracking_prefix" mapstructure:"tracking_prefix"`
	Timezone             string `yaml:"timezone" mapstructure:"timezone"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"` // "openai", "ollama", "hash"
	Model      string        `yaml:"model" mapstructure:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv  string        `yaml:"api_key_env" mapstructure:"api_key_env"`
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	Dimension  int           `yaml:"dimension" mapstructure:"dimension"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	CacheTTL   time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"` // Redis embedding cache, 0 = disabled
}

// CaptionConfig holds image captioning configuration.
type CaptionConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"` // "openai" or "static"
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKeyEnv string        `yaml:"api_key_env" mapstructure:"api_key_env"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Fallback  string        `yaml:"fallback" mapstructure:"fallback"`
}

// CacheConfig holds the knowledge query cache configuration.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxSize int           `yaml:"max_size" mapstructure:"max_size"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// RedisConfig holds the redis connection used by the embedding cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// CatalogConfig holds the catalog database location.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PackConfig holds context packing configuration.
type PackConfig struct {
	TokenBudget int `yaml:"token_budget" mapstructure:"token_budget"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "json" or "console"
	Output string `yaml:"output" mapstructure:"output"` // "stdout", "stderr" or a file path
}

// MetricsConfig holds the prometheus listener configuration.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"` // empty = disabled
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Store:            "bolt",
			KnowledgeDir:     "knowledge",
			Includes:         []string{"**/*.yaml", "**/*.yml"},
			Excludes:         []string{"**/.git/**", "**/_drafts/**"},
			BatchSize:        100,
			EmbedConcurrency: 4,
			DefaultK:         5,
			ContextK:         3,
		},
		Match: MatchConfig{
			SemanticWeight:   0.4,
			KeywordWeight:    0.3,
			CategoryWeight:   0.2,
			VisualTextWeight: 0.1,
			VisualThreshold:  0.3,
			MaxKeywords:      8,
			VisualCap:        3,
			CompositeCap:     3,
			DefaultLimit:     6,
			MinScore:         0,
			FeatureWorkers:   4,
		},
		Order: OrderConfig{
			DeliveryDays:         5,
			ShipWindowDays:       3,
			InferredDeliveryDays: 7,
			TrackingPrefix:       "TRK",
			Timezone:             "Local",
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			APIKeyEnv:  "OPENAI_API_KEY",
			Dimension:  1536,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Caption: CaptionConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   60 * time.Second,
			Fallback:  "clothing item",
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 100,
			TTL:     5 * time.Minute,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		Catalog: CatalogConfig{
			Path: filepath.Join(".shoprag", "catalog.db"),
		},
		Pack: PackConfig{
			TokenBudget: 1500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for shoprag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "shoprag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".shoprag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Validate rejects settings the matcher and index cannot work with.
func (c *Config) Validate() error {
	weights := map[string]float64{
		"semantic_weight":    c.Match.SemanticWeight,
		"keyword_weight":     c.Match.KeywordWeight,
		"category_weight":    c.Match.CategoryWeight,
		"visual_text_weight": c.Match.VisualTextWeight,
	}
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("match.%s must not be negative, got %v", name, w)
		}
	}
	if c.Match.VisualThreshold < 0 || c.Match.VisualThreshold > 1 {
		return fmt.Errorf("match.visual_threshold must be within [0,1], got %v", c.Match.VisualThreshold)
	}
	if c.Match.MinScore < 0 || c.Match.MinScore > 1 {
		return fmt.Errorf("match.min_score must be within [0,1], got %v", c.Match.MinScore)
	}
	if c.Index.BatchSize < 0 {
		return fmt.Errorf("index.batch_size must not be negative, got %d", c.Index.BatchSize)
	}
	if c.Order.DeliveryDays < 1 || c.Order.ShipWindowDays < 2 {
		return fmt.Errorf("order day boundaries out of range: delivery=%d ship_window=%d",
			c.Order.DeliveryDays, c.Order.ShipWindowDays)
	}
	return nil
}

// Location resolves the configured order timezone.
func (c OrderConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the knowledge index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".shoprag", "index.db")
}

// EnsureDataDir ensures the .shoprag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".shoprag"), 0755)
}
