package vectordb

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/vectordb/vdberrors"
)

// StorageConfig selects and configures the durable backend.
type StorageConfig struct {
	DBName  string `json:"dbName" yaml:"dbName"`
	Version int    `json:"version" yaml:"version"`
	// Backend selects the Storage implementation: "bolt" (default) or
	// "sqlite".
	Backend string `json:"backend" yaml:"backend"`
}

// IndexConfig configures the AnnIndex.
type IndexConfig struct {
	Dimensions int    `json:"dimensions" yaml:"dimensions"`
	Metric     string `json:"metric" yaml:"metric"`
	IndexType  string `json:"indexType" yaml:"indexType"`
}

// EmbeddingConfig configures text-to-vector generation.
type EmbeddingConfig struct {
	Model      string `json:"model" yaml:"model"`
	Device     string `json:"device" yaml:"device"`
	Cache      bool   `json:"cache" yaml:"cache"`
	Quantized  bool   `json:"quantized" yaml:"quantized"`
	MaxRetries int    `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay int    `json:"retryDelay" yaml:"retryDelay"` // milliseconds
}

// PerformanceConfig tunes the cache and coalescer layers.
type PerformanceConfig struct {
	CacheBytes            int64 `json:"cacheBytes" yaml:"cacheBytes"`
	EmbeddingCacheEntries int   `json:"embeddingCacheEntries" yaml:"embeddingCacheEntries"`
	BatchMaxSize          int   `json:"batchMaxSize" yaml:"batchMaxSize"`
	BatchFlushMs          int   `json:"batchFlushMs" yaml:"batchFlushMs"`
	ChunkSize             int   `json:"chunkSize" yaml:"chunkSize"`
	LazyLoadModels        bool  `json:"lazyLoadModels" yaml:"lazyLoadModels"`
	// CacheStrategy selects the VectorCache admission policy: "always"
	// (default) caches every written record; "onDemand" skips caching on
	// Insert, and records enter the cache when a read hydrates them from
	// Storage or an Update rewrites them.
	CacheStrategy string `json:"cacheStrategy" yaml:"cacheStrategy"`
}

// Config is the Coordinator's full configuration, built on a
// defaults-then-overlay shape.
type Config struct {
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Index       IndexConfig       `json:"index" yaml:"index"`
	Embedding   EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	Performance PerformanceConfig `json:"performance" yaml:"performance"`
}

// DefaultConfig returns a Config with every Performance field and every
// optional field filled with this module's defaults. Storage/Index/
// Embedding still need DBName/Dimensions/Model set by the caller.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{Version: 1, Backend: "bolt"},
		Index:   IndexConfig{Metric: "cosine"},
		Performance: PerformanceConfig{
			CacheBytes:            64 * 1024 * 1024,
			EmbeddingCacheEntries: 10_000,
			BatchMaxSize:          100,
			BatchFlushMs:          1000,
			ChunkSize:             100,
			LazyLoadModels:        false,
			CacheStrategy:         "always",
		},
	}
}

// LoadConfig reads a Config from a JSON or YAML file (selected by
// extension; unrecognized extensions are tried as JSON) and overlays it
// onto DefaultConfig(), then applies VECTORDB_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", vdberrors.ErrInvalidConfig, path, err)
	}

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse yaml %s: %v", vdberrors.ErrInvalidConfig, path, err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse json %s: %v", vdberrors.ErrInvalidConfig, path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VECTORDB_DB_NAME"); v != "" {
		cfg.Storage.DBName = v
	}
	if v := os.Getenv("VECTORDB_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("VECTORDB_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Index.Dimensions = n
		}
	}
	if v := os.Getenv("VECTORDB_METRIC"); v != "" {
		cfg.Index.Metric = v
	}
	if v := os.Getenv("VECTORDB_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("VECTORDB_CACHE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Performance.CacheBytes = n
		}
	}
	if v := os.Getenv("VECTORDB_BATCH_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Performance.BatchMaxSize = n
		}
	}
	if v := os.Getenv("VECTORDB_BATCH_FLUSH_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Performance.BatchFlushMs = n
		}
	}
}

// Validate checks the fields initialize() requires to be sound.
func (c *Config) Validate() error {
	if c.Storage.DBName == "" {
		return fmt.Errorf("%w: storage.dbName is required", vdberrors.ErrInvalidConfig)
	}
	if c.Index.Dimensions <= 0 {
		return fmt.Errorf("%w: index.dimensions must be positive", vdberrors.ErrInvalidConfig)
	}
	switch c.Index.Metric {
	case "cosine", "l2", "dot":
	default:
		return fmt.Errorf("%w: index.metric must be one of cosine|l2|dot, got %q", vdberrors.ErrInvalidConfig, c.Index.Metric)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding.model is required", vdberrors.ErrInvalidConfig)
	}
	return nil
}
