// Package config loads and defaults the retrieval core's configuration,
// following the reference's single-struct-of-sub-configs layering.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/suntianc/toolcore/internal/model"
)

// RetrievalConfig configures the HybridRetrievalEngine and fusion.
type RetrievalConfig struct {
	VectorWeight           float64            `yaml:"vector_weight"`
	KeywordWeight          float64            `yaml:"keyword_weight"`
	SemanticWeight         float64            `yaml:"semantic_weight"`
	TagWeight              float64            `yaml:"tag_weight"`
	RRFK                   int                `yaml:"rrf_k"`
	MinScore               float64            `yaml:"min_score"`
	MaxResults             int                `yaml:"max_results"`
	EnableTagMatching      bool               `yaml:"enable_tag_matching"`
	EnableKeywordMatching  bool               `yaml:"enable_keyword_matching"`
	EnableSemanticMatching bool               `yaml:"enable_semantic_matching"`
	CacheTTLSeconds        int                `yaml:"cache_ttl_seconds"`
	DisclosureStrategy     string             `yaml:"disclosure_strategy"`
	TagHierarchy           model.TagHierarchy `yaml:"tag_hierarchy"`
}

// DisclosureCacheConfig configures the disclosure-content cache.
type DisclosureCacheConfig struct {
	Enabled           bool `yaml:"enabled"`
	MaxSize           int  `yaml:"max_size"`
	L1TTLMs           int  `yaml:"l1_ttl_ms"`
	L2TTLMs           int  `yaml:"l2_ttl_ms"`
	CleanupIntervalMs int  `yaml:"cleanup_interval_ms"`
}

// ParallelLoadConfig configures concurrent disclosure content loading.
type ParallelLoadConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxConcurrency int  `yaml:"max_concurrency"`
}

// DisclosureMetricsConfig configures disclosure sampling.
type DisclosureMetricsConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sample_rate"`
}

// DisclosureThresholds configures the CONTENT/RESOURCES score cutoffs.
type DisclosureThresholds struct {
	L2 float64 `yaml:"l2"`
	L3 float64 `yaml:"l3"`
}

// DisclosureConfig configures the DisclosureManager (the spec's
// "Disclosure V2" block).
type DisclosureConfig struct {
	Enabled      bool                    `yaml:"enabled"`
	Thresholds   DisclosureThresholds    `yaml:"thresholds"`
	L1MaxTokens  int                     `yaml:"l1_max_tokens"`
	L2MaxTokens  int                     `yaml:"l2_max_tokens"`
	Cache        DisclosureCacheConfig   `yaml:"cache"`
	ParallelLoad ParallelLoadConfig      `yaml:"parallel_load"`
	Metrics      DisclosureMetricsConfig `yaml:"metrics"`
}

// PoolConfig configures the connection pool.
type PoolConfig struct {
	MaxInstances             int `yaml:"max_instances"`
	InstanceTTLMs            int `yaml:"instance_ttl_ms"`
	HealthCheckIntervalMs    int `yaml:"health_check_interval_ms"`
	MinIdle                  int `yaml:"min_idle"`
	LeakDetectionThresholdMs int `yaml:"leak_detection_threshold_ms"`
}

// TagMatcherConfig configures the TagMatchingEngine.
type TagMatcherConfig struct {
	Hierarchy     model.TagHierarchy `yaml:"hierarchy"`
	MinScore      float64            `yaml:"min_score"`
	MaxDepth      int                `yaml:"max_depth"`
	EnableAliases bool               `yaml:"enable_aliases"`
}

// IndexConfig configures the vector table and IVF-PQ target recall.
type IndexConfig struct {
	StorageRoot  string  `yaml:"storage_root"`
	TableName    string  `yaml:"table_name"`
	Dimension    int     `yaml:"dimension"`
	TargetRecall float64 `yaml:"target_recall"`
	FastMode     bool    `yaml:"fast_mode"`
}

// LoggingConfig configures the ambient slog setup.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	FilePath      string `yaml:"file_path"`
	MaxSizeMB     int    `yaml:"max_size_mb"`
	MaxFiles      int    `yaml:"max_files"`
	WriteToStderr bool   `yaml:"write_to_stderr"`
}

// Config is the root configuration struct.
type Config struct {
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Disclosure DisclosureConfig `yaml:"disclosure"`
	Pool       PoolConfig       `yaml:"pool"`
	TagMatcher TagMatcherConfig `yaml:"tag_matcher"`
	Index      IndexConfig      `yaml:"index"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns the config populated with every documented default.
func Default() *Config {
	hierarchy := model.DefaultTagHierarchy()
	return &Config{
		Retrieval: RetrievalConfig{
			VectorWeight:           0.5,
			KeywordWeight:          0.3,
			SemanticWeight:         0.2,
			TagWeight:              0.1,
			RRFK:                   60,
			MinScore:               0.1,
			MaxResults:             10,
			EnableTagMatching:      true,
			EnableKeywordMatching:  true,
			EnableSemanticMatching: true,
			CacheTTLSeconds:        300,
			DisclosureStrategy:     "adaptive",
			TagHierarchy:           hierarchy,
		},
		Disclosure: DisclosureConfig{
			Enabled:     true,
			Thresholds:  DisclosureThresholds{L2: 0.7, L3: 0.85},
			L1MaxTokens: 120,
			L2MaxTokens: 5000,
			Cache: DisclosureCacheConfig{
				Enabled:           true,
				MaxSize:           2000,
				L1TTLMs:           300000,
				L2TTLMs:           300000,
				CleanupIntervalMs: 300000,
			},
			ParallelLoad: ParallelLoadConfig{Enabled: true, MaxConcurrency: 8},
			Metrics:      DisclosureMetricsConfig{Enabled: true, SampleRate: 1.0},
		},
		Pool: PoolConfig{
			MaxInstances:             4,
			InstanceTTLMs:            300000,
			HealthCheckIntervalMs:    60000,
			MinIdle:                  1,
			LeakDetectionThresholdMs: 300000,
		},
		TagMatcher: TagMatcherConfig{
			Hierarchy:     hierarchy,
			MinScore:      0.5,
			MaxDepth:      3,
			EnableAliases: true,
		},
		Index: IndexConfig{
			TableName:    "tools",
			Dimension:    768,
			TargetRecall: 0.9,
		},
		Logging: LoggingConfig{
			Level:         "info",
			WriteToStderr: true,
		},
	}
}

// Load reads YAML from path and merges it over the documented defaults,
// so a partial config file only overrides the fields it specifies.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// InstanceTTL returns Pool.InstanceTTLMs as a time.Duration.
func (c PoolConfig) InstanceTTL() time.Duration { return millis(c.InstanceTTLMs) }

// HealthCheckInterval returns Pool.HealthCheckIntervalMs as a time.Duration.
func (c PoolConfig) HealthCheckInterval() time.Duration { return millis(c.HealthCheckIntervalMs) }

// LeakDetectionThreshold returns the leak threshold as a time.Duration.
func (c PoolConfig) LeakDetectionThreshold() time.Duration {
	return millis(c.LeakDetectionThresholdMs)
}

// CacheTTL returns Retrieval.CacheTTLSeconds as a time.Duration.
func (c RetrievalConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// L1TTL returns Disclosure.Cache.L1TTLMs as a time.Duration.
func (c DisclosureCacheConfig) L1TTL() time.Duration { return millis(c.L1TTLMs) }

// CleanupInterval returns Disclosure.Cache.CleanupIntervalMs as a time.Duration.
func (c DisclosureCacheConfig) CleanupInterval() time.Duration { return millis(c.CleanupIntervalMs) }
