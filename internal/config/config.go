// Package config defines the engine configuration schema.
// Configuration is programmatic first; YAML files and environment
// variables layer on top for operator tooling.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// IndexType selects the active vector index implementation.
type IndexType string

const (
	IndexTypeHNSW    IndexType = "hnsw"
	IndexTypeDiskANN IndexType = "diskann"
	IndexTypeExact   IndexType = "exact"
)

// Metric selects the distance metric.
type Metric string

const (
	MetricL2        Metric = "l2"
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricManhattan Metric = "manhattan"
)

// Config is the complete engine configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	HNSW       HNSWConfig       `yaml:"hnsw" json:"hnsw"`
	DiskANN    DiskANNConfig    `yaml:"diskann" json:"diskann"`
	WAL        WALConfig        `yaml:"wal" json:"wal"`
	Compaction CompactionConfig `yaml:"compaction" json:"compaction"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// DatabaseConfig configures database-wide behavior.
type DatabaseConfig struct {
	// Dimension is the fixed vector dimension. Required, > 0.
	Dimension int `yaml:"dimension" json:"dimension"`

	// IndexType selects the active index: hnsw, diskann, exact.
	IndexType IndexType `yaml:"index_type" json:"index_type"`

	// Metric is the distance metric: l2, cosine, dot, manhattan.
	Metric Metric `yaml:"metric" json:"metric"`

	// ExactSearchThreshold is the row count at or below which queries fall
	// back to a linear scan regardless of the active index.
	ExactSearchThreshold int `yaml:"exact_search_threshold" json:"exact_search_threshold"`

	// ForceExactSearch disables the approximate index for queries.
	ForceExactSearch bool `yaml:"force_exact_search" json:"force_exact_search"`

	// CosineNormalized stores every inserted vector unit-normalized.
	CosineNormalized bool `yaml:"cosine_normalized" json:"cosine_normalized"`

	// CandidatePool sizes the oversampling pool for filtered queries on
	// approximate indexes. The oversample factor is max(2, ceil(pool/k)).
	CandidatePool int `yaml:"candidate_pool" json:"candidate_pool"`

	// QueryCacheSize is the number of search results cached per database.
	// 0 disables the cache.
	QueryCacheSize int `yaml:"query_cache_size" json:"query_cache_size"`
}

// HNSWConfig tunes the HNSW graph index.
type HNSWConfig struct {
	// M is the maximum neighbor count per node per level.
	M int `yaml:"m" json:"m"`

	// EfConstruction is the build-time beam width.
	EfConstruction int `yaml:"ef_construction" json:"ef_construction"`

	// EfSearch is the query-time beam width.
	EfSearch int `yaml:"ef_search" json:"ef_search"`

	// MaxLevel caps the level assigned to any node.
	MaxLevel int `yaml:"max_level" json:"max_level"`

	// UseBinaryQuant enables sign-bit fingerprints for coarse ordering.
	UseBinaryQuant bool `yaml:"use_binary_quant" json:"use_binary_quant"`

	// QuantRerank is how many binary-quantized candidates are re-scored
	// with the exact metric.
	QuantRerank int `yaml:"quant_rerank" json:"quant_rerank"`

	// UseACORN widens the beam for filtered queries to compensate for
	// post-filter loss.
	UseACORN bool `yaml:"use_acorn" json:"use_acorn"`

	// ACORNHops is the hop count used in the beam widening factor (1 or 2).
	ACORNHops int `yaml:"acorn_hops" json:"acorn_hops"`
}

// DiskANNConfig tunes the SSD-resident Vamana index.
type DiskANNConfig struct {
	// MaxDegree caps out-neighbors per node.
	MaxDegree int `yaml:"max_degree" json:"max_degree"`

	// Alpha is the robust-pruning distance threshold multiplier.
	Alpha float64 `yaml:"alpha" json:"alpha"`

	// BuildBeamWidth is the beam width during construction passes.
	BuildBeamWidth int `yaml:"build_beam_width" json:"build_beam_width"`

	// SearchBeamWidth is the beam width during queries.
	SearchBeamWidth int `yaml:"search_beam_width" json:"search_beam_width"`

	// PQDim is the number of product-quantizer sub-spaces. 0 picks one
	// automatically from the dimension.
	PQDim int `yaml:"pq_dim" json:"pq_dim"`

	// DataPath is the backing file for full vectors.
	DataPath string `yaml:"data_path" json:"data_path"`

	// CacheSizeMB bounds the LRU page cache.
	CacheSizeMB int `yaml:"cache_size_mb" json:"cache_size_mb"`

	// SectorSize aligns vector slots on disk (bytes).
	SectorSize int `yaml:"sector_size" json:"sector_size"`
}

// WALConfig configures durability.
type WALConfig struct {
	// Path is the WAL file. Empty disables the WAL.
	Path string `yaml:"path" json:"path"`
}

// CompactionConfig configures the background compactor.
type CompactionConfig struct {
	// Enabled starts the background worker on open.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Interval is how often the worker wakes to evaluate thresholds.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// WALThresholdBytes triggers compaction when the WAL grows past it.
	WALThresholdBytes int64 `yaml:"wal_threshold_bytes" json:"wal_threshold_bytes"`

	// DeletedRatioThreshold triggers compaction when
	// tombstones/count exceeds it. Range 0..1.
	DeletedRatioThreshold float64 `yaml:"deleted_ratio_threshold" json:"deleted_ratio_threshold"`
}

// LoggingConfig configures engine logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Default returns the default configuration for the given dimension.
func Default(dimension int) *Config {
	return &Config{
		Database: DatabaseConfig{
			Dimension:            dimension,
			IndexType:            IndexTypeHNSW,
			Metric:               MetricL2,
			ExactSearchThreshold: 1000,
			CandidatePool:        100,
			QueryCacheSize:       256,
		},
		HNSW: HNSWConfig{
			M:              16,
			EfConstruction: 128,
			EfSearch:       64,
			MaxLevel:       16,
			QuantRerank:    50,
			ACORNHops:      1,
		},
		DiskANN: DiskANNConfig{
			MaxDegree:       32,
			Alpha:           1.2,
			BuildBeamWidth:  64,
			SearchBeamWidth: 32,
			CacheSizeMB:     64,
			SectorSize:      4096,
		},
		Compaction: CompactionConfig{
			Enabled:               true,
			Interval:              60 * time.Second,
			WALThresholdBytes:     64 * 1024 * 1024,
			DeletedRatioThreshold: 0.2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, applies defaults for unset fields, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default(0)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers VEKTOR_* environment overrides on top of file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("VEKTOR_INDEX_TYPE"); v != "" {
		c.Database.IndexType = IndexType(v)
	}
	if v := os.Getenv("VEKTOR_METRIC"); v != "" {
		c.Database.Metric = Metric(v)
	}
	if v := os.Getenv("VEKTOR_WAL_PATH"); v != "" {
		c.WAL.Path = v
	}
	if v := os.Getenv("VEKTOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("VEKTOR_EF_SEARCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.HNSW.EfSearch = n
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Database.Dimension <= 0 {
		return fmt.Errorf("database.dimension must be > 0, got %d", c.Database.Dimension)
	}

	switch c.Database.IndexType {
	case IndexTypeHNSW, IndexTypeDiskANN, IndexTypeExact:
	default:
		return fmt.Errorf("unknown index_type %q", c.Database.IndexType)
	}

	switch c.Database.Metric {
	case MetricL2, MetricCosine, MetricDot, MetricManhattan:
	default:
		return fmt.Errorf("unknown metric %q", c.Database.Metric)
	}

	if c.HNSW.M <= 0 {
		return fmt.Errorf("hnsw.m must be > 0, got %d", c.HNSW.M)
	}
	if c.HNSW.EfSearch <= 0 || c.HNSW.EfConstruction <= 0 {
		return fmt.Errorf("hnsw ef parameters must be > 0")
	}
	if c.HNSW.UseACORN && c.HNSW.ACORNHops != 1 && c.HNSW.ACORNHops != 2 {
		return fmt.Errorf("hnsw.acorn_hops must be 1 or 2, got %d", c.HNSW.ACORNHops)
	}

	if c.DiskANN.MaxDegree <= 0 {
		return fmt.Errorf("diskann.max_degree must be > 0, got %d", c.DiskANN.MaxDegree)
	}
	if c.DiskANN.Alpha < 1.0 {
		return fmt.Errorf("diskann.alpha must be >= 1.0, got %v", c.DiskANN.Alpha)
	}
	if c.DiskANN.SectorSize <= 0 || c.DiskANN.SectorSize%512 != 0 {
		return fmt.Errorf("diskann.sector_size must be a positive multiple of 512, got %d", c.DiskANN.SectorSize)
	}
	if c.Database.IndexType == IndexTypeDiskANN && c.DiskANN.DataPath == "" {
		return fmt.Errorf("diskann.data_path is required for the diskann index")
	}

	if c.Compaction.DeletedRatioThreshold < 0 || c.Compaction.DeletedRatioThreshold > 1 {
		return fmt.Errorf("compaction.deleted_ratio_threshold must be in [0,1], got %v",
			c.Compaction.DeletedRatioThreshold)
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
