// Package config provides unified configuration for the fieldconv engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration shared by all conversion runs.
type Config struct {
	// DataDir is the base directory for all working files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Source acquisition configuration
	Source SourceConfig `json:"source" yaml:"source"`

	// Cache configuration
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Convert configuration
	Convert ConvertConfig `json:"convert" yaml:"convert"`
}

// SourceConfig holds source acquisition configuration.
type SourceConfig struct {
	// ScratchDir is the directory for downloaded and decompressed sources
	ScratchDir string `json:"scratch_dir" yaml:"scratch_dir"`

	// MaxRetries is the number of download attempts on transient failures
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// HTTPTimeout is the per-request timeout for remote sources
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout"`
}

// CacheConfig holds download cache configuration.
type CacheConfig struct {
	// Enabled controls whether downloads are cached across runs
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the cache directory
	Dir string `json:"dir" yaml:"dir"`

	// MaxSizeMB is the cache size limit in megabytes (compressed)
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`
}

// OutputConfig holds writer configuration.
type OutputConfig struct {
	// Dir is the directory converted datasets are written to
	Dir string `json:"dir" yaml:"dir"`

	// Compression is the parquet codec: uncompressed, snappy, gzip,
	// brotli, zstd, lz4
	Compression string `json:"compression" yaml:"compression"`

	// WriteCollection controls whether the collection metadata JSON is
	// written next to the parquet output
	WriteCollection bool `json:"write_collection" yaml:"write_collection"`
}

// ConvertConfig holds multi-dataset run configuration.
type ConvertConfig struct {
	// Concurrency is the number of dataset conversions run in parallel
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/fieldconv",
		Source: SourceConfig{
			ScratchDir:  "",
			MaxRetries:  3,
			HTTPTimeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MaxSizeMB: 1024,
		},
		Output: OutputConfig{
			Dir:             "",
			Compression:     "snappy",
			WriteCollection: true,
		},
		Convert: ConvertConfig{
			Concurrency: 4,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/fieldconv"
	}
	if c.Source.ScratchDir == "" {
		c.Source.ScratchDir = filepath.Join(c.DataDir, "scratch")
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(c.DataDir, "cache")
	}
	if c.Output.Dir == "" {
		c.Output.Dir = filepath.Join(c.DataDir, "out")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Output.Compression {
	case "uncompressed", "snappy", "gzip", "brotli", "zstd", "lz4":
	default:
		return fmt.Errorf("invalid output compression: %s", c.Output.Compression)
	}

	if c.Source.MaxRetries < 1 {
		return fmt.Errorf("source.max_retries must be at least 1, got %d", c.Source.MaxRetries)
	}

	if c.Cache.Enabled && c.Cache.MaxSizeMB < 1 {
		return fmt.Errorf("cache.max_size_mb must be at least 1, got %d", c.Cache.MaxSizeMB)
	}

	if c.Convert.Concurrency < 1 {
		return fmt.Errorf("convert.concurrency must be at least 1, got %d", c.Convert.Concurrency)
	}

	return nil
}

// OutputPath returns the parquet output path for a dataset identifier.
func (c *Config) OutputPath(datasetID string) string {
	return filepath.Join(c.Output.Dir, datasetID+".parquet")
}

// CollectionPath returns the collection metadata path for a dataset
// identifier.
func (c *Config) CollectionPath(datasetID string) string {
	return filepath.Join(c.Output.Dir, datasetID+".collection.json")
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the FIELDCONV_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("FIELDCONV_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Source configuration
	if v := os.Getenv("FIELDCONV_SOURCE_SCRATCH_DIR"); v != "" {
		cfg.Source.ScratchDir = v
	}
	if v := os.Getenv("FIELDCONV_SOURCE_MAX_RETRIES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Source.MaxRetries)
	}
	if v := os.Getenv("FIELDCONV_SOURCE_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.HTTPTimeout = d
		}
	}

	// Cache configuration
	if v := os.Getenv("FIELDCONV_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("FIELDCONV_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("FIELDCONV_CACHE_MAX_SIZE_MB"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Cache.MaxSizeMB)
	}

	// Output configuration
	if v := os.Getenv("FIELDCONV_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("FIELDCONV_OUTPUT_COMPRESSION"); v != "" {
		cfg.Output.Compression = v
	}
	if v := os.Getenv("FIELDCONV_OUTPUT_WRITE_COLLECTION"); v != "" {
		cfg.Output.WriteCollection = v == "true" || v == "1"
	}

	// Convert configuration
	if v := os.Getenv("FIELDCONV_CONVERT_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Convert.Concurrency)
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Source.ScratchDir,
		c.Cache.Dir,
		c.Output.Dir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
