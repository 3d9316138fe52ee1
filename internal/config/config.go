// Package config provides unified configuration for the gaiacat build, compaction and archive stages.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gaiacat/gaiacat/pkg/types"
)

// Config holds the unified configuration for all gaiacat stages.
type Config struct {
	// DataDir is the base directory for derived paths (build root, ledger, logs)
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Build stage configuration
	Build BuildConfig `json:"build" yaml:"build"`

	// Crossmatch table locations
	Crossmatch CrossmatchConfig `json:"crossmatch" yaml:"crossmatch"`

	// Catalog writer configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Compaction stage configuration
	Compaction CompactionConfig `json:"compaction" yaml:"compaction"`

	// Archive stage configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Storage configuration for archive publication
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// BuildConfig holds build stage configuration.
type BuildConfig struct {
	// SourceDir is the directory holding the gaia_source files
	SourceDir string `json:"source_dir" yaml:"source_dir"`

	// Pattern is the glob used to discover source files
	Pattern string `json:"pattern" yaml:"pattern"`

	// OutputDir is the catalog build root (one subdirectory per partition)
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Workers is the number of concurrent file workers
	Workers int `json:"workers" yaml:"workers"`

	// Start is the first file index to process
	Start int `json:"start" yaml:"start"`

	// Stop is the file index to stop before; negative means the end of the list
	Stop int `json:"stop" yaml:"stop"`

	// Constellations enables the constellation_id lookup
	Constellations bool `json:"constellations" yaml:"constellations"`

	// BoundariesPath is the constellation boundary table (required when Constellations is set)
	BoundariesPath string `json:"boundaries_path" yaml:"boundaries_path"`

	// Resume skips files recorded as done in the progress ledger
	Resume bool `json:"resume" yaml:"resume"`

	// ProgressPath is the progress ledger database
	ProgressPath string `json:"progress_path" yaml:"progress_path"`
}

// CrossmatchConfig holds the cross-match table locations.
type CrossmatchConfig struct {
	// HipPath is the Hipparcos-2 best neighbour table
	HipPath string `json:"hip_path" yaml:"hip_path"`

	// TycPath is the Tycho-2 neighbourhood table
	TycPath string `json:"tyc_path" yaml:"tyc_path"`
}

// CatalogConfig holds catalog writer configuration.
type CatalogConfig struct {
	// ChunkSize is the number of records buffered before shards are flushed
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// RowGroupSize is the maximum number of rows per row group
	RowGroupSize int64 `json:"row_group_size" yaml:"row_group_size"`

	// Compression is the column codec: snappy, zstd, gzip, none
	Compression string `json:"compression" yaml:"compression"`

	// Partitioning selects the HEALPix resolution and numbering scheme
	Partitioning types.PartitionKeyConfig `json:"partitioning" yaml:"partitioning"`
}

// CompactionConfig holds compaction stage configuration.
type CompactionConfig struct {
	// SourceDir is the catalog build root to compact
	SourceDir string `json:"source_dir" yaml:"source_dir"`

	// Workers is the number of partitions compacted concurrently
	Workers int `json:"workers" yaml:"workers"`

	// RowGroupSize is the maximum number of rows per row group in compacted files
	RowGroupSize int64 `json:"row_group_size" yaml:"row_group_size"`

	// Compression is the column codec of compacted files
	Compression string `json:"compression" yaml:"compression"`
}

// ArchiveConfig holds archive stage configuration.
type ArchiveConfig struct {
	// SourceDir is the compacted catalog root
	SourceDir string `json:"source_dir" yaml:"source_dir"`

	// DestinationDir receives the bundles
	DestinationDir string `json:"destination_dir" yaml:"destination_dir"`

	// MaxFilesizeMB bounds the uncompressed size of one bundle
	MaxFilesizeMB int64 `json:"max_filesize_mb" yaml:"max_filesize_mb"`

	// Prefix is the bundle file name prefix
	Prefix string `json:"prefix" yaml:"prefix"`

	// Compression is the bundle codec: gzip or snappy
	Compression string `json:"compression" yaml:"compression"`

	// Publish uploads finished bundles to the configured storage
	Publish bool `json:"publish" yaml:"publish"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// LoggingConfig holds log sink configuration.
type LoggingConfig struct {
	// Level is the minimum level written: debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// File is the append-mode log file; empty disables the file sink
	File string `json:"file" yaml:"file"`
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	// Textfile is where run metrics are written in Prometheus text format; empty disables export
	Textfile string `json:"textfile" yaml:"textfile"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/gaiacat",
		Build: BuildConfig{
			Pattern: "*.csv.gz",
			Workers: 10,
			Start:   0,
			Stop:    -1,
		},
		Catalog: CatalogConfig{
			ChunkSize:    200_000,
			RowGroupSize: 200_000,
			Compression:  "snappy",
			Partitioning: types.PartitionKeyConfig{
				Nside:  8,
				Scheme: types.SchemeNested,
			},
		},
		Compaction: CompactionConfig{
			Workers:      10,
			RowGroupSize: 100_000,
			Compression:  "snappy",
		},
		Archive: ArchiveConfig{
			MaxFilesizeMB: 2048,
			Prefix:        "gaia-dr3",
			Compression:   "gzip",
		},
		Storage: StorageConfig{
			Type: "local",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/gaiacat"
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = filepath.Join(c.DataDir, "build")
	}
	if c.Build.ProgressPath == "" {
		c.Build.ProgressPath = filepath.Join(c.DataDir, "progress.db")
	}
	if c.Compaction.SourceDir == "" {
		c.Compaction.SourceDir = c.Build.OutputDir
	}
	if c.Archive.SourceDir == "" {
		c.Archive.SourceDir = c.Compaction.SourceDir
	}
	if c.Archive.DestinationDir == "" {
		c.Archive.DestinationDir = filepath.Join(c.DataDir, "archive")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "build.log")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Build.Workers < 1 {
		return fmt.Errorf("build.workers must be at least 1, got %d", c.Build.Workers)
	}
	if c.Build.Start < 0 {
		return fmt.Errorf("build.start must not be negative, got %d", c.Build.Start)
	}
	if c.Build.Stop >= 0 && c.Build.Stop < c.Build.Start {
		return fmt.Errorf("build.stop (%d) must not be before build.start (%d)", c.Build.Stop, c.Build.Start)
	}
	if c.Build.Constellations && c.Build.BoundariesPath == "" {
		return fmt.Errorf("build.boundaries_path is required when build.constellations is enabled")
	}
	if c.Catalog.ChunkSize < 1 {
		return fmt.Errorf("catalog.chunk_size must be positive, got %d", c.Catalog.ChunkSize)
	}
	if c.Catalog.RowGroupSize < 1 {
		return fmt.Errorf("catalog.row_group_size must be positive, got %d", c.Catalog.RowGroupSize)
	}
	if err := validateCodec("catalog.compression", c.Catalog.Compression); err != nil {
		return err
	}
	if err := validateNside(c.Catalog.Partitioning.Nside); err != nil {
		return err
	}
	switch c.Catalog.Partitioning.Scheme {
	case types.SchemeNested, types.SchemeRing:
	default:
		return fmt.Errorf("invalid catalog.partitioning.scheme: %s (must be nested or ring)", c.Catalog.Partitioning.Scheme)
	}
	if c.Compaction.Workers < 1 {
		return fmt.Errorf("compaction.workers must be at least 1, got %d", c.Compaction.Workers)
	}
	if c.Compaction.RowGroupSize < 1 {
		return fmt.Errorf("compaction.row_group_size must be positive, got %d", c.Compaction.RowGroupSize)
	}
	if err := validateCodec("compaction.compression", c.Compaction.Compression); err != nil {
		return err
	}
	if c.Archive.MaxFilesizeMB < 1 {
		return fmt.Errorf("archive.max_filesize_mb must be positive, got %d", c.Archive.MaxFilesizeMB)
	}
	if c.Archive.Compression != "gzip" && c.Archive.Compression != "snappy" {
		return fmt.Errorf("invalid archive.compression: %s (must be gzip or snappy)", c.Archive.Compression)
	}
	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	return nil
}

// ValidateBuild checks the settings only the build stage needs.
func (c *Config) ValidateBuild() error {
	if c.Build.SourceDir == "" {
		return fmt.Errorf("build.source_dir is required")
	}
	if c.Crossmatch.HipPath == "" || c.Crossmatch.TycPath == "" {
		return fmt.Errorf("crossmatch.hip_path and crossmatch.tyc_path are required")
	}
	return nil
}

func validateCodec(field, codec string) error {
	switch codec {
	case "snappy", "zstd", "gzip", "none":
		return nil
	default:
		return fmt.Errorf("invalid %s: %s (must be snappy, zstd, gzip or none)", field, codec)
	}
}

// validateNside accepts powers of two up to 2^13, the range where pixel
// indices stay well inside int64 and the partition count stays manageable.
func validateNside(nside int) error {
	if nside < 1 || nside > 1<<13 || nside&(nside-1) != 0 {
		return fmt.Errorf("catalog.partitioning.nside must be a power of two between 1 and 8192, got %d", nside)
	}
	return nil
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

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are left alone. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the GAIACAT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GAIACAT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Build configuration
	if v := os.Getenv("GAIACAT_SOURCE_DIR"); v != "" {
		cfg.Build.SourceDir = v
	}
	if v := os.Getenv("GAIACAT_OUTPUT_DIR"); v != "" {
		cfg.Build.OutputDir = v
	}
	if v := os.Getenv("GAIACAT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Build.Workers = n
		}
	}
	if v := os.Getenv("GAIACAT_CONSTELLATIONS"); v != "" {
		cfg.Build.Constellations = v == "true" || v == "1"
	}
	if v := os.Getenv("GAIACAT_BOUNDARIES_PATH"); v != "" {
		cfg.Build.BoundariesPath = v
	}
	if v := os.Getenv("GAIACAT_RESUME"); v != "" {
		cfg.Build.Resume = v == "true" || v == "1"
	}

	// Crossmatch configuration
	if v := os.Getenv("GAIACAT_HIP_PATH"); v != "" {
		cfg.Crossmatch.HipPath = v
	}
	if v := os.Getenv("GAIACAT_TYC_PATH"); v != "" {
		cfg.Crossmatch.TycPath = v
	}

	// Catalog configuration
	if v := os.Getenv("GAIACAT_HEALPIX_NSIDE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.Partitioning.Nside = n
		}
	}
	if v := os.Getenv("GAIACAT_COMPRESSION"); v != "" {
		cfg.Catalog.Compression = v
		cfg.Compaction.Compression = v
	}

	// Compaction configuration
	if v := os.Getenv("GAIACAT_COMPACTION_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Compaction.Workers = n
		}
	}

	// Logging and metrics
	if v := os.Getenv("GAIACAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GAIACAT_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("GAIACAT_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}

	// Storage configuration
	if v := os.Getenv("GAIACAT_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("GAIACAT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("GAIACAT_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("GAIACAT_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("GAIACAT_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates the directories every stage writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Build.OutputDir,
		filepath.Dir(c.Build.ProgressPath),
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
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
