// Package config loads and persists the Corpus configuration file.
// Configuration lives in a TOML file within the corpus config directory
// (~/.corpus/config.toml by default) and every field carries a default,
// so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full configuration tree for the indexing pipeline and
// the query path. Zero values are replaced by defaults on load.
type Config struct {
	Source    SourceConfig    `toml:"source"`
	Data      DataConfig      `toml:"data"`
	Artifact  ArtifactConfig  `toml:"artifact"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	OCR       OCRConfig       `toml:"ocr"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Dedup     DedupConfig     `toml:"dedup"`
	Index     IndexConfig     `toml:"index"`
	Query     QueryConfig     `toml:"query"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
}

// SourceConfig locates the documents to index.
type SourceConfig struct {
	// Dir is the directory scanned for source documents.
	Dir string `toml:"dir"`

	// Recursive enables descending into subdirectories.
	Recursive bool `toml:"recursive"`
}

// DataConfig locates the persistent state.
type DataConfig struct {
	// Dir holds the SQLite database. Defaults to the config directory.
	Dir string `toml:"dir"`
}

// ArtifactConfig controls the exported index artifacts.
type ArtifactConfig struct {
	// Path is the JSONL index export written after each run.
	Path string `toml:"path"`

	// ReportPath is the JSON run report written after each run.
	ReportPath string `toml:"report_path"`
}

// ChunkingConfig controls the sliding-window chunker.
type ChunkingConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// OCRConfig controls the tesseract fallback for scanned pages and images.
type OCRConfig struct {
	Enabled bool `toml:"enabled"`

	// MinChars is the native-text threshold below which a PDF page is
	// considered scanned and routed to OCR.
	MinChars int `toml:"min_chars"`

	// Languages is the tesseract language spec, e.g. "rus+eng".
	Languages string `toml:"languages"`

	// DPI is the rasterization resolution for PDF pages.
	DPI int `toml:"dpi"`

	// RatePerSec caps OCR invocations per second. Zero means unlimited.
	RatePerSec float64 `toml:"rate_per_sec"`

	// TimeoutSecs bounds a single OCR invocation.
	TimeoutSecs int `toml:"timeout_secs"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	// Provider is "openai" or "ollama".
	Provider string `toml:"provider"`

	BaseURL string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself is never written to the config file.
	APIKeyEnv string `toml:"api_key_env"`

	Model       string `toml:"model"`
	BatchSize   int    `toml:"batch_size"`
	TimeoutSecs int    `toml:"timeout_secs"`

	// Dimensions pins the expected vector width. Zero accepts whatever
	// the backend returns on first use.
	Dimensions int `toml:"dimensions"`
}

// DedupConfig controls duplicate suppression.
type DedupConfig struct {
	// NearDuplicates enables shingle-overlap detection on top of exact
	// hash matching.
	NearDuplicates bool `toml:"near_duplicates"`

	// SimilarityThreshold is the Jaccard overlap above which a chunk is
	// treated as a near-duplicate.
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

// IndexConfig controls similarity scoring.
type IndexConfig struct {
	// Metric is "cosine" or "dot".
	Metric string `toml:"metric"`
}

// QueryConfig holds query-path defaults.
type QueryConfig struct {
	TopK     int     `toml:"top_k"`
	MinScore float64 `toml:"min_score"`
}

// PipelineConfig tunes the document worker pool.
type PipelineConfig struct {
	// Workers is the number of documents processed concurrently.
	Workers int `toml:"workers"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Dir:       "docs",
			Recursive: true,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		OCR: OCRConfig{
			Enabled:     true,
			MinChars:    32,
			Languages:   "rus+eng",
			DPI:         300,
			RatePerSec:  2,
			TimeoutSecs: 60,
		},
		Embedding: EmbeddingConfig{
			Provider:    "ollama",
			BaseURL:     "http://localhost:11434",
			APIKeyEnv:   "CORPUS_API_KEY",
			Model:       "nomic-embed-text",
			BatchSize:   16,
			TimeoutSecs: 30,
		},
		Dedup: DedupConfig{
			NearDuplicates:      false,
			SimilarityThreshold: 0.9,
		},
		Index: IndexConfig{
			Metric: "cosine",
		},
		Query: QueryConfig{
			TopK:     5,
			MinScore: 0.25,
		},
		Pipeline: PipelineConfig{
			Workers: 4,
		},
	}
}

// DefaultDir returns the corpus config directory, ~/.corpus.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".corpus"), nil
}

// Load reads the config file at path, or the default location when path
// is empty. A missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	if path == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.toml")
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to path, creating the directory if
// needed. The file is written with restricted permissions.
func (c *Config) Save(path string) error {
	if path == "" {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.toml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("embedding.provider must be openai or ollama, got %q", c.Embedding.Provider)
	}
	switch c.Index.Metric {
	case "cosine", "dot":
	default:
		return fmt.Errorf("index.metric must be cosine or dot, got %q", c.Index.Metric)
	}
	if c.Dedup.SimilarityThreshold < 0 || c.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("dedup.similarity_threshold must be in [0, 1], got %g", c.Dedup.SimilarityThreshold)
	}
	if c.Query.TopK <= 0 {
		return fmt.Errorf("query.top_k must be positive, got %d", c.Query.TopK)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	return nil
}

// applyDefaults fills fields a partial config file left at zero.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Source.Dir == "" {
		c.Source.Dir = def.Source.Dir
	}
	if c.Chunking.Size == 0 {
		c.Chunking.Size = def.Chunking.Size
	}
	if c.OCR.MinChars == 0 {
		c.OCR.MinChars = def.OCR.MinChars
	}
	if c.OCR.Languages == "" {
		c.OCR.Languages = def.OCR.Languages
	}
	if c.OCR.DPI == 0 {
		c.OCR.DPI = def.OCR.DPI
	}
	if c.OCR.TimeoutSecs == 0 {
		c.OCR.TimeoutSecs = def.OCR.TimeoutSecs
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = def.Embedding.Provider
	}
	if c.Embedding.BaseURL == "" && c.Embedding.Provider == "ollama" {
		c.Embedding.BaseURL = def.Embedding.BaseURL
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = def.Embedding.Model
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if c.Embedding.TimeoutSecs == 0 {
		c.Embedding.TimeoutSecs = def.Embedding.TimeoutSecs
	}
	if c.Dedup.SimilarityThreshold == 0 {
		c.Dedup.SimilarityThreshold = def.Dedup.SimilarityThreshold
	}
	if c.Index.Metric == "" {
		c.Index.Metric = def.Index.Metric
	}
	if c.Query.TopK == 0 {
		c.Query.TopK = def.Query.TopK
	}
	if c.Query.MinScore == 0 {
		c.Query.MinScore = def.Query.MinScore
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = def.Pipeline.Workers
	}
}

// DataDir resolves the directory for persistent state, defaulting to
// the config directory.
func (c *Config) DataDir() (string, error) {
	if c.Data.Dir != "" {
		return c.Data.Dir, nil
	}
	return DefaultDir()
}

// APIKey reads the embedding API key from the configured environment
// variable. Empty when unset.
func (c *Config) APIKey() string {
	if c.Embedding.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedding.APIKeyEnv)
}
