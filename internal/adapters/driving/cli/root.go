// Package cli wires the corpus commands to the core services. Every
// command goes through the same initialisation: load the TOML config,
// open the SQLite-backed index store, build the extraction registry
// and hand the assembled services to the command handlers.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/source/filesystem"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/corpus-cli/internal/config"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/core/services"
	"github.com/custodia-labs/corpus-cli/internal/extractors"
	"github.com/custodia-labs/corpus-cli/internal/extractors/docx"
	"github.com/custodia-labs/corpus-cli/internal/extractors/html"
	"github.com/custodia-labs/corpus-cli/internal/extractors/image"
	"github.com/custodia-labs/corpus-cli/internal/extractors/pdf"
	"github.com/custodia-labs/corpus-cli/internal/extractors/xlsx"
	"github.com/custodia-labs/corpus-cli/internal/logger"
	"github.com/custodia-labs/corpus-cli/internal/ocr/tesseract"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/chunker"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/normalizer"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

// Services assembled by initServices and shared by the commands.
// Tests may pre-set them to inject fakes.
var (
	cfg            *config.Config
	indexerService driving.Indexer
	queryService   driving.QueryService
	indexStore     driven.IndexStore
	source         *filesystem.Source
)

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Index local documents into a searchable knowledge base",
	Long: `Corpus extracts text from local documents (PDF, DOCX, XLSX,
images, HTML), falls back to OCR for scanned pages, chunks and embeds
the text, and serves similarity queries over the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return initServices()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.corpus/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}

// initServices loads configuration and assembles the pipeline.
// It is a no-op when a test already injected services.
func initServices() error {
	if indexerService != nil && queryService != nil {
		return nil
	}

	path := configPath
	if path == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return fmt.Errorf("resolving config directory: %w", err)
		}
		path = filepath.Join(dir, "config.toml")
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Debug("Config loaded from %s", path)

	dataDir, err := cfg.DataDir()
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}

	store, err := sqlite.NewStore(dataDir, cfg.Index.Metric)
	if err != nil {
		return fmt.Errorf("opening index store: %w", err)
	}
	indexStore = store

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	registry := extractors.NewRegistry()
	registry.Register(pdf.New(cfg.OCR.MinChars))
	registry.Register(docx.New())
	registry.Register(xlsx.New())
	registry.Register(html.New())
	registry.Register(image.New())

	var engine driven.OCREngine = disabledOCR{}
	if cfg.OCR.Enabled {
		engine = tesseract.New(tesseract.Config{
			Languages:  cfg.OCR.Languages,
			DPI:        cfg.OCR.DPI,
			RatePerSec: cfg.OCR.RatePerSec,
			Timeout:    time.Duration(cfg.OCR.TimeoutSecs) * time.Second,
		})
	}

	pipeline := postprocessors.NewPipeline(
		normalizer.New(),
		chunker.New(
			chunker.WithChunkSize(cfg.Chunking.Size),
			chunker.WithOverlap(cfg.Chunking.Overlap),
		),
	)

	source = filesystem.New(cfg.Source.Dir, cfg.Source.Recursive)

	opts := []services.IndexerOption{services.WithWorkers(cfg.Pipeline.Workers)}
	if cfg.Dedup.NearDuplicates {
		opts = append(opts, services.WithNearDuplicates(cfg.Dedup.SimilarityThreshold))
	}
	indexerService = services.NewIndexerService(
		source, registry, engine, pipeline, embedder, store, store, store, opts...,
	)
	queryService = services.NewResolver(embedder, store,
		services.WithDefaultTopK(cfg.Query.TopK),
		services.WithDefaultMinScore(cfg.Query.MinScore),
	)
	return nil
}

// buildEmbedder selects the embedding backend from configuration.
func buildEmbedder(cfg *config.Config) (driven.EmbeddingService, error) {
	timeout := time.Duration(cfg.Embedding.TimeoutSecs) * time.Second

	switch cfg.Embedding.Provider {
	case "openai":
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("no API key in $%s: %w", cfg.Embedding.APIKeyEnv, domain.ErrInvalidInput)
		}
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     key,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Timeout:    timeout,
			Dimensions: cfg.Embedding.Dimensions,
			BatchSize:  cfg.Embedding.BatchSize,
		})
	case "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Timeout:    timeout,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("embedding provider %q: %w", cfg.Embedding.Provider, domain.ErrInvalidInput)
	}
}

func closeServices() {
	if indexStore != nil {
		if err := indexStore.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing index store: %v\n", err)
		}
	}
}

// disabledOCR stands in for the recognition engine when OCR is turned
// off; affected segments degrade exactly as with a missing binary.
type disabledOCR struct{}

func (disabledOCR) Available() error {
	return fmt.Errorf("OCR disabled in config: %w", domain.ErrOCRUnavailable)
}

func (disabledOCR) Recognize(_ context.Context, _ driven.OCRInput) (*driven.OCRResult, error) {
	return &driven.OCRResult{}, nil
}
