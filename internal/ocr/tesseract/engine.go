// Package tesseract recovers text from scanned pages by shelling out
// to pdftoppm (poppler) for rasterisation and tesseract for character
// recognition. Both tools are resolved from PATH; availability is
// checked up front so a missing install degrades the run instead of
// failing it.
package tesseract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure Engine implements the interface.
var _ driven.OCREngine = (*Engine)(nil)

// CommandRunner executes external commands. Allows mocking in tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner is the real command runner using os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Config tunes the OCR engine.
type Config struct {
	// Languages is the tesseract language spec, e.g. "rus+eng".
	Languages string

	// DPI is the rasterization resolution for PDF pages.
	DPI int

	// RatePerSec caps recognitions per second. Zero means unlimited.
	RatePerSec float64

	// Timeout bounds a single recognition including rasterisation.
	Timeout time.Duration
}

// Engine runs OCR via the tesseract and poppler command-line tools.
type Engine struct {
	runner  CommandRunner
	langs   string
	dpi     int
	limiter *rate.Limiter
	timeout time.Duration
}

// New creates an OCR engine using the real command runner.
func New(cfg Config) *Engine {
	return NewWithRunner(cfg, execRunner{})
}

// NewWithRunner creates an OCR engine with a custom command runner.
func NewWithRunner(cfg Config, runner CommandRunner) *Engine {
	if cfg.Languages == "" {
		cfg.Languages = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	return &Engine{
		runner:  runner,
		langs:   cfg.Languages,
		dpi:     cfg.DPI,
		limiter: rate.NewLimiter(limit, 1),
		timeout: cfg.Timeout,
	}
}

// Available reports whether tesseract and pdftoppm are on PATH.
func (e *Engine) Available() error {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return fmt.Errorf("tesseract not found in PATH: %w", domain.ErrOCRUnavailable)
	}
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return fmt.Errorf("pdftoppm not found in PATH: %w", domain.ErrOCRUnavailable)
	}
	return nil
}

// InstallInstructions returns help text for installing the OCR tools.
func InstallInstructions() string {
	return `OCR requires tesseract and poppler:
  macOS:  brew install tesseract tesseract-lang poppler
  Debian: apt install tesseract-ocr tesseract-ocr-rus poppler-utils`
}

// Recognize rasterises the input and runs tesseract over it.
// A recognition failure yields an empty result rather than an error;
// only context cancellation and invalid input are surfaced.
func (e *Engine) Recognize(ctx context.Context, in driven.OCRInput) (*driven.OCRResult, error) {
	if len(in.PDF) == 0 && len(in.Image) == 0 {
		return nil, domain.ErrInvalidInput
	}
	if len(in.PDF) > 0 && in.Page < 1 {
		return nil, fmt.Errorf("page %d: %w", in.Page, domain.ErrInvalidInput)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "corpus-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	imagePath, err := e.prepareImage(ctx, dir, in)
	if err != nil {
		return e.degrade(ctx, err)
	}

	output, err := e.runner.Run(ctx, "tesseract", imagePath, "stdout", "-l", e.langs, "tsv")
	if err != nil {
		return e.degrade(ctx, err)
	}

	text, confidence := parseTSV(string(output))
	return &driven.OCRResult{Text: text, Confidence: confidence}, nil
}

// prepareImage writes the recognition target to dir and returns its
// path, rasterising the requested PDF page when needed.
func (e *Engine) prepareImage(ctx context.Context, dir string, in driven.OCRInput) (string, error) {
	if len(in.Image) > 0 {
		path := filepath.Join(dir, "input.png")
		if err := os.WriteFile(path, in.Image, 0600); err != nil {
			return "", fmt.Errorf("write image: %w", err)
		}
		return path, nil
	}

	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, in.PDF, 0600); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}

	page := strconv.Itoa(in.Page)
	base := filepath.Join(dir, "page")
	_, err := e.runner.Run(ctx, "pdftoppm",
		"-f", page, "-l", page,
		"-r", strconv.Itoa(e.dpi),
		"-gray", "-png", "-singlefile",
		pdfPath, base)
	if err != nil {
		return "", fmt.Errorf("rasterise page %s: %w", page, err)
	}
	return base + ".png", nil
}

// degrade maps a tool failure to an empty result, preserving context
// cancellation as a real error.
func (e *Engine) degrade(ctx context.Context, err error) (*driven.OCRResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	logger.Warn("ocr degraded to empty text: %v", err)
	return &driven.OCRResult{}, nil
}

// parseTSV reconstructs text and mean word confidence from tesseract
// TSV output. Word rows carry level 5 and a non-negative confidence.
func parseTSV(output string) (string, float64) {
	var (
		lines    []string
		words    []string
		lastLine string
		confSum  float64
		confN    int
	)

	flush := func() {
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
			words = words[:0]
		}
	}

	for _, row := range strings.Split(output, "\n") {
		fields := strings.Split(row, "\t")
		if len(fields) < 12 || fields[0] != "5" {
			continue
		}

		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}

		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < 0 {
			continue
		}

		// New text line when the block/paragraph/line triple changes.
		lineKey := fields[2] + "/" + fields[3] + "/" + fields[4]
		if lineKey != lastLine {
			flush()
			lastLine = lineKey
		}

		words = append(words, word)
		confSum += conf
		confN++
	}
	flush()

	if confN == 0 {
		return "", 0
	}
	return strings.Join(lines, "\n"), confSum / float64(confN)
}
