// Package pdf extracts text from PDF documents, one segment per page.
// Pages whose embedded text layer falls below the configured threshold
// are flagged for the OCR fallback instead of being finalised empty.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles PDF documents.
type Extractor struct {
	minChars int
}

// New creates a PDF extractor. minChars is the native-text threshold
// below which a page is considered scanned and flagged NeedsOCR.
func New(minChars int) *Extractor {
	return &Extractor{minChars: minChars}
}

// Format returns the format this extractor handles.
func (e *Extractor) Format() domain.Format {
	return domain.FormatPDF
}

// Extract parses the PDF into one segment per page, in page order.
func (e *Extractor) Extract(ctx context.Context, doc *domain.SourceDocument) (segments []domain.Segment, err error) {
	if doc == nil || len(doc.Content) == 0 {
		return nil, domain.ErrInvalidInput
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("parse pdf: %v: %w", r, domain.ErrCorruptInput)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", domain.ErrCorruptInput)
	}

	total := reader.NumPage()
	segments = make([]domain.Segment, 0, total)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seg := domain.Segment{
			Index: i - 1,
			Kind:  domain.KindPage,
		}

		page := reader.Page(i)
		if !page.V.IsNull() {
			if text, terr := page.GetPlainText(nil); terr == nil {
				seg.Text = strings.TrimSpace(text)
			}
		}

		if utf8.RuneCountInString(seg.Text) < e.minChars {
			// Too little native text: likely a scanned page.
			seg.Text = ""
			seg.NeedsOCR = true
		} else {
			seg.Method = domain.MethodNative
		}

		segments = append(segments, seg)
	}

	return segments, nil
}
