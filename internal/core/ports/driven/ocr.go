package driven

import "context"

// OCRInput describes one rasterisation target: either a single page of
// a PDF document, or a standalone image.
type OCRInput struct {
	// PDF is the full PDF document when recognising a page; nil for
	// standalone images.
	PDF []byte

	// Page is the 1-based page number within PDF.
	Page int

	// Image is the raw image bytes when recognising a scanned image.
	Image []byte
}

// OCRResult is the recovered text plus a confidence indicator.
type OCRResult struct {
	// Text is the recognised text, possibly empty.
	Text string

	// Confidence is the mean word confidence reported by the engine
	// (0-100). Zero when nothing was recognised.
	Confidence float64
}

// OCREngine recovers text from scanned pages.
//
// OCR is the slow, failure-prone path: the engine is rate-limited and
// bounded by a per-call timeout so degraded recognition never starves
// native-text extraction. A recognition failure degrades to empty text
// with zero confidence rather than failing the document; only an
// unreachable engine surfaces domain.ErrOCRUnavailable.
type OCREngine interface {
	// Available reports whether the recognition engine is reachable.
	// Returns an error wrapping domain.ErrOCRUnavailable when not.
	Available() error

	// Recognize rasterises the input and runs character recognition
	// configured for the engine's language set.
	Recognize(ctx context.Context, in OCRInput) (*OCRResult, error)
}
