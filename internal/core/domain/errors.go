package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates a document format outside the
	// supported set. The document fails; sibling documents are not
	// affected.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptInput indicates the document bytes could not be parsed
	// (malformed PDF, broken zip archive, and so on).
	ErrCorruptInput = errors.New("corrupt input")

	// ErrOCRUnavailable indicates the recognition engine is not
	// reachable. Soft: the affected segment contributes no chunks and
	// the document degrades to partial, but the run continues.
	ErrOCRUnavailable = errors.New("OCR engine unavailable")

	// ErrModelUnavailable indicates the embedding backend cannot be
	// reached or loaded. Fatal to the run: no useful index can be
	// produced without the model.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrDimensionMismatch indicates a vector whose length differs from
	// the index store's configured dimension. Fatal to the offending
	// upsert only.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyIndex indicates a query against a store with zero
	// entries. A query-time condition, not a processing error.
	ErrEmptyIndex = errors.New("index is empty")
)
