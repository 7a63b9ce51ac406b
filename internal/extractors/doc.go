// Package extractors provides the format-specific text extraction
// pipeline. Each subpackage implements driven.Extractor for exactly one
// variant of the closed format set; the registry in this package routes
// a source document to its extractor by format tag.
//
// # Import Rules
//
// Extractor packages import the domain and driven ports only. They are
// pure transformations from raw bytes to ordered segments: no network
// calls, no persistence, no OCR. Segments flagged NeedsOCR are filled
// in later by the orchestrator through the OCR engine port.
package extractors
