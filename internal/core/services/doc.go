// Package services implements the driving port interfaces.
// The indexer orchestrates the document pipeline (extraction, OCR
// fallback, chunking, deduplication, embedding, index writes) and the
// resolver answers similarity queries over the result.
//
// Services are pure Go with no CGO or external dependencies.
package services
