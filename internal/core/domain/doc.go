// Package domain defines the core business entities for Corpus.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: a source document moving through the indexing pipeline
//   - Segment: a structural unit of a document (page, sheet, image)
//   - Chunk: a bounded span of normalized text, the unit of embedding
//   - IndexEntry: a chunk plus its vector as persisted in the index store
//   - Report: the per-run processing summary
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
