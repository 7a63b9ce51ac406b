// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - DocumentSource: Lists documents and reads their bytes
//   - Extractor / ExtractorRegistry: Format-specific text extraction
//   - TextPipeline: Normalization and chunking
//   - EmbeddingService: Generates vector embeddings
//   - IndexStore: Persistent chunk→vector index with similarity lookup
//   - CheckpointStore: Per-document status persistence
//   - HashStore: Seen-hash persistence across runs
//
// # Degradable Interfaces
//
//   - OCREngine: Recovers text from scanned pages. An engine that
//     reports unavailable leaves needs-ocr pages empty and their
//     documents end up partial; the run continues.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
