package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations may include:
//   - OpenAI-compatible APIs (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Local models via inference servers
//
// Backend-unreachable failures must wrap domain.ErrModelUnavailable;
// the orchestrator treats them as fatal to the run.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// input order. Implementations split the input into sub-batches of
	// their configured batch size; batching must not change the
	// numerical output versus single-item calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// This is fixed for the lifetime of an index.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the backend is reachable with a lightweight
	// request. The orchestrator calls it at run start so a missing
	// model fails the run before any extraction work.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
