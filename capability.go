package vectordb

import "context"

// EmbeddingGenerator is the text-to-vector capability the Coordinator
// delegates to. It is satisfied structurally by every embedding.Generator
// implementation (embedding.StaticGenerator, embedding.OpenAIGenerator, or
// a caller's own type) — no adapter is required.
type EmbeddingGenerator interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the length of vectors this generator produces.
	Dimensions() int

	// Close releases generator resources.
	Close() error
}

// LlmProvider is an optional collaborator for retrieval-augmented
// generation. The Coordinator never calls it directly; it is exposed for
// callers building RAG pipelines on top of DB.
type LlmProvider interface {
	// Generate produces a complete response to prompt.
	Generate(ctx context.Context, prompt string, opts map[string]any) (string, error)

	// GenerateStream produces a response incrementally, one chunk per
	// value on the returned channel. The channel is closed when
	// generation completes or ctx is cancelled.
	GenerateStream(ctx context.Context, prompt string, opts map[string]any) (<-chan string, error)

	// Close releases provider resources.
	Close() error
}
