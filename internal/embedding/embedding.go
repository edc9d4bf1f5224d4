package embedding

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"

	"cogniquery/internal/config"
	"cogniquery/internal/llmservice"
)

// NewEmbedder creates an embedder backed by an OpenAI-compatible endpoint.
// The same model must be used at index-build time and query time.
func NewEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := llmservice.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// EmbedTexts computes one vector per input text. Any failure aborts the
// whole batch; a partially embedded set of chunks must never be indexed.
func EmbedTexts(ctx context.Context, embedder embeddings.Embedder, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vector, err := embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}
