package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/textsplitter"

	"cogniquery/internal/chromemdb"
	"cogniquery/internal/config"
	"cogniquery/internal/embedding"
	"cogniquery/internal/models"
)

// Describer produces a natural-language description for a visual asset.
type Describer interface {
	Describe(ctx context.Context, imagePath string) (string, error)
}

// Builder turns extracted pages into a persisted knowledge base: it splits
// page text into overlapping chunks, describes visual assets, embeds
// everything, and writes the result into a chromem collection.
type Builder struct {
	embedder   embeddings.Embedder
	describer  Describer
	splitter   textsplitter.RecursiveCharacter
	collection string
	embedModel string
}

func NewBuilder(embedder embeddings.Embedder, describer Describer, cfg *config.Config) *Builder {
	return &Builder{
		embedder:  embedder,
		describer: describer,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.RAG.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.RAG.ChunkOverlap),
		),
		collection: cfg.RAG.Collection,
		embedModel: cfg.EmbedLLM.Model,
	}
}

// Build replaces the knowledge base at storePath with an index over the given
// pages and returns the number of indexed chunks. Description failures skip
// the asset; embedding and persistence failures abort the build, and an
// aborted build never leaves a usable index behind.
func (b *Builder) Build(ctx context.Context, pages []models.PageRecord, storePath string) (int, error) {
	chunks, err := b.collectChunks(ctx, pages)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no indexable content in %d pages", len(pages))
	}

	contents := make([]string, len(chunks))
	for i, chunk := range chunks {
		contents[i] = chunk.Content
	}
	log.Info().Int("chunks", len(chunks)).Msg("embedding chunks and image descriptions")
	vectors, err := embedding.EmbedTexts(ctx, b.embedder, contents)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	store, err := chromemdb.Open(storePath, b.collection)
	if err != nil {
		return 0, err
	}
	if err := store.Replace(); err != nil {
		return 0, err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		metadata := map[string]string{
			models.MetaType: string(chunk.Type),
			models.MetaPage: strconv.Itoa(chunk.Page),
		}
		if chunk.SourceImage != "" {
			// Asset files are deleted once indexing finishes, so only the
			// file name is kept, as provenance.
			metadata[models.MetaSourceImage] = filepath.Base(chunk.SourceImage)
		}
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("page%d-%s-%d", chunk.Page, chunk.Type, i),
			Content:   chunk.Content,
			Metadata:  metadata,
			Embedding: vectors[i],
		}
	}
	if err := store.AddDocuments(ctx, docs); err != nil {
		return 0, err
	}

	if err := store.WriteManifest(chromemdb.Manifest{
		EmbeddingModel: b.embedModel,
		Chunks:         len(docs),
	}); err != nil {
		return 0, err
	}

	log.Info().Int("chunks", len(docs)).Str("path", storePath).Msg("knowledge base built")
	return len(docs), nil
}

func (b *Builder) collectChunks(ctx context.Context, pages []models.PageRecord) ([]models.IndexedChunk, error) {
	var chunks []models.IndexedChunk
	for _, page := range pages {
		parts, err := b.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.PageNumber, err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, models.IndexedChunk{
				Type:    models.ChunkTypeText,
				Content: part,
				Page:    page.PageNumber,
			})
		}

		if len(page.Visuals) > 0 {
			log.Debug().Int("page", page.PageNumber).Int("visuals", len(page.Visuals)).Msg("describing visuals")
		}
		for _, imagePath := range page.Visuals {
			description, err := b.describer.Describe(ctx, imagePath)
			if err != nil {
				log.Warn().Err(err).Str("image", imagePath).Msg("skipping undescribable visual")
				continue
			}
			if strings.TrimSpace(description) == "" {
				continue
			}
			chunks = append(chunks, models.IndexedChunk{
				Type:        models.ChunkTypeImageSummary,
				Content:     description,
				Page:        page.PageNumber,
				SourceImage: imagePath,
			})
		}
	}
	return chunks, nil
}
