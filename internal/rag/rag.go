package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"cogniquery/internal/chromemdb"
	"cogniquery/internal/config"
	"cogniquery/internal/llmservice"
	"cogniquery/internal/models"
)

// ErrIndexNotFound means no knowledge base has been built at the requested
// location. Callers surface this as "please process data first".
var ErrIndexNotFound = errors.New("knowledge base not found")

const answerTemperature = 0.7

// Engine answers questions against a persisted knowledge base using
// history-aware retrieval: follow-up questions are rewritten into standalone
// form before similarity search, and answers are grounded in the retrieved
// chunks only.
type Engine struct {
	embedder   embeddings.Embedder
	llm        llms.Model
	topK       int
	embedModel string
}

func NewEngine(embedder embeddings.Embedder, llm llms.Model, cfg *config.Config) *Engine {
	return &Engine{
		embedder:   embedder,
		llm:        llm,
		topK:       cfg.RAG.TopK,
		embedModel: cfg.EmbedLLM.Model,
	}
}

// Answer resolves one question against the knowledge base at storePath,
// returning the generated answer together with the chunks it was grounded in.
// Every call retrieves and generates afresh; nothing is cached.
func (e *Engine) Answer(ctx context.Context, question string, history []models.ChatTurn, storePath string) (*models.Answer, error) {
	manifest, err := chromemdb.LoadManifest(storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrIndexNotFound, storePath)
		}
		return nil, err
	}
	if manifest.EmbeddingModel != e.embedModel {
		return nil, fmt.Errorf("knowledge base was embedded with %q, engine uses %q", manifest.EmbeddingModel, e.embedModel)
	}

	store, err := chromemdb.Open(storePath, manifest.Collection)
	if err != nil {
		return nil, err
	}

	standalone := question
	if len(history) > 0 {
		standalone, err = e.rewriteQuestion(ctx, question, history)
		if err != nil {
			return nil, fmt.Errorf("failed to rewrite question: %w", err)
		}
		if standalone != question {
			log.Debug().Str("standalone", standalone).Msg("rewrote question for retrieval")
		}
	}

	queryEmbedding, err := e.embedder.EmbedQuery(ctx, standalone)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	results, err := store.Query(ctx, queryEmbedding, e.topK)
	if err != nil {
		return nil, err
	}
	sources := resultsToChunks(results)

	answer, err := e.generateAnswer(ctx, question, history, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	return &models.Answer{Text: answer, Sources: sources}, nil
}

// rewriteQuestion asks the model for a standalone reformulation of the
// question given the conversation so far. The model must not answer here;
// the result drives retrieval only.
func (e *Engine) rewriteQuestion(ctx context.Context, question string, history []models.ChatTurn) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, models.RewritePromptTemplate))
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))

	rewritten, err := llmservice.GenerateText(ctx, e.llm, messages)
	if err != nil {
		return "", err
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question, nil
	}
	return rewritten, nil
}

// generateAnswer asks the model to answer using only the retrieved context,
// with the conversation history included for continuity of tone.
func (e *Engine) generateAnswer(ctx context.Context, question string, history []models.ChatTurn, sources []models.IndexedChunk) (string, error) {
	var contextBlock strings.Builder
	for _, chunk := range sources {
		contextBlock.WriteString(chunk.Content)
		contextBlock.WriteString("\n\n")
	}

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem,
		fmt.Sprintf(models.AnswerPromptTemplate, contextBlock.String())))
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))

	return llmservice.GenerateText(ctx, e.llm, messages, llms.WithTemperature(answerTemperature))
}

func historyMessages(history []models.ChatTurn) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history))
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	return messages
}

func resultsToChunks(results []chromem.Result) []models.IndexedChunk {
	chunks := make([]models.IndexedChunk, 0, len(results))
	for _, result := range results {
		page, _ := strconv.Atoi(result.Metadata[models.MetaPage])
		chunks = append(chunks, models.IndexedChunk{
			Type:        models.ChunkType(result.Metadata[models.MetaType]),
			Content:     result.Content,
			Page:        page,
			SourceImage: result.Metadata[models.MetaSourceImage],
		})
	}
	return chunks
}
