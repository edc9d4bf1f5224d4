package vision

import (
	"context"
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"

	"github.com/tmc/langchaingo/llms"

	"cogniquery/internal/config"
	"cogniquery/internal/llmservice"
	"cogniquery/internal/models"
)

// Describer turns an extracted visual asset into a natural-language
// description via a vision-capable chat model.
type Describer struct {
	llm llms.Model
}

func NewDescriber(cfg *config.LLMConfig) (*Describer, error) {
	llm, err := llmservice.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Describer{llm: llm}, nil
}

// Describe loads the image and asks the model for a detailed description.
// Callers treat an error as "skip this asset", never aborting the batch.
func (d *Describer) Describe(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(models.DescribeImagePrompt),
				llms.ImageURLPart(dataURL),
			},
		},
	}
	return llmservice.GenerateText(ctx, d.llm, messages)
}
