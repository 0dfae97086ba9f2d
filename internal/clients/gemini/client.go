package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-1.5-flash"

var ErrEmptyResponse = errors.New("gemini returned no text")

type completeFunc func(ctx context.Context, prompt string) (string, error)

// Client wraps a generative model for question generation and grading.
type Client struct {
	logger   *slog.Logger
	client   *genai.Client
	complete completeFunc
	stream   completeFunc
}

func NewClient(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockLowAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
	}
	model.ResponseMIMEType = "application/json"

	return &Client{
		logger:   logger.With("client", "gemini", "model", modelName),
		client:   client,
		complete: func(ctx context.Context, prompt string) (string, error) { return generateText(ctx, model, prompt) },
		stream:   func(ctx context.Context, prompt string) (string, error) { return streamText(ctx, model, prompt) },
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func generateText(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	collectText(&b, resp)
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return cleanModelOutput(b.String()), nil
}

func streamText(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	iter := model.GenerateContentStream(ctx, genai.Text(prompt))
	var b strings.Builder
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", err
		}
		collectText(&b, resp)
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return cleanModelOutput(b.String()), nil
}

func collectText(b *strings.Builder, resp *genai.GenerateContentResponse) {
	if resp == nil {
		return
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
}

func cleanModelOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
