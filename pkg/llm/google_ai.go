package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleAIClient calls Gemini models through the older generative-ai-go SDK.
type GoogleAIClient struct {
	client *genai.Client
	model  string
}

func NewGoogleAIClient(model, apiKey string) (*GoogleAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google ai api key is empty")
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create google ai client: %w", err)
	}
	return &GoogleAIClient{
		client: client,
		model:  model,
	}, nil
}

func (c *GoogleAIClient) Generate(ctx context.Context, opts Options, prompts ...Prompt) (string, error) {
	model := c.client.GenerativeModel(c.model)
	if opts.Temperature != nil {
		model.SetTemperature(float32(*opts.Temperature))
	}
	if opts.JSON {
		model.ResponseMIMEType = "application/json"
	}

	text, err := joinText(prompts, "Google AI")
	if err != nil {
		return "", err
	}

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", classify(fmt.Errorf("gemini generate error: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content in gemini response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}
