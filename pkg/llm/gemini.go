package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"

	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API through google.golang.org/genai.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, model, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, opts Options, prompts ...Prompt) (string, error) {
	var parts []*genai.Part
	for _, p := range prompts {
		switch v := p.(type) {
		case TextPrompt:
			parts = append(parts, genai.NewPartFromText(string(v)))
		default:
			return "", fmt.Errorf("unsupported prompt type for Gemini client")
		}
	}

	r, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{{Parts: parts}}, geminiConfig(opts))
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return "", &RateLimitError{RetryAfter: RetryAfterHint(apiErr.Message), Err: err}
		}
		return "", classify(fmt.Errorf("gemini generate error: %w", err))
	}

	if usage := r.UsageMetadata; usage != nil {
		slog.Info("LLM Usage",
			slog.String("model", c.model),
			slog.Int("prompt_tokens", int(usage.PromptTokenCount)),
			slog.Int("thought_tokens", int(usage.ThoughtsTokenCount)),
			slog.Int("output_tokens", int(usage.CandidatesTokenCount)),
			slog.Int("total_tokens", int(usage.TotalTokenCount)))
	}

	text := r.Text()
	if text == "" {
		return "", fmt.Errorf("no content in gemini response")
	}
	return text, nil
}

func geminiConfig(opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*opts.Temperature))
	}
	if opts.Seed != nil {
		cfg.Seed = genai.Ptr(int32(*opts.Seed))
	}
	if opts.JSON || opts.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
	}
	if opts.Schema != nil {
		cfg.ResponseSchema = reflectSchema(reflect.TypeOf(opts.Schema))
	}
	return cfg
}
