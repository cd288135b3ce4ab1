// Package llm wraps the text generation services used to produce and judge
// dialogues. Every provider is reduced to one call: prompt in, raw text out.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Prompt is one input part of a generation request.
type Prompt interface {
	isPrompt()
}

// TextPrompt is a plain text prompt part.
type TextPrompt string

func (TextPrompt) isPrompt() {}

// Options tunes a single generation call. Providers ignore what they cannot
// express.
type Options struct {
	// Temperature is left to the provider default when nil.
	Temperature *float64
	// Seed requests deterministic sampling where supported.
	Seed *int
	// JSON asks for JSON output mode.
	JSON bool
	// Schema is a sample value whose Go type describes the expected JSON
	// object. Only used by providers that accept a response schema.
	Schema any
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// LLMClient is a dialogue source or judge: it turns prompts into raw text.
// The returned text is untrusted and may not be valid JSON.
type LLMClient interface {
	Generate(ctx context.Context, opts Options, prompts ...Prompt) (string, error)
}

// Provider names accepted by NewClient.
const (
	ProviderOllama     = "ollama"
	ProviderGemini     = "gemini"
	ProviderGoogleAI   = "googleai"
	ProviderVolcengine = "volcengine"
	ProviderOpenAI     = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string
	// APIKey falls back to the provider's environment variable when empty.
	APIKey string
	// BaseURL overrides the provider endpoint. For Ollama it falls back to
	// ResolveOllamaEndpoint().
	BaseURL string
	Timeout time.Duration
}

// NewClient builds the client for cfg.Provider.
func NewClient(ctx context.Context, cfg Config) (LLMClient, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		base := cfg.BaseURL
		if base == "" {
			base = ResolveOllamaEndpoint()
		}
		return NewOllamaClient(cfg.Model, base, cfg.Timeout), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg.Model, apiKey(cfg.APIKey, "GEMINI_API_KEY"))
	case ProviderGoogleAI:
		return NewGoogleAIClient(cfg.Model, apiKey(cfg.APIKey, "GOOGLE_API_KEY"))
	case ProviderVolcengine:
		return NewVolcengineClient(cfg.Model, apiKey(cfg.APIKey, "ARK_API_KEY"))
	case ProviderOpenAI:
		base := cfg.BaseURL
		if base == "" {
			base = os.Getenv("OPENAI_BASE_URL")
		}
		return NewOpenAIClient(cfg.Model, apiKey(cfg.APIKey, "OPENAI_API_KEY"), base)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func apiKey(explicit, env string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(env)
}

func joinText(prompts []Prompt, provider string) (string, error) {
	var b strings.Builder
	for _, p := range prompts {
		switch v := p.(type) {
		case TextPrompt:
			b.WriteString(string(v))
		default:
			return "", fmt.Errorf("unsupported prompt type for %s client", provider)
		}
	}
	return b.String(), nil
}
