package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestOllamaGenerate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Model: "qwen3:8b", Response: `{"ok": true}`, Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient("qwen3:8b", srv.URL+"/", time.Second)
	text, err := c.Generate(context.Background(), Options{Temperature: Float(0), Seed: Int(42), JSON: true},
		TextPrompt("part one "), TextPrompt("part two"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != `{"ok": true}` {
		t.Errorf("Generate() = %q", text)
	}

	want := ollamaGenerateRequest{
		Model:   "qwen3:8b",
		Prompt:  "part one part two",
		Format:  "json",
		Options: map[string]any{"temperature": float64(0), "seed": float64(42)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestOllamaRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOllamaClient("m", srv.URL, time.Second).Generate(context.Background(), Options{}, TextPrompt("hi"))
	wait, ok := IsRateLimited(err)
	if !ok {
		t.Fatalf("IsRateLimited(%v) = false", err)
	}
	if wait != 7*time.Second {
		t.Errorf("retry hint = %s, want 7s", wait)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("errors.Is(err, ErrRateLimited) = false")
	}
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Error: "model not found"})
	}))
	defer srv.Close()

	_, err := NewOllamaClient("missing", srv.URL, time.Second).Generate(context.Background(), Options{}, TextPrompt("hi"))
	if err == nil {
		t.Fatal("Generate() expected error")
	}
	if _, ok := IsRateLimited(err); ok {
		t.Errorf("model errors must not be treated as rate limits: %v", err)
	}
}

func TestNewOllamaClientNormalizesBaseURL(t *testing.T) {
	tests := map[string]string{
		"localhost:11434":            "http://localhost:11434",
		"http://ollama:11434/":       "http://ollama:11434",
		"http://localhost:11434/api": "http://localhost:11434",
	}
	for in, want := range tests {
		if got := NewOllamaClient("m", in, 0).baseURL; got != want {
			t.Errorf("NewOllamaClient(%q).baseURL = %q, want %q", in, got, want)
		}
	}
}

func TestResolveOllamaEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		docker bool
		want   string
	}{
		{"env override", "http://gpu-box:11434", true, "http://gpu-box:11434"},
		{"container", "", true, "http://ollama:11434"},
		{"local", "", false, "http://localhost:11434"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(string) string { return tt.env }
			exists := func(string) bool { return tt.docker }
			if got := resolveOllamaEndpoint(getenv, exists); got != tt.want {
				t.Errorf("resolveOllamaEndpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryAfterHint(t *testing.T) {
	tests := map[string]time.Duration{
		"Error 429, Please retry in 23.5s.":  23500 * time.Millisecond,
		"quota exceeded; retry in 4 seconds": 4 * time.Second,
		"internal error":                     0,
	}
	for msg, want := range tests {
		if got := RetryAfterHint(msg); got != want {
			t.Errorf("RetryAfterHint(%q) = %s, want %s", msg, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	err := classify(errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED, retry in 12s"))
	wait, ok := IsRateLimited(err)
	if !ok || wait != 12*time.Second {
		t.Errorf("classify() = (%s, %v), want (12s, true)", wait, ok)
	}
	if _, ok := IsRateLimited(classify(errors.New("bad request"))); ok {
		t.Error("classify() marked a non-429 error as rate limited")
	}
}
