// Package generate produces synthetic support dialogues by asking a model to
// role-play scripted customer/agent conversations.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"slices"
	"time"

	"github.com/bytedance/sonic"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/llm"
	"chat-eval/pkg/taxonomy"
)

var (
	// ErrRetriesExhausted is returned when a job stays rate limited for
	// MaxRetries attempts.
	ErrRetriesExhausted = errors.New("rate limit retries exhausted")
	// ErrEmptyChat is returned when the model answer holds no messages.
	ErrEmptyChat = errors.New("no messages in model output")
)

// retryPadding is added to a provider's retry-after hint.
const retryPadding = 2 * time.Second

// Filter narrows generation to specific labels. Empty fields sweep the
// whole taxonomy.
type Filter struct {
	Intent      string
	CaseType    taxonomy.CaseType
	Mistake     taxonomy.Mistake
	Personality string
}

type Config struct {
	// SamplesPerCase is the number of dialogues per case type.
	SamplesPerCase int
	// Checkpoint writes the dataset every N generated dialogues. 0 only
	// writes at the end.
	Checkpoint int
	// MaxRetries caps attempts per job while rate limited.
	MaxRetries int
	// Pause is slept after every model call.
	Pause time.Duration
	// DefaultBackoff is the rate-limit wait when the provider gives no hint.
	DefaultBackoff time.Duration
	// Seed makes the plan reproducible. 0 picks a random seed.
	Seed   uint64
	Filter Filter
}

func DefaultConfig() Config {
	return Config{
		SamplesPerCase: 3,
		MaxRetries:     5,
		DefaultBackoff: 30 * time.Second,
	}
}

// Job is one dialogue to generate.
type Job struct {
	Intent      string
	CaseType    taxonomy.CaseType
	Personality taxonomy.Personality
	// Mistake is MistakeNone unless CaseType is agent_mistake.
	Mistake taxonomy.Mistake
}

func (j Job) Metadata() dataset.Metadata {
	return dataset.Metadata{
		Intent:          j.Intent,
		CaseType:        j.CaseType,
		PersonalityType: j.Personality.Type,
		Mistake:         j.Mistake,
	}
}

type Generator struct {
	client llm.LLMClient
	tx     *taxonomy.Taxonomy
	cfg    Config
	rng    *rand.Rand

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(client llm.LLMClient, tx *taxonomy.Taxonomy, cfg Config) (*Generator, error) {
	if cfg.SamplesPerCase < 0 || cfg.Checkpoint < 0 || cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("samples, checkpoint and retries must not be negative")
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	f, err := validateFilter(tx, cfg.Filter)
	if err != nil {
		return nil, err
	}
	cfg.Filter = f

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		client: client,
		tx:     tx,
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(seed, seed>>1)),
		sleep:  sleepContext,
	}, nil
}

func validateFilter(tx *taxonomy.Taxonomy, f Filter) (Filter, error) {
	if f.Intent != "" && !slices.Contains(tx.Intents, f.Intent) {
		return f, fmt.Errorf("unknown intent %q", f.Intent)
	}
	if f.CaseType != "" && !slices.Contains(tx.CaseTypes, f.CaseType) {
		return f, fmt.Errorf("unknown case type %q", f.CaseType)
	}
	if f.Personality != "" {
		if _, ok := tx.Personality(f.Personality); !ok {
			return f, fmt.Errorf("unknown personality %q", f.Personality)
		}
	}
	if f.Mistake != "" {
		if !slices.Contains(tx.AgentMistakes, f.Mistake) {
			return f, fmt.Errorf("unknown agent mistake %q", f.Mistake)
		}
		// A mistake only exists in agent_mistake dialogues.
		switch f.CaseType {
		case "":
			f.CaseType = taxonomy.CaseAgentMistake
		case taxonomy.CaseAgentMistake:
		default:
			return f, fmt.Errorf("mistake filter requires case type %q, got %q", taxonomy.CaseAgentMistake, f.CaseType)
		}
	}
	return f, nil
}

// Plan draws the work list: SamplesPerCase jobs per case type, with intent,
// personality and mistake chosen at random unless fixed by the filter.
func (g *Generator) Plan() []Job {
	f := g.cfg.Filter
	var jobs []Job
	for _, ct := range g.tx.CaseTypes {
		if f.CaseType != "" && ct != f.CaseType {
			continue
		}
		for range g.cfg.SamplesPerCase {
			job := Job{
				Intent:   f.Intent,
				CaseType: ct,
				Mistake:  taxonomy.MistakeNone,
			}
			if job.Intent == "" {
				job.Intent = g.tx.Intents[g.rng.IntN(len(g.tx.Intents))]
			}
			if f.Personality != "" {
				job.Personality, _ = g.tx.Personality(f.Personality)
			} else {
				job.Personality = g.tx.Personalities[g.rng.IntN(len(g.tx.Personalities))]
			}
			if ct == taxonomy.CaseAgentMistake {
				job.Mistake = f.Mistake
				if job.Mistake == "" {
					job.Mistake = g.tx.AgentMistakes[g.rng.IntN(len(g.tx.AgentMistakes))]
				}
			}
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// GenerateChat produces the messages for one job. A rate-limited call is
// retried for the same job after the provider's hint plus padding, or
// DefaultBackoff, up to MaxRetries attempts.
func (g *Generator) GenerateChat(ctx context.Context, job Job) ([]dataset.Message, error) {
	prompt, err := buildChatPrompt(job)
	if err != nil {
		return nil, err
	}
	slog.Debug("Chat prompt", "prompt", prompt)

	opts := llm.Options{Temperature: llm.Float(0.7), JSON: true}
	for attempt := 1; ; attempt++ {
		text, err := g.client.Generate(ctx, opts, llm.TextPrompt(prompt))
		if err == nil {
			slog.Debug("Chat response", "response", text)
			return parseMessages(text)
		}

		hint, limited := llm.IsRateLimited(err)
		if !limited {
			return nil, err
		}
		if attempt >= g.cfg.MaxRetries {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}
		wait := g.cfg.DefaultBackoff
		if hint > 0 {
			wait = hint + retryPadding
		}
		slog.Warn("Rate limited, waiting before retry", "wait", wait, "attempt", attempt, "case_type", job.CaseType)
		if err := g.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

var jsonSpanRe = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)

// parseMessages accepts a bare array of messages or an object with a
// "messages" array. Entries that are not objects are dropped.
func parseMessages(text string) ([]dataset.Message, error) {
	span := jsonSpanRe.FindString(text)
	if span == "" {
		span = text
	}
	var v any
	if err := sonic.ConfigStd.UnmarshalFromString(span, &v); err != nil {
		return nil, fmt.Errorf("decode chat: %w", err)
	}

	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		items, _ = t["messages"].([]any)
	}

	var chat []dataset.Message
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		text, _ := m["text"].(string)
		chat = append(chat, dataset.Message{Role: role, Text: text})
	}
	if len(chat) == 0 {
		return nil, ErrEmptyChat
	}
	return chat, nil
}

// Summary counts the outcome of a Run.
type Summary struct {
	Planned   int
	Generated int
	Skipped   int
	// Total is the size of the written dataset, resumed records included.
	Total int
}

// Run resumes the dataset at path (an unreadable file starts empty),
// generates every planned job in order and writes the file at every
// checkpoint and at the end. Failed jobs are logged and skipped.
func (g *Generator) Run(ctx context.Context, path string) (Summary, error) {
	ds := dataset.LoadOrEmpty(path)
	next := ds.NextID()

	jobs := g.Plan()
	sum := Summary{Planned: len(jobs)}
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		chat, err := g.GenerateChat(ctx, job)
		switch {
		case err != nil && ctx.Err() != nil:
			return sum, ctx.Err()
		case err != nil:
			sum.Skipped++
			slog.Warn("Failed to generate chat, skipping", "id", next, "case_type", job.CaseType, "intent", job.Intent, "error", err)
		default:
			ds = append(ds, dataset.Record{ID: next, Metadata: job.Metadata(), Chat: chat})
			slog.Info("Generated chat",
				"id", next,
				"progress", fmt.Sprintf("%d/%d", i+1, len(jobs)),
				"case_type", job.CaseType,
				"intent", job.Intent,
				"messages", len(chat))
			next++
			sum.Generated++
			if g.cfg.Checkpoint > 0 && sum.Generated%g.cfg.Checkpoint == 0 {
				slog.Info("Writing checkpoint", "path", path, "records", len(ds))
				if err := dataset.Save(path, ds); err != nil {
					slog.Warn("Failed to write checkpoint", "path", path, "error", err)
				}
			}
		}

		if g.cfg.Pause > 0 && i < len(jobs)-1 {
			if err := g.sleep(ctx, g.cfg.Pause); err != nil {
				return sum, err
			}
		}
	}

	sum.Total = len(ds)
	if err := dataset.Save(path, ds); err != nil {
		return sum, fmt.Errorf("write dataset: %w", err)
	}
	slog.Info("Generation finished", "path", path, "generated", sum.Generated, "planned", sum.Planned, "total", sum.Total)
	return sum, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
