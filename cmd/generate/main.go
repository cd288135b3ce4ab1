package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"chat-eval/pkg/generate"
	"chat-eval/pkg/llm"
	"chat-eval/pkg/taxonomy"
)

func main() {
	defaults := generate.DefaultConfig()

	output := flag.String("output", "data/chats.json", "Dataset file to write (resumed when it exists)")
	provider := flag.String("provider", llm.ProviderOllama, "LLM provider: ollama, gemini, googleai, volcengine, openai")
	model := flag.String("model", "qwen3:8b", "Model used to role-play dialogues")
	baseURL := flag.String("base-url", "", "Provider endpoint override")
	taxonomyPath := flag.String("taxonomy", "", "Taxonomy YAML file (defaults to the built-in one)")
	samples := flag.Int("samples", defaults.SamplesPerCase, "Dialogues per case type")
	checkpoint := flag.Int("checkpoint", 10, "Write the dataset every N dialogues (0 writes only at the end)")
	maxRetries := flag.Int("max-retries", defaults.MaxRetries, "Attempts per dialogue while rate limited")
	pause := flag.Duration("pause", 0, "Pause between model calls, e.g. 5s for hosted models")
	backoff := flag.Duration("backoff", defaults.DefaultBackoff, "Rate-limit wait when the provider gives no hint")
	seed := flag.Uint64("seed", 0, "Plan seed (0 picks a random one)")
	intent := flag.String("intent", "", "Only generate this intent")
	caseType := flag.String("case-type", "", "Only generate this case type")
	mistake := flag.String("mistake", "", "Only generate this agent mistake (implies agent_mistake)")
	personality := flag.String("personality", "", "Only use this personality type")
	verbose := flag.Bool("verbose", false, "Log prompts and raw model output")
	flag.Parse()

	_ = godotenv.Load()
	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	tx, err := taxonomy.Load(*taxonomyPath)
	if err != nil {
		log.Fatalf("Failed to load taxonomy: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := llm.NewClient(ctx, llm.Config{
		Provider: *provider,
		Model:    *model,
		BaseURL:  *baseURL,
		Timeout:  5 * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	cfg := generate.Config{
		SamplesPerCase: *samples,
		Checkpoint:     *checkpoint,
		MaxRetries:     *maxRetries,
		Pause:          *pause,
		DefaultBackoff: *backoff,
		Seed:           *seed,
		Filter: generate.Filter{
			Intent:      *intent,
			CaseType:    taxonomy.CaseType(*caseType),
			Mistake:     taxonomy.Mistake(*mistake),
			Personality: *personality,
		},
	}
	g, err := generate.New(client, tx, cfg)
	if err != nil {
		log.Fatalf("Invalid generation config: %v", err)
	}

	log.Printf("Generating with %s/%s into %s", *provider, *model, *output)
	sum, err := g.Run(ctx, *output)
	if err != nil {
		log.Fatalf("Generation stopped after %d dialogues: %v", sum.Generated, err)
	}
	log.Printf("Done: %d generated, %d skipped, %d dialogues in %s", sum.Generated, sum.Skipped, sum.Total, *output)
}
