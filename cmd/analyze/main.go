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

	"chat-eval/pkg/analysis"
	"chat-eval/pkg/dataset"
	"chat-eval/pkg/llm"
	"chat-eval/pkg/store"
	"chat-eval/pkg/taxonomy"
)

func main() {
	input := flag.String("input", "data/chats.json", "Dataset to analyze")
	output := flag.String("output", "data/evaluated.json", "Where to write the analyzed dataset")
	provider := flag.String("provider", llm.ProviderOllama, "LLM provider: ollama, gemini, googleai, volcengine, openai")
	model := flag.String("model", "qwen3:8b", "Model used as the QA auditor")
	baseURL := flag.String("base-url", "", "Provider endpoint override")
	taxonomyPath := flag.String("taxonomy", "", "Taxonomy YAML file (defaults to the built-in one)")
	jsonMode := flag.Bool("json-mode", false, "Request JSON output with a response schema")
	repair := flag.Bool("repair", false, "Try to repair malformed JSON answers")
	noClamp := flag.Bool("no-clamp", false, "Keep 'satisfied' on dialogues flagged no_resolution")
	dbPath := flag.String("db", "", "SQLite file to record the run in (disabled when empty)")
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
	ds, err := dataset.Load(*input)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
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

	cfg := analysis.DefaultConfig()
	cfg.JSONMode = *jsonMode
	cfg.Repair = *repair
	cfg.Normalizer.ClampSatisfaction = !*noClamp
	analyzer := analysis.New(client, tx, cfg)

	var st *store.Store
	var runID string
	if *dbPath != "" {
		st, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open store: %v", err)
		}
		defer st.Close()
		runID, err = st.BeginAnalysis(ctx, *model, *input)
		if err != nil {
			log.Fatalf("Failed to start run: %v", err)
		}
		log.Printf("Recording run %s in %s", runID, *dbPath)
	}

	log.Printf("Analyzing %d dialogues with %s/%s", len(ds), *provider, *model)
	var onProgress func(analysis.Progress)
	if st != nil {
		onProgress = func(p analysis.Progress) {
			recordVerdict(st, runID, p)
		}
	}
	sum, runErr := analyzer.Run(ctx, ds, onProgress)

	// Whatever was analyzed before an interrupt is still written.
	if err := dataset.Save(*output, ds); err != nil {
		log.Fatalf("Failed to write %s: %v", *output, err)
	}
	if st != nil {
		if err := st.FinishAnalysis(context.Background(), runID, sum.Total, sum.Failed); err != nil {
			log.Printf("Failed to finish run: %v", err)
		}
	}
	if runErr != nil {
		log.Fatalf("Analysis interrupted: %v", runErr)
	}
	log.Printf("Done: %d analyzed, %d failed calls, %d unparsed answers, written to %s", sum.Total, sum.Failed, sum.Unparsed, *output)
}

func recordVerdict(st *store.Store, runID string, p analysis.Progress) {
	rec := store.VerdictRecord{
		RunID:      runID,
		DialogueID: p.Record.ID,
		Verdict:    p.Result.Verdict,
		RawText:    p.Result.RawText,
		Duration:   p.Result.Duration,
	}
	if p.Result.Err != nil {
		rec.Error = p.Result.Err.Error()
	}
	if err := st.RecordAnalysis(context.Background(), rec); err != nil {
		log.Printf("Failed to record dialogue %d: %v", p.Record.ID, err)
	}
}
