package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/llm"
	"chat-eval/pkg/taxonomy"
)

// Config tunes an Analyzer.
type Config struct {
	// JSONMode requests JSON output and, where supported, a response schema.
	JSONMode bool
	// Repair enables jsonrepair on spans that fail to parse.
	Repair     bool
	Normalizer NormalizerOptions
}

func DefaultConfig() Config {
	return Config{Normalizer: DefaultNormalizerOptions()}
}

// Analyzer judges dialogues with a model and normalizes the result.
type Analyzer struct {
	client     llm.LLMClient
	tx         *taxonomy.Taxonomy
	normalizer *Normalizer
	extractor  Extractor
	callOpts   llm.Options
}

func New(client llm.LLMClient, tx *taxonomy.Taxonomy, cfg Config) *Analyzer {
	opts := llm.Options{
		Temperature: llm.Float(0),
		Seed:        llm.Int(42),
	}
	if cfg.JSONMode {
		opts.JSON = true
		opts.Schema = verdictSchema{}
	}
	return &Analyzer{
		client:     client,
		tx:         tx,
		normalizer: NewNormalizer(tx, cfg.Normalizer),
		extractor:  Extractor{Repair: cfg.Repair},
		callOpts:   opts,
	}
}

// Result is the outcome of analyzing one dialogue. Verdict is always valid,
// even when Err is set.
type Result struct {
	Verdict dataset.Verdict
	// RawText is the unmodified model output.
	RawText string
	// Parsed reports whether a non-empty JSON object was recovered.
	Parsed   bool
	Err      error
	Duration time.Duration
}

// AnalyzeDialogue sends one transcript to the model and runs the
// normalization pipeline on whatever comes back. A failed call is treated
// as an empty model answer.
func (a *Analyzer) AnalyzeDialogue(ctx context.Context, chat []dataset.Message) Result {
	start := time.Now()
	var res Result

	prompt, err := buildAnalysisPrompt(a.tx, chat)
	if err == nil {
		slog.Debug("Analysis prompt", "prompt", prompt)
		res.RawText, err = a.client.Generate(ctx, a.callOpts, llm.TextPrompt(prompt))
	}
	if err != nil {
		res.Err = fmt.Errorf("analyze dialogue: %w", err)
	}

	raw := a.extractor.Extract(res.RawText)
	res.Parsed = len(raw) > 0
	res.Verdict = a.normalizer.Normalize(raw, chat)
	res.Duration = time.Since(start)
	return res
}

// Progress is reported after each record of a Run.
type Progress struct {
	Index  int
	Total  int
	Record dataset.Record
	Result Result
}

// Summary counts the outcomes of a Run.
type Summary struct {
	Total    int
	Failed   int
	Unparsed int
}

// Run analyzes every record in order and stores the verdict in its Analysis
// field. Per-record failures are logged and counted, never fatal. Only
// context cancellation stops the run early.
func (a *Analyzer) Run(ctx context.Context, ds dataset.Dataset, onProgress func(Progress)) (Summary, error) {
	sum := Summary{Total: len(ds)}
	for i := range ds {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res := a.AnalyzeDialogue(ctx, ds[i].Chat)
		if res.Err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			slog.Warn("Analysis failed, storing fallback verdict", "id", ds[i].ID, "error", res.Err)
		} else if !res.Parsed {
			sum.Unparsed++
			slog.Warn("No JSON object in model output", "id", ds[i].ID)
		}

		v := res.Verdict
		ds[i].Analysis = &v
		slog.Info("Analyzed dialogue",
			"id", ds[i].ID,
			"progress", fmt.Sprintf("%d/%d", i+1, len(ds)),
			"intent", v.RequestIntent,
			"satisfaction", v.CustomerSatisfaction,
			"score", v.QualityScore,
			"duration", res.Duration)

		if onProgress != nil {
			onProgress(Progress{Index: i, Total: len(ds), Record: ds[i], Result: res})
		}
	}
	return sum, nil
}
