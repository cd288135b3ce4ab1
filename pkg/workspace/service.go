// Package workspace serves a review API over one dataset file: browse
// dialogues, re-run analysis on a single dialogue, and inspect evaluation
// results live.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"chat-eval/pkg/analysis"
	"chat-eval/pkg/dataset"
	"chat-eval/pkg/evaluate"
	"chat-eval/pkg/store"
	"chat-eval/pkg/taxonomy"
)

// ErrDialogueNotFound is returned for ids that are not in the dataset.
var ErrDialogueNotFound = errors.New("dialogue not found")

type ServiceConfig struct {
	DatasetPath string
	Provider    string
	Model       string
}

// DefaultServiceConfig returns the default configuration for the service.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DatasetPath: "data/evaluated.json",
		Provider:    "ollama",
		Model:       "qwen3:8b",
	}
}

type Service struct {
	Config ServiceConfig
	Events *Hub

	tx       *taxonomy.Taxonomy
	analyzer *analysis.Analyzer
	engine   *evaluate.Engine
	store    *store.Store

	// mu serializes read-modify-write cycles on the dataset file.
	mu sync.Mutex
}

// NewService wires the service. analyzer and st may be nil: analysis is then
// rejected and history is not recorded.
func NewService(config ServiceConfig, tx *taxonomy.Taxonomy, analyzer *analysis.Analyzer, st *store.Store) *Service {
	return &Service{
		Config:   config,
		Events:   NewHub(),
		tx:       tx,
		analyzer: analyzer,
		engine:   evaluate.NewEngine(tx),
		store:    st,
	}
}

func (s *Service) load() (dataset.Dataset, error) {
	ds, err := dataset.Load(s.Config.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return ds, nil
}

// ListDialogues returns the dialogues whose metadata matches filter.
func (s *Service) ListDialogues(ctx context.Context, filter dataset.Metadata) ([]DialogueSummary, error) {
	ds, err := s.load()
	if err != nil {
		return nil, err
	}
	matched := ds.Filter(filter)
	out := make([]DialogueSummary, len(matched))
	for i, r := range matched {
		out[i] = DialogueSummary{
			ID:       r.ID,
			Metadata: r.Metadata,
			Messages: len(r.Chat),
			Analysis: r.Analysis,
		}
	}
	return out, nil
}

func (s *Service) dialogue(r dataset.Record) *Dialogue {
	d := &Dialogue{Record: r}
	if r.Analysis != nil {
		res := s.engine.EvaluateRecord(r)
		d.Evaluation = &res
	}
	return d
}

// GetDialogue returns full details for a dialogue.
func (s *Service) GetDialogue(ctx context.Context, id int) (*Dialogue, error) {
	ds, err := s.load()
	if err != nil {
		return nil, err
	}
	r, err := ds.Find(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrDialogueNotFound, id)
	}
	return s.dialogue(*r), nil
}

// AnalyzeDialogue re-runs the analyzer on one dialogue, stores the verdict
// in the dataset file and, when history is enabled, in the store.
func (s *Service) AnalyzeDialogue(ctx context.Context, id int) (*AnalyzeResponse, error) {
	if s.analyzer == nil {
		return nil, fmt.Errorf("analyzer not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.load()
	if err != nil {
		return nil, err
	}
	r, err := ds.Find(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrDialogueNotFound, id)
	}

	s.Events.Publish(Event{Type: EventAnalysisStarted, ID: id})
	res := s.analyzer.AnalyzeDialogue(ctx, r.Chat)
	v := res.Verdict
	r.Analysis = &v

	resp := &AnalyzeResponse{RawText: res.RawText}
	if res.Err != nil {
		resp.Error = res.Err.Error()
		slog.Warn("Analysis failed, storing fallback verdict", "id", id, "error", res.Err)
	}
	if err := dataset.Save(s.Config.DatasetPath, ds); err != nil {
		return nil, fmt.Errorf("save dataset: %w", err)
	}

	if s.store != nil {
		runID, err := s.recordAnalysis(ctx, id, res)
		if err != nil {
			slog.Warn("Failed to record analysis history", "id", id, "error", err)
		}
		resp.RunID = runID
	}

	s.Events.Publish(Event{Type: EventAnalysisFinished, ID: id, Verdict: &v, Error: resp.Error})
	resp.Dialogue = s.dialogue(*r)
	return resp, nil
}

func (s *Service) recordAnalysis(ctx context.Context, id int, res analysis.Result) (string, error) {
	runID, err := s.store.BeginAnalysis(ctx, s.Config.Model, s.Config.DatasetPath)
	if err != nil {
		return "", err
	}
	rec := store.VerdictRecord{
		RunID:      runID,
		DialogueID: id,
		Verdict:    res.Verdict,
		RawText:    res.RawText,
		Duration:   res.Duration,
	}
	failed := 0
	if res.Err != nil {
		rec.Error = res.Err.Error()
		failed = 1
	}
	if err := s.store.RecordAnalysis(ctx, rec); err != nil {
		return runID, err
	}
	return runID, s.store.FinishAnalysis(ctx, runID, 1, failed)
}

// Evaluate scores the whole dataset against its ground truth.
func (s *Service) Evaluate(ctx context.Context) (*evaluate.Report, error) {
	ds, err := s.load()
	if err != nil {
		return nil, err
	}
	return s.engine.Evaluate(ds)
}

// Stats returns the label distribution of the dataset.
func (s *Service) Stats(ctx context.Context) (dataset.Distribution, error) {
	ds, err := s.load()
	if err != nil {
		return dataset.Distribution{}, err
	}
	return ds.Distribution(s.tx), nil
}

// EvaluationRuns lists recorded evaluation history, newest first.
func (s *Service) EvaluationRuns(ctx context.Context, limit int) ([]store.EvaluationRun, error) {
	if s.store == nil {
		return []store.EvaluationRun{}, nil
	}
	return s.store.ListEvaluationRuns(ctx, limit)
}

func (s *Service) config() Config {
	c := Config{
		DatasetPath: s.Config.DatasetPath,
		Provider:    s.Config.Provider,
		Model:       s.Config.Model,
		Intents:     s.tx.Intents,
		History:     s.store != nil,
	}
	for _, ct := range s.tx.CaseTypes {
		c.CaseTypes = append(c.CaseTypes, string(ct))
	}
	return c
}
