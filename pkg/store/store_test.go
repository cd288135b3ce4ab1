package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/evaluate"
	"chat-eval/pkg/taxonomy"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs", "chat-eval.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAnalysisRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	runID, err := s.BeginAnalysis(ctx, "qwen3:8b", "data/chats.json")
	if err != nil {
		t.Fatalf("BeginAnalysis() error = %v", err)
	}

	want := []VerdictRecord{
		{
			RunID:      runID,
			DialogueID: 1,
			Verdict: dataset.Verdict{
				RequestIntent:        taxonomy.IntentRefund,
				CustomerSatisfaction: taxonomy.Unsatisfied,
				AgentMistakes:        []taxonomy.Mistake{taxonomy.MistakeRudeTone, taxonomy.MistakeNoResolution},
				QualityScore:         1,
				Reasoning:            "Agent was rude.",
			},
			RawText:  `{"request_intent": "refund"}`,
			Duration: 1500 * time.Millisecond,
		},
		{
			RunID:      runID,
			DialogueID: 2,
			Verdict: dataset.Verdict{
				RequestIntent:        taxonomy.IntentOther,
				CustomerSatisfaction: taxonomy.Unsatisfied,
				AgentMistakes:        []taxonomy.Mistake{},
				QualityScore:         1,
			},
			Error: "connection refused",
		},
	}
	// Insert out of order; reads come back sorted by dialogue.
	for _, r := range []VerdictRecord{want[1], want[0]} {
		if err := s.RecordAnalysis(ctx, r); err != nil {
			t.Fatalf("RecordAnalysis() error = %v", err)
		}
	}
	if err := s.FinishAnalysis(ctx, runID, 2, 1); err != nil {
		t.Fatalf("FinishAnalysis() error = %v", err)
	}

	got, err := s.Verdicts(ctx, runID)
	if err != nil {
		t.Fatalf("Verdicts() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Verdicts() mismatch (-want +got):\n%s", diff)
	}

	if err := s.FinishAnalysis(ctx, "missing", 0, 0); err == nil {
		t.Error("FinishAnalysis() of an unknown run expected error")
	}
}

func TestEvaluationRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first := &evaluate.Report{
		Total:    2,
		Accuracy: evaluate.Accuracy{Intent: 0.5, Satisfaction: 1, NoResolution: 1, ScoreInRange: 0.5},
		Mismatches: []evaluate.Mismatch{
			{ID: 2, Field: evaluate.FieldIntent, Expected: "refund", Actual: "other"},
			{ID: 2, Field: evaluate.FieldQualityScore, Expected: "4-5", Actual: "2"},
		},
	}
	second := &evaluate.Report{Total: 2, Accuracy: evaluate.Accuracy{Intent: 1, Satisfaction: 1, NoResolution: 1, ScoreInRange: 1}}

	firstID, err := s.RecordEvaluation(ctx, "a.json", first)
	if err != nil {
		t.Fatalf("RecordEvaluation() error = %v", err)
	}
	secondID, err := s.RecordEvaluation(ctx, "b.json", second)
	if err != nil {
		t.Fatalf("RecordEvaluation() error = %v", err)
	}
	if firstID == secondID {
		t.Fatal("run ids must be unique")
	}

	runs, err := s.ListEvaluationRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListEvaluationRuns() error = %v", err)
	}
	want := []EvaluationRun{
		{ID: secondID, DatasetPath: "b.json", CreatedAt: time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC), Total: 2, Accuracy: second.Accuracy},
		{ID: firstID, DatasetPath: "a.json", CreatedAt: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC), Total: 2, Accuracy: first.Accuracy, Mismatches: 2},
	}
	if diff := cmp.Diff(want, runs); diff != "" {
		t.Errorf("ListEvaluationRuns() mismatch (-want +got):\n%s", diff)
	}

	limited, err := s.ListEvaluationRuns(ctx, 1)
	if err != nil || len(limited) != 1 || limited[0].ID != secondID {
		t.Errorf("ListEvaluationRuns(1) = %v, %v; want the newest run", limited, err)
	}

	mismatches, err := s.Mismatches(ctx, firstID)
	if err != nil {
		t.Fatalf("Mismatches() error = %v", err)
	}
	if diff := cmp.Diff(first.Mismatches, mismatches); diff != "" {
		t.Errorf("Mismatches() mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("Open(blank) expected error")
	}
}
