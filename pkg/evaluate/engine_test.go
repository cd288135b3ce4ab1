package evaluate

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/taxonomy"
)

func verdict(intent taxonomy.Intent, sat taxonomy.Satisfaction, score int, mistakes ...taxonomy.Mistake) *dataset.Verdict {
	if mistakes == nil {
		mistakes = []taxonomy.Mistake{}
	}
	return &dataset.Verdict{
		RequestIntent:        intent,
		CustomerSatisfaction: sat,
		AgentMistakes:        mistakes,
		QualityScore:         score,
	}
}

func TestExpect(t *testing.T) {
	e := NewEngine(taxonomy.Default())
	tests := []struct {
		meta dataset.Metadata
		want Expectation
	}{
		{
			meta: dataset.Metadata{Intent: "payment_issue", CaseType: taxonomy.CaseSuccess},
			want: Expectation{Intent: taxonomy.IntentPaymentProblems, Satisfaction: taxonomy.Satisfied, ScoreRange: ScoreRange{4, 5}},
		},
		{
			meta: dataset.Metadata{Intent: "tariff_refund", CaseType: " Conflict "},
			want: Expectation{Intent: taxonomy.IntentRefund, Satisfaction: taxonomy.Unsatisfied, NoResolution: true, ScoreRange: ScoreRange{2, 3}},
		},
		{
			meta: dataset.Metadata{Intent: "shipping", CaseType: taxonomy.CaseHiddenUnsatisfaction},
			want: Expectation{Intent: taxonomy.IntentOther, Satisfaction: taxonomy.Unsatisfied, NoResolution: true, ScoreRange: ScoreRange{1, 2}},
		},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, e.Expect(tt.meta)); diff != "" {
			t.Errorf("Expect(%+v) mismatch (-want +got):\n%s", tt.meta, diff)
		}
	}
}

func TestEvaluateRecordFullyCorrect(t *testing.T) {
	e := NewEngine(taxonomy.Default())
	res := e.EvaluateRecord(dataset.Record{
		ID:       7,
		Metadata: dataset.Metadata{Intent: "payment_issue", CaseType: taxonomy.CaseSuccess},
		Analysis: verdict(taxonomy.IntentPaymentProblems, taxonomy.Satisfied, 5),
	})
	if !res.IntentOK || !res.SatisfactionOK || !res.NoResolutionOK || !res.ScoreOK {
		t.Errorf("EvaluateRecord() = %+v, want all fields correct", res)
	}
	if len(res.Mismatches) != 0 {
		t.Errorf("Mismatches = %v, want none", res.Mismatches)
	}
	if res.Expected.ScoreRange != (ScoreRange{4, 5}) {
		t.Errorf("ScoreRange = %v, want 4-5", res.Expected.ScoreRange)
	}
}

func TestEvaluateRecordMismatches(t *testing.T) {
	e := NewEngine(taxonomy.Default())
	tests := []struct {
		name string
		rec  dataset.Record
		want []Mismatch
	}{
		{
			name: "tariff prediction clamps to other",
			rec: dataset.Record{
				ID:       3,
				Metadata: dataset.Metadata{Intent: "tariff_refund", CaseType: taxonomy.CaseFail},
				Analysis: verdict(taxonomy.IntentTariff, taxonomy.Unsatisfied, 2, taxonomy.MistakeNoResolution),
			},
			want: []Mismatch{
				{ID: 3, Field: FieldIntent, Expected: "refund", Actual: "other"},
			},
		},
		{
			name: "synonym prediction",
			rec: dataset.Record{
				ID:       4,
				Metadata: dataset.Metadata{Intent: "account_access", CaseType: taxonomy.CaseSuccess},
				Analysis: verdict("Login Issue", taxonomy.Satisfied, 3, taxonomy.MistakeIgnoredQuestion),
			},
			want: []Mismatch{
				{ID: 4, Field: FieldQualityScore, Expected: "4-5", Actual: "3"},
			},
		},
		{
			name: "missing analysis",
			rec: dataset.Record{
				ID:       5,
				Metadata: dataset.Metadata{Intent: "payment_issue", CaseType: taxonomy.CaseSuccess},
			},
			want: []Mismatch{
				{ID: 5, Field: FieldIntent, Expected: "payment problems", Actual: "other"},
				{ID: 5, Field: FieldSatisfaction, Expected: "satisfied", Actual: "unsatisfied"},
				{ID: 5, Field: FieldQualityScore, Expected: "4-5", Actual: "none"},
			},
		},
		{
			name: "all wrong",
			rec: dataset.Record{
				ID:       6,
				Metadata: dataset.Metadata{Intent: "technical_issue", CaseType: taxonomy.CaseConflict},
				Analysis: verdict(taxonomy.IntentRefund, taxonomy.Satisfied, 5),
			},
			want: []Mismatch{
				{ID: 6, Field: FieldIntent, Expected: "technical errors", Actual: "refund"},
				{ID: 6, Field: FieldSatisfaction, Expected: "unsatisfied", Actual: "satisfied"},
				{ID: 6, Field: FieldNoResolution, Expected: "true", Actual: "false"},
				{ID: 6, Field: FieldQualityScore, Expected: "2-3", Actual: "5"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.EvaluateRecord(tt.rec).Mismatches
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Mismatches mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	e := NewEngine(taxonomy.Default())
	ds := dataset.Dataset{
		{ID: 1, Metadata: dataset.Metadata{Intent: "payment_issue", CaseType: taxonomy.CaseSuccess},
			Analysis: verdict(taxonomy.IntentPaymentProblems, taxonomy.Satisfied, 5)},
		{ID: 2, Metadata: dataset.Metadata{Intent: "technical_issue", CaseType: taxonomy.CaseFail},
			Analysis: verdict(taxonomy.IntentTechnicalErrors, taxonomy.Unsatisfied, 2, taxonomy.MistakeNoResolution)},
		{ID: 3, Metadata: dataset.Metadata{Intent: "account_access", CaseType: taxonomy.CaseConflict},
			Analysis: verdict(taxonomy.IntentRefund, taxonomy.Neutral, 4)},
		{ID: 4, Metadata: dataset.Metadata{Intent: "tariff_refund", CaseType: taxonomy.CaseAgentMistake},
			Analysis: verdict(taxonomy.IntentRefund, taxonomy.Unsatisfied, 1, taxonomy.MistakeRudeTone, taxonomy.MistakeNoResolution)},
	}

	r, err := e.Evaluate(ds)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if diff := cmp.Diff(Counts{Intent: 3, Satisfaction: 3, NoResolution: 3, ScoreInRange: 3}, r.Correct); diff != "" {
		t.Errorf("Correct mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Accuracy{Intent: 0.75, Satisfaction: 0.75, NoResolution: 0.75, ScoreInRange: 0.75}, r.Accuracy); diff != "" {
		t.Errorf("Accuracy mismatch (-want +got):\n%s", diff)
	}
	if got := r.IntentMatrix.Count("account access", "refund"); got != 1 {
		t.Errorf("intent matrix [account access][refund] = %d, want 1", got)
	}
	if got := r.SatisfactionMatrix.Count("unsatisfied", "neutral"); got != 1 {
		t.Errorf("satisfaction matrix [unsatisfied][neutral] = %d, want 1", got)
	}
	if len(r.Mismatches) != 4 {
		t.Fatalf("Mismatches = %v, want 4 entries", r.Mismatches)
	}
	for _, m := range r.Mismatches {
		if m.ID != 3 {
			t.Errorf("unexpected mismatch %v", m)
		}
	}
	if got := r.TopMismatches(2); len(got) != 2 || got[0].Field != FieldIntent {
		t.Errorf("TopMismatches(2) = %v", got)
	}
	if got := r.TopMismatches(-1); len(got) != 4 {
		t.Errorf("TopMismatches(-1) returned %d entries, want 4", len(got))
	}
}

func TestEvaluateEmpty(t *testing.T) {
	r, err := NewEngine(taxonomy.Default()).Evaluate(nil)
	if !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("Evaluate(nil) error = %v, want ErrEmptyDataset", err)
	}
	if r != nil {
		t.Errorf("Evaluate(nil) report = %+v, want nil", r)
	}
}

func TestReportPrint(t *testing.T) {
	color.NoColor = true
	e := NewEngine(taxonomy.Default())
	r, err := e.Evaluate(dataset.Dataset{
		{ID: 1, Metadata: dataset.Metadata{Intent: "payment_issue", CaseType: taxonomy.CaseSuccess},
			Analysis: verdict(taxonomy.IntentPaymentProblems, taxonomy.Satisfied, 5)},
		{ID: 2, Metadata: dataset.Metadata{Intent: "technical_issue", CaseType: taxonomy.CaseFail},
			Analysis: verdict(taxonomy.IntentRefund, taxonomy.Satisfied, 5)},
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	var buf bytes.Buffer
	if err := r.Print(&buf, 1); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Dialogs analyzed: 2",
		"Intent accuracy:",
		"50.00%",
		"(Confusion Matrix)",
		"--- Top 1 mismatches ---",
		"ID 2 | intent | expected=technical errors | got=refund",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "| satisfaction |") {
		t.Errorf("report printed more than the top mismatch:\n%s", out)
	}
}
