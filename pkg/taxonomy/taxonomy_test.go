package taxonomy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	tx := Default()

	want := []CaseType{CaseSuccess, CaseFail, CaseConflict, CaseAgentMistake, CaseHiddenUnsatisfaction}
	if diff := cmp.Diff(want, tx.CaseTypes); diff != "" {
		t.Errorf("CaseTypes mismatch (-want +got):\n%s", diff)
	}
	if got := len(tx.Personalities); got != 3 {
		t.Errorf("len(Personalities) = %d, want 3", got)
	}
	if got := len(tx.AgentMistakes); got != 5 {
		t.Errorf("len(AgentMistakes) = %d, want 5", got)
	}
}

func TestIntentLabel(t *testing.T) {
	tx := Default()
	tests := []struct {
		raw  string
		want Intent
	}{
		{"Refund", IntentRefund},
		{"  tariff_refund ", IntentRefund},
		{"TARIFF", IntentTariff},
		{"payment issue", IntentPaymentProblems},
		{"Technical Issue", IntentTechnicalErrors},
		{"account access", IntentAccountAccess},
		{"login issue", IntentOther},
		{"", IntentOther},
	}
	for _, tt := range tests {
		if got := tx.IntentLabel(tt.raw); got != tt.want {
			t.Errorf("IntentLabel(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSatisfactionLabel(t *testing.T) {
	tx := Default()
	tests := []struct {
		raw  string
		want Satisfaction
	}{
		{"Satisfied", Satisfied},
		{" neutral", Neutral},
		{"DISSATISFIED", Unsatisfied},
		{"happy", Unsatisfied},
		{"", Unsatisfied},
	}
	for _, tt := range tests {
		if got := tx.SatisfactionLabel(tt.raw); got != tt.want {
			t.Errorf("SatisfactionLabel(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPredictedIntent(t *testing.T) {
	tx := Default()
	tests := []struct {
		raw  string
		want Intent
	}{
		{"payment problems", IntentPaymentProblems},
		{"Payment Issue", IntentPaymentProblems},
		{"login issue", IntentAccountAccess},
		{"refund", IntentRefund},
		// Tariff questions are not part of the evaluation label set.
		{"tariff", IntentOther},
		{"something else", IntentOther},
	}
	for _, tt := range tests {
		if got := tx.PredictedIntent(tt.raw); got != tt.want {
			t.Errorf("PredictedIntent(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestGroundTruthIntent(t *testing.T) {
	tx := Default()
	if got := tx.GroundTruthIntent("Payment_Issue"); got != IntentPaymentProblems {
		t.Errorf("GroundTruthIntent = %q, want %q", got, IntentPaymentProblems)
	}
	if got := tx.GroundTruthIntent("shipping"); got != IntentOther {
		t.Errorf("GroundTruthIntent = %q, want %q", got, IntentOther)
	}
}

func TestLoadOverride(t *testing.T) {
	reduced := strings.Replace(string(defaultYAML), "  - account_access\n  - tariff_refund\n", "", 1)
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	if err := os.WriteFile(path, []byte(reduced), 0o644); err != nil {
		t.Fatal(err)
	}

	tx, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]string{"payment_issue", "technical_issue"}, tx.Intents); diff != "" {
		t.Errorf("Intents mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsUnknownFallback(t *testing.T) {
	bad := strings.Replace(string(defaultYAML), "intent_fallback: other", "intent_fallback: misc", 1)
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("Parse() expected error for fallback outside the label set")
	}
}
