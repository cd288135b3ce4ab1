package evaluate

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Counts holds the number of correct records per field.
type Counts struct {
	Intent       int `json:"intent"`
	Satisfaction int `json:"satisfaction"`
	NoResolution int `json:"no_resolution"`
	ScoreInRange int `json:"score_in_range"`
}

func (c *Counts) add(r RecordResult) {
	c.Intent += b2i(r.IntentOK)
	c.Satisfaction += b2i(r.SatisfactionOK)
	c.NoResolution += b2i(r.NoResolutionOK)
	c.ScoreInRange += b2i(r.ScoreOK)
}

func (c Counts) ratios(n int) Accuracy {
	f := func(v int) float64 { return float64(v) / float64(n) }
	return Accuracy{
		Intent:       f(c.Intent),
		Satisfaction: f(c.Satisfaction),
		NoResolution: f(c.NoResolution),
		ScoreInRange: f(c.ScoreInRange),
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Accuracy is the fraction of correct records per field.
type Accuracy struct {
	Intent       float64 `json:"intent"`
	Satisfaction float64 `json:"satisfaction"`
	NoResolution float64 `json:"no_resolution"`
	ScoreInRange float64 `json:"score_in_range"`
}

// ConfusionMatrix counts ground truth (rows) against predictions (columns).
type ConfusionMatrix struct {
	Labels []string                  `json:"labels"`
	Counts map[string]map[string]int `json:"counts"`
}

func NewConfusionMatrix(labels []string) *ConfusionMatrix {
	m := &ConfusionMatrix{
		Labels: labels,
		Counts: make(map[string]map[string]int, len(labels)),
	}
	for _, gt := range labels {
		m.Counts[gt] = make(map[string]int, len(labels))
	}
	return m
}

// Add records one (ground truth, prediction) pair. Pairs outside Labels are
// still counted but never printed.
func (m *ConfusionMatrix) Add(gt, pred string) {
	row, ok := m.Counts[gt]
	if !ok {
		row = make(map[string]int)
		m.Counts[gt] = row
	}
	row[pred]++
}

func (m *ConfusionMatrix) Count(gt, pred string) int {
	return m.Counts[gt][pred]
}

// Report is the aggregate result of an evaluation pass.
type Report struct {
	Total              int              `json:"total"`
	Correct            Counts           `json:"correct"`
	Accuracy           Accuracy         `json:"accuracy"`
	IntentMatrix       *ConfusionMatrix `json:"intent_matrix"`
	SatisfactionMatrix *ConfusionMatrix `json:"satisfaction_matrix"`
	// Mismatches are ordered by record, then by field.
	Mismatches []Mismatch `json:"mismatches"`
}

// TopMismatches returns the first n mismatches. A negative n returns all.
func (r *Report) TopMismatches(n int) []Mismatch {
	if n < 0 || n >= len(r.Mismatches) {
		return r.Mismatches
	}
	return r.Mismatches[:n]
}

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func percent(v float64) string {
	s := fmt.Sprintf("%.2f%%", v*100)
	switch {
	case v >= 0.8:
		return green(s)
	case v >= 0.5:
		return yellow(s)
	default:
		return red(s)
	}
}

// Print writes the human-readable report with at most topN mismatches.
func (r *Report) Print(w io.Writer, topN int) error {
	var b strings.Builder

	fmt.Fprintln(&b, "\n==============================")
	fmt.Fprintln(&b, bold("LLM PERFORMANCE EVALUATION"))
	fmt.Fprintln(&b, "==============================")
	fmt.Fprintf(&b, "Dialogs analyzed: %d\n", r.Total)

	fmt.Fprintln(&b, "\n--- Accuracy ---")
	fmt.Fprintf(&b, "Intent accuracy:        %s\n", percent(r.Accuracy.Intent))
	fmt.Fprintf(&b, "Satisfaction accuracy:  %s\n", percent(r.Accuracy.Satisfaction))
	fmt.Fprintf(&b, "No-resolution accuracy: %s\n", percent(r.Accuracy.NoResolution))
	fmt.Fprintf(&b, "Score-in-range:         %s\n", percent(r.Accuracy.ScoreInRange))

	writeMatrix(&b, r.IntentMatrix, "Intent")
	writeMatrix(&b, r.SatisfactionMatrix, "Satisfaction")

	top := r.TopMismatches(topN)
	fmt.Fprintf(&b, "\n--- Top %d mismatches ---\n", len(top))
	for _, m := range top {
		fmt.Fprintln(&b, red(m.String()))
	}
	fmt.Fprintln(&b, "\nDone.")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeMatrix(b *strings.Builder, m *ConfusionMatrix, title string) {
	fmt.Fprintf(b, "\n=== %s (Confusion Matrix) ===\n", bold(title))

	header := append([]string{`GT\PRED`}, m.Labels...)
	width := 0
	for _, h := range header {
		width = max(width, len(h))
	}
	width += 2

	pad := func(s string) string {
		return s + strings.Repeat(" ", width-len(s))
	}
	for _, h := range header {
		b.WriteString(pad(h))
	}
	b.WriteString("\n")
	for _, gt := range m.Labels {
		b.WriteString(pad(gt))
		for _, pred := range m.Labels {
			b.WriteString(pad(fmt.Sprint(m.Count(gt, pred))))
		}
		b.WriteString("\n")
	}
}
