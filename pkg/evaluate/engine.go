// Package evaluate scores normalized verdicts against the ground truth that
// was recorded when each dialogue was generated.
package evaluate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/taxonomy"
)

// ErrEmptyDataset is returned when there is nothing to score.
var ErrEmptyDataset = errors.New("dataset is empty")

// Field names a compared verdict field.
type Field string

const (
	FieldIntent       Field = "intent"
	FieldSatisfaction Field = "satisfaction"
	FieldNoResolution Field = "no_resolution"
	FieldQualityScore Field = "quality_score"
)

// ScoreRange is an inclusive quality score interval.
type ScoreRange struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

func (r ScoreRange) Contains(score int) bool {
	return r.Lo <= score && score <= r.Hi
}

func (r ScoreRange) String() string {
	return fmt.Sprintf("%d-%d", r.Lo, r.Hi)
}

// Expectation is what a correct verdict looks like for a given case.
type Expectation struct {
	Intent       taxonomy.Intent       `json:"intent"`
	Satisfaction taxonomy.Satisfaction `json:"satisfaction"`
	NoResolution bool                  `json:"no_resolution"`
	ScoreRange   ScoreRange            `json:"score_range"`
}

// Prediction is a stored verdict canonicalized for comparison.
type Prediction struct {
	Intent       taxonomy.Intent       `json:"intent"`
	Satisfaction taxonomy.Satisfaction `json:"satisfaction"`
	NoResolution bool                  `json:"no_resolution"`
	// Score is nil when the record has no analysis.
	Score *int `json:"score"`
}

// Mismatch is one incorrect field of one dialogue.
type Mismatch struct {
	ID       int    `json:"id"`
	Field    Field  `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("ID %d | %s | expected=%s | got=%s", m.ID, m.Field, m.Expected, m.Actual)
}

// RecordResult is the comparison of a single dialogue.
type RecordResult struct {
	ID             int         `json:"id"`
	Expected       Expectation `json:"expected"`
	Predicted      Prediction  `json:"predicted"`
	IntentOK       bool        `json:"intent_ok"`
	SatisfactionOK bool        `json:"satisfaction_ok"`
	NoResolutionOK bool        `json:"no_resolution_ok"`
	ScoreOK        bool        `json:"score_ok"`
	// Mismatches lists the incorrect fields in comparison order.
	Mismatches []Mismatch `json:"mismatches"`
}

// Engine compares verdicts with ground truth using the taxonomy's
// evaluation tables.
type Engine struct {
	tx *taxonomy.Taxonomy
}

func NewEngine(tx *taxonomy.Taxonomy) *Engine {
	return &Engine{tx: tx}
}

func normalizeCaseType(c taxonomy.CaseType) taxonomy.CaseType {
	return taxonomy.CaseType(strings.ToLower(strings.TrimSpace(string(c))))
}

// Expect derives the expected verdict from generation metadata.
func (e *Engine) Expect(meta dataset.Metadata) Expectation {
	caseType := normalizeCaseType(meta.CaseType)
	success := caseType == e.tx.Evaluation.SuccessCaseType

	exp := Expectation{
		Intent:       e.tx.GroundTruthIntent(meta.Intent),
		Satisfaction: taxonomy.Unsatisfied,
		NoResolution: !success,
		ScoreRange:   ScoreRange{Lo: 1, Hi: 2},
	}
	switch {
	case success:
		exp.Satisfaction = taxonomy.Satisfied
		exp.ScoreRange = ScoreRange{Lo: 4, Hi: 5}
	case caseType == e.tx.Evaluation.ConflictCaseType:
		exp.ScoreRange = ScoreRange{Lo: 2, Hi: 3}
	}
	return exp
}

// Predict canonicalizes a stored verdict. A nil verdict predicts nothing:
// empty labels, no mistakes and no score.
func (e *Engine) Predict(v *dataset.Verdict) Prediction {
	if v == nil {
		return Prediction{
			Intent:       e.tx.PredictedIntent(""),
			Satisfaction: e.tx.PredictedSatisfaction(""),
		}
	}
	score := v.QualityScore
	return Prediction{
		Intent:       e.tx.PredictedIntent(string(v.RequestIntent)),
		Satisfaction: e.tx.PredictedSatisfaction(string(v.CustomerSatisfaction)),
		NoResolution: v.HasMistake(taxonomy.MistakeNoResolution),
		Score:        &score,
	}
}

// EvaluateRecord scores one dialogue on all four fields.
func (e *Engine) EvaluateRecord(r dataset.Record) RecordResult {
	exp := e.Expect(r.Metadata)
	pred := e.Predict(r.Analysis)

	res := RecordResult{
		ID:             r.ID,
		Expected:       exp,
		Predicted:      pred,
		IntentOK:       exp.Intent == pred.Intent,
		SatisfactionOK: exp.Satisfaction == pred.Satisfaction,
		NoResolutionOK: exp.NoResolution == pred.NoResolution,
		ScoreOK:        pred.Score != nil && exp.ScoreRange.Contains(*pred.Score),
	}

	miss := func(f Field, expected, actual string) {
		res.Mismatches = append(res.Mismatches, Mismatch{ID: r.ID, Field: f, Expected: expected, Actual: actual})
	}
	if !res.IntentOK {
		miss(FieldIntent, string(exp.Intent), string(pred.Intent))
	}
	if !res.SatisfactionOK {
		miss(FieldSatisfaction, string(exp.Satisfaction), string(pred.Satisfaction))
	}
	if !res.NoResolutionOK {
		miss(FieldNoResolution, strconv.FormatBool(exp.NoResolution), strconv.FormatBool(pred.NoResolution))
	}
	if !res.ScoreOK {
		actual := "none"
		if pred.Score != nil {
			actual = strconv.Itoa(*pred.Score)
		}
		miss(FieldQualityScore, exp.ScoreRange.String(), actual)
	}
	return res
}

// Evaluate scores every record and aggregates the results. An empty
// dataset yields ErrEmptyDataset and no report.
func (e *Engine) Evaluate(ds dataset.Dataset) (*Report, error) {
	if len(ds) == 0 {
		return nil, ErrEmptyDataset
	}

	r := &Report{
		Total:              len(ds),
		IntentMatrix:       NewConfusionMatrix(intentLabels(e.tx.Evaluation.IntentLabels)),
		SatisfactionMatrix: NewConfusionMatrix(satisfactionLabels(e.tx.Evaluation.SatisfactionLabels)),
		Mismatches:         []Mismatch{},
	}
	for _, rec := range ds {
		res := e.EvaluateRecord(rec)
		r.IntentMatrix.Add(string(res.Expected.Intent), string(res.Predicted.Intent))
		r.SatisfactionMatrix.Add(string(res.Expected.Satisfaction), string(res.Predicted.Satisfaction))
		r.Correct.add(res)
		r.Mismatches = append(r.Mismatches, res.Mismatches...)
	}
	r.Accuracy = r.Correct.ratios(r.Total)
	return r, nil
}

func intentLabels(in []taxonomy.Intent) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func satisfactionLabels(in []taxonomy.Satisfaction) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
