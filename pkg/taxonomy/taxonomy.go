// Package taxonomy holds the closed label sets shared by the generator, the
// analyzer and the evaluation engine.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Intent is a canonical request_intent label produced by the analyzer.
type Intent string

const (
	IntentPaymentProblems Intent = "payment problems"
	IntentTechnicalErrors Intent = "technical errors"
	IntentAccountAccess   Intent = "account access"
	IntentTariff          Intent = "questions about the tariff"
	IntentRefund          Intent = "refund"
	IntentOther           Intent = "other"
)

// Satisfaction is a canonical customer_satisfaction label.
type Satisfaction string

const (
	Satisfied   Satisfaction = "satisfied"
	Neutral     Satisfaction = "neutral"
	Unsatisfied Satisfaction = "unsatisfied"
)

// Mistake is an agent failure mode.
type Mistake string

const (
	MistakeIgnoredQuestion       Mistake = "ignored_question"
	MistakeIncorrectInfo         Mistake = "incorrect_info"
	MistakeRudeTone              Mistake = "rude_tone"
	MistakeNoResolution          Mistake = "no_resolution"
	MistakeUnnecessaryEscalation Mistake = "unnecessary_escalation"

	// MistakeNone is recorded in metadata for dialogues that are not
	// scripted around an agent mistake.
	MistakeNone Mistake = "none"
)

// CaseType is the scripted outcome of a generated dialogue.
type CaseType string

const (
	CaseSuccess              CaseType = "success"
	CaseFail                 CaseType = "fail"
	CaseConflict             CaseType = "conflict"
	CaseAgentMistake         CaseType = "agent_mistake"
	CaseHiddenUnsatisfaction CaseType = "hidden_unsatisfaction"
)

// Personality describes a simulated customer.
type Personality struct {
	Type   string `yaml:"type" json:"type"`
	Traits string `yaml:"traits" json:"traits"`
}

// Analysis holds the label tables used to normalize model verdicts.
type Analysis struct {
	IntentLabels         []Intent                `yaml:"intent_labels"`
	IntentFallback       Intent                  `yaml:"intent_fallback"`
	IntentSynonyms       map[string]Intent       `yaml:"intent_synonyms"`
	SatisfactionLabels   []Satisfaction          `yaml:"satisfaction_labels"`
	SatisfactionFallback Satisfaction            `yaml:"satisfaction_fallback"`
	SatisfactionSynonyms map[string]Satisfaction `yaml:"satisfaction_synonyms"`
	ReportableMistakes   []Mistake               `yaml:"reportable_mistakes"`
	WeakPhrases          []string                `yaml:"weak_phrases"`
	EscalationMarker     string                  `yaml:"escalation_marker"`
}

// Evaluation holds the tables used to compare verdicts with ground truth.
type Evaluation struct {
	SuccessCaseType    CaseType          `yaml:"success_case_type"`
	ConflictCaseType   CaseType          `yaml:"conflict_case_type"`
	GroundTruthIntents map[string]Intent `yaml:"ground_truth_intents"`
	PredictionSynonyms map[string]Intent `yaml:"prediction_synonyms"`
	IntentLabels       []Intent          `yaml:"intent_labels"`
	SatisfactionLabels []Satisfaction    `yaml:"satisfaction_labels"`
}

// Taxonomy is the immutable label configuration handed to every component.
// Callers must not mutate the slices and maps it exposes.
type Taxonomy struct {
	Intents       []string      `yaml:"intents"`
	CaseTypes     []CaseType    `yaml:"case_types"`
	Personalities []Personality `yaml:"personalities"`
	AgentMistakes []Mistake     `yaml:"agent_mistakes"`
	Analysis      Analysis      `yaml:"analysis"`
	Evaluation    Evaluation    `yaml:"evaluation"`
}

//go:embed default.yaml
var defaultYAML []byte

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic("taxonomy: invalid embedded default: " + err.Error())
	}
	return t
}

// Load reads a taxonomy from a YAML file. An empty path yields Default().
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML taxonomy document.
func Parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that the fallbacks belong to their label sets and that
// every table maps into the closed vocabulary.
func (t *Taxonomy) Validate() error {
	if len(t.Intents) == 0 || len(t.CaseTypes) == 0 || len(t.Personalities) == 0 {
		return fmt.Errorf("taxonomy: intents, case_types and personalities must not be empty")
	}
	a := t.Analysis
	if !slices.Contains(a.IntentLabels, a.IntentFallback) {
		return fmt.Errorf("taxonomy: intent fallback %q is not an intent label", a.IntentFallback)
	}
	if !slices.Contains(a.SatisfactionLabels, a.SatisfactionFallback) {
		return fmt.Errorf("taxonomy: satisfaction fallback %q is not a satisfaction label", a.SatisfactionFallback)
	}
	for k, v := range a.IntentSynonyms {
		if !slices.Contains(a.IntentLabels, v) {
			return fmt.Errorf("taxonomy: intent synonym %q maps to unknown label %q", k, v)
		}
	}
	for k, v := range a.SatisfactionSynonyms {
		if !slices.Contains(a.SatisfactionLabels, v) {
			return fmt.Errorf("taxonomy: satisfaction synonym %q maps to unknown label %q", k, v)
		}
	}
	if a.EscalationMarker == "" {
		return fmt.Errorf("taxonomy: escalation marker is required")
	}
	e := t.Evaluation
	if e.SuccessCaseType == "" {
		return fmt.Errorf("taxonomy: evaluation success case type is required")
	}
	if !slices.Contains(e.IntentLabels, a.IntentFallback) {
		return fmt.Errorf("taxonomy: evaluation intent labels must include %q", a.IntentFallback)
	}
	return nil
}

func clean(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// IntentLabel maps free text onto the analysis intent vocabulary.
func (t *Taxonomy) IntentLabel(raw string) Intent {
	if v, ok := t.Analysis.IntentSynonyms[clean(raw)]; ok {
		return v
	}
	return t.Analysis.IntentFallback
}

// SatisfactionLabel maps free text onto the satisfaction vocabulary. Unknown
// values fall back to the worst case.
func (t *Taxonomy) SatisfactionLabel(raw string) Satisfaction {
	if v, ok := t.Analysis.SatisfactionSynonyms[clean(raw)]; ok {
		return v
	}
	return t.Analysis.SatisfactionFallback
}

func (t *Taxonomy) IsIntentLabel(v Intent) bool {
	return slices.Contains(t.Analysis.IntentLabels, v)
}

func (t *Taxonomy) IsSatisfactionLabel(v Satisfaction) bool {
	return slices.Contains(t.Analysis.SatisfactionLabels, v)
}

// GroundTruthIntent maps a dataset metadata intent onto the label the
// analyzer is expected to produce.
func (t *Taxonomy) GroundTruthIntent(raw string) Intent {
	if v, ok := t.Evaluation.GroundTruthIntents[clean(raw)]; ok {
		return v
	}
	return t.Analysis.IntentFallback
}

// PredictedIntent canonicalizes a stored prediction for comparison and clamps
// it to the evaluation label set.
func (t *Taxonomy) PredictedIntent(raw string) Intent {
	s := clean(raw)
	v := Intent(s)
	if syn, ok := t.Evaluation.PredictionSynonyms[s]; ok {
		v = syn
	}
	if !slices.Contains(t.Evaluation.IntentLabels, v) {
		return t.Analysis.IntentFallback
	}
	return v
}

// PredictedSatisfaction canonicalizes a stored satisfaction for comparison.
func (t *Taxonomy) PredictedSatisfaction(raw string) Satisfaction {
	v := Satisfaction(clean(raw))
	if !slices.Contains(t.Evaluation.SatisfactionLabels, v) {
		return t.Analysis.SatisfactionFallback
	}
	return v
}

// Personality returns the personality with the given type name.
func (t *Taxonomy) Personality(name string) (Personality, bool) {
	for _, p := range t.Personalities {
		if p.Type == name {
			return p, true
		}
	}
	return Personality{}, false
}
