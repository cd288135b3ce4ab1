// Package analysis turns raw model output about a dialogue into a
// well-formed, internally consistent verdict.
package analysis

import (
	"strings"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/taxonomy"
)

const (
	minQualityScore = 1
	maxQualityScore = 5

	// unsatisfiedScoreCap bounds the score of any dialogue whose customer
	// left unsatisfied.
	unsatisfiedScoreCap = 2
)

// NormalizerOptions toggles optional pipeline steps.
type NormalizerOptions struct {
	// ClampSatisfaction forces satisfaction to unsatisfied whenever the
	// verdict carries no_resolution.
	ClampSatisfaction bool
}

// DefaultNormalizerOptions enables every step.
func DefaultNormalizerOptions() NormalizerOptions {
	return NormalizerOptions{ClampSatisfaction: true}
}

// Normalizer applies the deterministic post-processing pipeline:
// labels, no_resolution inference, satisfaction clamp, score recomputation
// and final validation.
type Normalizer struct {
	tx   *taxonomy.Taxonomy
	opts NormalizerOptions
}

func NewNormalizer(tx *taxonomy.Taxonomy, opts NormalizerOptions) *Normalizer {
	return &Normalizer{tx: tx, opts: opts}
}

// Normalize runs the whole pipeline. It accepts an empty or malformed raw
// verdict and always returns a valid one.
func (n *Normalizer) Normalize(raw RawVerdict, chat []dataset.Message) dataset.Verdict {
	v := n.NormalizeLabels(raw)
	n.InferNoResolution(chat, &v)
	if n.opts.ClampSatisfaction {
		ClampSatisfaction(&v)
	}
	v.QualityScore = RecomputeQualityScore(v.AgentMistakes)
	return n.FinalValidate(v)
}

// NormalizeLabels maps intent and satisfaction onto the closed vocabulary
// and deduplicates mistakes. Mistakes outside the taxonomy pass through.
// The model's own quality score is discarded.
func (n *Normalizer) NormalizeLabels(raw RawVerdict) dataset.Verdict {
	return dataset.Verdict{
		RequestIntent:        n.tx.IntentLabel(stringField(raw, "request_intent")),
		CustomerSatisfaction: n.tx.SatisfactionLabel(stringField(raw, "customer_satisfaction")),
		AgentMistakes:        mistakesField(raw, "agent_mistakes"),
		Reasoning:            stringField(raw, "reasoning"),
	}
}

// InferNoResolution adds no_resolution when the customer is not satisfied,
// or the last agent message hedges or mentions escalation. It reports
// whether the flag was added.
func (n *Normalizer) InferNoResolution(chat []dataset.Message, v *dataset.Verdict) bool {
	if v.HasMistake(taxonomy.MistakeNoResolution) {
		return false
	}
	last := strings.ToLower(dataset.LastAgentMessage(chat))
	if v.CustomerSatisfaction != taxonomy.Satisfied ||
		containsAny(last, n.tx.Analysis.WeakPhrases) ||
		strings.Contains(last, n.tx.Analysis.EscalationMarker) {
		v.AddMistake(taxonomy.MistakeNoResolution)
		return true
	}
	return false
}

// ClampSatisfaction marks an unresolved dialogue as unsatisfied.
func ClampSatisfaction(v *dataset.Verdict) {
	if v.HasMistake(taxonomy.MistakeNoResolution) {
		v.CustomerSatisfaction = taxonomy.Unsatisfied
	}
}

// RecomputeQualityScore derives the score from the mistake set alone.
// First match wins: rude tone, then no resolution, then any mistake.
func RecomputeQualityScore(mistakes []taxonomy.Mistake) int {
	has := func(m taxonomy.Mistake) bool {
		for _, x := range mistakes {
			if x == m {
				return true
			}
		}
		return false
	}
	switch {
	case has(taxonomy.MistakeRudeTone):
		return 1
	case has(taxonomy.MistakeNoResolution):
		return 2
	case len(mistakes) > 0:
		return 4
	default:
		return 5
	}
}

// FinalValidate enforces closed labels, the unsatisfied score cap and the
// score range. It is idempotent.
func (n *Normalizer) FinalValidate(v dataset.Verdict) dataset.Verdict {
	v = v.Clone()
	if !n.tx.IsIntentLabel(v.RequestIntent) {
		v.RequestIntent = n.tx.Analysis.IntentFallback
	}
	if !n.tx.IsSatisfactionLabel(v.CustomerSatisfaction) {
		v.CustomerSatisfaction = n.tx.Analysis.SatisfactionFallback
	}
	if v.CustomerSatisfaction == taxonomy.Unsatisfied {
		v.QualityScore = min(v.QualityScore, unsatisfiedScoreCap)
	}
	v.QualityScore = max(minQualityScore, min(maxQualityScore, v.QualityScore))
	if v.AgentMistakes == nil {
		v.AgentMistakes = []taxonomy.Mistake{}
	}
	return v
}

func stringField(raw RawVerdict, key string) string {
	s, _ := raw[key].(string)
	return s
}

// mistakesField accepts a list of strings (non-strings are skipped) or a
// single string. Anything else is an empty set.
func mistakesField(raw RawVerdict, key string) []taxonomy.Mistake {
	out := []taxonomy.Mistake{}
	add := func(s string) {
		m := taxonomy.Mistake(s)
		for _, x := range out {
			if x == m {
				return
			}
		}
		out = append(out, m)
	}
	switch v := raw[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				add(s)
			}
		}
	case string:
		if v != "" {
			add(v)
		}
	}
	return out
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
