package dataset

import (
	"slices"

	"chat-eval/pkg/taxonomy"
)

const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

// Message is one chat turn.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Metadata is the ground truth recorded when a dialogue is generated.
type Metadata struct {
	Intent          string            `json:"intent"`
	CaseType        taxonomy.CaseType `json:"case_type"`
	PersonalityType string            `json:"personality_type"`
	Mistake         taxonomy.Mistake  `json:"mistake"`
}

// Verdict is the normalized analysis of one dialogue.
//
// AgentMistakes has set semantics: no duplicates, order not significant.
type Verdict struct {
	RequestIntent        taxonomy.Intent       `json:"request_intent"`
	CustomerSatisfaction taxonomy.Satisfaction `json:"customer_satisfaction"`
	AgentMistakes        []taxonomy.Mistake    `json:"agent_mistakes"`
	QualityScore         int                   `json:"quality_score"`
	Reasoning            string                `json:"reasoning"`
}

// HasMistake reports whether m is in the mistake set.
func (v *Verdict) HasMistake(m taxonomy.Mistake) bool {
	return slices.Contains(v.AgentMistakes, m)
}

// AddMistake inserts m unless it is already present.
func (v *Verdict) AddMistake(m taxonomy.Mistake) {
	if !v.HasMistake(m) {
		v.AgentMistakes = append(v.AgentMistakes, m)
	}
}

// Clone returns a deep copy.
func (v Verdict) Clone() Verdict {
	v.AgentMistakes = slices.Clone(v.AgentMistakes)
	return v
}

// Record is one dataset entry.
type Record struct {
	ID       int       `json:"id"`
	Metadata Metadata  `json:"metadata"`
	Chat     []Message `json:"chat"`
	Analysis *Verdict  `json:"analysis,omitempty"`
}

// Dataset is the on-disk JSON array of records.
type Dataset []Record
