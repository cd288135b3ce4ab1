package dataset

import (
	"strings"

	"chat-eval/pkg/taxonomy"
)

// Distribution is the label count summary of a dataset.
type Distribution struct {
	Intents   map[string]int            `json:"intents"`
	CaseTypes map[taxonomy.CaseType]int `json:"case_types"`
	Mistakes  map[taxonomy.Mistake]int  `json:"mistakes"`
	Totals    DistributionTotals        `json:"totals"`
}

type DistributionTotals struct {
	Intents  int `json:"intents"`
	Mistakes int `json:"mistakes"`
}

// Distribution counts intents, case types and, for agent_mistake records
// only, mistakes. Every taxonomy label is present even when its count is
// zero; labels outside the taxonomy are left out of the per-label maps but
// still contribute to the mistake total.
func (ds Dataset) Distribution(tx *taxonomy.Taxonomy) Distribution {
	intents := make(map[string]int)
	cases := make(map[taxonomy.CaseType]int)
	mistakes := make(map[taxonomy.Mistake]int)
	totalMistakes := 0

	for _, r := range ds {
		intents[r.Metadata.Intent]++
		cases[r.Metadata.CaseType]++
		if r.Metadata.CaseType == taxonomy.CaseAgentMistake {
			mistakes[r.Metadata.Mistake]++
			totalMistakes++
		}
	}

	d := Distribution{
		Intents:   make(map[string]int, len(tx.Intents)),
		CaseTypes: make(map[taxonomy.CaseType]int, len(tx.CaseTypes)),
		Mistakes:  make(map[taxonomy.Mistake]int, len(tx.AgentMistakes)),
		Totals: DistributionTotals{
			Intents:  len(ds),
			Mistakes: totalMistakes,
		},
	}
	for _, i := range tx.Intents {
		d.Intents[i] = intents[i]
	}
	for _, c := range tx.CaseTypes {
		d.CaseTypes[c] = cases[c]
	}
	for _, m := range tx.AgentMistakes {
		d.Mistakes[m] = mistakes[m]
	}
	return d
}

// Filter returns the records whose metadata matches every non-empty field of
// want. Matching is case-insensitive.
func (ds Dataset) Filter(want Metadata) Dataset {
	match := func(a, b string) bool {
		return b == "" || strings.EqualFold(a, b)
	}
	var out Dataset
	for _, r := range ds {
		m := r.Metadata
		if match(m.Intent, want.Intent) &&
			match(string(m.CaseType), string(want.CaseType)) &&
			match(m.PersonalityType, want.PersonalityType) &&
			match(string(m.Mistake), string(want.Mistake)) {
			out = append(out, r)
		}
	}
	return out
}
