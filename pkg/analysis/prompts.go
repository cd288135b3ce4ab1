package analysis

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/taxonomy"
)

func quoteList(v any) string {
	var parts []string
	switch items := v.(type) {
	case []taxonomy.Intent:
		for _, i := range items {
			parts = append(parts, fmt.Sprintf("%q", string(i)))
		}
	case []taxonomy.Satisfaction:
		for _, s := range items {
			parts = append(parts, fmt.Sprintf("%q", string(s)))
		}
	}
	return strings.Join(parts, ", ")
}

var funcMap = template.FuncMap{
	"quoteList": quoteList,
}

var analysisPromptTemplate = template.Must(template.New("analysis").Funcs(funcMap).Parse(`
You are an expert QA auditor evaluating customer support chats.
Return ONLY a valid JSON object.

DO NOT guess policies.
DO NOT invent mistakes.
ONLY describe what is directly observable.

CATEGORIES:
- request_intent: {{quoteList .Intents}}
- customer_satisfaction: {{quoteList .Satisfactions}}
- agent_mistakes: ONLY from:
{{range .Mistakes}}  - {{.}}
{{end}}
DIALOGUE:
{{.Dialogue}}

OUTPUT JSON:
{
  "reasoning": "1 sentence max",
  "request_intent": "string",
  "customer_satisfaction": "string",
  "agent_mistakes": ["string"]
}
`))

type analysisPromptData struct {
	Intents       []taxonomy.Intent
	Satisfactions []taxonomy.Satisfaction
	Mistakes      []taxonomy.Mistake
	Dialogue      string
}

func buildAnalysisPrompt(tx *taxonomy.Taxonomy, chat []dataset.Message) (string, error) {
	var buf bytes.Buffer
	err := analysisPromptTemplate.Execute(&buf, analysisPromptData{
		Intents:       tx.Analysis.IntentLabels,
		Satisfactions: tx.Analysis.SatisfactionLabels,
		Mistakes:      tx.Analysis.ReportableMistakes,
		Dialogue:      dataset.FormatChat(chat),
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute analysis template: %w", err)
	}
	return buf.String(), nil
}

// verdictSchema describes the object requested from providers that accept a
// response schema.
type verdictSchema struct {
	Reasoning            string   `json:"reasoning" jsonscheme:"desc:1 sentence max"`
	RequestIntent        string   `json:"request_intent"`
	CustomerSatisfaction string   `json:"customer_satisfaction"`
	AgentMistakes        []string `json:"agent_mistakes"`
}
