package workspace

import (
	"time"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/evaluate"
)

// DialogueSummary is the list view of a dialogue. The transcript is left out.
type DialogueSummary struct {
	ID       int              `json:"id"`
	Metadata dataset.Metadata `json:"metadata"`
	Messages int              `json:"messages"`
	Analysis *dataset.Verdict `json:"analysis,omitempty"`
}

// Dialogue is the full view: the stored record plus, when it has been
// analyzed, its comparison with ground truth.
type Dialogue struct {
	dataset.Record
	Evaluation *evaluate.RecordResult `json:"evaluation,omitempty"`
}

// AnalyzeResponse for POST /api/dialogues/{id}:analyze
type AnalyzeResponse struct {
	Dialogue *Dialogue `json:"dialogue"`
	RawText  string    `json:"raw_text"`
	// Error is the model call error. The stored verdict is the fallback.
	Error string `json:"error,omitempty"`
	RunID string `json:"run_id,omitempty"`
}

// Config returns the server configuration.
type Config struct {
	DatasetPath string   `json:"dataset_path"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Intents     []string `json:"intents"`
	CaseTypes   []string `json:"case_types"`
	History     bool     `json:"history"`
}

// Event types published on /api/events.
const (
	EventAnalysisStarted  = "analysis_started"
	EventAnalysisFinished = "analysis_finished"
)

// Event is one message of the live feed.
type Event struct {
	Type    string           `json:"type"`
	ID      int              `json:"id"`
	Time    time.Time        `json:"time"`
	Verdict *dataset.Verdict `json:"verdict,omitempty"`
	Error   string           `json:"error,omitempty"`
}
