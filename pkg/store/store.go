// Package store keeps a history of analysis and evaluation runs in SQLite so
// model and prompt changes can be compared over time.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/evaluate"
	"chat-eval/pkg/taxonomy"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
	id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	dataset_path TEXT NOT NULL,
	started_at_utc TEXT NOT NULL,
	finished_at_utc TEXT NOT NULL DEFAULT '',
	total INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS verdicts (
	run_id TEXT NOT NULL REFERENCES analysis_runs(id),
	dialogue_id INTEGER NOT NULL,
	request_intent TEXT NOT NULL,
	customer_satisfaction TEXT NOT NULL,
	agent_mistakes TEXT NOT NULL,
	quality_score INTEGER NOT NULL,
	reasoning TEXT NOT NULL,
	raw_text TEXT NOT NULL,
	error TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, dialogue_id)
)`,
	`CREATE TABLE IF NOT EXISTS evaluation_runs (
	id TEXT PRIMARY KEY,
	dataset_path TEXT NOT NULL,
	created_at_utc TEXT NOT NULL,
	total INTEGER NOT NULL,
	intent_accuracy REAL NOT NULL,
	satisfaction_accuracy REAL NOT NULL,
	no_resolution_accuracy REAL NOT NULL,
	score_in_range REAL NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS evaluation_mismatches (
	run_id TEXT NOT NULL REFERENCES evaluation_runs(id),
	position INTEGER NOT NULL,
	dialogue_id INTEGER NOT NULL,
	field TEXT NOT NULL,
	expected TEXT NOT NULL,
	actual TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
)`,
	`CREATE INDEX IF NOT EXISTS idx_verdicts_dialogue ON verdicts(dialogue_id)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluation_runs_created ON evaluation_runs(created_at_utc)`,
}

// Store is a SQLite run history. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// BeginAnalysis registers a new analysis run and returns its id.
func (s *Store) BeginAnalysis(ctx context.Context, model, datasetPath string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, model, dataset_path, started_at_utc) VALUES (?, ?, ?, ?)`,
		id, model, datasetPath, s.timestamp())
	if err != nil {
		return "", fmt.Errorf("insert analysis run: %w", err)
	}
	return id, nil
}

// VerdictRecord is one stored analysis outcome.
type VerdictRecord struct {
	RunID      string
	DialogueID int
	Verdict    dataset.Verdict
	RawText    string
	// Error is the call error text, empty on success.
	Error    string
	Duration time.Duration
}

// RecordAnalysis stores the verdict and raw model output of one dialogue.
// Recording the same dialogue twice in a run replaces the earlier row.
func (s *Store) RecordAnalysis(ctx context.Context, r VerdictRecord) error {
	mistakes, err := sonic.MarshalString(r.Verdict.AgentMistakes)
	if err != nil {
		return fmt.Errorf("encode mistakes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO verdicts (
	run_id, dialogue_id, request_intent, customer_satisfaction, agent_mistakes,
	quality_score, reasoning, raw_text, error, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.DialogueID,
		string(r.Verdict.RequestIntent), string(r.Verdict.CustomerSatisfaction), mistakes,
		r.Verdict.QualityScore, r.Verdict.Reasoning, r.RawText, r.Error, r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert verdict %d: %w", r.DialogueID, err)
	}
	return nil
}

// FinishAnalysis stamps the run with its end time and counts.
func (s *Store) FinishAnalysis(ctx context.Context, runID string, total, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs SET finished_at_utc = ?, total = ?, failed = ? WHERE id = ?`,
		s.timestamp(), total, failed, runID)
	if err != nil {
		return fmt.Errorf("finish analysis run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("analysis run %s not found", runID)
	}
	return nil
}

// Verdicts returns the stored verdicts of a run ordered by dialogue id.
func (s *Store) Verdicts(ctx context.Context, runID string) ([]VerdictRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT dialogue_id, request_intent, customer_satisfaction, agent_mistakes,
	quality_score, reasoning, raw_text, error, duration_ms
FROM verdicts WHERE run_id = ? ORDER BY dialogue_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []VerdictRecord
	for rows.Next() {
		var (
			r                     VerdictRecord
			intent, sat, mistakes string
			durationMS            int64
		)
		if err := rows.Scan(&r.DialogueID, &intent, &sat, &mistakes,
			&r.Verdict.QualityScore, &r.Verdict.Reasoning, &r.RawText, &r.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		r.RunID = runID
		r.Verdict.RequestIntent = taxonomy.Intent(intent)
		r.Verdict.CustomerSatisfaction = taxonomy.Satisfaction(sat)
		if err := sonic.UnmarshalString(mistakes, &r.Verdict.AgentMistakes); err != nil {
			return nil, fmt.Errorf("decode mistakes of %d: %w", r.DialogueID, err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// EvaluationRun is the stored summary of one evaluation pass.
type EvaluationRun struct {
	ID          string            `json:"id"`
	DatasetPath string            `json:"dataset_path"`
	CreatedAt   time.Time         `json:"created_at"`
	Total       int               `json:"total"`
	Accuracy    evaluate.Accuracy `json:"accuracy"`
	Mismatches  int               `json:"mismatches"`
}

// RecordEvaluation stores a report with all its mismatches and returns the
// new run id.
func (s *Store) RecordEvaluation(ctx context.Context, datasetPath string, r *evaluate.Report) (string, error) {
	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin evaluation tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO evaluation_runs (
	id, dataset_path, created_at_utc, total,
	intent_accuracy, satisfaction_accuracy, no_resolution_accuracy, score_in_range
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, datasetPath, s.timestamp(), r.Total,
		r.Accuracy.Intent, r.Accuracy.Satisfaction, r.Accuracy.NoResolution, r.Accuracy.ScoreInRange)
	if err != nil {
		return "", fmt.Errorf("insert evaluation run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO evaluation_mismatches (run_id, position, dialogue_id, field, expected, actual)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare mismatch insert: %w", err)
	}
	defer stmt.Close()
	for i, m := range r.Mismatches {
		if _, err := stmt.ExecContext(ctx, id, i, m.ID, string(m.Field), m.Expected, m.Actual); err != nil {
			return "", fmt.Errorf("insert mismatch %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit evaluation: %w", err)
	}
	return id, nil
}

// ListEvaluationRuns returns the most recent runs first. limit <= 0 returns
// all of them.
func (s *Store) ListEvaluationRuns(ctx context.Context, limit int) ([]EvaluationRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.dataset_path, r.created_at_utc, r.total,
	r.intent_accuracy, r.satisfaction_accuracy, r.no_resolution_accuracy, r.score_in_range,
	(SELECT COUNT(*) FROM evaluation_mismatches m WHERE m.run_id = r.id)
FROM evaluation_runs r
ORDER BY r.created_at_utc DESC, r.rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query evaluation runs: %w", err)
	}
	defer rows.Close()

	var out []EvaluationRun
	for rows.Next() {
		var (
			run     EvaluationRun
			created string
		)
		if err := rows.Scan(&run.ID, &run.DatasetPath, &created, &run.Total,
			&run.Accuracy.Intent, &run.Accuracy.Satisfaction, &run.Accuracy.NoResolution, &run.Accuracy.ScoreInRange,
			&run.Mismatches); err != nil {
			return nil, fmt.Errorf("scan evaluation run: %w", err)
		}
		run.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse run time %q: %w", created, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Mismatches returns the stored mismatches of an evaluation run in report
// order.
func (s *Store) Mismatches(ctx context.Context, runID string) ([]evaluate.Mismatch, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT dialogue_id, field, expected, actual
FROM evaluation_mismatches WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query mismatches: %w", err)
	}
	defer rows.Close()

	var out []evaluate.Mismatch
	for rows.Next() {
		var (
			m     evaluate.Mismatch
			field string
		)
		if err := rows.Scan(&m.ID, &field, &m.Expected, &m.Actual); err != nil {
			return nil, fmt.Errorf("scan mismatch: %w", err)
		}
		m.Field = evaluate.Field(field)
		out = append(out, m)
	}
	return out, rows.Err()
}
