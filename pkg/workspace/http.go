package workspace

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/evaluate"
	"chat-eval/pkg/taxonomy"
)

const defaultTopMismatches = 15

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	// Standard Methods
	mux.HandleFunc("GET /api/dialogues", s.handleListDialogues)
	mux.HandleFunc("GET /api/dialogues/{id}", s.handleGetDialogue)
	// Custom Methods - dispatched via POST /api/dialogues/{id} because {id}:suffix is not supported by ServeMux
	mux.HandleFunc("POST /api/dialogues/{id}", s.handleDialogueOps)

	mux.HandleFunc("GET /api/evaluation", s.handleEvaluation)
	mux.HandleFunc("GET /api/evaluation/runs", s.handleEvaluationRuns)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.Handle("GET /api/events", s.Events)

	// Config
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	return id, err == nil
}

// handleListDialogues handles GET /api/dialogues?intent=&case_type=&personality=&mistake=
func (s *Service) handleListDialogues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := dataset.Metadata{
		Intent:          q.Get("intent"),
		CaseType:        taxonomy.CaseType(q.Get("case_type")),
		PersonalityType: q.Get("personality"),
		Mistake:         taxonomy.Mistake(q.Get("mistake")),
	}
	dialogues, err := s.ListDialogues(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dialogues)
}

// handleGetDialogue handles GET /api/dialogues/{id}
func (s *Service) handleGetDialogue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "numeric ID required", http.StatusBadRequest)
		return
	}

	d, err := s.GetDialogue(r.Context(), id)
	if errors.Is(err, ErrDialogueNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, d)
}

// handleDialogueOps dispatches custom POST methods
func (s *Service) handleDialogueOps(w http.ResponseWriter, r *http.Request) {
	id, op, _ := strings.Cut(r.PathValue("id"), ":")
	r.SetPathValue("id", id)

	switch op {
	case "analyze":
		s.handleAnalyzeDialogue(w, r)
	default:
		http.Error(w, "Unknown method", http.StatusNotFound)
	}
}

// handleAnalyzeDialogue handles POST /api/dialogues/{id}:analyze
func (s *Service) handleAnalyzeDialogue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "numeric ID required", http.StatusBadRequest)
		return
	}

	resp, err := s.AnalyzeDialogue(r.Context(), id)
	if errors.Is(err, ErrDialogueNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

// handleEvaluation handles GET /api/evaluation?top=N
func (s *Service) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	top := defaultTopMismatches
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "top must be an integer", http.StatusBadRequest)
			return
		}
		top = n
	}

	report, err := s.Evaluate(r.Context())
	if errors.Is(err, evaluate.ErrEmptyDataset) {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	report.Mismatches = report.TopMismatches(top)
	writeJSON(w, report)
}

// handleEvaluationRuns handles GET /api/evaluation/runs?limit=N
func (s *Service) handleEvaluationRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.EvaluationRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Service) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.config())
}
