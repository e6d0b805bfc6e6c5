package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/logger"
	"github.com/spigell/apply-assistant/internal/postings"
	"github.com/spigell/apply-assistant/internal/session"
	"github.com/spigell/apply-assistant/internal/store"
	"github.com/spigell/apply-assistant/internal/vectorindex"
)

const (
	statusOK        = "ok"
	statusNoHistory = "no_history"
)

type request struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Title    string `json:"title,omitempty"`
	Company  string `json:"company,omitempty"`
	Location string `json:"location,omitempty"`
}

type questionResponse struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Response []string       `json:"response"`
	History  []store.QAPair `json:"history"`
	Draft    string         `json:"draft,omitempty"`
}

type upsertResponse struct {
	ID      string   `json:"id"`
	Indexed int      `json:"indexed"`
	Skipped []string `json:"skipped"`
}

type postingResponse struct {
	ID       string   `json:"id"`
	Posting  string   `json:"posting_id"`
	Analyzed bool     `json:"analyzed"`
	Summary  string   `json:"summary,omitempty"`
	Skills   []string `json:"skills,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "apply-assistant is up. POST /question with {id, entity}."})
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r, true)
	if !ok {
		return
	}

	tuning := s.deps.Tuning
	tuneReq := session.TuneRequest{
		Templates:    tuning.Templates,
		Question:     req.Entity,
		HistoryLimit: tuning.HistoryLimit,
		AnswerLimit:  tuning.AnswerLimit,
	}
	if tuning.FilterByUser {
		tuneReq.Filter = vectorindex.OwnerFilter(req.ID)
	}

	res, err := s.deps.Assistant.QueryTuneAnswer(r.Context(), tuneReq)
	if errors.Is(err, session.ErrNoHistory) {
		writeJSON(w, http.StatusOK, questionResponse{ID: req.ID, Status: statusNoHistory, Response: []string{}, History: []store.QAPair{}})
		return
	}
	if err != nil {
		s.fail(w, req.ID, err)
		return
	}

	writeJSON(w, http.StatusOK, questionResponse{
		ID:       req.ID,
		Status:   statusOK,
		Response: res.Answers,
		History:  res.History,
		Draft:    res.Draft,
	})
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r, false)
	if !ok {
		return
	}

	report, err := s.deps.Assistant.UpsertUserQuestions(r.Context(), req.ID)
	if err != nil {
		s.fail(w, req.ID, err)
		return
	}

	skipped := report.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	writeJSON(w, http.StatusOK, upsertResponse{ID: req.ID, Indexed: report.Indexed, Skipped: skipped})
}

func (s *Server) handlePosting(w http.ResponseWriter, r *http.Request) {
	if s.deps.Postings == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "posting ingestion is disabled"})
		return
	}

	req, ok := s.decode(w, r, true)
	if !ok {
		return
	}

	posting := store.Posting{
		Title:       strings.TrimSpace(req.Title),
		Company:     strings.TrimSpace(req.Company),
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Entity),
		Source:      "http",
	}
	report, err := s.deps.Postings.Ingest(r.Context(), req.ID, []store.Posting{posting}, s.deps.AnalyzePostings)
	if err != nil {
		s.fail(w, req.ID, err)
		return
	}

	saved := report.Stored[0]
	writeJSON(w, http.StatusOK, postingResponse{
		ID:       req.ID,
		Posting:  saved.ID,
		Analyzed: report.Analyzed > 0,
		Summary:  saved.Summary,
		Skills:   saved.Skills,
	})
}

// decode reads the request body. It writes a 400 and returns false when the
// body is malformed or a required field is missing.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, needEntity bool) (request, bool) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return req, false
	}

	req.ID = strings.TrimSpace(req.ID)
	switch {
	case req.ID == "":
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "field id is required"})
		return req, false
	case needEntity && strings.TrimSpace(req.Entity) == "":
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "field entity is required"})
		return req, false
	}

	return req, true
}

func (s *Server) fail(w http.ResponseWriter, userID string, err error) {
	status := statusFor(err)
	log := logger.WithUser(s.logger, userID)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidLimit),
		errors.Is(err, session.ErrEmptyQuestion),
		errors.Is(err, postings.ErrIncomplete):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
