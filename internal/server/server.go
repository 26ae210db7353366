// Package server exposes the interview engine over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prepair-dev/prepair/internal/interview"
	"github.com/prepair-dev/prepair/internal/question"
	"go.uber.org/zap"
)

// Server wraps the HTTP listener. Routing uses the standard mux with method
// patterns; the API surface is small enough that a router would buy nothing.
type Server struct {
	engine *interview.Engine
	http   *http.Server
	log    *zap.Logger
}

func NewServer(engine *interview.Engine, addr string, log *zap.Logger) *Server {
	s := &Server{engine: engine, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/interview/start", s.handleStart)
	mux.HandleFunc("POST /api/interview/next", s.handleNext)
	mux.HandleFunc("POST /api/interview/end", s.handleEnd)
	mux.HandleFunc("GET /api/interview/session/{id}", s.handleSession)
	mux.HandleFunc("GET /api/interview/history/{user_id}", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

type startRequest struct {
	UserID       string             `json:"user_id"`
	RoleTitle    string             `json:"role_title"`
	TopicWeights map[string]float64 `json:"topic_weights"`
	Counts       question.Counts    `json:"counts"`
}

type startResponse struct {
	SessionID      string            `json:"session_id"`
	FirstQuestion  question.Question `json:"first_question"`
	TotalQuestions int               `json:"total_questions"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}

	profile := question.Profile{
		UserID:    req.UserID,
		RoleTitle: req.RoleTitle,
		Weights:   req.TopicWeights,
	}
	res, err := s.engine.Start(r.Context(), profile, req.Counts)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		SessionID:      res.SessionID,
		FirstQuestion:  res.FirstQuestion,
		TotalQuestions: res.TotalQuestions,
	})
}

type nextRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Code      string `json:"code"`
	Skip      bool   `json:"skip"`
}

type progressPayload struct {
	SlotIndex int `json:"slot_index"`
	Total     int `json:"total"`
}

type nextResponse struct {
	NextQuestion     *question.Question `json:"next_question"`
	FollowupQuestion string             `json:"followup_question,omitempty"`
	IsDone           bool               `json:"is_done"`
	Progress         progressPayload    `json:"progress"`
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	var req nextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session_id is required")
		return
	}

	res, err := s.engine.Submit(r.Context(), req.SessionID, interview.SubmitRequest{
		Answer: req.Answer,
		Code:   req.Code,
		Skip:   req.Skip,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nextResponse{
		NextQuestion:     res.NextQuestion,
		FollowupQuestion: res.FollowupQuestion,
		IsDone:           res.IsDone,
		Progress:         progressPayload{SlotIndex: res.Progress.SlotIndex, Total: res.Progress.Total},
	})
}

type endRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session_id is required")
		return
	}

	if err := s.engine.End(r.Context(), req.SessionID); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type sessionResponse struct {
	SessionID string              `json:"session_id"`
	UserID    string              `json:"user_id"`
	RoleTitle string              `json:"role_title"`
	Status    string              `json:"status"`
	Progress  progressPayload     `json:"progress"`
	CreatedAt time.Time           `json:"created_at"`
	EndedAt   *time.Time          `json:"ended_at,omitempty"`
	Summary   *interview.Summary  `json:"summary,omitempty"`
	Plan      []question.Question `json:"plan"`
	Turns     []turnPayload       `json:"turns"`
}

type turnPayload struct {
	SlotIndex    int                `json:"slot_index"`
	Attempt      int                `json:"attempt"`
	QuestionID   string             `json:"question_id"`
	QuestionText string             `json:"question_text"`
	Answer       string             `json:"answer,omitempty"`
	Code         string             `json:"code,omitempty"`
	Skipped      bool               `json:"skipped,omitempty"`
	Overall      *float64           `json:"overall"`
	Rubric       map[string]float64 `json:"rubric,omitempty"`
	Notes        []string           `json:"notes,omitempty"`
	ScoreOutcome string             `json:"score_outcome"`
	Followup     string             `json:"followup,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	turns := make([]turnPayload, 0, len(snap.Turns))
	for _, t := range snap.Turns {
		turns = append(turns, turnPayload{
			SlotIndex:    t.SlotIndex,
			Attempt:      t.Attempt,
			QuestionID:   t.QuestionID,
			QuestionText: t.QuestionText,
			Answer:       t.Answer,
			Code:         t.Code,
			Skipped:      t.Skipped,
			Overall:      t.Overall,
			Rubric:       t.Rubric,
			Notes:        t.Notes,
			ScoreOutcome: t.ScoreOutcome,
			Followup:     t.Followup,
			CreatedAt:    t.CreatedAt,
		})
	}

	sess := snap.Session
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		RoleTitle: sess.Profile.RoleTitle,
		Status:    string(sess.Status),
		Progress:  progressPayload{SlotIndex: sess.SlotIndex, Total: sess.Plan.Total()},
		CreatedAt: sess.CreatedAt,
		EndedAt:   sess.EndedAt,
		Summary:   sess.Summary,
		Plan:      sess.Plan.Slots,
		Turns:     turns,
	})
}

type historyResponse struct {
	Sessions []historyPayload `json:"sessions"`
}

type historyPayload struct {
	SessionID    string     `json:"session_id"`
	RoleTitle    string     `json:"role_title"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Answered     int        `json:"answered"`
	AverageScore float64    `json:"average_score"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.History(r.Context(), r.PathValue("user_id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	sessions := make([]historyPayload, 0, len(entries))
	for _, e := range entries {
		sessions = append(sessions, historyPayload{
			SessionID:    e.SessionID,
			RoleTitle:    e.RoleTitle,
			Status:       string(e.Status),
			CreatedAt:    e.CreatedAt,
			EndedAt:      e.EndedAt,
			Answered:     e.Answered,
			AverageScore: e.AverageScore,
		})
	}
	writeJSON(w, http.StatusOK, historyResponse{Sessions: sessions})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps domain sentinels onto HTTP statuses and stable
// machine-readable error codes.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, question.ErrEmptyPlan):
		writeError(w, http.StatusBadRequest, "empty_plan", "no questions available for this profile")
	case errors.Is(err, question.ErrInvalidCounts):
		writeError(w, http.StatusBadRequest, "invalid_counts", "question counts must be non-negative")
	case errors.Is(err, interview.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session does not exist")
	case errors.Is(err, interview.ErrSessionBusy):
		writeError(w, http.StatusConflict, "session_busy", "another submission is in progress")
	case errors.Is(err, interview.ErrSessionNotActive):
		writeError(w, http.StatusConflict, "session_not_active", "session already finished")
	default:
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
