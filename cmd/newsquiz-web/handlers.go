package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/matthewjhunter/newsquiz"
	"github.com/matthewjhunter/newsquiz/internal/logger"
)

// service is the slice of the engine the HTTP layer needs.
type service interface {
	GetTodaySelection(ctx context.Context) (*newsquiz.TodaySelection, error)
	GetItemQuizzes(ctx context.Context, itemID int64) ([]newsquiz.DetailQuiz, error)
	GetDailyQuizzes(ctx context.Context) ([]newsquiz.DailyQuiz, error)
	GetFactQuiz(ctx context.Context, itemID int64) (*newsquiz.FactQuiz, error)
	CreateMember(ctx context.Context, name string) (*newsquiz.Member, error)
	GetMember(ctx context.Context, id int64) (*newsquiz.Member, error)
	GetAnswerHistory(ctx context.Context, memberID int64) ([]newsquiz.AnswerRecord, error)
	TopMembers(ctx context.Context) ([]newsquiz.Member, error)
	SubmitAnswer(ctx context.Context, a newsquiz.Answer) (*newsquiz.AnswerResult, error)

	RunDailyPipeline(ctx context.Context) (*newsquiz.PipelineResult, error)
	RegenerateQuizzes(ctx context.Context, itemID int64) ([]newsquiz.DetailQuiz, error)
	SynthesizeToday(ctx context.Context) (*newsquiz.SyntheticResult, error)
	SynthesizeBatch(ctx context.Context, itemIDs []int64) *newsquiz.SyntheticResult
}

// handlers holds dependencies for all HTTP handler methods.
type handlers struct {
	svc service
	log *logger.Logger
}

// --- Response types ---

// Players never see the correct answer before submitting.

type quizView struct {
	ID       int64     `json:"id"`
	Question string    `json:"question"`
	Options  [3]string `json:"options"`
}

type dailyQuizView struct {
	ID               int64    `json:"id"`
	TodaySelectionID int64    `json:"today_selection_id"`
	Quiz             quizView `json:"quiz"`
}

type factQuizView struct {
	ID           int64  `json:"id"`
	SourceItemID int64  `json:"source_item_id"`
	Question     string `json:"question"`
	Real         string `json:"real"`
	Synthetic    string `json:"synthetic"`
}

func toQuizViews(quizzes []newsquiz.DetailQuiz) []quizView {
	out := make([]quizView, len(quizzes))
	for i, q := range quizzes {
		out[i] = quizView{ID: q.ID, Question: q.Question, Options: q.Options}
	}
	return out
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps engine errors onto status codes.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case newsquiz.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, newsquiz.ErrInvalidAnswer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, newsquiz.ErrAlreadyAnswered), errors.Is(err, newsquiz.ErrInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// --- Player handlers ---

func (h *handlers) handleToday(w http.ResponseWriter, r *http.Request) {
	sel, err := h.svc.GetTodaySelection(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (h *handlers) handleItemQuizzes(w http.ResponseWriter, r *http.Request) {
	itemID := idFromRequest(r, "itemID")
	if itemID < 0 {
		writeError(w, http.StatusBadRequest, "invalid item ID")
		return
	}
	quizzes, err := h.svc.GetItemQuizzes(r.Context(), itemID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuizViews(quizzes))
}

func (h *handlers) handleDailyQuizzes(w http.ResponseWriter, r *http.Request) {
	daily, err := h.svc.GetDailyQuizzes(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]dailyQuizView, len(daily))
	for i, d := range daily {
		out[i] = dailyQuizView{
			ID:               d.ID,
			TodaySelectionID: d.TodaySelectionID,
			Quiz:             quizView{ID: d.Quiz.ID, Question: d.Quiz.Question, Options: d.Quiz.Options},
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) handleFactQuiz(w http.ResponseWriter, r *http.Request) {
	itemID := idFromRequest(r, "itemID")
	if itemID < 0 {
		writeError(w, http.StatusBadRequest, "invalid item ID")
		return
	}
	fq, err := h.svc.GetFactQuiz(r.Context(), itemID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, factQuizView{
		ID:           fq.ID,
		SourceItemID: fq.SourceItemID,
		Question:     fq.Question,
		Real:         fq.Real,
		Synthetic:    fq.Synthetic,
	})
}

func (h *handlers) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	m, err := h.svc.CreateMember(r.Context(), name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *handlers) handleGetMember(w http.ResponseWriter, r *http.Request) {
	memberID := idFromRequest(r, "memberID")
	if memberID < 0 {
		writeError(w, http.StatusBadRequest, "invalid member ID")
		return
	}
	m, err := h.svc.GetMember(r.Context(), memberID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handlers) handleAnswerHistory(w http.ResponseWriter, r *http.Request) {
	memberID := idFromRequest(r, "memberID")
	if memberID < 0 {
		writeError(w, http.StatusBadRequest, "invalid member ID")
		return
	}
	history, err := h.svc.GetAnswerHistory(r.Context(), memberID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if history == nil {
		history = []newsquiz.AnswerRecord{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *handlers) handleTopMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.TopMembers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if members == nil {
		members = []newsquiz.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *handlers) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var a newsquiz.Answer
	if err := decodeBody(w, r, &a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if a.MemberID <= 0 || a.QuizID <= 0 {
		writeError(w, http.StatusBadRequest, "member_id and quiz_id are required")
		return
	}
	result, err := h.svc.SubmitAnswer(r.Context(), a)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Admin handlers ---

// Admin runs outlive the request: a client hanging up must not abort a
// half-finished pipeline.

func (h *handlers) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RunDailyPipeline(context.WithoutCancel(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleRegenerateQuizzes(w http.ResponseWriter, r *http.Request) {
	itemID := idFromRequest(r, "itemID")
	if itemID < 0 {
		writeError(w, http.StatusBadRequest, "invalid item ID")
		return
	}
	quizzes, err := h.svc.RegenerateQuizzes(context.WithoutCancel(r.Context()), itemID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

// handleSynthesize accepts an optional {"item_ids": [...]}; an empty body
// synthesizes everything stored today.
func (h *handlers) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemIDs []int64 `json:"item_ids"`
	}
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := context.WithoutCancel(r.Context())

	if len(req.ItemIDs) == 0 {
		result, err := h.svc.SynthesizeToday(ctx)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}
	for _, id := range req.ItemIDs {
		if id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid item ID")
			return
		}
	}
	writeJSON(w, http.StatusOK, h.svc.SynthesizeBatch(ctx, req.ItemIDs))
}
