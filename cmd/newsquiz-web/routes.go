package main

import (
	"net/http"

	"github.com/matthewjhunter/newsquiz/internal/logger"
)

// newRouter sets up all routes using Go 1.22+ enhanced routing.
func newRouter(svc service, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{svc: svc, log: log}

	// Player API
	mux.HandleFunc("GET /api/today", h.handleToday)
	mux.HandleFunc("GET /api/items/{itemID}/quizzes", h.handleItemQuizzes)
	mux.HandleFunc("GET /api/daily-quizzes", h.handleDailyQuizzes)
	mux.HandleFunc("GET /api/items/{itemID}/fact-quiz", h.handleFactQuiz)
	mux.HandleFunc("POST /api/members", h.handleCreateMember)
	mux.HandleFunc("GET /api/members/top", h.handleTopMembers)
	mux.HandleFunc("GET /api/members/{memberID}", h.handleGetMember)
	mux.HandleFunc("GET /api/members/{memberID}/answers", h.handleAnswerHistory)
	mux.HandleFunc("POST /api/answers", h.handleSubmitAnswer)

	// Admin triggers
	mux.HandleFunc("POST /admin/pipeline", h.handleRunPipeline)
	mux.HandleFunc("POST /admin/items/{itemID}/quizzes", h.handleRegenerateQuizzes)
	mux.HandleFunc("POST /admin/synthetic", h.handleSynthesize)

	return logging(log, recovery(log, mux))
}
