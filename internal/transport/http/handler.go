package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// Handler exposes the quiz session use cases as a JSON API. It is thin glue:
// decode, delegate, map errors to status codes.
type Handler struct {
	service *app.SessionService
}

func NewHandler(service *app.SessionService) *Handler {
	return &Handler{service: service}
}

// Register mounts all session routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", h.startSession)
	mux.HandleFunc("GET /sessions/{id}", h.getSession)
	mux.HandleFunc("POST /sessions/{id}/answers", h.submitAnswer)
	mux.HandleFunc("POST /sessions/{id}/complete", h.completeSession)
	mux.HandleFunc("GET /sessions/{id}/results", h.getResults)
}

type startSessionRequest struct {
	ExamType                   string   `json:"examType"`
	Category                   string   `json:"category"`
	QuestionCount              int      `json:"questionCount"`
	TimeLimitSeconds           int      `json:"timeLimitSeconds"`
	Difficulty                 string   `json:"difficulty"`
	EnforceSequentialAnswering bool     `json:"enforceSequentialAnswering"`
	RequireAllAnswers          bool     `json:"requireAllAnswers"`
	DisableAutoComplete        bool     `json:"disableAutoComplete"`
	QuestionIDs                []string `json:"questionIds"`
}

type submitAnswerRequest struct {
	QuestionID        string   `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
}

type sessionResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	State         string     `json:"state"`
	StartedAt     time.Time  `json:"startedAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	QuestionIDs   []string   `json:"questionIds"`
	AnsweredCount int        `json:"answeredCount"`
	Version       int64      `json:"version"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}
	questionIDs := make([]domain.QuestionID, 0, len(req.QuestionIDs))
	for _, id := range req.QuestionIDs {
		questionIDs = append(questionIDs, domain.QuestionID(id))
	}
	session, err := h.service.StartSession(r.Context(), userID, domain.QuizConfigProps{
		ExamType:                   domain.ExamType(req.ExamType),
		Category:                   domain.Category(req.Category),
		QuestionCount:              req.QuestionCount,
		TimeLimitSeconds:           req.TimeLimitSeconds,
		Difficulty:                 domain.Difficulty(req.Difficulty),
		EnforceSequentialAnswering: req.EnforceSequentialAnswering,
		RequireAllAnswers:          req.RequireAllAnswers,
		DisableAutoComplete:        req.DisableAutoComplete,
	}, questionIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	session, err := h.service.GetSession(r.Context(), domain.QuizSessionID(r.PathValue("id")), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}
	selected := make([]domain.OptionID, 0, len(req.SelectedOptionIDs))
	for _, id := range req.SelectedOptionIDs {
		selected = append(selected, domain.OptionID(id))
	}
	session, err := h.service.SubmitAnswer(r.Context(),
		domain.QuizSessionID(r.PathValue("id")), userID,
		domain.QuestionID(req.QuestionID), selected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) completeSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	session, err := h.service.CompleteSession(r.Context(), domain.QuizSessionID(r.PathValue("id")), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) getResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	results, err := h.service.GetResults(r.Context(), domain.QuizSessionID(r.PathValue("id")), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// requireUser reads the authenticated user id. Authentication itself happens
// upstream; this layer only consumes the identity header it sets.
func requireUser(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Code: "UNAUTHENTICATED", Message: "missing X-User-ID header"})
		return "", false
	}
	return domain.UserID(userID), true
}

func toSessionResponse(session *domain.QuizSession) sessionResponse {
	ids := session.QuestionIDs()
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	return sessionResponse{
		ID:            session.ID().String(),
		UserID:        session.UserID().String(),
		State:         string(session.State()),
		StartedAt:     session.StartedAt(),
		ExpiresAt:     session.ExpiresAt(),
		CompletedAt:   session.CompletedAt(),
		QuestionIDs:   raw,
		AnsweredCount: session.AnsweredQuestionCount(),
		Version:       session.Version(),
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		writeJSON(w, status, errorResponse{Code: code, Message: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// statusForError maps domain errors to status codes: validation 422, state
// conflicts and optimistic-lock races 409, missing resources 404.
func statusForError(err error) (int, string) {
	var (
		countErr   domain.InvalidQuestionCountError
		limitErr   domain.InvalidTimeLimitError
		answerErr  domain.InvalidAnswerError
		optionsErr domain.InvalidOptionsError
		orderErr   domain.OutOfOrderAnswerError
	)
	switch {
	case errors.As(err, &countErr):
		return http.StatusUnprocessableEntity, "INVALID_QUESTION_COUNT"
	case errors.As(err, &limitErr):
		return http.StatusUnprocessableEntity, "INVALID_TIME_LIMIT"
	case errors.As(err, &answerErr):
		return http.StatusUnprocessableEntity, "INVALID_ANSWER"
	case errors.As(err, &optionsErr):
		return http.StatusUnprocessableEntity, "INVALID_OPTIONS"
	case errors.As(err, &orderErr):
		return http.StatusConflict, "OUT_OF_ORDER_ANSWER"
	case errors.Is(err, domain.ErrQuestionNotInQuiz):
		return http.StatusUnprocessableEntity, "QUESTION_NOT_IN_QUIZ"
	case errors.Is(err, domain.ErrQuestionReferenceMismatch):
		return http.StatusUnprocessableEntity, "QUESTION_REFERENCE_MISMATCH"
	case errors.Is(err, domain.ErrQuestionAlreadyAnswered):
		return http.StatusConflict, "QUESTION_ALREADY_ANSWERED"
	case errors.Is(err, domain.ErrQuizNotInProgress):
		return http.StatusConflict, "QUIZ_NOT_IN_PROGRESS"
	case errors.Is(err, domain.ErrQuizExpired):
		return http.StatusConflict, "QUIZ_EXPIRED"
	case errors.Is(err, domain.ErrQuizNotExpired):
		return http.StatusConflict, "QUIZ_NOT_EXPIRED"
	case errors.Is(err, domain.ErrIncompleteAnswers):
		return http.StatusConflict, "INCOMPLETE_ANSWERS"
	case errors.Is(err, domain.ErrActiveSessionExists):
		return http.StatusConflict, "ACTIVE_SESSION_EXISTS"
	case errors.Is(err, domain.ErrSessionNotFinished):
		return http.StatusConflict, "SESSION_NOT_FINISHED"
	case errors.Is(err, domain.ErrConcurrentModification):
		// Retryable: the client should reload the session and try again.
		return http.StatusConflict, "CONCURRENT_MODIFICATION"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound, "QUESTION_NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
