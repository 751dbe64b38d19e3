package handler

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"

	appI18n "github.com/prepstack/prepstack/internal/i18n"
	"github.com/prepstack/prepstack/internal/model"
	"github.com/prepstack/prepstack/internal/store"
)

type startExamRequest struct {
	ExamType          string `json:"examType" validate:"required"`
	Subject           string `json:"subject" validate:"required"`
	Year              int    `json:"year"`
	NumberOfQuestions int    `json:"numberOfQuestions" validate:"omitempty,min=1"`
}

type submitAnswerRequest struct {
	SessionID       int64  `json:"sessionId" validate:"required"`
	QuestionID      int64  `json:"questionId" validate:"required"`
	SelectedAnswer  string `json:"selectedAnswer" validate:"required"`
	MarkedForReview bool   `json:"markedForReview"`
}

type completeExamRequest struct {
	SessionID int64 `json:"sessionId" validate:"required"`
}

func (h *Handler) handleExamTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ExamTypes()
	if err != nil {
		internalError(w, "failed to list exam types", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"examTypes": types})
}

func (h *Handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	examType := r.URL.Query().Get("examType")
	if examType == "" {
		respondError(w, http.StatusBadRequest, "examType is required")
		return
	}
	subjects, err := h.store.Subjects(examType)
	if err != nil {
		internalError(w, "failed to list subjects", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

func (h *Handler) handleYears(w http.ResponseWriter, r *http.Request) {
	examType := r.URL.Query().Get("examType")
	subject := r.URL.Query().Get("subject")
	if examType == "" || subject == "" {
		respondError(w, http.StatusBadRequest, "examType and subject are required")
		return
	}
	years, err := h.store.Years(examType, subject)
	if err != nil {
		internalError(w, "failed to list years", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"years": years})
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	var req startExamRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user := model.UserFromContext(r.Context())

	questions, err := h.store.ListQuestionsFiltered(req.ExamType, req.Subject, req.Year)
	if err != nil {
		internalError(w, "failed to list questions", err)
		return
	}
	if len(questions) == 0 {
		respondError(w, http.StatusNotFound, "no questions found for this selection")
		return
	}

	// Uniform random permutation of the filtered catalog, truncated to the
	// requested count.
	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	count := req.NumberOfQuestions
	if count <= 0 {
		count = model.DefaultQuestionCount
	}
	if count < len(questions) {
		questions = questions[:count]
	}

	duration := model.ExamDuration(req.ExamType)
	sessionID, err := h.store.CreateSession(model.ExamSession{
		UserID:         user.ID,
		ExamType:       req.ExamType,
		Subject:        req.Subject,
		Year:           req.Year,
		StartTime:      h.now(),
		Duration:       duration,
		TotalQuestions: len(questions),
	})
	if err != nil {
		internalError(w, "failed to create session", err)
		return
	}

	public := make([]model.ExamQuestion, len(questions))
	for i, q := range questions {
		public[i] = q.Public()
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"questions": public,
		"duration":  duration,
		"examType":  req.ExamType,
		"subject":   req.Subject,
	})
}

// loadOwnSession fetches a session and checks it belongs to the caller.
func (h *Handler) loadOwnSession(w http.ResponseWriter, r *http.Request, sessionID int64) *model.ExamSession {
	user := model.UserFromContext(r.Context())
	sess, err := h.store.GetSession(sessionID)
	if err != nil {
		internalError(w, "failed to load session", err)
		return nil
	}
	if sess == nil || sess.UserID != user.ID {
		respondError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return sess
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := h.loadOwnSession(w, r, req.SessionID)
	if sess == nil {
		return
	}
	if sess.IsCompleted {
		respondError(w, http.StatusBadRequest, "session already completed")
		return
	}

	question, err := h.store.GetQuestion(req.QuestionID)
	if err != nil {
		internalError(w, "failed to load question", err)
		return
	}
	if question == nil {
		respondError(w, http.StatusNotFound, "question not found")
		return
	}

	// Correctness is fixed at submission time against the stored answer.
	isCorrect := question.CorrectAnswer == req.SelectedAnswer

	if err := h.store.UpsertAnswer(model.ExamAnswer{
		SessionID:       req.SessionID,
		QuestionID:      req.QuestionID,
		SelectedAnswer:  req.SelectedAnswer,
		IsCorrect:       isCorrect,
		MarkedForReview: req.MarkedForReview,
	}); err != nil {
		internalError(w, "failed to record answer", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":   appI18n.T(r.Context(), "AnswerSubmitted"),
		"isCorrect": isCorrect,
	})
}

func (h *Handler) handleCompleteExam(w http.ResponseWriter, r *http.Request) {
	var req completeExamRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := h.loadOwnSession(w, r, req.SessionID)
	if sess == nil {
		return
	}

	score, total, err := h.store.CompleteSession(req.SessionID, h.now())
	switch {
	case errors.Is(err, store.ErrNoAnswers):
		respondError(w, http.StatusBadRequest, "no answers recorded for this session")
		return
	case errors.Is(err, store.ErrSessionCompleted):
		respondError(w, http.StatusBadRequest, "session already completed")
		return
	case err != nil:
		internalError(w, "failed to complete session", err)
		return
	}

	results, err := h.store.SessionResults(req.SessionID)
	if err != nil {
		internalError(w, "failed to load results", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"score":          score,
		"totalQuestions": total,
		"percentage":     fmt.Sprintf("%.2f", float64(score)/float64(total)*100),
		"results":        results,
	})
}
