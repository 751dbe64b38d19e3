package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appI18n "github.com/prepstack/prepstack/internal/i18n"
	"github.com/prepstack/prepstack/internal/model"
	"github.com/prepstack/prepstack/internal/store"
)

type generateCodesRequest struct {
	Duration int `json:"duration" validate:"omitempty,min=1,max=120"`
	Quantity int `json:"quantity" validate:"omitempty,min=1"`
}

type uploadQuestionsRequest struct {
	Questions []model.QuestionImport `json:"questions" validate:"required,min=1,dive"`
}

type grantPremiumRequest struct {
	Months int `json:"months" validate:"omitempty,min=1,max=120"`
}

// newCodeString mints an unlock code from a v4 UUID: crypto-random, so
// collisions are negligible, and the unique index is the backstop anyway.
func newCodeString() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "CBT-" + raw[:12]
}

func (h *Handler) handleGenerateCodes(w http.ResponseWriter, r *http.Request) {
	var req generateCodesRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Duration == 0 {
		req.Duration = model.DefaultPremiumMonths
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity > model.MaxCodesPerBatch {
		respondError(w, http.StatusBadRequest,
			"maximum "+strconv.Itoa(model.MaxCodesPerBatch)+" codes at once")
		return
	}

	admin := model.UserFromContext(r.Context())
	codes := make([]string, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		code, err := h.createCodeRetrying(admin.ID, req.Duration)
		if err != nil {
			internalError(w, "failed to generate code", err)
			return
		}
		codes = append(codes, code)
	}

	slog.Info("generated unlock codes", "count", len(codes), "months", req.Duration, "admin_id", admin.ID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": appI18n.T(r.Context(), "CodesGenerated"),
		"codes":   codes,
	})
}

// createCodeRetrying inserts a fresh code, regenerating on the (practically
// impossible) collision with an existing one.
func (h *Handler) createCodeRetrying(adminID int64, months int) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		code := newCodeString()
		_, err := h.store.CreateCode(model.UnlockCode{
			Code:        code,
			Duration:    months,
			GeneratedBy: adminID,
			GeneratedAt: h.now(),
		})
		if errors.Is(err, store.ErrCodeExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}
	return "", store.ErrCodeExists
}

func (h *Handler) handleListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.store.ListCodes()
	if err != nil {
		internalError(w, "failed to list codes", err)
		return
	}
	if codes == nil {
		codes = []model.UnlockCode{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

func (h *Handler) handleDeleteCode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "codeID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid code ID")
		return
	}
	if err := h.store.DeleteUnusedCode(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "code not found or already used")
			return
		}
		internalError(w, "failed to delete code", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "CodeDeleted")})
}

func (h *Handler) handleUploadQuestions(w http.ResponseWriter, r *http.Request) {
	var req uploadQuestionsRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	questions := make([]model.Question, len(req.Questions))
	for i, qi := range req.Questions {
		questions[i] = qi.Question()
	}

	count, err := h.store.InsertQuestions(questions)
	if err != nil {
		internalError(w, "failed to insert questions", err)
		return
	}

	slog.Info("uploaded questions", "count", count)
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": appI18n.T(r.Context(), "QuestionsUploaded"),
		"count":   count,
	})
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid question ID")
		return
	}
	if err := h.store.DeleteQuestion(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "question not found")
			return
		}
		internalError(w, "failed to delete question", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "QuestionDeleted")})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		internalError(w, "failed to list users", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) handleGrantPremium(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	var req grantPremiumRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Months == 0 {
		req.Months = model.DefaultPremiumMonths
	}

	expiresAt := h.now().AddDate(0, req.Months, 0)
	if err := h.store.GrantPremium(userID, expiresAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		internalError(w, "failed to grant premium", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":   appI18n.T(r.Context(), "PremiumGranted"),
		"expiresAt": expiresAt,
	})
}

func (h *Handler) handleRevokePremium(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	if err := h.store.RevokePremium(userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		internalError(w, "failed to revoke premium", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "PremiumRevoked")})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Statistics()
	if err != nil {
		internalError(w, "failed to compute statistics", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.RecentSessions(10)
	if err != nil {
		internalError(w, "failed to list recent sessions", err)
		return
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
