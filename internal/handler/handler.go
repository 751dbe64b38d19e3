// Package handler exposes the JSON API: auth, exam delivery and the admin
// console. Every route is a stateless request handler over the store; the
// middleware chain (bearer token, role, access gate) is assembled here.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/prepstack/prepstack/internal/access"
	appI18n "github.com/prepstack/prepstack/internal/i18n"
	"github.com/prepstack/prepstack/internal/model"
	"github.com/prepstack/prepstack/internal/store"
	"github.com/prepstack/prepstack/internal/token"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	tokens   *token.Service
	validate *validator.Validate
	now      func() time.Time // injectable clock for tests
}

// New creates a new Handler.
func New(s *store.Store, tokens *token.Service) *Handler {
	return &Handler{
		store:    s,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Routes registers all API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.handleRegister)
			r.Post("/login", h.handleLogin)
			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Get("/profile", h.handleProfile)
				r.Post("/unlock", h.handleUnlock)
			})
		})

		r.Route("/exams", func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Group(func(r chi.Router) {
				r.Use(h.requireAccess)
				r.Get("/types", h.handleExamTypes)
				r.Get("/subjects", h.handleSubjects)
				r.Get("/years", h.handleYears)
				r.Post("/start", h.handleStartExam)
			})
			r.Post("/submit-answer", h.handleSubmitAnswer)
			r.Post("/complete", h.handleCompleteExam)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAuth, requireRole(model.UserRoleAdmin))
			r.Post("/codes", h.handleGenerateCodes)
			r.Get("/codes", h.handleListCodes)
			r.Delete("/codes/{codeID}", h.handleDeleteCode)
			r.Post("/questions", h.handleUploadQuestions)
			r.Delete("/questions/{questionID}", h.handleDeleteQuestion)
			r.Get("/users", h.handleListUsers)
			r.Post("/users/{userID}/premium", h.handleGrantPremium)
			r.Delete("/users/{userID}/premium", h.handleRevokePremium)
			r.Get("/statistics", h.handleStatistics)
			r.Get("/recent-activity", h.handleRecentActivity)
		})
	})
}

// respondJSON writes a JSON response body with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError writes the uniform error body {"error": message}.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// internalError logs the underlying failure and responds with an opaque 500.
func internalError(w http.ResponseWriter, what string, err error) {
	slog.Error(what, "error", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

// decode parses and validates a JSON request body into dst.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("invalid request body")
		}
		var fields []string
		for _, fe := range err.(validator.ValidationErrors) {
			fields = append(fields, fe.Field())
		}
		return fmt.Errorf("missing or invalid fields: %s", strings.Join(fields, ", "))
	}
	return nil
}

// requireAuth checks the bearer token and loads the authenticated user into
// the request context. Missing and invalid tokens get distinct messages but
// the same status, matching the rest of the 401 class.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || raw == "" {
			respondError(w, http.StatusUnauthorized, "no token provided")
			return
		}

		claims, err := h.tokens.Verify(raw)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := h.store.GetUserByID(claims.UserID)
		if err != nil {
			internalError(w, "failed to load user", err)
			return
		}
		if user == nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				respondError(w, http.StatusUnauthorized, "no token provided")
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, http.StatusForbidden, "admin access required")
		})
	}
}

// requireAccess gates exam content behind an active trial or premium window.
func (h *Handler) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := model.UserFromContext(r.Context())
		if user == nil {
			respondError(w, http.StatusUnauthorized, "no token provided")
			return
		}
		a := access.Evaluate(*user, h.now())
		if !a.HasAccess {
			respondError(w, http.StatusForbidden, appI18n.T(r.Context(), "TrialExpired"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
