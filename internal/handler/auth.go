package handler

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/prepstack/prepstack/internal/access"
	appI18n "github.com/prepstack/prepstack/internal/i18n"
	"github.com/prepstack/prepstack/internal/model"
	"github.com/prepstack/prepstack/internal/store"
)

type registerRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type unlockRequest struct {
	Code string `json:"code" validate:"required"`
}

type authResponse struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    model.User `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Emails are matched case-insensitively: normalize once at the door and
	// the unique index does the rest.
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		internalError(w, "failed to hash password", err)
		return
	}

	u := model.User{
		FullName:         req.FullName,
		Email:            email,
		Phone:            req.Phone,
		PasswordHash:     string(hash),
		Role:             model.UserRoleStudent,
		RegistrationDate: h.now(),
	}
	id, err := h.store.CreateUser(u)
	if errors.Is(err, store.ErrEmailTaken) {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "EmailTaken"))
		return
	}
	if err != nil {
		internalError(w, "failed to create user", err)
		return
	}
	u.ID = id

	tok, err := h.tokens.Issue(u)
	if err != nil {
		internalError(w, "failed to issue token", err)
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		Message: appI18n.Td(r.Context(), "RegistrationSuccess", map[string]any{"Days": model.TrialDays}),
		Token:   tok,
		User:    u,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.GetUserByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		internalError(w, "failed to load user", err)
		return
	}
	// Unknown email and wrong password produce the identical response, so a
	// caller cannot probe which addresses are registered. The dummy compare
	// keeps the two paths in the same timing class.
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "InvalidCredentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "InvalidCredentials"))
		return
	}

	tok, err := h.tokens.Issue(*user)
	if err != nil {
		internalError(w, "failed to issue token", err)
		return
	}

	respondJSON(w, http.StatusOK, authResponse{
		Message: appI18n.T(r.Context(), "LoginSuccess"),
		Token:   tok,
		User:    *user,
	})
}

// dummyHash is a bcrypt hash of an unguessable value, compared against when
// the email is unknown.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("prepstack-login-timing-pad"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	respondJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"access": access.Evaluate(*user, h.now()),
	})
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user := model.UserFromContext(r.Context())

	expiresAt, err := h.store.RedeemCode(strings.TrimSpace(req.Code), user.ID, h.now())
	if errors.Is(err, store.ErrCodeInvalid) {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "InvalidUnlockCode"))
		return
	}
	if err != nil {
		internalError(w, "failed to redeem code", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":          appI18n.T(r.Context(), "UnlockSuccess"),
		"premiumExpiresAt": expiresAt,
	})
}
