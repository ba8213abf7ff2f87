package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fjod/cartsync/internal/auth"
	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/pkg/logger"
)

type Authenticator interface {
	Authenticate(email, password string) error
}

type TokenIssuer interface {
	Issue(email string) (string, error)
}

type AuthHandler struct {
	users  Authenticator
	tokens TokenIssuer
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewAuthHandler(users Authenticator, tokens TokenIssuer, ttl time.Duration, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		ttl:    ttl,
		log:    log,
	}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponseDTO struct {
	Token     string `json:"token"`
	UserEmail string `json:"user_email"`
}

// LoginStatus answers 200 for a signed-in caller and 401 otherwise; both carry a body.
func (h *AuthHandler) LoginStatus(w http.ResponseWriter, r *http.Request) {
	email := getUserEmailFromContext(r.Context())
	if email == "" {
		respondJSON(w, http.StatusUnauthorized, domain.LoginStatus{LoggedIn: false})
		return
	}
	respondJSON(w, http.StatusOK, domain.LoginStatus{LoggedIn: true, UserEmail: email})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "missing_data", "email and password are required")
		return
	}

	if err := h.users.Authenticate(req.Email, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		logger.FromContext(r.Context(), h.log).WithError(err).Error("authenticate failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	token, err := h.tokens.Issue(req.Email)
	if err != nil {
		logger.FromContext(r.Context(), h.log).WithError(err).Error("issue token failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, LoginResponseDTO{Token: token, UserEmail: req.Email})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, domain.LoginStatus{LoggedIn: false})
}
