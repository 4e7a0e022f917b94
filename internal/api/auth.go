package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/model"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Sessions *auth.Sessions
	Provider auth.Provider
	Logger   zerolog.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string         `json:"token"`
	Session *model.Session `json:"session"`
}

type sessionResponse struct {
	Session             *model.Session `json:"session"`
	Provider            string         `json:"provider"`
	RequiresCredentials bool           `json:"requiresCredentials"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if h.Provider.RequiresCredentials() {
		if err := decodeJSON(w, r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			jsonError(w, http.StatusBadRequest, "email and password required")
			return
		}
	}

	sess, err := h.Provider.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.Logger.Error().Err(err).Msg("Sign-in failed")
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := h.Sessions.Issue(sess)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to issue token")
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	jsonResponse(w, http.StatusOK, loginResponse{Token: token, Session: sess})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.Sessions.Revoke(r.Context(), claims); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to revoke token")
		jsonError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}

	h.Logger.Info().Str("user_id", claims.UserID).Msg("Signed out")
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, sessionResponse{
		Session:             GetSession(r.Context()),
		Provider:            h.Provider.Name(),
		RequiresCredentials: h.Provider.RequiresCredentials(),
	})
}
