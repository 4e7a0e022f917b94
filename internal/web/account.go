package web

import (
	"errors"
	"net/http"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/imaging"
	"github.com/erazemk/lostfound/internal/store"
)

// AccountPage handles GET /account.
func (s *Server) AccountPage(w http.ResponseWriter, r *http.Request) {
	s.renderAccount(w, r, http.StatusOK, "")
}

func (s *Server) renderAccount(w http.ResponseWriter, r *http.Request, status int, problem string) {
	if s.accounts() == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	claims := GetWebClaims(r.Context())

	account, err := store.GetAccount(r.Context(), s.DB, claims.UserID)
	if err != nil {
		s.Logger.Error().Err(err).Msg("Failed to load account")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if account == nil {
		clearAuthCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	data := &AccountData{PageData: s.pageData(r, "Account"), Account: account}
	if problem != "" {
		data.Error = problem
		data.Success = ""
	}
	s.Templates.RenderStatus(w, status, "account.html", data)
}

// AvatarSubmit handles POST /account/avatar.
func (s *Server) AvatarSubmit(w http.ResponseWriter, r *http.Request) {
	accounts := s.accounts()
	if accounts == nil {
		http.NotFound(w, r)
		return
	}
	claims := GetWebClaims(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+(1<<20))
	file, _, err := r.FormFile("avatar")
	if err != nil {
		s.renderAccount(w, r, http.StatusBadRequest, "Choose an image to upload.")
		return
	}
	defer file.Close()

	if err := accounts.SetAvatar(r.Context(), claims.UserID, file); err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, imaging.ErrTooLarge) {
			s.renderAccount(w, r, http.StatusBadRequest, "Avatars must be JPEG, PNG or GIF images up to 4 MB.")
			return
		}
		s.Logger.Error().Err(err).Msg("Failed to store avatar")
		s.renderAccount(w, r, http.StatusBadRequest, "Could not process the image.")
		return
	}

	// The session carries the photo URL, so swap in a fresh token.
	if err := s.refreshSession(w, r, claims); err != nil {
		s.Logger.Error().Err(err).Msg("Failed to refresh session")
	}
	http.Redirect(w, r, "/account?msg=avatar", http.StatusSeeOther)
}

// PasswordSubmit handles POST /account/password.
func (s *Server) PasswordSubmit(w http.ResponseWriter, r *http.Request) {
	accounts := s.accounts()
	if accounts == nil {
		http.NotFound(w, r)
		return
	}
	claims := GetWebClaims(r.Context())

	current := r.FormValue("current")
	next := r.FormValue("new")
	if next != r.FormValue("confirm") {
		s.renderAccount(w, r, http.StatusBadRequest, "The new passwords do not match.")
		return
	}

	switch err := accounts.ChangePassword(r.Context(), claims.UserID, current, next); {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.renderAccount(w, r, http.StatusBadRequest, "The current password is incorrect.")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		s.renderAccount(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.Logger.Error().Err(err).Msg("Failed to change password")
		s.renderAccount(w, r, http.StatusInternalServerError, "Could not change the password.")
		return
	}

	http.Redirect(w, r, "/account?msg=password", http.StatusSeeOther)
}

// AvatarGet handles GET /avatars/{id}.
func (s *Server) AvatarGet(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetAvatar(r.Context(), s.DB, r.PathValue("id"))
	if err != nil {
		s.Logger.Error().Err(err).Msg("Failed to get avatar")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(data); err != nil {
		s.Logger.Debug().Err(err).Msg("Failed to write avatar response")
	}
}

func (s *Server) refreshSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) error {
	account, err := store.GetAccount(r.Context(), s.DB, claims.UserID)
	if err != nil || account == nil {
		return err
	}
	token, err := s.Sessions.Issue(account.Session())
	if err != nil {
		return err
	}
	if err := s.Sessions.Revoke(r.Context(), claims); err != nil {
		return err
	}
	setAuthCookie(w, token)
	return nil
}
