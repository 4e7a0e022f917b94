package web

import (
	"errors"
	"net/http"

	"github.com/erazemk/lostfound/internal/auth"
)

// LoginData is the data for the login page.
type LoginData struct {
	PageData
	RequiresCredentials bool
	Email               string
}

func (s *Server) loginData(r *http.Request) *LoginData {
	return &LoginData{
		PageData:            s.pageData(r, "Sign in"),
		RequiresCredentials: s.Provider.RequiresCredentials(),
	}
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "login.html", s.loginData(r))
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	data := s.loginData(r)
	data.Email = email

	if s.Provider.RequiresCredentials() && (email == "" || password == "") {
		data.Error = "Enter your email and password."
		s.Templates.RenderStatus(w, http.StatusBadRequest, "login.html", data)
		return
	}

	sess, err := s.Provider.SignIn(r.Context(), email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		data.Error = "Sign-in failed: wrong email or password."
		s.Templates.RenderStatus(w, http.StatusUnauthorized, "login.html", data)
		return
	}
	if err != nil {
		s.Logger.Error().Err(err).Msg("Sign-in failed")
		data.Error = "Sign-in failed"
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "login.html", data)
		return
	}

	token, err := s.Sessions.Issue(sess)
	if err != nil {
		s.Logger.Error().Err(err).Msg("Failed to issue session token")
		data.Error = "Sign-in failed"
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "login.html", data)
		return
	}

	setAuthCookie(w, token)
	redirectBoard(w, r, "", "msg", "signed-in")
}

// Logout handles POST /logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if claims := GetWebClaims(r.Context()); claims != nil {
		if err := s.Sessions.Revoke(r.Context(), claims); err != nil {
			s.Logger.Error().Err(err).Msg("Failed to revoke session token")
		}
	}
	clearAuthCookie(w)
	redirectBoard(w, r, "", "msg", "signed-out")
}
