package web

import (
	"database/sql"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/board"
	"github.com/erazemk/lostfound/internal/live"
	"github.com/erazemk/lostfound/internal/model"
)

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Board     *board.Board
	Sessions  *auth.Sessions
	Provider  auth.Provider
	Hub       *live.Hub
	Templates *Templates
	LocalMode bool
	Logger    zerolog.Logger
}

// accounts returns the account provider, or nil when sign-in is guest only.
func (s *Server) accounts() *auth.Accounts {
	a, _ := s.Provider.(*auth.Accounts)
	return a
}

func (s *Server) pageData(r *http.Request, title string) PageData {
	q := r.URL.Query()
	return PageData{
		Title:     title,
		Session:   GetWebSession(r.Context()),
		Provider:  s.Provider.Name(),
		LocalMode: s.LocalMode,
		Success:   s.noticeText(q.Get("msg")),
		Error:     problemText(q.Get("err")),
	}
}

// Notice codes carried in the msg query parameter after a redirect.
var notices = map[string][2]string{
	// code: {remote text, local text}
	"submitted":  {"Item submitted", "Item saved locally"},
	"returned":   {"Marked returned", "Marked returned (local)"},
	"deleted":    {"Item deleted", "Deleted (local)"},
	"signed-in":  {"Signed in", "Local mode: signed in as guest"},
	"signed-out": {"Signed out", "Signed out (local)"},
	"avatar":     {"Avatar updated", "Avatar updated"},
	"password":   {"Password changed", "Password changed"},
}

// Problem codes carried in the err query parameter after a redirect.
var problems = map[string]string{
	"not-authorized":   "You are not authorized.",
	"already-returned": "This item is already marked returned.",
	"not-found":        "Item not found.",
	"backend":          "The item store is unavailable. Please try again.",
}

func (s *Server) noticeText(code string) string {
	texts, ok := notices[code]
	if !ok {
		return ""
	}
	if s.LocalMode {
		return texts[1]
	}
	return texts[0]
}

func problemText(code string) string {
	return problems[code]
}

// redirectBoard sends the browser back to the board with a one-shot message.
func redirectBoard(w http.ResponseWriter, r *http.Request, filter model.Filter, key, code string) {
	q := url.Values{}
	if filter != "" && filter != model.FilterAll {
		q.Set("filter", string(filter))
	}
	if code != "" {
		q.Set(key, code)
	}
	target := "/"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
