package web

import (
	"database/sql"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/board"
	"github.com/erazemk/lostfound/internal/live"
	webembed "github.com/erazemk/lostfound/web"
)

// RouterParams holds the page handler dependencies.
type RouterParams struct {
	DB        *sql.DB
	Board     *board.Board
	Sessions  *auth.Sessions
	Provider  auth.Provider
	Hub       *live.Hub
	LocalMode bool
	Logger    zerolog.Logger
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(params RouterParams) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	logger := params.Logger.With().Str("component", "web").Logger()
	s := &Server{
		DB:        params.DB,
		Board:     params.Board,
		Sessions:  params.Sessions,
		Provider:  params.Provider,
		Hub:       params.Hub,
		Templates: templates,
		LocalMode: params.LocalMode,
		Logger:    logger,
	}

	mux := http.NewServeMux()

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	mux.HandleFunc("GET /{$}", s.BoardPage)
	mux.HandleFunc("GET /live", s.Live)
	mux.HandleFunc("POST /items", s.SubmitItem)
	mux.HandleFunc("POST /items/{id}/returned", s.MarkReturned)
	mux.HandleFunc("POST /items/{id}/delete", s.DeleteItem)

	mux.Handle("GET /account", RequireSession(http.HandlerFunc(s.AccountPage)))
	mux.Handle("POST /account/avatar", RequireSession(http.HandlerFunc(s.AvatarSubmit)))
	mux.Handle("POST /account/password", RequireSession(http.HandlerFunc(s.PasswordSubmit)))
	mux.HandleFunc("GET /avatars/{id}", s.AvatarGet)

	return CookieSessionMiddleware(params.Sessions, logger)(mux), nil
}
