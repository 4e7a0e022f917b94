package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/board"
	"github.com/erazemk/lostfound/internal/live"
)

// RouterParams holds the API dependencies.
type RouterParams struct {
	Board    *board.Board
	Sessions *auth.Sessions
	Provider auth.Provider
	Hub      *live.Hub
	Logger   zerolog.Logger
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger.With().Str("component", "api").Logger()
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Sessions: params.Sessions, Provider: params.Provider, Logger: logger}
	itemsHandler := &ItemsHandler{Board: params.Board, Hub: params.Hub, Logger: logger}

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/session", authHandler.Session)

	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("POST /api/items", itemsHandler.Create)
	mux.HandleFunc("GET /api/items/live", itemsHandler.Live)
	mux.HandleFunc("POST /api/items/{id}/returned", itemsHandler.MarkReturned)
	mux.HandleFunc("DELETE /api/items/{id}", itemsHandler.Delete)

	return SessionMiddleware(params.Sessions, logger)(mux)
}
