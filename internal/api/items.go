package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/board"
	"github.com/erazemk/lostfound/internal/live"
	"github.com/erazemk/lostfound/internal/model"
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	Board  *board.Board
	Hub    *live.Hub
	Logger zerolog.Logger
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := model.ParseFilter(r.URL.Query().Get("status"))
	if !ok {
		jsonError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	items, err := h.Board.View(r.Context(), filter)
	if err != nil {
		h.boardError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req board.Submission
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Board.Submit(r.Context(), GetSession(r.Context()), req)
	if err != nil {
		h.boardError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// MarkReturned handles POST /api/items/{id}/returned.
func (h *ItemsHandler) MarkReturned(w http.ResponseWriter, r *http.Request) {
	item, err := h.Board.MarkReturned(r.Context(), GetSession(r.Context()), r.PathValue("id"))
	if err != nil {
		h.boardError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Board.Delete(r.Context(), GetSession(r.Context()), r.PathValue("id")); err != nil {
		h.boardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Live handles GET /api/items/live, streaming JSON snapshots.
func (h *ItemsHandler) Live(w http.ResponseWriter, r *http.Request) {
	filter, ok := model.ParseFilter(r.URL.Query().Get("status"))
	if !ok {
		jsonError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	if h.Hub == nil {
		jsonError(w, http.StatusServiceUnavailable, "live updates unavailable")
		return
	}

	err := h.Hub.Serve(w, r, websocket.TextMessage, func(items []model.Item) ([]byte, error) {
		return json.Marshal(board.Arrange(items, filter))
	})
	if err != nil && !errors.Is(err, live.ErrNotRunning) {
		h.Logger.Warn().Err(err).Msg("Live connection failed")
	}
}

func (h *ItemsHandler) boardError(w http.ResponseWriter, err error) {
	var fieldErr *board.FieldError
	switch {
	case errors.As(err, &fieldErr):
		jsonResponse(w, http.StatusBadRequest, errorResponse{Error: fieldErr.Error(), Field: fieldErr.Field})
	case errors.Is(err, board.ErrInvalidStatus):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, board.ErrNotAuthorized):
		jsonError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, board.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, board.ErrAlreadyReturned):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, board.ErrBackend):
		jsonError(w, http.StatusBadGateway, "item backend unavailable")
	default:
		h.Logger.Error().Err(err).Msg("Unexpected board error")
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
