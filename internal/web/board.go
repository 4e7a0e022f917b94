package web

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/erazemk/lostfound/internal/board"
	"github.com/erazemk/lostfound/internal/live"
	"github.com/erazemk/lostfound/internal/model"
)

// BoardPage handles GET /.
func (s *Server) BoardPage(w http.ResponseWriter, r *http.Request) {
	filter, _ := model.ParseFilter(r.URL.Query().Get("filter"))
	data := s.boardData(r, filter)
	s.Templates.Render(w, "board.html", data)
}

func (s *Server) boardData(r *http.Request, filter model.Filter) *BoardData {
	data := &BoardData{
		PageData: s.pageData(r, "Lost & Found"),
		ListData: ListData{Filter: filter},
		Filters:  model.Filters,
		Form:     board.Submission{Status: string(model.StatusLost)},
	}

	items, err := s.Board.View(r.Context(), filter)
	if err != nil {
		data.Error = problemText("backend")
		return data
	}
	data.Items = items
	data.Total = int64(len(items))
	return data
}

// SubmitItem handles POST /items. A rejected submission re-renders the board
// with the user's input intact.
func (s *Server) SubmitItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	filter, _ := model.ParseFilter(r.PostFormValue("filter"))

	sub := board.Submission{
		ItemName:    r.PostFormValue("itemName"),
		Description: r.PostFormValue("description"),
		Status:      r.PostFormValue("status"),
		Location:    r.PostFormValue("location"),
		ContactInfo: r.PostFormValue("contactInfo"),
	}

	_, err := s.Board.Submit(r.Context(), GetWebSession(r.Context()), sub)
	if err == nil {
		redirectBoard(w, r, filter, "msg", "submitted")
		return
	}

	data := s.boardData(r, filter)
	data.Success = ""
	data.Form = sub

	status := http.StatusUnprocessableEntity
	var fieldErr *board.FieldError
	switch {
	case errors.As(err, &fieldErr):
		data.Error = "Please fill required fields"
		data.FieldError = fieldErr.Field
	case errors.Is(err, board.ErrInvalidStatus):
		data.Error = "Status must be lost or found."
		data.FieldError = "status"
	default:
		status = http.StatusBadGateway
		data.Error = problemText("backend")
	}
	s.Templates.RenderStatus(w, status, "board.html", data)
}

// MarkReturned handles POST /items/{id}/returned.
func (s *Server) MarkReturned(w http.ResponseWriter, r *http.Request) {
	filter, _ := model.ParseFilter(r.FormValue("filter"))
	_, err := s.Board.MarkReturned(r.Context(), GetWebSession(r.Context()), r.PathValue("id"))
	if err != nil {
		redirectBoard(w, r, filter, "err", problemCode(err))
		return
	}
	redirectBoard(w, r, filter, "msg", "returned")
}

// DeleteItem handles POST /items/{id}/delete.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	filter, _ := model.ParseFilter(r.FormValue("filter"))
	if err := s.Board.Delete(r.Context(), GetWebSession(r.Context()), r.PathValue("id")); err != nil {
		redirectBoard(w, r, filter, "err", problemCode(err))
		return
	}
	redirectBoard(w, r, filter, "msg", "deleted")
}

// Live handles GET /live, pushing the re-rendered item list on every change.
func (s *Server) Live(w http.ResponseWriter, r *http.Request) {
	filter, _ := model.ParseFilter(r.URL.Query().Get("filter"))
	if s.Hub == nil {
		http.Error(w, "live updates unavailable", http.StatusServiceUnavailable)
		return
	}

	err := s.Hub.Serve(w, r, websocket.TextMessage, func(items []model.Item) ([]byte, error) {
		var buf bytes.Buffer
		err := s.Templates.RenderItems(&buf, &ListData{Items: board.Arrange(items, filter), Filter: filter})
		return buf.Bytes(), err
	})
	if err != nil && !errors.Is(err, live.ErrNotRunning) {
		s.Logger.Warn().Err(err).Msg("Live connection failed")
	}
}

func problemCode(err error) string {
	switch {
	case errors.Is(err, board.ErrNotAuthorized):
		return "not-authorized"
	case errors.Is(err, board.ErrAlreadyReturned):
		return "already-returned"
	case errors.Is(err, board.ErrNotFound):
		return "not-found"
	default:
		return "backend"
	}
}
