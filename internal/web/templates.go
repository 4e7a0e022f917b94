package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/erazemk/lostfound/internal/board"
	"github.com/erazemk/lostfound/internal/model"
	webembed "github.com/erazemk/lostfound/web"
)

// timeLayout formats item timestamps.
const timeLayout = "2006-01-02 15:04"

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime": func(ms int64) string {
			if ms == 0 {
				return "-"
			}
			return fromMillis(ms).Format(timeLayout)
		},
		"relTime": func(ms int64) string {
			if ms == 0 {
				return ""
			}
			return humanize.Time(fromMillis(ms))
		},
		"derefTime": func(ms *int64) int64 {
			if ms == nil {
				return 0
			}
			return *ms
		},
		"statusLabel": func(status model.Status) string {
			return strings.ToUpper(string(status))
		},
		"filterName": func(f model.Filter) string {
			switch f {
			case model.FilterAll:
				return "All"
			case model.Filter(model.StatusLost):
				return "Lost"
			case model.Filter(model.StatusFound):
				return "Found"
			case model.Filter(model.StatusReturned):
				return "Returned"
			default:
				return string(f)
			}
		},
		"count": humanize.Comma,
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}
	itemsBytes, err := fs.ReadFile(tfs, "items.html")
	if err != nil {
		return nil, fmt.Errorf("reading items template: %w", err)
	}

	pages := []string{
		"board.html",
		"login.html",
		"account.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		for _, src := range []struct {
			name string
			data []byte
		}{{"layout", layoutBytes}, {"items", itemsBytes}, {page, pageBytes}} {
			if tmpl, err = tmpl.Parse(string(src.data)); err != nil {
				return nil, fmt.Errorf("parsing %s for %s: %w", src.name, page, err)
			}
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a page with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a page with an explicit status code. The page is
// rendered to a buffer first so a template error does not leave a partial
// response behind.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Str("template", name).Msg("Failed to write page")
	}
}

// RenderItems renders the item list fragment used by the board and the
// live view.
func (ts *Templates) RenderItems(w io.Writer, data *ListData) error {
	return ts.templates["board.html"].ExecuteTemplate(w, "items", data)
}

// ListData is the data for the item list fragment.
type ListData struct {
	Items  []model.Item
	Filter model.Filter
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title     string
	Session   *model.Session
	Provider  string
	LocalMode bool
	Error     string
	Success   string
}

// BoardData is the data for the board page.
type BoardData struct {
	PageData
	ListData
	Filters    []model.Filter
	Form       board.Submission
	FieldError string
	Total      int64
}

// AccountData is the data for the account page.
type AccountData struct {
	PageData
	Account *model.Account
}
