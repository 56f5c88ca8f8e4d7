package portal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFiles embed.FS

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("2 Jan 2006")
	},
	// trusted marks HTML that was sanitised when the content was saved.
	"trusted": func(s string) template.HTML {
		return template.HTML(s) //nolint:gosec // rendered through bluemonday on write
	},
}

var shared = []string{"templates/layout.html", "templates/partials.html"}

// parsePages builds one template set per page so each can define "content".
func parsePages() (map[string]*template.Template, error) {
	entries, err := fs.Glob(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template)
	for _, path := range entries {
		if path == shared[0] || path == shared[1] {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".html")
		files := append(append([]string{}, shared...), path)
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFiles, files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// view is what every page template receives.
type view struct {
	Title string
	User  viewer
	Error string
	Data  any
}

type viewer struct {
	Email string
	Name  string
	Role  string
}

// pager renders previous and next links for limit/offset listings.
type pager struct {
	HasPrev bool
	HasNext bool
	PrevURL string
	NextURL string
}

func newPager(r *http.Request, total, limit, offset int) pager {
	link := func(off int) string {
		q := r.URL.Query()
		q.Set("offset", fmt.Sprint(off))
		q.Set("limit", fmt.Sprint(limit))
		return r.URL.Path + "?" + q.Encode()
	}
	p := pager{HasPrev: offset > 0, HasNext: offset+limit < total}
	if p.HasPrev {
		p.PrevURL = link(max(offset-limit, 0))
	}
	if p.HasNext {
		p.NextURL = link(offset + limit)
	}
	return p
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, v view) {
	t, ok := h.pages[page]
	if !ok {
		h.logger.ErrorContext(r.Context(), "unknown page template", "page", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if v.User == (viewer{}) {
		v.User = currentViewer(r)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render page", "page", page, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
