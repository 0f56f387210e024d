// Package web holds the embedded templates and static assets of the site.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/service"
	"github.com/myfreehouseplans/catalog/internal/units"
)

//go:embed templates static
var files embed.FS

// layoutTemplate is the entry point every page executes.
const layoutTemplate = "layout"

// Flash is a one-shot notice shown on the next page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Page is the data every template receives.
type Page struct {
	Meta      service.Meta
	Path      string
	Flash     *Flash
	CSRFToken string
	User      *model.User
	Schemas   []map[string]any
	Errors    map[string]string
	Form      url.Values
	Query     url.Values
	Data      any
	Now       time.Time
}

// Pager feeds the pagination partial.
type Pager struct {
	Base    string
	Query   url.Values
	Current int
	Pages   int
}

// Renderer executes named pages inside the shared layout.
type Renderer struct {
	pages  map[string]*template.Template
	base   *template.Template
	logger *slog.Logger
}

// NewRenderer parses the layout, partials and every page.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	base, err := template.New("").Funcs(Funcs()).ParseFS(files, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	r := &Renderer{
		pages:  make(map[string]*template.Template),
		base:   base,
		logger: logger.With("component", "web.renderer"),
	}
	for _, pattern := range []string{"templates/pages/*.html", "templates/admin/*.html"} {
		names, err := fs.Glob(files, pattern)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			tmpl, err := base.Clone()
			if err != nil {
				return nil, err
			}
			if _, err := tmpl.ParseFS(files, name); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", name, err)
			}
			r.pages[pageName(name)] = tmpl
		}
	}
	return r, nil
}

// pageName maps templates/pages/home.html to "home" and
// templates/admin/plans.html to "admin/plans".
func pageName(file string) string {
	rel := strings.TrimPrefix(file, "templates/")
	rel = strings.TrimPrefix(rel, "pages/")
	return strings.TrimSuffix(rel, path.Ext(rel))
}

// Has reports whether a page exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render writes the page with the given status. Output is buffered so a
// template error still yields a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown template", "name", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		r.logger.Error("failed to render template", "name", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Fragment renders a partial to a string, for JSON responses carrying HTML.
func (r *Renderer) Fragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.base.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render fragment %s: %w", name, err)
	}
	return buf.String(), nil
}

// Static serves the embedded assets. Mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

// Funcs returns the template helpers.
func Funcs() template.FuncMap {
	funcs := units.TemplateFuncs()
	funcs["truncate"] = truncate
	funcs["add"] = func(a, b int) int { return a + b }
	funcs["seq"] = seq
	// Only for HTML sanitized on save.
	funcs["safeHTML"] = func(s string) template.HTML { return template.HTML(s) } //nolint:gosec
	funcs["pageURL"] = pageURL
	funcs["pager"] = func(base string, query url.Values, current, pages int) Pager {
		return Pager{Base: base, Query: query, Current: current, Pages: pages}
	}
	funcs["number"] = func(v any) string {
		f := units.ToFloat(v)
		if f == nil {
			return ""
		}
		return model.FormatNumber(*f)
	}
	funcs["date"] = func(t any) string {
		switch v := t.(type) {
		case time.Time:
			if v.IsZero() {
				return ""
			}
			return v.Format("Jan 2, 2006")
		case *time.Time:
			if v == nil {
				return ""
			}
			return v.Format("Jan 2, 2006")
		}
		return ""
	}
	funcs["selected"] = func(a, b any) template.HTMLAttr {
		if fmt.Sprint(a) == fmt.Sprint(b) {
			return "selected"
		}
		return ""
	}
	funcs["checked"] = func(v bool) template.HTMLAttr {
		if v {
			return "checked"
		}
		return ""
	}
	return funcs
}

// truncate shortens s to n runes, adding an ellipsis. Usable as a pipeline stage.
func truncate(n int, s string) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return strings.TrimRight(string(runes[:n]), " ") + "…"
}

// seq returns 1..n.
func seq(n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// pageURL rebuilds a listing URL for another page, keeping the filters.
func pageURL(base string, query url.Values, page int) string {
	q := url.Values{}
	for k, v := range query {
		if k != "page" {
			q[k] = v
		}
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if encoded := q.Encode(); encoded != "" {
		return base + "?" + encoded
	}
	return base
}
