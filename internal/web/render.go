package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/server"
	"github.com/keithriordan/foyer/internal/shared"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"join": strings.Join,
}

// parseTemplates pairs the layout with each page so every page can define its own "content".
func parseTemplates() (map[string]*template.Template, error) {
	pages, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	set := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		set[name] = t
	}
	return set, nil
}

func staticHandler() http.Handler {
	static, err := fs.Sub(templateFS, "templates/static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(static))
}

// view is what every page template receives.
type view struct {
	Title   string
	User    *models.User
	Flashes []server.Flash
	Errors  FieldErrors
	Data    any
}

func (a *App) render(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	t, ok := a.templates[name]
	if !ok {
		a.Logger.Error("unknown template", "name", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if u, ok := server.CurrentUser(r.Context()); ok {
		v.User = &u
	}
	v.Flashes = a.Sessions.Flashes(w, r)

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		a.Logger.Error("failed to render template", "name", name, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

type errorPage struct {
	Status  int
	Heading string
	Message string
}

var errorPages = map[int]errorPage{
	http.StatusUnauthorized:        {http.StatusUnauthorized, "Unauthorized", "You need to sign in to see this page."},
	http.StatusForbidden:           {http.StatusForbidden, "Forbidden", "You don't have permission to see this page."},
	http.StatusNotFound:            {http.StatusNotFound, "Page not found", "That page doesn't exist or has moved."},
	http.StatusInternalServerError: {http.StatusInternalServerError, "Something went wrong", "The error has been logged."},
}

func (a *App) renderError(w http.ResponseWriter, r *http.Request, status int) {
	p, ok := errorPages[status]
	if !ok {
		p = errorPage{status, http.StatusText(status), ""}
	}
	a.render(w, r, status, "error", view{Title: p.Heading, Data: p})
}

func (a *App) notFound(w http.ResponseWriter, r *http.Request) {
	a.renderError(w, r, http.StatusNotFound)
}

func (a *App) serverError(w http.ResponseWriter, r *http.Request) {
	a.renderError(w, r, http.StatusInternalServerError)
}

// fail renders the error page matching err, logging anything unexpected.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrUserNotFound):
		a.renderError(w, r, http.StatusNotFound)
	case errors.Is(err, shared.ErrForbidden):
		a.renderError(w, r, http.StatusForbidden)
	case errors.Is(err, shared.ErrNotAuthenticated):
		a.renderError(w, r, http.StatusUnauthorized)
	default:
		a.Logger.Error("request failed", "path", r.URL.Path, "err", err)
		a.renderError(w, r, http.StatusInternalServerError)
	}
}

func (a *App) flash(w http.ResponseWriter, r *http.Request, category, message string) {
	a.Sessions.AddFlash(w, r, category, message)
}

func (a *App) redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (a *App) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			a.Logger.Error("failed to encode JSON response", "err", err)
		}
	}
}

func (a *App) respondJSONError(w http.ResponseWriter, status int, message string) {
	a.respondJSON(w, status, map[string]any{"success": false, "error": message})
}

// jsonFail maps err to the JSON error responses of the list API.
func (a *App) jsonFail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrForbidden):
		a.respondJSONError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, shared.ErrNotFound):
		a.respondJSONError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, shared.ErrInvalidInput):
		a.respondJSONError(w, http.StatusBadRequest, err.Error())
	default:
		a.Logger.Error("request failed", "path", r.URL.Path, "err", err)
		a.respondJSONError(w, http.StatusInternalServerError, "Internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: request body is empty", shared.ErrInvalidInput)
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

// pathID parses the named path wildcard as a positive int64. Failures read as not found.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", shared.ErrNotFound, name, raw)
	}
	return id, nil
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.DB.PingContext(r.Context()); err != nil {
		a.Logger.Error("health check failed", "err", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

func (a *App) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry})
}
