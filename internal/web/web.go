// Package web is the site's HTTP front controller: server-rendered pages for the portfolio, contact form,
// job wizard, YouTube library, wishlist and shared lists, plus the small JSON API the list page scripts use.
//
// [New] builds an [App] from [Deps]; nothing is read from globals. Each route decodes its input into a
// form or request DTO whose Validate method reports field errors, then calls a repository or manager
// with the logged-in [models.User] as the actor.
//
// HTML routes answer a missing login with a redirect to /login?next=..., JSON routes with a 401.
// A forbidden list is flashed and redirected on HTML routes and answered with a 403 on JSON routes.
package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/keithriordan/foyer/internal/jobs"
	"github.com/keithriordan/foyer/internal/lists"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/server"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
	"github.com/keithriordan/foyer/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const maxUploadBytes = 10 << 20

// Repositories groups the stores the handlers read directly.
type Repositories struct {
	Users       *repositories.UserRepository
	Gifts       *repositories.GiftRepository
	Playlists   *repositories.PlaylistRepository
	Videos      *repositories.VideoRepository
	Credentials *repositories.CredentialRepository
}

// NewRepositories binds every repository to db.
func NewRepositories(db *sql.DB) Repositories {
	return Repositories{
		Users:       repositories.NewUserRepository(db),
		Gifts:       repositories.NewGiftRepository(db),
		Playlists:   repositories.NewPlaylistRepository(db),
		Videos:      repositories.NewVideoRepository(db),
		Credentials: repositories.NewCredentialRepository(db),
	}
}

// Deps is everything the site needs. Mailer, Storage, OAuth and Sync may be nil;
// the features behind them then report that they are not configured.
type Deps struct {
	DB       *sql.DB
	Config   *shared.Config
	Logger   *log.Logger
	Repos    Repositories
	Sessions *server.Sessions
	Lists    *lists.Manager
	Jobs     *jobs.Manager
	Sync     *tasks.SyncEngine
	Mailer   services.Mailer
	Storage  services.BlobStore
	OAuth    *oauth2.Config
	Site     *Site
	// Registry receives the HTTP collectors and backs /metrics.
	Registry *prometheus.Registry
}

// App serves the site.
type App struct {
	Deps
	templates map[string]*template.Template
	router    server.Router
	contact   *server.ClientLimiter
}

// New validates deps and registers every route.
func New(deps Deps) (*App, error) {
	if deps.DB == nil || deps.Config == nil {
		return nil, fmt.Errorf("%w: web app needs a database and config", shared.ErrMissingConfig)
	}
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}
	deps.Logger = shared.WithLogger(deps.Logger, "component", "web")

	if deps.Repos.Users == nil {
		deps.Repos = NewRepositories(deps.DB)
	}
	if deps.Lists == nil {
		deps.Lists = lists.NewManager(deps.DB, deps.Logger)
	}
	if deps.Jobs == nil {
		deps.Jobs = jobs.NewManager(deps.DB, nil, nil, "", deps.Logger)
	}
	if deps.Sessions == nil {
		s, err := server.NewSessions(deps.Config.Server.SecretKey, deps.Config.Server.SecureCookies, deps.Repos.Users, deps.Logger)
		if err != nil {
			return nil, err
		}
		deps.Sessions = s
	}
	if deps.Site == nil {
		site, err := LoadSite(deps.Config.Site)
		if err != nil {
			return nil, err
		}
		deps.Site = site
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
		deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	perMinute := deps.Config.Server.ContactRatePerMinute
	if perMinute <= 0 {
		perMinute = 3
	}

	app := &App{
		Deps:      deps,
		templates: templates,
		router:    server.NewBasicRouter(),
		contact:   server.NewClientLimiter(rate.Limit(float64(perMinute)/60), perMinute),
	}
	app.routes()
	return app, nil
}

// ServeHTTP implements [http.Handler].
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) routes() {
	r := a.router
	r.Use(
		server.RequestLogger(a.Logger),
		server.Recoverer(a.Logger, http.HandlerFunc(a.serverError)),
		server.SecurityHeaders(server.DefaultCSP),
		server.NewHTTPMetrics(a.Registry).Middleware(),
		a.Sessions.Authenticate,
	)

	page := func(h http.HandlerFunc) http.Handler { return server.RequireUser(h) }
	api := func(h http.HandlerFunc) http.Handler { return server.RequireUserJSON(h) }

	r.Handle("GET", "/static/", staticHandler())
	r.HandleFunc("GET", "/healthz", a.healthz)
	r.Handle("GET", "/metrics", a.metricsHandler())

	r.HandleFunc("GET", "/{$}", a.home)
	r.HandleFunc("GET", "/resume", a.resume)
	r.HandleFunc("GET", "/contact", a.contactPage)
	r.Handle("POST", "/contact", a.contact.Middleware(http.HandlerFunc(a.contactLimited))(http.HandlerFunc(a.sendContact)))

	r.HandleFunc("GET", "/login", a.loginPage)
	r.HandleFunc("POST", "/login", a.login)
	r.HandleFunc("GET", "/logout", a.logout)

	r.Handle("GET", "/utilities", page(a.utilities))
	r.Handle("GET", "/media", page(a.media))

	r.HandleFunc("GET", "/jobwizard", a.jobsIndex)
	r.HandleFunc("GET", "/jobwizard/add/", a.jobForm)
	r.HandleFunc("POST", "/jobwizard/add/", a.addJob)
	r.HandleFunc("GET", "/jobwizard/{id}", a.jobDetail)

	r.Handle("GET", "/lib/{$}", page(a.library))
	r.Handle("GET", "/lib/playlist/{id}", page(a.playlist))
	r.Handle("GET", "/lib/videos/{id}", page(a.video))
	r.Handle("POST", "/lib/videos/{id}/watched", page(a.toggleWatched))
	r.Handle("POST", "/lib/sync_playlists", page(a.syncPlaylists))
	r.Handle("POST", "/lib/export_subscriptions", page(a.exportSubscriptions))
	r.Handle("GET", "/oauth/authorize", page(a.authorize))
	r.Handle("GET", server.DefaultCallbackPath, page(a.oauthCallback))

	r.Handle("GET", "/lists", page(a.listsIndex))
	r.Handle("POST", "/lists/create", page(a.createList))
	r.Handle("GET", "/lists/{id}", page(a.viewList))
	r.Handle("POST", "/lists/{id}", page(a.addCategory))
	r.Handle("POST", "/lists/{id}/share", page(a.shareList))
	r.Handle("POST", "/lists/{id}/add_item", page(a.addItem))
	r.Handle("POST", "/lists/{id}/toggle_item/{item_id}", api(a.toggleItem))
	r.Handle("POST", "/lists/{id}/reorder_items", api(a.reorderItems))
	r.Handle("POST", "/lists/{id}/reorder_categories", api(a.reorderCategories))
	r.Handle("POST", "/lists/{id}/delete", page(a.deleteList))
	r.Handle("POST", "/lists/{id}/categories/{category_id}/delete", page(a.deleteCategory))
	r.Handle("POST", "/lists/{id}/items/{item_id}/delete", page(a.deleteItem))
	r.Handle("GET", "/lists/{id}/debug", api(a.debugList))

	r.Handle("GET", "/wishlist/{$}", page(a.wishlist))
	r.Handle("POST", "/wishlist/{$}", page(a.addGift))
	r.Handle("GET", "/wishlist/{id}/delete", page(a.confirmDeleteGift))
	r.Handle("POST", "/wishlist/{id}/delete", page(a.deleteGift))

	r.HandleFunc("", "/", a.notFound)
}

// user returns the actor of a route wrapped in RequireUser.
func (a *App) user(r *http.Request) models.User {
	u, _ := server.CurrentUser(r.Context())
	return u
}
