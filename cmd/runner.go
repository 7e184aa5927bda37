package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
	"github.com/keithriordan/foyer/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	// DB is used instead of opening config.Database.Path when set.
	DB         *sql.DB
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, migrateCommand, configCommand, createUserCommand, resetDBCommand, libraryCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// database opens the configured database and brings its schema up to date.
//
// The returned close func is a no-op for a database handed in through [RunnerOpts].
func (r *Runner) database() (*sql.DB, func(), error) {
	if r.db != nil {
		return r.db, func() {}, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.Path, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, func() { db.Close() }, nil
}

// userByEmail resolves the --email flag of library commands.
func (r *Runner) userByEmail(db *sql.DB, email string) (models.User, error) {
	if email == "" {
		return models.User{}, fmt.Errorf("%w: --email", shared.ErrMissingArgument)
	}
	user, err := repositories.NewUserRepository(db).GetByEmail(email)
	if errors.Is(err, shared.ErrNotFound) {
		return models.User{}, fmt.Errorf("%w: %s", shared.ErrUserNotFound, email)
	} else if err != nil {
		return models.User{}, err
	}
	return *user, nil
}

// oauthConfig returns the Google client, or nil when no credentials are configured.
func (r *Runner) oauthConfig() *oauth2.Config {
	config, err := services.NewGoogleOAuthConfig(r.config.Credentials.Google)
	if err != nil {
		r.logger.Debug("youtube sync disabled", "err", err)
		return nil
	}
	return config
}

// syncEngine wires the YouTube connector to db. reg may be nil.
func (r *Runner) syncEngine(db *sql.DB, oauth *oauth2.Config, reg prometheus.Registerer) *tasks.SyncEngine {
	perSecond := r.config.Library.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = 5
	}

	connector := &tasks.YouTubeConnector{
		OAuth:       oauth,
		Credentials: repositories.NewCredentialRepository(db),
		BaseURL:     r.config.Library.APIBaseURL,
		Limiter:     rate.NewLimiter(rate.Limit(perSecond), 1),
	}
	engine := tasks.NewSyncEngine(db, connector, r.config.Library.PlaylistIDsPath, r.logger)
	if reg != nil {
		engine = engine.WithMetrics(tasks.NewSyncMetrics(reg))
	}
	return engine
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
