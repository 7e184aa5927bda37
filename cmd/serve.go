package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithriordan/foyer/internal/jobs"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
	"github.com/keithriordan/foyer/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the website until SIGINT or SIGTERM, then drains in-flight requests.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := int(cmd.Int("port")); port > 0 {
		r.config.Server.Port = port
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	app, err := r.buildApp(ctx, db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              r.config.Addr(),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildApp wires the optional outbound clients. A client whose credentials are missing stays nil
// and the feature behind it reports that it is not configured.
func (r *Runner) buildApp(ctx context.Context, db *sql.DB) (*web.App, error) {
	cfg := r.config
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := web.Deps{
		DB:       db,
		Config:   cfg,
		Logger:   r.logger,
		Registry: reg,
	}

	if key := cfg.Credentials.SendGrid.APIKey; key != "" {
		deps.Mailer = services.NewSendGridMailer(key, "")
	} else {
		r.logger.Warn("contact form disabled", "err", fmt.Errorf("%w: sendgrid api key", shared.ErrMissingCredentials))
	}

	if cfg.Storage.JobWizardBucket != "" || cfg.Storage.WishlistBucket != "" {
		store, err := services.NewS3Storage(ctx, cfg.Storage)
		if err != nil {
			r.logger.Warn("uploads disabled", "err", err)
		} else {
			deps.Storage = store
		}
	}

	var shots services.ScreenshotSource
	if key := cfg.Credentials.ApiLeap.AccessKey; key != "" {
		shots = services.NewApiLeapService(cfg.Credentials.ApiLeap.BaseURL, key, r.httpClient)
	}
	deps.Jobs = jobs.NewManager(db, shots, deps.Storage, cfg.Storage.JobWizardBucket, r.logger)

	if deps.OAuth = r.oauthConfig(); deps.OAuth != nil {
		deps.Sync = r.syncEngine(db, deps.OAuth, reg)
	}

	return web.New(deps)
}
