package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/server"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
	"github.com/keithriordan/foyer/internal/tasks"
	"github.com/urfave/cli/v3"
)

// LibraryAuthorize runs the consent flow on a local callback server and stores the token for --email.
func (r *Runner) LibraryAuthorize(ctx context.Context, cmd *cli.Command) error {
	oauth := r.oauthConfig()
	if oauth == nil {
		return fmt.Errorf("%w: set credentials.google client_id and client_secret", shared.ErrMissingCredentials)
	}

	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := r.userByEmail(db, cmd.String("email"))
	if err != nil {
		return err
	}

	token, err := server.AwaitAuthorization(ctx, oauth, r.logger, r.output)
	if err != nil {
		return err
	}

	if err := repositories.NewCredentialRepository(db).Save(services.CredentialFromToken(user.ID, token)); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return r.writePlain("✓ YouTube access authorized for %s\n", user.Email)
}

// LibrarySync pulls the library for --email and prints the diff counts.
func (r *Runner) LibrarySync(ctx context.Context, cmd *cli.Command) error {
	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := r.userByEmail(db, cmd.String("email"))
	if err != nil {
		return err
	}

	engine := r.syncEngine(db, r.oauthConfig(), nil)
	progress, wait := r.logProgress()
	result, err := engine.Run(ctx, user, progress)
	wait()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	r.writePlainHeader("Library sync")
	return r.writePlain("%s\n", result)
}

// LibraryExport writes stored playlists to disk.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	engine := r.syncEngine(db, nil, nil)
	progress, wait := r.logProgress()
	result, err := engine.Export(ctx, progress, tasks.ExportOpts{
		Format:      cmd.String("format"),
		OutputDir:   cmd.String("output"),
		NumWorkers:  int(cmd.Int("workers")),
		PlaylistIDs: cmd.StringSlice("playlist"),
	})
	wait()
	if err != nil {
		return err
	}

	m := result.Manifest
	r.writePlainHeader("Library export")
	r.writePlain("Exported %d of %d playlists to %s\n", m.Succeeded, m.Total, result.OutputDirectory)
	for _, entry := range m.Entries {
		if !entry.Success {
			r.writePlain("  ✗ %s: %s\n", entry.Title, entry.Error)
		}
	}
	return r.writePlain("Manifest: %s\n", result.ManifestPath)
}

// LibrarySubscriptions exports the channel subscriptions of --email.
func (r *Runner) LibrarySubscriptions(ctx context.Context, cmd *cli.Command) error {
	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := r.userByEmail(db, cmd.String("email"))
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if path == "" {
		path = r.config.Library.SubscriptionsPath
	}

	engine := r.syncEngine(db, r.oauthConfig(), nil)
	progress, wait := r.logProgress()
	export, err := engine.ExportSubscriptions(ctx, user, path, progress)
	wait()
	if err != nil {
		return err
	}
	return r.writePlain("✓ Wrote %d subscriptions to %s\n", export.TotalSubscriptions, path)
}

// logProgress returns a channel whose updates are logged until wait is called.
func (r *Runner) logProgress() (chan<- tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			r.logger.Info(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
		}
	}()
	return progress, func() {
		close(progress)
		wg.Wait()
	}
}
