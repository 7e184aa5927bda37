package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/keithriordan/foyer/internal/shared"
	"github.com/keithriordan/foyer/internal/ui"
	"github.com/urfave/cli/v3"
)

// LibraryBrowse launches the interactive library browser for --email.
//
// Sync is offered only when a Google client is configured.
func (r *Runner) LibraryBrowse(ctx context.Context, cmd *cli.Command) error {
	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := r.userByEmail(db, cmd.String("email"))
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/foyer-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	var syncer ui.Syncer
	if oauth := r.oauthConfig(); oauth != nil {
		syncer = r.syncEngine(db, oauth, nil)
	}

	model := ui.NewModel(ctx, ui.NewRepoLibrary(db), syncer, user)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
