package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", r.configPath)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	version, _, err := shared.MigrationVersion(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v (schema version %d)", r.config.Database.Path, version)
	return nil
}

// MigrationStatus prints the applied schema version without migrating.
func (r *Runner) MigrationStatus(ctx context.Context, cmd *cli.Command) error {
	db := r.db
	if db == nil {
		opened, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer opened.Close()
		db = opened
	}

	version, applied, err := shared.MigrationVersion(db)
	if err != nil {
		return err
	}
	if !applied {
		return r.writePlain("no migrations applied\n")
	}
	return r.writePlain("version: %d\n", version)
}

// Rollback reverts the most recent migration.
func (r *Runner) Rollback(ctx context.Context, cmd *cli.Command) error {
	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	version, _, err := shared.MigrationVersion(db)
	if err != nil {
		return err
	}
	r.logger.Info("rolled back one migration", "version", version)
	return nil
}

// ResetDB drops the schema and migrates it back up. It refuses to run without --force.
func (r *Runner) ResetDB(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("force") {
		return fmt.Errorf("%w: reset-db deletes all data, pass --force to confirm", shared.ErrMissingArgument)
	}

	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	r.logger.Warn("resetting database", "path", r.config.Database.Path)
	if err := shared.ResetDatabase(db); err != nil {
		return err
	}
	return r.writePlain("✓ Database reset\n")
}

// ConfigInit writes the example config to the --config path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	return r.writePlain("✓ Wrote %s\n", r.configPath)
}

// ConfigShow prints the effective config with secrets masked.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	config := *r.config
	config.Server.SecretKey = mask(config.Server.SecretKey)
	config.Credentials.Google.ClientSecret = mask(config.Credentials.Google.ClientSecret)
	config.Credentials.SendGrid.APIKey = mask(config.Credentials.SendGrid.APIKey)
	config.Credentials.ApiLeap.AccessKey = mask(config.Credentials.ApiLeap.AccessKey)
	return r.writeJSON(config, cmd.Bool("pretty"))
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}

// CreateUser adds a site account with a bcrypt-hashed password.
func (r *Runner) CreateUser(ctx context.Context, cmd *cli.Command) error {
	user := &models.User{
		Username: strings.TrimSpace(cmd.String("username")),
		Email:    strings.ToLower(strings.TrimSpace(cmd.String("email"))),
	}
	if err := user.Validate(); err != nil {
		return err
	}
	if err := user.SetPassword(cmd.String("password")); err != nil {
		return err
	}

	db, closeDB, err := r.database()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := repositories.NewUserRepository(db).Create(user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	r.logger.Info("created user", "id", user.ID, "email", user.Email)
	return r.writePlain("✓ Created user %s <%s>\n", user.Username, user.Email)
}
