// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the website",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port and PORT)",
			},
		},
		Action: r.Serve,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize database and run migrations",
		Action: r.SetupDatabase,
	}
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Inspect or roll back the database schema",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Print the current migration version",
				Action: r.MigrationStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.Rollback,
			},
		},
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file helpers",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write an example config file to the --config path",
				Action: r.ConfigInit,
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration as JSON",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.ConfigShow,
			},
		},
	}
}

func createUserCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "Create a site account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Display name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Login email",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "Login password",
				Sources:  cli.EnvVars("FOYER_PASSWORD"),
				Required: true,
			},
		},
		Action: r.CreateUser,
	}
}

func resetDBCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reset-db",
		Usage: "Drop every table and re-run all migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Confirm that all data should be deleted",
			},
		},
		Action: r.ResetDB,
	}
}

func emailFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "email",
		Aliases:  []string{"e"},
		Usage:    "Email of the account whose library is used",
		Required: true,
	}
}

func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "YouTube library operations",
		Commands: []*cli.Command{
			{
				Name:   "authorize",
				Usage:  "Authorize YouTube access through a local callback server",
				Flags:  []cli.Flag{emailFlag()},
				Action: r.LibraryAuthorize,
			},
			{
				Name:  "sync",
				Usage: "Fetch playlists and videos from YouTube and upsert them",
				Flags: []cli.Flag{
					emailFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the sync result as JSON",
					},
				},
				Action: r.LibrarySync,
			},
			{
				Name:  "export",
				Usage: "Export stored playlists to files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: library_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers (max 10)",
						Value: 5,
					},
					&cli.StringSliceFlag{
						Name:  "playlist",
						Usage: "Playlist ID to export (repeatable; default all)",
					},
				},
				Action: r.LibraryExport,
			},
			{
				Name:  "subscriptions",
				Usage: "Export channel subscriptions to JSON",
				Flags: []cli.Flag{
					emailFlag(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (default: library.subscriptions_path)",
					},
				},
				Action: r.LibrarySubscriptions,
			},
			{
				Name:   "browse",
				Usage:  "Browse the stored library in a terminal UI",
				Flags:  []cli.Flag{emailFlag()},
				Action: r.LibraryBrowse,
			},
		},
	}
}
