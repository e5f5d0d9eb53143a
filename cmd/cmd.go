// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/tasks"
)

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the default config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path",
						Value:   defaultConfigPath,
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "migrations",
				Usage:  "List applied migrations",
				Action: r.SetupMigrations,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// serveCommand runs the HTTP service.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the library API, proxies, and app shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides [server] host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides [server] port)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the app in a browser once listening",
			},
		},
		Action: r.Serve,
	}
}

// authCommand handles account operations
func authCommand(r *Runner) *cli.Command {
	credentials := func(confirm bool) []cli.Flag {
		flags := []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password", Required: true},
		}
		if confirm {
			flags = append(flags,
				&cli.StringFlag{Name: "confirm", Usage: "Password confirmation", Required: true},
				&cli.StringFlag{Name: "name", Usage: "Display name"},
			)
		}
		return flags
	}

	return &cli.Command{
		Name:  "auth",
		Usage: "Manage your account",
		Commands: []*cli.Command{
			{
				Name:   "register",
				Usage:  "Create an account and sign in",
				Flags:  credentials(true),
				Action: r.AuthRegister,
			},
			{
				Name:   "login",
				Usage:  "Sign in",
				Flags:  credentials(false),
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out",
				Action: r.AuthLogout,
			},
			{
				Name:  "password",
				Usage: "Change your password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "current", Usage: "Current password", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "New password", Required: true},
					&cli.StringFlag{Name: "confirm", Usage: "New password confirmation", Required: true},
				},
				Action: r.AuthPassword,
			},
			{
				Name:   "status",
				Usage:  "Show the signed-in account",
				Action: r.AuthStatus,
			},
		},
	}
}

// catalogCommand handles catalog lookups
func catalogCommand(r *Runner) *cli.Command {
	jsonFlag := &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
	limitFlag := &cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results", Value: 20}

	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"cat"},
		Usage:   "Browse the manga catalog",
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search titles",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags: []cli.Flag{
					limitFlag,
					jsonFlag,
					&cli.StringSliceFlag{Name: "tag", Usage: "Tag name or id to include (repeatable)"},
					&cli.StringSliceFlag{Name: "status", Usage: "Publication status (repeatable)"},
					&cli.StringSliceFlag{Name: "rating", Usage: "Content rating (repeatable)"},
					&cli.StringFlag{Name: "sort", Usage: "relevance, followers, latest, title, year, rating"},
				},
				Action: r.CatalogSearch,
			},
			{
				Name:      "get",
				Usage:     "Show one title",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{jsonFlag},
				Action:    r.CatalogGet,
			},
			{
				Name:   "tags",
				Usage:  "List catalog tags",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.CatalogTags,
			},
			{
				Name:   "popular",
				Usage:  "List the most followed titles",
				Flags:  []cli.Flag{limitFlag, jsonFlag},
				Action: r.CatalogPopular,
			},
			{
				Name:   "recent",
				Usage:  "List titles with the latest chapter uploads",
				Flags:  []cli.Flag{limitFlag, jsonFlag},
				Action: r.CatalogRecent,
			},
		},
	}
}

// libraryCommand handles the signed-in user's library
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Manage your reading library",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved titles",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "reading, completed, on_hold, dropped, plan_to_read"},
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Title contains"},
					&cli.StringFlag{Name: "sort", Usage: "updated, title, added, chapter, rating", Value: "updated"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum entries"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.LibraryList,
			},
			{
				Name:      "show",
				Usage:     "Show one entry",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action:    r.LibraryShow,
			},
			{
				Name:      "add",
				Usage:     "Save a catalog title to your library",
				Arguments: []cli.Argument{&cli.StringArg{Name: "catalog-id"}},
				Action:    r.LibraryAdd,
			},
			{
				Name:      "progress",
				Usage:     "Update reading progress",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "chapter", Usage: "Last chapter read"},
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Reading status"},
					&cli.IntFlag{Name: "rating", Usage: "Rating from 0 to 10"},
					&cli.BoolFlag{Name: "unrate", Usage: "Clear the rating"},
					&cli.StringFlag{Name: "notes", Usage: "Personal notes"},
				},
				Action: r.LibraryProgress,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a title and its progress",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.LibraryRemove,
			},
		},
	}
}

// goalsCommand handles reading goals
func goalsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "goals",
		Usage: "Manage reading goals",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List goals",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.GoalsList,
			},
			{
				Name:  "create",
				Usage: "Create a goal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "period", Usage: "monthly, yearly, or custom", Value: "monthly"},
					&cli.StringFlag{Name: "target", Usage: "titles, completed, or chapters", Value: "chapters"},
					&cli.IntFlag{Name: "value", Usage: "Target value", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Goal title"},
					&cli.StringFlag{Name: "start", Usage: "Start date (YYYY-MM-DD) for custom goals"},
					&cli.StringFlag{Name: "end", Usage: "End date (YYYY-MM-DD, exclusive) for custom goals"},
				},
				Action: r.GoalsCreate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a goal",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.GoalsDelete,
			},
		},
	}
}

func achievementsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "achievements",
		Usage:  "List unlocked achievements",
		Flags:  []cli.Flag{&cli.BoolFlag{Name: "all", Usage: "Include locked achievements"}},
		Action: r.Achievements,
	}
}

func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Recompute goals and achievements and show library statistics",
		Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
		Action: r.Stats,
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export your library",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json, csv, markdown, or txt", Value: tasks.FormatJSON},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Only export entries with this status"},
			&cli.BoolFlag{Name: "covers", Usage: "Download covers for markdown exports"},
		},
		Action: r.Export,
	}
}

func refreshCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Refresh library metadata from the catalog",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Usage: "Concurrent lookups (max 10)", Value: 5},
			&cli.FloatFlag{Name: "rate", Usage: "Lookups per second", Value: 4},
		},
		Action: r.Refresh,
	}
}

// notifyCommand handles reminder settings and delivery
func notifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Reading reminders",
		Commands: []*cli.Command{
			{
				Name:  "settings",
				Usage: "Show or change reminder settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "enabled", Usage: "Turn reminders on or off"},
					&cli.BoolFlag{Name: "daily", Usage: "Daily reading reminder"},
					&cli.StringFlag{Name: "time", Usage: "Daily reminder time (HH:MM)"},
					&cli.BoolFlag{Name: "streak", Usage: "Streak-at-risk reminders"},
					&cli.BoolFlag{Name: "goals", Usage: "Goal milestone notifications"},
					&cli.BoolFlag{Name: "continue", Usage: "Continue-reading suggestions"},
				},
				Action: r.NotifySettings,
			},
			{
				Name:  "check",
				Usage: "Send any reminders that are due",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "List due reminders without sending"},
				},
				Action: r.NotifyCheck,
			},
			{
				Name:  "watch",
				Usage: "Check for due reminders on an interval until interrupted",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "interval", Usage: "Check interval (defaults to [notifications] check_interval)"},
				},
				Action: r.NotifyWatch,
			},
		},
	}
}

// cacheCommand handles the offline cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and manage the offline cache",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List cache partitions and their sizes",
				Action: r.CacheList,
			},
			{
				Name:  "install",
				Usage: "Pre-cache the app shell from a running server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Server base URL (defaults to [server])"},
				},
				Action: r.CacheInstall,
			},
			{
				Name:   "activate",
				Usage:  "Start serving from a cache left waiting by a partial install",
				Action: r.CacheActivate,
			},
			{
				Name:   "clear",
				Usage:  "Empty every partition",
				Action: r.CacheClear,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive library browser",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log", Usage: "Log file", Value: "~/.manhwatrack/tui.log"},
		},
		Action: r.TUI,
	}
}
