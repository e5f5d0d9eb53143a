package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/library"
	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/storage"
	"github.com/desertthunder/manhwatrack/internal/tasks"
	"github.com/desertthunder/manhwatrack/internal/ui"
)

// TUI launches the interactive terminal UI for the signed-in library.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, f, err := shared.NewFileLogger(cmd.String("log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	r.logger = fileLogger

	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}
	catalogClient := r.catalogClient(ctx)

	model := ui.NewModel(ctx, ui.Options{
		Library:      client,
		Catalog:      catalogClient,
		Engine:       tasks.NewLibraryEngine(client, catalogClient, r.logger),
		SessionStore: storage.NewSession(),
		LocalStore:   r.localStore(),
		IdleTimeout:  r.config.Auth.IdleTimeout.Duration,
		WarnBefore:   r.config.Auth.WarnBefore.Duration,
		SaveDelay:    library.DefaultAutoSaveDelay,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if err := model.Err(); err != nil {
		return err
	}
	return nil
}
