package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/shared"
)

// SetupConfig writes the embedded default config to --output.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Wrote %s\nSet [auth] jwt_secret before running 'manhwatrack serve'.\n", path)
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	if _, err := r.openStore(ctx); err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready: %s\n", r.config.Database.Path)
}

// SetupMigrations lists applied migrations.
func (r *Runner) SetupMigrations(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.openStore(ctx); err != nil {
		return err
	}
	if r.db == nil {
		return fmt.Errorf("%w: no database opened", shared.ErrServiceUnavailable)
	}

	applied, err := shared.MigrationStatus(ctx, r.db)
	if err != nil {
		return err
	}

	r.writePlainHeader("Applied migrations")
	for _, m := range applied {
		r.writePlain("%04d  %s\n", m.Version, m.AppliedAt.Local().Format(time.DateTime))
	}
	return nil
}

// SetupRollback reverts the newest migration. It opens the database without migrating so the
// rollback is not immediately re-applied.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	path := shared.ExpandPath(r.config.Database.Path)
	db, err := shared.NewDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.logger.Warn("rolled back latest migration", "path", path)
	return r.writePlain("✓ Rolled back the latest migration\n")
}
