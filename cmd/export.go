package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/tasks"
)

// Export writes the library to disk.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Format:    cmd.String("format"),
		OutputDir: cmd.String("output"),
	}
	if s := cmd.String("status"); s != "" {
		if opts.Filter.Status, err = models.ParseStatus(s); err != nil {
			return err
		}
	}
	if cmd.Bool("covers") {
		opts.CoverClient = r.offlineWorker().Client(30 * time.Second)
	}

	progressCh := make(chan tasks.ProgressUpdate, 10)
	done := r.printProgress(progressCh)
	result, err := engine.Export(ctx, progressCh, opts)
	close(progressCh)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("\n✓ Exported %d titles as %s to %s\n", result.Metadata.Entries, result.Format, result.OutputDir)
	for _, f := range result.Files {
		r.writePlain("  %s\n", f)
	}
	r.writePlain("  %s\n", result.ManifestPath)
	return nil
}

// Refresh re-fetches catalog metadata for every entry.
func (r *Runner) Refresh(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := r.printProgress(progressCh)
	result, err := engine.RefreshMetadata(ctx, progressCh, tasks.RefreshOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	close(progressCh)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Refresh Complete")
	r.writePlain("Updated: %d  Unchanged: %d  Failed: %d  (of %d)\n", result.Updated, result.Unchanged, result.Failed, result.Total)
	if result.Failed > 0 {
		r.writePlainln("Failed lookups:")
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("  - %s: %v\n", res.Title, res.Error)
			}
		}
	}
	return nil
}
