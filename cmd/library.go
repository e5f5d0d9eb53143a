package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/formatter"
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// LibraryList prints saved titles.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}

	f := repositories.Filter{
		Query: cmd.String("query"),
		Sort:  repositories.SortKey(cmd.String("sort")),
		Limit: cmd.Int("limit"),
	}
	if s := cmd.String("status"); s != "" {
		if f.Status, err = models.ParseStatus(s); err != nil {
			return err
		}
	}

	entries, err := client.Library(ctx, f)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		if entries == nil {
			entries = []models.EntryWithProgress{}
		}
		return r.writeJSON(entries, true)
	}
	if len(entries) == 0 {
		return r.writePlain("Your library is empty. Try 'manhwatrack catalog search <title>'.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Library (%d)", len(entries)))
	for _, e := range entries {
		line := fmt.Sprintf("%-36s  %-12s  %-12s  %s", e.ID, e.Status().Label(), formatter.ChapterLabel(e), e.Title)
		if e.Progress != nil && e.Progress.Rating != nil {
			line += fmt.Sprintf("  ★ %d/10", *e.Progress.Rating)
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

// LibraryShow prints one entry.
func (r *Runner) LibraryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: entry id", shared.ErrMissingArgument)
	}
	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}

	e, err := client.Entry(ctx, id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(e, true)
	}

	r.writePlainHeader(e.Title)
	r.writePlain("Status:   %s\n", e.Status().Label())
	r.writePlain("Progress: %s\n", formatter.ChapterLabel(*e))
	if e.Progress != nil {
		if e.Progress.Rating != nil {
			r.writePlain("Rating:   ★ %d/10\n", *e.Progress.Rating)
		}
		if e.Progress.Notes != "" {
			r.writePlain("Notes:    %s\n", e.Progress.Notes)
		}
	}
	r.writePlain("Updated:  %s\n", e.LastActivity().Local().Format(time.DateTime))
	return nil
}

// LibraryAdd looks a title up in the catalog and saves it.
func (r *Runner) LibraryAdd(ctx context.Context, cmd *cli.Command) error {
	catalogID := cmd.StringArg("catalog-id")
	if catalogID == "" {
		return fmt.Errorf("%w: catalog id", shared.ErrMissingArgument)
	}
	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}

	item := r.catalogClient(ctx).Get(ctx, catalogID)
	if item == nil {
		return fmt.Errorf("%w: %s", shared.ErrUpstreamNotFound, catalogID)
	}

	id, err := client.AddToLibrary(ctx, *item)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Added %s (%s)\n", item.Title, id)
}

// LibraryProgress applies the given flags to an entry's progress.
func (r *Runner) LibraryProgress(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: entry id", shared.ErrMissingArgument)
	}

	upd, err := progressUpdate(cmd)
	if err != nil {
		return err
	}
	if upd.IsZero() {
		return fmt.Errorf("%w: nothing to update; pass --chapter, --status, --rating, --unrate, or --notes", shared.ErrMissingArgument)
	}

	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}
	record, err := client.SaveProgress(ctx, id, upd)
	if err != nil {
		return err
	}
	return r.writePlain("✓ %s • chapter %d\n", record.Status.Label(), record.LastChapter)
}

func progressUpdate(cmd *cli.Command) (models.ProgressUpdate, error) {
	var upd models.ProgressUpdate
	if cmd.IsSet("chapter") {
		ch := cmd.Int("chapter")
		upd.LastChapter = &ch
	}
	if cmd.IsSet("status") {
		st, err := models.ParseStatus(cmd.String("status"))
		if err != nil {
			return upd, err
		}
		upd.Status = &st
	}
	if cmd.IsSet("rating") {
		rating := cmd.Int("rating")
		upd.Rating = &rating
	}
	if cmd.Bool("unrate") {
		if upd.Rating != nil {
			return upd, fmt.Errorf("%w: --rating and --unrate conflict", shared.ErrInvalidFlag)
		}
		upd.ClearRating = true
	}
	if cmd.IsSet("notes") {
		notes := cmd.String("notes")
		upd.Notes = &notes
	}
	return upd, nil
}

// LibraryRemove deletes an entry and its progress.
func (r *Runner) LibraryRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: entry id", shared.ErrMissingArgument)
	}
	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}

	if err := client.RemoveFromLibrary(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s\n", id)
}
