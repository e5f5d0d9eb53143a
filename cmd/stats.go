package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/formatter"
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/tasks"
)

// Stats recomputes goals and achievements, then prints library statistics.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}

	asJSON := cmd.Bool("json")
	progressCh := make(chan tasks.ProgressUpdate, 20)
	var done <-chan struct{}
	if asJSON {
		done = drain(progressCh)
	} else {
		done = r.printProgress(progressCh)
	}

	result, err := engine.Sync(ctx, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return err
	}
	if asJSON {
		return r.writeJSON(result, true)
	}

	s := result.Stats
	r.writePlain("\n")
	r.writePlainHeader("Reading Stats")
	r.writePlain("Titles:        %d\n", s.Total)
	r.writePlain("Chapters read: %d\n", s.ChaptersRead)
	r.writePlain("Completion:    %.0f%%\n", s.CompletionRate*100)
	r.writePlain("Mean rating:   %.1f (%d rated)\n", s.MeanRating, s.Rated)
	r.writePlain("Streak:        %d day(s)\n\n", s.Streak)
	for _, st := range models.Statuses {
		r.writePlain("  %-14s %d\n", st.Label(), s.ByStatus[st])
	}

	if len(s.RecentlyUpdated) > 0 {
		r.writePlainln("Recently updated")
		for _, e := range s.RecentlyUpdated {
			r.writePlain("  %s (%s)\n", e.Title, formatter.ChapterLabel(e))
		}
	}

	if len(result.Goals) > 0 {
		r.writePlainln("Goals")
		for _, g := range result.Goals {
			r.writeGoal(g)
		}
	}

	for _, t := range result.Unlocked {
		if info, ok := models.LookupAchievement(t); ok {
			r.writePlain("\n🏆 Unlocked %s: %s\n", info.Name, info.Description)
		}
	}
	return nil
}

// drain discards updates until ch is closed.
func drain(ch <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch {
		}
	}()
	return done
}
