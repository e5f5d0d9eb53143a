package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// GoalsList prints goals with their last recomputed progress.
func (r *Runner) GoalsList(ctx context.Context, cmd *cli.Command) error {
	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}
	goals, err := client.Goals(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		if goals == nil {
			goals = []*models.Goal{}
		}
		return r.writeJSON(goals, true)
	}
	if len(goals) == 0 {
		return r.writePlain("No goals yet. Try 'manhwatrack goals create --value 50'.\n")
	}

	r.writePlainHeader("Goals")
	for _, g := range goals {
		r.writeGoal(g)
	}
	r.writePlainln("Progress is recomputed by 'manhwatrack stats'.")
	return nil
}

func (r *Runner) writeGoal(g *models.Goal) {
	mark := " "
	if g.Completed {
		mark = "✓"
	}
	r.writePlain("%s %s  %d/%d (%d%%)  %s → %s  [%s]\n", mark, g.Title, g.CurrentValue, g.TargetValue, g.Percent(),
		g.StartDate.Format(time.DateOnly), g.EndDate.Format(time.DateOnly), g.ID)
}

// GoalsCreate adds a goal. Monthly and yearly goals cover the current window.
func (r *Runner) GoalsCreate(ctx context.Context, cmd *cli.Command) error {
	g := &models.Goal{
		Title:       cmd.String("title"),
		Period:      models.GoalPeriod(cmd.String("period")),
		Target:      models.GoalTarget(cmd.String("target")),
		TargetValue: cmd.Int("value"),
	}

	if g.Period == models.PeriodCustom {
		start, err := parseDate("start", cmd.String("start"))
		if err != nil {
			return err
		}
		end, err := parseDate("end", cmd.String("end"))
		if err != nil {
			return err
		}
		g.StartDate, g.EndDate = start, end
	}

	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}
	if err := client.CreateGoal(ctx, g); err != nil {
		return err
	}

	r.writePlain("✓ Created goal\n")
	r.writeGoal(g)
	return nil
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: --%s is required for custom goals", shared.ErrMissingArgument, flag)
	}
	t, err := time.ParseInLocation(time.DateOnly, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --%s %q: want YYYY-MM-DD", shared.ErrInvalidFlag, flag, value)
	}
	return t, nil
}

// GoalsDelete removes a goal.
func (r *Runner) GoalsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: goal id", shared.ErrMissingArgument)
	}
	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}
	if err := client.DeleteGoal(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted goal %s\n", id)
}

// Achievements prints unlocked achievements, or every achievement with --all.
func (r *Runner) Achievements(ctx context.Context, cmd *cli.Command) error {
	client, err := r.libraryClient(ctx)
	if err != nil {
		return err
	}
	unlocked, err := client.Achievements(ctx)
	if err != nil {
		return err
	}

	at := make(map[models.AchievementType]time.Time, len(unlocked))
	for _, a := range unlocked {
		at[a.Type] = a.UnlockedAt
	}

	r.writePlainHeader(fmt.Sprintf("Achievements (%d/%d)", len(unlocked), len(models.Achievements)))
	for _, info := range models.Achievements {
		when, ok := at[info.Type]
		switch {
		case ok:
			r.writePlain("★ %-14s %s (%s)\n", info.Name, info.Description, when.Local().Format(time.DateOnly))
		case cmd.Bool("all"):
			r.writePlain("· %-14s %s\n", info.Name, info.Description)
		}
	}
	return nil
}
