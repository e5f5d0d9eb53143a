package main

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/notify"
	"github.com/desertthunder/manhwatrack/internal/repositories"
)

// NotifySettings prints reminder settings, saving any changed by flags first.
func (r *Runner) NotifySettings(ctx context.Context, cmd *cli.Command) error {
	store := r.localStore()
	settings := notify.LoadSettings(store)

	changed := false
	for name, field := range map[string]*bool{
		"enabled":  &settings.Enabled,
		"daily":    &settings.DailyReminder,
		"streak":   &settings.StreakReminders,
		"goals":    &settings.GoalMilestones,
		"continue": &settings.ContinueReadingSuggestions,
	} {
		if cmd.IsSet(name) {
			*field = cmd.Bool(name)
			changed = true
		}
	}
	if cmd.IsSet("time") {
		settings.ReminderTime = cmd.String("time")
		changed = true
	}

	if changed {
		if err := notify.SaveSettings(store, settings); err != nil {
			return err
		}
		r.writePlain("✓ Settings saved\n\n")
	}

	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	r.writePlainHeader("Reminders")
	r.writePlain("Enabled:             %s\n", onOff(settings.Enabled))
	r.writePlain("Daily reminder:      %s at %s\n", onOff(settings.DailyReminder), settings.ReminderTime)
	r.writePlain("Streak reminders:    %s\n", onOff(settings.StreakReminders))
	r.writePlain("Goal milestones:     %s\n", onOff(settings.GoalMilestones))
	r.writePlain("Continue reading:    %s\n", onOff(settings.ContinueReadingSuggestions))
	if next, err := notify.NextReminder(settings, time.Now()); err == nil && settings.Enabled && settings.DailyReminder {
		r.writePlain("Next reminder:       %s\n", next.Format(time.DateTime))
	}
	if len(r.config.Notifications.URLs) == 0 {
		r.writePlainln("No delivery targets; add URLs to [notifications] urls in config.toml.")
	}
	return nil
}

func (r *Runner) scheduler() *notify.Scheduler {
	return notify.NewScheduler(r.localStore(), notify.NewShoutrrrSender(r.config.Notifications.URLs), r.logger)
}

// checkReminders loads the library and sends due reminders, or lists them when dryRun is set.
func (r *Runner) checkReminders(ctx context.Context, s *notify.Scheduler, dryRun bool) ([]notify.Notification, error) {
	client, err := r.libraryClient(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := client.Library(ctx, repositories.Filter{})
	if err != nil {
		return nil, err
	}
	goals, err := client.Goals(ctx)
	if err != nil {
		return nil, err
	}

	if dryRun {
		return s.Due(entries, goals), nil
	}
	return s.Check(ctx, entries, goals)
}

// NotifyCheck sends due reminders once.
func (r *Runner) NotifyCheck(ctx context.Context, cmd *cli.Command) error {
	dryRun := cmd.Bool("dry-run")
	sent, err := r.checkReminders(ctx, r.scheduler(), dryRun)

	verb := "Sent"
	if dryRun {
		verb = "Due"
	}
	for _, n := range sent {
		r.writePlain("%s: %s (%s)\n", verb, n.Title, n.Body)
	}
	if len(sent) == 0 && err == nil {
		r.writePlain("Nothing due.\n")
	}
	return err
}

// NotifyWatch checks on an interval until ctx is canceled.
func (r *Runner) NotifyWatch(ctx context.Context, cmd *cli.Command) error {
	interval := cmd.Duration("interval")
	if interval <= 0 {
		interval = r.config.Notifications.CheckInterval.Duration
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	s := r.scheduler()
	r.logger.Info("watching for reminders", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sent, err := r.checkReminders(ctx, s, false)
		if err != nil {
			r.logger.Error("reminder check failed", "error", err)
		}
		for _, n := range sent {
			r.logger.Info("reminder sent", "kind", n.Kind, "title", n.Title)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
