package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nicholas-fedor/shoutrrr"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/storage"
)

// Kind classifies a notification.
type Kind string

const (
	KindDailyReminder   Kind = "daily_reminder"
	KindStreakAtRisk    Kind = "streak_at_risk"
	KindGoalMilestone   Kind = "goal_milestone"
	KindContinueReading Kind = "continue_reading"
)

// StaleAfter is how long a "reading" title may sit untouched before it is suggested.
const StaleAfter = 7 * 24 * time.Hour

// Notification is one message ready for delivery.
type Notification struct {
	Kind  Kind   `json:"kind"`
	Key   string `json:"key"` // dedupe key; a key is delivered at most once
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// ShoutrrrSender delivers to every configured service URL (ntfy://, discord://, telegram://, ...).
type ShoutrrrSender struct {
	urls []string
	send func(url, message string) error
}

// NewShoutrrrSender creates a sender for urls.
func NewShoutrrrSender(urls []string) *ShoutrrrSender {
	return &ShoutrrrSender{urls: urls, send: shoutrrr.Send}
}

// Send implements [Sender]. Every URL is attempted; failures are joined.
func (s *ShoutrrrSender) Send(ctx context.Context, n Notification) error {
	if len(s.urls) == 0 {
		return fmt.Errorf("%w: no notification urls configured", shared.ErrMissingConfig)
	}

	message := n.Title
	if n.Body != "" {
		message += "\n" + n.Body
	}

	var errs []error
	for _, u := range s.urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.send(u, message); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", scheme(u), err))
		}
	}
	return errors.Join(errs...)
}

func scheme(u string) string {
	if s, _, ok := strings.Cut(u, "://"); ok {
		return s
	}
	return "unknown"
}

// Scheduler decides which notifications are due and records which were delivered.
type Scheduler struct {
	store  storage.Store
	sender Sender
	now    func() time.Time
	logger *log.Logger
}

// NewScheduler creates a scheduler reading settings and delivery state from store.
func NewScheduler(store storage.Store, sender Sender, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{
		store:  store,
		sender: sender,
		now:    time.Now,
		logger: shared.WithLogger(logger, "component", "notify"),
	}
}

// deliveryLog maps dedupe keys to when they were sent.
type deliveryLog map[string]time.Time

// Due returns the notifications that should fire now, without sending them.
func (s *Scheduler) Due(library []models.EntryWithProgress, goals []*models.Goal) []Notification {
	settings := LoadSettings(s.store)
	if !settings.Enabled {
		return nil
	}

	now := s.now()
	today := now.Format(time.DateOnly)
	sent := s.sent()

	var due []Notification
	add := func(n Notification) {
		if _, ok := sent[n.Key]; !ok {
			due = append(due, n)
		}
	}

	if settings.DailyReminder {
		if next, err := NextReminder(settings, now); err == nil {
			// the reminder for today has passed once the next one rolls to tomorrow
			if day(next).After(day(now)) {
				add(Notification{
					Kind:  KindDailyReminder,
					Key:   "daily:" + today,
					Title: "Time to read",
					Body:  "Pick up where you left off.",
				})
			}
		}
	}

	if settings.StreakReminders {
		days := ActivityDays(library, now.Location())
		streak := ReadingStreak(days, now)
		if len(days) > 0 && StreakAtRisk(streak, days[0], now) {
			add(Notification{
				Kind:  KindStreakAtRisk,
				Key:   "streak:" + today,
				Title: fmt.Sprintf("Keep your %d-day streak", streak),
				Body:  "Read a chapter today so your streak continues.",
			})
		}
	}

	if settings.GoalMilestones {
		for _, g := range goals {
			if !g.Completed {
				continue
			}
			title := g.Title
			if title == "" {
				title = g.DefaultTitle()
			}
			add(Notification{
				Kind:  KindGoalMilestone,
				Key:   "goal:" + g.ID,
				Title: "Goal reached",
				Body:  fmt.Sprintf("%s: %d/%d", title, g.CurrentValue, g.TargetValue),
			})
		}
	}

	if settings.ContinueReadingSuggestions {
		if e, ok := staleReading(library, now); ok {
			add(Notification{
				Kind:  KindContinueReading,
				Key:   "continue:" + today,
				Title: "Continue reading " + e.Title,
				Body:  fmt.Sprintf("You stopped at chapter %d.", e.Chapter()),
			})
		}
	}

	return due
}

// Check sends every due notification and records the successful ones.
func (s *Scheduler) Check(ctx context.Context, library []models.EntryWithProgress, goals []*models.Goal) ([]Notification, error) {
	due := s.Due(library, goals)
	if len(due) == 0 {
		return nil, nil
	}

	sent := s.sent()
	var (
		delivered []Notification
		errs      []error
	)
	for _, n := range due {
		if err := s.sender.Send(ctx, n); err != nil {
			s.logger.Error("delivery failed", "kind", n.Kind, "error", err)
			errs = append(errs, err)
			continue
		}
		sent[n.Key] = s.now()
		delivered = append(delivered, n)
	}

	s.prune(sent)
	if err := storage.SetJSON(s.store, storage.KeyLastReminder, sent); err != nil {
		errs = append(errs, err)
	}
	return delivered, errors.Join(errs...)
}

func (s *Scheduler) sent() deliveryLog {
	sent := deliveryLog{}
	if ok, err := storage.GetJSON(s.store, storage.KeyLastReminder, &sent); !ok || err != nil {
		return deliveryLog{}
	}
	return sent
}

// prune forgets dated keys older than a month; goal keys stay so a goal is announced once.
func (s *Scheduler) prune(sent deliveryLog) {
	cutoff := s.now().AddDate(0, -1, 0)
	for k, at := range sent {
		if !strings.HasPrefix(k, "goal:") && at.Before(cutoff) {
			delete(sent, k)
		}
	}
}

// staleReading picks the most recently touched "reading" title idle for at least [StaleAfter].
func staleReading(library []models.EntryWithProgress, now time.Time) (models.EntryWithProgress, bool) {
	var (
		best  models.EntryWithProgress
		found bool
	)
	for _, e := range library {
		if e.Status() != models.StatusReading {
			continue
		}
		last := e.LastActivity()
		if now.Sub(last) < StaleAfter {
			continue
		}
		if !found || last.After(best.LastActivity()) {
			best, found = e, true
		}
	}
	return best, found
}
