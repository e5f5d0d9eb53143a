// package notify schedules reading reminders and delivers them through notification URLs.
package notify

import (
	"fmt"
	"time"

	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/storage"
)

// Settings are the user's reminder preferences, stored under [storage.KeyNotificationSettings].
type Settings struct {
	Enabled                    bool   `json:"enabled"`
	DailyReminder              bool   `json:"dailyReminder"`
	ReminderTime               string `json:"reminderTime"` // "HH:MM", local time
	StreakReminders            bool   `json:"streakReminders"`
	GoalMilestones             bool   `json:"goalMilestones"`
	ContinueReadingSuggestions bool   `json:"continueReadingSuggestions"`
}

// DefaultSettings are used until the user saves their own.
func DefaultSettings() Settings {
	return Settings{
		Enabled:                    false,
		DailyReminder:              true,
		ReminderTime:               "20:00",
		StreakReminders:            true,
		GoalMilestones:             true,
		ContinueReadingSuggestions: true,
	}
}

// Validate checks the reminder time format.
func (s Settings) Validate() error {
	if _, _, err := parseClock(s.ReminderTime); err != nil {
		return err
	}
	return nil
}

// LoadSettings reads settings from store, falling back to defaults when absent or unreadable.
func LoadSettings(store storage.Store) Settings {
	settings := DefaultSettings()
	if ok, err := storage.GetJSON(store, storage.KeyNotificationSettings, &settings); !ok || err != nil {
		return DefaultSettings()
	}
	return settings
}

// SaveSettings validates and writes settings to store.
func SaveSettings(store storage.Store, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return storage.SetJSON(store, storage.KeyNotificationSettings, s)
}

// NextReminder returns the next daily reminder time after now: today's reminder time,
// or tomorrow's when today's has already passed.
func NextReminder(s Settings, now time.Time) (time.Time, error) {
	hour, minute, err := parseClock(s.ReminderTime)
	if err != nil {
		return time.Time{}, err
	}

	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: reminder time %q must be HH:MM", shared.ErrInvalidInput, s)
	}
	return t.Hour(), t.Minute(), nil
}
