package notify

import (
	"math"
	"slices"
	"time"

	"github.com/desertthunder/manhwatrack/internal/models"
)

// day truncates t to local midnight.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b in b's location.
func daysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	return int(math.Round(day(b).Sub(day(a)).Hours() / 24))
}

// ActivityDays returns the distinct days on which progress was recorded, newest first.
func ActivityDays(library []models.EntryWithProgress, loc *time.Location) []time.Time {
	seen := map[time.Time]bool{}
	var days []time.Time
	for _, e := range library {
		if e.Progress == nil || e.Progress.UpdatedAt.IsZero() || e.Progress.LastChapter == 0 {
			continue
		}
		d := day(e.Progress.UpdatedAt.In(loc))
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	slices.SortFunc(days, func(a, b time.Time) int { return b.Compare(a) })
	return days
}

// ReadingStreak counts consecutive reading days ending today, or yesterday if nothing was read today yet.
func ReadingStreak(days []time.Time, now time.Time) int {
	if len(days) == 0 {
		return 0
	}

	gap := daysBetween(days[0], now)
	if gap > 1 {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if daysBetween(days[i], days[i-1]) != 1 {
			break
		}
		streak++
	}
	return streak
}

// StreakAtRisk reports whether an active streak ends unless the user reads today:
// the last read was exactly one calendar day ago.
func StreakAtRisk(streak int, lastRead, now time.Time) bool {
	if streak <= 0 || lastRead.IsZero() {
		return false
	}
	return daysBetween(lastRead, now) == 1
}
