package tasks

import (
	"slices"
	"time"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/notify"
)

// recentLimit caps [Statistics.RecentlyUpdated].
const recentLimit = 5

// Statistics summarizes a library.
type Statistics struct {
	Total           int                        `json:"total"`
	ByStatus        map[models.Status]int      `json:"by_status"`
	ChaptersRead    int                        `json:"chapters_read"`
	Rated           int                        `json:"rated"`
	MeanRating      float64                    `json:"mean_rating"`
	CompletionRate  float64                    `json:"completion_rate"` // completed / total, 0..1
	Streak          int                        `json:"streak"`
	RecentlyUpdated []models.EntryWithProgress `json:"recently_updated"`
}

// ComputeStats derives [Statistics] from entries. now anchors the reading streak.
func ComputeStats(entries []models.EntryWithProgress, now time.Time) Statistics {
	stats := Statistics{
		Total:           len(entries),
		ByStatus:        make(map[models.Status]int, len(models.Statuses)),
		RecentlyUpdated: []models.EntryWithProgress{},
	}
	for _, st := range models.Statuses {
		stats.ByStatus[st] = 0
	}

	ratingSum := 0
	for _, e := range entries {
		stats.ByStatus[e.Status()]++
		stats.ChaptersRead += e.Chapter()
		if e.Progress != nil && e.Progress.Rating != nil {
			stats.Rated++
			ratingSum += *e.Progress.Rating
		}
	}

	if stats.Rated > 0 {
		stats.MeanRating = float64(ratingSum) / float64(stats.Rated)
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.ByStatus[models.StatusCompleted]) / float64(stats.Total)
	}

	stats.Streak = notify.ReadingStreak(notify.ActivityDays(entries, now.Location()), now)

	recent := slices.Clone(entries)
	slices.SortStableFunc(recent, func(a, b models.EntryWithProgress) int {
		return b.LastActivity().Compare(a.LastActivity())
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	stats.RecentlyUpdated = append(stats.RecentlyUpdated, recent...)
	return stats
}

// GoalValue measures g against entries inside the goal's [start, end) window.
func GoalValue(g *models.Goal, entries []models.EntryWithProgress) int {
	in := func(t time.Time) bool {
		return !t.Before(g.StartDate) && t.Before(g.EndDate)
	}

	value := 0
	for _, e := range entries {
		switch g.Target {
		case models.TargetTitles:
			if in(e.CreatedAt) {
				value++
			}
		case models.TargetCompleted:
			if e.Status() == models.StatusCompleted && e.Progress != nil && in(e.Progress.UpdatedAt) {
				value++
			}
		case models.TargetChapters:
			if e.Progress != nil && in(e.Progress.UpdatedAt) {
				value += e.Progress.LastChapter
			}
		}
	}
	return value
}

// RecomputeGoal refreshes g's current value and completion flag, reporting whether either changed.
func RecomputeGoal(g *models.Goal, entries []models.EntryWithProgress) bool {
	value := GoalValue(g, entries)
	completed := value >= g.TargetValue
	if value == g.CurrentValue && completed == g.Completed {
		return false
	}
	g.CurrentValue = value
	g.Completed = completed
	return true
}

// EarnedAchievements lists every achievement stats and goals qualify for, in display order.
func EarnedAchievements(stats Statistics, goals []*models.Goal) []models.AchievementType {
	completed := stats.ByStatus[models.StatusCompleted]
	goalDone := slices.ContainsFunc(goals, func(g *models.Goal) bool { return g.Completed })

	checks := map[models.AchievementType]bool{
		models.AchievementFirstTitle:   stats.Total >= 1,
		models.AchievementCollector:    stats.Total >= 10,
		models.AchievementLibrarian:    stats.Total >= 50,
		models.AchievementFirstFinish:  completed >= 1,
		models.AchievementFinisher:     completed >= 10,
		models.AchievementChapters100:  stats.ChaptersRead >= 100,
		models.AchievementChapters1000: stats.ChaptersRead >= 1000,
		models.AchievementCritic:       stats.Rated >= 5,
		models.AchievementGoalReached:  goalDone,
	}

	var earned []models.AchievementType
	for _, a := range models.Achievements {
		if checks[a.Type] {
			earned = append(earned, a.Type)
		}
	}
	return earned
}
