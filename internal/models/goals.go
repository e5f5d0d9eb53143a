package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/manhwatrack/internal/shared"
)

// GoalPeriod is the window a goal counts over.
type GoalPeriod string

const (
	PeriodMonthly GoalPeriod = "monthly"
	PeriodYearly  GoalPeriod = "yearly"
	PeriodCustom  GoalPeriod = "custom"
)

// GoalTarget is the library dimension a goal measures.
type GoalTarget string

const (
	TargetTitles    GoalTarget = "titles"    // titles added
	TargetCompleted GoalTarget = "completed" // titles completed
	TargetChapters  GoalTarget = "chapters"  // chapters read
)

// Goal is a user-owned reading target.
type Goal struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Period       GoalPeriod `json:"period"`
	Target       GoalTarget `json:"target_type"`
	TargetValue  int        `json:"target_value"`
	CurrentValue int        `json:"current_value"`
	Completed    bool       `json:"completed"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Validate implements [Model].
func (g *Goal) Validate() error {
	switch g.Period {
	case PeriodMonthly, PeriodYearly, PeriodCustom:
	default:
		return fmt.Errorf("%w: unknown goal period %q", shared.ErrInvalidInput, g.Period)
	}
	switch g.Target {
	case TargetTitles, TargetCompleted, TargetChapters:
	default:
		return fmt.Errorf("%w: unknown goal target %q", shared.ErrInvalidInput, g.Target)
	}
	if g.TargetValue <= 0 {
		return fmt.Errorf("%w: goal target must be positive", shared.ErrInvalidInput)
	}
	if g.StartDate.IsZero() || g.EndDate.IsZero() || !g.EndDate.After(g.StartDate) {
		return fmt.Errorf("%w: goal end date must follow its start date", shared.ErrInvalidInput)
	}
	return nil
}

// Percent returns progress toward the target, capped at 100.
func (g *Goal) Percent() int {
	if g.TargetValue <= 0 {
		return 0
	}
	p := g.CurrentValue * 100 / g.TargetValue
	return min(p, 100)
}

// DefaultTitle names a goal from its period and target ("Monthly chapters goal").
func (g *Goal) DefaultTitle() string {
	period := string(g.Period)
	if period != "" {
		period = strings.ToUpper(period[:1]) + period[1:]
	}
	return fmt.Sprintf("%s %s goal", period, g.Target)
}

// AchievementType identifies an achievement; each unlocks at most once per user.
type AchievementType string

const (
	AchievementFirstTitle   AchievementType = "first_title"
	AchievementCollector    AchievementType = "collector_10"
	AchievementLibrarian    AchievementType = "librarian_50"
	AchievementFirstFinish  AchievementType = "first_completed"
	AchievementFinisher     AchievementType = "completed_10"
	AchievementChapters100  AchievementType = "chapters_100"
	AchievementChapters1000 AchievementType = "chapters_1000"
	AchievementCritic       AchievementType = "critic_5"
	AchievementGoalReached  AchievementType = "goal_reached"
)

// AchievementInfo describes an achievement for display.
type AchievementInfo struct {
	Type        AchievementType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
}

// Achievements is the catalog of unlockable achievements in display order.
var Achievements = []AchievementInfo{
	{AchievementFirstTitle, "First Steps", "Add your first title to the library"},
	{AchievementCollector, "Collector", "Have 10 titles in your library"},
	{AchievementLibrarian, "Librarian", "Have 50 titles in your library"},
	{AchievementFirstFinish, "The End", "Complete your first title"},
	{AchievementFinisher, "Finisher", "Complete 10 titles"},
	{AchievementChapters100, "Page Turner", "Read 100 chapters"},
	{AchievementChapters1000, "Binge Reader", "Read 1000 chapters"},
	{AchievementCritic, "Critic", "Rate 5 titles"},
	{AchievementGoalReached, "Goal Getter", "Complete a reading goal"},
}

// LookupAchievement returns the info for t.
func LookupAchievement(t AchievementType) (AchievementInfo, bool) {
	for _, a := range Achievements {
		if a.Type == t {
			return a, true
		}
	}
	return AchievementInfo{}, false
}

// Achievement is an unlocked achievement.
type Achievement struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Type       AchievementType `json:"type"`
	UnlockedAt time.Time       `json:"unlocked_at"`
}

// Validate implements [Model].
func (a *Achievement) Validate() error {
	if _, ok := LookupAchievement(a.Type); !ok {
		return fmt.Errorf("%w: unknown achievement %q", shared.ErrInvalidInput, a.Type)
	}
	return nil
}

// PeriodRange returns the window containing now for monthly and yearly goals.
// Custom goals carry their own dates, so ok is false.
func PeriodRange(p GoalPeriod, now time.Time) (start, end time.Time, ok bool) {
	switch p {
	case PeriodMonthly:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), true
	case PeriodYearly:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}
