package tasks

import (
	"fmt"

	"github.com/desertthunder/manhwatrack/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadLibrary Phase = iota
	SummarizeLibrary
	RecomputeGoals
	UnlockAchievements
	RefreshEntry
	ExportLibrary
)

func (p Phase) String() string {
	switch p {
	case LoadLibrary:
		return "load_library"
	case SummarizeLibrary:
		return "summarize_library"
	case RecomputeGoals:
		return "recompute_goals"
	case UnlockAchievements:
		return "unlock_achievements"
	case RefreshEntry:
		return "refresh_entry"
	case ExportLibrary:
		return "export_library"
	default:
		return ""
	}
}

func loadLibraryUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadLibrary,
		Step:    step,
		Total:   total,
		Message: "Loading library...",
	}
}

func loadedLibraryUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadLibrary,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Loaded %d titles", count),
	}
}

func statsUpdate(step, total int, stats *Statistics) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SummarizeLibrary,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%d titles, %d chapters read", stats.Total, stats.ChaptersRead),
		Data:    stats,
	}
}

func goalUpdate(step, total int, g *models.Goal) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecomputeGoals,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %d/%d", step, total, g.Title, g.CurrentValue, g.TargetValue),
		Data:    g,
	}
}

func achievementUpdate(step, total int, t models.AchievementType) ProgressUpdate {
	msg := string(t)
	if info, ok := models.LookupAchievement(t); ok {
		msg = info.Name
	}
	return ProgressUpdate{
		Phase:   UnlockAchievements,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Achievement unlocked: %s", msg),
		Data:    t,
	}
}

func refreshingUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshEntry,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Refreshing: %s...", step, total, title),
	}
}

func refreshCompletedUpdate(step, total int, title string, changed bool) ProgressUpdate {
	state := "unchanged"
	if changed {
		state = "updated"
	}
	return ProgressUpdate{
		Phase:   RefreshEntry,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, title, state),
	}
}

func refreshFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshEntry,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}

func exportUpdate(step, total int, format string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportLibrary,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Writing %s export...", format),
	}
}
