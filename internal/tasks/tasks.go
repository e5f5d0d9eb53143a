package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// Library is the slice of the library client the engine drives.
type Library interface {
	Library(ctx context.Context, f repositories.Filter) ([]models.EntryWithProgress, error)
	UpdateEntry(ctx context.Context, entry *models.LibraryEntry) error
	Goals(ctx context.Context) ([]*models.Goal, error)
	SaveGoal(ctx context.Context, g *models.Goal) error
	Unlock(ctx context.Context, t models.AchievementType) (bool, error)
}

// CatalogSource looks titles up by catalog id. Get returns nil when the title cannot be fetched.
type CatalogSource interface {
	Get(ctx context.Context, id string) *models.Manga
}

// Engine defines the long-running library operations.
type Engine interface {
	// Sync recomputes statistics, goal progress, and achievements.
	Sync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error)

	// RefreshMetadata re-fetches catalog metadata for every entry.
	RefreshMetadata(ctx context.Context, progress chan<- ProgressUpdate, opts RefreshOpts) (*RefreshResult, error)

	// Export writes the library to disk in the requested format.
	Export(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error)
}

// SyncResult holds everything a sync derived.
type SyncResult struct {
	Stats    Statistics               `json:"stats"`
	Goals    []*models.Goal           `json:"goals"`
	Updated  int                      `json:"goals_updated"`
	Unlocked []models.AchievementType `json:"unlocked"`
}

// LibraryEngine implements [Engine] over a signed-in library.
type LibraryEngine struct {
	library Library
	catalog CatalogSource
	logger  *log.Logger
	now     func() time.Time
}

// NewLibraryEngine creates an engine. catalog may be nil when metadata refresh is not needed.
func NewLibraryEngine(library Library, catalog CatalogSource, logger *log.Logger) *LibraryEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LibraryEngine{
		library: library,
		catalog: catalog,
		logger:  shared.WithLogger(logger, "component", "tasks"),
		now:     time.Now,
	}
}

// Sync loads the library and brings goals and achievements up to date.
//
// Goal and unlock failures are logged and skipped so one bad row does not block the rest.
func (e *LibraryEngine) Sync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if e.library == nil {
		return nil, fmt.Errorf("%w: library not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, loadLibraryUpdate(1, 4))
	entries, err := e.library.Library(ctx, repositories.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}
	e.sendProgress(progress, loadedLibraryUpdate(1, 4, len(entries)))

	result := &SyncResult{Stats: ComputeStats(entries, e.now())}
	e.sendProgress(progress, statsUpdate(2, 4, &result.Stats))

	goals, err := e.library.Goals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load goals: %w", err)
	}
	for i, g := range goals {
		if !RecomputeGoal(g, entries) {
			continue
		}
		if err := e.library.SaveGoal(ctx, g); err != nil {
			e.logger.Warn("failed to save goal", "goal", g.ID, "error", err)
			continue
		}
		result.Updated++
		e.sendProgress(progress, goalUpdate(i+1, len(goals), g))
	}
	result.Goals = goals

	earned := EarnedAchievements(result.Stats, goals)
	for i, t := range earned {
		unlocked, err := e.library.Unlock(ctx, t)
		if err != nil {
			e.logger.Warn("failed to unlock achievement", "type", t, "error", err)
			continue
		}
		if unlocked {
			result.Unlocked = append(result.Unlocked, t)
			e.sendProgress(progress, achievementUpdate(i+1, len(earned), t))
		}
	}

	e.logger.Debug("sync complete", "titles", result.Stats.Total, "goals", result.Updated, "unlocked", len(result.Unlocked))
	return result, nil
}

// sendProgress sends a progress update to the channel without blocking.
func (e *LibraryEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
