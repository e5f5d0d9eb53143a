package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/goleak"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/shared"
	th "github.com/desertthunder/manhwatrack/internal/testing"
)

var testNow = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

type fakeLibrary struct {
	mu       sync.Mutex
	entries  []models.EntryWithProgress
	goals    []*models.Goal
	unlocked map[models.AchievementType]bool
	saved    []string
	updated  map[string]models.LibraryEntry
	loadErr  error
}

func newFakeLibrary(entries []models.EntryWithProgress, goals ...*models.Goal) *fakeLibrary {
	return &fakeLibrary{
		entries:  entries,
		goals:    goals,
		unlocked: map[models.AchievementType]bool{},
		updated:  map[string]models.LibraryEntry{},
	}
}

func (f *fakeLibrary) Library(ctx context.Context, _ repositories.Filter) ([]models.EntryWithProgress, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return slices.Clone(f.entries), nil
}

func (f *fakeLibrary) UpdateEntry(ctx context.Context, entry *models.LibraryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[entry.ID] = *entry
	return nil
}

func (f *fakeLibrary) Goals(ctx context.Context) ([]*models.Goal, error) { return f.goals, nil }

func (f *fakeLibrary) SaveGoal(ctx context.Context, g *models.Goal) error {
	f.saved = append(f.saved, g.ID)
	return nil
}

func (f *fakeLibrary) Unlock(ctx context.Context, t models.AchievementType) (bool, error) {
	if f.unlocked[t] {
		return false, nil
	}
	f.unlocked[t] = true
	return true, nil
}

type fakeCatalog map[string]models.Manga

func (c fakeCatalog) Get(ctx context.Context, id string) *models.Manga {
	m, ok := c[id]
	if !ok {
		return nil
	}
	return &m
}

func newTestEngine(lib Library, cat CatalogSource) *LibraryEngine {
	e := NewLibraryEngine(lib, cat, log.New(io.Discard))
	e.now = func() time.Time { return testNow }
	return e
}

func monthlyGoal(id string, target models.GoalTarget, value int) *models.Goal {
	start, end, _ := models.PeriodRange(models.PeriodMonthly, testNow)
	return &models.Goal{ID: id, Period: models.PeriodMonthly, Target: target, TargetValue: value, StartDate: start, EndDate: end}
}

func TestComputeStats(t *testing.T) {
	t.Run("sample library", func(t *testing.T) {
		stats := ComputeStats(th.SampleLibrary(), testNow)

		if stats.Total != 5 {
			t.Errorf("expected 5 titles, got %d", stats.Total)
		}
		for _, st := range models.Statuses {
			if stats.ByStatus[st] != 1 {
				t.Errorf("expected 1 %s entry, got %d", st, stats.ByStatus[st])
			}
		}
		if stats.ChaptersRead != 781 {
			t.Errorf("expected 781 chapters, got %d", stats.ChaptersRead)
		}
		if stats.Rated != 3 || stats.MeanRating != 7 {
			t.Errorf("expected 3 ratings averaging 7, got %d averaging %v", stats.Rated, stats.MeanRating)
		}
		if stats.CompletionRate != 0.2 {
			t.Errorf("expected completion rate 0.2, got %v", stats.CompletionRate)
		}
		if stats.Streak != 2 {
			t.Errorf("expected 2 day streak, got %d", stats.Streak)
		}

		var ids []string
		for _, e := range stats.RecentlyUpdated {
			ids = append(ids, e.ID)
		}
		if want := []string{"e1", "e2", "e3", "e4", "e5"}; !slices.Equal(ids, want) {
			t.Errorf("expected recent order %v, got %v", want, ids)
		}
	})

	t.Run("empty library", func(t *testing.T) {
		stats := ComputeStats(nil, testNow)
		if stats.Total != 0 || stats.MeanRating != 0 || stats.CompletionRate != 0 || stats.Streak != 0 {
			t.Errorf("expected zero stats, got %+v", stats)
		}
		if stats.RecentlyUpdated == nil {
			t.Error("expected non-nil recent slice")
		}
		if len(stats.ByStatus) != len(models.Statuses) {
			t.Errorf("expected every status key, got %v", stats.ByStatus)
		}
	})

	t.Run("recent list is capped", func(t *testing.T) {
		lib := append(th.SampleLibrary(), th.SampleLibrary()...)
		stats := ComputeStats(lib, testNow)
		if len(stats.RecentlyUpdated) != recentLimit {
			t.Errorf("expected %d recent entries, got %d", recentLimit, len(stats.RecentlyUpdated))
		}
	})
}

func TestGoalValue(t *testing.T) {
	lib := th.SampleLibrary()
	yStart, yEnd, _ := models.PeriodRange(models.PeriodYearly, testNow)

	tests := []struct {
		name  string
		goal  *models.Goal
		value int
	}{
		{"monthly titles", monthlyGoal("g", models.TargetTitles, 1), 0},
		{"monthly completed", monthlyGoal("g", models.TargetCompleted, 1), 1},
		{"monthly chapters", monthlyGoal("g", models.TargetChapters, 1), 729},
		{"yearly titles", &models.Goal{Target: models.TargetTitles, StartDate: yStart, EndDate: yEnd}, 5},
		{"yearly chapters", &models.Goal{Target: models.TargetChapters, StartDate: yStart, EndDate: yEnd}, 769},
		{
			"end is exclusive",
			&models.Goal{Target: models.TargetCompleted, StartDate: testNow.AddDate(0, 0, -1), EndDate: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GoalValue(tt.goal, lib); got != tt.value {
				t.Errorf("expected %d, got %d", tt.value, got)
			}
		})
	}
}

func TestRecomputeGoal(t *testing.T) {
	lib := th.SampleLibrary()

	t.Run("reaches target", func(t *testing.T) {
		g := monthlyGoal("g", models.TargetChapters, 500)
		if !RecomputeGoal(g, lib) {
			t.Fatal("expected change")
		}
		if g.CurrentValue != 729 || !g.Completed {
			t.Errorf("expected 729 completed, got %d completed=%v", g.CurrentValue, g.Completed)
		}
		if RecomputeGoal(g, lib) {
			t.Error("expected second recompute to be a no-op")
		}
	})

	t.Run("below target", func(t *testing.T) {
		g := monthlyGoal("g", models.TargetCompleted, 3)
		RecomputeGoal(g, lib)
		if g.CurrentValue != 1 || g.Completed {
			t.Errorf("expected 1 incomplete, got %d completed=%v", g.CurrentValue, g.Completed)
		}
	})
}

func TestEarnedAchievements(t *testing.T) {
	stats := ComputeStats(th.SampleLibrary(), testNow)

	t.Run("thresholds", func(t *testing.T) {
		got := EarnedAchievements(stats, nil)
		want := []models.AchievementType{models.AchievementFirstTitle, models.AchievementFirstFinish, models.AchievementChapters100}
		if !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("completed goal", func(t *testing.T) {
		got := EarnedAchievements(stats, []*models.Goal{{Completed: true}})
		if !slices.Contains(got, models.AchievementGoalReached) {
			t.Errorf("expected goal achievement in %v", got)
		}
	})

	t.Run("empty library earns nothing", func(t *testing.T) {
		if got := EarnedAchievements(ComputeStats(nil, testNow), nil); len(got) != 0 {
			t.Errorf("expected none, got %v", got)
		}
	})
}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("updates goals and unlocks new achievements", func(t *testing.T) {
		chapters := monthlyGoal("g1", models.TargetChapters, 500)
		titles := monthlyGoal("g2", models.TargetTitles, 10)
		lib := newFakeLibrary(th.SampleLibrary(), chapters, titles)
		lib.unlocked[models.AchievementFirstTitle] = true

		progress := make(chan ProgressUpdate, 32)
		result, err := newTestEngine(lib, nil).Sync(ctx, progress)
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		close(progress)

		if result.Updated != 1 || !slices.Equal(lib.saved, []string{"g1"}) {
			t.Errorf("expected only g1 saved, got %d %v", result.Updated, lib.saved)
		}
		if !chapters.Completed {
			t.Error("expected chapters goal completed")
		}

		want := []models.AchievementType{models.AchievementFirstFinish, models.AchievementChapters100, models.AchievementGoalReached}
		if !slices.Equal(result.Unlocked, want) {
			t.Errorf("expected %v unlocked, got %v", want, result.Unlocked)
		}

		phases := map[Phase]bool{}
		for u := range progress {
			phases[u.Phase] = true
		}
		for _, p := range []Phase{LoadLibrary, SummarizeLibrary, RecomputeGoals, UnlockAchievements} {
			if !phases[p] {
				t.Errorf("expected %s progress update", p)
			}
		}
	})

	t.Run("second sync unlocks nothing", func(t *testing.T) {
		lib := newFakeLibrary(th.SampleLibrary())
		e := newTestEngine(lib, nil)
		if _, err := e.Sync(ctx, nil); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		result, err := e.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if len(result.Unlocked) != 0 {
			t.Errorf("expected no new unlocks, got %v", result.Unlocked)
		}
	})

	t.Run("load failure", func(t *testing.T) {
		lib := newFakeLibrary(nil)
		lib.loadErr = shared.ErrNotAuthenticated
		_, err := newTestEngine(lib, nil).Sync(ctx, nil)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("missing library", func(t *testing.T) {
		_, err := newTestEngine(nil, nil).Sync(ctx, nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestRefreshMetadata(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	cat := fakeCatalog{
		"cat-e1": {ID: "cat-e1", Title: "Solo Leveling", CoverURL: "https://uploads.mangadex.org/covers/cat-e1/new.jpg.512.jpg", LastChapter: "179"},
		"cat-e2": {ID: "cat-e2", Title: "Tower of God", LastChapter: "560"},
		"cat-e4": {ID: "cat-e4", Title: "Noblesse", LastChapter: "544"},
		"cat-e5": {ID: "cat-e5", Title: "Omniscient Reader's <b>Viewpoint</b>"},
	}

	t.Run("refreshes changed entries", func(t *testing.T) {
		lib := newFakeLibrary(th.SampleLibrary())
		result, err := newTestEngine(lib, cat).RefreshMetadata(ctx, nil, RefreshOpts{NumWorkers: 3, RateLimit: 1000})
		if err != nil {
			t.Fatalf("RefreshMetadata failed: %v", err)
		}

		if result.Total != 5 || result.Updated != 3 || result.Unchanged != 1 || result.Failed != 1 {
			t.Errorf("unexpected counts: %+v", result)
		}
		if len(result.Results) != 5 {
			t.Errorf("expected 5 results, got %d", len(result.Results))
		}

		if got := lib.updated["e2"].TotalChapters; got == nil || *got != 560 {
			t.Errorf("expected e2 total 560, got %v", got)
		}
		if got := lib.updated["e5"].Title; got != "Omniscient Reader's Viewpoint" {
			t.Errorf("expected sanitized title, got %q", got)
		}
		if _, ok := lib.updated["e4"]; ok {
			t.Error("expected unchanged entry not to be saved")
		}

		for _, r := range result.Results {
			if r.EntryID == "e3" && !errors.Is(r.Error, errNotInCatalog) {
				t.Errorf("expected e3 to fail with errNotInCatalog, got %v", r.Error)
			}
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		lib := newFakeLibrary(th.SampleLibrary())
		_, err := newTestEngine(lib, cat).RefreshMetadata(cctx, nil, RefreshOpts{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("requires catalog", func(t *testing.T) {
		_, err := newTestEngine(newFakeLibrary(nil), nil).RefreshMetadata(ctx, nil, RefreshOpts{})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		format string
		files  []string
	}{
		{"json", FormatJSON, []string{"library.json"}},
		{"csv", FormatCSV, []string{"library_library.csv", "library_metadata.json"}},
		{"markdown", FormatMarkdown, []string{"README.md"}},
		{"text", FormatText, []string{"library.txt"}},
		{"default is json", "", []string{"library.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			lib := newFakeLibrary(th.SampleLibrary())

			result, err := newTestEngine(lib, nil).Export(ctx, nil, ExportOpts{Format: tt.format, OutputDir: dir})
			if err != nil {
				t.Fatalf("Export failed: %v", err)
			}

			if len(result.Files) != len(tt.files) {
				t.Fatalf("expected %d files, got %v", len(tt.files), result.Files)
			}
			for i, name := range tt.files {
				if filepath.Base(result.Files[i]) != name {
					t.Errorf("expected %s, got %s", name, result.Files[i])
				}
				th.AssertFileExists(t, result.Files[i])
			}

			data := th.MustReadFile(t, result.ManifestPath)
			var manifest struct {
				Format   string   `json:"format"`
				Files    []string `json:"files"`
				Metadata struct {
					Entries int `json:"entries"`
				} `json:"metadata"`
			}
			if err := json.Unmarshal([]byte(data), &manifest); err != nil {
				t.Fatalf("invalid manifest: %v", err)
			}
			if manifest.Metadata.Entries != 5 || len(manifest.Files) != len(tt.files) {
				t.Errorf("unexpected manifest: %+v", manifest)
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		_, err := newTestEngine(newFakeLibrary(nil), nil).Export(ctx, nil, ExportOpts{Format: "xml", OutputDir: dir})
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Error("expected no output directory for rejected format")
		}
	})
}

func TestSendProgress(t *testing.T) {
	e := newTestEngine(nil, nil)

	t.Run("nil channel", func(t *testing.T) {
		e.sendProgress(nil, loadLibraryUpdate(1, 1))
	})

	t.Run("full channel does not block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		e.sendProgress(ch, loadLibraryUpdate(1, 2))
		e.sendProgress(ch, loadLibraryUpdate(2, 2))
		if u := <-ch; u.Step != 1 {
			t.Errorf("expected first update kept, got step %d", u.Step)
		}
	})
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{LoadLibrary, "load_library"},
		{SummarizeLibrary, "summarize_library"},
		{RecomputeGoals, "recompute_goals"},
		{UnlockAchievements, "unlock_achievements"},
		{RefreshEntry, "refresh_entry"},
		{ExportLibrary, "export_library"},
		{Phase(99), ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.phase.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
