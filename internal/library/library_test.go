package library

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/goleak"

	"github.com/desertthunder/manhwatrack/internal/auth"
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/storage"
)

func setupTestStore(t *testing.T) *repositories.Store {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return repositories.NewStore(db)
}

func newTestClient(t *testing.T, store *repositories.Store, email string) *Client {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "hash"}
	if err := store.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return NewClient(store, NewUserSession(user.ID), log.New(io.Discard))
}

func manga(id, title string) models.Manga {
	return models.Manga{
		ID:          id,
		Title:       title,
		Description: "<p>A <b>tower</b> story</p><script>alert(1)</script>",
		LastChapter: "120.5",
		CoverURL:    "https://uploads.example/covers/" + id + "/c.jpg.512.jpg",
	}
}

func ptr[T any](v T) *T { return &v }

func TestAddToLibrary(t *testing.T) {
	ctx := context.Background()

	t.Run("creates entry with default progress", func(t *testing.T) {
		store := setupTestStore(t)
		c := newTestClient(t, store, "a@example.com")

		id, err := c.AddToLibrary(ctx, manga("m1", "Tower"))
		if err != nil {
			t.Fatalf("add: %v", err)
		}

		got, err := c.Entry(ctx, id)
		if err != nil {
			t.Fatalf("entry: %v", err)
		}
		if got.Description != "A tower story" {
			t.Errorf("description not sanitized: %q", got.Description)
		}
		if got.TotalChapters == nil || *got.TotalChapters != 120 {
			t.Errorf("expected 120 total chapters, got %v", got.TotalChapters)
		}
		if got.Progress == nil || got.Progress.Status != models.StatusPlanToRead || got.Progress.LastChapter != 0 {
			t.Errorf("unexpected default progress %+v", got.Progress)
		}
	})

	t.Run("same catalog id returns same entry", func(t *testing.T) {
		store := setupTestStore(t)
		c := newTestClient(t, store, "a@example.com")

		first, err := c.AddToLibrary(ctx, manga("m1", "Tower"))
		if err != nil {
			t.Fatalf("first add: %v", err)
		}
		second, err := c.AddToLibrary(ctx, manga("m1", "Tower (renamed)"))
		if err != nil {
			t.Fatalf("second add: %v", err)
		}
		if first != second {
			t.Errorf("expected same entry id, got %s and %s", first, second)
		}

		lib, _ := c.Library(ctx, repositories.Filter{})
		if len(lib) != 1 {
			t.Errorf("expected 1 entry, got %d", len(lib))
		}
	})

	t.Run("requires sign in", func(t *testing.T) {
		store := setupTestStore(t)
		c := NewClient(store, NewSession(nil, nil), log.New(io.Discard))

		if _, err := c.AddToLibrary(ctx, manga("m1", "Tower")); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("users are isolated", func(t *testing.T) {
		store := setupTestStore(t)
		alice := newTestClient(t, store, "alice@example.com")
		bob := newTestClient(t, store, "bob@example.com")

		id, _ := alice.AddToLibrary(ctx, manga("m1", "Tower"))
		if _, err := bob.Entry(ctx, id); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for other user, got %v", err)
		}
		if err := bob.RemoveFromLibrary(ctx, id); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound removing other user's entry, got %v", err)
		}
		if _, err := bob.SaveProgress(ctx, id, models.ProgressUpdate{LastChapter: ptr(3)}); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound saving other user's progress, got %v", err)
		}

		bobID, _ := bob.AddToLibrary(ctx, manga("m1", "Tower"))
		if bobID == id {
			t.Error("each user should get their own entry")
		}
	})
}

func TestSaveProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert twice keeps one record with latest values", func(t *testing.T) {
		store := setupTestStore(t)
		c := newTestClient(t, store, "a@example.com")
		id, _ := c.AddToLibrary(ctx, manga("m1", "Tower"))

		if _, err := c.SaveProgress(ctx, id, models.ProgressUpdate{Status: ptr(models.StatusReading), LastChapter: ptr(5)}); err != nil {
			t.Fatalf("first save: %v", err)
		}
		rec, err := c.SaveProgress(ctx, id, models.ProgressUpdate{LastChapter: ptr(9), Rating: ptr(8), Notes: ptr("<i>great</i>")})
		if err != nil {
			t.Fatalf("second save: %v", err)
		}

		var rows int
		if err := store.DB.QueryRow(`SELECT COUNT(*) FROM progress WHERE entry_id = ?`, id).Scan(&rows); err != nil {
			t.Fatalf("count: %v", err)
		}
		if rows != 1 {
			t.Fatalf("expected 1 progress row, got %d", rows)
		}

		got, _ := c.Entry(ctx, id)
		p := got.Progress
		if p.Status != models.StatusReading || p.LastChapter != 9 || p.Rating == nil || *p.Rating != 8 || p.Notes != "great" {
			t.Errorf("unexpected progress %+v", p)
		}
		if p.ID != rec.ID {
			t.Errorf("record id changed: %s vs %s", p.ID, rec.ID)
		}
	})

	t.Run("validates before store", func(t *testing.T) {
		store := setupTestStore(t)
		c := newTestClient(t, store, "a@example.com")

		tc := []struct {
			name string
			upd  models.ProgressUpdate
		}{
			{"negative chapter", models.ProgressUpdate{LastChapter: ptr(-1)}},
			{"rating too high", models.ProgressUpdate{Rating: ptr(11)}},
			{"rating too low", models.ProgressUpdate{Rating: ptr(-1)}},
			{"unknown status", models.ProgressUpdate{Status: ptr(models.Status("binging"))}},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := c.SaveProgress(ctx, "missing", tt.upd); !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
			})
		}
	})

	t.Run("encoded markup in notes is stripped", func(t *testing.T) {
		store := setupTestStore(t)
		c := newTestClient(t, store, "a@example.com")
		id, _ := c.AddToLibrary(ctx, manga("m1", "Tower"))

		notes := "ch 40 &lt;img src=x onerror=alert(1)&gt;"
		rec, err := c.SaveProgress(ctx, id, models.ProgressUpdate{Notes: &notes})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if rec.Notes != "ch 40" {
			t.Errorf("expected markup removed, got %q", rec.Notes)
		}
	})

	t.Run("recreates missing progress", func(t *testing.T) {
		store := setupTestStore(t)
		c := newTestClient(t, store, "a@example.com")
		id, _ := c.AddToLibrary(ctx, manga("m1", "Tower"))
		uid, _ := c.Session().UserID()
		_ = store.Progress.DeleteByEntry(ctx, uid, id)

		rec, err := c.SaveProgress(ctx, id, models.ProgressUpdate{LastChapter: ptr(2)})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if rec.Status != models.StatusPlanToRead || rec.LastChapter != 2 {
			t.Errorf("unexpected record %+v", rec)
		}
	})
}

func TestRemoveFromLibrary(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	c := newTestClient(t, store, "a@example.com")

	id, _ := c.AddToLibrary(ctx, manga("m1", "Tower"))
	keep, _ := c.AddToLibrary(ctx, manga("m2", "Sword"))
	_, _ = c.SaveProgress(ctx, id, models.ProgressUpdate{LastChapter: ptr(4)})

	if err := c.RemoveFromLibrary(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}

	orphans, err := store.Progress.CountOrphans(ctx)
	if err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("expected no orphaned progress, got %d", orphans)
	}
	if _, err := c.Entry(ctx, id); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected entry gone, got %v", err)
	}
	if _, err := c.Entry(ctx, keep); err != nil {
		t.Errorf("other entry should remain: %v", err)
	}
	if err := c.RemoveFromLibrary(ctx, id); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestGoalsAndAchievements(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	c := newTestClient(t, store, "a@example.com")
	c.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }

	g := &models.Goal{Period: models.PeriodMonthly, Target: models.TargetChapters, TargetValue: 50}
	if err := c.CreateGoal(ctx, g); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if g.Title != "Monthly chapters goal" {
		t.Errorf("unexpected default title %q", g.Title)
	}
	if !g.StartDate.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) || !g.EndDate.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window %v - %v", g.StartDate, g.EndDate)
	}

	g.CurrentValue = 50
	g.Completed = true
	if err := c.SaveGoal(ctx, g); err != nil {
		t.Fatalf("save goal: %v", err)
	}
	goals, _ := c.Goals(ctx)
	if len(goals) != 1 || !goals[0].Completed || goals[0].CurrentValue != 50 {
		t.Errorf("unexpected goals %+v", goals)
	}

	unlocked, err := c.Unlock(ctx, models.AchievementGoalReached)
	if err != nil || !unlocked {
		t.Fatalf("expected first unlock, got %v %v", unlocked, err)
	}
	unlocked, err = c.Unlock(ctx, models.AchievementGoalReached)
	if err != nil || unlocked {
		t.Errorf("expected repeat unlock to be a no-op, got %v %v", unlocked, err)
	}
	list, _ := c.Achievements(ctx)
	if len(list) != 1 {
		t.Errorf("expected 1 achievement, got %d", len(list))
	}

	if err := c.DeleteGoal(ctx, g.ID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}
	if goals, _ := c.Goals(ctx); len(goals) != 0 {
		t.Errorf("expected no goals, got %d", len(goals))
	}
}

func TestSession(t *testing.T) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	user := &models.User{ID: "user-1", Email: "a@example.com"}
	token, _, err := tokens.Sign(user)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	t.Run("memoizes and invalidates", func(t *testing.T) {
		local := storage.NewSession()
		s := NewSession(tokens, local)

		if _, err := s.UserID(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated before sign in, got %v", err)
		}

		var events []AuthEvent
		unsubscribe := s.OnAuthStateChange(func(ev AuthEvent) { events = append(events, ev) })

		if err := s.SignIn(token); err != nil {
			t.Fatalf("sign in: %v", err)
		}
		id, err := s.UserID()
		if err != nil || id != "user-1" {
			t.Fatalf("expected user-1, got %q %v", id, err)
		}
		if stored, _ := local.Get(storage.KeyAuthToken); stored != token {
			t.Error("token should be mirrored to storage")
		}

		if err := s.SignOut(); err != nil {
			t.Fatalf("sign out: %v", err)
		}
		if _, err := s.UserID(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected memo cleared on sign out, got %v", err)
		}

		unsubscribe()
		_ = s.SignIn(token)
		if len(events) != 2 || events[0] != SignedIn || events[1] != SignedOut {
			t.Errorf("unexpected events %v", events)
		}
	})

	t.Run("restores token from storage", func(t *testing.T) {
		local := storage.NewSession()
		_ = local.Set(storage.KeyAuthToken, token)

		id, err := NewSession(tokens, local).UserID()
		if err != nil || id != "user-1" {
			t.Errorf("expected restored user-1, got %q %v", id, err)
		}
	})

	t.Run("bad token", func(t *testing.T) {
		s := NewSession(tokens, nil)
		_ = s.SignIn("not-a-token")
		if _, err := s.UserID(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestAutoSaver(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("coalesces edits", func(t *testing.T) {
		var (
			mu    sync.Mutex
			saves []models.ProgressUpdate
		)
		done := make(chan error, 4)
		a := NewAutoSaver(40*time.Millisecond, func(_ context.Context, upd models.ProgressUpdate) error {
			mu.Lock()
			saves = append(saves, upd)
			mu.Unlock()
			return nil
		}, func(err error) { done <- err })
		defer a.Stop()

		a.Edit(models.ProgressUpdate{LastChapter: ptr(1)})
		a.Edit(models.ProgressUpdate{LastChapter: ptr(2)})
		a.Edit(models.ProgressUpdate{Rating: ptr(7)})

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("save: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("autosave never fired")
		}

		mu.Lock()
		defer mu.Unlock()
		if len(saves) != 1 {
			t.Fatalf("expected 1 save, got %d", len(saves))
		}
		if *saves[0].LastChapter != 2 || *saves[0].Rating != 7 {
			t.Errorf("unexpected merged update %+v", saves[0])
		}
		if a.Pending() {
			t.Error("nothing should be pending after save")
		}
	})

	t.Run("flush saves immediately", func(t *testing.T) {
		var calls atomic.Int32
		a := NewAutoSaver(time.Hour, func(context.Context, models.ProgressUpdate) error {
			calls.Add(1)
			return nil
		}, nil)
		defer a.Stop()

		a.Edit(models.ProgressUpdate{LastChapter: ptr(3)})
		if err := a.Flush(context.Background()); err != nil {
			t.Fatalf("flush: %v", err)
		}
		if err := a.Flush(context.Background()); err != nil {
			t.Fatalf("second flush: %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected 1 save, got %d", calls.Load())
		}
	})

	t.Run("failed save stays pending", func(t *testing.T) {
		a := NewAutoSaver(time.Hour, func(context.Context, models.ProgressUpdate) error {
			return errors.New("offline")
		}, nil)
		defer a.Stop()

		a.Edit(models.ProgressUpdate{LastChapter: ptr(3)})
		if err := a.Flush(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if !a.Pending() {
			t.Error("update should remain pending after failure")
		}
	})

	t.Run("stop discards", func(t *testing.T) {
		var calls atomic.Int32
		a := NewAutoSaver(20*time.Millisecond, func(context.Context, models.ProgressUpdate) error {
			calls.Add(1)
			return nil
		}, nil)

		a.Edit(models.ProgressUpdate{LastChapter: ptr(3)})
		a.Stop()
		a.Edit(models.ProgressUpdate{LastChapter: ptr(4)})
		time.Sleep(50 * time.Millisecond)
		if calls.Load() != 0 {
			t.Errorf("expected no saves after stop, got %d", calls.Load())
		}
	})

	t.Run("entry autosaver writes through client", func(t *testing.T) {
		ctx := context.Background()
		store := setupTestStore(t)
		c := newTestClient(t, store, "a@example.com")
		id, _ := c.AddToLibrary(ctx, manga("m1", "Tower"))

		a := c.EntryAutoSaver(id, time.Hour, nil)
		defer a.Stop()
		a.Edit(models.ProgressUpdate{Status: ptr(models.StatusCompleted), LastChapter: ptr(120)})
		if err := a.Flush(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}

		got, _ := c.Entry(ctx, id)
		if got.Progress.Status != models.StatusCompleted || got.Progress.LastChapter != 120 {
			t.Errorf("unexpected progress %+v", got.Progress)
		}
	})
}
