// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// NewTestStore opens an in-memory database with migrations applied and returns its repositories.
func NewTestStore(t *testing.T) *repositories.Store {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return repositories.NewStore(db)
}

// MustCreateUser inserts a user with a placeholder password hash.
func MustCreateUser(t *testing.T, store *repositories.Store, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: "Reader", PasswordHash: "hash"}
	if err := store.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// SampleLibrary returns entries in each status with fixed timestamps.
func SampleLibrary() []models.EntryWithProgress {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rating := func(r int) *int { return &r }
	total := func(n int) *int { return &n }

	entry := func(id, title string, status models.Status, chapter int, r *int, tot *int, updated time.Time) models.EntryWithProgress {
		return models.EntryWithProgress{
			LibraryEntry: models.LibraryEntry{
				ID:            id,
				UserID:        "user-1",
				CatalogID:     "cat-" + id,
				Title:         title,
				CoverURL:      "https://uploads.mangadex.org/covers/cat-" + id + "/cover.jpg.512.jpg",
				TotalChapters: tot,
				CreatedAt:     base.AddDate(0, -1, 0),
			},
			Progress: &models.ProgressRecord{
				ID:          "p-" + id,
				EntryID:     id,
				UserID:      "user-1",
				Status:      status,
				LastChapter: chapter,
				Rating:      r,
				Notes:       "",
				UpdatedAt:   updated,
			},
		}
	}

	return []models.EntryWithProgress{
		entry("e1", "Solo Leveling", models.StatusCompleted, 179, rating(9), total(179), base),
		entry("e2", "Tower of God", models.StatusReading, 550, rating(8), nil, base.Add(-24*time.Hour)),
		entry("e3", "The Breaker", models.StatusOnHold, 40, nil, total(72), base.AddDate(0, -2, 0)),
		entry("e4", "Noblesse", models.StatusDropped, 12, rating(4), total(544), base.AddDate(0, -3, 0)),
		entry("e5", "Omniscient Reader", models.StatusPlanToRead, 0, nil, nil, base.AddDate(0, -1, 0)),
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
