package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/manhwatrack/internal/shared"
)

const (
	MinRating = 0
	MaxRating = 10
)

// LibraryEntry is a user's saved reference to a catalog title.
type LibraryEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CatalogID     string    `json:"catalog_id"`
	Title         string    `json:"title"`
	CoverURL      string    `json:"cover_url"`
	Description   string    `json:"description"`
	TotalChapters *int      `json:"total_chapters,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate implements [Model].
func (e *LibraryEntry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: entry user id is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(e.CatalogID) == "" {
		return fmt.Errorf("%w: entry catalog id is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: entry title is required", shared.ErrInvalidInput)
	}
	if e.TotalChapters != nil && *e.TotalChapters < 0 {
		return fmt.Errorf("%w: total chapters cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// ProgressRecord is the reading state of exactly one [LibraryEntry].
type ProgressRecord struct {
	ID          string    `json:"id"`
	EntryID     string    `json:"entry_id"`
	UserID      string    `json:"user_id"`
	Status      Status    `json:"status"`
	LastChapter int       `json:"last_chapter"`
	Rating      *int      `json:"rating,omitempty"`
	Notes       string    `json:"notes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProgress returns the record created alongside a new entry.
func NewProgress(entryID, userID string) *ProgressRecord {
	return &ProgressRecord{
		EntryID: entryID,
		UserID:  userID,
		Status:  StatusPlanToRead,
	}
}

// Validate implements [Model].
func (p *ProgressRecord) Validate() error {
	if p.EntryID == "" {
		return fmt.Errorf("%w: progress entry id is required", shared.ErrInvalidInput)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, p.Status)
	}
	if p.LastChapter < 0 {
		return fmt.Errorf("%w: last chapter cannot be negative", shared.ErrInvalidInput)
	}
	if p.Rating != nil && (*p.Rating < MinRating || *p.Rating > MaxRating) {
		return fmt.Errorf("%w: rating must be between %d and %d", shared.ErrInvalidInput, MinRating, MaxRating)
	}
	return nil
}

// EntryWithProgress is the composite read of an entry and its (at most one) progress record.
type EntryWithProgress struct {
	LibraryEntry
	Progress *ProgressRecord `json:"progress,omitempty"`
}

// Status returns the entry's reading status, defaulting to plan to read when no progress exists.
func (e EntryWithProgress) Status() Status {
	if e.Progress == nil {
		return StatusPlanToRead
	}
	return e.Progress.Status
}

// Chapter returns the last chapter read, or 0.
func (e EntryWithProgress) Chapter() int {
	if e.Progress == nil {
		return 0
	}
	return e.Progress.LastChapter
}

// LastActivity is the most recent of the entry's creation and progress update times.
func (e EntryWithProgress) LastActivity() time.Time {
	if e.Progress != nil && e.Progress.UpdatedAt.After(e.CreatedAt) {
		return e.Progress.UpdatedAt
	}
	return e.CreatedAt
}

// ProgressUpdate is a partial edit to a progress record. Nil fields are left unchanged.
type ProgressUpdate struct {
	Status      *Status `json:"status,omitempty"`
	LastChapter *int    `json:"last_chapter,omitempty"`
	Rating      *int    `json:"rating,omitempty"`
	ClearRating bool    `json:"clear_rating,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// IsZero reports whether the update changes nothing.
func (u ProgressUpdate) IsZero() bool {
	return u.Status == nil && u.LastChapter == nil && u.Rating == nil && !u.ClearRating && u.Notes == nil
}

// Merge layers next over u, later fields winning.
func (u ProgressUpdate) Merge(next ProgressUpdate) ProgressUpdate {
	if next.Status != nil {
		u.Status = next.Status
	}
	if next.LastChapter != nil {
		u.LastChapter = next.LastChapter
	}
	if next.Rating != nil {
		u.Rating = next.Rating
		u.ClearRating = false
	}
	if next.ClearRating {
		u.Rating = nil
		u.ClearRating = true
	}
	if next.Notes != nil {
		u.Notes = next.Notes
	}
	return u
}

// Apply writes the update onto p.
func (u ProgressUpdate) Apply(p *ProgressRecord) {
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.LastChapter != nil {
		p.LastChapter = *u.LastChapter
	}
	if u.ClearRating {
		p.Rating = nil
	} else if u.Rating != nil {
		r := *u.Rating
		p.Rating = &r
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}
}
