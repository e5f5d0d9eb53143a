package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// ProgressRepository persists [models.ProgressRecord] rows, at most one per entry.
type ProgressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new [ProgressRepository].
func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Upsert inserts the record or, when one already exists for the entry, overwrites it in place.
//
// The record's ID and UpdatedAt are refreshed from the stored row.
func (r *ProgressRepository) Upsert(ctx context.Context, p *models.ProgressRecord) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()
	query := `
		INSERT INTO progress (id, entry_id, user_id, status, last_chapter, rating, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
			status = excluded.status,
			last_chapter = excluded.last_chapter,
			rating = excluded.rating,
			notes = excluded.notes,
			updated_at = excluded.updated_at
		WHERE progress.user_id = excluded.user_id
	`
	result, err := r.db.ExecContext(ctx, query,
		shared.GenerateID(),
		p.EntryID,
		p.UserID,
		string(p.Status),
		p.LastChapter,
		nullInt(p.Rating),
		p.Notes,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	if err := expectAffected(result, "progress for entry", p.EntryID); err != nil {
		return err
	}

	stored, err := r.GetByEntry(ctx, p.UserID, p.EntryID)
	if err != nil {
		return err
	}
	p.ID = stored.ID
	return nil
}

// GetByEntry returns the progress record for an entry owned by userID.
func (r *ProgressRepository) GetByEntry(ctx context.Context, userID, entryID string) (*models.ProgressRecord, error) {
	var (
		p      models.ProgressRecord
		status string
		rating sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, entry_id, user_id, status, last_chapter, rating, notes, updated_at
		FROM progress
		WHERE entry_id = ? AND user_id = ?
	`, entryID, userID).Scan(&p.ID, &p.EntryID, &p.UserID, &status, &p.LastChapter, &rating, &p.Notes, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: progress for entry %s", shared.ErrNotFound, entryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	p.Status = models.Status(status)
	p.Rating = intPtr(rating)
	return &p, nil
}

// DeleteByEntry removes the entry's progress record. A missing record is not an error.
func (r *ProgressRepository) DeleteByEntry(ctx context.Context, userID, entryID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM progress WHERE entry_id = ? AND user_id = ?`, entryID, userID); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// CountOrphans returns progress rows whose entry no longer exists.
func (r *ProgressRepository) CountOrphans(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM progress p
		WHERE NOT EXISTS (SELECT 1 FROM library_entries e WHERE e.id = p.entry_id)
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count orphaned progress: %w", err)
	}
	return n, nil
}
