package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// EntryRepository persists [models.LibraryEntry] rows and the composite entry + progress read.
type EntryRepository struct {
	db *sql.DB
}

// NewEntryRepository creates a new [EntryRepository].
func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// SortKey orders library listings.
type SortKey string

const (
	SortUpdated SortKey = "updated"
	SortTitle   SortKey = "title"
	SortAdded   SortKey = "added"
	SortChapter SortKey = "chapter"
	SortRating  SortKey = "rating"
)

// Filter narrows a library listing. Zero values match everything.
type Filter struct {
	Status models.Status
	Query  string // case-insensitive title substring
	Sort   SortKey
	Limit  int
}

// Create inserts a new entry. An existing (user, catalog id) pair returns [shared.ErrAlreadyExists].
func (r *EntryRepository) Create(ctx context.Context, entry *models.LibraryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	entry.ID = shared.GenerateID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO library_entries (id, user_id, catalog_id, title, cover_url, description, total_chapters, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.CatalogID,
		entry.Title,
		entry.CoverURL,
		entry.Description,
		nullInt(entry.TotalChapters),
		entry.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: catalog title %s", shared.ErrAlreadyExists, entry.CatalogID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// Get retrieves an entry owned by userID.
func (r *EntryRepository) Get(ctx context.Context, userID, id string) (*models.LibraryEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, catalog_id, title, cover_url, description, total_chapters, created_at
		FROM library_entries
		WHERE id = ? AND user_id = ?
	`, id, userID)
	return scanEntry(row, id)
}

// GetByCatalogID retrieves the user's entry for a catalog title.
func (r *EntryRepository) GetByCatalogID(ctx context.Context, userID, catalogID string) (*models.LibraryEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, catalog_id, title, cover_url, description, total_chapters, created_at
		FROM library_entries
		WHERE catalog_id = ? AND user_id = ?
	`, catalogID, userID)
	return scanEntry(row, catalogID)
}

// Update rewrites an entry's catalog metadata.
func (r *EntryRepository) Update(ctx context.Context, entry *models.LibraryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE library_entries
		SET title = ?, cover_url = ?, description = ?, total_chapters = ?
		WHERE id = ? AND user_id = ?
	`, entry.Title, entry.CoverURL, entry.Description, nullInt(entry.TotalChapters), entry.ID, entry.UserID)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return expectAffected(result, "entry", entry.ID)
}

// Delete removes an entry owned by userID.
func (r *EntryRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM library_entries WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return expectAffected(result, "entry", id)
}

// Count returns the number of entries owned by userID.
func (r *EntryRepository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM library_entries WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// ListWithProgress returns the user's entries joined with their progress records.
func (r *EntryRepository) ListWithProgress(ctx context.Context, userID string, f Filter) ([]models.EntryWithProgress, error) {
	query := `
		SELECT e.id, e.user_id, e.catalog_id, e.title, e.cover_url, e.description, e.total_chapters, e.created_at,
			p.id, p.status, p.last_chapter, p.rating, p.notes, p.updated_at
		FROM library_entries e
		LEFT JOIN progress p ON p.entry_id = e.id AND p.user_id = e.user_id
		WHERE e.user_id = ?
	`
	args := []any{userID}

	if f.Status != "" {
		if f.Status == models.StatusPlanToRead {
			query += " AND (p.status = ? OR p.id IS NULL)"
		} else {
			query += " AND p.status = ?"
		}
		args = append(args, string(f.Status))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		query += " AND e.title LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}

	query += " ORDER BY " + orderClause(f.Sort)

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query library: %w", err)
	}
	defer rows.Close()

	var out []models.EntryWithProgress
	for rows.Next() {
		item, err := scanEntryWithProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// GetWithProgress returns one entry joined with its progress record.
func (r *EntryRepository) GetWithProgress(ctx context.Context, userID, id string) (*models.EntryWithProgress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.catalog_id, e.title, e.cover_url, e.description, e.total_chapters, e.created_at,
			p.id, p.status, p.last_chapter, p.rating, p.notes, p.updated_at
		FROM library_entries e
		LEFT JOIN progress p ON p.entry_id = e.id AND p.user_id = e.user_id
		WHERE e.id = ? AND e.user_id = ?
	`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query entry: %w", err)
		}
		return nil, fmt.Errorf("%w: entry %s", shared.ErrNotFound, id)
	}

	item, err := scanEntryWithProgress(rows)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func orderClause(key SortKey) string {
	switch key {
	case SortTitle:
		return "e.title COLLATE NOCASE ASC"
	case SortAdded:
		return "e.created_at DESC"
	case SortChapter:
		return "COALESCE(p.last_chapter, 0) DESC, e.title COLLATE NOCASE ASC"
	case SortRating:
		return "p.rating IS NULL, p.rating DESC, e.title COLLATE NOCASE ASC"
	default:
		return "COALESCE(p.updated_at, e.created_at) DESC"
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanEntry(row *sql.Row, key string) (*models.LibraryEntry, error) {
	var (
		e     models.LibraryEntry
		total sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.UserID, &e.CatalogID, &e.Title, &e.CoverURL, &e.Description, &total, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entry %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}
	e.TotalChapters = intPtr(total)
	return &e, nil
}

func scanEntryWithProgress(rows *sql.Rows) (models.EntryWithProgress, error) {
	var (
		item      models.EntryWithProgress
		total     sql.NullInt64
		pID       sql.NullString
		status    sql.NullString
		chapter   sql.NullInt64
		rating    sql.NullInt64
		notes     sql.NullString
		updatedAt sql.NullTime
	)

	err := rows.Scan(
		&item.ID, &item.UserID, &item.CatalogID, &item.Title, &item.CoverURL, &item.Description, &total, &item.CreatedAt,
		&pID, &status, &chapter, &rating, &notes, &updatedAt,
	)
	if err != nil {
		return item, fmt.Errorf("failed to scan entry: %w", err)
	}
	item.TotalChapters = intPtr(total)

	if pID.Valid {
		item.Progress = &models.ProgressRecord{
			ID:          pID.String,
			EntryID:     item.ID,
			UserID:      item.UserID,
			Status:      models.Status(status.String),
			LastChapter: int(chapter.Int64),
			Rating:      intPtr(rating),
			Notes:       notes.String,
			UpdatedAt:   updatedAt.Time,
		}
	}
	return item, nil
}
