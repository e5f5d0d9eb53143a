package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// AchievementRepository persists unlocked [models.Achievement] rows.
type AchievementRepository struct {
	db *sql.DB
}

// NewAchievementRepository creates a new [AchievementRepository].
func NewAchievementRepository(db *sql.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Has reports whether the user already unlocked t.
func (r *AchievementRepository) Has(ctx context.Context, userID string, t models.AchievementType) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM achievements WHERE user_id = ? AND type = ?)`, userID, string(t),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check achievement: %w", err)
	}
	return exists, nil
}

// Create records an unlock. A repeat unlock returns [shared.ErrAlreadyExists].
func (r *AchievementRepository) Create(ctx context.Context, a *models.Achievement) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	a.ID = shared.GenerateID()
	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO achievements (id, user_id, type, unlocked_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.UserID, string(a.Type), a.UnlockedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: achievement %s", shared.ErrAlreadyExists, a.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to insert achievement: %w", err)
	}
	return nil
}

// List returns the user's unlocked achievements in unlock order.
func (r *AchievementRepository) List(ctx context.Context, userID string) ([]*models.Achievement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, unlocked_at FROM achievements WHERE user_id = ? ORDER BY unlocked_at ASC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var out []*models.Achievement
	for rows.Next() {
		var (
			a models.Achievement
			t string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &t, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Type = models.AchievementType(t)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
