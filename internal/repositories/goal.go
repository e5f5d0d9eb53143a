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

// GoalRepository persists [models.Goal] rows.
type GoalRepository struct {
	db *sql.DB
}

// NewGoalRepository creates a new [GoalRepository].
func NewGoalRepository(db *sql.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

const goalColumns = `id, user_id, title, period, target_type, target_value, current_value, completed, start_date, end_date, created_at`

// Create inserts a goal with a generated ID.
func (r *GoalRepository) Create(ctx context.Context, g *models.Goal) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	g.ID = shared.GenerateID()
	g.CreatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (`+goalColumns+`, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		g.ID, g.UserID, g.Title, string(g.Period), string(g.Target), g.TargetValue, g.CurrentValue,
		g.Completed, g.StartDate, g.EndDate, g.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// Get retrieves a goal owned by userID.
func (r *GoalRepository) Get(ctx context.Context, userID, id string) (*models.Goal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: goal %s", shared.ErrNotFound, id)
	}
	return g, err
}

// List returns the user's goals, newest first.
func (r *GoalRepository) List(ctx context.Context, userID string) ([]*models.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []*models.Goal
	for rows.Next() {
		g, err := scanGoal(rows.Scan)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return goals, nil
}

// UpdateProgress stores a recomputed current value and completion flag.
func (r *GoalRepository) UpdateProgress(ctx context.Context, g *models.Goal) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE goals SET current_value = ?, completed = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, g.CurrentValue, g.Completed, time.Now().UTC(), g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return expectAffected(result, "goal", g.ID)
}

// Delete removes a goal owned by userID.
func (r *GoalRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return expectAffected(result, "goal", id)
}

func scanGoal(scan func(...any) error) (*models.Goal, error) {
	var (
		g              models.Goal
		period, target string
	)
	err := scan(&g.ID, &g.UserID, &g.Title, &period, &target, &g.TargetValue, &g.CurrentValue,
		&g.Completed, &g.StartDate, &g.EndDate, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan goal: %w", err)
	}
	g.Period = models.GoalPeriod(period)
	g.Target = models.GoalTarget(target)
	return &g, nil
}
