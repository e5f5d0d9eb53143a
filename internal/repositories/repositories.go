// package repositories provides persistence layer implementations for all model types.
//
// Every query against user data carries the owning user id in its predicate.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/desertthunder/manhwatrack/internal/shared"
)

// Store groups the repositories that share one database handle.
type Store struct {
	DB           *sql.DB
	Users        *UserRepository
	Entries      *EntryRepository
	Progress     *ProgressRepository
	Goals        *GoalRepository
	Achievements *AchievementRepository
}

// NewStore creates every repository over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:           db,
		Users:        NewUserRepository(db),
		Entries:      NewEntryRepository(db),
		Progress:     NewProgressRepository(db),
		Goals:        NewGoalRepository(db),
		Achievements: NewAchievementRepository(db),
	}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// expectAffected turns a zero-row update or delete into [shared.ErrNotFound].
func expectAffected(result sql.Result, what, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, what, id)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
