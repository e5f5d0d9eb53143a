// Package repositories implements SQLite persistence for all domain entities.
//
// Repositories accept a context and the owning user id on every call touching user data,
// and scope each statement with "user_id = ?". Missing rows wrap [shared.ErrNotFound];
// unique constraint violations wrap [shared.ErrAlreadyExists] (or [shared.ErrEmailTaken]).
//
// Key Implementations:
//   - [UserRepository] : accounts keyed by normalized email
//   - [EntryRepository] : library entries, including the joined entry + progress read
//   - [ProgressRepository] : upsert keyed by entry id (one record per entry)
//   - [GoalRepository] : reading goals and their recomputed values
//   - [AchievementRepository] : unlocked achievements, unique per type per user
//
// [Store] bundles them over one *sql.DB.
package repositories
