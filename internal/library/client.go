package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/manhwatrack/internal/catalog"
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/sanitize"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// Text field caps, in runes.
const (
	maxTitleLen       = 300
	maxDescriptionLen = 5000
	maxNotesLen       = 2000
	maxGoalTitleLen   = 120
)

// Client performs library operations on behalf of a [Session]'s user.
type Client struct {
	store   *repositories.Store
	session *Session
	logger  *log.Logger
	now     func() time.Time
}

// NewClient creates a persistence client.
func NewClient(store *repositories.Store, session *Session, logger *log.Logger) *Client {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Client{
		store:   store,
		session: session,
		logger:  shared.WithLogger(logger, "component", "library"),
		now:     time.Now,
	}
}

// WithSession returns a client sharing c's store but acting for s.
func (c *Client) WithSession(s *Session) *Client {
	clone := *c
	clone.session = s
	return &clone
}

// Session returns the client's session.
func (c *Client) Session() *Session { return c.session }

// Store returns the underlying repositories.
func (c *Client) Store() *repositories.Store { return c.store }

func (c *Client) userID() (string, error) {
	if c.session == nil {
		return "", shared.ErrNotAuthenticated
	}
	return c.session.UserID()
}

// AddToLibrary saves a catalog title for the user with default progress and returns the entry id.
// Adding a title that is already saved returns the existing entry id.
func (c *Client) AddToLibrary(ctx context.Context, item models.Manga) (string, error) {
	uid, err := c.userID()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(item.ID) == "" {
		return "", fmt.Errorf("%w: catalog id is required", shared.ErrInvalidInput)
	}

	existing, err := c.store.Entries.GetByCatalogID(ctx, uid, item.ID)
	switch {
	case err == nil:
		return existing.ID, nil
	case !errors.Is(err, shared.ErrNotFound):
		return "", err
	}

	entry := &models.LibraryEntry{
		UserID:        uid,
		CatalogID:     item.ID,
		Title:         sanitize.Text(item.Title, maxTitleLen),
		CoverURL:      strings.TrimSpace(item.CoverURL),
		Description:   sanitize.Text(item.Description, maxDescriptionLen),
		TotalChapters: catalog.TotalChapters(item),
	}
	if err := c.store.Entries.Create(ctx, entry); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			existing, getErr := c.store.Entries.GetByCatalogID(ctx, uid, item.ID)
			if getErr != nil {
				return "", getErr
			}
			return existing.ID, nil
		}
		return "", err
	}

	if err := c.store.Progress.Upsert(ctx, models.NewProgress(entry.ID, uid)); err != nil {
		c.logger.Error("entry saved without progress", "entry", entry.ID, "error", err)
		return entry.ID, err
	}

	c.logger.Debug("added to library", "entry", entry.ID, "catalog_id", item.ID)
	return entry.ID, nil
}

// Library lists the user's entries with their progress.
func (c *Client) Library(ctx context.Context, f repositories.Filter) ([]models.EntryWithProgress, error) {
	uid, err := c.userID()
	if err != nil {
		return nil, err
	}
	return c.store.Entries.ListWithProgress(ctx, uid, f)
}

// Entry returns one entry with its progress.
func (c *Client) Entry(ctx context.Context, id string) (*models.EntryWithProgress, error) {
	uid, err := c.userID()
	if err != nil {
		return nil, err
	}
	return c.store.Entries.GetWithProgress(ctx, uid, id)
}

// EntryByCatalogID returns the user's entry for a catalog title, if saved.
func (c *Client) EntryByCatalogID(ctx context.Context, catalogID string) (*models.LibraryEntry, error) {
	uid, err := c.userID()
	if err != nil {
		return nil, err
	}
	return c.store.Entries.GetByCatalogID(ctx, uid, catalogID)
}

// SaveProgress applies upd to the entry's progress record, creating it when missing.
// Saving the same update twice leaves one record with the same values.
func (c *Client) SaveProgress(ctx context.Context, entryID string, upd models.ProgressUpdate) (*models.ProgressRecord, error) {
	if err := validateUpdate(upd); err != nil {
		return nil, err
	}

	uid, err := c.userID()
	if err != nil {
		return nil, err
	}
	if _, err := c.store.Entries.Get(ctx, uid, entryID); err != nil {
		return nil, err
	}

	record, err := c.store.Progress.GetByEntry(ctx, uid, entryID)
	if errors.Is(err, shared.ErrNotFound) {
		record = models.NewProgress(entryID, uid)
	} else if err != nil {
		return nil, err
	}

	if upd.Notes != nil {
		notes := sanitize.Text(*upd.Notes, maxNotesLen)
		upd.Notes = &notes
	}
	upd.Apply(record)

	if err := c.store.Progress.Upsert(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func validateUpdate(upd models.ProgressUpdate) error {
	if upd.Status != nil && !upd.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, *upd.Status)
	}
	if upd.LastChapter != nil && *upd.LastChapter < 0 {
		return fmt.Errorf("%w: last chapter cannot be negative", shared.ErrInvalidInput)
	}
	if upd.Rating != nil && (*upd.Rating < models.MinRating || *upd.Rating > models.MaxRating) {
		return fmt.Errorf("%w: rating must be between %d and %d", shared.ErrInvalidInput, models.MinRating, models.MaxRating)
	}
	return nil
}

// UpdateEntry refreshes an entry's catalog metadata.
func (c *Client) UpdateEntry(ctx context.Context, entry *models.LibraryEntry) error {
	uid, err := c.userID()
	if err != nil {
		return err
	}
	entry.UserID = uid
	entry.Title = sanitize.Text(entry.Title, maxTitleLen)
	entry.Description = sanitize.Text(entry.Description, maxDescriptionLen)
	return c.store.Entries.Update(ctx, entry)
}

// RemoveFromLibrary deletes the entry's progress and then the entry itself.
//
// The steps are not transactional; a failure in the second step is logged and returned.
func (c *Client) RemoveFromLibrary(ctx context.Context, id string) error {
	uid, err := c.userID()
	if err != nil {
		return err
	}

	if err := c.store.Progress.DeleteByEntry(ctx, uid, id); err != nil {
		c.logger.Error("failed to remove progress", "entry", id, "error", err)
		return err
	}
	if err := c.store.Entries.Delete(ctx, uid, id); err != nil {
		c.logger.Error("progress removed but entry delete failed", "entry", id, "error", err)
		return err
	}

	c.logger.Debug("removed from library", "entry", id)
	return nil
}

// Goals lists the user's goals.
func (c *Client) Goals(ctx context.Context) ([]*models.Goal, error) {
	uid, err := c.userID()
	if err != nil {
		return nil, err
	}
	return c.store.Goals.List(ctx, uid)
}

// CreateGoal stores a new goal. Monthly and yearly goals without dates get the current window,
// and an empty title gets a generated one.
func (c *Client) CreateGoal(ctx context.Context, g *models.Goal) error {
	uid, err := c.userID()
	if err != nil {
		return err
	}
	g.UserID = uid

	if g.StartDate.IsZero() && g.EndDate.IsZero() {
		if start, end, ok := models.PeriodRange(g.Period, c.now()); ok {
			g.StartDate, g.EndDate = start, end
		}
	}
	g.Title = sanitize.Text(g.Title, maxGoalTitleLen)
	if g.Title == "" {
		g.Title = g.DefaultTitle()
	}
	return c.store.Goals.Create(ctx, g)
}

// SaveGoal stores a goal's recomputed progress.
func (c *Client) SaveGoal(ctx context.Context, g *models.Goal) error {
	uid, err := c.userID()
	if err != nil {
		return err
	}
	g.UserID = uid
	return c.store.Goals.UpdateProgress(ctx, g)
}

// DeleteGoal removes a goal.
func (c *Client) DeleteGoal(ctx context.Context, id string) error {
	uid, err := c.userID()
	if err != nil {
		return err
	}
	return c.store.Goals.Delete(ctx, uid, id)
}

// Achievements lists the user's unlocked achievements.
func (c *Client) Achievements(ctx context.Context) ([]*models.Achievement, error) {
	uid, err := c.userID()
	if err != nil {
		return nil, err
	}
	return c.store.Achievements.List(ctx, uid)
}

// Unlock records an achievement and reports whether it was newly unlocked.
func (c *Client) Unlock(ctx context.Context, t models.AchievementType) (bool, error) {
	uid, err := c.userID()
	if err != nil {
		return false, err
	}

	has, err := c.store.Achievements.Has(ctx, uid, t)
	if err != nil || has {
		return false, err
	}

	err = c.store.Achievements.Create(ctx, &models.Achievement{UserID: uid, Type: t, UnlockedAt: c.now().UTC()})
	if errors.Is(err, shared.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	c.logger.Info("achievement unlocked", "type", t)
	return true, nil
}
