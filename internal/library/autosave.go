package library

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/manhwatrack/internal/models"
)

// DefaultAutoSaveDelay is the quiet period after the last edit before progress is saved.
const DefaultAutoSaveDelay = time.Second

// SaveFunc persists a merged progress update.
type SaveFunc func(ctx context.Context, upd models.ProgressUpdate) error

// AutoSaver debounces progress edits: each [AutoSaver.Edit] restarts a fixed delay, and the
// merged pending update is saved once the delay passes without another edit.
type AutoSaver struct {
	mu      sync.Mutex
	saveMu  sync.Mutex
	delay   time.Duration
	save    SaveFunc
	onSaved func(error)
	pending models.ProgressUpdate
	timer   *time.Timer
	stopped bool
}

// NewAutoSaver creates a debouncer around save. onSaved, if non-nil, receives the result of
// every timer-driven save.
func NewAutoSaver(delay time.Duration, save SaveFunc, onSaved func(error)) *AutoSaver {
	if delay <= 0 {
		delay = DefaultAutoSaveDelay
	}
	return &AutoSaver{delay: delay, save: save, onSaved: onSaved}
}

// EntryAutoSaver debounces edits to one entry's progress through c.
func (c *Client) EntryAutoSaver(entryID string, delay time.Duration, onSaved func(error)) *AutoSaver {
	return NewAutoSaver(delay, func(ctx context.Context, upd models.ProgressUpdate) error {
		_, err := c.SaveProgress(ctx, entryID, upd)
		return err
	}, onSaved)
}

// Edit merges upd into the pending update and restarts the delay.
func (a *AutoSaver) Edit(upd models.ProgressUpdate) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}
	a.pending = a.pending.Merge(upd)
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.fire)
}

// Pending reports whether an unsaved update is waiting.
func (a *AutoSaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.pending.IsZero()
}

// Flush cancels the delay and saves any pending update now.
func (a *AutoSaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	return a.saveNow(ctx)
}

// Stop cancels the delay and discards any pending update.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	a.pending = models.ProgressUpdate{}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *AutoSaver) fire() {
	err := a.saveNow(context.Background())
	if a.onSaved != nil {
		a.onSaved(err)
	}
}

// saveNow takes the pending update and saves it; saves never overlap.
func (a *AutoSaver) saveNow(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	upd := a.pending
	a.pending = models.ProgressUpdate{}
	a.mu.Unlock()

	if upd.IsZero() {
		return nil
	}
	if err := a.save(ctx, upd); err != nil {
		a.mu.Lock()
		a.pending = upd.Merge(a.pending)
		a.mu.Unlock()
		return err
	}
	return nil
}
