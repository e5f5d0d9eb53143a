package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/manhwatrack/internal/catalog"
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/sanitize"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

const (
	defaultWorkers   = 5
	maxWorkers       = 10
	defaultRateLimit = 4.0
)

var errNotInCatalog = errors.New("title not found in catalog")

// RefreshOpts contains configuration for metadata refreshes.
type RefreshOpts struct {
	NumWorkers int     // Concurrent workers (default: 5, max: 10)
	RateLimit  float64 // Lookups per second (default: 4)
}

// EntryRefresh is the outcome for one entry.
type EntryRefresh struct {
	EntryID string `json:"entry_id"`
	Title   string `json:"title"`
	Changed bool   `json:"changed"`
	Error   error  `json:"-"`
}

// RefreshResult summarizes a refresh run.
type RefreshResult struct {
	Total     int            `json:"total"`
	Updated   int            `json:"updated"`
	Unchanged int            `json:"unchanged"`
	Failed    int            `json:"failed"`
	Results   []EntryRefresh `json:"results"`
}

// RefreshMetadata re-fetches every entry from the catalog and stores changed titles, covers, and chapter counts.
//
// Lookups go through a worker pool behind a shared rate limiter; individual failures are recorded on the result.
func (e *LibraryEngine) RefreshMetadata(ctx context.Context, progress chan<- ProgressUpdate, opts RefreshOpts) (*RefreshResult, error) {
	if e.library == nil || e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}

	entries, err := e.library.Library(ctx, repositories.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	result := &RefreshResult{
		Total:   len(entries),
		Results: make([]EntryRefresh, 0, len(entries)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan models.LibraryEntry, len(entries))
	results := make(chan EntryRefresh, len(entries))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.refreshWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, entry := range entries {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- entry.LibraryEntry
			e.sendProgress(progress, refreshingUpdate(i+1, len(entries), entry.Title))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		switch {
		case res.Error != nil:
			result.Failed++
			e.sendProgress(progress, refreshFailedUpdate(completed, len(entries), res.Title, res.Error))
		case res.Changed:
			result.Updated++
			e.sendProgress(progress, refreshCompletedUpdate(completed, len(entries), res.Title, true))
		default:
			result.Unchanged++
			e.sendProgress(progress, refreshCompletedUpdate(completed, len(entries), res.Title, false))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// refreshWorker refreshes entries from the jobs channel.
func (e *LibraryEngine) refreshWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan models.LibraryEntry, results chan<- EntryRefresh) {
	defer wg.Done()

	for entry := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- e.refreshEntry(ctx, entry)
	}
}

func (e *LibraryEngine) refreshEntry(ctx context.Context, entry models.LibraryEntry) EntryRefresh {
	res := EntryRefresh{EntryID: entry.ID, Title: entry.Title}

	m := e.catalog.Get(ctx, entry.CatalogID)
	if m == nil {
		res.Error = errNotInCatalog
		return res
	}

	if !applyMetadata(&entry, m) {
		return res
	}
	if err := e.library.UpdateEntry(ctx, &entry); err != nil {
		res.Error = err
		return res
	}
	res.Title = entry.Title
	res.Changed = true
	return res
}

// applyMetadata copies catalog fields onto entry, reporting whether anything changed.
// Empty catalog values never overwrite stored ones.
func applyMetadata(entry *models.LibraryEntry, m *models.Manga) bool {
	changed := false

	if title := sanitize.Text(m.Title, 300); title != "" && title != entry.Title {
		entry.Title = title
		changed = true
	}
	if m.CoverURL != "" && m.CoverURL != entry.CoverURL {
		entry.CoverURL = m.CoverURL
		changed = true
	}
	if total := catalog.TotalChapters(*m); total != nil {
		if entry.TotalChapters == nil || *entry.TotalChapters != *total {
			entry.TotalChapters = total
			changed = true
		}
	}
	return changed
}
