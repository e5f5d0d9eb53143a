package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/offline"
)

// CacheList prints each partition with its entry count.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	w := r.offlineWorker()
	partitions := w.Partitions()

	names := make([]string, 0, len(partitions))
	for name := range partitions {
		names = append(names, name)
	}
	slices.Sort(names)

	r.writePlainHeader(fmt.Sprintf("Offline cache (%s)", w.State()))
	for _, name := range names {
		r.writePlain("%-32s %d\n", name, partitions[name])
	}
	return nil
}

// CacheInstall pre-caches the app shell from a running server and activates the cache.
func (r *Runner) CacheInstall(ctx context.Context, cmd *cli.Command) error {
	base := cmd.String("url")
	if base == "" {
		base = r.config.Server.BaseURL()
	}

	w := r.offlineWorker()
	if err := w.Install(ctx, base); err != nil {
		return fmt.Errorf("install incomplete, cache is %s (run 'manhwatrack cache activate' to use it anyway): %w", w.State(), err)
	}
	return r.writePlain("✓ Cached %d shell assets from %s\n", len(offline.DefaultShellAssets), base)
}

// CacheActivate posts SKIP_WAITING so a waiting cache starts serving requests.
func (r *Runner) CacheActivate(ctx context.Context, cmd *cli.Command) error {
	reply := make(chan offline.Message, 1)
	if err := r.offlineWorker().Post(offline.Message{Type: offline.MessageSkipWaiting, Reply: reply}); err != nil {
		return err
	}

	select {
	case <-reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.writePlain("✓ Offline cache %s\n", r.offlineWorker().State())
}

// CacheClear asks the worker to empty its partitions and waits for the acknowledgement.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	reply := make(chan offline.Message, 1)
	if err := r.offlineWorker().Post(offline.Message{Type: offline.MessageClearCache, Reply: reply}); err != nil {
		return err
	}

	select {
	case m := <-reply:
		if m.Type != offline.MessageCacheCleared {
			return fmt.Errorf("unexpected reply %q", m.Type)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.writePlain("✓ Offline cache cleared\n")
}
