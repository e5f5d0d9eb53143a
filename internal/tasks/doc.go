// Package tasks computes library statistics and runs long library operations with real-time
// progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines three operations:
//
//  1. [Engine.Sync] : Recompute derived state after the library loads
//     - Computes [Statistics] from the entries and their progress
//     - Recomputes each goal's current value and completion flag, saving changed goals
//     - Unlocks achievements the library now qualifies for
//
//  2. [Engine.RefreshMetadata] : Refresh catalog metadata for every entry
//     - Looks each title up in the catalog through a rate-limited worker pool
//     - Updates title, cover, and chapter count when they changed
//     - Reports per-entry failures without aborting the run
//
//  3. [Engine.Export] : Write the library to disk as json, csv, markdown, or txt
//     - Writes a manifest describing the files produced
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
