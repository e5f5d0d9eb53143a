// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow over the signed-in library:
//  1. [LibraryView] : Browse saved titles with their status and progress
//  2. [DetailView] : Edit chapter, status, and rating; edits are saved after a short pause
//  3. [SearchView] : Search the catalog and add titles; the last search survives leaving the page
//  4. [SyncView] : Monitor goal and achievement recomputation
//  5. [StatsView] : Display library statistics, goals, and newly unlocked achievements
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the LibraryEngine; autosave results and idle warnings arrive on an
// event channel fed by timers.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
