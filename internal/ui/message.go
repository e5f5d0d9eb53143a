package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgLibraryLoaded MsgKind = iota
	MsgSearchResults
	MsgAdded
	MsgSaved
	MsgProgressUpdate
	MsgSyncComplete
	MsgIdleWarning
	MsgIdleTimeout
)

type libraryLoaded struct {
	entries []models.EntryWithProgress
	err     error
}

type searchResults struct {
	query   string
	results []models.Manga
}

type added struct {
	title string
	id    string
	err   error
}

type syncComplete struct {
	result *tasks.SyncResult
	err    error
}

// libraryLoadedMsg is the constructor for [MsgLibraryLoaded]
func libraryLoadedMsg(entries []models.EntryWithProgress, err error) Msg {
	return Msg{kind: MsgLibraryLoaded, data: libraryLoaded{entries, err}}
}

// searchResultsMsg is the constructor for [MsgSearchResults]
func searchResultsMsg(query string, results []models.Manga) Msg {
	return Msg{kind: MsgSearchResults, data: searchResults{query, results}}
}

// addedMsg is the constructor for [MsgAdded]
func addedMsg(title, id string, err error) Msg {
	return Msg{kind: MsgAdded, data: added{title, id, err}}
}

// savedMsg is the constructor for [MsgSaved]
func savedMsg(err error) Msg {
	return Msg{kind: MsgSaved, data: err}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.SyncResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{result, err}}
}

// idleWarningMsg is the constructor for [MsgIdleWarning]
func idleWarningMsg(remaining time.Duration) Msg {
	return Msg{kind: MsgIdleWarning, data: remaining}
}

// idleTimeoutMsg is the constructor for [MsgIdleTimeout]
func idleTimeoutMsg() Msg {
	return Msg{kind: MsgIdleTimeout}
}
