package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/manhwatrack/internal/auth"
	"github.com/desertthunder/manhwatrack/internal/catalog"
	"github.com/desertthunder/manhwatrack/internal/formatter"
	"github.com/desertthunder/manhwatrack/internal/library"
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/session"
	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/storage"
	"github.com/desertthunder/manhwatrack/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LibraryView ViewState = iota
	DetailView
	SearchView
	SyncView
	StatsView
)

// Searcher looks titles up in the catalog.
type Searcher interface {
	Search(ctx context.Context, query string, opts catalog.SearchOptions) []models.Manga
}

// Options wires a [Model].
type Options struct {
	Library      *library.Client
	Catalog      Searcher
	Engine       tasks.Engine
	SessionStore storage.Store // search state
	LocalStore   storage.Store // last activity
	IdleTimeout  time.Duration // zero disables the idle monitor
	WarnBefore   time.Duration
	SaveDelay    time.Duration
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	client       *library.Client
	catalog      Searcher
	engine       tasks.Engine
	sessionStore storage.Store
	localStore   storage.Store
	idle         *session.Monitor
	saveDelay    time.Duration
	events       chan Msg
	width        int
	height       int
	libraryList  list.Model
	entries      []models.EntryWithProgress
	selected     *models.EntryWithProgress
	saver        *library.AutoSaver
	saveState    string
	searchInput  textinput.Model
	searchList   list.Model
	search       SearchState
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	syncResult   *tasks.SyncResult
	notice       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. The search page starts from any state left in session storage.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = library.DefaultAutoSaveDelay
	}

	input := textinput.New()
	input.Placeholder = "Search the catalog"
	input.CharLimit = 200

	m := &Model{
		ctx:          ctx,
		view:         LibraryView,
		client:       opts.Library,
		catalog:      opts.Catalog,
		engine:       opts.Engine,
		sessionStore: opts.SessionStore,
		localStore:   opts.LocalStore,
		saveDelay:    opts.SaveDelay,
		events:       make(chan Msg, 16),
		libraryList:  newList("Library", nil),
		searchInput:  input,
		help:         help.New(),
		keys:         newKeyMap(),
	}

	m.search = LoadSearchState(m.sessionStore)
	m.searchInput.SetValue(m.search.Query)
	m.searchList = newList("Results", mangaItems(m.search.Results, nil))
	if m.search.Selected < len(m.search.Results) {
		m.searchList.Select(m.search.Selected)
	}

	if opts.IdleTimeout > 0 {
		m.idle = session.NewMonitor(session.Options{
			Timeout:    opts.IdleTimeout,
			WarnBefore: opts.WarnBefore,
			OnWarn:     func(remaining time.Duration) { m.emit(idleWarningMsg(remaining)) },
			OnTimeout:  func() { m.emit(idleTimeoutMsg()) },
			OnActivity: m.recordActivity,
		})
	}
	return m
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

// Init loads the library and starts listening for timer events.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchLibrary(), m.waitForEvent())
}

// Close stops timers. Pending edits are flushed first.
func (m *Model) Close() {
	m.closeDetail()
	if m.idle != nil {
		m.idle.Destroy()
	}
}

// Err returns the error that ended the session, if any.
func (m *Model) Err() error { return m.err }

// emit queues an event from a timer goroutine without blocking it.
func (m *Model) emit(msg Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

func (m *Model) recordActivity(at time.Time) {
	if m.localStore == nil {
		return
	}
	m.localStore.Set(storage.KeyLastActivity, at.UTC().Format(time.RFC3339))
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.libraryList.SetSize(msg.Width-4, msg.Height-8)
		m.searchList.SetSize(msg.Width-4, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		if m.idle != nil {
			m.idle.Touch()
		}
		m.notice = ""
		switch m.view {
		case LibraryView:
			return m.handleLibraryKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case SearchView:
			return m.handleSearchKeys(msg)
		case StatsView:
			return m.handleStatsKeys(msg)
		case SyncView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgLibraryLoaded:
		data := msg.data.(libraryLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.entries = data.entries
		m.libraryList.SetItems(entryItems(data.entries))
		m.refreshSearchMarks()
		return m, nil

	case MsgSearchResults:
		data := msg.data.(searchResults)
		m.search = SearchState{Query: data.query, Results: data.results}
		m.searchList.SetItems(mangaItems(data.results, m.savedCatalogIDs()))
		m.searchList.Select(0)
		m.persistSearch()
		if len(data.results) == 0 {
			m.notice = fmt.Sprintf("No results for %q", data.query)
		}
		return m, nil

	case MsgAdded:
		data := msg.data.(added)
		if data.err != nil && data.id == "" {
			m.notice = styles.err.Render("Could not add " + data.title + ": " + auth.UserMessage(data.err))
			return m, nil
		}
		m.notice = styles.ok.Render("✓ Added " + data.title)
		return m, m.fetchLibrary()

	case MsgSaved:
		if err, _ := msg.data.(error); err != nil {
			m.saveState = styles.err.Render("Save failed: " + auth.UserMessage(err))
		} else {
			m.saveState = styles.ok.Render("Saved")
		}
		return m, m.waitForEvent()

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.progressChan = nil
		m.syncResult = data.result
		m.err = data.err
		m.view = StatsView
		return m, nil

	case MsgIdleWarning:
		remaining := msg.data.(time.Duration).Round(time.Second)
		m.notice = styles.warn.Render(fmt.Sprintf("Your session will expire in %s unless there is activity.", remaining))
		return m, m.waitForEvent()

	case MsgIdleTimeout:
		m.closeDetail()
		if s := m.client.Session(); s != nil {
			s.SignOut()
		}
		m.err = shared.ErrSessionExpired
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleLibraryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.search):
		m.view = SearchView
		m.searchInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.stats):
		if m.engine == nil {
			return m, nil
		}
		m.view = SyncView
		return m, m.startSync()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.libraryList.SelectedItem().(entryItem); ok {
			m.openDetail(item.entry)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.libraryList, cmd = m.libraryList.Update(msg)
	return m, cmd
}

func (m *Model) openDetail(e models.EntryWithProgress) {
	if e.Progress == nil {
		e.Progress = models.NewProgress(e.ID, e.UserID)
	} else {
		p := *e.Progress
		e.Progress = &p
	}
	m.selected = &e
	m.saveState = ""
	m.saver = m.client.EntryAutoSaver(e.ID, m.saveDelay, func(err error) { m.emit(savedMsg(err)) })
	m.view = DetailView
}

// closeDetail flushes and stops the autosaver.
func (m *Model) closeDetail() {
	if m.saver == nil {
		return
	}
	if err := m.saver.Flush(m.ctx); err != nil {
		m.err = err
	}
	m.saver.Stop()
	m.saver = nil
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.selected.Progress
	var upd models.ProgressUpdate

	switch {
	case key.Matches(msg, m.keys.quit):
		m.closeDetail()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.closeDetail()
		m.selected = nil
		m.view = LibraryView
		return m, m.fetchLibrary()
	case key.Matches(msg, m.keys.next):
		ch := p.LastChapter + 1
		if total := m.selected.TotalChapters; total != nil && ch > *total {
			return m, nil
		}
		upd.LastChapter = &ch
		if p.Status == models.StatusPlanToRead {
			st := models.StatusReading
			upd.Status = &st
		}
	case key.Matches(msg, m.keys.prev):
		if p.LastChapter == 0 {
			return m, nil
		}
		ch := p.LastChapter - 1
		upd.LastChapter = &ch
	case key.Matches(msg, m.keys.status):
		st := p.Status.Next()
		upd.Status = &st
	case key.Matches(msg, m.keys.rateUp), key.Matches(msg, m.keys.rateDown):
		r := stepRating(p.Rating, key.Matches(msg, m.keys.rateUp))
		upd.Rating = &r
	default:
		return m, nil
	}

	upd.Apply(p)
	m.saveState = styles.help.Render("Saving…")
	m.saver.Edit(upd)
	return m, nil
}

// stepRating moves a rating one step, starting unrated titles at the midpoint.
func stepRating(current *int, up bool) int {
	if current == nil {
		return (models.MinRating + models.MaxRating) / 2
	}
	r := *current
	if up {
		r++
	} else {
		r--
	}
	return max(models.MinRating, min(models.MaxRating, r))
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.searchInput.Blur()
		m.view = LibraryView
		return m, nil
	case key.Matches(msg, m.keys.clearSearch):
		m.clearSearch()
		return m, nil
	case key.Matches(msg, m.keys.add):
		if item, ok := m.searchList.SelectedItem().(mangaItem); ok {
			return m, m.addToLibrary(item.manga)
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		q := strings.TrimSpace(m.searchInput.Value())
		if q == "" {
			return m, nil
		}
		m.notice = styles.help.Render("Searching…")
		return m, m.runSearch(q)
	case msg.Type == tea.KeyUp, msg.Type == tea.KeyDown:
		var cmd tea.Cmd
		m.searchList, cmd = m.searchList.Update(msg)
		m.search.Selected = m.searchList.Index()
		m.persistSearch()
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m *Model) clearSearch() {
	m.search = SearchState{}
	m.searchInput.SetValue("")
	m.searchList.SetItems(nil)
	ClearSearchState(m.sessionStore)
}

func (m *Model) persistSearch() {
	if err := SaveSearchState(m.sessionStore, m.search); err != nil {
		m.notice = styles.warn.Render("Search state not saved")
	}
}

func (m *Model) savedCatalogIDs() map[string]bool {
	saved := make(map[string]bool, len(m.entries))
	for _, e := range m.entries {
		saved[e.CatalogID] = true
	}
	return saved
}

// refreshSearchMarks re-renders results so newly saved titles show as saved.
func (m *Model) refreshSearchMarks() {
	if len(m.search.Results) == 0 {
		return
	}
	idx := m.searchList.Index()
	m.searchList.SetItems(mangaItems(m.search.Results, m.savedCatalogIDs()))
	m.searchList.Select(idx)
}

func (m *Model) handleStatsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = LibraryView
		m.err = nil
		return m, m.fetchLibrary()
	}
	return m, nil
}

func (m *Model) fetchLibrary() tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		entries, err := client.Library(ctx, repositories.Filter{})
		return libraryLoadedMsg(entries, err)
	}
}

func (m *Model) runSearch(query string) tea.Cmd {
	searcher, ctx := m.catalog, m.ctx
	return func() tea.Msg {
		if searcher == nil {
			return searchResultsMsg(query, nil)
		}
		return searchResultsMsg(query, searcher.Search(ctx, query, catalog.SearchOptions{}))
	}
}

func (m *Model) addToLibrary(item models.Manga) tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		id, err := client.AddToLibrary(ctx, item)
		return addedMsg(item.Title, id, err)
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

func (m *Model) startSync() tea.Cmd {
	ch := make(chan tasks.ProgressUpdate, 50)
	m.progressChan = ch
	m.progress = tasks.ProgressUpdate{}
	engine, ctx := m.engine, m.ctx

	run := func() tea.Msg {
		result, err := engine.Sync(ctx, ch)
		close(ch)
		return syncCompleteMsg(result, err)
	}
	return tea.Batch(run, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	ch := m.progressChan
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != StatsView {
		msg := auth.UserMessage(m.err)
		if errors.Is(m.err, shared.ErrSessionExpired) {
			return styles.warn.Render(msg) + "\n"
		}
		return styles.err.Render(fmt.Sprintf("Error: %s\n\nPress q to quit", msg))
	}

	var body string
	switch m.view {
	case LibraryView:
		body = m.renderLibrary()
	case DetailView:
		body = m.renderDetail()
	case SearchView:
		body = m.renderSearch()
	case SyncView:
		body = m.renderSync()
	case StatsView:
		body = m.renderStats()
	}

	if m.notice != "" {
		body += "\n" + m.notice
	}
	return body
}

func (m *Model) renderLibrary() string {
	if len(m.entries) == 0 {
		title := styles.title.Render("Library")
		return fmt.Sprintf("%s\nYour library is empty. Press / to search the catalog.\n\n%s",
			title, m.help.ShortHelpView([]key.Binding{m.keys.search, m.keys.quit}))
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.search, m.keys.stats, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.libraryList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDetail() string {
	e := *m.selected
	var b strings.Builder

	b.WriteString(styles.title.Render(e.Title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Status:  %s\n", badge(e.Progress.Status))
	fmt.Fprintf(&b, "Progress: %s\n", formatter.ChapterLabel(e))
	if e.Progress.Rating != nil {
		fmt.Fprintf(&b, "Rating:  ★ %d/10\n", *e.Progress.Rating)
	} else {
		b.WriteString("Rating:  unrated\n")
	}
	if e.Description != "" {
		desc := []rune(e.Description)
		if len(desc) > 280 {
			desc = append(desc[:280], '…')
		}
		fmt.Fprintf(&b, "\n%s\n", styles.help.Render(string(desc)))
	}
	if m.saveState != "" {
		fmt.Fprintf(&b, "\n%s\n", m.saveState)
	}

	helpKeys := []key.Binding{m.keys.next, m.keys.prev, m.keys.status, m.keys.rateUp, m.keys.rateDown, m.keys.back}
	fmt.Fprintf(&b, "\n%s", m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderSearch() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.add, m.keys.clearSearch, m.keys.back}
	results := ""
	if len(m.search.Results) > 0 {
		results = "\n" + m.searchList.View()
	}
	return fmt.Sprintf("%s\n%s\n%s\n\n%s",
		styles.title.Render("Search"), m.searchInput.View(), results, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Updating goals and achievements")

	var phase string
	switch m.progress.Phase {
	case tasks.LoadLibrary:
		phase = "Loading library..."
	case tasks.SummarizeLibrary:
		phase = "Computing statistics..."
	case tasks.RecomputeGoals:
		phase = fmt.Sprintf("Updating goals (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.UnlockAchievements:
		phase = "Checking achievements..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderStats() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %s\n\nPress esc to go back, q to quit", auth.UserMessage(m.err)))
	}
	if m.syncResult == nil {
		return styles.err.Render("No statistics available\n\nPress esc to go back, q to quit")
	}

	s := m.syncResult.Stats
	var b strings.Builder
	b.WriteString(styles.title.Render("Reading Stats"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Titles: %d   Chapters read: %d   Streak: %d day(s)\n", s.Total, s.ChaptersRead, s.Streak)
	fmt.Fprintf(&b, "Completion: %.0f%%   Mean rating: %.1f (%d rated)\n\n", s.CompletionRate*100, s.MeanRating, s.Rated)
	for _, st := range models.Statuses {
		fmt.Fprintf(&b, "  %-14s %d\n", st.Label(), s.ByStatus[st])
	}

	if len(m.syncResult.Goals) > 0 {
		b.WriteString("\nGoals\n")
		for _, g := range m.syncResult.Goals {
			mark := " "
			if g.Completed {
				mark = styles.ok.Render("✓")
			}
			fmt.Fprintf(&b, "  %s %s: %d/%d (%d%%)\n", mark, g.Title, g.CurrentValue, g.TargetValue, g.Percent())
		}
	}

	if len(m.syncResult.Unlocked) > 0 {
		b.WriteString("\n" + styles.ok.Render("Achievements unlocked") + "\n")
		for _, t := range m.syncResult.Unlocked {
			if info, ok := models.LookupAchievement(t); ok {
				fmt.Fprintf(&b, "  • %s: %s\n", info.Name, info.Description)
			}
		}
	}

	fmt.Fprintf(&b, "\n%s", m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit}))
	return b.String()
}
