package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up          key.Binding
	down        key.Binding
	enter       key.Binding
	back        key.Binding
	search      key.Binding
	clearSearch key.Binding
	add         key.Binding
	next        key.Binding
	prev        key.Binding
	status      key.Binding
	rateUp      key.Binding
	rateDown    key.Binding
	stats       key.Binding
	quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		clearSearch: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear search")),
		add:         key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "add to library")),
		next:        key.NewBinding(key.WithKeys("+", "l", "right"), key.WithHelp("+/l", "next chapter")),
		prev:        key.NewBinding(key.WithKeys("-", "h", "left"), key.WithHelp("-/h", "previous chapter")),
		status:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle status")),
		rateUp:      key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "rating +1")),
		rateDown:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "rating -1")),
		stats:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "stats")),
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.next, k.prev, k.status, k.rateUp, k.rateDown},
		{k.search, k.clearSearch, k.add, k.stats, k.quit},
	}
}
