package ui

import (
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/storage"
)

// SearchState is the search page state kept in session storage so it survives leaving the page.
type SearchState struct {
	Query    string         `json:"query"`
	Results  []models.Manga `json:"results"`
	Selected int            `json:"selected"`
}

// LoadSearchState returns the stored state, or the zero state when absent or unreadable.
func LoadSearchState(s storage.Store) SearchState {
	var st SearchState
	if s == nil {
		return st
	}
	if _, err := storage.GetJSON(s, storage.KeySearchState, &st); err != nil {
		return SearchState{}
	}
	return st
}

// SaveSearchState stores st.
func SaveSearchState(s storage.Store, st SearchState) error {
	if s == nil {
		return nil
	}
	return storage.SetJSON(s, storage.KeySearchState, st)
}

// ClearSearchState removes the stored state.
func ClearSearchState(s storage.Store) error {
	if s == nil {
		return nil
	}
	return s.Remove(storage.KeySearchState)
}
