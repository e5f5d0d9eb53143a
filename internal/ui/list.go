package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/manhwatrack/internal/formatter"
	"github.com/desertthunder/manhwatrack/internal/models"
)

var (
	_ list.Item = entryItem{}
	_ list.Item = mangaItem{}
)

// entryItem wraps [models.EntryWithProgress] to implement [list.Item].
type entryItem struct {
	entry models.EntryWithProgress
}

func (i entryItem) FilterValue() string { return i.entry.Title }
func (i entryItem) Title() string       { return i.entry.Title }
func (i entryItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.entry.Status().Label(), formatter.ChapterLabel(i.entry))
	if i.entry.Progress != nil && i.entry.Progress.Rating != nil {
		desc = fmt.Sprintf("%s • ★ %d/10", desc, *i.entry.Progress.Rating)
	}
	return desc
}

// mangaItem wraps [models.Manga] to implement [list.Item].
type mangaItem struct {
	manga models.Manga
	saved bool
}

func (i mangaItem) FilterValue() string { return i.manga.Title }
func (i mangaItem) Title() string {
	if i.saved {
		return i.manga.Title + " ✓"
	}
	return i.manga.Title
}
func (i mangaItem) Description() string {
	var parts []string
	if i.manga.Status != "" {
		parts = append(parts, i.manga.Status)
	}
	if i.manga.Year > 0 {
		parts = append(parts, fmt.Sprint(i.manga.Year))
	}
	if i.manga.LastChapter != "" {
		parts = append(parts, "Ch. "+i.manga.LastChapter)
	}
	if len(i.manga.Tags) > 0 {
		parts = append(parts, strings.Join(i.manga.Tags[:min(3, len(i.manga.Tags))], ", "))
	}
	return strings.Join(parts, " • ")
}

func entryItems(entries []models.EntryWithProgress) []list.Item {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = entryItem{entry: e}
	}
	return items
}

func mangaItems(results []models.Manga, saved map[string]bool) []list.Item {
	items := make([]list.Item, len(results))
	for i, m := range results {
		items[i] = mangaItem{manga: m, saved: saved[m.ID]}
	}
	return items
}
