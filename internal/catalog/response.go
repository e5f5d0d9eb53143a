package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/desertthunder/manhwatrack/internal/models"
)

type mangaAttributes struct {
	Title                  LocalizedText   `json:"title"`
	AltTitles              []LocalizedText `json:"altTitles"`
	Description            LocalizedText   `json:"description"`
	Status                 string          `json:"status"`
	PublicationDemographic *string         `json:"publicationDemographic"`
	ContentRating          string          `json:"contentRating"`
	Year                   *int            `json:"year"`
	OriginalLanguage       string          `json:"originalLanguage"`
	LastChapter            *string         `json:"lastChapter"`
	Tags                   []tagData       `json:"tags"`
}

type relationship struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
}

type mangaData struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Attributes    mangaAttributes `json:"attributes"`
	Relationships []relationship  `json:"relationships"`
}

type tagData struct {
	ID         string `json:"id"`
	Attributes struct {
		Name  LocalizedText `json:"name"`
		Group string        `json:"group"`
	} `json:"attributes"`
}

type mangaEnvelope struct {
	Result string    `json:"result"`
	Data   mangaData `json:"data"`
}

type mangaListEnvelope struct {
	Result string      `json:"result"`
	Data   []mangaData `json:"data"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Total  int         `json:"total"`
}

type tagListEnvelope struct {
	Result string    `json:"result"`
	Data   []tagData `json:"data"`
}

// normalize flattens a catalog record into a [models.Manga].
func normalize(d mangaData, locale, uploadsURL string) models.Manga {
	a := d.Attributes
	m := models.Manga{
		ID:            d.ID,
		Title:         a.Title.Pick(locale),
		Description:   strings.TrimSpace(a.Description.Pick(locale)),
		Status:        a.Status,
		ContentRating: a.ContentRating,
		OriginalLang:  a.OriginalLanguage,
	}

	if m.Title == "" {
		for _, alt := range a.AltTitles {
			if v := alt.Pick(locale); v != "" {
				m.Title = v
				break
			}
		}
	}

	for _, alt := range a.AltTitles {
		if v := alt.Pick(locale); v != "" && v != m.Title {
			m.AltTitles = append(m.AltTitles, v)
		}
	}

	if a.PublicationDemographic != nil {
		m.Demographic = *a.PublicationDemographic
	}
	if a.Year != nil {
		m.Year = *a.Year
	}
	if a.LastChapter != nil {
		m.LastChapter = *a.LastChapter
	}

	for _, t := range a.Tags {
		if name := t.Attributes.Name.Pick(locale); name != "" {
			m.Tags = append(m.Tags, name)
		}
	}

	for _, rel := range d.Relationships {
		switch rel.Type {
		case "cover_art":
			var attrs struct {
				FileName string `json:"fileName"`
			}
			if len(rel.Attributes) > 0 && json.Unmarshal(rel.Attributes, &attrs) == nil {
				m.CoverFile = attrs.FileName
			}
		case "author", "artist":
			var attrs struct {
				Name string `json:"name"`
			}
			if len(rel.Attributes) == 0 || json.Unmarshal(rel.Attributes, &attrs) != nil || attrs.Name == "" {
				continue
			}
			if rel.Type == "author" {
				m.Authors = append(m.Authors, attrs.Name)
			} else {
				m.Artists = append(m.Artists, attrs.Name)
			}
		}
	}

	if m.CoverFile != "" {
		m.CoverURL = CoverURL(uploadsURL, m.ID, m.CoverFile, 512)
	}
	return m
}

func normalizeTag(t tagData, locale string) models.Tag {
	return models.Tag{
		ID:    t.ID,
		Name:  t.Attributes.Name.Pick(locale),
		Group: t.Attributes.Group,
	}
}

// TotalChapters parses a catalog "last chapter" string ("120", "120.5") into a whole chapter count.
func TotalChapters(m models.Manga) *int {
	s := strings.TrimSpace(m.LastChapter)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil
	}
	n := int(f)
	return &n
}
