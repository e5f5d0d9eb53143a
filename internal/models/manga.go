package models

// Manga is a normalized catalog title.
type Manga struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	AltTitles     []string `json:"alt_titles,omitempty"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	Demographic   string   `json:"demographic,omitempty"`
	ContentRating string   `json:"content_rating"`
	Year          int      `json:"year,omitempty"`
	OriginalLang  string   `json:"original_language,omitempty"`
	LastChapter   string   `json:"last_chapter,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Artists       []string `json:"artists,omitempty"`
	CoverFile     string   `json:"cover_file,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
}

// Tag is a catalog genre/theme tag.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}
