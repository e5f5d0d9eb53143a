package catalog

import (
	"net/url"
	"strconv"
	"strings"
)

// SearchOptions are the filters accepted by [Client.Search].
type SearchOptions struct {
	ContentRatings []string // safe, suggestive, erotica, pornographic
	Demographics   []string // shounen, shoujo, josei, seinen, none
	Statuses       []string // ongoing, completed, hiatus, cancelled
	IncludedTags   []string
	ExcludedTags   []string
	Languages      []string // original language filter, e.g. "ko" for manhwa
	SortBy         string   // relevance, followedCount, latestUploadedChapter, createdAt, title, rating, year
	Ascending      bool
	Limit          int
	Offset         int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// DefaultContentRatings is applied when a search names none.
var DefaultContentRatings = []string{"safe", "suggestive"}

// Sort keys understood by the catalog.
const (
	SortRelevance     = "relevance"
	SortFollowers     = "followedCount"
	SortLatestChapter = "latestUploadedChapter"
	SortCreated       = "createdAt"
	SortTitle         = "title"
	SortRating        = "rating"
	SortYear          = "year"
)

// BuildSearchQuery renders a free-text query and options into catalog query parameters.
//
// Array filters use the bracketed key form ("contentRating[]=safe"); the sort key becomes "order[<key>]".
func BuildSearchQuery(query string, opts SearchOptions) url.Values {
	v := url.Values{}

	if q := strings.TrimSpace(query); q != "" {
		v.Set("title", q)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	v.Set("limit", strconv.Itoa(min(limit, maxLimit)))
	if opts.Offset > 0 {
		v.Set("offset", strconv.Itoa(opts.Offset))
	}

	ratings := opts.ContentRatings
	if len(ratings) == 0 {
		ratings = DefaultContentRatings
	}
	addAll(v, "contentRating[]", ratings)
	addAll(v, "publicationDemographic[]", opts.Demographics)
	addAll(v, "status[]", opts.Statuses)
	addAll(v, "includedTags[]", opts.IncludedTags)
	addAll(v, "excludedTags[]", opts.ExcludedTags)
	addAll(v, "originalLanguage[]", opts.Languages)

	sortBy := opts.SortBy
	if sortBy == "" {
		if v.Has("title") {
			sortBy = SortRelevance
		} else {
			sortBy = SortFollowers
		}
	}
	dir := "desc"
	if opts.Ascending {
		dir = "asc"
	}
	v.Set("order["+sortBy+"]", dir)

	addAll(v, "includes[]", []string{"cover_art", "author", "artist"})
	return v
}

func addAll(v url.Values, key string, values []string) {
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			v.Add(key, s)
		}
	}
}
