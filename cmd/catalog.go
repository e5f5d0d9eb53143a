package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/catalog"
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

var sortAliases = map[string]string{
	"relevance": catalog.SortRelevance,
	"followers": catalog.SortFollowers,
	"popular":   catalog.SortFollowers,
	"latest":    catalog.SortLatestChapter,
	"created":   catalog.SortCreated,
	"title":     catalog.SortTitle,
	"rating":    catalog.SortRating,
	"year":      catalog.SortYear,
}

// CatalogSearch searches the catalog.
func (r *Runner) CatalogSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	client := r.catalogClient(ctx)

	opts := catalog.SearchOptions{
		Statuses:       cmd.StringSlice("status"),
		ContentRatings: cmd.StringSlice("rating"),
		Limit:          cmd.Int("limit"),
	}
	if s := cmd.String("sort"); s != "" {
		key, ok := sortAliases[strings.ToLower(s)]
		if !ok {
			return fmt.Errorf("%w: unknown sort %q", shared.ErrInvalidFlag, s)
		}
		opts.SortBy = key
	}
	if names := cmd.StringSlice("tag"); len(names) > 0 {
		opts.IncludedTags = catalog.ResolveTags(client.Tags(ctx), names)
		if len(opts.IncludedTags) < len(names) {
			r.logger.Warn("some tags were not recognized", "tags", names)
		}
	}

	r.logger.Debug("searching catalog", "query", query)
	results := client.Search(ctx, query, opts)
	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}
	return r.writeMangaList(fmt.Sprintf("Results for %q", query), results)
}

// CatalogGet shows one title.
func (r *Runner) CatalogGet(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: catalog id", shared.ErrMissingArgument)
	}

	m := r.catalogClient(ctx).Get(ctx, id)
	if m == nil {
		return fmt.Errorf("%w: %s", shared.ErrUpstreamNotFound, id)
	}
	if cmd.Bool("json") {
		return r.writeJSON(m, true)
	}

	r.writePlainHeader(m.Title)
	r.writePlain("ID:       %s\n", m.ID)
	r.writePlain("Status:   %s\n", m.Status)
	if m.Year > 0 {
		r.writePlain("Year:     %d\n", m.Year)
	}
	if m.LastChapter != "" {
		r.writePlain("Chapters: %s\n", m.LastChapter)
	}
	if len(m.Authors) > 0 {
		r.writePlain("Authors:  %s\n", strings.Join(m.Authors, ", "))
	}
	if len(m.Tags) > 0 {
		r.writePlain("Tags:     %s\n", strings.Join(m.Tags, ", "))
	}
	if m.CoverURL != "" {
		r.writePlain("Cover:    %s\n", m.CoverURL)
	}
	if m.Description != "" {
		r.writePlainln("%s", m.Description)
	}
	return nil
}

// CatalogTags lists tags grouped as the catalog returns them.
func (r *Runner) CatalogTags(ctx context.Context, cmd *cli.Command) error {
	tags := r.catalogClient(ctx).Tags(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(tags, true)
	}

	group := ""
	for _, t := range tags {
		if t.Group != group {
			group = t.Group
			r.writePlainln("%s", strings.ToUpper(group))
		}
		r.writePlain("  %s\n", t.Name)
	}
	return nil
}

// CatalogPopular lists the most followed titles.
func (r *Runner) CatalogPopular(ctx context.Context, cmd *cli.Command) error {
	results := r.catalogClient(ctx).Popular(ctx, cmd.Int("limit"))
	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}
	return r.writeMangaList("Popular", results)
}

// CatalogRecent lists titles with new chapters.
func (r *Runner) CatalogRecent(ctx context.Context, cmd *cli.Command) error {
	results := r.catalogClient(ctx).Recent(ctx, cmd.Int("limit"))
	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}
	return r.writeMangaList("Recently updated", results)
}

func (r *Runner) writeMangaList(title string, results []models.Manga) error {
	if len(results) == 0 {
		return r.writePlain("No titles found.\n")
	}

	r.writePlainHeader(title)
	for i, m := range results {
		r.writePlain("%2d. %s\n", i+1, m.Title)
		details := []string{m.ID, m.Status}
		if m.LastChapter != "" {
			details = append(details, "Ch. "+m.LastChapter)
		}
		r.writePlain("    %s\n", strings.Join(details, " • "))
	}
	return nil
}
