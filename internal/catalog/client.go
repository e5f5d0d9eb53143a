// package catalog is a rate-limited client for the public manga catalog API.
//
// Lookups never return errors to callers: failures are logged and produce an empty slice or nil.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

const (
	DefaultBaseURL    = "https://api.mangadex.org"
	DefaultUploadsURL = "https://uploads.mangadex.org"
	DefaultLocale     = "en"
	// DefaultMinInterval keeps callers comfortably under the catalog's ~5 req/s limit.
	DefaultMinInterval = 250 * time.Millisecond
)

// Options configures a [Client]. Zero values take the package defaults.
type Options struct {
	BaseURL     string
	UploadsURL  string
	Locale      string
	MinInterval time.Duration
	UserAgent   string
	HTTPClient  *http.Client
	Logger      *log.Logger
}

// OptionsFromConfig maps the [catalog] config section onto [Options].
func OptionsFromConfig(cfg shared.CatalogConfig, userAgent string) Options {
	return Options{
		BaseURL:     cfg.BaseURL,
		UploadsURL:  cfg.UploadsURL,
		Locale:      cfg.Locale,
		MinInterval: cfg.MinInterval.Duration,
		UserAgent:   userAgent,
	}
}

// Client talks to the catalog API. Calls on one Client are spaced at least MinInterval apart.
type Client struct {
	baseURL    string
	uploadsURL string
	locale     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a catalog client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UploadsURL == "" {
		opts.UploadsURL = DefaultUploadsURL
	}
	if opts.Locale == "" {
		opts.Locale = DefaultLocale
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		uploadsURL: strings.TrimRight(opts.UploadsURL, "/"),
		locale:     opts.Locale,
		userAgent:  opts.UserAgent,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		logger:     shared.WithLogger(opts.Logger, "component", "catalog"),
	}
}

// Authenticate exchanges personal client credentials for a token via the OAuth2 password grant.
// Subsequent requests carry the token and refresh it as needed.
func (c *Client) Authenticate(ctx context.Context, cfg shared.CatalogConfig) error {
	if !cfg.HasCredentials() {
		return shared.ErrMissingCredentials
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := conf.PasswordCredentialsToken(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	}

	authed := conf.Client(ctx, token)
	authed.Timeout = c.httpClient.Timeout
	c.httpClient = authed
	c.logger.Info("authenticated with catalog", "expires", token.Expiry)
	return nil
}

// Locale returns the preferred locale used for text normalization.
func (c *Client) Locale() string { return c.locale }

// UploadsURL returns the upstream image host.
func (c *Client) UploadsURL() string { return c.uploadsURL }

// Fetch issues a rate-limited GET for path (with optional query) against the catalog and returns the raw response.
// The caller closes the body.
func (c *Client) Fetch(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return resp, nil
}

// getJSON fetches and decodes into out. Non-2xx responses are errors.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Fetch(ctx, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", shared.ErrUpstreamNotFound, path)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Search returns titles matching query and opts, or an empty slice on any failure.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) []models.Manga {
	var env mangaListEnvelope
	if err := c.getJSON(ctx, "/manga", BuildSearchQuery(query, opts), &env); err != nil {
		c.logger.Error("search failed", "query", query, "error", err)
		return []models.Manga{}
	}

	out := make([]models.Manga, 0, len(env.Data))
	for _, d := range env.Data {
		out = append(out, normalize(d, c.locale, c.uploadsURL))
	}
	return out
}

// Get returns one title, or nil on any failure.
func (c *Client) Get(ctx context.Context, id string) *models.Manga {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	q := url.Values{}
	addAll(q, "includes[]", []string{"cover_art", "author", "artist"})

	var env mangaEnvelope
	if err := c.getJSON(ctx, "/manga/"+url.PathEscape(id), q, &env); err != nil {
		c.logger.Error("lookup failed", "id", id, "error", err)
		return nil
	}

	m := normalize(env.Data, c.locale, c.uploadsURL)
	return &m
}

// Tags returns the catalog's tag list sorted as the catalog returns it, or an empty slice.
func (c *Client) Tags(ctx context.Context) []models.Tag {
	var env tagListEnvelope
	if err := c.getJSON(ctx, "/manga/tag", nil, &env); err != nil {
		c.logger.Error("tag lookup failed", "error", err)
		return []models.Tag{}
	}

	out := make([]models.Tag, 0, len(env.Data))
	for _, t := range env.Data {
		out = append(out, normalizeTag(t, c.locale))
	}
	return out
}

// Popular returns the most followed titles.
func (c *Client) Popular(ctx context.Context, limit int) []models.Manga {
	return c.Search(ctx, "", SearchOptions{SortBy: SortFollowers, Limit: limit})
}

// Recent returns titles with the latest chapter uploads.
func (c *Client) Recent(ctx context.Context, limit int) []models.Manga {
	return c.Search(ctx, "", SearchOptions{SortBy: SortLatestChapter, Limit: limit})
}

// ResolveTags maps tag names (case-insensitive) or IDs onto tag IDs, skipping unknown names.
func ResolveTags(tags []models.Tag, names []string) []string {
	var ids []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		for _, t := range tags {
			if strings.EqualFold(t.Name, n) || t.ID == n {
				ids = append(ids, t.ID)
				break
			}
		}
	}
	return ids
}

// ParseLimit reads a positive limit from s, falling back to def.
func ParseLimit(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}
