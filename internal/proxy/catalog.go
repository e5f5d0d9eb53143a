package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/manhwatrack/internal/metrics"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// CatalogPrefix is the route the catalog proxy serves.
const CatalogPrefix = "/api/catalog/"

// Fetcher issues rate-limited catalog API requests. [catalog.Client] implements it.
type Fetcher interface {
	Fetch(ctx context.Context, path string, query url.Values) (*http.Response, error)
}

// CatalogHandler passes GET /api/catalog/<path>?<query> through to the catalog API.
type CatalogHandler struct {
	fetcher Fetcher
	maxAge  time.Duration
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewCatalogHandler creates a catalog proxy. Successful responses are cacheable for maxAge.
func NewCatalogHandler(fetcher Fetcher, maxAge time.Duration, logger *log.Logger, m *metrics.Metrics) *CatalogHandler {
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CatalogHandler{
		fetcher: fetcher,
		maxAge:  maxAge,
		logger:  shared.WithLogger(logger, "component", "catalog-proxy"),
		metrics: m,
	}
}

// Routes implements the server's Handler interface.
func (h *CatalogHandler) Routes() []string { return []string{CatalogPrefix} }

// ServeHTTP implements [http.Handler].
func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, CatalogPrefix)
	if path == "" || strings.Contains(path, "..") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown catalog path")
		return
	}

	start := time.Now()
	resp, err := h.fetcher.Fetch(r.Context(), path, r.URL.Query())
	if err != nil {
		h.logger.Warn("catalog proxy failed", "path", path, "error", err)
		writeError(w, http.StatusBadGateway, "PROXY_ERROR", err.Error())
		h.metrics.ProxyRequest("catalog", http.StatusBadGateway, time.Since(start))
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	header.Set("Content-Type", "application/json")
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.maxAge.Seconds())))
	} else {
		header.Set("Cache-Control", "no-store")
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debug("catalog stream interrupted", "path", path, "error", err)
	}
	h.metrics.ProxyRequest("catalog", resp.StatusCode, time.Since(start))
}
