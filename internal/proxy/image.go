package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/manhwatrack/internal/metrics"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// ImagePrefix is the route the image proxy serves.
const ImagePrefix = "/covers/"

// ImageOptions configures an [ImageHandler].
type ImageOptions struct {
	Upstream  string // image host, e.g. https://uploads.mangadex.org
	Referer   string // sent on every upstream request; the host rejects hotlinks without it
	UserAgent string
	MaxAge    time.Duration
	Client    *http.Client
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// ImageHandler proxies GET /covers/<catalog-id>/<filename> to the upstream image host.
type ImageHandler struct {
	upstream  string
	referer   string
	userAgent string
	maxAge    time.Duration
	client    *http.Client
	logger    *log.Logger
	metrics   *metrics.Metrics
}

// NewImageHandler creates an image proxy.
func NewImageHandler(opts ImageOptions) *ImageHandler {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 365 * 24 * time.Hour
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &ImageHandler{
		upstream:  strings.TrimRight(opts.Upstream, "/"),
		referer:   opts.Referer,
		userAgent: opts.UserAgent,
		maxAge:    opts.MaxAge,
		client:    opts.Client,
		logger:    shared.WithLogger(opts.Logger, "component", "image-proxy"),
		metrics:   opts.Metrics,
	}
}

// NewImageHandlerFromConfig maps the [proxy] config section onto an [ImageHandler].
func NewImageHandlerFromConfig(cfg shared.ProxyConfig, logger *log.Logger, m *metrics.Metrics) *ImageHandler {
	return NewImageHandler(ImageOptions{
		Upstream:  cfg.ImageHost,
		Referer:   cfg.Referer,
		UserAgent: cfg.UserAgent,
		MaxAge:    cfg.ImageMaxAge.Duration,
		Client:    &http.Client{Timeout: cfg.RequestTimeout.Duration},
		Logger:    logger,
		Metrics:   m,
	})
}

// Routes implements the server's Handler interface.
func (h *ImageHandler) Routes() []string { return []string{ImagePrefix} }

// ServeHTTP implements [http.Handler].
func (h *ImageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}

	id, file, ok := splitCoverPath(r.URL.Path)
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	start := time.Now()
	status := h.forward(w, r, id, file)
	h.metrics.ProxyRequest("image", status, time.Since(start))
}

func (h *ImageHandler) forward(w http.ResponseWriter, r *http.Request, id, file string) int {
	target := fmt.Sprintf("%s/covers/%s/%s", h.upstream, url.PathEscape(id), url.PathEscape(file))
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return http.StatusServiceUnavailable
	}
	if h.referer != "" {
		req.Header.Set("Referer", h.referer)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("cover fetch failed", "id", id, "file", file, "error", err)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return http.StatusServiceUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		http.Error(w, "Not found", http.StatusNotFound)
		return http.StatusNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		h.logger.Warn("cover upstream error", "id", id, "status", resp.StatusCode)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return http.StatusServiceUnavailable
	}

	header := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	header.Del("Content-Length")
	header.Del("Content-Encoding")
	header.Del("Set-Cookie")
	setCORS(header)
	header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", int(h.maxAge.Seconds())))

	q := r.URL.Query()
	if v := positive(q.Get("w")); v != "" {
		header.Set("X-Image-Width", v)
	}
	if v := positive(q.Get("q")); v != "" {
		header.Set("X-Image-Quality", v)
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debug("cover stream interrupted", "id", id, "error", err)
	}
	return resp.StatusCode
}

// splitCoverPath extracts the catalog id and filename from /covers/<id>/<filename>.
func splitCoverPath(p string) (id, file string, ok bool) {
	rest, ok := strings.CutPrefix(p, ImagePrefix)
	if !ok {
		return "", "", false
	}
	id, file, ok = strings.Cut(rest, "/")
	if !ok || id == "" || file == "" || strings.Contains(file, "/") || id == ".." || file == ".." {
		return "", "", false
	}
	return id, file, true
}

func positive(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
