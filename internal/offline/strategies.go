package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/patrickmn/go-cache"
)

// Route prefixes served by this module's own server.
const (
	coversPrefix  = "/covers/"
	catalogPrefix = "/api/catalog/"
	staticPrefix  = "/static/"
)

type strategy string

const (
	strategyImage    strategy = "image"
	strategyAPI      strategy = "api"
	strategyStatic   strategy = "static"
	strategyDocument strategy = "document"
	strategyNone     strategy = "passthrough"
)

// offlineBody is returned for catalog requests that fail with nothing cached.
type offlineBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

const offlineMessage = "You are offline and this data is not cached."

// classify picks a strategy for req. The first matching rule wins.
func (w *Worker) classify(req *http.Request) strategy {
	if req.Method != http.MethodGet {
		return strategyNone
	}

	host := strings.ToLower(req.URL.Host)
	path := req.URL.Path
	switch {
	case strings.HasPrefix(path, coversPrefix) || contains(w.imageHosts, host):
		return strategyImage
	case strings.HasPrefix(path, catalogPrefix) || contains(w.apiHosts, host):
		return strategyAPI
	}

	dest := req.Header.Get("Sec-Fetch-Dest")
	switch {
	case dest == "script" || dest == "style" || dest == "font" || strings.HasPrefix(path, staticPrefix):
		return strategyStatic
	case dest == "document" || strings.Contains(req.Header.Get("Accept"), "text/html"):
		return strategyDocument
	}
	return strategyNone
}

func contains(list []string, host string) bool {
	if host == "" {
		return false
	}
	for _, h := range list {
		if h == host {
			return true
		}
	}
	return false
}

// RoundTrip implements [http.RoundTripper]. Until the worker is active every request passes through.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if w.State() != StateActive {
		return w.transport.RoundTrip(req)
	}

	switch s := w.classify(req); s {
	case strategyImage:
		return w.staleWhileRevalidate(req)
	case strategyAPI:
		return w.networkFirstAPI(req)
	case strategyStatic:
		return w.cacheFirst(req)
	case strategyDocument:
		return w.networkFirstDocument(req)
	default:
		return w.transport.RoundTrip(req)
	}
}

// fetch performs req on the network and buffers the response.
func (w *Worker) fetch(req *http.Request) (entry, error) {
	resp, err := w.transport.RoundTrip(req)
	if err != nil {
		return entry{}, err
	}
	return readEntry(resp, w.now())
}

func lookup(c *cache.Cache, key string) (entry, bool) {
	v, ok := c.Get(key)
	if !ok {
		return entry{}, false
	}
	e, ok := v.(entry)
	return e, ok
}

// staleWhileRevalidate serves a cached image immediately and refreshes it in the background.
// Only a 200 refresh overwrites the cached copy.
func (w *Worker) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	covers := w.partition(KindCovers)
	key := cacheKey(req)

	if cached, ok := lookup(covers, key); ok {
		w.metrics.CacheEvent(string(strategyImage), "hit")
		w.revalidate(req, covers, key)
		return cached.response(req, "stale"), nil
	}

	w.metrics.CacheEvent(string(strategyImage), "miss")
	e, err := w.fetch(req)
	if err != nil {
		return nil, err
	}
	if e.Status == http.StatusOK {
		covers.SetDefault(key, e)
	}
	return e.response(req, ""), nil
}

func (w *Worker) revalidate(req *http.Request, c *cache.Cache, key string) {
	select {
	case <-w.done:
		return
	default:
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), revalidateTimeout)
	bgReq := req.Clone(ctx)

	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		defer cancel()

		e, err := w.fetch(bgReq)
		if err != nil {
			w.logger.Debug("revalidation failed; keeping stale copy", "url", bgReq.URL, "error", err)
			return
		}
		if e.Status != http.StatusOK {
			return
		}
		c.SetDefault(key, e)
		w.metrics.CacheEvent(string(strategyImage), "revalidated")
	}()
}

// networkFirstAPI tries the network, stores successful responses, and falls back to the cached copy.
// With nothing cached it answers 503 with an offline error body.
func (w *Worker) networkFirstAPI(req *http.Request) (*http.Response, error) {
	api := w.partition(KindAPI)
	key := cacheKey(req)

	e, err := w.fetch(req)
	if err == nil {
		if e.ok() {
			api.SetDefault(key, e)
			w.metrics.CacheEvent(string(strategyAPI), "stored")
		}
		return e.response(req, ""), nil
	}

	if cached, ok := lookup(api, key); ok {
		w.metrics.CacheEvent(string(strategyAPI), "fallback")
		return cached.response(req, "fallback"), nil
	}

	w.metrics.CacheEvent(string(strategyAPI), "miss")
	w.logger.Debug("offline with no cached response", "url", req.URL, "error", err)
	body, _ := json.Marshal(offlineBody{Error: "offline", Message: offlineMessage})
	return entry{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}.response(req, ""), nil
}

// cacheFirst serves static assets from cache, fetching and storing them on a miss.
func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	static := w.partition(KindStatic)
	key := cacheKey(req)

	if cached, ok := lookup(static, key); ok {
		w.metrics.CacheEvent(string(strategyStatic), "hit")
		return cached.response(req, "hit"), nil
	}

	w.metrics.CacheEvent(string(strategyStatic), "miss")
	e, err := w.fetch(req)
	if err != nil {
		return nil, err
	}
	if e.ok() {
		static.SetDefault(key, e)
	}
	return e.response(req, ""), nil
}

// networkFirstDocument fetches documents from the network and, on failure, serves the cached
// app shell whatever path was requested.
func (w *Worker) networkFirstDocument(req *http.Request) (*http.Response, error) {
	static := w.partition(KindStatic)
	shell := w.shell(req)

	e, err := w.fetch(req)
	if err == nil {
		if e.ok() && cacheKey(req) == shell {
			static.SetDefault(shell, e)
		}
		return e.response(req, ""), nil
	}

	if cached, ok := lookup(static, shell); ok {
		w.metrics.CacheEvent(string(strategyDocument), "fallback")
		return cached.response(req, "fallback"), nil
	}

	w.metrics.CacheEvent(string(strategyDocument), "miss")
	return nil, err
}

// shell returns the cache key of the app shell document for req's origin.
func (w *Worker) shell(req *http.Request) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.shellKey != "" {
		return w.shellKey
	}
	return http.MethodGet + " " + req.URL.Scheme + "://" + req.URL.Host + "/"
}
