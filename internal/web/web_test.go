package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestShellHandler(t *testing.T) {
	mux := http.NewServeMux()
	h := NewShellHandler()
	for _, route := range h.Routes() {
		mux.Handle(route, h)
	}

	tests := []struct {
		name        string
		path        string
		status      int
		cache       string
		contentType string
		contains    string
	}{
		{"document", "/", http.StatusOK, "no-cache", "text/html", "<title>manhwatrack</title>"},
		{"manifest", "/manifest.webmanifest", http.StatusOK, "no-cache", "application/manifest+json", `"start_url": "/"`},
		{"stylesheet", "/static/app.css", http.StatusOK, staticMaxAge, "text/css", "--accent"},
		{"missing asset", "/static/missing.js", http.StatusNotFound, "", "", ""},
		{"directory listing", "/static/", http.StatusNotFound, "", "", ""},
		{"unknown path", "/nope", http.StatusNotFound, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			if tt.status != http.StatusOK {
				return
			}
			if got := rec.Header().Get("Cache-Control"); got != tt.cache {
				t.Errorf("expected Cache-Control %q, got %q", tt.cache, got)
			}
			if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, tt.contentType) {
				t.Errorf("expected Content-Type %q, got %q", tt.contentType, got)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("expected body to contain %q", tt.contains)
			}
		})
	}

	t.Run("post is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}
