// Package web serves the installable app shell: the document, its web app manifest, and static assets.
//
// The document and manifest are served with no-cache so a new release is picked up on the next load;
// static assets are cacheable.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
)

//go:embed assets
var assets embed.FS

const staticMaxAge = "public, max-age=86400"

// ShellHandler serves the app shell.
type ShellHandler struct {
	files  fs.FS
	static http.Handler
}

// NewShellHandler creates a handler over the embedded assets.
func NewShellHandler() *ShellHandler {
	files, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return &ShellHandler{files: files, static: http.FileServerFS(files)}
}

// Routes returns the shell's route patterns.
func (h *ShellHandler) Routes() []string {
	return []string{"GET /{$}", "GET /manifest.webmanifest", "GET /static/"}
}

// ServeHTTP implements [http.Handler].
func (h *ShellHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		h.serveFile(w, r, "index.html", "text/html; charset=utf-8")
	case "/manifest.webmanifest":
		h.serveFile(w, r, "manifest.webmanifest", "application/manifest+json")
	default:
		if path.Ext(r.URL.Path) == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", staticMaxAge)
		h.static.ServeHTTP(w, r)
	}
}

func (h *ShellHandler) serveFile(w http.ResponseWriter, r *http.Request, name, contentType string) {
	data, err := fs.ReadFile(h.files, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
}
