package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/goleak"

	"github.com/desertthunder/manhwatrack/internal/auth"
	"github.com/desertthunder/manhwatrack/internal/metrics"
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/session"
	"github.com/desertthunder/manhwatrack/internal/shared"
	th "github.com/desertthunder/manhwatrack/internal/testing"
)

func newTestServer(t *testing.T) (*Server, *repositories.Store) {
	t.Helper()
	store := th.NewTestStore(t)
	s := New(Options{
		Config:  shared.DefaultConfig(),
		Store:   store,
		Metrics: metrics.New(),
		Logger:  log.New(io.Discard),
	})
	t.Cleanup(s.Close)
	return s, store
}

// do sends a JSON request and decodes the response body into out when non-nil.
func do(t *testing.T, h http.Handler, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("failed to decode %s %s response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec
}

func signUp(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	var sess auth.Session
	rec := do(t, h, http.MethodPost, "/api/auth/register", "", registerRequest{
		Email: email, Name: "Reader", Password: "hunter2hunter2", Confirm: "hunter2hunter2",
	}, &sess)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	return sess.Token
}

func TestBasicRouter(t *testing.T) {
	t.Run("routes by method", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/items/{id}", func(w http.ResponseWriter, req *http.Request) {
			io.WriteString(w, "get "+req.PathValue("id"))
		})
		r.HandleFunc(http.MethodDelete, "/items/{id}", func(w http.ResponseWriter, req *http.Request) {
			io.WriteString(w, "delete "+req.PathValue("id"))
		})

		tests := []struct {
			method string
			status int
			body   string
		}{
			{http.MethodGet, http.StatusOK, "get 7"},
			{http.MethodDelete, http.StatusOK, "delete 7"},
			{http.MethodPut, http.StatusMethodNotAllowed, ""},
		}

		for _, tt := range tests {
			t.Run(tt.method, func(t *testing.T) {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(tt.method, "/items/7", nil))
				if rec.Code != tt.status {
					t.Errorf("expected status %d, got %d", tt.status, rec.Code)
				}
				if tt.body != "" && rec.Body.String() != tt.body {
					t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
				}
			})
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, req)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, req *http.Request) {
			order = append(order, "handler")
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("unexpected order %s", got)
		}
	})
}

func TestMiddleware(t *testing.T) {
	logger := log.New(io.Discard)

	t.Run("recover renders envelope", func(t *testing.T) {
		m := metrics.New()
		h := Logging(logger, m)(Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		var body recoveryBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if body.Error != "internal" || strings.Join(body.Actions, ",") != "retry,home" {
			t.Errorf("unexpected envelope %+v", body)
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		called := false
		h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/library", nil))

		if rec.Code != http.StatusNoContent || called {
			t.Errorf("expected 204 without calling handler, got %d called=%v", rec.Code, called)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("expected allow-origin header")
		}
	})

	t.Run("require auth", func(t *testing.T) {
		tokens := auth.NewTokens("secret", time.Hour)
		registry := session.NewRegistry(time.Hour, 0, logger)
		defer registry.Close()

		token, claims, err := tokens.Sign(&models.User{ID: "user-1", Email: "a@example.com"})
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}

		var seen string
		h := RequireAuth(tokens, registry)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = UserID(r.Context())
		}))

		tests := []struct {
			name   string
			header string
			status int
		}{
			{"missing header", "", http.StatusUnauthorized},
			{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
			{"bad token", "Bearer nope", http.StatusUnauthorized},
			{"valid token", "Bearer " + token, http.StatusOK},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				if tt.header != "" {
					req.Header.Set("Authorization", tt.header)
				}
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				if rec.Code != tt.status {
					t.Errorf("expected %d, got %d", tt.status, rec.Code)
				}
			})
		}

		if seen != "user-1" {
			t.Errorf("expected user-1 on context, got %q", seen)
		}

		registry.Revoke(claims.SessionID())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected revoked session to be rejected, got %d", rec.Code)
		}
	})
}

func TestAuthAPI(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	t.Run("register validation", func(t *testing.T) {
		tests := []struct {
			name   string
			req    registerRequest
			status int
		}{
			{"short password", registerRequest{Email: "a@example.com", Password: "short", Confirm: "short"}, http.StatusBadRequest},
			{"mismatch", registerRequest{Email: "a@example.com", Password: "longenough1", Confirm: "longenough2"}, http.StatusBadRequest},
			{"missing email", registerRequest{Password: "longenough1", Confirm: "longenough1"}, http.StatusBadRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var body errorBody
				rec := do(t, h, http.MethodPost, "/api/auth/register", "", tt.req, &body)
				if rec.Code != tt.status {
					t.Errorf("expected %d, got %d", tt.status, rec.Code)
				}
				if body.Error == "" {
					t.Error("expected an error message")
				}
			})
		}
	})

	token := signUp(t, h, "reader@example.com")

	t.Run("duplicate email", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/auth/register", "", registerRequest{
			Email: "reader@example.com", Password: "hunter2hunter2", Confirm: "hunter2hunter2",
		}, nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("login", func(t *testing.T) {
		var body errorBody
		rec := do(t, h, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "reader@example.com", Password: "wrong-password"}, &body)
		if rec.Code != http.StatusUnauthorized || body.Error != "Invalid email or password." {
			t.Errorf("expected 401 invalid credentials, got %d %q", rec.Code, body.Error)
		}

		var sess auth.Session
		rec = do(t, h, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "reader@example.com", Password: "hunter2hunter2"}, &sess)
		if rec.Code != http.StatusOK || sess.Token == "" {
			t.Errorf("expected token, got %d", rec.Code)
		}
	})

	t.Run("change password", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/auth/password", token, passwordRequest{Current: "hunter2hunter2", Password: "newpassword1", Confirm: "newpassword1"}, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d %s", rec.Code, rec.Body.String())
		}
		rec = do(t, h, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "reader@example.com", Password: "newpassword1"}, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected login with new password, got %d", rec.Code)
		}
	})

	t.Run("logout revokes token", func(t *testing.T) {
		if rec := do(t, h, http.MethodPost, "/api/auth/logout", token, nil, nil); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if rec := do(t, h, http.MethodGet, "/api/library", token, nil, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 after logout, got %d", rec.Code)
		}
	})
}

func TestLibraryAPI(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Handler()
	token := signUp(t, h, "reader@example.com")

	item := models.Manga{ID: "cat-1", Title: "Tower of God", LastChapter: "550", Description: "<b>Climb</b>"}

	var added map[string]string
	rec := do(t, h, http.MethodPost, "/api/library", token, item, &added)
	if rec.Code != http.StatusCreated || added["id"] == "" {
		t.Fatalf("add failed: %d %s", rec.Code, rec.Body.String())
	}
	id := added["id"]

	t.Run("adding again returns the same entry", func(t *testing.T) {
		var again map[string]string
		do(t, h, http.MethodPost, "/api/library", token, item, &again)
		if again["id"] != id {
			t.Errorf("expected %s, got %s", id, again["id"])
		}
	})

	t.Run("requires auth", func(t *testing.T) {
		if rec := do(t, h, http.MethodGet, "/api/library", "", nil, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("save progress", func(t *testing.T) {
		status := models.StatusReading
		chapter, rating := 42, 8

		var rec0 models.ProgressRecord
		rec := do(t, h, http.MethodPut, "/api/library/"+id+"/progress", token,
			models.ProgressUpdate{Status: &status, LastChapter: &chapter, Rating: &rating}, &rec0)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
		}
		if rec0.LastChapter != 42 || rec0.Status != models.StatusReading {
			t.Errorf("unexpected record %+v", rec0)
		}

		bad := 11
		rec = do(t, h, http.MethodPut, "/api/library/"+id+"/progress", token, models.ProgressUpdate{Rating: &bad}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for rating 11, got %d", rec.Code)
		}
	})

	t.Run("list and filter", func(t *testing.T) {
		var entries []models.EntryWithProgress
		do(t, h, http.MethodGet, "/api/library?status=reading", token, nil, &entries)
		if len(entries) != 1 || entries[0].Chapter() != 42 {
			t.Errorf("expected one reading entry at 42, got %+v", entries)
		}

		do(t, h, http.MethodGet, "/api/library?status=completed", token, nil, &entries)
		if len(entries) != 0 {
			t.Errorf("expected no completed entries, got %d", len(entries))
		}

		if rec := do(t, h, http.MethodGet, "/api/library?status=binging", token, nil, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unknown status, got %d", rec.Code)
		}
	})

	t.Run("get and patch", func(t *testing.T) {
		var entry models.EntryWithProgress
		rec := do(t, h, http.MethodGet, "/api/library/"+id, token, nil, &entry)
		if rec.Code != http.StatusOK || entry.Description != "Climb" {
			t.Errorf("expected sanitized entry, got %d %+v", rec.Code, entry)
		}

		title := "Tower of God (Season 3)"
		var patched models.LibraryEntry
		rec = do(t, h, http.MethodPatch, "/api/library/"+id, token, entryPatch{Title: &title}, &patched)
		if rec.Code != http.StatusOK || patched.Title != title {
			t.Errorf("expected patched title, got %d %q", rec.Code, patched.Title)
		}

		if rec := do(t, h, http.MethodGet, "/api/library/missing", token, nil, nil); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("stats unlock achievements", func(t *testing.T) {
		var result struct {
			Stats struct {
				Total        int `json:"total"`
				ChaptersRead int `json:"chapters_read"`
			} `json:"stats"`
			Unlocked []models.AchievementType `json:"unlocked"`
		}
		rec := do(t, h, http.MethodGet, "/api/stats", token, nil, &result)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if result.Stats.Total != 1 || result.Stats.ChaptersRead != 42 {
			t.Errorf("unexpected stats %+v", result.Stats)
		}
		if len(result.Unlocked) != 1 || result.Unlocked[0] != models.AchievementFirstTitle {
			t.Errorf("expected first title unlocked, got %v", result.Unlocked)
		}

		var views []achievementView
		do(t, h, http.MethodGet, "/api/achievements", token, nil, &views)
		if len(views) != len(models.Achievements) || views[0].UnlockedAt == "" || views[1].UnlockedAt != "" {
			t.Errorf("unexpected achievements %+v", views)
		}
	})

	t.Run("goals", func(t *testing.T) {
		var g models.Goal
		rec := do(t, h, http.MethodPost, "/api/goals", token, models.Goal{Period: models.PeriodMonthly, Target: models.TargetChapters, TargetValue: 100}, &g)
		if rec.Code != http.StatusCreated || g.ID == "" || g.Title != "Monthly chapters goal" {
			t.Fatalf("create goal failed: %d %+v", rec.Code, g)
		}

		var goals []models.Goal
		do(t, h, http.MethodGet, "/api/goals", token, nil, &goals)
		if len(goals) != 1 {
			t.Errorf("expected 1 goal, got %d", len(goals))
		}

		if rec := do(t, h, http.MethodDelete, "/api/goals/"+g.ID, token, nil, nil); rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("remove leaves no orphans", func(t *testing.T) {
		if rec := do(t, h, http.MethodDelete, "/api/library/"+id, token, nil, nil); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		n, err := store.Progress.CountOrphans(context.Background())
		if err != nil || n != 0 {
			t.Errorf("expected no orphans, got %d (%v)", n, err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/library", strings.NewReader("{"))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestOperationalRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{"health", "/health", http.StatusOK, `"status":"ok"`},
		{"shell", "/", http.StatusOK, "<title>manhwatrack</title>"},
		{"manifest", "/manifest.webmanifest", http.StatusOK, "standalone"},
		{"bad cover path", "/covers/only-id", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("expected body to contain %q", tt.contains)
			}
		})
	}

	t.Run("metrics count requests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if !strings.Contains(rec.Body.String(), `manhwatrack_http_requests_total{method="GET",status="200"}`) {
			t.Errorf("expected request counter in metrics output")
		}
	})
}

func TestServe(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("serves until canceled", func(t *testing.T) {
		s, _ := newTestServer(t)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen failed: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx, ln) }()

		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		resp, err := client.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			cancel()
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
		client.CloseIdleConnections()
	})
}
