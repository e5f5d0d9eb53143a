package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/jarcoal/httpmock"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/notify"
	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/storage"
	tu "github.com/desertthunder/manhwatrack/internal/testing"
)

const soloLeveling = `{"result":"ok","data":{"id":"m-1","type":"manga","attributes":{
  "title":{"en":"Solo Leveling"},"description":{"en":"A weak hunter."},"status":"completed",
  "contentRating":"safe","lastChapter":"179","tags":[]},
  "relationships":[{"id":"c-1","type":"cover_art","attributes":{"fileName":"cover.jpg"}}]}}`

type harness struct {
	runner *Runner
	output *bytes.Buffer
	local  *storage.Session
	mock   *httpmock.MockTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	config := shared.DefaultConfig()
	config.Auth.JWTSecret = "test-secret"
	config.Offline.CacheDir = t.TempDir()

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, "https://api.mangadex.org/manga/m-1",
		httpmock.NewStringResponder(http.StatusOK, soloLeveling))
	mock.RegisterResponder(http.MethodGet, "https://api.mangadex.org/manga/missing",
		httpmock.NewStringResponder(http.StatusNotFound, `{"result":"error"}`))

	h := &harness{output: &bytes.Buffer{}, local: storage.NewSession(), mock: mock}
	h.runner = NewRunner(RunnerOpts{
		Config:     config,
		HTTPClient: &http.Client{Transport: mock},
		Logger:     log.New(io.Discard),
		Output:     h.output,
		Store:      tu.NewTestStore(t),
		Local:      h.local,
	})
	t.Cleanup(func() { h.runner.Close() })
	return h
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	h.output.Reset()
	err := newApp(h.runner).Run(context.Background(), append([]string{"manhwatrack"}, args...))
	return h.output.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func (h *harness) signUp(t *testing.T) {
	t.Helper()
	h.mustRun(t, "auth", "register", "--email", "reader@example.com", "--name", "Reader",
		"--password", "correct-horse", "--confirm", "correct-horse")
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Offline.Enabled = false
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			local := storage.NewSession()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Local:      local,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.catalogHTTPClient() != httpClient {
				t.Error("expected catalog traffic to use the injected client")
			}
			if runner.localStore() != local {
				t.Error("expected local store to be set")
			}
		})

		t.Run("routes catalog traffic through the offline cache", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Offline.CacheDir = t.TempDir()
			mock := httpmock.NewMockTransport()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     log.New(io.Discard),
				HTTPClient: &http.Client{Transport: mock},
			})
			defer runner.Close()

			if got := runner.catalogHTTPClient().Transport; got != runner.offlineWorker() {
				t.Errorf("expected the offline worker as transport, got %T", got)
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		seen := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if seen[cmd.Name] {
				t.Errorf("duplicate command %q", cmd.Name)
			}
			seen[cmd.Name] = true
		}

		for _, name := range []string{"setup", "serve", "auth", "catalog", "library", "goals", "stats", "export", "notify", "cache", "tui"} {
			if !seen[name] {
				t.Errorf("expected command %q", name)
			}
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("register saves the token", func(t *testing.T) {
		h := newHarness(t)
		h.signUp(t)

		if _, ok := h.local.Get(storage.KeyAuthToken); !ok {
			t.Fatal("expected token in local storage")
		}
		if out := h.mustRun(t, "auth", "status"); !strings.Contains(out, "Signed in as reader@example.com") {
			t.Errorf("unexpected status %q", out)
		}
	})

	t.Run("logout forgets the token", func(t *testing.T) {
		h := newHarness(t)
		h.signUp(t)
		h.mustRun(t, "auth", "logout")

		if out := h.mustRun(t, "auth", "status"); !strings.Contains(out, "Not signed in") {
			t.Errorf("unexpected status %q", out)
		}
		if _, err := h.run(t, "library", "list"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("login rejects a wrong password", func(t *testing.T) {
		h := newHarness(t)
		h.signUp(t)

		_, err := h.run(t, "auth", "login", "--email", "reader@example.com", "--password", "wrong-password")
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("register validates the confirmation", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.run(t, "auth", "register", "--email", "a@example.com", "--password", "correct-horse", "--confirm", "other-horse")
		if !errors.Is(err, shared.ErrPasswordMismatch) {
			t.Errorf("expected ErrPasswordMismatch, got %v", err)
		}
	})

	t.Run("reset-storage signs out", func(t *testing.T) {
		h := newHarness(t)
		h.signUp(t)

		if out := h.mustRun(t, "--reset-storage", "auth", "status"); !strings.Contains(out, "Not signed in") {
			t.Errorf("unexpected status %q", out)
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	h := newHarness(t)
	h.signUp(t)

	if out := h.mustRun(t, "library", "add", "m-1"); !strings.Contains(out, "Added Solo Leveling") {
		t.Fatalf("unexpected add output %q", out)
	}
	if _, err := h.run(t, "library", "add", "missing"); !errors.Is(err, shared.ErrUpstreamNotFound) {
		t.Errorf("expected ErrUpstreamNotFound, got %v", err)
	}

	var entries []models.EntryWithProgress
	if err := json.Unmarshal([]byte(h.mustRun(t, "library", "list", "--json")), &entries); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Solo Leveling" {
		t.Fatalf("unexpected library %+v", entries)
	}
	id := entries[0].ID

	t.Run("progress", func(t *testing.T) {
		out := h.mustRun(t, "library", "progress", "--chapter", "12", "--status", "reading", "--rating", "8", id)
		if !strings.Contains(out, "Reading • chapter 12") {
			t.Errorf("unexpected progress output %q", out)
		}

		if _, err := h.run(t, "library", "progress", id); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := h.run(t, "library", "progress", "--rating", "3", "--unrate", id); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		if _, err := h.run(t, "library", "progress", "--rating", "11", id); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		out := h.mustRun(t, "library", "list", "--status", "reading")
		if !strings.Contains(out, "Solo Leveling") || !strings.Contains(out, "★ 8/10") {
			t.Errorf("unexpected list output %q", out)
		}
		if out := h.mustRun(t, "library", "list", "--status", "dropped"); !strings.Contains(out, "empty") {
			t.Errorf("expected empty filtered list, got %q", out)
		}
	})

	t.Run("goals and stats", func(t *testing.T) {
		if out := h.mustRun(t, "goals", "create", "--target", "chapters", "--value", "10"); !strings.Contains(out, "Created goal") {
			t.Errorf("unexpected goal output %q", out)
		}

		out := h.mustRun(t, "stats")
		for _, want := range []string{"Reading Stats", "Chapters read: 12", "Monthly chapters goal"} {
			if !strings.Contains(out, want) {
				t.Errorf("stats output missing %q:\n%s", want, out)
			}
		}

		if out := h.mustRun(t, "achievements"); !strings.Contains(out, "First Steps") {
			t.Errorf("expected first title achievement, got %q", out)
		}
	})

	t.Run("export", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		h.mustRun(t, "export", "--format", "csv", "--output", dir)

		tu.AssertFileExists(t, filepath.Join(dir, "library_library.csv"))
		tu.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
		if csv := tu.MustReadFile(t, filepath.Join(dir, "library_library.csv")); !strings.Contains(csv, "Solo Leveling") {
			t.Errorf("unexpected csv %q", csv)
		}

		if _, err := h.run(t, "export", "--format", "pdf", "--output", dir); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("remove", func(t *testing.T) {
		h.mustRun(t, "library", "remove", id)
		if _, err := h.run(t, "library", "show", id); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestNotifyCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "notify", "settings", "--enabled", "--time", "21:30", "--continue=false")
	if !strings.Contains(out, "Settings saved") {
		t.Errorf("unexpected output %q", out)
	}

	settings := notify.LoadSettings(h.local)
	if !settings.Enabled || settings.ReminderTime != "21:30" || settings.ContinueReadingSuggestions {
		t.Errorf("unexpected settings %+v", settings)
	}
	if !settings.DailyReminder || !settings.StreakReminders {
		t.Error("unset flags should keep their values")
	}

	if _, err := h.run(t, "notify", "settings", "--time", "25:00"); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	h.signUp(t)
	if _, err := h.run(t, "notify", "check", "--dry-run"); err != nil {
		t.Errorf("dry run failed: %v", err)
	}
}

func TestCacheCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "cache", "list")
	for _, name := range []string{"manhwatrack-static-v1", "manhwatrack-covers-v1", "manhwatrack-api-v1"} {
		if !strings.Contains(out, name) {
			t.Errorf("cache list missing %q:\n%s", name, out)
		}
	}

	if out := h.mustRun(t, "cache", "activate"); !strings.Contains(out, "active") {
		t.Errorf("unexpected activate output %q", out)
	}
	if out := h.mustRun(t, "cache", "list"); !strings.Contains(out, "(active)") {
		t.Errorf("expected active cache after activate:\n%s", out)
	}

	if out := h.mustRun(t, "cache", "clear"); !strings.Contains(out, "cleared") {
		t.Errorf("unexpected clear output %q", out)
	}

	t.Run("partial install points at activate", func(t *testing.T) {
		h := newHarness(t)
		h.mock.RegisterResponder(http.MethodGet, "https://app.test/", httpmock.NewStringResponder(http.StatusOK, "<html>shell</html>"))

		_, err := h.run(t, "cache", "install", "--url", "https://app.test")
		if err == nil || !strings.Contains(err.Error(), "cache activate") {
			t.Errorf("expected install error to mention cache activate, got %v", err)
		}
	})
}

func TestOfflineCacheAcrossRuns(t *testing.T) {
	config := shared.DefaultConfig()
	config.Auth.JWTSecret = "test-secret"
	config.Offline.CacheDir = t.TempDir()

	output := &bytes.Buffer{}
	newRunner := func(mock *httpmock.MockTransport) *Runner {
		return NewRunner(RunnerOpts{
			Config:     config,
			HTTPClient: &http.Client{Transport: mock},
			Logger:     log.New(io.Discard),
			Output:     output,
			Store:      tu.NewTestStore(t),
			Local:      storage.NewSession(),
		})
	}
	run := func(r *Runner, args ...string) (string, error) {
		output.Reset()
		err := newApp(r).Run(context.Background(), append([]string{"manhwatrack"}, args...))
		return output.String(), err
	}

	online := httpmock.NewMockTransport()
	online.RegisterResponder(http.MethodGet, "https://app.test/", httpmock.NewStringResponder(http.StatusOK, "<html>shell</html>"))
	online.RegisterResponder(http.MethodGet, "https://app.test/manifest.webmanifest", httpmock.NewStringResponder(http.StatusOK, "{}"))
	online.RegisterResponder(http.MethodGet, "https://app.test/static/app.css", httpmock.NewStringResponder(http.StatusOK, "body{}"))
	online.RegisterResponder(http.MethodGet, "https://api.mangadex.org/manga/m-1", httpmock.NewStringResponder(http.StatusOK, soloLeveling))

	first := newRunner(online)
	if _, err := run(first, "cache", "install", "--url", "https://app.test"); err != nil {
		t.Fatalf("install: %v", err)
	}
	if out, err := run(first, "catalog", "get", "m-1"); err != nil || !strings.Contains(out, "Solo Leveling") {
		t.Fatalf("online lookup: %v\n%s", err, out)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	down := httpmock.NewMockTransport()
	down.RegisterNoResponder(httpmock.NewErrorResponder(errors.New("network down")))
	second := newRunner(down)
	t.Cleanup(func() { second.Close() })

	out, err := run(second, "cache", "list")
	if err != nil || !strings.Contains(out, "(active)") {
		t.Fatalf("expected a restored, active cache: %v\n%s", err, out)
	}

	out, err = run(second, "catalog", "get", "m-1")
	if err != nil {
		t.Fatalf("offline lookup: %v", err)
	}
	if !strings.Contains(out, "Solo Leveling") {
		t.Errorf("expected cached title offline, got:\n%s", out)
	}
}

func TestSetupConfig(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	h.mustRun(t, "setup", "config", "--output", path)
	tu.AssertFileExists(t, path)

	if _, err := shared.LoadConfig(path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
	if _, err := h.run(t, "setup", "config", "--output", path); err == nil {
		t.Error("expected an error when the file exists")
	}
}
