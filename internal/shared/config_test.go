package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./manhwatrack.db" {
			t.Errorf("expected database path ./manhwatrack.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Catalog.BaseURL != "https://api.mangadex.org" {
			t.Errorf("expected catalog base URL https://api.mangadex.org, got %s", config.Catalog.BaseURL)
		}

		if config.Catalog.MinInterval.Duration != 250*time.Millisecond {
			t.Errorf("expected min interval 250ms, got %v", config.Catalog.MinInterval.Duration)
		}

		if config.Auth.IdleTimeout.Duration != 30*time.Minute {
			t.Errorf("expected idle timeout 30m, got %v", config.Auth.IdleTimeout.Duration)
		}

		if config.Catalog.HasCredentials() {
			t.Error("default config should not carry catalog credentials")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[catalog]
locale = "ko"
min_interval = "1s"

[notifications]
urls = ["logger://"]
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Catalog.Locale != "ko" || config.Catalog.MinInterval.Duration != time.Second {
			t.Errorf("unexpected catalog config: %+v", config.Catalog)
		}

		if config.Catalog.BaseURL != "https://api.mangadex.org" {
			t.Errorf("omitted keys should keep defaults, got base URL %q", config.Catalog.BaseURL)
		}

		if len(config.Notifications.URLs) != 1 || config.Notifications.URLs[0] != "logger://" {
			t.Errorf("unexpected notification urls: %v", config.Notifications.URLs)
		}

		if got := config.Server.BaseURL(); got != "http://127.0.0.1:8080" {
			t.Errorf("expected base URL http://127.0.0.1:8080, got %s", got)
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[auth]\nidle_timeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Fatal("expected error for invalid duration")
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")
		config := DefaultConfig()
		config.Server.Port = 4321
		config.Auth.WarnBefore = Duration{5 * time.Minute}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		if loaded.Server.Port != 4321 {
			t.Errorf("expected port 4321, got %d", loaded.Server.Port)
		}
		if loaded.Auth.WarnBefore.Duration != 5*time.Minute {
			t.Errorf("expected warn_before 5m, got %v", loaded.Auth.WarnBefore.Duration)
		}

		if err := SaveConfig(configPath, nil); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for nil config, got %v", err)
		}
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "absolute", in: "/var/data.db", want: "/var/data.db"},
		{name: "relative", in: "./data.db", want: "./data.db"},
		{name: "home", in: "~/.manhwatrack/cache", want: filepath.Join(home, ".manhwatrack/cache")},
		{name: "whitespace", in: "  /tmp/x  ", want: "/tmp/x"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
