package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database      DatabaseConfig      `toml:"database"`
	Server        ServerConfig        `toml:"server"`
	Catalog       CatalogConfig       `toml:"catalog"`
	Proxy         ProxyConfig         `toml:"proxy"`
	Offline       OfflineConfig       `toml:"offline"`
	Auth          AuthConfig          `toml:"auth"`
	Notifications NotificationsConfig `toml:"notifications"`
	Storage       StorageConfig       `toml:"storage"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL returns the URL clients use to reach the server.
func (s ServerConfig) BaseURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// CatalogConfig describes the public manga catalog API.
type CatalogConfig struct {
	BaseURL     string   `toml:"base_url"`
	UploadsURL  string   `toml:"uploads_url"`
	Locale      string   `toml:"locale"`
	MinInterval Duration `toml:"min_interval"`
	// Optional personal client credentials for the catalog's OAuth2 password grant.
	TokenURL     string `toml:"token_url"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
}

// HasCredentials reports whether an authenticated catalog session can be requested.
func (c CatalogConfig) HasCredentials() bool {
	return c.TokenURL != "" && c.ClientID != "" && c.Username != "" && c.Password != ""
}

// ProxyConfig contains image and catalog proxy settings.
type ProxyConfig struct {
	ImageHost      string   `toml:"image_host"`
	Referer        string   `toml:"referer"`
	UserAgent      string   `toml:"user_agent"`
	ImageMaxAge    Duration `toml:"image_max_age"`
	CatalogMaxAge  Duration `toml:"catalog_max_age"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// OfflineConfig contains settings for the offline cache.
type OfflineConfig struct {
	Enabled  bool   `toml:"enabled"`
	AppName  string `toml:"app_name"`
	Version  string `toml:"version"`
	CacheDir string `toml:"cache_dir"`
}

// AuthConfig contains session token and idle timeout settings.
type AuthConfig struct {
	JWTSecret   string   `toml:"jwt_secret"`
	TokenTTL    Duration `toml:"token_ttl"`
	IdleTimeout Duration `toml:"idle_timeout"`
	WarnBefore  Duration `toml:"warn_before"`
}

// NotificationsConfig lists delivery targets for reminders.
type NotificationsConfig struct {
	URLs          []string `toml:"urls"`
	CheckInterval Duration `toml:"check_interval"`
}

// StorageConfig contains the on-disk location of local storage.
type StorageConfig struct {
	Path string `toml:"path"`
}

// Duration is a [time.Duration] that decodes from TOML strings like "30m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading "~" to the user's home directory.
func ExpandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if !strings.HasPrefix(trimmed, "~") {
		return trimmed
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return trimmed
	}
	return filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
}
