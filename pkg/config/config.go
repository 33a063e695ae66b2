// Package config loads mangashelf settings from a TOML file with environment
// variable overrides.
//
// Precedence, lowest to highest: built-in defaults, the TOML file, then
// MANGASHELF_* environment variables. The result is normalized (home
// expansion, bound clamping) and validated before use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "MANGASHELF_"

// Paths contains on-device storage locations.
type Paths struct {
	StorageRoot string `toml:"storage_root" env:"STORAGE_ROOT"`
	Database    string `toml:"database" env:"DATABASE"`
}

// MangaDex contains content API settings.
type MangaDex struct {
	BaseURL           string  `toml:"base_url" env:"MANGADEX_BASE_URL"`
	UploadsURL        string  `toml:"uploads_url" env:"MANGADEX_UPLOADS_URL"`
	Language          string  `toml:"language" env:"LANGUAGE"`
	RequestsPerSecond float64 `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	TimeoutSeconds    int     `toml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	RetryCount        int     `toml:"retry_count" env:"RETRY_COUNT"`
}

// Library contains limits for the on-device reading state.
type Library struct {
	ContinueReadingMax int  `toml:"continue_reading_max" env:"CONTINUE_READING_MAX"`
	FavoritesMax       int  `toml:"favorites_max" env:"FAVORITES_MAX"`
	MinPages           int  `toml:"min_pages" env:"MIN_PAGES"`
	VerifyImages       bool `toml:"verify_images" env:"VERIFY_IMAGES"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

// Config encapsulates all configuration values.
type Config struct {
	Paths    Paths    `toml:"paths"`
	MangaDex MangaDex `toml:"mangadex"`
	Library  Library  `toml:"library"`
	Logging  Logging  `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageRoot: "~/.mangashelf/downloads",
			Database:    "~/.mangashelf/state.db",
		},
		MangaDex: MangaDex{
			BaseURL:           "https://api.mangadex.org",
			UploadsURL:        "https://uploads.mangadex.org",
			Language:          "en",
			RequestsPerSecond: 4,
			TimeoutSeconds:    30,
			RetryCount:        3,
		},
		Library: Library{
			ContinueReadingMax: 10,
			FavoritesMax:       20,
			MinPages:           1,
			VerifyImages:       true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns the config file location used when none is given.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "mangashelf", "config.toml"), nil
	}
	return expandPath("~/.config/mangashelf/config.toml")
}

// Load reads the config file at path (or the default location when path is
// empty), applies environment overrides, then normalizes and validates. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize expands paths and trims string settings.
func (c *Config) Normalize() error {
	var err error
	if c.Paths.StorageRoot, err = expandPath(c.Paths.StorageRoot); err != nil {
		return fmt.Errorf("paths.storage_root: %w", err)
	}
	if c.Paths.Database, err = expandPath(c.Paths.Database); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	c.MangaDex.BaseURL = strings.TrimRight(strings.TrimSpace(c.MangaDex.BaseURL), "/")
	c.MangaDex.UploadsURL = strings.TrimRight(strings.TrimSpace(c.MangaDex.UploadsURL), "/")
	c.MangaDex.Language = strings.TrimSpace(c.MangaDex.Language)
	if c.MangaDex.Language == "" {
		c.MangaDex.Language = "en"
	}
	if c.MangaDex.RetryCount < 0 {
		c.MangaDex.RetryCount = 0
	}
	if c.Library.MinPages < 1 {
		c.Library.MinPages = 1
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.StorageRoot == "" {
		return errors.New("paths.storage_root must be set")
	}
	if c.Paths.Database == "" {
		return errors.New("paths.database must be set")
	}
	if c.MangaDex.BaseURL == "" {
		return errors.New("mangadex.base_url must be set")
	}
	if c.MangaDex.TimeoutSeconds <= 0 {
		return fmt.Errorf("mangadex.timeout_seconds must be positive, got %d", c.MangaDex.TimeoutSeconds)
	}
	if c.MangaDex.RequestsPerSecond < 0 {
		return fmt.Errorf("mangadex.requests_per_second must not be negative, got %v", c.MangaDex.RequestsPerSecond)
	}
	if c.Library.ContinueReadingMax <= 0 {
		return fmt.Errorf("library.continue_reading_max must be positive, got %d", c.Library.ContinueReadingMax)
	}
	if c.Library.FavoritesMax <= 0 {
		return fmt.Errorf("library.favorites_max must be positive, got %d", c.Library.FavoritesMax)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(path), nil
}
