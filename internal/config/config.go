package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Backend kinds.
const (
	BackendAPI      = "api"
	BackendPostgres = "postgres"
)

// Environment overrides applied on top of the config file.
const (
	EnvBackendURL = "CALLBOARD_BACKEND_URL"
	EnvUser       = "CALLBOARD_USER"
)

// Config represents ~/.config/callboard/config.toml
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Display DisplayConfig `toml:"display"`
	User    UserConfig    `toml:"user"`
	Project ProjectConfig `toml:"project"`
}

// BackendConfig selects where records are loaded from
type BackendConfig struct {
	Kind           string `toml:"kind" config:"backend.kind" default:"api" enum:"api,postgres" desc:"Data source: REST api or direct postgres"`
	URL            string `toml:"url" config:"backend.url" default:"http://localhost:8000" desc:"API base URL or PostgreSQL connection URL"`
	TimeoutSeconds int    `toml:"timeout_seconds" config:"backend.timeout_seconds" default:"30" min:"1" max:"600" desc:"Request timeout"`
}

// DisplayConfig contains table presentation settings
type DisplayConfig struct {
	PageSize   int  `toml:"page_size" config:"display.page_size" default:"25" min:"1" max:"100" desc:"Rows fetched per page"`
	Accessible bool `toml:"accessible" config:"display.accessible" default:"false" desc:"Plain output without colors or the interactive table"`
}

// UserConfig identifies the dashboard user
type UserConfig struct {
	ID string `toml:"id" config:"user.id" desc:"User ID used to list your projects"`
}

// ProjectConfig holds the project used when --project is omitted
type ProjectConfig struct {
	Default string `toml:"default" config:"project.default" desc:"Project ID for agents, contacts, campaigns and calls"`
}

// Default returns a config with default values
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:           BackendAPI,
			URL:            "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Display: DisplayConfig{
			PageSize: 25,
		},
	}
}

// Path returns the path to the config file.
// Follows XDG Base Directory spec on Linux, platform conventions elsewhere
func Path() string {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, "Library", "Application Support", "callboard")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "callboard")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "callboard")
		} else {
			home, _ := os.UserHomeDir()
			configDir = filepath.Join(home, ".config", "callboard")
		}
	}

	return filepath.Join(configDir, "config.toml")
}

// Load reads the config file, applying defaults and environment overrides.
// A missing file is not an error.
func Load() (*Config, error) {
	cfg, err := LoadFile(Path())
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile reads a config file without environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	defaults := Default()
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = defaults.Backend.Kind
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaults.Backend.URL
	}
	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = defaults.Backend.TimeoutSeconds
	}
	if cfg.Display.PageSize <= 0 {
		cfg.Display.PageSize = defaults.Display.PageSize
	}
	if cfg.Display.PageSize > 100 {
		cfg.Display.PageSize = 100
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if url := os.Getenv(EnvBackendURL); url != "" {
		c.Backend.URL = url
	}
	if user := os.Getenv(EnvUser); user != "" {
		c.User.ID = user
	}
}

// Save writes the config file
func (c *Config) Save() error {
	return c.SaveFile(Path())
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

// GetValue returns a config value by key (uses reflection)
func (c *Config) GetValue(key string) (string, bool) {
	return getFieldValue(c, key)
}

// SetValue sets a config value by key (uses reflection with validation)
func (c *Config) SetValue(key, value string) error {
	return setFieldValue(c, key, value)
}
