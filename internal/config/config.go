package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.weradiorc, $XDG_CONFIG_HOME/weradio/config.toml, ~/.config/weradio/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	if path := FindConfigFile(); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// FindConfigFile returns the first existing config file path, or "".
func FindConfigFile() string {
	for _, p := range searchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultPath is where `config init` writes a new file.
func DefaultPath() string {
	paths := searchPaths()
	if len(paths) == 0 {
		return "config.toml"
	}
	return paths[len(paths)-1]
}

func searchPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	paths := []string{
		filepath.Join(home, ".weradiorc"),
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return append(paths, filepath.Join(xdgConfig, "weradio", "config.toml"))
}

// Save writes the configuration as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// PollInterval returns the slow status poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMs) * time.Millisecond
}

// LivePollInterval returns the fast status poll cadence used while on air.
func (c *Config) LivePollInterval() time.Duration {
	return time.Duration(c.Poll.LiveIntervalMs) * time.Millisecond
}

// SettleDelay returns the wait before a confirming library refetch.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Library.SettleDelayMs) * time.Millisecond
}

// TailInterval returns the tail command's poll cadence.
func (c *Config) TailInterval() time.Duration {
	return time.Duration(c.Tail.IntervalMs) * time.Millisecond
}

// RenderInterval returns the dashboard's progress tick.
func (c *Config) RenderInterval() time.Duration {
	return time.Duration(c.TUI.RenderIntervalMs) * time.Millisecond
}

// ManifestURL joins the server URL and manifest path.
func (c *Config) ManifestURL() string {
	return trimSlash(c.Server.URL) + c.Server.ManifestPath
}

// WebURL is the station's browser page, defaulting to the server root.
func (c *Config) WebURL() string {
	if c.Server.WebURL != "" {
		return c.Server.WebURL
	}
	return trimSlash(c.Server.URL) + "/"
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("WERADIO_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}

	// Stream
	if v := os.Getenv("WERADIO_STREAM_OUTPUT"); v != "" {
		cfg.Stream.Output = v
	}
	if v := os.Getenv("WERADIO_VOLUME"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.Volume = i
		}
	}

	// Poll
	if v := os.Getenv("WERADIO_POLL_INTERVAL"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Poll.IntervalMs = i
		}
	}

	// Auth
	if v := os.Getenv("WERADIO_TOKEN_FILE"); v != "" {
		cfg.Auth.TokenFile = v
	}

	// TUI
	if v := os.Getenv("WERADIO_TUI_THEME"); v != "" {
		cfg.TUI.Theme = v
	}

	// Log
	if v := os.Getenv("WERADIO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WERADIO_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
