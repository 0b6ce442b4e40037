package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Stream   StreamConfig   `toml:"stream"`
	Player   PlayerConfig   `toml:"player"`
	Poll     PollConfig     `toml:"poll"`
	Library  LibraryConfig  `toml:"library"`
	Defaults DefaultsConfig `toml:"defaults"`
	Auth     AuthConfig     `toml:"auth"`
	Tail     TailConfig     `toml:"tail"`
	TUI      TUIConfig      `toml:"tui"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig holds the station backend location.
type ServerConfig struct {
	URL          string `toml:"url"`
	ManifestPath string `toml:"manifest_path"`
	WebURL       string `toml:"web_url"`
}

// StreamConfig holds live session settings.
type StreamConfig struct {
	Output           string      `toml:"output"`
	LiveSyncSegments int         `toml:"live_sync_segments"`
	BufferSegments   int         `toml:"buffer_segments"`
	CooldownMs       int         `toml:"cooldown_ms"`
	MaxRecoveries    int         `toml:"max_recoveries"`
	StallTimeoutMs   int         `toml:"stall_timeout_ms"`
	Manifest         RetryPolicy `toml:"manifest"`
	Level            RetryPolicy `toml:"level"`
	Segment          RetryPolicy `toml:"segment"`
}

// RetryPolicy bounds fetch attempts for one resource class.
// A fetch makes one attempt plus up to MaxRetries retries.
type RetryPolicy struct {
	EndpointTimeoutMs int `toml:"endpoint_timeout_ms"`
	MaxRetries        int `toml:"max_retries"`
	RetryDelayMs      int `toml:"retry_delay_ms"`
}

// Timeout returns the per-attempt timeout.
func (p RetryPolicy) Timeout() time.Duration {
	return time.Duration(p.EndpointTimeoutMs) * time.Millisecond
}

// Delay returns the wait between attempts.
func (p RetryPolicy) Delay() time.Duration {
	return time.Duration(p.RetryDelayMs) * time.Millisecond
}

// Cooldown returns the wait before rebuilding a destroyed session.
func (c StreamConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

// StallTimeout returns how long an empty buffer is tolerated before a stall is reported.
func (c StreamConfig) StallTimeout() time.Duration {
	return time.Duration(c.StallTimeoutMs) * time.Millisecond
}

// PlayerConfig holds the external decoder commands.
// {volume} and {url} placeholders are substituted at start.
type PlayerConfig struct {
	Command       []string `toml:"command"`
	NativeCommand []string `toml:"native_command"`
}

// PollConfig holds status poll cadences.
type PollConfig struct {
	IntervalMs     int `toml:"interval_ms"`
	LiveIntervalMs int `toml:"live_interval_ms"`
}

// LibraryConfig holds mutation coordinator settings.
type LibraryConfig struct {
	SettleDelayMs int `toml:"settle_delay_ms"`
}

// DefaultsConfig holds default playback settings.
type DefaultsConfig struct {
	Volume int `toml:"volume"`
}

// AuthConfig holds credential storage settings.
type AuthConfig struct {
	TokenFile string `toml:"token_file"`
}

// TailConfig holds settings for tail/follow mode.
type TailConfig struct {
	IntervalMs int `toml:"interval_ms"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme            string `toml:"theme"`
	RenderIntervalMs int    `toml:"render_interval_ms"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
