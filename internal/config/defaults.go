package config

// Station defaults.
const (
	DefaultServerURL    = "http://localhost:5000"
	DefaultManifestPath = "/playlist.m3u8"
)

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:          DefaultServerURL,
			ManifestPath: DefaultManifestPath,
		},
		Stream: StreamConfig{
			Output:           "exec",
			LiveSyncSegments: 3,
			BufferSegments:   10,
			CooldownMs:       2000,
			MaxRecoveries:    3,
			StallTimeoutMs:   6000,
			Manifest:         RetryPolicy{EndpointTimeoutMs: 5000, MaxRetries: 15, RetryDelayMs: 200},
			Level:            RetryPolicy{EndpointTimeoutMs: 5000, MaxRetries: 15, RetryDelayMs: 200},
			Segment:          RetryPolicy{EndpointTimeoutMs: 10000, MaxRetries: 15, RetryDelayMs: 1000},
		},
		Player: PlayerConfig{
			Command:       []string{"ffplay", "-nodisp", "-loglevel", "quiet", "-volume", "{volume}", "-i", "pipe:0"},
			NativeCommand: []string{"mpv", "--no-video", "--really-quiet", "--volume={volume}", "{url}"},
		},
		Poll: PollConfig{
			IntervalMs:     5000,
			LiveIntervalMs: 3000,
		},
		Library: LibraryConfig{
			SettleDelayMs: 5000,
		},
		Defaults: DefaultsConfig{
			Volume: 80,
		},
		Tail: TailConfig{
			IntervalMs: 1000,
		},
		TUI: TUIConfig{
			Theme:            "auto",
			RenderIntervalMs: 250,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Server
	if c.Server.URL == "" {
		c.Server.URL = d.Server.URL
	}
	if c.Server.ManifestPath == "" {
		c.Server.ManifestPath = d.Server.ManifestPath
	}

	// Stream
	if c.Stream.Output == "" {
		c.Stream.Output = d.Stream.Output
	}
	if c.Stream.LiveSyncSegments == 0 {
		c.Stream.LiveSyncSegments = d.Stream.LiveSyncSegments
	}
	if c.Stream.BufferSegments == 0 {
		c.Stream.BufferSegments = d.Stream.BufferSegments
	}
	if c.Stream.CooldownMs == 0 {
		c.Stream.CooldownMs = d.Stream.CooldownMs
	}
	if c.Stream.MaxRecoveries == 0 {
		c.Stream.MaxRecoveries = d.Stream.MaxRecoveries
	}
	if c.Stream.StallTimeoutMs == 0 {
		c.Stream.StallTimeoutMs = d.Stream.StallTimeoutMs
	}
	c.Stream.Manifest.applyDefaults(d.Stream.Manifest)
	c.Stream.Level.applyDefaults(d.Stream.Level)
	c.Stream.Segment.applyDefaults(d.Stream.Segment)

	// Player
	if len(c.Player.Command) == 0 {
		c.Player.Command = d.Player.Command
	}
	if len(c.Player.NativeCommand) == 0 {
		c.Player.NativeCommand = d.Player.NativeCommand
	}

	// Poll
	if c.Poll.IntervalMs == 0 {
		c.Poll.IntervalMs = d.Poll.IntervalMs
	}
	if c.Poll.LiveIntervalMs == 0 {
		c.Poll.LiveIntervalMs = d.Poll.LiveIntervalMs
	}

	// Library
	if c.Library.SettleDelayMs == 0 {
		c.Library.SettleDelayMs = d.Library.SettleDelayMs
	}

	// Defaults
	if c.Defaults.Volume == 0 {
		c.Defaults.Volume = d.Defaults.Volume
	}

	// Tail
	if c.Tail.IntervalMs == 0 {
		c.Tail.IntervalMs = d.Tail.IntervalMs
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.RenderIntervalMs == 0 {
		c.TUI.RenderIntervalMs = d.TUI.RenderIntervalMs
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// A retry count of zero is a valid setting, so only the timings are
// defaulted when the whole policy is absent.
func (p *RetryPolicy) applyDefaults(d RetryPolicy) {
	if *p == (RetryPolicy{}) {
		*p = d
		return
	}
	if p.EndpointTimeoutMs == 0 {
		p.EndpointTimeoutMs = d.EndpointTimeoutMs
	}
}
