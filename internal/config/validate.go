package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Stream.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("stream: %w", err))
	}
	if err := c.Player.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("player: %w", err))
	}
	if err := c.Poll.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("poll: %w", err))
	}
	if c.Library.SettleDelayMs < 0 {
		errs = append(errs, errors.New("library: settle_delay_ms must be non-negative"))
	}
	if err := c.Defaults.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("defaults: %w", err))
	}
	if err := c.Tail.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tail: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks ServerConfig for errors.
func (c *ServerConfig) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url: %s (must be http or https)", c.URL)
	}
	if c.WebURL != "" {
		if _, err := url.Parse(c.WebURL); err != nil {
			return fmt.Errorf("invalid web_url: %w", err)
		}
	}
	return nil
}

// Validate checks StreamConfig for errors.
func (c *StreamConfig) Validate() error {
	var errs []error
	switch c.Output {
	case "", "exec", "native", "null":
		// valid
	default:
		errs = append(errs, fmt.Errorf("invalid output: %s (must be exec, native, or null)", c.Output))
	}
	if c.LiveSyncSegments < 0 || c.BufferSegments < 0 {
		errs = append(errs, errors.New("segment counts must be non-negative"))
	}
	if c.CooldownMs < 0 || c.StallTimeoutMs < 0 || c.MaxRecoveries < 0 {
		errs = append(errs, errors.New("cooldown_ms, stall_timeout_ms and max_recoveries must be non-negative"))
	}
	for name, p := range map[string]RetryPolicy{"manifest": c.Manifest, "level": c.Level, "segment": c.Segment} {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks RetryPolicy for errors.
func (p RetryPolicy) Validate() error {
	if p.EndpointTimeoutMs <= 0 {
		return errors.New("endpoint_timeout_ms must be positive")
	}
	if p.MaxRetries < 0 || p.RetryDelayMs < 0 {
		return errors.New("max_retries and retry_delay_ms must be non-negative")
	}
	return nil
}

// Validate checks PlayerConfig for errors.
func (c *PlayerConfig) Validate() error {
	if len(c.Command) > 0 && c.Command[0] == "" {
		return errors.New("command must name an executable")
	}
	if len(c.NativeCommand) > 0 && c.NativeCommand[0] == "" {
		return errors.New("native_command must name an executable")
	}
	return nil
}

// Validate checks PollConfig for errors.
func (c *PollConfig) Validate() error {
	if c.IntervalMs < 0 || c.LiveIntervalMs < 0 {
		return errors.New("intervals must be non-negative")
	}
	return nil
}

// Validate checks DefaultsConfig for errors.
func (c *DefaultsConfig) Validate() error {
	if c.Volume < 0 || c.Volume > 100 {
		return errors.New("volume must be between 0 and 100")
	}
	return nil
}

// Validate checks TailConfig for errors.
func (c *TailConfig) Validate() error {
	if c.IntervalMs < 0 {
		return errors.New("interval_ms must be non-negative")
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	if c.RenderIntervalMs < 0 {
		return errors.New("render_interval_ms must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
