package core

import (
	"fmt"
	"time"
)

// IntentState is the listener's playback intent.
type IntentState int

const (
	Stopped IntentState = iota
	Starting
	Live
	Error
)

func (s IntentState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Live:
		return "live"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("IntentState(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON output.
func (s IntentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusSnapshot is one authoritative read of the station's playback state.
// It is replaced wholesale by each successful poll and never mutated.
type StatusSnapshot struct {
	Current       *Track        `json:"current"`
	ServerElapsed time.Duration `json:"server_elapsed"`
	CapturedAt    time.Time     `json:"captured_at"`
	Next          *TrackRef     `json:"next"`
	Queue         []TrackRef    `json:"queue"`
	Playing       bool          `json:"playing"`
	Available     int           `json:"available_tracks"`
}

// HasTrack returns true if there is a track on air.
func (s *StatusSnapshot) HasTrack() bool {
	return s != nil && s.Current != nil
}

// Title returns the on-air title, or "" when nothing is playing.
func (s *StatusSnapshot) Title() string {
	if !s.HasTrack() {
		return ""
	}
	return s.Current.Title
}

// Duration returns the on-air track duration, or 0.
func (s *StatusSnapshot) Duration() time.Duration {
	if !s.HasTrack() {
		return 0
	}
	return s.Current.Duration
}

// CurrentTrack returns the on-air track, or nil.
func (s *StatusSnapshot) CurrentTrack() *Track {
	if s == nil {
		return nil
	}
	return s.Current
}
