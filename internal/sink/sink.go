// Package sink provides the audio outputs a live session feeds.
package sink

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrDecode marks a write the decoder could not consume. The session treats
// it as a media-class error.
var ErrDecode = errors.New("decoder failed")

// ErrPlayerExited marks an external player that quit without being paused.
var ErrPlayerExited = errors.New("player exited")

// Sink receives encoded segments and renders them as audio.
type Sink interface {
	// Write hands one segment to the decoder. Segments written while the
	// sink is paused are dropped.
	Write(ctx context.Context, segment []byte) error
	// Play starts audible output. A sink that cannot start returns an error
	// wrapping errors.ErrPlaybackRejected.
	Play(ctx context.Context) error
	Pause() error
	SetVolume(percent int) error
	Close() error
}

// Resetter is implemented by sinks whose decoder can be restarted in place.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ExitNotifier is implemented by sinks whose player can quit on its own.
// Exited receives once for each exit that was not caused by Pause or Close.
type ExitNotifier interface {
	Exited() <-chan error
}

// URLPlayer is implemented by sinks that speak the streaming protocol
// themselves and are pointed at the manifest directly.
type URLPlayer interface {
	SetURL(url string)
}

// expand substitutes {volume} and {url} in a command template.
func expand(template []string, volume int, url string) []string {
	r := strings.NewReplacer("{volume}", strconv.Itoa(volume), "{url}", url)
	args := make([]string, len(template))
	for i, a := range template {
		args[i] = r.Replace(a)
	}
	return args
}

func clampVolume(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
