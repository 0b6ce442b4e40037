package tail

import (
	"context"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/tessro/weradio/internal/core"
)

// EventType represents the type of station event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventTrackComplete
	EventQueueChange
	EventUpNextChange
	EventStationIdle
)

// Event represents a change between two status snapshots.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *core.StatusSnapshot
	Current   *core.StatusSnapshot
}

// Source returns the station's current snapshot.
type Source interface {
	Poll(ctx context.Context) (*core.StatusSnapshot, error)
}

// Watcher polls a status source for changes and emits events.
type Watcher struct {
	source   Source
	interval time.Duration
	events   chan Event
	done     chan struct{}
}

// NewWatcher creates a new snapshot watcher.
func NewWatcher(source Source, interval time.Duration) *Watcher {
	if interval == 0 {
		interval = time.Second
	}
	return &Watcher{
		source:   source,
		interval: interval,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
	}
}

// Events returns the channel of station events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start polls until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.events)

	var prev *core.StatusSnapshot
	if snap, err := w.source.Poll(ctx); err == nil {
		prev = snap
		w.emit(diffSnapshots(nil, snap))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
			curr, err := w.source.Poll(ctx)
			if err != nil || curr == nil || curr == prev {
				continue
			}
			w.emit(diffSnapshots(prev, curr))
			prev = curr
		}
	}
}

func (w *Watcher) emit(events []Event) {
	for _, e := range events {
		select {
		case w.events <- e:
		default:
			// Drop event if channel is full
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
}

// diffSnapshots compares two snapshots and returns detected events.
func diffSnapshots(prev, curr *core.StatusSnapshot) []Event {
	if curr == nil {
		return nil
	}

	now := curr.CapturedAt
	if now.IsZero() {
		now = time.Now()
	}
	var events []Event

	// First poll - no previous snapshot
	if prev == nil {
		if curr.HasTrack() {
			events = append(events, Event{Type: EventTrackChange, Timestamp: now, Current: curr})
		}
		return events
	}

	if trackChanged(prev, curr) {
		if prev.HasTrack() && wasCompleted(prev, curr.CapturedAt) {
			events = append(events, Event{Type: EventTrackComplete, Timestamp: now, Previous: prev, Current: curr})
		}
		if curr.HasTrack() {
			events = append(events, Event{Type: EventTrackChange, Timestamp: now, Previous: prev, Current: curr})
		} else {
			events = append(events, Event{Type: EventStationIdle, Timestamp: now, Previous: prev, Current: curr})
		}
	}

	if !sameHash(prev.Next, curr.Next) {
		events = append(events, Event{Type: EventUpNextChange, Timestamp: now, Previous: prev, Current: curr})
	}

	if !sameHash(prev.Queue, curr.Queue) {
		events = append(events, Event{Type: EventQueueChange, Timestamp: now, Previous: prev, Current: curr})
	}

	return events
}

// trackChanged returns true if the on-air track changed.
func trackChanged(prev, curr *core.StatusSnapshot) bool {
	if !prev.HasTrack() && !curr.HasTrack() {
		return false
	}
	if !prev.HasTrack() || !curr.HasTrack() {
		return true
	}
	if prev.Current.Filepath != "" || curr.Current.Filepath != "" {
		return prev.Current.Filepath != curr.Current.Filepath
	}
	return prev.Current.Title != curr.Current.Title
}

// wasCompleted returns true if the previous track likely played out by at.
func wasCompleted(prev *core.StatusSnapshot, at time.Time) bool {
	d := prev.Duration()
	if d == 0 {
		return false
	}
	played := prev.ServerElapsed + at.Sub(prev.CapturedAt)
	// Consider completed if progress is >= 95% of duration
	return float64(played) >= float64(d)*0.95
}

// sameHash compares values structurally. Unhashable values compare unequal.
func sameHash(a, b any) bool {
	ha, err := hashstructure.Hash(a, hashstructure.FormatV2, nil)
	if err != nil {
		return false
	}
	hb, err := hashstructure.Hash(b, hashstructure.FormatV2, nil)
	if err != nil {
		return false
	}
	return ha == hb
}
