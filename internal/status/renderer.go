package status

import (
	"context"
	"time"
)

// DefaultRenderInterval is the render tick.
const DefaultRenderInterval = 250 * time.Millisecond

// Frame is one visible progress update.
type Frame struct {
	Title    string
	Artist   string
	Position time.Duration
	Duration time.Duration
}

// Progress returns the played fraction in [0, 1].
func (f Frame) Progress() float64 {
	if f.Duration <= 0 {
		return 0
	}
	return float64(f.Position) / float64(f.Duration)
}

// Renderer ticks forever and draws a frame whenever playback is live and
// the duration is known.
type Renderer struct {
	reconciler *Reconciler
	isLive     func() bool
	interval   time.Duration
	draw       func(Frame)
}

// NewRenderer creates a renderer. draw runs on the renderer goroutine.
func NewRenderer(rec *Reconciler, isLive func() bool, interval time.Duration, draw func(Frame)) *Renderer {
	if interval <= 0 {
		interval = DefaultRenderInterval
	}
	return &Renderer{reconciler: rec, isLive: isLive, interval: interval, draw: draw}
}

// Tick computes the current frame. ok is false for a no-op tick.
func (r *Renderer) Tick() (Frame, bool) {
	if r.isLive != nil && !r.isLive() {
		return Frame{}, false
	}
	pos, ok := r.reconciler.Position()
	if !ok {
		return Frame{}, false
	}
	f := Frame{Position: pos, Duration: r.reconciler.Duration()}
	if t := r.reconciler.Track(); t != nil {
		f.Title = t.Title
		f.Artist = t.Artist
	}
	return f, true
}

// Run ticks until ctx ends. The tick is rescheduled on every pass, live or not.
func (r *Renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f, ok := r.Tick(); ok && r.draw != nil {
				r.draw(f)
			}
		}
	}
}
