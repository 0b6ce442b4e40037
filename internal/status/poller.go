// Package status polls the station's authoritative playback snapshot and
// keeps a locally interpolated clock in step with it.
package status

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/core"
	"github.com/tessro/weradio/internal/telemetry"
	"github.com/tessro/weradio/internal/weradio/client"
)

const (
	DefaultInterval     = 5 * time.Second
	DefaultLiveInterval = 3 * time.Second
)

// StatusAPI fetches one status payload.
type StatusAPI interface {
	GetStatus(ctx context.Context) (*client.Status, error)
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Interval     time.Duration
	LiveInterval time.Duration
	Reconciler   *Reconciler
	Logger       *zap.Logger
	Now          func() time.Time
}

// Poller owns the current StatusSnapshot.
type Poller struct {
	api          StatusAPI
	reconciler   *Reconciler
	interval     time.Duration
	liveInterval time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu        sync.RWMutex
	snapshot  *core.StatusSnapshot
	lastErr   error
	updatedAt time.Time

	overlay     atomic.Bool
	liveRunning atomic.Bool

	subsMu sync.Mutex
	subs   []chan *core.StatusSnapshot
}

// NewPoller creates a poller. A nil Reconciler option gets a fresh one.
func NewPoller(api StatusAPI, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.LiveInterval <= 0 {
		opts.LiveInterval = DefaultLiveInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reconciler == nil {
		opts.Reconciler = NewReconciler(opts.Now)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Poller{
		api:          api,
		reconciler:   opts.Reconciler,
		interval:     opts.Interval,
		liveInterval: opts.LiveInterval,
		logger:       opts.Logger.Named("status"),
		now:          opts.Now,
	}
}

// Reconciler returns the clock fed by this poller.
func (p *Poller) Reconciler() *Reconciler {
	return p.reconciler
}

// Poll fetches one snapshot. On failure the previous snapshot is kept and
// the error is returned for the caller to log or ignore.
func (p *Poller) Poll(ctx context.Context) (*core.StatusSnapshot, error) {
	st, err := p.api.GetStatus(ctx)
	if err != nil {
		telemetry.StatusPollsTotal.WithLabelValues("error").Inc()
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		p.logger.Debug("status poll failed", zap.Error(err))
		return p.Snapshot(), err
	}
	telemetry.StatusPollsTotal.WithLabelValues("ok").Inc()

	now := p.now()
	snap := convertStatus(st, now)

	p.mu.Lock()
	p.snapshot = snap
	p.lastErr = nil
	p.updatedAt = now
	p.mu.Unlock()

	p.reconciler.Update(snap)
	p.publish(snap)
	return snap, nil
}

// Snapshot returns the latest successful snapshot, or nil before the first.
func (p *Poller) Snapshot() *core.StatusSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// LastError returns the error from the most recent poll, if it failed.
func (p *Poller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// UpdatedAt returns when the current snapshot was captured.
func (p *Poller) UpdatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updatedAt
}

// SetOverlay suppresses the slow loop while an overlay takes input.
func (p *Poller) SetOverlay(open bool) {
	p.overlay.Store(open)
}

// OverlayOpen reports whether the slow loop is suppressed.
func (p *Poller) OverlayOpen() bool {
	return p.overlay.Load()
}

// Subscribe returns a channel receiving every new snapshot. Slow readers
// miss updates.
func (p *Poller) Subscribe() <-chan *core.StatusSnapshot {
	ch := make(chan *core.StatusSnapshot, 4)
	p.subsMu.Lock()
	p.subs = append(p.subs, ch)
	p.subsMu.Unlock()
	return ch
}

func (p *Poller) publish(snap *core.StatusSnapshot) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Run polls immediately and then every interval until ctx ends. The next
// poll is scheduled only after the previous one finishes.
func (p *Poller) Run(ctx context.Context) error {
	if !p.OverlayOpen() {
		_, _ = p.Poll(ctx)
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if !p.OverlayOpen() {
				_, _ = p.Poll(ctx)
			}
			timer.Reset(p.interval)
		}
	}
}

// StartLive runs the fast loop in the background until isLive reports
// false or ctx ends. Only one fast loop runs at a time.
func (p *Poller) StartLive(ctx context.Context, isLive func() bool) {
	if !p.liveRunning.CompareAndSwap(false, true) {
		return
	}
	go func() {
		timer := time.NewTimer(p.liveInterval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				p.liveRunning.Store(false)
				return
			case <-timer.C:
				if !isLive() {
					p.liveRunning.Store(false)
					// A StartLive that ran before the store saw the flag
					// still set and returned. Its Live period is ours.
					if !isLive() || !p.liveRunning.CompareAndSwap(false, true) {
						p.logger.Debug("live poll loop stopped")
						return
					}
				}
				_, _ = p.Poll(ctx)
				timer.Reset(p.liveInterval)
			}
		}
	}()
}

// LiveRunning reports whether the fast loop is active.
func (p *Poller) LiveRunning() bool {
	return p.liveRunning.Load()
}

func convertStatus(st *client.Status, at time.Time) *core.StatusSnapshot {
	snap := &core.StatusSnapshot{
		CapturedAt: at,
		Playing:    st.Playing,
		Available:  st.AvailableTracks,
	}

	if m := st.Metadata; m != nil && (m.Title != "" || m.Filepath != "") {
		snap.Current = &core.Track{
			Title:    m.Title,
			Artist:   m.Artist,
			Duration: seconds(m.Duration),
			Filepath: m.Filepath,
		}
		snap.ServerElapsed = seconds(st.CurrentTime)
		if d := snap.Current.Duration; d > 0 && snap.ServerElapsed > d {
			snap.ServerElapsed = d
		}
	}

	if n := st.NextTrack; n != nil && (n.Title != "" || n.Filepath != "") {
		ref := trackRef(n)
		snap.Next = &ref
	}

	snap.Queue = make([]core.TrackRef, 0, len(st.Queue))
	for _, e := range st.Queue {
		if e.Track != nil {
			snap.Queue = append(snap.Queue, trackRef(e.Track))
			continue
		}
		snap.Queue = append(snap.Queue, parseDisplay(e.Display))
	}
	return snap
}

func trackRef(m *client.TrackMetadata) core.TrackRef {
	return core.TrackRef{
		Filepath: m.Filepath,
		Title:    m.Title,
		Artist:   m.Artist,
		Duration: seconds(m.Duration),
		InQueue:  true,
	}
}

// parseDisplay splits the station's "artist - title" queue strings.
func parseDisplay(s string) core.TrackRef {
	ref := core.TrackRef{InQueue: true}
	if artist, title, ok := strings.Cut(s, " - "); ok {
		ref.Artist = strings.TrimSpace(artist)
		ref.Title = strings.TrimSpace(title)
	} else {
		ref.Title = strings.TrimSpace(s)
	}
	return ref
}

func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
