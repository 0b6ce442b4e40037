package status

import (
	"sync"
	"time"

	"github.com/tessro/weradio/internal/core"
)

// Reconciler interpolates the on-air position between snapshots.
type Reconciler struct {
	mu       sync.RWMutex
	now      func() time.Time
	track    *core.Track
	elapsed  time.Duration
	captured time.Time
	duration time.Duration
}

// NewReconciler returns a reconciler reading time from now. A nil now
// means time.Now.
func NewReconciler(now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{now: now}
}

// Update rebases the clock on s. The duration baseline only moves when
// the title changes; the elapsed baseline moves on every snapshot.
func (r *Reconciler) Update(s *core.StatusSnapshot) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.track == nil || s.Current == nil || s.Current.Title != r.track.Title {
		r.duration = s.Duration()
	}
	r.track = s.Current
	r.elapsed = s.ServerElapsed
	r.captured = s.CapturedAt
}

// Position returns the interpolated position now. ok is false when the
// duration is unknown and no progress should be shown.
func (r *Reconciler) Position() (pos time.Duration, ok bool) {
	return r.PositionAt(r.now())
}

// PositionAt returns min(elapsed + (now - captured), duration).
func (r *Reconciler) PositionAt(now time.Time) (time.Duration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.duration <= 0 {
		return 0, false
	}
	since := now.Sub(r.captured)
	if since < 0 {
		since = 0
	}
	return min(r.elapsed+since, r.duration), true
}

// Duration returns the duration baseline.
func (r *Reconciler) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.duration
}

// Track returns the track the clock is following, or nil.
func (r *Reconciler) Track() *core.Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.track
}
