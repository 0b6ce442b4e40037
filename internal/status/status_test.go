package status

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessro/weradio/internal/core"
	"github.com/tessro/weradio/internal/weradio/client"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAPI struct {
	mu     sync.Mutex
	status *client.Status
	err    error
	calls  atomic.Int32
}

func (f *fakeAPI) GetStatus(ctx context.Context) (*client.Status, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	st := *f.status
	return &st, nil
}

func (f *fakeAPI) set(st *client.Status, err error) {
	f.mu.Lock()
	f.status, f.err = st, err
	f.mu.Unlock()
}

func onAir(title string, duration, elapsed float64) *client.Status {
	return &client.Status{
		Playing:     true,
		Metadata:    &client.TrackMetadata{Title: title, Artist: "Artist", Duration: duration},
		CurrentTime: elapsed,
	}
}

func TestPositionInterpolates(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	api := &fakeAPI{status: onAir("A", 200, 50)}
	p := NewPoller(api, PollerOptions{Now: clock.Now})

	if _, err := p.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	clock.Advance(10 * time.Second)

	pos, ok := p.Reconciler().Position()
	if !ok {
		t.Fatal("Position() ok = false, want true")
	}
	if pos != 60*time.Second {
		t.Errorf("Position() = %v, want 60s", pos)
	}
}

func TestPositionNeverOvershoots(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	rec := NewReconciler(clock.Now)
	rec.Update(&core.StatusSnapshot{
		Current:       &core.Track{Title: "A", Duration: 200 * time.Second},
		ServerElapsed: 195 * time.Second,
		CapturedAt:    clock.Now(),
	})

	var last time.Duration
	for i := 0; i < 30; i++ {
		pos, _ := rec.Position()
		if pos < last {
			t.Fatalf("step %d: Position() = %v, went backwards from %v", i, pos, last)
		}
		if pos > 200*time.Second {
			t.Fatalf("step %d: Position() = %v, exceeds duration", i, pos)
		}
		last = pos
		clock.Advance(time.Second)
	}
	if last != 200*time.Second {
		t.Errorf("final Position() = %v, want 200s", last)
	}
}

func TestPositionSuppressedWithoutDuration(t *testing.T) {
	rec := NewReconciler(nil)
	if _, ok := rec.Position(); ok {
		t.Error("Position() ok = true before any snapshot")
	}

	rec.Update(&core.StatusSnapshot{
		Current:       &core.Track{Title: "Stream"},
		ServerElapsed: 20 * time.Second,
		CapturedAt:    time.Now(),
	})
	if _, ok := rec.Position(); ok {
		t.Error("Position() ok = true for zero duration")
	}
}

func TestDurationBaselineFollowsTitle(t *testing.T) {
	now := time.Unix(1000, 0)
	rec := NewReconciler(func() time.Time { return now })

	rec.Update(&core.StatusSnapshot{Current: &core.Track{Title: "A", Duration: 200 * time.Second}, CapturedAt: now})
	rec.Update(&core.StatusSnapshot{Current: &core.Track{Title: "A", Duration: 180 * time.Second}, ServerElapsed: 10 * time.Second, CapturedAt: now})

	if got := rec.Duration(); got != 200*time.Second {
		t.Errorf("Duration() after same title = %v, want 200s", got)
	}
	if pos, _ := rec.Position(); pos != 10*time.Second {
		t.Errorf("Position() = %v, want 10s", pos)
	}

	rec.Update(&core.StatusSnapshot{Current: &core.Track{Title: "B", Duration: 90 * time.Second}, CapturedAt: now})
	if got := rec.Duration(); got != 90*time.Second {
		t.Errorf("Duration() after title change = %v, want 90s", got)
	}
}

func TestPollFailureKeepsSnapshot(t *testing.T) {
	api := &fakeAPI{status: onAir("A", 200, 50)}
	p := NewPoller(api, PollerOptions{})
	ctx := context.Background()

	first, err := p.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	updated := p.UpdatedAt()

	boom := errors.New("connection refused")
	api.set(nil, boom)

	got, err := p.Poll(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("Poll() error = %v, want %v", err, boom)
	}
	if got != first || p.Snapshot() != first {
		t.Error("snapshot replaced after failed poll")
	}
	if !p.UpdatedAt().Equal(updated) {
		t.Error("UpdatedAt() moved after failed poll")
	}
	if !errors.Is(p.LastError(), boom) {
		t.Errorf("LastError() = %v, want %v", p.LastError(), boom)
	}

	api.set(onAir("B", 100, 1), nil)
	if _, err := p.Poll(ctx); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if p.LastError() != nil {
		t.Errorf("LastError() = %v after recovery, want nil", p.LastError())
	}
}

func TestConvertStatus(t *testing.T) {
	at := time.Unix(500, 0)
	st := &client.Status{
		Playing:         true,
		Metadata:        &client.TrackMetadata{Title: "Song", Artist: "Band", Duration: 120, Filepath: "/m/song.mp3"},
		CurrentTime:     130,
		NextTrack:       &client.TrackMetadata{Title: "Next", Artist: "Other", Filepath: "/m/next.mp3"},
		AvailableTracks: 12,
		Queue: []client.QueueEntry{
			{Display: "Other - Next"},
			{Display: "Untitled"},
		},
	}

	snap := convertStatus(st, at)

	if snap.Current.Title != "Song" || snap.Current.Duration != 120*time.Second {
		t.Errorf("Current = %+v", snap.Current)
	}
	if snap.ServerElapsed != 120*time.Second {
		t.Errorf("ServerElapsed = %v, want clamped 120s", snap.ServerElapsed)
	}
	if !snap.CapturedAt.Equal(at) {
		t.Errorf("CapturedAt = %v, want %v", snap.CapturedAt, at)
	}
	if snap.Next == nil || snap.Next.Filepath != "/m/next.mp3" {
		t.Errorf("Next = %+v", snap.Next)
	}

	tests := []struct {
		artist, title string
	}{
		{"Other", "Next"},
		{"", "Untitled"},
	}
	if len(snap.Queue) != len(tests) {
		t.Fatalf("len(Queue) = %d, want %d", len(snap.Queue), len(tests))
	}
	for i, tt := range tests {
		if snap.Queue[i].Artist != tt.artist || snap.Queue[i].Title != tt.title {
			t.Errorf("Queue[%d] = %q/%q, want %q/%q", i, snap.Queue[i].Artist, snap.Queue[i].Title, tt.artist, tt.title)
		}
	}
}

func TestConvertStatusIdle(t *testing.T) {
	snap := convertStatus(&client.Status{Metadata: &client.TrackMetadata{}}, time.Now())
	if snap.HasTrack() {
		t.Errorf("HasTrack() = true for empty metadata")
	}
	if snap.Next != nil {
		t.Errorf("Next = %+v, want nil", snap.Next)
	}
}

func TestRunSuppressedByOverlay(t *testing.T) {
	api := &fakeAPI{status: onAir("A", 200, 0)}
	p := NewPoller(api, PollerOptions{Interval: 5 * time.Millisecond})
	p.SetOverlay(true)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	if got := api.calls.Load(); got != 0 {
		t.Errorf("polls with overlay open = %d, want 0", got)
	}

	p.SetOverlay(false)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel2()
	_ = p.Run(ctx2)

	if got := api.calls.Load(); got == 0 {
		t.Error("no polls after overlay closed")
	}
}

func TestStartLiveStopsWhenNotLive(t *testing.T) {
	api := &fakeAPI{status: onAir("A", 200, 0)}
	p := NewPoller(api, PollerOptions{LiveInterval: 2 * time.Millisecond})

	var live atomic.Bool
	live.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.StartLive(ctx, live.Load)
	p.StartLive(ctx, live.Load)

	deadline := time.Now().Add(time.Second)
	for api.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if api.calls.Load() < 3 {
		t.Fatalf("live polls = %d, want at least 3", api.calls.Load())
	}

	live.Store(false)
	deadline = time.Now().Add(time.Second)
	for p.LiveRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.LiveRunning() {
		t.Fatal("live loop still running after leaving live")
	}
}

func TestStartLiveDuringLoopExit(t *testing.T) {
	api := &fakeAPI{status: onAir("A", 200, 0)}
	p := NewPoller(api, PollerOptions{LiveInterval: 2 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first check sees the stream leave Live, and Live resumes before
	// the loop has cleared its flag, so the new StartLive is a no-op.
	var checks atomic.Int32
	var isLive func() bool
	isLive = func() bool {
		if checks.Add(1) == 1 {
			p.StartLive(ctx, isLive)
			return false
		}
		return true
	}
	p.StartLive(ctx, isLive)

	deadline := time.Now().Add(time.Second)
	for api.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := api.calls.Load(); got < 3 {
		t.Fatalf("live polls = %d, want at least 3", got)
	}
	if !p.LiveRunning() {
		t.Error("LiveRunning() = false while live")
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	api := &fakeAPI{status: onAir("A", 200, 0)}
	p := NewPoller(api, PollerOptions{})
	ch := p.Subscribe()

	_, _ = p.Poll(context.Background())

	select {
	case snap := <-ch:
		if snap.Title() != "A" {
			t.Errorf("Title() = %q, want %q", snap.Title(), "A")
		}
	default:
		t.Fatal("no snapshot delivered")
	}
}

func TestRendererTick(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	rec := NewReconciler(clock.Now)
	rec.Update(&core.StatusSnapshot{
		Current:       &core.Track{Title: "A", Artist: "B", Duration: 100 * time.Second},
		ServerElapsed: 25 * time.Second,
		CapturedAt:    clock.Now(),
	})

	live := false
	r := NewRenderer(rec, func() bool { return live }, 0, nil)

	if _, ok := r.Tick(); ok {
		t.Error("Tick() ok = true while not live")
	}

	live = true
	f, ok := r.Tick()
	if !ok {
		t.Fatal("Tick() ok = false while live")
	}
	if f.Title != "A" || f.Position != 25*time.Second {
		t.Errorf("Tick() = %+v", f)
	}
	if got := f.Progress(); got != 0.25 {
		t.Errorf("Progress() = %v, want 0.25", got)
	}
}

func TestRendererKeepsTicking(t *testing.T) {
	rec := NewReconciler(nil)
	rec.Update(&core.StatusSnapshot{
		Current:    &core.Track{Title: "A", Duration: time.Hour},
		CapturedAt: time.Now(),
	})

	var live atomic.Bool
	var frames atomic.Int32
	r := NewRenderer(rec, live.Load, time.Millisecond, func(Frame) { frames.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if frames.Load() != 0 {
		t.Errorf("frames drawn while stopped = %d, want 0", frames.Load())
	}

	live.Store(true)
	deadline := time.Now().Add(time.Second)
	for frames.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if frames.Load() == 0 {
		t.Error("no frames after resuming live")
	}
}
