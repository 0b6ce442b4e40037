package playback

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/config"
	"github.com/tessro/weradio/internal/core"
	werrors "github.com/tessro/weradio/internal/errors"
	"github.com/tessro/weradio/internal/hls"
	"github.com/tessro/weradio/internal/sink"
	"github.com/tessro/weradio/internal/sink/mocks"
)

// fakeController records calls and turns every event it receives into the
// lifecycle stored under the event's SessionID.
type fakeController struct {
	mu         sync.Mutex
	session    bool
	acquires   int
	attaches   int
	rebuilds   []core.IntentState
	destroys   int
	events     chan hls.Event
	lifecycles map[string]hls.Lifecycle
}

func newFakeController() *fakeController {
	return &fakeController{
		events:     make(chan hls.Event, 8),
		lifecycles: make(map[string]hls.Lifecycle),
	}
}

func (f *fakeController) HasSession() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeController) Acquire(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	f.session = true
	return nil
}

func (f *fakeController) Attach(s sink.Sink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.session {
		return werrors.ErrSessionDestroyed
	}
	f.attaches++
	return nil
}

func (f *fakeController) Rebuild(ctx context.Context, intent core.IntentState) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilds = append(f.rebuilds, intent)
	if intent != core.Live && intent != core.Starting {
		return false, nil
	}
	f.session = true
	f.acquires++
	return true, nil
}

func (f *fakeController) Events() <-chan hls.Event { return f.events }

func (f *fakeController) Handle(ev hls.Event) (hls.Lifecycle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lc, ok := f.lifecycles[ev.SessionID]
	if ok && lc.Type == hls.SessionFailed {
		f.session = false
	}
	return lc, ok
}

func (f *fakeController) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys++
	f.session = false
}

func (f *fakeController) counts() (acquires, attaches, rebuilds, destroys int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires, f.attaches, len(f.rebuilds), f.destroys
}

func (f *fakeController) fail(id string) {
	f.mu.Lock()
	f.lifecycles[id] = hls.Lifecycle{Type: hls.SessionFailed, SessionID: id, Kind: hls.KindOther, Unrecoverable: true}
	f.mu.Unlock()
	f.events <- hls.Event{SessionID: id, Type: hls.EventError, Fatal: true}
}

type countingLive struct {
	starts atomic.Int32
}

func (c *countingLive) StartLive(ctx context.Context, isLive func() bool) {
	c.starts.Add(1)
}

func startMachine(t *testing.T, fc SessionController, sk sink.Sink, live LiveLoop) *Machine {
	t.Helper()
	m := New(fc, sk, Options{Cooldown: 20 * time.Millisecond, Volume: 80, Live: live, Logger: zap.NewNop()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m
}

func waitForState(t *testing.T, m *Machine, want core.IntentState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("State() = %s, want %s", m.State(), want)
}

func TestPlayFromStoppedGoesLive(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().Play(gomock.Any()).Return(nil).Times(1)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	fc := newFakeController()
	live := &countingLive{}
	m := startMachine(t, fc, sk, live)
	ctx := context.Background()

	if err := m.Play(ctx); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	waitForState(t, m, core.Live)

	if m.Status() != StatusOnAir {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusOnAir)
	}
	acquires, attaches, _, _ := fc.counts()
	if acquires != 1 || attaches != 1 {
		t.Errorf("acquires, attaches = %d, %d, want 1, 1", acquires, attaches)
	}
	if got := live.starts.Load(); got != 1 {
		t.Errorf("live loop starts = %d, want 1", got)
	}
}

func TestPlayWhileStartingIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	release := make(chan struct{})
	sk.EXPECT().Play(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		<-release
		return nil
	}).Times(1)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	fc := newFakeController()
	m := startMachine(t, fc, sk, nil)
	ctx := context.Background()

	_ = m.Play(ctx)
	waitForState(t, m, core.Starting)
	_ = m.Play(ctx)
	_ = m.Play(ctx)

	close(release)
	waitForState(t, m, core.Live)

	if acquires, _, _, _ := fc.counts(); acquires != 1 {
		t.Errorf("acquires = %d, want 1", acquires)
	}
}

func TestRejectedPlaybackStopsWithoutRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().Play(gomock.Any()).Return(werrors.ErrPlaybackRejected).Times(1)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	m := startMachine(t, newFakeController(), sk, nil)
	transitions := m.Subscribe()

	_ = m.Play(context.Background())

	var last Transition
	timeout := time.After(2 * time.Second)
	for last.Status != StatusClickToStart {
		select {
		case last = <-transitions:
		case <-timeout:
			t.Fatalf("no click-to-start transition, last = %+v", last)
		}
	}
	if last.To != core.Stopped {
		t.Errorf("To = %s, want stopped", last.To)
	}

	// Give a would-be retry time to show up; gomock fails on a second Play.
	time.Sleep(50 * time.Millisecond)
	if m.State() != core.Stopped {
		t.Errorf("State() = %s, want stopped", m.State())
	}
}

func TestStopKeepsSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().Play(gomock.Any()).Return(nil).Times(2)
	sk.EXPECT().Pause().Return(nil).Times(1)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	fc := newFakeController()
	m := startMachine(t, fc, sk, nil)
	ctx := context.Background()

	_ = m.Play(ctx)
	waitForState(t, m, core.Live)

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.State() != core.Stopped {
		t.Fatalf("State() = %s, want stopped", m.State())
	}
	if !fc.HasSession() {
		t.Error("session destroyed on stop, want retained")
	}

	_ = m.Play(ctx)
	waitForState(t, m, core.Live)
	if acquires, attaches, _, destroys := fc.counts(); acquires != 1 || attaches != 2 || destroys != 0 {
		t.Errorf("acquires, attaches, destroys = %d, %d, %d, want 1, 2, 0", acquires, attaches, destroys)
	}
}

func TestStopWhileStoppedIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().Pause().Times(0)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	m := startMachine(t, newFakeController(), sk, nil)
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.State() != core.Stopped {
		t.Errorf("State() = %s, want stopped", m.State())
	}
}

func TestStopCancelsPendingPlay(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	release := make(chan struct{})
	sk.EXPECT().Play(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		<-release
		return nil
	})
	// Once for the stop, once for the late success.
	sk.EXPECT().Pause().Return(nil).Times(2)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	m := startMachine(t, newFakeController(), sk, nil)
	ctx := context.Background()

	_ = m.Play(ctx)
	waitForState(t, m, core.Starting)
	_ = m.Stop(ctx)
	close(release)

	time.Sleep(50 * time.Millisecond)
	if m.State() != core.Stopped {
		t.Errorf("State() = %s, want stopped", m.State())
	}
}

func TestSessionFailureWhileLiveRebuilds(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().Play(gomock.Any()).Return(nil).Times(2)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	fc := newFakeController()
	m := startMachine(t, fc, sk, nil)
	transitions := m.Subscribe()

	_ = m.Play(context.Background())
	waitForState(t, m, core.Live)

	fc.fail("s1")

	var sawError bool
	timeout := time.After(2 * time.Second)
	for {
		select {
		case tr := <-transitions:
			if tr.To == core.Error {
				sawError = true
			}
			if sawError && tr.To == core.Live {
				_, _, rebuilds, _ := fc.counts()
				if rebuilds != 1 {
					t.Errorf("rebuilds = %d, want 1", rebuilds)
				}
				fc.mu.Lock()
				intent := fc.rebuilds[0]
				fc.mu.Unlock()
				if intent != core.Starting {
					t.Errorf("rebuild intent = %s, want starting", intent)
				}
				return
			}
		case <-timeout:
			t.Fatal("machine did not return to live after failure")
		}
	}
}

func TestSessionFailureWhileStoppedStaysStopped(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().Play(gomock.Any()).Return(nil).Times(1)
	sk.EXPECT().Pause().Return(nil).Times(1)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	fc := newFakeController()
	m := startMachine(t, fc, sk, nil)
	ctx := context.Background()

	_ = m.Play(ctx)
	waitForState(t, m, core.Live)
	_ = m.Stop(ctx)

	fc.fail("s1")
	waitForState(t, m, core.Error)
	waitForState(t, m, core.Stopped)

	acquires, _, _, _ := fc.counts()
	if acquires != 1 {
		t.Errorf("acquires = %d, want 1", acquires)
	}
	fc.mu.Lock()
	intents := append([]core.IntentState(nil), fc.rebuilds...)
	fc.mu.Unlock()
	if len(intents) != 1 || intents[0] != core.Stopped {
		t.Errorf("rebuild intents = %v, want [stopped]", intents)
	}
	if fc.HasSession() {
		t.Error("HasSession() = true after failure while stopped")
	}
}

func TestStopDuringCooldown(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().Play(gomock.Any()).Return(nil).Times(1)
	sk.EXPECT().Pause().Return(nil).Times(1)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	fc := newFakeController()
	m := startMachine(t, fc, sk, nil)
	ctx := context.Background()

	_ = m.Play(ctx)
	waitForState(t, m, core.Live)
	fc.fail("s1")
	waitForState(t, m, core.Error)
	_ = m.Stop(ctx)

	time.Sleep(60 * time.Millisecond)
	if m.State() != core.Stopped {
		t.Errorf("State() = %s, want stopped", m.State())
	}
	if _, _, rebuilds, _ := fc.counts(); rebuilds != 0 {
		t.Errorf("rebuilds = %d, want 0", rebuilds)
	}
}

func TestReloadingShowsReconnecting(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().Play(gomock.Any()).Return(nil)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	fc := newFakeController()
	m := startMachine(t, fc, sk, nil)
	_ = m.Play(context.Background())
	waitForState(t, m, core.Live)

	fc.mu.Lock()
	fc.lifecycles["reload"] = hls.Lifecycle{Type: hls.SessionReloading, Kind: hls.KindNetwork}
	fc.lifecycles["ready"] = hls.Lifecycle{Type: hls.SessionReady}
	fc.mu.Unlock()

	fc.events <- hls.Event{SessionID: "reload"}
	waitForStatus(t, m, StatusReconnecting)
	if m.State() != core.Live {
		t.Errorf("State() = %s, want live", m.State())
	}

	fc.events <- hls.Event{SessionID: "ready"}
	waitForStatus(t, m, StatusOnAir)
}

func waitForStatus(t *testing.T, m *Machine, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Status() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Status() = %q, want %q", m.Status(), want)
}

func TestToggle(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().Play(gomock.Any()).Return(nil)
	sk.EXPECT().Pause().Return(nil)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	m := startMachine(t, newFakeController(), sk, nil)
	ctx := context.Background()

	_ = m.Toggle(ctx)
	waitForState(t, m, core.Live)
	_ = m.Toggle(ctx)
	waitForState(t, m, core.Stopped)
}

func TestSetVolume(t *testing.T) {
	ctrl := gomock.NewController(t)
	sk := mocks.NewMockSink(ctrl)
	sk.EXPECT().SetVolume(35).Return(nil)
	sk.EXPECT().Close().Return(nil).AnyTimes()

	m := startMachine(t, newFakeController(), sk, nil)
	if err := m.SetVolume(context.Background(), 35); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if m.Volume() != 35 {
		t.Errorf("Volume() = %d, want 35", m.Volume())
	}
}

const stationPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:1
#EXT-X-MEDIA-SEQUENCE:1
#EXTINF:1.0,
seg1.ts
#EXTINF:1.0,
seg2.ts
`

func TestRandomIntentKeepsOneSession(t *testing.T) {
	segment := make([]byte, 188*2)
	segment[0], segment[188] = 0x47, 0x47
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".m3u8") {
			_, _ = w.Write([]byte(stationPlaylist))
			return
		}
		_, _ = w.Write(segment)
	}))
	defer srv.Close()

	cfg := config.Default().Stream
	hc := hls.NewController(srv.URL+"/playlist.m3u8", cfg, srv.Client(), zap.NewNop())
	m := startMachine(t, hc, &sink.Discard{}, nil)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		switch rng.Intn(3) {
		case 0:
			_ = m.Play(ctx)
		case 1:
			_ = m.Stop(ctx)
		case 2:
			_ = m.Toggle(ctx)
		}
		if live := hc.Created() - hc.Destroyed(); live < 0 || live > 1 {
			t.Fatalf("after op %d: created - destroyed = %d, want 0 or 1", i, live)
		}
	}
}
