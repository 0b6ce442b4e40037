package hls

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/config"
	"github.com/tessro/weradio/internal/core"
	"github.com/tessro/weradio/internal/sink"
	"github.com/tessro/weradio/internal/sink/mocks"
)

// livePlaylistAt renders a four-segment window starting at seq.
func livePlaylistAt(seq int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:2\n#EXT-X-MEDIA-SEQUENCE:%d\n", seq)
	for i := seq; i < seq+4; i++ {
		fmt.Fprintf(&b, "#EXTINF:2.000000,\n/hls/segment_%03d.ts\n", i)
	}
	return b.String()
}

var livePlaylist = livePlaylistAt(40)

func tsSegment() []byte {
	b := make([]byte, 188*2)
	b[0], b[188] = 0x47, 0x47
	return b
}

// station is a fake backend whose failure modes are switched per test.
type station struct {
	manifestFailures atomic.Int32 // remaining manifest requests to fail
	manifestCalls    atomic.Int32
	served           atomic.Int32 // successful manifest responses; advances the window
	segmentCalls     atomic.Int32
	failSegments     atomic.Bool
	garbageSegments  atomic.Bool
}

func (st *station) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/playlist.m3u8":
		st.manifestCalls.Add(1)
		if st.manifestFailures.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": "Stream not ready yet"}`))
			return
		}
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte(livePlaylistAt(40 + int(st.served.Add(1)) - 1)))
	case strings.HasPrefix(r.URL.Path, "/hls/"):
		st.segmentCalls.Add(1)
		if st.failSegments.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if st.garbageSegments.Load() {
			_, _ = w.Write([]byte("<html>not audio</html>"))
			return
		}
		_, _ = w.Write(tsSegment())
	default:
		http.NotFound(w, r)
	}
}

func testStreamConfig() config.StreamConfig {
	cfg := config.Default().Stream
	fast := config.RetryPolicy{EndpointTimeoutMs: 1000, MaxRetries: 15, RetryDelayMs: 1}
	cfg.Manifest, cfg.Level, cfg.Segment = fast, fast, fast
	cfg.Segment.MaxRetries = 1
	return cfg
}

func newTestController(t *testing.T, st *station, cfg config.StreamConfig) *Controller {
	t.Helper()
	srv := httptest.NewServer(st)
	t.Cleanup(srv.Close)
	c := NewController(srv.URL+"/playlist.m3u8", cfg, srv.Client(), zap.NewNop())
	t.Cleanup(c.Destroy)
	return c
}

type observation struct {
	event     Event
	lifecycle Lifecycle
	reported  bool
}

// drive feeds events to Handle until done returns true or the deadline passes.
func drive(t *testing.T, c *Controller, done func(observation) bool) []observation {
	t.Helper()
	var seen []observation
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			lc, ok := c.Handle(ev)
			o := observation{event: ev, lifecycle: lc, reported: ok}
			seen = append(seen, o)
			if done(o) {
				return seen
			}
		case <-deadline:
			t.Fatalf("timed out after %d events", len(seen))
			return nil
		}
	}
}

func isLifecycle(typ LifecycleType) func(observation) bool {
	return func(o observation) bool { return o.reported && o.lifecycle.Type == typ }
}

func TestManifestFailuresWithinBudget(t *testing.T) {
	st := &station{}
	st.manifestFailures.Store(3)
	c := newTestController(t, st, testStreamConfig())
	out := &sink.Discard{}

	if err := c.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := c.Attach(out); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	seen := drive(t, c, func(o observation) bool { return o.event.Type == EventDelivered })

	retries := 0
	for _, o := range seen {
		if o.reported && o.lifecycle.Type == SessionFailed {
			t.Fatalf("session failed after %d manifest failures", st.manifestCalls.Load()-1)
		}
		if o.event.Type == EventError && o.event.Resource == ResourceManifest && !o.event.Fatal {
			retries++
		}
	}
	if retries != 3 {
		t.Errorf("manifest retry events = %d, want 3", retries)
	}
	if c.Destroyed() != 0 || !c.HasSession() {
		t.Errorf("Destroyed() = %d, HasSession() = %v", c.Destroyed(), c.HasSession())
	}
	if n, _ := out.Stats(); n == 0 {
		t.Error("no segments delivered")
	}
}

func TestManifestExhaustionDestroysSession(t *testing.T) {
	st := &station{}
	st.manifestFailures.Store(1 << 20)
	c := newTestController(t, st, testStreamConfig())

	if err := c.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = c.Attach(&sink.Discard{})

	seen := drive(t, c, isLifecycle(SessionFailed))
	last := seen[len(seen)-1].lifecycle

	if !last.Unrecoverable || last.Kind != KindOther {
		t.Errorf("lifecycle = %+v, want unrecoverable other", last)
	}
	if got := st.manifestCalls.Load(); got != 16 {
		t.Errorf("manifest requests = %d, want 16", got)
	}
	if c.HasSession() || c.Created()-c.Destroyed() != 0 {
		t.Errorf("HasSession() = %v, created %d destroyed %d", c.HasSession(), c.Created(), c.Destroyed())
	}
}

func TestSegmentExhaustionReloads(t *testing.T) {
	st := &station{}
	st.failSegments.Store(true)
	cfg := testStreamConfig()
	cfg.MaxRecoveries = 2
	c := newTestController(t, st, cfg)

	_ = c.Acquire(context.Background())
	_ = c.Attach(&sink.Discard{})

	seen := drive(t, c, isLifecycle(SessionFailed))

	reloads := 0
	for _, o := range seen {
		if o.reported && o.lifecycle.Type == SessionReloading {
			if o.lifecycle.Kind != KindNetwork {
				t.Errorf("reload kind = %v, want network", o.lifecycle.Kind)
			}
			reloads++
		}
	}
	if reloads != cfg.MaxRecoveries {
		t.Errorf("reloads = %d, want %d before giving up", reloads, cfg.MaxRecoveries)
	}
	if c.Destroyed() != 1 {
		t.Errorf("Destroyed() = %d, want 1", c.Destroyed())
	}
}

func TestMediaErrorRecoversInPlace(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := &station{}
	st.garbageSegments.Store(true)
	c := newTestController(t, st, testStreamConfig())

	out := struct {
		*mocks.MockSink
		*mocks.MockResetter
	}{mocks.NewMockSink(ctrl), mocks.NewMockResetter(ctrl)}
	out.MockSink.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	out.MockResetter.EXPECT().Reset(gomock.Any()).Return(nil).MinTimes(1)

	_ = c.Acquire(context.Background())
	_ = c.Attach(out)
	first := c.session.ID()

	drive(t, c, func(o observation) bool {
		if o.reported && o.lifecycle.Type == SessionReloading {
			if o.lifecycle.Kind != KindMedia {
				t.Errorf("kind = %v, want media", o.lifecycle.Kind)
			}
			st.garbageSegments.Store(false)
			return false
		}
		return o.reported && o.lifecycle.Type == SessionReady
	})

	if c.session == nil || c.session.ID() != first {
		t.Error("media recovery replaced the session handle")
	}
	if c.Destroyed() != 0 {
		t.Errorf("Destroyed() = %d, want 0", c.Destroyed())
	}
}

func TestNativeSinkBypassesSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := &station{}
	c := newTestController(t, st, testStreamConfig())

	out := struct {
		*mocks.MockSink
		*mocks.MockURLPlayer
	}{mocks.NewMockSink(ctrl), mocks.NewMockURLPlayer(ctrl)}
	out.MockURLPlayer.EXPECT().SetURL(c.ManifestURL())

	_ = c.Acquire(context.Background())
	if err := c.Attach(out); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if !c.HasSession() {
		t.Error("HasSession() = false after native attach")
	}
}

// exitingPlayer is a native player whose exits the test controls.
type exitingPlayer struct {
	*mocks.MockSink
	*mocks.MockURLPlayer
	exits chan error
}

func (p *exitingPlayer) Exited() <-chan error { return p.exits }

func TestNativePlayerExitFailsSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := &station{}
	c := newTestController(t, st, testStreamConfig())

	out := &exitingPlayer{mocks.NewMockSink(ctrl), mocks.NewMockURLPlayer(ctrl), make(chan error, 1)}
	out.MockURLPlayer.EXPECT().SetURL(c.ManifestURL()).Times(2)

	_ = c.Acquire(context.Background())
	_ = c.Attach(out)
	_ = c.Attach(out)

	out.exits <- fmt.Errorf("%w: exit status 1", sink.ErrPlayerExited)
	seen := drive(t, c, func(o observation) bool {
		return o.reported && o.lifecycle.Type == SessionFailed
	})

	last := seen[len(seen)-1]
	if !last.lifecycle.Unrecoverable {
		t.Error("player exit was not reported as unrecoverable")
	}
	if !errors.Is(last.event.Err, sink.ErrPlayerExited) {
		t.Errorf("event error = %v, want ErrPlayerExited", last.event.Err)
	}
	if c.HasSession() {
		t.Error("HasSession() = true after the player exited")
	}
}

func TestHandleIgnoresStaleEvents(t *testing.T) {
	c := NewController("http://127.0.0.1:1/playlist.m3u8", testStreamConfig(), nil, zap.NewNop())
	if _, ok := c.Handle(Event{SessionID: "gone", Type: EventError, Kind: KindOther, Fatal: true}); ok {
		t.Error("Handle() reported an event with no session")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = c.Acquire(ctx)
	defer c.Destroy()

	if _, ok := c.Handle(Event{SessionID: "gone", Type: EventError, Kind: KindOther, Fatal: true}); ok {
		t.Error("Handle() reported an event from another session")
	}
	if c.Destroyed() != 0 {
		t.Error("stale event destroyed the current session")
	}
}

func TestBufferStallIsIgnored(t *testing.T) {
	c := NewController("http://127.0.0.1:1/playlist.m3u8", testStreamConfig(), nil, zap.NewNop())
	_ = c.Acquire(context.Background())
	defer c.Destroy()

	_, ok := c.Handle(Event{SessionID: c.session.ID(), Type: EventError, Kind: KindBufferStall})
	if ok || !c.HasSession() {
		t.Errorf("stall reported = %v, HasSession() = %v", ok, c.HasSession())
	}
}

func TestRebuildRespectsIntent(t *testing.T) {
	c := NewController("http://127.0.0.1:1/playlist.m3u8", testStreamConfig(), nil, zap.NewNop())
	defer c.Destroy()
	ctx := context.Background()

	tests := []struct {
		intent core.IntentState
		want   bool
	}{
		{core.Stopped, false},
		{core.Error, false},
		{core.Starting, true},
		{core.Live, true},
	}
	for _, tt := range tests {
		t.Run(tt.intent.String(), func(t *testing.T) {
			before := c.Created()
			got, err := c.Rebuild(ctx, tt.intent)
			if err != nil {
				t.Fatalf("Rebuild() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Rebuild(%v) = %v, want %v", tt.intent, got, tt.want)
			}
			if (c.Created() > before) != tt.want {
				t.Errorf("Created() went %d -> %d", before, c.Created())
			}
			if live := c.Created() - c.Destroyed(); live < 0 || live > 1 {
				t.Errorf("live sessions = %d", live)
			}
		})
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	c := NewController("http://127.0.0.1:1/playlist.m3u8", testStreamConfig(), nil, zap.NewNop())
	c.Destroy()
	if c.Destroyed() != 0 {
		t.Fatalf("Destroy() on empty controller counted %d", c.Destroyed())
	}
	_ = c.Acquire(context.Background())
	c.Destroy()
	c.Destroy()
	if c.Destroyed() != 1 {
		t.Errorf("Destroyed() = %d, want 1", c.Destroyed())
	}
	if err := c.Attach(&sink.Discard{}); err == nil {
		t.Error("Attach() after Destroy() error = nil")
	}
}

func TestParsePlaylist(t *testing.T) {
	base, _ := url.Parse("http://radio.local:5000/playlist.m3u8")
	pl, err := parsePlaylist([]byte(livePlaylist), base)
	if err != nil {
		t.Fatalf("parsePlaylist() error = %v", err)
	}
	if len(pl.Segments) != 4 {
		t.Fatalf("len(Segments) = %d, want 4", len(pl.Segments))
	}
	if pl.Segments[0].Sequence != 40 || pl.Segments[3].Sequence != 43 {
		t.Errorf("sequences = %d..%d", pl.Segments[0].Sequence, pl.Segments[3].Sequence)
	}
	if pl.Segments[1].URI != "http://radio.local:5000/hls/segment_041.ts" {
		t.Errorf("URI = %q", pl.Segments[1].URI)
	}
	if pl.TargetDuration != 2*time.Second {
		t.Errorf("TargetDuration = %v", pl.TargetDuration)
	}

	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=128000\nlive/index.m3u8\n"
	pl, err = parsePlaylist([]byte(master), base)
	if err != nil {
		t.Fatalf("parsePlaylist(master) error = %v", err)
	}
	if pl.Variant != "http://radio.local:5000/live/index.m3u8" {
		t.Errorf("Variant = %q", pl.Variant)
	}

	if _, err := parsePlaylist([]byte(`{"error": "Stream not ready yet"}`), base); err == nil {
		t.Error("parsePlaylist(json) error = nil")
	}
}

func TestPending(t *testing.T) {
	base, _ := url.Parse("http://x/playlist.m3u8")
	pl, _ := parsePlaylist([]byte(livePlaylist), base)

	tests := []struct {
		name      string
		lastSeq   uint64
		haveSeq   bool
		wantFirst uint64
		wantLen   int
	}{
		{"fresh start at live edge", 0, false, 41, 3},
		{"continue", 41, true, 42, 2},
		{"caught up", 43, true, 0, 0},
		{"fell behind", 10, true, 41, 3},
		{"sequence restarted", 900, true, 41, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{cfg: testStreamConfig()}
			s.lastSeq, s.haveSeq = tt.lastSeq, tt.haveSeq
			got := s.pending(pl)
			if len(got) != tt.wantLen {
				t.Fatalf("len(pending) = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Sequence != tt.wantFirst {
				t.Errorf("first = %d, want %d", got[0].Sequence, tt.wantFirst)
			}
		})
	}
}

func TestValidSegment(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, false},
		{"ts", tsSegment(), true},
		{"ts bad second packet", append([]byte{0x47}, make([]byte, 200)...), false},
		{"id3", []byte("ID3\x04\x00"), true},
		{"adts", []byte{0xFF, 0xF1, 0x50}, true},
		{"html", []byte("<html>"), false},
	}
	for _, tt := range tests {
		if got := validSegment(tt.data); got != tt.want {
			t.Errorf("validSegment(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFetchRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var retries int
	f := &fetcher{client: srv.Client(), onRetry: func(Resource, int, error) { retries++ }}
	policy := config.RetryPolicy{EndpointTimeoutMs: 500, MaxRetries: 4, RetryDelayMs: 1}

	_, err := f.fetch(context.Background(), ResourceSegment, policy, srv.URL+"/hls/a.ts", nil)
	if !IsExhausted(err) {
		t.Fatalf("fetch() error = %v, want exhausted", err)
	}
	if calls.Load() != 5 || retries != 4 {
		t.Errorf("calls = %d, retries = %d, want 5 and 4", calls.Load(), retries)
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("after %d attempts", 5)) {
		t.Errorf("error = %q", err)
	}
}
