package hls

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/config"
	"github.com/tessro/weradio/internal/sink"
	"github.com/tessro/weradio/internal/telemetry"
)

// Session is one live-media attachment: a load pipeline that follows the
// live playlist, a segment buffer, and a pump into the attached sink.
type Session struct {
	id          string
	manifestURL string
	cfg         config.StreamConfig
	fetcher     *fetcher
	logger      *zap.Logger
	events      chan<- Event

	ctx    context.Context
	cancel context.CancelFunc
	buffer chan []byte

	mu         sync.Mutex
	loadCancel context.CancelFunc
	loadDone   chan struct{}
	sink       sink.Sink
	bypassed   bool
	watching   bool
	destroyed  bool
	lastSeq    uint64
	haveSeq    bool

	delivered    atomic.Uint64
	notifyOnNext atomic.Bool
}

func newSession(parent context.Context, id, manifestURL string, cfg config.StreamConfig, hc *http.Client, events chan<- Event, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:          id,
		manifestURL: manifestURL,
		cfg:         cfg,
		logger:      logger.With(zap.String("session", id)),
		events:      events,
		ctx:         ctx,
		cancel:      cancel,
		buffer:      make(chan []byte, max(cfg.BufferSegments, 1)),
	}
	s.fetcher = &fetcher{
		client: hc,
		onRetry: func(res Resource, attempt int, err error) {
			s.logger.Debug("fetch failed, retrying",
				zap.Stringer("resource", res),
				zap.Int("attempt", attempt),
				zap.Error(err))
			s.emit(ctx, Event{Type: EventError, Kind: KindNetwork, Resource: res, Err: err})
		},
	}
	return s
}

// ID returns the session identifier carried by its events.
func (s *Session) ID() string {
	return s.id
}

// Delivered returns the number of segments written to the sink.
func (s *Session) Delivered() uint64 {
	return s.delivered.Load()
}

// StartLoad starts the load pipeline, restarting it with fresh retry
// budgets if it is already running. The session handle is unchanged.
func (s *Session) StartLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed || s.bypassed {
		return
	}
	s.stopLoadLocked()

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.loadCancel = cancel
	s.loadDone = done
	s.notifyOnNext.Store(true)

	go func() {
		defer close(done)
		s.load(ctx)
	}()
}

func (s *Session) stopLoadLocked() {
	if s.loadCancel == nil {
		return
	}
	s.loadCancel()
	// The loader only blocks on ctx-aware operations, so this is prompt.
	s.mu.Unlock()
	<-s.loadDone
	s.mu.Lock()
	s.loadCancel = nil
	s.loadDone = nil
}

// Attach binds the session output to sk and starts the pump.
func (s *Session) Attach(sk sink.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed || s.sink == sk {
		return
	}
	first := s.sink == nil
	s.sink = sk
	if first {
		go s.pump()
	}
}

// Bypass stops the load pipeline; the sink fetches the stream itself.
func (s *Session) Bypass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bypassed = true
	s.stopLoadLocked()
}

// watchExit turns a bypassing player that quits on its own into an
// unrecoverable error. There is no pipeline left to reload.
func (s *Session) watchExit(ex sink.ExitNotifier) {
	s.mu.Lock()
	if s.watching || s.destroyed {
		s.mu.Unlock()
		return
	}
	s.watching = true
	s.mu.Unlock()

	go func() {
		select {
		case err := <-ex.Exited():
			s.fatal(s.ctx, KindOther, ResourceSegment, err)
		case <-s.ctx.Done():
		}
	}()
}

// RecoverMedia flushes buffered segments and restarts the sink decoder.
func (s *Session) RecoverMedia() {
	s.mu.Lock()
	sk := s.sink
	s.mu.Unlock()

	for drained := false; !drained; {
		select {
		case <-s.buffer:
		default:
			drained = true
		}
	}
	s.notifyOnNext.Store(true)

	if r, ok := sk.(sink.Resetter); ok {
		if err := r.Reset(s.ctx); err != nil {
			s.logger.Warn("decoder reset failed", zap.Error(err))
		}
	}
}

// Destroy tears the session down. It is idempotent.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.cancel()
	s.stopLoadLocked()
}

func (s *Session) emit(ctx context.Context, ev Event) {
	ev.SessionID = s.id
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) fatal(ctx context.Context, kind Kind, res Resource, err error) {
	s.logger.Warn("fatal session error", zap.Stringer("kind", kind), zap.Stringer("resource", res), zap.Error(err))
	s.emit(ctx, Event{Type: EventError, Kind: kind, Resource: res, Fatal: true, Err: err})
}

// load follows the live playlist until ctx ends or a fatal error occurs.
func (s *Session) load(ctx context.Context) {
	base, err := url.Parse(s.manifestURL)
	if err != nil {
		s.fatal(ctx, KindOther, ResourceManifest, err)
		return
	}

	pl, levelURL, err := s.loadManifest(ctx, base)
	if err != nil {
		if ctx.Err() == nil {
			s.fatal(ctx, KindNetwork, ResourceManifest, err)
		}
		return
	}
	s.logger.Debug("manifest loaded", zap.Int("segments", len(pl.Segments)), zap.Duration("target", pl.TargetDuration))
	s.emit(ctx, Event{Type: EventLoaded})

	levelBase, _ := url.Parse(levelURL)
	for {
		if err := s.enqueue(ctx, pl); err != nil {
			return
		}
		if pl.Ended {
			s.logger.Info("playlist ended")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pl.TargetDuration):
		}

		body, err := s.fetcher.fetch(ctx, ResourceLevel, s.cfg.Level, levelURL, acceptPlaylist(levelBase))
		if err != nil {
			if ctx.Err() == nil {
				s.fatal(ctx, KindNetwork, ResourceLevel, err)
			}
			return
		}
		pl, _ = parsePlaylist(body, levelBase)
	}
}

// loadManifest fetches the manifest, following a master playlist to its first variant.
func (s *Session) loadManifest(ctx context.Context, base *url.URL) (*Playlist, string, error) {
	body, err := s.fetcher.fetch(ctx, ResourceManifest, s.cfg.Manifest, s.manifestURL, acceptPlaylist(base))
	if err != nil {
		return nil, "", err
	}
	pl, _ := parsePlaylist(body, base)
	if pl.Variant == "" {
		return pl, s.manifestURL, nil
	}

	variant := pl.Variant
	variantBase, err := url.Parse(variant)
	if err != nil {
		return nil, "", err
	}
	body, err = s.fetcher.fetch(ctx, ResourceLevel, s.cfg.Level, variant, acceptPlaylist(variantBase))
	if err != nil {
		return nil, "", err
	}
	pl, _ = parsePlaylist(body, variantBase)
	return pl, variant, nil
}

func acceptPlaylist(base *url.URL) func([]byte) error {
	return func(body []byte) error {
		_, err := parsePlaylist(body, base)
		return err
	}
}

// enqueue downloads segments newer than the last one seen.
func (s *Session) enqueue(ctx context.Context, pl *Playlist) error {
	for _, seg := range s.pending(pl) {
		data, err := s.fetcher.fetch(ctx, ResourceSegment, s.cfg.Segment, seg.URI, nil)
		if err != nil {
			if ctx.Err() == nil {
				s.fatal(ctx, KindNetwork, ResourceSegment, err)
			}
			return err
		}

		s.mu.Lock()
		s.lastSeq, s.haveSeq = seg.Sequence, true
		s.mu.Unlock()

		if !validSegment(data) {
			s.fatal(ctx, KindMedia, ResourceSegment, fmt.Errorf("segment %d: unrecognized container", seg.Sequence))
			continue
		}

		select {
		case s.buffer <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// pending picks the segments to download from pl. A fresh pipeline starts
// LiveSyncSegments from the live edge, as does one that fell off the window
// or saw the sequence restart.
func (s *Session) pending(pl *Playlist) []Segment {
	last, ok := pl.LastSequence()
	if !ok {
		return nil
	}

	s.mu.Lock()
	prev, have := s.lastSeq, s.haveSeq
	s.mu.Unlock()

	first := pl.Segments[0].Sequence
	if !have || prev+1 < first || prev > last {
		start := max(len(pl.Segments)-max(s.cfg.LiveSyncSegments, 1), 0)
		return pl.Segments[start:]
	}
	return pl.Segments[prev+1-first:]
}

// pump writes buffered segments into the sink and reports stalls.
func (s *Session) pump() {
	stallTimeout := s.cfg.StallTimeout()
	if stallTimeout <= 0 {
		stallTimeout = 3 * defaultTargetDuration
	}
	stall := time.NewTimer(stallTimeout)
	defer stall.Stop()
	stalled := false

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-stall.C:
			if !stalled {
				stalled = true
				s.emit(s.ctx, Event{Type: EventError, Kind: KindBufferStall, Err: errors.New("buffer empty")})
			}
			stall.Reset(stallTimeout)

		case data := <-s.buffer:
			s.mu.Lock()
			sk := s.sink
			s.mu.Unlock()

			if err := sk.Write(s.ctx, data); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				kind := KindOther
				if errors.Is(err, sink.ErrDecode) {
					kind = KindMedia
				}
				s.fatal(s.ctx, kind, ResourceSegment, err)
				continue
			}

			s.delivered.Add(1)
			telemetry.SegmentsDeliveredTotal.Inc()
			stalled = false
			if !stall.Stop() {
				select {
				case <-stall.C:
				default:
				}
			}
			stall.Reset(stallTimeout)

			if s.notifyOnNext.CompareAndSwap(true, false) {
				s.emit(s.ctx, Event{Type: EventDelivered})
			}
		}
	}
}
