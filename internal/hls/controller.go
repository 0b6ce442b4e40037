// Package hls owns the live media session: it follows the station's live
// playlist, feeds segments to an audio sink, and classifies failures into
// recovery policies.
package hls

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/config"
	"github.com/tessro/weradio/internal/core"
	werrors "github.com/tessro/weradio/internal/errors"
	"github.com/tessro/weradio/internal/sink"
	"github.com/tessro/weradio/internal/telemetry"
)

const eventBuffer = 64

// Controller owns at most one Session at a time.
type Controller struct {
	manifestURL string
	cfg         config.StreamConfig
	httpClient  *http.Client
	logger      *zap.Logger
	events      chan Event

	mu         sync.Mutex
	session    *Session
	sink       sink.Sink
	loaded     bool
	recovering bool
	recoveries int

	created   atomic.Int64
	destroyed atomic.Int64
}

// NewController creates a controller for the manifest at manifestURL.
func NewController(manifestURL string, cfg config.StreamConfig, hc *http.Client, logger *zap.Logger) *Controller {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Controller{
		manifestURL: manifestURL,
		cfg:         cfg,
		httpClient:  hc,
		logger:      logger.Named("hls"),
		events:      make(chan Event, eventBuffer),
	}
}

// Events returns raw session events. The consumer passes each one to Handle.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// ManifestURL returns the live manifest location.
func (c *Controller) ManifestURL() string {
	return c.manifestURL
}

// HasSession reports whether a session currently exists.
func (c *Controller) HasSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Created returns the number of sessions acquired so far.
func (c *Controller) Created() int64 {
	return c.created.Load()
}

// Destroyed returns the number of sessions destroyed so far.
func (c *Controller) Destroyed() int64 {
	return c.destroyed.Load()
}

// Acquire creates a session bound to the live manifest and starts loading.
// It is a no-op if a session already exists. ctx bounds the session's lifetime.
func (c *Controller) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return nil
	}

	s := newSession(ctx, uuid.NewString(), c.manifestURL, c.cfg, c.httpClient, c.events, c.logger)
	c.session = s
	c.loaded = false
	c.recovering = false
	c.recoveries = 0
	c.created.Add(1)
	telemetry.SessionsCreatedTotal.Inc()

	c.logger.Info("session acquired", zap.String("session", s.ID()), zap.String("manifest", c.manifestURL))
	s.StartLoad()
	return nil
}

// Attach binds the session output to sk. A sink that speaks the protocol
// itself is pointed at the manifest and the load pipeline is bypassed.
func (c *Controller) Attach(sk sink.Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return werrors.ErrSessionDestroyed
	}
	c.sink = sk

	if up, ok := sk.(sink.URLPlayer); ok {
		up.SetURL(c.manifestURL)
		c.session.Bypass()
		if ex, ok := sk.(sink.ExitNotifier); ok {
			c.session.watchExit(ex)
		}
		c.logger.Debug("native playback, session bypassed", zap.String("session", c.session.ID()))
		return nil
	}
	c.session.Attach(sk)
	return nil
}

// Rebuild replaces the session after an unrecoverable failure, but only
// while the listener still intends to play.
func (c *Controller) Rebuild(ctx context.Context, intent core.IntentState) (bool, error) {
	if intent != core.Live && intent != core.Starting {
		c.logger.Debug("rebuild skipped", zap.Stringer("intent", intent))
		return false, nil
	}
	c.Destroy()
	if err := c.Acquire(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Destroy tears down the current session. It is safe to call when no
// session exists.
func (c *Controller) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyLocked()
}

func (c *Controller) destroyLocked() {
	if c.session == nil {
		return
	}
	id := c.session.ID()
	c.session.Destroy()
	c.session = nil
	c.recovering = false
	c.destroyed.Add(1)
	telemetry.SessionsDestroyedTotal.Inc()
	c.logger.Info("session destroyed", zap.String("session", id))
}

// Handle classifies one raw event, runs the matching recovery primitive,
// and returns the lifecycle event to report, if any. Events from sessions
// other than the current one are ignored.
func (c *Controller) Handle(ev Event) (Lifecycle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || ev.SessionID != c.session.ID() {
		return Lifecycle{}, false
	}
	s := c.session

	switch ev.Type {
	case EventLoaded:
		c.loaded = true
		return Lifecycle{}, false

	case EventDelivered:
		c.recoveries = 0
		if c.recovering {
			c.recovering = false
			return Lifecycle{Type: SessionReady, SessionID: s.ID()}, true
		}
		return Lifecycle{}, false
	}

	if !ev.Fatal {
		if ev.Kind == KindBufferStall {
			c.logger.Debug("buffer stalled", zap.String("session", s.ID()))
		}
		return Lifecycle{}, false
	}

	kind := c.classify(ev)
	telemetry.SessionRecoveriesTotal.WithLabelValues(ev.Kind.String(), policyName(kind)).Inc()

	switch kind {
	case KindNetwork:
		c.recoveries++
		c.recovering = true
		c.logger.Warn("network error, reloading", zap.String("session", s.ID()), zap.Stringer("resource", ev.Resource), zap.Error(ev.Err))
		s.StartLoad()
		return Lifecycle{Type: SessionReloading, SessionID: s.ID(), Kind: kind, Err: ev.Err}, true

	case KindMedia:
		c.recoveries++
		c.recovering = true
		c.logger.Warn("media error, recovering", zap.String("session", s.ID()), zap.Error(ev.Err))
		s.RecoverMedia()
		return Lifecycle{Type: SessionReloading, SessionID: s.ID(), Kind: kind, Err: ev.Err}, true

	default:
		c.logger.Error("unrecoverable session error", zap.String("session", s.ID()), zap.Error(ev.Err))
		c.destroyLocked()
		return Lifecycle{Type: SessionFailed, SessionID: ev.SessionID, Kind: KindOther, Unrecoverable: true, Err: ev.Err}, true
	}
}

// classify maps a fatal event to the policy that handles it. A manifest
// that never loaded has no pipeline worth reloading, and repeated
// recoveries without a delivered segment in between give up.
func (c *Controller) classify(ev Event) Kind {
	switch ev.Kind {
	case KindNetwork:
		if ev.Resource == ResourceManifest && !c.loaded {
			return KindOther
		}
	case KindMedia:
	default:
		return KindOther
	}
	if c.recoveries >= c.cfg.MaxRecoveries {
		return KindOther
	}
	return ev.Kind
}

func policyName(k Kind) string {
	switch k {
	case KindNetwork:
		return "reload"
	case KindMedia:
		return "recover_media"
	default:
		return "destroy"
	}
}

// IsExhausted reports whether err is a spent retry budget.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
