// Package playback implements the listener's playback intent state machine.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/core"
	werrors "github.com/tessro/weradio/internal/errors"
	"github.com/tessro/weradio/internal/hls"
	"github.com/tessro/weradio/internal/sink"
	"github.com/tessro/weradio/internal/telemetry"
)

// DefaultCooldown is the wait before a failed session is rebuilt.
const DefaultCooldown = 2 * time.Second

// SessionController is the live session surface the machine drives.
type SessionController interface {
	HasSession() bool
	Acquire(ctx context.Context) error
	Attach(s sink.Sink) error
	Rebuild(ctx context.Context, intent core.IntentState) (bool, error)
	Events() <-chan hls.Event
	Handle(ev hls.Event) (hls.Lifecycle, bool)
	Destroy()
}

// LiveLoop is started whenever the machine enters Live. It must return
// once isLive reports false.
type LiveLoop interface {
	StartLive(ctx context.Context, isLive func() bool)
}

// Status is the text shown for the current state.
type Status string

const (
	StatusStopped      Status = "stopped"
	StatusConnecting   Status = "connecting"
	StatusOnAir        Status = "on air"
	StatusReconnecting Status = "reconnecting"
	StatusClickToStart Status = "click to start"
	StatusError        Status = "error"
)

// Transition is published on every state or status change.
type Transition struct {
	From   core.IntentState `json:"from"`
	To     core.IntentState `json:"to"`
	Status Status           `json:"status"`
	Reason string           `json:"reason"`
	Err    error            `json:"-"`
	At     time.Time        `json:"at"`
}

// Options configures a Machine.
type Options struct {
	Cooldown time.Duration
	Volume   int
	Live     LiveLoop
	Logger   *zap.Logger
}

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdStop
	cmdToggle
	cmdVolume
)

type command struct {
	kind   commandKind
	volume int
	done   chan error
}

type playResult struct {
	attempt uint64
	err     error
}

// Machine serializes user intent, sink results, and session lifecycle
// events through a single loop. Exactly one transition runs at a time.
type Machine struct {
	controller SessionController
	sink       sink.Sink
	live       LiveLoop
	cooldown   time.Duration
	logger     *zap.Logger

	cmds      chan command
	results   chan playResult
	cooldowns chan uint64

	mu     sync.RWMutex
	state  core.IntentState
	status Status
	volume int

	// Owned by the loop goroutine.
	wantPlaying bool
	attempt     uint64
	cooldownGen uint64

	subsMu sync.Mutex
	subs   []chan Transition
}

// New creates a machine in Stopped. Run must be called before any command.
func New(controller SessionController, sk sink.Sink, opts Options) *Machine {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Machine{
		controller: controller,
		sink:       sk,
		live:       opts.Live,
		cooldown:   opts.Cooldown,
		logger:     opts.Logger.Named("playback"),
		cmds:       make(chan command),
		results:    make(chan playResult, 1),
		cooldowns:  make(chan uint64, 1),
		state:      core.Stopped,
		status:     StatusStopped,
		volume:     opts.Volume,
	}
}

// State returns the current intent state.
func (m *Machine) State() core.IntentState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status returns the status text for the current state.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Volume returns the last volume applied.
func (m *Machine) Volume() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// IsLive reports whether the machine is in Live.
func (m *Machine) IsLive() bool {
	return m.State() == core.Live
}

// Subscribe returns a channel of transitions. Slow readers miss events.
func (m *Machine) Subscribe() <-chan Transition {
	ch := make(chan Transition, 16)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

// Play requests playback.
func (m *Machine) Play(ctx context.Context) error {
	return m.send(ctx, command{kind: cmdPlay})
}

// Stop requests that playback stop. The session is kept for a cheap resume.
func (m *Machine) Stop(ctx context.Context) error {
	return m.send(ctx, command{kind: cmdStop})
}

// Toggle plays when stopped and stops otherwise.
func (m *Machine) Toggle(ctx context.Context) error {
	return m.send(ctx, command{kind: cmdToggle})
}

// SetVolume applies a volume percentage to the sink.
func (m *Machine) SetVolume(ctx context.Context, percent int) error {
	return m.send(ctx, command{kind: cmdVolume, volume: percent})
}

func (m *Machine) send(ctx context.Context, cmd command) error {
	cmd.done = make(chan error, 1)
	select {
	case m.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx ends, then destroys the session and
// closes the sink.
func (m *Machine) Run(ctx context.Context) error {
	defer func() {
		m.controller.Destroy()
		if err := m.sink.Close(); err != nil {
			m.logger.Debug("sink close failed", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-m.cmds:
			cmd.done <- m.handleCommand(ctx, cmd)

		case res := <-m.results:
			m.handlePlayResult(ctx, res)

		case ev := <-m.controller.Events():
			if lc, ok := m.controller.Handle(ev); ok {
				m.handleLifecycle(ctx, lc)
			}

		case gen := <-m.cooldowns:
			m.handleCooldown(ctx, gen)
		}
	}
}

func (m *Machine) handleCommand(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case cmdToggle:
		if s := m.State(); s == core.Stopped || s == core.Error {
			return m.play(ctx)
		}
		return m.stop()
	case cmdPlay:
		return m.play(ctx)
	case cmdStop:
		return m.stop()
	case cmdVolume:
		if err := m.sink.SetVolume(cmd.volume); err != nil {
			return err
		}
		m.mu.Lock()
		m.volume = cmd.volume
		m.mu.Unlock()
		return nil
	}
	return nil
}

func (m *Machine) play(ctx context.Context) error {
	switch m.State() {
	case core.Starting, core.Live:
		return nil
	}
	m.wantPlaying = true
	m.cooldownGen++
	m.start(ctx, "play requested")
	return nil
}

func (m *Machine) stop() error {
	if m.State() == core.Stopped {
		return nil
	}
	m.wantPlaying = false
	m.attempt++
	m.cooldownGen++

	err := m.sink.Pause()
	if err != nil {
		m.logger.Warn("sink pause failed", zap.Error(err))
	}
	m.transition(core.Stopped, StatusStopped, "stop requested", nil)
	return err
}

// start enters Starting, makes sure a session exists, attaches the sink,
// and issues an asynchronous play request.
func (m *Machine) start(ctx context.Context, reason string) {
	m.transition(core.Starting, StatusConnecting, reason, nil)

	if !m.controller.HasSession() {
		if err := m.controller.Acquire(ctx); err != nil {
			m.fail(ctx, err)
			return
		}
	}

	if err := m.controller.Attach(m.sink); err != nil {
		m.fail(ctx, err)
		return
	}

	m.attempt++
	attempt := m.attempt
	go func() {
		err := m.sink.Play(ctx)
		select {
		case m.results <- playResult{attempt: attempt, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (m *Machine) handlePlayResult(ctx context.Context, res playResult) {
	if res.attempt != m.attempt || m.State() != core.Starting {
		// Superseded. A late success must not leave audio running after a stop.
		if res.err == nil && !m.wantPlaying {
			_ = m.sink.Pause()
		}
		return
	}

	if res.err != nil {
		m.wantPlaying = false
		m.logger.Info("playback rejected", zap.Error(res.err))
		m.transition(core.Stopped, StatusClickToStart, "sink rejected playback", res.err)
		return
	}

	m.transition(core.Live, StatusOnAir, "playback began", nil)
	if m.live != nil {
		m.live.StartLive(ctx, m.IsLive)
	}
}

func (m *Machine) handleLifecycle(ctx context.Context, lc hls.Lifecycle) {
	state := m.State()
	m.logger.Debug("session lifecycle", zap.Stringer("type", lc.Type), zap.Stringer("state", state))

	switch lc.Type {
	case hls.SessionReloading:
		if state == core.Live || state == core.Starting {
			m.transition(state, StatusReconnecting, "session "+lc.Kind.String()+" recovery", lc.Err)
		}

	case hls.SessionReady:
		if m.Status() != StatusReconnecting {
			return
		}
		switch state {
		case core.Live:
			m.transition(state, StatusOnAir, "session recovered", nil)
		case core.Starting:
			m.transition(state, StatusConnecting, "session recovered", nil)
		}

	case hls.SessionFailed:
		if lc.Unrecoverable {
			m.fail(ctx, lc.Err)
		}
	}
}

// fail enters Error and schedules the cooldown that decides what comes next.
func (m *Machine) fail(ctx context.Context, err error) {
	if err == nil {
		err = werrors.ErrSessionDestroyed
	}
	m.attempt++
	m.transition(core.Error, StatusError, "session failed", err)

	m.cooldownGen++
	gen := m.cooldownGen
	time.AfterFunc(m.cooldown, func() {
		select {
		case m.cooldowns <- gen:
		case <-ctx.Done():
		}
	})
}

func (m *Machine) handleCooldown(ctx context.Context, gen uint64) {
	if gen != m.cooldownGen || m.State() != core.Error {
		return
	}

	ok, err := m.controller.Rebuild(ctx, m.intent())
	switch {
	case err != nil:
		m.transition(core.Starting, StatusConnecting, "rebuilding after cooldown", nil)
		m.fail(ctx, err)
	case !ok:
		m.transition(core.Stopped, StatusStopped, "cooldown elapsed", nil)
	default:
		m.start(ctx, "rebuilding after cooldown")
	}
}

// intent is what the listener last asked for, whatever the session is doing.
func (m *Machine) intent() core.IntentState {
	if m.wantPlaying {
		return core.Starting
	}
	return core.Stopped
}

func (m *Machine) transition(to core.IntentState, status Status, reason string, err error) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.status = status
	m.mu.Unlock()

	if from != to {
		telemetry.IntentTransitionsTotal.WithLabelValues(to.String()).Inc()
		for _, s := range []core.IntentState{core.Stopped, core.Starting, core.Live, core.Error} {
			v := 0.0
			if s == to {
				v = 1
			}
			telemetry.IntentState.WithLabelValues(s.String()).Set(v)
		}
	}

	fields := []zap.Field{
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.String("status", string(status)),
		zap.String("reason", reason),
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fields = append(fields, zap.Error(err))
	}
	m.logger.Info("intent transition", fields...)

	t := Transition{From: from, To: to, Status: status, Reason: reason, Err: err, At: time.Now()}
	m.subsMu.Lock()
	for _, ch := range m.subs {
		select {
		case ch <- t:
		default:
		}
	}
	m.subsMu.Unlock()
}
