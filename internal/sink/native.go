package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// NativeSink runs a player that fetches the stream itself.
type NativeSink struct {
	command []string
	logger  *zap.Logger

	mu     sync.Mutex
	url    string
	volume int
	proc   *process
	exits  chan error
}

var (
	_ Sink         = (*NativeSink)(nil)
	_ URLPlayer    = (*NativeSink)(nil)
	_ ExitNotifier = (*NativeSink)(nil)
)

// NewNative creates a sink for a protocol-aware player such as mpv.
func NewNative(command []string, volume int, logger *zap.Logger) *NativeSink {
	return &NativeSink{
		command: command,
		volume:  clampVolume(volume),
		logger:  logger.Named("sink"),
		exits:   make(chan error, 1),
	}
}

// SetURL points the player at the manifest.
func (s *NativeSink) SetURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

// Write is a no-op; the player loads segments on its own.
func (s *NativeSink) Write(ctx context.Context, segment []byte) error {
	return nil
}

func (s *NativeSink) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil && !s.proc.exited() {
		return nil
	}
	if s.url == "" {
		return errors.New("native sink has no stream url")
	}
	proc, err := startProcess(ctx, expand(s.command, s.volume, s.url), false, s.logger)
	if err != nil {
		return err
	}
	s.proc = proc
	go s.watch(proc)
	return nil
}

// Exited reports players that quit while playing.
func (s *NativeSink) Exited() <-chan error {
	return s.exits
}

func (s *NativeSink) watch(proc *process) {
	<-proc.done

	s.mu.Lock()
	current := s.proc == proc
	if current {
		s.proc = nil
	}
	s.mu.Unlock()
	if !current {
		return
	}

	err := fmt.Errorf("%w: %v", ErrPlayerExited, proc.err)
	s.logger.Warn("player exited while playing", zap.Error(proc.err))
	select {
	case s.exits <- err:
	default:
	}
}

func (s *NativeSink) Pause() error {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()

	if proc != nil {
		proc.stop()
	}
	return nil
}

// SetVolume takes effect on the next Play, restarting a running player.
func (s *NativeSink) SetVolume(percent int) error {
	s.mu.Lock()
	s.volume = clampVolume(percent)
	running := s.proc != nil
	s.mu.Unlock()

	if !running {
		return nil
	}
	if err := s.Pause(); err != nil {
		return err
	}
	return s.Play(context.Background())
}

func (s *NativeSink) Close() error {
	return s.Pause()
}
