package sink

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ExecSink pipes segments into an external decoder's stdin.
type ExecSink struct {
	command []string
	logger  *zap.Logger

	mu     sync.Mutex
	volume int
	proc   *process
}

var (
	_ Sink     = (*ExecSink)(nil)
	_ Resetter = (*ExecSink)(nil)
)

// NewExec creates a pipe sink. The command is started on Play.
func NewExec(command []string, volume int, logger *zap.Logger) *ExecSink {
	return &ExecSink{
		command: command,
		volume:  clampVolume(volume),
		logger:  logger.Named("sink"),
	}
}

func (s *ExecSink) Write(ctx context.Context, segment []byte) error {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()

	if proc == nil {
		return nil
	}
	if proc.exited() {
		return fmt.Errorf("%w: player exited: %v", ErrDecode, proc.err)
	}
	if _, err := proc.stdin.Write(segment); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func (s *ExecSink) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil && !s.proc.exited() {
		return nil
	}
	return s.startLocked(ctx)
}

func (s *ExecSink) startLocked(ctx context.Context) error {
	proc, err := startProcess(ctx, expand(s.command, s.volume, ""), true, s.logger)
	if err != nil {
		return err
	}
	s.proc = proc
	return nil
}

func (s *ExecSink) Pause() error {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()

	if proc != nil {
		proc.stop()
		s.logger.Debug("player stopped")
	}
	return nil
}

// SetVolume restarts a running decoder so the new volume applies.
func (s *ExecSink) SetVolume(percent int) error {
	s.mu.Lock()
	s.volume = clampVolume(percent)
	running := s.proc != nil
	s.mu.Unlock()

	if !running {
		return nil
	}
	return s.Reset(context.Background())
}

// Reset restarts the decoder if it is running.
func (s *ExecSink) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc == nil {
		return nil
	}
	s.proc.stop()
	s.proc = nil
	return s.startLocked(ctx)
}

func (s *ExecSink) Close() error {
	return s.Pause()
}
