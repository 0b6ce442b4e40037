package sink

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"

	werrors "github.com/tessro/weradio/internal/errors"
)

const (
	// startupGrace is how long a freshly started player must survive
	// before Play reports success.
	startupGrace = 300 * time.Millisecond
	stopTimeout  = 2 * time.Second
)

// process is one running player.
type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}
	err   error
}

func startProcess(ctx context.Context, args []string, pipeStdin bool, logger *zap.Logger) (*process, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty player command", werrors.ErrPlayerNotFound)
	}
	path, err := exec.LookPath(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s", werrors.ErrPlaybackRejected, werrors.ErrPlayerNotFound, args[0])
	}

	cmd := exec.Command(path, args[1:]...)
	p := &process{cmd: cmd, done: make(chan struct{})}
	if pipeStdin {
		p.stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", werrors.ErrPlaybackRejected, err)
	}
	logger.Debug("player started", zap.Strings("args", args), zap.Int("pid", cmd.Process.Pid))

	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	select {
	case <-p.done:
		return nil, fmt.Errorf("%w: %s exited: %v", werrors.ErrPlaybackRejected, args[0], p.err)
	case <-ctx.Done():
		p.stop()
		return nil, ctx.Err()
	case <-time.After(startupGrace):
	}
	return p, nil
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// stop closes stdin and waits for exit, killing the player if it lingers.
func (p *process) stop() {
	if p.stdin != nil {
		_ = p.stdin.Close()
	}
	select {
	case <-p.done:
		return
	case <-time.After(stopTimeout / 4):
	}
	_ = p.cmd.Process.Kill()
	select {
	case <-p.done:
	case <-time.After(stopTimeout):
	}
}
