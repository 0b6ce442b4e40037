package sink

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/config"
)

// New builds the sink selected by stream.output.
func New(output string, player config.PlayerConfig, volume int, logger *zap.Logger) (Sink, error) {
	switch output {
	case "", "exec":
		return NewExec(player.Command, volume, logger), nil
	case "native":
		return NewNative(player.NativeCommand, volume, logger), nil
	case "null":
		d := &Discard{}
		_ = d.SetVolume(volume)
		return d, nil
	default:
		return nil, fmt.Errorf("unknown output %q", output)
	}
}
