package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tessro/weradio/internal/playback"
	"github.com/tessro/weradio/internal/status"
	"github.com/tessro/weradio/internal/telemetry"
)

var (
	listenOutput      string
	listenVolume      int
	listenMetricsAddr string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Play the live stream without the dashboard",
	Long: `Plays the station's live stream until interrupted. Playback recovers
from network and decoder errors on its own; status changes are logged.

With --metrics-addr, playback metrics are served at /metrics.`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVarP(&listenOutput, "output", "o", "", "audio output: exec, native, or null (default stream.output)")
	listenCmd.Flags().IntVar(&listenVolume, "volume", 0, "playback volume 0-100 (default defaults.volume)")
	listenCmd.Flags().StringVar(&listenMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("volume") {
		if listenVolume < 0 || listenVolume > 100 {
			return fmt.Errorf("volume must be between 0 and 100")
		}
		cfg.Defaults.Volume = listenVolume
	}

	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	app := fx.New(listenOptions(st, listenOutput, listenMetricsAddr))

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	if !JSONOutput() {
		fmt.Fprintf(os.Stderr, "Listening to %s (Ctrl+C to stop)\n", cfg.ManifestURL())
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer stopCancel()
	return app.Stop(stopCtx)
}

// listenOptions is the headless player's dependency graph.
func listenOptions(st *station, output, metricsAddr string) fx.Option {
	return fx.Options(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Supply(st),
		fx.Provide(
			func(st *station) *zap.Logger { return st.logger },
			func(st *station) *status.Poller { return st.poller },
			func(st *station) (*playback.Machine, error) {
				m, _, err := st.player(output)
				return m, err
			},
		),
		fx.Invoke(
			registerPoller,
			registerPlayer,
			registerMetrics(metricsAddr),
		),
	)
}

// appendRunner ties a blocking run loop to the app lifecycle: started on
// OnStart, cancelled and awaited on OnStop.
func appendRunner(lc fx.Lifecycle, name string, logger *zap.Logger, run func(context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error(name+" stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stop context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stop.Done():
				return stop.Err()
			}
		},
	})
}

func registerPoller(lc fx.Lifecycle, poller *status.Poller, logger *zap.Logger) {
	appendRunner(lc, "status poller", logger, poller.Run)
}

func registerPlayer(lc fx.Lifecycle, machine *playback.Machine, logger *zap.Logger) {
	appendRunner(lc, "player", logger, machine.Run)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(start context.Context) error {
			go logTransitions(ctx, machine.Subscribe(), logger)
			return machine.Play(start)
		},
		OnStop: func(stop context.Context) error {
			defer cancel()
			return machine.Stop(stop)
		},
	})
}

func logTransitions(ctx context.Context, ch <-chan playback.Transition, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ch:
			fields := []zap.Field{
				zap.Stringer("from", t.From),
				zap.Stringer("to", t.To),
				zap.String("status", string(t.Status)),
			}
			if t.Reason != "" {
				fields = append(fields, zap.String("reason", t.Reason))
			}
			if t.Err != nil {
				logger.Warn("playback", append(fields, zap.Error(t.Err))...)
				continue
			}
			logger.Info("playback", fields...)
		}
	}
}

// registerMetrics serves telemetry on addr. An empty addr disables it.
func registerMetrics(addr string) func(fx.Lifecycle, *zap.Logger) {
	return func(lc fx.Lifecycle, logger *zap.Logger) {
		if addr == "" {
			return
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return fmt.Errorf("metrics listener: %w", err)
				}
				logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server failed", zap.Error(err))
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}
}
