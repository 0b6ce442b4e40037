package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/hls"
	"github.com/tessro/weradio/internal/library"
	"github.com/tessro/weradio/internal/logging"
	"github.com/tessro/weradio/internal/playback"
	"github.com/tessro/weradio/internal/sink"
	"github.com/tessro/weradio/internal/status"
	"github.com/tessro/weradio/internal/weradio/auth"
	"github.com/tessro/weradio/internal/weradio/client"
)

// station bundles the backend-facing components most commands need.
type station struct {
	logger *zap.Logger
	store  *auth.Store
	api    *client.Client
	poller *status.Poller
}

// newStation builds the logger, credential store, API client, and status
// poller from the loaded config. quiet keeps log output off the terminal.
func newStation(quiet bool) (*station, error) {
	logger, err := logging.New(cfg.Log, logging.Options{Verbose: verbose, Quiet: quiet})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	store, err := auth.NewStore(cfg.Auth.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	api := client.New(cfg.Server.URL, store, logger)
	poller := status.NewPoller(api, status.PollerOptions{
		Interval:     cfg.PollInterval(),
		LiveInterval: cfg.LivePollInterval(),
		Logger:       logger,
	})

	return &station{
		logger: logger,
		store:  store,
		api:    api,
		poller: poller,
	}, nil
}

// library creates a mutation coordinator against the station. Settle delay
// and logger are filled from config.
func (s *station) library(opts library.Options) *library.Coordinator {
	opts.SettleDelay = cfg.SettleDelay()
	opts.Logger = s.logger
	return library.New(s.api, s.store, opts)
}

// player creates the live session controller, the configured audio sink,
// and the intent machine that drives them. output overrides stream.output
// when set.
func (s *station) player(output string) (*playback.Machine, *hls.Controller, error) {
	if output == "" {
		output = cfg.Stream.Output
	}
	sk, err := sink.New(output, cfg.Player, cfg.Defaults.Volume, s.logger)
	if err != nil {
		return nil, nil, err
	}

	controller := hls.NewController(cfg.ManifestURL(), cfg.Stream, nil, s.logger)
	machine := playback.New(controller, sk, playback.Options{
		Cooldown: cfg.Stream.Cooldown(),
		Volume:   cfg.Defaults.Volume,
		Live:     s.poller,
		Logger:   s.logger,
	})
	return machine, controller, nil
}

// close flushes buffered log entries.
func (s *station) close() {
	_ = s.logger.Sync()
}
