package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/library"
	"github.com/tessro/weradio/internal/tui"
)

var tuiOutput string

var tuiCmd = &cobra.Command{
	Use:     "ui",
	Aliases: []string{"tui"},
	Short:   "Launch interactive dashboard",
	Long: `Launch the interactive terminal dashboard.

The dashboard provides a live view with:
  • Now Playing - track on air, progress, playback status, volume
  • Up Next - the next track and the queue after it
  • Library - every track, with queued ones marked
  • History - tracks heard this session

Keyboard shortcuts:
  q, Ctrl+C    Quit
  ?            Help
  Space        Play/Stop
  +/-          Volume up/down
  Tab          Switch panel
  /            Filter library
  a            Add selected track to queue
  r            Remove selected track from queue
  d            Delete selected track
  u            Upload a file
  l            Reload library`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVarP(&tuiOutput, "output", "o", "", "audio output: exec, native, or null (default stream.output)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st, err := newStation(true)
	if err != nil {
		return err
	}
	defer st.close()

	machine, _, err := st.player(tuiOutput)
	if err != nil {
		return err
	}

	prompts := tui.NewPrompts()
	coord := st.library(library.Options{Prompter: prompts, Confirmer: prompts})
	defer coord.Close()

	playerDone := make(chan struct{})
	go func() {
		defer close(playerDone)
		if err := machine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			st.logger.Error("player stopped", zap.Error(err))
		}
	}()
	go func() {
		_ = st.poller.Run(ctx)
	}()

	err = tui.Run(ctx, tui.Deps{
		Player:         machine,
		Poller:         st.poller,
		Library:        coord,
		Prompts:        prompts,
		RenderInterval: cfg.RenderInterval(),
		Theme:          cfg.TUI.Theme,
		Logger:         st.logger,
	})

	// Let the player tear down its session and decoder before exiting.
	cancel()
	<-playerDone
	return err
}
