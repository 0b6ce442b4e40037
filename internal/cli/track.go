package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	werrors "github.com/tessro/weradio/internal/errors"
	"github.com/tessro/weradio/internal/library"
	"github.com/tessro/weradio/internal/wizard"
)

var trackRemoveYes bool

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Manage library tracks",
}

var trackRemoveCmd = &cobra.Command{
	Use:     "rm [track...]",
	Aliases: []string{"remove", "delete"},
	Short:   "Delete tracks from the library",
	Long: `Delete tracks from the station library. Each deletion is confirmed
first unless --yes is given. With no arguments a picker opens.`,
	RunE: runTrackRemove,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload audio files to the library",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

func init() {
	trackRemoveCmd.Flags().BoolVarP(&trackRemoveYes, "yes", "y", false, "delete without confirmation")
	trackCmd.AddCommand(trackRemoveCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(uploadCmd)
}

func runTrackRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	interactive := wizard.NewInteractive()
	var confirmer library.Confirmer = interactive
	if trackRemoveYes {
		confirmer = library.AlwaysConfirm
	}

	coord, err := loadLibrary(ctx, st, library.Options{Confirmer: confirmer})
	if err != nil {
		return err
	}
	defer coord.Close()

	res := &werrors.PartialResult[[]string]{}
	targets, err := resolveTargets(coord, args, wizard.ScopeAll, res)
	if err != nil {
		return err
	}

	for _, t := range targets {
		// Earlier deletions shift positions; find the entry again by identity.
		index := coord.Tracks().IndexOf(t.track.Filepath)
		err := coord.DeleteTrack(ctx, index, t.track.Filepath)
		switch {
		case errors.Is(err, werrors.ErrDeclined):
			if !trackRemoveYes && !interactive.CanInteract() {
				res.AddError(werrors.WithSuggestion(
					fmt.Errorf("%s: %w", t.track.DisplayName(), err),
					"Pass --yes to delete without a prompt"))
				continue
			}
			if !JSONOutput() {
				fmt.Printf("Skipped: %s\n", t.track.DisplayName())
			}
		case err != nil:
			res.AddError(fmt.Errorf("%s: %w", t.track.DisplayName(), err))
		default:
			res.Data = append(res.Data, t.track.Filepath)
			if !JSONOutput() {
				fmt.Printf("Deleted: %s\n", t.track.DisplayName())
			}
		}
	}

	if JSONOutput() {
		if err := writeBatch(res); err != nil {
			return err
		}
	}
	return batchError(res)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	coord := st.library(library.Options{})
	defer coord.Close()

	res := &werrors.PartialResult[[]string]{}
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			res.AddError(err)
			continue
		}
		if info.IsDir() {
			res.AddError(fmt.Errorf("%s is a directory", path))
			continue
		}

		if !JSONOutput() {
			fmt.Printf("Uploading %s (%s)...\n", filepath.Base(path), humanize.Bytes(uint64(info.Size())))
		}

		up, err := coord.Upload(ctx, path)
		if err != nil {
			res.AddError(fmt.Errorf("%s: %w", filepath.Base(path), err))
			continue
		}

		name := filepath.Base(path)
		if up != nil && up.Filename != "" {
			name = up.Filename
		}
		res.Data = append(res.Data, name)
		if !JSONOutput() {
			fmt.Printf("Uploaded: %s\n", name)
		}
	}

	if JSONOutput() {
		if err := writeBatch(res); err != nil {
			return err
		}
	} else if n := coord.Tracks().Len(); n > 0 && len(res.Data) > 0 {
		fmt.Printf("Library now has %s\n", Count(n, "track", "tracks"))
	}
	return batchError(res)
}
