package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessro/weradio/internal/core"
	werrors "github.com/tessro/weradio/internal/errors"
	"github.com/tessro/weradio/internal/library"
	"github.com/tessro/weradio/internal/wizard"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show and edit the play queue",
	Long:  `Shows what plays next and the queued tracks after it.`,
	RunE:  runQueueList,
}

var queueAddCmd = &cobra.Command{
	Use:   "add [track...]",
	Short: "Add tracks to the queue",
	Long: `Add library tracks to the queue. A track is its number from
'weradio tracks', its filename, or its filepath. With no arguments a
picker opens.

Examples:
  weradio queue add 12
  weradio queue add 3 7 intro.mp3`,
	RunE: runQueueAdd,
}

var queueRemoveCmd = &cobra.Command{
	Use:     "remove [track...]",
	Aliases: []string{"rm"},
	Short:   "Remove tracks from the queue",
	Long: `Remove tracks from the queue without deleting them from the library.
With no arguments a picker of queued tracks opens.`,
	RunE: runQueueRemove,
}

func init() {
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueRemoveCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	snap, err := st.poller.Poll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get queue: %w", err)
	}

	if JSONOutput() {
		queue := snap.Queue
		if queue == nil {
			queue = []core.TrackRef{}
		}
		return writeJSON(map[string]any{
			"next":  snap.Next,
			"queue": queue,
		})
	}

	if snap.Next != nil {
		fmt.Printf("Up next: %s\n", snap.Next.DisplayName())
	}
	if len(snap.Queue) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}

	fmt.Println()
	table := NewTable("#", "TITLE", "ARTIST")
	for i, t := range snap.Queue {
		title := t.Title
		if title == "" {
			title = t.DisplayName()
		}
		table.Row(fmt.Sprintf("%d", i+1), TruncateString(title, 40), TruncateString(t.Artist, 30))
	}
	table.Flush()
	return nil
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	coord, err := loadLibrary(ctx, st, library.Options{})
	if err != nil {
		return err
	}
	defer coord.Close()

	res := &werrors.PartialResult[[]string]{}
	targets, err := resolveTargets(coord, args, wizard.ScopeNotQueued, res)
	if err != nil {
		return err
	}

	for _, t := range targets {
		added, err := coord.AddToQueue(ctx, t.index, t.track.Filepath)
		if err != nil {
			res.AddError(fmt.Errorf("%s: %w", t.track.DisplayName(), err))
			continue
		}
		res.Data = append(res.Data, t.track.Filepath)
		if !JSONOutput() {
			fmt.Printf("Queued: %s", t.track.DisplayName())
			if added != nil && added.QueueLength > 0 {
				fmt.Printf(" (%s in queue)", Count(added.QueueLength, "track", "tracks"))
			}
			fmt.Println()
		}
	}

	if JSONOutput() {
		if err := writeBatch(res); err != nil {
			return err
		}
	}
	return batchError(res)
}

func runQueueRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	coord, err := loadLibrary(ctx, st, library.Options{})
	if err != nil {
		return err
	}
	defer coord.Close()

	res := &werrors.PartialResult[[]string]{}
	targets, err := resolveTargets(coord, args, wizard.ScopeQueued, res)
	if err != nil {
		return err
	}

	for _, t := range targets {
		if err := coord.RemoveFromQueue(ctx, t.index, t.track.Filepath); err != nil {
			res.AddError(fmt.Errorf("%s: %w", t.track.DisplayName(), err))
			continue
		}
		res.Data = append(res.Data, t.track.Filepath)
		if !JSONOutput() {
			fmt.Printf("Removed from queue: %s\n", t.track.DisplayName())
		}
	}

	if JSONOutput() {
		if err := writeBatch(res); err != nil {
			return err
		}
	}
	return batchError(res)
}
