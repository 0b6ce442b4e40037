package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/weradio/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the station is playing",
	Long:  `Shows the track on air, its position, what plays next, and the queue.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusOutput is the JSON shape of `weradio status`.
type statusOutput struct {
	Playing   bool            `json:"playing"`
	Current   *core.Track     `json:"current"`
	Position  *time.Duration  `json:"position"`
	Next      *core.TrackRef  `json:"next"`
	Queue     []core.TrackRef `json:"queue"`
	Available int             `json:"available_tracks"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	snap, err := st.poller.Poll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	var pos *time.Duration
	if p, ok := st.poller.Reconciler().Position(); ok {
		pos = &p
	}

	if JSONOutput() {
		return writeJSON(statusOutput{
			Playing:   snap.Playing,
			Current:   snap.Current,
			Position:  pos,
			Next:      snap.Next,
			Queue:     snap.Queue,
			Available: snap.Available,
		})
	}

	printStatus(snap, pos)
	return nil
}

func printStatus(snap *core.StatusSnapshot, pos *time.Duration) {
	if !snap.HasTrack() {
		fmt.Println("Off air")
	} else {
		fmt.Printf("%s %s\n", StatusIcon(snap.Playing), snap.Current.Title)
		if snap.Current.Artist != "" {
			fmt.Printf("    %s\n", snap.Current.Artist)
		}
		if pos != nil {
			fmt.Printf("    %s %s / %s\n",
				FormatProgress(*pos, snap.Current.Duration, 30),
				FormatDuration(*pos),
				FormatDuration(snap.Current.Duration))
		}
	}

	if snap.Next != nil {
		fmt.Printf("\nUp next: %s\n", snap.Next.DisplayName())
	}

	if len(snap.Queue) > 0 {
		fmt.Printf("\nQueue (%s):\n", Count(len(snap.Queue), "track", "tracks"))
		for i, t := range snap.Queue {
			fmt.Printf("  %2d. %s\n", i+1, t.DisplayName())
		}
	}

	if snap.Available > 0 {
		fmt.Printf("\nLibrary: %s\n", Count(snap.Available, "track", "tracks"))
	}
}
