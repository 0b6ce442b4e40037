package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/weradio/internal/core"
	werrors "github.com/tessro/weradio/internal/errors"
	"github.com/tessro/weradio/internal/library"
	"github.com/tessro/weradio/internal/wizard"
)

var (
	tracksQueued bool
	tracksFilter string
)

var tracksCmd = &cobra.Command{
	Use:     "tracks",
	Aliases: []string{"library", "ls"},
	Short:   "List the station library",
	Long: `Lists every track in the station library. The number in the first
column can be passed to 'queue add', 'queue remove', and 'track rm'.`,
	RunE: runTracks,
}

func init() {
	tracksCmd.Flags().BoolVarP(&tracksQueued, "queued", "q", false, "show only queued tracks")
	tracksCmd.Flags().StringVarP(&tracksFilter, "filter", "f", "", "show only tracks matching text")
	rootCmd.AddCommand(tracksCmd)
}

// trackRow is one listing entry with its 1-based position.
type trackRow struct {
	Position int `json:"position"`
	core.TrackRef
}

func runTracks(cmd *cobra.Command, args []string) error {
	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	coord := st.library(library.Options{})
	defer coord.Close()

	listing, err := coord.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get tracks: %w", err)
	}

	rows := filterTracks(listing, tracksFilter, tracksQueued)

	if JSONOutput() {
		return writeJSON(map[string]any{
			"tracks": rows,
			"total":  listing.Total,
		})
	}

	if len(rows) == 0 {
		fmt.Println("No tracks")
		return nil
	}

	table := NewTable("#", "", "TITLE", "ARTIST", "LENGTH")
	for _, r := range rows {
		table.Row(
			strconv.Itoa(r.Position),
			queuedMarker(r.InQueue),
			TruncateString(r.Title, 40),
			TruncateString(r.Artist, 30),
			FormatDuration(r.Duration),
		)
	}
	table.Flush()

	fmt.Printf("\n%s, %d queued\n", Count(listing.Len(), "track", "tracks"), len(listing.Queued()))
	return nil
}

func filterTracks(listing *core.Listing, filter string, queuedOnly bool) []trackRow {
	filter = strings.ToLower(filter)
	rows := make([]trackRow, 0, listing.Len())
	for i, t := range listing.Tracks {
		if queuedOnly && !t.InQueue {
			continue
		}
		if filter != "" && !matchesTrack(t, filter) {
			continue
		}
		rows = append(rows, trackRow{Position: i + 1, TrackRef: t})
	}
	return rows
}

func matchesTrack(t core.TrackRef, lowered string) bool {
	return strings.Contains(strings.ToLower(t.Title), lowered) ||
		strings.Contains(strings.ToLower(t.Artist), lowered) ||
		strings.Contains(strings.ToLower(t.Filename), lowered)
}

func queuedMarker(queued bool) string {
	if queued {
		return StatusIcon(true)
	}
	return ""
}

// target is a resolved listing entry.
type target struct {
	index int
	track core.TrackRef
}

// resolveTargets maps track references to listing entries, recording
// unresolvable ones in res. With no references it falls back to the
// interactive picker.
func resolveTargets[T any](coord *library.Coordinator, refs []string, scope wizard.Scope, res *werrors.PartialResult[T]) ([]target, error) {
	if wizard.NeedsTrack(refs) {
		pick, err := wizard.NewInteractive().PromptTrack(coord.Tracks(), scope)
		if err != nil {
			return nil, err
		}
		if pick == nil {
			return nil, werrors.WithSuggestion(werrors.ErrInvalidTrack,
				"Pass a track number, filename, or filepath (see 'weradio tracks')")
		}
		return []target{{index: pick.Index, track: pick.Track}}, nil
	}

	targets := make([]target, 0, len(refs))
	for _, ref := range refs {
		i, t, err := coord.Resolve(ref)
		if err != nil {
			res.AddError(err)
			continue
		}
		targets = append(targets, target{index: i, track: t})
	}
	return targets, nil
}

// batchError folds a batch's failures into one error. A single failure is
// returned as is so its suggestion survives.
func batchError[T any](res *werrors.PartialResult[T]) error {
	switch len(res.Errors) {
	case 0:
		return nil
	case 1:
		return res.Errors[0]
	}
	return errors.New(strings.TrimRight(res.ErrorSummary(), "\n"))
}

// batchOutput is the JSON shape of batch mutation commands.
type batchOutput struct {
	Succeeded []string `json:"succeeded"`
	Errors    []string `json:"errors,omitempty"`
}

func writeBatch(res *werrors.PartialResult[[]string]) error {
	out := batchOutput{Succeeded: res.Data}
	if out.Succeeded == nil {
		out.Succeeded = []string{}
	}
	for _, err := range res.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	return writeJSON(out)
}

// loadLibrary creates a coordinator and fetches the listing refs resolve
// against.
func loadLibrary(ctx context.Context, st *station, opts library.Options) (*library.Coordinator, error) {
	coord := st.library(opts)
	if _, err := coord.Refresh(ctx); err != nil {
		coord.Close()
		return nil, fmt.Errorf("failed to get tracks: %w", err)
	}
	return coord, nil
}
