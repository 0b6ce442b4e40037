package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tessro/weradio/internal/core"
	"github.com/tessro/weradio/internal/tui/styles"
)

// NowPlayingView is what the Now Playing panel shows.
type NowPlayingView struct {
	Track       *core.Track
	Position    time.Duration
	Duration    time.Duration
	HasProgress bool
	Status      string
	Volume      int
	UpdatedAt   time.Time
	Stale       bool
}

// NowPlaying displays the program on air
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel
func (n *NowPlaying) Render(v NowPlayingView, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if v.Track == nil {
		content = lipgloss.JoinVertical(lipgloss.Left,
			styles.Muted.Render("Nothing on air"),
			"",
			n.renderFooter(v),
		)
	} else {
		content = n.renderTrack(v, width-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (n *NowPlaying) renderTrack(v NowPlayingView, width int) string {
	titleStyle := styles.Title.Width(max(width-2, 1))
	trackTitle := titleStyle.Render(v.Track.Title)
	artist := styles.Subtitle.Render(v.Track.Artist)

	progress := ""
	if v.HasProgress {
		progressWidth := max(width-14, 10) // Account for times on either side
		fraction := float64(v.Position) / float64(v.Duration)
		progress = fmt.Sprintf("%s %s %s",
			FormatDuration(v.Position),
			styles.ProgressBar(fraction, progressWidth),
			FormatDuration(v.Duration))
	} else if v.Track.Duration > 0 {
		progress = styles.Dim.Render(FormatDuration(v.Track.Duration))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		trackTitle,
		artist,
		"",
		progress,
		"",
		n.renderFooter(v),
	)
}

func (n *NowPlaying) renderFooter(v NowPlayingView) string {
	footer := styles.StatusBadge(v.Status) + styles.Muted.Render(fmt.Sprintf("  🔊 %d%%", v.Volume))
	if !v.UpdatedAt.IsZero() {
		updated := "updated " + humanize.Time(v.UpdatedAt)
		if v.Stale {
			updated += " (station unreachable)"
		}
		footer += styles.Dim.Render("  " + updated)
	}
	return footer
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}
