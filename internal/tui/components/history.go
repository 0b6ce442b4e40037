package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/weradio/internal/core"
	"github.com/tessro/weradio/internal/tui/styles"
)

// History lists the tracks that went to air while the dashboard was open,
// newest first.
type History struct {
	now func() time.Time
}

func NewHistory() *History {
	return &History{now: time.Now}
}

func (h *History) Render(entries []core.HistoryEntry, width, height int, focused bool) string {
	body := styles.Muted.Render("Nothing aired yet")
	if len(entries) > 0 {
		body = h.lines(entries, width-4, height-4)
	}

	return styles.Panel(focused).Width(width).Height(height).Render(
		lipgloss.JoinVertical(lipgloss.Left, styles.PanelTitle("History", focused), "", body))
}

func (h *History) lines(entries []core.HistoryEntry, width, maxLines int) string {
	// "♪ " plus the separator and at least one column of gap before the age.
	const overhead = 2 + 3 + 1

	rows := make([]string, 0, max(min(len(entries), maxLines), 0))
	for _, e := range entries {
		if len(rows) >= maxLines {
			break
		}
		if e.Track == nil {
			continue
		}

		age := aired(h.now().Sub(e.PlayedAt), e.PlayedAt)
		title, artist := fitPair(e.Track.Title, e.Track.Artist, width-overhead-len(age), 8)
		left := styles.Dim.Render("♪") + " " + title + " — " + artist

		gap := max(width-lipgloss.Width(left)-len(age), 1)
		rows = append(rows, left+strings.Repeat(" ", gap)+styles.Dim.Render(age))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// aired renders how long ago a track went to air.
func aired(ago time.Duration, at time.Time) string {
	switch {
	case ago < time.Minute:
		return "now"
	case ago < time.Hour:
		return fmt.Sprintf("%dm", int(ago.Minutes()))
	case ago < 24*time.Hour:
		return fmt.Sprintf("%dh", int(ago.Hours()))
	default:
		return at.Format("Jan 2")
	}
}
