package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/weradio/internal/core"
	"github.com/tessro/weradio/internal/tui/styles"
)

// Queue displays the up-next track and the station queue
type Queue struct {
	offset int
}

// NewQueue creates a new Queue component
func NewQueue() *Queue {
	return &Queue{}
}

// ScrollDown scrolls the queue down
func (q *Queue) ScrollDown() {
	q.offset++
}

// ScrollUp scrolls the queue up
func (q *Queue) ScrollUp() {
	if q.offset > 0 {
		q.offset--
	}
}

// Render renders the queue panel
func (q *Queue) Render(next *core.TrackRef, queue []core.TrackRef, width, height int, focused bool) string {
	title := styles.PanelTitle("Up Next", focused)

	var content string
	if next == nil && len(queue) == 0 {
		content = styles.Muted.Render("Queue is empty")
	} else {
		content = q.renderQueue(next, queue, width-4, height-4)
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

func (q *Queue) renderQueue(next *core.TrackRef, queue []core.TrackRef, width, maxLines int) string {
	lines := make([]string, 0, maxLines)

	// Fixed overhead: "XX. " (4) + "▶ " or "  " (2) + " — " (3) = 9 chars
	const overhead = 9

	if next != nil {
		title, artist := fitPair(next.Title, next.Artist, width-overhead, 10)
		lines = append(lines, styles.OnAir.Render(fmt.Sprintf(" ▶  %s — %s", title, artist)))
	}

	// Adjust offset if needed
	if q.offset >= len(queue) {
		q.offset = 0
	}

	visibleCount := max(maxLines-len(lines)-1, 1) // Leave room for "more" indicator
	start := q.offset
	end := min(start+visibleCount, len(queue))

	for i := start; i < end; i++ {
		track := queue[i]
		num := fmt.Sprintf("%2d.", i+1)
		title, artist := fitPair(track.Title, track.Artist, width-overhead, 10)
		lines = append(lines, fmt.Sprintf("%s   %s — %s",
			styles.Dim.Render(num),
			title,
			styles.Muted.Render(artist)))
	}

	// Show "more" indicator
	if end < len(queue) {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(queue)-end)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// fitPair truncates title and artist to share available columns, giving
// the artist at least a third (and minArtist) of the space.
func fitPair(title, artist string, available, minArtist int) (string, string) {
	if len(title)+len(artist) <= available {
		return title, artist
	}
	artistSpace := max(available/3, minArtist)
	if artistSpace > available-minArtist {
		artistSpace = available - minArtist
	}
	artistSpace = min(artistSpace, len(artist))
	return truncate(title, available-artistSpace), truncate(artist, artistSpace)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
