package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/weradio/internal/core"
	"github.com/tessro/weradio/internal/tui/styles"
)

// Library displays the station library with a cursor and optional filter
type Library struct {
	selected int
	offset   int
	filter   string
}

// NewLibrary creates a new Library component
func NewLibrary() *Library {
	return &Library{}
}

// SelectNext moves the cursor down
func (l *Library) SelectNext() {
	l.selected++
}

// SelectPrev moves the cursor up
func (l *Library) SelectPrev() {
	if l.selected > 0 {
		l.selected--
	}
}

// SetFilter narrows the visible entries to those matching query.
func (l *Library) SetFilter(query string) {
	l.filter = strings.ToLower(strings.TrimSpace(query))
	l.selected = 0
	l.offset = 0
}

// Filter returns the active filter.
func (l *Library) Filter() string {
	return l.filter
}

// visible returns listing indices that pass the filter.
func (l *Library) visible(listing *core.Listing) []int {
	out := make([]int, 0, listing.Len())
	for i := 0; i < listing.Len(); i++ {
		t := listing.Tracks[i]
		if l.filter == "" ||
			strings.Contains(strings.ToLower(t.Title), l.filter) ||
			strings.Contains(strings.ToLower(t.Artist), l.filter) ||
			strings.Contains(strings.ToLower(t.Filename), l.filter) {
			out = append(out, i)
		}
	}
	return out
}

// Selected returns the listing index and entry under the cursor.
func (l *Library) Selected(listing *core.Listing) (int, core.TrackRef, bool) {
	vis := l.visible(listing)
	if len(vis) == 0 {
		return -1, core.TrackRef{}, false
	}
	l.selected = min(l.selected, len(vis)-1)
	i := vis[l.selected]
	return i, listing.Tracks[i], true
}

// Render renders the library panel
func (l *Library) Render(listing *core.Listing, width, height int, focused bool) string {
	label := fmt.Sprintf("Library (%d)", listing.Len())
	if l.filter != "" {
		label = fmt.Sprintf("Library /%s", l.filter)
	}
	title := styles.PanelTitle(label, focused)

	var content string
	if listing.IsEmpty() {
		content = styles.Muted.Render("No tracks")
	} else {
		content = l.renderTracks(listing, width-4, height-4, focused)
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

func (l *Library) renderTracks(listing *core.Listing, width, maxLines int, focused bool) string {
	vis := l.visible(listing)
	if len(vis) == 0 {
		return styles.Muted.Render("No matches")
	}
	l.selected = max(0, min(l.selected, len(vis)-1))

	// Keep the cursor in view
	rows := max(maxLines, 1)
	if l.selected < l.offset {
		l.offset = l.selected
	}
	if l.selected >= l.offset+rows {
		l.offset = l.selected - rows + 1
	}
	end := min(l.offset+rows, len(vis))

	// Fixed overhead: selector (2) + marker (2) + " — " (3) + duration (6)
	const overhead = 13

	lines := make([]string, 0, end-l.offset)
	for row := l.offset; row < end; row++ {
		t := listing.Tracks[vis[row]]

		selector := "  "
		if focused && row == l.selected {
			selector = "▸ "
		}

		marker := "  "
		if t.InQueue {
			marker = styles.Queued.Render("● ")
		}

		title, artist := fitPair(t.Title, t.Artist, width-overhead, 8)
		if title == "" {
			title = t.Filename
		}
		if focused && row == l.selected {
			title = styles.Highlight.Render(title)
		}

		lines = append(lines, fmt.Sprintf("%s%s%s — %s %s",
			selector, marker, title,
			styles.Muted.Render(artist),
			styles.Dim.Render(FormatDuration(t.Duration))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
