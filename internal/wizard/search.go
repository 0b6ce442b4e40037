package wizard

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/weradio/internal/core"
)

// Scope narrows which library entries the picker offers.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeQueued
	ScopeNotQueued
	scopeCount
)

// Pick is a chosen library entry and its index in the listing.
type Pick struct {
	Index int
	Track core.TrackRef
}

// SearchModel is the bubbletea model for the track picker.
type SearchModel struct {
	input    textinput.Model
	listing  *core.Listing
	results  []Pick
	cursor   int
	scope    Scope
	selected *Pick
	width    int
	height   int
}

// Styles
var (
	searchTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("196"))

	searchTabStyle = lipgloss.NewStyle().
			Padding(0, 2)

	searchActiveTabStyle = lipgloss.NewStyle().
				Padding(0, 2).
				Background(lipgloss.Color("196")).
				Foreground(lipgloss.Color("0"))

	searchResultStyle = lipgloss.NewStyle().
				PaddingLeft(2)

	searchSelectedStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Background(lipgloss.Color("237"))

	searchSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))

	searchQueuedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82"))
)

// NewSearchModel creates a picker over listing.
func NewSearchModel(listing *core.Listing, scope Scope) SearchModel {
	ti := textinput.New()
	ti.Placeholder = "Filter by title, artist, or file..."
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 50

	m := SearchModel{
		input:   ti,
		listing: listing,
		scope:   scope,
		width:   80,
		height:  20,
	}
	m.results = m.filter("")
	return m
}

// Init initializes the model.
func (m SearchModel) Init() tea.Cmd {
	return textinput.Blink
}

// filter returns entries in scope whose title, artist, or filename
// contains query.
func (m SearchModel) filter(query string) []Pick {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []Pick
	for i, t := range m.listing.Tracks {
		switch m.scope {
		case ScopeQueued:
			if !t.InQueue {
				continue
			}
		case ScopeNotQueued:
			if t.InQueue {
				continue
			}
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(t.Title), query) &&
			!strings.Contains(strings.ToLower(t.Artist), query) &&
			!strings.Contains(strings.ToLower(t.Filename), query) {
			continue
		}
		out = append(out, Pick{Index: i, Track: t})
	}
	return out
}

// Update handles messages.
func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			if len(m.results) > 0 && m.cursor < len(m.results) {
				m.selected = &m.results[m.cursor]
				return m, tea.Quit
			}
			return m, nil

		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "ctrl+n":
			if m.cursor < len(m.results)-1 {
				m.cursor++
			}
			return m, nil

		case "tab":
			m.scope = (m.scope + 1) % scopeCount
			m.results = m.filter(m.input.Value())
			m.cursor = 0
			return m, nil

		case "shift+tab":
			m.scope = (m.scope + scopeCount - 1) % scopeCount
			m.results = m.filter(m.input.Value())
			m.cursor = 0
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
	}

	// Handle text input
	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.results = m.filter(m.input.Value())
		m.cursor = 0
	}
	return m, cmd
}

// View renders the model.
func (m SearchModel) View() string {
	var b strings.Builder

	// Title
	b.WriteString(searchTitleStyle.Render("📻 Pick a track"))
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	// Scope tabs
	tabs := []string{"All", "Queued", "Not queued"}
	for i, tab := range tabs {
		if Scope(i) == m.scope {
			b.WriteString(searchActiveTabStyle.Render(tab))
		} else {
			b.WriteString(searchTabStyle.Render(tab))
		}
	}
	b.WriteString("\n\n")

	if len(m.results) == 0 {
		b.WriteString("No matching tracks")
	} else {
		maxResults := max(m.height-10, 5)
		for i, r := range m.results {
			if i >= maxResults {
				b.WriteString(searchSubtitleStyle.Render("  ...and more"))
				break
			}

			line := r.Track.Title
			if line == "" {
				line = r.Track.Filename
			}
			if r.Track.Artist != "" {
				line += " " + searchSubtitleStyle.Render(r.Track.Artist)
			}
			if r.Track.InQueue {
				line += " " + searchQueuedStyle.Render("●")
			}

			if i == m.cursor {
				b.WriteString(searchSelectedStyle.Render("▸ " + line))
			} else {
				b.WriteString(searchResultStyle.Render("  " + line))
			}
			b.WriteString("\n")
		}
	}

	// Help
	b.WriteString("\n")
	b.WriteString(searchSubtitleStyle.Render("↑/↓ navigate • tab switch scope • enter select • esc quit"))

	return b.String()
}

// Selected returns the chosen entry, or nil if none.
func (m SearchModel) Selected() *Pick {
	return m.selected
}

// RunSearch runs the picker and returns the chosen entry.
func RunSearch(listing *core.Listing, scope Scope) (*Pick, error) {
	model := NewSearchModel(listing, scope)
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(SearchModel).Selected(), nil
}
