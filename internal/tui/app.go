package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/core"
	werrors "github.com/tessro/weradio/internal/errors"
	"github.com/tessro/weradio/internal/library"
	"github.com/tessro/weradio/internal/playback"
	"github.com/tessro/weradio/internal/status"
	"github.com/tessro/weradio/internal/tui/components"
	"github.com/tessro/weradio/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelQueue
	PanelLibrary
	PanelHistory
	panelCount
)

const (
	volumeStep  = 5
	maxHistory  = 50
	flashFor    = 4 * time.Second
	actionLimit = 30 * time.Second
)

// Player is the playback surface the UI drives.
type Player interface {
	Toggle(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error
	State() core.IntentState
	Status() playback.Status
	Volume() int
	Subscribe() <-chan playback.Transition
	IsLive() bool
}

// Deps are the running components the UI is wired to.
type Deps struct {
	Player         Player
	Poller         *status.Poller
	Library        *library.Coordinator
	Prompts        *Prompts
	RenderInterval time.Duration
	Theme          string
	Logger         *zap.Logger
}

// Model is the main TUI model
type Model struct {
	ctx          context.Context
	deps         Deps
	width        int
	height       int
	focusedPanel Panel

	// State
	snapshot *core.StatusSnapshot
	listing  *core.Listing
	frame    status.Frame
	hasFrame bool
	status   playback.Status
	volume   int
	history  []core.HistoryEntry

	// Components
	nowPlaying  *components.NowPlaying
	queueView   *components.Queue
	libraryView *components.Library
	historyView *components.History

	// Overlays
	showHelp    bool
	showSearch  bool
	searchInput textinput.Model
	showUpload  bool
	uploadInput textinput.Model
	confirm     *confirmMsg
	notice      string

	// Transient status line
	flash       string
	flashExpiry time.Time

	quitting bool
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, deps Deps) Model {
	search := textinput.New()
	search.Placeholder = "Filter by title, artist, or file..."
	search.CharLimit = 100
	search.Width = 50

	upload := textinput.New()
	upload.Placeholder = "/path/to/track.mp3"
	upload.CharLimit = 4096
	upload.Width = 50

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	m := Model{
		ctx:          ctx,
		deps:         deps,
		focusedPanel: PanelNowPlaying,
		listing:      &core.Listing{},
		status:       playback.StatusStopped,
		nowPlaying:   components.NewNowPlaying(),
		queueView:    components.NewQueue(),
		libraryView:  components.NewLibrary(),
		historyView:  components.NewHistory(),
		searchInput:  search,
		uploadInput:  upload,
	}
	if deps.Player != nil {
		m.status = deps.Player.Status()
		m.volume = deps.Player.Volume()
	}
	if deps.Poller != nil {
		m.snapshot = deps.Poller.Snapshot()
	}
	if deps.Library != nil {
		m.listing = deps.Library.Tracks()
	}
	return m
}

// Messages
type transitionMsg playback.Transition
type snapshotMsg *core.StatusSnapshot
type listingMsg *core.Listing
type frameMsg status.Frame
type errMsg struct{ err error }

type actionDoneMsg struct {
	text string
	err  error
}

type confirmMsg struct {
	prompt string
	reply  chan bool
}

type loginHintMsg struct{ action string }

// Init initializes the model
func (m Model) Init() tea.Cmd {
	if m.deps.Library == nil {
		return nil
	}
	return m.reloadLibrary()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.update(msg)
	mm := model.(Model)
	if mm.deps.Poller != nil {
		mm.deps.Poller.SetOverlay(mm.overlayOpen())
	}
	return mm, cmd
}

func (m Model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case transitionMsg:
		m.status = msg.Status
		if msg.To != core.Live {
			m.hasFrame = false
		}
		return m, nil

	case snapshotMsg:
		m.applySnapshot(msg)
		return m, nil

	case listingMsg:
		m.listing = msg
		return m, nil

	case frameMsg:
		m.frame = status.Frame(msg)
		m.hasFrame = true
		return m, nil

	case actionDoneMsg:
		switch {
		case msg.err == nil:
			m.setFlash(msg.text)
		case errors.Is(msg.err, werrors.ErrNotAuthenticated):
			// The login hint already explains it.
		case errors.Is(msg.err, werrors.ErrDeclined):
			m.setFlash("Cancelled")
		default:
			m.notice = msg.err.Error()
		}
		return m, nil

	case errMsg:
		m.notice = msg.err.Error()
		return m, nil

	case confirmMsg:
		if m.confirm != nil {
			// One prompt at a time; decline the newcomer.
			msg.reply <- false
			return m, nil
		}
		m.confirm = &msg
		return m, nil

	case loginHintMsg:
		m.notice = fmt.Sprintf("Log in to %s: run 'weradio auth login'", msg.action)
		return m, nil
	}

	// Forward other messages to the active text input
	if m.showSearch {
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}
	if m.showUpload {
		var cmd tea.Cmd
		m.uploadInput, cmd = m.uploadInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) applySnapshot(s *core.StatusSnapshot) {
	prev := m.snapshot.Title()
	m.snapshot = s
	if s.HasTrack() && s.Title() != prev {
		m.history = append([]core.HistoryEntry{{Track: s.Current, PlayedAt: s.CapturedAt}}, m.history...)
		if len(m.history) > maxHistory {
			m.history = m.history[:maxHistory]
		}
	}
}

func (m *Model) setFlash(text string) {
	m.flash = text
	m.flashExpiry = time.Now().Add(flashFor)
}

func (m Model) overlayOpen() bool {
	return m.showHelp || m.showSearch || m.showUpload || m.confirm != nil || m.notice != ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys (always work)
	if msg.String() == "ctrl+c" {
		if m.confirm != nil {
			m.confirm.reply <- false
			m.confirm = nil
		}
		m.quitting = true
		return m, tea.Quit
	}

	switch {
	case m.confirm != nil:
		return m.handleConfirmKeyPress(msg)
	case m.notice != "":
		// Any key dismisses a notice
		m.notice = ""
		return m, nil
	case m.showHelp:
		switch msg.String() {
		case "?", "esc", "q":
			m.showHelp = false
		}
		return m, nil
	case m.showSearch:
		return m.handleSearchKeyPress(msg)
	case m.showUpload:
		return m.handleUploadKeyPress(msg)
	}

	// Normal mode
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "/":
		m.showSearch = true
		m.searchInput.SetValue(m.libraryView.Filter())
		m.searchInput.Focus()
		m.focusedPanel = PanelLibrary
		return m, textinput.Blink

	case "u":
		m.showUpload = true
		m.uploadInput.SetValue("")
		m.uploadInput.Focus()
		return m, textinput.Blink

	case "tab":
		m.focusedPanel = (m.focusedPanel + 1) % panelCount
		return m, nil

	case "shift+tab":
		m.focusedPanel = (m.focusedPanel + panelCount - 1) % panelCount
		return m, nil

	case " ":
		return m, m.togglePlayback()

	case "+", "=":
		return m, m.changeVolume(volumeStep)

	case "-":
		return m, m.changeVolume(-volumeStep)

	case "l":
		return m, m.reloadLibrary()

	case "a":
		return m, m.addSelected()

	case "r":
		return m, m.removeSelected()

	case "d":
		return m, m.deleteSelected()
	}

	// Panel-specific keys
	switch m.focusedPanel {
	case PanelQueue:
		switch msg.String() {
		case "j", "down":
			m.queueView.ScrollDown()
		case "k", "up":
			m.queueView.ScrollUp()
		}
	case PanelLibrary:
		switch msg.String() {
		case "j", "down":
			m.libraryView.SelectNext()
		case "k", "up":
			m.libraryView.SelectPrev()
		case "enter":
			return m, m.addSelected()
		case "esc":
			m.libraryView.SetFilter("")
		}
	}

	return m, nil
}

func (m Model) handleConfirmKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		m.confirm.reply <- true
		m.confirm = nil
	case "n", "N", "esc", "q":
		m.confirm.reply <- false
		m.confirm = nil
	}
	return m, nil
}

func (m Model) handleSearchKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.showSearch = false
		m.searchInput.Blur()
		m.libraryView.SetFilter("")
		return m, nil
	case "enter":
		m.showSearch = false
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.libraryView.SetFilter(m.searchInput.Value())
	return m, cmd
}

func (m Model) handleUploadKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.showUpload = false
		m.uploadInput.Blur()
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.uploadInput.Value())
		m.showUpload = false
		m.uploadInput.Blur()
		if path == "" {
			return m, nil
		}
		m.setFlash("Uploading " + path + "...")
		return m, m.upload(path)
	}

	var cmd tea.Cmd
	m.uploadInput, cmd = m.uploadInput.Update(msg)
	return m, cmd
}

// Commands

func (m Model) actionContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, actionLimit)
}

func (m Model) togglePlayback() tea.Cmd {
	player := m.deps.Player
	if player == nil {
		return nil
	}
	return func() tea.Msg {
		if err := player.Toggle(m.ctx); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) changeVolume(delta int) tea.Cmd {
	player := m.deps.Player
	if player == nil {
		return nil
	}
	vol := max(0, min(100, player.Volume()+delta))
	return func() tea.Msg {
		if err := player.SetVolume(m.ctx, vol); err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{text: fmt.Sprintf("Volume %d%%", vol)}
	}
}

func (m Model) reloadLibrary() tea.Cmd {
	lib := m.deps.Library
	if lib == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := m.actionContext()
		defer cancel()
		l, err := lib.Refresh(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("could not load library: %w", err)}
		}
		return listingMsg(l)
	}
}

// selectedTrack captures index and identity at key time; the coordinator
// checks both again before acting.
func (m Model) selectedTrack() (int, core.TrackRef, bool) {
	if m.deps.Library == nil {
		return -1, core.TrackRef{}, false
	}
	return m.libraryView.Selected(m.listing)
}

func (m Model) addSelected() tea.Cmd {
	i, ref, ok := m.selectedTrack()
	if !ok {
		return nil
	}
	lib := m.deps.Library
	return func() tea.Msg {
		ctx, cancel := m.actionContext()
		defer cancel()
		_, err := lib.AddToQueue(ctx, i, ref.Filepath)
		return actionDoneMsg{text: "Queued " + ref.DisplayName(), err: err}
	}
}

func (m Model) removeSelected() tea.Cmd {
	i, ref, ok := m.selectedTrack()
	if !ok {
		return nil
	}
	lib := m.deps.Library
	return func() tea.Msg {
		ctx, cancel := m.actionContext()
		defer cancel()
		err := lib.RemoveFromQueue(ctx, i, ref.Filepath)
		return actionDoneMsg{text: "Removed " + ref.DisplayName() + " from queue", err: err}
	}
}

func (m Model) deleteSelected() tea.Cmd {
	i, ref, ok := m.selectedTrack()
	if !ok {
		return nil
	}
	lib := m.deps.Library
	return func() tea.Msg {
		// No timeout: the confirm overlay waits on the user.
		err := lib.DeleteTrack(m.ctx, i, ref.Filepath)
		return actionDoneMsg{text: "Deleted " + ref.DisplayName(), err: err}
	}
}

func (m Model) upload(path string) tea.Cmd {
	lib := m.deps.Library
	if lib == nil {
		return nil
	}
	return func() tea.Msg {
		res, err := lib.Upload(m.ctx, path)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		name := res.Filename
		if res.Metadata != nil && res.Metadata.Title != "" {
			name = res.Metadata.Title
		}
		return actionDoneMsg{text: "Uploaded " + name}
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	// Show overlays if active
	switch {
	case m.confirm != nil:
		return m.renderDialog(m.confirm.prompt + "\n\n" + styles.Dim.Render("y: yes   n: no"))
	case m.notice != "":
		return m.renderDialog(m.notice + "\n\n" + styles.Dim.Render("press any key"))
	case m.showHelp:
		return m.renderHelp()
	case m.showSearch:
		return m.renderInput("Search library", m.searchInput, "Enter: keep filter  Esc: clear")
	case m.showUpload:
		return m.renderInput("Upload track", m.uploadInput, "Enter: upload  Esc: cancel")
	}

	// Main layout: two columns
	// Left: Now Playing (top), Up Next (bottom)
	// Right: Library (top), History (bottom)

	leftWidth := m.width * 50 / 100
	rightWidth := m.width - leftWidth - 2
	topHeight := m.height * 45 / 100
	bottomHeight := m.height - topHeight - 3

	var next *core.TrackRef
	var queue []core.TrackRef
	if m.snapshot != nil {
		next, queue = m.snapshot.Next, m.snapshot.Queue
	}

	nowPlaying := m.nowPlaying.Render(m.nowPlayingView(), leftWidth-2, topHeight-2, m.focusedPanel == PanelNowPlaying)
	queueView := m.queueView.Render(next, queue, leftWidth-2, bottomHeight-2, m.focusedPanel == PanelQueue)
	libraryView := m.libraryView.Render(m.listing, rightWidth-2, topHeight-2, m.focusedPanel == PanelLibrary)
	historyView := m.historyView.Render(m.history, rightWidth-2, bottomHeight-2, m.focusedPanel == PanelHistory)

	leftCol := lipgloss.JoinVertical(lipgloss.Left, nowPlaying, queueView)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, libraryView, historyView)
	main := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) nowPlayingView() components.NowPlayingView {
	v := components.NowPlayingView{
		Track:  m.snapshot.CurrentTrack(),
		Status: string(m.status),
		Volume: m.volume,
	}
	if m.deps.Player != nil {
		v.Volume = m.deps.Player.Volume()
	}
	if m.deps.Poller != nil {
		v.UpdatedAt = m.deps.Poller.UpdatedAt()
		v.Stale = m.deps.Poller.LastError() != nil
	}
	if m.hasFrame && m.frame.Duration > 0 {
		v.HasProgress = true
		v.Position = m.frame.Position
		v.Duration = m.frame.Duration
	}
	return v
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("q:quit  ?:help  space:play/stop  +/-:volume  a:queue  r:dequeue  d:delete  u:upload  /:search  tab:panel")
	if m.flash != "" && time.Now().Before(m.flashExpiry) {
		status = styles.Queued.Render(m.flash)
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderDialog(body string) string {
	content := lipgloss.NewStyle().
		Width(min(60, max(m.width-4, 20))).
		Padding(1, 2).
		Render(body)

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.FocusedBorder.Render(content))
}

func (m Model) renderInput(title string, input textinput.Model, help string) string {
	var b strings.Builder
	b.WriteString(styles.Highlight.Render(title))
	b.WriteString("\n\n")
	b.WriteString(input.View())
	b.WriteString("\n\n")
	b.WriteString(styles.Dim.Render(help))
	return m.renderDialog(b.String())
}

func (m Model) renderHelp() string {
	title := "weradio - Keyboard Shortcuts"
	divider := strings.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit
  ?            Toggle help
  Tab          Next panel
  Shift+Tab    Previous panel

  Playback
  ────────
  Space        Play/Stop
  +/=          Volume up
  -            Volume down

  Library
  ───────
  j/↓  k/↑     Move cursor
  /            Filter
  a, Enter     Add to queue
  r            Remove from queue
  d            Delete track
  u            Upload a file
  l            Reload library

  Press ? or Esc to close
`
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

// Run starts the TUI and blocks until the user quits or ctx ends. The
// player, poller, and library must already be running.
func Run(ctx context.Context, deps Deps) error {
	styles.SetTheme(deps.Theme)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if deps.Prompts != nil {
		deps.Prompts.Attach(p)
	}

	if deps.Player != nil {
		go forward(ctx, p, deps.Player.Subscribe(), func(t playback.Transition) tea.Msg { return transitionMsg(t) })
	}
	if deps.Poller != nil {
		go forward(ctx, p, deps.Poller.Subscribe(), func(s *core.StatusSnapshot) tea.Msg { return snapshotMsg(s) })

		isLive := func() bool { return false }
		if deps.Player != nil {
			isLive = deps.Player.IsLive
		}
		r := status.NewRenderer(deps.Poller.Reconciler(), isLive, deps.RenderInterval, func(f status.Frame) {
			p.Send(frameMsg(f))
		})
		go r.Run(ctx)
	}
	if deps.Library != nil {
		go forward(ctx, p, deps.Library.Subscribe(), func(l *core.Listing) tea.Msg { return listingMsg(l) })
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func forward[T any](ctx context.Context, p *tea.Program, ch <-chan T, wrap func(T) tea.Msg) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-ch:
			p.Send(wrap(v))
		}
	}
}
