// Package tui provides the BubbleTea-based live event monitor.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
	ModeSearch
	ModeHelp
)

// DefaultHistory is the number of recorded events loaded on start and kept
// in view.
const DefaultHistory = 500

// Source supplies the state of a running application.
type Source interface {
	ListWindows(ctx context.Context) ([]model.WindowInfo, error)
	RecentEvents(ctx context.Context, limit int) ([]model.EventRecord, error)
}

// Model is the main TUI model.
type Model struct {
	source    Source
	updates   <-chan tea.Msg
	clipboard string
	history   int

	mode Mode

	// Components
	list        list.Model
	viewport    viewport.Model
	searchInput textinput.Model
	help        help.Model

	// State
	records     []model.EventRecord // Oldest first
	windows     map[string]model.WindowInfo
	selected    *model.EventRecord
	searchQuery string
	queryErr    error
	paused      bool
	missed      int // Events received while paused
	width       int
	height      int
	ready       bool

	keys KeyMap

	statusMsg string
	statusErr bool
}

// eventItem wraps a record for the list component.
type eventItem struct {
	record model.EventRecord
}

func (i eventItem) Title() string {
	return i.record.Event
}

func (i eventItem) Description() string {
	desc := fmt.Sprintf("[%s] %s - %s", i.record.Source, windowLabel(i.record), humanize.Time(i.record.Time()))
	if len(i.record.Payload) > 0 && string(i.record.Payload) != "null" {
		desc += " - " + truncate(strings.Join(strings.Fields(string(i.record.Payload)), " "), 60)
	}
	return desc
}

func (i eventItem) FilterValue() string {
	return i.record.Event + " " + i.record.Window + " " + i.record.PayloadString()
}

// eventDelegate colours list items by event source.
type eventDelegate struct {
	list.DefaultDelegate
}

func newEventDelegate() eventDelegate {
	return eventDelegate{DefaultDelegate: list.NewDefaultDelegate()}
}

// sourceColors maps event sources to terminal colours.
var sourceColors = map[string]lipgloss.Color{
	model.SourceHost:    lipgloss.Color("10"),
	model.SourcePage:    lipgloss.Color("14"),
	model.SourceControl: lipgloss.Color("13"),
}

// Render renders a list item with a source-coloured title.
func (d eventDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ei, ok := item.(eventItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	isSelected := index == m.Index()
	itemWidth := m.Width() - d.DefaultDelegate.Styles.NormalTitle.GetHorizontalPadding()

	titleStyle := d.DefaultDelegate.Styles.NormalTitle
	descStyle := d.DefaultDelegate.Styles.NormalDesc
	if isSelected {
		titleStyle = d.DefaultDelegate.Styles.SelectedTitle
		descStyle = d.DefaultDelegate.Styles.SelectedDesc
	}
	if c, ok := sourceColors[ei.record.Source]; ok && !isSelected {
		titleStyle = titleStyle.Foreground(c)
	}

	title := truncate(ei.Title(), itemWidth)
	desc := truncate(ei.Description(), itemWidth)

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

// Options configures the monitor model.
type Options struct {
	Source           Source
	Updates          <-chan tea.Msg // Live messages, see EventMsg and friends
	ClipboardCommand string
	History          int // Events to load (0 = DefaultHistory)
}

// New creates a new monitor model.
func New(opts Options) Model {
	l := list.New(nil, newEventDelegate(), 0, 0)
	l.Title = "HostBridge Events"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	searchInput := textinput.New()
	searchInput.Placeholder = "text or event=ping,window=main"
	searchInput.CharLimit = 200

	history := opts.History
	if history <= 0 {
		history = DefaultHistory
	}

	return Model{
		source:      opts.Source,
		updates:     opts.Updates,
		clipboard:   opts.ClipboardCommand,
		history:     history,
		mode:        ModeList,
		list:        l,
		searchInput: searchInput,
		help:        help.New(),
		windows:     make(map[string]model.WindowInfo),
		keys:        DefaultKeyMap(),
	}
}

// EventMsg delivers one live event.
type EventMsg struct{ Record model.EventRecord }

// WindowCreatedMsg delivers a window registration.
type WindowCreatedMsg struct{ Info model.WindowInfo }

// WindowClosedMsg delivers a window deregistration.
type WindowClosedMsg struct{ Label string }

type loadedMsg struct {
	records []model.EventRecord
	windows []model.WindowInfo
	err     error
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

// Init starts the initial load and the live subscription.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load, m.waitForUpdate)
}

// load fetches windows and recent events from the source.
func (m Model) load() tea.Msg {
	if m.source == nil {
		return loadedMsg{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	windows, err := m.source.ListWindows(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	records, err := m.source.RecentEvents(ctx, m.history)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{records: records, windows: windows}
}

// waitForUpdate blocks on the live channel.
func (m Model) waitForUpdate() tea.Msg {
	if m.updates == nil {
		return nil
	}
	msg, ok := <-m.updates
	if !ok {
		return statusMsg{text: "Live updates stopped", isErr: true}
	}
	return msg
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		m.list.SetSize(msg.Width, msg.Height-3)
		m.viewport = viewport.New(msg.Width, msg.Height-4)
		m.viewport.YPosition = 2
		if m.selected != nil {
			m.viewport.SetContent(m.renderDetail(*m.selected))
		}
		m.help.Width = msg.Width
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			return m, status("Load failed: "+msg.err.Error(), true)
		}
		m.records = msg.records
		m.windows = make(map[string]model.WindowInfo, len(msg.windows))
		for _, w := range msg.windows {
			m.windows[w.Label] = w
		}
		m.missed = 0
		m.rebuild()
		return m, nil

	case EventMsg:
		if m.has(msg.Record.ID) {
			return m, m.waitForUpdate
		}
		m.records = append(m.records, msg.Record)
		if over := len(m.records) - m.history; over > 0 {
			m.records = m.records[over:]
		}
		if m.paused {
			m.missed++
		} else {
			m.rebuild()
		}
		return m, m.waitForUpdate

	case WindowCreatedMsg:
		m.windows[msg.Info.Label] = msg.Info
		return m, m.waitForUpdate

	case WindowClosedMsg:
		delete(m.windows, msg.Label)
		return m, m.waitForUpdate

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, status("Copy failed: "+msg.err.Error(), true)
		}
		return m, status("Copied to clipboard", false)
	}

	switch m.mode {
	case ModeList:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	case ModeDetail:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	case ModeSearch:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Typing into the search box must not trigger global keys.
	if m.mode != ModeSearch {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			if m.mode == ModeHelp {
				m.mode = ModeList
			} else {
				m.mode = ModeHelp
			}
			return m, nil
		}
	} else if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case ModeList:
		return m.handleListKey(msg)
	case ModeDetail:
		return m.handleDetailKey(msg)
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
		}
		return m, nil
	}

	return m, nil
}

// handleListKey handles keys in list mode.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		m.openSelected()
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if item, ok := m.list.SelectedItem().(eventItem); ok {
			return m, m.copyToClipboard(item.record.PayloadString())
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyID):
		if item, ok := m.list.SelectedItem().(eventItem); ok {
			return m, m.copyToClipboard(item.record.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyAllJSON):
		data, err := json.MarshalIndent(m.visible(), "", "  ")
		if err != nil {
			return m, status("Failed to marshal JSON: "+err.Error(), true)
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.CopyAllYAML):
		views := make([]recordView, 0, len(m.list.Items()))
		for _, r := range m.visible() {
			views = append(views, newRecordView(r))
		}
		data, err := yaml.Marshal(views)
		if err != nil {
			return m, status("Failed to marshal YAML: "+err.Error(), true)
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		if m.paused {
			return m, status("Live updates paused", false)
		}
		missed := m.missed
		m.missed = 0
		m.rebuild()
		return m, status(fmt.Sprintf("Live updates resumed (%d new)", missed), false)

	case key.Matches(msg, m.keys.Search):
		m.startSearch()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Refresh):
		return m, m.load
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleDetailKey handles keys in detail mode.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		m.selected = nil
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if m.selected != nil {
			return m, m.copyToClipboard(m.selected.PayloadString())
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyID):
		if m.selected != nil {
			return m, m.copyToClipboard(m.selected.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.selected = nil
		m.startSearch()
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleSearchKey handles keys in search mode.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeList
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.rebuild()
		return m, nil

	case tea.KeyEnter:
		m.searchInput.Blur()
		if !m.openSelected() {
			// Keep the query applied and return to the list.
			m.mode = ModeList
		}
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	m.searchQuery = m.searchInput.Value()
	m.rebuild()

	return m, cmd
}

func (m *Model) startSearch() {
	m.searchInput.SetValue("")
	m.searchQuery = ""
	m.rebuild()
	m.mode = ModeSearch
	m.searchInput.Focus()
}

// openSelected shows the detail view for the selected item.
func (m *Model) openSelected() bool {
	item, ok := m.list.SelectedItem().(eventItem)
	if !ok {
		return false
	}
	r := item.record
	m.selected = &r
	m.mode = ModeDetail
	m.viewport.SetContent(m.renderDetail(r))
	m.viewport.GotoTop()
	return true
}

// rebuild refreshes the list items from records and the current query.
func (m *Model) rebuild() {
	records, err := applyQuery(m.records, m.searchQuery)
	m.queryErr = err
	records = newestFirst(records)

	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = eventItem{record: r}
	}
	m.list.SetItems(items)
}

// has reports whether a record with id is already held. Signals can repeat
// records that a reload just fetched.
func (m Model) has(id string) bool {
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].ID == id {
			return true
		}
	}
	return false
}

// visible returns the records currently listed.
func (m Model) visible() []model.EventRecord {
	items := m.list.Items()
	records := make([]model.EventRecord, 0, len(items))
	for _, item := range items {
		if ei, ok := item.(eventItem); ok {
			records = append(records, ei.record)
		}
	}
	return records
}

// recordView is the YAML shape of a record, with the payload decoded.
type recordView struct {
	ID      string   `yaml:"id"`
	Event   string   `yaml:"event"`
	Window  string   `yaml:"window,omitempty"`
	Targets []string `yaml:"targets,omitempty"`
	Source  string   `yaml:"source"`
	Time    string   `yaml:"time"`
	Payload any      `yaml:"payload"`
}

func newRecordView(r model.EventRecord) recordView {
	v := recordView{
		ID:      r.ID,
		Event:   r.Event,
		Window:  r.Window,
		Targets: r.Targets,
		Source:  r.Source,
		Time:    r.Time().Format(time.RFC3339Nano),
	}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &v.Payload); err != nil {
			v.Payload = string(r.Payload)
		}
	}
	return v
}

// renderDetail renders the detail view for a record.
func (m Model) renderDetail(r model.EventRecord) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	s := headerStyle.Render(r.Event) + "\n\n"
	s += labelStyle.Render("Source: ") + r.Source + "\n"
	s += labelStyle.Render("Window: ") + windowLabel(r) + "\n"
	s += labelStyle.Render("Time: ") + humanize.Time(r.Time()) + "\n"

	data, err := yaml.Marshal(newRecordView(r))
	if err != nil {
		s += "\n" + labelStyle.Render("Record:") + "\n" + r.PayloadString() + "\n"
		return s
	}
	s += "\n" + labelStyle.Render("Record:") + "\n" + string(data)
	return s
}

// copyToClipboard copies text to the system clipboard.
func (m Model) copyToClipboard(text string) tea.Cmd {
	command := m.clipboard
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text, command)}
	}
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeDetail:
		return m.viewDetail()
	case ModeSearch:
		return m.viewSearch()
	case ModeHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

// windowsBar summarizes the live windows.
func (m Model) windowsBar() string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	if len(m.windows) == 0 {
		return labelStyle.Render("windows: none")
	}

	labels := make([]string, 0, len(m.windows))
	for label := range m.windows {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s(%d)", label, m.windows[label].Loads))
	}
	bar := labelStyle.Render("windows: ") + strings.Join(parts, " ")
	if m.paused {
		bar += lipgloss.NewStyle().Foreground(lipgloss.Color("11")).
			Render(fmt.Sprintf("  [paused, %d new]", m.missed))
	}
	return bar
}

func (m Model) viewList() string {
	s := m.windowsBar() + "\n" + m.list.View()

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + statusStyle.Render(m.statusMsg)
	} else {
		s += "\n" + m.buildKeybindBar(m.width, "list")
	}

	return s
}

func (m Model) viewDetail() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	header := headerStyle.Render("Event Detail")

	return header + "\n" + m.viewport.View() + "\n" + m.buildKeybindBar(m.width, "detail")
}

func (m Model) viewSearch() string {
	countStr := fmt.Sprintf("(%d matches)", len(m.list.Items()))
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	if m.queryErr != nil {
		countStr = "(" + m.queryErr.Error() + ")"
		countStyle = countStyle.Foreground(lipgloss.Color("9"))
	}

	searchBar := "Search: " + m.searchInput.View() + " " + countStyle.Render(countStr)

	return searchBar + "\n" + m.list.View() + "\n" + m.buildKeybindBar(m.width, "search")
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	sectionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	s := titleStyle.Render("Keyboard Shortcuts") + "\n\n"
	s += m.help.FullHelpView(m.keys.FullHelp()) + "\n\n"

	s += sectionStyle.Render("Search") + "\n"
	s += "  Plain text matches event, window, source and payload.\n"
	s += "  field=value terms filter exactly, e.g. event=ping,window=main\n"
	s += "  Fields: event, window, target, source, payload, timestamp\n"
	s += "  Operators: = != ~ ~= and > < >= <= for timestamp ages\n"

	s += "\n" + sectionStyle.Render("Press ? or esc to return")

	return s
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key      string
	desc     string
	priority int // lower = more important (shown first)
}

// buildKeybindBar builds a keybind bar that fits within the given width.
// mode determines which keybinds are shown: "list", "detail", "search"
func (m Model) buildKeybindBar(width int, mode string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind

	switch mode {
	case "list":
		binds = []keybind{
			{"q", "quit", 1},
			{"enter", "view", 2},
			{"?", "help", 3},
			{"/", "search", 4},
			{"p", "pause", 5},
			{"c", "copy payload", 6},
			{"i", "copy id", 7},
			{"r", "reload", 8},
		}
	case "detail":
		binds = []keybind{
			{"q", "quit", 1},
			{"esc", "back", 2},
			{"/", "search", 3},
			{"c", "copy payload", 4},
			{"i", "copy id", 5},
			{"j/k", "scroll", 6},
		}
	case "search":
		binds = []keybind{
			{"enter", "view", 1},
			{"esc", "close", 2},
			{"↑/↓", "navigate", 3},
		}
	}

	sort.SliceStable(binds, func(i, j int) bool { return binds[i].priority < binds[j].priority })

	const separator = "  "
	result := ""
	for _, b := range binds {
		item := keyStyle.Render(b.key) + " " + b.desc
		testLen := lipgloss.Width(b.key + " " + b.desc)
		if result != "" {
			testLen += lipgloss.Width(result) + len(separator)
		}

		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += item
	}

	return style.Render(result)
}

// windowLabel names the window a record belongs to, or its targets for
// broadcasts.
func windowLabel(r model.EventRecord) string {
	switch {
	case r.Window != "":
		return r.Window
	case len(r.Targets) > 0:
		return "*" + strings.Join(r.Targets, ",")
	default:
		return "-"
	}
}

// truncate shortens s to width runes with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
