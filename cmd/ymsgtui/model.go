package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aeolun/ymsg/pkg/botlib"
	"github.com/aeolun/ymsg/pkg/client"
	"github.com/aeolun/ymsg/pkg/protocol"
)

const maxLogLines = 200

var now = time.Now

var (
	PrimaryColor = lipgloss.Color("205")
	MutedColor   = lipgloss.Color("240")
	OnlineColor  = lipgloss.Color("42")
	AwayColor    = lipgloss.Color("214")
	ErrorColor   = lipgloss.Color("196")

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	timeStyle  = lipgloss.NewStyle().Foreground(MutedColor)
	errorStyle = lipgloss.NewStyle().Foreground(ErrorColor)
)

// EventMsg carries one bot event into the program
type EventMsg botlib.Event

// BotDoneMsg is sent when Run returns
type BotDoneMsg struct {
	Err error
}

// buddyItem adapts a buddy to the list component
type buddyItem botlib.Buddy

func (i buddyItem) FilterValue() string { return i.Name }

func (i buddyItem) Title() string {
	return stateDot(i.State) + " " + i.Name
}

func (i buddyItem) Description() string {
	var parts []string
	if len(i.Groups) > 0 {
		parts = append(parts, i.Groups[0])
	}
	if i.Status != "" {
		parts = append(parts, i.Status)
	}
	if i.Idle != 0 {
		parts = append(parts, formatIdle(i.Idle, now()))
	}
	if len(parts) == 0 {
		return i.State
	}
	return strings.Join(parts, " · ")
}

func stateDot(state string) string {
	switch state {
	case client.StateAvailable:
		return lipgloss.NewStyle().Foreground(OnlineColor).Render("●")
	case client.StateAway:
		return lipgloss.NewStyle().Foreground(AwayColor).Render("●")
	default:
		return lipgloss.NewStyle().Foreground(MutedColor).Render("○")
	}
}

// formatIdle renders the idle-since time a buddy reports; -1 hides it
func formatIdle(since int64, at time.Time) string {
	if since < 0 {
		return "idle"
	}
	d := at.Sub(time.Unix(since, 0)).Round(time.Minute)
	if d < time.Hour {
		return fmt.Sprintf("idle %dm", int(d.Minutes()))
	}
	return fmt.Sprintf("idle %dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// buddyItems orders online buddies first and keeps the roster order otherwise
func buddyItems(buddies []botlib.Buddy, showOffline bool) []list.Item {
	var online, offline []list.Item
	for _, b := range buddies {
		if b.IsOnline() {
			online = append(online, buddyItem(b))
		} else if showOffline {
			offline = append(offline, buddyItem(b))
		}
	}
	return append(online, offline...)
}

// logLine renders an event for the log panel
func logLine(ev botlib.Event) string {
	line := timeStyle.Render(ev.Time.Format("15:04:05")) + " " + ev.String()
	if ev.Kind == botlib.EventError || ev.Kind == botlib.EventDisconnected {
		return errorStyle.Render(line)
	}
	return line
}

type keyMap struct {
	Quit        key.Binding
	Buzz        key.Binding
	Away        key.Binding
	ShowOffline key.Binding
}

var keys = keyMap{
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Buzz:        key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "buzz")),
	Away:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle away")),
	ShowOffline: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "offline buddies")),
}

// Model is the buddy list monitor
type Model struct {
	bot  *botlib.Bot
	done <-chan error

	buddies     list.Model
	log         []string
	status      string
	away        bool
	showOffline bool

	width  int
	height int

	finished bool
	err      error
}

func NewModel(bot *botlib.Bot, done <-chan error) Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Buddies"
	l.SetShowStatusBar(false)
	l.Styles.Title = HeaderStyle
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Buzz, keys.Away, keys.ShowOffline}
	}

	return Model{
		bot:     bot,
		done:    done,
		buddies: l,
		status:  "Connecting...",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.bot.Events()),
		waitForBot(m.done),
	)
}

func waitForEvent(events <-chan botlib.Event) tea.Cmd {
	return func() tea.Msg {
		return EventMsg(<-events)
	}
}

func waitForBot(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return BotDoneMsg{Err: <-done}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.buddies.SetSize(m.listWidth(), msg.Height-4)
		return m, nil

	case EventMsg:
		m.apply(botlib.Event(msg))
		cmd := m.buddies.SetItems(buddyItems(m.bot.Buddies(), m.showOffline))
		return m, tea.Batch(cmd, waitForEvent(m.bot.Events()))

	case BotDoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		// keys go to the filter input while it is open
		if m.buddies.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, keys.Quit):
			m.bot.Stop()
			return m, nil
		case key.Matches(msg, keys.Buzz):
			if item, ok := m.buddies.SelectedItem().(buddyItem); ok {
				m.do(func(s *client.Session) error { return s.SendBuzz(item.Name) })
				m.addLog(timeStyle.Render(now().Format("15:04:05")) + " buzzed " + item.Name)
			}
			return m, nil
		case key.Matches(msg, keys.Away):
			m.away = !m.away
			if m.away {
				m.do(func(s *client.Session) error { return s.SetStatus(protocol.StatusCustom, "Away from keyboard") })
			} else {
				m.do(func(s *client.Session) error { return s.SetStatus(protocol.StatusAvailable, "") })
			}
			return m, nil
		case key.Matches(msg, keys.ShowOffline):
			m.showOffline = !m.showOffline
			return m, m.buddies.SetItems(buddyItems(m.bot.Buddies(), m.showOffline))
		}
	}

	var cmd tea.Cmd
	m.buddies, cmd = m.buddies.Update(msg)
	return m, cmd
}

func (m *Model) do(fn func(s *client.Session) error) {
	if err := m.bot.Do(fn); err != nil {
		m.addLog(errorStyle.Render(err.Error()))
	}
}

// apply updates the status line and the log from an event
func (m *Model) apply(ev botlib.Event) {
	switch ev.Kind {
	case botlib.EventConnected:
		m.status = "Online as " + ev.Who
	case botlib.EventDisconnected:
		m.status = "Disconnected"
	case botlib.EventTyping, botlib.EventBuddyList:
		return
	}
	m.addLog(logLine(ev))
}

func (m *Model) addLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m Model) listWidth() int {
	w := m.width / 3
	if w < 24 {
		w = 24
	}
	return w
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := HeaderStyle.Render("ymsg") + FooterStyle.Render(m.status)

	logWidth := m.width - m.listWidth() - 4
	if logWidth < 20 {
		logWidth = 20
	}
	logHeight := m.height - 4
	lines := m.log
	if len(lines) > logHeight {
		lines = lines[len(lines)-logHeight:]
	}
	logPanel := PanelStyle.
		Width(logWidth).
		Height(logHeight).
		Render(strings.Join(lines, "\n"))

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.buddies.View(), logPanel)
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}
