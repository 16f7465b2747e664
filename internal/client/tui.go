package client

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lox/roomwager/internal/protocol"
)

const sidebarWidth = 28

var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#626262"))

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("#04B575"))

	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)
)

// eventMsg carries one event from the connection into the TUI
type eventMsg protocol.Event

// closedMsg reports that the event stream ended
type closedMsg struct{}

// TUIModel is a bubbletea model with a scrolling room log and an input line
type TUIModel struct {
	room string
	user string

	say    func(string) error
	events <-chan protocol.Event

	lines    []string
	viewport viewport.Model
	input    textinput.Model

	width, height int
	closed        bool
	quitting      bool
}

// NewTUIModel creates a model that sends lines with say and renders events
// read from events
func NewTUIModel(room, user string, say func(string) error, events <-chan protocol.Event) *TUIModel {
	vp := viewport.New(10, 5)

	ti := textinput.New()
	ti.Placeholder = "start, join, bet player 50, draw, status, help"
	ti.Focus()
	ti.CharLimit = protocol.MaxTextLength
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)

	return &TUIModel{
		room:     room,
		user:     user,
		say:      say,
		events:   events,
		viewport: vp,
		input:    ti,
	}
}

// Init starts the cursor blink and the event listener
func (m *TUIModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent())
}

func (m *TUIModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update handles key presses, resizes and incoming events
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "/quit" {
				m.quitting = true
				return m, tea.Quit
			}
			if line != "" && !m.closed {
				if err := m.say(line); err != nil {
					m.append(ErrorStyle.Render("send failed: " + err.Error()))
				}
			}
			return m, nil
		case "pgup":
			m.viewport.HalfPageUp()
			return m, nil
		case "pgdown":
			m.viewport.HalfPageDown()
			return m, nil
		}

	case eventMsg:
		m.append(Render(protocol.Event(msg)))
		return m, m.waitForEvent()

	case closedMsg:
		m.closed = true
		m.append(ErrorStyle.Render("Connection closed. Press esc to exit."))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *TUIModel) append(line string) {
	m.lines = append(m.lines, line)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// resize fits the log to the window, leaving room for the sidebar and the
// three-line input pane
func (m *TUIModel) resize() {
	w := m.width - sidebarWidth - 4
	h := m.height - 3 - 2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = m.width - 6
	m.viewport.GotoBottom()
}

// View renders the log, sidebar and input panes
func (m *TUIModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Connecting..."
	}

	logPane := paneStyle.
		Width(m.viewport.Width).
		Height(m.viewport.Height).
		Render(m.viewport.View())

	sidebar := paneStyle.
		Width(sidebarWidth).
		Height(m.viewport.Height).
		Render(m.sidebar())

	inputPane := focusedPaneStyle.
		Width(max(m.width-2, 1)).
		Render(m.input.View())

	top := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebar)
	return lipgloss.JoinVertical(lipgloss.Left, top, inputPane)
}

func (m *TUIModel) sidebar() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("#" + m.room))
	b.WriteString("\n\n")
	b.WriteString(SenderStyle.Render(m.user))
	b.WriteString("\n\n")
	b.WriteString(TimeStyle.Render("Enter sends a line\nPgUp/PgDn scroll\n/quit or esc exits"))
	if m.closed {
		b.WriteString("\n\n")
		b.WriteString(ErrorStyle.Render("disconnected"))
	}
	return b.String()
}

// RunTUI runs the full-screen interface until the user quits or ctx is
// cancelled
func RunTUI(ctx context.Context, c *Client) error {
	model := NewTUIModel(c.cfg.Room, c.cfg.UserID, c.Say, c.Events())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	_ = c.Close()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
