package client

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/roomwager/internal/protocol"
)

func newTestTUI(say func(string) error) (*TUIModel, chan protocol.Event) {
	events := make(chan protocol.Event, 4)
	m := NewTUIModel("lobby", "alice", say, events)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, events
}

func TestTUIModel_EnterSendsLine(t *testing.T) {
	var sent []string
	m, _ := newTestTUI(func(s string) error {
		sent = append(sent, s)
		return nil
	})

	m.input.SetValue("  bet player 50 ")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"bet player 50"}, sent)
	assert.Empty(t, m.input.Value())

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, sent, 1, "blank lines are not sent")
}

func TestTUIModel_SendFailureIsShown(t *testing.T) {
	m, _ := newTestTUI(func(string) error { return errors.New("boom") })

	m.input.SetValue("start")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, m.lines, 1)
	assert.Contains(t, m.lines[0], "send failed: boom")
}

func TestTUIModel_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		m, _ := newTestTUI(func(string) error { return nil })
		_, cmd := m.Update(key)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.Empty(t, m.View())
	}

	var sent []string
	m, _ := newTestTUI(func(s string) error {
		sent = append(sent, s)
		return nil
	})
	m.input.SetValue("/quit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, sent)
}

func TestTUIModel_EventsAreRendered(t *testing.T) {
	m, events := newTestTUI(func(string) error { return nil })

	events <- protocol.Event{
		Kind:    protocol.KindBroadcast,
		Room:    "lobby",
		Sender:  "Dealer",
		Content: "Betting is open",
		Time:    time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}

	msg := m.waitForEvent()()
	_, cmd := m.Update(msg)
	assert.NotNil(t, cmd, "keeps listening after an event")

	require.Len(t, m.lines, 1)
	assert.Contains(t, m.lines[0], "Betting is open")
	assert.Contains(t, m.View(), "lobby")
}

func TestTUIModel_ClosedStream(t *testing.T) {
	var sent []string
	m, events := newTestTUI(func(s string) error {
		sent = append(sent, s)
		return nil
	})
	close(events)

	msg := m.waitForEvent()()
	assert.IsType(t, closedMsg{}, msg)
	m.Update(msg)

	assert.True(t, m.closed)
	assert.True(t, strings.Contains(m.View(), "disconnected"))

	m.input.SetValue("start")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, sent)
}

func TestTUIModel_ViewBeforeResize(t *testing.T) {
	m := NewTUIModel("lobby", "alice", func(string) error { return nil }, make(chan protocol.Event))
	assert.Equal(t, "Connecting...", m.View())
}
