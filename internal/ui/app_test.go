package ui

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-starter/internal/model/chat"
	chatService "github.com/zhouzirui/chat-starter/internal/service/chat"
)

type stubSession struct {
	mu      sync.Mutex
	state   chat.ConnectionState
	entries []chat.LogEntry
	sendErr error
	subs    []func(chatService.Event)
}

func (s *stubSession) State() chat.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubSession) Entries() []chat.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.LogEntry(nil), s.entries...)
}

func (s *stubSession) Send(text string) error {
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.entries = append(s.entries, chat.Echo(text, time.Time{}))
	return nil
}

func (s *stubSession) Subscribe(fn func(chatService.Event)) func() {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
	return func() {}
}

func (s *stubSession) receive(text string) {
	s.mu.Lock()
	entry := chat.LogEntry{Text: text, Origin: chat.OriginRemote}
	s.entries = append(s.entries, entry)
	subs := slices.Clone(s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(chatService.Event{Kind: chatService.EventEntryAppended, Entry: entry})
	}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func pressEnter(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model)
}

func TestViewShowsStatus(t *testing.T) {
	session := &stubSession{}
	m := New(session, nil)
	assert.Contains(t, m.View(), "Status: ")
	assert.Contains(t, m.View(), "disconnected")
	assert.Contains(t, m.View(), "Chat Starter")

	session.state = chat.Connected
	next, _ := m.Update(sessionEventMsg{Kind: chatService.EventStateChanged, State: chat.Connected})
	view := next.(Model).View()
	assert.Contains(t, view, "connected")
	assert.NotContains(t, view, "disconnected")
}

func TestEnterSendsAndClearsInput(t *testing.T) {
	session := &stubSession{state: chat.Connected}
	m := typeText(t, New(session, nil), "hello")
	require.Equal(t, "hello", m.input.Value())

	m = pressEnter(t, m)

	assert.Equal(t, "", m.input.Value())
	require.Len(t, session.Entries(), 1)
	assert.Equal(t, "you: hello", session.Entries()[0].Text)
	assert.Contains(t, m.View(), "you: hello")
}

func TestEnterWithEmptyInput(t *testing.T) {
	session := &stubSession{state: chat.Connected}
	m := pressEnter(t, New(session, nil))

	assert.Empty(t, session.Entries())
	assert.Nil(t, m.err)
}

func TestSendFailureKeepsInput(t *testing.T) {
	session := &stubSession{sendErr: chatService.ErrNotConnected}
	m := pressEnter(t, typeText(t, New(session, nil), "hello"))

	assert.Equal(t, "hello", m.input.Value())
	assert.True(t, errors.Is(m.err, chatService.ErrNotConnected))
	assert.Contains(t, m.View(), "not connected")
}

func TestTypingDoesNotScrollLog(t *testing.T) {
	session := &stubSession{state: chat.Connected}
	m := typeText(t, New(session, nil), "jk bf")
	assert.Equal(t, "jk bf", m.input.Value())
}

func TestBridgeDeliversEvents(t *testing.T) {
	session := &stubSession{state: chat.Connected}
	events, cancel := Bridge(session)
	defer cancel()

	m := New(session, events)
	go session.receive("from server")

	msg := waitForEvent(events)()
	next, cmd := m.Update(msg)
	assert.NotNil(t, cmd)

	assert.Contains(t, next.(Model).View(), "from server")
	lines := next.(Model).entries
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0].Text, "from"))
}

func TestQuitKeys(t *testing.T) {
	m := New(&stubSession{}, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
