package ui

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/zhouzirui/chat-starter/internal/model/chat"
	chatService "github.com/zhouzirui/chat-starter/internal/service/chat"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// title, status, input, footer and the log border
	chromeLines = 6
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	localStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	logPane           = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))
)

// Session is what the terminal view reads and drives.
type Session interface {
	State() chat.ConnectionState
	Entries() []chat.LogEntry
	Send(text string) error
	Subscribe(fn func(chatService.Event)) (cancel func())
}

type sessionEventMsg chatService.Event

// Bridge forwards session events into a channel the program can wait on.
func Bridge(session Session) (<-chan chatService.Event, func()) {
	ch := make(chan chatService.Event, 64)
	done := make(chan struct{})
	unsubscribe := session.Subscribe(func(ev chatService.Event) {
		select {
		case ch <- ev:
		case <-done:
		}
	})

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			unsubscribe()
			close(done)
		})
	}
}

func waitForEvent(ch <-chan chatService.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return sessionEventMsg(ev)
	}
}

// Model renders the status line, the transcript and the input box.
type Model struct {
	session Session
	events  <-chan chatService.Event

	viewport viewport.Model
	input    textinput.Model

	status  chat.ConnectionState
	entries []chat.LogEntry
	err     error
	width   int
}

// New builds the view over session. events may be nil when nothing pushes updates.
func New(session Session, events <-chan chatService.Event) Model {
	ti := textinput.New()
	ti.Placeholder = "Type..."
	ti.Prompt = "> "
	ti.Focus()

	m := Model{
		session:  session,
		events:   events,
		viewport: viewport.New(defaultWidth-2, defaultHeight-chromeLines),
		input:    ti,
		width:    defaultWidth,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	if m.events == nil {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case sessionEventMsg:
		m.refresh()
		if m.events != nil {
			cmds = append(cmds, waitForEvent(m.events))
		}
		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = max(msg.Width-2, 0)
		m.viewport.Height = max(msg.Height-chromeLines, 1)
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit sends the input line; the line is kept when the send fails.
func (m *Model) submit() {
	if err := m.session.Send(m.input.Value()); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.input.Reset()
	m.refresh()
}

func (m *Model) refresh() {
	m.status = m.session.State()
	m.entries = m.session.Entries()

	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		if e.Origin == chat.OriginLocal {
			b.WriteString(localStyle.Render(e.Text))
		} else {
			b.WriteString(e.Text)
		}
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	status := disconnectedStyle.Render(m.status.String())
	if m.status == chat.Connected {
		status = connectedStyle.Render(m.status.String())
	}

	footer := helpStyle.Render("enter: send • esc: quit")
	if m.err != nil {
		footer = errorStyle.Render("error: " + m.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Chat Starter"),
		"Status: "+status,
		logPane.Width(max(m.width-2, 0)).Render(m.viewport.View()),
		m.input.View(),
		footer,
	)
}

// Run drives the terminal UI until the user quits or ctx is cancelled.
func Run(ctx context.Context, session Session, opts ...tea.ProgramOption) error {
	events, cancel := Bridge(session)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(session, events), opts...)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "run terminal ui")
	}
	return nil
}
