// Package tui is the interactive chat driver for a conversation session.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"docchat/internal/chat"
	"docchat/internal/domain"
)

type mode int

const (
	modeChat mode = iota
	modePick
)

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service *chat.Service
	session *chat.Session

	input    textinput.Model
	viewport viewport.Model
	mode     mode
	ready    bool
	status   string

	turn      *chat.Turn
	streaming bool
	partial   string

	conversations []*domain.Conversation
	cursor        int
}

// New creates a TUI model driving the given session.
func New(service *chat.Service, session *chat.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type your question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		session:  session,
		input:    ti,
		viewport: vp,
		status:   "Ready. Enter to ask, ctrl+l conversations, ctrl+n new, ctrl+x delete, ctrl+c quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

type turnStartedMsg struct{ turn *chat.Turn }
type deltaMsg struct{ fragment string }
type answerDoneMsg struct{}
type turnFailedMsg struct{ err error }
type conversationsMsg struct{ conversations []*domain.Conversation }
type sessionErrMsg struct{ err error }
type sessionResetMsg struct{}
type sessionSwitchedMsg struct{ session *chat.Session }

// Update handles key and window events and drives the session state machine.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, qh := queryBoxStyle.GetFrameSize()
		_, rh := chatBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()
		return m, nil

	case turnStartedMsg:
		m.turn = msg.turn
		m.streaming = true
		m.partial = ""
		m.status = "Answering..."
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()
		return m, readFragment(m.turn)

	case deltaMsg:
		m.partial += msg.fragment
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()
		return m, readFragment(m.turn)

	case answerDoneMsg:
		m.turn = nil
		m.streaming = false
		m.partial = ""
		m.status = "Done."
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()
		return m, nil

	case turnFailedMsg:
		m.turn = nil
		m.streaming = false
		m.status = "Error: " + msg.err.Error()
		m.viewport.SetContent(m.renderChat())
		return m, nil

	case conversationsMsg:
		m.conversations = msg.conversations
		m.cursor = 0
		m.mode = modePick
		m.viewport.SetContent(m.renderPicker())
		return m, nil

	case sessionResetMsg:
		m.status = "New conversation."
		m.mode = modeChat
		m.viewport.SetContent(m.renderChat())
		return m, nil

	case sessionSwitchedMsg:
		m.session = msg.session
		m.status = "Conversation opened."
		m.mode = modeChat
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()
		return m, nil

	case sessionErrMsg:
		m.status = "Error: " + msg.err.Error()
		m.mode = modeChat
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.turn != nil {
				m.turn.Abort()
			}
			return m, tea.Quit
		}
		if m.mode == modePick {
			return m.updatePicker(msg)
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.streaming {
				m.input.Reset()
				return m, m.submit(q)
			}
		case "ctrl+l":
			if !m.streaming {
				return m, m.loadConversations()
			}
		case "ctrl+n":
			if !m.streaming {
				return m, m.startFresh()
			}
		case "ctrl+x":
			if !m.streaming {
				return m, m.deleteCurrent()
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeChat
		m.viewport.SetContent(m.renderChat())
		return m, nil
	case "down":
		if len(m.conversations) > 0 {
			m.cursor = (m.cursor + 1) % len(m.conversations)
			m.viewport.SetContent(m.renderPicker())
		}
		return m, nil
	case "up":
		if len(m.conversations) > 0 {
			m.cursor = (m.cursor - 1 + len(m.conversations)) % len(m.conversations)
			m.viewport.SetContent(m.renderPicker())
		}
		return m, nil
	case "enter":
		if len(m.conversations) > 0 {
			id := m.conversations[m.cursor].ID
			return m, m.openConversation(id)
		}
		return m, nil
	}
	return m, nil
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	conv := m.session.Conversation()
	titleText := conv.Title
	if titleText == "" {
		titleText = "New conversation"
	}
	header := headerStyle.Render(titleText) + "  " + collectionStyle.Render("["+m.session.Collection()+"]")
	body := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderChat() string {
	conv := m.session.Conversation()
	var b strings.Builder
	if len(conv.Messages) == 0 && !m.streaming {
		fmt.Fprintf(&b, "Hi! I'm your assistant for the %q collection. Ask me anything about it.\n", m.session.Collection())
	}
	for _, msg := range conv.Messages {
		if msg.Role == domain.RoleUser {
			b.WriteString(userLabelStyle.Render("You: ") + msg.Text + "\n\n")
		} else {
			b.WriteString(assistantLabelStyle.Render("Assistant: ") + msg.Text + "\n\n")
		}
	}
	if m.streaming {
		if m.turn != nil {
			b.WriteString(userLabelStyle.Render("You: ") + m.turn.Question() + "\n\n")
		}
		b.WriteString(assistantLabelStyle.Render("Assistant: ") + m.partial)
	}
	return b.String()
}

func (m Model) renderPicker() string {
	var b strings.Builder
	b.WriteString("Conversations (enter to open, esc to cancel):\n\n")
	if len(m.conversations) == 0 {
		b.WriteString("No saved conversations for this collection.\n")
		return b.String()
	}
	for i, c := range m.conversations {
		titleText := c.Title
		if titleText == "" {
			titleText = "(untitled)"
		}
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%s  (%d messages)\n", marker, titleText, len(c.Messages))
	}
	return b.String()
}

func (m Model) submit(question string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		turn, err := session.Submit(context.Background(), question)
		if err != nil {
			return turnFailedMsg{err: err}
		}
		return turnStartedMsg{turn: turn}
	}
}

func readFragment(turn *chat.Turn) tea.Cmd {
	return func() tea.Msg {
		fragment, err := turn.Next(context.Background())
		if err == io.EOF {
			return answerDoneMsg{}
		}
		if err != nil {
			return turnFailedMsg{err: err}
		}
		return deltaMsg{fragment: fragment}
	}
}

func (m Model) loadConversations() tea.Cmd {
	service := m.service
	collection := m.session.Collection()
	return func() tea.Msg {
		conversations, err := service.Store().ListConversations(context.Background(), collection)
		if err != nil {
			return sessionErrMsg{err: err}
		}
		return conversationsMsg{conversations: conversations}
	}
}

func (m Model) openConversation(id string) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		opened, err := service.OpenSession(context.Background(), id)
		if err != nil {
			return sessionErrMsg{err: err}
		}
		return sessionSwitchedMsg{session: opened}
	}
}

func (m Model) startFresh() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		if err := session.SwitchCollection(context.Background(), session.Collection()); err != nil {
			return sessionErrMsg{err: err}
		}
		return sessionResetMsg{}
	}
}

func (m Model) deleteCurrent() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		if err := session.Delete(context.Background()); err != nil {
			return sessionErrMsg{err: err}
		}
		return sessionResetMsg{}
	}
}
