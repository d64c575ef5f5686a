package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voice-terminal/internal/application"
	"voice-terminal/internal/domain"
	"voice-terminal/internal/gate"
)

// Keypad is the part of the access gate the lock screen drives.
type Keypad interface {
	Press(digit rune) bool
	Backspace()
	Clear()
	State() gate.State
}

// Voice is the part of the controller the conversation screen drives.
type Voice interface {
	Retry()
	SetMicEnabled(enabled bool)
	SubmitText(text string)
	Snapshot() application.Snapshot
}

type GateMsg gate.State

type VoiceMsg application.Snapshot

// Model renders gate and controller state. It never changes either on its
// own; every key is forwarded and the result arrives as a GateMsg or VoiceMsg.
type Model struct {
	keypad Keypad
	voice  Voice

	gateState gate.State
	snapshot  application.Snapshot

	spinner spinner.Model
	input   textinput.Model
	updates <-chan tea.Msg

	width  int
	height int
}

func NewModel(keypad Keypad, voice Voice, updates <-chan tea.Msg) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	ti := textinput.New()
	ti.Placeholder = "type a message and press enter"
	ti.CharLimit = 500
	ti.Width = 60

	return Model{
		keypad:    keypad,
		voice:     voice,
		gateState: keypad.State(),
		snapshot:  voice.Snapshot(),
		spinner:   sp,
		input:     ti,
		updates:   updates,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

func waitForUpdate(updates <-chan tea.Msg) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case GateMsg:
		m.gateState = gate.State(msg)
		return m, waitForUpdate(m.updates)

	case VoiceMsg:
		m.snapshot = application.Snapshot(msg)
		if m.snapshot.Phase != domain.PhaseLocked && !m.input.Focused() {
			m.input.Focus()
		}
		return m, waitForUpdate(m.updates)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.snapshot.Phase == domain.PhaseLocked {
			return m.updateLock(msg), nil
		}
		return m.updateConversation(msg)
	}

	return m, nil
}

func (m Model) updateLock(msg tea.KeyMsg) Model {
	switch msg.Type {
	case tea.KeyBackspace:
		m.keypad.Backspace()
	case tea.KeyEsc:
		m.keypad.Clear()
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.keypad.Press(r)
		}
	}
	return m
}

func (m Model) updateConversation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab:
		m.voice.SetMicEnabled(!m.snapshot.MicEnabled)
		return m, nil
	case tea.KeyCtrlR:
		m.voice.Retry()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		if text != "" {
			m.voice.SubmitText(text)
			m.input.Reset()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var body string
	switch m.snapshot.Phase {
	case domain.PhaseLocked:
		body = m.lockView()
	case domain.PhaseBooting:
		body = m.bootView()
	default:
		body = m.conversationView()
	}

	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}
	return body
}

func (m Model) lockView() string {
	slots := make([]string, gate.CodeLength)
	for i := range slots {
		mark := "·"
		if i < m.gateState.Entered {
			mark = "●"
		}
		slots[i] = SlotStyle.Render(mark)
	}

	var border lipgloss.TerminalColor = Border
	var status string
	switch m.gateState.Status {
	case gate.StatusDenied:
		border = Danger
		status = FailureTitleStyle.Render("Access denied")
	case gate.StatusPassed:
		border = Success
		status = AssistantStyle.Render("Access granted")
	default:
		status = HelpStyle.Render("Enter access code")
	}

	panel := PanelStyle.BorderForeground(border).Render(lipgloss.JoinHorizontal(lipgloss.Center, slots...))
	help := HelpStyle.Render("0-9 enter · backspace delete · esc clear · ctrl+c quit")

	return lipgloss.JoinVertical(lipgloss.Center, TitleStyle.Render("Voice Terminal"), panel, status, help)
}

func (m Model) bootView() string {
	return lipgloss.JoinVertical(lipgloss.Center,
		TitleStyle.Render("Voice Terminal"),
		fmt.Sprintf("%s Starting up...", m.spinner.View()),
	)
}

func (m Model) conversationView() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Voice Terminal"))
	b.WriteString("\n")
	b.WriteString(phaseBadge(m.snapshot.Phase))
	if m.snapshot.Phase == domain.PhaseThinking {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("  ")
	if m.snapshot.MicEnabled {
		b.WriteString(HelpStyle.UnsetMarginTop().Render("mic on"))
	} else {
		b.WriteString(HelpStyle.UnsetMarginTop().Render("mic off"))
	}
	b.WriteString("\n\n")

	for _, msg := range m.snapshot.Messages {
		if msg.Role == domain.RoleUser {
			b.WriteString(UserStyle.Render("You: "))
		} else {
			b.WriteString(AssistantStyle.Render("Assistant: "))
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	if f := m.snapshot.Failure; f != nil {
		b.WriteString("\n")
		b.WriteString(FailureTitleStyle.Render(f.Title))
		b.WriteString("\n")
		if f.Detail != "" {
			b.WriteString(FailureDetailStyle.Render(f.Detail))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("tab mic · ctrl+r retry · enter send · ctrl+c quit"))

	return b.String()
}

func phaseBadge(p domain.Phase) string {
	var color lipgloss.Color
	switch p {
	case domain.PhaseListening:
		color = Info
	case domain.PhaseThinking:
		color = Warning
	case domain.PhaseSpeaking:
		color = Success
	case domain.PhaseError:
		color = Danger
	default:
		color = lipgloss.Color("#525252")
	}
	return badgeStyle(color).Render(strings.ToUpper(p.String()))
}
