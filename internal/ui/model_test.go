package ui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-terminal/internal/application"
	"voice-terminal/internal/domain"
	"voice-terminal/internal/gate"
)

type fakeKeypad struct {
	pressed    []rune
	backspaces int
	clears     int
}

func (k *fakeKeypad) Press(d rune) bool {
	k.pressed = append(k.pressed, d)
	return true
}

func (k *fakeKeypad) Backspace() {
	k.backspaces++
}

func (k *fakeKeypad) Clear() {
	k.clears++
}

func (k *fakeKeypad) State() gate.State {
	return gate.State{Status: gate.StatusIdle}
}

type fakeVoice struct {
	retries   int
	mic       []bool
	submitted []string
	snap      application.Snapshot
}

func (v *fakeVoice) Retry() {
	v.retries++
}

func (v *fakeVoice) SetMicEnabled(enabled bool) {
	v.mic = append(v.mic, enabled)
}

func (v *fakeVoice) SubmitText(text string) {
	v.submitted = append(v.submitted, text)
}

func (v *fakeVoice) Snapshot() application.Snapshot {
	return v.snap
}

func newTestModel() (Model, *fakeKeypad, *fakeVoice) {
	k := &fakeKeypad{}
	v := &fakeVoice{snap: application.Snapshot{Phase: domain.PhaseLocked, MicEnabled: true}}
	return NewModel(k, v, nil), k, v
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func TestModel_LockScreenForwardsKeys(t *testing.T) {
	m, k, v := newTestModel()

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("22")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	update(t, m, tea.KeyMsg{Type: tea.KeyTab})

	assert.Equal(t, []rune{'2', '2'}, k.pressed)
	assert.Equal(t, 1, k.backspaces)
	assert.Equal(t, 1, k.clears)
	assert.Empty(t, v.mic)
}

func TestModel_LockViewShowsEnteredDigits(t *testing.T) {
	m, _, _ := newTestModel()

	m = update(t, m, GateMsg(gate.State{Entered: 2, Status: gate.StatusIdle}))
	view := m.View()
	assert.Contains(t, view, "●")
	assert.Contains(t, view, "Enter access code")

	m = update(t, m, GateMsg(gate.State{Entered: 6, Status: gate.StatusDenied}))
	assert.Contains(t, m.View(), "Access denied")
}

func TestModel_ConversationKeys(t *testing.T) {
	m, k, v := newTestModel()
	m = update(t, m, VoiceMsg(application.Snapshot{Phase: domain.PhaseListening, MicEnabled: true}))

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hello")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []bool{false}, v.mic)
	assert.Equal(t, 1, v.retries)
	assert.Equal(t, []string{"hello"}, v.submitted)
	assert.Empty(t, k.pressed)
}

func TestModel_ConversationView(t *testing.T) {
	m, _, _ := newTestModel()
	m = update(t, m, VoiceMsg(application.Snapshot{
		Phase: domain.PhaseError,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "what time is it"},
			{Role: domain.RoleAssistant, Content: "noon"},
		},
		Failure: &domain.Failure{Kind: domain.FailureReply, Title: "Connection problem", Detail: "status 500"},
	}))

	view := m.View()
	assert.Contains(t, view, "ERROR")
	assert.Contains(t, view, "what time is it")
	assert.Contains(t, view, "noon")
	assert.Contains(t, view, "Connection problem")
	assert.Contains(t, view, "mic off")
}

func TestModel_CtrlCQuits(t *testing.T) {
	m, _, _ := newTestModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestRelay_KeepsLatest(t *testing.T) {
	r := NewRelay()
	r.OnVoice(application.Snapshot{Phase: domain.PhaseBooting})
	r.OnVoice(application.Snapshot{Phase: domain.PhaseListening})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Pump(ctx)

	select {
	case msg := <-r.Updates():
		snap, ok := msg.(VoiceMsg)
		require.True(t, ok)
		assert.Equal(t, domain.PhaseListening, snap.Phase)
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}
}
