package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"voice-terminal/internal/application"
	"voice-terminal/internal/gate"
)

// Relay forwards state changes to the program. Observers never block: each
// kind keeps only its latest pending value, older ones are replaced.
type Relay struct {
	out   chan tea.Msg
	gate  chan GateMsg
	voice chan VoiceMsg
}

func NewRelay() *Relay {
	return &Relay{
		out:   make(chan tea.Msg),
		gate:  make(chan GateMsg, 1),
		voice: make(chan VoiceMsg, 1),
	}
}

func (r *Relay) Updates() <-chan tea.Msg {
	return r.out
}

func (r *Relay) OnGate(state gate.State) {
	replaceLatest(r.gate, GateMsg(state))
}

func (r *Relay) OnVoice(snap application.Snapshot) {
	replaceLatest(r.voice, VoiceMsg(snap))
}

func replaceLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Pump moves pending updates to Updates until ctx is done.
func (r *Relay) Pump(ctx context.Context) {
	for {
		var msg tea.Msg
		select {
		case <-ctx.Done():
			return
		case m := <-r.gate:
			msg = m
		case m := <-r.voice:
			msg = m
		}
		select {
		case <-ctx.Done():
			return
		case r.out <- msg:
		}
	}
}

// Run shows the TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, keypad Keypad, voice Voice, relay *Relay) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go relay.Pump(ctx)

	program := tea.NewProgram(
		NewModel(keypad, voice, relay.Updates()),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running terminal ui: %w", err)
	}
	return nil
}
