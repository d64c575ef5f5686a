package domain

type Phase string

const (
	PhaseLocked    Phase = "locked"
	PhaseBooting   Phase = "booting"
	PhaseIdle      Phase = "idle"
	PhaseListening Phase = "listening"
	PhaseThinking  Phase = "thinking"
	PhaseSpeaking  Phase = "speaking"
	PhaseError     Phase = "error"
)

func (p Phase) String() string {
	return string(p)
}
