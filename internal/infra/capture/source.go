package capture

import "context"

// Utterance is what a source produced for one activation: either text that
// was already transcribed or raw audio that still needs transcription.
type Utterance struct {
	Text  string
	Audio []byte
}

// Empty reports whether the activation ended without speech.
func (u Utterance) Empty() bool {
	return u.Text == "" && len(u.Audio) == 0
}

// Source is a capture device. Open and Close bracket a single activation.
type Source interface {
	Name() string
	Open(ctx context.Context) error
	Next(ctx context.Context) (Utterance, error)
	Close() error
}
