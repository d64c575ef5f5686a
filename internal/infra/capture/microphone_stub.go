//go:build !portaudio
// +build !portaudio

package capture

import (
	"context"
	"fmt"
	"log/slog"

	"voice-terminal/internal/application"
)

// MicrophoneSource stub when portaudio is not available
type MicrophoneSource struct {
	logger *slog.Logger
}

func NewMicrophoneSource(cfg MicrophoneConfig, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Open(_ context.Context) error {
	return fmt.Errorf("%w: rebuild with -tags portaudio", application.ErrCaptureUnsupported)
}

func (m *MicrophoneSource) Close() error {
	return nil
}

func (m *MicrophoneSource) Next(_ context.Context) (Utterance, error) {
	return Utterance{}, application.ErrCaptureUnsupported
}
