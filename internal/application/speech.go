package application

import (
	"context"
	"errors"
	"fmt"
)

var ErrSpeechUnsupported = errors.New("speech output is not available on this system")

// Speaker says one utterance at a time. Speak cancels anything still queued
// before it starts and returns once the utterance finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Cancel()
}

type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// NoopSTT is used when only text sources are configured.
// It returns an error if called with actual audio data.
type NoopSTT struct{}

func (n *NoopSTT) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return "", fmt.Errorf("speech-to-text not configured: set openai.api_key to enable audio transcription")
}
