package application

import (
	"context"
	"errors"
)

var (
	ErrCaptureUnsupported = errors.New("speech capture is not available on this system")
	ErrPermissionDenied   = errors.New("microphone access was denied")
)

// Recognizer captures one finalized utterance per activation. Cancelling
// the context passed to Listen aborts the capture immediately.
type Recognizer interface {
	// Ready requests access to the capture device. The controller calls it
	// once per activation, before Listen.
	Ready(ctx context.Context) error
	// Listen blocks until one utterance is finalized. An empty string means
	// the capture ended without speech.
	Listen(ctx context.Context) (string, error)
	Name() string
}
