package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voice-terminal/internal/application"
)

// Recognizer adapts a Source and a transcriber to the controller's
// single-utterance contract.
type Recognizer struct {
	source  Source
	stt     application.SpeechToText
	timeout time.Duration
	logger  *slog.Logger
}

func NewRecognizer(source Source, stt application.SpeechToText, timeout time.Duration, logger *slog.Logger) *Recognizer {
	if stt == nil {
		stt = &application.NoopSTT{}
	}
	return &Recognizer{
		source:  source,
		stt:     stt,
		timeout: timeout,
		logger:  logger,
	}
}

func (r *Recognizer) Name() string {
	return r.source.Name()
}

func (r *Recognizer) Ready(ctx context.Context) error {
	if err := r.source.Open(ctx); err != nil {
		return fmt.Errorf("opening %s source: %w", r.source.Name(), err)
	}
	return nil
}

// Listen returns one transcript. A capture that times out without an
// utterance yields an empty transcript, not an error.
func (r *Recognizer) Listen(ctx context.Context) (string, error) {
	defer func() {
		if err := r.source.Close(); err != nil {
			r.logger.Warn("closing capture source", "source", r.source.Name(), "error", err)
		}
	}()

	listenCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		listenCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	utt, err := r.source.Next(listenCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", nil
		}
		return "", fmt.Errorf("capturing utterance: %w", err)
	}

	if utt.Empty() {
		return "", nil
	}
	if utt.Text != "" {
		return strings.TrimSpace(utt.Text), nil
	}

	r.logger.Info("received audio", "source", r.source.Name(), "bytes", len(utt.Audio))

	text, err := r.stt.Transcribe(ctx, utt.Audio)
	if err != nil {
		return "", fmt.Errorf("transcribing: %w", err)
	}
	return text, nil
}
