//go:build portaudio
// +build portaudio

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"voice-terminal/internal/application"
)

// MicrophoneSource records one utterance from the default input device and
// ends it after a stretch of silence detected by the WebRTC VAD.
type MicrophoneSource struct {
	cfg    MicrophoneConfig
	logger *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	frame  []int16
	vad    *webrtcvad.VAD
}

func NewMicrophoneSource(cfg MicrophoneConfig, logger *slog.Logger) *MicrophoneSource {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultMicrophoneConfig().SampleRate
	}
	return &MicrophoneSource{cfg: cfg, logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

// Open initializes PortAudio and opens the default input stream. A device
// that cannot be opened is reported as denied access.
func (m *MicrophoneSource) Open(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}

	vad, err := webrtcvad.New()
	if err != nil {
		return fmt.Errorf("%w: creating VAD: %v", application.ErrCaptureUnsupported, err)
	}
	if err := vad.SetMode(m.cfg.VADMode); err != nil {
		return fmt.Errorf("setting VAD mode: %w", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initializing portaudio: %v", application.ErrCaptureUnsupported, err)
	}

	// 30ms frames, one of the lengths the VAD accepts.
	frame := make([]int16, m.cfg.SampleRate*30/1000)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.cfg.SampleRate), len(frame), frame)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: opening input stream: %v", application.ErrPermissionDenied, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: starting input stream: %v", application.ErrPermissionDenied, err)
	}

	m.stream = stream
	m.frame = frame
	m.vad = vad

	m.logger.Debug("microphone opened", "sampleRate", m.cfg.SampleRate)
	return nil
}

func (m *MicrophoneSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	m.stream.Stop()
	err := m.stream.Close()
	portaudio.Terminate()
	m.stream = nil
	m.vad = nil

	if err != nil {
		return fmt.Errorf("closing input stream: %w", err)
	}
	return nil
}

// Next records until speech is followed by the configured silence, or the
// maximum duration is reached. Without any speech it returns an empty
// utterance.
func (m *MicrophoneSource) Next(ctx context.Context) (Utterance, error) {
	m.mu.Lock()
	stream, frame, vad := m.stream, m.frame, m.vad
	m.mu.Unlock()

	if stream == nil {
		return Utterance{}, fmt.Errorf("microphone is not open")
	}

	frameDur := time.Duration(len(frame)) * time.Second / time.Duration(m.cfg.SampleRate)
	samples := make([]int16, 0, m.cfg.SampleRate*5)
	heard := false
	var silence, elapsed time.Duration

	for {
		select {
		case <-ctx.Done():
			return Utterance{}, ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return Utterance{}, fmt.Errorf("reading from stream: %w", err)
		}
		elapsed += frameDur

		active, err := vad.Process(m.cfg.SampleRate, int16ToBytes(frame))
		if err != nil {
			return Utterance{}, fmt.Errorf("VAD processing failed: %w", err)
		}

		if active {
			heard = true
			silence = 0
		} else {
			silence += frameDur
		}

		if heard {
			samples = append(samples, frame...)
		}

		if heard && silence >= m.cfg.Silence {
			break
		}
		if elapsed >= m.cfg.MaxDuration {
			break
		}
	}

	if !heard {
		return Utterance{}, nil
	}

	m.logger.Debug("utterance recorded", "samples", len(samples))
	return Utterance{Audio: encodeWAV(samples, m.cfg.SampleRate)}, nil
}
