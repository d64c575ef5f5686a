package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"voice-terminal/internal/application"
)

// Engine describes a text-to-speech command line tool that speaks its last
// argument and exits when done.
type Engine struct {
	Binary    string
	VoiceFlag string
	RateFlag  string
}

var Engines = map[string]Engine{
	"say":       {Binary: "say", VoiceFlag: "-v", RateFlag: "-r"},
	"espeak":    {Binary: "espeak", VoiceFlag: "-v", RateFlag: "-s"},
	"espeak-ng": {Binary: "espeak-ng", VoiceFlag: "-v", RateFlag: "-s"},
}

// CommandSpeaker speaks through an external TTS command. Only one utterance
// runs at a time: starting a new one kills the previous process.
type CommandSpeaker struct {
	engine Engine
	voice  string
	rate   int
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

func NewCommandSpeaker(engine Engine, voice string, rate int, logger *slog.Logger) *CommandSpeaker {
	return &CommandSpeaker{
		engine: engine,
		voice:  voice,
		rate:   rate,
		logger: logger,
	}
}

// NewNamed looks the engine up in Engines.
func NewNamed(name, voice string, rate int, logger *slog.Logger) (*CommandSpeaker, error) {
	engine, ok := Engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown speech engine %q", name)
	}
	return NewCommandSpeaker(engine, voice, rate, logger), nil
}

// Available reports whether the engine binary can be found.
func (s *CommandSpeaker) Available() bool {
	_, err := exec.LookPath(s.engine.Binary)
	return err == nil
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	path, err := exec.LookPath(s.engine.Binary)
	if err != nil {
		return fmt.Errorf("%w: %s not found", application.ErrSpeechUnsupported, s.engine.Binary)
	}

	uttCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	cmd := exec.CommandContext(uttCtx, path, s.args(text)...)
	s.logger.Debug("speaking", "engine", s.engine.Binary, "chars", len(text))

	if err := cmd.Run(); err != nil {
		if uttCtx.Err() != nil {
			return uttCtx.Err()
		}
		return fmt.Errorf("running %s: %w", s.engine.Binary, err)
	}
	return nil
}

func (s *CommandSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *CommandSpeaker) args(text string) []string {
	var args []string
	if s.voice != "" && s.engine.VoiceFlag != "" {
		args = append(args, s.engine.VoiceFlag, s.voice)
	}
	if s.rate > 0 && s.engine.RateFlag != "" {
		args = append(args, s.engine.RateFlag, strconv.Itoa(s.rate))
	}
	return append(args, text)
}
