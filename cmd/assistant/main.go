package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voice-terminal/config"
	"voice-terminal/internal/application"
	"voice-terminal/internal/gate"
	"voice-terminal/internal/infra/capture"
	"voice-terminal/internal/infra/openai"
	"voice-terminal/internal/infra/reply"
	"voice-terminal/internal/infra/speech"
	"voice-terminal/internal/ui"
)

var (
	configPath string
	headless   bool
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "PIN-gated voice assistant terminal",
	Long: `assistant unlocks with a keypad code, then listens for speech,
sends each transcript to the reply endpoint and speaks the answer.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "read the access code from stdin and log instead of drawing a UI")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg.Log, headless)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source := createSource(cfg.Capture, logger)
	if srv, ok := source.(interface {
		Start(context.Context) error
		Stop() error
	}); ok {
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting %s source: %w", source.Name(), err)
		}
		defer func() {
			if err := srv.Stop(); err != nil {
				logger.Warn("stopping capture source", "error", err)
			}
		}()
	}

	var stt application.SpeechToText = &application.NoopSTT{}
	if cfg.OpenAI.APIKey != "" {
		stt = openai.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.Language)
	} else {
		logger.Warn("no openai api key, audio utterances will not be transcribed")
	}

	recognizer := capture.NewRecognizer(source, stt, config.Duration(cfg.Capture.UtteranceTimeout), logger)
	replies := reply.NewClient(cfg.Reply.URL, cfg.Reply.AuthToken, config.Duration(cfg.Reply.Timeout))

	controller := application.NewController(
		recognizer,
		createSpeaker(cfg.Speech, logger),
		replies,
		application.Timing{
			BootDelay:        config.Duration(cfg.Timing.Boot),
			SettleDelay:      config.Duration(cfg.Timing.Settle),
			RearmDelay:       config.Duration(cfg.Timing.Rearm),
			PlaceholderDelay: config.Duration(cfg.Timing.Placeholder),
		},
		logger,
	)
	if !*cfg.Capture.MicEnabled {
		controller.SetMicEnabled(false)
	}

	keypad := gate.New(gate.AccessCode, gate.Timing{
		DenyCooldown:  config.Duration(cfg.Timing.DenyCooldown),
		PassAnimation: config.Duration(cfg.Timing.PassAnim),
	}, controller.Start, logger)
	defer keypad.Close()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- controller.Run(ctx)
	}()

	logger.Info("starting voice terminal",
		"capture_source", source.Name(),
		"speech_engine", cfg.Speech.Engine,
		"headless", headless,
	)

	if headless {
		err = runHeadless(ctx, os.Stdin, keypad, controller, logger)
	} else {
		relay := ui.NewRelay()
		keypad.Subscribe(relay.OnGate)
		controller.Subscribe(relay.OnVoice)
		err = ui.Run(ctx, keypad, controller, relay)
	}

	controller.Close()
	cancel()
	if loopErr := <-loopErr; loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		logger.Error("voice loop stopped", "error", loopErr)
	}
	return err
}

// runHeadless feeds stdin lines to the keypad until it unlocks, then submits
// each further line as typed text.
func runHeadless(ctx context.Context, in io.Reader, keypad *gate.Gate, controller *application.Controller, logger *slog.Logger) error {
	keypad.Subscribe(func(s gate.State) {
		logger.Info("keypad", "entered", s.Entered, "status", s.Status)
	})
	controller.Subscribe(func(s application.Snapshot) {
		attrs := []any{"phase", s.Phase, "mic", s.MicEnabled, "messages", len(s.Messages)}
		if s.Failure != nil {
			attrs = append(attrs, "failure", s.Failure.Error())
		}
		logger.Info("voice", attrs...)
		if n := len(s.Messages); n > 0 {
			last := s.Messages[n-1]
			logger.Debug("message", "role", last.Role, "content", last.Content)
		}
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			if keypad.State().Status != gate.StatusPassed {
				for _, r := range line {
					keypad.Press(r)
				}
				continue
			}
			controller.SubmitText(line)
		}
	}
}

func createSource(cfg config.CaptureConfig, logger *slog.Logger) capture.Source {
	switch cfg.Source {
	case "http":
		return capture.NewHTTPSource(cfg.HTTPAddr, cfg.AuthToken, logger)
	case "file":
		return capture.NewFileSource(cfg.FileDir)
	default:
		return capture.NewMicrophoneSource(capture.MicrophoneConfig{
			SampleRate:  cfg.SampleRate,
			Silence:     time.Duration(cfg.SilenceMs) * time.Millisecond,
			MaxDuration: time.Duration(cfg.MaxSeconds) * time.Second,
			VADMode:     *cfg.VADMode,
		}, logger)
	}
}

func createSpeaker(cfg config.SpeechConfig, logger *slog.Logger) application.Speaker {
	if cfg.Engine == "none" {
		return nil
	}
	speaker, err := speech.NewNamed(cfg.Engine, cfg.Voice, cfg.Rate, logger)
	if err != nil {
		logger.Warn("speech output disabled", "error", err)
		return nil
	}
	if !speaker.Available() {
		logger.Warn("speech engine not installed, replies will not be spoken", "engine", cfg.Engine)
	}
	return speaker
}

func setupLogger(cfg config.LogConfig, toStdout bool) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if !toStdout {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closeFn, nil
}
