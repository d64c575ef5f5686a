package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Reply   ReplyConfig   `yaml:"reply"`
	Speech  SpeechConfig  `yaml:"speech"`
	Timing  TimingConfig  `yaml:"timing"`
	Log     LogConfig     `yaml:"log"`
}

type CaptureConfig struct {
	Source           string `yaml:"source"`
	HTTPAddr         string `yaml:"http_addr"`
	AuthToken        string `yaml:"auth_token"`
	FileDir          string `yaml:"file_dir"`
	SampleRate       int    `yaml:"sample_rate"`
	SilenceMs        int    `yaml:"silence_ms"`
	MaxSeconds       int    `yaml:"max_seconds"`
	VADMode          *int   `yaml:"vad_mode"`
	UtteranceTimeout string `yaml:"utterance_timeout"`
	MicEnabled       *bool  `yaml:"mic_enabled"`
}

type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
}

type ReplyConfig struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token"`
	Timeout   string `yaml:"timeout"`
}

type SpeechConfig struct {
	Engine string `yaml:"engine"`
	Voice  string `yaml:"voice"`
	Rate   int    `yaml:"rate"`
}

type TimingConfig struct {
	Boot         string `yaml:"boot"`
	Settle       string `yaml:"settle"`
	Rearm        string `yaml:"rearm"`
	Placeholder  string `yaml:"placeholder"`
	DenyCooldown string `yaml:"deny_cooldown"`
	PassAnim     string `yaml:"pass_animation"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Capture.Source == "" {
		c.Capture.Source = "microphone"
	}
	if c.Capture.HTTPAddr == "" {
		c.Capture.HTTPAddr = ":8080"
	}
	if c.Capture.FileDir == "" {
		c.Capture.FileDir = "./utterances"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.SilenceMs == 0 {
		c.Capture.SilenceMs = 1200
	}
	if c.Capture.MaxSeconds == 0 {
		c.Capture.MaxSeconds = 15
	}
	if c.Capture.VADMode == nil {
		mode := 2
		c.Capture.VADMode = &mode
	}
	if c.Capture.UtteranceTimeout == "" {
		c.Capture.UtteranceTimeout = "20s"
	}
	if c.Capture.MicEnabled == nil {
		enabled := true
		c.Capture.MicEnabled = &enabled
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "en"
	}
	if c.Reply.Timeout == "" {
		c.Reply.Timeout = "30s"
	}
	if c.Speech.Engine == "" {
		c.Speech.Engine = "espeak"
	}
	if c.Timing.Boot == "" {
		c.Timing.Boot = "2400ms"
	}
	if c.Timing.Settle == "" {
		c.Timing.Settle = "300ms"
	}
	if c.Timing.Rearm == "" {
		c.Timing.Rearm = "400ms"
	}
	if c.Timing.Placeholder == "" {
		c.Timing.Placeholder = "1600ms"
	}
	if c.Timing.DenyCooldown == "" {
		c.Timing.DenyCooldown = "650ms"
	}
	if c.Timing.PassAnim == "" {
		c.Timing.PassAnim = "900ms"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.File == "" {
		c.Log.File = "assistant.log"
	}
}

func (c *Config) validate() error {
	if c.Reply.URL == "" {
		return fmt.Errorf("reply.url is required")
	}
	switch c.Capture.Source {
	case "microphone", "http", "file":
	default:
		return fmt.Errorf("unknown capture source %q", c.Capture.Source)
	}
	switch c.Capture.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("capture.sample_rate %d is not supported by the voice detector (8000, 16000, 32000 or 48000)", c.Capture.SampleRate)
	}
	if mode := *c.Capture.VADMode; mode < 0 || mode > 3 {
		return fmt.Errorf("capture.vad_mode %d out of range 0-3", mode)
	}
	durations := map[string]string{
		"capture.utterance_timeout": c.Capture.UtteranceTimeout,
		"reply.timeout":             c.Reply.Timeout,
		"timing.boot":               c.Timing.Boot,
		"timing.settle":             c.Timing.Settle,
		"timing.rearm":              c.Timing.Rearm,
		"timing.placeholder":        c.Timing.Placeholder,
		"timing.deny_cooldown":      c.Timing.DenyCooldown,
		"timing.pass_animation":     c.Timing.PassAnim,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	}
	return nil
}

// Duration parses a value that validate already accepted.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
