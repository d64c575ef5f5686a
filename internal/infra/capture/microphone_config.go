package capture

import "time"

type MicrophoneConfig struct {
	SampleRate  int
	Silence     time.Duration
	MaxDuration time.Duration
	VADMode     int
}

func DefaultMicrophoneConfig() MicrophoneConfig {
	return MicrophoneConfig{
		SampleRate:  16000,
		Silence:     1200 * time.Millisecond,
		MaxDuration: 15 * time.Second,
		VADMode:     2,
	}
}
