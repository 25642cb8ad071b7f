// Package audioio provides the audio device boundary for the voice pipeline:
// microphone capture (Source) and speaker playback (Sink).
//
// Backends:
//   - PortAudio - cross-platform capture and playback on real hardware
//   - Mock - testing without hardware
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio device configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	Backend Backend `json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels.
	Channels int `json:"channels"`

	// FrameSize is the number of samples per frame per channel.
	FrameSize int `json:"frame_size"`

	// EchoCancellation asks the platform for acoustic echo cancellation
	// if it offers it. A hint, not a guarantee.
	EchoCancellation bool `json:"echo_cancellation"`

	// NoiseSuppression asks the platform for noise suppression if it
	// offers it. A hint, not a guarantee.
	NoiseSuppression bool `json:"noise_suppression"`
}

// DefaultInputConfig returns the capture configuration: 16 kHz mono with
// 4096-sample frames, echo cancellation and noise suppression requested.
func DefaultInputConfig() Config {
	return Config{
		Backend:          BackendPortAudio,
		SampleRate:       16000,
		Channels:         1,
		FrameSize:        4096,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// DefaultOutputConfig returns the playback configuration: 24 kHz mono,
// matching the remote service's output rate.
func DefaultOutputConfig() Config {
	return Config{
		Backend:    BackendPortAudio,
		SampleRate: 24000,
		Channels:   1,
		FrameSize:  1024,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audioio: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("audioio: channels must be positive, got %d", c.Channels)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("audioio: frame_size must be positive, got %d", c.FrameSize)
	}
	return nil
}

// FrameDuration returns the duration of one frame of audio.
func (c *Config) FrameDuration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(c.FrameSize) / float64(c.SampleRate) * float64(time.Second))
}
