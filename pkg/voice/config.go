package voice

import (
	"fmt"
	"time"

	"github.com/phronesislabs/phronesis-voice/pkg/audioio"
	"github.com/phronesislabs/phronesis-voice/pkg/conversation"
)

// Config holds the settings for a voice session.
type Config struct {
	// Mode selects the conversation style (learn, quiz, scroll, coding).
	Mode conversation.Mode

	// Topic is the subject being studied.
	Topic string

	// Concept optionally narrows the topic to a single concept.
	Concept string

	// APIKey authenticates against the realtime model endpoint. When
	// empty, CredentialsURL is consulted instead.
	APIKey string

	// CredentialsURL is an endpoint returning {"apiKey": "..."} used
	// when APIKey is not set directly.
	CredentialsURL string

	// Model is the realtime model identifier.
	Model string

	// Voice is the name of the synthesized voice.
	Voice string

	// Input configures the capture device.
	Input audioio.Config

	// Output configures the playback device.
	Output audioio.Config

	// VADThreshold is the RMS energy above which a frame counts as
	// user speech.
	VADThreshold float64

	// InterruptDebounce is the minimum gap between two interruption
	// events. Speech triggers inside the window are absorbed.
	InterruptDebounce time.Duration

	// InterruptCooldown is how long stale model audio keeps being
	// discarded after an interruption.
	InterruptCooldown time.Duration
}

// DefaultConfig returns a Config with production defaults: 16kHz mono
// capture in 4096-sample frames, 24kHz playback, and the standard
// interruption timing.
func DefaultConfig() Config {
	return Config{
		Mode:              conversation.ModeLearn,
		Model:             conversation.DefaultModel,
		Voice:             conversation.DefaultVoice,
		Input:             audioio.DefaultInputConfig(),
		Output:            audioio.DefaultOutputConfig(),
		VADThreshold:      0.01,
		InterruptDebounce: 500 * time.Millisecond,
		InterruptCooldown: 1500 * time.Millisecond,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.APIKey == "" && c.CredentialsURL == "" {
		return fmt.Errorf("voice: either APIKey or CredentialsURL is required")
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("voice: VAD threshold must be in [0, 1], got %v", c.VADThreshold)
	}
	if c.InterruptDebounce < 0 {
		return fmt.Errorf("voice: interrupt debounce must be non-negative")
	}
	if c.InterruptCooldown < 0 {
		return fmt.Errorf("voice: interrupt cooldown must be non-negative")
	}
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("voice: input config: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("voice: output config: %w", err)
	}
	return nil
}

// WithMode returns a copy with the conversation mode set.
func (c Config) WithMode(m conversation.Mode) Config {
	c.Mode = m
	return c
}

// WithTopic returns a copy with topic and concept set.
func (c Config) WithTopic(topic, concept string) Config {
	c.Topic = topic
	c.Concept = concept
	return c
}

// WithAPIKey returns a copy with the API key set.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}
