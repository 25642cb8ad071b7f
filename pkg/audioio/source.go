package audioio

import (
	"context"
	"errors"
	"io"
)

// Device-level errors. Both are terminal for the current capture or
// playback attempt; the session layer decides what to do with them.
var (
	// ErrPermissionDenied indicates the platform refused access to the
	// device. The caller must re-request; there is no automatic retry.
	ErrPermissionDenied = errors.New("audioio: device access denied")

	// ErrDeviceUnavailable indicates the device could not be opened or
	// failed mid-stream.
	ErrDeviceUnavailable = errors.New("audioio: device unavailable")
)

// Chunk is one fixed-size frame of mono float32 samples in [-1, 1].
type Chunk struct {
	// Samples contains interleaved float32 samples.
	Samples []float32

	// SampleRate is the sample rate of this chunk.
	SampleRate int

	// Channels is the number of channels in this chunk.
	Channels int
}

// Duration returns the duration of this chunk in seconds.
func (c *Chunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture. Fails with ErrPermissionDenied or
	// ErrDeviceUnavailable if the device cannot be opened.
	Start(ctx context.Context) error

	// Stop halts audio capture. Safe to call multiple times.
	Stop() error

	// Read reads the next chunk, blocking if necessary.
	// Returns io.EOF when the source is stopped, or a device error if
	// the underlying device failed mid-stream.
	Read(ctx context.Context) (Chunk, error)

	// Config returns the device configuration.
	Config() Config

	// Name returns the backend name (e.g. "portaudio", "mock").
	Name() string

	// Close releases all resources. The source cannot be restarted.
	io.Closer
}
