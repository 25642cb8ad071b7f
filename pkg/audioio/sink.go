package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Start opens the output device. Fails with ErrDeviceUnavailable if
	// it cannot be opened.
	Start(ctx context.Context) error

	// Stop halts playback. Safe to call multiple times.
	Stop() error

	// Write renders one chunk, blocking until the device has consumed
	// it. Cancelling the context abandons the remainder of the chunk so
	// no further samples reach the speaker.
	Write(ctx context.Context, chunk Chunk) error

	// Config returns the device configuration.
	Config() Config

	// Name returns the backend name (e.g. "portaudio", "mock").
	Name() string

	// Close releases all resources. The sink cannot be restarted.
	io.Closer
}
