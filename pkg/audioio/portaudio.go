package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

var (
	paInitMu   sync.Mutex
	paInitRefs int
)

// paInit reference-counts PortAudio initialization so a source and a sink
// can share the library lifecycle.
func paInit() error {
	paInitMu.Lock()
	defer paInitMu.Unlock()
	if paInitRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("%w: initialize: %v", ErrDeviceUnavailable, err)
		}
	}
	paInitRefs++
	return nil
}

func paTerminate() {
	paInitMu.Lock()
	defer paInitMu.Unlock()
	if paInitRefs == 0 {
		return
	}
	paInitRefs--
	if paInitRefs == 0 {
		_ = portaudio.Terminate()
	}
}

// classifyDeviceErr maps a PortAudio open failure onto the package's error
// taxonomy. Permission failures are reported distinctly where the platform
// surfaces them.
func classifyDeviceErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "access denied") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

// PortAudioSource captures audio from the default input device.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	stream   *portaudio.Stream
	running  bool
	closed   bool
	streamCh chan Chunk
	errCh    chan error
	stopCh   chan struct{}
	doneCh   chan struct{}

	overruns atomic.Int64
}

// NewPortAudioSource creates a capture source for the default input device.
func NewPortAudioSource(cfg Config, logger *slog.Logger) (*PortAudioSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudioSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio"),
	}, nil
}

// Start opens the input device and begins the capture loop.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := paInit(); err != nil {
		return err
	}

	buffer := make([]float32, s.cfg.FrameSize*s.cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(
		s.cfg.Channels, // input channels
		0,              // no output
		float64(s.cfg.SampleRate),
		s.cfg.FrameSize,
		buffer,
	)
	if err != nil {
		paTerminate()
		return classifyDeviceErr(err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		paTerminate()
		return classifyDeviceErr(err)
	}

	s.stream = stream
	s.running = true
	s.streamCh = make(chan Chunk, 8)
	s.errCh = make(chan error, 1)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.captureLoop(stream, buffer, s.streamCh, s.errCh, s.stopCh, s.doneCh)

	s.logger.Info("capture started",
		"sample_rate", s.cfg.SampleRate,
		"frame_size", s.cfg.FrameSize,
	)
	return nil
}

// captureLoop is the sole writer of out and closes it when it exits, so
// Read observes io.EOF only after the loop has let go of the stream. The
// stream and buffer stay loop-local; Stop never touches them while the
// loop runs.
func (s *PortAudioSource) captureLoop(stream *portaudio.Stream, buffer []float32, out chan<- Chunk, errCh chan<- error, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				// Device delivered late; the frame is still valid.
				s.overruns.Add(1)
			} else {
				select {
				case errCh <- fmt.Errorf("%w: read: %v", ErrDeviceUnavailable, err):
				case <-stopCh:
				}
				return
			}
		}

		frame := make([]float32, len(buffer))
		copy(frame, buffer)

		select {
		case out <- Chunk{Samples: frame, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}:
		case <-stopCh:
			return
		}
	}
}

// Read returns the next captured chunk. Returns io.EOF after Stop, or a
// device error if the device failed mid-stream.
func (s *PortAudioSource) Read(ctx context.Context) (Chunk, error) {
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case err := <-s.errCh:
		return Chunk{}, err
	case chunk, ok := <-s.streamCh:
		if !ok {
			return Chunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stop halts capture and releases the device. The device is closed only
// after the capture loop has exited, so the loop never observes a released
// stream.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stream := s.stream
	done := s.doneCh
	s.stream = nil
	close(s.stopCh)
	s.mu.Unlock()

	// Abort unblocks a loop parked in a device read.
	_ = stream.Abort()
	<-done
	_ = stream.Close()
	paTerminate()

	s.logger.Info("capture stopped", "overruns", s.overruns.Load())
	return nil
}

// Config returns the device configuration.
func (s *PortAudioSource) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSource) Name() string { return "portaudio" }

// Close releases all resources.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// PortAudioSink plays audio on the default output device.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []float32
	running bool
	closed  bool

	underruns atomic.Int64
}

// NewPortAudioSink creates a playback sink for the default output device.
func NewPortAudioSink(cfg Config, logger *slog.Logger) (*PortAudioSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudioSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio"),
	}, nil
}

// Start opens the output device.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := paInit(); err != nil {
		return err
	}

	s.buffer = make([]float32, s.cfg.FrameSize*s.cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(
		0, // no input
		s.cfg.Channels,
		float64(s.cfg.SampleRate),
		s.cfg.FrameSize,
		s.buffer,
	)
	if err != nil {
		paTerminate()
		return classifyDeviceErr(err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		paTerminate()
		return classifyDeviceErr(err)
	}

	s.stream = stream
	s.running = true

	s.logger.Info("playback started",
		"sample_rate", s.cfg.SampleRate,
		"frame_size", s.cfg.FrameSize,
	)
	return nil
}

// Write renders a chunk in device-sized blocks, checking ctx between
// blocks so cancellation stops the chunk mid-render rather than after it.
func (s *PortAudioSink) Write(ctx context.Context, chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return io.ErrClosedPipe
	}

	block := len(s.buffer)
	samples := chunk.Samples
	for off := 0; off < len(samples); off += block {
		select {
		case <-ctx.Done():
			// Drop whatever the device still holds of this chunk.
			_ = s.stream.Abort()
			_ = s.stream.Start()
			return ctx.Err()
		default:
		}

		end := off + block
		n := block
		if end > len(samples) {
			end = len(samples)
			n = end - off
		}
		copy(s.buffer, samples[off:end])
		// Zero-pad a trailing partial block.
		for i := n; i < block; i++ {
			s.buffer[i] = 0
		}

		if err := s.stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				s.underruns.Add(1)
				continue
			}
			return fmt.Errorf("%w: write: %v", ErrDeviceUnavailable, err)
		}
	}
	return nil
}

// Stop halts playback and releases the device.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	_ = s.stream.Stop()
	_ = s.stream.Close()
	s.stream = nil
	paTerminate()

	s.logger.Info("playback stopped", "underruns", s.underruns.Load())
	return nil
}

// Config returns the device configuration.
func (s *PortAudioSink) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSink) Name() string { return "portaudio" }

// Close releases all resources.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Interface checks.
var (
	_ Source = (*PortAudioSource)(nil)
	_ Sink   = (*PortAudioSink)(nil)
)
