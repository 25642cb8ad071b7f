package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or a sine wave) at frame cadence.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Chunk
	stopCh   chan struct{}

	chunksRead atomic.Int64

	// Synthetic audio generation.
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64

	// Failure injection.
	startErr error
	// realtime paces generation at the frame duration; off by default so
	// tests run fast.
	realtime bool
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithStartError makes Start fail with the given error.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// WithRealtimePacing makes the mock emit frames at real frame cadence
// instead of as fast as the consumer drains them.
func WithRealtimePacing() MockSourceOption {
	return func(m *MockSource) {
		m.realtime = true
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan Chunk, 8)

	go m.generateLoop()
	return nil
}

func (m *MockSource) generateLoop() {
	var tick <-chan time.Time
	if m.realtime {
		ticker := time.NewTicker(m.cfg.FrameDuration())
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-m.stopCh:
				return
			case <-tick:
			}
		}

		chunk := m.generateChunk()
		select {
		case m.streamCh <- chunk:
			m.chunksRead.Add(1)
		case <-m.stopCh:
			return
		}
	}
}

func (m *MockSource) generateChunk() Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()

	samples := make([]float32, m.cfg.FrameSize*m.cfg.Channels)
	if m.frequency > 0 {
		for i := 0; i < m.cfg.FrameSize; i++ {
			v := float32(m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = v
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}
	return Chunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}
}

// SetTone switches the generated signal. Takes effect on the next chunk.
func (m *MockSource) SetTone(frequency, amplitude float64) {
	m.mu.Lock()
	m.frequency = frequency
	m.amplitude = amplitude
	m.mu.Unlock()
}

// Read reads the next chunk. After Stop it drains whatever the
// generator produced, then returns io.EOF.
func (m *MockSource) Read(ctx context.Context) (Chunk, error) {
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case chunk := <-m.streamCh:
		return chunk, nil
	case <-m.stopCh:
		select {
		case chunk := <-m.streamCh:
			return chunk, nil
		default:
			return Chunk{}, io.EOF
		}
	}
}

// Stop halts generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	return nil
}

// Config returns the configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return "mock" }

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// ChunksRead returns the number of chunks generated.
func (m *MockSource) ChunksRead() int64 { return m.chunksRead.Load() }

// MockSink is a mock audio sink for testing. It records written chunks
// and can optionally block mid-write until released, so tests can cancel
// a render in flight.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	written []Chunk

	startErr error

	// blockCh, when set, makes Write park after recording the chunk
	// until the channel is closed or the context is cancelled.
	blockCh chan struct{}
}

// MockSinkOption configures a MockSink.
type MockSinkOption func(*MockSink)

// WithSinkStartError makes Start fail with the given error.
func WithSinkStartError(err error) MockSinkOption {
	return func(m *MockSink) {
		m.startErr = err
	}
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger, opts ...MockSinkOption) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSink{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start marks the sink running.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	return nil
}

// Write records the chunk. If blocking is enabled, it then parks until
// Release is called or the context is cancelled, mimicking a device that
// is mid-render.
func (m *MockSink) Write(ctx context.Context, chunk Chunk) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	m.written = append(m.written, chunk)
	blockCh := m.blockCh
	m.mu.Unlock()

	if blockCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-blockCh:
		}
	}
	return nil
}

// BlockNextWrites makes subsequent Write calls park until Release.
func (m *MockSink) BlockNextWrites() {
	m.mu.Lock()
	m.blockCh = make(chan struct{})
	m.mu.Unlock()
}

// Release unparks writes blocked by BlockNextWrites.
func (m *MockSink) Release() {
	m.mu.Lock()
	if m.blockCh != nil {
		close(m.blockCh)
		m.blockCh = nil
	}
	m.mu.Unlock()
}

// Written returns a copy of the chunks written so far.
func (m *MockSink) Written() []Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Chunk, len(m.written))
	copy(out, m.written)
	return out
}

// Stop halts the sink.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Config returns the configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return "mock" }

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

// Interface checks.
var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
