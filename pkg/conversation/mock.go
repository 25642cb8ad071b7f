package conversation

import (
	"context"
	"encoding/json"
	"sync"
)

// Mock is an in-memory Channel for testing. It records outbound traffic
// and exposes Simulate helpers to drive the inbound callbacks.
type Mock struct {
	mu        sync.Mutex
	connected bool

	// ConnectErr, when set, is returned by Connect.
	ConnectErr error

	// AudioSent records every uplink frame.
	AudioSent [][]byte

	// TextSent records every text control message.
	TextSent []string

	inputRate  int
	outputRate int

	onAudio        func(pcm16 []byte)
	onTranscript   func(role, text string, isFinal bool)
	onInterrupted  func()
	onTurnComplete func()
	onCompletion   func(payload json.RawMessage)
	onError        func(err error)
	onClose        func(err error)
}

// NewMock creates a mock channel with the service's standard rates.
func NewMock() *Mock {
	return &Mock{inputRate: 16000, outputRate: 24000}
}

// Connect marks the channel connected.
func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// Close marks the channel disconnected.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected reports the connection flag.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SendAudio records an uplink frame.
func (m *Mock) SendAudio(pcm16 []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	frame := make([]byte, len(pcm16))
	copy(frame, pcm16)
	m.AudioSent = append(m.AudioSent, frame)
	return nil
}

// SendText records a text message.
func (m *Mock) SendText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.TextSent = append(m.TextSent, text)
	return nil
}

// Callback setters.

func (m *Mock) OnAudio(fn func(pcm16 []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = fn
}

func (m *Mock) OnTranscript(fn func(role, text string, isFinal bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscript = fn
}

func (m *Mock) OnInterrupted(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInterrupted = fn
}

func (m *Mock) OnTurnComplete(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTurnComplete = fn
}

func (m *Mock) OnCompletion(fn func(payload json.RawMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCompletion = fn
}

func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

func (m *Mock) OnClose(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

// InputSampleRate returns the uplink rate.
func (m *Mock) InputSampleRate() int { return m.inputRate }

// OutputSampleRate returns the downlink rate.
func (m *Mock) OutputSampleRate() int { return m.outputRate }

// Simulate helpers drive inbound callbacks from tests.

// SimulateAudio delivers a downlink audio chunk.
func (m *Mock) SimulateAudio(pcm16 []byte) {
	m.mu.Lock()
	fn := m.onAudio
	m.mu.Unlock()
	if fn != nil {
		fn(pcm16)
	}
}

// SimulateTranscript delivers a transcription event.
func (m *Mock) SimulateTranscript(role, text string, isFinal bool) {
	m.mu.Lock()
	fn := m.onTranscript
	m.mu.Unlock()
	if fn != nil {
		fn(role, text, isFinal)
	}
}

// SimulateInterrupted delivers a service-side interruption event.
func (m *Mock) SimulateInterrupted() {
	m.mu.Lock()
	fn := m.onInterrupted
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SimulateTurnComplete delivers an end-of-turn event.
func (m *Mock) SimulateTurnComplete() {
	m.mu.Lock()
	fn := m.onTurnComplete
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SimulateCompletion delivers a completion payload.
func (m *Mock) SimulateCompletion(payload json.RawMessage) {
	m.mu.Lock()
	fn := m.onCompletion
	m.mu.Unlock()
	if fn != nil {
		fn(payload)
	}
}

// SimulateError delivers an asynchronous error.
func (m *Mock) SimulateError(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// SimulateClose marks the channel disconnected and delivers the close
// event.
func (m *Mock) SimulateClose(err error) {
	m.mu.Lock()
	m.connected = false
	fn := m.onClose
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Ensure Mock implements Channel.
var _ Channel = (*Mock)(nil)
