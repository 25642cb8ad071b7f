package voice

import (
	"sync"
	"time"
)

// Metrics is a snapshot of pipeline counters and barge-in latency for
// one session.
type Metrics struct {
	// FramesCaptured is the number of microphone frames read.
	FramesCaptured int64

	// FramesSent is the number of frames delivered uplink.
	FramesSent int64

	// FramesDropped is the number of frames discarded because the
	// channel was down or the send failed.
	FramesDropped int64

	// ChunksReceived is the number of model audio chunks that arrived.
	ChunksReceived int64

	// ChunksPlayed is the number of chunks rendered to completion.
	ChunksPlayed int64

	// ChunksDiscarded counts chunks dropped by flush or cooldown.
	ChunksDiscarded int64

	// Interruptions is the number of barge-in events.
	Interruptions int64

	// LastBargeInLatency is speech-detection to playback-cut for the
	// most recent interruption.
	LastBargeInLatency time.Duration
}

// MetricsCollector aggregates counters from the pipeline stages. It is
// goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics

	onUpdate func(Metrics)
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// OnUpdate sets a callback fired after each interruption is recorded.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// RecordChunkReceived notes one inbound model audio chunk.
func (m *MetricsCollector) RecordChunkReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ChunksReceived++
}

// RecordChunkDiscarded notes n chunks dropped before playback.
func (m *MetricsCollector) RecordChunkDiscarded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ChunksDiscarded += int64(n)
}

// RecordInterruption notes one barge-in and its cut latency.
func (m *MetricsCollector) RecordInterruption(latency time.Duration) {
	m.mu.Lock()
	m.current.Interruptions++
	m.current.LastBargeInLatency = latency
	fn := m.onUpdate
	snapshot := m.current
	m.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// Snapshot merges the live stage counters into the collected state and
// returns the result.
func (m *MetricsCollector) Snapshot(capture *CaptureStream, uplink *UplinkSender, engine *PlaybackEngine) Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.current
	if capture != nil {
		out.FramesCaptured = capture.FramesCaptured()
	}
	if uplink != nil {
		out.FramesSent = uplink.Sent()
		out.FramesDropped = uplink.Dropped()
	}
	if engine != nil {
		out.ChunksPlayed = engine.FramesPlayed()
	}
	return out
}
