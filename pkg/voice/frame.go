package voice

import (
	"time"
)

// AudioFrame is one fixed-duration slice of mono audio samples, tagged
// with a monotonic sequence number and its capture timestamp. Immutable
// once produced.
type AudioFrame struct {
	// Seq is assigned in strictly increasing order by the producer.
	Seq int64

	// Samples are mono float32 in [-1, 1].
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// CapturedAt is when the frame left the device.
	CapturedAt time.Time
}

// Duration returns the audio length of the frame.
func (f *AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

// PlaybackQueueEntry is one inbound audio chunk awaiting playback.
// Entries are strictly ordered by arrival and carry no retry semantics:
// a flushed entry is simply never played.
type PlaybackQueueEntry struct {
	// Seq is the arrival order of the chunk.
	Seq int64

	// PCM is the raw PCM16 little-endian payload from the wire.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// EnqueuedAt is the receipt timestamp.
	EnqueuedAt time.Time
}
