// Package vad implements voice activity detection based on per-frame RMS
// energy. The detector answers "is the user speaking right now" for each
// frame; it does not attempt end-of-utterance detection. Spurious single
// frame triggers are absorbed downstream by the interruption debounce, so
// the threshold is tuned low for sensitivity.
package vad

import (
	"math"
	"sync"
	"time"
)

// DefaultThreshold is the RMS energy level above which a frame counts as
// speech. Empirically tuned for sensitivity over false-positive risk.
const DefaultThreshold = 0.01

// State is a read-only snapshot of the detector.
type State struct {
	// Speaking reports whether the most recent frame exceeded the threshold.
	Speaking bool

	// LastTransition is when Speaking last changed value.
	LastTransition time.Time

	// FramesObserved counts frames processed since creation.
	FramesObserved int64
}

// Detector classifies audio frames as speech or silence.
// It is safe for concurrent use, though in practice Process is called
// inline on the capture path only.
type Detector struct {
	threshold float64
	now       func() time.Time

	mu             sync.Mutex
	speaking       bool
	lastTransition time.Time
	framesObserved int64
}

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold overrides the RMS energy threshold.
func WithThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// WithClock overrides the clock used for transition timestamps.
// Used by tests to avoid wall-clock dependence.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// New creates a Detector with the default threshold.
func New(opts ...Option) *Detector {
	d := &Detector{
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Process classifies one frame of float samples and returns true if it is
// speech. A silent or empty frame is simply "not speaking"; there is no
// failure mode. Speaking asserts the instant one frame exceeds the
// threshold, with no minimum-duration requirement.
func (d *Detector) Process(samples []float32) bool {
	speaking := RMS(samples) >= d.threshold

	d.mu.Lock()
	d.framesObserved++
	if speaking != d.speaking {
		d.speaking = speaking
		d.lastTransition = d.now()
	}
	d.mu.Unlock()

	return speaking
}

// State returns a snapshot of the detector state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		Speaking:       d.speaking,
		LastTransition: d.lastTransition,
		FramesObserved: d.framesObserved,
	}
}

// Reset clears the detector back to silence.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.speaking = false
	d.lastTransition = time.Time{}
	d.framesObserved = 0
	d.mu.Unlock()
}

// RMS computes the root-mean-square energy of a frame.
// Returns 0 for an empty frame.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
