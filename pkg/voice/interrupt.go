package voice

import (
	"log/slog"
	"sync"
	"time"
)

// TurnState tracks who holds the conversational floor.
type TurnState int

const (
	// TurnIdle: no model audio pending or playing.
	TurnIdle TurnState = iota

	// TurnAiSpeaking: model audio is queued or rendering.
	TurnAiSpeaking

	// TurnInterrupted: the user barged in; playback was cut and the
	// queue flushed. Transient, resolves to TurnCooldown immediately.
	TurnInterrupted

	// TurnCooldown: stale model audio still in flight on the wire is
	// being discarded until the window expires.
	TurnCooldown
)

// String returns the state name.
func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnAiSpeaking:
		return "ai_speaking"
	case TurnInterrupted:
		return "interrupted"
	case TurnCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// InterruptionEvent describes one barge-in.
type InterruptionEvent struct {
	// At is when the triggering speech frame was observed.
	At time.Time

	// FramesDiscarded is how many queued chunks the flush dropped.
	FramesDiscarded int

	// CooldownUntil is when stale-audio discarding stops.
	CooldownUntil time.Time
}

// InterruptionController owns the barge-in state machine. User speech
// while the model is talking cancels the in-flight render, flushes the
// downlink queue, and opens a cooldown window during which late model
// audio is discarded rather than enqueued.
//
// The clock is injectable so the debounce and cooldown windows can be
// driven deterministically in tests.
type InterruptionController struct {
	queue  *DownlinkQueue
	engine *PlaybackEngine
	logger *slog.Logger
	now    func() time.Time

	debounce time.Duration
	cooldown time.Duration

	mu            sync.Mutex
	state         TurnState
	cooldownUntil time.Time
	lastInterrupt time.Time

	onInterruption func(InterruptionEvent)
	onStateChange  func(from, to TurnState)

	interruptions   int64
	discardedFrames int64
}

// ControllerOption configures an InterruptionController.
type ControllerOption func(*InterruptionController)

// WithClock overrides the controller's time source.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *InterruptionController) { c.now = now }
}

// WithDebounce overrides the minimum gap between interruption events.
func WithDebounce(d time.Duration) ControllerOption {
	return func(c *InterruptionController) { c.debounce = d }
}

// WithCooldown overrides the stale-audio discard window.
func WithCooldown(d time.Duration) ControllerOption {
	return func(c *InterruptionController) { c.cooldown = d }
}

// NewInterruptionController creates a controller wired to queue and
// engine, starting in TurnIdle.
func NewInterruptionController(queue *DownlinkQueue, engine *PlaybackEngine, logger *slog.Logger, opts ...ControllerOption) *InterruptionController {
	if logger == nil {
		logger = slog.Default()
	}
	c := &InterruptionController{
		queue:    queue,
		engine:   engine,
		logger:   logger.With("component", "voice.interrupt"),
		now:      time.Now,
		debounce: 500 * time.Millisecond,
		cooldown: 1500 * time.Millisecond,
		state:    TurnIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnInterruption registers the callback fired once per barge-in.
func (c *InterruptionController) OnInterruption(fn func(InterruptionEvent)) {
	c.mu.Lock()
	c.onInterruption = fn
	c.mu.Unlock()
}

// OnStateChange registers a callback fired for every transition,
// including the transient pass through TurnInterrupted. The callback
// runs with the controller lock held and must not call back in.
func (c *InterruptionController) OnStateChange(fn func(from, to TurnState)) {
	c.mu.Lock()
	c.onStateChange = fn
	c.mu.Unlock()
}

// State returns the current turn state. An expired cooldown reads as
// TurnIdle even before the next frame arrives.
func (c *InterruptionController) State() TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == TurnCooldown && !c.now().Before(c.cooldownUntil) {
		return TurnIdle
	}
	return c.state
}

// Interruptions returns the number of barge-in events raised.
func (c *InterruptionController) Interruptions() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interruptions
}

// OnDownlinkFrame routes an inbound model chunk. Admission and enqueue
// happen under one lock, so a concurrent barge-in either flushes the
// chunk or rejects it; it can never slip into the queue after the flush.
// During an unexpired cooldown the chunk is stale output from before the
// barge-in and is dropped. Admitting a chunk from idle marks the start
// of a model turn.
//
// Returns (false, nil) for a discarded chunk and a non-nil error only
// when the queue is closed.
func (c *InterruptionController) OnDownlinkFrame(pcm []byte, sampleRate int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case TurnCooldown:
		if c.now().Before(c.cooldownUntil) {
			c.discardedFrames++
			return false, nil
		}
		// Window expired; this chunk opens a fresh turn.
		c.transitionLocked(TurnIdle)
		c.transitionLocked(TurnAiSpeaking)
	case TurnIdle:
		c.transitionLocked(TurnAiSpeaking)
	case TurnInterrupted:
		c.discardedFrames++
		return false, nil
	}

	if _, err := c.queue.Enqueue(pcm, sampleRate); err != nil {
		return false, err
	}
	return true, nil
}

// OnUserSpeech reports a frame of detected user speech. If the model is
// speaking and the debounce window has passed, it cuts playback,
// flushes the queue, emits one InterruptionEvent, and enters cooldown.
// Otherwise it is a no-op.
func (c *InterruptionController) OnUserSpeech(at time.Time) {
	c.mu.Lock()

	if c.state != TurnAiSpeaking {
		c.mu.Unlock()
		return
	}
	if !c.lastInterrupt.IsZero() && at.Sub(c.lastInterrupt) < c.debounce {
		c.mu.Unlock()
		return
	}

	c.lastInterrupt = at
	c.interruptions++
	c.transitionLocked(TurnInterrupted)

	// Cut audio before flushing so nothing queued slips into the sink.
	engine := c.engine
	c.mu.Unlock()

	engine.CancelCurrent()
	discarded := c.queue.Flush()

	c.mu.Lock()
	c.discardedFrames += int64(discarded)
	c.cooldownUntil = c.now().Add(c.cooldown)
	until := c.cooldownUntil
	c.transitionLocked(TurnCooldown)
	fn := c.onInterruption
	c.mu.Unlock()

	c.logger.Info("barge-in",
		"frames_discarded", discarded,
		"cooldown_until", until,
	)

	if fn != nil {
		fn(InterruptionEvent{
			At:              at,
			FramesDiscarded: discarded,
			CooldownUntil:   until,
		})
	}
}

// OnPlaybackIdle reports that the playback queue ran dry. If the model
// was speaking, its turn is over.
func (c *InterruptionController) OnPlaybackIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == TurnAiSpeaking {
		c.transitionLocked(TurnIdle)
	}
}

// transitionLocked must be called with c.mu held.
func (c *InterruptionController) transitionLocked(to TurnState) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to
	if c.onStateChange != nil {
		c.onStateChange(from, to)
	}
}
