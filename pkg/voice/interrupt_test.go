package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phronesislabs/phronesis-voice/pkg/pcm"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestController(t *testing.T, clock *fakeClock) (*InterruptionController, *DownlinkQueue, *PlaybackEngine) {
	t.Helper()
	q := NewDownlinkQueue()
	sink := newTestSink(t)
	engine := NewPlaybackEngine(q, sink, nil)
	c := NewInterruptionController(q, engine, nil,
		WithClock(clock.Now),
		WithDebounce(500*time.Millisecond),
		WithCooldown(1500*time.Millisecond),
	)
	return c, q, engine
}

// feedDownlink routes one model chunk through the controller.
func feedDownlink(t *testing.T, c *InterruptionController) bool {
	t.Helper()
	ok, err := c.OnDownlinkFrame(pcm.Encode([]float32{0.5}), 24000)
	if err != nil {
		t.Fatalf("OnDownlinkFrame() error = %v", err)
	}
	return ok
}

func TestControllerInitialState(t *testing.T) {
	c, _, _ := newTestController(t, newFakeClock())
	if c.State() != TurnIdle {
		t.Errorf("initial state = %v, want idle", c.State())
	}
}

func TestControllerDownlinkOpensTurn(t *testing.T) {
	c, q, _ := newTestController(t, newFakeClock())

	if !feedDownlink(t, c) {
		t.Fatal("OnDownlinkFrame() = false from idle, want true")
	}
	if c.State() != TurnAiSpeaking {
		t.Errorf("state after first chunk = %v, want ai_speaking", c.State())
	}
	if q.Len() != 1 {
		t.Errorf("queue length = %d, want 1", q.Len())
	}
}

func TestControllerInterruptFlushesQueue(t *testing.T) {
	clock := newFakeClock()
	c, q, _ := newTestController(t, clock)

	for i := 0; i < 4; i++ {
		if !feedDownlink(t, c) {
			t.Fatalf("chunk %d rejected, want admitted", i)
		}
	}

	var events []InterruptionEvent
	c.OnInterruption(func(ev InterruptionEvent) { events = append(events, ev) })

	var transitions []TurnState
	c.OnStateChange(func(from, to TurnState) { transitions = append(transitions, to) })

	c.OnUserSpeech(clock.Now())

	if len(events) != 1 {
		t.Fatalf("got %d interruption events, want 1", len(events))
	}
	if events[0].FramesDiscarded != 4 {
		t.Errorf("FramesDiscarded = %d, want 4", events[0].FramesDiscarded)
	}
	wantUntil := clock.Now().Add(1500 * time.Millisecond)
	if !events[0].CooldownUntil.Equal(wantUntil) {
		t.Errorf("CooldownUntil = %v, want %v", events[0].CooldownUntil, wantUntil)
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0 after interrupt", q.Len())
	}

	// The machine passes through interrupted before settling in cooldown.
	want := []TurnState{TurnInterrupted, TurnCooldown}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestControllerDebounce(t *testing.T) {
	clock := newFakeClock()
	q := NewDownlinkQueue()
	sink := newTestSink(t)
	engine := NewPlaybackEngine(q, sink, nil)
	// Zero cooldown isolates the debounce: a new turn can open right
	// after an interrupt, so only the debounce window suppresses the
	// second trigger.
	c := NewInterruptionController(q, engine, nil,
		WithClock(clock.Now),
		WithDebounce(500*time.Millisecond),
		WithCooldown(0),
	)

	events := 0
	c.OnInterruption(func(InterruptionEvent) { events++ })

	feedDownlink(t, c)
	c.OnUserSpeech(clock.Now())

	// Second trigger 100ms later, inside the 500ms window: absorbed.
	clock.Advance(100 * time.Millisecond)
	feedDownlink(t, c)
	c.OnUserSpeech(clock.Now())

	if events != 1 {
		t.Errorf("got %d events, want 1 (second trigger debounced)", events)
	}

	// Past the window a trigger interrupts again.
	clock.Advance(500 * time.Millisecond)
	feedDownlink(t, c)
	c.OnUserSpeech(clock.Now())

	if events != 2 {
		t.Errorf("got %d events, want 2 after the window passed", events)
	}
}

func TestControllerCooldownDiscardsFrames(t *testing.T) {
	clock := newFakeClock()
	c, q, _ := newTestController(t, clock)

	feedDownlink(t, c)
	c.OnUserSpeech(clock.Now())

	if c.State() != TurnCooldown {
		t.Fatalf("state = %v, want cooldown", c.State())
	}

	// Stale chunks arriving during cooldown are dropped, never queued.
	for i := 0; i < 3; i++ {
		clock.Advance(400 * time.Millisecond)
		if feedDownlink(t, c) {
			t.Errorf("chunk admitted at +%dms into cooldown, want dropped", (i+1)*400)
		}
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0 through cooldown", q.Len())
	}

	// Past the window the next chunk opens a fresh turn.
	clock.Advance(400 * time.Millisecond)
	if !feedDownlink(t, c) {
		t.Error("chunk rejected after cooldown expiry, want admitted")
	}
	if c.State() != TurnAiSpeaking {
		t.Errorf("state = %v, want ai_speaking", c.State())
	}
	if q.Len() != 1 {
		t.Errorf("queue length = %d after readmission, want 1", q.Len())
	}
}

func TestControllerCooldownReadsIdleAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	c, _, _ := newTestController(t, clock)

	feedDownlink(t, c)
	c.OnUserSpeech(clock.Now())

	clock.Advance(1500 * time.Millisecond)
	if c.State() != TurnIdle {
		t.Errorf("state after expiry = %v, want idle", c.State())
	}
}

func TestControllerSpeechIgnoredWhenIdle(t *testing.T) {
	clock := newFakeClock()
	c, _, _ := newTestController(t, clock)

	events := 0
	c.OnInterruption(func(InterruptionEvent) { events++ })

	c.OnUserSpeech(clock.Now())

	if events != 0 {
		t.Errorf("got %d events from idle, want 0", events)
	}
	if c.State() != TurnIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestControllerPlaybackIdleEndsTurn(t *testing.T) {
	c, _, _ := newTestController(t, newFakeClock())

	feedDownlink(t, c)
	c.OnPlaybackIdle()

	if c.State() != TurnIdle {
		t.Errorf("state = %v, want idle after playback drained", c.State())
	}
}

func TestControllerInterruptCancelsRender(t *testing.T) {
	clock := newFakeClock()
	q := NewDownlinkQueue()
	sink := newTestSink(t)
	engine := NewPlaybackEngine(q, sink, nil)
	c := NewInterruptionController(q, engine, nil, WithClock(clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = engine.Run(ctx) }()

	sink.BlockNextWrites()
	if _, err := c.OnDownlinkFrame(pcm.Encode([]float32{0.5, 0.5}), 24000); err != nil {
		t.Fatalf("OnDownlinkFrame() error = %v", err)
	}

	waitFor(t, "render in flight", engine.IsPlaying)

	c.OnUserSpeech(clock.Now())

	waitFor(t, "render cut", func() bool { return !engine.IsPlaying() })
	if engine.FramesPlayed() != 0 {
		t.Errorf("FramesPlayed() = %d, want 0 for the cut render", engine.FramesPlayed())
	}
}

func TestControllerInterruptLeavesNoStaleChunk(t *testing.T) {
	clock := newFakeClock()
	c, q, _ := newTestController(t, clock)

	// Model turn in progress with audio queued.
	for i := 0; i < 3; i++ {
		feedDownlink(t, c)
	}

	// Chunks racing the barge-in from the receive goroutine must either
	// be caught by the flush or rejected outright; none may survive into
	// cooldown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_, _ = c.OnDownlinkFrame(pcm.Encode([]float32{0.5}), 24000)
		}
	}()

	c.OnUserSpeech(clock.Now())
	<-done

	if n := q.Len(); n != 0 {
		t.Errorf("queue length = %d during cooldown, want 0", n)
	}
	if c.State() != TurnCooldown {
		t.Errorf("state = %v, want cooldown", c.State())
	}
}
