package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phronesislabs/phronesis-voice/internal/log"
	"github.com/phronesislabs/phronesis-voice/pkg/audioio"
	"github.com/phronesislabs/phronesis-voice/pkg/conversation"
	"github.com/phronesislabs/phronesis-voice/pkg/vad"
)

// SessionState is the lifecycle of a Session.
type SessionState int

const (
	// SessionIdle: created, not started.
	SessionIdle SessionState = iota
	// SessionConnecting: Start is in progress.
	SessionConnecting
	// SessionActive: audio is flowing both ways.
	SessionActive
	// SessionClosed: stopped cleanly.
	SessionClosed
	// SessionError: startup or runtime failed terminally.
	SessionError
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionConnecting:
		return "connecting"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	case SessionError:
		return "error"
	default:
		return "unknown"
	}
}

// Session is one full-duplex voice conversation: microphone capture
// with inline VAD, uplink streaming, downlink buffering, playback, and
// the barge-in state machine, all running until Stop or a terminal
// error. There is no auto-reconnect; a dropped channel ends the
// session and the caller decides whether to start a new one.
type Session struct {
	id     string
	config Config
	logger *slog.Logger

	source  audioio.Source
	sink    audioio.Sink
	channel conversation.Channel

	queue      *DownlinkQueue
	engine     *PlaybackEngine
	controller *InterruptionController
	capture    *CaptureStream
	uplink     *UplinkSender
	metrics    *MetricsCollector

	mu      sync.Mutex
	state   SessionState
	cancel  context.CancelFunc
	stopped chan struct{}

	muted bool

	onTranscript    func(role, text string, isFinal bool)
	onCompletion    func(payload json.RawMessage)
	onInterruption  func(InterruptionEvent)
	onStateChange   func(SessionState)
	onSessionClosed func(err error)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSource overrides the capture device.
func WithSource(s audioio.Source) SessionOption {
	return func(sess *Session) { sess.source = s }
}

// WithSink overrides the playback device.
func WithSink(s audioio.Sink) SessionOption {
	return func(sess *Session) { sess.sink = s }
}

// WithChannel overrides the conversation channel.
func WithChannel(c conversation.Channel) SessionOption {
	return func(sess *Session) { sess.channel = c }
}

// WithLogger overrides the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(sess *Session) { sess.logger = l }
}

// NewSession builds a session from cfg. Devices and the channel are
// created from the config unless overridden by options.
func NewSession(cfg Config, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		id:      uuid.New().String(),
		config:  cfg,
		state:   SessionIdle,
		stopped: make(chan struct{}),
		metrics: NewMetricsCollector(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = log.L()
	}
	s.logger = s.logger.With("session_id", s.id)

	if s.source == nil {
		src, err := audioio.NewSource(cfg.Input, s.logger)
		if err != nil {
			return nil, fmt.Errorf("voice: create source: %w", err)
		}
		s.source = src
	}
	if s.sink == nil {
		snk, err := audioio.NewSink(cfg.Output, s.logger)
		if err != nil {
			return nil, fmt.Errorf("voice: create sink: %w", err)
		}
		s.sink = snk
	}
	if s.channel == nil {
		chCfg := conversation.DefaultConfig()
		chCfg.APIKey = cfg.APIKey
		chCfg.CredentialsURL = cfg.CredentialsURL
		chCfg.Model = cfg.Model
		chCfg.Voice = cfg.Voice
		chCfg.SystemPrompt = conversation.BuildPrompt(cfg.Mode, cfg.Topic, cfg.Concept)
		chCfg.InputSampleRate = cfg.Input.SampleRate
		chCfg.OutputSampleRate = cfg.Output.SampleRate
		chCfg.Logger = s.logger
		ch, err := conversation.NewGeminiLive(chCfg)
		if err != nil {
			return nil, fmt.Errorf("voice: create channel: %w", err)
		}
		s.channel = ch
	}

	s.queue = NewDownlinkQueue()
	s.engine = NewPlaybackEngine(s.queue, s.sink, s.logger)
	s.controller = NewInterruptionController(s.queue, s.engine, s.logger,
		WithDebounce(cfg.InterruptDebounce),
		WithCooldown(cfg.InterruptCooldown),
	)
	detector := vad.New(vad.WithThreshold(cfg.VADThreshold))
	s.capture = NewCaptureStream(s.source, detector, s.logger)
	s.uplink = NewUplinkSender(s.channel, s.logger)

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the session lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TurnState returns the barge-in state machine's current state.
func (s *Session) TurnState() TurnState {
	return s.controller.State()
}

// Metrics returns a snapshot of the session's pipeline counters.
func (s *Session) Metrics() Metrics {
	return s.metrics.Snapshot(s.capture, s.uplink, s.engine)
}

// OnTranscript sets the callback for transcription events.
func (s *Session) OnTranscript(fn func(role, text string, isFinal bool)) {
	s.mu.Lock()
	s.onTranscript = fn
	s.mu.Unlock()
}

// OnCompletion sets the callback for the opaque end-of-interaction
// payload forwarded from the service.
func (s *Session) OnCompletion(fn func(payload json.RawMessage)) {
	s.mu.Lock()
	s.onCompletion = fn
	s.mu.Unlock()
}

// OnInterruption sets the callback fired once per barge-in.
func (s *Session) OnInterruption(fn func(InterruptionEvent)) {
	s.mu.Lock()
	s.onInterruption = fn
	s.mu.Unlock()
}

// OnStateChange sets the callback for session lifecycle transitions.
func (s *Session) OnStateChange(fn func(SessionState)) {
	s.mu.Lock()
	s.onStateChange = fn
	s.mu.Unlock()
}

// OnClosed sets the callback fired when the session ends. err is nil
// for a clean Stop.
func (s *Session) OnClosed(fn func(err error)) {
	s.mu.Lock()
	s.onSessionClosed = fn
	s.mu.Unlock()
}

// Start brings the pipeline up: capture device first (so a microphone
// permission failure surfaces before any network work), then the
// channel, then playback, then the processing loops. Returns
// ErrAlreadyStarted if the session left SessionIdle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	// The run context exists before any device or network work so a
	// concurrent Stop can abort the startup sequence instead of being
	// lost while the session is still connecting.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.setStateLocked(SessionConnecting)
	s.mu.Unlock()

	// Startup steps honor both the caller's deadline and a Stop.
	startCtx, startCancel := context.WithCancel(ctx)
	defer startCancel()
	unwatch := context.AfterFunc(runCtx, startCancel)
	defer unwatch()

	if err := s.source.Start(startCtx); err != nil {
		if runCtx.Err() != nil {
			s.abortStart()
			return ErrSessionClosed
		}
		s.fail(fmt.Errorf("voice: start capture: %w", err))
		return err
	}

	if err := s.channel.Connect(startCtx); err != nil {
		_ = s.source.Stop()
		if runCtx.Err() != nil {
			s.abortStart()
			return ErrSessionClosed
		}
		s.fail(fmt.Errorf("voice: connect: %w", err))
		return err
	}

	if err := s.sink.Start(startCtx); err != nil {
		_ = s.channel.Close()
		_ = s.source.Stop()
		if runCtx.Err() != nil {
			s.abortStart()
			return ErrSessionClosed
		}
		s.fail(fmt.Errorf("voice: start playback: %w", err))
		return err
	}

	s.wireCallbacks()

	s.mu.Lock()
	stopRequested := runCtx.Err() != nil
	if !stopRequested {
		s.setStateLocked(SessionActive)
	}
	s.mu.Unlock()

	if stopRequested {
		// Stop landed after the devices came up but before the loops
		// started; unwind what was opened and report a clean close.
		_ = s.channel.Close()
		_ = s.sink.Stop()
		_ = s.source.Stop()
		s.abortStart()
		return ErrSessionClosed
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return s.capture.Run(gctx, s.handleFrame)
	})
	g.Go(func() error {
		return s.engine.Run(gctx)
	})

	go func() {
		err := g.Wait()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		s.teardown(err)
	}()

	s.logger.Info("session started",
		"mode", string(s.config.Mode),
		"topic", s.config.Topic,
	)
	return nil
}

// Stop shuts the session down. Idempotent; safe from any goroutine.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.state {
	case SessionClosed, SessionError:
		s.mu.Unlock()
		return nil
	case SessionIdle:
		s.setStateLocked(SessionClosed)
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-s.stopped
	return nil
}

// ToggleMute flips playback mute by driving the engine's gain stage.
// The drain loop keeps running so queue timing is unaffected, and the
// microphone keeps streaming uplink; mute only changes what the user
// hears. Returns the new muted state.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	s.muted = !s.muted
	muted := s.muted
	s.mu.Unlock()

	if muted {
		s.engine.SetGain(0)
	} else {
		s.engine.SetGain(1)
	}
	s.logger.Info("mute toggled", "muted", muted)
	return muted
}

// Muted reports whether playback is muted.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// SetPlaybackGain adjusts output volume. Gain 0 silences the speaker
// without changing queue timing.
func (s *Session) SetPlaybackGain(g float64) {
	s.engine.SetGain(g)
}

// SendText sends a text control message over the channel.
func (s *Session) SendText(text string) error {
	if s.State() != SessionActive {
		return ErrSessionClosed
	}
	return s.channel.SendText(text)
}

// handleFrame runs on the capture goroutine for every microphone frame.
func (s *Session) handleFrame(frame AudioFrame, speaking bool) {
	if speaking {
		s.controller.OnUserSpeech(frame.CapturedAt)
	}
	s.uplink.Send(frame)
}

// wireCallbacks connects channel events to the pipeline.
func (s *Session) wireCallbacks() {
	s.channel.OnAudio(func(pcm16 []byte) {
		s.metrics.RecordChunkReceived()
		admitted, err := s.controller.OnDownlinkFrame(pcm16, s.channel.OutputSampleRate())
		switch {
		case err != nil:
			s.logger.Debug("enqueue after close", "error", err)
		case !admitted:
			s.metrics.RecordChunkDiscarded(1)
		}
	})

	s.channel.OnInterrupted(func() {
		// The service noticed the barge-in on its own; treat it like a
		// local speech trigger so both ends settle on the same state.
		s.controller.OnUserSpeech(time.Now())
	})

	s.channel.OnTranscript(func(role, text string, isFinal bool) {
		s.mu.Lock()
		fn := s.onTranscript
		s.mu.Unlock()
		if fn != nil {
			fn(role, text, isFinal)
		}
	})

	s.channel.OnTurnComplete(func() {
		s.controller.OnPlaybackIdle()
	})

	s.channel.OnCompletion(func(payload json.RawMessage) {
		s.mu.Lock()
		fn := s.onCompletion
		s.mu.Unlock()
		if fn != nil {
			fn(payload)
		}
	})

	s.channel.OnError(func(err error) {
		s.logger.Warn("channel error", "error", err)
	})

	s.channel.OnClose(func(err error) {
		if err != nil {
			s.logger.Warn("channel closed", "error", err)
		}
		// No reconnect. The capture loop keeps dropping frames until
		// the caller stops the session; playback drains what arrived.
		go func() { _ = s.Stop() }()
	})

	s.engine.OnIdle(s.controller.OnPlaybackIdle)

	s.controller.OnInterruption(func(ev InterruptionEvent) {
		s.metrics.RecordChunkDiscarded(ev.FramesDiscarded)
		s.metrics.RecordInterruption(time.Since(ev.At))
		s.mu.Lock()
		fn := s.onInterruption
		s.mu.Unlock()
		if fn != nil {
			fn(ev)
		}
	})
}

// teardown releases everything after the processing loops exit.
func (s *Session) teardown(runErr error) {
	s.engine.CancelCurrent()
	s.queue.Flush()
	s.queue.Close()
	_ = s.channel.Close()
	_ = s.sink.Stop()
	_ = s.source.Stop()

	s.mu.Lock()
	if runErr != nil {
		s.setStateLocked(SessionError)
	} else {
		s.setStateLocked(SessionClosed)
	}
	fn := s.onSessionClosed
	s.mu.Unlock()

	if runErr != nil {
		s.logger.Error("session ended", "error", runErr)
	} else {
		s.logger.Info("session ended")
	}

	close(s.stopped)
	if fn != nil {
		fn(runErr)
	}
}

// fail marks a startup failure.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.setStateLocked(SessionError)
	cancel := s.cancel
	fn := s.onSessionClosed
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.logger.Error("session start failed", "error", err)
	close(s.stopped)
	if fn != nil {
		fn(err)
	}
}

// abortStart finishes a startup that a concurrent Stop cancelled. The
// caller has already released whatever devices it opened.
func (s *Session) abortStart() {
	s.mu.Lock()
	s.setStateLocked(SessionClosed)
	fn := s.onSessionClosed
	s.mu.Unlock()

	s.logger.Info("session stopped during startup")
	close(s.stopped)
	if fn != nil {
		fn(nil)
	}
}

// setStateLocked must be called with s.mu held.
func (s *Session) setStateLocked(next SessionState) {
	if s.state == next {
		return
	}
	s.state = next
	if s.onStateChange != nil {
		go s.onStateChange(next)
	}
}
