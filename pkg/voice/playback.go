package voice

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/phronesislabs/phronesis-voice/pkg/audioio"
	"github.com/phronesislabs/phronesis-voice/pkg/pcm"
)

// PlaybackEngine drains the downlink queue and renders each chunk to
// the output device. Exactly one chunk is in flight at a time; a render
// can be cancelled mid-chunk so barge-in cuts audio without waiting for
// the chunk boundary.
type PlaybackEngine struct {
	queue  *DownlinkQueue
	sink   audioio.Sink
	logger *slog.Logger

	// gain stores a float64 as raw bits. 0 mutes: silence is written
	// in place of samples so the queue drains at the normal rate.
	gain atomic.Uint64

	playing atomic.Bool

	mu           sync.Mutex
	renderCancel context.CancelFunc

	// onIdle fires after a pop finds the queue empty and nothing is
	// rendering. Used by the interruption controller to detect the end
	// of a model turn.
	onIdle func()

	framesPlayed   atomic.Int64
	framesSkipped  atomic.Int64
	rendersAborted atomic.Int64
}

// NewPlaybackEngine creates an engine draining queue into sink.
func NewPlaybackEngine(queue *DownlinkQueue, sink audioio.Sink, logger *slog.Logger) *PlaybackEngine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &PlaybackEngine{
		queue:  queue,
		sink:   sink,
		logger: logger.With("component", "voice.playback"),
	}
	e.gain.Store(math.Float64bits(1.0))
	return e
}

// OnIdle registers the callback invoked when the queue runs dry.
func (e *PlaybackEngine) OnIdle(fn func()) {
	e.mu.Lock()
	e.onIdle = fn
	e.mu.Unlock()
}

// SetGain sets the output gain. Gain 0 mutes playback while keeping
// the drain rate: muted chunks are rendered as silence of the same
// length rather than dropped.
func (e *PlaybackEngine) SetGain(g float64) {
	if g < 0 {
		g = 0
	}
	e.gain.Store(math.Float64bits(g))
}

// Gain returns the current output gain.
func (e *PlaybackEngine) Gain() float64 {
	return math.Float64frombits(e.gain.Load())
}

// IsPlaying reports whether a chunk is currently being rendered.
func (e *PlaybackEngine) IsPlaying() bool {
	return e.playing.Load()
}

// CancelCurrent aborts the in-flight render, if any. The partially
// played chunk is not replayed.
func (e *PlaybackEngine) CancelCurrent() {
	e.mu.Lock()
	cancel := e.renderCancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// FramesPlayed returns the number of chunks rendered to completion.
func (e *PlaybackEngine) FramesPlayed() int64 { return e.framesPlayed.Load() }

// Run drains the queue until ctx is cancelled or the queue closes and
// empties. Malformed chunks are skipped with a log line; they never
// stall the loop.
func (e *PlaybackEngine) Run(ctx context.Context) error {
	for {
		if e.queue.Len() == 0 {
			e.notifyIdle()
		}

		entry, err := e.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}

		if err := e.render(ctx, entry); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("render failed", "seq", entry.Seq, "error", err)
		}
	}
}

func (e *PlaybackEngine) render(ctx context.Context, entry *PlaybackQueueEntry) error {
	samples, err := pcm.Decode(entry.PCM)
	if err != nil {
		e.framesSkipped.Add(1)
		e.logger.Warn("skipping malformed chunk", "seq", entry.Seq, "error", err)
		return nil
	}

	renderCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.renderCancel = cancel
	e.mu.Unlock()
	e.playing.Store(true)

	defer func() {
		e.playing.Store(false)
		e.mu.Lock()
		e.renderCancel = nil
		e.mu.Unlock()
		cancel()
	}()

	// Chunks go to the sink in device-sized blocks with the gain read
	// fresh for each one, so a mute toggle lands within a block of the
	// in-flight chunk instead of waiting for the next chunk boundary.
	block := e.sink.Config().FrameSize
	if block <= 0 {
		block = len(samples)
	}
	for off := 0; off < len(samples); off += block {
		end := off + block
		if end > len(samples) {
			end = len(samples)
		}
		seg := samples[off:end]

		gain := e.Gain()
		out := seg
		if gain != 1.0 {
			out = make([]float32, len(seg))
			if gain != 0 {
				for i, s := range seg {
					out[i] = s * float32(gain)
				}
			}
		}

		chunk := audioio.Chunk{
			Samples:    out,
			SampleRate: entry.SampleRate,
			Channels:   1,
		}
		if err := e.sink.Write(renderCtx, chunk); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				e.rendersAborted.Add(1)
				e.logger.Debug("render cancelled", "seq", entry.Seq)
				return nil
			}
			return err
		}
	}

	e.framesPlayed.Add(1)
	return nil
}

func (e *PlaybackEngine) notifyIdle() {
	e.mu.Lock()
	fn := e.onIdle
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}
