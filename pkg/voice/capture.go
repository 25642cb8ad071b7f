package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/phronesislabs/phronesis-voice/pkg/audioio"
	"github.com/phronesislabs/phronesis-voice/pkg/vad"
)

// FrameHandler receives each captured frame together with the VAD's
// speech decision for it.
type FrameHandler func(frame AudioFrame, speaking bool)

// CaptureStream pulls fixed-size frames from the microphone, assigns
// sequence numbers, and runs voice activity detection inline so the
// speech decision travels with the frame that produced it.
type CaptureStream struct {
	source   audioio.Source
	detector *vad.Detector
	logger   *slog.Logger

	nextSeq        atomic.Int64
	framesCaptured atomic.Int64
}

// NewCaptureStream creates a stream over source using detector.
func NewCaptureStream(source audioio.Source, detector *vad.Detector, logger *slog.Logger) *CaptureStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureStream{
		source:   source,
		detector: detector,
		logger:   logger.With("component", "voice.capture"),
	}
}

// FramesCaptured returns the number of frames delivered so far.
func (s *CaptureStream) FramesCaptured() int64 {
	return s.framesCaptured.Load()
}

// Run reads frames until ctx is cancelled or the source ends, calling
// handle for each one. The handler runs on the capture goroutine;
// anything slow belongs on the far side of a channel.
func (s *CaptureStream) Run(ctx context.Context, handle FrameHandler) error {
	for {
		chunk, err := s.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		frame := AudioFrame{
			Seq:        s.nextSeq.Add(1) - 1,
			Samples:    chunk.Samples,
			SampleRate: chunk.SampleRate,
			CapturedAt: time.Now(),
		}
		speaking := s.detector.Process(chunk.Samples)
		s.framesCaptured.Add(1)

		handle(frame, speaking)
	}
}
