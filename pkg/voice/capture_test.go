package voice

import (
	"context"
	"sync"
	"testing"

	"github.com/phronesislabs/phronesis-voice/pkg/audioio"
	"github.com/phronesislabs/phronesis-voice/pkg/vad"
)

func TestCaptureStreamSequencesFrames(t *testing.T) {
	cfg := audioio.DefaultInputConfig()
	cfg.Backend = audioio.BackendMock
	source := audioio.NewMockSource(cfg, nil)
	if err := source.Start(context.Background()); err != nil {
		t.Fatalf("source.Start() error = %v", err)
	}

	stream := NewCaptureStream(source, vad.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var seqs []int64
	done := make(chan error, 1)
	go func() {
		done <- stream.Run(ctx, func(frame AudioFrame, speaking bool) {
			mu.Lock()
			seqs = append(seqs, frame.Seq)
			if len(frame.Samples) != cfg.FrameSize {
				t.Errorf("frame %d: %d samples, want %d", frame.Seq, len(frame.Samples), cfg.FrameSize)
			}
			n := len(seqs)
			mu.Unlock()
			if n >= 5 {
				cancel()
			}
		})
	}()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	_ = source.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seqs) < 5 {
		t.Fatalf("got %d frames, want at least 5", len(seqs))
	}
	for i, seq := range seqs {
		if seq != int64(i) {
			t.Errorf("frame %d: seq = %d, want %d", i, seq, i)
		}
	}
}

func TestCaptureStreamSpeechDetection(t *testing.T) {
	cfg := audioio.DefaultInputConfig()
	cfg.Backend = audioio.BackendMock

	tests := []struct {
		name         string
		opts         []audioio.MockSourceOption
		wantSpeaking bool
	}{
		{
			name:         "silence below threshold",
			wantSpeaking: false,
		},
		{
			name:         "tone above threshold",
			opts:         []audioio.MockSourceOption{audioio.WithSineWave(440, 0.5)},
			wantSpeaking: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := audioio.NewMockSource(cfg, nil, tt.opts...)
			if err := source.Start(context.Background()); err != nil {
				t.Fatalf("source.Start() error = %v", err)
			}
			defer source.Stop()

			stream := NewCaptureStream(source, vad.New(), nil)

			ctx, cancel := context.WithCancel(context.Background())
			var got bool
			done := make(chan error, 1)
			go func() {
				done <- stream.Run(ctx, func(_ AudioFrame, speaking bool) {
					got = speaking
					cancel()
				})
			}()
			if err := <-done; err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if got != tt.wantSpeaking {
				t.Errorf("speaking = %v, want %v", got, tt.wantSpeaking)
			}
		})
	}
}

func TestCaptureStreamEndsOnSourceEOF(t *testing.T) {
	cfg := audioio.DefaultInputConfig()
	cfg.Backend = audioio.BackendMock
	source := audioio.NewMockSource(cfg, nil)
	if err := source.Start(context.Background()); err != nil {
		t.Fatalf("source.Start() error = %v", err)
	}

	stream := NewCaptureStream(source, vad.New(), nil)

	done := make(chan error, 1)
	go func() {
		done <- stream.Run(context.Background(), func(AudioFrame, bool) {})
	}()

	_ = source.Stop()

	if err := <-done; err != nil {
		t.Errorf("Run() after source stop error = %v, want nil", err)
	}
}
