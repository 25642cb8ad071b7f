package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Backend:    BackendMock,
		SampleRate: 16000,
		Channels:   1,
		FrameSize:  4096,
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"negative channels", func(c *Config) { c.Channels = -1 }, true},
		{"zero frame size", func(c *Config) { c.FrameSize = 0 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfigFrameDuration(t *testing.T) {
	cfg := testConfig()
	want := 256 * time.Millisecond // 4096 samples at 16kHz
	if got := cfg.FrameDuration(); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMockSourceProducesFrames(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithSineWave(440, 0.5))
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(chunk.Samples) != 4096 {
		t.Errorf("expected 4096 samples, got %d", len(chunk.Samples))
	}
	if chunk.SampleRate != 16000 {
		t.Errorf("expected 16kHz, got %d", chunk.SampleRate)
	}

	var peak float32
	for _, s := range chunk.Samples {
		if s > peak {
			peak = s
		}
	}
	if peak < 0.4 {
		t.Errorf("sine chunk should have amplitude near 0.5, peak %v", peak)
	}
}

func TestMockSourceReadAfterStop(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	_ = src.Start(context.Background())
	_ = src.Stop()

	// Drain anything buffered, then expect EOF.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		_, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	}
}

func TestMockSourceConcurrentStopAndRead(t *testing.T) {
	// Stop must never race the generator: the reader keeps pulling while
	// Stop lands, and must settle on io.EOF without a panic or a lost
	// shutdown. Repeated to shake out interleavings.
	for i := 0; i < 25; i++ {
		src := NewMockSource(testConfig(), nil)
		_ = src.Start(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		done := make(chan error, 1)
		go func() {
			for {
				if _, err := src.Read(ctx); err != nil {
					done <- err
					return
				}
			}
		}()

		_ = src.Stop()
		select {
		case err := <-done:
			if !errors.Is(err, io.EOF) {
				t.Fatalf("iteration %d: expected io.EOF, got %v", i, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: reader did not observe shutdown", i)
		}
		cancel()
	}
}

func TestMockSourceStartError(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithStartError(ErrPermissionDenied))
	if err := src.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestMockSinkRecordsWrites(t *testing.T) {
	sink := NewMockSink(testConfig(), nil)
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	chunk := Chunk{Samples: []float32{0.1, 0.2}, SampleRate: 24000, Channels: 1}
	if err := sink.Write(context.Background(), chunk); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	written := sink.Written()
	if len(written) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(written))
	}
	if written[0].Samples[1] != 0.2 {
		t.Error("recorded chunk mismatch")
	}
}

func TestMockSinkBlockedWriteCancels(t *testing.T) {
	sink := NewMockSink(testConfig(), nil)
	_ = sink.Start(context.Background())
	sink.BlockNextWrites()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sink.Write(ctx, Chunk{Samples: make([]float32, 16)})
	}()

	// The write must be parked, not completed.
	select {
	case err := <-done:
		t.Fatalf("write returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("write did not return after cancel")
	}
}

func TestMockSinkWriteWhenStopped(t *testing.T) {
	sink := NewMockSink(testConfig(), nil)
	if err := sink.Write(context.Background(), Chunk{}); err == nil {
		t.Error("write before start should fail")
	}
}

func TestFactorySelectsMock(t *testing.T) {
	src, err := NewSource(testConfig(), nil)
	if err != nil {
		t.Fatalf("source factory failed: %v", err)
	}
	if src.Name() != "mock" {
		t.Errorf("expected mock backend, got %s", src.Name())
	}

	sink, err := NewSink(testConfig(), nil)
	if err != nil {
		t.Fatalf("sink factory failed: %v", err)
	}
	if sink.Name() != "mock" {
		t.Errorf("expected mock backend, got %s", sink.Name())
	}

	if _, err := NewSource(Config{Backend: "bogus", SampleRate: 1, Channels: 1, FrameSize: 1}, nil); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestChunkDuration(t *testing.T) {
	chunk := Chunk{Samples: make([]float32, 24000), SampleRate: 24000, Channels: 1}
	if d := chunk.Duration(); d != 1.0 {
		t.Errorf("expected 1s, got %v", d)
	}
	empty := Chunk{}
	if d := empty.Duration(); d != 0 {
		t.Errorf("expected 0 for empty chunk, got %v", d)
	}
}
