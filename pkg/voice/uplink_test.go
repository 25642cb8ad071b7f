package voice

import (
	"bytes"
	"context"
	"testing"

	"github.com/phronesislabs/phronesis-voice/pkg/conversation"
	"github.com/phronesislabs/phronesis-voice/pkg/pcm"
)

func TestUplinkSenderEncodesAndSends(t *testing.T) {
	ch := conversation.NewMock()
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	sender := NewUplinkSender(ch, nil)

	samples := []float32{0.1, -0.2, 0.3}
	sender.Send(AudioFrame{Seq: 0, Samples: samples, SampleRate: 16000})

	if sender.Sent() != 1 {
		t.Fatalf("Sent() = %d, want 1", sender.Sent())
	}
	if len(ch.AudioSent) != 1 {
		t.Fatalf("channel recorded %d frames, want 1", len(ch.AudioSent))
	}
	if want := pcm.Encode(samples); !bytes.Equal(ch.AudioSent[0], want) {
		t.Errorf("wire bytes = %v, want %v", ch.AudioSent[0], want)
	}
}

func TestUplinkSenderDropsWhenDisconnected(t *testing.T) {
	ch := conversation.NewMock()
	sender := NewUplinkSender(ch, nil)

	// No retry, no buffering: the frame is gone and counted.
	sender.Send(AudioFrame{Seq: 0, Samples: []float32{0.5}, SampleRate: 16000})
	sender.Send(AudioFrame{Seq: 1, Samples: []float32{0.5}, SampleRate: 16000})

	if sender.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", sender.Dropped())
	}
	if sender.Sent() != 0 {
		t.Errorf("Sent() = %d, want 0", sender.Sent())
	}
	if len(ch.AudioSent) != 0 {
		t.Errorf("channel recorded %d frames, want 0", len(ch.AudioSent))
	}
}
