package voice

import (
	"log/slog"
	"sync/atomic"

	"github.com/phronesislabs/phronesis-voice/pkg/conversation"
	"github.com/phronesislabs/phronesis-voice/pkg/pcm"
)

// UplinkSender encodes captured frames to PCM16 and ships them over the
// conversation channel. Delivery is fire-and-forget: when the channel
// is down, frames are counted as dropped and capture keeps running. No
// frame is ever buffered for retry; stale microphone audio is worse
// than a gap.
type UplinkSender struct {
	channel conversation.Channel
	logger  *slog.Logger

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewUplinkSender creates a sender over channel.
func NewUplinkSender(channel conversation.Channel, logger *slog.Logger) *UplinkSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &UplinkSender{
		channel: channel,
		logger:  logger.With("component", "voice.uplink"),
	}
}

// Send encodes and transmits one frame. Failures are absorbed: the
// frame is dropped and the drop counter bumped.
func (u *UplinkSender) Send(frame AudioFrame) {
	if !u.channel.IsConnected() {
		u.dropped.Add(1)
		return
	}

	data := pcm.Encode(frame.Samples)
	if err := u.channel.SendAudio(data); err != nil {
		u.dropped.Add(1)
		u.logger.Debug("frame dropped", "seq", frame.Seq, "error", err)
		return
	}
	u.sent.Add(1)
}

// Sent returns the number of frames transmitted.
func (u *UplinkSender) Sent() int64 { return u.sent.Load() }

// Dropped returns the number of frames discarded.
func (u *UplinkSender) Dropped() int64 { return u.dropped.Load() }
