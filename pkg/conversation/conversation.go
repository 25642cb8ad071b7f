// Package conversation implements the client side of the remote voice
// service channel: a duplex connection that accepts PCM16 audio and text
// control messages and delivers synthesized speech, transcription events,
// and an opaque end-of-interaction completion payload.
//
// The service itself is a black box. This package only implements the wire
// contract; turn-taking and barge-in policy live in pkg/voice.
package conversation

import (
	"context"
	"encoding/json"
)

// ConnectionState represents the channel lifecycle.
type ConnectionState int

const (
	// StateDisconnected means no connection is open.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a connection attempt is in progress.
	StateConnecting
	// StateConnected means the channel is open and ready.
	StateConnected
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Channel is a duplex audio and control connection to the voice service.
//
// Audio flows as raw PCM16 little-endian bytes: uplink at InputSampleRate,
// downlink at OutputSampleRate. Base64 and message framing are internal to
// the implementation.
type Channel interface {
	// Connect opens the channel and sends the initial configuration,
	// including the session prompt. Fails with ErrConnectionFailed if
	// the service is unreachable.
	Connect(ctx context.Context) error

	// Close shuts the channel down. Safe to call multiple times.
	Close() error

	// IsConnected reports whether the channel is open.
	IsConnected() bool

	// SendAudio transmits one uplink audio frame, tagged with the wire
	// format descriptor. Fire-and-forget: no acknowledgement or retry.
	SendAudio(pcm16 []byte) error

	// SendText transmits a text control message (e.g. an initial prompt
	// nudge). Fire-and-forget.
	SendText(text string) error

	// OnAudio sets the callback for inbound audio chunks, delivered as
	// raw PCM16 at OutputSampleRate in arrival order.
	OnAudio(fn func(pcm16 []byte))

	// OnTranscript sets the callback for transcription events.
	// role is "user" or "model".
	OnTranscript(fn func(role, text string, isFinal bool))

	// OnInterrupted sets the callback for the service's own notion of
	// interruption (it stopped generating because the user spoke).
	OnInterrupted(fn func())

	// OnTurnComplete sets the callback for end of a model turn.
	OnTurnComplete(fn func())

	// OnCompletion sets the callback for the out-of-band completion
	// message. The payload is passed through uninterpreted.
	OnCompletion(fn func(payload json.RawMessage))

	// OnError sets the callback for asynchronous channel errors.
	OnError(fn func(err error))

	// OnClose sets the callback invoked when the channel closes,
	// normally or otherwise. err is nil for a clean close.
	OnClose(fn func(err error))

	// InputSampleRate returns the uplink sample rate in Hz.
	InputSampleRate() int

	// OutputSampleRate returns the downlink sample rate in Hz.
	OutputSampleRate() int
}
