package voice

import (
	"errors"

	"github.com/phronesislabs/phronesis-voice/pkg/audioio"
	"github.com/phronesislabs/phronesis-voice/pkg/conversation"
	"github.com/phronesislabs/phronesis-voice/pkg/pcm"
)

// The session error taxonomy. Device and connection errors are terminal:
// they tear down the whole session and are surfaced as a terminal state
// change, never retried silently. Frame-level errors are absorbed locally.
var (
	// ErrPermissionDenied: microphone access refused. The user must
	// retry manually.
	ErrPermissionDenied = audioio.ErrPermissionDenied

	// ErrDeviceUnavailable: capture or playback device failed.
	ErrDeviceUnavailable = audioio.ErrDeviceUnavailable

	// ErrConnectionFailed: remote service unreachable at start.
	ErrConnectionFailed = conversation.ErrConnectionFailed

	// ErrChannelClosed: remote channel dropped mid-session.
	ErrChannelClosed = conversation.ErrChannelClosed

	// ErrMalformedFrame: codec-level decode failure. Local to one frame;
	// the frame is skipped and the session continues.
	ErrMalformedFrame = pcm.ErrMalformedFrame

	// ErrSessionClosed indicates an operation on a stopped session.
	ErrSessionClosed = errors.New("voice: session closed")

	// ErrAlreadyStarted indicates Start on a session that is already
	// connecting or active.
	ErrAlreadyStarted = errors.New("voice: session already started")

	// ErrQueueClosed indicates a pop from a closed downlink queue.
	ErrQueueClosed = errors.New("voice: downlink queue closed")
)
