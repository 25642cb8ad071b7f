package conversation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversation package.
var (
	// ErrMissingAPIKey indicates no API key and no credentials endpoint
	// were provided.
	ErrMissingAPIKey = errors.New("conversation: API key is required")

	// ErrNotConnected indicates the channel is not connected.
	ErrNotConnected = errors.New("conversation: not connected")

	// ErrAlreadyConnected indicates the channel is already connected.
	ErrAlreadyConnected = errors.New("conversation: already connected")

	// ErrConnectionFailed indicates the connection could not be
	// established. Terminal: the caller must start a new session.
	ErrConnectionFailed = errors.New("conversation: connection failed")

	// ErrChannelClosed indicates the connection dropped after being
	// established. Terminal: no automatic reconnection is attempted.
	ErrChannelClosed = errors.New("conversation: channel closed")
)

// ConnectionError wraps a websocket-level failure with its cause.
type ConnectionError struct {
	// Reason describes what failed.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Sentinel is ErrConnectionFailed or ErrChannelClosed, so callers
	// can classify with errors.Is.
	Sentinel error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("conversation: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("conversation: %s", e.Reason)
}

// Unwrap lets errors.Is match both the sentinel and the cause.
func (e *ConnectionError) Unwrap() []error {
	return []error{e.Sentinel, e.Cause}
}

// newConnectError creates a ConnectionError for a failed dial.
func newConnectError(reason string, cause error) *ConnectionError {
	return &ConnectionError{Reason: reason, Cause: cause, Sentinel: ErrConnectionFailed}
}

// newClosedError creates a ConnectionError for a dropped channel.
func newClosedError(reason string, cause error) *ConnectionError {
	return &ConnectionError{Reason: reason, Cause: cause, Sentinel: ErrChannelClosed}
}
