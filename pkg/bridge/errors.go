// ABOUTME: Session-level error taxonomy
// ABOUTME: Recoverable failures that end a Session but not the Engine
package bridge

import "errors"

var (
	// ErrConnectionClosed indicates the peer closed the stream or the
	// socket failed mid-transfer. Ends the Session; the supervisor retries.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrStalled indicates a live connection produced no data for the
	// configured number of consecutive read-timeout intervals.
	ErrStalled = errors.New("stream stalled")
)
