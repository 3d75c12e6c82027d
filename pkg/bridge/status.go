// ABOUTME: Status event types and the one-way sink interface
// ABOUTME: Fire-and-forget delivery that never blocks the streaming loop
package bridge

// State is the coarse-grained connection state reported to the UI layer.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateStalled      State = "stalled"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)

// Status is one engine status event.
type Status struct {
	Pipeline string `json:"pipeline"`
	State    State  `json:"state"`
	Detail   string `json:"detail,omitempty"`
}

// Sink receives status events. Delivery is decoupled from the streaming
// loop by a bounded queue, so a Sink may block briefly without stalling
// audio; sustained slowness drops events instead.
type Sink interface {
	Emit(status Status)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Status)

// Emit calls f.
func (f SinkFunc) Emit(status Status) { f(status) }
