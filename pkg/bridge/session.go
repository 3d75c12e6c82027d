// ABOUTME: One connect-to-disconnect attempt
// ABOUTME: Tracks connected/delivered progress for the supervisor's counters
package bridge

import "net"

// Session is one connection attempt. It never outlives its socket: the
// supervisor closes the connection when the session procedure returns.
type Session struct {
	ID     string
	Conn   net.Conn
	Policy Policy

	engine    *Engine
	stop      chan struct{}
	connected bool
	delivered bool
}

// Active reports whether the owning engine still wants this session
// running. Session procedures check it at the top of every loop iteration.
// The stop channel is this session's own worker generation: a session
// orphaned by a Stop/Start cycle sees false even though the restarted
// engine is active again.
func (s *Session) Active() bool {
	select {
	case <-s.stop:
		return false
	default:
		return s.engine.active.Load()
	}
}

// MarkConnected records the handshake-plus-first-data milestone and emits
// a connected status once per session.
func (s *Session) MarkConnected() {
	if s.connected {
		return
	}
	s.connected = true
	s.engine.emit(StateConnected, s.Conn.RemoteAddr().String())
}

// MarkDelivered records n bytes moved through the pipeline.
func (s *Session) MarkDelivered(n int) {
	s.delivered = true
	s.engine.bytesMoved.Add(int64(n))
}

// MarkStalled counts one stall streak and emits the stalled status.
func (s *Session) MarkStalled(detail string) {
	s.engine.stalls.Add(1)
	s.engine.emit(StateStalled, detail)
}

// MarkResumed clears a stalled indicator after data starts flowing again.
// A stall streak that began before the first delivery has nothing to
// resume; MarkConnected reports that milestone instead.
func (s *Session) MarkResumed() {
	if !s.connected {
		return
	}
	s.engine.emit(StateConnected, "stream resumed")
}
