// ABOUTME: Generic reconnection supervisor owning one pipeline direction
// ABOUTME: Idempotent start/stop, failure ceilings, and bounded backoff
package bridge

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Policy holds the direction-specific supervision parameters. The playback
// and capture pipelines run the same Engine with different values.
type Policy struct {
	// DialTimeout bounds the TCP connect.
	DialTimeout time.Duration

	// ReadTimeout is the socket read deadline, doubling as the
	// stall-detection tick. Zero disables read deadlines.
	ReadTimeout time.Duration

	// WriteTimeout bounds socket writes. Zero disables write deadlines.
	WriteTimeout time.Duration

	// StallLimit is the number of consecutive read timeouts tolerated
	// before the session fails with ErrStalled.
	StallLimit int

	// ConnectFailLimit caps session failures before the engine has ever
	// connected; reaching it is terminal ("peer unreachable").
	ConnectFailLimit int

	// SessionFailLimit caps consecutive no-progress failures after the
	// engine has connected at least once ("connection unstable").
	SessionFailLimit int

	// BackoffStep is the base retry delay. With a zero BackoffCap the
	// delay is constant; otherwise it scales linearly with the consecutive
	// failure count up to BackoffCap.
	BackoffStep time.Duration
	BackoffCap  time.Duration
}

// PlaybackPolicy returns the supervision parameters for the desktop-audio
// playback direction.
func PlaybackPolicy() Policy {
	return Policy{
		DialTimeout:      5 * time.Second,
		ReadTimeout:      5 * time.Second,
		StallLimit:       6,
		ConnectFailLimit: 10,
		SessionFailLimit: 8,
		BackoffStep:      time.Second,
		BackoffCap:       5 * time.Second,
	}
}

// CapturePolicy returns the supervision parameters for the microphone
// capture direction.
func CapturePolicy() Policy {
	return Policy{
		DialTimeout:      5 * time.Second,
		WriteTimeout:     5 * time.Second,
		ConnectFailLimit: 10,
		SessionFailLimit: 6,
		BackoffStep:      time.Second,
	}
}

// backoff returns the delay before the next attempt given the consecutive
// failure count.
func (p Policy) backoff(failures int) time.Duration {
	if p.BackoffCap <= 0 || failures < 1 {
		return p.BackoffStep
	}
	d := time.Duration(failures) * p.BackoffStep
	if d > p.BackoffCap {
		d = p.BackoffCap
	}
	return d
}

// SessionFunc runs one session on an established connection: handshake,
// device binding, then the steady-state transfer loop. It returns nil only
// when the engine was stopped externally.
type SessionFunc func(s *Session) error

// Stats is a snapshot of one engine's counters.
type Stats struct {
	State      State
	Sessions   int64
	Reconnects int64
	Stalls     int64
	BytesMoved int64
}

// Engine supervises one pipeline direction. It owns at most one live
// Session and one worker goroutine at a time.
type Engine struct {
	name   string
	policy Policy
	run    SessionFunc
	dial   DialFunc

	events chan Status

	sessions   atomic.Int64
	reconnects atomic.Int64
	stalls     atomic.Int64
	bytesMoved atomic.Int64
	state      atomic.Value // State

	mu     sync.Mutex
	active atomic.Bool
	holder *connHolder
	stopCh chan struct{}
	done   chan struct{}
}

// NewEngine creates an engine for one direction. Status events are
// dispatched to sink on a dedicated goroutine; a nil sink discards them.
func NewEngine(name string, policy Policy, run SessionFunc, sink Sink) *Engine {
	e := &Engine{
		name:   name,
		policy: policy,
		run:    run,
		dial:   dialTCP,
		events: make(chan Status, 16),
	}
	e.state.Store(StateDisconnected)

	go func() {
		for status := range e.events {
			if sink != nil {
				sink.Emit(status)
			}
		}
	}()

	return e
}

// SetDialer replaces the transport dialer. Intended for tests.
func (e *Engine) SetDialer(dial DialFunc) {
	e.dial = dial
}

// Start begins supervising connections to host:port. It is idempotent
// while a worker is already live; a dead worker that failed to clear the
// active flag is reaped first.
func (e *Engine) Start(host string, port int) error {
	if host == "" {
		return fmt.Errorf("%s: host required", e.name)
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s: invalid port %d", e.name, port)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active.Load() {
		select {
		case <-e.done:
			// Worker died without clearing the flag; reset and restart.
			e.active.Store(false)
		default:
			return nil
		}
	}

	// Each Start is its own worker generation: a fresh stop channel and a
	// fresh connection holder, so a session orphaned by a previous Stop can
	// never act on the restarted engine's state.
	e.active.Store(true)
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	e.holder = &connHolder{}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	go e.supervise(addr, e.stopCh, e.done, e.holder)

	return nil
}

// Stop transitions unconditionally to idle: it clears the active flag,
// closes any live socket to unblock in-flight I/O, and interrupts a
// sleeping backoff. Safe to call concurrently with Start and repeatedly.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.active.Store(false)
	stopCh := e.stopCh
	holder := e.holder
	e.stopCh = nil
	e.holder = nil
	e.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	holder.shutdown()
	e.emit(StateDisconnected, "stopped")
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		State:      e.state.Load().(State),
		Sessions:   e.sessions.Load(),
		Reconnects: e.reconnects.Load(),
		Stalls:     e.stalls.Load(),
		BytesMoved: e.bytesMoved.Load(),
	}
}

// Running reports whether the engine currently wants to be connected.
func (e *Engine) Running() bool {
	return e.active.Load()
}

// emit queues a status event without ever blocking the streaming loop.
func (e *Engine) emit(state State, detail string) {
	e.state.Store(state)
	status := Status{Pipeline: e.name, State: state, Detail: detail}
	select {
	case e.events <- status:
	default:
		log.Printf("[%s] status queue full, dropping %s", e.name, state)
	}
}

// supervise is the worker loop: one session attempt per iteration, with
// failure accounting and backoff between attempts. It consults only its
// own generation's stop channel, never the shared active flag: after a
// Stop/Start cycle the flag belongs to the next generation.
func (e *Engine) supervise(addr string, stopCh, done chan struct{}, holder *connHolder) {
	defer close(done)

	stopped := func() bool {
		select {
		case <-stopCh:
			return true
		default:
			return false
		}
	}

	everConnected := false
	connectFails := 0
	sessionFails := 0

	for !stopped() {
		e.emit(StateConnecting, addr)
		e.sessions.Add(1)

		sess, err := e.runSession(addr, stopCh, holder)
		if sess != nil && sess.connected {
			everConnected = true
		}

		if stopped() {
			// Stop already reported the disconnect; a restarted engine
			// keeps its own accounting.
			return
		}
		if err == nil {
			// A session procedure only returns nil when stopped; while
			// still running, treat a bare return as a closed stream.
			err = ErrConnectionClosed
		}

		log.Printf("[%s] session ended: %v", e.name, err)

		var failures int
		if everConnected {
			if sess != nil && sess.delivered {
				// The attempt made progress; the ceiling counts
				// consecutive no-progress sessions.
				sessionFails = 0
			}
			sessionFails++
			if sessionFails >= e.policy.SessionFailLimit {
				e.terminal(stopCh, fmt.Sprintf("connection unstable: %v", err))
				return
			}
			failures = sessionFails
		} else {
			connectFails++
			if connectFails >= e.policy.ConnectFailLimit {
				e.terminal(stopCh, fmt.Sprintf("peer unreachable: %v", err))
				return
			}
			failures = connectFails
		}

		e.reconnects.Add(1)
		e.emit(StateReconnecting, err.Error())

		select {
		case <-time.After(e.policy.backoff(failures)):
		case <-stopCh:
			return
		}
	}
}

// runSession dials, runs one session procedure, and guarantees the socket
// is released on every exit path. The holder belongs to this generation,
// so a concurrent restart never loses track of its own socket.
func (e *Engine) runSession(addr string, stopCh chan struct{}, holder *connHolder) (*Session, error) {
	conn, err := e.dial(addr, e.policy.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}

	holder.store(conn)
	select {
	case <-stopCh:
		// Stop raced the dial; the holder may already be drained.
		holder.release(conn)
		return nil, nil
	default:
	}

	sess := &Session{
		ID:     uuid.NewString()[:8],
		Conn:   conn,
		Policy: e.policy,
		engine: e,
		stop:   stopCh,
	}

	err = e.run(sess)
	holder.release(conn)
	return sess, err
}

// terminal escalates to a terminal error: the active flag is cleared and
// no further attempts occur until Start is called again. A generation that
// has been superseded by a Stop/Start cycle must not report for the
// engine, so the caller's stop channel is compared with the current one.
func (e *Engine) terminal(stopCh chan struct{}, detail string) {
	e.mu.Lock()
	if e.stopCh != stopCh {
		e.mu.Unlock()
		return
	}
	e.active.Store(false)
	e.stopCh = nil
	e.holder = nil
	e.mu.Unlock()

	log.Printf("[%s] terminal: %s", e.name, detail)
	e.emit(StateError, detail)
}
