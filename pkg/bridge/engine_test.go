// ABOUTME: Tests for the reconnection supervisor
// ABOUTME: Idempotent start, failure ceilings, backoff interrupt, stop latency
package bridge

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// statusRecorder collects emitted statuses for assertions.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) Emit(s Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

func (r *statusRecorder) last() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}, false
	}
	return r.statuses[len(r.statuses)-1], true
}

func (r *statusRecorder) has(state State) bool {
	return r.count(state) > 0
}

func (r *statusRecorder) count(state State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.statuses {
		if s.State == state {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fastPolicy() Policy {
	return Policy{
		DialTimeout:      time.Second,
		ReadTimeout:      50 * time.Millisecond,
		StallLimit:       3,
		ConnectFailLimit: 3,
		SessionFailLimit: 2,
		BackoffStep:      time.Millisecond,
	}
}

// pipeDialer hands the engine one end of a pipe per attempt.
func pipeDialer() DialFunc {
	return func(addr string, timeout time.Duration) (net.Conn, error) {
		client, _ := net.Pipe()
		return client, nil
	}
}

func TestStartValidation(t *testing.T) {
	e := NewEngine("playback", fastPolicy(), nil, nil)

	if err := e.Start("", 5000); err == nil {
		t.Error("empty host accepted")
	}
	if err := e.Start("desktop.local", 0); err == nil {
		t.Error("port 0 accepted")
	}
	if err := e.Start("desktop.local", 70000); err == nil {
		t.Error("out-of-range port accepted")
	}
}

func TestStartIdempotent(t *testing.T) {
	started := make(chan struct{}, 8)
	run := func(s *Session) error {
		started <- struct{}{}
		for s.Active() {
			time.Sleep(time.Millisecond)
		}
		return nil
	}

	e := NewEngine("playback", fastPolicy(), run, nil)
	e.SetDialer(pipeDialer())
	defer e.Stop()

	if err := e.Start("127.0.0.1", 5000); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := e.Start("127.0.0.1", 5000); err != nil {
		t.Fatalf("second start: %v", err)
	}

	waitFor(t, "first session", func() bool { return len(started) >= 1 })
	time.Sleep(50 * time.Millisecond)

	if got := e.Stats().Sessions; got != 1 {
		t.Errorf("sessions = %d after double start, want 1", got)
	}
}

func TestTerminalAfterConnectFailures(t *testing.T) {
	rec := &statusRecorder{}
	e := NewEngine("capture", fastPolicy(), nil, rec)
	e.SetDialer(func(addr string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	if err := e.Start("127.0.0.1", 5001); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "terminal error", func() bool { return rec.has(StateError) })

	if e.Running() {
		t.Error("engine still active after terminal error")
	}
	if got := e.Stats().Sessions; got != 3 {
		t.Errorf("sessions = %d, want ConnectFailLimit of 3", got)
	}

	last, _ := rec.last()
	if last.State != StateError {
		t.Errorf("last status %s, want error", last.State)
	}
	if want := "peer unreachable"; len(last.Detail) < len(want) || last.Detail[:len(want)] != want {
		t.Errorf("terminal detail %q, want %q prefix", last.Detail, want)
	}

	// No further attempts until Start is called again.
	sessions := e.Stats().Sessions
	time.Sleep(50 * time.Millisecond)
	if e.Stats().Sessions != sessions {
		t.Error("attempts continued after terminal error")
	}
}

func TestTerminalAfterPostConnectFailures(t *testing.T) {
	rec := &statusRecorder{}
	run := func(s *Session) error {
		s.MarkConnected()
		return errors.New("mid-stream failure")
	}

	e := NewEngine("playback", fastPolicy(), run, rec)
	e.SetDialer(pipeDialer())

	if err := e.Start("127.0.0.1", 5000); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "terminal error", func() bool { return rec.has(StateError) })

	last, _ := rec.last()
	if want := "connection unstable"; len(last.Detail) < len(want) || last.Detail[:len(want)] != want {
		t.Errorf("terminal detail %q, want %q prefix", last.Detail, want)
	}
	if got := e.Stats().Sessions; got != 2 {
		t.Errorf("sessions = %d, want SessionFailLimit of 2", got)
	}
}

func TestDeliveredSessionResetsFailureCount(t *testing.T) {
	// Every session makes progress before failing; the post-connect
	// ceiling counts consecutive no-progress sessions, so the engine
	// keeps retrying well past SessionFailLimit attempts.
	run := func(s *Session) error {
		s.MarkConnected()
		s.MarkDelivered(4096)
		return errors.New("brief blip")
	}

	e := NewEngine("playback", fastPolicy(), run, nil)
	e.SetDialer(pipeDialer())
	defer e.Stop()

	if err := e.Start("127.0.0.1", 5000); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "five sessions", func() bool { return e.Stats().Sessions >= 5 })

	if !e.Running() {
		t.Error("engine reached terminal error despite per-session progress")
	}
}

func TestStopUnblocksBlockedRead(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn // accept and stay silent
		}
	}()

	exited := make(chan struct{})
	run := func(s *Session) error {
		buf := make([]byte, 256)
		_, err := s.Conn.Read(buf) // no deadline: relies on Stop's close
		close(exited)
		return err
	}

	pol := fastPolicy()
	e := NewEngine("playback", pol, run, nil)

	addr := ln.Addr().(*net.TCPAddr)
	if err := e.Start("127.0.0.1", addr.Port); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)
	e.Stop()

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("worker still blocked in read after Stop")
	}
}

func TestStopInterruptsBackoff(t *testing.T) {
	rec := &statusRecorder{}
	pol := fastPolicy()
	pol.BackoffStep = 10 * time.Second
	pol.ConnectFailLimit = 100

	e := NewEngine("capture", pol, nil, rec)
	e.SetDialer(func(addr string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	if err := e.Start("127.0.0.1", 5001); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "reconnecting status", func() bool { return rec.has(StateReconnecting) })

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}

	waitFor(t, "disconnected status", func() bool { return rec.has(StateDisconnected) })
}

func TestStopThenRestartIgnoresStaleSession(t *testing.T) {
	// A session left in flight by Stop belongs to a dead worker
	// generation. When it eventually fails, that failure must not be
	// charged to a freshly restarted engine.
	pol := fastPolicy()
	pol.ConnectFailLimit = 2

	rec := &statusRecorder{}
	staleRelease := make(chan struct{})
	var attempts atomic.Int32

	run := func(s *Session) error {
		switch attempts.Add(1) {
		case 1:
			return errors.New("handshake failed")
		case 2:
			// Held open across Stop/Start so it outlives its generation.
			<-staleRelease
			return errors.New("handshake failed")
		default:
			s.MarkConnected()
			for s.Active() {
				time.Sleep(time.Millisecond)
			}
			return nil
		}
	}

	e := NewEngine("playback", pol, run, rec)
	e.SetDialer(pipeDialer())
	defer e.Stop()

	if err := e.Start("127.0.0.1", 5000); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second attempt in flight", func() bool { return attempts.Load() >= 2 })

	e.Stop()
	if err := e.Start("127.0.0.1", 5000); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitFor(t, "restarted attempt", func() bool { return attempts.Load() >= 3 })

	// The old generation already has one strike; if the stale session's
	// failure counted, ConnectFailLimit of 2 would be reached here.
	reconnectsBefore := e.Stats().Reconnects
	close(staleRelease)
	time.Sleep(50 * time.Millisecond)

	if rec.has(StateError) {
		t.Fatal("stale session drove the restarted engine to a terminal error")
	}
	if !e.Running() {
		t.Fatal("restarted engine no longer running after stale session ended")
	}
	if got := e.Stats().Reconnects; got != reconnectsBefore {
		t.Errorf("reconnects grew from %d to %d on a stale session failure", reconnectsBefore, got)
	}
}

func TestStaleSessionSeesInactive(t *testing.T) {
	// Session procedures poll Active; a restart must not revive a session
	// from the stopped generation even though the engine is active again.
	pol := fastPolicy()
	pol.ConnectFailLimit = 100

	var attempts atomic.Int32
	staleDone := make(chan struct{})

	run := func(s *Session) error {
		if attempts.Add(1) == 1 {
			for s.Active() {
				time.Sleep(time.Millisecond)
			}
			close(staleDone)
			return nil
		}
		for s.Active() {
			time.Sleep(time.Millisecond)
		}
		return nil
	}

	e := NewEngine("playback", pol, run, nil)
	e.SetDialer(pipeDialer())
	defer e.Stop()

	if err := e.Start("127.0.0.1", 5000); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first attempt in flight", func() bool { return attempts.Load() >= 1 })

	e.Stop()
	if err := e.Start("127.0.0.1", 5000); err != nil {
		t.Fatalf("restart: %v", err)
	}

	// The restart sets the shared active flag, but the first session's
	// generation is closed; its loop must still exit.
	select {
	case <-staleDone:
	case <-time.After(2 * time.Second):
		t.Fatal("stale session kept running after Stop/Start")
	}
}

func TestRestartAfterTerminalError(t *testing.T) {
	rec := &statusRecorder{}
	e := NewEngine("capture", fastPolicy(), nil, rec)
	e.SetDialer(func(addr string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	if err := e.Start("127.0.0.1", 5001); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "terminal error", func() bool { return rec.has(StateError) })

	// An explicit Start resumes supervision.
	if err := e.Start("127.0.0.1", 5001); err != nil {
		t.Fatalf("restart after terminal error: %v", err)
	}
	waitFor(t, "new attempts", func() bool { return e.Stats().Sessions > 3 })
	e.Stop()
}

func TestBackoffShapes(t *testing.T) {
	linear := Policy{BackoffStep: time.Second, BackoffCap: 5 * time.Second}
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{3, 3 * time.Second},
		{5, 5 * time.Second},
		{9, 5 * time.Second}, // capped
	}
	for _, tt := range tests {
		if got := linear.backoff(tt.failures); got != tt.want {
			t.Errorf("linear backoff(%d) = %s, want %s", tt.failures, got, tt.want)
		}
	}

	constant := Policy{BackoffStep: time.Second}
	for _, failures := range []int{1, 4, 20} {
		if got := constant.backoff(failures); got != time.Second {
			t.Errorf("constant backoff(%d) = %s, want 1s", failures, got)
		}
	}
}
