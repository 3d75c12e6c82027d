// ABOUTME: Tests for the capture session procedure
// ABOUTME: Fake microphone source feeding a recording connection
package bridge

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/AudioLink-Project/audiolink-go/pkg/audio/capture"
	"github.com/AudioLink-Project/audiolink-go/pkg/protocol"
)

// recordingConn captures everything written to it.
type recordingConn struct {
	scriptedConn
	buf      bytes.Buffer
	failures int // fail writes after this many successes, 0 = never
	writes   int
}

func (c *recordingConn) Write(p []byte) (int, error) {
	c.writes++
	if c.failures > 0 && c.writes > c.failures {
		return 0, errors.New("broken pipe")
	}
	return c.buf.Write(p)
}

// fakeSource produces a fixed number of patterned blocks, then fails.
type fakeSource struct {
	blocks    int
	blockSize int
	produced  int
	opened    bool
}

func (f *fakeSource) Open(sampleRate, channels, blockFrames int) error {
	f.opened = true
	f.blockSize = blockFrames * channels * 2
	return nil
}

func (f *fakeSource) ReadBlock(p []byte) (int, error) {
	if f.produced >= f.blocks {
		return 0, errors.New("device unplugged")
	}
	f.produced++
	for i := range p {
		p[i] = byte(f.produced)
	}
	return len(p), nil
}

func (f *fakeSource) Close() error { return nil }

func TestCaptureWritesHeaderThenBlocks(t *testing.T) {
	conn := &recordingConn{}
	src := &fakeSource{blocks: 3}
	format := DefaultCaptureFormat()
	c := NewCapture(func() capture.Source { return src }, format)

	sess := newTestSession(conn, CapturePolicy())
	err := c.Run(sess)
	if err == nil {
		t.Fatal("expected session to end with the device error")
	}

	data := conn.buf.Bytes()
	if len(data) < protocol.HeaderSize {
		t.Fatalf("only %d bytes written, want at least the header", len(data))
	}

	h, derr := protocol.Decode(data[:protocol.HeaderSize], protocol.MagicCapture)
	if derr != nil {
		t.Fatalf("decode written header: %v", derr)
	}
	if h != format {
		t.Errorf("wire header %v, want %v", h, format)
	}

	wantPayload := 3 * format.BlockSize()
	if got := len(data) - protocol.HeaderSize; got != wantPayload {
		t.Errorf("payload %d bytes, want %d", got, wantPayload)
	}

	// First byte of each block identifies its order.
	for i := 0; i < 3; i++ {
		off := protocol.HeaderSize + i*format.BlockSize()
		if data[off] != byte(i+1) {
			t.Errorf("block %d starts with %d, want %d", i, data[off], i+1)
		}
	}

	if !sess.connected || !sess.delivered {
		t.Error("session should be marked connected and delivered")
	}
}

func TestCaptureWriteFailureIsRecoverable(t *testing.T) {
	conn := &recordingConn{failures: 1} // header succeeds, first block fails
	src := &fakeSource{blocks: 10}
	c := NewCapture(func() capture.Source { return src }, DefaultCaptureFormat())

	err := c.Run(newTestSession(conn, CapturePolicy()))
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed on write failure, got %v", err)
	}
}

func TestCaptureStopsWhenInactive(t *testing.T) {
	conn := &recordingConn{}
	src := &fakeSource{blocks: 1 << 30}
	c := NewCapture(func() capture.Source { return src }, DefaultCaptureFormat())

	sess := newTestSession(conn, CapturePolicy())

	done := make(chan error, 1)
	go func() { done <- c.Run(sess) }()

	time.Sleep(20 * time.Millisecond)
	sess.engine.active.Store(false)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean exit on stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("capture loop did not observe the cleared active flag")
	}
}

var _ net.Conn = (*recordingConn)(nil)
