// ABOUTME: Tests for the playback ring buffer
// ABOUTME: Verifies wrap-around, underrun zero-fill, and close semantics
package output

import (
	"testing"
	"time"
)

func TestRingBufferRoundTrip(t *testing.T) {
	rb := NewRingBuffer(8)

	n := rb.Write([]byte{1, 2, 3, 4})
	if n != 4 {
		t.Fatalf("write returned %d, want 4", n)
	}

	got := make([]byte, 4)
	if n := rb.Read(got); n != 4 {
		t.Fatalf("read returned %d, want 4", n)
	}
	for i, b := range []byte{1, 2, 3, 4} {
		if got[i] != b {
			t.Errorf("byte %d: got %d, want %d", i, got[i], b)
		}
	}
}

func TestRingBufferUnderrunZeroFills(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Write([]byte{9, 9})

	got := make([]byte, 4)
	n := rb.Read(got)
	if n != 2 {
		t.Fatalf("read returned %d, want 2", n)
	}
	if got[2] != 0 || got[3] != 0 {
		t.Errorf("underrun not zero-filled: %v", got)
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(4)

	rb.Write([]byte{1, 2, 3})
	rb.Read(make([]byte, 2))
	rb.Write([]byte{4, 5, 6})

	got := make([]byte, 4)
	if n := rb.Read(got); n != 4 {
		t.Fatalf("read returned %d, want 4", n)
	}
	for i, b := range []byte{3, 4, 5, 6} {
		if got[i] != b {
			t.Errorf("byte %d: got %d, want %d", i, got[i], b)
		}
	}
}

func TestRingBufferCloseUnblocksWriter(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Write([]byte{1, 2})

	done := make(chan int, 1)
	go func() {
		done <- rb.Write([]byte{3, 4})
	}()

	time.Sleep(10 * time.Millisecond)
	rb.Close()

	select {
	case n := <-done:
		if n != 0 {
			t.Errorf("closed write returned %d, want 0", n)
		}
	case <-time.After(time.Second):
		t.Fatal("writer still blocked after Close")
	}
}
