// ABOUTME: Thread-safe byte ring buffer for callback-driven playback
// ABOUTME: Bridges blocking session writes to the malgo data callback
package output

import "sync"

// RingBuffer provides a thread-safe circular byte buffer. The session loop
// writes into it and the device callback drains it; an underrun reads as
// silence.
type RingBuffer struct {
	buffer   []byte
	readPos  int
	writePos int
	size     int
	count    int
	closed   bool
	mu       sync.Mutex
	notFull  *sync.Cond
}

// NewRingBuffer creates a ring buffer with the given capacity in bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	rb := &RingBuffer{
		buffer: make([]byte, capacity),
		size:   capacity,
	}
	rb.notFull = sync.NewCond(&rb.mu)
	return rb
}

// Write adds bytes to the buffer, blocking while it is full. It returns the
// number of bytes written, which is short only if the buffer is closed.
func (rb *RingBuffer) Write(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for written < len(p) {
		for rb.count == rb.size && !rb.closed {
			rb.notFull.Wait()
		}
		if rb.closed {
			return written
		}
		for written < len(p) && rb.count < rb.size {
			rb.buffer[rb.writePos] = p[written]
			rb.writePos = (rb.writePos + 1) % rb.size
			rb.count++
			written++
		}
	}
	return written
}

// Read fills p from the buffer, zero-filling on underrun, and returns the
// number of real bytes copied.
func (rb *RingBuffer) Read(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for read < len(p) && rb.count > 0 {
		p[read] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}
	for i := read; i < len(p); i++ {
		p[i] = 0
	}

	rb.notFull.Broadcast()
	return read
}

// Available returns the number of bytes buffered.
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Close unblocks any pending writer.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.mu.Unlock()
	rb.notFull.Broadcast()
}
