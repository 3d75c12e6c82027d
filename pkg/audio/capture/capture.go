// ABOUTME: Capture source interface definition
// ABOUTME: Produces fixed-size blocks of interleaved 16-bit PCM on demand
package capture

// Source represents a microphone capture device opened with a fixed block
// size. ReadBlock blocks until one full block is available.
type Source interface {
	// Open initializes the device for the given format and block size.
	Open(sampleRate, channels, blockFrames int) error

	// ReadBlock fills p with exactly one block of captured PCM and returns
	// the byte count. It fails once the source is closed.
	ReadBlock(p []byte) (int, error)

	// Close stops the device and releases resources.
	Close() error
}

// Factory creates a fresh Source for one session.
type Factory func() Source
