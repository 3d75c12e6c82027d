// ABOUTME: Audio output interface definition
// ABOUTME: Byte-oriented sink for interleaved 16-bit little-endian PCM
package output

// Output represents an audio output device. Writes carry interleaved
// little-endian 16-bit PCM and must be frame-aligned by the caller.
type Output interface {
	// Open initializes the device. bufferBytes is the requested device
	// buffer; backends may round up to a platform minimum.
	Open(sampleRate, channels, bufferBytes int) error

	// Write queues aligned PCM bytes for playback, blocking until the
	// device accepts them. Returns the number of bytes consumed.
	Write(p []byte) (int, error)

	// Close releases device resources.
	Close() error
}

// VolumeControl is implemented by backends with software volume.
type VolumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
}

// Factory creates a fresh Output for one session. The engine opens and
// closes one device per connection attempt.
type Factory func() Output
