// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo for callback-driven PCM playback
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/AudioLink-Project/audiolink-go/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo output implementation using the malgo/miniaudio library.
type Malgo struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int
	vol        volumeState
	ready      bool

	ring *RingBuffer
	mu   sync.Mutex
}

// NewMalgo creates a new Malgo output.
func NewMalgo() Output {
	return &Malgo{vol: newVolumeState()}
}

// Open initializes the playback device with the negotiated format.
func (m *Malgo) Open(sampleRate, channels, bufferBytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid output format: %dHz %dch", sampleRate, channels)
	}
	if m.device != nil {
		return fmt.Errorf("output already open")
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	frameSize := audio.FrameSize(channels, 16)
	minBuffer := sampleRate * frameSize / 10 // 100ms floor
	if bufferBytes < minBuffer {
		bufferBytes = minBuffer
	}
	m.ring = NewRingBuffer(bufferBytes)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		m.ring.Read(pOutput)
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.sampleRate = sampleRate
	m.channels = channels
	m.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels, buffer=%d bytes (malgo)",
		sampleRate, channels, bufferBytes)

	return nil
}

// Write queues PCM bytes for playback, blocking while the ring is full.
func (m *Malgo) Write(p []byte) (int, error) {
	if !m.ready {
		return 0, fmt.Errorf("output not initialized")
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	volume, muted := m.vol.level()
	audio.ApplyVolume16(buf, volume, muted)

	n := m.ring.Write(buf)
	if n < len(p) {
		return n, fmt.Errorf("output closed during write")
	}
	return n, nil
}

// Close stops the device and releases resources.
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ring != nil {
		m.ring.Close()
	}
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
		m.ready = false
	}
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// SetVolume sets the volume (0-100).
func (m *Malgo) SetVolume(volume int) {
	m.vol.set(volume)
}

// SetMuted sets mute state.
func (m *Malgo) SetMuted(muted bool) {
	m.vol.setMuted(muted)
}
