// ABOUTME: Malgo-based microphone capture implementation
// ABOUTME: Buffers miniaudio callback data into fixed-size blocks
package capture

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/AudioLink-Project/audiolink-go/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo capture implementation using the malgo/miniaudio library.
type Malgo struct {
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	frameSize int

	// Callback data is chunked through a bounded channel; the callback
	// drops the oldest pending chunk rather than blocking the audio thread.
	chunks    chan []byte
	remainder []byte
	closed    chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

// NewMalgo creates a new Malgo capture source.
func NewMalgo() Source {
	return &Malgo{
		chunks: make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

// Open initializes the capture device.
func (m *Malgo) Open(sampleRate, channels, blockFrames int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sampleRate <= 0 || channels <= 0 || blockFrames <= 0 {
		return fmt.Errorf("invalid capture format: %dHz %dch block=%d", sampleRate, channels, blockFrames)
	}
	if m.device != nil {
		return fmt.Errorf("capture already open")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx
	m.frameSize = audio.FrameSize(channels, 16)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(blockFrames)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		data := make([]byte, len(pInput))
		copy(data, pInput)
		select {
		case m.chunks <- data:
		default:
			// Reader is behind; drop the oldest chunk to stay current.
			select {
			case <-m.chunks:
			default:
			}
			select {
			case m.chunks <- data:
			default:
			}
		}
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.device = device

	log.Printf("Microphone capture initialized: %dHz, %d channels, block=%d frames (malgo)",
		sampleRate, channels, blockFrames)

	return nil
}

// ReadBlock assembles exactly len(p) bytes of captured audio.
func (m *Malgo) ReadBlock(p []byte) (int, error) {
	filled := 0

	if len(m.remainder) > 0 {
		n := copy(p, m.remainder)
		m.remainder = m.remainder[n:]
		filled += n
	}

	for filled < len(p) {
		select {
		case chunk := <-m.chunks:
			n := copy(p[filled:], chunk)
			filled += n
			if n < len(chunk) {
				m.remainder = chunk[n:]
			}
		case <-m.closed:
			return filled, fmt.Errorf("capture closed: %w", io.EOF)
		}
	}

	return filled, nil
}

// Close stops the device and unblocks any pending ReadBlock.
func (m *Malgo) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: capture device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
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
