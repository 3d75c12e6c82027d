// ABOUTME: Oto-based audio output implementation
// ABOUTME: Handles PCM playback with software volume control using oto library
package output

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/AudioLink-Project/audiolink-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// otoContext is process-wide: oto allows only one context per process, so
// successive sessions reuse it as long as the format matches.
var (
	otoMu         sync.Mutex
	otoCtx        *oto.Context
	otoSampleRate int
	otoChannels   int
)

// Oto output implementation using the oto library.
type Oto struct {
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	vol        volumeState
	ready      bool
}

// NewOto creates a new Oto output.
func NewOto() Output {
	return &Oto{vol: newVolumeState()}
}

// Open initializes the output device.
func (o *Oto) Open(sampleRate, channels, bufferBytes int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid output format: %dHz %dch", sampleRate, channels)
	}

	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil && (otoSampleRate != sampleRate || otoChannels != channels) {
		// oto cannot reinitialize; keep the existing context and let the
		// device resample as best it can.
		log.Printf("Warning: format change (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization",
			otoSampleRate, otoChannels, sampleRate, channels)
	}

	if otoCtx == nil {
		frameSize := audio.FrameSize(channels, 16)
		bufferFrames := bufferBytes / frameSize
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(bufferFrames) * time.Second / time.Duration(sampleRate),
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan

		otoCtx = ctx
		otoSampleRate = sampleRate
		otoChannels = channels
	}

	o.sampleRate = otoSampleRate
	o.channels = otoChannels

	// Persistent player reading from a pipe for continuous streaming.
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", o.sampleRate, o.channels)

	return nil
}

// Write outputs PCM bytes, blocking until the pipe accepts them.
func (o *Oto) Write(p []byte) (int, error) {
	if !o.ready {
		return 0, fmt.Errorf("output not initialized")
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	volume, muted := o.vol.level()
	audio.ApplyVolume16(buf, volume, muted)

	n, err := o.pipeWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("pipe write failed: %w", err)
	}
	return n, nil
}

// Close releases output resources. The shared oto context stays alive for
// the next session.
func (o *Oto) Close() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	o.ready = false
	return nil
}

// SetVolume sets the volume (0-100).
func (o *Oto) SetVolume(volume int) {
	o.vol.set(volume)
}

// SetMuted sets mute state.
func (o *Oto) SetMuted(muted bool) {
	o.vol.setMuted(muted)
}
