// ABOUTME: Main bridge application orchestration
// ABOUTME: Wires the two streaming engines to devices, status sinks, stats
package app

import (
	"fmt"
	"log"
	"sync"

	"github.com/AudioLink-Project/audiolink-go/pkg/audio/capture"
	"github.com/AudioLink-Project/audiolink-go/pkg/audio/output"
	"github.com/AudioLink-Project/audiolink-go/pkg/bridge"
	"github.com/AudioLink-Project/audiolink-go/pkg/protocol"
)

// Config holds bridge configuration.
type Config struct {
	Host      string
	AudioPort int
	MicPort   int

	PlaybackEnabled bool
	CaptureEnabled  bool

	// OutputBackend selects the playback device backend: "oto" or "malgo".
	OutputBackend string

	// OnStatus receives every engine status event. Optional.
	OnStatus func(bridge.Status)

	// OnFormat receives the playback stream format per session. Optional.
	OnFormat func(protocol.Header)
}

// Bridge owns the two pipeline engines. The playback and capture engines
// run independently; either may be active without the other.
type Bridge struct {
	config   Config
	playback *bridge.Engine
	capture  *bridge.Engine

	mu      sync.Mutex
	volume  int
	muted   bool
	current output.Output
}

// New creates the bridge and its engines. Nothing connects until Start.
func New(config Config) (*Bridge, error) {
	if config.OutputBackend == "" {
		config.OutputBackend = "oto"
	}
	if config.OutputBackend != "oto" && config.OutputBackend != "malgo" {
		return nil, fmt.Errorf("unknown output backend %q", config.OutputBackend)
	}

	b := &Bridge{config: config, volume: 100}

	sink := bridge.SinkFunc(func(s bridge.Status) {
		log.Printf("[%s] %s %s", s.Pipeline, s.State, s.Detail)
		if config.OnStatus != nil {
			config.OnStatus(s)
		}
	})

	playback := bridge.NewPlayback(b.newOutput)
	playback.OnFormat = config.OnFormat
	b.playback = bridge.NewEngine("playback", bridge.PlaybackPolicy(), playback.Run, sink)

	cap := bridge.NewCapture(func() capture.Source { return capture.NewMalgo() }, bridge.DefaultCaptureFormat())
	b.capture = bridge.NewEngine("capture", bridge.CapturePolicy(), cap.Run, sink)

	return b, nil
}

// newOutput builds a playback device for one session with the current
// volume settings applied.
func (b *Bridge) newOutput() output.Output {
	var out output.Output
	if b.config.OutputBackend == "malgo" {
		out = output.NewMalgo()
	} else {
		out = output.NewOto()
	}

	b.mu.Lock()
	volume, muted := b.volume, b.muted
	b.current = out
	b.mu.Unlock()

	if vc, ok := out.(output.VolumeControl); ok {
		vc.SetVolume(volume)
		vc.SetMuted(muted)
	}
	return out
}

// Start launches the enabled pipelines.
func (b *Bridge) Start() error {
	if b.config.PlaybackEnabled {
		if err := b.playback.Start(b.config.Host, b.config.AudioPort); err != nil {
			return fmt.Errorf("start playback: %w", err)
		}
	}
	if b.config.CaptureEnabled {
		if err := b.capture.Start(b.config.Host, b.config.MicPort); err != nil {
			b.playback.Stop()
			return fmt.Errorf("start capture: %w", err)
		}
	}
	return nil
}

// Toggle flips one pipeline between running and stopped.
func (b *Bridge) Toggle(pipeline string) error {
	switch pipeline {
	case "playback":
		if b.playback.Running() {
			b.playback.Stop()
			return nil
		}
		return b.playback.Start(b.config.Host, b.config.AudioPort)
	case "capture":
		if b.capture.Running() {
			b.capture.Stop()
			return nil
		}
		return b.capture.Start(b.config.Host, b.config.MicPort)
	default:
		return fmt.Errorf("unknown pipeline %q", pipeline)
	}
}

// SetVolume applies playback volume to the live output and future sessions.
func (b *Bridge) SetVolume(volume int, muted bool) {
	b.mu.Lock()
	b.volume = volume
	b.muted = muted
	current := b.current
	b.mu.Unlock()

	if vc, ok := current.(output.VolumeControl); ok {
		vc.SetVolume(volume)
		vc.SetMuted(muted)
	}
}

// Stats returns per-pipeline counter snapshots.
func (b *Bridge) Stats() map[string]bridge.Stats {
	return map[string]bridge.Stats{
		"playback": b.playback.Stats(),
		"capture":  b.capture.Stats(),
	}
}

// Close stops both pipelines.
func (b *Bridge) Close() {
	b.playback.Stop()
	b.capture.Stop()
}
