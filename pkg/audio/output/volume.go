// ABOUTME: Shared software volume state for output backends
// ABOUTME: Safe to adjust from the control goroutine during playback writes
package output

import "sync"

// volumeState holds the volume/mute pair behind a mutex: SetVolume and
// SetMuted arrive on the control goroutine while the session goroutine
// reads the level on every Write.
type volumeState struct {
	mu     sync.Mutex
	volume int
	muted  bool
}

func newVolumeState() volumeState {
	return volumeState{volume: 100}
}

// set stores a clamped 0-100 volume.
func (v *volumeState) set(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	v.mu.Lock()
	v.volume = volume
	v.mu.Unlock()
}

func (v *volumeState) setMuted(muted bool) {
	v.mu.Lock()
	v.muted = muted
	v.mu.Unlock()
}

// level returns the current volume and mute flag as one consistent pair.
func (v *volumeState) level() (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume, v.muted
}
