// ABOUTME: Tests for the shared software volume state
// ABOUTME: Clamping, mute pairing, and concurrent adjustment safety
package output

import (
	"sync"
	"testing"
)

func TestVolumeStateClamps(t *testing.T) {
	v := newVolumeState()

	if got, _ := v.level(); got != 100 {
		t.Errorf("initial volume %d, want 100", got)
	}

	v.set(150)
	if got, _ := v.level(); got != 100 {
		t.Errorf("volume %d after set(150), want 100", got)
	}

	v.set(-5)
	if got, _ := v.level(); got != 0 {
		t.Errorf("volume %d after set(-5), want 0", got)
	}

	v.set(60)
	if got, _ := v.level(); got != 60 {
		t.Errorf("volume %d after set(60), want 60", got)
	}
}

func TestVolumeStateMutePairsWithLevel(t *testing.T) {
	v := newVolumeState()
	v.set(40)
	v.setMuted(true)

	volume, muted := v.level()
	if volume != 40 || !muted {
		t.Errorf("level() = (%d, %v), want (40, true)", volume, muted)
	}

	v.setMuted(false)
	if _, muted := v.level(); muted {
		t.Error("still muted after setMuted(false)")
	}
}

func TestVolumeStateConcurrentAdjust(t *testing.T) {
	// Control-goroutine writes race playback-goroutine reads in production;
	// every observed level must still be a valid clamped value.
	v := newVolumeState()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				v.set((seed*37 + i) % 130)
				v.setMuted(i%2 == 0)
			}
		}(w)
	}

	for i := 0; i < 4000; i++ {
		volume, _ := v.level()
		if volume < 0 || volume > 100 {
			t.Fatalf("observed out-of-range volume %d", volume)
		}
	}
	wg.Wait()
}
