// ABOUTME: PCM math helpers for interleaved little-endian 16-bit samples
// ABOUTME: Frame sizing and software volume with clipping protection
package audio

import "encoding/binary"

// FrameSize returns the byte size of one frame (one sample per channel).
func FrameSize(channels, bitsPerSample int) int {
	return channels * bitsPerSample / 8
}

// Align truncates total to the largest multiple of frameSize. A frameSize
// of zero or less returns zero so a malformed header cannot divide by zero.
func Align(total, frameSize int) int {
	if frameSize <= 0 {
		return 0
	}
	return total - total%frameSize
}

// ApplyVolume16 scales interleaved little-endian 16-bit samples in place.
// Volume is 0-100; muted silences the buffer entirely. A trailing odd byte
// is left untouched.
func ApplyVolume16(p []byte, volume int, muted bool) {
	if muted {
		for i := range p {
			p[i] = 0
		}
		return
	}
	if volume >= 100 {
		return
	}
	if volume < 0 {
		volume = 0
	}

	multiplier := float64(volume) / 100.0
	for i := 0; i+1 < len(p); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(p[i:]))
		scaled := int32(float64(sample) * multiplier)
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		binary.LittleEndian.PutUint16(p[i:], uint16(int16(scaled)))
	}
}
