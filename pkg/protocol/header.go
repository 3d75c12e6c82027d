// ABOUTME: Session header codec for the PCM streaming protocol
// ABOUTME: 16 bytes little-endian: magic, rate, channels, bits, block frames
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed wire size of a session header.
const HeaderSize = 16

// Magic is the 4-byte stream tag at offset 0.
type Magic [4]byte

var (
	// MagicPlayback tags the desktop-audio stream sent to this device.
	MagicPlayback = Magic{'P', 'C', 'M', '1'}

	// MagicCapture tags the microphone stream sent to the desktop.
	MagicCapture = Magic{'M', 'I', 'C', '1'}
)

var (
	// ErrBadMagic means the peer is not speaking this protocol, or the
	// wrong stream arrived on this port.
	ErrBadMagic = errors.New("bad stream magic")

	// ErrUnsupportedFormat means the header parsed but describes a PCM
	// format this implementation does not handle.
	ErrUnsupportedFormat = errors.New("unsupported stream format")

	// ErrTruncatedHeader means fewer than HeaderSize bytes were available.
	ErrTruncatedHeader = errors.New("truncated stream header")
)

// Header describes one PCM stream. It is sent once by the data producer
// immediately after the TCP connection opens; everything after it is raw
// interleaved samples.
type Header struct {
	Magic         Magic
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	BlockFrames   uint32
}

// Encode serializes the header into its wire form.
func Encode(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.SampleRate)
	binary.LittleEndian.PutUint16(buf[8:10], h.Channels)
	binary.LittleEndian.PutUint16(buf[10:12], h.BitsPerSample)
	binary.LittleEndian.PutUint32(buf[12:16], h.BlockFrames)
	return buf
}

// Decode parses a wire header, requiring the expected magic and 16-bit
// samples. Rate and channel count are not range-checked here; a device
// open rejects values it cannot honor.
func Decode(data []byte, want Magic) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes", ErrTruncatedHeader, len(data))
	}

	var h Header
	copy(h.Magic[:], data[0:4])
	if h.Magic != want {
		return Header{}, fmt.Errorf("%w: got %q, want %q", ErrBadMagic, h.Magic[:], want[:])
	}

	h.SampleRate = binary.LittleEndian.Uint32(data[4:8])
	h.Channels = binary.LittleEndian.Uint16(data[8:10])
	h.BitsPerSample = binary.LittleEndian.Uint16(data[10:12])
	h.BlockFrames = binary.LittleEndian.Uint32(data[12:16])

	if h.BitsPerSample != 16 {
		return Header{}, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, h.BitsPerSample)
	}

	return h, nil
}

// FrameSize returns the byte size of one interleaved frame.
func (h Header) FrameSize() int {
	return int(h.Channels) * int(h.BitsPerSample) / 8
}

// BlockSize returns the byte size of one full block as sent by the peer.
func (h Header) BlockSize() int {
	return int(h.BlockFrames) * h.FrameSize()
}

// String renders the header for logs.
func (h Header) String() string {
	return fmt.Sprintf("%s %dHz %dch %d-bit, %d-frame blocks",
		h.Magic[:], h.SampleRate, h.Channels, h.BitsPerSample, h.BlockFrames)
}
