// ABOUTME: Playback session procedure: header decode, device bind, transfer
// ABOUTME: Frame-aligned buffering with carry-over and stall detection
package bridge

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/AudioLink-Project/audiolink-go/pkg/audio"
	"github.com/AudioLink-Project/audiolink-go/pkg/audio/output"
	"github.com/AudioLink-Project/audiolink-go/pkg/protocol"
)

const (
	// minReadBuffer is the floor on the network read buffer.
	minReadBuffer = 4096

	// minDeviceBuffer is the platform floor on the device buffer request.
	minDeviceBuffer = 16384
)

// Playback renders the desktop's PCM stream to a local output device. The
// peer dictates the format in its session header.
type Playback struct {
	newOutput output.Factory

	// OnFormat, when set, is called with each session's decoded header so
	// the UI layer can display the negotiated stream format.
	OnFormat func(protocol.Header)
}

// NewPlayback creates the playback session procedure with the given device
// backend factory.
func NewPlayback(factory output.Factory) *Playback {
	return &Playback{newOutput: factory}
}

// Run performs one playback session: read and decode the 16-byte header,
// bind the output device, then stream until stopped or failed.
func (p *Playback) Run(sess *Session) error {
	conn := sess.Conn
	pol := sess.Policy

	if pol.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(pol.ReadTimeout))
	}

	var hdrBuf [protocol.HeaderSize]byte
	if _, err := io.ReadFull(conn, hdrBuf[:]); err != nil {
		return fmt.Errorf("read header (%v): %w", err, protocol.ErrTruncatedHeader)
	}

	h, err := protocol.Decode(hdrBuf[:], protocol.MagicPlayback)
	if err != nil {
		return fmt.Errorf("decode header: %w", err)
	}

	log.Printf("[playback %s] stream header: %s", sess.ID, h)
	if p.OnFormat != nil {
		p.OnFormat(h)
	}

	frameSize := h.FrameSize()
	out := p.newOutput()
	defer out.Close()

	// The 4x multiplier absorbs scheduling jitter between network arrival
	// and device drain without excessive latency.
	deviceBuffer := h.BlockSize() * 4
	if deviceBuffer < minDeviceBuffer {
		deviceBuffer = minDeviceBuffer
	}
	if err := out.Open(int(h.SampleRate), int(h.Channels), deviceBuffer); err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	readSize := h.BlockSize()
	if readSize < minReadBuffer {
		readSize = minReadBuffer
	}
	// Room for up to frameSize-1 carried bytes in front of each read.
	buf := make([]byte, readSize+frameSize)
	carry := 0
	stalls := 0

	for sess.Active() {
		if pol.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(pol.ReadTimeout))
		}

		n, err := conn.Read(buf[carry:])
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				stalls++
				if stalls == 1 {
					sess.MarkStalled(fmt.Sprintf("no data for %s", pol.ReadTimeout))
				}
				if stalls >= pol.StallLimit {
					return fmt.Errorf("%w: %d consecutive silent intervals", ErrStalled, stalls)
				}
				continue
			}
			return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		if n == 0 {
			return ErrConnectionClosed
		}

		if stalls > 0 {
			stalls = 0
			sess.MarkResumed()
		}

		total := carry + n
		aligned := audio.Align(total, frameSize)
		if aligned > 0 {
			if err := writeDevice(out, buf[:aligned]); err != nil {
				return fmt.Errorf("playback device: %w", err)
			}
			sess.MarkConnected()
			sess.MarkDelivered(aligned)
		}
		// The remainder is always < frameSize; carry it to the front.
		carry = copy(buf, buf[aligned:total])
	}

	return nil
}

// writeDevice writes all of p to the device, looping on partial writes. A
// write that makes no progress is a fatal device error for the session.
func writeDevice(out output.Output, p []byte) error {
	for len(p) > 0 {
		n, err := out.Write(p)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("device accepted no data")
		}
		p = p[n:]
	}
	return nil
}
