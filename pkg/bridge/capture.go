// ABOUTME: Capture session procedure: header write, then mic blocks to peer
// ABOUTME: The capture side dictates its fixed format, it does not negotiate
package bridge

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/AudioLink-Project/audiolink-go/pkg/audio/capture"
	"github.com/AudioLink-Project/audiolink-go/pkg/protocol"
)

// DefaultCaptureFormat is the fixed header the capture pipeline writes:
// 48 kHz mono 16-bit in 960-frame (20 ms) blocks, matching the desktop
// bridge defaults.
func DefaultCaptureFormat() protocol.Header {
	return protocol.Header{
		Magic:         protocol.MagicCapture,
		SampleRate:    48000,
		Channels:      1,
		BitsPerSample: 16,
		BlockFrames:   960,
	}
}

// Capture streams the local microphone to the desktop peer.
type Capture struct {
	newSource capture.Factory
	format    protocol.Header
}

// NewCapture creates the capture session procedure with the given device
// backend factory and stream format.
func NewCapture(factory capture.Factory, format protocol.Header) *Capture {
	return &Capture{newSource: factory, format: format}
}

// Run performs one capture session: write the locally-known header, bind
// the capture device, then send fixed-size blocks until stopped or failed.
func (c *Capture) Run(sess *Session) error {
	conn := sess.Conn
	pol := sess.Policy

	if pol.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(pol.WriteTimeout))
	}

	hdr := protocol.Encode(c.format)
	if _, err := conn.Write(hdr[:]); err != nil {
		return fmt.Errorf("write header: %w: %v", ErrConnectionClosed, err)
	}

	log.Printf("[capture %s] stream header: %s", sess.ID, c.format)

	src := c.newSource()
	defer src.Close()

	if err := src.Open(int(c.format.SampleRate), int(c.format.Channels), int(c.format.BlockFrames)); err != nil {
		return fmt.Errorf("open capture: %w", err)
	}

	block := make([]byte, c.format.BlockSize())

	for sess.Active() {
		n, err := src.ReadBlock(block)
		if err != nil {
			return fmt.Errorf("capture device: %w", err)
		}

		if pol.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(pol.WriteTimeout))
		}
		if err := writeConn(conn, block[:n]); err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}

		sess.MarkConnected()
		sess.MarkDelivered(n)
	}

	return nil
}

// writeConn writes all of p to the socket, looping on partial writes.
func writeConn(conn io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := conn.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
