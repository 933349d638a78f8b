// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package framing implements the length-prefixed duplex frame channel that
// every resolver and publisher connection is built on: a u32 big-endian
// header (top bit flags an encrypted frame, low 31 bits give the payload
// length) followed by that many payload bytes, with background flushing,
// batch coalescing up to MaxFrame, and optional per-frame sealing through a
// security.Context installed mid-stream.
package framing

import (
	"context"
	"errors"
	"io"
	"time"

	"code.hybscloud.com/netframe/security"
)

// MaxFrame is the largest payload a single frame may carry (0x3FFF_FFFF
// bytes, about 1 GiB); callers must split larger messages themselves.
const MaxFrame = 0x3FFF_FFFF

const (
	headerLen    = 4
	encryptedBit = 0x8000_0000
	lengthMask   = 0x7FFF_FFFF
)

// queueDepth is the background flusher/reader channel capacity, matching
// the bounded handoff depth of the reference channel implementation this
// package is grounded on.
const queueDepth = 3

var (
	// ErrOversize is returned by Queue when a message alone exceeds MaxFrame.
	ErrOversize = errors.New("framing: message exceeds max frame size")
	// ErrEncryptionRequired is returned by the reader when an unencrypted
	// frame arrives after a security context has been installed.
	ErrEncryptionRequired = errors.New("framing: encryption is required")
	// ErrClosed is returned by Receive once the reader has stopped without
	// recording an error of its own (Close was called). Queue and Flush do
	// not return it; once a background write has failed, Flush returns that
	// write's error instead.
	ErrClosed = errors.New("framing: channel closed")
)

// Channel is a duplex framed connection: a Writer half and a Reader half
// sharing one underlying stream and one security context lifecycle.
type Channel struct {
	Writer *Writer
	Reader *Reader
	conn   io.ReadWriteCloser
}

// New wraps conn in a framed Channel and starts its background flusher and
// reader tasks. Close stops both and closes conn.
func New(conn io.ReadWriteCloser) *Channel {
	c := &Channel{conn: conn}
	c.Writer = newWriter(conn)
	c.Reader = newReader(conn)
	return c
}

// SetContext installs ctx on both halves: every segment queued after this
// call is sealed on send, and every frame received after this call must be
// encrypted. Spec: "installing a context after an unencrypted frame has
// been accepted is forbidden" — the Reader enforces this independently of
// when SetContext happens to be called.
func (c *Channel) SetContext(ctx security.Context) {
	c.Writer.SetContext(ctx)
	c.Reader.SetContext(ctx)
}

// Close stops the background flusher and reader and closes the underlying
// connection.
func (c *Channel) Close() error {
	c.Writer.stop()
	c.Reader.stop()
	return c.conn.Close()
}

func putHeader(b []byte, length int, encrypted bool) {
	h := uint32(length) & lengthMask
	if encrypted {
		h |= encryptedBit
	}
	b[0] = byte(h >> 24)
	b[1] = byte(h >> 16)
	b[2] = byte(h >> 8)
	b[3] = byte(h)
}

func parseHeader(b []byte) (length int, encrypted bool) {
	h := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return int(h & lengthMask), h&encryptedBit != 0
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
