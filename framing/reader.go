// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing

import (
	"context"
	"io"
	"sync"

	"code.hybscloud.com/netframe/security"
)

// Reader is the receive half of a Channel. A background task parses frames
// off the underlying stream and delivers decoded plaintext payloads over a
// bounded channel; Receive pulls from that channel.
type Reader struct {
	r io.Reader

	incoming chan []byte
	done     chan struct{}
	once     sync.Once

	ctxMu       sync.Mutex
	ctx         security.Context
	sawPlaintext bool

	errMu   sync.Mutex
	lastErr error
}

func newReader(r io.Reader) *Reader {
	rd := &Reader{
		r:        r,
		incoming: make(chan []byte, queueDepth),
		done:     make(chan struct{}),
	}
	go rd.readTask()
	return rd
}

// SetContext installs ctx: every frame received from now on must be
// encrypted, and ctx.Unwrap recovers its plaintext.
func (r *Reader) SetContext(ctx security.Context) {
	r.ctxMu.Lock()
	r.ctx = ctx
	r.ctxMu.Unlock()
}

func (r *Reader) context() security.Context {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	return r.ctx
}

// Receive returns the next decoded frame payload, which may itself be the
// concatenation of more than one packed message (see DecodeBatch).
func (r *Reader) Receive(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-r.incoming:
		if !ok {
			return nil, r.terminal()
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// terminal returns the error that stopped the read task, or ErrClosed if it
// was stopped without one (Close was called).
func (r *Reader) terminal() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.lastErr != nil {
		return r.lastErr
	}
	return ErrClosed
}

func (r *Reader) readTask() {
	defer close(r.incoming)
	var buf []byte
	for {
		frame, rest, err := readFrame(r.r, buf)
		if err != nil {
			r.setErr(err)
			return
		}
		buf = rest

		encrypted := frame.encrypted
		ctx := r.context()
		if encrypted {
			if ctx == nil {
				r.setErr(ErrEncryptionRequired)
				return
			}
			plain, err := ctx.Unwrap(frame.payload)
			if err != nil {
				r.setErr(err)
				return
			}
			frame.payload = plain
		} else {
			if ctx != nil {
				r.setErr(ErrEncryptionRequired)
				return
			}
			r.ctxMu.Lock()
			r.sawPlaintext = true
			r.ctxMu.Unlock()
		}

		select {
		case r.incoming <- frame.payload:
		case <-r.done:
			return
		}
	}
}

type wireFrame struct {
	payload   []byte
	encrypted bool
}

// readFrame reads one complete frame from r, using and extending buf as a
// scratch read-ahead buffer; it returns the unread remainder of buf.
func readFrame(r io.Reader, buf []byte) (wireFrame, []byte, error) {
	for len(buf) < headerLen {
		more, err := readMore(r)
		if err != nil {
			return wireFrame{}, nil, err
		}
		buf = append(buf, more...)
	}
	length, encrypted := parseHeader(buf[:headerLen])
	for len(buf)-headerLen < length {
		more, err := readMore(r)
		if err != nil {
			return wireFrame{}, nil, err
		}
		buf = append(buf, more...)
	}
	payload := make([]byte, length)
	copy(payload, buf[headerLen:headerLen+length])
	return wireFrame{payload: payload, encrypted: encrypted}, buf[headerLen+length:], nil
}

func readMore(r io.Reader) ([]byte, error) {
	tmp := make([]byte, 4096)
	n, err := r.Read(tmp)
	if n > 0 {
		return tmp[:n], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return nil, err
}

func (r *Reader) setErr(err error) {
	r.errMu.Lock()
	if r.lastErr == nil {
		r.lastErr = err
	}
	r.errMu.Unlock()
}

// Err returns the error, if any, that terminated the background reader.
func (r *Reader) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.lastErr
}

func (r *Reader) stop() {
	r.once.Do(func() { close(r.done) })
}

// DecodeBatch decodes repeatedly from frame using decode, which must return
// the number of bytes it consumed, until frame is exhausted. It is how
// callers unpack the "one frame may hold several concatenated messages"
// rule without this package knowing about any particular message format.
func DecodeBatch(frame []byte, decode func([]byte) (int, error)) error {
	for len(frame) > 0 {
		n, err := decode(frame)
		if err != nil {
			return err
		}
		if n <= 0 || n > len(frame) {
			return io.ErrUnexpectedEOF
		}
		frame = frame[n:]
	}
	return nil
}
