// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing

import (
	"context"
	"io"
	"sync"
	"time"

	"code.hybscloud.com/netframe/security"
)

// segment is one unsealed payload handed off to the background flusher.
type segment struct {
	payload []byte
}

// Writer is the send half of a Channel. Queue buffers messages locally;
// Flush hands completed segments to a background task over a bounded
// channel and returns once they are queued for socket I/O, not once the
// peer has received them.
type Writer struct {
	w io.Writer

	mu         sync.Mutex
	buf        []byte
	boundaries []int // offsets into buf where a MaxFrame segment ends

	toFlush chan segment
	done    chan struct{}
	once    sync.Once

	ctxMu sync.Mutex
	ctx   security.Context

	errMu   sync.Mutex
	lastErr error
}

func newWriter(w io.Writer) *Writer {
	wr := &Writer{
		w:       w,
		toFlush: make(chan segment, queueDepth),
		done:    make(chan struct{}),
	}
	go wr.flushTask()
	return wr
}

// SetContext installs ctx for every segment queued from this call onward.
func (w *Writer) SetContext(ctx security.Context) {
	w.ctxMu.Lock()
	w.ctx = ctx
	w.ctxMu.Unlock()
}

func (w *Writer) context() security.Context {
	w.ctxMu.Lock()
	defer w.ctxMu.Unlock()
	return w.ctx
}

// Queue appends message's already-encoded bytes to the pending buffer. If
// appending would push the current unsent segment past MaxFrame, a new
// segment boundary is recorded first. A message that alone exceeds MaxFrame
// is rejected without mutating the buffer.
func (w *Writer) Queue(message []byte) error {
	if len(message) > MaxFrame {
		return ErrOversize
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	start := 0
	if n := len(w.boundaries); n > 0 {
		start = w.boundaries[n-1]
	}
	if len(w.buf)-start+len(message) > MaxFrame {
		w.boundaries = append(w.boundaries, len(w.buf))
		start = len(w.buf)
	}
	w.buf = append(w.buf, message...)
	return nil
}

// BytesQueued reports how many unflushed bytes are buffered.
func (w *Writer) BytesQueued() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

// Clear drops every unsent segment without writing anything.
func (w *Writer) Clear() {
	w.mu.Lock()
	w.buf = w.buf[:0]
	w.boundaries = w.boundaries[:0]
	w.mu.Unlock()
}

// Flush hands every completed segment to the background flusher, blocking
// until all of them are queued for socket I/O (not until the peer receives
// them). ctx bounds how long Flush waits for a slot in the handoff channel.
func (w *Writer) Flush(ctx context.Context) error {
	segs, err := w.drain()
	if err != nil {
		return err
	}
	for _, s := range segs {
		select {
		case w.toFlush <- s:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// TryFlush is Flush's non-blocking variant: it returns true iff every
// pending segment was handed off without waiting.
func (w *Writer) TryFlush() (bool, error) {
	segs, err := w.drain()
	if err != nil {
		return false, err
	}
	for i, s := range segs {
		select {
		case w.toFlush <- s:
		default:
			w.restore(segs[i:])
			return false, nil
		}
	}
	return true, nil
}

// FlushTimeout is Flush bounded by d.
func (w *Writer) FlushTimeout(d time.Duration) error {
	ctx, cancel := contextWithTimeout(d)
	defer cancel()
	return w.Flush(ctx)
}

// drain splits the pending buffer at its recorded boundaries and clears it,
// returning the resulting segments in order.
func (w *Writer) drain() ([]segment, error) {
	if err := w.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) == 0 {
		return nil, nil
	}
	bounds := append(append([]int{}, w.boundaries...), len(w.buf))
	segs := make([]segment, 0, len(bounds))
	start := 0
	for _, end := range bounds {
		if end > start {
			payload := make([]byte, end-start)
			copy(payload, w.buf[start:end])
			segs = append(segs, segment{payload: payload})
		}
		start = end
	}
	w.buf = w.buf[:0]
	w.boundaries = w.boundaries[:0]
	return segs, nil
}

// restore puts segments the background flusher could not accept back in
// front of the pending buffer, preserving order for the next drain.
func (w *Writer) restore(segs []segment) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var merged []byte
	var bounds []int
	for _, s := range segs {
		merged = append(merged, s.payload...)
		bounds = append(bounds, len(merged))
	}
	bounds = bounds[:len(bounds)-1]
	w.buf = append(merged, w.buf...)
	shifted := make([]int, len(w.boundaries))
	for i, b := range w.boundaries {
		shifted[i] = b + len(merged)
	}
	w.boundaries = append(bounds, shifted...)
}

// flushTask is the background task: it seals (if a context is installed)
// and writes one segment at a time to the underlying stream.
func (w *Writer) flushTask() {
	for {
		select {
		case s, ok := <-w.toFlush:
			if !ok {
				return
			}
			if err := w.writeSegment(s); err != nil {
				w.setErr(err)
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Writer) writeSegment(s segment) error {
	payload := s.payload
	encrypted := false
	if ctx := w.context(); ctx != nil {
		sealed, err := ctx.Wrap(payload)
		if err != nil {
			return err
		}
		payload = sealed
		encrypted = true
	}
	var hdr [headerLen]byte
	putHeader(hdr[:], len(payload), encrypted)
	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.w.Write(payload)
	return err
}

func (w *Writer) setErr(err error) {
	w.errMu.Lock()
	if w.lastErr == nil {
		w.lastErr = err
	}
	w.errMu.Unlock()
}

// Err returns the error, if any, that terminated the background flusher.
func (w *Writer) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.lastErr
}

func (w *Writer) stop() {
	w.once.Do(func() { close(w.done) })
}
