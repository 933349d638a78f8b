// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package subscriber

import (
	"sync"

	"code.hybscloud.com/netframe/path"
	"code.hybscloud.com/netframe/proto/publisher"
	"code.hybscloud.com/netframe/value"
)

// subWire is the subscription state shared by every Subscription handle for
// one path on one connection: spec §4.4's "Sub { path, last_value,
// fanout_senders[], death_signals[], dead_flag }". It enters a pubConn's
// subsByID map when the publisher's Subscribed reply arrives and leaves it
// when the last holder releases it, the publisher sends Unsubscribed, or the
// connection fails.
//
// Rust's Weak<Subscription> upgrades against a synchronous Arc strong
// count; Go's weak.Pointer instead reports liveness against actual GC
// reachability, which would make subscribe-dedup's "upgrade, if alive,
// reuse" check depend on when the collector last ran rather than on
// whether anyone still holds the subscription. holders plus dead is the
// faithful substitute: a plain, synchronous reference count, checked and
// mutated without ever crossing an await point (spec §5).
type subWire struct {
	path path.Path
	id   publisher.SubscriptionID
	conn *pubConn

	mu      sync.Mutex
	lastVal value.Value
	fanout  map[int]*fanoutEntry
	nextKey int
	holders int
	dead    bool
	deathCh chan struct{}
}

// fanoutEntry is one Subscription handle's update channel plus the signal
// release closes when that one handle goes away. closed is never written
// to, only closed, and only ever by release — closing it from any number
// of goroutines is always safe. The value channel itself is never closed
// by anyone: deliver is its only sender (spec §4.4 routes every message
// for one connection through a single read loop), so closing a channel
// that loop might concurrently be sending on would risk the classic "send
// on closed channel" panic (§7 forbids anything of that shape). A
// Subscription's end of life is observed via Dead(), not via Updates()
// closing.
type fanoutEntry struct {
	ch     chan value.Value
	closed chan struct{}
}

func newSubWire(p path.Path, id publisher.SubscriptionID, c *pubConn, v value.Value) *subWire {
	return &subWire{
		path:    p,
		id:      id,
		conn:    c,
		lastVal: v,
		fanout:  make(map[int]*fanoutEntry),
		deathCh: make(chan struct{}),
	}
}

// tryAcquire returns a fresh Subscription handle sharing w, or false if w
// is already dead. Each acquire adds one holder and one fanout channel.
func (w *subWire) tryAcquire(depth int) (*Subscription, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return nil, false
	}
	w.holders++
	key := w.nextKey
	w.nextKey++
	entry := &fanoutEntry{ch: make(chan value.Value, depth), closed: make(chan struct{})}
	entry.ch <- w.lastVal
	w.fanout[key] = entry
	return &Subscription{w: w, key: key, updates: entry.ch}, true
}

// deliver fans v out to every live update channel. Spec §5's "a slow peer
// stalls local producers" model means a subscriber that isn't keeping up
// blocks this call — and, transitively, the connection's read loop that
// calls it — rather than silently dropping values (spec §1's "lossless
// ordered stream", testable property 8). The send to each channel still
// aborts immediately if that one handle is released (closed) or the whole
// wire dies while waiting, so one abandoned consumer cannot wedge delivery
// to every other holder, nor block teardown of the connection itself.
func (w *subWire) deliver(v value.Value) {
	w.mu.Lock()
	if w.dead {
		w.mu.Unlock()
		return
	}
	w.lastVal = v
	entries := make([]*fanoutEntry, 0, len(w.fanout))
	for _, e := range w.fanout {
		entries = append(entries, e)
	}
	w.mu.Unlock()

	for _, e := range entries {
		select {
		case e.ch <- v:
		case <-e.closed:
		case <-w.deathCh:
			return
		}
	}
}

// markDead marks w dead and releases the shared death signal, and is
// idempotent. It does not touch conn or the Subscriber's path map; callers
// (conn on Unsubscribed/failure, release on last-holder-drop) handle that
// themselves per spec §4.4's two removal triggers. It deliberately does
// not close any fanout channel (see fanoutEntry's doc comment); any
// blocked deliver wakes via deathCh instead.
func (w *subWire) markDead() (wasAlive bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return false
	}
	w.dead = true
	close(w.deathCh)
	w.fanout = nil
	return true
}

// release drops one holder. Once the last holder is gone it marks w dead
// and tells conn to forget it and ask the publisher to unsubscribe (spec
// §4.4: "Unsubscribe(id) initiated locally by dropping the last strong
// handle").
func (w *subWire) release(key int) {
	w.mu.Lock()
	if w.dead {
		w.mu.Unlock()
		return
	}
	entry, ok := w.fanout[key]
	if ok {
		delete(w.fanout, key)
	}
	w.holders--
	last := w.holders <= 0
	w.mu.Unlock()
	if ok {
		close(entry.closed)
	}
	if !last {
		return
	}
	if w.markDead() {
		w.conn.onLocalUnsubscribe(w)
	}
}

// Subscription is the caller-held handle to one subscribed value stream.
// Close it when done; while at least one Subscription for a path is open,
// a concurrent Subscribe for that same path reuses the same wire
// subscription instead of re-requesting it from the publisher.
type Subscription struct {
	w    *subWire
	key  int
	once sync.Once

	updates chan value.Value
}

// Path returns the subscribed path.
func (s *Subscription) Path() path.Path { return s.w.path }

// Value returns the most recently delivered value.
func (s *Subscription) Value() value.Value {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.lastVal
}

// Updates returns the channel this handle's values are fanned out on. It
// is never closed (delivery is blocking, spec §5, so only its sole sender
// may close it safely, and that sender has nothing left to say once the
// subscription dies); use Dead() to detect the subscription ending,
// whether by publisher-initiated Unsubscribed, the underlying connection
// failing, or Close.
func (s *Subscription) Updates() <-chan value.Value { return s.updates }

// Dead returns a channel closed once the subscription is no longer live.
func (s *Subscription) Dead() <-chan struct{} { return s.w.deathCh }

// Close releases this handle. Once every handle sharing the same
// subscription has been closed, the publisher is asked to unsubscribe.
func (s *Subscription) Close() {
	s.once.Do(func() { s.w.release(s.key) })
}
