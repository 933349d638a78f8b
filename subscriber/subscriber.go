// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package subscriber implements the client side of the pub/sub transport
// (spec §4.4): a Subscriber dedups concurrent subscribe calls against the
// same path, resolves unresolved paths through a Resolver, and multiplexes
// every subscription to one address over a single per-publisher connection
// task.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"code.hybscloud.com/netframe/path"
)

// ErrNotFound is returned when a resolver reports zero addresses for a
// path (spec §4.4: "Zero addresses → error 'path not found'").
var ErrNotFound = errors.New("path not found")

type statusKind uint8

const (
	statusPending statusKind = iota
	statusSubscribed
)

// pathState is spec §4.4's SubStatus: Pending(waiters) or
// Subscribed(weak_handle). shared is only meaningful when kind is
// statusSubscribed; see subWire's doc comment for why it is a plain
// pointer with a holders count rather than a weak.Pointer.
type pathState struct {
	kind    statusKind
	waiters []chan Result
	shared  *subWire
}

// Result is the outcome of subscribing to one path.
type Result struct {
	Path path.Path
	Sub  *Subscription
	Err  error
}

// Subscriber owns the resolver handle, one connection task per publisher
// address currently in use, and the path → status map that drives
// subscribe-dedup (spec §4.4).
type Subscriber struct {
	resolver Resolver
	opts     Options

	mu    sync.Mutex
	conns map[string]*pubConn
	paths map[path.Path]*pathState
}

// New returns a Subscriber that resolves paths through r.
func New(r Resolver, opt ...Option) *Subscriber {
	o := defaultOptions()
	for _, f := range opt {
		f(&o)
	}
	return &Subscriber{
		resolver: r,
		opts:     o,
		conns:    make(map[string]*pubConn),
		paths:    make(map[path.Path]*pathState),
	}
}

// Subscribe resolves and subscribes to every path, deduplicating
// concurrent requests for the same path and reusing a still-live
// subscription instead of re-asking the publisher (spec §4.4). It blocks
// until every path has either produced a Subscription or failed, or ctx is
// done.
func (s *Subscriber) Subscribe(ctx context.Context, paths []string) []Result {
	pp := make([]path.Path, len(paths))
	for i, p := range paths {
		pp[i] = path.New(p)
	}

	results := make([]Result, len(pp))
	waiters := make([]chan Result, len(pp))
	var toResolve []path.Path

	s.mu.Lock()
	for i, p := range pp {
		results[i].Path = p
		st, ok := s.paths[p]
		if !ok {
			st = &pathState{kind: statusPending}
			s.paths[p] = st
		}
		switch st.kind {
		case statusSubscribed:
			h, alive := st.shared.tryAcquire(s.opts.FanoutDepth)
			if alive {
				results[i].Sub = h
				continue
			}
			st.kind = statusPending
			st.shared = nil
			st.waiters = nil
			fallthrough
		case statusPending:
			w := make(chan Result, 1)
			st.waiters = append(st.waiters, w)
			waiters[i] = w
			if len(st.waiters) == 1 {
				toResolve = append(toResolve, p)
			}
		}
	}
	s.mu.Unlock()

	if len(toResolve) > 0 {
		s.resolveAndDispatch(ctx, toResolve)
	}

	for i, w := range waiters {
		if w == nil {
			continue
		}
		select {
		case r := <-w:
			r.Path = pp[i]
			results[i] = r
		case <-ctx.Done():
			results[i] = Result{Path: pp[i], Err: ctx.Err()}
		}
	}
	return results
}

func (s *Subscriber) resolveAndDispatch(ctx context.Context, paths []path.Path) {
	strs := make([]string, len(paths))
	for i, p := range paths {
		strs[i] = p.String()
	}
	resolved, err := s.resolver.Resolve(ctx, strs)
	if err != nil {
		for _, p := range paths {
			s.failPath(p, fmt.Errorf("subscriber: resolve: %w", err))
		}
		return
	}
	for i, p := range paths {
		addrs := resolved[i]
		if len(addrs) == 0 {
			s.failPath(p, fmt.Errorf("subscriber: %s: %w", p, ErrNotFound))
			continue
		}
		addr := addrs[0]
		if len(addrs) > 1 {
			addr = addrs[rand.IntN(len(addrs))]
		}
		conn, err := s.getOrDial(ctx, addr)
		if err != nil {
			s.failPath(p, err)
			continue
		}
		if err := conn.subscribe(p); err != nil {
			s.failPath(p, err)
		}
	}
}

func (s *Subscriber) getOrDial(ctx context.Context, addr string) (*pubConn, error) {
	s.mu.Lock()
	if c, ok := s.conns[addr]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	c, err := dialPubConn(ctx, s, addr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.conns[addr]; ok {
		s.mu.Unlock()
		c.fail(errors.New("subscriber: superseded by a concurrent dial"))
		return existing, nil
	}
	s.conns[addr] = c
	s.mu.Unlock()
	return c, nil
}

// onSubReady is called by a pubConn once the publisher confirms a
// subscribe. It hands every waiter registered for w.path its own
// Subscription sharing w (spec §4.4: "publish the shared subscription
// handle to all waiters registered under that path").
func (s *Subscriber) onSubReady(p path.Path, w *subWire) {
	s.mu.Lock()
	st, ok := s.paths[p]
	if !ok {
		s.mu.Unlock()
		// Every waiter gave up (e.g. ctx canceled) before the publisher
		// answered; nothing wants this subscription, so tear it back down.
		if w.markDead() {
			w.conn.onLocalUnsubscribe(w)
		}
		return
	}
	waiters := st.waiters
	st.kind = statusSubscribed
	st.shared = w
	st.waiters = nil
	s.mu.Unlock()

	for _, wc := range waiters {
		h, alive := w.tryAcquire(s.opts.FanoutDepth)
		if !alive {
			wc <- Result{Err: fmt.Errorf("subscriber: %s: %w", p, ErrNotFound)}
			continue
		}
		wc <- Result{Sub: h}
	}
}

// onSubNotFound fails every waiter registered for p and drops its entry.
func (s *Subscriber) onSubNotFound(p path.Path, err error) {
	s.failPath(p, err)
}

func (s *Subscriber) failPath(p path.Path, err error) {
	s.mu.Lock()
	st, ok := s.paths[p]
	if ok {
		delete(s.paths, p)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	for _, w := range st.waiters {
		w <- Result{Err: err}
	}
}

// onSubDead is called once w is no longer live, whether by local drop or
// by a publisher-initiated Unsubscribed/connection failure. It removes
// p's path entry iff it still points at exactly this wire (spec §4.4).
func (s *Subscriber) onSubDead(w *subWire) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.paths[w.path]; ok && st.kind == statusSubscribed && st.shared == w {
		delete(s.paths, w.path)
	}
}

// onConnDead removes addr's connection entry iff it still points at c.
func (s *Subscriber) onConnDead(addr string, c *pubConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conns[addr]; ok && existing == c {
		delete(s.conns, addr)
	}
}
