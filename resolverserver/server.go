// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resolverserver implements the resolver's per-connection session
// state machine (spec §4.3): version/hello negotiation, read/write role
// dispatch, the listener-ownership proof, per-writer TTL cleanup, and
// admission control over a path store.Store.
package resolverserver

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/netframe/store"
)

// Server accepts resolver connections and drives one session per
// connection. It owns the Clinfos map and the Store; both are shared
// behind short-critical-section mutexes (spec §5).
type Server struct {
	ln      net.Listener
	store   store.Store
	opts    Options
	clinfos *clinfos
	tracker *CTracker

	stop     chan struct{}
	stopOnce func()
}

// NewServer returns a Server accepting connections on ln and driving st.
func NewServer(ln net.Listener, st store.Store, opt ...Option) *Server {
	o := defaultOptions()
	for _, f := range opt {
		f(&o)
	}
	s := &Server{
		ln:      ln,
		store:   st,
		opts:    o,
		clinfos: newClinfos(),
		tracker: newCTracker(),
		stop:    make(chan struct{}),
	}
	return s
}

// LocalAddr returns the listener's bound address.
func (s *Server) LocalAddr() net.Addr { return s.ln.Addr() }

// Stop unwinds every session with best-effort draining (spec §5, "a server
// stop signal (one-shot) unwinds every session").
func (s *Server) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Serve runs the accept loop until ctx is canceled or Stop is called. Each
// accepted connection is handled in its own goroutine under an
// errgroup.Group so Serve can wait for every in-flight session to unwind
// before returning.
func (s *Server) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	defer func() {
		s.Stop()
		s.ln.Close()
		_ = g.Wait()
	}()

	for {
		for s.tracker.NumOpen() > s.opts.MaxConnections {
			select {
			case <-s.stop:
				return nil
			case <-gctx.Done():
				return context.Cause(gctx)
			case <-time.After(10 * time.Millisecond):
			}
		}

		conn, err := s.acceptOne(gctx)
		if err != nil {
			if errors.Is(err, errServerStopped) {
				return nil
			}
			return err
		}

		id := s.tracker.Open()
		g.Go(func() error {
			defer s.tracker.Close(id)
			s.handleConn(gctx, conn)
			return nil
		})
	}
}

var errServerStopped = errors.New("resolverserver: stopped")

// acceptOne accepts one connection, racing the listener against the server
// stop signal and ctx cancellation the way server_loop's select_biased!
// does in the reference implementation.
func (s *Server) acceptOne(ctx context.Context) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := s.ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-s.stop:
		return nil, errServerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
