// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package subscriber

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"code.hybscloud.com/netframe/framing"
	"code.hybscloud.com/netframe/proto/resolver"
)

// ResolverClient is the Resolver a production Subscriber is built with: it
// dials a resolver server as an anonymous read-only session (spec §4.3) and
// answers Resolve via ToReadResolve/FromReadResolved. One connection is
// reused across calls; it is not safe for concurrent use from multiple
// goroutines calling Resolve simultaneously, matching the one-request,
// one-reply nature of a single framed channel (callers needing concurrent
// resolution should use one ResolverClient per goroutine).
type ResolverClient struct {
	addr        string
	dialTimeout time.Duration

	ch *framing.Channel
}

// NewResolverClient returns a ResolverClient that dials addr lazily, on the
// first Resolve call.
func NewResolverClient(addr string, dialTimeout time.Duration) *ResolverClient {
	return &ResolverClient{addr: addr, dialTimeout: dialTimeout}
}

func (r *ResolverClient) connect(ctx context.Context) error {
	if r.ch != nil {
		return nil
	}
	dialCtx := ctx
	if r.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, r.dialTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", r.addr)
	if err != nil {
		return fmt.Errorf("subscriber: dial resolver %s: %w", r.addr, err)
	}

	var buf [8]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		conn.Close()
		return fmt.Errorf("subscriber: resolver version exchange: %w", err)
	}
	binary.BigEndian.PutUint64(buf[:], resolver.Version)
	if _, err := conn.Write(buf[:]); err != nil {
		conn.Close()
		return fmt.Errorf("subscriber: resolver version exchange: %w", err)
	}

	ch := framing.New(conn)
	hello := resolver.ClientHello{Kind: resolver.ClientHelloReadOnly, Read: resolver.ClientAuth{Kind: resolver.AuthAnonymous}}
	if err := ch.Writer.Queue(hello.Encode()); err != nil {
		ch.Close()
		return err
	}
	if err := ch.Writer.Flush(dialCtx); err != nil {
		ch.Close()
		return err
	}
	frame, err := ch.Reader.Receive(dialCtx)
	if err != nil {
		ch.Close()
		return fmt.Errorf("subscriber: resolver hello: %w", err)
	}
	if _, err := resolver.DecodeServerHelloRead(frame); err != nil {
		ch.Close()
		return err
	}
	r.ch = ch
	return nil
}

// Resolve implements Resolver.
func (r *ResolverClient) Resolve(ctx context.Context, paths []string) ([][]string, error) {
	if err := r.connect(ctx); err != nil {
		return nil, err
	}
	req := resolver.ToRead{Kind: resolver.ToReadResolve, Paths: paths}
	if err := r.ch.Writer.Queue(req.Encode()); err != nil {
		r.ch.Close()
		r.ch = nil
		return nil, err
	}
	if err := r.ch.Writer.Flush(ctx); err != nil {
		r.ch.Close()
		r.ch = nil
		return nil, err
	}
	frame, err := r.ch.Reader.Receive(ctx)
	if err != nil {
		r.ch.Close()
		r.ch = nil
		return nil, err
	}
	resp, err := resolver.DecodeFromRead(frame)
	if err != nil {
		return nil, err
	}
	if resp.Kind != resolver.FromReadResolved {
		return nil, fmt.Errorf("subscriber: unexpected resolver reply kind %d", resp.Kind)
	}
	out := make([][]string, len(resp.Resolved))
	for i, addrs := range resp.Resolved {
		as := make([]string, len(addrs))
		for j, a := range addrs {
			as[j] = a.Addr
		}
		out[i] = as
	}
	return out, nil
}

// Close releases the underlying connection, if one was established.
func (r *ResolverClient) Close() error {
	if r.ch == nil {
		return nil
	}
	err := r.ch.Close()
	r.ch = nil
	return err
}
