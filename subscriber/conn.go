// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package subscriber

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"code.hybscloud.com/netframe/framing"
	"code.hybscloud.com/netframe/path"
	"code.hybscloud.com/netframe/proto/publisher"
	"code.hybscloud.com/netframe/value"
)

// pubConn is the per-publisher connection task (spec §4.4): one framed
// channel, shared by every subscription routed to this address, with a
// batching writer draining its own control-message outbox.
type pubConn struct {
	owner *Subscriber
	addr  string
	opts  Options
	log   zerolog.Logger

	ch *framing.Channel

	mu       sync.Mutex
	subsByID map[publisher.SubscriptionID]*subWire
	pending  map[path.Path]struct{}
	closed   bool

	outbox chan publisher.ToPublisher
	stop   chan struct{}
}

func dialPubConn(ctx context.Context, owner *Subscriber, addr string) (*pubConn, error) {
	var d net.Dialer
	dialCtx := ctx
	if owner.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, owner.opts.DialTimeout)
		defer cancel()
	}
	nc, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("subscriber: dial %s: %w", addr, err)
	}

	ch := framing.New(nc)
	if owner.opts.Security != nil {
		ch.SetContext(owner.opts.Security)
	}

	kind, token := publisher.PHelloAnonymous, []byte(nil)
	if owner.opts.Credentials != nil {
		k, t := owner.opts.Credentials()
		kind, token = publisher.PHelloKind(k), t
	}
	hello := publisher.PHello{Kind: kind, Token: token}
	if err := ch.Writer.Queue(hello.Encode()); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.Writer.Flush(dialCtx); err != nil {
		ch.Close()
		return nil, err
	}

	c := &pubConn{
		owner:    owner,
		addr:     addr,
		opts:     owner.opts,
		log:      owner.opts.Logger.With().Str("publisher_addr", addr).Logger(),
		ch:       ch,
		subsByID: make(map[publisher.SubscriptionID]*subWire),
		pending:  make(map[path.Path]struct{}),
		outbox:   make(chan publisher.ToPublisher, 1024),
		stop:     make(chan struct{}),
	}
	go c.readLoop(context.Background())
	go c.writeLoop(context.Background())
	return c, nil
}

// subscribe registers path as pending and asks the publisher to subscribe
// it. The outcome reaches the Subscriber asynchronously via onSubReady or
// onSubNotFound, once the publisher answers.
func (c *pubConn) subscribe(p path.Path) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("subscriber: connection to %s is closed", c.addr)
	}
	c.pending[p] = struct{}{}
	c.mu.Unlock()
	c.enqueue(publisher.ToPublisher{Kind: publisher.ToPublisherSubscribe, Path: p.String()})
	return nil
}

// onLocalUnsubscribe is called once a subWire's last holder drops. It
// forgets the id locally, tells the Subscriber the path is gone (iff the
// path's shared entry still points at this exact wire), and sends the
// publisher an Unsubscribe it does not wait for.
func (c *pubConn) onLocalUnsubscribe(w *subWire) {
	c.mu.Lock()
	if c.subsByID[w.id] == w {
		delete(c.subsByID, w.id)
	}
	c.mu.Unlock()
	c.owner.onSubDead(w)
	c.enqueue(publisher.ToPublisher{Kind: publisher.ToPublisherUnsubscribe, ID: w.id})
}

func (c *pubConn) enqueue(m publisher.ToPublisher) {
	select {
	case c.outbox <- m:
	case <-c.stop:
	}
}

func (c *pubConn) writeLoop(ctx context.Context) {
	bound := c.opts.BatchBound
	if bound <= 0 {
		bound = 1
	}
	for {
		var first publisher.ToPublisher
		select {
		case m, ok := <-c.outbox:
			if !ok {
				return
			}
			first = m
		case <-c.stop:
			return
		}

		batch := make([]publisher.ToPublisher, 0, 8)
		batch = append(batch, first)
	drain:
		for len(batch) < bound {
			select {
			case m, ok := <-c.outbox:
				if !ok {
					break drain
				}
				batch = append(batch, m)
			default:
				break drain
			}
		}

		for _, m := range batch {
			if err := c.ch.Writer.Queue(m.Encode()); err != nil {
				c.fail(fmt.Errorf("subscriber: queue to %s: %w", c.addr, err))
				return
			}
		}
		if err := c.ch.Writer.Flush(ctx); err != nil {
			c.fail(fmt.Errorf("subscriber: flush to %s: %w", c.addr, err))
			return
		}
	}
}

func (c *pubConn) readLoop(ctx context.Context) {
	for {
		frame, err := c.ch.Reader.Receive(ctx)
		if err != nil {
			c.fail(fmt.Errorf("subscriber: read from %s: %w", c.addr, err))
			return
		}
		msg, err := publisher.DecodeFromPublisher(frame)
		if err != nil {
			c.fail(fmt.Errorf("subscriber: malformed message from %s: %w", c.addr, err))
			return
		}

		switch msg.Kind {
		case publisher.FromPublisherSubscribed:
			v, err := c.recvValue(ctx)
			if err != nil {
				c.fail(err)
				return
			}
			c.handleSubscribed(path.New(msg.Path), msg.ID, v)
		case publisher.FromPublisherNoSuchValue:
			c.handleNoSuchValue(path.New(msg.Path))
		case publisher.FromPublisherMessage:
			v, err := c.recvValue(ctx)
			if err != nil {
				c.fail(err)
				return
			}
			c.handleMessage(msg.ID, v)
		case publisher.FromPublisherUnsubscribed:
			c.handleUnsubscribed(msg.ID)
		}
	}
}

// recvValue reads the data frame that follows a Subscribed or Message
// header (spec §4.4: "Message(id) ... is a header frame; the next frame's
// bytes are the value").
func (c *pubConn) recvValue(ctx context.Context) (value.Value, error) {
	frame, err := c.ch.Reader.Receive(ctx)
	if err != nil {
		return value.Value{}, err
	}
	v, _, err := value.Decode(frame)
	if err != nil {
		return value.Value{}, fmt.Errorf("subscriber: malformed value from %s: %w", c.addr, err)
	}
	return v, nil
}

func (c *pubConn) handleSubscribed(p path.Path, id publisher.SubscriptionID, v value.Value) {
	c.mu.Lock()
	_, ok := c.pending[p]
	delete(c.pending, p)
	var w *subWire
	if ok {
		w = newSubWire(p, id, c, v)
		c.subsByID[id] = w
	}
	c.mu.Unlock()
	if !ok {
		// No one is waiting any more (e.g. the path's waiters already
		// timed out); nothing to do with an orphaned Subscribed reply.
		return
	}
	c.owner.onSubReady(p, w)
}

func (c *pubConn) handleNoSuchValue(p path.Path) {
	c.mu.Lock()
	_, ok := c.pending[p]
	delete(c.pending, p)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.owner.onSubNotFound(p, fmt.Errorf("subscriber: %s: %w", p, ErrNotFound))
}

func (c *pubConn) handleMessage(id publisher.SubscriptionID, v value.Value) {
	c.mu.Lock()
	w, ok := c.subsByID[id]
	c.mu.Unlock()
	if ok {
		w.deliver(v)
	}
}

func (c *pubConn) handleUnsubscribed(id publisher.SubscriptionID) {
	c.mu.Lock()
	w, ok := c.subsByID[id]
	if ok {
		delete(c.subsByID, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if w.markDead() {
		c.owner.onSubDead(w)
	}
}

// fail tears the connection down: every live subscription dies, every
// pending subscribe request fails, and the owning Subscriber is told to
// forget this connection (spec §4.4 "Death propagation").
func (c *pubConn) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := make([]*subWire, 0, len(c.subsByID))
	for _, w := range c.subsByID {
		subs = append(subs, w)
	}
	c.subsByID = nil
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	close(c.stop)
	c.ch.Close()

	for _, w := range subs {
		if w.markDead() {
			c.owner.onSubDead(w)
		}
	}
	for p := range pending {
		c.owner.onSubNotFound(p, err)
	}
	c.owner.onConnDead(c.addr, c)
	c.log.Debug().Err(err).Msg("publisher connection closed")
}
