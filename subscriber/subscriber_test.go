// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package subscriber_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/netframe/framing"
	"code.hybscloud.com/netframe/proto/publisher"
	"code.hybscloud.com/netframe/subscriber"
	"code.hybscloud.com/netframe/value"
)

// fakeResolver answers Resolve from a fixed table, recording every call.
type fakeResolver struct {
	mu      sync.Mutex
	table   map[string][]string
	err     error
	calls   int
	lastReq []string
}

func (f *fakeResolver) Resolve(_ context.Context, paths []string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = append([]string(nil), paths...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]string, len(paths))
	for i, p := range paths {
		out[i] = f.table[p]
	}
	return out, nil
}

// fakePublisher accepts one connection and answers Subscribe/Unsubscribe
// control messages over the real wire protocol, letting a test script each
// path's reply.
type fakePublisher struct {
	ln net.Listener
	ch *framing.Channel

	mu   sync.Mutex
	subs map[string]publisher.SubscriptionID
	next publisher.SubscriptionID
}

func startFakePublisher(t testing.TB) *fakePublisher {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	fp := &fakePublisher{ln: ln, subs: make(map[string]publisher.SubscriptionID)}
	go fp.acceptAndServe(t)
	return fp
}

func (fp *fakePublisher) addr() string { return fp.ln.Addr().String() }

func (fp *fakePublisher) acceptAndServe(t testing.TB) {
	conn, err := fp.ln.Accept()
	if err != nil {
		return
	}
	ch := framing.New(conn)
	fp.ch = ch

	ctx := context.Background()
	if _, err := ch.Reader.Receive(ctx); err != nil { // PHello, ignored
		return
	}

	for {
		frame, err := ch.Reader.Receive(ctx)
		if err != nil {
			return
		}
		msg, err := publisher.DecodeToPublisher(frame)
		if err != nil {
			return
		}
		switch msg.Kind {
		case publisher.ToPublisherSubscribe:
			fp.mu.Lock()
			if msg.Path == "/missing" {
				fp.mu.Unlock()
				fp.send(t, publisher.FromPublisher{Kind: publisher.FromPublisherNoSuchValue, Path: msg.Path}.Encode())
				continue
			}
			id := fp.next
			fp.next++
			fp.subs[msg.Path] = id
			fp.mu.Unlock()
			fp.send(t, publisher.FromPublisher{Kind: publisher.FromPublisherSubscribed, Path: msg.Path, ID: id}.Encode())
			fp.send(t, value.U32(1).Encode(nil))
		case publisher.ToPublisherUnsubscribe:
			fp.send(t, publisher.FromPublisher{Kind: publisher.FromPublisherUnsubscribed, ID: msg.ID}.Encode())
		}
	}
}

func (fp *fakePublisher) send(t testing.TB, payload []byte) {
	t.Helper()
	if err := fp.ch.Writer.Queue(payload); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = fp.ch.Writer.Flush(ctx)
}

// pushValue sends an out-of-band Message(id) update for path, blocking
// until the publisher has a subscription id for it.
func (fp *fakePublisher) pushValue(t testing.TB, path string, v value.Value) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fp.mu.Lock()
		id, ok := fp.subs[path]
		fp.mu.Unlock()
		if ok {
			fp.send(t, publisher.FromPublisher{Kind: publisher.FromPublisherMessage, ID: id}.Encode())
			fp.send(t, v.Encode(nil))
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("publisher never saw a subscription for %s", path)
}

func (fp *fakePublisher) close() { fp.ln.Close() }

func TestSubscribeDeliversInitialValue(t *testing.T) {
	fp := startFakePublisher(t)
	defer fp.close()

	r := &fakeResolver{table: map[string][]string{"/a": {fp.addr()}}}
	sub := subscriber.New(r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	results := sub.Subscribe(ctx, []string{"/a"})
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	defer results[0].Sub.Close()

	if got := results[0].Sub.Value(); got.Kind() != value.KindU32 {
		t.Fatalf("initial value = %+v", got)
	}
}

func TestSubscribeNotFound(t *testing.T) {
	fp := startFakePublisher(t)
	defer fp.close()

	r := &fakeResolver{table: map[string][]string{"/missing": {fp.addr()}}}
	sub := subscriber.New(r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	results := sub.Subscribe(ctx, []string{"/missing"})
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("results = %+v, want an error", results)
	}
}

func TestSubscribeUnresolvedPath(t *testing.T) {
	r := &fakeResolver{table: map[string][]string{}}
	sub := subscriber.New(r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	results := sub.Subscribe(ctx, []string{"/nowhere"})
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("results = %+v, want an error", results)
	}
}

func TestConcurrentSubscribeDedupsResolverCall(t *testing.T) {
	fp := startFakePublisher(t)
	defer fp.close()

	r := &fakeResolver{table: map[string][]string{"/a": {fp.addr()}}}
	sub := subscriber.New(r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	out := make([]subscriber.Result, 8)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = sub.Subscribe(ctx, []string{"/a"})[0]
		}(i)
	}
	wg.Wait()

	for _, res := range out {
		if res.Err != nil {
			t.Fatalf("result = %+v", res)
		}
		defer res.Sub.Close()
	}

	r.mu.Lock()
	calls := r.calls
	r.mu.Unlock()
	if calls != 1 {
		t.Fatalf("resolver called %d times, want exactly 1", calls)
	}
}

func TestSubscriptionUpdatesFanOut(t *testing.T) {
	fp := startFakePublisher(t)
	defer fp.close()

	r := &fakeResolver{table: map[string][]string{"/a": {fp.addr()}}}
	sub := subscriber.New(r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	first := sub.Subscribe(ctx, []string{"/a"})[0]
	if first.Err != nil {
		t.Fatal(first.Err)
	}
	defer first.Sub.Close()
	<-first.Sub.Updates() // drain the initial value

	second := sub.Subscribe(ctx, []string{"/a"})[0]
	if second.Err != nil {
		t.Fatal(second.Err)
	}
	defer second.Sub.Close()
	<-second.Sub.Updates()

	fp.pushValue(t, "/a", value.Str("hello"))

	for _, h := range []*subscriber.Subscription{first.Sub, second.Sub} {
		select {
		case v := <-h.Updates():
			if v.Kind() != value.KindString {
				t.Fatalf("update = %+v", v)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for fanned-out update")
		}
	}
}

func TestSubscriptionCloseUnsubscribesOnLastHandle(t *testing.T) {
	fp := startFakePublisher(t)
	defer fp.close()

	r := &fakeResolver{table: map[string][]string{"/a": {fp.addr()}}}
	sub := subscriber.New(r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	a := sub.Subscribe(ctx, []string{"/a"})[0]
	if a.Err != nil {
		t.Fatal(a.Err)
	}
	a.Sub.Close()

	select {
	case <-a.Sub.Dead():
	case <-time.After(2 * time.Second):
		t.Fatal("Close should mark the subscription dead")
	}

	// Subscribing again should go back over the wire, not reuse a dead entry.
	b := sub.Subscribe(ctx, []string{"/a"})[0]
	if b.Err != nil {
		t.Fatal(b.Err)
	}
	defer b.Sub.Close()
	if b.Sub == a.Sub {
		t.Fatal("expected a fresh subscription after the prior one was closed")
	}
}

// TestSubscriptionBackpressurePreservesOrder drives a burst well past
// FanoutDepth into a consumer that isn't draining, then drains afterward and
// checks every value arrived, in order, with nothing dropped — spec §1's
// "lossless ordered stream of value updates" and testable property 8.
func TestSubscriptionBackpressurePreservesOrder(t *testing.T) {
	fp := startFakePublisher(t)
	defer fp.close()

	r := &fakeResolver{table: map[string][]string{"/a": {fp.addr()}}}
	sub := subscriber.New(r, subscriber.WithFanoutDepth(2))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res := sub.Subscribe(ctx, []string{"/a"})[0]
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	defer res.Sub.Close()

	const burst = 10
	for i := 0; i < burst; i++ {
		fp.pushValue(t, "/a", value.V64(uint64(i)))
	}

	// The initial value (U32(1)) comes first, then the burst in order.
	if v := <-res.Sub.Updates(); v.Kind() != value.KindU32 {
		t.Fatalf("initial value = %+v", v)
	}
	for i := 0; i < burst; i++ {
		select {
		case v := <-res.Sub.Updates():
			if v.Kind() != value.KindV64 || v.U64Val() != uint64(i) {
				t.Fatalf("update %d = %+v, want V64(%d)", i, v, i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for update %d; a value was dropped or delivery deadlocked", i)
		}
	}
}

// TestSubscriptionBackpressureStallsConnection proves delivery actually
// blocks a slow consumer's connection (spec §5: "a slow peer stalls local
// producers") rather than dropping values to keep the read loop moving. With
// FanoutDepth(1) the single fanout slot is already occupied by the initial
// value, so the very next push must wait for a drain — and since one read
// loop serializes every path on a connection, a second path's Subscribe
// reply queued behind it must wait too, until the first subscriber drains.
func TestSubscriptionBackpressureStallsConnection(t *testing.T) {
	fp := startFakePublisher(t)
	defer fp.close()

	r := &fakeResolver{table: map[string][]string{"/a": {fp.addr()}, "/b": {fp.addr()}}}
	sub := subscriber.New(r, subscriber.WithFanoutDepth(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	first := sub.Subscribe(ctx, []string{"/a"})[0]
	if first.Err != nil {
		t.Fatal(first.Err)
	}
	defer first.Sub.Close()
	// Deliberately do not drain the initial value: the one fanout slot stays full.

	fp.pushValue(t, "/a", value.V64(42))

	secondDone := make(chan subscriber.Result, 1)
	go func() { secondDone <- sub.Subscribe(ctx, []string{"/b"})[0] }()

	select {
	case res := <-secondDone:
		t.Fatalf("second subscribe on the same connection completed (%+v) while the first consumer was stalled; the connection should have been blocked", res)
	case <-time.After(300 * time.Millisecond):
	}

	<-first.Sub.Updates() // initial value
	<-first.Sub.Updates() // the pushed V64(42), unblocking the read loop

	select {
	case res := <-secondDone:
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		defer res.Sub.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("second subscribe never completed after the stalled consumer drained")
	}
}

func TestSubscriberResolverErrorPropagates(t *testing.T) {
	r := &fakeResolver{err: fmt.Errorf("resolver down")}
	sub := subscriber.New(r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	results := sub.Subscribe(ctx, []string{"/a"})
	if results[0].Err == nil {
		t.Fatal("expected the resolver error to propagate")
	}
}
