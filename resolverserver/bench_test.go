// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolverserver_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"code.hybscloud.com/netframe/framing"
	"code.hybscloud.com/netframe/path"
	"code.hybscloud.com/netframe/proto/resolver"
	"code.hybscloud.com/netframe/store"
)

// benchmarkPublisher drives one anonymous write session publishing n paths
// under its own write_addr, waits for every ack, and returns the still-open
// connection for the caller to close. It stands in for original_source's
// stress_publisher.rs: a load generator, not a shipped binary (SPEC_FULL.md
// §4.6).
func benchmarkPublisher(b *testing.B, addr string, writeAddr string, n int) (ch *framing.Channel, conn net.Conn) {
	b.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		b.Fatal(err)
	}
	var verBuf [8]byte
	if _, err := conn.Read(verBuf[:]); err != nil {
		b.Fatal(err)
	}
	if _, err := conn.Write(verBuf[:]); err != nil {
		b.Fatal(err)
	}
	ch = framing.New(conn)

	hello := resolver.ClientHello{
		Kind:      resolver.ClientHelloWriteOnly,
		WriteAddr: writeAddr,
		Write:     resolver.ClientAuth{Kind: resolver.AuthAnonymous},
	}
	if err := ch.Writer.Queue(hello.Encode()); err != nil {
		b.Fatal(err)
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Writer.Flush(flushCtx); err != nil {
		b.Fatal(err)
	}

	recvCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if _, err := ch.Reader.Receive(recvCtx); err != nil {
		b.Fatal(err)
	}

	for i := 0; i < n; i++ {
		pub := resolver.ToWrite{Kind: resolver.ToWritePublish, Path: fmt.Sprintf("/bench/%d", i)}
		if err := ch.Writer.Queue(pub.Encode()); err != nil {
			b.Fatal(err)
		}
	}
	fCtx, cancel3 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel3()
	if err := ch.Writer.Flush(fCtx); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < n; i++ {
		rCtx, cancel4 := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := ch.Reader.Receive(rCtx)
		cancel4()
		if err != nil {
			b.Fatal(err)
		}
	}
	return ch, conn
}

// BenchmarkManyPublishersManyResolves loads the store with b.N writers each
// publishing a handful of paths, then resolves them all back, approximating
// the path fan-out stress_publisher.rs/stress_subscriber.rs drive against a
// live resolver (SPEC_FULL.md §4.6 supplemented features).
func BenchmarkManyPublishersManyResolves(b *testing.B) {
	const pathsPerWriter = 4
	st := store.NewMemory()
	addr, stop := startServer(b, st)
	defer stop()

	conns := make([]net.Conn, 0, b.N)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		writeAddr := fmt.Sprintf("10.0.%d.%d:%d", i/250, i%250, 20000+i%1000)
		_, conn := benchmarkPublisher(b, addr, writeAddr, pathsPerWriter)
		conns = append(conns, conn)
	}

	paths := make([]path.Path, 0, pathsPerWriter)
	for j := 0; j < pathsPerWriter; j++ {
		paths = append(paths, path.New(fmt.Sprintf("/bench/%d", j)))
	}
	resolved := st.Resolve(paths)
	for _, addrs := range resolved {
		if len(addrs) != b.N {
			b.Fatalf("expected %d publishers per benchmark path, got %d", b.N, len(addrs))
		}
	}
}
