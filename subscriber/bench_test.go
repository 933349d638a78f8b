// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package subscriber_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"code.hybscloud.com/netframe/subscriber"
)

// BenchmarkSubscribeFanOut approximates original_source's
// stress_subscriber.rs: b.N subscribers resolving and subscribing to a
// shared pool of paths served by one publisher, each new handle getting the
// path's current value queued on its update channel (SPEC_FULL.md §4.6 supplemented features — reflected as
// a Go benchmark, not a shipped stress-test binary).
func BenchmarkSubscribeFanOut(b *testing.B) {
	const poolSize = 16
	fp := startFakePublisher(b)
	defer fp.close()

	table := make(map[string][]string, poolSize)
	paths := make([]string, poolSize)
	for i := 0; i < poolSize; i++ {
		p := fmt.Sprintf("/bench/%d", i)
		paths[i] = p
		table[p] = []string{fp.addr()}
	}
	r := &fakeResolver{table: table}
	sub := subscriber.New(r)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b.ResetTimer()
	results := make([]subscriber.Result, 0, b.N)
	for i := 0; i < b.N; i++ {
		p := paths[i%poolSize]
		res := sub.Subscribe(ctx, []string{p})[0]
		if res.Err != nil {
			b.Fatal(res.Err)
		}
		results = append(results, res)
	}
	b.StopTimer()

	for _, res := range results {
		res.Sub.Close()
	}
}

// BenchmarkConcurrentSubscribeDedup measures the dedup path (spec §4.4,
// §8 property 7): N goroutines racing to subscribe the same path collapse
// to one resolver call and one wire Subscribe, matching stress_subscriber's
// "many clients, one path" load shape.
func BenchmarkConcurrentSubscribeDedup(b *testing.B) {
	fp := startFakePublisher(b)
	defer fp.close()

	r := &fakeResolver{table: map[string][]string{"/shared": {fp.addr()}}}
	sub := subscriber.New(r)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			res := sub.Subscribe(ctx, []string{"/shared"})[0]
			if res.Err != nil {
				b.Error(res.Err)
				return
			}
		}
	})
}
