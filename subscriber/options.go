// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package subscriber

import (
	"time"

	"github.com/rs/zerolog"

	"code.hybscloud.com/netframe/security"
)

// Options configures a Subscriber. As with resolverserver there is no
// config-file loader; every tunable is a constructor argument.
type Options struct {
	DialTimeout time.Duration
	BatchBound  int
	FanoutDepth int
	Credentials func() (PHelloKind, []byte)
	Security    security.Context
	Logger      zerolog.Logger
}

// WithSecurity installs a security.Context that every new per-publisher
// connection is sealed under from the start, its PHello included. Unlike
// resolverserver, where a session's Context is negotiated per connection
// via security.Store, here the Context is already established (e.g. from a
// prior resolver exchange) and carried into every publisher dial.
func WithSecurity(ctx security.Context) Option {
	return func(o *Options) { o.Security = ctx }
}

// PHelloKind mirrors publisher.PHelloKind for the Credentials callback, so
// callers configuring a Subscriber need not import proto/publisher just to
// pick an auth mode.
type PHelloKind = uint8

// Option configures a Subscriber at construction time.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		DialTimeout: 10 * time.Second,
		BatchBound:  100_000,
		FanoutDepth: 16,
		Logger:      zerolog.Nop(),
	}
}

// WithDialTimeout bounds how long connecting to a newly resolved publisher
// address, including its PHello, may take.
func WithDialTimeout(d time.Duration) Option {
	return func(o *Options) { o.DialTimeout = d }
}

// WithBatchBound caps how many outgoing Subscribe/Unsubscribe control
// messages a per-publisher connection coalesces into one flush (spec §4.4:
// "batch size bound ≈ 100 000").
func WithBatchBound(n int) Option {
	return func(o *Options) { o.BatchBound = n }
}

// WithFanoutDepth sets the buffer depth of the per-Subscription update
// channel returned by Subscription.Updates.
func WithFanoutDepth(n int) Option {
	return func(o *Options) { o.FanoutDepth = n }
}

// WithCredentials installs the PHello variant and token a new per-publisher
// connection presents; without one, connections send PHello::Anonymous.
func WithCredentials(f func() (PHelloKind, []byte)) Option {
	return func(o *Options) { o.Credentials = f }
}

// WithLogger installs a structured logger; the publisher address is
// attached per connection.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
