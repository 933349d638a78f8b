// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolverserver

import (
	"time"

	"github.com/rs/zerolog"

	"code.hybscloud.com/netframe/security"
)

// Options configures a Server. There is no config-file loader (out of
// scope); every tunable is a constructor argument, following the framing
// package's own functional-option style.
type Options struct {
	HelloTimeout   time.Duration
	WriterTTL      time.Duration
	ReaderTTL      time.Duration
	MaxConnections int
	ResolverID     string
	Security       security.Store
	Logger         zerolog.Logger
}

// Option configures a Server at construction time.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		HelloTimeout:   10 * time.Second,
		WriterTTL:      2 * time.Minute,
		ReaderTTL:      2 * time.Minute,
		MaxConnections: 1024,
		ResolverID:     "resolver",
		Logger:         zerolog.Nop(),
	}
}

// WithHelloTimeout bounds how long a connection may take to complete the
// version+hello handshake before it is dropped.
func WithHelloTimeout(d time.Duration) Option {
	return func(o *Options) { o.HelloTimeout = d }
}

// WithWriterTTL sets the idle interval after which a writer session with no
// activity is torn down and its registrations cleared.
func WithWriterTTL(d time.Duration) Option {
	return func(o *Options) { o.WriterTTL = d }
}

// WithReaderTTL bounds idle read connections; unlike WriterTTL it triggers
// no store cleanup, only connection teardown.
func WithReaderTTL(d time.Duration) Option {
	return func(o *Options) { o.ReaderTTL = d }
}

// WithMaxConnections sets the soft cap the accept loop's admission control
// sleeps against once exceeded.
func WithMaxConnections(n int) Option {
	return func(o *Options) { o.MaxConnections = n }
}

// WithResolverID sets the identifier this server reports in ServerHelloWrite
// and FromRead responses.
func WithResolverID(id string) Option {
	return func(o *Options) { o.ResolverID = id }
}

// WithSecurity installs the security.Store backing authenticated sessions.
// Without one, every Initiate auth request fails (spec §4.3: "if the server
// has no security store, fail").
func WithSecurity(s security.Store) Option {
	return func(o *Options) { o.Security = s }
}

// WithLogger installs a structured logger; the remote address is attached
// per connection, and write sessions also attach their write_addr.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
