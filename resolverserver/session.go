// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolverserver

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"code.hybscloud.com/netframe/framing"
	"code.hybscloud.com/netframe/path"
	"code.hybscloud.com/netframe/proto/publisher"
	"code.hybscloud.com/netframe/proto/resolver"
	"code.hybscloud.com/netframe/security"
	"code.hybscloud.com/netframe/store"
)

func newPath(s string) path.Path { return path.New(s) }

func newGlobSet(patterns []string) path.GlobSet { return path.NewGlobSet(patterns...) }

// handleConn drives one connection through version exchange, hello
// negotiation, and its role-specific main loop (spec §4.3 steps 1-6). Every
// error here closes the connection without taking the server down.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := s.opts.Logger.With().Str("remote", conn.RemoteAddr().String()).Logger()

	_ = conn.SetDeadline(time.Now().Add(s.opts.HelloTimeout))
	if err := exchangeVersion(conn); err != nil {
		log.Debug().Err(err).Msg("version exchange failed")
		return
	}
	_ = conn.SetDeadline(time.Time{})

	ch := framing.New(conn)
	defer ch.Close()

	helloCtx, cancel := context.WithTimeout(ctx, s.opts.HelloTimeout)
	hello, err := recvHello(helloCtx, ch)
	cancel()
	if err != nil {
		log.Debug().Err(err).Msg("hello negotiation failed")
		return
	}

	switch hello.Kind {
	case resolver.ClientHelloReadOnly:
		s.runRead(ctx, ch, hello, log)
	case resolver.ClientHelloWriteOnly:
		s.runWrite(ctx, ch, hello, log)
	}
}

// exchangeVersion performs the raw, unframed version handshake that
// precedes the framed channel: the server sends its version, the client
// echoes one back (spec §4.3 step 1).
func exchangeVersion(conn net.Conn) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], resolver.Version)
	if _, err := conn.Write(buf[:]); err != nil {
		return fmt.Errorf("resolverserver: send version: %w", err)
	}
	if _, err := readFull(conn, buf[:]); err != nil {
		return fmt.Errorf("resolverserver: read version: %w", err)
	}
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func recvHello(ctx context.Context, ch *framing.Channel) (resolver.ClientHello, error) {
	b, err := ch.Reader.Receive(ctx)
	if err != nil {
		return resolver.ClientHello{}, err
	}
	return resolver.DecodeClientHello(b)
}

func sendMsg(ctx context.Context, ch *framing.Channel, payload []byte) error {
	if err := ch.Writer.Queue(payload); err != nil {
		return err
	}
	return ch.Writer.Flush(ctx)
}

var errNoSecurityStore = errors.New("resolverserver: no security store configured")

// --- Read role -------------------------------------------------------

func (s *Server) runRead(ctx context.Context, ch *framing.Channel, hello resolver.ClientHello, log zerolog.Logger) {
	reply, principal, err := s.negotiateRead(hello.Read)
	if err != nil {
		log.Debug().Err(err).Msg("read auth negotiation failed")
		return
	}
	if err := sendMsg(ctx, ch, reply.Encode()); err != nil {
		return
	}
	s.readLoop(ctx, ch, principal, log)
}

func (s *Server) negotiateRead(auth resolver.ClientAuth) (resolver.ServerHelloRead, string, error) {
	switch auth.Kind {
	case resolver.AuthAnonymous:
		return resolver.ServerHelloRead{Kind: resolver.ServerHelloReadAnonymous}, security.AnonymousPrincipal, nil
	case resolver.AuthInitiate:
		if s.opts.Security == nil {
			return resolver.ServerHelloRead{}, "", errNoSecurityStore
		}
		newCtx, replyToken, err := s.opts.Security.Create(auth.Token)
		if err != nil {
			return resolver.ServerHelloRead{}, "", err
		}
		ctxID, err := randomSecret()
		if err != nil {
			return resolver.ServerHelloRead{}, "", err
		}
		return resolver.ServerHelloRead{
			Kind:       resolver.ServerHelloReadAccepted,
			ReplyToken: replyToken,
			CtxID:      ctxID,
		}, newCtx.ClientPrincipal(), nil
	case resolver.AuthReuse:
		return resolver.ServerHelloRead{}, "", errors.New("resolverserver: read-side session reuse is deprecated")
	default:
		return resolver.ServerHelloRead{}, "", fmt.Errorf("resolverserver: unknown read auth kind %d", auth.Kind)
	}
}

func (s *Server) readLoop(ctx context.Context, ch *framing.Channel, principal string, log zerolog.Logger) {
	for {
		frame, stopped, err := s.receiveOrStop(ctx, ch, s.opts.ReaderTTL, nil)
		if stopped {
			return
		}
		if err != nil {
			return
		}

		req, err := resolver.DecodeToRead(frame)
		if err != nil {
			log.Debug().Err(err).Msg("bad read request")
			return
		}
		resp := s.handleToRead(req, principal)
		if err := sendMsg(ctx, ch, resp.Encode()); err != nil {
			return
		}
	}
}

// receiveOrStop receives the next frame bounded by ttl, but wakes
// immediately (rather than waiting for ttl or the next loop iteration) if
// the server is stopped, sessionStop closes (a writer session superseded by
// a newer one on the same address, spec §4.3 step 4), or ctx is canceled.
// Without this, a session blocked in ch.Reader.Receive would not notice
// Server.Stop or a superseded session's cancellation until its TTL next
// elapsed (spec §5: "a server stop signal... unwinds every session").
// sessionStop may be nil, for callers with no per-session stop source.
func (s *Server) receiveOrStop(ctx context.Context, ch *framing.Channel, ttl time.Duration, sessionStop <-chan struct{}) (frame []byte, stopped bool, err error) {
	recvCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-s.stop:
			stopped = true
		case <-sessionStop:
			stopped = true
		case <-recvCtx.Done():
			if ctx.Err() != nil {
				stopped = true
			}
		}
		cancel()
	}()

	frame, err = ch.Reader.Receive(recvCtx)
	<-done
	return frame, stopped, err
}

func (s *Server) handleToRead(req resolver.ToRead, principal string) resolver.FromRead {
	var spnFn func(string) string
	if principal != security.AnonymousPrincipal {
		spnFn = func(addr string) string { return principal }
	}
	switch req.Kind {
	case resolver.ToReadResolve:
		return store.ResolveToWire(s.store, s.opts.ResolverID, req.Paths, spnFn)
	case resolver.ToReadList:
		return resolver.FromRead{Kind: resolver.FromReadListed, Listed: s.store.List(newPath(req.Path))}
	case resolver.ToReadListMatching:
		matched := s.store.ListMatching(newGlobSet(req.Globs))
		listed := make([]string, len(matched))
		for i, p := range matched {
			listed[i] = p.String()
		}
		return resolver.FromRead{Kind: resolver.FromReadListed, Listed: listed}
	case resolver.ToReadTable:
		return resolver.FromRead{Kind: resolver.FromReadTabled, Listed: s.store.Table(newPath(req.Path))}
	case resolver.ToReadCheckChanged:
		changed, gen := s.store.CheckChanged(req.Tracker)
		return resolver.FromRead{Kind: resolver.FromReadChanged, Changed: changed, Generation: gen}
	default:
		return resolver.FromRead{Kind: resolver.FromReadError, Error: "resolverserver: unknown read request"}
	}
}

// --- Write role --------------------------------------------------------

func (s *Server) runWrite(ctx context.Context, ch *framing.Channel, hello resolver.ClientHello, log zerolog.Logger) {
	log = log.With().Str("write_addr", hello.WriteAddr).Logger()

	reply, err := s.negotiateWrite(ctx, ch, hello, log)
	if err != nil {
		log.Debug().Err(err).Msg("write auth negotiation failed")
		return
	}

	var stop chan struct{}
	var ttlExpired bool
	for {
		stop, ttlExpired = s.clinfos.registerRunning(hello.WriteAddr)
		if stop != nil {
			break
		}
		w := s.clinfos.waitForCleanup(hello.WriteAddr)
		if w == nil {
			continue
		}
		select {
		case <-w:
		case <-ctx.Done():
			return
		}
	}
	reply.TTLExpired = ttlExpired
	reply.TTLSeconds = uint64(s.opts.WriterTTL / time.Second)
	reply.ResolverID = s.opts.ResolverID

	if err := sendMsg(ctx, ch, reply.Encode()); err != nil {
		s.clinfos.finishCleanup(hello.WriteAddr)
		return
	}

	s.writeLoop(ctx, ch, hello.WriteAddr, stop, log)
}

// negotiateWrite runs the Anonymous/Reuse/Initiate branches of spec §4.3
// step 3, including the listener-ownership-proof dial-back for Initiate.
// It returns a ServerHelloWrite with every field but TTL/ResolverID filled
// in; the caller attaches those once session bookkeeping succeeds.
func (s *Server) negotiateWrite(ctx context.Context, ch *framing.Channel, hello resolver.ClientHello, log zerolog.Logger) (resolver.ServerHelloWrite, error) {
	switch hello.Write.Kind {
	case resolver.AuthAnonymous:
		return resolver.ServerHelloWrite{Kind: resolver.ServerHelloWriteAnonymous}, nil

	case resolver.AuthReuse:
		existing, ok := s.clinfos.authFor(hello.WriteAddr)
		if !ok {
			return resolver.ServerHelloWrite{}, fmt.Errorf("resolverserver: no session to reuse for %s", hello.WriteAddr)
		}
		ch.SetContext(existing)
		return resolver.ServerHelloWrite{Kind: resolver.ServerHelloWriteReused}, nil

	case resolver.AuthInitiate:
		if s.opts.Security == nil {
			return resolver.ServerHelloWrite{}, errNoSecurityStore
		}
		newCtx, replyToken, err := s.opts.Security.Create(hello.Write.Token)
		if err != nil {
			return resolver.ServerHelloWrite{}, err
		}
		secret, err := randomSecret()
		if err != nil {
			return resolver.ServerHelloWrite{}, err
		}
		ch.SetContext(newCtx)

		// Hand the client its shared secret and wait for it to confirm it
		// is listening as a publisher on write_addr before dialing back
		// (spec §4.3 step 3: "send Secret(secret), then wait for
		// ReadyForOwnershipCheck").
		if err := sendMsg(ctx, ch, resolver.OwnershipStep{Kind: resolver.OwnershipSecret, Secret: secret}.Encode()); err != nil {
			return resolver.ServerHelloWrite{}, err
		}
		readyCtx, cancel := context.WithTimeout(ctx, s.opts.HelloTimeout)
		frame, err := ch.Reader.Receive(readyCtx)
		cancel()
		if err != nil {
			return resolver.ServerHelloWrite{}, fmt.Errorf("resolverserver: awaiting ready-for-ownership-check: %w", err)
		}
		step, err := resolver.DecodeOwnershipStep(frame)
		if err != nil {
			return resolver.ServerHelloWrite{}, err
		}
		if step.Kind != resolver.OwnershipReady {
			return resolver.ServerHelloWrite{}, errors.New("resolverserver: expected ready-for-ownership-check")
		}

		if err := s.proveOwnership(ctx, hello.WriteAddr, secret, log); err != nil {
			return resolver.ServerHelloWrite{}, err
		}
		s.clinfos.setAuth(hello.WriteAddr, newCtx, secret)
		return resolver.ServerHelloWrite{Kind: resolver.ServerHelloWriteAccepted, ReplyToken: replyToken}, nil

	default:
		return resolver.ServerHelloWrite{}, fmt.Errorf("resolverserver: unknown write auth kind %d", hello.Write.Kind)
	}
}

// proveOwnership dials writeAddr back and demands a publisher hello proving
// control of secret, per spec §4.3 step 3's listener-ownership proof: the
// resolver asks empty-handed, and only a peer that already holds secret
// (because it received it over the control channel as an OwnershipStep) can
// answer with a token security.VerifyOwnershipToken accepts.
func (s *Server) proveOwnership(ctx context.Context, writeAddr string, secret uint64, log zerolog.Logger) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.opts.HelloTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", writeAddr)
	if err != nil {
		return fmt.Errorf("resolverserver: ownership dial-back to %s: %w", writeAddr, err)
	}
	defer conn.Close()

	pch := framing.New(conn)
	defer pch.Close()

	req := publisher.PHello{Kind: publisher.PHelloResolverAuthenticate, Addr: s.opts.ResolverID}
	if err := sendMsg(ctx, pch, req.Encode()); err != nil {
		return fmt.Errorf("resolverserver: ownership dial-back send: %w", err)
	}

	frame, err := pch.Reader.Receive(dialCtx)
	if err != nil {
		return fmt.Errorf("resolverserver: ownership dial-back receive: %w", err)
	}
	resp, err := publisher.DecodePHello(frame)
	if err != nil {
		return err
	}
	if resp.Kind != publisher.PHelloResolverAuthenticate {
		return errors.New("resolverserver: ownership dial-back got unexpected reply")
	}
	if !security.VerifyOwnershipToken(resp.Token, secret) {
		return errors.New("resolverserver: listener ownership proof failed")
	}
	log.Debug().Str("write_addr", writeAddr).Msg("listener ownership proof verified")
	return nil
}

func randomSecret() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("resolverserver: generating secret: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// writeLoop drives spec §4.3 step 5: TTL-based eviction, batch decoding
// with Clear-splitting, and clean shutdown on server/session stop.
func (s *Server) writeLoop(ctx context.Context, ch *framing.Channel, writeAddr string, stop chan struct{}, log zerolog.Logger) {
	cleanExit := false
	defer func() {
		if !cleanExit {
			s.evictWriter(writeAddr, stop, log)
		}
	}()

	for {
		frame, stopped, err := s.receiveOrStop(ctx, ch, s.opts.WriterTTL, stop)
		if stopped {
			// Server stop, ctx cancellation, or superseded by a newer
			// session on the same address; in every case that other
			// owner (Server.Stop's caller, or the session that replaced
			// us) owns cleanup, not us.
			cleanExit = true
			return
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Info().Msg("write client timed out")
			}
			return
		}

		if err := s.processWriteBatch(ctx, ch, writeAddr, frame, log); err != nil {
			log.Debug().Err(err).Msg("write batch failed")
			return
		}
	}
}

// evictWriter implements the TTL-timeout branch of spec §4.3 step 5: mark
// CleaningUp, clear every registration the writer owned, purge its security
// context, then remove the entry and release any waiters.
func (s *Server) evictWriter(writeAddr string, stop chan struct{}, log zerolog.Logger) {
	if !s.clinfos.beginCleanup(writeAddr, stop) {
		return
	}
	if err := s.store.HandleClear(writeAddr); err != nil {
		log.Warn().Err(err).Msg("handle_clear failed during eviction")
	}
	s.clinfos.finishCleanup(writeAddr)
}

// processWriteBatch decodes and executes one incoming frame's worth of
// ToWrite messages. A lone Heartbeat is ignored; any Clear splits the batch
// at that point and forces a flush before the remainder is processed (spec
// §4.3 step 5).
func (s *Server) processWriteBatch(ctx context.Context, ch *framing.Channel, writeAddr string, frame []byte, log zerolog.Logger) error {
	var msgs []resolver.ToWrite
	err := framing.DecodeBatch(frame, func(b []byte) (int, error) {
		m, n, err := resolver.DecodeToWriteAt(b)
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, m)
		return n, nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("malformed write batch")
		return err
	}
	if len(msgs) == 1 && msgs[0].Kind == resolver.ToWriteHeartbeat {
		return nil
	}

	for len(msgs) > 0 {
		clearAt := -1
		for i, m := range msgs {
			if m.Kind == resolver.ToWriteClear {
				clearAt = i
				break
			}
		}
		sub := msgs
		if clearAt >= 0 {
			sub = msgs[:clearAt+1]
		}
		for _, m := range sub {
			resp := s.applyToWrite(writeAddr, m)
			if err := ch.Writer.Queue(resp.Encode()); err != nil {
				return err
			}
		}
		if err := ch.Writer.Flush(ctx); err != nil {
			return err
		}
		if clearAt < 0 {
			break
		}
		msgs = msgs[clearAt+1:]
	}
	return nil
}

func (s *Server) applyToWrite(writeAddr string, m resolver.ToWrite) resolver.FromWrite {
	switch m.Kind {
	case resolver.ToWritePublish, resolver.ToWritePublishDefault:
		def := m.Kind == resolver.ToWritePublishDefault
		if err := s.store.Publish(writeAddr, newPath(m.Path), writeAddr, 0, def); err != nil {
			return resolver.FromWrite{Kind: resolver.FromWriteError, Error: err.Error()}
		}
		return resolver.FromWrite{Kind: resolver.FromWritePublished}
	case resolver.ToWritePublishWithFlags, resolver.ToWritePublishDefaultWithFlags:
		def := m.Kind == resolver.ToWritePublishDefaultWithFlags
		if err := s.store.Publish(writeAddr, newPath(m.Path), writeAddr, m.Flags, def); err != nil {
			return resolver.FromWrite{Kind: resolver.FromWriteError, Error: err.Error()}
		}
		return resolver.FromWrite{Kind: resolver.FromWritePublished}
	case resolver.ToWriteUnpublish, resolver.ToWriteUnpublishDefault:
		def := m.Kind == resolver.ToWriteUnpublishDefault
		if err := s.store.Unpublish(writeAddr, newPath(m.Path), def); err != nil {
			return resolver.FromWrite{Kind: resolver.FromWriteError, Error: err.Error()}
		}
		return resolver.FromWrite{Kind: resolver.FromWriteUnpublished}
	case resolver.ToWriteClear:
		if err := s.store.HandleClear(writeAddr); err != nil {
			return resolver.FromWrite{Kind: resolver.FromWriteError, Error: err.Error()}
		}
		return resolver.FromWrite{Kind: resolver.FromWriteUnpublished}
	default:
		return resolver.FromWrite{Kind: resolver.FromWriteError, Error: "resolverserver: unknown write request"}
	}
}
