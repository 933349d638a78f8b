// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resolver holds the wire message types exchanged between a
// resolver server and its read/write clients (spec §6): hello negotiation,
// ToRead/FromRead, and ToWrite/FromWrite.
package resolver

import (
	"code.hybscloud.com/netframe/path"
	"code.hybscloud.com/netframe/proto/wire"
)

// Version is the resolver protocol version sent as the first 8 bytes of
// every connection, before any framed message.
const Version uint64 = 1

// AuthKind discriminates a ClientAuthRead/ClientHelloWrite auth payload.
type AuthKind uint8

const (
	AuthAnonymous AuthKind = iota
	AuthReuse
	AuthInitiate
)

// ClientAuth is the auth payload carried by both ClientHelloRead and
// ClientHelloWrite; Reuse carries nothing extra for reads (session reuse on
// the read side is deprecated, spec §4.3) but a write_addr-keyed lookup on
// the write side, and Initiate always carries a token.
type ClientAuth struct {
	Kind  AuthKind
	Token []byte // Initiate only
}

func (a ClientAuth) encode(w *wire.Buffer) {
	w.PutU8(uint8(a.Kind))
	if a.Kind == AuthInitiate {
		w.PutBytes(a.Token)
	}
}

func decodeClientAuth(c *wire.Cursor) (ClientAuth, error) {
	kind, err := c.U8()
	if err != nil {
		return ClientAuth{}, err
	}
	a := ClientAuth{Kind: AuthKind(kind)}
	if a.Kind == AuthInitiate {
		tok, err := c.Bytes()
		if err != nil {
			return ClientAuth{}, err
		}
		a.Token = tok
	}
	return a, nil
}

// ClientHelloKind discriminates the top-level ClientHello variant.
type ClientHelloKind uint8

const (
	ClientHelloReadOnly ClientHelloKind = iota
	ClientHelloWriteOnly
)

// ClientHello is the first application message a client sends (spec §4.3
// step 2).
type ClientHello struct {
	Kind ClientHelloKind
	Read ClientAuth // ReadOnly

	// WriteOnly fields:
	WriteAddr string
	Write     ClientAuth
}

func (h ClientHello) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(h.Kind))
	switch h.Kind {
	case ClientHelloReadOnly:
		h.Read.encode(&w)
	case ClientHelloWriteOnly:
		w.PutString(h.WriteAddr)
		h.Write.encode(&w)
	}
	return w.Bytes()
}

func DecodeClientHello(b []byte) (ClientHello, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return ClientHello{}, err
	}
	h := ClientHello{Kind: ClientHelloKind(kind)}
	switch h.Kind {
	case ClientHelloReadOnly:
		h.Read, err = decodeClientAuth(c)
	case ClientHelloWriteOnly:
		h.WriteAddr, err = c.String()
		if err == nil {
			h.Write, err = decodeClientAuth(c)
		}
	default:
		return ClientHello{}, wire.ErrUnknownVariant("ClientHello", kind)
	}
	return h, err
}

// ServerHelloReadKind discriminates a ServerHelloRead reply.
type ServerHelloReadKind uint8

const (
	ServerHelloReadAnonymous ServerHelloReadKind = iota
	ServerHelloReadAccepted
)

// ServerHelloRead is the server's reply to a ReadOnly ClientHello.
type ServerHelloRead struct {
	Kind        ServerHelloReadKind
	ReplyToken  []byte // Accepted
	CtxID       uint64 // Accepted
}

func (h ServerHelloRead) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(h.Kind))
	if h.Kind == ServerHelloReadAccepted {
		w.PutBytes(h.ReplyToken)
		w.PutU64(h.CtxID)
	}
	return w.Bytes()
}

func DecodeServerHelloRead(b []byte) (ServerHelloRead, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return ServerHelloRead{}, err
	}
	h := ServerHelloRead{Kind: ServerHelloReadKind(kind)}
	if h.Kind == ServerHelloReadAccepted {
		if h.ReplyToken, err = c.Bytes(); err != nil {
			return ServerHelloRead{}, err
		}
		if h.CtxID, err = c.U64(); err != nil {
			return ServerHelloRead{}, err
		}
	}
	return h, nil
}

// ServerHelloWriteKind discriminates a ServerHelloWrite reply.
type ServerHelloWriteKind uint8

const (
	ServerHelloWriteAnonymous ServerHelloWriteKind = iota
	ServerHelloWriteReused
	ServerHelloWriteAccepted
)

// ServerHelloWrite is the server's reply to a WriteOnly ClientHello.
type ServerHelloWrite struct {
	Kind ServerHelloWriteKind

	// Present on every kind:
	TTLSeconds uint64
	TTLExpired bool
	ResolverID string

	ReplyToken []byte // Accepted
}

func (h ServerHelloWrite) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(h.Kind))
	w.PutU64(h.TTLSeconds)
	w.PutBool(h.TTLExpired)
	w.PutString(h.ResolverID)
	if h.Kind == ServerHelloWriteAccepted {
		w.PutBytes(h.ReplyToken)
	}
	return w.Bytes()
}

func DecodeServerHelloWrite(b []byte) (ServerHelloWrite, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return ServerHelloWrite{}, err
	}
	h := ServerHelloWrite{Kind: ServerHelloWriteKind(kind)}
	if h.TTLSeconds, err = c.U64(); err != nil {
		return ServerHelloWrite{}, err
	}
	if h.TTLExpired, err = c.Bool(); err != nil {
		return ServerHelloWrite{}, err
	}
	if h.ResolverID, err = c.String(); err != nil {
		return ServerHelloWrite{}, err
	}
	if h.Kind == ServerHelloWriteAccepted {
		if h.ReplyToken, err = c.Bytes(); err != nil {
			return ServerHelloWrite{}, err
		}
	}
	return h, nil
}

// OwnershipStepKind discriminates the short exchange that follows a write
// Initiate ClientHello and precedes the resolver's listener-ownership
// dial-back (spec §4.3 step 3): with the new security context already
// installed, the resolver hands the client the shared secret, and the client
// signals it is ready to be dialed back once it is listening as a publisher
// on write_addr. No ServerHelloWrite is sent before this exchange; the
// Accepted reply follows only after the dial-back has succeeded.
type OwnershipStepKind uint8

const (
	OwnershipSecret OwnershipStepKind = iota
	OwnershipReady
)

// OwnershipStep is one message of that exchange.
type OwnershipStep struct {
	Kind   OwnershipStepKind
	Secret uint64 // Secret only
}

func (s OwnershipStep) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(s.Kind))
	if s.Kind == OwnershipSecret {
		w.PutU64(s.Secret)
	}
	return w.Bytes()
}

func DecodeOwnershipStep(b []byte) (OwnershipStep, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return OwnershipStep{}, err
	}
	st := OwnershipStep{Kind: OwnershipStepKind(kind)}
	if st.Kind == OwnershipSecret {
		st.Secret, err = c.U64()
	}
	return st, err
}

// ToReadKind discriminates a read request.
type ToReadKind uint8

const (
	ToReadResolve ToReadKind = iota
	ToReadList
	ToReadListMatching
	ToReadTable
	ToReadCheckChanged
)

// ToRead is a read-role request (spec §6).
type ToRead struct {
	Kind ToReadKind

	Paths      []string // Resolve
	Path       string   // List, Table
	Globs      []string // ListMatching
	Tracker    uint64   // CheckChanged: opaque generation token
}

func (r ToRead) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(r.Kind))
	switch r.Kind {
	case ToReadResolve:
		w.PutStrings(r.Paths)
	case ToReadList, ToReadTable:
		w.PutString(r.Path)
	case ToReadListMatching:
		w.PutStrings(r.Globs)
	case ToReadCheckChanged:
		w.PutU64(r.Tracker)
	}
	return w.Bytes()
}

func DecodeToRead(b []byte) (ToRead, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return ToRead{}, err
	}
	r := ToRead{Kind: ToReadKind(kind)}
	switch r.Kind {
	case ToReadResolve:
		r.Paths, err = c.Strings()
	case ToReadList, ToReadTable:
		r.Path, err = c.String()
	case ToReadListMatching:
		r.Globs, err = c.Strings()
	case ToReadCheckChanged:
		r.Tracker, err = c.U64()
	default:
		return ToRead{}, wire.ErrUnknownVariant("ToRead", kind)
	}
	return r, err
}

// ResolvedAddr is one publisher address for a resolved path, with the SPN
// this session is authorized to see for it (spec §4.6, krb5_spns).
type ResolvedAddr struct {
	Addr string
	SPN  string // empty for anonymous sessions
}

func (a ResolvedAddr) encode(w *wire.Buffer) {
	w.PutString(a.Addr)
	w.PutString(a.SPN)
}

func decodeResolvedAddr(c *wire.Cursor) (ResolvedAddr, error) {
	addr, err := c.String()
	if err != nil {
		return ResolvedAddr{}, err
	}
	spn, err := c.String()
	if err != nil {
		return ResolvedAddr{}, err
	}
	return ResolvedAddr{Addr: addr, SPN: spn}, nil
}

// FromReadKind discriminates a read response.
type FromReadKind uint8

const (
	FromReadResolved FromReadKind = iota
	FromReadListed
	FromReadTabled
	FromReadChanged
	FromReadError
)

// FromRead is a read-role response.
type FromRead struct {
	Kind FromReadKind

	ResolverAddr string
	Resolved     [][]ResolvedAddr // Resolved: one address list per requested path
	Listed       []string         // Listed
	Changed      bool             // Changed
	Generation   uint64           // Changed
	Error        string           // Error
}

func (r FromRead) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(r.Kind))
	switch r.Kind {
	case FromReadResolved:
		w.PutString(r.ResolverAddr)
		w.PutVarint(uint64(len(r.Resolved)))
		for _, addrs := range r.Resolved {
			w.PutVarint(uint64(len(addrs)))
			for _, a := range addrs {
				a.encode(&w)
			}
		}
	case FromReadListed, FromReadTabled:
		w.PutStrings(r.Listed)
	case FromReadChanged:
		w.PutBool(r.Changed)
		w.PutU64(r.Generation)
	case FromReadError:
		w.PutString(r.Error)
	}
	return w.Bytes()
}

func DecodeFromRead(b []byte) (FromRead, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return FromRead{}, err
	}
	r := FromRead{Kind: FromReadKind(kind)}
	switch r.Kind {
	case FromReadResolved:
		if r.ResolverAddr, err = c.String(); err != nil {
			return FromRead{}, err
		}
		n, err := c.Varint()
		if err != nil {
			return FromRead{}, err
		}
		r.Resolved = make([][]ResolvedAddr, n)
		for i := range r.Resolved {
			m, err := c.Varint()
			if err != nil {
				return FromRead{}, err
			}
			addrs := make([]ResolvedAddr, m)
			for j := range addrs {
				if addrs[j], err = decodeResolvedAddr(c); err != nil {
					return FromRead{}, err
				}
			}
			r.Resolved[i] = addrs
		}
	case FromReadListed, FromReadTabled:
		r.Listed, err = c.Strings()
	case FromReadChanged:
		if r.Changed, err = c.Bool(); err != nil {
			return FromRead{}, err
		}
		r.Generation, err = c.U64()
	case FromReadError:
		r.Error, err = c.String()
	default:
		return FromRead{}, wire.ErrUnknownVariant("FromRead", kind)
	}
	return r, err
}

// ToWriteKind discriminates a write request.
type ToWriteKind uint8

const (
	ToWritePublish ToWriteKind = iota
	ToWritePublishDefault
	ToWritePublishWithFlags
	ToWritePublishDefaultWithFlags
	ToWriteUnpublish
	ToWriteUnpublishDefault
	ToWriteClear
	ToWriteHeartbeat
)

// ToWrite is a write-role request.
type ToWrite struct {
	Kind  ToWriteKind
	Path  string
	Flags uint64
}

func (w ToWrite) Encode() []byte {
	var b wire.Buffer
	b.PutU8(uint8(w.Kind))
	switch w.Kind {
	case ToWritePublish, ToWritePublishDefault, ToWriteUnpublish, ToWriteUnpublishDefault:
		b.PutString(w.Path)
	case ToWritePublishWithFlags, ToWritePublishDefaultWithFlags:
		b.PutString(w.Path)
		b.PutU64(w.Flags)
	case ToWriteClear, ToWriteHeartbeat:
		// no payload
	}
	return b.Bytes()
}

func DecodeToWrite(buf []byte) (ToWrite, error) {
	w, _, err := DecodeToWriteAt(buf)
	return w, err
}

// DecodeToWriteAt decodes one ToWrite from the front of buf and reports how
// many bytes it consumed, letting callers unpack several messages packed
// into one frame (framing.DecodeBatch).
func DecodeToWriteAt(buf []byte) (ToWrite, int, error) {
	c := wire.NewCursor(buf)
	kind, err := c.U8()
	if err != nil {
		return ToWrite{}, 0, err
	}
	w := ToWrite{Kind: ToWriteKind(kind)}
	switch w.Kind {
	case ToWritePublish, ToWritePublishDefault, ToWriteUnpublish, ToWriteUnpublishDefault:
		w.Path, err = c.String()
	case ToWritePublishWithFlags, ToWritePublishDefaultWithFlags:
		if w.Path, err = c.String(); err != nil {
			return ToWrite{}, 0, err
		}
		w.Flags, err = c.U64()
	case ToWriteClear, ToWriteHeartbeat:
	default:
		return ToWrite{}, 0, wire.ErrUnknownVariant("ToWrite", kind)
	}
	if err != nil {
		return ToWrite{}, 0, err
	}
	return w, len(buf) - c.Remaining(), nil
}

// IsPath reports whether p is already in canonical form (path.New leaves it
// unchanged), to keep callers from passing a non-canonical path by accident.
func IsPath(p string) bool { return path.Path(p) == path.New(p) }

// FromWriteKind discriminates a write response.
type FromWriteKind uint8

const (
	FromWritePublished FromWriteKind = iota
	FromWriteUnpublished
	FromWriteError
)

// FromWrite is a write-role response.
type FromWrite struct {
	Kind  FromWriteKind
	Error string // Error
}

func (r FromWrite) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(r.Kind))
	if r.Kind == FromWriteError {
		w.PutString(r.Error)
	}
	return w.Bytes()
}

func DecodeFromWrite(b []byte) (FromWrite, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return FromWrite{}, err
	}
	r := FromWrite{Kind: FromWriteKind(kind)}
	if r.Kind == FromWriteError {
		r.Error, err = c.String()
	}
	return r, err
}
