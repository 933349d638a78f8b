// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package publisher holds the wire message types exchanged directly between
// a subscriber and the publisher owning a path, plus PHello, the hello
// variant also used by the resolver's listener-ownership-proof dial-back
// (spec §4.3 step 3, §6).
package publisher

import "code.hybscloud.com/netframe/proto/wire"

// PHelloKind discriminates a PHello variant.
type PHelloKind uint8

const (
	PHelloAnonymous PHelloKind = iota
	PHelloToken
	PHelloResolverAuthenticate
)

// PHello is the hello a connecting peer sends a publisher. subscribers use
// Anonymous or Token; the resolver's ownership-check dial-back uses
// ResolverAuthenticate, round-tripping an ownership-proof token through
// Addr/Token (see security.OwnershipToken).
type PHello struct {
	Kind  PHelloKind
	Token []byte // Token, ResolverAuthenticate
	Addr  string // ResolverAuthenticate: resolver_id
}

func (h PHello) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(h.Kind))
	switch h.Kind {
	case PHelloToken:
		w.PutBytes(h.Token)
	case PHelloResolverAuthenticate:
		w.PutString(h.Addr)
		w.PutBytes(h.Token)
	}
	return w.Bytes()
}

func DecodePHello(b []byte) (PHello, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return PHello{}, err
	}
	h := PHello{Kind: PHelloKind(kind)}
	switch h.Kind {
	case PHelloAnonymous:
	case PHelloToken:
		h.Token, err = c.Bytes()
	case PHelloResolverAuthenticate:
		if h.Addr, err = c.String(); err != nil {
			return PHello{}, err
		}
		h.Token, err = c.Bytes()
	default:
		return PHello{}, wire.ErrUnknownVariant("PHello", kind)
	}
	return h, err
}

// SubscriptionID is a monotonic, process-local identifier issued by a
// publisher and echoed back by the subscriber (spec §3); unique per
// publisher, not globally.
type SubscriptionID uint64

// ToPublisherKind discriminates a subscriber→publisher control message.
type ToPublisherKind uint8

const (
	ToPublisherSubscribe ToPublisherKind = iota
	ToPublisherUnsubscribe
)

// ToPublisher is subscription control sent from a subscriber to a publisher
// over the same connection values flow back on.
type ToPublisher struct {
	Kind ToPublisherKind
	Path string         // Subscribe
	ID   SubscriptionID // Unsubscribe
}

func (m ToPublisher) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(m.Kind))
	switch m.Kind {
	case ToPublisherSubscribe:
		w.PutString(m.Path)
	case ToPublisherUnsubscribe:
		w.PutU64(uint64(m.ID))
	}
	return w.Bytes()
}

func DecodeToPublisher(b []byte) (ToPublisher, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return ToPublisher{}, err
	}
	m := ToPublisher{Kind: ToPublisherKind(kind)}
	switch m.Kind {
	case ToPublisherSubscribe:
		m.Path, err = c.String()
	case ToPublisherUnsubscribe:
		var id uint64
		id, err = c.U64()
		m.ID = SubscriptionID(id)
	default:
		return ToPublisher{}, wire.ErrUnknownVariant("ToPublisher", kind)
	}
	return m, err
}

// FromPublisherKind discriminates a publisher→subscriber control message.
// Value updates themselves are not framed as FromPublisher messages: they
// are raw encoded value.Value frames identified by the SubscriptionID the
// subscriber already associated with a Subscribed reply, matching how
// Message(id) below only carries the id, never the payload, leaving the
// value encoding to whatever frame follows.
type FromPublisherKind uint8

const (
	FromPublisherMessage FromPublisherKind = iota
	FromPublisherNoSuchValue
	FromPublisherSubscribed
	FromPublisherUnsubscribed
)

// FromPublisher is subscription control sent from a publisher to a
// subscriber.
type FromPublisher struct {
	Kind FromPublisherKind
	ID   SubscriptionID // Message, Unsubscribed
	Path string         // NoSuchValue, Subscribed
}

func (m FromPublisher) Encode() []byte {
	var w wire.Buffer
	w.PutU8(uint8(m.Kind))
	switch m.Kind {
	case FromPublisherMessage, FromPublisherUnsubscribed:
		w.PutU64(uint64(m.ID))
	case FromPublisherNoSuchValue:
		w.PutString(m.Path)
	case FromPublisherSubscribed:
		w.PutString(m.Path)
		w.PutU64(uint64(m.ID))
	}
	return w.Bytes()
}

func DecodeFromPublisher(b []byte) (FromPublisher, error) {
	c := wire.NewCursor(b)
	kind, err := c.U8()
	if err != nil {
		return FromPublisher{}, err
	}
	m := FromPublisher{Kind: FromPublisherKind(kind)}
	switch m.Kind {
	case FromPublisherMessage, FromPublisherUnsubscribed:
		var id uint64
		id, err = c.U64()
		m.ID = SubscriptionID(id)
	case FromPublisherNoSuchValue:
		m.Path, err = c.String()
	case FromPublisherSubscribed:
		if m.Path, err = c.String(); err != nil {
			return FromPublisher{}, err
		}
		var id uint64
		id, err = c.U64()
		m.ID = SubscriptionID(id)
	default:
		return FromPublisher{}, wire.ErrUnknownVariant("FromPublisher", kind)
	}
	return m, err
}
