// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package security abstracts the per-connection security context the
// resolver and publisher protocols install after a successful hello: frame
// sealing (wrap/unwrap) and client principal extraction. The Kerberos/GSS
// mechanism itself is out of scope; Anonymous and JWT are the concrete
// backends exercised by this module.
package security

import "errors"

// ErrSealed is returned by Unwrap when sealed does not carry a valid seal
// for this Context.
var ErrSealed = errors.New("security: invalid sealed frame")

// Context is a per-connection opaque security object. Implementations are
// created at hello time and discarded on connection close or TTL expiry;
// callers must not retain one across a reconnect.
type Context interface {
	// Wrap seals plaintext for transmission.
	Wrap(plaintext []byte) ([]byte, error)
	// Unwrap recovers the plaintext sealed by the peer's Wrap.
	Unwrap(sealed []byte) ([]byte, error)
	// ClientPrincipal names the authenticated party this context speaks for.
	ClientPrincipal() string
}

// CtxID identifies a Context for the lifetime of one connection; issued by
// whichever side creates the context during hello negotiation.
type CtxID uint64

// Store creates and looks up security contexts. A resolver server keeps one
// per authenticated writer address and one per authenticated reader
// connection; both are discarded on TTL expiry or connection close.
type Store interface {
	// Create builds a new Context from a client-supplied initiation token,
	// returning the token to send back to the peer alongside the context.
	Create(token []byte) (Context, []byte, error)
}
