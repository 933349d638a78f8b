// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package security

import (
	"crypto/subtle"
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// TokenLen is the wire length of an ownership-proof token: an 8-byte
// challenge followed by a 32-byte SHA3-256 digest.
const TokenLen = 8 + 32

// OwnershipToken computes the listener-ownership proof for secret under
// challenge: sha3_256(challenge || ^secret), the bitwise complement of
// secret concatenated after the challenge. A publisher proves it controls
// the secret the resolver handed it over the control channel by computing
// this over a freshly dialed connection back to its own advertised address
// (spec §4.3 step 3); the resolver recomputes it independently to verify.
func OwnershipToken(challenge uint64, secret uint64) []byte {
	var in [16]byte
	binary.BigEndian.PutUint64(in[0:8], challenge)
	binary.BigEndian.PutUint64(in[8:16], ^secret)
	sum := sha3.Sum256(in[:])
	out := make([]byte, TokenLen)
	binary.BigEndian.PutUint64(out[0:8], challenge)
	copy(out[8:], sum[:])
	return out
}

// VerifyOwnershipToken reports whether tok is a valid OwnershipToken for
// secret; tok must begin with the challenge it was computed against.
func VerifyOwnershipToken(tok []byte, secret uint64) bool {
	if len(tok) != TokenLen {
		return false
	}
	challenge := binary.BigEndian.Uint64(tok[0:8])
	want := OwnershipToken(challenge, secret)
	return subtle.ConstantTimeCompare(tok, want) == 1
}
