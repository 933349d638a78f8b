// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoPrincipal is returned when a presented JWT has no usable subject.
var ErrNoPrincipal = errors.New("security: jwt has no subject claim")

const macLen = sha256.Size

// JWTStore authenticates initiation tokens as signed JWTs and stands in for
// the spec's abstract GSS-like mechanism with a realistic, testable
// concrete backend. The validated token's "sub" claim becomes the session's
// client principal; wrap/unwrap append and verify an HMAC-SHA256 tag keyed
// on a key derived from the store secret and the session principal, giving
// every sealed frame both confidentiality-independent integrity and a
// principal binding (a tag from one session cannot be replayed into
// another's stream).
type JWTStore struct {
	// Secret signs and verifies initiation tokens and derives per-session
	// MAC keys. It is never sent over the wire.
	Secret []byte
}

var _ Store = (*JWTStore)(nil)

// Create validates token as a JWT signed with s.Secret (HS256) and returns
// a JWTContext plus the token unchanged, to be echoed back to the peer as
// the reply_token (spec §4.3 step 3).
func (s *JWTStore) Create(token []byte) (Context, []byte, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(string(token), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("security: unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("security: invalid token: %w", err)
	}
	if !parsed.Valid {
		return nil, nil, errors.New("security: token rejected")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, nil, ErrNoPrincipal
	}
	return &JWTContext{principal: sub, macKey: deriveMACKey(s.Secret, sub)}, token, nil
}

// JWTContext is the Context issued by JWTStore.Create.
type JWTContext struct {
	principal string
	macKey    []byte
}

var _ Context = (*JWTContext)(nil)

func (c *JWTContext) ClientPrincipal() string { return c.principal }

func (c *JWTContext) Wrap(plaintext []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(plaintext)
	tag := mac.Sum(nil)
	out := make([]byte, 0, len(plaintext)+len(tag))
	out = append(out, plaintext...)
	out = append(out, tag...)
	return out, nil
}

func (c *JWTContext) Unwrap(sealed []byte) ([]byte, error) {
	if len(sealed) < macLen {
		return nil, ErrSealed
	}
	split := len(sealed) - macLen
	plaintext, tag := sealed[:split], sealed[split:]
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(plaintext)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, ErrSealed
	}
	return plaintext, nil
}

func deriveMACKey(secret []byte, principal string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(principal))
	return mac.Sum(nil)
}

// NewToken signs a JWT for principal using secret; exported for tests and
// for publishers/subscribers that need to mint an initiation token.
func NewToken(secret []byte, principal string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": principal})
	return tok.SignedString(secret)
}
