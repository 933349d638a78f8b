// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package security_test

import (
	"bytes"
	"testing"

	"code.hybscloud.com/netframe/security"
)

func TestAnonymousRoundTrip(t *testing.T) {
	var ctx security.Anonymous
	sealed, err := ctx.Wrap([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := ctx.Unwrap(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, []byte("hello")) {
		t.Fatalf("got %q", plain)
	}
	if ctx.ClientPrincipal() != security.AnonymousPrincipal {
		t.Fatalf("ClientPrincipal() = %q", ctx.ClientPrincipal())
	}
}

func TestJWTStoreRoundTrip(t *testing.T) {
	secret := []byte("a-test-secret-at-least-32-bytes!")
	tok, err := security.NewToken(secret, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	store := &security.JWTStore{Secret: secret}
	ctx, replyTok, err := store.Create([]byte(tok))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if string(replyTok) != tok {
		t.Fatal("reply token should echo the initiation token")
	}
	if ctx.ClientPrincipal() != "alice@example.com" {
		t.Fatalf("ClientPrincipal() = %q", ctx.ClientPrincipal())
	}
	sealed, err := ctx.Wrap([]byte("value update"))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := ctx.Unwrap(sealed)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if !bytes.Equal(plain, []byte("value update")) {
		t.Fatalf("got %q", plain)
	}
}

func TestJWTStoreRejectsTamperedSeal(t *testing.T) {
	secret := []byte("a-test-secret-at-least-32-bytes!")
	tok, _ := security.NewToken(secret, "bob")
	store := &security.JWTStore{Secret: secret}
	ctx, _, err := store.Create([]byte(tok))
	if err != nil {
		t.Fatal(err)
	}
	sealed, _ := ctx.Wrap([]byte("payload"))
	sealed[0] ^= 0xFF
	if _, err := ctx.Unwrap(sealed); err == nil {
		t.Fatal("Unwrap should reject a tampered frame")
	}
}

func TestJWTStoreRejectsWrongSecret(t *testing.T) {
	tok, _ := security.NewToken([]byte("secret-one-at-least-32-bytes!!!"), "carol")
	store := &security.JWTStore{Secret: []byte("secret-two-at-least-32-bytes!!!")}
	if _, _, err := store.Create([]byte(tok)); err == nil {
		t.Fatal("Create should reject a token signed with a different secret")
	}
}

func TestOwnershipToken(t *testing.T) {
	const secret = 0xDEADBEEFCAFEBABE
	tok := security.OwnershipToken(1234, secret)
	if len(tok) != security.TokenLen {
		t.Fatalf("len(tok) = %d", len(tok))
	}
	if !security.VerifyOwnershipToken(tok, secret) {
		t.Fatal("token should verify against its own secret")
	}
	if security.VerifyOwnershipToken(tok, secret+1) {
		t.Fatal("token should not verify against a different secret")
	}
	tampered := append([]byte(nil), tok...)
	tampered[len(tampered)-1] ^= 1
	if security.VerifyOwnershipToken(tampered, secret) {
		t.Fatal("tampered token should not verify")
	}
}
