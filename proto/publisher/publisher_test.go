// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package publisher_test

import (
	"testing"

	"code.hybscloud.com/netframe/proto/publisher"
	"code.hybscloud.com/netframe/security"
)

func TestPHelloResolverAuthenticateRoundTrip(t *testing.T) {
	tok := security.OwnershipToken(42, 0xABCD)
	in := publisher.PHello{Kind: publisher.PHelloResolverAuthenticate, Addr: "resolver-1", Token: tok}
	out, err := publisher.DecodePHello(in.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if out.Addr != "resolver-1" || !security.VerifyOwnershipToken(out.Token, 0xABCD) {
		t.Fatalf("got %+v", out)
	}
}

func TestToPublisherRoundTrip(t *testing.T) {
	sub := publisher.ToPublisher{Kind: publisher.ToPublisherSubscribe, Path: "/a/b"}
	out, err := publisher.DecodeToPublisher(sub.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if out.Path != "/a/b" {
		t.Fatalf("got %+v", out)
	}

	unsub := publisher.ToPublisher{Kind: publisher.ToPublisherUnsubscribe, ID: 7}
	out2, err := publisher.DecodeToPublisher(unsub.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if out2.ID != 7 {
		t.Fatalf("got %+v", out2)
	}
}

func TestFromPublisherRoundTrip(t *testing.T) {
	in := publisher.FromPublisher{Kind: publisher.FromPublisherSubscribed, Path: "/x", ID: 11}
	out, err := publisher.DecodeFromPublisher(in.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if out.Path != "/x" || out.ID != 11 {
		t.Fatalf("got %+v", out)
	}

	dead := publisher.FromPublisher{Kind: publisher.FromPublisherUnsubscribed, ID: 11}
	out2, err := publisher.DecodeFromPublisher(dead.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if out2.ID != 11 {
		t.Fatalf("got %+v", out2)
	}
}
