// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"code.hybscloud.com/netframe/framing"
	"code.hybscloud.com/netframe/security"
)

func pipeChannels(t *testing.T) (*framing.Channel, *framing.Channel) {
	t.Helper()
	a, b := net.Pipe()
	ca := framing.New(a)
	cb := framing.New(b)
	t.Cleanup(func() {
		ca.Close()
		cb.Close()
	})
	return ca, cb
}

func TestQueueFlushReceiveRoundTrip(t *testing.T) {
	ca, cb := pipeChannels(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := ca.Writer.Queue([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := ca.Writer.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := cb.Reader.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestOneFrameManyQueuedMessages(t *testing.T) {
	ca, cb := pipeChannels(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := ca.Writer.Queue([]byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := ca.Writer.Queue([]byte("two")); err != nil {
		t.Fatal(err)
	}
	if err := ca.Writer.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := cb.Reader.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "onetwo" {
		t.Fatalf("got %q, want messages concatenated in one frame", got)
	}
}

func TestOversizeQueueDoesNotCorruptBuffer(t *testing.T) {
	ca, cb := pipeChannels(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := ca.Writer.Queue([]byte("kept")); err != nil {
		t.Fatal(err)
	}
	oversized := make([]byte, framing.MaxFrame+1)
	if err := ca.Writer.Queue(oversized); err != framing.ErrOversize {
		t.Fatalf("Queue(oversized) = %v, want ErrOversize", err)
	}
	if err := ca.Writer.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := cb.Reader.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "kept" {
		t.Fatalf("got %q, buffer should still hold the prior message", got)
	}
}

func TestClearDropsUnsent(t *testing.T) {
	ca, _ := pipeChannels(t)
	if err := ca.Writer.Queue([]byte("will not be sent")); err != nil {
		t.Fatal(err)
	}
	ca.Writer.Clear()
	if n := ca.Writer.BytesQueued(); n != 0 {
		t.Fatalf("BytesQueued() = %d after Clear, want 0", n)
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	ca, cb := pipeChannels(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	secret := []byte("shared-secret-at-least-32-bytes")
	store := &security.JWTStore{Secret: secret}
	tok, err := security.NewToken(secret, "writer@example.com")
	if err != nil {
		t.Fatal(err)
	}
	writerCtx, _, err := store.Create([]byte(tok))
	if err != nil {
		t.Fatal(err)
	}
	readerCtx, _, err := store.Create([]byte(tok))
	if err != nil {
		t.Fatal(err)
	}
	ca.SetContext(writerCtx)
	cb.SetContext(readerCtx)

	if err := ca.Writer.Queue([]byte("sealed payload")); err != nil {
		t.Fatal(err)
	}
	if err := ca.Writer.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := cb.Reader.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "sealed payload" {
		t.Fatalf("got %q", got)
	}
}

func TestUnencryptedFrameRejectedAfterContextInstalled(t *testing.T) {
	ca, cb := pipeChannels(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cb.Reader.SetContext(security.Anonymous{})

	if err := ca.Writer.Queue([]byte("plaintext")); err != nil {
		t.Fatal(err)
	}
	if err := ca.Writer.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := cb.Reader.Receive(ctx)
	if err != framing.ErrEncryptionRequired {
		t.Fatalf("Receive() = %v, want ErrEncryptionRequired", err)
	}
}

func TestDecodeBatch(t *testing.T) {
	frame := []byte("abcdef")
	var got []string
	err := framing.DecodeBatch(frame, func(b []byte) (int, error) {
		got = append(got, string(b[:2]))
		return 2, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != "ab" || got[2] != "ef" {
		t.Fatalf("got %v", got)
	}
}

func TestDecodeBatchRejectsNonProgress(t *testing.T) {
	err := framing.DecodeBatch([]byte("x"), func(b []byte) (int, error) {
		return 0, nil
	})
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("got %v", err)
	}
}

func TestSocketErrorSurfacesOnReceive(t *testing.T) {
	ca, cb := pipeChannels(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ca.Close()
	if _, err := cb.Reader.Receive(ctx); err == nil {
		t.Fatal("Receive should fail once the peer closes the connection")
	}
}
