// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire is the shared low-level encoding every resolver and
// publisher protocol message is built from: big-endian fixed-width
// integers and LEB128 varints, matching the Framed channel's own wire
// conventions (spec §6) so messages can be packed directly into frame
// payloads without a general-purpose serialization library.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned by every Read* function when buf does not hold
// a complete value.
var ErrShortBuffer = errors.New("wire: short buffer")

// Buffer accumulates an encoded message.
type Buffer struct {
	b []byte
}

// Bytes returns the accumulated encoding.
func (w *Buffer) Bytes() []byte { return w.b }

func (w *Buffer) PutU8(v uint8) { w.b = append(w.b, v) }

func (w *Buffer) PutBool(v bool) {
	if v {
		w.PutU8(1)
	} else {
		w.PutU8(0)
	}
}

func (w *Buffer) PutU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.b = append(w.b, b[:]...)
}

func (w *Buffer) PutVarint(v uint64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	w.b = append(w.b, b[:n]...)
}

func (w *Buffer) PutBytes(v []byte) {
	w.PutVarint(uint64(len(v)))
	w.b = append(w.b, v...)
}

func (w *Buffer) PutString(v string) { w.PutBytes([]byte(v)) }

// PutStrings encodes a count-prefixed list of strings.
func (w *Buffer) PutStrings(vs []string) {
	w.PutVarint(uint64(len(vs)))
	for _, v := range vs {
		w.PutString(v)
	}
}

// Cursor decodes sequentially from a byte slice.
type Cursor struct {
	b []byte
}

func NewCursor(b []byte) *Cursor { return &Cursor{b: b} }

// Remaining reports how many bytes are left unread.
func (c *Cursor) Remaining() int { return len(c.b) }

func (c *Cursor) U8() (uint8, error) {
	if len(c.b) < 1 {
		return 0, ErrShortBuffer
	}
	v := c.b[0]
	c.b = c.b[1:]
	return v, nil
}

func (c *Cursor) Bool() (bool, error) {
	v, err := c.U8()
	return v != 0, err
}

func (c *Cursor) U64() (uint64, error) {
	if len(c.b) < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint64(c.b[:8])
	c.b = c.b[8:]
	return v, nil
}

func (c *Cursor) Varint() (uint64, error) {
	v, n := binary.Uvarint(c.b)
	if n <= 0 {
		return 0, ErrShortBuffer
	}
	c.b = c.b[n:]
	return v, nil
}

func (c *Cursor) Bytes() ([]byte, error) {
	l, err := c.Varint()
	if err != nil {
		return nil, err
	}
	if uint64(len(c.b)) < l {
		return nil, ErrShortBuffer
	}
	v := c.b[:l]
	c.b = c.b[l:]
	return v, nil
}

func (c *Cursor) String() (string, error) {
	b, err := c.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Cursor) Strings() ([]string, error) {
	n, err := c.Varint()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := c.String()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// ErrUnknownVariant is returned when a tagged union's discriminant byte
// names a variant the decoder does not recognize.
func ErrUnknownVariant(what string, tag uint8) error {
	return fmt.Errorf("wire: unknown %s variant %d", what, tag)
}
