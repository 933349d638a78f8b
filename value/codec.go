// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package value

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrShortBuffer is returned by Decode when buf does not hold a complete value.
var ErrShortBuffer = errors.New("value: short buffer")

// ErrUnknownTag is returned by Decode when the leading byte names a tag this
// codec does not know how to parse.
var ErrUnknownTag = fmt.Errorf("value: unknown tag")

// EncodedLen returns the number of bytes Encode would write for v.
func (v Value) EncodedLen() int {
	switch v.kind {
	case KindU32, KindI32:
		return 1 + 4
	case KindV32:
		return 1 + uvarintLen(v.u)
	case KindZ32:
		return 1 + uvarintLen(uint64(zigzagEncode32(int32(v.i))))
	case KindU64, KindI64:
		return 1 + 8
	case KindV64:
		return 1 + uvarintLen(v.u)
	case KindZ64:
		return 1 + uvarintLen(zigzagEncode64(v.i))
	case KindF32:
		return 1 + 4
	case KindF64:
		return 1 + 8
	case KindDateTime:
		return 1 + 8 + 4
	case KindDuration:
		return 1 + 8 + 4
	case KindString:
		return 1 + uvarintLen(uint64(len(v.s))) + len(v.s)
	case KindBytes:
		return 1 + uvarintLen(uint64(len(v.b))) + len(v.b)
	case KindTrue, KindFalse, KindNull, KindOk:
		return 1
	case KindError:
		return 1 + uvarintLen(uint64(len(v.s))) + len(v.s)
	default:
		return 1
	}
}

// Encode appends the wire encoding of v to dst and returns the result.
func (v Value) Encode(dst []byte) []byte {
	dst = append(dst, byte(v.kind))
	switch v.kind {
	case KindU32, KindI32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v.u)|uint32(v.i))
		dst = append(dst, b[:]...)
	case KindV32:
		dst = appendUvarint(dst, v.u)
	case KindZ32:
		dst = appendUvarint(dst, uint64(zigzagEncode32(int32(v.i))))
	case KindU64, KindI64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v.u|uint64(v.i))
		dst = append(dst, b[:]...)
	case KindV64:
		dst = appendUvarint(dst, v.u)
	case KindZ64:
		dst = appendUvarint(dst, zigzagEncode64(v.i))
	case KindF32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], float32bits(float32(v.f)))
		dst = append(dst, b[:]...)
	case KindF64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], float64bits(v.f))
		dst = append(dst, b[:]...)
	case KindDateTime:
		dst = appendTime(dst, v.t)
	case KindDuration:
		dst = appendTime(dst, time.Unix(0, 0).UTC().Add(v.dur))
	case KindString:
		dst = appendUvarint(dst, uint64(len(v.s)))
		dst = append(dst, v.s...)
	case KindBytes:
		dst = appendUvarint(dst, uint64(len(v.b)))
		dst = append(dst, v.b...)
	case KindTrue, KindFalse, KindNull, KindOk:
		// tag only
	case KindError:
		dst = appendUvarint(dst, uint64(len(v.s)))
		dst = append(dst, v.s...)
	}
	return dst
}

// Decode parses one Value from the front of buf, returning the value and the
// number of bytes consumed. It returns ErrShortBuffer if buf does not (yet)
// hold a complete encoding, and ErrUnknownTag for a reserved/undefined tag.
func Decode(buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, ErrShortBuffer
	}
	kind := Kind(buf[0])
	rest := buf[1:]
	switch kind {
	case KindU32:
		if len(rest) < 4 {
			return Value{}, 0, ErrShortBuffer
		}
		return U32(binary.BigEndian.Uint32(rest)), 5, nil
	case KindI32:
		if len(rest) < 4 {
			return Value{}, 0, ErrShortBuffer
		}
		return I32(int32(binary.BigEndian.Uint32(rest))), 5, nil
	case KindV32:
		u, n, err := readUvarint(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return V32(uint32(u)), 1 + n, nil
	case KindZ32:
		u, n, err := readUvarint(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Z32(zigzagDecode32(uint32(u))), 1 + n, nil
	case KindU64:
		if len(rest) < 8 {
			return Value{}, 0, ErrShortBuffer
		}
		return U64(binary.BigEndian.Uint64(rest)), 9, nil
	case KindI64:
		if len(rest) < 8 {
			return Value{}, 0, ErrShortBuffer
		}
		return I64(int64(binary.BigEndian.Uint64(rest))), 9, nil
	case KindV64:
		u, n, err := readUvarint(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return V64(u), 1 + n, nil
	case KindZ64:
		u, n, err := readUvarint(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Z64(zigzagDecode64(u)), 1 + n, nil
	case KindF32:
		if len(rest) < 4 {
			return Value{}, 0, ErrShortBuffer
		}
		return F32(float32frombits(binary.BigEndian.Uint32(rest))), 5, nil
	case KindF64:
		if len(rest) < 8 {
			return Value{}, 0, ErrShortBuffer
		}
		return F64(float64frombits(binary.BigEndian.Uint64(rest))), 9, nil
	case KindDateTime:
		t, n, err := readTime(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return DateTime(t), 1 + n, nil
	case KindDuration:
		t, n, err := readTime(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Dur(t.Sub(time.Unix(0, 0).UTC())), 1 + n, nil
	case KindString:
		s, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Str(string(s)), 1 + n, nil
	case KindBytes:
		b, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return Bytes(out), 1 + n, nil
	case KindTrue:
		return True(), 1, nil
	case KindFalse:
		return False(), 1, nil
	case KindNull:
		return Null(), 1, nil
	case KindOk:
		return Ok(), 1, nil
	case KindError:
		s, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Err(string(s)), 1 + n, nil
	default:
		if kind >= KindReservedMax {
			return Value{}, 0, ErrUnknownTag
		}
		return Value{}, 0, fmt.Errorf("%w: tag %d", ErrUnknownTag, kind)
	}
}

// WriteTo writes the wire encoding of v to w.
func (v Value) WriteTo(w io.Writer) (int64, error) {
	buf := v.Encode(make([]byte, 0, v.EncodedLen()))
	n, err := w.Write(buf)
	return int64(n), err
}

func appendTime(dst []byte, t time.Time) []byte {
	var b [12]byte
	binary.BigEndian.PutUint64(b[0:8], uint64(t.Unix()))
	binary.BigEndian.PutUint32(b[8:12], uint32(t.Nanosecond()))
	return append(dst, b[:]...)
}

func readTime(buf []byte) (time.Time, int, error) {
	if len(buf) < 12 {
		return time.Time{}, 0, ErrShortBuffer
	}
	sec := int64(binary.BigEndian.Uint64(buf[0:8]))
	nsec := int64(binary.BigEndian.Uint32(buf[8:12]))
	return time.Unix(sec, nsec).UTC(), 12, nil
}

func readLenPrefixed(buf []byte) ([]byte, int, error) {
	l, n, err := readUvarint(buf)
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(buf)-n) < l {
		return nil, 0, ErrShortBuffer
	}
	return buf[n : n+int(l)], n + int(l), nil
}
