// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package value implements the tagged value format carried over the wire:
// a one-byte tag followed by a tag-specific body, plus a total cast lattice
// between value kinds and the result-propagating arithmetic used by
// expressions over published values.
//
// The top two bits of the wire tag are reserved for future wrapper types,
// so at most 64 base variants may ever be defined (see Kind).
package value

import (
	"time"
)

// Kind is the wire tag of a Value. It doubles as the byte written to the
// wire immediately before the tag-specific body.
type Kind uint8

const (
	KindU32 Kind = iota
	KindV32
	KindI32
	KindZ32
	KindU64
	KindV64
	KindI64
	KindZ64
	KindF32
	KindF64
	KindDateTime
	KindDuration
	KindString
	KindBytes
	KindTrue
	KindFalse
	KindNull
	KindOk
	KindError
)

// KindReservedMax is the first tag value reserved for future wrapper types.
const KindReservedMax = 64

// Typ is a compact enumeration of value types used for casting and parsing.
// Null has no corresponding Typ; True/False both report Bool and Ok/Error
// both report Result.
type Typ uint8

const (
	TypU32 Typ = iota
	TypV32
	TypI32
	TypZ32
	TypU64
	TypV64
	TypI64
	TypZ64
	TypF32
	TypF64
	TypDateTime
	TypDuration
	TypBool
	TypString
	TypBytes
	TypResult
)

var allTyps = []Typ{
	TypU32, TypV32, TypI32, TypZ32,
	TypU64, TypV64, TypI64, TypZ64,
	TypF32, TypF64,
	TypDateTime, TypDuration,
	TypBool, TypString, TypBytes, TypResult,
}

// AllTyps returns every defined Typ, in tag order.
func AllTyps() []Typ { return allTyps }

// Name returns the lowercase wire name of t, as used by Typ.String and ParseTyp.
func (t Typ) Name() string {
	switch t {
	case TypU32:
		return "u32"
	case TypV32:
		return "v32"
	case TypI32:
		return "i32"
	case TypZ32:
		return "z32"
	case TypU64:
		return "u64"
	case TypV64:
		return "v64"
	case TypI64:
		return "i64"
	case TypZ64:
		return "z64"
	case TypF32:
		return "f32"
	case TypF64:
		return "f64"
	case TypDateTime:
		return "datetime"
	case TypDuration:
		return "duration"
	case TypBool:
		return "bool"
	case TypString:
		return "string"
	case TypBytes:
		return "bytes"
	case TypResult:
		return "result"
	default:
		return "unknown"
	}
}

func (t Typ) String() string { return t.Name() }

// ParseTyp parses the name produced by Typ.Name back into a Typ.
func ParseTyp(s string) (Typ, bool) {
	for _, t := range allTyps {
		if t.Name() == s {
			return t, true
		}
	}
	return 0, false
}

// Value is a tagged sum of the wire variants described in the package doc.
// The zero Value is U32(0), since KindU32 is tag 0; use Null() for Null.
type Value struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	t    time.Time
	dur  time.Duration
	s    string
	b    []byte
}

func U32(v uint32) Value      { return Value{kind: KindU32, u: uint64(v)} }
func V32(v uint32) Value      { return Value{kind: KindV32, u: uint64(v)} }
func I32(v int32) Value       { return Value{kind: KindI32, i: int64(v)} }
func Z32(v int32) Value       { return Value{kind: KindZ32, i: int64(v)} }
func U64(v uint64) Value      { return Value{kind: KindU64, u: v} }
func V64(v uint64) Value      { return Value{kind: KindV64, u: v} }
func I64(v int64) Value       { return Value{kind: KindI64, i: v} }
func Z64(v int64) Value       { return Value{kind: KindZ64, i: v} }
func F32(v float32) Value     { return Value{kind: KindF32, f: float64(v)} }
func F64(v float64) Value     { return Value{kind: KindF64, f: v} }
func DateTime(v time.Time) Value {
	return Value{kind: KindDateTime, t: v.UTC()}
}
func Dur(v time.Duration) Value { return Value{kind: KindDuration, dur: v} }
func Str(v string) Value        { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value      { return Value{kind: KindBytes, b: v} }
func True() Value               { return Value{kind: KindTrue} }
func False() Value              { return Value{kind: KindFalse} }
func Null() Value               { return Value{kind: KindNull} }
func Ok() Value                 { return Value{kind: KindOk} }
func Err(msg string) Value      { return Value{kind: KindError, s: msg} }

func Bool(v bool) Value {
	if v {
		return True()
	}
	return False()
}

// Kind reports the wire tag of v.
func (v Value) Kind() Kind { return v.kind }

// Typ reports the cast/parse type of v. Null has none.
func (v Value) Typ() (Typ, bool) {
	switch v.kind {
	case KindU32:
		return TypU32, true
	case KindV32:
		return TypV32, true
	case KindI32:
		return TypI32, true
	case KindZ32:
		return TypZ32, true
	case KindU64:
		return TypU64, true
	case KindV64:
		return TypV64, true
	case KindI64:
		return TypI64, true
	case KindZ64:
		return TypZ64, true
	case KindF32:
		return TypF32, true
	case KindF64:
		return TypF64, true
	case KindDateTime:
		return TypDateTime, true
	case KindDuration:
		return TypDuration, true
	case KindString:
		return TypString, true
	case KindBytes:
		return TypBytes, true
	case KindTrue, KindFalse:
		return TypBool, true
	case KindOk, KindError:
		return TypResult, true
	default:
		return 0, false
	}
}

// IsNumber reports whether v is one of the ten numeric variants.
func (v Value) IsNumber() bool {
	switch v.kind {
	case KindU32, KindV32, KindI32, KindZ32, KindU64, KindV64, KindI64, KindZ64, KindF32, KindF64:
		return true
	default:
		return false
	}
}

// raw accessors, valid only for the matching Kind.

func (v Value) U32Val() uint32          { return uint32(v.u) }
func (v Value) U64Val() uint64          { return v.u }
func (v Value) I32Val() int32           { return int32(v.i) }
func (v Value) I64Val() int64           { return v.i }
func (v Value) F32Val() float32         { return float32(v.f) }
func (v Value) F64Val() float64         { return v.f }
func (v Value) DateTimeVal() time.Time  { return v.t }
func (v Value) DurationVal() time.Duration { return v.dur }
func (v Value) StringVal() string       { return v.s }
func (v Value) BytesVal() []byte        { return v.b }
func (v Value) ErrorVal() string        { return v.s }
func (v Value) IsTrue() bool            { return v.kind == KindTrue }
func (v Value) IsOk() bool              { return v.kind == KindOk }

// Equal reports whether v and other have the same kind and payload.
// Floating-point NaN is never equal to itself, matching Go's == semantics.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindU32, KindV32, KindU64, KindV64:
		return v.u == other.u
	case KindI32, KindZ32, KindI64, KindZ64:
		return v.i == other.i
	case KindF32, KindF64:
		return v.f == other.f
	case KindDateTime:
		return v.t.Equal(other.t)
	case KindDuration:
		return v.dur == other.dur
	case KindString:
		return v.s == other.s
	case KindBytes:
		return string(v.b) == string(other.b)
	case KindError:
		return v.s == other.s
	default:
		return true // True, False, Null, Ok
	}
}
