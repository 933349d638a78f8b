// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package value_test

import (
	"math"
	"testing"
	"time"

	"code.hybscloud.com/netframe/value"
)

func sampleValues() []value.Value {
	return []value.Value{
		value.U32(0), value.U32(42), value.U32(math.MaxUint32),
		value.V32(7), value.I32(-9), value.I32(math.MinInt32), value.Z32(-1234),
		value.U64(0), value.U64(math.MaxUint64), value.V64(99),
		value.I64(-1), value.Z64(math.MinInt64),
		value.F32(3.25), value.F64(-0.5), value.F64(math.Inf(1)), value.F64(math.NaN()),
		value.DateTime(time.Date(2026, 7, 30, 12, 0, 0, 123456000, time.UTC)),
		value.Dur(90 * time.Second),
		value.Str("hello"), value.Str(""),
		value.Bytes([]byte{1, 2, 3}), value.Bytes(nil),
		value.True(), value.False(), value.Null(),
		value.Ok(), value.Err("boom"),
	}
}

// Round-trip: Decode(Encode(v)) reproduces v, and reports EncodedLen bytes
// consumed.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, v := range sampleValues() {
		buf := v.Encode(nil)
		if len(buf) != v.EncodedLen() {
			t.Fatalf("EncodedLen()=%d but Encode produced %d bytes for %#v", v.EncodedLen(), len(buf), v)
		}
		got, n, err := value.Decode(buf)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if n != len(buf) {
			t.Fatalf("Decode consumed %d of %d bytes", n, len(buf))
		}
		if v.Kind() == value.KindF64 && math.IsNaN(v.F64Val()) {
			if !math.IsNaN(got.F64Val()) {
				t.Fatalf("NaN did not round-trip: got %v", got)
			}
			continue
		}
		if !got.Equal(v) {
			t.Fatalf("round-trip mismatch: %#v != %#v", got, v)
		}
	}
}

// Decode on a truncated buffer always reports ErrShortBuffer, never panics.
func TestDecodeShortBuffer(t *testing.T) {
	for _, v := range sampleValues() {
		full := v.Encode(nil)
		for n := 0; n < len(full); n++ {
			_, _, err := value.Decode(full[:n])
			if err == nil {
				t.Fatalf("Decode(%d of %d bytes) for %#v succeeded, want error", n, len(full), v)
			}
		}
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, _, err := value.Decode([]byte{200})
	if err == nil {
		t.Fatal("Decode of a reserved tag should fail")
	}
}

// Cast is total: Cast(v.Typ()) is always ok and reproduces v, for every
// source value that itself has a Typ (Null does not).
func TestCastIdempotent(t *testing.T) {
	for _, v := range sampleValues() {
		typ, ok := v.Typ()
		if !ok {
			continue
		}
		got, ok := v.Cast(typ)
		if !ok {
			t.Fatalf("%#v.Cast(%s) = !ok, want ok", v, typ)
		}
		if v.Kind() == value.KindF64 && math.IsNaN(v.F64Val()) {
			continue
		}
		if !got.Equal(v) {
			t.Fatalf("%#v.Cast(own typ) = %#v, want unchanged", v, got)
		}
	}
}

// Bytes casts only to itself: no other Typ produces a Bytes, and a Bytes
// casts to no other Typ.
func TestCastBytesIsolated(t *testing.T) {
	b := value.Bytes([]byte("payload"))
	for _, typ := range value.AllTyps() {
		if typ == value.TypBytes {
			continue
		}
		if _, ok := b.Cast(typ); ok {
			t.Fatalf("Bytes.Cast(%s) succeeded, want failure", typ)
		}
	}
	for _, v := range sampleValues() {
		if v.Kind() == value.KindBytes {
			continue
		}
		if _, ok := v.Cast(value.TypBytes); ok {
			t.Fatalf("%#v.Cast(bytes) succeeded, want failure", v)
		}
	}
}

func TestCastNullToBoolAndResult(t *testing.T) {
	b, ok := value.Null().Cast(value.TypBool)
	if !ok || b.IsTrue() {
		t.Fatalf("Null.Cast(bool) = %#v,%v want False,true", b, ok)
	}
	r, ok := value.Null().Cast(value.TypResult)
	if !ok || !r.IsOk() {
		t.Fatalf("Null.Cast(result) = %#v,%v want Ok,true", r, ok)
	}
}

func TestCastNumericTruncates(t *testing.T) {
	v := value.U64(1 << 40)
	got, ok := v.Cast(value.TypU32)
	if !ok {
		t.Fatal("U64.Cast(u32) should succeed")
	}
	if got.U32Val() != 0 { // 1<<40 has no bits set in its low 32
		t.Fatalf("got %d", got.U32Val())
	}
}

func TestCastDateTimeDuration(t *testing.T) {
	d := value.DateTime(time.Unix(1000, 0).UTC())
	dur, ok := d.Cast(value.TypDuration)
	if !ok || dur.DurationVal() != 1000*time.Second {
		t.Fatalf("DateTime.Cast(duration) = %#v,%v", dur, ok)
	}
	back, ok := dur.Cast(value.TypDateTime)
	if !ok || !back.Equal(d) {
		t.Fatalf("Duration.Cast(datetime) = %#v,%v want %#v", back, ok, d)
	}
}

func TestParseFormatInverse(t *testing.T) {
	cases := []struct {
		typ value.Typ
		s   string
	}{
		{value.TypU32, "42"},
		{value.TypI32, "-7"},
		{value.TypF64, "3.5"},
		{value.TypBool, "true"},
		{value.TypString, "anything goes"},
		{value.TypResult, "ok"},
	}
	for _, c := range cases {
		v, ok := c.typ.Parse(c.s)
		if !ok {
			t.Fatalf("Parse(%s, %q) failed", c.typ, c.s)
		}
		formatted, ok := v.Cast(value.TypString)
		if !ok {
			t.Fatalf("%#v.Cast(string) failed", v)
		}
		reparsed, ok := c.typ.Parse(formatted.StringVal())
		if !ok {
			t.Fatalf("re-Parse(%q) failed", formatted.StringVal())
		}
		if !reparsed.Equal(v) {
			t.Fatalf("parse/format not inverse: %#v != %#v", reparsed, v)
		}
	}
}

func TestParseErrorPrefix(t *testing.T) {
	v, ok := value.TypResult.Parse("error: disk full")
	if !ok || v.ErrorVal() != "disk full" {
		t.Fatalf("Parse(error: disk full) = %#v,%v", v, ok)
	}
}

func TestParseNull(t *testing.T) {
	if !value.ParseNull("null") || !value.ParseNull("Null") {
		t.Fatal("ParseNull should accept both cases")
	}
	if value.ParseNull("nul") {
		t.Fatal("ParseNull should reject near-misses")
	}
}

func TestArithSameKind(t *testing.T) {
	got := value.Add(value.U32(2), value.U32(3))
	if got.Kind() != value.KindU32 || got.U32Val() != 5 {
		t.Fatalf("Add(u32,u32) = %#v", got)
	}
	got = value.Mul(value.F64(2), value.F64(1.5))
	if got.Kind() != value.KindF64 || got.F64Val() != 3 {
		t.Fatalf("Mul(f64,f64) = %#v", got)
	}
}

func TestArithDateTimeDuration(t *testing.T) {
	d := value.DateTime(time.Unix(1000, 0).UTC())
	got := value.Add(d, value.Dur(10*time.Second))
	if !got.Equal(value.DateTime(time.Unix(1010, 0).UTC())) {
		t.Fatalf("Add(datetime,duration) = %#v", got)
	}
}

func TestArithUnsignedUnderflowErrors(t *testing.T) {
	got := value.Sub(value.U32(1), value.U32(2))
	if got.Kind() != value.KindError {
		t.Fatalf("Sub(1,2) on u32 = %#v, want an error value", got)
	}
}

// Mismatched kinds never panic and never return a Go error: they return a
// Value of KindError describing the mismatch.
func TestArithMismatchIsValueError(t *testing.T) {
	got := value.Add(value.U32(1), value.Str("x"))
	if got.Kind() != value.KindError {
		t.Fatalf("Add(u32,string) = %#v, want an error value", got)
	}
	if got.ErrorVal() == "" {
		t.Fatal("mismatch error value should carry a description")
	}
}

func TestDivByZeroIsValueError(t *testing.T) {
	got := value.Div(value.I64(10), value.I64(0))
	if got.Kind() != value.KindError {
		t.Fatalf("Div by zero = %#v, want an error value", got)
	}
}

func TestNot(t *testing.T) {
	if !value.Not(value.False()).IsTrue() {
		t.Fatal("Not(False) should be True")
	}
	if !value.Not(value.Err("x")).IsOk() {
		t.Fatal("Not(Error) should be Ok")
	}
	if value.Not(value.U32(1)).Kind() != value.KindError {
		t.Fatal("Not(u32) should be an error value")
	}
}
