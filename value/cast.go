// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package value

import (
	"math"
	"strconv"
	"time"
)

// Cast is a total function over (Value, Typ): every pair is defined, and it
// never panics. It returns ok=false where no cast is possible (e.g. Bytes to
// U32), per the cast lattice in the package doc. Casting v to its own Typ
// always succeeds and returns v unchanged.
func (v Value) Cast(t Typ) (Value, bool) {
	if own, ok := v.Typ(); ok && own == t {
		return v, true
	}
	switch t {
	case TypU32:
		u, ok := v.asUint()
		return U32(uint32(u)), ok
	case TypV32:
		u, ok := v.asUint()
		return V32(uint32(u)), ok
	case TypI32:
		i, ok := v.asInt()
		return I32(int32(i)), ok
	case TypZ32:
		i, ok := v.asInt()
		return Z32(int32(i)), ok
	case TypU64:
		u, ok := v.asUint()
		return U64(u), ok
	case TypV64:
		u, ok := v.asUint()
		return V64(u), ok
	case TypI64:
		i, ok := v.asInt()
		return I64(i), ok
	case TypZ64:
		i, ok := v.asInt()
		return Z64(i), ok
	case TypF32:
		f, ok := v.asFloat()
		return F32(float32(f)), ok
	case TypF64:
		f, ok := v.asFloat()
		return F64(f), ok
	case TypBool:
		return v.castToBool()
	case TypString:
		return v.castToString()
	case TypBytes:
		return Value{}, false
	case TypDateTime:
		return v.castToDateTime()
	case TypDuration:
		return v.castToDuration()
	case TypResult:
		return v.castToResult()
	default:
		return Value{}, false
	}
}

// numericAsF64 reports v as a float64 for every numeric, bool, DateTime (unix
// seconds) and Duration (seconds) source; it is the shared basis for the
// integer/float cast targets.
func (v Value) numericAsF64() (float64, bool) {
	switch v.kind {
	case KindU32, KindV32:
		return float64(uint32(v.u)), true
	case KindU64, KindV64:
		return float64(v.u), true
	case KindI32, KindZ32:
		return float64(int32(v.i)), true
	case KindI64, KindZ64:
		return float64(v.i), true
	case KindF32, KindF64:
		return v.f, true
	case KindDateTime:
		return float64(v.t.Unix()), true
	case KindDuration:
		return v.dur.Seconds(), true
	case KindTrue:
		return 1, true
	case KindFalse:
		return 0, true
	default:
		return 0, false
	}
}

func (v Value) asUint() (uint64, bool) {
	if v.kind == KindString {
		n, ok := parseUint(v.s)
		return n, ok
	}
	f, ok := v.numericAsF64()
	if !ok {
		return 0, false
	}
	return uint64(f), true
}

func (v Value) asInt() (int64, bool) {
	if v.kind == KindString {
		n, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	f, ok := v.numericAsF64()
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func (v Value) asFloat() (float64, bool) {
	if v.kind == KindString {
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return v.numericAsF64()
}

func parseUint(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (v Value) castToBool() (Value, bool) {
	switch v.kind {
	case KindU32, KindV32, KindU64, KindV64, KindI32, KindZ32, KindI64, KindZ64:
		f, _ := v.numericAsF64()
		return Bool(f > 0), true
	case KindF32, KindF64:
		return Bool(v.f > 0), true
	case KindDateTime, KindDuration:
		return Value{}, false
	case KindString:
		return v.parseAs(TypBool)
	case KindTrue:
		return True(), true
	case KindFalse:
		return False(), true
	case KindNull:
		return False(), true
	case KindOk:
		return True(), true
	case KindError:
		return False(), true
	default:
		return Value{}, false
	}
}

func (v Value) castToString() (Value, bool) {
	switch v.kind {
	case KindU32, KindV32:
		return Str(strconv.FormatUint(uint64(uint32(v.u)), 10)), true
	case KindU64, KindV64:
		return Str(strconv.FormatUint(v.u, 10)), true
	case KindI32, KindZ32:
		return Str(strconv.FormatInt(int64(int32(v.i)), 10)), true
	case KindI64, KindZ64:
		return Str(strconv.FormatInt(v.i, 10)), true
	case KindF32:
		return Str(strconv.FormatFloat(float64(float32(v.f)), 'g', -1, 32)), true
	case KindF64:
		return Str(strconv.FormatFloat(v.f, 'g', -1, 64)), true
	case KindDateTime:
		return Str(v.t.Format(time.RFC3339Nano)), true
	case KindDuration:
		return Str(strconv.FormatFloat(v.dur.Seconds(), 'g', -1, 64) + "s"), true
	case KindBytes:
		return Value{}, false
	case KindTrue:
		return Str("true"), true
	case KindFalse:
		return Str("false"), true
	case KindNull:
		return Str("null"), true
	case KindOk:
		return Str("ok"), true
	case KindError:
		return Str("error: " + v.s), true
	default:
		return Value{}, false
	}
}

func (v Value) castToDateTime() (Value, bool) {
	switch v.kind {
	case KindU32, KindV32, KindU64, KindV64, KindI32, KindZ32, KindI64, KindZ64:
		f, _ := v.numericAsF64()
		return DateTime(time.Unix(int64(f), 0)), true
	case KindF32, KindF64:
		f := v.f
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, false
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return DateTime(time.Unix(sec, nsec)), true
	case KindDuration:
		return DateTime(time.Unix(0, 0).UTC().Add(v.dur)), true
	case KindString:
		return v.parseAs(TypDateTime)
	default:
		return Value{}, false
	}
}

func (v Value) castToDuration() (Value, bool) {
	switch v.kind {
	case KindU32, KindV32, KindU64, KindV64:
		f, _ := v.numericAsF64()
		return Dur(time.Duration(f) * time.Second), true
	case KindI32, KindZ32, KindI64, KindZ64:
		f, _ := v.numericAsF64()
		if f < 0 {
			f = -f
		}
		return Dur(time.Duration(f) * time.Second), true
	case KindF32, KindF64:
		f := v.f
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return Value{}, false
		}
		return Dur(time.Duration(f * float64(time.Second))), true
	case KindDateTime:
		return Dur(v.t.Sub(time.Unix(0, 0).UTC())), true
	case KindString:
		return v.parseAs(TypDuration)
	default:
		return Value{}, false
	}
}

func (v Value) castToResult() (Value, bool) {
	switch v.kind {
	case KindU32, KindV32, KindU64, KindV64, KindI32, KindZ32, KindI64, KindZ64,
		KindF32, KindF64, KindDateTime, KindDuration, KindTrue, KindFalse, KindNull, KindOk:
		return Ok(), true
	case KindError:
		return v, true
	case KindString:
		return v.parseAs(TypResult)
	default:
		return Value{}, false
	}
}
