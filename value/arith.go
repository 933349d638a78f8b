// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package value

import (
	"fmt"
	"time"
)

// Add, Sub, Mul and Div never return a Go error: a mismatched pair produces
// a Value of KindError carrying a description, so arithmetic composes with
// published values the same way any other Value does.

func Add(l, r Value) Value {
	switch {
	case l.kind == KindU32 && r.kind == KindU32:
		return U32(uint32(l.u) + uint32(r.u))
	case l.kind == KindV32 && r.kind == KindV32:
		return V32(uint32(l.u) + uint32(r.u))
	case (l.kind == KindU32 && r.kind == KindV32) || (l.kind == KindV32 && r.kind == KindU32):
		return U32(uint32(l.u) + uint32(r.u))
	case l.kind == KindI32 && r.kind == KindI32:
		return I32(int32(l.i) + int32(r.i))
	case l.kind == KindZ32 && r.kind == KindZ32:
		return Z32(int32(l.i) + int32(r.i))
	case (l.kind == KindI32 && r.kind == KindZ32) || (l.kind == KindZ32 && r.kind == KindI32):
		return I32(int32(l.i) + int32(r.i))
	case l.kind == KindU64 && r.kind == KindU64:
		return U64(l.u + r.u)
	case l.kind == KindV64 && r.kind == KindV64:
		return V64(l.u + r.u)
	case (l.kind == KindU64 && r.kind == KindV64) || (l.kind == KindV64 && r.kind == KindU64):
		return U64(l.u + r.u)
	case l.kind == KindI64 && r.kind == KindI64:
		return I64(l.i + r.i)
	case l.kind == KindZ64 && r.kind == KindZ64:
		return Z64(l.i + r.i)
	case (l.kind == KindI64 && r.kind == KindZ64) || (l.kind == KindZ64 && r.kind == KindI64):
		return I64(l.i + r.i)
	case l.kind == KindF32 && r.kind == KindF32:
		return F32(float32(l.f) + float32(r.f))
	case l.kind == KindF64 && r.kind == KindF64:
		return F64(l.f + r.f)
	case l.kind == KindDateTime && r.kind == KindDuration:
		return DateTime(l.t.Add(r.dur))
	case l.kind == KindDuration && r.kind == KindDateTime:
		return DateTime(r.t.Add(l.dur))
	case l.kind == KindDuration && r.kind == KindDuration:
		return Dur(l.dur + r.dur)
	default:
		return mismatch("add", l, r)
	}
}

func Sub(l, r Value) Value {
	switch {
	case l.kind == KindU32 && r.kind == KindU32:
		if uint32(l.u) < uint32(r.u) {
			return mismatch("subtract", l, r)
		}
		return U32(uint32(l.u) - uint32(r.u))
	case l.kind == KindV32 && r.kind == KindV32:
		if uint32(l.u) < uint32(r.u) {
			return mismatch("subtract", l, r)
		}
		return V32(uint32(l.u) - uint32(r.u))
	case l.kind == KindI32 && r.kind == KindI32:
		return I32(int32(l.i) - int32(r.i))
	case l.kind == KindZ32 && r.kind == KindZ32:
		return Z32(int32(l.i) - int32(r.i))
	case l.kind == KindU64 && r.kind == KindU64:
		if l.u < r.u {
			return mismatch("subtract", l, r)
		}
		return U64(l.u - r.u)
	case l.kind == KindV64 && r.kind == KindV64:
		if l.u < r.u {
			return mismatch("subtract", l, r)
		}
		return V64(l.u - r.u)
	case l.kind == KindI64 && r.kind == KindI64:
		return I64(l.i - r.i)
	case l.kind == KindZ64 && r.kind == KindZ64:
		return Z64(l.i - r.i)
	case l.kind == KindF32 && r.kind == KindF32:
		return F32(float32(l.f) - float32(r.f))
	case l.kind == KindF64 && r.kind == KindF64:
		return F64(l.f - r.f)
	case l.kind == KindDateTime && r.kind == KindDuration:
		return DateTime(l.t.Add(-r.dur))
	case l.kind == KindDuration && r.kind == KindDuration:
		return Dur(l.dur - r.dur)
	default:
		return mismatch("subtract", l, r)
	}
}

func Mul(l, r Value) Value {
	switch {
	case l.kind == KindU32 && r.kind == KindU32:
		return U32(uint32(l.u) * uint32(r.u))
	case l.kind == KindV32 && r.kind == KindV32:
		return V32(uint32(l.u) * uint32(r.u))
	case l.kind == KindI32 && r.kind == KindI32:
		return I32(int32(l.i) * int32(r.i))
	case l.kind == KindZ32 && r.kind == KindZ32:
		return Z32(int32(l.i) * int32(r.i))
	case l.kind == KindU64 && r.kind == KindU64:
		return U64(l.u * r.u)
	case l.kind == KindV64 && r.kind == KindV64:
		return V64(l.u * r.u)
	case l.kind == KindI64 && r.kind == KindI64:
		return I64(l.i * r.i)
	case l.kind == KindZ64 && r.kind == KindZ64:
		return Z64(l.i * r.i)
	case l.kind == KindF32 && r.kind == KindF32:
		return F32(float32(l.f) * float32(r.f))
	case l.kind == KindF64 && r.kind == KindF64:
		return F64(l.f * r.f)
	case l.kind == KindDuration && isScalar(r):
		s, _ := r.numericAsF64()
		return Dur(time.Duration(float64(l.dur) * s))
	case isScalar(l) && r.kind == KindDuration:
		s, _ := l.numericAsF64()
		return Dur(time.Duration(float64(r.dur) * s))
	default:
		return mismatch("multiply", l, r)
	}
}

func Div(l, r Value) Value {
	switch {
	case l.kind == KindU32 && r.kind == KindU32:
		if uint32(r.u) == 0 {
			return mismatch("divide", l, r)
		}
		return U32(uint32(l.u) / uint32(r.u))
	case l.kind == KindV32 && r.kind == KindV32:
		if uint32(r.u) == 0 {
			return mismatch("divide", l, r)
		}
		return V32(uint32(l.u) / uint32(r.u))
	case l.kind == KindI32 && r.kind == KindI32:
		if int32(r.i) == 0 {
			return mismatch("divide", l, r)
		}
		return I32(int32(l.i) / int32(r.i))
	case l.kind == KindZ32 && r.kind == KindZ32:
		if int32(r.i) == 0 {
			return mismatch("divide", l, r)
		}
		return Z32(int32(l.i) / int32(r.i))
	case l.kind == KindU64 && r.kind == KindU64:
		if r.u == 0 {
			return mismatch("divide", l, r)
		}
		return U64(l.u / r.u)
	case l.kind == KindV64 && r.kind == KindV64:
		if r.u == 0 {
			return mismatch("divide", l, r)
		}
		return V64(l.u / r.u)
	case l.kind == KindI64 && r.kind == KindI64:
		if r.i == 0 {
			return mismatch("divide", l, r)
		}
		return I64(l.i / r.i)
	case l.kind == KindZ64 && r.kind == KindZ64:
		if r.i == 0 {
			return mismatch("divide", l, r)
		}
		return Z64(l.i / r.i)
	case l.kind == KindF32 && r.kind == KindF32:
		return F32(float32(l.f) / float32(r.f))
	case l.kind == KindF64 && r.kind == KindF64:
		return F64(l.f / r.f)
	case l.kind == KindDuration && isScalar(r):
		s, _ := r.numericAsF64()
		if s == 0 {
			return mismatch("divide", l, r)
		}
		return Dur(time.Duration(float64(l.dur) / s))
	default:
		return mismatch("divide", l, r)
	}
}

// Not inverts a Bool or Result value; every other kind produces an error,
// matching arithmetic's shape of returning data, never a Go error.
func Not(v Value) Value {
	switch v.kind {
	case KindTrue:
		return False()
	case KindFalse:
		return True()
	case KindOk:
		return Err("")
	case KindError:
		return Ok()
	default:
		t, _ := v.Typ()
		return Err(fmt.Sprintf("can't apply not to %s", t))
	}
}

func isScalar(v Value) bool {
	switch v.kind {
	case KindU32, KindV32, KindF32, KindF64:
		return true
	default:
		return false
	}
}

func mismatch(op string, l, r Value) Value {
	lt, lok := l.Typ()
	rt, rok := r.Typ()
	ln, rn := "null", "null"
	if lok {
		ln = lt.Name()
	}
	if rok {
		rn = rt.Name()
	}
	return Err(fmt.Sprintf("can't %s %s and %s", op, ln, rn))
}
