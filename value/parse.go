// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package value

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Parse parses s as a value of type t. It is the inverse of Value.Cast(t)
// followed by a format back to String, for every Typ except Bytes, whose
// canonical text form is base64 rather than any cast result (Cast never
// produces a Bytes from a String; Parse is how one gets there).
func (t Typ) Parse(s string) (Value, bool) {
	switch t {
	case TypU32:
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return Value{}, false
		}
		return U32(uint32(n)), true
	case TypV32:
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return Value{}, false
		}
		return V32(uint32(n)), true
	case TypI32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, false
		}
		return I32(int32(n)), true
	case TypZ32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, false
		}
		return Z32(int32(n)), true
	case TypU64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Value{}, false
		}
		return U64(n), true
	case TypV64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Value{}, false
		}
		return V64(n), true
	case TypI64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, false
		}
		return I64(n), true
	case TypZ64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, false
		}
		return Z64(n), true
	case TypF32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, false
		}
		return F32(float32(f)), true
	case TypF64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, false
		}
		return F64(f), true
	case TypDateTime:
		return parseDateTime(s)
	case TypDuration:
		return parseDuration(s)
	case TypBool:
		switch s {
		case "true", "True":
			return True(), true
		case "false", "False":
			return False(), true
		default:
			return Value{}, false
		}
	case TypString:
		return Str(s), true
	case TypBytes:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Value{}, false
		}
		return Bytes(b), true
	case TypResult:
		switch {
		case s == "ok" || s == "Ok":
			return Ok(), true
		case s == "error" || s == "Error":
			return Err(""), true
		case strings.HasPrefix(s, "error:"):
			return Err(strings.TrimSpace(strings.TrimPrefix(s, "error:"))), true
		case strings.HasPrefix(s, "Error:"):
			return Err(strings.TrimSpace(strings.TrimPrefix(s, "Error:"))), true
		default:
			return Value{}, false
		}
	default:
		return Value{}, false
	}
}

// parseAs is Typ.Parse restricted to String-kind receivers, used by the
// String-source branches of Cast.
func (v Value) parseAs(t Typ) (Value, bool) {
	if v.kind != KindString {
		return Value{}, false
	}
	return t.Parse(v.s)
}

func parseDateTime(s string) (Value, bool) {
	if s == "null" || s == "Null" {
		return Value{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateTime(t), true
	}
	if t, err := time.Parse(time.RFC1123Z, s); err == nil {
		return DateTime(t), true
	}
	return Value{}, false
}

func parseDuration(s string) (Value, bool) {
	if !strings.HasSuffix(s, "s") {
		return Value{}, false
	}
	digits := strings.TrimSuffix(s, "s")
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return Value{}, false
	}
	return F64(f).Cast(TypDuration)
}

// ParseNull reports whether s is the canonical textual form of Null.
func ParseNull(s string) bool { return s == "null" || s == "Null" }
