// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package value

import (
	"encoding/binary"
	"math"
)

// Varints use unsigned LEB128, the same format encoding/binary's
// {Put,}Uvarint already implement; zig-zag maps signed integers onto it.

func uvarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

func appendUvarint(dst []byte, x uint64) []byte {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], x)
	return append(dst, b[:n]...)
}

func readUvarint(buf []byte) (uint64, int, error) {
	x, n := binary.Uvarint(buf)
	if n == 0 {
		return 0, 0, ErrShortBuffer
	}
	if n < 0 {
		return 0, 0, ErrUnknownTag
	}
	return x, n, nil
}

func zigzagEncode32(n int32) uint32 { return uint32((n << 1) ^ (n >> 31)) }
func zigzagDecode32(u uint32) int32 { return int32(u>>1) ^ -int32(u&1) }

func zigzagEncode64(n int64) uint64 { return uint64((n << 1) ^ (n >> 63)) }
func zigzagDecode64(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }

func float32bits(f float32) uint32    { return math.Float32bits(f) }
func float32frombits(u uint32) float32 { return math.Float32frombits(u) }
func float64bits(f float64) uint64    { return math.Float64bits(f) }
func float64frombits(u uint64) float64 { return math.Float64frombits(u) }
