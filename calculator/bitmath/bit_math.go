package bitmath

import (
	"errors"
	"math/bits"
)

var (
	// ErrInputIsZero is returned when a function requires a non-zero input but receives zero.
	ErrInputIsZero = errors.New("input must be greater than zero")
)

// MostSignificantBit returns the index of the most significant set bit of the
// word, where the least significant bit is at index 0.
//
// The function satisfies the property: x >= 2**msb(x) and x < 2**(msb(x)+1)
func MostSignificantBit(x uint64) (uint8, error) {
	if x == 0 {
		return 0, ErrInputIsZero
	}

	// bits.Len64 returns the number of bits required to represent x.
	// For example, the number 8 (binary 1000) has a bit length of 4.
	// The index of its most significant bit is 3.
	// Therefore, the index is always Len64() - 1.
	return uint8(bits.Len64(x) - 1), nil
}

// LeastSignificantBit returns the index of the least significant set bit of
// the word, where the least significant bit is at index 0.
//
// The function satisfies the property: (x & 2**lsb(x)) != 0
func LeastSignificantBit(x uint64) (uint8, error) {
	if x == 0 {
		return 0, ErrInputIsZero
	}

	// bits.TrailingZeros64 is a highly optimized intrinsic that counts the
	// number of trailing zero bits, which is exactly the index of the LSB.
	return uint8(bits.TrailingZeros64(x)), nil
}
