package bitset

import (
	"fmt"

	"github.com/defistate/amm-core-go/calculator/bitmath"
)

func NewBitSet(len uint64) BitSet {
	words := (len + 63) / 64
	bits := make([]uint64, words)
	return bits
}

type BitSet []uint64

func (b BitSet) IsSet(index uint64) bool {
	wordPosition := index / 64
	bitPosition := index % 64
	mask := uint64(1) << bitPosition

	return (b[wordPosition] & mask) != 0
}

func (b BitSet) Set(index uint64) {
	wordPosition := index / 64
	bitPosition := index % 64
	mask := uint64(1) << bitPosition

	b[wordPosition] |= mask
}

func (b BitSet) Unset(index uint64) {
	wordPosition := index / 64
	bitPosition := index % 64
	mask := uint64(1) << bitPosition

	b[wordPosition] = b[wordPosition] &^ mask

}

// Flip toggles the bit at index.
func (b BitSet) Flip(index uint64) {
	wordPosition := index / 64
	bitPosition := index % 64
	mask := uint64(1) << bitPosition

	b[wordPosition] ^= mask
}

// NextSetAtOrBelow returns the index of the highest set bit at or below
// index, and false when no bit at or below index is set.
func (b BitSet) NextSetAtOrBelow(index uint64) (uint64, bool) {
	wordPosition := index / 64
	bitPosition := index % 64

	// Mask away the bits above bitPosition in the starting word.
	mask := uint64(1)<<bitPosition | (uint64(1)<<bitPosition - 1)
	if msb, err := bitmath.MostSignificantBit(b[wordPosition] & mask); err == nil {
		return wordPosition*64 + uint64(msb), true
	}

	for w := int(wordPosition) - 1; w >= 0; w-- {
		if msb, err := bitmath.MostSignificantBit(b[w]); err == nil {
			return uint64(w)*64 + uint64(msb), true
		}
	}
	return 0, false
}

// NextSetAtOrAbove returns the index of the lowest set bit at or above
// index, and false when no bit at or above index is set.
func (b BitSet) NextSetAtOrAbove(index uint64) (uint64, bool) {
	wordPosition := index / 64
	bitPosition := index % 64

	// Mask away the bits below bitPosition in the starting word.
	mask := ^(uint64(1)<<bitPosition - 1)
	if lsb, err := bitmath.LeastSignificantBit(b[wordPosition] & mask); err == nil {
		return wordPosition*64 + uint64(lsb), true
	}

	for w := wordPosition + 1; w < uint64(len(b)); w++ {
		if lsb, err := bitmath.LeastSignificantBit(b[w]); err == nil {
			return w*64 + uint64(lsb), true
		}
	}
	return 0, false
}

// None reports whether no bit is set.
func (b BitSet) None() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

func (b BitSet) Clear() {
	for i := range b {
		b[i] = 0
	}
}

func (b BitSet) SetFrom(o BitSet) {
	if len(b) != len(o) {
		panic(fmt.Sprintf("bitsets must be same size: got %d vs %d", len(b), len(o)))
	}
	copy(b, o)
}
