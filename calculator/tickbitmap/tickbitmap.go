package tickbitmap

import (
	"errors"

	"github.com/defistate/amm-core-go/bitset"
)

// ErrTickMisaligned is returned when a tick is not a multiple of the spacing.
var ErrTickMisaligned = errors.New("tick not aligned to spacing")

const wordSize = 256

// TickBitmap tracks which ticks carry liquidity as a sparse map of 256-bit
// words keyed by word position. Bit i of word w corresponds to the compressed
// tick w*256+i, where a compressed tick is the tick divided by the spacing
// rounded toward negative infinity. Only words containing at least one set
// bit are present in the map.
type TickBitmap struct {
	words map[int16]bitset.BitSet
}

// NewTickBitmap returns an empty bitmap.
func NewTickBitmap() *TickBitmap {
	return &TickBitmap{words: make(map[int16]bitset.BitSet)}
}

// compress divides a tick by the spacing, rounding toward negative infinity
// so that every tick in a word maps to a bit position in [0, 256).
func compress(tick, tickSpacing int64) int64 {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	return compressed
}

// position splits a compressed tick into its word key and bit offset.
func position(compressed int64) (int16, uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

// FlipTick toggles the initialized state of a tick. The tick must be a
// multiple of the spacing.
func (b *TickBitmap) FlipTick(tick, tickSpacing int64) error {
	if tick%tickSpacing != 0 {
		return ErrTickMisaligned
	}

	wordPos, bitPos := position(tick / tickSpacing)
	word, ok := b.words[wordPos]
	if !ok {
		word = bitset.NewBitSet(wordSize)
		b.words[wordPos] = word
	}
	word.Flip(uint64(bitPos))
	if word.None() {
		delete(b.words, wordPos)
	}
	return nil
}

// NextInitializedTickWithinOneWord finds the nearest initialized tick within
// the same 256-bit word as the given tick, searching left (toward lower
// ticks, including the tick itself) when lte is true and right (strictly
// greater ticks) otherwise.
//
// When no initialized tick exists in the word, the boundary tick of the word
// is returned with initialized == false so that a caller can resume the
// search from the adjacent word.
func (b *TickBitmap) NextInitializedTickWithinOneWord(tick, tickSpacing int64, lte bool) (next int64, initialized bool) {
	compressed := compress(tick, tickSpacing)

	if lte {
		wordPos, bitPos := position(compressed)
		if word, ok := b.words[wordPos]; ok {
			if idx, found := word.NextSetAtOrBelow(uint64(bitPos)); found {
				return (compressed - int64(bitPos) + int64(idx)) * tickSpacing, true
			}
		}
		// Nothing set at or below; report the start of the word.
		return (compressed - int64(bitPos)) * tickSpacing, false
	}

	// Search begins just past the current tick.
	start := compressed + 1
	wordPos, bitPos := position(start)
	if word, ok := b.words[wordPos]; ok {
		if idx, found := word.NextSetAtOrAbove(uint64(bitPos)); found {
			return (start + int64(idx) - int64(bitPos)) * tickSpacing, true
		}
	}
	// Nothing set at or above; report the end of the word.
	return (start + int64(255-bitPos)) * tickSpacing, false
}

// Clone returns a deep copy of the bitmap.
func (b *TickBitmap) Clone() *TickBitmap {
	c := &TickBitmap{words: make(map[int16]bitset.BitSet, len(b.words))}
	for pos, word := range b.words {
		dup := bitset.NewBitSet(wordSize)
		dup.SetFrom(word)
		c.words[pos] = dup
	}
	return c
}
