package bitmath

import (
	"math/bits"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMostSignificantBit(t *testing.T) {
	testCases := []struct {
		name     string
		input    uint64
		expected uint8
		err      error
	}{
		{"Input 1", 1, 0, nil},
		{"Input 2", 2, 1, nil},
		{"Input 3", 3, 1, nil},
		{"Input 255", 255, 7, nil},
		{"Input 256", 256, 8, nil},
		{"High bit (2^63)", 1 << 63, 63, nil},
		{"All bits set", ^uint64(0), 63, nil},
		{"Error on Zero", 0, 0, ErrInputIsZero},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := MostSignificantBit(tc.input)
			if tc.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, result)
			}
		})
	}
}

func TestLeastSignificantBit(t *testing.T) {
	testCases := []struct {
		name     string
		input    uint64
		expected uint8
		err      error
	}{
		{"Input 1", 1, 0, nil},
		{"Input 2", 2, 1, nil},
		{"Input 3", 3, 0, nil},  // binary 11, LSB is at index 0
		{"Input 8", 8, 3, nil},  // binary 1000
		{"Input 10", 10, 1, nil}, // binary 1010
		{"High bit (2^63)", 1 << 63, 63, nil},
		{"All bits set", ^uint64(0), 0, nil},
		{"Error on Zero", 0, 0, ErrInputIsZero},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := LeastSignificantBit(tc.input)
			if tc.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, result)
			}
		})
	}
}

func TestBitProperties(t *testing.T) {
	// For random words, msb and lsb must satisfy their defining properties.
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		x := rng.Uint64()
		if x == 0 {
			continue
		}

		msb, err := MostSignificantBit(x)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, x, uint64(1)<<msb)
		if msb < 63 {
			assert.Less(t, x, uint64(1)<<(msb+1))
		}

		lsb, err := LeastSignificantBit(x)
		require.NoError(t, err)
		assert.NotZero(t, x&(uint64(1)<<lsb))
		assert.Equal(t, uint8(bits.TrailingZeros64(x)), lsb)
	}
}
