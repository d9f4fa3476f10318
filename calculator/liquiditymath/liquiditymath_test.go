package liquiditymath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDelta(t *testing.T) {
	maxUint128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	tests := []struct {
		name    string
		x       *big.Int
		y       *big.Int
		want    string
		wantErr error
	}{
		{"simple add", big.NewInt(1), big.NewInt(2), "3", nil},
		{"simple subtract", big.NewInt(5), big.NewInt(-3), "2", nil},
		{"to zero", big.NewInt(7), big.NewInt(-7), "0", nil},
		{"at max", new(big.Int).Sub(maxUint128, big.NewInt(1)), big.NewInt(1), maxUint128.String(), nil},
		{"overflow", maxUint128, big.NewInt(1), "", ErrLiquidityOverflow},
		{"underflow", big.NewInt(3), big.NewInt(-4), "", ErrLiquidityUnderflow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dest := new(big.Int)
			err := AddDelta(dest, tc.x, tc.y)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, dest.String())
		})
	}
}

func TestMaxLiquidityPerTick(t *testing.T) {
	// Known values for the standard fee-tier spacings.
	tests := []struct {
		spacing int64
		want    string
	}{
		{1, "191757530477355301479181766273477"},
		{10, "1917569901783203986719870431555990"},
		{60, "11505743598341114571880798222544994"},
		{200, "38350317471085141830651933667504588"},
	}

	for _, tc := range tests {
		got := MaxLiquidityPerTick(tc.spacing)
		assert.Equal(t, tc.want, got.String(), "spacing %d", tc.spacing)
	}

	// The cap times the usable tick count must never exceed uint128.
	maxUint128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	for _, spacing := range []int64{1, 2, 10, 60, 200, 887272} {
		minTick := (-887272 / spacing) * spacing
		maxTick := (887272 / spacing) * spacing
		numTicks := (maxTick-minTick)/spacing + 1
		total := new(big.Int).Mul(MaxLiquidityPerTick(spacing), big.NewInt(numTicks))
		assert.True(t, total.Cmp(maxUint128) <= 0, "spacing %d", spacing)
	}
}
