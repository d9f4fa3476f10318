package swapmath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create a random big.Int up to a given bit length.
func newRandInt(bits int) *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(err)
	}
	return n
}

// encodePriceSqrt builds sqrt(reserve1/reserve0) as a Q64.96 value.
func encodePriceSqrt(reserve1, reserve0 int64) *big.Int {
	num := new(big.Int).Mul(big.NewInt(reserve1), new(big.Int).Lsh(big.NewInt(1), 192))
	ratio := new(big.Int).Div(num, big.NewInt(reserve0))
	return new(big.Int).Sqrt(ratio)
}

func fromString(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}

// TestComputeSwapStep_KnownValues pins the kernel to externally verifiable
// numbers for the standard 0.06% fee tier.
func TestComputeSwapStep_KnownValues(t *testing.T) {
	price := encodePriceSqrt(1, 1)
	liquidity := fromString("2000000000000000000")
	fee := big.NewInt(600)

	t.Run("exact input capped at the price target", func(t *testing.T) {
		target := encodePriceSqrt(101, 100)
		sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
		err := ComputeSwapStep(sqrtQ, amountIn, amountOut, feeAmount,
			price, target, liquidity, fromString("-1000000000000000000"), fee)
		require.NoError(t, err)

		assert.Equal(t, "9975124224178055", amountIn.String())
		assert.Equal(t, "9925619580021728", amountOut.String())
		assert.Equal(t, "5988667735148", feeAmount.String())
		assert.Zero(t, sqrtQ.Cmp(target))
	})

	t.Run("exact output capped at the price target", func(t *testing.T) {
		target := encodePriceSqrt(101, 100)
		sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
		err := ComputeSwapStep(sqrtQ, amountIn, amountOut, feeAmount,
			price, target, liquidity, fromString("1000000000000000000"), fee)
		require.NoError(t, err)

		assert.Equal(t, "9975124224178055", amountIn.String())
		assert.Equal(t, "9925619580021728", amountOut.String())
		assert.Equal(t, "5988667735148", feeAmount.String())
		assert.Zero(t, sqrtQ.Cmp(target))
	})

	t.Run("exact input fully spent before the target", func(t *testing.T) {
		target := encodePriceSqrt(1000, 100)
		sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
		err := ComputeSwapStep(sqrtQ, amountIn, amountOut, feeAmount,
			price, target, liquidity, fromString("-1000000000000000000"), fee)
		require.NoError(t, err)

		assert.Equal(t, "999400000000000000", amountIn.String())
		assert.Equal(t, "666399946655997866", amountOut.String())
		assert.Equal(t, "600000000000000", feeAmount.String())
		assert.Equal(t, "118818475322642227089037862318", sqrtQ.String())
		assert.True(t, sqrtQ.Cmp(target) < 0)

		// Input plus fee adds up to exactly the specified amount.
		sum := new(big.Int).Add(amountIn, feeAmount)
		assert.Equal(t, "1000000000000000000", sum.String())
	})

	t.Run("exact output fully received before the target", func(t *testing.T) {
		target := encodePriceSqrt(10000, 100)
		sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
		err := ComputeSwapStep(sqrtQ, amountIn, amountOut, feeAmount,
			price, target, liquidity, fromString("1000000000000000000"), fee)
		require.NoError(t, err)

		assert.Equal(t, "2000000000000000000", amountIn.String())
		assert.Equal(t, "1000000000000000000", amountOut.String())
		assert.Equal(t, "1200720432259356", feeAmount.String())
		assert.Equal(t, "158456325028528675187087900672", sqrtQ.String())
		assert.True(t, sqrtQ.Cmp(target) < 0)
	})

	t.Run("exact input with a 100 percent fee moves nothing", func(t *testing.T) {
		target := encodePriceSqrt(101, 100)
		sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
		err := ComputeSwapStep(sqrtQ, amountIn, amountOut, feeAmount,
			price, target, liquidity, fromString("-1000000000000000000"), big.NewInt(MaxSwapFee))
		require.NoError(t, err)

		assert.Zero(t, amountIn.Sign())
		assert.Zero(t, amountOut.Sign())
		assert.Equal(t, "1000000000000000000", feeAmount.String())
		assert.Zero(t, sqrtQ.Cmp(price))
	})
}

// TestComputeSwapStep_Invariants simulates fuzz testing by running the function
// on a large number of random inputs and verifying its mathematical properties.
func TestComputeSwapStep_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtPriceRaw := newRandInt(160)
		sqrtPriceTargetRaw := newRandInt(160)
		liquidity := newRandInt(128)
		amountRemaining := newRandInt(256)
		// Make amountRemaining an exact input 50% of the time.
		if i%2 == 1 {
			amountRemaining.Neg(amountRemaining)
		}
		feePips := newRandInt(20) // Corresponds to up to 1,048,576 ppm, covering all valid fee tiers.

		// require(sqrtPriceRaw > 0);
		if sqrtPriceRaw.Sign() == 0 {
			sqrtPriceRaw.SetInt64(1)
		}
		// require(sqrtPriceTargetRaw > 0);
		if sqrtPriceTargetRaw.Sign() == 0 {
			sqrtPriceTargetRaw.SetInt64(1)
		}
		// require(feePips > 0);
		if feePips.Sign() == 0 {
			feePips.SetInt64(1)
		}
		// require(feePips < 1e6);
		if feePips.Cmp(feeDenominator) >= 0 {
			feePips.Set(new(big.Int).Sub(feeDenominator, big.NewInt(1)))
		}

		sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
		// Call the function, skipping cases that are expected to error (e.g., underflow/overflow).
		err := ComputeSwapStep(
			sqrtQ, amountIn, amountOut, feeAmount,
			sqrtPriceRaw,
			sqrtPriceTargetRaw,
			liquidity,
			amountRemaining,
			feePips,
		)
		if err != nil {
			continue
		}

		sumIn := new(big.Int).Add(amountIn, feeAmount)
		assert.True(t, sumIn.BitLen() <= 256)

		if amountRemaining.Sign() < 0 {
			// Exact input: never spend more than was offered.
			assert.True(t, sumIn.Cmp(new(big.Int).Neg(amountRemaining)) <= 0)
		} else {
			// Exact output: never hand out more than was asked.
			assert.True(t, amountOut.Cmp(amountRemaining) <= 0)
		}

		if sqrtPriceRaw.Cmp(sqrtPriceTargetRaw) == 0 {
			assert.Zero(t, amountIn.Sign())
			assert.Zero(t, amountOut.Sign())
			assert.Zero(t, feeAmount.Sign())
			assert.Zero(t, sqrtQ.Cmp(sqrtPriceTargetRaw))
		}

		// didn't reach price target, entire amount must be consumed
		if sqrtQ.Cmp(sqrtPriceTargetRaw) != 0 {
			if amountRemaining.Sign() < 0 {
				assert.Zero(t, sumIn.Cmp(new(big.Int).Neg(amountRemaining)))
			} else {
				assert.Zero(t, amountOut.Cmp(amountRemaining))
			}
		}

		// next price is between price and price target
		if sqrtPriceTargetRaw.Cmp(sqrtPriceRaw) <= 0 {
			assert.True(t, sqrtQ.Cmp(sqrtPriceRaw) <= 0)
			assert.True(t, sqrtQ.Cmp(sqrtPriceTargetRaw) >= 0)
		} else {
			assert.True(t, sqrtQ.Cmp(sqrtPriceRaw) >= 0)
			assert.True(t, sqrtQ.Cmp(sqrtPriceTargetRaw) <= 0)
		}
	}
}
