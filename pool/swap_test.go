package pool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/amm-core-go/calculator/tickmath"
	"github.com/defistate/amm-core-go/engine"
)

const (
	// Widest ticks usable with a spacing of 60.
	minTick60 = -887220
	maxTick60 = 887220
)

// newFullRangePool returns a pool at a 1:1 price backed by 2e18 liquidity
// across the whole usable range.
func newFullRangePool(t *testing.T, fee uint64) *Pool {
	t.Helper()
	p := newTestPool(t, fee, 60)
	addLiquidity(t, p, alice, minTick60, maxTick60, fromString("2000000000000000000"))
	return p
}

func sqrtRatioAt(t *testing.T, tick int64) *big.Int {
	t.Helper()
	price := new(big.Int)
	require.NoError(t, tickmath.GetSqrtRatioAtTick(price, tick))
	return price
}

func TestSwap_Validation(t *testing.T) {
	p := newFullRangePool(t, 3000)
	priceBefore := p.SqrtPriceX96()

	t.Run("rejects a zero or missing amount", func(t *testing.T) {
		_, err := p.Swap(engine.SwapParams{ZeroForOne: true})
		assert.ErrorIs(t, err, ErrSwapAmountZero)
		_, err = p.Swap(engine.SwapParams{ZeroForOne: true, AmountSpecified: new(big.Int)})
		assert.ErrorIs(t, err, ErrSwapAmountZero)
	})

	t.Run("rejects an lp fee override above 100%", func(t *testing.T) {
		_, err := p.SwapWithLPFee(engine.SwapParams{
			ZeroForOne: true, AmountSpecified: big.NewInt(-1000),
		}, 1_000_001)
		assert.ErrorIs(t, err, ErrFeeTooLarge)
	})

	t.Run("rejects exact output at a 100% fee", func(t *testing.T) {
		_, err := p.SwapWithLPFee(engine.SwapParams{
			ZeroForOne: true, AmountSpecified: big.NewInt(1000),
		}, 1_000_000)
		assert.ErrorIs(t, err, ErrInvalidFeeForExactOut)
	})

	t.Run("rejects a limit on the wrong side of the price", func(t *testing.T) {
		_, err := p.Swap(engine.SwapParams{
			ZeroForOne:        true,
			AmountSpecified:   big.NewInt(-1000),
			SqrtPriceLimitX96: encodePriceSqrt(1, 1),
		})
		assert.ErrorIs(t, err, ErrPriceLimitAlreadyExceeded)

		_, err = p.Swap(engine.SwapParams{
			ZeroForOne:        false,
			AmountSpecified:   big.NewInt(-1000),
			SqrtPriceLimitX96: encodePriceSqrt(1, 1),
		})
		assert.ErrorIs(t, err, ErrPriceLimitAlreadyExceeded)
	})

	t.Run("rejects a limit outside the representable price range", func(t *testing.T) {
		_, err := p.Swap(engine.SwapParams{
			ZeroForOne:        true,
			AmountSpecified:   big.NewInt(-1000),
			SqrtPriceLimitX96: new(big.Int).Set(tickmath.MIN_SQRT_RATIO),
		})
		assert.ErrorIs(t, err, ErrPriceLimitOutOfBounds)

		_, err = p.Swap(engine.SwapParams{
			ZeroForOne:        false,
			AmountSpecified:   big.NewInt(-1000),
			SqrtPriceLimitX96: new(big.Int).Set(tickmath.MAX_SQRT_RATIO),
		})
		assert.ErrorIs(t, err, ErrPriceLimitOutOfBounds)
	})

	assert.Zero(t, p.SqrtPriceX96().Cmp(priceBefore), "rejected swaps must not move the price")
}

func TestSwap_ExactInput_SingleStep(t *testing.T) {
	p := newFullRangePool(t, 600)

	delta, err := p.Swap(engine.SwapParams{
		ZeroForOne:      false,
		AmountSpecified: fromString("-1000000000000000000"),
	})
	require.NoError(t, err)

	// The whole input is consumed: 0.06% fee, the rest moves the price.
	assert.Equal(t, "-1000000000000000000", delta.Amount1.String())
	assert.Equal(t, "666399946655997866", delta.Amount0.String())
	assert.Equal(t, "118818475322642227089037862318", p.SqrtPriceX96().String())

	// 600000000000000 * 2^128 / 2e18.
	assert.Equal(t, "102084710076281539039012382229530463", p.FeeGrowthGlobal1X128().String())
	assert.Zero(t, p.FeeGrowthGlobal0X128().Sign())

	accrued0, accrued1 := p.ProtocolFeesAccrued()
	assert.Zero(t, accrued0.Sign())
	assert.Zero(t, accrued1.Sign())

	assert.Zero(t, p.Liquidity().Cmp(fromString("2000000000000000000")))
	assert.Positive(t, p.Tick())

	decoded, err := tickmath.GetTickAtSqrtRatio(p.SqrtPriceX96())
	require.NoError(t, err)
	assert.Equal(t, decoded, p.Tick(), "tick must stay consistent with the price")
}

func TestSwap_ExactOutput_SingleStep(t *testing.T) {
	p := newFullRangePool(t, 600)

	delta, err := p.Swap(engine.SwapParams{
		ZeroForOne:      false,
		AmountSpecified: fromString("1000000000000000000"),
	})
	require.NoError(t, err)

	// Receiving exactly 1e18 token0 from 2e18 liquidity doubles the price.
	assert.Equal(t, "1000000000000000000", delta.Amount0.String())
	assert.Equal(t, "-2001200720432259356", delta.Amount1.String())
	assert.Equal(t, "158456325028528675187087900672", p.SqrtPriceX96().String())
	assert.Equal(t, int64(13863), p.Tick())

	expectedGrowth := new(big.Int).Mul(fromString("1200720432259356"), q128)
	expectedGrowth.Div(expectedGrowth, fromString("2000000000000000000"))
	assert.Zero(t, p.FeeGrowthGlobal1X128().Cmp(expectedGrowth))
}

func TestSwap_ZeroForOne_MovesPriceDown(t *testing.T) {
	p := newFullRangePool(t, 3000)
	priceBefore := p.SqrtPriceX96()

	delta, err := p.Swap(engine.SwapParams{
		ZeroForOne:      true,
		AmountSpecified: fromString("-1000000000000000000"),
	})
	require.NoError(t, err)

	assert.Negative(t, delta.Amount0.Sign())
	assert.Positive(t, delta.Amount1.Sign())
	assert.Negative(t, p.SqrtPriceX96().Cmp(priceBefore))
	assert.Negative(t, p.Tick())
	assert.Positive(t, p.FeeGrowthGlobal0X128().Sign())
	assert.Zero(t, p.FeeGrowthGlobal1X128().Sign())
}

func TestSwap_CrossTickAndRunOutOfLiquidity(t *testing.T) {
	p := newTestPool(t, 3000, 60)
	addLiquidity(t, p, alice, -600, 600, big.NewInt(1000))

	// The range can absorb only ~31 token0 on the way down to tick -600;
	// beyond it the price slides freely to the limit with nothing filled.
	delta, err := p.Swap(engine.SwapParams{
		ZeroForOne:      true,
		AmountSpecified: big.NewInt(-100),
	})
	require.NoError(t, err)

	assert.Equal(t, "-32", delta.Amount0.String())
	assert.Equal(t, "29", delta.Amount1.String())

	assert.Zero(t, p.Liquidity().Sign(), "all liquidity is out of range after the cross")
	assert.Equal(t, tickmath.MIN_TICK, p.Tick())

	wantPrice := new(big.Int).Add(tickmath.MIN_SQRT_RATIO, big.NewInt(1))
	assert.Zero(t, p.SqrtPriceX96().Cmp(wantPrice))

	// One unit of fee over 1000 liquidity: floor(2^128 / 1000).
	assert.Equal(t, "340282366920938463463374607431768211", p.FeeGrowthGlobal0X128().String())
}

func TestSwap_PriceLimitStopsTheFill(t *testing.T) {
	t.Run("exact input fills up to the limit", func(t *testing.T) {
		p := newFullRangePool(t, 3000)
		limit := sqrtRatioAt(t, -300)

		delta, err := p.Swap(engine.SwapParams{
			ZeroForOne:        true,
			AmountSpecified:   fromString("-1000000000000000000"),
			SqrtPriceLimitX96: limit,
		})
		require.NoError(t, err)

		assert.Zero(t, p.SqrtPriceX96().Cmp(limit))
		assert.Equal(t, int64(-300), p.Tick())

		// Far less than the specified input fits above the limit.
		assert.Negative(t, delta.Amount0.Sign())
		assert.Positive(t, delta.Amount0.Cmp(fromString("-1000000000000000000")))
		assert.Positive(t, delta.Amount1.Sign())
	})

	t.Run("exact output fills up to the limit", func(t *testing.T) {
		p := newFullRangePool(t, 3000)
		limit := sqrtRatioAt(t, -300)

		delta, err := p.Swap(engine.SwapParams{
			ZeroForOne:        true,
			AmountSpecified:   fromString("500000000000000000"),
			SqrtPriceLimitX96: limit,
		})
		require.NoError(t, err)

		assert.Zero(t, p.SqrtPriceX96().Cmp(limit))
		assert.Positive(t, delta.Amount1.Sign())
		assert.Negative(t, delta.Amount1.Cmp(fromString("500000000000000000")))
		assert.Negative(t, delta.Amount0.Sign())
	})
}

func TestSwap_ProtocolFeeCarve(t *testing.T) {
	t.Run("with a zero lp fee the whole fee is the protocol's", func(t *testing.T) {
		p := newFullRangePool(t, 0)
		require.NoError(t, p.SetProtocolFee(1000, 1000))

		delta, err := p.Swap(engine.SwapParams{
			ZeroForOne:      false,
			AmountSpecified: fromString("-1000000000000000000"),
		})
		require.NoError(t, err)

		assert.Equal(t, "-1000000000000000000", delta.Amount1.String())

		_, accrued1 := p.ProtocolFeesAccrued()
		assert.Equal(t, "1000000000000000", accrued1.String())
		assert.Zero(t, p.FeeGrowthGlobal1X128().Sign(), "nothing is left for liquidity providers")
	})

	t.Run("with an lp fee the protocol takes its cut of the gross input", func(t *testing.T) {
		p := newFullRangePool(t, 3000)
		require.NoError(t, p.SetProtocolFee(0, 1000))

		_, err := p.Swap(engine.SwapParams{
			ZeroForOne:      false,
			AmountSpecified: fromString("-1000000000000000000"),
		})
		require.NoError(t, err)

		// Combined fee 3997 pips: 0.1% of the gross input to the protocol,
		// the remaining 2997000000000000 to in-range liquidity.
		accrued0, accrued1 := p.ProtocolFeesAccrued()
		assert.Zero(t, accrued0.Sign())
		assert.Equal(t, "1000000000000000", accrued1.String())

		expectedGrowth := new(big.Int).Mul(fromString("2997000000000000"), q128)
		expectedGrowth.Div(expectedGrowth, fromString("2000000000000000000"))
		assert.Zero(t, p.FeeGrowthGlobal1X128().Cmp(expectedGrowth))
	})
}

func TestSwap_FullFeeExactInput(t *testing.T) {
	p := newFullRangePool(t, 3000)
	priceBefore := p.SqrtPriceX96()

	delta, err := p.SwapWithLPFee(engine.SwapParams{
		ZeroForOne:      true,
		AmountSpecified: big.NewInt(-100),
	}, 1_000_000)
	require.NoError(t, err)

	// At a 100% fee the entire input accrues to liquidity providers and the
	// price does not move.
	assert.Equal(t, "-100", delta.Amount0.String())
	assert.Zero(t, delta.Amount1.Sign())
	assert.Zero(t, p.SqrtPriceX96().Cmp(priceBefore))
	assert.Equal(t, "17014118346046923173168", p.FeeGrowthGlobal0X128().String())
}

func TestSwap_NoLiquiditySlidesToTheLimit(t *testing.T) {
	p := newTestPool(t, 3000, 60)

	delta, err := p.Swap(engine.SwapParams{
		ZeroForOne:      true,
		AmountSpecified: fromString("-1000000000000000000"),
	})
	require.NoError(t, err)

	// Nothing to trade against: the price slides freely and nothing fills.
	assert.Zero(t, delta.Amount0.Sign())
	assert.Zero(t, delta.Amount1.Sign())
	assert.Equal(t, tickmath.MIN_TICK, p.Tick())

	wantPrice := new(big.Int).Add(tickmath.MIN_SQRT_RATIO, big.NewInt(1))
	assert.Zero(t, p.SqrtPriceX96().Cmp(wantPrice))
	assert.Zero(t, p.FeeGrowthGlobal0X128().Sign())
}

func TestSwap_CrossesIntoTheNextRange(t *testing.T) {
	p := newTestPool(t, 3000, 60)
	addLiquidity(t, p, alice, -60, 60, fromString("1000000000000000000"))
	addLiquidity(t, p, bob, -600, -60, fromString("3000000000000000000"))
	require.Zero(t, p.Liquidity().Cmp(fromString("1000000000000000000")))

	limit := sqrtRatioAt(t, -300)
	delta, err := p.Swap(engine.SwapParams{
		ZeroForOne:        true,
		AmountSpecified:   fromString("-1000000000000000000"),
		SqrtPriceLimitX96: limit,
	})
	require.NoError(t, err)

	// Crossing -60 leaves alice's range and enters bob's.
	assert.Zero(t, p.Liquidity().Cmp(fromString("3000000000000000000")))
	assert.Equal(t, int64(-300), p.Tick())
	assert.Zero(t, p.SqrtPriceX96().Cmp(limit))
	assert.Negative(t, delta.Amount0.Sign())
	assert.Positive(t, delta.Amount1.Sign())

	// Both ranges earned token0 fees for the segment the price spent inside
	// them, and nothing on the other side.
	aliceFees := poke(t, p, alice, -60, 60)
	assert.Positive(t, aliceFees.Amount0.Sign())
	assert.Zero(t, aliceFees.Amount1.Sign())

	bobFees := poke(t, p, bob, -600, -60)
	assert.Positive(t, bobFees.Amount0.Sign())
	assert.Zero(t, bobFees.Amount1.Sign())
}

func TestSwap_FeeGrowthIsMonotonic(t *testing.T) {
	p := newFullRangePool(t, 3000)

	prev0 := p.FeeGrowthGlobal0X128()
	prev1 := p.FeeGrowthGlobal1X128()

	for i := 0; i < 50; i++ {
		zeroForOne := i%2 == 0
		delta, err := p.Swap(engine.SwapParams{
			ZeroForOne:      zeroForOne,
			AmountSpecified: fromString("-1000000000000000"),
		})
		require.NoError(t, err)

		if zeroForOne {
			require.Negative(t, delta.Amount0.Sign())
			require.Positive(t, delta.Amount1.Sign())
		} else {
			require.Positive(t, delta.Amount0.Sign())
			require.Negative(t, delta.Amount1.Sign())
		}

		growth0 := p.FeeGrowthGlobal0X128()
		growth1 := p.FeeGrowthGlobal1X128()
		require.GreaterOrEqual(t, growth0.Cmp(prev0), 0, "iteration %d", i)
		require.GreaterOrEqual(t, growth1.Cmp(prev1), 0, "iteration %d", i)
		prev0, prev1 = growth0, growth1
	}

	assert.Positive(t, prev0.Sign())
	assert.Positive(t, prev1.Sign())
	assert.Zero(t, p.Liquidity().Cmp(fromString("2000000000000000000")))
}
