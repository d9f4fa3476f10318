package pool

import (
	"math/big"

	"github.com/defistate/amm-core-go/calculator/liquiditymath"
	"github.com/defistate/amm-core-go/calculator/swapmath"
	"github.com/defistate/amm-core-go/calculator/tickmath"
	"github.com/defistate/amm-core-go/engine"
)

var (
	one             = big.NewInt(1)
	pipsDenominator = big.NewInt(swapmath.MaxSwapFee)
)

// Swap executes a swap against the pool using the pool's configured LP fee.
//
// The result delta follows the credit convention: positive amounts are owed
// to the trader, negative amounts are owed to the pool. Hitting the price
// limit before the specified amount fills is a partial fill, not an error;
// the delta reports what actually moved.
func (p *Pool) Swap(params engine.SwapParams) (engine.BalanceDelta, error) {
	return p.SwapWithLPFee(params, p.key.Fee)
}

// SwapWithLPFee executes a swap with the LP fee overridden for this call
// only. The pool's configured fee is untouched.
func (p *Pool) SwapWithLPFee(params engine.SwapParams, lpFee uint64) (engine.BalanceDelta, error) {
	delta := engine.ZeroDelta()

	if !p.initialized {
		return delta, ErrNotInitialized
	}
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return delta, ErrSwapAmountZero
	}
	if lpFee > swapmath.MaxSwapFee {
		return delta, ErrFeeTooLarge
	}

	zeroForOne := params.ZeroForOne
	protocolFee := p.protocolFee1
	if zeroForOne {
		protocolFee = p.protocolFee0
	}
	swapFee := combineFees(protocolFee, lpFee)

	exactInput := params.AmountSpecified.Sign() < 0
	if !exactInput && swapFee == swapmath.MaxSwapFee {
		return delta, ErrInvalidFeeForExactOut
	}

	// A nil limit means "as far as possible": just inside the representable
	// price range.
	limit := new(big.Int)
	switch {
	case params.SqrtPriceLimitX96 != nil:
		limit.Set(params.SqrtPriceLimitX96)
	case zeroForOne:
		limit.Add(tickmath.MIN_SQRT_RATIO, one)
	default:
		limit.Sub(tickmath.MAX_SQRT_RATIO, one)
	}

	if zeroForOne {
		if limit.Cmp(p.sqrtPriceX96) >= 0 {
			return delta, ErrPriceLimitAlreadyExceeded
		}
		if limit.Cmp(tickmath.MIN_SQRT_RATIO) <= 0 {
			return delta, ErrPriceLimitOutOfBounds
		}
	} else {
		if limit.Cmp(p.sqrtPriceX96) <= 0 {
			return delta, ErrPriceLimitAlreadyExceeded
		}
		if limit.Cmp(tickmath.MAX_SQRT_RATIO) >= 0 {
			return delta, ErrPriceLimitOutOfBounds
		}
	}

	var (
		remaining  = new(big.Int).Set(params.AmountSpecified)
		calculated = new(big.Int)

		price     = new(big.Int).Set(p.sqrtPriceX96)
		tick      = p.tick
		liquidity = new(big.Int).Set(p.liquidity)

		amountToProtocol = new(big.Int)
		swapFeeBig       = new(big.Int).SetUint64(swapFee)
		protocolFeeBig   = new(big.Int).SetUint64(protocolFee)

		// Per-step scratch values.
		stepPrice       = new(big.Int)
		nextPrice       = new(big.Int)
		target          = new(big.Int)
		amountIn        = new(big.Int)
		amountOut       = new(big.Int)
		feeAmount       = new(big.Int)
		protocolCarve   = new(big.Int)
		liquidityNext   = new(big.Int)
		remainingBefore = new(big.Int)
		scratch         = new(big.Int)
	)

	// Fee growth accumulates on the input token's side.
	growthGlobal := new(big.Int).Set(p.feeGrowthGlobal1X128)
	if zeroForOne {
		growthGlobal.Set(p.feeGrowthGlobal0X128)
	}

	for remaining.Sign() != 0 && price.Cmp(limit) != 0 {
		stepPrice.Set(price)
		remainingBefore.Set(remaining)
		tickBefore := tick

		nextTick, nextInitialized := p.bitmap.NextInitializedTickWithinOneWord(tick, p.key.TickSpacing, zeroForOne)
		if nextTick < tickmath.MIN_TICK {
			nextTick = tickmath.MIN_TICK
		}
		if nextTick > tickmath.MAX_TICK {
			nextTick = tickmath.MAX_TICK
		}
		if err := tickmath.GetSqrtRatioAtTick(nextPrice, nextTick); err != nil {
			return delta, err
		}

		// Step no further than the closer of the next tick and the limit.
		target.Set(nextPrice)
		if zeroForOne {
			if nextPrice.Cmp(limit) < 0 {
				target.Set(limit)
			}
		} else {
			if nextPrice.Cmp(limit) > 0 {
				target.Set(limit)
			}
		}

		if err := swapmath.ComputeSwapStep(
			price, amountIn, amountOut, feeAmount,
			stepPrice, target, liquidity, remaining, swapFeeBig,
		); err != nil {
			return delta, err
		}

		if exactInput {
			// remaining is negative; consumed input moves it toward zero.
			scratch.Add(amountIn, feeAmount)
			remaining.Add(remaining, scratch)
			calculated.Add(calculated, amountOut)
		} else {
			remaining.Sub(remaining, amountOut)
			scratch.Add(amountIn, feeAmount)
			calculated.Sub(calculated, scratch)
		}

		if protocolFee > 0 {
			if swapFee == protocolFee {
				// The LP fee is zero, so the whole fee belongs to the protocol.
				protocolCarve.Set(feeAmount)
			} else {
				protocolCarve.Add(amountIn, feeAmount)
				protocolCarve.Mul(protocolCarve, protocolFeeBig)
				protocolCarve.Div(protocolCarve, pipsDenominator)
			}
			feeAmount.Sub(feeAmount, protocolCarve)
			amountToProtocol.Add(amountToProtocol, protocolCarve)
		}

		if liquidity.Sign() > 0 && feeAmount.Sign() > 0 {
			scratch.Mul(feeAmount, q128)
			scratch.Div(scratch, liquidity)
			addIn256(growthGlobal, growthGlobal, scratch)
		}

		if price.Cmp(nextPrice) == 0 {
			// The step ended on a tick boundary.
			if nextInitialized {
				g0, g1 := p.feeGrowthGlobal0X128, growthGlobal
				if zeroForOne {
					g0, g1 = growthGlobal, p.feeGrowthGlobal1X128
				}
				liquidityNet := p.crossTick(nextTick, g0, g1)
				if zeroForOne {
					liquidityNet.Neg(liquidityNet)
				}
				if liquidityNet.Sign() != 0 {
					if err := liquiditymath.AddDelta(liquidityNext, liquidity, liquidityNet); err != nil {
						return delta, err
					}
					liquidity.Set(liquidityNext)
				}
			}
			if zeroForOne {
				tick = nextTick - 1
			} else {
				tick = nextTick
			}
		} else if price.Cmp(stepPrice) != 0 {
			newTick, err := tickmath.GetTickAtSqrtRatio(price)
			if err != nil {
				return delta, err
			}
			tick = newTick
		}

		// A step that moved neither the price, the cursor, nor the amount
		// can never terminate.
		if price.Cmp(stepPrice) == 0 && tick == tickBefore && remaining.Cmp(remainingBefore) == 0 {
			return delta, ErrInsufficientLiquidity
		}
	}

	p.sqrtPriceX96.Set(price)
	p.tick = tick
	p.liquidity.Set(liquidity)
	if zeroForOne {
		p.feeGrowthGlobal0X128.Set(growthGlobal)
		p.protocolFeesAccrued0.Add(p.protocolFeesAccrued0, amountToProtocol)
	} else {
		p.feeGrowthGlobal1X128.Set(growthGlobal)
		p.protocolFeesAccrued1.Add(p.protocolFeesAccrued1, amountToProtocol)
	}

	// The specified side settles to what was actually consumed; the other
	// side is what the loop accumulated.
	specified := new(big.Int).Sub(params.AmountSpecified, remaining)
	if zeroForOne == exactInput {
		delta.Amount0.Set(specified)
		delta.Amount1.Set(calculated)
	} else {
		delta.Amount0.Set(calculated)
		delta.Amount1.Set(specified)
	}
	return delta, nil
}

// combineFees folds the protocol fee into the LP fee for one swap direction.
// The protocol takes its cut first and the LP fee applies to the remainder,
// so the combined rate is protocolFee + lpFee - protocolFee*lpFee/1e6.
func combineFees(protocolFee, lpFee uint64) uint64 {
	if protocolFee == 0 {
		return lpFee
	}
	return protocolFee + lpFee - protocolFee*lpFee/swapmath.MaxSwapFee
}
