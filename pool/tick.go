package pool

import (
	"math/big"

	"github.com/defistate/amm-core-go/calculator/liquiditymath"
)

// TickInfo carries the liquidity bookkeeping for one initialized tick.
// LiquidityGross is the total liquidity referencing the tick from either
// side; LiquidityNet is the amount added to in-range liquidity when the tick
// is crossed left to right. The fee-growth-outside counters record, by
// convention, all growth on the far side of the tick relative to the current
// price.
type TickInfo struct {
	LiquidityGross        *big.Int `json:"liquidityGross"`
	LiquidityNet          *big.Int `json:"liquidityNet"`
	FeeGrowthOutside0X128 *big.Int `json:"feeGrowthOutside0X128"`
	FeeGrowthOutside1X128 *big.Int `json:"feeGrowthOutside1X128"`
}

func newTickInfo() *TickInfo {
	return &TickInfo{
		LiquidityGross:        new(big.Int),
		LiquidityNet:          new(big.Int),
		FeeGrowthOutside0X128: new(big.Int),
		FeeGrowthOutside1X128: new(big.Int),
	}
}

func (t *TickInfo) clone() *TickInfo {
	return &TickInfo{
		LiquidityGross:        new(big.Int).Set(t.LiquidityGross),
		LiquidityNet:          new(big.Int).Set(t.LiquidityNet),
		FeeGrowthOutside0X128: new(big.Int).Set(t.FeeGrowthOutside0X128),
		FeeGrowthOutside1X128: new(big.Int).Set(t.FeeGrowthOutside1X128),
	}
}

// getTick returns the tick's info, or a zero view for ticks that carry no
// liquidity. The zero view must not be mutated.
func (p *Pool) getTick(tick int64) *TickInfo {
	if info, ok := p.ticks[tick]; ok {
		return info
	}
	return zeroTick
}

var zeroTick = newTickInfo()

// updateTick applies a liquidity delta to one side of a range. It reports
// whether the tick changed between carrying liquidity and not, and the gross
// liquidity after the change. When a tick first gains liquidity at or below
// the current price, its outside growth is seeded from the globals so that
// growth-inside arithmetic stays consistent.
func (p *Pool) updateTick(tick int64, liquidityDelta *big.Int, upper bool) (flipped bool, grossAfter *big.Int, err error) {
	info, exists := p.ticks[tick]
	if !exists {
		info = newTickInfo()
	}

	grossBefore := info.LiquidityGross
	grossAfter = new(big.Int)
	if err := liquiditymath.AddDelta(grossAfter, grossBefore, liquidityDelta); err != nil {
		return false, nil, err
	}

	flipped = (grossAfter.Sign() == 0) != (grossBefore.Sign() == 0)

	if grossBefore.Sign() == 0 {
		if tick <= p.tick {
			info.FeeGrowthOutside0X128.Set(p.feeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128.Set(p.feeGrowthGlobal1X128)
		}
	}

	info.LiquidityGross.Set(grossAfter)
	if upper {
		info.LiquidityNet.Sub(info.LiquidityNet, liquidityDelta)
	} else {
		info.LiquidityNet.Add(info.LiquidityNet, liquidityDelta)
	}

	if !exists {
		p.ticks[tick] = info
	}
	return flipped, grossAfter, nil
}

// clearTick removes a tick that no longer carries liquidity.
func (p *Pool) clearTick(tick int64) {
	delete(p.ticks, tick)
}

// crossTick flips the tick's outside growth to the other side of the price
// and returns a copy of the net liquidity to apply. feeGrowthGlobal0 and 1
// must be the growth values current at the moment of crossing, including any
// growth accumulated earlier in the same swap.
func (p *Pool) crossTick(tick int64, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int) *big.Int {
	info := p.getTick(tick)
	if info == zeroTick {
		return new(big.Int)
	}
	subIn256(info.FeeGrowthOutside0X128, feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	subIn256(info.FeeGrowthOutside1X128, feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	return new(big.Int).Set(info.LiquidityNet)
}

// getFeeGrowthInside computes the fee growth accumulated inside a range,
// split three ways around the current tick. All arithmetic wraps modulo
// 2^256; an individual result can exceed the current global counter after a
// wrap and still produce correct position fees.
func (p *Pool) getFeeGrowthInside(tickLower, tickUpper int64) (inside0, inside1 *big.Int) {
	lower := p.getTick(tickLower)
	upper := p.getTick(tickUpper)

	inside0 = new(big.Int)
	inside1 = new(big.Int)

	switch {
	case p.tick < tickLower:
		subIn256(inside0, lower.FeeGrowthOutside0X128, upper.FeeGrowthOutside0X128)
		subIn256(inside1, lower.FeeGrowthOutside1X128, upper.FeeGrowthOutside1X128)
	case p.tick >= tickUpper:
		subIn256(inside0, upper.FeeGrowthOutside0X128, lower.FeeGrowthOutside0X128)
		subIn256(inside1, upper.FeeGrowthOutside1X128, lower.FeeGrowthOutside1X128)
	default:
		subIn256(inside0, p.feeGrowthGlobal0X128, lower.FeeGrowthOutside0X128)
		subIn256(inside0, inside0, upper.FeeGrowthOutside0X128)
		subIn256(inside1, p.feeGrowthGlobal1X128, lower.FeeGrowthOutside1X128)
		subIn256(inside1, inside1, upper.FeeGrowthOutside1X128)
	}
	return inside0, inside1
}
