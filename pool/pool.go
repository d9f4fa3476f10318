package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/amm-core-go/calculator/liquiditymath"
	"github.com/defistate/amm-core-go/calculator/sqrtpricemath"
	"github.com/defistate/amm-core-go/calculator/tickbitmap"
	"github.com/defistate/amm-core-go/calculator/tickmath"
	"github.com/defistate/amm-core-go/engine"
	"github.com/defistate/amm-core-go/position"
)

const (
	// MaxProtocolFeePips caps the protocol fee per swap direction at 0.1%.
	MaxProtocolFeePips = 1000
	// maxTickSpacing keeps word positions within the bitmap's int16 keys.
	maxTickSpacing = 32767
)

var (
	q128     = new(big.Int).Lsh(big.NewInt(1), 128)
	twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)
	// mask256 truncates wrapped additions to 256 bits.
	mask256 = new(big.Int).Sub(twoTo256, big.NewInt(1))
)

// Pool is the full state of one concentrated-liquidity pool: current price
// and tick, in-range liquidity, global fee growth, the tick ledger with its
// bitmap index, and the position ledger. A Pool is not safe for concurrent
// mutation; callers serialize writers per pool.
type Pool struct {
	key engine.PoolKey

	initialized  bool
	sqrtPriceX96 *big.Int
	tick         int64
	liquidity    *big.Int

	feeGrowthGlobal0X128 *big.Int
	feeGrowthGlobal1X128 *big.Int

	// Protocol fee in pips taken from the input side, per swap direction.
	protocolFee0 uint64 // applied when selling token0
	protocolFee1 uint64 // applied when selling token1

	protocolFeesAccrued0 *big.Int
	protocolFeesAccrued1 *big.Int

	maxLiquidityPerTick *big.Int

	ticks     map[int64]*TickInfo
	bitmap    *tickbitmap.TickBitmap
	positions *position.Ledger
}

// New creates an uninitialized pool for the given key. The pool accepts no
// operations until Initialize sets its starting price.
func New(key engine.PoolKey) (*Pool, error) {
	if key.TickSpacing < 1 || key.TickSpacing > maxTickSpacing {
		return nil, ErrInvalidTickSpacing
	}
	if key.Fee > 1_000_000 {
		return nil, ErrFeeTooLarge
	}

	return &Pool{
		key:                  key,
		sqrtPriceX96:         new(big.Int),
		liquidity:            new(big.Int),
		feeGrowthGlobal0X128: new(big.Int),
		feeGrowthGlobal1X128: new(big.Int),
		protocolFeesAccrued0: new(big.Int),
		protocolFeesAccrued1: new(big.Int),
		maxLiquidityPerTick:  liquiditymath.MaxLiquidityPerTick(key.TickSpacing),
		ticks:                make(map[int64]*TickInfo),
		bitmap:               tickbitmap.NewTickBitmap(),
		positions:            position.NewLedger(),
	}, nil
}

// Initialize sets the pool's starting price. It may be called exactly once.
func (p *Pool) Initialize(sqrtPriceX96 *big.Int) error {
	if p.initialized {
		return ErrAlreadyInitialized
	}

	tick, err := tickmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}

	p.sqrtPriceX96.Set(sqrtPriceX96)
	p.tick = tick
	p.initialized = true
	return nil
}

// checkTicks validates a range against the usable tick bounds and the pool's
// spacing.
func (p *Pool) checkTicks(tickLower, tickUpper int64) error {
	if tickLower >= tickUpper {
		return ErrInvalidTickRange
	}
	if tickLower < tickmath.MIN_TICK || tickUpper > tickmath.MAX_TICK {
		return ErrInvalidTickRange
	}
	if tickLower%p.key.TickSpacing != 0 || tickUpper%p.key.TickSpacing != 0 {
		return ErrTickNotAligned
	}
	return nil
}

// ModifyLiquidity adds or removes liquidity on a range for one position.
//
// The principal delta prices the liquidity change at the current pool price:
// additions charge the owner (negative, rounded against them) and removals
// credit the owner (positive, rounded against them). The fees delta carries
// the fees the position earned since its last touch; a zero-delta call is
// the canonical way to collect them.
func (p *Pool) ModifyLiquidity(params engine.ModifyLiquidityParams) (principal, fees engine.BalanceDelta, err error) {
	principal = engine.ZeroDelta()
	fees = engine.ZeroDelta()

	if !p.initialized {
		return principal, fees, ErrNotInitialized
	}
	if err := p.checkTicks(params.TickLower, params.TickUpper); err != nil {
		return principal, fees, err
	}

	delta := params.LiquidityDelta
	if delta == nil {
		delta = new(big.Int)
	}

	// Validate every state change up front so a failed call leaves the pool
	// untouched.
	if err := p.precheck(params, delta); err != nil {
		return principal, fees, err
	}

	var flippedLower, flippedUpper bool
	if delta.Sign() != 0 {
		flippedLower, _, err = p.updateTick(params.TickLower, delta, false)
		if err != nil {
			return principal, fees, err
		}
		flippedUpper, _, err = p.updateTick(params.TickUpper, delta, true)
		if err != nil {
			return principal, fees, err
		}
		if flippedLower {
			if err := p.bitmap.FlipTick(params.TickLower, p.key.TickSpacing); err != nil {
				return principal, fees, err
			}
		}
		if flippedUpper {
			if err := p.bitmap.FlipTick(params.TickUpper, p.key.TickSpacing); err != nil {
				return principal, fees, err
			}
		}
	}

	inside0, inside1 := p.getFeeGrowthInside(params.TickLower, params.TickUpper)
	feesOwed0, feesOwed1, err := p.positions.Update(
		params.Owner, params.TickLower, params.TickUpper, params.Salt,
		delta, inside0, inside1,
	)
	if err != nil {
		return principal, fees, err
	}
	fees = engine.NewBalanceDelta(feesOwed0, feesOwed1)

	// Ticks are cleared only after the position has consumed their growth.
	if delta.Sign() < 0 {
		if flippedLower {
			p.clearTick(params.TickLower)
		}
		if flippedUpper {
			p.clearTick(params.TickUpper)
		}
	}

	if delta.Sign() != 0 {
		if err := p.principalDelta(&principal, params.TickLower, params.TickUpper, delta); err != nil {
			return principal, fees, err
		}
	}

	return principal, fees, nil
}

// precheck rejects a liquidity change that would fail part way through.
func (p *Pool) precheck(params engine.ModifyLiquidityParams, delta *big.Int) error {
	if delta.Sign() == 0 {
		return nil
	}

	scratch := new(big.Int)
	for _, tick := range []int64{params.TickLower, params.TickUpper} {
		if err := liquiditymath.AddDelta(scratch, p.getTick(tick).LiquidityGross, delta); err != nil {
			return err
		}
		if scratch.Cmp(p.maxLiquidityPerTick) > 0 {
			return ErrTickLiquidityOverflow
		}
	}

	if delta.Sign() < 0 {
		held := new(big.Int)
		if pos := p.positions.Get(params.Owner, params.TickLower, params.TickUpper, params.Salt); pos != nil {
			held.Set(pos.Liquidity)
		}
		if err := liquiditymath.AddDelta(scratch, held, delta); err != nil {
			return err
		}
	}

	if params.TickLower <= p.tick && p.tick < params.TickUpper {
		if err := liquiditymath.AddDelta(scratch, p.liquidity, delta); err != nil {
			return err
		}
	}
	return nil
}

// principalDelta prices a liquidity change at the current pool price and
// applies the in-range liquidity update.
func (p *Pool) principalDelta(dest *engine.BalanceDelta, tickLower, tickUpper int64, delta *big.Int) error {
	lowerPrice := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(lowerPrice, tickLower); err != nil {
		return err
	}
	upperPrice := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(upperPrice, tickUpper); err != nil {
		return err
	}

	switch {
	case p.tick < tickLower:
		// All value sits in token0 until the price enters the range.
		if err := sqrtpricemath.GetAmount0DeltaSigned(dest.Amount0, lowerPrice, upperPrice, delta); err != nil {
			return err
		}
	case p.tick < tickUpper:
		if err := sqrtpricemath.GetAmount0DeltaSigned(dest.Amount0, p.sqrtPriceX96, upperPrice, delta); err != nil {
			return err
		}
		sqrtpricemath.GetAmount1DeltaSigned(dest.Amount1, lowerPrice, p.sqrtPriceX96, delta)

		next := new(big.Int)
		if err := liquiditymath.AddDelta(next, p.liquidity, delta); err != nil {
			return err
		}
		p.liquidity.Set(next)
	default:
		// All value sits in token1 once the price is above the range.
		sqrtpricemath.GetAmount1DeltaSigned(dest.Amount1, lowerPrice, upperPrice, delta)
	}
	return nil
}

// Donate credits fees to in-range liquidity providers without a swap. The
// returned delta charges the donor for both amounts.
func (p *Pool) Donate(amount0, amount1 *big.Int) (engine.BalanceDelta, error) {
	delta := engine.ZeroDelta()
	if !p.initialized {
		return delta, ErrNotInitialized
	}
	if (amount0 != nil && amount0.Sign() < 0) || (amount1 != nil && amount1.Sign() < 0) {
		return delta, ErrNegativeAmount
	}
	if p.liquidity.Sign() <= 0 {
		return delta, ErrNoLiquidity
	}

	scratch := new(big.Int)
	if amount0 != nil && amount0.Sign() > 0 {
		scratch.Mul(amount0, q128)
		scratch.Div(scratch, p.liquidity)
		addIn256(p.feeGrowthGlobal0X128, p.feeGrowthGlobal0X128, scratch)
		delta.Amount0.Neg(amount0)
	}
	if amount1 != nil && amount1.Sign() > 0 {
		scratch.Mul(amount1, q128)
		scratch.Div(scratch, p.liquidity)
		addIn256(p.feeGrowthGlobal1X128, p.feeGrowthGlobal1X128, scratch)
		delta.Amount1.Neg(amount1)
	}
	return delta, nil
}

// SetProtocolFee updates the protocol fee for each swap direction, in pips
// of the input amount.
func (p *Pool) SetProtocolFee(fee0, fee1 uint64) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if fee0 > MaxProtocolFeePips || fee1 > MaxProtocolFeePips {
		return ErrProtocolFeeTooLarge
	}
	p.protocolFee0 = fee0
	p.protocolFee1 = fee1
	return nil
}

// CollectProtocolFees removes accrued protocol fees for one of the pool's
// currencies and returns the amount taken. A nil or zero amount collects
// everything accrued for that currency.
func (p *Pool) CollectProtocolFees(currency common.Address, amount *big.Int) (*big.Int, error) {
	var accrued *big.Int
	switch currency {
	case p.key.Currency0:
		accrued = p.protocolFeesAccrued0
	case p.key.Currency1:
		accrued = p.protocolFeesAccrued1
	default:
		return nil, ErrUnknownCurrency
	}

	if amount == nil || amount.Sign() == 0 {
		collected := new(big.Int).Set(accrued)
		accrued.SetInt64(0)
		return collected, nil
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	if amount.Cmp(accrued) > 0 {
		return nil, ErrInsufficientProtocolFees
	}
	accrued.Sub(accrued, amount)
	return new(big.Int).Set(amount), nil
}

// --- State access ---

// Key returns the pool's identity.
func (p *Pool) Key() engine.PoolKey { return p.key }

// IsInitialized reports whether Initialize has run.
func (p *Pool) IsInitialized() bool { return p.initialized }

// SqrtPriceX96 returns a copy of the current price.
func (p *Pool) SqrtPriceX96() *big.Int { return new(big.Int).Set(p.sqrtPriceX96) }

// Tick returns the current tick.
func (p *Pool) Tick() int64 { return p.tick }

// Liquidity returns a copy of the current in-range liquidity.
func (p *Pool) Liquidity() *big.Int { return new(big.Int).Set(p.liquidity) }

// FeeGrowthGlobal0X128 returns a copy of the global token0 fee growth.
func (p *Pool) FeeGrowthGlobal0X128() *big.Int { return new(big.Int).Set(p.feeGrowthGlobal0X128) }

// FeeGrowthGlobal1X128 returns a copy of the global token1 fee growth.
func (p *Pool) FeeGrowthGlobal1X128() *big.Int { return new(big.Int).Set(p.feeGrowthGlobal1X128) }

// ProtocolFee returns the per-direction protocol fees in pips.
func (p *Pool) ProtocolFee() (fee0, fee1 uint64) { return p.protocolFee0, p.protocolFee1 }

// ProtocolFeesAccrued returns copies of the uncollected protocol fees.
func (p *Pool) ProtocolFeesAccrued() (amount0, amount1 *big.Int) {
	return new(big.Int).Set(p.protocolFeesAccrued0), new(big.Int).Set(p.protocolFeesAccrued1)
}

// Position returns a copy of one position, or nil if it was never created.
// Drained positions stay addressable with zero liquidity.
func (p *Pool) Position(owner common.Address, tickLower, tickUpper int64, salt common.Hash) *position.Position {
	return p.positions.Get(owner, tickLower, tickUpper, salt)
}

// PositionCount returns the number of tracked positions.
func (p *Pool) PositionCount() int { return p.positions.Len() }

// TickCount returns the number of initialized ticks.
func (p *Pool) TickCount() int { return len(p.ticks) }

// --- Snapshots ---

// Snapshot captures the pool's complete mutable state. Snapshots are
// single-use: Restore moves the captured state back into the pool.
type Snapshot struct {
	initialized  bool
	sqrtPriceX96 *big.Int
	tick         int64
	liquidity    *big.Int

	feeGrowthGlobal0X128 *big.Int
	feeGrowthGlobal1X128 *big.Int

	protocolFee0 uint64
	protocolFee1 uint64

	protocolFeesAccrued0 *big.Int
	protocolFeesAccrued1 *big.Int

	ticks     map[int64]*TickInfo
	bitmap    *tickbitmap.TickBitmap
	positions *position.Ledger
}

// Snapshot deep-copies the pool state.
func (p *Pool) Snapshot() *Snapshot {
	ticks := make(map[int64]*TickInfo, len(p.ticks))
	for t, info := range p.ticks {
		ticks[t] = info.clone()
	}
	return &Snapshot{
		initialized:          p.initialized,
		sqrtPriceX96:         new(big.Int).Set(p.sqrtPriceX96),
		tick:                 p.tick,
		liquidity:            new(big.Int).Set(p.liquidity),
		feeGrowthGlobal0X128: new(big.Int).Set(p.feeGrowthGlobal0X128),
		feeGrowthGlobal1X128: new(big.Int).Set(p.feeGrowthGlobal1X128),
		protocolFee0:         p.protocolFee0,
		protocolFee1:         p.protocolFee1,
		protocolFeesAccrued0: new(big.Int).Set(p.protocolFeesAccrued0),
		protocolFeesAccrued1: new(big.Int).Set(p.protocolFeesAccrued1),
		ticks:                ticks,
		bitmap:               p.bitmap.Clone(),
		positions:            p.positions.Clone(),
	}
}

// Restore replaces the pool state with a previously captured snapshot.
func (p *Pool) Restore(s *Snapshot) {
	p.initialized = s.initialized
	p.sqrtPriceX96 = s.sqrtPriceX96
	p.tick = s.tick
	p.liquidity = s.liquidity
	p.feeGrowthGlobal0X128 = s.feeGrowthGlobal0X128
	p.feeGrowthGlobal1X128 = s.feeGrowthGlobal1X128
	p.protocolFee0 = s.protocolFee0
	p.protocolFee1 = s.protocolFee1
	p.protocolFeesAccrued0 = s.protocolFeesAccrued0
	p.protocolFeesAccrued1 = s.protocolFeesAccrued1
	p.ticks = s.ticks
	p.bitmap = s.bitmap
	p.positions = s.positions
}

// --- Wrapping arithmetic ---

// addIn256 writes (a + b) mod 2^256 into dest.
func addIn256(dest, a, b *big.Int) {
	dest.Add(a, b)
	dest.And(dest, mask256)
}

// subIn256 writes (a - b) mod 2^256 into dest.
func subIn256(dest, a, b *big.Int) {
	dest.Sub(a, b)
	if dest.Sign() < 0 {
		dest.Add(dest, twoTo256)
	}
}
