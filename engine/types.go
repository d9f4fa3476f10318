package engine

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/blake3"
)

// PoolID uniquely identifies a pool, derived from its key.
type PoolID common.Hash

func (id PoolID) String() string {
	return common.Hash(id).Hex()
}

// MarshalText renders the ID as a 0x-prefixed hex string.
func (id PoolID) MarshalText() ([]byte, error) {
	return common.Hash(id).MarshalText()
}

// PoolKey is the value identity of a pool. Two pools with equal keys are the
// same pool.
type PoolKey struct {
	Currency0   common.Address `json:"currency0"` // sorted lower
	Currency1   common.Address `json:"currency1"`
	Fee         uint64         `json:"fee"` // LP fee in pips
	TickSpacing int64          `json:"tickSpacing"`
}

// ID derives the pool identifier from the packed key fields.
func (k PoolKey) ID() PoolID {
	var buf [56]byte
	copy(buf[0:20], k.Currency0[:])
	copy(buf[20:40], k.Currency1[:])
	binary.BigEndian.PutUint64(buf[40:48], k.Fee)
	binary.BigEndian.PutUint64(buf[48:56], uint64(k.TickSpacing))
	return PoolID(blake3.Sum256(buf[:]))
}

// BalanceDelta is a pair of signed token amounts produced by a pool
// operation. Positive amounts are owed to the actor by the pool; negative
// amounts are owed by the actor to the pool.
type BalanceDelta struct {
	Amount0 *big.Int `json:"amount0"`
	Amount1 *big.Int `json:"amount1"`
}

// NewBalanceDelta copies both amounts into a fresh delta. Nil amounts are
// treated as zero.
func NewBalanceDelta(amount0, amount1 *big.Int) BalanceDelta {
	d := BalanceDelta{Amount0: new(big.Int), Amount1: new(big.Int)}
	if amount0 != nil {
		d.Amount0.Set(amount0)
	}
	if amount1 != nil {
		d.Amount1.Set(amount1)
	}
	return d
}

// ZeroDelta returns a delta with both amounts zero.
func ZeroDelta() BalanceDelta {
	return BalanceDelta{Amount0: new(big.Int), Amount1: new(big.Int)}
}

// Add returns the component-wise sum of two deltas.
func (d BalanceDelta) Add(o BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Add(d.Amount0, o.Amount0),
		Amount1: new(big.Int).Add(d.Amount1, o.Amount1),
	}
}

// Negate returns the delta with both signs flipped.
func (d BalanceDelta) Negate() BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Neg(d.Amount0),
		Amount1: new(big.Int).Neg(d.Amount1),
	}
}

// IsZero reports whether both amounts are zero.
func (d BalanceDelta) IsZero() bool {
	return d.Amount0.Sign() == 0 && d.Amount1.Sign() == 0
}

// SwapParams describes one swap. A negative AmountSpecified is an exact
// input of the sold token; a positive AmountSpecified is an exact output of
// the bought token. SqrtPriceLimitX96 bounds how far the execution may move
// the pool price.
type SwapParams struct {
	ZeroForOne        bool     `json:"zeroForOne"`
	AmountSpecified   *big.Int `json:"amountSpecified"`
	SqrtPriceLimitX96 *big.Int `json:"sqrtPriceLimitX96"`
}

// ModifyLiquidityParams describes a liquidity change for one position.
// Positions are keyed by owner, range and salt, so the same owner can hold
// several independent positions on one range.
type ModifyLiquidityParams struct {
	Owner          common.Address `json:"owner"`
	TickLower      int64          `json:"tickLower"`
	TickUpper      int64          `json:"tickUpper"`
	LiquidityDelta *big.Int       `json:"liquidityDelta"`
	Salt           common.Hash    `json:"salt"`
}

// Hooks are per-pool extension points invoked around state transitions.
// BeforeSwap may override the LP fee for that swap only; the other hooks
// observe the computed deltas. A before-hook error stops the operation and a
// hook error anywhere fails the enclosing unit of work.
type Hooks interface {
	BeforeSwap(id PoolID, params SwapParams) (feeOverride uint64, hasOverride bool, err error)
	AfterSwap(id PoolID, params SwapParams, delta BalanceDelta) error
	BeforeModifyLiquidity(id PoolID, params ModifyLiquidityParams) error
	AfterModifyLiquidity(id PoolID, params ModifyLiquidityParams, principal, fees BalanceDelta) error
}
