package poolmanager

import (
	"math/big"

	"github.com/defistate/amm-core-go/engine"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PoolConfig is the registry collaborator's description of one pool: its
// identity plus the optional hooks and protocol fee settings it was created
// with. Everything here is immutable for the pool's lifetime except the
// protocol fees, which the pool itself may adjust after initialization.
type PoolConfig struct {
	Key engine.PoolKey

	// Hooks, when non-nil, receive the extension-point callbacks for every
	// operation on this pool.
	Hooks engine.Hooks

	// Protocol fee in pips of the input amount, per swap direction. Applied
	// when the pool is price-initialized.
	ProtocolFee0 uint64 // taken when selling currency0
	ProtocolFee1 uint64 // taken when selling currency1
}

// View is an immutable snapshot of every registered pool, ordered by pool ID.
type View struct {
	Pools []PoolView `json:"pools"`
}

// Pool returns the view of one pool by ID.
func (v *View) Pool(id engine.PoolID) (PoolView, bool) {
	for _, pv := range v.Pools {
		if pv.ID == id {
			return pv, true
		}
	}
	return PoolView{}, false
}

// PoolView is the read-only state of a single pool at snapshot time.
type PoolView struct {
	ID          engine.PoolID  `json:"id"`
	Key         engine.PoolKey `json:"key"`
	Initialized bool           `json:"initialized"`

	SqrtPriceX96 *big.Int `json:"sqrtPriceX96"`
	Tick         int64    `json:"tick"`
	Liquidity    *big.Int `json:"liquidity"`

	FeeGrowthGlobal0X128 *big.Int `json:"feeGrowthGlobal0X128"`
	FeeGrowthGlobal1X128 *big.Int `json:"feeGrowthGlobal1X128"`
	ProtocolFeesAccrued0 *big.Int `json:"protocolFeesAccrued0"`
	ProtocolFeesAccrued1 *big.Int `json:"protocolFeesAccrued1"`

	TickCount     int `json:"tickCount"`
	PositionCount int `json:"positionCount"`
}

func (pv PoolView) clone() PoolView {
	c := pv
	c.SqrtPriceX96 = new(big.Int).Set(pv.SqrtPriceX96)
	c.Liquidity = new(big.Int).Set(pv.Liquidity)
	c.FeeGrowthGlobal0X128 = new(big.Int).Set(pv.FeeGrowthGlobal0X128)
	c.FeeGrowthGlobal1X128 = new(big.Int).Set(pv.FeeGrowthGlobal1X128)
	c.ProtocolFeesAccrued0 = new(big.Int).Set(pv.ProtocolFeesAccrued0)
	c.ProtocolFeesAccrued1 = new(big.Int).Set(pv.ProtocolFeesAccrued1)
	return c
}
