package poolmanager

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/amm-core-go/engine"
	"github.com/defistate/amm-core-go/pool"
	"github.com/defistate/amm-core-go/settlement"
)

// touchedPool remembers the state a pool had before its first mutation in
// this unit of work, for rollback.
type touchedPool struct {
	entry    *poolEntry
	snapshot *pool.Snapshot
}

// UnitOfWork is the handle passed to Execute's callback. Every pool mutation
// posts its balance deltas into the settlement ledger against the unit's
// actor; Settle and Take reconcile them. The handle is valid only for the
// duration of the callback.
type UnitOfWork struct {
	id      uuid.UUID
	actor   common.Address
	manager *Manager
	ledger  *settlement.Ledger
	touched map[engine.PoolID]*touchedPool

	operations int
	closed     bool
}

// ID returns the unit of work's correlation ID.
func (u *UnitOfWork) ID() uuid.UUID { return u.id }

// Actor returns the account this unit of work settles against.
func (u *UnitOfWork) Actor() common.Address { return u.actor }

// touch resolves a pool and captures its pre-mutation snapshot on first use.
func (u *UnitOfWork) touch(id engine.PoolID) (*poolEntry, error) {
	if u.closed {
		return nil, ErrUnitOfWorkClosed
	}
	if t, ok := u.touched[id]; ok {
		return t.entry, nil
	}

	u.manager.mu.RLock()
	e, ok := u.manager.pools[id]
	u.manager.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}

	u.touched[id] = &touchedPool{entry: e, snapshot: e.pool.Snapshot()}
	return e, nil
}

// rollback restores every touched pool to its pre-execution state.
func (u *UnitOfWork) rollback() {
	for _, t := range u.touched {
		t.entry.pool.Restore(t.snapshot)
	}
}

// post nets a pool operation's delta into the ledger against the actor.
func (u *UnitOfWork) post(key engine.PoolKey, delta engine.BalanceDelta) {
	u.ledger.Post(u.actor, key.Currency0, delta.Amount0)
	u.ledger.Post(u.actor, key.Currency1, delta.Amount1)
}

// Swap executes a swap on one pool. The BeforeSwap hook may substitute the
// LP fee for this call; AfterSwap observes the resulting delta. The delta is
// posted against the actor: its negative side must be settled and its
// positive side taken before the unit of work closes.
func (u *UnitOfWork) Swap(id engine.PoolID, params engine.SwapParams) (engine.BalanceDelta, error) {
	e, err := u.touch(id)
	if err != nil {
		return engine.ZeroDelta(), err
	}

	lpFee := e.pool.Key().Fee
	if e.hooks != nil {
		override, hasOverride, err := e.hooks.BeforeSwap(id, params)
		if err != nil {
			return engine.ZeroDelta(), fmt.Errorf("before-swap hook: %w", err)
		}
		if hasOverride {
			lpFee = override
		}
	}

	timer := prometheus.NewTimer(u.manager.metrics.operationDuration.WithLabelValues("swap"))
	delta, err := e.pool.SwapWithLPFee(params, lpFee)
	timer.ObserveDuration()
	if err != nil {
		return delta, err
	}

	u.post(e.pool.Key(), delta)
	u.countOp("swap")

	if e.hooks != nil {
		if err := e.hooks.AfterSwap(id, params, delta); err != nil {
			return delta, fmt.Errorf("after-swap hook: %w", err)
		}
	}

	u.manager.logger.Debug("swap executed",
		"uow", u.id, "pool", id,
		"zeroForOne", params.ZeroForOne,
		"amount0", delta.Amount0, "amount1", delta.Amount1,
	)
	return delta, nil
}

// ModifyLiquidity changes one position's liquidity on one pool. The returned
// principal prices the change at the current pool price and fees carries the
// position's accrued entitlement; both are posted against the actor.
func (u *UnitOfWork) ModifyLiquidity(id engine.PoolID, params engine.ModifyLiquidityParams) (principal, fees engine.BalanceDelta, err error) {
	principal = engine.ZeroDelta()
	fees = engine.ZeroDelta()

	e, err := u.touch(id)
	if err != nil {
		return principal, fees, err
	}

	if e.hooks != nil {
		if err := e.hooks.BeforeModifyLiquidity(id, params); err != nil {
			return principal, fees, fmt.Errorf("before-modify-liquidity hook: %w", err)
		}
	}

	timer := prometheus.NewTimer(u.manager.metrics.operationDuration.WithLabelValues("modify_liquidity"))
	principal, fees, err = e.pool.ModifyLiquidity(params)
	timer.ObserveDuration()
	if err != nil {
		return principal, fees, err
	}

	u.post(e.pool.Key(), principal.Add(fees))
	u.countOp("modify_liquidity")

	if e.hooks != nil {
		if err := e.hooks.AfterModifyLiquidity(id, params, principal, fees); err != nil {
			return principal, fees, fmt.Errorf("after-modify-liquidity hook: %w", err)
		}
	}

	u.manager.logger.Debug("liquidity modified",
		"uow", u.id, "pool", id,
		"owner", params.Owner.Hex(),
		"tickLower", params.TickLower, "tickUpper", params.TickUpper,
		"liquidityDelta", params.LiquidityDelta,
	)
	return principal, fees, nil
}

// Donate credits fees to a pool's in-range liquidity providers and charges
// the actor for the donated amounts.
func (u *UnitOfWork) Donate(id engine.PoolID, amount0, amount1 *big.Int) (engine.BalanceDelta, error) {
	e, err := u.touch(id)
	if err != nil {
		return engine.ZeroDelta(), err
	}

	timer := prometheus.NewTimer(u.manager.metrics.operationDuration.WithLabelValues("donate"))
	delta, err := e.pool.Donate(amount0, amount1)
	timer.ObserveDuration()
	if err != nil {
		return delta, err
	}

	u.post(e.pool.Key(), delta)
	u.countOp("donate")

	u.manager.logger.Debug("donation applied",
		"uow", u.id, "pool", id, "amount0", amount0, "amount1", amount1)
	return delta, nil
}

// CollectProtocolFees moves accrued protocol fees out of a pool and credits
// them to the actor. A nil or zero amount collects everything accrued for
// the currency.
func (u *UnitOfWork) CollectProtocolFees(id engine.PoolID, currency common.Address, amount *big.Int) (*big.Int, error) {
	e, err := u.touch(id)
	if err != nil {
		return nil, err
	}

	collected, err := e.pool.CollectProtocolFees(currency, amount)
	if err != nil {
		return nil, err
	}

	u.ledger.Post(u.actor, currency, collected)
	u.countOp("collect_protocol_fees")

	u.manager.logger.Debug("protocol fees collected",
		"uow", u.id, "pool", id, "currency", currency.Hex(), "amount", collected)
	return collected, nil
}

// Settle records that the actor paid amount of a currency in, reducing what
// they owe.
func (u *UnitOfWork) Settle(currency common.Address, amount *big.Int) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}
	if amount != nil && amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	u.ledger.Post(u.actor, currency, amount)
	u.countOp("settle")
	return nil
}

// Take records that the actor withdrew amount of a currency, consuming what
// they are owed.
func (u *UnitOfWork) Take(currency common.Address, amount *big.Int) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}
	if amount != nil && amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	neg := new(big.Int)
	if amount != nil {
		neg.Neg(amount)
	}
	u.ledger.Post(u.actor, currency, neg)
	u.countOp("take")
	return nil
}

// Balance returns the actor's current net balance in a currency: negative
// when the actor owes the pools, positive when the pools owe the actor.
func (u *UnitOfWork) Balance(currency common.Address) *big.Int {
	return u.ledger.Balance(u.actor, currency)
}

func (u *UnitOfWork) countOp(op string) {
	u.manager.metrics.operations.WithLabelValues(op).Inc()
	u.operations++
}
