package poolmanager

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/amm-core-go/engine"
	"github.com/defistate/amm-core-go/pool"
	"github.com/defistate/amm-core-go/settlement"
)

var (
	ErrPoolNotFound = errors.New("pool not found")
	ErrPoolExists   = errors.New("pool already registered")
	// ErrUnitOfWorkOpen rejects a nested or overlapping Execute, and any
	// registration or initialization attempted while a unit of work runs.
	ErrUnitOfWorkOpen = errors.New("unit of work already open")
	// ErrUnitOfWorkClosed is returned when a UnitOfWork handle is used after
	// its Execute call returned.
	ErrUnitOfWorkClosed = errors.New("unit of work closed")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
)

// Config holds the manager's dependencies.
type Config struct {
	Logger   Logger                // Required for logging.
	Registry prometheus.Registerer // Required for metrics.
}

// validate checks if the configuration is valid, ensuring required dependencies are present.
func (c *Config) validate() error {
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	return nil
}

// poolEntry pairs a pool with the hooks and pending protocol fees it was
// registered with. Protocol fees apply once the pool is price-initialized.
type poolEntry struct {
	pool         *pool.Pool
	hooks        engine.Hooks
	protocolFee0 uint64
	protocolFee1 uint64
}

// Manager owns a set of pools and runs all mutations against them inside
// non-reentrant units of work. Every token obligation an operation produces
// is netted in a settlement ledger scoped to the unit of work, and the unit
// of work commits only when that ledger returns to zero; otherwise every
// touched pool is rolled back to its pre-execution state.
//
// Mutating entry points (RegisterPool, InitializePool, Execute) belong to a
// single owning goroutine, matching the single-writer-per-pool model. View is
// safe for concurrent use at any time.
type Manager struct {
	logger  Logger
	metrics *Metrics

	mu    sync.RWMutex
	pools map[engine.PoolID]*poolEntry

	executing  atomic.Bool
	cachedView atomic.Pointer[View]
}

// New constructs a manager from a configuration, returning an error if the
// config is invalid.
func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.Registry),
		pools:   make(map[engine.PoolID]*poolEntry),
	}
	m.cachedView.Store(&View{})
	return m, nil
}

// RegisterPool adds a pool under the ID derived from its key. The pool
// accepts no operations until InitializePool sets its starting price.
func (m *Manager) RegisterPool(cfg PoolConfig) (engine.PoolID, error) {
	if m.executing.Load() {
		return engine.PoolID{}, ErrUnitOfWorkOpen
	}
	if cfg.ProtocolFee0 > pool.MaxProtocolFeePips || cfg.ProtocolFee1 > pool.MaxProtocolFeePips {
		return engine.PoolID{}, pool.ErrProtocolFeeTooLarge
	}

	p, err := pool.New(cfg.Key)
	if err != nil {
		return engine.PoolID{}, err
	}
	id := cfg.Key.ID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pools[id]; exists {
		return engine.PoolID{}, fmt.Errorf("%w: %s", ErrPoolExists, id)
	}
	m.pools[id] = &poolEntry{
		pool:         p,
		hooks:        cfg.Hooks,
		protocolFee0: cfg.ProtocolFee0,
		protocolFee1: cfg.ProtocolFee1,
	}
	m.metrics.poolsRegistered.Inc()
	m.rebuildView()

	m.logger.Info("pool registered",
		"pool", id,
		"currency0", cfg.Key.Currency0.Hex(),
		"currency1", cfg.Key.Currency1.Hex(),
		"fee", cfg.Key.Fee,
		"tickSpacing", cfg.Key.TickSpacing,
	)
	return id, nil
}

// InitializePool sets a pool's starting price, exactly once, outside any unit
// of work. The registered protocol fees take effect here. Returns the tick
// corresponding to the initial price.
func (m *Manager) InitializePool(id engine.PoolID, sqrtPriceX96 *big.Int) (int64, error) {
	if m.executing.Load() {
		return 0, ErrUnitOfWorkOpen
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.pools[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	if err := e.pool.Initialize(sqrtPriceX96); err != nil {
		return 0, err
	}
	if e.protocolFee0 > 0 || e.protocolFee1 > 0 {
		if err := e.pool.SetProtocolFee(e.protocolFee0, e.protocolFee1); err != nil {
			return 0, err
		}
	}
	m.rebuildView()

	tick := e.pool.Tick()
	m.logger.Info("pool initialized", "pool", id, "tick", tick)
	return tick, nil
}

// Execute runs fn inside a fresh unit of work on behalf of actor. It is the
// manager's single mutating entry point: overlapping or nested calls are
// rejected. When fn returns nil and every balance in the settlement ledger
// has been reconciled, the new pool states commit; on any error, including an
// unsettled ledger, every touched pool is restored and the error is returned.
func (m *Manager) Execute(actor common.Address, fn func(*UnitOfWork) error) error {
	if fn == nil {
		return errors.New("execute: fn cannot be nil")
	}
	if !m.executing.CompareAndSwap(false, true) {
		return ErrUnitOfWorkOpen
	}
	defer m.executing.Store(false)

	timer := prometheus.NewTimer(m.metrics.unitOfWorkDuration)
	defer timer.ObserveDuration()

	uow := &UnitOfWork{
		id:      uuid.New(),
		actor:   actor,
		manager: m,
		ledger:  settlement.NewLedger(),
		touched: make(map[engine.PoolID]*touchedPool),
	}
	m.logger.Debug("unit of work opened", "uow", uow.id, "actor", actor.Hex())

	err := fn(uow)
	if err == nil {
		if err = uow.ledger.CloseAndVerify(); err != nil {
			m.metrics.settlementFailures.Inc()
		}
	}
	uow.closed = true

	if err != nil {
		uow.rollback()
		m.metrics.unitsOfWork.WithLabelValues("rolled_back").Inc()
		m.logger.Warn("unit of work rolled back",
			"uow", uow.id, "actor", actor.Hex(), "error", err)
		return err
	}

	if len(uow.touched) > 0 {
		m.mu.RLock()
		m.rebuildView()
		m.mu.RUnlock()
	}
	m.metrics.unitsOfWork.WithLabelValues("committed").Inc()
	m.logger.Debug("unit of work committed",
		"uow", uow.id, "actor", actor.Hex(), "operations", uow.operations)
	return nil
}

// PoolCount returns the number of registered pools.
func (m *Manager) PoolCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pools)
}

// View returns a deep copy of the latest committed snapshot of every pool.
// It never observes a unit of work in progress.
func (m *Manager) View() *View {
	cached := m.cachedView.Load()
	if cached == nil {
		return &View{}
	}

	out := &View{Pools: make([]PoolView, len(cached.Pools))}
	for i, pv := range cached.Pools {
		out.Pools[i] = pv.clone()
	}
	return out
}

// rebuildView regenerates the cached snapshot. Callers must hold m.mu (read
// or write) and be past any in-flight pool mutation.
func (m *Manager) rebuildView() {
	pools := make([]PoolView, 0, len(m.pools))
	for id, e := range m.pools {
		p := e.pool
		fees0, fees1 := p.ProtocolFeesAccrued()
		pools = append(pools, PoolView{
			ID:                   id,
			Key:                  p.Key(),
			Initialized:          p.IsInitialized(),
			SqrtPriceX96:         p.SqrtPriceX96(),
			Tick:                 p.Tick(),
			Liquidity:            p.Liquidity(),
			FeeGrowthGlobal0X128: p.FeeGrowthGlobal0X128(),
			FeeGrowthGlobal1X128: p.FeeGrowthGlobal1X128(),
			ProtocolFeesAccrued0: fees0,
			ProtocolFeesAccrued1: fees1,
			TickCount:            p.TickCount(),
			PositionCount:        p.PositionCount(),
		})
	}
	sort.Slice(pools, func(i, j int) bool {
		return bytes.Compare(pools[i].ID[:], pools[j].ID[:]) < 0
	})
	m.cachedView.Store(&View{Pools: pools})
}
