// Package config loads and validates the simulator's YAML scenario files.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/defistate/amm-core-go/calculator/tickmath"
	"github.com/defistate/amm-core-go/engine"
)

// SimulatorConfig is the root of a scenario file. Every scenario runs on its
// own pool manager; the actor opens and settles every unit of work.
type SimulatorConfig struct {
	Actor     string     `yaml:"actor"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// ActorAddress returns the parsed actor. Valid after LoadConfig.
func (c *SimulatorConfig) ActorAddress() common.Address {
	return common.HexToAddress(c.Actor)
}

// Scenario is one self-contained pool group: the pools to set up, the
// positions to open, the swaps to run in order, and an optional routing
// quote across the group's pools.
type Scenario struct {
	Name      string         `yaml:"name"`
	Pools     []PoolSpec     `yaml:"pools"`
	Positions []PositionSpec `yaml:"positions"`
	Swaps     []SwapSpec     `yaml:"swaps"`
	Quote     *QuoteSpec     `yaml:"quote,omitempty"`
}

// PoolSpec describes one pool and its starting price, given as the tick the
// pool initializes at.
type PoolSpec struct {
	Name         string `yaml:"name"`
	Currency0    string `yaml:"currency0"`
	Currency1    string `yaml:"currency1"`
	Fee          uint64 `yaml:"fee"`
	TickSpacing  int64  `yaml:"tick_spacing"`
	ProtocolFee0 uint64 `yaml:"protocol_fee0,omitempty"`
	ProtocolFee1 uint64 `yaml:"protocol_fee1,omitempty"`
	InitialTick  int64  `yaml:"initial_tick"`
}

// Key returns the pool's identity. Valid after LoadConfig.
func (p *PoolSpec) Key() engine.PoolKey {
	return engine.PoolKey{
		Currency0:   common.HexToAddress(p.Currency0),
		Currency1:   common.HexToAddress(p.Currency1),
		Fee:         p.Fee,
		TickSpacing: p.TickSpacing,
	}
}

// PositionSpec opens one liquidity position on a named pool.
type PositionSpec struct {
	Pool      string `yaml:"pool"`
	Owner     string `yaml:"owner"`
	TickLower int64  `yaml:"tick_lower"`
	TickUpper int64  `yaml:"tick_upper"`
	Liquidity string `yaml:"liquidity"`
}

// OwnerAddress returns the parsed position owner. Valid after LoadConfig.
func (p *PositionSpec) OwnerAddress() common.Address {
	return common.HexToAddress(p.Owner)
}

// LiquidityAmount returns the parsed liquidity. Valid after LoadConfig.
func (p *PositionSpec) LiquidityAmount() *big.Int {
	n, _ := new(big.Int).SetString(p.Liquidity, 10)
	return n
}

// SwapSpec runs one swap on a named pool. AmountSpecified follows the engine
// convention: negative for exact input, positive for exact output.
type SwapSpec struct {
	Pool              string `yaml:"pool"`
	ZeroForOne        bool   `yaml:"zero_for_one"`
	AmountSpecified   string `yaml:"amount_specified"`
	SqrtPriceLimitX96 string `yaml:"sqrt_price_limit_x96,omitempty"`
}

// Amount returns the parsed swap amount. Valid after LoadConfig.
func (s *SwapSpec) Amount() *big.Int {
	n, _ := new(big.Int).SetString(s.AmountSpecified, 10)
	return n
}

// PriceLimit returns the parsed price limit, or nil when unset. Valid after
// LoadConfig.
func (s *SwapSpec) PriceLimit() *big.Int {
	if s.SqrtPriceLimitX96 == "" {
		return nil
	}
	n, _ := new(big.Int).SetString(s.SqrtPriceLimitX96, 10)
	return n
}

// QuoteSpec asks for the best route between two currencies across the
// scenario's pools after all swaps have run.
type QuoteSpec struct {
	CurrencyIn  string `yaml:"currency_in"`
	CurrencyOut string `yaml:"currency_out"`
	AmountIn    string `yaml:"amount_in"`
	MaxHops     int    `yaml:"max_hops"`
}

// Amount returns the parsed quote input. Valid after LoadConfig.
func (q *QuoteSpec) Amount() *big.Int {
	n, _ := new(big.Int).SetString(q.AmountIn, 10)
	return n
}

// LoadConfig reads, parses and validates a scenario file.
func LoadConfig(path string) (*SimulatorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg SimulatorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// validate checks everything that can be checked without touching a pool:
// hex formats, integer literals, pool references and tick ranges. Pool-level
// rules (fee caps, spacing alignment) are left to the engine at run time.
func (c *SimulatorConfig) validate() error {
	if !common.IsHexAddress(c.Actor) {
		return fmt.Errorf("actor %q is not a hex address", c.Actor)
	}
	if len(c.Scenarios) == 0 {
		return errors.New("at least one scenario is required")
	}

	seenScenarios := make(map[string]bool, len(c.Scenarios))
	for i := range c.Scenarios {
		sc := &c.Scenarios[i]
		if sc.Name == "" {
			return fmt.Errorf("scenario %d: name is required", i)
		}
		if seenScenarios[sc.Name] {
			return fmt.Errorf("scenario %q: duplicate name", sc.Name)
		}
		seenScenarios[sc.Name] = true

		if err := sc.validate(); err != nil {
			return fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
	}
	return nil
}

func (s *Scenario) validate() error {
	if len(s.Pools) == 0 {
		return errors.New("at least one pool is required")
	}

	poolNames := make(map[string]bool, len(s.Pools))
	for i := range s.Pools {
		p := &s.Pools[i]
		if p.Name == "" {
			return fmt.Errorf("pool %d: name is required", i)
		}
		if poolNames[p.Name] {
			return fmt.Errorf("pool %q: duplicate name", p.Name)
		}
		poolNames[p.Name] = true

		if !common.IsHexAddress(p.Currency0) || !common.IsHexAddress(p.Currency1) {
			return fmt.Errorf("pool %q: currencies must be hex addresses", p.Name)
		}
		if p.InitialTick < tickmath.MIN_TICK || p.InitialTick > tickmath.MAX_TICK {
			return fmt.Errorf("pool %q: initial tick %d out of range", p.Name, p.InitialTick)
		}
	}

	for i := range s.Positions {
		pos := &s.Positions[i]
		if !poolNames[pos.Pool] {
			return fmt.Errorf("position %d: unknown pool %q", i, pos.Pool)
		}
		if !common.IsHexAddress(pos.Owner) {
			return fmt.Errorf("position %d: owner %q is not a hex address", i, pos.Owner)
		}
		liquidity, ok := new(big.Int).SetString(pos.Liquidity, 10)
		if !ok || liquidity.Sign() <= 0 {
			return fmt.Errorf("position %d: liquidity %q must be a positive integer", i, pos.Liquidity)
		}
	}

	for i := range s.Swaps {
		sw := &s.Swaps[i]
		if !poolNames[sw.Pool] {
			return fmt.Errorf("swap %d: unknown pool %q", i, sw.Pool)
		}
		amount, ok := new(big.Int).SetString(sw.AmountSpecified, 10)
		if !ok || amount.Sign() == 0 {
			return fmt.Errorf("swap %d: amount %q must be a nonzero integer", i, sw.AmountSpecified)
		}
		if sw.SqrtPriceLimitX96 != "" {
			limit, ok := new(big.Int).SetString(sw.SqrtPriceLimitX96, 10)
			if !ok || limit.Sign() <= 0 {
				return fmt.Errorf("swap %d: price limit %q must be a positive integer", i, sw.SqrtPriceLimitX96)
			}
		}
	}

	if q := s.Quote; q != nil {
		if !common.IsHexAddress(q.CurrencyIn) || !common.IsHexAddress(q.CurrencyOut) {
			return errors.New("quote: currencies must be hex addresses")
		}
		amount, ok := new(big.Int).SetString(q.AmountIn, 10)
		if !ok || amount.Sign() <= 0 {
			return fmt.Errorf("quote: amount %q must be a positive integer", q.AmountIn)
		}
		if q.MaxHops < 1 {
			return errors.New("quote: max_hops must be at least 1")
		}
	}
	return nil
}
