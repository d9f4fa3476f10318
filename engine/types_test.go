package engine

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestPoolKeyID(t *testing.T) {
	key := PoolKey{
		Currency0:   common.HexToAddress("0x01"),
		Currency1:   common.HexToAddress("0x02"),
		Fee:         3000,
		TickSpacing: 60,
	}

	// Deterministic for equal keys.
	assert.Equal(t, key.ID(), key.ID())

	// Any field change produces a different ID.
	variants := []PoolKey{
		{Currency0: common.HexToAddress("0x03"), Currency1: key.Currency1, Fee: key.Fee, TickSpacing: key.TickSpacing},
		{Currency0: key.Currency0, Currency1: common.HexToAddress("0x03"), Fee: key.Fee, TickSpacing: key.TickSpacing},
		{Currency0: key.Currency0, Currency1: key.Currency1, Fee: 500, TickSpacing: key.TickSpacing},
		{Currency0: key.Currency0, Currency1: key.Currency1, Fee: key.Fee, TickSpacing: 10},
	}
	for _, v := range variants {
		assert.NotEqual(t, key.ID(), v.ID())
	}
}

func TestBalanceDelta(t *testing.T) {
	a := NewBalanceDelta(big.NewInt(100), big.NewInt(-40))
	b := NewBalanceDelta(big.NewInt(-30), big.NewInt(40))

	sum := a.Add(b)
	assert.Equal(t, "70", sum.Amount0.String())
	assert.Equal(t, "0", sum.Amount1.String())
	assert.False(t, sum.IsZero())

	neg := sum.Negate()
	assert.Equal(t, "-70", neg.Amount0.String())
	assert.True(t, sum.Add(neg).IsZero())
	assert.True(t, ZeroDelta().IsZero())

	// The constructor copies its inputs.
	src := big.NewInt(7)
	d := NewBalanceDelta(src, nil)
	src.SetInt64(99)
	assert.Equal(t, "7", d.Amount0.String())
	assert.Equal(t, "0", d.Amount1.String())
}
