package position

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/blake3"

	"github.com/defistate/amm-core-go/calculator/liquiditymath"
)

var (
	// q128 scales fee growth: growth values carry 128 fractional bits.
	q128 = new(big.Int).Lsh(big.NewInt(1), 128)
	// twoTo256 is the modulus for wrapping fee-growth arithmetic.
	twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)
)

// Key identifies a position by the hash of owner, range and salt.
type Key [32]byte

// NewKey derives the position key. Distinct salts give the same owner
// independent positions on the same range.
func NewKey(owner common.Address, tickLower, tickUpper int64, salt common.Hash) Key {
	var buf [68]byte
	copy(buf[0:20], owner[:])
	binary.BigEndian.PutUint64(buf[20:28], uint64(tickLower))
	binary.BigEndian.PutUint64(buf[28:36], uint64(tickUpper))
	copy(buf[36:68], salt[:])
	return Key(blake3.Sum256(buf[:]))
}

// Position tracks one owner's liquidity on one range, together with the fee
// growth inside the range at the owner's last touch.
type Position struct {
	Liquidity                *big.Int
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
}

func newPosition() *Position {
	return &Position{
		Liquidity:                new(big.Int),
		FeeGrowthInside0LastX128: new(big.Int),
		FeeGrowthInside1LastX128: new(big.Int),
	}
}

func (p *Position) clone() *Position {
	return &Position{
		Liquidity:                new(big.Int).Set(p.Liquidity),
		FeeGrowthInside0LastX128: new(big.Int).Set(p.FeeGrowthInside0LastX128),
		FeeGrowthInside1LastX128: new(big.Int).Set(p.FeeGrowthInside1LastX128),
	}
}

// Ledger holds every position of one pool. Positions whose liquidity returns
// to zero are kept: their fee snapshots stay addressable, and fees owed on a
// later touch are zero because entitlement accrues against liquidity held.
type Ledger struct {
	positions map[Key]*Position
}

// NewLedger returns an empty position ledger.
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[Key]*Position)}
}

// Get returns a copy of the position, or nil if it does not exist.
func (l *Ledger) Get(owner common.Address, tickLower, tickUpper int64, salt common.Hash) *Position {
	p, ok := l.positions[NewKey(owner, tickLower, tickUpper, salt)]
	if !ok {
		return nil
	}
	return p.clone()
}

// Len returns the number of tracked positions, including drained ones.
func (l *Ledger) Len() int {
	return len(l.positions)
}

// Update applies a liquidity delta to a position and settles the fees it has
// earned since its last touch. The fee entitlement is computed against the
// liquidity held before the delta, so fees stop accruing the moment
// liquidity is handed back. Updating a non-existent position with a zero
// delta is a no-op that owes nothing.
func (l *Ledger) Update(
	owner common.Address,
	tickLower, tickUpper int64,
	salt common.Hash,
	liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *big.Int,
) (feesOwed0, feesOwed1 *big.Int, err error) {
	key := NewKey(owner, tickLower, tickUpper, salt)
	p, ok := l.positions[key]
	if !ok {
		if liquidityDelta.Sign() == 0 {
			return new(big.Int), new(big.Int), nil
		}
		p = newPosition()
		l.positions[key] = p
	}

	feesOwed0 = growthToFees(feeGrowthInside0X128, p.FeeGrowthInside0LastX128, p.Liquidity)
	feesOwed1 = growthToFees(feeGrowthInside1X128, p.FeeGrowthInside1LastX128, p.Liquidity)

	next := new(big.Int)
	if err := liquiditymath.AddDelta(next, p.Liquidity, liquidityDelta); err != nil {
		return nil, nil, err
	}
	p.Liquidity.Set(next)
	p.FeeGrowthInside0LastX128.Set(feeGrowthInside0X128)
	p.FeeGrowthInside1LastX128.Set(feeGrowthInside1X128)

	return feesOwed0, feesOwed1, nil
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{positions: make(map[Key]*Position, len(l.positions))}
	for k, p := range l.positions {
		c.positions[k] = p.clone()
	}
	return c
}

// growthToFees converts a fee-growth interval into token amounts for the
// given liquidity. Growth subtraction wraps modulo 2^256, which keeps the
// interval correct even after the global counters overflow.
func growthToFees(now, last, liquidity *big.Int) *big.Int {
	diff := new(big.Int).Sub(now, last)
	if diff.Sign() < 0 {
		diff.Add(diff, twoTo256)
	}
	fees := diff.Mul(diff, liquidity)
	return fees.Div(fees, q128)
}
