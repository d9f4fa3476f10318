package settlement

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnsettledBalance is returned when a ledger is closed while any account
// still owes or is owed tokens.
var ErrUnsettledBalance = errors.New("unsettled balance")

// AccountKey identifies one balance: what one actor is owed in one currency.
type AccountKey struct {
	Actor    common.Address
	Currency common.Address
}

// Entry is an outstanding balance. A positive amount is owed to the actor by
// the pool system; a negative amount is owed by the actor.
type Entry struct {
	Actor    common.Address
	Currency common.Address
	Amount   *big.Int
}

// Ledger accumulates the token obligations produced by pool operations over
// one unit of work. It is transient: every balance must return to zero
// before the ledger closes.
type Ledger struct {
	balances map[AccountKey]*big.Int
	nonzero  int
}

// NewLedger returns an empty settlement ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[AccountKey]*big.Int)}
}

// Post adjusts an actor's balance in a currency by delta, maintaining the
// count of open balances. Posting a zero delta changes nothing.
func (l *Ledger) Post(actor, currency common.Address, delta *big.Int) {
	if delta == nil || delta.Sign() == 0 {
		return
	}

	key := AccountKey{Actor: actor, Currency: currency}
	bal, ok := l.balances[key]
	if !ok {
		l.balances[key] = new(big.Int).Set(delta)
		l.nonzero++
		return
	}

	bal.Add(bal, delta)
	if bal.Sign() == 0 {
		delete(l.balances, key)
		l.nonzero--
	}
}

// Balance returns a copy of the actor's current balance in a currency.
func (l *Ledger) Balance(actor, currency common.Address) *big.Int {
	if bal, ok := l.balances[AccountKey{Actor: actor, Currency: currency}]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// NonzeroCount returns the number of open balances.
func (l *Ledger) NonzeroCount() int {
	return l.nonzero
}

// Outstanding lists every open balance, ordered by actor then currency.
func (l *Ledger) Outstanding() []Entry {
	entries := make([]Entry, 0, len(l.balances))
	for key, bal := range l.balances {
		entries = append(entries, Entry{
			Actor:    key.Actor,
			Currency: key.Currency,
			Amount:   new(big.Int).Set(bal),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := bytes.Compare(entries[i].Actor[:], entries[j].Actor[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(entries[i].Currency[:], entries[j].Currency[:]) < 0
	})
	return entries
}

// CloseAndVerify checks that every balance has been settled. On success the
// ledger is reset and ready for the next unit of work; on failure it is left
// untouched and the error names each open balance.
func (l *Ledger) CloseAndVerify() error {
	if l.nonzero == 0 {
		l.balances = make(map[AccountKey]*big.Int)
		return nil
	}

	var sb strings.Builder
	for i, e := range l.Outstanding() {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "actor=%s currency=%s amount=%s", e.Actor.Hex(), e.Currency.Hex(), e.Amount)
	}
	return fmt.Errorf("%w: %d open: %s", ErrUnsettledBalance, l.nonzero, sb.String())
}
