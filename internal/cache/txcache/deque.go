package txcache

import (
	"math/big"

	"github.com/synnergy-labs/runeindex/internal/model"
)

// deque is the FIFO-by-input-index, FIFO-by-receive-order queue of input
// rune balances move_balance drains from the front (spec §4.2, GLOSSARY
// "Input rune balance").
type deque struct {
	items []model.InputRuneBalance
}

func newDeque(initial []model.InputRuneBalance) *deque {
	d := &deque{items: make([]model.InputRuneBalance, len(initial))}
	copy(d.items, initial)
	return d
}

func (d *deque) empty() bool { return len(d.items) == 0 }

func (d *deque) front() model.InputRuneBalance { return d.items[0] }

func (d *deque) popFront() { d.items = d.items[1:] }

func (d *deque) pushFront(b model.InputRuneBalance) {
	d.items = append([]model.InputRuneBalance{b}, d.items...)
}

func (d *deque) pushBack(b model.InputRuneBalance) {
	d.items = append(d.items, b)
}

// total sums every balance currently queued.
func (d *deque) total() *big.Int {
	sum := big.NewInt(0)
	for _, b := range d.items {
		sum.Add(sum, b.Amount)
	}
	return sum
}
