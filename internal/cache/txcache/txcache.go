// Package txcache implements the per-transaction allocation state machine:
// given a tx's resolved input rune balances and its decoded artifact, it
// works out who ends up owning what and emits the resulting ledger
// entries in event_index order (spec §4.2).
package txcache

import (
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/runeindex/internal/model"
)

// Cache is one transaction's allocation state. It is constructed fresh by
// IndexCache.BeginTx and discarded at end-of-tx; nothing about it survives
// past the transaction it was built for.
type Cache struct {
	log *logrus.Logger

	location       model.TransactionLocation
	nextEventIndex uint32
	etching        *model.RuneID
	outputPointer  *uint32
	inputRunes     map[model.RuneID]*deque
	eligibleOutputs map[uint32]string // vout -> receiver address
	totalOutputs   uint32

	// Entries accumulates ledger rows emitted during this tx, in
	// event_index order. The caller (IndexCache) drains it at end-of-tx.
	Entries []model.LedgerEntry
}

// New constructs a fresh TxCache for one transaction. eligibleOutputs maps
// each non-OP_RETURN output's vout to the address it pays (resolved by the
// caller from the output script); outputPointer is initialized to the
// first eligible output, or nil if none exist (spec §4.2).
func New(log *logrus.Logger, location model.TransactionLocation, inputs map[model.RuneID][]model.InputRuneBalance, eligibleOutputs map[uint32]string, totalOutputs uint32) *Cache {
	c := &Cache{
		log:             log,
		location:        location,
		inputRunes:      make(map[model.RuneID]*deque, len(inputs)),
		eligibleOutputs: eligibleOutputs,
		totalOutputs:    totalOutputs,
	}
	for id, balances := range inputs {
		c.inputRunes[id] = newDeque(balances)
	}
	if ptr, ok := firstEligibleOutput(eligibleOutputs); ok {
		c.outputPointer = &ptr
	}
	return c
}

func firstEligibleOutput(eligible map[uint32]string) (uint32, bool) {
	found := false
	var min uint32
	for vout := range eligible {
		if !found || vout < min {
			min = vout
			found = true
		}
	}
	return min, found
}

// SetEtching records the RuneID a fresh etching in this tx was assigned,
// so a later (0,0) reference in a mint or edict resolves to it.
func (c *Cache) SetEtching(id model.RuneID) { c.etching = &id }

// SetPointer applies a runestone's explicit output pointer override.
func (c *Cache) SetPointer(pointer *uint32) {
	if pointer != nil {
		c.outputPointer = pointer
	}
}

// ResolveRuneID turns the synthetic (0,0) reference into this tx's own
// etching, if one was applied; otherwise returns id unchanged. ok is
// false only when id is (0,0) and this tx has no etching.
func (c *Cache) ResolveRuneID(id model.RuneID) (model.RuneID, bool) {
	if !id.IsEtchingPlaceholder() {
		return id, true
	}
	if c.etching == nil {
		return model.RuneID{}, false
	}
	return *c.etching, true
}

// AddInputBalance pushes a freshly minted or premined balance (no prior
// owner) onto rune_id's input deque so later edicts in this tx can move it
// (spec §4.1 apply_etching/apply_mint).
func (c *Cache) AddInputBalance(id model.RuneID, balance model.InputRuneBalance) {
	d, ok := c.inputRunes[id]
	if !ok {
		d = newDeque(nil)
		c.inputRunes[id] = d
	}
	d.pushBack(balance)
}

func (c *Cache) nextIndex() uint32 {
	i := c.nextEventIndex
	c.nextEventIndex++
	return i
}

func (c *Cache) emit(e model.LedgerEntry) {
	e.BlockHash = c.location.BlockHash
	e.BlockHeight = c.location.BlockHeight
	e.TxIndex = c.location.TxIndex
	e.TxID = c.location.TxID
	e.Timestamp = c.location.Timestamp
	e.EventIndex = c.nextIndex()
	c.Entries = append(c.Entries, e)
}

// Emit appends e to this tx's pending entries, stamping it with the tx's
// location and the next sequential event index. IndexCache uses this for
// ledger rows it builds itself (Etching, Mint, cenotaph mint-burn) so
// they carry the same location/ordering as the Send/Receive/Burn entries
// move_balance and CenotaphBurn emit directly (spec §8.4: event indices
// form a contiguous 0..N-1 run with Etching before its effects).
func (c *Cache) Emit(e model.LedgerEntry) {
	c.emit(e)
}

// ApplyEdict executes one edict against the tx's allocation state (spec
// §4.2 "Edict execution"). amount == 0 has special "all remaining"
// meaning in several branches, as documented per-case below.
func (c *Cache) ApplyEdict(id model.RuneID, amount *big.Int, output uint32) {
	runeID, ok := c.ResolveRuneID(id)
	if !ok {
		c.log.Warn("txcache: edict references (0,0) but this tx has no etching, skipping")
		return
	}

	d, ok := c.inputRunes[runeID]
	if !ok || d.empty() {
		c.log.WithField("rune_id", runeID.String()).Info("txcache: edict has no input balance, skipping")
		return
	}

	if len(c.eligibleOutputs) == 0 {
		c.moveBalance(nil, runeID, amount)
		return
	}

	switch {
	case output == c.totalOutputs:
		c.applySplitEdict(runeID, amount, d)
	case output < c.totalOutputs:
		if _, eligible := c.eligibleOutputs[output]; eligible {
			out := output
			c.moveBalance(&out, runeID, amount)
		} else {
			c.moveBalance(nil, runeID, amount)
		}
	default:
		c.moveBalance(nil, runeID, amount)
	}
}

// applySplitEdict handles the output == total_outputs "split" marker
// (spec §4.2 edict execution step 5). When amount is zero the remaining
// balance is divided evenly across eligible outputs in ascending vout
// order, with the remainder's first R outputs receiving one extra unit.
// Otherwise every eligible output receives min(amount, unallocated) in
// turn, with unallocated fixed at the deque's total when the edict began
// (not decremented per output): move_balance itself bounds what actually
// moves to whatever the deque still holds at the time of each call, so
// the cap here only needs to rule out asking for more than the edict
// ever had (spec §9 open question 1 — resolved in DESIGN.md).
func (c *Cache) applySplitEdict(runeID model.RuneID, amount *big.Int, d *deque) {
	outputs := ascendingEligibleOutputs(c.eligibleOutputs)
	n := len(outputs)
	if n == 0 {
		return
	}

	if amount == nil || amount.Sign() == 0 {
		unallocated := d.total()
		base := new(big.Int).Quo(unallocated, big.NewInt(int64(n)))
		remainder := new(big.Int).Mod(unallocated, big.NewInt(int64(n)))
		r := remainder.Int64()
		for i, vout := range outputs {
			share := new(big.Int).Set(base)
			if int64(i) < r {
				share.Add(share, big.NewInt(1))
			}
			if share.Sign() == 0 {
				continue
			}
			out := vout
			c.moveBalance(&out, runeID, share)
		}
		return
	}

	unallocated := d.total()
	take := amount
	if unallocated.Cmp(amount) < 0 {
		take = unallocated
	}
	if take.Sign() == 0 {
		return
	}
	for _, vout := range outputs {
		out := vout
		c.moveBalance(&out, runeID, take)
	}
}

func ascendingEligibleOutputs(eligible map[uint32]string) []uint32 {
	outputs := make([]uint32, 0, len(eligible))
	for vout := range eligible {
		outputs = append(outputs, vout)
	}
	for i := 1; i < len(outputs); i++ {
		for j := i; j > 0 && outputs[j-1] > outputs[j]; j-- {
			outputs[j-1], outputs[j] = outputs[j], outputs[j-1]
		}
	}
	return outputs
}

// moveBalance resolves the receiver for output (nil means burn), drains
// the rune's input deque by up to amount (amount == nil or zero means
// "all remaining"), and emits the Receive-before-Send(s)/Burn(s) ledger
// entries (spec §4.2 move_balance). It returns the total amount actually
// moved.
func (c *Cache) moveBalance(output *uint32, runeID model.RuneID, amount *big.Int) *big.Int {
	d := c.inputRunes[runeID]
	if d == nil {
		return big.NewInt(0)
	}

	var receiver *string
	if output != nil {
		if addr, ok := c.eligibleOutputs[*output]; ok {
			receiver = &addr
		}
	}

	totalSent := big.NewInt(0)
	type sender struct {
		address *string
		amount  *big.Int
	}
	var senders []sender

	unlimited := amount == nil || amount.Sign() == 0

	for !d.empty() {
		front := d.front()
		take := new(big.Int).Set(front.Amount)
		if !unlimited {
			remaining := new(big.Int).Sub(amount, totalSent)
			if take.Cmp(remaining) > 0 {
				take = remaining
			}
		}
		if take.Sign() <= 0 {
			break
		}

		d.popFront()
		totalSent.Add(totalSent, take)
		if front.Address != nil {
			senders = append(senders, sender{address: front.Address, amount: new(big.Int).Set(take)})
		}

		leftover := new(big.Int).Sub(front.Amount, take)
		if leftover.Sign() > 0 {
			d.pushFront(model.InputRuneBalance{Address: front.Address, Amount: leftover})
			break
		}
		if !unlimited && totalSent.Cmp(amount) == 0 {
			break
		}
	}

	if receiver != nil && totalSent.Sign() > 0 {
		out := *output
		c.emit(model.LedgerEntry{
			RuneID:          runeID,
			Output:          &out,
			ReceiverAddress: receiver,
			Amount:          new(big.Int).Set(totalSent),
			Operation:       model.OpReceive,
		})
	}

	for _, s := range senders {
		if receiver != nil {
			c.emit(model.LedgerEntry{
				RuneID:        runeID,
				SenderAddress: s.address,
				Amount:        s.amount,
				Operation:     model.OpSend,
			})
		} else {
			c.emit(model.LedgerEntry{
				RuneID:        runeID,
				SenderAddress: s.address,
				Amount:        s.amount,
				Operation:     model.OpBurn,
			})
		}
	}

	return totalSent
}

// EndTx sweeps every remaining input balance to the output pointer (spec
// §4.2 "End-of-transaction"), clearing input_runes.
func (c *Cache) EndTx() {
	for runeID, d := range c.inputRunes {
		if d.empty() {
			continue
		}
		c.moveBalance(c.outputPointer, runeID, big.NewInt(0))
	}
	c.inputRunes = map[model.RuneID]*deque{}
}

// CenotaphBurn burns every remaining input balance in order, one Burn
// entry per balance, with no Receive counterpart (spec §4.2 "Cenotaph
// burn").
func (c *Cache) CenotaphBurn() {
	for runeID, d := range c.inputRunes {
		for !d.empty() {
			b := d.front()
			d.popFront()
			c.emit(model.LedgerEntry{
				RuneID:        runeID,
				SenderAddress: b.Address,
				Amount:        new(big.Int).Set(b.Amount),
				Operation:     model.OpBurn,
			})
		}
	}
	c.inputRunes = map[model.RuneID]*deque{}
}
