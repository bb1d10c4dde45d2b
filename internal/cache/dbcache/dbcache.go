// Package dbcache implements the per-block write batcher (DbCache):
// everything produced while indexing a block accumulates here and is
// flushed to the store in one shot, chunked and ordered per spec §4.4.
package dbcache

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/runeindex/internal/model"
	"github.com/synnergy-labs/runeindex/internal/store"
)

// Cache buffers one block's writes until Flush is called. It is not
// goroutine-safe; it is owned exclusively by the single engine worker
// (spec §5 "Shared resources").
type Cache struct {
	log *logrus.Logger

	runes             []model.Rune
	ledgerEntries     []model.LedgerEntry
	supplyChanges     map[model.RuneID]store.SupplyDelta
	balanceIncreases  map[store.BalanceKey]store.BalanceDelta
	balanceDeductions map[store.BalanceKey]store.BalanceDelta
}

// New returns an empty Cache.
func New(log *logrus.Logger) *Cache {
	c := &Cache{log: log}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.runes = nil
	c.ledgerEntries = nil
	c.supplyChanges = make(map[model.RuneID]store.SupplyDelta)
	c.balanceIncreases = make(map[store.BalanceKey]store.BalanceDelta)
	c.balanceDeductions = make(map[store.BalanceKey]store.BalanceDelta)
}

// AddRune buffers a freshly etched rune for insertion (ON CONFLICT (name)
// DO NOTHING applied at flush time).
func (c *Cache) AddRune(r model.Rune) { c.runes = append(c.runes, r) }

// AddLedgerEntries appends append-only ledger rows produced by a tx.
func (c *Cache) AddLedgerEntries(entries []model.LedgerEntry) {
	c.ledgerEntries = append(c.ledgerEntries, entries...)
}

// AddSupplyDelta folds delta into the rune's buffered supply_changes
// delta, so multiple mints/burns of the same rune within a block collapse
// into one row at flush time.
func (c *Cache) AddSupplyDelta(id model.RuneID, delta store.SupplyDelta) {
	existing, ok := c.supplyChanges[id]
	if !ok {
		c.supplyChanges[id] = delta
		return
	}
	c.supplyChanges[id] = store.SupplyDelta{
		Minted:          addBig(existing.Minted, delta.Minted),
		TotalMints:      addBig(existing.TotalMints, delta.TotalMints),
		Burned:          addBig(existing.Burned, delta.Burned),
		TotalBurns:      addBig(existing.TotalBurns, delta.TotalBurns),
		TotalOperations: addBig(existing.TotalOperations, delta.TotalOperations),
	}
}

// AddBalanceIncrease folds a positive balance delta for a Receive event.
func (c *Cache) AddBalanceIncrease(key store.BalanceKey, delta store.BalanceDelta) {
	addBalanceDelta(c.balanceIncreases, key, delta)
}

// AddBalanceDeduction folds a negative balance delta for a Send event.
// Callers pass delta.Balance already negated.
func (c *Cache) AddBalanceDeduction(key store.BalanceKey, delta store.BalanceDelta) {
	addBalanceDelta(c.balanceDeductions, key, delta)
}

func addBalanceDelta(m map[store.BalanceKey]store.BalanceDelta, key store.BalanceKey, delta store.BalanceDelta) {
	existing, ok := m[key]
	if !ok {
		m[key] = delta
		return
	}
	m[key] = store.BalanceDelta{
		Balance:         addBig(existing.Balance, delta.Balance),
		TotalOperations: addBig(existing.TotalOperations, delta.TotalOperations),
	}
}

func addBig(a, b *big.Int) *big.Int {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Add(a, b)
}

// Pending reports whether anything is buffered, used by the index cache
// to decide whether a registry-miss flush has work to do.
func (c *Cache) Pending() bool {
	return len(c.runes) > 0 || len(c.ledgerEntries) > 0 ||
		len(c.supplyChanges) > 0 || len(c.balanceIncreases) > 0 || len(c.balanceDeductions) > 0
}

// Flush writes every buffered change into tx at block height, in the
// order spec §4.4 mandates (runes, supply_changes, ledger_entries,
// balance_increases, balance_deductions), then clears all buffers. Safe
// to call mid-block (on a registry miss) as well as once at end-of-block.
func (c *Cache) Flush(ctx context.Context, tx store.BlockTx, height uint64) error {
	if !c.Pending() {
		return nil
	}

	if err := tx.InsertRunes(ctx, c.runes); err != nil {
		return fmt.Errorf("dbcache: flush runes: %w", err)
	}
	if err := tx.UpsertSupplyChanges(ctx, height, c.supplyChanges); err != nil {
		return fmt.Errorf("dbcache: flush supply changes: %w", err)
	}
	if err := tx.InsertLedgerEntries(ctx, c.ledgerEntries); err != nil {
		return fmt.Errorf("dbcache: flush ledger entries: %w", err)
	}
	if err := tx.UpsertBalanceChanges(ctx, height, c.balanceIncreases); err != nil {
		return fmt.Errorf("dbcache: flush balance increases: %w", err)
	}
	if err := tx.UpsertBalanceChanges(ctx, height, c.balanceDeductions); err != nil {
		return fmt.Errorf("dbcache: flush balance deductions: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"runes":    len(c.runes),
		"ledger":   len(c.ledgerEntries),
		"height":   height,
	}).Debug("dbcache: flushed block batch")

	c.reset()
	return nil
}
