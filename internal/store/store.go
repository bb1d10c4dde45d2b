// Package store defines the transactional row-store interface the engine
// writes through. The relational storage backend itself is an external
// collaborator (spec §1 "out of scope") — this package only specifies the
// contract a Postgres-backed (or, for tests, in-memory) implementation
// must satisfy: batch INSERTs, cumulative-snapshot upserts, and
// reorg-delete by height (spec §4.4, §4.5, §6.2).
package store

import (
	"context"
	"math/big"

	"github.com/synnergy-labs/runeindex/internal/model"
)

// OutputRef identifies a transaction output by its producing tx and vout.
type OutputRef struct {
	TxID string
	Vout uint32
}

// SupplyDelta is the per-rune increment folded into a cumulative
// supply_changes snapshot during flush (spec §4.4).
type SupplyDelta struct {
	Minted          *big.Int
	TotalMints      *big.Int
	Burned          *big.Int
	TotalBurns      *big.Int
	TotalOperations *big.Int
}

// BalanceKey identifies a (rune, address) pair for a balance_changes row.
type BalanceKey struct {
	RuneID  model.RuneID
	Address string
}

// BalanceDelta is the per-(rune,address) increment folded into a
// cumulative balance_changes snapshot during flush. Sign is chosen by the
// caller: balance_increases pass positive Balance, balance_deductions pass
// negative Balance (spec §4.4).
type BalanceDelta struct {
	Balance         *big.Int
	TotalOperations *big.Int
}

// Store is the durable backend the engine reads the rune registry and
// mint counters from, and the target of every BlockTx the block driver
// opens.
type Store interface {
	// MaxRuneNumber returns MAX(number)+1 across all runes, or 0 if none
	// exist yet. Called once per block to refresh the IndexCache's
	// next-number counter (spec §4.1 reset_max_rune_number).
	MaxRuneNumber(ctx context.Context) (uint64, error)

	// LookupRune returns the registry row for id, or (nil, nil) if absent.
	LookupRune(ctx context.Context, id model.RuneID) (*model.Rune, error)

	// LookupRuneByName returns the registry row for the given unique name,
	// or (nil, nil) if absent. The engine does not call it; etching name
	// uniqueness is enforced by InsertRunes' "ON CONFLICT (name) DO
	// NOTHING" (spec §4.4).
	LookupRuneByName(ctx context.Context, name string) (*model.Rune, error)

	// LatestTotalMints returns the most recent total_mints snapshot at or
	// before height for rune id, or zero if none exists.
	LatestTotalMints(ctx context.Context, id model.RuneID, height uint64) (*big.Int, error)

	// LatestSupply returns the most recent supply_changes snapshot at or
	// before height for rune id. Returns a zero-valued snapshot if none
	// exists. The flush path does not call it: BlockTx.UpsertSupplyChanges
	// folds deltas onto the prior snapshot itself.
	LatestSupply(ctx context.Context, id model.RuneID, height uint64) (model.SupplyChange, error)

	// LatestBalance returns the most recent balance_changes snapshot at or
	// before height for (rune, address). Returns a zero-valued snapshot if
	// none exists. The flush path does not call it:
	// BlockTx.UpsertBalanceChanges folds deltas onto the prior snapshot
	// itself.
	LatestBalance(ctx context.Context, key BalanceKey, height uint64) (model.BalanceChange, error)

	// LookupOutputRuneBalances batch-resolves the rune contents of spent
	// outputs not found in the in-memory caches (spec §4.3 "Batch-resolve
	// all misses with one store query"), keyed by rune id in the order
	// they were originally received.
	LookupOutputRuneBalances(ctx context.Context, outputs []OutputRef) (map[OutputRef]map[model.RuneID][]model.InputRuneBalance, error)

	// BeginBlock opens one store transaction for block height. All writes
	// for that block go through the returned BlockTx and are committed or
	// rolled back atomically (spec §4.5, §5).
	BeginBlock(ctx context.Context, height uint64) (BlockTx, error)

	// DeleteBlock reorg-deletes every row at block_height = height across
	// runes, ledger, supply_changes and balance_changes in one
	// transaction (spec §4.5 Rollback).
	DeleteBlock(ctx context.Context, height uint64) error

	// Close releases the underlying connection pool.
	Close()
}

// BlockTx is the single store transaction a block is committed through.
// Flush order within a commit follows spec §4.4: runes, then
// supply_changes, then ledger_entries, then balance_increases, then
// balance_deductions.
type BlockTx interface {
	InsertRunes(ctx context.Context, runes []model.Rune) error
	UpsertSupplyChanges(ctx context.Context, height uint64, deltas map[model.RuneID]SupplyDelta) error
	InsertLedgerEntries(ctx context.Context, entries []model.LedgerEntry) error
	UpsertBalanceChanges(ctx context.Context, height uint64, deltas map[BalanceKey]BalanceDelta) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
