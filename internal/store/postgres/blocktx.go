package postgres

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/synnergy-labs/runeindex/internal/model"
	"github.com/synnergy-labs/runeindex/internal/numeric"
	"github.com/synnergy-labs/runeindex/internal/store"
)

// insertChunkSize bounds how many rows go into a single INSERT statement
// (spec §4.4 "batches of roughly 500 rows per statement").
const insertChunkSize = 500

type blockTx struct {
	tx     pgx.Tx
	height uint64
}

func (b *blockTx) Commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit block %d: %w", b.height, err)
	}
	return nil
}

func (b *blockTx) Rollback(ctx context.Context) error {
	if err := b.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("postgres: rollback block %d: %w", b.height, err)
	}
	return nil
}

// InsertRunes appends newly-etched rune registry rows. Names are unique,
// so a name collision (spec §3 Mint — "should not happen under honest
// miners" edge case) is silently dropped rather than failing the block.
func (b *blockTx) InsertRunes(ctx context.Context, runes []model.Rune) error {
	for _, chunk := range chunkRunes(runes, insertChunkSize) {
		if err := b.insertRuneChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func chunkRunes(runes []model.Rune, size int) [][]model.Rune {
	var chunks [][]model.Rune
	for size < len(runes) {
		runes, chunks = runes[size:], append(chunks, runes[:size:size])
	}
	return append(chunks, runes)
}

func (b *blockTx) insertRuneChunk(ctx context.Context, runes []model.Rune) error {
	if len(runes) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO runes (` + runeColumns + `) VALUES `)
	args := make([]interface{}, 0, len(runes)*19)
	for i, r := range runes {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 19
		fmt.Fprintf(&sb, "(%s)", placeholders(base+1, 19))
		args = append(args, runeArgs(r)...)
	}
	sb.WriteString(` ON CONFLICT (name) DO NOTHING`)
	if _, err := b.tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("postgres: insert rune chunk: %w", err)
	}
	return nil
}

func placeholders(start, count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func runeArgs(r model.Rune) []interface{} {
	var amount, cap, hStart, hEnd, oStart, oEnd interface{}
	if r.Terms != nil {
		amount = numericArg(r.Terms.Amount)
		cap = numericArg(r.Terms.Cap)
		hStart = optionalUintArg(r.Terms.HeightStart)
		hEnd = optionalUintArg(r.Terms.HeightEnd)
		oStart = optionalUintArg(r.Terms.OffsetStart)
		oEnd = optionalUintArg(r.Terms.OffsetEnd)
	}
	return []interface{}{
		r.ID.String(), int64(r.Number), r.Name, r.SpacedName, r.EtchingBlock, int64(r.EtchingHeight),
		int64(r.EtchingTxIndex), r.EtchingTxID, int16(r.Divisibility), numericArg(r.Premine),
		string(r.Symbol), amount, cap, hStart, hEnd, oStart, oEnd, r.Turbo, r.Timestamp,
	}
}

func optionalUintArg(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// UpsertSupplyChanges folds per-rune supply deltas onto the most recent
// prior snapshot and writes the result as a new (rune_id, block_height)
// row, in one statement per spec §4.4's cumulative-snapshot pattern.
func (b *blockTx) UpsertSupplyChanges(ctx context.Context, height uint64, deltas map[model.RuneID]store.SupplyDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	ids := make([]model.RuneID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	for _, chunk := range chunkRuneIDs(ids, insertChunkSize) {
		if err := b.upsertSupplyChunk(ctx, height, chunk, deltas); err != nil {
			return err
		}
	}
	return nil
}

func chunkRuneIDs(ids []model.RuneID, size int) [][]model.RuneID {
	var chunks [][]model.RuneID
	for size < len(ids) {
		ids, chunks = ids[size:], append(chunks, ids[:size:size])
	}
	return append(chunks, ids)
}

func (b *blockTx) upsertSupplyChunk(ctx context.Context, height uint64, ids []model.RuneID, deltas map[model.RuneID]store.SupplyDelta) error {
	if len(ids) == 0 {
		return nil
	}
	var values strings.Builder
	args := make([]interface{}, 0, len(ids)*7)
	for i, id := range ids {
		d := deltas[id]
		if i > 0 {
			values.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&values, "(%s)", placeholders(base+1, 7))
		args = append(args, id.String(), int64(height), numericArg(d.Minted), numericArg(d.TotalMints),
			numericArg(d.Burned), numericArg(d.TotalBurns), numericArg(d.TotalOperations))
	}

	query := `
WITH deltas(rune_id, block_height, minted, total_mints, burned, total_burns, total_operations) AS (
	VALUES ` + values.String() + `
),
prior AS (
	SELECT d.*,
		COALESCE(s.minted, 0) AS prior_minted,
		COALESCE(s.total_mints, 0) AS prior_total_mints,
		COALESCE(s.burned, 0) AS prior_burned,
		COALESCE(s.total_burns, 0) AS prior_total_burns,
		COALESCE(s.total_operations, 0) AS prior_total_operations
	FROM deltas d
	LEFT JOIN LATERAL (
		SELECT minted, total_mints, burned, total_burns, total_operations
		FROM supply_changes sc
		WHERE sc.rune_id = d.rune_id AND sc.block_height <= d.block_height
		ORDER BY sc.block_height DESC LIMIT 1
	) s ON true
)
INSERT INTO supply_changes (rune_id, block_height, minted, total_mints, burned, total_burns, total_operations)
SELECT rune_id, block_height,
	prior_minted + minted, prior_total_mints + total_mints,
	prior_burned + burned, prior_total_burns + total_burns,
	prior_total_operations + total_operations
FROM prior
ON CONFLICT (rune_id, block_height) DO UPDATE SET
	minted = EXCLUDED.minted, total_mints = EXCLUDED.total_mints,
	burned = EXCLUDED.burned, total_burns = EXCLUDED.total_burns,
	total_operations = EXCLUDED.total_operations`

	if _, err := b.tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: upsert supply changes: %w", err)
	}
	return nil
}

// InsertLedgerEntries appends ledger rows chunked to insertChunkSize.
func (b *blockTx) InsertLedgerEntries(ctx context.Context, entries []model.LedgerEntry) error {
	for _, chunk := range chunkLedger(entries, insertChunkSize) {
		if err := b.insertLedgerChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func chunkLedger(entries []model.LedgerEntry, size int) [][]model.LedgerEntry {
	var chunks [][]model.LedgerEntry
	for size < len(entries) {
		entries, chunks = entries[size:], append(chunks, entries[:size:size])
	}
	return append(chunks, entries)
}

func (b *blockTx) insertLedgerChunk(ctx context.Context, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO ledger (rune_id, block_hash, block_height, tx_index, event_index, tx_id,
		output, address, receiver_address, amount, operation, timestamp) VALUES `)
	args := make([]interface{}, 0, len(entries)*12)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 12
		fmt.Fprintf(&sb, "(%s)", placeholders(base+1, 12))
		var output interface{}
		if e.Output != nil {
			output = int64(*e.Output)
		}
		var amount interface{}
		if e.Amount != nil {
			amount = numericArg(e.Amount)
		}
		args = append(args, e.RuneID.String(), e.BlockHash, int64(e.BlockHeight), int64(e.TxIndex),
			int64(e.EventIndex), e.TxID, output, e.SenderAddress, e.ReceiverAddress, amount,
			string(e.Operation), e.Timestamp)
	}
	if _, err := b.tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("postgres: insert ledger chunk: %w", err)
	}
	return nil
}

// UpsertBalanceChanges folds balance deltas onto prior (rune, address)
// snapshots using the same cumulative pattern as UpsertSupplyChanges.
// Positive deltas (balance_increases) and negative deltas
// (balance_deductions) are flushed as two separate calls by the caller to
// preserve the write order spec §4.4 names.
func (b *blockTx) UpsertBalanceChanges(ctx context.Context, height uint64, deltas map[store.BalanceKey]store.BalanceDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	keys := make([]store.BalanceKey, 0, len(deltas))
	for k := range deltas {
		keys = append(keys, k)
	}
	for _, chunk := range chunkBalanceKeys(keys, insertChunkSize) {
		if err := b.upsertBalanceChunk(ctx, height, chunk, deltas); err != nil {
			return err
		}
	}
	return nil
}

func chunkBalanceKeys(keys []store.BalanceKey, size int) [][]store.BalanceKey {
	var chunks [][]store.BalanceKey
	for size < len(keys) {
		keys, chunks = keys[size:], append(chunks, keys[:size:size])
	}
	return append(chunks, keys)
}

func (b *blockTx) upsertBalanceChunk(ctx context.Context, height uint64, keys []store.BalanceKey, deltas map[store.BalanceKey]store.BalanceDelta) error {
	if len(keys) == 0 {
		return nil
	}
	var values strings.Builder
	args := make([]interface{}, 0, len(keys)*4)
	for i, k := range keys {
		d := deltas[k]
		if i > 0 {
			values.WriteString(", ")
		}
		// Placeholders start at $2: $1 is reserved for height, bound once
		// below rather than repeated per row.
		base := i * 4
		fmt.Fprintf(&values, "(%s)", placeholders(base+2, 4))
		args = append(args, k.RuneID.String(), k.Address, numericArg(d.Balance), numericArg(d.TotalOperations))
	}

	query := `
WITH deltas(rune_id, address, balance, total_operations) AS (
	VALUES ` + values.String() + `
),
prior AS (
	SELECT d.rune_id, d.address, d.balance, d.total_operations,
		COALESCE(b.balance, 0) AS prior_balance,
		COALESCE(b.total_operations, 0) AS prior_total_operations
	FROM deltas d
	LEFT JOIN LATERAL (
		SELECT balance, total_operations
		FROM balance_changes bc
		WHERE bc.rune_id = d.rune_id AND bc.address = d.address AND bc.block_height <= $1
		ORDER BY bc.block_height DESC LIMIT 1
	) b ON true
)
INSERT INTO balance_changes (rune_id, block_height, address, balance, total_operations)
SELECT rune_id, $1, address, prior_balance + balance, prior_total_operations + total_operations
FROM prior
ON CONFLICT (rune_id, block_height, address) DO UPDATE SET
	balance = EXCLUDED.balance, total_operations = EXCLUDED.total_operations`

	fullArgs := append([]interface{}{int64(height)}, args...)
	if _, err := b.tx.Exec(ctx, query, fullArgs...); err != nil {
		return fmt.Errorf("postgres: upsert balance changes: %w", err)
	}
	return nil
}

func numericArg(v *big.Int) interface{} {
	if v == nil {
		return nil
	}
	nv, err := numeric.NewU128(v).NumericValue()
	if err != nil {
		return nil
	}
	return nv
}
