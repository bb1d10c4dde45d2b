// Package postgres implements store.Store against a Postgres database
// reached through github.com/jackc/pgx/v5's pgxpool, using the schema in
// schema.sql (embedded so `runeindex db drop` and service start never
// depend on a file living next to the binary).
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synnergy-labs/runeindex/internal/model"
	"github.com/synnergy-labs/runeindex/internal/numeric"
	"github.com/synnergy-labs/runeindex/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store is the pgx-backed store.Store implementation.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, applies schema.sql, and returns a ready Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// MaxRuneNumber returns MAX(number)+1 across all runes, or 0 if the
// registry is empty.
func (s *Store) MaxRuneNumber(ctx context.Context) (uint64, error) {
	var max *int64
	err := s.pool.QueryRow(ctx, `SELECT MAX(number) FROM runes`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("postgres: max rune number: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return uint64(*max) + 1, nil
}

const runeColumns = `id, number, name, spaced_name, block_hash, block_height, tx_index, tx_id,
	divisibility, premine, symbol, terms_amount, terms_cap, terms_height_start, terms_height_end,
	terms_offset_start, terms_offset_end, turbo, timestamp`

func scanRune(row pgx.Row) (*model.Rune, error) {
	var (
		id, name, spacedName, blockHash, txID, symbol string
		number                                        int64
		blockHeight                                   pgtype.Numeric
		txIndex                                        int64
		divisibility                                  int16
		premine                                       pgtype.Numeric
		termsAmount, termsCap                         pgtype.Numeric
		termsHeightStart, termsHeightEnd              pgtype.Numeric
		termsOffsetStart, termsOffsetEnd              pgtype.Numeric
		turbo                                         bool
		timestamp                                     int64
	)
	if err := row.Scan(&id, &number, &name, &spacedName, &blockHash, &blockHeight, &txIndex, &txID,
		&divisibility, &premine, &symbol, &termsAmount, &termsCap, &termsHeightStart, &termsHeightEnd,
		&termsOffsetStart, &termsOffsetEnd, &turbo, &timestamp); err != nil {
		return nil, err
	}

	runeID, err := model.ParseRuneID(id)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan rune id %q: %w", id, err)
	}

	var premineU numeric.U128
	if err := premineU.ScanNumeric(premine); err != nil {
		return nil, fmt.Errorf("postgres: scan premine: %w", err)
	}

	r := &model.Rune{
		ID:             runeID,
		Number:         uint64(number),
		Name:           name,
		SpacedName:     spacedName,
		EtchingBlock:   blockHash,
		EtchingHeight:  uint64(numericToInt64(blockHeight)),
		EtchingTxIndex: uint32(txIndex),
		EtchingTxID:    txID,
		Divisibility:   uint8(divisibility),
		Premine:        premineU.Int(),
		Symbol:         []rune(symbol)[0],
		Turbo:          turbo,
		Timestamp:      timestamp,
	}

	if termsAmount.Valid || termsCap.Valid || termsHeightStart.Valid || termsHeightEnd.Valid ||
		termsOffsetStart.Valid || termsOffsetEnd.Valid {
		r.Terms = &model.MintTerms{}
		if termsAmount.Valid {
			var v numeric.U128
			_ = v.ScanNumeric(termsAmount)
			r.Terms.Amount = v.Int()
		}
		if termsCap.Valid {
			var v numeric.U128
			_ = v.ScanNumeric(termsCap)
			r.Terms.Cap = v.Int()
		}
		r.Terms.HeightStart = numericToOptionalUint64(termsHeightStart)
		r.Terms.HeightEnd = numericToOptionalUint64(termsHeightEnd)
		r.Terms.OffsetStart = numericToOptionalUint64(termsOffsetStart)
		r.Terms.OffsetEnd = numericToOptionalUint64(termsOffsetEnd)
	}

	return r, nil
}

func numericToInt64(n pgtype.Numeric) int64 {
	if !n.Valid {
		return 0
	}
	var u numeric.U128
	_ = u.ScanNumeric(n)
	return u.Int().Int64()
}

func numericToOptionalUint64(n pgtype.Numeric) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(numericToInt64(n))
	return &v
}

// LookupRune returns the registry row for id, or (nil, nil) if absent.
func (s *Store) LookupRune(ctx context.Context, id model.RuneID) (*model.Rune, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runeColumns+` FROM runes WHERE id = $1`, id.String())
	r, err := scanRune(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: lookup rune %s: %w", id, err)
	}
	return r, nil
}

// LookupRuneByName returns the registry row for the given unique name, or
// (nil, nil) if absent.
func (s *Store) LookupRuneByName(ctx context.Context, name string) (*model.Rune, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runeColumns+` FROM runes WHERE name = $1`, name)
	r, err := scanRune(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: lookup rune by name %s: %w", name, err)
	}
	return r, nil
}

// LatestTotalMints returns the most recent total_mints snapshot at or
// before height, or zero if none exists.
func (s *Store) LatestTotalMints(ctx context.Context, id model.RuneID, height uint64) (*big.Int, error) {
	var total pgtype.Numeric
	err := s.pool.QueryRow(ctx, `
		SELECT total_mints FROM supply_changes
		WHERE rune_id = $1 AND block_height <= $2
		ORDER BY block_height DESC LIMIT 1`, id.String(), height).Scan(&total)
	if err == pgx.ErrNoRows {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: latest total mints %s: %w", id, err)
	}
	var u numeric.U128
	if err := u.ScanNumeric(total); err != nil {
		return nil, err
	}
	return u.Int(), nil
}

// LatestSupply returns the most recent supply_changes snapshot at or
// before height, or a zero-valued one if none exists.
func (s *Store) LatestSupply(ctx context.Context, id model.RuneID, height uint64) (model.SupplyChange, error) {
	var minted, totalMints, burned, totalBurns, totalOps pgtype.Numeric
	err := s.pool.QueryRow(ctx, `
		SELECT minted, total_mints, burned, total_burns, total_operations FROM supply_changes
		WHERE rune_id = $1 AND block_height <= $2
		ORDER BY block_height DESC LIMIT 1`, id.String(), height).
		Scan(&minted, &totalMints, &burned, &totalBurns, &totalOps)
	if err == pgx.ErrNoRows {
		return zeroSupply(id, height), nil
	}
	if err != nil {
		return model.SupplyChange{}, fmt.Errorf("postgres: latest supply %s: %w", id, err)
	}
	return model.SupplyChange{
		RuneID:          id,
		BlockHeight:     height,
		Minted:          mustU128(minted),
		TotalMints:      mustU128(totalMints),
		Burned:          mustU128(burned),
		TotalBurns:      mustU128(totalBurns),
		TotalOperations: mustU128(totalOps),
	}, nil
}

func zeroSupply(id model.RuneID, height uint64) model.SupplyChange {
	return model.SupplyChange{
		RuneID: id, BlockHeight: height,
		Minted: big.NewInt(0), TotalMints: big.NewInt(0),
		Burned: big.NewInt(0), TotalBurns: big.NewInt(0),
		TotalOperations: big.NewInt(0),
	}
}

func mustU128(n pgtype.Numeric) *big.Int {
	var u numeric.U128
	if !n.Valid {
		return big.NewInt(0)
	}
	_ = u.ScanNumeric(n)
	return u.Int()
}

// LatestBalance returns the most recent balance_changes snapshot at or
// before height for (rune, address), or a zero-valued one if none exists.
func (s *Store) LatestBalance(ctx context.Context, key store.BalanceKey, height uint64) (model.BalanceChange, error) {
	var balance, totalOps pgtype.Numeric
	err := s.pool.QueryRow(ctx, `
		SELECT balance, total_operations FROM balance_changes
		WHERE rune_id = $1 AND address = $2 AND block_height <= $3
		ORDER BY block_height DESC LIMIT 1`, key.RuneID.String(), key.Address, height).
		Scan(&balance, &totalOps)
	if err == pgx.ErrNoRows {
		return model.BalanceChange{
			RuneID: key.RuneID, BlockHeight: height, Address: key.Address,
			Balance: big.NewInt(0), TotalOperations: big.NewInt(0),
		}, nil
	}
	if err != nil {
		return model.BalanceChange{}, fmt.Errorf("postgres: latest balance %s/%s: %w", key.RuneID, key.Address, err)
	}
	return model.BalanceChange{
		RuneID: key.RuneID, BlockHeight: height, Address: key.Address,
		Balance: mustU128(balance), TotalOperations: mustU128(totalOps),
	}, nil
}

// LookupOutputRuneBalances batch-resolves rune balances carried by a set of
// previously-spent outputs. The ledger table is the source of truth: any
// "receive" row addressed at (tx_id, output) deposited that amount of that
// rune there, and nothing has since moved it (a later spend would not have
// produced a new receive row at the same output) — so querying
// operation='receive' rows directly avoids a dedicated UTXO table (spec
// §6.2 names only four tables).
func (s *Store) LookupOutputRuneBalances(ctx context.Context, outputs []store.OutputRef) (map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance, error) {
	result := make(map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance, len(outputs))
	if len(outputs) == 0 {
		return result, nil
	}

	txIDs := make([]string, len(outputs))
	vouts := make([]int64, len(outputs))
	for i, o := range outputs {
		txIDs[i] = o.TxID
		vouts[i] = int64(o.Vout)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT l.tx_id, l.output, l.rune_id, l.receiver_address, l.amount
		FROM ledger l
		JOIN (SELECT unnest($1::text[]) AS tx_id, unnest($2::bigint[]) AS output) want
		  ON l.tx_id = want.tx_id AND l.output = want.output
		WHERE l.operation = 'receive'
		ORDER BY l.event_index ASC`, txIDs, vouts)
	if err != nil {
		return nil, fmt.Errorf("postgres: lookup output balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txID string
		var output int64
		var runeIDStr string
		var receiver *string
		var amount pgtype.Numeric
		if err := rows.Scan(&txID, &output, &runeIDStr, &receiver, &amount); err != nil {
			return nil, fmt.Errorf("postgres: scan output balance row: %w", err)
		}
		runeID, err := model.ParseRuneID(runeIDStr)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse rune id %q: %w", runeIDStr, err)
		}
		ref := store.OutputRef{TxID: txID, Vout: uint32(output)}
		byRune, ok := result[ref]
		if !ok {
			byRune = make(map[model.RuneID][]model.InputRuneBalance)
			result[ref] = byRune
		}
		byRune[runeID] = append(byRune[runeID], model.FromOwner(derefOrEmpty(receiver), mustU128(amount)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate output balances: %w", err)
	}
	return result, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// BeginBlock opens the single store transaction a block is processed
// through (spec §4.5).
func (s *Store) BeginBlock(ctx context.Context, height uint64) (store.BlockTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin block %d: %w", height, err)
	}
	return &blockTx{tx: tx, height: height}, nil
}

// DeleteBlock reorg-deletes every row at block_height = height across all
// four tables in one transaction (spec §4.5 Rollback).
func (s *Store) DeleteBlock(ctx context.Context, height uint64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: delete block %d: begin: %w", height, err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"runes", "ledger", "supply_changes", "balance_changes"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE block_height = $1`, height); err != nil {
			return fmt.Errorf("postgres: delete block %d from %s: %w", height, table, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: delete block %d: commit: %w", height, err)
	}
	return nil
}
