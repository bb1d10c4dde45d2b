// Package indexcache implements IndexCache, the per-block orchestrator
// that owns the rune registry, mint-count and output-balance LRUs plus
// the current-block output map, and drives TxCache through one
// transaction's worth of artifact application (spec §4.1).
package indexcache

import (
	"context"
	"fmt"
	"math/big"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/runeindex/internal/artifact"
	"github.com/synnergy-labs/runeindex/internal/cache/dbcache"
	"github.com/synnergy-labs/runeindex/internal/cache/txcache"
	"github.com/synnergy-labs/runeindex/internal/metrics"
	"github.com/synnergy-labs/runeindex/internal/model"
	"github.com/synnergy-labs/runeindex/internal/store"
)

// Cache is IndexCache. It is owned exclusively by the single engine
// worker goroutine (spec §5); nothing here is safe for concurrent use.
type Cache struct {
	log *logrus.Logger
	st  store.Store
	db  *dbcache.Cache

	registry       *lru.Cache[model.RuneID, model.Rune]
	mintCounts     *lru.Cache[model.RuneID, *big.Int]
	outputBalances *lru.Cache[store.OutputRef, map[model.RuneID][]model.InputRuneBalance]
	blockOutputs   map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance

	nextRuneNumber uint64

	tx      *txcache.Cache
	metrics *metrics.Collectors
}

// SetMetrics attaches prometheus collectors; nil (the default) disables
// instrumentation without requiring callers to special-case it.
func (c *Cache) SetMetrics(m *metrics.Collectors) { c.metrics = m }

// New constructs an IndexCache with each of the three LRUs sized to
// cacheSize entries (spec §4.1, §6.4 `[resources] lru_cache_size`).
func New(log *logrus.Logger, st store.Store, db *dbcache.Cache, cacheSize int) (*Cache, error) {
	registry, err := lru.New[model.RuneID, model.Rune](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("indexcache: new registry lru: %w", err)
	}
	mintCounts, err := lru.New[model.RuneID, *big.Int](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("indexcache: new mint-count lru: %w", err)
	}
	outputBalances, err := lru.New[store.OutputRef, map[model.RuneID][]model.InputRuneBalance](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("indexcache: new output-balance lru: %w", err)
	}
	return &Cache{
		log:            log,
		st:             st,
		db:             db,
		registry:       registry,
		mintCounts:     mintCounts,
		outputBalances: outputBalances,
		blockOutputs:   make(map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance),
	}, nil
}

// ResetMaxRuneNumber refreshes the next sequential rune number from the
// store (spec §4.1 reset_max_rune_number). Call once at the start of
// every block, so the counter survives a process restart mid-range.
func (c *Cache) ResetMaxRuneNumber(ctx context.Context) error {
	next, err := c.st.MaxRuneNumber(ctx)
	if err != nil {
		return fmt.Errorf("indexcache: reset max rune number: %w", err)
	}
	c.nextRuneNumber = next
	return nil
}

// OutputBalances returns a spent output's rune contents from the
// current-block map, falling back to the LRU, or (nil, false) on a
// complete miss (spec §4.3 steps 1-2).
func (c *Cache) OutputBalances(ref store.OutputRef) (map[model.RuneID][]model.InputRuneBalance, bool) {
	if balances, ok := c.blockOutputs[ref]; ok {
		c.incOutputHit()
		return balances, true
	}
	balances, ok := c.outputBalances.Get(ref)
	if ok {
		c.incOutputHit()
	} else {
		c.incOutputMiss()
	}
	return balances, ok
}

func (c *Cache) incOutputHit() {
	if c.metrics != nil {
		c.metrics.OutputCacheHits.Inc()
	}
}

func (c *Cache) incOutputMiss() {
	if c.metrics != nil {
		c.metrics.OutputCacheMisses.Inc()
	}
}

// CacheOutputBalances seeds the output LRU directly, used by the input
// resolver after a batch store query resolves a miss.
func (c *Cache) CacheOutputBalances(ref store.OutputRef, balances map[model.RuneID][]model.InputRuneBalance) {
	c.outputBalances.Add(ref, balances)
}

// BeginTx resolves input balances (already done by the caller via the
// input-resolution helper and passed in as inputs) and constructs a fresh
// TxCache for one transaction (spec §4.1 begin_tx).
func (c *Cache) BeginTx(location model.TransactionLocation, inputs map[model.RuneID][]model.InputRuneBalance, eligibleOutputs map[uint32]string, totalOutputs uint32) *txcache.Cache {
	c.tx = txcache.New(c.log, location, inputs, eligibleOutputs, totalOutputs)
	return c.tx
}

// ApplyRunestone applies a runestone's explicit output pointer, if set
// (spec §4.1 apply_runestone).
func (c *Cache) ApplyRunestone(rs *artifact.Artifact) {
	c.tx.SetPointer(rs.Pointer)
}

// ApplyCenotaph burns every input rune balance in the current tx (spec
// §4.1 apply_cenotaph).
func (c *Cache) ApplyCenotaph() {
	c.tx.CenotaphBurn()
}

// ApplyEtching allocates the next sequential rune number, registers the
// rune, emits an Etching ledger entry, and — if premine > 0 — seeds an
// input balance with no owner so subsequent edicts in the same tx can
// move it (spec §4.1 apply_etching).
func (c *Cache) ApplyEtching(e *artifact.Etching, location model.TransactionLocation) model.RuneID {
	id := location.RuneID()
	number := c.nextRuneNumber
	c.nextRuneNumber++

	r := model.Rune{
		ID:             id,
		Number:         number,
		Name:           e.Name,
		SpacedName:     e.SpacedName,
		EtchingBlock:   location.BlockHash,
		EtchingHeight:  location.BlockHeight,
		EtchingTxIndex: location.TxIndex,
		EtchingTxID:    location.TxID,
		Divisibility:   e.Divisibility,
		Premine:        e.Premine,
		Symbol:         e.Symbol,
		Terms:          e.Terms,
		Turbo:          e.Turbo,
		Timestamp:      location.Timestamp,
	}
	c.registerRune(r)
	c.tx.SetEtching(id)

	c.tx.Emit(model.LedgerEntry{
		RuneID:    id,
		Operation: model.OpEtching,
	})
	// Premine counts as already-circulating supply, tracked the same way
	// a mint is (no corresponding total_mints bump: premine is not a mint).
	c.db.AddSupplyDelta(id, store.SupplyDelta{
		Minted: orZero(e.Premine), TotalMints: big.NewInt(0),
		Burned: big.NewInt(0), TotalBurns: big.NewInt(0), TotalOperations: big.NewInt(1),
	})

	if e.Premine != nil && e.Premine.Sign() > 0 {
		c.tx.AddInputBalance(id, model.MintOrigin(e.Premine))
	}
	return id
}

// ApplyCenotaphEtching registers the permanently-unmintable rune a
// cenotaph's etching field produces: same bookkeeping as ApplyEtching,
// but no symbol/terms and never mintable (spec §4.1 apply_cenotaph_etching).
func (c *Cache) ApplyCenotaphEtching(loc model.TransactionLocation) model.RuneID {
	id := loc.RuneID()
	number := c.nextRuneNumber
	c.nextRuneNumber++

	r := model.CenotaphEtching(id, number, loc)
	c.registerRune(r)
	c.tx.SetEtching(id)

	c.tx.Emit(model.LedgerEntry{RuneID: id, Operation: model.OpEtching})
	c.db.AddSupplyDelta(id, store.SupplyDelta{
		Minted: big.NewInt(0), TotalMints: big.NewInt(0),
		Burned: big.NewInt(0), TotalBurns: big.NewInt(0), TotalOperations: big.NewInt(1),
	})
	return id
}

func (c *Cache) registerRune(r model.Rune) {
	c.registry.Add(r.ID, r)
	c.db.AddRune(r)
}

// ApplyMint validates and applies a mint for rune_id (spec §4.1
// apply_mint): if mintable, adds a mint-origin input balance of
// terms.amount and emits a Mint entry, bumping the cached total_mints.
// tx/height let a registry miss flush the DbCache first, so a rune
// etched earlier in this same block is visible (spec §4.1 "Registry
// miss policy").
func (c *Cache) ApplyMint(ctx context.Context, tx store.BlockTx, height uint64, id model.RuneID, loc model.TransactionLocation) error {
	r, totalMints, ok, err := c.lookupMintable(ctx, tx, height, id, loc)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !mintValid(r, totalMints, loc.BlockHeight) {
		return nil
	}

	c.tx.AddInputBalance(id, model.MintOrigin(r.Terms.Amount))
	c.tx.Emit(model.LedgerEntry{RuneID: id, Operation: model.OpMint, Amount: r.Terms.Amount})
	c.db.AddSupplyDelta(id, store.SupplyDelta{
		Minted: new(big.Int).Set(r.Terms.Amount), TotalMints: big.NewInt(1),
		Burned: big.NewInt(0), TotalBurns: big.NewInt(0), TotalOperations: big.NewInt(1),
	})
	c.mintCounts.Add(id, new(big.Int).Add(totalMints, big.NewInt(1)))
	return nil
}

// ApplyCenotaphMint counts a mint toward the cap but burns the newly
// minted amount immediately, without ever crediting an input balance
// (spec §4.1 apply_cenotaph_mint).
func (c *Cache) ApplyCenotaphMint(ctx context.Context, tx store.BlockTx, height uint64, id model.RuneID, loc model.TransactionLocation) error {
	r, totalMints, ok, err := c.lookupMintable(ctx, tx, height, id, loc)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !mintValid(r, totalMints, loc.BlockHeight) {
		return nil
	}

	// The Burn entry's burned/total_burns/total_operations are folded in by
	// drainTxEntries; only the mint-cap counter is recorded here.
	c.tx.Emit(model.LedgerEntry{RuneID: id, Operation: model.OpBurn, Amount: r.Terms.Amount})
	c.db.AddSupplyDelta(id, store.SupplyDelta{
		Minted: big.NewInt(0), TotalMints: big.NewInt(1),
		Burned: big.NewInt(0), TotalBurns: big.NewInt(0), TotalOperations: big.NewInt(0),
	})
	c.mintCounts.Add(id, new(big.Int).Add(totalMints, big.NewInt(1)))
	return nil
}

func (c *Cache) lookupMintable(ctx context.Context, tx store.BlockTx, height uint64, id model.RuneID, loc model.TransactionLocation) (*model.Rune, *big.Int, bool, error) {
	resolved, ok := c.tx.ResolveRuneID(id)
	if !ok {
		c.log.Warn("indexcache: mint references (0,0) but this tx has no etching, skipping")
		return nil, nil, false, nil
	}
	r, err := c.LookupRuneForFlush(ctx, tx, height, resolved)
	if err != nil {
		return nil, nil, false, err
	}
	if r == nil {
		return nil, nil, false, nil
	}
	total, err := c.totalMints(ctx, resolved, loc.BlockHeight)
	if err != nil {
		return nil, nil, false, err
	}
	return r, total, true, nil
}

func (c *Cache) totalMints(ctx context.Context, id model.RuneID, height uint64) (*big.Int, error) {
	if total, ok := c.mintCounts.Get(id); ok {
		return total, nil
	}
	total, err := c.st.LatestTotalMints(ctx, id, height)
	if err != nil {
		return nil, fmt.Errorf("indexcache: total mints %s: %w", id, err)
	}
	c.mintCounts.Add(id, total)
	return total, nil
}

// mintValid is the pure predicate from spec §4.2 "Mint validity".
func mintValid(r *model.Rune, totalMints *big.Int, currentHeight uint64) bool {
	if !r.Terms.Mintable() {
		return false
	}
	t := r.Terms
	if t.Cap != nil && totalMints.Cmp(t.Cap) >= 0 {
		return false
	}
	if t.HeightStart != nil && currentHeight < *t.HeightStart {
		return false
	}
	if t.HeightEnd != nil && currentHeight > *t.HeightEnd {
		return false
	}
	if t.OffsetStart != nil && currentHeight < r.EtchingHeight+*t.OffsetStart {
		return false
	}
	if t.OffsetEnd != nil && currentHeight > r.EtchingHeight+*t.OffsetEnd {
		return false
	}
	return true
}

// ApplyEdict delegates edict execution to the current TxCache (spec §4.1
// apply_edict), resolving (0,0) against this tx's own etching first.
func (c *Cache) ApplyEdict(e artifact.Edict) {
	c.tx.ApplyEdict(e.ID, e.Amount, e.Output)
}

// EndTx sweeps remaining balances to the pointer, then drains the tx's
// ledger entries into the DbCache, folding each into the supply/balance
// delta maps and the current-block output map (spec §4.1 end_tx).
func (c *Cache) EndTx() {
	c.tx.EndTx()
	c.drainTxEntries()
}

// EndTxAfterCenotaph drains entries emitted by ApplyCenotaph/
// ApplyCenotaphMint without re-running the normal sweep (a cenotaph's
// CenotaphBurn already empties input_runes).
func (c *Cache) EndTxAfterCenotaph() {
	c.drainTxEntries()
}

func (c *Cache) drainTxEntries() {
	entries := c.tx.Entries
	c.tx.Entries = nil
	c.db.AddLedgerEntries(entries)

	zeroDelta := store.SupplyDelta{
		Minted: big.NewInt(0), TotalMints: big.NewInt(0),
		Burned: big.NewInt(0), TotalBurns: big.NewInt(0), TotalOperations: big.NewInt(1),
	}

	for _, e := range entries {
		switch e.Operation {
		case model.OpSend:
			if e.SenderAddress != nil {
				c.db.AddBalanceDeduction(store.BalanceKey{RuneID: e.RuneID, Address: *e.SenderAddress}, store.BalanceDelta{
					Balance:         new(big.Int).Neg(e.Amount),
					TotalOperations: big.NewInt(1),
				})
			}
			c.db.AddSupplyDelta(e.RuneID, zeroDelta)
		case model.OpBurn:
			c.db.AddSupplyDelta(e.RuneID, store.SupplyDelta{
				Minted: big.NewInt(0), TotalMints: big.NewInt(0),
				Burned: new(big.Int).Set(e.Amount), TotalBurns: big.NewInt(1), TotalOperations: big.NewInt(1),
			})
		case model.OpReceive:
			if e.ReceiverAddress != nil {
				c.db.AddBalanceIncrease(store.BalanceKey{RuneID: e.RuneID, Address: *e.ReceiverAddress}, store.BalanceDelta{
					Balance:         new(big.Int).Set(e.Amount),
					TotalOperations: big.NewInt(1),
				})
				if e.Output != nil {
					ref := store.OutputRef{TxID: e.TxID, Vout: *e.Output}
					byRune := c.blockOutputs[ref]
					if byRune == nil {
						byRune = make(map[model.RuneID][]model.InputRuneBalance)
						c.blockOutputs[ref] = byRune
					}
					byRune[e.RuneID] = append(byRune[e.RuneID], model.FromOwner(*e.ReceiverAddress, e.Amount))
				}
			}
			c.db.AddSupplyDelta(e.RuneID, zeroDelta)
		}
	}
}

// EndBlock migrates the current-block output map into the output LRU and
// clears it (spec §4.1 end_block).
func (c *Cache) EndBlock() {
	for ref, balances := range c.blockOutputs {
		c.outputBalances.Add(ref, balances)
	}
	c.blockOutputs = make(map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance)
}

// InvalidateAll clears every cache after a rollback (spec §4.5 Rollback
// step 2, resolving §9's open question with the "clear all caches" safe
// default).
func (c *Cache) InvalidateAll() {
	c.registry.Purge()
	c.mintCounts.Purge()
	c.outputBalances.Purge()
	c.blockOutputs = make(map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance)
}

// lookupRune checks the registry LRU and, on a miss, queries the store; a
// negative lookup returns (nil, nil) and callers log-and-skip. It does not
// flush the DbCache itself: LookupRuneForFlush does that before calling it
// (spec §4.1 "Registry miss policy").
func (c *Cache) lookupRune(ctx context.Context, id model.RuneID) (*model.Rune, error) {
	if r, ok := c.registry.Get(id); ok {
		if c.metrics != nil {
			c.metrics.RegistryHits.Inc()
		}
		return &r, nil
	}
	if c.metrics != nil {
		c.metrics.RegistryMisses.Inc()
	}

	r, err := c.st.LookupRune(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("indexcache: lookup rune %s: %w", id, err)
	}
	if r == nil {
		c.log.WithField("rune_id", id.String()).Warn("indexcache: rune not found, skipping operation")
		return nil, nil
	}
	c.registry.Add(id, *r)
	return r, nil
}

// LookupRuneForFlush is the mid-block registry-miss path described in
// spec §4.1/§4.4: the DbCache is flushed into tx before the store is
// queried, so a same-block etching becomes visible to a later tx.
func (c *Cache) LookupRuneForFlush(ctx context.Context, tx store.BlockTx, height uint64, id model.RuneID) (*model.Rune, error) {
	if r, ok := c.registry.Get(id); ok {
		return &r, nil
	}
	if c.db.Pending() {
		if err := c.db.Flush(ctx, tx, height); err != nil {
			return nil, fmt.Errorf("indexcache: mid-block flush: %w", err)
		}
	}
	return c.lookupRune(ctx, id)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
