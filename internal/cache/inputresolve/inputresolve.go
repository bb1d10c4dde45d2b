// Package inputresolve implements the input-resolution helper: given a
// tx's spent outputs, it resolves each one's carried rune balances from
// the current-block map, the output LRU, or (batched) the store, and
// merges the result into TxCache's starting state (spec §4.3).
package inputresolve

import (
	"context"
	"fmt"

	"github.com/synnergy-labs/runeindex/internal/cache/indexcache"
	"github.com/synnergy-labs/runeindex/internal/model"
	"github.com/synnergy-labs/runeindex/internal/store"
)

// SpentOutput is one input of the transaction being resolved.
type SpentOutput struct {
	InputIndex int
	PrevTxID   string
	Vout       uint32
}

// Resolver batch-resolves spent outputs against IndexCache's caches and,
// for misses, a single store query.
type Resolver struct {
	cache *indexcache.Cache
	st    store.Store
}

// New builds a Resolver over cache's current-block map and output LRU,
// falling back to st for misses.
func New(cache *indexcache.Cache, st store.Store) *Resolver {
	return &Resolver{cache: cache, st: st}
}

// Resolve returns the rune balances carried by every spent output, merged
// into a single map<rune_id, []input balance> that preserves the
// order-of-appearance each rune's balances were originally queued in
// (spec §4.3 "preserving per-rune order-of-appearance").
func (r *Resolver) Resolve(ctx context.Context, spent []SpentOutput) (map[model.RuneID][]model.InputRuneBalance, error) {
	resolved := make(map[int]map[model.RuneID][]model.InputRuneBalance, len(spent))
	var misses []SpentOutput

	for _, s := range spent {
		ref := store.OutputRef{TxID: s.PrevTxID, Vout: s.Vout}
		if balances, ok := r.cache.OutputBalances(ref); ok {
			resolved[s.InputIndex] = balances
			continue
		}
		misses = append(misses, s)
	}

	if len(misses) > 0 {
		refs := make([]store.OutputRef, len(misses))
		for i, m := range misses {
			refs[i] = store.OutputRef{TxID: m.PrevTxID, Vout: m.Vout}
		}
		fetched, err := r.st.LookupOutputRuneBalances(ctx, refs)
		if err != nil {
			return nil, fmt.Errorf("inputresolve: batch lookup: %w", err)
		}
		for _, m := range misses {
			ref := store.OutputRef{TxID: m.PrevTxID, Vout: m.Vout}
			balances := fetched[ref]
			r.cache.CacheOutputBalances(ref, balances)
			resolved[m.InputIndex] = balances
		}
	}

	merged := make(map[model.RuneID][]model.InputRuneBalance)
	for i := 0; i < len(spent); i++ {
		byRune, ok := resolved[i]
		if !ok {
			continue
		}
		for id, balances := range byRune {
			merged[id] = append(merged[id], balances...)
		}
	}
	return merged, nil
}
