// Package engine is the block driver: it converts chain.Event values
// into IndexCache/DbCache/Store calls, owning the one store transaction
// each block is committed through (spec §4.5).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/synnergy-labs/runeindex/internal/artifact"
	"github.com/synnergy-labs/runeindex/internal/cache/dbcache"
	"github.com/synnergy-labs/runeindex/internal/cache/indexcache"
	"github.com/synnergy-labs/runeindex/internal/cache/inputresolve"
	"github.com/synnergy-labs/runeindex/internal/chain"
	"github.com/synnergy-labs/runeindex/internal/metrics"
	"github.com/synnergy-labs/runeindex/internal/model"
	"github.com/synnergy-labs/runeindex/internal/store"
)

// channelBufferSize bounds the observer->engine event channel. spec.md
// does not size it; 64 is this implementation's default, documented in
// DESIGN.md as an open-question-style default.
const channelBufferSize = 64

// Engine is the single-writer worker that owns IndexCache, DbCache and
// the store transaction boundary (spec §5).
type Engine struct {
	log     *logrus.Logger
	hot     *zap.Logger
	st      store.Store
	cache   *indexcache.Cache
	db      *dbcache.Cache
	decoder artifact.Decoder
	network string
	metrics *metrics.Collectors

	events chan chain.Event
}

// New builds an Engine. network is one of "mainnet"/"testnet"/"signet"/
// "regtest" (spec §6.4 `[network] bitcoin_network`), used to resolve
// scriptPubKey bytes into addresses.
func New(log *logrus.Logger, hot *zap.Logger, st store.Store, decoder artifact.Decoder, network string, cacheSize int, m *metrics.Collectors) (*Engine, error) {
	db := dbcache.New(log)
	cache, err := indexcache.New(log, st, db, cacheSize)
	if err != nil {
		return nil, fmt.Errorf("engine: new index cache: %w", err)
	}
	cache.SetMetrics(m)

	return &Engine{
		log:     log,
		hot:     hot,
		st:      st,
		cache:   cache,
		db:      db,
		decoder: decoder,
		network: network,
		metrics: m,
		events:  make(chan chain.Event, channelBufferSize),
	}, nil
}

// Events returns the channel the observer sidecar publishes Apply/
// Rollback notifications to (spec §5 "bounded channel").
func (e *Engine) Events() chan<- chain.Event { return e.events }

// Run drains the event channel until ctx is canceled, applying or rolling
// back each block in order as it arrives (spec §5 "single-writer").
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-e.events:
			if !ok {
				return nil
			}
			if err := e.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) handle(ctx context.Context, ev chain.Event) error {
	switch ev.Kind {
	case chain.EventApply:
		return e.ApplyBlock(ctx, ev.Block)
	case chain.EventRollback:
		return e.RollbackBlock(ctx, ev.Height)
	default:
		return fmt.Errorf("engine: unknown event kind %d", ev.Kind)
	}
}

// ApplyBlock runs the full block driver for block b (spec §4.5 "Per new
// block B").
func (e *Engine) ApplyBlock(ctx context.Context, b chain.Block) error {
	tx, err := e.st.BeginBlock(ctx, b.Height)
	if err != nil {
		return fmt.Errorf("engine: begin block %d: %w", b.Height, err)
	}

	if err := e.applyBlockBody(ctx, tx, b); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	flushStart := time.Now()
	if err := e.db.Flush(ctx, tx, b.Height); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if e.metrics != nil {
		e.metrics.FlushDuration.Observe(time.Since(flushStart).Seconds())
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("engine: commit block %d: %w", b.Height, err)
	}

	if e.metrics != nil {
		e.metrics.BlocksProcessed.Inc()
		e.metrics.BlockHeight.Set(float64(b.Height))
	}
	e.hot.Debug("applied block", zap.Uint64("height", b.Height), zap.Int("txs", len(b.Transactions)))
	return nil
}

func (e *Engine) applyBlockBody(ctx context.Context, tx store.BlockTx, b chain.Block) error {
	if err := e.cache.ResetMaxRuneNumber(ctx); err != nil {
		return err
	}
	resolver := inputresolve.New(e.cache, e.st)
	params := chain.NetworkParams(e.network)

	for _, t := range b.Transactions {
		loc := model.TransactionLocation{
			Network: e.network, BlockHash: b.Hash, BlockHeight: b.Height,
			TxIndex: t.TxIndex, TxID: t.TxID, Timestamp: b.Timestamp,
		}

		eligible := make(map[uint32]string)
		var opReturnScript []byte
		for i, o := range t.Outputs {
			if o.IsOpReturn {
				if opReturnScript == nil {
					opReturnScript = o.ScriptPubKey
				}
				continue
			}
			if addr, ok := chain.ScriptToAddress(o.ScriptPubKey, params); ok {
				eligible[uint32(i)] = addr
			}
		}
		totalOutputs := uint32(len(t.Outputs))

		spent := make([]inputresolve.SpentOutput, len(t.Inputs))
		for i, in := range t.Inputs {
			spent[i] = inputresolve.SpentOutput{InputIndex: i, PrevTxID: in.PrevTxID, Vout: in.Vout}
		}
		inputs, err := resolver.Resolve(ctx, spent)
		if err != nil {
			return fmt.Errorf("engine: resolve inputs for %s: %w", t.TxID, err)
		}

		e.cache.BeginTx(loc, inputs, eligible, totalOutputs)

		if err := e.applyArtifact(ctx, tx, b.Height, opReturnScript, loc); err != nil {
			return err
		}

		if e.metrics != nil {
			e.metrics.TxsProcessed.Inc()
		}
	}

	e.cache.EndBlock()
	return nil
}

func (e *Engine) applyArtifact(ctx context.Context, tx store.BlockTx, height uint64, script []byte, loc model.TransactionLocation) error {
	if script == nil {
		e.cache.EndTx()
		return nil
	}

	a, err := e.decoder.Decode(script)
	if err != nil {
		return fmt.Errorf("engine: decode artifact at %s: %w", loc.Display(), err)
	}
	if a == nil {
		e.cache.EndTx()
		return nil
	}

	switch {
	case a.IsRunestone():
		e.cache.ApplyRunestone(a)
		if a.Etching != nil {
			e.cache.ApplyEtching(a.Etching, loc)
		}
		if a.Mint != nil {
			if err := e.cache.ApplyMint(ctx, tx, height, *a.Mint, loc); err != nil {
				return err
			}
		}
		for _, ed := range a.Edicts {
			e.cache.ApplyEdict(ed)
		}
		e.cache.EndTx()

	case a.IsCenotaph():
		e.cache.ApplyCenotaph()
		if a.Etching != nil {
			e.cache.ApplyCenotaphEtching(loc)
		}
		if a.Mint != nil {
			if err := e.cache.ApplyCenotaphMint(ctx, tx, height, *a.Mint, loc); err != nil {
				return err
			}
		}
		e.cache.EndTxAfterCenotaph()
	}
	return nil
}

// RollbackBlock reorg-deletes block height and clears every cache (spec
// §4.5 Rollback).
func (e *Engine) RollbackBlock(ctx context.Context, height uint64) error {
	if err := e.st.DeleteBlock(ctx, height); err != nil {
		return fmt.Errorf("engine: rollback block %d: %w", height, err)
	}
	e.cache.InvalidateAll()
	if e.metrics != nil {
		e.metrics.Rollbacks.Inc()
	}
	e.log.WithField("height", height).Warn("engine: rolled back block")
	return nil
}
