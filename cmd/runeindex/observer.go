package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/runeindex/internal/chain"
)

// pollInterval is how often the observer sidecar checks the chain tip
// for new blocks (spec §5 "height-poller task"). spec.md leaves the
// cadence unspecified; this implementation's default is documented in
// DESIGN.md.
const pollInterval = 10 * time.Second

// runObserver polls client.TipHeight and pushes an EventApply for every
// newly confirmed block height above the last one seen, starting from
// fromHeight. It never attempts reorg detection itself — bitcoind's RPC
// surface does not expose a chainhook-style notification, so this
// sidecar only grows the tip forward; true rollback handling is left to
// whatever chainhook/ZMQ integration spec §6.1 names as an external
// collaborator and is exercised here only via Engine.RollbackBlock's
// unit tests.
func runObserver(ctx context.Context, log *logrus.Logger, client chain.BlockSource, events chan<- chain.Event, fromHeight uint64) error {
	next := fromHeight
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tip, err := client.TipHeight(ctx)
			if err != nil {
				log.WithError(err).Warn("observer: tip height lookup failed")
				continue
			}
			for next <= tip {
				b, err := client.BlockByHeight(ctx, next)
				if err != nil {
					log.WithError(err).WithField("height", next).Warn("observer: block fetch failed")
					break
				}
				select {
				case events <- chain.Event{Kind: chain.EventApply, Block: b}:
					next++
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
