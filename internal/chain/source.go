package chain

import "context"

// BlockSource is the external block-fetching collaborator (spec §6.1). The
// engine never calls it: the observer sidecar and `scan start` fetch
// blocks by height and hand them to the engine.
type BlockSource interface {
	// BlockByHeight fetches the fully materialized block at height.
	BlockByHeight(ctx context.Context, height uint64) (Block, error)
	// BlockByHash fetches a block identified by hash. Nothing in this
	// module calls it; the observer only fetches by height.
	BlockByHash(ctx context.Context, hash string) (Block, error)
	// TipHeight returns the current chain tip height, used by the
	// height-poller task (spec §5 "Shared resources").
	TipHeight(ctx context.Context) (uint64, error)
}

// Event is a single notification from the observer sidecar: either a new
// block to apply, or a rollback of a previously-applied block.
type Event struct {
	Kind  EventKind
	Block Block // set when Kind == EventApply
	// Height/Hash identify the block to roll back when Kind == EventRollback.
	Height uint64
	Hash   string
}

// EventKind discriminates the two Event cases.
type EventKind uint8

const (
	EventApply EventKind = iota
	EventRollback
)
