package engine

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/synnergy-labs/runeindex/internal/artifact"
	"github.com/synnergy-labs/runeindex/internal/chain"
	"github.com/synnergy-labs/runeindex/internal/model"
	"github.com/synnergy-labs/runeindex/internal/store"
)

// p2pkhScript builds a minimal OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY
// OP_CHECKSIG script so chain.ScriptToAddress has something standard to
// decode, without pulling in a full transaction-signing stack.
func p2pkhScript(fill byte) []byte {
	script := []byte{0x76, 0xa9, 0x14}
	script = append(script, bytes.Repeat([]byte{fill}, 20)...)
	script = append(script, 0x88, 0xac)
	return script
}

type fakeStore struct {
	runes      map[model.RuneID]model.Rune
	totalMints map[model.RuneID]*big.Int
	deleted    []uint64
	lastTx     *fakeBlockTx
}

func newFakeStore() *fakeStore {
	return &fakeStore{runes: map[model.RuneID]model.Rune{}, totalMints: map[model.RuneID]*big.Int{}}
}

func (s *fakeStore) MaxRuneNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (s *fakeStore) LookupRune(ctx context.Context, id model.RuneID) (*model.Rune, error) {
	r, ok := s.runes[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
func (s *fakeStore) LookupRuneByName(ctx context.Context, name string) (*model.Rune, error) {
	return nil, nil
}
func (s *fakeStore) LatestTotalMints(ctx context.Context, id model.RuneID, height uint64) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (s *fakeStore) LatestSupply(ctx context.Context, id model.RuneID, height uint64) (model.SupplyChange, error) {
	return model.SupplyChange{}, nil
}
func (s *fakeStore) LatestBalance(ctx context.Context, key store.BalanceKey, height uint64) (model.BalanceChange, error) {
	return model.BalanceChange{}, nil
}
func (s *fakeStore) LookupOutputRuneBalances(ctx context.Context, outputs []store.OutputRef) (map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance, error) {
	return map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance{}, nil
}
func (s *fakeStore) BeginBlock(ctx context.Context, height uint64) (store.BlockTx, error) {
	s.lastTx = &fakeBlockTx{}
	return s.lastTx, nil
}
func (s *fakeStore) DeleteBlock(ctx context.Context, height uint64) error {
	s.deleted = append(s.deleted, height)
	return nil
}
func (s *fakeStore) Close() {}

type fakeBlockTx struct {
	runes         []model.Rune
	ledgerEntries []model.LedgerEntry
}

func (b *fakeBlockTx) InsertRunes(ctx context.Context, runes []model.Rune) error {
	b.runes = append(b.runes, runes...)
	return nil
}
func (b *fakeBlockTx) UpsertSupplyChanges(ctx context.Context, height uint64, deltas map[model.RuneID]store.SupplyDelta) error {
	return nil
}
func (b *fakeBlockTx) InsertLedgerEntries(ctx context.Context, entries []model.LedgerEntry) error {
	b.ledgerEntries = append(b.ledgerEntries, entries...)
	return nil
}
func (b *fakeBlockTx) UpsertBalanceChanges(ctx context.Context, height uint64, deltas map[store.BalanceKey]store.BalanceDelta) error {
	return nil
}
func (b *fakeBlockTx) Commit(ctx context.Context) error   { return nil }
func (b *fakeBlockTx) Rollback(ctx context.Context) error { return nil }

// fakeDecoder keys artifacts by the exact script bytes a test transaction
// carries in its (only) OP_RETURN output.
type fakeDecoder struct {
	byScript map[string]*artifact.Artifact
}

func (d *fakeDecoder) Decode(script []byte) (*artifact.Artifact, error) {
	return d.byScript[string(script)], nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// TestIntraBlockChain covers spec §8's boundary scenario 6: a tx receives
// runes on an output, and a later tx in the *same* block spends that
// output — resolution must come from the current-block map, not the
// store.
func TestIntraBlockChain(t *testing.T) {
	st := newFakeStore()
	opReturnEtch := []byte("etch-marker")
	opReturnEdict := []byte("edict-marker")

	aliceScript := p2pkhScript(0xAA)
	bobScript := p2pkhScript(0xBB)

	params := &chaincfg.RegressionNetParams
	aliceAddr, ok := chain.ScriptToAddress(aliceScript, params)
	if !ok {
		t.Fatalf("expected alice script to decode")
	}

	block := chain.Block{
		Hash: "blk1", Height: 10, Timestamp: 1000,
		Transactions: []chain.Transaction{
			{
				TxID: "tx0", TxIndex: 0,
				Outputs: []chain.TxOut{
					{ScriptPubKey: aliceScript},
					{ScriptPubKey: opReturnEtch, IsOpReturn: true},
				},
			},
			{
				TxID: "tx1", TxIndex: 1,
				Inputs: []chain.TxIn{{PrevTxID: "tx0", Vout: 0}},
				Outputs: []chain.TxOut{
					{ScriptPubKey: bobScript},
					{ScriptPubKey: opReturnEdict, IsOpReturn: true},
				},
			},
		},
	}

	etchedID := model.RuneID{BlockHeight: 10, TxIndex: 0}
	decoder := &fakeDecoder{byScript: map[string]*artifact.Artifact{
		string(opReturnEtch): {
			Kind: artifact.KindRunestone,
			Etching: &artifact.Etching{
				Name: "TESTRUNE", Premine: big.NewInt(500),
			},
		},
		string(opReturnEdict): {
			Kind: artifact.KindRunestone,
			Edicts: []artifact.Edict{
				{ID: etchedID, Amount: big.NewInt(0), Output: 0},
			},
		},
	}}

	e, err := New(testLogger(), zap.NewNop(), st, decoder, "regtest", 128, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.ApplyBlock(context.Background(), block); err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}

	entries := st.lastTx.ledgerEntries
	var receives, sends []model.LedgerEntry
	for _, entry := range entries {
		switch entry.Operation {
		case model.OpReceive:
			receives = append(receives, entry)
		case model.OpSend:
			sends = append(sends, entry)
		}
	}

	if len(receives) != 2 {
		t.Fatalf("expected 2 receive entries (premine sweep + edict move), got %d: %+v", len(receives), receives)
	}
	if len(sends) != 1 {
		t.Fatalf("expected 1 send entry attributing alice's spend, got %d", len(sends))
	}
	if *sends[0].SenderAddress != aliceAddr {
		t.Fatalf("expected send to be attributed to alice, got %s", *sends[0].SenderAddress)
	}
	if sends[0].Amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected send amount 500, got %s", sends[0].Amount)
	}
}

// TestRollbackInvalidatesCaches covers spec §4.5's rollback path: a
// DeleteBlock call against the store plus a full cache purge.
func TestRollbackInvalidatesCaches(t *testing.T) {
	st := newFakeStore()
	decoder := &fakeDecoder{byScript: map[string]*artifact.Artifact{}}
	e, err := New(testLogger(), zap.NewNop(), st, decoder, "regtest", 128, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ref := store.OutputRef{TxID: "tx0", Vout: 0}
	e.cache.CacheOutputBalances(ref, map[model.RuneID][]model.InputRuneBalance{})

	if err := e.RollbackBlock(context.Background(), 10); err != nil {
		t.Fatalf("RollbackBlock: %v", err)
	}
	if len(st.deleted) != 1 || st.deleted[0] != 10 {
		t.Fatalf("expected DeleteBlock(10), got %+v", st.deleted)
	}
	if _, ok := e.cache.OutputBalances(ref); ok {
		t.Fatalf("expected the output-balance cache to be purged by the rollback")
	}
}
