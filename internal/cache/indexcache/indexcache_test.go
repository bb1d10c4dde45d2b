package indexcache

import (
	"context"
	"math/big"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/runeindex/internal/artifact"
	"github.com/synnergy-labs/runeindex/internal/cache/dbcache"
	"github.com/synnergy-labs/runeindex/internal/model"
	"github.com/synnergy-labs/runeindex/internal/store"
)

type fakeStore struct {
	runes       map[model.RuneID]model.Rune
	totalMints  map[model.RuneID]*big.Int
	maxNumber   uint64
	blockTx     *fakeBlockTx
}

func newFakeStore() *fakeStore {
	return &fakeStore{runes: map[model.RuneID]model.Rune{}, totalMints: map[model.RuneID]*big.Int{}}
}

func (s *fakeStore) MaxRuneNumber(ctx context.Context) (uint64, error) { return s.maxNumber, nil }

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
	if v, ok := s.totalMints[id]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (s *fakeStore) LatestSupply(ctx context.Context, id model.RuneID, height uint64) (model.SupplyChange, error) {
	return model.SupplyChange{}, nil
}

func (s *fakeStore) LatestBalance(ctx context.Context, key store.BalanceKey, height uint64) (model.BalanceChange, error) {
	return model.BalanceChange{}, nil
}

func (s *fakeStore) LookupOutputRuneBalances(ctx context.Context, outputs []store.OutputRef) (map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance, error) {
	return nil, nil
}

func (s *fakeStore) BeginBlock(ctx context.Context, height uint64) (store.BlockTx, error) {
	s.blockTx = &fakeBlockTx{}
	return s.blockTx, nil
}

func (s *fakeStore) DeleteBlock(ctx context.Context, height uint64) error { return nil }
func (s *fakeStore) Close()                                              {}

type fakeBlockTx struct {
	runes             []model.Rune
	ledgerEntries     []model.LedgerEntry
	supplyChanges     map[model.RuneID]store.SupplyDelta
	balanceIncreases  map[store.BalanceKey]store.BalanceDelta
	balanceDeductions map[store.BalanceKey]store.BalanceDelta
}

func (b *fakeBlockTx) InsertRunes(ctx context.Context, runes []model.Rune) error {
	b.runes = append(b.runes, runes...)
	return nil
}
func (b *fakeBlockTx) UpsertSupplyChanges(ctx context.Context, height uint64, deltas map[model.RuneID]store.SupplyDelta) error {
	b.supplyChanges = deltas
	return nil
}
func (b *fakeBlockTx) InsertLedgerEntries(ctx context.Context, entries []model.LedgerEntry) error {
	b.ledgerEntries = append(b.ledgerEntries, entries...)
	return nil
}
func (b *fakeBlockTx) UpsertBalanceChanges(ctx context.Context, height uint64, deltas map[store.BalanceKey]store.BalanceDelta) error {
	if b.balanceIncreases == nil {
		b.balanceIncreases = map[store.BalanceKey]store.BalanceDelta{}
	}
	if b.balanceDeductions == nil {
		b.balanceDeductions = map[store.BalanceKey]store.BalanceDelta{}
	}
	for k, v := range deltas {
		if v.Balance != nil && v.Balance.Sign() < 0 {
			b.balanceDeductions[k] = v
		} else {
			b.balanceIncreases[k] = v
		}
	}
	return nil
}
func (b *fakeBlockTx) Commit(ctx context.Context) error   { return nil }
func (b *fakeBlockTx) Rollback(ctx context.Context) error { return nil }

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestEtchingWithPremineSweepsToPointer(t *testing.T) {
	st := newFakeStore()
	db := dbcache.New(testLogger())
	ic, err := New(testLogger(), st, db, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	loc := model.TransactionLocation{Network: "mainnet", BlockHash: "h", BlockHeight: 10, TxIndex: 0, TxID: "tx1", Timestamp: 1}
	eligible := map[uint32]string{0: "alice"}
	ic.BeginTx(loc, nil, eligible, 1)

	id := ic.ApplyEtching(&artifact.Etching{Name: "TESTRUNE", Premine: big.NewInt(1000)}, loc)
	ic.EndTx()

	if id != loc.RuneID() {
		t.Fatalf("expected etching id to match tx location, got %s", id)
	}
	if !db.Pending() {
		t.Fatalf("expected db cache to have pending writes")
	}

	tx, _ := st.BeginBlock(context.Background(), loc.BlockHeight)
	if err := db.Flush(context.Background(), tx, loc.BlockHeight); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	bt := tx.(*fakeBlockTx)

	if len(bt.ledgerEntries) != 2 {
		t.Fatalf("expected an Etching entry plus the premine sweep's Receive, got %d: %+v", len(bt.ledgerEntries), bt.ledgerEntries)
	}
	etching, receive := bt.ledgerEntries[0], bt.ledgerEntries[1]

	if etching.Operation != model.OpEtching {
		t.Fatalf("expected the first entry to be the Etching, got %v", etching.Operation)
	}
	if etching.BlockHeight != loc.BlockHeight || etching.BlockHash != loc.BlockHash || etching.TxID != loc.TxID {
		t.Fatalf("expected the Etching entry to carry the tx location, got %+v", etching)
	}
	if etching.EventIndex != 0 {
		t.Fatalf("expected the Etching to be event_index 0 (before its effects), got %d", etching.EventIndex)
	}

	if receive.Operation != model.OpReceive {
		t.Fatalf("expected the second entry to be the premine sweep's Receive, got %v", receive.Operation)
	}
	if receive.EventIndex != 1 {
		t.Fatalf("expected event indices to be contiguous 0..N-1, got %d after the Etching's 0", receive.EventIndex)
	}
	if receive.BlockHeight != loc.BlockHeight || receive.TxID != loc.TxID {
		t.Fatalf("expected the Receive entry to carry the tx location, got %+v", receive)
	}

	delta, ok := bt.supplyChanges[id]
	if !ok {
		t.Fatalf("expected a buffered supply_changes delta for %s", id)
	}
	if delta.TotalOperations.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("expected total_operations 2 (1 etching + 1 receive), got %s", delta.TotalOperations)
	}
	if delta.Minted.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected premine to count as minted supply, got %s", delta.Minted)
	}

	if _, ok := bt.balanceIncreases[store.BalanceKey{RuneID: id, Address: "alice"}]; !ok {
		t.Fatalf("expected alice's balance_changes row from the premine sweep")
	}
}

func TestMintRejectedPastCap(t *testing.T) {
	st := newFakeStore()
	db := dbcache.New(testLogger())
	ic, err := New(testLogger(), st, db, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := model.RuneID{BlockHeight: 1, TxIndex: 0}
	st.runes[id] = model.Rune{
		ID: id, EtchingHeight: 1,
		Terms: &model.MintTerms{Amount: big.NewInt(10), Cap: big.NewInt(5)},
	}
	st.totalMints[id] = big.NewInt(5) // already at cap

	loc := model.TransactionLocation{BlockHeight: 20, TxID: "tx2"}
	ic.BeginTx(loc, nil, map[uint32]string{}, 0)

	fakeTx, _ := st.BeginBlock(context.Background(), 20)
	if err := ic.ApplyMint(context.Background(), fakeTx, 20, id, loc); err != nil {
		t.Fatalf("ApplyMint: %v", err)
	}
	ic.EndTx()

	if db.Pending() {
		t.Fatalf("expected no writes for a mint past its cap")
	}
}

func TestMintRejectedOutsideHeightWindow(t *testing.T) {
	st := newFakeStore()
	db := dbcache.New(testLogger())
	ic, err := New(testLogger(), st, db, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := model.RuneID{BlockHeight: 1, TxIndex: 0}
	start := uint64(100)
	st.runes[id] = model.Rune{
		ID: id, EtchingHeight: 1,
		Terms: &model.MintTerms{Amount: big.NewInt(10), HeightStart: &start},
	}

	loc := model.TransactionLocation{BlockHeight: 50, TxID: "tx3"} // before window opens
	ic.BeginTx(loc, nil, map[uint32]string{}, 0)

	fakeTx, _ := st.BeginBlock(context.Background(), 50)
	if err := ic.ApplyMint(context.Background(), fakeTx, 50, id, loc); err != nil {
		t.Fatalf("ApplyMint: %v", err)
	}
	ic.EndTx()

	if db.Pending() {
		t.Fatalf("expected no writes for a mint before its height window opens")
	}
}

func TestCenotaphBurnsInputsOnTransfer(t *testing.T) {
	st := newFakeStore()
	db := dbcache.New(testLogger())
	ic, err := New(testLogger(), st, db, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := model.RuneID{BlockHeight: 1, TxIndex: 0}
	owner := "alice"
	inputs := map[model.RuneID][]model.InputRuneBalance{id: {model.FromOwner(owner, big.NewInt(99))}}
	loc := model.TransactionLocation{BlockHeight: 5, TxID: "tx4"}
	ic.BeginTx(loc, inputs, map[uint32]string{0: "bob"}, 1)

	ic.ApplyCenotaph()
	ic.EndTxAfterCenotaph()

	if !db.Pending() {
		t.Fatalf("expected a burn entry to be buffered")
	}
}

// TestTransferBumpsTotalOperationsForSendAndReceive covers spec §8.1's
// total_operations formula for a plain transfer: a Receive and a Send
// each contribute one operation, on top of whatever etch/mint/burn
// activity already touched the rune.
func TestTransferBumpsTotalOperationsForSendAndReceive(t *testing.T) {
	st := newFakeStore()
	db := dbcache.New(testLogger())
	ic, err := New(testLogger(), st, db, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := model.RuneID{BlockHeight: 1, TxIndex: 0}
	owner := "alice"
	inputs := map[model.RuneID][]model.InputRuneBalance{id: {model.FromOwner(owner, big.NewInt(500))}}
	loc := model.TransactionLocation{Network: "mainnet", BlockHash: "h2", BlockHeight: 11, TxIndex: 1, TxID: "tx5", Timestamp: 2}
	ic.BeginTx(loc, inputs, map[uint32]string{0: "bob"}, 1)

	ic.ApplyEdict(artifact.Edict{ID: id, Amount: big.NewInt(0), Output: 0})
	ic.EndTx()

	tx, _ := st.BeginBlock(context.Background(), loc.BlockHeight)
	if err := db.Flush(context.Background(), tx, loc.BlockHeight); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	bt := tx.(*fakeBlockTx)

	if len(bt.ledgerEntries) != 2 {
		t.Fatalf("expected a Receive then a Send, got %d: %+v", len(bt.ledgerEntries), bt.ledgerEntries)
	}
	if bt.ledgerEntries[0].Operation != model.OpReceive || bt.ledgerEntries[1].Operation != model.OpSend {
		t.Fatalf("expected Receive-before-Send ordering, got %v then %v", bt.ledgerEntries[0].Operation, bt.ledgerEntries[1].Operation)
	}
	if bt.ledgerEntries[0].EventIndex != 0 || bt.ledgerEntries[1].EventIndex != 1 {
		t.Fatalf("expected contiguous event indices 0,1, got %d then %d", bt.ledgerEntries[0].EventIndex, bt.ledgerEntries[1].EventIndex)
	}
	if bt.ledgerEntries[0].BlockHeight != loc.BlockHeight || bt.ledgerEntries[1].BlockHeight != loc.BlockHeight {
		t.Fatalf("expected both entries to carry the tx's block height, got %+v", bt.ledgerEntries)
	}

	delta, ok := bt.supplyChanges[id]
	if !ok {
		t.Fatalf("expected a buffered supply_changes delta for %s", id)
	}
	if delta.TotalOperations.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("expected total_operations 2 (1 receive + 1 send), got %s", delta.TotalOperations)
	}

	if _, ok := bt.balanceIncreases[store.BalanceKey{RuneID: id, Address: "bob"}]; !ok {
		t.Fatalf("expected bob's balance_changes increase")
	}
	if _, ok := bt.balanceDeductions[store.BalanceKey{RuneID: id, Address: "alice"}]; !ok {
		t.Fatalf("expected alice's balance_changes deduction")
	}
}
