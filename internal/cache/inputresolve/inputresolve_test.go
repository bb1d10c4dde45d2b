package inputresolve

import (
	"context"
	"math/big"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/runeindex/internal/cache/dbcache"
	"github.com/synnergy-labs/runeindex/internal/cache/indexcache"
	"github.com/synnergy-labs/runeindex/internal/model"
	"github.com/synnergy-labs/runeindex/internal/store"
)

type fakeStore struct {
	outputs map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance
}

func (s *fakeStore) MaxRuneNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (s *fakeStore) LookupRune(ctx context.Context, id model.RuneID) (*model.Rune, error) {
	return nil, nil
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
	result := make(map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance)
	for _, o := range outputs {
		if v, ok := s.outputs[o]; ok {
			result[o] = v
		}
	}
	return result, nil
}
func (s *fakeStore) BeginBlock(ctx context.Context, height uint64) (store.BlockTx, error) {
	return nil, nil
}
func (s *fakeStore) DeleteBlock(ctx context.Context, height uint64) error { return nil }
func (s *fakeStore) Close()                                              {}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestResolveMergesHitsAndMisses(t *testing.T) {
	id := model.RuneID{BlockHeight: 1, TxIndex: 0}
	st := &fakeStore{outputs: map[store.OutputRef]map[model.RuneID][]model.InputRuneBalance{
		{TxID: "prev2", Vout: 0}: {id: {model.FromOwner("carol", big.NewInt(7))}},
	}}
	db := dbcache.New(testLogger())
	ic, err := indexcache.New(testLogger(), st, db, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := New(ic, st)
	spent := []SpentOutput{
		{InputIndex: 0, PrevTxID: "prev2", Vout: 0},
	}
	balances, err := r.Resolve(context.Background(), spent)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(balances[id]) != 1 || balances[id][0].Amount.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("unexpected balances: %+v", balances)
	}

	// Second resolution should now hit the LRU, not the store.
	st.outputs = nil
	balances2, err := r.Resolve(context.Background(), spent)
	if err != nil {
		t.Fatalf("Resolve (cached): %v", err)
	}
	if len(balances2[id]) != 1 {
		t.Fatalf("expected cached hit to still resolve, got %+v", balances2)
	}
}
