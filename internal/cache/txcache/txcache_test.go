package txcache

import (
	"math/big"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/runeindex/internal/model"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testLocation() model.TransactionLocation {
	return model.TransactionLocation{
		Network: "mainnet", BlockHash: "h", BlockHeight: 1, TxIndex: 0, TxID: "tx1", Timestamp: 100,
	}
}

func oneRune() model.RuneID { return model.RuneID{BlockHeight: 1, TxIndex: 0} }

func TestMoveBalanceReceiveBeforeSend(t *testing.T) {
	id := oneRune()
	owner := "alice"
	inputs := map[model.RuneID][]model.InputRuneBalance{id: {model.FromOwner(owner, big.NewInt(100))}}
	eligible := map[uint32]string{0: "bob"}
	c := New(testLogger(), testLocation(), inputs, eligible, 1)

	out := uint32(0)
	c.moveBalance(&out, id, big.NewInt(0))

	if len(c.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(c.Entries))
	}
	if c.Entries[0].Operation != model.OpReceive {
		t.Fatalf("expected Receive first, got %s", c.Entries[0].Operation)
	}
	if c.Entries[1].Operation != model.OpSend {
		t.Fatalf("expected Send second, got %s", c.Entries[1].Operation)
	}
	if c.Entries[0].EventIndex >= c.Entries[1].EventIndex {
		t.Fatalf("expected increasing event index")
	}
}

func TestMoveBalanceNoReceiverBurns(t *testing.T) {
	id := oneRune()
	owner := "alice"
	inputs := map[model.RuneID][]model.InputRuneBalance{id: {model.FromOwner(owner, big.NewInt(50))}}
	c := New(testLogger(), testLocation(), inputs, map[uint32]string{}, 0)

	c.moveBalance(nil, id, big.NewInt(0))

	if len(c.Entries) != 1 || c.Entries[0].Operation != model.OpBurn {
		t.Fatalf("expected single Burn entry, got %+v", c.Entries)
	}
}

func TestApplyEdictSplitEvenDivision(t *testing.T) {
	id := oneRune()
	inputs := map[model.RuneID][]model.InputRuneBalance{id: {model.MintOrigin(big.NewInt(100))}}
	eligible := map[uint32]string{0: "a", 1: "b", 2: "c"}
	c := New(testLogger(), testLocation(), inputs, eligible, 3)

	c.ApplyEdict(id, big.NewInt(0), 3) // output == total_outputs: split marker

	receives := filterOp(c.Entries, model.OpReceive)
	if len(receives) != 3 {
		t.Fatalf("expected 3 receive entries, got %d", len(receives))
	}
	total := big.NewInt(0)
	for _, e := range receives {
		total.Add(total, e.Amount)
	}
	if total.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected total 100, got %s", total)
	}
	// 100 / 3 = 33 remainder 1: first output gets 34, others 33.
	if receives[0].Amount.Cmp(big.NewInt(34)) != 0 {
		t.Fatalf("expected first output to receive the remainder unit, got %s", receives[0].Amount)
	}
}

func TestApplyEdictToNonexistentOutputBurns(t *testing.T) {
	id := oneRune()
	owner := "alice"
	inputs := map[model.RuneID][]model.InputRuneBalance{id: {model.FromOwner(owner, big.NewInt(10))}}
	eligible := map[uint32]string{0: "a"}
	c := New(testLogger(), testLocation(), inputs, eligible, 1)

	c.ApplyEdict(id, big.NewInt(10), 5) // output 5 >= total_outputs and not a split marker

	if len(c.Entries) != 1 || c.Entries[0].Operation != model.OpBurn {
		t.Fatalf("expected burn for edict to out-of-range output, got %+v", c.Entries)
	}
}

func TestCenotaphBurnEmitsOnlyBurns(t *testing.T) {
	id := oneRune()
	owner := "alice"
	inputs := map[model.RuneID][]model.InputRuneBalance{
		id: {model.FromOwner(owner, big.NewInt(7)), model.MintOrigin(big.NewInt(3))},
	}
	c := New(testLogger(), testLocation(), inputs, map[uint32]string{0: "bob"}, 1)

	c.CenotaphBurn()

	if len(c.Entries) != 2 {
		t.Fatalf("expected 2 burn entries, got %d", len(c.Entries))
	}
	for _, e := range c.Entries {
		if e.Operation != model.OpBurn {
			t.Fatalf("expected all Burn, got %s", e.Operation)
		}
	}
}

func TestEndTxSweepsToPointer(t *testing.T) {
	id := oneRune()
	owner := "alice"
	inputs := map[model.RuneID][]model.InputRuneBalance{id: {model.FromOwner(owner, big.NewInt(42))}}
	eligible := map[uint32]string{2: "carol"}
	c := New(testLogger(), testLocation(), inputs, eligible, 3)

	c.EndTx()

	receives := filterOp(c.Entries, model.OpReceive)
	if len(receives) != 1 || receives[0].Amount.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected full sweep to pointer output, got %+v", c.Entries)
	}
	if *receives[0].Output != 2 {
		t.Fatalf("expected sweep to output 2, got %d", *receives[0].Output)
	}
}

func TestResolveRuneIDEtchingPlaceholder(t *testing.T) {
	c := New(testLogger(), testLocation(), nil, map[uint32]string{}, 0)
	if _, ok := c.ResolveRuneID(model.EtchingRuneID); ok {
		t.Fatalf("expected placeholder to fail resolution without an etching")
	}
	c.SetEtching(model.RuneID{BlockHeight: 1, TxIndex: 0})
	resolved, ok := c.ResolveRuneID(model.EtchingRuneID)
	if !ok || resolved != (model.RuneID{BlockHeight: 1, TxIndex: 0}) {
		t.Fatalf("expected placeholder to resolve to the tx's etching, got %+v ok=%v", resolved, ok)
	}
}

func filterOp(entries []model.LedgerEntry, op model.LedgerOperation) []model.LedgerEntry {
	var out []model.LedgerEntry
	for _, e := range entries {
		if e.Operation == op {
			out = append(out, e)
		}
	}
	return out
}
