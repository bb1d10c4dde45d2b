package model

import "math/big"

// SupplyChange is a cumulative per-rune snapshot at a block height
// (spec §3 "Supply change").
type SupplyChange struct {
	RuneID          RuneID
	BlockHeight     uint64
	Minted          *big.Int
	TotalMints      *big.Int
	Burned          *big.Int
	TotalBurns      *big.Int
	TotalOperations *big.Int
}

// Add mutates s in place, summing in another delta/snapshot field by
// field. The DbCache and the postgres adaptor do not use it: the DbCache
// folds store.SupplyDelta values with its own helper, and the adaptor
// folds onto the prior height's snapshot in SQL.
func (s *SupplyChange) Add(delta SupplyChange) {
	s.Minted = addBig(s.Minted, delta.Minted)
	s.TotalMints = addBig(s.TotalMints, delta.TotalMints)
	s.Burned = addBig(s.Burned, delta.Burned)
	s.TotalBurns = addBig(s.TotalBurns, delta.TotalBurns)
	s.TotalOperations = addBig(s.TotalOperations, delta.TotalOperations)
}

// BalanceChange is a cumulative per-(rune,address) snapshot at a block
// height (spec §3 "Balance change").
type BalanceChange struct {
	RuneID          RuneID
	BlockHeight     uint64
	Address         string
	Balance         *big.Int
	TotalOperations *big.Int
}

// Add mutates b in place the same way SupplyChange.Add does, but allows a
// negative delta (balance_deductions are applied with sign "-").
func (b *BalanceChange) Add(delta BalanceChange) {
	b.Balance = addBig(b.Balance, delta.Balance)
	b.TotalOperations = addBig(b.TotalOperations, delta.TotalOperations)
}

func addBig(a, b *big.Int) *big.Int {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Add(a, b)
}
