package model

import "math/big"

// InputRuneBalance is an in-memory element describing a unit of rune value
// entering a tx (spec §3 "Input rune balance"). Address is nil when the
// balance originates from a mint or premine within the current tx, rather
// than from a prior owner's spent output.
type InputRuneBalance struct {
	Address *string
	Amount  *big.Int
}

// MintOrigin builds an InputRuneBalance with no prior owner, used by
// apply_etching's premine and apply_mint so subsequent edicts can move the
// freshly created units (spec §4.1).
func MintOrigin(amount *big.Int) InputRuneBalance {
	return InputRuneBalance{Address: nil, Amount: new(big.Int).Set(amount)}
}

// FromOwner builds an InputRuneBalance carrying a prior owner's address.
func FromOwner(address string, amount *big.Int) InputRuneBalance {
	return InputRuneBalance{Address: &address, Amount: new(big.Int).Set(amount)}
}
