package model

import "math/big"

// MintTerms describes the optional mint parameters attached to an etching.
// A nil field means "unset" for that window/cap per spec §3/§4.2.
type MintTerms struct {
	Amount      *big.Int
	Cap         *big.Int
	HeightStart *uint64
	HeightEnd   *uint64
	OffsetStart *uint64
	OffsetEnd   *uint64
}

// Mintable reports whether the terms allow any minting at all (spec §4.2
// rule 1: "R.terms.amount is set").
func (t *MintTerms) Mintable() bool {
	return t != nil && t.Amount != nil
}

// Rune is the immutable registry entry produced by an etching (spec §3).
type Rune struct {
	ID             RuneID
	Number         uint64
	Name           string
	SpacedName     string
	EtchingBlock   string
	EtchingHeight  uint64
	EtchingTxIndex uint32
	EtchingTxID    string
	Divisibility   uint8
	Premine        *big.Int
	Symbol         rune
	Terms          *MintTerms
	Turbo          bool
	Timestamp      int64
}

// CenotaphEtching builds the permanently-unmintable rune record produced by
// a cenotaph's etching field (spec §4.1 apply_cenotaph_etching): no symbol,
// no terms, otherwise identical bookkeeping to a normal etching.
func CenotaphEtching(id RuneID, number uint64, loc TransactionLocation) Rune {
	return Rune{
		ID:             id,
		Number:         number,
		Name:           "",
		SpacedName:     "",
		EtchingBlock:   loc.BlockHash,
		EtchingHeight:  loc.BlockHeight,
		EtchingTxIndex: loc.TxIndex,
		EtchingTxID:    loc.TxID,
		Divisibility:   0,
		Premine:        big.NewInt(0),
		Symbol:         0,
		Terms:          nil,
		Turbo:          false,
		Timestamp:      loc.Timestamp,
	}
}
