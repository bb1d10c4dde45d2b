package model

import "math/big"

// LedgerOperation tags the kind of protocol event a LedgerEntry records.
// Modeled as a closed Go enum rather than an interface hierarchy per
// spec §9 ("dynamic dispatch ... implement as a sum type with exhaustive
// matching").
type LedgerOperation string

const (
	OpEtching LedgerOperation = "etching"
	OpMint    LedgerOperation = "mint"
	OpBurn    LedgerOperation = "burn"
	OpSend    LedgerOperation = "send"
	OpReceive LedgerOperation = "receive"
)

// LedgerEntry is an append-only record of a discrete protocol event
// (spec §3 "Ledger entry").
type LedgerEntry struct {
	RuneID          RuneID
	BlockHash       string
	BlockHeight     uint64
	TxIndex         uint32
	EventIndex      uint32
	TxID            string
	Output          *uint32
	SenderAddress   *string
	ReceiverAddress *string
	Amount          *big.Int
	Operation       LedgerOperation
	Timestamp       int64
}
