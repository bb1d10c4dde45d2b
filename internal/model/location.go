package model

import "fmt"

// TransactionLocation pins a transaction to its position in the chain.
type TransactionLocation struct {
	Network     string
	BlockHash   string
	BlockHeight uint64
	TxIndex     uint32
	TxID        string
	Timestamp   int64
}

// Display renders the canonical human-readable form used in log lines.
func (l TransactionLocation) Display() string {
	return fmt.Sprintf("%s:%d:%d (%s)", l.Network, l.BlockHeight, l.TxIndex, l.TxID)
}

// RuneID derives the id reserved for a rune etched at this location.
func (l TransactionLocation) RuneID() RuneID {
	return RuneID{BlockHeight: l.BlockHeight, TxIndex: l.TxIndex}
}
