// Package chain defines the block/transaction shapes the engine consumes
// from its block-source collaborator (spec §6.1) and the BlockSource
// interface itself. Bitcoin consensus validation is out of scope; these
// types only carry the fields the indexing engine reads.
package chain

// TxIn is a spent output reference. The engine does not interpret witness
// or sighash data (spec §6.1).
type TxIn struct {
	PrevTxID string
	Vout     uint32
}

// TxOut is an output's value and script. script_pubkey_bytes is handed to
// the artifact.Decoder verbatim.
type TxOut struct {
	Value            int64
	ScriptPubKey  []byte
	IsOpReturn       bool
}

// Transaction is one tx within a Block.
type Transaction struct {
	TxID    string
	TxIndex uint32
	Inputs  []TxIn
	Outputs []TxOut
}

// Block is one confirmed block delivered by the observer.
type Block struct {
	Hash         string
	Height       uint64
	Timestamp    int64
	Transactions []Transaction
}
