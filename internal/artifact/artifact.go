// Package artifact defines the decoded payload of a transaction's
// OP_RETURN output. The byte-level decoder itself is an external
// collaborator (spec §6.1) — only its result types and the Decoder
// interface the engine calls against live here.
package artifact

import (
	"math/big"

	"github.com/synnergy-labs/runeindex/internal/model"
)

// Kind discriminates the two Artifact cases. Implemented as a closed Go
// enum, not an interface hierarchy, per spec §9.
type Kind uint8

const (
	KindRunestone Kind = iota
	KindCenotaph
)

// Etching is the raw, not-yet-registered etching directive carried by a
// Runestone or Cenotaph. It becomes a model.Rune once IndexCache assigns
// it a sequence Number (spec §4.1 apply_etching).
type Etching struct {
	Name         string
	SpacedName   string
	Divisibility uint8
	Premine      *big.Int
	Symbol       rune
	Terms        *model.MintTerms
	Turbo        bool
}

// Edict is an intra-tx transfer directive (spec GLOSSARY "Edict").
type Edict struct {
	ID     model.RuneID
	Amount *big.Int
	Output uint32
}

// Artifact is the tagged union a Decoder produces for a transaction's
// OP_RETURN script: either a well-formed Runestone or a malformed/
// protocol-violating Cenotaph.
type Artifact struct {
	Kind Kind

	// Runestone fields (valid when Kind == KindRunestone).
	Pointer *uint32
	Edicts  []Edict

	// Shared fields (valid when set, in either variant).
	Etching *Etching
	Mint     *model.RuneID
}

// IsRunestone reports whether a is a well-formed Runestone.
func (a *Artifact) IsRunestone() bool { return a != nil && a.Kind == KindRunestone }

// IsCenotaph reports whether a is a malformed/protocol-violating Cenotaph.
func (a *Artifact) IsCenotaph() bool { return a != nil && a.Kind == KindCenotaph }

// Decoder is the pure-function external collaborator that turns an
// OP_RETURN script into an Artifact. Returning (nil, nil) means the tx
// carries no runestone payload and contributes no state change
// (spec §7: "Decoder returns None | Not an error").
type Decoder interface {
	Decode(script []byte) (*Artifact, error)
}
