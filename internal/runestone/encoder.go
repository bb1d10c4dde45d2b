package runestone

import (
	"github.com/synnergy-labs/runeindex/internal/artifact"
)

// Encode serializes a, the inverse of Decode, primarily to give tests a
// round-trip path. Only the Runestone fields are emitted; Encode never
// produces a Cenotaph wire form since cenotaphs only arise from
// malformed/truncated bytes or unrecognized tags, not from a legitimate
// in-memory Artifact.
func Encode(a *artifact.Artifact) []byte {
	out := append([]byte{}, protocolMagic...)

	if a.Etching != nil {
		flags := flagEtching
		if a.Etching.Turbo {
			flags |= flagTurbo
		}
		out = appendField(out, tagFlags, flags)
		if a.Etching.Name != "" {
			out = appendField(out, tagRune, nameToInt(a.Etching.Name).Uint64())
		}
		if a.Etching.Divisibility != 0 {
			out = appendField(out, tagDivisibility, uint64(a.Etching.Divisibility))
		}
		if a.Etching.Premine != nil && a.Etching.Premine.Sign() != 0 {
			out = appendField(out, tagPremine, a.Etching.Premine.Uint64())
		}
		if a.Etching.Symbol != 0 {
			out = appendField(out, tagSymbol, uint64(a.Etching.Symbol))
		}
		if t := a.Etching.Terms; t != nil {
			if t.Amount != nil {
				out = appendField(out, tagAmount, t.Amount.Uint64())
			}
			if t.Cap != nil {
				out = appendField(out, tagCap, t.Cap.Uint64())
			}
			if t.HeightStart != nil {
				out = appendField(out, tagHeightStart, *t.HeightStart)
			}
			if t.HeightEnd != nil {
				out = appendField(out, tagHeightEnd, *t.HeightEnd)
			}
			if t.OffsetStart != nil {
				out = appendField(out, tagOffsetStart, *t.OffsetStart)
			}
			if t.OffsetEnd != nil {
				out = appendField(out, tagOffsetEnd, *t.OffsetEnd)
			}
		}
	}

	if a.Mint != nil {
		out = appendVarint(out, uint64(tagMint))
		out = appendVarint(out, a.Mint.BlockHeight)
		out = appendVarint(out, uint64(a.Mint.TxIndex))
	}

	if a.Pointer != nil {
		out = appendField(out, tagPointer, uint64(*a.Pointer))
	}

	if len(a.Edicts) > 0 {
		out = appendVarint(out, uint64(tagBody))
		var prevBlock, prevTx uint64
		for _, e := range a.Edicts {
			deltaBlock := e.ID.BlockHeight - prevBlock
			var txField uint64
			if deltaBlock != 0 {
				txField = uint64(e.ID.TxIndex)
			} else {
				txField = uint64(e.ID.TxIndex) - prevTx
			}
			out = appendVarint(out, deltaBlock)
			out = appendVarint(out, txField)
			out = appendVarint(out, e.Amount.Uint64())
			out = appendVarint(out, uint64(e.Output))
			prevBlock = e.ID.BlockHeight
			prevTx = uint64(e.ID.TxIndex)
		}
	}

	return out
}

func appendField(buf []byte, t tag, v uint64) []byte {
	buf = appendVarint(buf, uint64(t))
	return appendVarint(buf, v)
}
