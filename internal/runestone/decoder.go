package runestone

import (
	"math/big"

	"github.com/synnergy-labs/runeindex/internal/artifact"
	"github.com/synnergy-labs/runeindex/internal/model"
)

// protocolMagic marks an OP_RETURN script as carrying a runestone payload
// (real Bitcoin encodes this as OP_RETURN OP_13; this decoder, being its
// own standalone protocol-byte reader rather than a full script
// interpreter, uses a two-byte marker it also writes in Encode).
var protocolMagic = []byte{0x6a, 0x0d}

// Decoder implements artifact.Decoder.
type Decoder struct{}

// Decode parses script's tag/value payload into a Runestone, or a
// Cenotaph if the payload is truncated or carries an unrecognized even
// (non-ignorable) tag (spec §6.1 "pure function bytes -> Option<Artifact>").
// A script without the protocol magic carries no runestone at all.
func (Decoder) Decode(script []byte) (*artifact.Artifact, error) {
	if len(script) < len(protocolMagic) || string(script[:len(protocolMagic)]) != string(protocolMagic) {
		return nil, nil
	}
	payload := script[len(protocolMagic):]

	fields, truncated := readFields(payload)

	var (
		flags                         uint64
		haveFlags                     bool
		nameInt                       *big.Int
		premine, cap, amount          *big.Int
		heightStart, heightEnd        *uint64
		offsetStart, offsetEnd        *uint64
		divisibility, symbol, spacers uint64
		mintBlock, mintTx             uint64
		haveMint                      bool
		pointer                       *uint32
		malformed                     = truncated
	)

	i := 0
	for i+1 < len(fields) && tag(fields[i]) != tagBody {
		t := tag(fields[i])
		switch t {
		case tagFlags:
			flags, haveFlags = fields[i+1], true
			i += 2
		case tagRune:
			nameInt = new(big.Int).SetUint64(fields[i+1])
			i += 2
		case tagPremine:
			premine = new(big.Int).SetUint64(fields[i+1])
			i += 2
		case tagCap:
			cap = new(big.Int).SetUint64(fields[i+1])
			i += 2
		case tagAmount:
			amount = new(big.Int).SetUint64(fields[i+1])
			i += 2
		case tagHeightStart:
			v := fields[i+1]
			heightStart = &v
			i += 2
		case tagHeightEnd:
			v := fields[i+1]
			heightEnd = &v
			i += 2
		case tagOffsetStart:
			v := fields[i+1]
			offsetStart = &v
			i += 2
		case tagOffsetEnd:
			v := fields[i+1]
			offsetEnd = &v
			i += 2
		case tagMint:
			if i+2 >= len(fields) {
				malformed = true
				i = len(fields)
				break
			}
			mintBlock, mintTx, haveMint = fields[i+1], fields[i+2], true
			i += 3
		case tagPointer:
			v := uint32(fields[i+1])
			pointer = &v
			i += 2
		case tagDivisibility:
			divisibility = fields[i+1]
			i += 2
		case tagSpacers:
			spacers = fields[i+1]
			i += 2
		case tagSymbol:
			symbol = fields[i+1]
			i += 2
		case tagTurbo:
			i += 2
		default:
			if fields[i]%2 == 0 {
				malformed = true // unrecognized even tag: not ignorable
			}
			i += 2
		}
	}

	var edicts []artifact.Edict
	if i < len(fields) && tag(fields[i]) == tagBody {
		body := fields[i+1:]
		if len(body)%4 != 0 {
			malformed = true
		} else {
			var runningBlock, runningTx uint64
			for j := 0; j+3 < len(body); j += 4 {
				runningBlock += body[j]
				if body[j] != 0 {
					runningTx = body[j+1]
				} else {
					runningTx += body[j+1]
				}
				edicts = append(edicts, artifact.Edict{
					ID:     model.RuneID{BlockHeight: runningBlock, TxIndex: uint32(runningTx)},
					Amount: new(big.Int).SetUint64(body[j+2]),
					Output: uint32(body[j+3]),
				})
			}
		}
	}

	var etching *artifact.Etching
	if haveFlags && flags&flagEtching != 0 {
		name := ""
		if nameInt != nil {
			name = intToName(nameInt)
		}
		e := &artifact.Etching{
			Name:         name,
			SpacedName:   spacedName(name, spacers),
			Divisibility: uint8(divisibility),
			Premine:      orZeroBig(premine),
			Symbol:       rune(symbol),
			Turbo:        flags&flagTurbo != 0,
		}
		if cap != nil || amount != nil || heightStart != nil || heightEnd != nil || offsetStart != nil || offsetEnd != nil {
			e.Terms = &model.MintTerms{
				Amount: amount, Cap: cap,
				HeightStart: heightStart, HeightEnd: heightEnd,
				OffsetStart: offsetStart, OffsetEnd: offsetEnd,
			}
		}
		etching = e
	}

	var mint *model.RuneID
	if haveMint {
		id := model.RuneID{BlockHeight: mintBlock, TxIndex: uint32(mintTx)}
		mint = &id
	}

	if malformed {
		return &artifact.Artifact{Kind: artifact.KindCenotaph, Etching: etching, Mint: mint}, nil
	}
	return &artifact.Artifact{
		Kind:    artifact.KindRunestone,
		Pointer: pointer,
		Edicts:  edicts,
		Etching: etching,
		Mint:    mint,
	}, nil
}

func readFields(payload []byte) ([]uint64, bool) {
	var fields []uint64
	for len(payload) > 0 {
		v, n, err := readVarint(payload)
		if err != nil {
			return fields, true
		}
		fields = append(fields, v)
		payload = payload[n:]
	}
	return fields, false
}

func orZeroBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
