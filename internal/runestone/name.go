package runestone

import "math/big"

var base26 = big.NewInt(26)
var base26one = big.NewInt(1)

// nameToInt converts a rune name (letters A-Z only) to the integer the
// wire format carries under tagRune: a base-26 numeral with no
// representable leading zero, the same scheme spreadsheet column letters
// use (A=0, Z=25, AA=26, ...).
func nameToInt(name string) *big.Int {
	n := big.NewInt(0)
	for _, r := range name {
		n.Mul(n, base26)
		n.Add(n, big.NewInt(int64(r-'A')))
		n.Add(n, base26one)
	}
	return n.Sub(n, base26one)
}

// intToName is nameToInt's inverse.
func intToName(v *big.Int) string {
	if v.Sign() < 0 {
		return ""
	}
	n := new(big.Int).Add(v, base26one)
	var letters []byte
	for n.Sign() > 0 {
		n.Sub(n, base26one)
		mod := new(big.Int)
		n.QuoRem(n, base26, mod)
		letters = append(letters, byte('A')+byte(mod.Int64()))
	}
	for i, j := 0, len(letters)-1; i < j; i, j = i+1, j-1 {
		letters[i], letters[j] = letters[j], letters[i]
	}
	return string(letters)
}

// spacedName inserts a "•" before every letter whose bit is set in
// spacers, reading bits from the least significant up.
func spacedName(name string, spacers uint64) string {
	if spacers == 0 {
		return name
	}
	out := make([]byte, 0, len(name)+4)
	for i := 0; i < len(name); i++ {
		if i > 0 && spacers&(1<<uint(i-1)) != 0 {
			out = append(out, "\xe2\x80\xa2"...) // "•"
		}
		out = append(out, name[i])
	}
	return string(out)
}
