// Package numeric adapts Go's u128/u64/u32/u8 values to the store's
// arbitrary-precision wire formats: Postgres' base-10000 digit-group
// `numeric` binary format for values that exceed int64 (u128 balances and
// heights), plain bigint for u32-range counters, and smallint for u8-range
// fields like divisibility.
package numeric

import (
	"math/big"
)

var (
	ten4    = big.NewInt(10000)
	bigZero = big.NewInt(0)
)

// Groups is the decomposed form of Postgres' numeric binary wire format:
// NumGroups(implicit len(Digits)), Weight, Sign, DScale, Digits. Only the
// unsigned, zero-scale subset the indexer writes (balances, heights,
// counters) is represented — Sign is always positive and DScale always 0.
type Groups struct {
	Weight int16
	Digits []int16
}

// EncodeGroups decomposes a non-negative big.Int into base-10000 digit
// groups, most-significant group first, matching the Rust reference's
// u128_into_pg_numeric_bytes: repeatedly divmod by 10000, then reverse.
func EncodeGroups(v *big.Int) Groups {
	if v.Sign() <= 0 {
		return Groups{Weight: 0, Digits: nil}
	}
	n := new(big.Int).Set(v)
	rem := new(big.Int)
	var digits []int16
	for n.Sign() != 0 {
		n.QuoRem(n, ten4, rem)
		digits = append(digits, int16(rem.Int64()))
	}
	// digits were accumulated least-significant-group first; reverse.
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	weight := 0
	if len(digits) > 0 {
		weight = len(digits) - 1
	}
	return Groups{Weight: int16(weight), Digits: digits}
}

// DecodeGroups reassembles a big.Int from base-10000 digit groups. Missing
// trailing groups (index beyond len(Digits)) are treated as zero, mirroring
// the Rust decoder's groups.get(i).unwrap_or(&0).
func DecodeGroups(g Groups) *big.Int {
	result := new(big.Int)
	scale := new(big.Int)
	for i := 0; i <= int(g.Weight); i++ {
		var digit int16
		if i < len(g.Digits) {
			digit = g.Digits[i]
		}
		exp := int(g.Weight) - i
		scale.Exp(ten4, big.NewInt(int64(exp)), nil)
		term := new(big.Int).Mul(big.NewInt(int64(digit)), scale)
		result.Add(result, term)
	}
	return result
}

// Zero reports whether v encodes to the empty digit group (value 0).
func (g Groups) Zero() bool {
	return len(g.Digits) == 0
}
