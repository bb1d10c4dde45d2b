package numeric

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// U64 stores a uint64 in a `numeric` column (block heights, mint-term
// windows), avoiding the signedness concerns of Postgres' int8/bigint.
type U64 uint64

func (u U64) NumericValue() (pgtype.Numeric, error) {
	return NewU128FromUint64(uint64(u)).NumericValue()
}

func (u *U64) ScanNumeric(v pgtype.Numeric) error {
	var inner U128
	if err := inner.ScanNumeric(v); err != nil {
		return err
	}
	*u = U64(inner.Int().Uint64())
	return nil
}
