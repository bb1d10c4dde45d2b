package numeric

// U32 stores a value 0..2^32-1 in a `bigint` column — used for tx_index,
// event_index and output vout, all of which fit comfortably in int8 but
// are u32 in memory. Mirrors the Rust PgBigIntU32 adaptor: the type keeps
// the narrowing/widening conversion explicit at the store boundary instead
// of scattering uint32(int64(...)) casts through the engine.
type U32 uint32

// ToBigint renders u as the int64 pgx binds to a bigint column.
func (u U32) ToBigint() int64 { return int64(u) }

// FromBigint reconstructs a U32 from a scanned bigint, returning ok=false
// if the value falls outside uint32 range.
func FromBigint(v int64) (U32, bool) {
	if v < 0 || v > 0xFFFFFFFF {
		return 0, false
	}
	return U32(v), true
}
