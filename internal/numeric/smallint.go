package numeric

// U8 stores a value 0..255 in a `smallint` column — used for rune
// divisibility (0..=38). Unlike U128/U64 this fits natively in
// Postgres' int2 wire format, so pgx's built-in int2 handling covers it;
// the type exists to keep the store layer's argument types self-describing
// (ToSmallint/FromSmallint at the call site instead of a bare uint8 that
// silently truncates).
type U8 uint8

// ToSmallint renders u as the int16 pgx binds to a smallint column.
func (u U8) ToSmallint() int16 { return int16(u) }

// FromSmallint reconstructs a U8 from a scanned smallint, returning
// ok=false if the value falls outside 0..255.
func FromSmallint(v int16) (U8, bool) {
	if v < 0 || v > 255 {
		return 0, false
	}
	return U8(v), true
}
