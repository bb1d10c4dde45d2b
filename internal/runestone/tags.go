package runestone

// tag identifies one field within a Runestone's tag/value payload. Values
// chosen to keep odd tags "optional, ignorable if unrecognized" and even
// tags "required, malformed payload if unrecognized" — the convention the
// real protocol uses to let future fields stay backward compatible.
type tag uint64

const (
	tagBody        tag = 0
	tagFlags       tag = 2
	tagRune        tag = 4
	tagPremine     tag = 6
	tagCap         tag = 8
	tagAmount      tag = 10
	tagHeightStart tag = 12
	tagHeightEnd   tag = 14
	tagOffsetStart tag = 16
	tagOffsetEnd   tag = 18
	tagMint        tag = 20
	tagPointer     tag = 22

	tagDivisibility tag = 1
	tagSpacers      tag = 3
	tagSymbol       tag = 5
	tagTurbo        tag = 9
)

const flagEtching uint64 = 1 << 0
const flagTurbo uint64 = 1 << 2
