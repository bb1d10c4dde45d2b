package model

import (
	"fmt"
	"strconv"
	"strings"
)

// RuneID is the composite identifier (block_height, tx_index) assigned to a
// rune at etching time. Its canonical string form is "H:I".
type RuneID struct {
	BlockHeight uint64
	TxIndex     uint32
}

// EtchingRuneID is the synthetic id (0,0) meaning "the rune etched in the
// current tx" (spec §4.1, §9 open question 4). It must only ever be
// resolved against the TxCache's own etching slot, never looked up in the
// registry.
var EtchingRuneID = RuneID{BlockHeight: 0, TxIndex: 0}

// IsEtchingPlaceholder reports whether id is the (0,0) synthetic id.
func (id RuneID) IsEtchingPlaceholder() bool {
	return id == EtchingRuneID
}

// String renders the canonical "H:I" display form.
func (id RuneID) String() string {
	return fmt.Sprintf("%d:%d", id.BlockHeight, id.TxIndex)
}

// ParseRuneID parses the canonical "H:I" display form.
func ParseRuneID(s string) (RuneID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return RuneID{}, fmt.Errorf("rune id %q: expected H:I", s)
	}
	h, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return RuneID{}, fmt.Errorf("rune id %q: bad height: %w", s, err)
	}
	i, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return RuneID{}, fmt.Errorf("rune id %q: bad tx index: %w", s, err)
	}
	return RuneID{BlockHeight: h, TxIndex: uint32(i)}, nil
}
