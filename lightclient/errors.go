package lightclient

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrEpochRecordNotFound is returned when a header belongs to an epoch the
	// client does not retain: either the client is behind, or the caller
	// jumped too far ahead, or the record was pruned.
	ErrEpochRecordNotFound = errors.New("epoch record not found")
	// ErrGenesis is returned for inconsistent initial state.
	ErrGenesis = errors.New("invalid genesis")
	// ErrStore is returned when persisting state fails. The in-memory client is
	// left untouched in that case.
	ErrStore = errors.New("state store error")
)

// EpochNotFoundError reports a missing epoch record together with the block
// range the client can currently verify. It unwraps to ErrEpochRecordNotFound.
type EpochNotFoundError struct {
	Number uint64 // block number of the rejected header
	Epoch  uint64 // epoch the header maps to

	// VerifiableFrom and VerifiableTo bound the block numbers the retained
	// records cover, inclusive.
	VerifiableFrom uint64
	VerifiableTo   uint64
}

func (e *EpochNotFoundError) Error() string {
	return fmt.Sprintf("%v: block %d maps to epoch %d, verifiable range is [%d, %d]",
		ErrEpochRecordNotFound, e.Number, e.Epoch, e.VerifiableFrom, e.VerifiableTo)
}

func (e *EpochNotFoundError) Unwrap() error {
	return ErrEpochRecordNotFound
}

// VerifiableRange returns [h + E + 1 - count*E, h + E] for a client at header
// height h with epoch size E retaining count records. The bounds saturate
// instead of wrapping around.
func VerifiableRange(headerHeight, epochSize uint64, count int) (from, to uint64) {
	to, carry := bits.Add64(headerHeight, epochSize, 0)
	if carry != 0 {
		to = ^uint64(0)
	}
	hi, span := bits.Mul64(uint64(count), epochSize)
	if hi != 0 {
		return 0, to
	}
	upper, carry := bits.Add64(to, 1, 0)
	if carry != 0 {
		// to == MaxUint64: compute (to - span) + 1 without overflowing.
		if span == 0 {
			return to, to
		}
		return to - span + 1, to
	}
	if span >= upper {
		return 0, to
	}
	return upper - span, to
}
