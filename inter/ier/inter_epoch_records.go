// Package ier (Inter-Epoch Records) defines the validator-set snapshot that governs
// one epoch of the remote chain. A record holds the ordered validator list, whose
// order is what signer bitmaps index into, and the quorum threshold derived from
// the total voting weight. Records are immutable values: the next epoch's record
// is always built as a fresh copy, never by mutating the current one.
package ier

import (
	"math/big"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"

	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
)

// Validator is one member of an epoch's validator set.
type Validator struct {
	// Address is the ECDSA-derived identity used to match the proposer seal.
	Address common.Address `json:"address"`
	// G1PubKey is the BLS key summed up during the aggregate-key check.
	G1PubKey validatorpk.G1PubKey `json:"g1PubKey"`
	// Weight is the voting power of the validator. It is always positive.
	Weight uint64 `json:"weight"`
}

// EpochRecord is the validator set and quorum threshold of a single epoch.
type EpochRecord struct {
	// Epoch is the sequential epoch number, see inter.GetEpochNumber.
	Epoch uint64 `json:"epoch"`
	// Validators is ordered; signer and removal bitmaps index into this list.
	Validators []Validator `json:"validators"`
	// Threshold is the minimum signer weight required for a valid quorum.
	Threshold uint64 `json:"threshold"`
}

// CalcThreshold returns the quorum threshold for a set of the given total
// weight: everything except the tolerated third of faulty weight.
func CalcThreshold(totalWeight uint64) uint64 {
	return totalWeight - totalWeight/3
}

// NewEpochRecord builds a record whose threshold is derived from the weights.
func NewEpochRecord(epoch uint64, validators []Validator) EpochRecord {
	r := EpochRecord{
		Epoch:      epoch,
		Validators: validators,
	}
	r.Threshold = CalcThreshold(r.TotalWeight())
	return r
}

// SumWeights adds up the validator weights. ok is false when the sum does not
// fit in a uint64.
func SumWeights(validators []Validator) (total uint64, ok bool) {
	for _, v := range validators {
		var carry uint64
		total, carry = bits.Add64(total, v.Weight, 0)
		if carry != 0 {
			return 0, false
		}
	}
	return total, true
}

// TotalWeight sums the weights of all validators. Records built from a
// validated genesis never overflow.
func (r EpochRecord) TotalWeight() uint64 {
	var total uint64
	for _, v := range r.Validators {
		total += v.Weight
	}
	return total
}

// SignerWeight sums the weights of the validators selected by bitmap. Only the
// first len(Validators) bits are inspected, so the cost is bounded by the set
// size no matter how large a bitmap the caller supplies. A nil bitmap selects nobody.
func (r EpochRecord) SignerWeight(bitmap *big.Int) uint64 {
	if bitmap == nil {
		return 0
	}
	var weight uint64
	for i, v := range r.Validators {
		if bitmap.Bit(i) == 1 {
			weight += v.Weight
		}
	}
	return weight
}

// IsQuorum reports whether the validators selected by bitmap reach the
// threshold. A zero threshold is satisfied by any bitmap, including an empty one.
func (r EpochRecord) IsQuorum(bitmap *big.Int) bool {
	return r.SignerWeight(bitmap) >= r.Threshold
}

// SelectSigners returns the G1 keys of the validators selected by bitmap, in
// validator order.
func (r EpochRecord) SelectSigners(bitmap *big.Int) []validatorpk.G1PubKey {
	if bitmap == nil {
		return nil
	}
	keys := make([]validatorpk.G1PubKey, 0, len(r.Validators))
	for i, v := range r.Validators {
		if bitmap.Bit(i) == 1 {
			keys = append(keys, v.G1PubKey)
		}
	}
	return keys
}

// CountAddress returns how many times addr appears in the validator list.
// A well-formed set contains every proposer exactly once.
func (r EpochRecord) CountAddress(addr common.Address) int {
	n := 0
	for _, v := range r.Validators {
		if v.Address == addr {
			n++
		}
	}
	return n
}

// Copy creates a deep copy of the record. The validator slice is a reference
// type, so a plain assignment would share it with the original.
func (r EpochRecord) Copy() EpochRecord {
	cp := r
	cp.Validators = make([]Validator, len(r.Validators))
	copy(cp.Validators, r.Validators)
	return cp
}

// Hash returns the keccak256 of the record's RLP encoding. It serves as a
// compact fingerprint for logs and persisted state checks.
func (r EpochRecord) Hash() (h common.Hash) {
	hw := sha3.NewLegacyKeccak256()
	// EpochRecord only holds fixed-size fields and integers; encoding cannot fail.
	_ = rlp.Encode(hw, &r)
	hw.Sum(h[:0])
	return h
}

// ClientState is the persisted form of the light client: its configuration,
// the height of the last accepted header and the retained epoch records in
// ascending epoch order.
type ClientState struct {
	EpochSize    uint64        `json:"epochSize"`
	HeaderHeight uint64        `json:"headerHeight"`
	MaxRecords   uint64        `json:"maxRecords"`
	Records      []EpochRecord `json:"records"`
}
