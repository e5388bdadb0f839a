// Package fakenet generates a deterministic fake MAP chain: validators with
// known ECDSA and BLS keys, correctly sealed epoch boundary headers, and
// receipt proofs for blocks anywhere inside a sealed epoch. Tests and the
// fakenet CLI command use it to drive the light client end to end without a
// remote node.
package fakenet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-map-lightclient/crypto/bls"
	"github.com/rony4d/go-map-lightclient/inter"
	"github.com/rony4d/go-map-lightclient/inter/ier"
	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
)

// FakeKey returns the n-th deterministic secp256k1 key. The same n always
// yields the same key.
//
// Example:
//
//	key0 := FakeKey(0)      // first fake key
//	key1 := FakeKey(1)      // a different key
//	key0Again := FakeKey(0) // equal to key0
func FakeKey(n uint64) *ecdsa.PrivateKey {
	seed := crypto.Keccak256([]byte("fakenet-ecdsa"), bigendian.Uint64ToBytes(n))
	key, err := crypto.ToECDSA(seed)
	if err != nil {
		// A keccak digest is a valid scalar with overwhelming probability.
		panic(err)
	}
	return key
}

// FakeBLSKey returns the n-th deterministic BLS key.
func FakeBLSKey(n uint64) *bls.SecretKey {
	return bls.SecretKeyFromSeed(append([]byte("fakenet-bls"), bigendian.Uint64ToBytes(n)...))
}

// Validator is a fake validator holding both of its signing keys.
type Validator struct {
	ID  uint64
	Key *ecdsa.PrivateKey
	BLS *bls.SecretKey
}

// NewValidator returns the n-th fake validator.
func NewValidator(n uint64) *Validator {
	return &Validator{
		ID:  n,
		Key: FakeKey(n),
		BLS: FakeBLSKey(n),
	}
}

// NewValidators returns count fake validators starting with id first.
func NewValidators(first uint64, count int) []*Validator {
	vals := make([]*Validator, count)
	for i := range vals {
		vals[i] = NewValidator(first + uint64(i))
	}
	return vals
}

// Address returns the ECDSA identity of the validator.
func (v *Validator) Address() common.Address {
	return crypto.PubkeyToAddress(v.Key.PublicKey)
}

// Member returns the validator as an epoch record entry.
func (v *Validator) Member(weight uint64) ier.Validator {
	return ier.Validator{
		Address:  v.Address(),
		G1PubKey: v.BLS.G1PubKey(),
		Weight:   weight,
	}
}

// Record builds the epoch record of vals, every validator carrying weight.
func Record(epoch uint64, vals []*Validator, weight uint64) ier.EpochRecord {
	members := make([]ier.Validator, len(vals))
	for i, v := range vals {
		members[i] = v.Member(weight)
	}
	return ier.NewEpochRecord(epoch, members)
}

// HeaderSpec describes a header to seal.
type HeaderSpec struct {
	Number      uint64
	ParentHash  common.Hash
	ReceiptHash common.Hash
	Time        uint64

	// Proposer indexes the validator set passed to SealHeader.
	Proposer int
	// Signers index the validator set; nil means every validator signs.
	Signers []int

	// Added validators join the set of the next epoch.
	Added []*Validator
	// Removed index the current set; those validators leave it.
	Removed []int
}

// SealedHeader is a header together with the inputs a relayer submits.
type SealedHeader struct {
	Header *inter.Header
	Raw    []byte
	AggPK  validatorpk.G2PubKey
}

// SealHeader builds the header described by hs and seals it with the keys of
// set: the proposer seal over HashWithoutSeal, then the aggregated seal of the
// signers over Hash. It returns the header and the aggregate G2 key of the signers.
func SealHeader(set []*Validator, hs HeaderSpec) (*SealedHeader, error) {
	if hs.Proposer < 0 || hs.Proposer >= len(set) {
		return nil, fmt.Errorf("proposer %d outside a set of %d", hs.Proposer, len(set))
	}
	signers := hs.Signers
	if signers == nil {
		signers = make([]int, len(set))
		for i := range signers {
			signers[i] = i
		}
	}

	extra := &inter.IstanbulExtra{
		RemovedValidators:    new(big.Int),
		AggregatedSeal:       emptySeal(),
		ParentAggregatedSeal: emptySeal(),
	}
	for _, v := range hs.Added {
		extra.AddedValidators = append(extra.AddedValidators, v.Address())
		extra.AddedValidatorsPublicKeys = append(extra.AddedValidatorsPublicKeys, v.BLS.G2PubKey())
		extra.AddedValidatorsG1PublicKeys = append(extra.AddedValidatorsG1PublicKeys, v.BLS.G1PubKey())
	}
	for _, i := range hs.Removed {
		extra.RemovedValidators.SetBit(extra.RemovedValidators, i, 1)
	}

	proposer := set[hs.Proposer]
	h := &inter.Header{
		ParentHash:  hs.ParentHash,
		Coinbase:    proposer.Address(),
		ReceiptHash: hs.ReceiptHash,
		Number:      new(big.Int).SetUint64(hs.Number),
		GasLimit:    30000000,
		Time:        hs.Time,
		BaseFee:     big.NewInt(100000000000),
	}
	if err := setExtra(h, extra); err != nil {
		return nil, err
	}

	// Proposer seal.
	hash := h.HashWithoutSeal()
	seal, err := crypto.Sign(hash[:], proposer.Key)
	if err != nil {
		return nil, err
	}
	extra.Seal = seal
	if err := setExtra(h, extra); err != nil {
		return nil, err
	}

	// Quorum seal.
	msg := h.Hash()
	var (
		bitmap = new(big.Int)
		sigs   = make([][]byte, 0, len(signers))
		keys   = make([]validatorpk.G2PubKey, 0, len(signers))
	)
	for _, i := range signers {
		if i < 0 || i >= len(set) {
			return nil, fmt.Errorf("signer %d outside a set of %d", i, len(set))
		}
		sig, err := set[i].BLS.Sign(msg[:])
		if err != nil {
			return nil, err
		}
		bitmap.SetBit(bitmap, i, 1)
		sigs = append(sigs, sig)
		keys = append(keys, set[i].BLS.G2PubKey())
	}
	aggSig, err := bls.AggregateSignatures(sigs)
	if err != nil {
		return nil, err
	}
	aggPK, err := bls.AggregateG2(keys)
	if err != nil {
		return nil, err
	}
	extra.AggregatedSeal = inter.AggregatedSeal{
		Bitmap:    bitmap,
		Signature: aggSig,
		Round:     new(big.Int),
	}
	if err := setExtra(h, extra); err != nil {
		return nil, err
	}

	raw, err := h.Bytes()
	if err != nil {
		return nil, err
	}
	return &SealedHeader{Header: h, Raw: raw, AggPK: aggPK}, nil
}

func emptySeal() inter.AggregatedSeal {
	return inter.AggregatedSeal{
		Bitmap:    new(big.Int),
		Signature: []byte{},
		Round:     new(big.Int),
	}
}

func setExtra(h *inter.Header, extra *inter.IstanbulExtra) error {
	enc, err := inter.PrepareExtra([]byte("fakenet"), extra)
	if err != nil {
		return err
	}
	h.Extra = enc
	return nil
}
