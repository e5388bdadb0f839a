package inter

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
)

const (
	// IstanbulExtraVanity is the fixed number of extra-data prefix bytes reserved
	// for proposer vanity. The consensus payload starts right after it.
	IstanbulExtraVanity = 32

	// IstanbulExtraSeal is the size of a recoverable secp256k1 proposer seal.
	IstanbulExtraSeal = 65

	// MaxAddedValidators caps the validator additions a single header may carry.
	// A larger announcement is rejected as malformed before any key is decoded.
	MaxAddedValidators = 1024
)

// AggregatedSeal is the quorum certificate of a block: the BLS signature of a
// weighted supermajority of the epoch's validators over Header.Hash.
type AggregatedSeal struct {
	// Bitmap marks the signers. Bit i refers to the i-th validator of the
	// epoch record the block belongs to.
	Bitmap *big.Int

	// Signature is the aggregated BLS signature, an uncompressed G1 point.
	Signature []byte

	// Round is the consensus round the block was committed in.
	Round *big.Int
}

// IstanbulExtra is the consensus payload stored in Header.Extra after the
// vanity prefix. On an epoch boundary block it announces the validator-set
// diff that takes effect for the next epoch.
type IstanbulExtra struct {
	// AddedValidators are the addresses of validators joining the set.
	AddedValidators []common.Address
	// AddedValidatorsPublicKeys are the G2 keys of the joining validators.
	AddedValidatorsPublicKeys []validatorpk.G2PubKey
	// AddedValidatorsG1PublicKeys are the G1 keys of the joining validators.
	// These are the keys the light client stores and aggregates.
	AddedValidatorsG1PublicKeys []validatorpk.G1PubKey

	// RemovedValidators is a bitmap over the previous validator list. A set bit
	// at position i drops the i-th validator.
	RemovedValidators *big.Int

	// Seal is the proposer's ECDSA signature over Header.HashWithoutSeal.
	Seal []byte

	// AggregatedSeal is the quorum certificate for this block.
	AggregatedSeal AggregatedSeal

	// ParentAggregatedSeal is the quorum certificate of the parent block. It is
	// carried for reward accounting on the remote chain and ignored here.
	ParentAggregatedSeal AggregatedSeal
}

// ExtractIstanbulExtra decodes the Istanbul payload of a header extra field.
//
// The input is rejected with ErrHeader when:
//   - it is shorter than the vanity prefix
//   - the remainder is not exactly one well-formed RLP list of the expected shape
//   - the added address and key lists differ in length
//   - more than MaxAddedValidators validators are announced
func ExtractIstanbulExtra(extra []byte) (*IstanbulExtra, error) {
	if len(extra) < IstanbulExtraVanity {
		return nil, fmt.Errorf("%w: extra data has %d bytes, vanity needs %d", ErrHeader, len(extra), IstanbulExtraVanity)
	}
	ie := new(IstanbulExtra)
	if err := rlp.DecodeBytes(extra[IstanbulExtraVanity:], ie); err != nil {
		return nil, fmt.Errorf("%w: invalid istanbul extra: %v", ErrHeader, err)
	}

	added := len(ie.AddedValidators)
	if added != len(ie.AddedValidatorsPublicKeys) || added != len(ie.AddedValidatorsG1PublicKeys) {
		return nil, fmt.Errorf("%w: %d added validators with %d g2 keys and %d g1 keys",
			ErrHeader, added, len(ie.AddedValidatorsPublicKeys), len(ie.AddedValidatorsG1PublicKeys))
	}
	if added > MaxAddedValidators {
		return nil, fmt.Errorf("%w: %d added validators exceed limit %d", ErrHeader, added, MaxAddedValidators)
	}
	return ie, nil
}

// PrepareExtra builds a header extra field from a vanity and an Istanbul payload.
// The vanity is truncated or zero-padded to IstanbulExtraVanity bytes.
func PrepareExtra(vanity []byte, ie *IstanbulExtra) ([]byte, error) {
	payload, err := rlp.EncodeToBytes(ie)
	if err != nil {
		return nil, err
	}
	extra := make([]byte, IstanbulExtraVanity, IstanbulExtraVanity+len(payload))
	copy(extra, vanity)
	return append(extra, payload...), nil
}

// RemovedBit reports whether the i-th validator of the previous set is marked
// for removal. A nil bitmap removes nobody.
func (ie *IstanbulExtra) RemovedBit(i int) bool {
	return ie.RemovedValidators != nil && ie.RemovedValidators.Bit(i) == 1
}
