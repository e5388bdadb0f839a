// Package inter defines the Map chain data structures the light client consumes:
// the remote block header, the Istanbul consensus metadata packed into its extra
// field, and the receipt bundle carried by inclusion proofs.
//
// Key concepts:
//   - Header: the 14-field RLP header produced by the remote chain
//   - IstanbulExtra: validator-set diff, proposer seal and BLS quorum seal
//   - ReceiptData: the consensus encoding of one transaction receipt
//
// Usage:
//
//	h, err := inter.DecodeHeader(raw)
//	extra, err := inter.ExtractIstanbulExtra(h.Extra)
//	signer := h.HashWithoutSeal() // recover the proposer from this digest
//	sealed := h.Hash()            // the BLS quorum signs this digest
//
// Every decoder in this package is fallible: the bytes come from an untrusted
// relayer and no function here panics on malformed input.
package inter

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// HeaderFields is the exact number of list elements a header encoding carries.
const HeaderFields = 14

// ErrHeader is the root of every header decoding or sequencing failure. The
// light client also returns it when a header does not sit on the next epoch
// boundary, so relayers can treat both cases the same way (fetch and retry).
var ErrHeader = errors.New("header error")

// Header represents a block header of the remote Map chain. The layout follows
// the go-ethereum header minus the uncle hash and difficulty, which Istanbul BFT
// does not use, plus the London base fee. Field order is consensus critical.
type Header struct {
	ParentHash  common.Hash      `json:"parentHash"`
	Coinbase    common.Address   `json:"miner"`
	Root        common.Hash      `json:"stateRoot"`
	TxHash      common.Hash      `json:"transactionsRoot"`
	ReceiptHash common.Hash      `json:"receiptsRoot"`
	Bloom       types.Bloom      `json:"logsBloom"`
	Number      *big.Int         `json:"number"`
	GasLimit    uint64           `json:"gasLimit"`
	GasUsed     uint64           `json:"gasUsed"`
	Time        uint64           `json:"timestamp"`
	Extra       []byte           `json:"extraData"`
	MixDigest   common.Hash      `json:"mixHash"`
	Nonce       types.BlockNonce `json:"nonce"`
	BaseFee     *big.Int         `json:"baseFeePerGas"`
}

// DecodeHeader parses the RLP encoding of a header.
//
// The decoder rejects:
//   - malformed RLP
//   - a list with any field count other than HeaderFields
//   - trailing bytes after the list
//   - block numbers that do not fit into 64 bits
//
// All failures wrap ErrHeader.
func DecodeHeader(raw []byte) (*Header, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty header", ErrHeader)
	}
	h := new(Header)
	if err := rlp.DecodeBytes(raw, h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	if h.Number == nil || !h.Number.IsUint64() {
		return nil, fmt.Errorf("%w: block number out of range", ErrHeader)
	}
	return h, nil
}

// Bytes returns the canonical RLP encoding of the header. Nil big integers
// encode as zero.
func (h *Header) Bytes() ([]byte, error) {
	return rlp.EncodeToBytes(h)
}

// NumberU64 returns the block number as a uint64. DecodeHeader guarantees the
// conversion is lossless for relayed headers.
func (h *Header) NumberU64() uint64 {
	if h.Number == nil {
		return 0
	}
	return h.Number.Uint64()
}

// Hash returns the digest the BLS quorum signs. The aggregated seal is removed
// from the extra before hashing, since it is computed over this very value,
// while the proposer seal is retained.
func (h *Header) Hash() common.Hash {
	return rlpHash(istanbulFilteredHeader(h, true))
}

// HashWithoutSeal returns the digest the proposer signs: the same encoding as
// Hash with the proposer seal cleared as well.
func (h *Header) HashWithoutSeal() common.Hash {
	return rlpHash(istanbulFilteredHeader(h, false))
}

// Copy returns a deep copy of the header.
func (h *Header) Copy() *Header {
	cpy := *h
	if h.Number != nil {
		cpy.Number = new(big.Int).Set(h.Number)
	}
	if h.BaseFee != nil {
		cpy.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	cpy.Extra = common.CopyBytes(h.Extra)
	return &cpy
}

// istanbulFilteredHeader rebuilds the header with the seals stripped from its
// Istanbul extra. If the extra is shorter than the vanity or cannot be parsed,
// the header is returned unchanged and hashed as is.
func istanbulFilteredHeader(h *Header, keepSeal bool) *Header {
	if len(h.Extra) < IstanbulExtraVanity {
		return h
	}
	extra, err := ExtractIstanbulExtra(h.Extra)
	if err != nil {
		return h
	}
	if !keepSeal {
		extra.Seal = []byte{}
	}
	extra.AggregatedSeal = AggregatedSeal{}

	payload, err := rlp.EncodeToBytes(extra)
	if err != nil {
		return h
	}
	filtered := h.Copy()
	filtered.Extra = append(filtered.Extra[:IstanbulExtraVanity:IstanbulExtraVanity], payload...)
	return filtered
}

func rlpHash(x interface{}) (h common.Hash) {
	hw := sha3.NewLegacyKeccak256()
	// Header encoding cannot fail: every field has a total encoder.
	_ = rlp.Encode(hw, x)
	hw.Sum(h[:0])
	return h
}

// GetEpochNumber maps a block number to the epoch whose validator set governs it.
// Both header advancement and proof verification use this function so they
// always agree on which record a header belongs to.
func GetEpochNumber(number, epochSize uint64) uint64 {
	if epochSize == 0 {
		return 0
	}
	return number / epochSize
}
