// Package validatorpk provides the fixed-width encodings of validator BLS public keys.
// The Map chain identifies every validator twice: by an ECDSA-derived address, used for
// the proposer seal, and by a BN254 BLS key, used for the aggregated quorum seal.
// BLS keys travel through headers and proofs as uncompressed curve points, so this
// package keeps them as byte arrays and only converts to hex at the human-readable
// boundary (JSON, TOML, CLI flags).
package validatorpk

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// G1PubKeyLength is the size of an uncompressed BN254 G1 point (X || Y, 32 bytes each).
	G1PubKeyLength = 64
	// G2PubKeyLength is the size of an uncompressed BN254 G2 point. Each coordinate is an
	// element of Fp2, serialised as (imaginary || real), 32 bytes each.
	G2PubKeyLength = 128
)

var (
	// ErrEmptyPubKey is returned when decoding a key from an empty input.
	ErrEmptyPubKey = errors.New("empty pubkey")
	// ErrPubKeyLength is returned when the input does not match the key width.
	ErrPubKeyLength = errors.New("invalid pubkey length")
)

// G1PubKey is a validator's BLS public key in G1. These are the keys a header
// announces for newly added validators and the ones summed up during the
// aggregate-key check.
type G1PubKey [G1PubKeyLength]byte

// G2PubKey is a BLS public key in G2. The relayer supplies the aggregate of the
// signers' G2 keys alongside each header, because signatures are verified in G2.
type G2PubKey [G2PubKeyLength]byte

// Empty reports whether the key is all zeroes (never set).
func (pk G1PubKey) Empty() bool {
	return pk == G1PubKey{}
}

// Bytes returns a copy of the raw key bytes.
func (pk G1PubKey) Bytes() []byte {
	return common.CopyBytes(pk[:])
}

// String returns the 0x-prefixed hex representation of the key.
func (pk G1PubKey) String() string {
	return hexutil.Encode(pk[:])
}

// MarshalText implements encoding.TextMarshaler, so the key is encoded as a hex
// string inside JSON and TOML documents.
func (pk G1PubKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *G1PubKey) UnmarshalText(input []byte) error {
	res, err := G1FromString(string(input))
	if err != nil {
		return err
	}
	*pk = res
	return nil
}

// G1FromBytes copies b into a G1PubKey. The input must be exactly G1PubKeyLength bytes long.
func G1FromBytes(b []byte) (G1PubKey, error) {
	var pk G1PubKey
	if len(b) == 0 {
		return pk, ErrEmptyPubKey
	}
	if len(b) != G1PubKeyLength {
		return pk, fmt.Errorf("%w: g1 key has %d bytes, want %d", ErrPubKeyLength, len(b), G1PubKeyLength)
	}
	copy(pk[:], b)
	return pk, nil
}

// G1FromString parses a hex string, with or without the 0x prefix.
func G1FromString(str string) (G1PubKey, error) {
	b, err := decodeHex(str)
	if err != nil {
		return G1PubKey{}, err
	}
	return G1FromBytes(b)
}

// Empty reports whether the key is all zeroes (never set).
func (pk G2PubKey) Empty() bool {
	return pk == G2PubKey{}
}

// Bytes returns a copy of the raw key bytes.
func (pk G2PubKey) Bytes() []byte {
	return common.CopyBytes(pk[:])
}

// String returns the 0x-prefixed hex representation of the key.
func (pk G2PubKey) String() string {
	return hexutil.Encode(pk[:])
}

// MarshalText implements encoding.TextMarshaler.
func (pk G2PubKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *G2PubKey) UnmarshalText(input []byte) error {
	res, err := G2FromString(string(input))
	if err != nil {
		return err
	}
	*pk = res
	return nil
}

// G2FromBytes copies b into a G2PubKey. The input must be exactly G2PubKeyLength bytes long.
func G2FromBytes(b []byte) (G2PubKey, error) {
	var pk G2PubKey
	if len(b) == 0 {
		return pk, ErrEmptyPubKey
	}
	if len(b) != G2PubKeyLength {
		return pk, fmt.Errorf("%w: g2 key has %d bytes, want %d", ErrPubKeyLength, len(b), G2PubKeyLength)
	}
	copy(pk[:], b)
	return pk, nil
}

// G2FromString parses a hex string, with or without the 0x prefix.
func G2FromString(str string) (G2PubKey, error) {
	b, err := decodeHex(str)
	if err != nil {
		return G2PubKey{}, err
	}
	return G2FromBytes(b)
}

// decodeHex accepts both prefixed and bare hex. Unlike common.FromHex it
// reports malformed characters instead of silently dropping them.
func decodeHex(str string) ([]byte, error) {
	if !has0xPrefix(str) {
		str = "0x" + str
	}
	if str == "0x" {
		return nil, ErrEmptyPubKey
	}
	return hexutil.Decode(str)
}

func has0xPrefix(str string) bool {
	return len(str) >= 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X')
}
