// Package bls implements the BN254 BLS operations used to check a Map chain
// quorum certificate.
//
// Validators publish a public key in both groups. Signatures and G1 keys live in
// G1; the aggregate key a relayer supplies lives in G2. Two pairing equations
// are checked:
//
//	e(ΣG1_i, g2) == e(g1, aggPK)   the aggregate key matches the selected signers
//	e(sig, g2)   == e(H(m), aggPK) the aggregate signature is valid for m
//
// Points are exchanged in their uncompressed affine form (the fixed-width arrays
// of package validatorpk). Every decoder checks that the point is on the curve
// and in the prime-order subgroup.
package bls

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
)

// SignatureLength is the size of an uncompressed G1 signature.
const SignatureLength = validatorpk.G1PubKeyLength

// DST is the hash-to-curve domain separation tag of Map quorum signatures.
var DST = []byte("MAP_BLS_SIG_BN254G1_XMD:KECCAK-256_SVDW_RO_")

var (
	// ErrInvalidPoint is returned for encodings that are not valid group elements.
	ErrInvalidPoint = errors.New("bls: invalid curve point")
	// ErrAggregateKeyMismatch is returned when the aggregate G2 key is not the
	// combination of the selected G1 keys.
	ErrAggregateKeyMismatch = errors.New("bls: aggregate key mismatch")
	// ErrInvalidSignature is returned when the pairing check on the signature fails.
	ErrInvalidSignature = errors.New("bls: invalid signature")
)

// DecodeG1 converts a raw G1 key into a checked curve point.
func DecodeG1(pk validatorpk.G1PubKey) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	if _, err := p.SetBytes(pk[:]); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return p, nil
}

// DecodeG2 converts a raw G2 key into a checked curve point.
func DecodeG2(pk validatorpk.G2PubKey) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	if _, err := p.SetBytes(pk[:]); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return p, nil
}

// DecodeSignature converts a raw signature into a checked G1 point.
func DecodeSignature(sig []byte) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	if len(sig) != SignatureLength {
		return p, fmt.Errorf("%w: signature has %d bytes, want %d", ErrInvalidPoint, len(sig), SignatureLength)
	}
	if _, err := p.SetBytes(sig); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return p, nil
}

// AggregateG1 sums the given G1 keys. The sum of no keys is the point at infinity.
func AggregateG1(keys []validatorpk.G1PubKey) (bn254.G1Affine, error) {
	var acc bn254.G1Jac
	for _, k := range keys {
		p, err := DecodeG1(k)
		if err != nil {
			return bn254.G1Affine{}, err
		}
		acc.AddMixed(&p)
	}
	var res bn254.G1Affine
	res.FromJacobian(&acc)
	return res, nil
}

// HashToPoint maps a message onto G1 under DST.
func HashToPoint(msg []byte) (bn254.G1Affine, error) {
	return bn254.HashToG1(msg, DST)
}

// VerifyAggregateKey checks that aggPK is the G2 counterpart of the sum of the
// given G1 keys.
func VerifyAggregateKey(keys []validatorpk.G1PubKey, aggPK validatorpk.G2PubKey) error {
	aggG1, err := AggregateG1(keys)
	if err != nil {
		return err
	}
	pk, err := DecodeG2(aggPK)
	if err != nil {
		return err
	}
	_, _, g1, g2 := bn254.Generators()
	var negG1 bn254.G1Affine
	negG1.Neg(&g1)

	ok, err := bn254.PairingCheck([]bn254.G1Affine{aggG1, negG1}, []bn254.G2Affine{g2, pk})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAggregateKeyMismatch, err)
	}
	if !ok {
		return ErrAggregateKeyMismatch
	}
	return nil
}

// Verify checks sig against msg under the G2 key pk.
func Verify(pk validatorpk.G2PubKey, msg, sig []byte) error {
	s, err := DecodeSignature(sig)
	if err != nil {
		return err
	}
	q, err := DecodeG2(pk)
	if err != nil {
		return err
	}
	h, err := HashToPoint(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	_, _, _, g2 := bn254.Generators()
	var negH bn254.G1Affine
	negH.Neg(&h)

	ok, err := bn254.PairingCheck([]bn254.G1Affine{s, negH}, []bn254.G2Affine{g2, q})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// SecretKey is a BLS secret scalar. The light client never holds one; it exists
// for the fake network generator and for tests.
type SecretKey struct {
	s *big.Int
}

// SecretKeyFromSeed derives a deterministic secret key from seed.
func SecretKeyFromSeed(seed []byte) *SecretKey {
	s := new(big.Int).SetBytes(crypto.Keccak256(seed))
	s.Mod(s, fr.Modulus())
	if s.Sign() == 0 {
		s.SetUint64(1)
	}
	return &SecretKey{s: s}
}

// G1PubKey returns s·g1.
func (sk *SecretKey) G1PubKey() validatorpk.G1PubKey {
	_, _, g1, _ := bn254.Generators()
	var p bn254.G1Affine
	p.ScalarMultiplication(&g1, sk.s)
	return validatorpk.G1PubKey(p.RawBytes())
}

// G2PubKey returns s·g2.
func (sk *SecretKey) G2PubKey() validatorpk.G2PubKey {
	_, _, _, g2 := bn254.Generators()
	var p bn254.G2Affine
	p.ScalarMultiplication(&g2, sk.s)
	return validatorpk.G2PubKey(p.RawBytes())
}

// Sign returns s·H(msg).
func (sk *SecretKey) Sign(msg []byte) ([]byte, error) {
	h, err := HashToPoint(msg)
	if err != nil {
		return nil, err
	}
	var sig bn254.G1Affine
	sig.ScalarMultiplication(&h, sk.s)
	raw := sig.RawBytes()
	return raw[:], nil
}

// AggregateSignatures sums individual signatures into a quorum signature.
func AggregateSignatures(sigs [][]byte) ([]byte, error) {
	var acc bn254.G1Jac
	for _, sig := range sigs {
		p, err := DecodeSignature(sig)
		if err != nil {
			return nil, err
		}
		acc.AddMixed(&p)
	}
	var res bn254.G1Affine
	res.FromJacobian(&acc)
	raw := res.RawBytes()
	return raw[:], nil
}

// AggregateG2 sums G2 keys into the aggregate key relayers submit with a header.
func AggregateG2(keys []validatorpk.G2PubKey) (validatorpk.G2PubKey, error) {
	var acc bn254.G2Jac
	for _, k := range keys {
		p, err := DecodeG2(k)
		if err != nil {
			return validatorpk.G2PubKey{}, err
		}
		acc.AddMixed(&p)
	}
	var res bn254.G2Affine
	res.FromJacobian(&acc)
	return validatorpk.G2PubKey(res.RawBytes()), nil
}
