// Package verifier checks the two signatures every Map chain header carries:
//
//   - the proposer seal, an ECDSA signature over Header.HashWithoutSeal that
//     must recover to the header's coinbase, a member of the epoch's validator set
//   - the aggregated seal, a BLS signature over Header.Hash by validators whose
//     combined weight reaches the epoch's quorum threshold
//
// Both checks are pure functions of the header, its parsed extra and the epoch
// record; neither touches light-client state.
package verifier

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-map-lightclient/crypto/bls"
	"github.com/rony4d/go-map-lightclient/inter"
	"github.com/rony4d/go-map-lightclient/inter/ier"
	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
	"github.com/rony4d/go-map-lightclient/log"
)

var (
	// ErrHeaderVerifyFailed is returned when the proposer seal is invalid or the
	// signers do not reach the quorum threshold.
	ErrHeaderVerifyFailed = errors.New("header verify failed")
	// ErrBlsInvalidSignature is returned when the aggregate key or the aggregate
	// signature fails its pairing check.
	ErrBlsInvalidSignature = errors.New("bls invalid signature")
)

var logger = log.New("verifier")

// VerifyHeader runs the proposer check followed by the quorum check.
func VerifyHeader(h *inter.Header, extra *inter.IstanbulExtra, record ier.EpochRecord, aggPK validatorpk.G2PubKey) error {
	if err := VerifyProposer(h, extra, record); err != nil {
		return err
	}
	return VerifyQuorum(h, extra, record, aggPK)
}

// VerifyProposer checks that the seal recovers to h.Coinbase and that the
// coinbase appears exactly once in the epoch's validator list.
func VerifyProposer(h *inter.Header, extra *inter.IstanbulExtra, record ier.EpochRecord) error {
	hash := h.HashWithoutSeal()
	signer, err := RecoverProposer(hash, extra.Seal, h.Coinbase)
	if err != nil {
		return err
	}
	if signer != h.Coinbase {
		return fmt.Errorf("%w: seal signed by %s, coinbase is %s", ErrHeaderVerifyFailed, signer.Hex(), h.Coinbase.Hex())
	}
	if n := record.CountAddress(signer); n != 1 {
		return fmt.Errorf("%w: proposer %s appears %d times in epoch %d", ErrHeaderVerifyFailed, signer.Hex(), n, record.Epoch)
	}
	logger.WithField("proposer", signer.Hex()).Debug("Proposer seal verified")
	return nil
}

// RecoverProposer recovers the address that produced seal over hash.
//
// A 65-byte seal carries its recovery id in the last byte, either raw (0, 1)
// or Ethereum-style (27, 28). A 64-byte seal carries none, so both ids are
// tried and the one recovering to the expected address wins; if neither does,
// the first recovered address is returned and the caller's comparison fails.
func RecoverProposer(hash common.Hash, seal []byte, expected common.Address) (common.Address, error) {
	switch len(seal) {
	case inter.IstanbulExtraSeal:
		sig := make([]byte, inter.IstanbulExtraSeal)
		copy(sig, seal)
		if sig[64] >= 27 {
			sig[64] -= 27
		}
		if sig[64] > 1 {
			return common.Address{}, fmt.Errorf("%w: invalid recovery id %d", ErrHeaderVerifyFailed, seal[64])
		}
		return ecrecover(hash, sig)

	case inter.IstanbulExtraSeal - 1:
		var first common.Address
		for v := byte(0); v < 2; v++ {
			sig := append(append(make([]byte, 0, inter.IstanbulExtraSeal), seal...), v)
			addr, err := ecrecover(hash, sig)
			if err != nil {
				continue
			}
			if addr == expected {
				return addr, nil
			}
			if first == (common.Address{}) {
				first = addr
			}
		}
		if first == (common.Address{}) {
			return first, fmt.Errorf("%w: unrecoverable seal", ErrHeaderVerifyFailed)
		}
		return first, nil

	default:
		return common.Address{}, fmt.Errorf("%w: seal has %d bytes", ErrHeaderVerifyFailed, len(seal))
	}
}

func ecrecover(hash common.Hash, sig []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrHeaderVerifyFailed, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyQuorum checks the aggregated seal of h against record.
//
// The signer weight selected by the seal's bitmap must reach the threshold
// (ErrHeaderVerifyFailed otherwise). Then aggPK must be the aggregate of the
// selected validators' keys and the seal's signature must verify against
// h.Hash() under aggPK; any failure there is ErrBlsInvalidSignature.
func VerifyQuorum(h *inter.Header, extra *inter.IstanbulExtra, record ier.EpochRecord, aggPK validatorpk.G2PubKey) error {
	seal := extra.AggregatedSeal
	weight := record.SignerWeight(seal.Bitmap)
	if weight < record.Threshold {
		return fmt.Errorf("%w: signer weight %d below threshold %d", ErrHeaderVerifyFailed, weight, record.Threshold)
	}

	signers := record.SelectSigners(seal.Bitmap)
	if err := bls.VerifyAggregateKey(signers, aggPK); err != nil {
		return fmt.Errorf("%w: %v", ErrBlsInvalidSignature, err)
	}
	hash := h.Hash()
	if err := bls.Verify(aggPK, hash[:], seal.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrBlsInvalidSignature, err)
	}

	logger.WithFields(logrus.Fields{
		"hash":    hash.Hex(),
		"signers": len(signers),
		"weight":  weight,
	}).Debug("Quorum seal verified")
	return nil
}
