package verifier

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-map-lightclient/inter"
	"github.com/rony4d/go-map-lightclient/inter/ier"
	"github.com/rony4d/go-map-lightclient/mapchain/fakenet"
)

func sealed(t *testing.T, set []*fakenet.Validator, hs fakenet.HeaderSpec) (*inter.Header, *inter.IstanbulExtra, *fakenet.SealedHeader) {
	s, err := fakenet.SealHeader(set, hs)
	require.NoError(t, err)
	h, err := inter.DecodeHeader(s.Raw)
	require.NoError(t, err)
	extra, err := inter.ExtractIstanbulExtra(h.Extra)
	require.NoError(t, err)
	return h, extra, s
}

// resealExtra re-encodes extra into h after a test modified it.
func resealExtra(t *testing.T, h *inter.Header, extra *inter.IstanbulExtra) {
	enc, err := inter.PrepareExtra(h.Extra[:inter.IstanbulExtraVanity], extra)
	require.NoError(t, err)
	h.Extra = enc
}

func TestVerifyHeader(t *testing.T) {
	require := require.New(t)
	set := fakenet.NewValidators(0, 4)
	record := fakenet.Record(1, set, 1) // threshold 3

	h, extra, s := sealed(t, set, fakenet.HeaderSpec{Number: 100, Proposer: 1})
	require.NoError(VerifyHeader(h, extra, record, s.AggPK))

	// Three of four signers still reach the threshold.
	h, extra, s = sealed(t, set, fakenet.HeaderSpec{Number: 100, Proposer: 0, Signers: []int{0, 1, 3}})
	require.NoError(VerifyHeader(h, extra, record, s.AggPK))
}

func TestVerifyProposer(t *testing.T) {
	set := fakenet.NewValidators(0, 4)
	record := fakenet.Record(1, set, 1)
	outsider := fakenet.NewValidator(99)

	t.Run("wrong_coinbase", func(t *testing.T) {
		h, extra, _ := sealed(t, set, fakenet.HeaderSpec{Number: 100, Proposer: 1})
		h.Coinbase = set[2].Address()
		err := VerifyProposer(h, extra, record)
		require.True(t, errors.Is(err, ErrHeaderVerifyFailed), "got %v", err)
	})

	t.Run("not_a_member", func(t *testing.T) {
		members := append([]*fakenet.Validator{outsider}, set...)
		h, extra, _ := sealed(t, members, fakenet.HeaderSpec{Number: 100, Proposer: 0})
		err := VerifyProposer(h, extra, record)
		require.True(t, errors.Is(err, ErrHeaderVerifyFailed), "got %v", err)
	})

	t.Run("duplicate_member", func(t *testing.T) {
		dup := record.Copy()
		dup.Validators = append(dup.Validators, dup.Validators[1])
		h, extra, _ := sealed(t, set, fakenet.HeaderSpec{Number: 100, Proposer: 1})
		err := VerifyProposer(h, extra, dup)
		require.True(t, errors.Is(err, ErrHeaderVerifyFailed), "got %v", err)
	})

	t.Run("seal_27_28", func(t *testing.T) {
		h, extra, _ := sealed(t, set, fakenet.HeaderSpec{Number: 100, Proposer: 3})
		extra.Seal[64] += 27
		resealExtra(t, h, extra)
		require.NoError(t, VerifyProposer(h, extra, record))
	})

	t.Run("seal_64_bytes", func(t *testing.T) {
		h, extra, _ := sealed(t, set, fakenet.HeaderSpec{Number: 100, Proposer: 3})
		extra.Seal = extra.Seal[:64]
		resealExtra(t, h, extra)
		require.NoError(t, VerifyProposer(h, extra, record))
	})

	t.Run("bad_recovery_id", func(t *testing.T) {
		h, extra, _ := sealed(t, set, fakenet.HeaderSpec{Number: 100, Proposer: 3})
		extra.Seal[64] = 5
		err := VerifyProposer(h, extra, record)
		require.True(t, errors.Is(err, ErrHeaderVerifyFailed), "got %v", err)
	})

	t.Run("bad_seal_length", func(t *testing.T) {
		h, extra, _ := sealed(t, set, fakenet.HeaderSpec{Number: 100, Proposer: 3})
		extra.Seal = extra.Seal[:10]
		err := VerifyProposer(h, extra, record)
		require.True(t, errors.Is(err, ErrHeaderVerifyFailed), "got %v", err)
	})
}

func TestRecoverProposer(t *testing.T) {
	require := require.New(t)
	key := fakenet.FakeKey(1)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	hash := crypto.Keccak256Hash([]byte("header"))

	sig, err := crypto.Sign(hash[:], key)
	require.NoError(err)

	got, err := RecoverProposer(hash, sig, addr)
	require.NoError(err)
	require.Equal(addr, got)

	got, err = RecoverProposer(hash, sig[:64], addr)
	require.NoError(err)
	require.Equal(addr, got)

	// Without the expected address the 64-byte seal still recovers somebody,
	// just not the signer the caller wanted.
	other := crypto.PubkeyToAddress(fakenet.FakeKey(2).PublicKey)
	got, err = RecoverProposer(hash, sig[:64], other)
	require.NoError(err)
	require.NotEqual(other, got)
}

func TestVerifyQuorum(t *testing.T) {
	set := fakenet.NewValidators(0, 4)
	record := fakenet.Record(1, set, 1) // threshold 3

	t.Run("below_threshold", func(t *testing.T) {
		h, extra, s := sealed(t, set, fakenet.HeaderSpec{Number: 100, Signers: []int{0, 1}})
		err := VerifyQuorum(h, extra, record, s.AggPK)
		require.True(t, errors.Is(err, ErrHeaderVerifyFailed), "got %v", err)
	})

	t.Run("zero_threshold", func(t *testing.T) {
		zero := record.Copy()
		zero.Threshold = 0
		h, extra, s := sealed(t, set, fakenet.HeaderSpec{Number: 100, Signers: []int{2}})
		require.NoError(t, VerifyQuorum(h, extra, zero, s.AggPK))
	})

	t.Run("wrong_agg_pk", func(t *testing.T) {
		h, extra, _ := sealed(t, set, fakenet.HeaderSpec{Number: 100})
		_, _, other := sealed(t, set, fakenet.HeaderSpec{Number: 100, Signers: []int{0, 1, 2}})
		err := VerifyQuorum(h, extra, record, other.AggPK)
		require.True(t, errors.Is(err, ErrBlsInvalidSignature), "got %v", err)
	})

	t.Run("bitmap_inflated", func(t *testing.T) {
		// The bitmap claims a signer whose signature is missing from the aggregate.
		h, extra, s := sealed(t, set, fakenet.HeaderSpec{Number: 100, Signers: []int{0, 1, 2}})
		extra.AggregatedSeal.Bitmap = big.NewInt(0b1111)
		err := VerifyQuorum(h, extra, record, s.AggPK)
		require.True(t, errors.Is(err, ErrBlsInvalidSignature), "got %v", err)
	})

	t.Run("bad_signature", func(t *testing.T) {
		h, extra, s := sealed(t, set, fakenet.HeaderSpec{Number: 100})
		_, otherExtra, _ := sealed(t, set, fakenet.HeaderSpec{Number: 101})
		extra.AggregatedSeal.Signature = otherExtra.AggregatedSeal.Signature
		err := VerifyQuorum(h, extra, record, s.AggPK)
		require.True(t, errors.Is(err, ErrBlsInvalidSignature), "got %v", err)
	})

	t.Run("garbage_signature", func(t *testing.T) {
		h, extra, s := sealed(t, set, fakenet.HeaderSpec{Number: 100})
		extra.AggregatedSeal.Signature = make([]byte, 10)
		err := VerifyQuorum(h, extra, record, s.AggPK)
		require.True(t, errors.Is(err, ErrBlsInvalidSignature), "got %v", err)
	})

	t.Run("header_modified", func(t *testing.T) {
		h, extra, s := sealed(t, set, fakenet.HeaderSpec{Number: 100})
		h.GasUsed++
		err := VerifyQuorum(h, extra, record, s.AggPK)
		require.True(t, errors.Is(err, ErrBlsInvalidSignature), "got %v", err)
	})
}

// TestVerifyHeader_WeightedRecord checks quorum over unequal weights.
func TestVerifyHeader_WeightedRecord(t *testing.T) {
	require := require.New(t)
	set := fakenet.NewValidators(0, 3)
	members := []ier.Validator{set[0].Member(10), set[1].Member(1), set[2].Member(1)}
	record := ier.NewEpochRecord(1, members) // total 12, threshold 8

	h, extra, s := sealed(t, set, fakenet.HeaderSpec{Number: 100, Signers: []int{0}})
	require.NoError(VerifyHeader(h, extra, record, s.AggPK))

	h, extra, s = sealed(t, set, fakenet.HeaderSpec{Number: 100, Proposer: 1, Signers: []int{1, 2}})
	require.True(errors.Is(VerifyHeader(h, extra, record, s.AggPK), ErrHeaderVerifyFailed))
}
