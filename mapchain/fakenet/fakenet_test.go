package fakenet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-map-lightclient/crypto/bls"
	"github.com/rony4d/go-map-lightclient/inter"
)

func TestFakeKey_Deterministic(t *testing.T) {
	require := require.New(t)
	require.Equal(FakeKey(0).D, FakeKey(0).D)
	require.NotEqual(FakeKey(0).D, FakeKey(1).D)
	require.Equal(NewValidator(7).Address(), NewValidator(7).Address())
	require.Equal(FakeBLSKey(3).G1PubKey(), FakeBLSKey(3).G1PubKey())
}

func TestSealHeader(t *testing.T) {
	require := require.New(t)
	set := NewValidators(0, 4)
	added := NewValidators(10, 2)

	sealed, err := SealHeader(set, HeaderSpec{
		Number:   100,
		Proposer: 2,
		Signers:  []int{0, 2, 3},
		Added:    added,
		Removed:  []int{1},
	})
	require.NoError(err)

	h, err := inter.DecodeHeader(sealed.Raw)
	require.NoError(err)
	require.Equal(uint64(100), h.NumberU64())
	require.Equal(set[2].Address(), h.Coinbase)
	require.Equal(sealed.Header.Hash(), h.Hash())

	extra, err := inter.ExtractIstanbulExtra(h.Extra)
	require.NoError(err)
	require.Len(extra.Seal, inter.IstanbulExtraSeal)
	require.Equal([]bool{false, true, false, false}, []bool{
		extra.RemovedBit(0), extra.RemovedBit(1), extra.RemovedBit(2), extra.RemovedBit(3),
	})
	require.Equal(added[0].Address(), extra.AddedValidators[0])
	require.Equal(added[1].BLS.G1PubKey(), extra.AddedValidatorsG1PublicKeys[1])
	require.Equal(int64(0b1101), extra.AggregatedSeal.Bitmap.Int64())

	// The quorum seal verifies against the decoded header's hash.
	hash := h.Hash()
	require.NoError(bls.Verify(sealed.AggPK, hash[:], extra.AggregatedSeal.Signature))
	rec := Record(1, set, 1)
	require.NoError(bls.VerifyAggregateKey(rec.SelectSigners(extra.AggregatedSeal.Bitmap), sealed.AggPK))
}

func TestSealHeader_BadIndices(t *testing.T) {
	set := NewValidators(0, 2)
	_, err := SealHeader(set, HeaderSpec{Proposer: 2})
	require.Error(t, err)
	_, err = SealHeader(set, HeaderSpec{Signers: []int{5}})
	require.Error(t, err)
}

func TestNetwork_Advance(t *testing.T) {
	require := require.New(t)
	n := NewNetwork(100, 50, 3, 10)
	require.Equal(uint64(1), n.CurrentEpoch())

	height, genesis := n.Genesis()
	require.Equal(uint64(50), height)
	require.Equal(uint64(1), genesis.Epoch)
	require.Equal(uint64(30), genesis.TotalWeight())

	sealed, err := n.Advance(2, []int{0})
	require.NoError(err)
	require.Equal(uint64(150), sealed.Header.NumberU64())
	require.Equal(uint64(150), n.Height)
	require.Equal(uint64(2), n.CurrentEpoch())

	next, ok := n.EpochRecord(2)
	require.True(ok)
	require.Len(next.Validators, 4)
	require.Equal(genesis.Validators[1].Address, next.Validators[0].Address)
	require.Equal(uint64(10+10+1+1), next.TotalWeight())

	// The removed validator did not propose.
	require.NotEqual(genesis.Validators[0].Address, sealed.Header.Coinbase)
}

func TestNetwork_ProveReceipt(t *testing.T) {
	require := require.New(t)
	n := NewNetwork(100, 50, 3, 1)

	receipts := []*inter.ReceiptData{FillerReceipt(0), FillerReceipt(1), FillerReceipt(2)}
	p, err := n.ProveReceipt(120, receipts, 1)
	require.NoError(err)
	require.Equal(uint64(1), p.KeyIndex)
	require.NotEmpty(p.Proof)

	_, err = n.ProveReceipt(120, receipts, 3)
	require.Error(err)
	// Epoch 5 has no validator set yet.
	_, err = n.ProveReceipt(500, receipts, 0)
	require.Error(err)
}
