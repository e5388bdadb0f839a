package store

import (
	"errors"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/kvdb/leveldb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-map-lightclient/inter/ier"
	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
)

func fakeRecord(epoch uint64, n int) ier.EpochRecord {
	vals := make([]ier.Validator, n)
	for i := range vals {
		var pk validatorpk.G1PubKey
		pk[0] = byte(epoch)
		pk[1] = byte(i)
		vals[i] = ier.Validator{
			Address:  common.BytesToAddress([]byte{byte(epoch), byte(i)}),
			G1PubKey: pk,
			Weight:   uint64(i + 1),
		}
	}
	return ier.NewEpochRecord(epoch, vals)
}

func TestStore_NotInitialized(t *testing.T) {
	s := NewMemStore()
	_, err := s.LoadState()
	require.True(t, errors.Is(err, ErrNotInitialized))
}

func TestStore_SaveLoad(t *testing.T) {
	require := require.New(t)
	s := NewMemStore()

	state := &ier.ClientState{
		EpochSize:    50000,
		HeaderHeight: 3000,
		MaxRecords:   4000,
		Records:      []ier.EpochRecord{fakeRecord(1, 3), fakeRecord(2, 4)},
	}
	require.NoError(s.SaveState(state))

	got, err := s.LoadState()
	require.NoError(err)
	require.Equal(state, got)

	// Saving again replaces the previous records.
	state.Records = []ier.EpochRecord{fakeRecord(7, 2)}
	require.NoError(s.SaveState(state))
	got, err = s.LoadState()
	require.NoError(err)
	require.Len(got.Records, 1)
	require.Equal(uint64(7), got.Records[0].Epoch)
}

func TestStore_CommitAdvance(t *testing.T) {
	require := require.New(t)
	s := NewMemStore()
	require.NoError(s.SaveState(&ier.ClientState{
		EpochSize:    10,
		HeaderHeight: 5,
		MaxRecords:   2,
		Records:      []ier.EpochRecord{fakeRecord(1, 2)},
	}))

	require.NoError(s.CommitAdvance(15, fakeRecord(2, 3), nil))
	require.NoError(s.CommitAdvance(25, fakeRecord(3, 3), []uint64{1}))

	got, err := s.LoadState()
	require.NoError(err)
	require.Equal(uint64(25), got.HeaderHeight)
	require.Len(got.Records, 2)
	require.Equal(uint64(2), got.Records[0].Epoch)
	require.Equal(uint64(3), got.Records[1].Epoch)
	require.Equal(fakeRecord(3, 3), got.Records[1])
}

// TestStore_EpochOrder checks that records load in numeric epoch order even
// when their decimal representations would sort differently.
func TestStore_EpochOrder(t *testing.T) {
	require := require.New(t)
	s := NewMemStore()
	state := &ier.ClientState{EpochSize: 1, HeaderHeight: 1, MaxRecords: 10}
	for _, e := range []uint64{2, 10, 256, 9} {
		state.Records = append(state.Records, fakeRecord(e, 1))
	}
	require.NoError(s.SaveState(state))

	got, err := s.LoadState()
	require.NoError(err)
	var epochs []uint64
	for _, r := range got.Records {
		epochs = append(epochs, r.Epoch)
	}
	require.Equal([]uint64{2, 9, 10, 256}, epochs)
}

func TestStore_Orders(t *testing.T) {
	require := require.New(t)
	s := NewMemStore()
	id := common.HexToHash("0x01")

	consumed, err := s.IsConsumed(id)
	require.NoError(err)
	require.False(consumed)

	require.NoError(s.Consume(id))
	consumed, err = s.IsConsumed(id)
	require.NoError(err)
	require.True(consumed)

	// Orders live in their own table and never show up as state.
	_, err = s.LoadState()
	require.True(errors.Is(err, ErrNotInitialized))
}

func TestStore_LevelDB(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	db, err := leveldb.New(dir, 16, 16, nil, nil)
	require.NoError(err)
	s := New(db)
	state := &ier.ClientState{
		EpochSize:    100,
		HeaderHeight: 42,
		MaxRecords:   3,
		Records:      []ier.EpochRecord{fakeRecord(1, 2)},
	}
	require.NoError(s.SaveState(state))
	require.NoError(s.Close())

	db, err = leveldb.New(dir, 16, 16, nil, nil)
	require.NoError(err)
	s = New(db)
	defer s.Close()
	got, err := s.LoadState()
	require.NoError(err)
	require.Equal(state, got)
}
