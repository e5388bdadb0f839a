package integration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-map-lightclient/lightclient"
	"github.com/rony4d/go-map-lightclient/mapchain"
	"github.com/rony4d/go-map-lightclient/mapchain/fakenet"
	"github.com/rony4d/go-map-lightclient/mapchain/genesis"
	"github.com/rony4d/go-map-lightclient/mcs"
)

func fakeSetup() (*fakenet.Network, *genesis.Genesis, ClientConfig) {
	rules := mapchain.FakeNetRules()
	net := fakenet.NewNetwork(rules.Epochs.EpochSize, 0, 4, 1)
	h, rec := net.Genesis()
	return net, genesis.New(rules, h, rec), ClientConfig{Rules: rules}
}

func TestInitClient_Memory(t *testing.T) {
	require := require.New(t)
	net, g, cfg := fakeSetup()

	s, err := MakeStore("", MemoryPreset())
	require.NoError(err)
	defer s.Close()

	lc, err := InitClient(s, g, cfg, new(mcs.LedgerMinter))
	require.NoError(err)
	sealed, err := net.Advance(1, nil)
	require.NoError(err)
	require.NoError(lc.AdvanceHeader(sealed.Raw, sealed.AggPK))
	require.Equal(uint64(100), lc.HeaderHeight())

	_, err = InitClient(s, g, cfg, nil)
	require.True(errors.Is(err, ErrAlreadyInitialized))
}

func TestInitClient_Rejects(t *testing.T) {
	for name, mutate := range map[string]func(g *genesis.Genesis, cfg *ClientConfig){
		"wrong_network":     func(g *genesis.Genesis, cfg *ClientConfig) { cfg.Rules = mapchain.MainNetRules() },
		"epoch_size":        func(g *genesis.Genesis, cfg *ClientConfig) { cfg.Rules.Epochs.EpochSize = 50 },
		"invalid_genesis":   func(g *genesis.Genesis, cfg *ClientConfig) { g.Validators = nil },
		"record_limit_diff": func(g *genesis.Genesis, cfg *ClientConfig) { g.MaxRecords = 3 },
	} {
		t.Run(name, func(t *testing.T) {
			_, g, cfg := fakeSetup()
			mutate(g, &cfg)
			s, err := MakeStore("", MemoryPreset())
			require.NoError(t, err)
			_, err = InitClient(s, g, cfg, nil)
			require.True(t, errors.Is(err, genesis.ErrInvalidGenesis), "got %v", err)
		})
	}
}

func TestOpenClient_LevelDB(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	net, g, cfg := fakeSetup()
	preset := LitePreset()

	s, err := MakeStore(dir, preset)
	require.NoError(err)
	lc, err := InitClient(s, g, cfg, nil)
	require.NoError(err)
	for i := 0; i < 3; i++ {
		sealed, err := net.Advance(0, nil)
		require.NoError(err)
		require.NoError(lc.AdvanceHeader(sealed.Raw, sealed.AggPK))
	}
	want := lc.Status()
	lc.Close()
	require.NoError(s.Close())

	s, err = MakeStore(dir, preset)
	require.NoError(err)
	defer s.Close()
	lc, err = OpenClient(s, cfg, nil)
	require.NoError(err)
	require.Equal(want, lc.Status())
	require.Equal(uint64(300), lc.HeaderHeight())

	// A client configured for other epoch rules refuses the stored state.
	other := cfg
	other.Rules.Epochs.MaxRecords++
	_, err = OpenClient(s, other, nil)
	require.True(errors.Is(err, lightclient.ErrGenesis))
}

func TestOpenClient_Empty(t *testing.T) {
	s, err := MakeStore("", MemoryPreset())
	require.NoError(t, err)
	_, err = OpenClient(s, ClientConfig{Rules: mapchain.FakeNetRules()}, nil)
	require.True(t, errors.Is(err, lightclient.ErrStore))
}

func TestOpenDB_UnknownType(t *testing.T) {
	_, err := OpenDB(t.TempDir(), PresetConfig{Name: "x", DBType: "pebble"})
	require.Error(t, err)
}
