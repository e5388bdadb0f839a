package genesis

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-map-lightclient/inter/ier"
	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
	"github.com/rony4d/go-map-lightclient/mapchain"
	"github.com/rony4d/go-map-lightclient/mapchain/fakenet"
)

func fakeGenesis() *Genesis {
	rules := mapchain.MainNetRules()
	return New(rules, 3000, fakenet.Record(1, fakenet.NewValidators(0, 3), 1900))
}

func TestGenesis_SaveLoad(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "genesis.json")

	g := fakeGenesis()
	require.Nil(g.Threshold, "derived threshold needs no override")
	require.NoError(g.Validate())
	require.NoError(g.Save(path))

	loaded, err := Load(path)
	require.NoError(err)
	require.Equal(g, loaded)
	require.Equal(g.EpochRecord(), loaded.EpochRecord())
	require.Equal(ier.CalcThreshold(3*1900), loaded.EpochRecord().Threshold)
}

func TestGenesis_ThresholdOverride(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "genesis.json")

	rec := fakenet.Record(1, fakenet.NewValidators(0, 1), 1900)
	rec.Threshold = 0
	g := New(mapchain.MainNetRules(), 3000, rec)
	require.NotNil(g.Threshold)
	require.NoError(g.Save(path))

	loaded, err := Load(path)
	require.NoError(err)
	require.Equal(uint64(0), loaded.EpochRecord().Threshold)
	require.Equal(uint64(1900), loaded.EpochRecord().TotalWeight())
}

func TestGenesis_Validate(t *testing.T) {
	cases := map[string]func(g *Genesis){
		"zero_epoch_size":  func(g *Genesis) { g.EpochSize = 0 },
		"zero_max_records": func(g *Genesis) { g.MaxRecords = 0 },
		"wrong_epoch":      func(g *Genesis) { g.Epoch = 2 },
		"height_overflow":  func(g *Genesis) { g.HeaderHeight = ^uint64(0) },
		"no_validators":    func(g *Genesis) { g.Validators = nil },
		"zero_weight":      func(g *Genesis) { g.Validators[0].Weight = 0 },
		"duplicate":        func(g *Genesis) { g.Validators[1].Address = g.Validators[0].Address },
		"no_key":           func(g *Genesis) { g.Validators[2].G1PubKey = validatorpk.G1PubKey{} },
		"weight_overflow":  func(g *Genesis) { g.Validators[0].Weight = ^uint64(0) - 1 },
		"threshold_above_total": func(g *Genesis) {
			threshold := uint64(3*1900 + 1)
			g.Threshold = &threshold
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := fakeGenesis()
			mutate(g)
			require.True(t, errors.Is(g.Validate(), ErrInvalidGenesis))
		})
	}
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"epochSize": "many"}`), 0644))
	_, err := Load(path)
	require.True(t, errors.Is(err, ErrInvalidGenesis))

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
