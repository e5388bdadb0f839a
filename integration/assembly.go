package integration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/leveldb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"

	"github.com/rony4d/go-map-lightclient/lightclient"
	"github.com/rony4d/go-map-lightclient/log"
	"github.com/rony4d/go-map-lightclient/mapchain"
	"github.com/rony4d/go-map-lightclient/mapchain/genesis"
	"github.com/rony4d/go-map-lightclient/mcs"
	"github.com/rony4d/go-map-lightclient/store"
)

// ChainDataDir is the directory under the datadir holding the client DB.
const ChainDataDir = "lightchaindata"

// ErrAlreadyInitialized is returned by InitClient when the store already holds
// a client state.
var ErrAlreadyInitialized = errors.New("light client state already initialized")

var logger = log.New("integration")

// ClientConfig is everything besides storage needed to run a client.
type ClientConfig struct {
	Rules        mapchain.Rules
	LocalChainID uint64
	Tokens       mcs.TokenTable
}

// OpenDB opens the main database of a client under datadir.
func OpenDB(datadir string, p PresetConfig) (kvdb.Store, error) {
	switch p.DBType {
	case DBTypeMemory:
		return memorydb.New(), nil
	case DBTypeLevelDB, "":
		path := filepath.Join(datadir, ChainDataDir)
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("create chaindata dir %s: %w", path, err)
		}
		db, err := leveldb.New(path, p.CacheMB, p.Handles, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("open leveldb %s: %w", path, err)
		}
		logger.WithField("path", path).WithField("preset", p.Name).Debug("Database opened")
		return db, nil
	}
	return nil, fmt.Errorf("unknown database type %q", p.DBType)
}

// MakeStore opens the database of a preset and wraps it in a state store.
func MakeStore(datadir string, p PresetConfig) (*store.Store, error) {
	db, err := OpenDB(datadir, p)
	if err != nil {
		return nil, err
	}
	return store.New(db), nil
}

func (cfg ClientConfig) collaborators(s *store.Store, minter mcs.Minter) lightclient.Collaborators {
	c := lightclient.Collaborators{
		Minter: minter,
		Tokens: cfg.Tokens,
	}
	if s != nil {
		c.Store = s
		c.Orders = s
	}
	return c
}

// InitClient writes g into an empty store and returns the new client.
func InitClient(s *store.Store, g *genesis.Genesis, cfg ClientConfig, minter mcs.Minter) (*lightclient.MapLightClient, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.Network != cfg.Rules.Name {
		return nil, fmt.Errorf("%w: genesis of network %q, running %q", genesis.ErrInvalidGenesis, g.Network, cfg.Rules.Name)
	}
	if g.EpochSize != cfg.Rules.Epochs.EpochSize || g.MaxRecords != cfg.Rules.Epochs.MaxRecords {
		return nil, fmt.Errorf("%w: genesis epochs %d/%d, network rules %d/%d", genesis.ErrInvalidGenesis,
			g.EpochSize, g.MaxRecords, cfg.Rules.Epochs.EpochSize, cfg.Rules.Epochs.MaxRecords)
	}
	if _, err := s.LoadState(); err == nil {
		return nil, ErrAlreadyInitialized
	} else if !errors.Is(err, store.ErrNotInitialized) {
		return nil, err
	}

	return lightclient.Initialize(lightclient.Config{
		EpochSize:    g.EpochSize,
		MaxRecords:   g.MaxRecords,
		MCSContract:  cfg.Rules.MCSContract,
		LocalChainID: cfg.LocalChainID,
	}, g.HeaderHeight, g.EpochRecord(), cfg.collaborators(s, minter))
}

// OpenClient restores the client persisted in s.
func OpenClient(s *store.Store, cfg ClientConfig, minter mcs.Minter) (*lightclient.MapLightClient, error) {
	return lightclient.Open(lightclient.Config{
		EpochSize:    cfg.Rules.Epochs.EpochSize,
		MaxRecords:   cfg.Rules.Epochs.MaxRecords,
		MCSContract:  cfg.Rules.MCSContract,
		LocalChainID: cfg.LocalChainID,
	}, cfg.collaborators(s, minter))
}
