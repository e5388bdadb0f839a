// Package mapchain defines the parameters of the MAP relay chain networks the
// light client can follow.
//
// This package provides:
//   - Network identification constants (MainNet, Makalu testnet, FakeNet)
//   - Epoch rules: blocks per epoch and how many epoch records to retain
//   - The MAP Cross-chain Service contract binding of a network
//
// The Rules type is the single source of chain parameters the launcher hands
// to the light client.
package mapchain

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Network identification constants
const (
	// MainNetworkID is the chain ID of the MAP relay chain mainnet.
	MainNetworkID uint64 = 22776

	// TestNetworkID is the chain ID of the Makalu testnet.
	TestNetworkID uint64 = 212

	// FakeNetworkID is the chain ID used for local fake networks.
	FakeNetworkID uint64 = 0xfa3

	// DefaultEpochSize is the number of blocks per epoch on the public networks.
	DefaultEpochSize uint64 = 50000

	// DefaultMaxRecords bounds the epoch records a client retains. With the
	// default epoch size this covers proofs for several years of blocks.
	DefaultMaxRecords uint64 = 4000
)

// EpochRules describes how the remote chain is split into epochs and how much
// history the client keeps.
type EpochRules struct {
	// EpochSize is the number of blocks per epoch. The validator set of epoch
	// e signs blocks [e*EpochSize, (e+1)*EpochSize).
	EpochSize uint64

	// MaxRecords is the number of epoch records retained. Older records are
	// pruned on every accepted header.
	MaxRecords uint64
}

// Rules describes a MAP network from the light client's point of view.
type Rules struct {
	Name      string // Network name identifier ("main", "makalu", "fake")
	NetworkID uint64 // Chain ID, the FromChain of transfers leaving this network

	Epochs EpochRules

	// MCSContract is the MAP Cross-chain Service contract whose transfer logs
	// are accepted. The public presets leave it zero: deployments differ per
	// bridge and the address must come from configuration.
	MCSContract common.Address
}

// MainNetRules returns the rules of the MAP relay chain mainnet.
func MainNetRules() Rules {
	return Rules{
		Name:      "main",
		NetworkID: MainNetworkID,
		Epochs:    DefaultEpochRules(),
	}
}

// TestNetRules returns the rules of the Makalu testnet. It uses the same epoch
// parameters as mainnet.
func TestNetRules() Rules {
	return Rules{
		Name:      "makalu",
		NetworkID: TestNetworkID,
		Epochs:    DefaultEpochRules(),
	}
}

// FakeNetRules returns the rules of a local fake network. Epochs are short so
// that a generated chain reaches several validator rotations quickly.
func FakeNetRules() Rules {
	return Rules{
		Name:        "fake",
		NetworkID:   FakeNetworkID,
		Epochs:      FakeNetEpochRules(),
		MCSContract: common.HexToAddress("0x000000000000000000000000000000000000fa3c"),
	}
}

// DefaultEpochRules returns the epoch rules of the public networks.
func DefaultEpochRules() EpochRules {
	return EpochRules{
		EpochSize:  DefaultEpochSize,
		MaxRecords: DefaultMaxRecords,
	}
}

// FakeNetEpochRules returns accelerated epoch rules for fake networks.
func FakeNetEpochRules() EpochRules {
	return EpochRules{
		EpochSize:  100,
		MaxRecords: 16,
	}
}

// RulesByName returns the preset rules of a named network.
func RulesByName(name string) (Rules, error) {
	switch name {
	case "main", "mainnet":
		return MainNetRules(), nil
	case "makalu", "test", "testnet":
		return TestNetRules(), nil
	case "fake", "fakenet":
		return FakeNetRules(), nil
	}
	return Rules{}, fmt.Errorf("unknown network %q", name)
}

// Validate checks that the rules are usable by a light client.
func (r Rules) Validate() error {
	if r.Epochs.EpochSize == 0 {
		return fmt.Errorf("network %q: epoch size must be positive", r.Name)
	}
	if r.Epochs.MaxRecords == 0 {
		return fmt.Errorf("network %q: record limit must be positive", r.Name)
	}
	return nil
}

// String returns a JSON representation of Rules for debugging and logging.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
