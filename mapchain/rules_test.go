package mapchain

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// TestNetworkConstants verifies the network identification constants. Chain
// ids travel in transfer events, so a wrong value silently breaks routing.
func TestNetworkConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant uint64
		want     uint64
	}{
		{"MainNetworkID", MainNetworkID, 22776},
		{"TestNetworkID", TestNetworkID, 212},
		{"FakeNetworkID", FakeNetworkID, 0xfa3},
		{"DefaultEpochSize", DefaultEpochSize, 50000},
		{"DefaultMaxRecords", DefaultMaxRecords, 4000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.constant, tt.want)
			}
		})
	}
}

// TestPresets verifies every preset and its lookup by name.
func TestPresets(t *testing.T) {
	tests := []struct {
		lookup    string
		name      string
		networkID uint64
		epochs    EpochRules
		mcs       bool
	}{
		{"main", "main", MainNetworkID, DefaultEpochRules(), false},
		{"mainnet", "main", MainNetworkID, DefaultEpochRules(), false},
		{"makalu", "makalu", TestNetworkID, DefaultEpochRules(), false},
		{"testnet", "makalu", TestNetworkID, DefaultEpochRules(), false},
		{"fake", "fake", FakeNetworkID, FakeNetEpochRules(), true},
	}

	for _, tt := range tests {
		t.Run(tt.lookup, func(t *testing.T) {
			rules, err := RulesByName(tt.lookup)
			if err != nil {
				t.Fatalf("RulesByName(%q): %v", tt.lookup, err)
			}
			if rules.Name != tt.name {
				t.Errorf("Name = %q, want %q", rules.Name, tt.name)
			}
			if rules.NetworkID != tt.networkID {
				t.Errorf("NetworkID = %d, want %d", rules.NetworkID, tt.networkID)
			}
			if rules.Epochs != tt.epochs {
				t.Errorf("Epochs = %+v, want %+v", rules.Epochs, tt.epochs)
			}
			if got := rules.MCSContract != (common.Address{}); got != tt.mcs {
				t.Errorf("MCSContract set = %v, want %v", got, tt.mcs)
			}
			if err := rules.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}

	if _, err := RulesByName("unknown"); err == nil {
		t.Error("RulesByName accepted an unknown network")
	}
}

// TestFakeNetEpochRules verifies that fake epochs are shorter than the public ones.
func TestFakeNetEpochRules(t *testing.T) {
	fake := FakeNetEpochRules()
	def := DefaultEpochRules()
	if fake.EpochSize >= def.EpochSize {
		t.Errorf("fake EpochSize = %d, want less than %d", fake.EpochSize, def.EpochSize)
	}
	if fake.MaxRecords == 0 {
		t.Error("fake MaxRecords must be positive")
	}
}

func TestRulesValidate(t *testing.T) {
	rules := FakeNetRules()
	rules.Epochs.EpochSize = 0
	if err := rules.Validate(); err == nil {
		t.Error("zero epoch size accepted")
	}

	rules = FakeNetRules()
	rules.Epochs.MaxRecords = 0
	if err := rules.Validate(); err == nil {
		t.Error("zero record limit accepted")
	}
}

// TestRulesString verifies that String() returns valid JSON.
func TestRulesString(t *testing.T) {
	rules := FakeNetRules()
	jsonStr := rules.String()

	var unmarshaled Rules
	if err := json.Unmarshal([]byte(jsonStr), &unmarshaled); err != nil {
		t.Fatalf("String() returned invalid JSON: %v\nJSON: %s", err, jsonStr)
	}
	if unmarshaled != rules {
		t.Errorf("Unmarshaled = %+v, want %+v", unmarshaled, rules)
	}
}
