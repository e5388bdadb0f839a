// Package genesis defines the trusted starting point of a light client: the
// height of the last header the operator trusts and the validator set that
// signs the next epoch boundary.
//
// Key concepts:
//   - Genesis: chain parameters plus the seed epoch record
//   - Threshold: optional override of the seed record's quorum threshold,
//     for bootstrapping from a record the remote chain itself stores with a
//     non-derived threshold
//
// The genesis is read from a JSON file by the init command, or generated
// programmatically for fake networks.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-map-lightclient/inter"
	"github.com/rony4d/go-map-lightclient/inter/ier"
	"github.com/rony4d/go-map-lightclient/mapchain"
)

// ErrInvalidGenesis is returned when a genesis fails validation.
var ErrInvalidGenesis = errors.New("invalid genesis")

// Genesis is the trusted seed of a light client.
type Genesis struct {
	// Network names the preset rules the genesis belongs to.
	Network string `json:"network"`

	EpochSize  uint64 `json:"epochSize"`
	MaxRecords uint64 `json:"maxRecords"`

	// HeaderHeight is the number of the last trusted header. The next header
	// the client accepts is HeaderHeight + EpochSize.
	HeaderHeight uint64 `json:"headerHeight"`

	// Epoch is the epoch Validators govern. It must equal
	// (HeaderHeight + EpochSize) / EpochSize.
	Epoch uint64 `json:"epoch"`

	// Threshold overrides the derived quorum threshold when set.
	Threshold *uint64 `json:"threshold,omitempty"`

	Validators []ier.Validator `json:"validators"`
}

// New builds a genesis from network rules and a seed record. The record's
// threshold is kept as an override only when it differs from the derived one.
func New(rules mapchain.Rules, headerHeight uint64, rec ier.EpochRecord) *Genesis {
	g := &Genesis{
		Network:      rules.Name,
		EpochSize:    rules.Epochs.EpochSize,
		MaxRecords:   rules.Epochs.MaxRecords,
		HeaderHeight: headerHeight,
		Epoch:        rec.Epoch,
		Validators:   rec.Copy().Validators,
	}
	if rec.Threshold != ier.CalcThreshold(rec.TotalWeight()) {
		threshold := rec.Threshold
		g.Threshold = &threshold
	}
	return g
}

// Validate checks the genesis for internal consistency.
func (g *Genesis) Validate() error {
	if g.EpochSize == 0 {
		return fmt.Errorf("%w: epoch size must be positive", ErrInvalidGenesis)
	}
	if g.MaxRecords == 0 {
		return fmt.Errorf("%w: record limit must be positive", ErrInvalidGenesis)
	}
	if g.HeaderHeight > ^uint64(0)-g.EpochSize {
		return fmt.Errorf("%w: header height %d too large", ErrInvalidGenesis, g.HeaderHeight)
	}
	if want := inter.GetEpochNumber(g.HeaderHeight+g.EpochSize, g.EpochSize); g.Epoch != want {
		return fmt.Errorf("%w: epoch %d, header height %d requires epoch %d", ErrInvalidGenesis, g.Epoch, g.HeaderHeight, want)
	}
	if len(g.Validators) == 0 {
		return fmt.Errorf("%w: no validators", ErrInvalidGenesis)
	}
	seen := make(map[common.Address]bool, len(g.Validators))
	for i, v := range g.Validators {
		if v.Weight == 0 {
			return fmt.Errorf("%w: validator %d has zero weight", ErrInvalidGenesis, i)
		}
		if v.G1PubKey.Empty() {
			return fmt.Errorf("%w: validator %d has no public key", ErrInvalidGenesis, i)
		}
		if seen[v.Address] {
			return fmt.Errorf("%w: duplicate validator %s", ErrInvalidGenesis, v.Address.Hex())
		}
		seen[v.Address] = true
	}
	if _, ok := ier.SumWeights(g.Validators); !ok {
		return fmt.Errorf("%w: total validator weight overflows", ErrInvalidGenesis)
	}
	rec := g.EpochRecord()
	if rec.Threshold > rec.TotalWeight() {
		return fmt.Errorf("%w: threshold %d exceeds total weight %d", ErrInvalidGenesis, rec.Threshold, rec.TotalWeight())
	}
	return nil
}

// EpochRecord returns the seed record, applying the threshold override.
func (g *Genesis) EpochRecord() ier.EpochRecord {
	validators := make([]ier.Validator, len(g.Validators))
	copy(validators, g.Validators)
	rec := ier.NewEpochRecord(g.Epoch, validators)
	if g.Threshold != nil {
		rec.Threshold = *g.Threshold
	}
	return rec
}

// Load reads and validates a genesis file.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g := new(Genesis)
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidGenesis, path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Save writes the genesis to path as indented JSON.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
