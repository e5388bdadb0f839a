package lightclient

import (
	"github.com/rony4d/go-map-lightclient/inter"
	"github.com/rony4d/go-map-lightclient/inter/ier"
)

// NextEpochRecord derives the record of the epoch following current from the
// validator changes announced in an epoch-boundary header.
//
// Validators whose bit is set in RemovedValidators are dropped, the survivors
// keep their relative order, and the added validators are appended in
// announcement order with weight 1. The threshold is recomputed from the new
// total weight. current is not modified.
func NextEpochRecord(current ier.EpochRecord, extra *inter.IstanbulExtra) ier.EpochRecord {
	added := len(extra.AddedValidators)
	if n := len(extra.AddedValidatorsG1PublicKeys); n < added {
		added = n
	}

	validators := make([]ier.Validator, 0, len(current.Validators)+added)
	for i, v := range current.Validators {
		if extra.RemovedBit(i) {
			continue
		}
		validators = append(validators, v)
	}
	for i := 0; i < added; i++ {
		validators = append(validators, ier.Validator{
			Address:  extra.AddedValidators[i],
			G1PubKey: extra.AddedValidatorsG1PublicKeys[i],
			Weight:   1,
		})
	}
	return ier.NewEpochRecord(current.Epoch+1, validators)
}

// PrunedEpoch returns the epoch to evict after inserting the record of next,
// so that at most maxRecords records remain.
func PrunedEpoch(next, maxRecords uint64) (uint64, bool) {
	if maxRecords == 0 || next < maxRecords {
		return 0, false
	}
	return next - maxRecords, true
}
