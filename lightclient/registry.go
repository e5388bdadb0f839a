package lightclient

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rony4d/go-map-lightclient/inter/ier"
)

// EpochRegistry holds the retained epoch records keyed by epoch number.
// Records are inserted in ascending epoch order, so iteration order is epoch
// order and the oldest entry is always the one pruned next.
type EpochRegistry struct {
	records *orderedmap.OrderedMap[uint64, ier.EpochRecord]
}

// NewEpochRegistry creates an empty registry.
func NewEpochRegistry() *EpochRegistry {
	return &EpochRegistry{
		records: orderedmap.New[uint64, ier.EpochRecord](),
	}
}

// Get returns a copy of the record of epoch.
func (r *EpochRegistry) Get(epoch uint64) (ier.EpochRecord, bool) {
	rec, ok := r.records.Get(epoch)
	if !ok {
		return ier.EpochRecord{}, false
	}
	return rec.Copy(), true
}

// Has reports whether the record of epoch is retained.
func (r *EpochRegistry) Has(epoch uint64) bool {
	_, ok := r.records.Get(epoch)
	return ok
}

// Insert stores rec under rec.Epoch, replacing any previous record.
func (r *EpochRegistry) Insert(rec ier.EpochRecord) {
	r.records.Set(rec.Epoch, rec.Copy())
}

// Remove drops the record of epoch. Removing an absent epoch is a no-op.
func (r *EpochRegistry) Remove(epoch uint64) bool {
	_, present := r.records.Delete(epoch)
	return present
}

// Len returns the number of retained records.
func (r *EpochRegistry) Len() int {
	return r.records.Len()
}

// Oldest returns the lowest retained epoch.
func (r *EpochRegistry) Oldest() (uint64, bool) {
	pair := r.records.Oldest()
	if pair == nil {
		return 0, false
	}
	return pair.Key, true
}

// Newest returns the highest retained epoch.
func (r *EpochRegistry) Newest() (uint64, bool) {
	pair := r.records.Newest()
	if pair == nil {
		return 0, false
	}
	return pair.Key, true
}

// Records returns copies of all retained records in epoch order.
func (r *EpochRegistry) Records() []ier.EpochRecord {
	out := make([]ier.EpochRecord, 0, r.records.Len())
	for pair := r.records.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Copy())
	}
	return out
}
