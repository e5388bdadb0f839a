// Package store persists the light-client state in a lachesis key-value
// database.
//
// Layout (one table per prefix on the main DB):
//
//	m | "epochSize", "maxRecords", "height"  -> bigendian uint64
//	r | bigendian(epoch)                      -> rlp(EpochRecord)
//	o | orderId                               -> 0x01
//
// Epoch keys are big-endian so the record table iterates in epoch order.
// Every multi-key change goes through a single batch on the main DB, so a
// crash never leaves a height without its records.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/table"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-map-lightclient/inter/ier"
	"github.com/rony4d/go-map-lightclient/log"
)

var (
	// ErrNotInitialized is returned by LoadState on an empty database.
	ErrNotInitialized = errors.New("store: light client state not initialized")
	// ErrCorrupted is returned when persisted values cannot be decoded.
	ErrCorrupted = errors.New("store: corrupted state")
)

const (
	metaPrefix    = "m"
	recordsPrefix = "r"
	ordersPrefix  = "o"
)

var (
	keyEpochSize  = []byte("epochSize")
	keyMaxRecords = []byte("maxRecords")
	keyHeight     = []byte("height")
)

// Store is a kvdb-backed light-client state store and order registry.
type Store struct {
	mainDB kvdb.Store
	table  struct {
		Meta    kvdb.Store `table:"m"`
		Records kvdb.Store `table:"r"`
		Orders  kvdb.Store `table:"o"`
	}

	mu     sync.Mutex
	logger *logrus.Entry
}

// New wraps mainDB.
func New(mainDB kvdb.Store) *Store {
	s := &Store{
		mainDB: mainDB,
		logger: log.New("store"),
	}
	table.MigrateTables(&s.table, s.mainDB)
	return s
}

// NewMemStore creates a store over an in-memory database.
func NewMemStore() *Store {
	return New(memorydb.New())
}

// Close closes the underlying database.
func (s *Store) Close() error {
	table.MigrateTables(&s.table, nil)
	return s.mainDB.Close()
}

func epochKey(epoch uint64) []byte {
	return bigendian.Uint64ToBytes(epoch)
}

func prefixed(prefix string, key []byte) []byte {
	return append([]byte(prefix), key...)
}

func (s *Store) getUint64(key []byte) (uint64, bool, error) {
	val, err := s.table.Meta.Get(key)
	if err != nil {
		return 0, false, err
	}
	if val == nil {
		return 0, false, nil
	}
	if len(val) != 8 {
		return 0, false, fmt.Errorf("%w: meta %s has %d bytes", ErrCorrupted, key, len(val))
	}
	return bigendian.BytesToUint64(val), true, nil
}

// LoadState reads the full client state.
func (s *Store) LoadState() (*ier.ClientState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	height, ok, err := s.getUint64(keyHeight)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	epochSize, _, err := s.getUint64(keyEpochSize)
	if err != nil {
		return nil, err
	}
	maxRecords, _, err := s.getUint64(keyMaxRecords)
	if err != nil {
		return nil, err
	}

	state := &ier.ClientState{
		EpochSize:    epochSize,
		HeaderHeight: height,
		MaxRecords:   maxRecords,
	}
	it := s.table.Records.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		var rec ier.EpochRecord
		if err := rlp.DecodeBytes(it.Value(), &rec); err != nil {
			return nil, fmt.Errorf("%w: record %x: %v", ErrCorrupted, it.Key(), err)
		}
		if len(it.Key()) != 8 || bigendian.BytesToUint64(it.Key()) != rec.Epoch {
			return nil, fmt.Errorf("%w: record key %x holds epoch %d", ErrCorrupted, it.Key(), rec.Epoch)
		}
		state.Records = append(state.Records, rec)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveState replaces the stored state with state.
func (s *Store) SaveState(state *ier.ClientState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.mainDB.NewBatch()
	defer batch.Reset()

	it := s.table.Records.NewIterator(nil, nil)
	for it.Next() {
		if err := batch.Delete(prefixed(recordsPrefix, it.Key())); err != nil {
			it.Release()
			return err
		}
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return err
	}

	for _, kv := range []struct {
		key []byte
		val uint64
	}{
		{keyEpochSize, state.EpochSize},
		{keyMaxRecords, state.MaxRecords},
		{keyHeight, state.HeaderHeight},
	} {
		if err := batch.Put(prefixed(metaPrefix, kv.key), bigendian.Uint64ToBytes(kv.val)); err != nil {
			return err
		}
	}
	for _, rec := range state.Records {
		if err := putRecord(batch, rec); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"height":  state.HeaderHeight,
		"records": len(state.Records),
	}).Debug("State saved")
	return nil
}

// CommitAdvance atomically records a new header height, inserts record and
// deletes the pruned epochs.
func (s *Store) CommitAdvance(headerHeight uint64, record ier.EpochRecord, pruned []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.mainDB.NewBatch()
	defer batch.Reset()

	if err := batch.Put(prefixed(metaPrefix, keyHeight), bigendian.Uint64ToBytes(headerHeight)); err != nil {
		return err
	}
	if err := putRecord(batch, record); err != nil {
		return err
	}
	for _, epoch := range pruned {
		if err := batch.Delete(prefixed(recordsPrefix, epochKey(epoch))); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"height": headerHeight,
		"epoch":  record.Epoch,
		"pruned": pruned,
	}).Debug("Advance committed")
	return nil
}

func putRecord(w kvdb.Writer, rec ier.EpochRecord) error {
	enc, err := rlp.EncodeToBytes(&rec)
	if err != nil {
		return err
	}
	return w.Put(prefixed(recordsPrefix, epochKey(rec.Epoch)), enc)
}

// IsConsumed reports whether orderID was already executed.
func (s *Store) IsConsumed(orderID common.Hash) (bool, error) {
	return s.table.Orders.Has(orderID.Bytes())
}

// Consume marks orderID as executed.
func (s *Store) Consume(orderID common.Hash) error {
	return s.table.Orders.Put(orderID.Bytes(), []byte{1})
}
