// Package lightclient implements the MAP chain light client.
//
// The client follows the remote chain one epoch at a time. It keeps a bounded
// window of epoch records (validator set plus quorum threshold), accepts the
// boundary header of the next epoch only when it is correctly sealed by the
// current set, and derives the following set from the validator changes the
// header announces. With those records it proves that a receipt, and the
// cross-chain transfer log inside it, was included in a remote block.
//
// Every mutation is all-or-nothing: the next state is computed and persisted
// first and only then published in memory, so a failed advance leaves both the
// store and the client exactly as they were.
package lightclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-map-lightclient/inter"
	"github.com/rony4d/go-map-lightclient/inter/ier"
	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
	"github.com/rony4d/go-map-lightclient/log"
	"github.com/rony4d/go-map-lightclient/mcs"
	"github.com/rony4d/go-map-lightclient/proof"
	"github.com/rony4d/go-map-lightclient/verifier"
)

var (
	headerAcceptedMeter   = metrics.NewRegisteredMeter("maplc/header/accepted", nil)
	headerRejectedMeter   = metrics.NewRegisteredMeter("maplc/header/rejected", nil)
	transferVerifiedMeter = metrics.NewRegisteredMeter("maplc/transfer/verified", nil)
	transferRejectedMeter = metrics.NewRegisteredMeter("maplc/transfer/rejected", nil)
	headerVerifyTimer     = metrics.NewRegisteredTimer("maplc/header/verify", nil)
)

// StateStore persists the client state. CommitAdvance must apply all of its
// changes atomically.
type StateStore interface {
	LoadState() (*ier.ClientState, error)
	SaveState(state *ier.ClientState) error
	CommitAdvance(headerHeight uint64, record ier.EpochRecord, pruned []uint64) error
}

// Config holds the chain parameters and the MCS binding of a client.
type Config struct {
	// EpochSize is the number of blocks per epoch.
	EpochSize uint64
	// MaxRecords bounds the number of retained epoch records.
	MaxRecords uint64
	// MCSContract is the only address transfer logs are accepted from.
	MCSContract common.Address
	// LocalChainID, when non-zero, is the chain id transfers must be bound to.
	LocalChainID uint64
}

// Collaborators are the optional services a client hands work to. A nil Store
// keeps the state in memory only; a nil Orders disables the replay guard.
type Collaborators struct {
	Store  StateStore
	Minter mcs.Minter
	Tokens mcs.TokenResolver
	Orders mcs.OrderRegistry
}

// HeaderAdvancedEvent is posted after a header has been accepted.
type HeaderAdvancedEvent struct {
	Height    uint64
	Hash      common.Hash
	NextEpoch uint64
}

// Status is a point-in-time summary of the client.
type Status struct {
	HeaderHeight   uint64 `json:"headerHeight"`
	EpochSize      uint64 `json:"epochSize"`
	MaxRecords     uint64 `json:"maxRecords"`
	Records        int    `json:"records"`
	OldestEpoch    uint64 `json:"oldestEpoch"`
	NewestEpoch    uint64 `json:"newestEpoch"`
	VerifiableFrom uint64 `json:"verifiableFrom"`
	VerifiableTo   uint64 `json:"verifiableTo"`
}

// MapLightClient tracks the validator sets of the MAP chain and verifies
// headers and transfer proofs against them. It is safe for concurrent use;
// advances are serialised, proof verification runs under a read lock.
type MapLightClient struct {
	cfg Config
	c   Collaborators

	mu           sync.RWMutex
	headerHeight uint64
	records      *EpochRegistry

	// execMu serialises the replay check, the mint and the order consumption.
	execMu sync.Mutex

	headerFeed event.Feed
	scope      event.SubscriptionScope

	logger *logrus.Entry
}

// Initialize creates a client from a trusted genesis: the height of the last
// trusted header and the epoch record that verifies the next boundary header.
// The record's epoch must equal (headerHeight+EpochSize)/EpochSize. The record
// is taken as is, including its threshold. With a store, the genesis state is
// written through before the client is returned.
func Initialize(cfg Config, headerHeight uint64, genesis ier.EpochRecord, c Collaborators) (*MapLightClient, error) {
	if err := checkConfig(cfg.EpochSize, cfg.MaxRecords); err != nil {
		return nil, err
	}
	if want := inter.GetEpochNumber(headerHeight+cfg.EpochSize, cfg.EpochSize); genesis.Epoch != want {
		return nil, fmt.Errorf("%w: record epoch %d, header height %d requires epoch %d", ErrGenesis, genesis.Epoch, headerHeight, want)
	}
	if err := checkRecord(genesis); err != nil {
		return nil, err
	}

	lc := newClient(cfg, c)
	lc.headerHeight = headerHeight
	lc.records.Insert(genesis)

	if c.Store != nil {
		if err := c.Store.SaveState(lc.snapshot()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
	}
	lc.logger.WithFields(logrus.Fields{
		"height":     headerHeight,
		"epoch":      genesis.Epoch,
		"validators": len(genesis.Validators),
		"threshold":  genesis.Threshold,
	}).Info("Light client initialized")
	return lc, nil
}

// Open restores a client from c.Store. Zero EpochSize and MaxRecords in cfg
// are taken from the stored state; non-zero values must match it.
func Open(cfg Config, c Collaborators) (*MapLightClient, error) {
	if c.Store == nil {
		return nil, fmt.Errorf("%w: no state store", ErrStore)
	}
	state, err := c.Store.LoadState()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if cfg.EpochSize != 0 && cfg.EpochSize != state.EpochSize {
		return nil, fmt.Errorf("%w: stored epoch size %d, configured %d", ErrGenesis, state.EpochSize, cfg.EpochSize)
	}
	if cfg.MaxRecords != 0 && cfg.MaxRecords != state.MaxRecords {
		return nil, fmt.Errorf("%w: stored record limit %d, configured %d", ErrGenesis, state.MaxRecords, cfg.MaxRecords)
	}
	cfg.EpochSize = state.EpochSize
	cfg.MaxRecords = state.MaxRecords
	if err := checkConfig(cfg.EpochSize, cfg.MaxRecords); err != nil {
		return nil, err
	}
	if len(state.Records) == 0 {
		return nil, fmt.Errorf("%w: stored state has no epoch records", ErrGenesis)
	}

	lc := newClient(cfg, c)
	lc.headerHeight = state.HeaderHeight
	var prev uint64
	for i, rec := range state.Records {
		if i > 0 && rec.Epoch <= prev {
			return nil, fmt.Errorf("%w: stored records out of order at epoch %d", ErrGenesis, rec.Epoch)
		}
		prev = rec.Epoch
		lc.records.Insert(rec)
	}
	lc.logger.WithFields(logrus.Fields{
		"height":  lc.headerHeight,
		"records": lc.records.Len(),
	}).Info("Light client restored")
	return lc, nil
}

func newClient(cfg Config, c Collaborators) *MapLightClient {
	return &MapLightClient{
		cfg:     cfg,
		c:       c,
		records: NewEpochRegistry(),
		logger:  log.New("lightclient"),
	}
}

func checkConfig(epochSize, maxRecords uint64) error {
	if epochSize == 0 {
		return fmt.Errorf("%w: epoch size must be positive", ErrGenesis)
	}
	if maxRecords == 0 {
		return fmt.Errorf("%w: record limit must be positive", ErrGenesis)
	}
	return nil
}

func checkRecord(rec ier.EpochRecord) error {
	if len(rec.Validators) == 0 {
		return fmt.Errorf("%w: empty validator set", ErrGenesis)
	}
	for i, v := range rec.Validators {
		if v.Weight == 0 {
			return fmt.Errorf("%w: validator %d has zero weight", ErrGenesis, i)
		}
		if v.G1PubKey.Empty() {
			return fmt.Errorf("%w: validator %d has no public key", ErrGenesis, i)
		}
	}
	return nil
}

// AdvanceHeader verifies the boundary header of the next epoch and, when it is
// valid, moves the client one epoch forward.
//
// The header must be exactly EpochSize blocks above the current height; it is
// checked against the record of the epoch it belongs to using the aggregate
// key aggPK, and the validator changes in its extra produce the next record.
// On any error nothing is changed.
func (lc *MapLightClient) AdvanceHeader(raw []byte, aggPK validatorpk.G2PubKey) error {
	ev, err := lc.advance(raw, aggPK)
	if err != nil {
		headerRejectedMeter.Mark(1)
		lc.logger.WithError(err).Warn("Header rejected")
		return err
	}
	headerAcceptedMeter.Mark(1)
	lc.logger.WithFields(logrus.Fields{
		"height":    ev.Height,
		"hash":      ev.Hash.Hex(),
		"nextEpoch": ev.NextEpoch,
	}).Info("Header accepted")
	lc.headerFeed.Send(ev)
	return nil
}

func (lc *MapLightClient) advance(raw []byte, aggPK validatorpk.G2PubKey) (HeaderAdvancedEvent, error) {
	h, err := inter.DecodeHeader(raw)
	if err != nil {
		return HeaderAdvancedEvent{}, err
	}
	extra, err := inter.ExtractIstanbulExtra(h.Extra)
	if err != nil {
		return HeaderAdvancedEvent{}, err
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	number := h.NumberU64()
	if expected := lc.headerHeight + lc.cfg.EpochSize; number != expected || expected < lc.headerHeight {
		return HeaderAdvancedEvent{}, fmt.Errorf("%w: block %d, expected %d", inter.ErrHeader, number, expected)
	}
	record, err := lc.recordFor(number)
	if err != nil {
		return HeaderAdvancedEvent{}, err
	}

	start := time.Now()
	if err := verifier.VerifyHeader(h, extra, record, aggPK); err != nil {
		return HeaderAdvancedEvent{}, err
	}
	headerVerifyTimer.UpdateSince(start)

	next := NextEpochRecord(record, extra)
	var pruned []uint64
	if epoch, ok := PrunedEpoch(next.Epoch, lc.cfg.MaxRecords); ok && lc.records.Has(epoch) {
		pruned = append(pruned, epoch)
	}

	if lc.c.Store != nil {
		if err := lc.c.Store.CommitAdvance(number, next, pruned); err != nil {
			return HeaderAdvancedEvent{}, fmt.Errorf("%w: %v", ErrStore, err)
		}
	}

	lc.records.Insert(next)
	for _, epoch := range pruned {
		lc.records.Remove(epoch)
	}
	lc.headerHeight = number

	return HeaderAdvancedEvent{
		Height:    number,
		Hash:      h.Hash(),
		NextEpoch: next.Epoch,
	}, nil
}

// recordFor returns the record of the epoch number belongs to. The caller must
// hold lc.mu.
func (lc *MapLightClient) recordFor(number uint64) (ier.EpochRecord, error) {
	epoch := inter.GetEpochNumber(number, lc.cfg.EpochSize)
	record, ok := lc.records.Get(epoch)
	if !ok {
		from, to := VerifiableRange(lc.headerHeight, lc.cfg.EpochSize, lc.records.Len())
		return ier.EpochRecord{}, &EpochNotFoundError{
			Number:         number,
			Epoch:          epoch,
			VerifiableFrom: from,
			VerifiableTo:   to,
		}
	}
	return record, nil
}

// VerifyReceiptProof checks that the header in p is sealed by a retained
// validator set and that p.Receipt sits at p.KeyIndex of its receipt trie. It
// returns the decoded header.
func (lc *MapLightClient) VerifyReceiptProof(p *inter.ReceiptProof) (*inter.Header, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: missing proof", proof.ErrProof)
	}
	h, err := inter.DecodeHeader(p.Header)
	if err != nil {
		return nil, err
	}
	extra, err := inter.ExtractIstanbulExtra(h.Extra)
	if err != nil {
		return nil, err
	}

	lc.mu.RLock()
	record, err := lc.recordFor(h.NumberU64())
	lc.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if err := verifier.VerifyHeader(h, extra, record, p.AggPK); err != nil {
		return nil, err
	}
	if err := proof.VerifyReceipt(h.ReceiptHash, p.KeyIndex, p.ProofNodes(), &p.Receipt); err != nil {
		return nil, err
	}
	return h, nil
}

// VerifyTransfer proves the receipt in p, decodes the transfer event at
// logIndex of that receipt and hands it to the minter. The event is returned
// once the minter has accepted it.
//
// With an order registry configured, an order id can be executed only once.
func (lc *MapLightClient) VerifyTransfer(p *inter.ReceiptProof, logIndex uint64) (*mcs.TransferEvent, error) {
	ev, err := lc.verifyTransfer(p, logIndex)
	if err != nil {
		transferRejectedMeter.Mark(1)
		lc.logger.WithError(err).Warn("Transfer rejected")
		return nil, err
	}
	transferVerifiedMeter.Mark(1)
	lc.logger.WithFields(logrus.Fields{
		"order":     ev.OrderID.Hex(),
		"fromChain": ev.FromChain,
		"toChain":   ev.ToChain,
		"amount":    ev.Amount,
	}).Info("Transfer verified")
	return ev, nil
}

func (lc *MapLightClient) verifyTransfer(p *inter.ReceiptProof, logIndex uint64) (*mcs.TransferEvent, error) {
	if _, err := lc.VerifyReceiptProof(p); err != nil {
		return nil, err
	}
	logs := p.Receipt.Logs
	if logIndex >= uint64(len(logs)) {
		return nil, fmt.Errorf("%w: log index %d out of range, receipt has %d logs", proof.ErrProof, logIndex, len(logs))
	}
	ev, err := mcs.DecodeTransferEvent(lc.cfg.MCSContract, logs[logIndex])
	if err != nil {
		return nil, err
	}
	if lc.cfg.LocalChainID != 0 && ev.ToChain != lc.cfg.LocalChainID {
		return nil, fmt.Errorf("%w: transfer to chain %d, local chain is %d", mcs.ErrEvent, ev.ToChain, lc.cfg.LocalChainID)
	}
	if lc.c.Minter == nil {
		return nil, fmt.Errorf("%w: no minter configured", mcs.ErrToken)
	}

	lc.execMu.Lock()
	defer lc.execMu.Unlock()

	if lc.c.Orders != nil {
		consumed, err := lc.c.Orders.IsConsumed(ev.OrderID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		if consumed {
			return nil, fmt.Errorf("%w: %s", mcs.ErrOrderReplayed, ev.OrderID.Hex())
		}
	}
	token, err := mcs.ResolveEventToken(lc.c.Tokens, ev)
	if err != nil {
		return nil, err
	}
	if err := lc.c.Minter.MintOrUnlock(ev.To, ev.Amount, token, ev.FromChain); err != nil {
		return nil, err
	}
	if lc.c.Orders != nil {
		if err := lc.c.Orders.Consume(ev.OrderID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
	}
	return ev, nil
}

// HeaderHeight returns the height of the last accepted header.
func (lc *MapLightClient) HeaderHeight() uint64 {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.headerHeight
}

// EpochRecord returns a copy of the retained record of epoch.
func (lc *MapLightClient) EpochRecord(epoch uint64) (ier.EpochRecord, bool) {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.records.Get(epoch)
}

// State returns a snapshot of the full client state.
func (lc *MapLightClient) State() *ier.ClientState {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.snapshot()
}

func (lc *MapLightClient) snapshot() *ier.ClientState {
	return &ier.ClientState{
		EpochSize:    lc.cfg.EpochSize,
		HeaderHeight: lc.headerHeight,
		MaxRecords:   lc.cfg.MaxRecords,
		Records:      lc.records.Records(),
	}
}

// Status returns a summary of the client.
func (lc *MapLightClient) Status() Status {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	st := Status{
		HeaderHeight: lc.headerHeight,
		EpochSize:    lc.cfg.EpochSize,
		MaxRecords:   lc.cfg.MaxRecords,
		Records:      lc.records.Len(),
	}
	st.OldestEpoch, _ = lc.records.Oldest()
	st.NewestEpoch, _ = lc.records.Newest()
	st.VerifiableFrom, st.VerifiableTo = VerifiableRange(lc.headerHeight, lc.cfg.EpochSize, lc.records.Len())
	return st
}

// SubscribeHeaderAdvanced registers ch to receive an event for every accepted
// header. Sends block until the event is received, so ch should be buffered or
// drained promptly.
func (lc *MapLightClient) SubscribeHeaderAdvanced(ch chan<- HeaderAdvancedEvent) event.Subscription {
	return lc.scope.Track(lc.headerFeed.Subscribe(ch))
}

// Close unsubscribes all subscribers.
func (lc *MapLightClient) Close() {
	lc.scope.Close()
}
