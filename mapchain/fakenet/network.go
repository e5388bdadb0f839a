package fakenet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/rony4d/go-map-lightclient/inter"
	"github.com/rony4d/go-map-lightclient/inter/ier"
	"github.com/rony4d/go-map-lightclient/mcs"
	"github.com/rony4d/go-map-lightclient/proof"
)

// GenesisTime is the timestamp of the trusted genesis header.
const GenesisTime = 1608600000

// Network simulates the validator-set history of a MAP chain. It starts from a
// trusted height and produces one sealed boundary header per epoch, keeping
// every epoch's validator set so blocks inside any past epoch can be sealed too.
type Network struct {
	EpochSize uint64
	// Height is the number of the last sealed boundary header.
	Height uint64

	genesisWeight uint64
	weights       map[uint64]uint64 // validator id -> weight
	sets          map[uint64][]*Validator
	nextID        uint64
	parent        common.Hash
}

// NewNetwork creates a network at headerHeight whose current epoch is governed
// by validators fresh validators, each with weight.
func NewNetwork(epochSize, headerHeight uint64, validators int, weight uint64) *Network {
	n := &Network{
		EpochSize:     epochSize,
		Height:        headerHeight,
		genesisWeight: weight,
		weights:       make(map[uint64]uint64),
		sets:          make(map[uint64][]*Validator),
	}
	set := n.newValidators(validators, weight)
	n.sets[n.CurrentEpoch()] = set
	return n
}

func (n *Network) newValidators(count int, weight uint64) []*Validator {
	vals := NewValidators(n.nextID, count)
	n.nextID += uint64(count)
	for _, v := range vals {
		n.weights[v.ID] = weight
	}
	return vals
}

// CurrentEpoch is the epoch of the next boundary header.
func (n *Network) CurrentEpoch() uint64 {
	return inter.GetEpochNumber(n.Height+n.EpochSize, n.EpochSize)
}

// Validators returns the validator set of epoch.
func (n *Network) Validators(epoch uint64) ([]*Validator, bool) {
	set, ok := n.sets[epoch]
	return set, ok
}

// EpochRecord returns the record the light client should hold for epoch.
func (n *Network) EpochRecord(epoch uint64) (ier.EpochRecord, bool) {
	set, ok := n.sets[epoch]
	if !ok {
		return ier.EpochRecord{}, false
	}
	members := make([]ier.Validator, len(set))
	for i, v := range set {
		members[i] = v.Member(n.weights[v.ID])
	}
	return ier.NewEpochRecord(epoch, members), true
}

// Genesis returns the trusted header height and the record of the current epoch.
func (n *Network) Genesis() (uint64, ier.EpochRecord) {
	rec, _ := n.EpochRecord(n.CurrentEpoch())
	return n.Height, rec
}

// Advance seals the next boundary header with the current set, announcing added
// new validators and removing the ones at the given indices, and moves the
// network to the next epoch.
func (n *Network) Advance(added int, removed []int) (*SealedHeader, error) {
	epoch := n.CurrentEpoch()
	set := n.sets[epoch]
	if len(set) == 0 {
		return nil, fmt.Errorf("epoch %d has no validators", epoch)
	}
	drop := make(map[int]bool, len(removed))
	for _, i := range removed {
		drop[i] = true
	}
	proposer := -1
	for i := range set {
		if !drop[i] {
			proposer = i
			break
		}
	}
	if proposer < 0 {
		proposer = 0
	}

	joining := n.newValidators(added, 1)
	number := n.Height + n.EpochSize
	sealed, err := SealHeader(set, HeaderSpec{
		Number:     number,
		ParentHash: n.parent,
		Time:       GenesisTime + number,
		Proposer:   proposer,
		Added:      joining,
		Removed:    removed,
	})
	if err != nil {
		return nil, err
	}

	next := make([]*Validator, 0, len(set)+len(joining))
	for i, v := range set {
		if !drop[i] {
			next = append(next, v)
		}
	}
	next = append(next, joining...)
	n.sets[epoch+1] = next
	n.Height = number
	n.parent = sealed.Header.Hash()
	return sealed, nil
}

// ProveReceipt seals a block at number holding receipts and returns the proof
// of the receipt at index. The block is signed by the set of its epoch.
func (n *Network) ProveReceipt(number uint64, receipts []*inter.ReceiptData, index uint64) (*inter.ReceiptProof, error) {
	epoch := inter.GetEpochNumber(number, n.EpochSize)
	set, ok := n.sets[epoch]
	if !ok {
		return nil, fmt.Errorf("no validator set for epoch %d", epoch)
	}
	if index >= uint64(len(receipts)) {
		return nil, fmt.Errorf("receipt index %d out of range", index)
	}
	tr, err := ReceiptTrie(receipts)
	if err != nil {
		return nil, err
	}
	sealed, err := SealHeader(set, HeaderSpec{
		Number:      number,
		ReceiptHash: tr.Hash(),
		Time:        GenesisTime + number,
	})
	if err != nil {
		return nil, err
	}
	nodes, err := ProveIndex(tr, index)
	if err != nil {
		return nil, err
	}
	return &inter.ReceiptProof{
		Header:   sealed.Raw,
		AggPK:    sealed.AggPK,
		KeyIndex: index,
		Proof:    nodes,
		Receipt:  *receipts[index],
	}, nil
}

// ReceiptTrie builds the receipt trie of a block from its receipts.
func ReceiptTrie(receipts []*inter.ReceiptData) (*trie.Trie, error) {
	tr, err := trie.New(common.Hash{}, trie.NewDatabase(memorydb.New()))
	if err != nil {
		return nil, err
	}
	for i, r := range receipts {
		enc, err := r.MarshalBinary()
		if err != nil {
			return nil, err
		}
		tr.Update(proof.ReceiptKey(uint64(i)), enc)
	}
	return tr, nil
}

// proofList collects proof nodes in path order.
type proofList []hexutil.Bytes

func (l *proofList) Put(key []byte, value []byte) error {
	*l = append(*l, common.CopyBytes(value))
	return nil
}

func (l *proofList) Delete(key []byte) error {
	return fmt.Errorf("proof list is append only")
}

// ProveIndex returns the proof nodes of the receipt at index.
func ProveIndex(tr *trie.Trie, index uint64) ([]hexutil.Bytes, error) {
	var nodes proofList
	if err := tr.Prove(proof.ReceiptKey(index), 0, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// TransferReceipt returns a successful typed receipt whose only log is the
// mapTransferOut event ev emitted by contract.
func TransferReceipt(contract common.Address, ev *mcs.TransferEvent) (*inter.ReceiptData, error) {
	l, err := ev.EncodeLog(contract)
	if err != nil {
		return nil, err
	}
	var bloom types.Bloom
	bloom.Add(l.Address.Bytes())
	for _, topic := range l.Topics {
		bloom.Add(topic.Bytes())
	}
	return &inter.ReceiptData{
		ReceiptType:       types.DynamicFeeTxType,
		PostStateOrStatus: []byte{1},
		CumulativeGasUsed: 84000,
		Bloom:             bloom,
		Logs:              []*inter.Log{l},
	}, nil
}

// FillerReceipt returns a receipt without logs, used to pad blocks.
func FillerReceipt(i int) *inter.ReceiptData {
	return &inter.ReceiptData{
		PostStateOrStatus: []byte{1},
		CumulativeGasUsed: uint64(21000 * (i + 1)),
	}
}
