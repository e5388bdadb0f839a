package inter

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
)

// Log is the consensus part of an EVM log: the fields committed to by the
// receipt trie, without the derived block and transaction locators.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

// ReceiptData is the receipt bundle a relayer claims is stored in a block's
// receipt trie.
type ReceiptData struct {
	// ReceiptType is the EIP-2718 envelope type. Zero means a legacy receipt,
	// which is stored without a type prefix.
	ReceiptType uint8 `json:"receiptType"`

	// PostStateOrStatus is either a 32-byte intermediate state root (pre-Byzantium)
	// or the status code: 0x01 for success, empty for failure.
	PostStateOrStatus hexutil.Bytes `json:"postStateOrStatus"`

	CumulativeGasUsed uint64      `json:"cumulativeGasUsed"`
	Bloom             types.Bloom `json:"logsBloom"`
	Logs              []*Log      `json:"logs"`
}

// receiptRLP is the list shape shared by every receipt type.
type receiptRLP struct {
	PostStateOrStatus []byte
	CumulativeGasUsed uint64
	Bloom             types.Bloom
	Logs              []*Log
}

// MarshalBinary returns the trie leaf encoding of the receipt: the RLP list for
// legacy receipts, or the type byte followed by the RLP list for typed ones.
func (r *ReceiptData) MarshalBinary() ([]byte, error) {
	data := &receiptRLP{
		PostStateOrStatus: r.PostStateOrStatus,
		CumulativeGasUsed: r.CumulativeGasUsed,
		Bloom:             r.Bloom,
		Logs:              r.Logs,
	}
	if r.ReceiptType == 0 {
		return rlp.EncodeToBytes(data)
	}
	var buf bytes.Buffer
	buf.WriteByte(r.ReceiptType)
	if err := rlp.Encode(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReceiptProof is the transient bundle a relayer submits to prove that a
// receipt, and therefore its logs, was included in a signed remote block.
type ReceiptProof struct {
	// Header is the RLP encoding of the block holding the receipt.
	Header hexutil.Bytes `json:"header"`
	// AggPK is the claimed G2 aggregate key of the block's signers.
	AggPK validatorpk.G2PubKey `json:"aggPk"`
	// KeyIndex is the transaction index; its RLP encoding is the trie path.
	KeyIndex uint64 `json:"keyIndex"`
	// Proof holds the trie nodes from the root down to the leaf.
	Proof []hexutil.Bytes `json:"proof"`
	// Receipt is the claimed leaf content.
	Receipt ReceiptData `json:"receipt"`
}

// ProofNodes returns the proof as plain byte slices.
func (p *ReceiptProof) ProofNodes() [][]byte {
	nodes := make([][]byte, len(p.Proof))
	for i, n := range p.Proof {
		nodes[i] = n
	}
	return nodes
}
