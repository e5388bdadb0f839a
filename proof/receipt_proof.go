// Package proof verifies Merkle-Patricia inclusion proofs of receipts against a
// header's receipt root.
//
// The receipt trie of a block maps rlp(txIndex) to the consensus encoding of the
// receipt at that index, the same layout go-ethereum's DeriveSha produces. A proof
// is the list of trie nodes on the path from the root to that leaf. The walk
// itself is go-ethereum's trie.VerifyProof; this package bounds the input and
// compares the proven leaf with the claimed receipt.
package proof

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/rony4d/go-map-lightclient/inter"
)

const (
	// MaxProofNodes caps the number of nodes a proof may contain. A path in a
	// hexary trie with 32-byte keys is at most 64 nibbles deep.
	MaxProofNodes = 64

	// MaxProofNodeSize caps a single node. A full branch node with 16 hash
	// children and a value stays well below this.
	MaxProofNodeSize = 4096
)

var (
	// ErrProof is returned when the proof is malformed, oversized, does not
	// reach a leaf under the given root, or the log index is out of range.
	ErrProof = errors.New("proof error")
	// ErrHeaderVerification is returned when the proven leaf differs from the
	// claimed receipt.
	ErrHeaderVerification = errors.New("header verification error")
)

// ReceiptKey returns the trie path of the receipt at index.
func ReceiptKey(index uint64) []byte {
	// Encoding an unsigned integer never fails.
	key, _ := rlp.EncodeToBytes(index)
	return key
}

// VerifyReceipt proves that receipt is stored at keyIndex in the receipt trie
// rooted at root.
func VerifyReceipt(root common.Hash, keyIndex uint64, nodes [][]byte, receipt *inter.ReceiptData) error {
	if len(nodes) == 0 {
		return fmt.Errorf("%w: empty proof", ErrProof)
	}
	if len(nodes) > MaxProofNodes {
		return fmt.Errorf("%w: %d proof nodes exceed limit %d", ErrProof, len(nodes), MaxProofNodes)
	}

	db := memorydb.New()
	for i, node := range nodes {
		if len(node) == 0 || len(node) > MaxProofNodeSize {
			return fmt.Errorf("%w: proof node %d has %d bytes", ErrProof, i, len(node))
		}
		if err := db.Put(crypto.Keccak256(node), node); err != nil {
			return fmt.Errorf("%w: %v", ErrProof, err)
		}
	}

	value, err := trie.VerifyProof(root, ReceiptKey(keyIndex), db)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProof, err)
	}
	if value == nil {
		return fmt.Errorf("%w: no receipt at index %d", ErrProof, keyIndex)
	}

	expected, err := receipt.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHeaderVerification, err)
	}
	if !bytes.Equal(value, expected) {
		return fmt.Errorf("%w: receipt at index %d does not match proof", ErrHeaderVerification, keyIndex)
	}
	return nil
}
