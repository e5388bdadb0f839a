package mcs

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Minter is the local capability that releases assets for a verified transfer.
type Minter interface {
	// MintOrUnlock credits amount of the local asset token to the recipient.
	MintOrUnlock(recipient []byte, amount *big.Int, token string, fromChain uint64) error
}

// TokenResolver maps the destination token named by a transfer to a local asset.
type TokenResolver interface {
	ResolveToken(toChainToken []byte) (string, bool)
}

// OrderRegistry tracks executed order ids so a proven transfer can only be
// executed once. Implementations must be safe to call from the goroutine that
// owns the light client.
type OrderRegistry interface {
	IsConsumed(orderID common.Hash) (bool, error)
	Consume(orderID common.Hash) error
}

// TokenTable is a static TokenResolver: remote token identifiers mapped to local
// asset identifiers.
type TokenTable map[string]string

// ResolveToken implements TokenResolver.
func (t TokenTable) ResolveToken(toChainToken []byte) (string, bool) {
	local, ok := t[string(toChainToken)]
	return local, ok
}

// ResolveEventToken returns the local asset for ev or ErrToken.
func ResolveEventToken(r TokenResolver, ev *TransferEvent) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: no token registry", ErrToken)
	}
	local, ok := r.ResolveToken(ev.ToChainToken)
	if !ok {
		return "", fmt.Errorf("%w: unknown token %q", ErrToken, ev.ToChainToken)
	}
	return local, nil
}

// Transfer records one MintOrUnlock call.
type Transfer struct {
	Recipient []byte
	Amount    *big.Int
	Token     string
	FromChain uint64
}

// LedgerMinter is an in-memory Minter that records every transfer. The CLI
// uses it to report what a verified proof would release.
type LedgerMinter struct {
	mu        sync.Mutex
	transfers []Transfer
}

// MintOrUnlock implements Minter.
func (m *LedgerMinter) MintOrUnlock(recipient []byte, amount *big.Int, token string, fromChain uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = append(m.transfers, Transfer{
		Recipient: common.CopyBytes(recipient),
		Amount:    new(big.Int).Set(amount),
		Token:     token,
		FromChain: fromChain,
	})
	return nil
}

// Transfers returns a copy of the recorded transfers.
func (m *LedgerMinter) Transfers() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transfer, len(m.transfers))
	copy(out, m.transfers)
	return out
}
