// Package mcs decodes the cross-chain transfer events emitted by the Map
// Cross-chain Service (MCS) contract and defines the local collaborators a
// verified transfer is handed to.
//
// Overview:
//
//	A user locks or burns an asset on the remote chain; the MCS contract emits
//	mapTransferOut. Once the light client has proven the receipt holding that
//	log, the event is decoded here and the destination side mints or unlocks
//	the corresponding asset for the recipient.
//
// Event layout:
//
//	mapTransferOut(uint256 indexed fromChain, uint256 indexed toChain,
//	               bytes32 orderId, bytes token, bytes from, bytes to,
//	               uint256 amount, bytes toChainToken)
//
// The indexed chain ids travel in topics 1 and 2; everything else is ABI
// encoded in the log data.
package mcs

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-map-lightclient/inter"
)

var (
	// ContractABI is the JSON ABI fragment of the MCS transfer event.
	ContractABI string = "[{\"anonymous\":false,\"inputs\":[{\"indexed\":true,\"internalType\":\"uint256\",\"name\":\"fromChain\",\"type\":\"uint256\"},{\"indexed\":true,\"internalType\":\"uint256\",\"name\":\"toChain\",\"type\":\"uint256\"},{\"indexed\":false,\"internalType\":\"bytes32\",\"name\":\"orderId\",\"type\":\"bytes32\"},{\"indexed\":false,\"internalType\":\"bytes\",\"name\":\"token\",\"type\":\"bytes\"},{\"indexed\":false,\"internalType\":\"bytes\",\"name\":\"from\",\"type\":\"bytes\"},{\"indexed\":false,\"internalType\":\"bytes\",\"name\":\"to\",\"type\":\"bytes\"},{\"indexed\":false,\"internalType\":\"uint256\",\"name\":\"amount\",\"type\":\"uint256\"},{\"indexed\":false,\"internalType\":\"bytes\",\"name\":\"toChainToken\",\"type\":\"bytes\"}],\"name\":\"mapTransferOut\",\"type\":\"event\"}]"

	// TransferOutEventID is topic 0 of every mapTransferOut log:
	// keccak256("mapTransferOut(uint256,uint256,bytes32,bytes,bytes,bytes,uint256,bytes)").
	TransferOutEventID common.Hash

	transferOut abi.Event
)

var (
	// ErrEvent is returned for logs that are not well-formed transfer events.
	ErrEvent = errors.New("event error")
	// ErrToken is returned when the destination token is not registered locally.
	ErrToken = errors.New("token error")
	// ErrOrderReplayed is returned when an order id was already executed.
	ErrOrderReplayed = errors.New("order already executed")
)

// init parses the contract ABI once and caches the event definition.
func init() {
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(err)
	}
	ev, exist := parsed.Events["mapTransferOut"]
	if !exist {
		panic("unknown MCS event")
	}
	transferOut = ev
	TransferOutEventID = ev.ID
}

// TransferEvent is a decoded mapTransferOut log.
type TransferEvent struct {
	FromChain    uint64         `json:"fromChain"`
	ToChain      uint64         `json:"toChain"`
	OrderID      common.Hash    `json:"orderId"`
	Token        common.Address `json:"token"`
	From         common.Address `json:"from"`
	To           []byte         `json:"to"`
	Amount       *big.Int       `json:"amount"`
	ToChainToken []byte         `json:"toChainToken"`
}

// EncodeLog builds the log the MCS contract at contract emits for ev.
func (ev *TransferEvent) EncodeLog(contract common.Address) (*inter.Log, error) {
	amount := ev.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	data, err := transferOut.Inputs.NonIndexed().Pack(
		[32]byte(ev.OrderID),
		ev.Token.Bytes(),
		ev.From.Bytes(),
		ev.To,
		amount,
		ev.ToChainToken,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvent, err)
	}
	return &inter.Log{
		Address: contract,
		Topics: []common.Hash{
			TransferOutEventID,
			common.BigToHash(new(big.Int).SetUint64(ev.FromChain)),
			common.BigToHash(new(big.Int).SetUint64(ev.ToChain)),
		},
		Data: data,
	}, nil
}

// DecodeTransferEvent decodes l as a mapTransferOut event emitted by contract.
// Every field is checked; no assumption is made about the shape of the log.
func DecodeTransferEvent(contract common.Address, l *inter.Log) (*TransferEvent, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: missing log", ErrEvent)
	}
	if l.Address != contract {
		return nil, fmt.Errorf("%w: log emitted by %s, expected %s", ErrEvent, l.Address.Hex(), contract.Hex())
	}
	if len(l.Topics) != 3 || l.Topics[0] != TransferOutEventID {
		return nil, fmt.Errorf("%w: not a transfer out log", ErrEvent)
	}
	fromChain := l.Topics[1].Big()
	toChain := l.Topics[2].Big()
	if !fromChain.IsUint64() || !toChain.IsUint64() {
		return nil, fmt.Errorf("%w: chain id out of range", ErrEvent)
	}

	values, err := transferOut.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvent, err)
	}
	if len(values) != 6 {
		return nil, fmt.Errorf("%w: %d data fields", ErrEvent, len(values))
	}
	orderID, ok0 := values[0].([32]byte)
	token, ok1 := values[1].([]byte)
	from, ok2 := values[2].([]byte)
	to, ok3 := values[3].([]byte)
	amount, ok4 := values[4].(*big.Int)
	toChainToken, ok5 := values[5].([]byte)
	if !(ok0 && ok1 && ok2 && ok3 && ok4 && ok5) {
		return nil, fmt.Errorf("%w: unexpected field types", ErrEvent)
	}
	if len(token) != common.AddressLength {
		return nil, fmt.Errorf("%w: token address has %d bytes", ErrEvent, len(token))
	}
	if len(from) != common.AddressLength {
		return nil, fmt.Errorf("%w: sender address has %d bytes", ErrEvent, len(from))
	}

	return &TransferEvent{
		FromChain:    fromChain.Uint64(),
		ToChain:      toChain.Uint64(),
		OrderID:      common.Hash(orderID),
		Token:        common.BytesToAddress(token),
		From:         common.BytesToAddress(from),
		To:           to,
		Amount:       amount,
		ToChainToken: toChainToken,
	}, nil
}
