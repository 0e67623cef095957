package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nodevents/nodevents-go/pkg/topic"
)

// Address types.
const (
	AddressEd25519 uint8 = 0
	AddressAlias   uint8 = 8
	AddressNFT     uint8 = 16
)

// unlockAddress is the unlock condition type that carries the owner address.
const unlockAddress = 0

// Address is an output owner address.
type Address struct {
	Type uint8  `json:"type"`
	Hash string `json:"hash"`
}

// OutputUpdate is an output together with its ledger metadata.
type OutputUpdate struct {
	BlockID       string   `json:"blockId"`
	TransactionID string   `json:"transactionId"`
	OutputIndex   uint16   `json:"outputIndex"`
	IsSpent       bool     `json:"isSpent"`
	LedgerIndex   uint32   `json:"ledgerIndex"`
	OutputType    uint8    `json:"outputType"`
	Amount        uint64   `json:"amount"`
	Address       *Address `json:"address,omitempty"`
}

// Class implements Payload.
func (*OutputUpdate) Class() topic.Class { return topic.ClassOutputUpdate }

var errInvalidAmount = errors.New("invalid amount")

// amount accepts a decimal string or a JSON number.
type amount uint64

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", errInvalidAmount, b)
	}
	*a = amount(v)
	return nil
}

type addressWire struct {
	Type       uint8  `json:"type"`
	PubKeyHash string `json:"pubKeyHash"`
	AliasID    string `json:"aliasId"`
	NFTID      string `json:"nftId"`

	// Address is the legacy field name of the hash.
	Address string `json:"address"`
}

func (w *addressWire) toAddress() *Address {
	a := &Address{Type: w.Type}
	switch {
	case w.PubKeyHash != "":
		a.Hash = w.PubKeyHash
	case w.AliasID != "":
		a.Hash = w.AliasID
	case w.NFTID != "":
		a.Hash = w.NFTID
	default:
		a.Hash = w.Address
	}
	return a
}

type outputMetadataWire struct {
	BlockID       string  `json:"blockId"`
	TransactionID string  `json:"transactionId"`
	OutputIndex   *uint16 `json:"outputIndex"`
	IsSpent       bool    `json:"isSpent"`
	LedgerIndex   uint32  `json:"ledgerIndex"`
}

type outputBodyWire struct {
	Type             uint8   `json:"type"`
	Amount           *amount `json:"amount"`
	UnlockConditions []struct {
		Type    uint8        `json:"type"`
		Address *addressWire `json:"address"`
	} `json:"unlockConditions"`

	// Address is only present in the legacy shape.
	Address *addressWire `json:"address"`
}

type outputWire struct {
	// Current shape.
	Metadata *outputMetadataWire `json:"metadata"`

	// Legacy flat shape.
	MessageID     string  `json:"messageId"`
	TransactionID string  `json:"transactionId"`
	OutputIndex   *uint16 `json:"outputIndex"`
	IsSpent       bool    `json:"isSpent"`
	LedgerIndex   uint32  `json:"ledgerIndex"`

	Output *outputBodyWire `json:"output"`
}

// DecodeOutput decodes an output update in either node API shape.
func DecodeOutput(t string, data []byte) (*OutputUpdate, error) {
	var w outputWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, newError(t, topic.ClassOutputUpdate, "", err)
	}
	if w.Output == nil {
		return nil, newError(t, topic.ClassOutputUpdate, "missing output", nil)
	}
	if w.Output.Amount == nil {
		return nil, newError(t, topic.ClassOutputUpdate, "missing amount", nil)
	}

	u := &OutputUpdate{
		OutputType: w.Output.Type,
		Amount:     uint64(*w.Output.Amount),
	}

	var index *uint16
	if w.Metadata != nil {
		u.BlockID = w.Metadata.BlockID
		u.TransactionID = w.Metadata.TransactionID
		u.IsSpent = w.Metadata.IsSpent
		u.LedgerIndex = w.Metadata.LedgerIndex
		index = w.Metadata.OutputIndex
	} else {
		u.BlockID = w.MessageID
		u.TransactionID = w.TransactionID
		u.IsSpent = w.IsSpent
		u.LedgerIndex = w.LedgerIndex
		index = w.OutputIndex
	}
	if u.TransactionID == "" {
		return nil, newError(t, topic.ClassOutputUpdate, "missing transaction id", nil)
	}
	if index == nil {
		return nil, newError(t, topic.ClassOutputUpdate, "missing output index", nil)
	}
	u.OutputIndex = *index

	if w.Output.Address != nil {
		u.Address = w.Output.Address.toAddress()
	}
	for _, uc := range w.Output.UnlockConditions {
		if uc.Type == unlockAddress && uc.Address != nil {
			u.Address = uc.Address.toAddress()
			break
		}
	}
	return u, nil
}
