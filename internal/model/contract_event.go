package model

import (
	"encoding/json"
	"time"
)

// ContractEvent is the stored representation of one on-chain log entry.
// Rows are keyed by (TxHash, LogIndex) and never change once written.
type ContractEvent struct {
	Address     string    `json:"address"`
	BlockNumber uint64    `json:"blockNumber,string"`
	BlockHash   string    `json:"blockHash"`
	TxHash      string    `json:"transactionHash"`
	LogIndex    uint64    `json:"logIndex"`
	Data        string    `json:"data"`
	Topics      []string  `json:"topics"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Key returns the natural key of the event.
func (e ContractEvent) Key() EventKey {
	return EventKey{TxHash: e.TxHash, LogIndex: e.LogIndex}
}

// EventKey identifies a log by its transaction and position within it.
type EventKey struct {
	TxHash   string
	LogIndex uint64
}

// MarshalJSON ensures ContractEvent is encoded with stable field names.
func (e ContractEvent) MarshalJSON() ([]byte, error) {
	type Alias ContractEvent
	a := Alias(e)
	if a.Topics == nil {
		a.Topics = []string{}
	}
	return json.Marshal(a)
}

// UnmarshalJSON decodes a ContractEvent from JSON.
func (e *ContractEvent) UnmarshalJSON(data []byte) error {
	type Alias ContractEvent
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = ContractEvent(a)
	return nil
}
