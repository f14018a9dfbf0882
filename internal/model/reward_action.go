package model

import (
	"encoding/json"
	"math/big"
	"time"
)

// RewardActionType is the kind of manual action recorded against claimed rewards.
type RewardActionType string

const (
	RewardActionRestaking RewardActionType = "RESTAKING"
	RewardActionSell      RewardActionType = "SELL"
)

// RewardAction is an operator-recorded restake or sale of claimed rewards.
// The reconciler only reads these rows.
type RewardAction struct {
	ID        string
	Type      RewardActionType
	Amount    *big.Int
	CreatedAt time.Time
}

type rewardActionJSON struct {
	ID        string           `json:"id"`
	Type      RewardActionType `json:"type"`
	Amount    string           `json:"amount"`
	CreatedAt time.Time        `json:"createdAt"`
}

// MarshalJSON encodes the amount as a base-10 string.
func (a RewardAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(rewardActionJSON{
		ID:        a.ID,
		Type:      a.Type,
		Amount:    FormatAmount(a.Amount),
		CreatedAt: a.CreatedAt,
	})
}
