package reward

import (
	"encoding/json"
	"math/big"
	"time"

	"rewardLedger/internal/model"
	"rewardLedger/internal/scheduler"
)

type Status string

const (
	StatusSkipped     Status = scheduler.StatusSkipped
	StatusNoChange    Status = "no-change"
	StatusNewReward   Status = "new-reward"
	StatusInitialized Status = "initialized"
)

// Result is the outcome of one reconciliation pass. Epoch and Amount are
// only set for new-reward and initialized.
type Result struct {
	Status         Status
	Timestamp      time.Time
	ClaimedUpdated int64
	Epoch          uint64
	Amount         *big.Int
	EpochsAppended int
}

func (r Result) Label() string { return string(r.Status) }

type resultJSON struct {
	Status         Status    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	ClaimedUpdated int64     `json:"claimedUpdated"`
	Epoch          *uint64   `json:"epoch,omitempty"`
	Amount         string    `json:"amount,omitempty"`
	EpochsAppended int       `json:"epochsAppended,omitempty"`
}

// MarshalJSON renders the amount as a decimal string and omits the reward
// fields for variants that carry none.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Status:         r.Status,
		Timestamp:      r.Timestamp,
		ClaimedUpdated: r.ClaimedUpdated,
		EpochsAppended: r.EpochsAppended,
	}
	if r.Status == StatusNewReward || r.Status == StatusInitialized {
		epoch := r.Epoch
		out.Epoch = &epoch
		out.Amount = model.FormatAmount(r.Amount)
	}
	return json.Marshal(out)
}
