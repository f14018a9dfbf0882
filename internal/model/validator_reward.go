package model

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ValidatorReward is the reward accrued by an operator for one epoch.
// Amount is held in token base units and only rendered as a string at the
// JSON boundary.
type ValidatorReward struct {
	OperatorAddress string
	Epoch           uint64
	Amount          *big.Int
	Claimed         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type validatorRewardJSON struct {
	OperatorAddress string    `json:"operatorAddress"`
	Epoch           uint64    `json:"epoch"`
	RewardAmount    string    `json:"rewardAmount"`
	Claimed         bool      `json:"claimed"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// MarshalJSON encodes the amount as a base-10 string.
func (r ValidatorReward) MarshalJSON() ([]byte, error) {
	return json.Marshal(validatorRewardJSON{
		OperatorAddress: r.OperatorAddress,
		Epoch:           r.Epoch,
		RewardAmount:    FormatAmount(r.Amount),
		Claimed:         r.Claimed,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	})
}

// UnmarshalJSON decodes a ValidatorReward, parsing the amount string.
func (r *ValidatorReward) UnmarshalJSON(data []byte) error {
	var raw validatorRewardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := ParseAmount(raw.RewardAmount)
	if err != nil {
		return err
	}
	*r = ValidatorReward{
		OperatorAddress: raw.OperatorAddress,
		Epoch:           raw.Epoch,
		Amount:          amount,
		Claimed:         raw.Claimed,
		CreatedAt:       raw.CreatedAt,
		UpdatedAt:       raw.UpdatedAt,
	}
	return nil
}

// AmountOrZero returns the reward amount, treating nil as zero.
func (r ValidatorReward) AmountOrZero() *big.Int {
	if r.Amount == nil {
		return new(big.Int)
	}
	return r.Amount
}

// FormatAmount renders a base-unit amount as an integer string.
func FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

// FormatTokenAmount renders a base-unit amount scaled down by decimals.
func FormatTokenAmount(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseAmount parses a base-10 integer amount. The empty string is zero.
func ParseAmount(input string) (*big.Int, error) {
	if input == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return nil, err
	}
	if !d.Equal(d.Truncate(0)) {
		return nil, &AmountError{Input: input, Reason: "fractional amount"}
	}
	if d.Sign() < 0 {
		return nil, &AmountError{Input: input, Reason: "negative amount"}
	}
	return d.BigInt(), nil
}

// AmountError describes an amount that cannot be held in base units.
type AmountError struct {
	Input  string
	Reason string
}

func (e *AmountError) Error() string {
	return e.Reason + ": " + e.Input
}
