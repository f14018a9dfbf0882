package reward

import (
	"errors"
	"fmt"
	"math/big"

	"rewardLedger/internal/model"
)

// MaxCommissionRate is the basis-point denominator used by the validator manager.
const MaxCommissionRate = 10000

// ErrInvalidEpochInputs marks on-chain figures that cannot produce a valid reward.
var ErrInvalidEpochInputs = errors.New("invalid epoch inputs")

var maxCommissionRate = big.NewInt(MaxCommissionRate)

// Breakdown is the split of one epoch's emission for an operator.
type Breakdown struct {
	TotalReward    *big.Int
	StakerReward   *big.Int
	Commission     *big.Int
	OperatorReward *big.Int
}

// Calculate computes the operator reward for one epoch. Every division
// truncates toward zero, matching the contracts' fixed-point math.
func Calculate(in model.EpochInputs) (Breakdown, error) {
	emission := orZero(in.ValidatorEmission)
	weight := orZero(in.OperatorWeight)
	totalWeight := orZero(in.TotalWeight)
	collateral := orZero(in.CollateralShare)
	delegation := orZero(in.DelegationShare)
	rate := orZero(in.CommissionRate)

	for name, v := range map[string]*big.Int{
		"emission":        emission,
		"operator weight": weight,
		"total weight":    totalWeight,
		"collateral":      collateral,
		"delegation":      delegation,
		"commission rate": rate,
	} {
		if v.Sign() < 0 {
			return Breakdown{}, fmt.Errorf("%w: epoch %d: negative %s %s", ErrInvalidEpochInputs, in.Epoch, name, v)
		}
	}
	if totalWeight.Sign() > 0 && weight.Cmp(totalWeight) > 0 {
		return Breakdown{}, fmt.Errorf("%w: epoch %d: operator weight %s exceeds total %s", ErrInvalidEpochInputs, in.Epoch, weight, totalWeight)
	}
	if rate.Cmp(maxCommissionRate) > 0 {
		return Breakdown{}, fmt.Errorf("%w: epoch %d: commission rate %s exceeds %d", ErrInvalidEpochInputs, in.Epoch, rate, MaxCommissionRate)
	}

	out := Breakdown{
		TotalReward:  new(big.Int),
		StakerReward: new(big.Int),
		Commission:   new(big.Int),
	}
	if totalWeight.Sign() > 0 {
		out.TotalReward.Mul(emission, weight)
		out.TotalReward.Quo(out.TotalReward, totalWeight)
	}

	shares := new(big.Int).Add(collateral, delegation)
	if shares.Sign() == 0 {
		out.OperatorReward = new(big.Int).Set(out.TotalReward)
		return out, nil
	}

	out.StakerReward.Mul(out.TotalReward, delegation)
	out.StakerReward.Quo(out.StakerReward, shares)
	out.Commission.Mul(out.StakerReward, rate)
	out.Commission.Quo(out.Commission, maxCommissionRate)

	out.OperatorReward = new(big.Int).Sub(out.TotalReward, out.StakerReward)
	out.OperatorReward.Add(out.OperatorReward, out.Commission)
	if out.OperatorReward.Sign() < 0 {
		return Breakdown{}, fmt.Errorf("%w: epoch %d: negative operator reward %s", ErrInvalidEpochInputs, in.Epoch, out.OperatorReward)
	}
	return out, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
