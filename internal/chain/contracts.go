package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"rewardLedger/internal/model"
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ContractAddresses lists the reward contracts read by RewardContracts.
// Only Distributor is needed for the aggregate-diff strategy.
type ContractAddresses struct {
	Distributor      common.Address
	EpochFeeder      common.Address
	ContributionFeed common.Address
	ValidatorManager common.Address
	Emission         common.Address
}

// RewardContracts reads validator reward state from chain.
type RewardContracts struct {
	caller Caller
	addrs  ContractAddresses
}

func NewRewardContracts(caller Caller, addrs ContractAddresses) *RewardContracts {
	return &RewardContracts{caller: caller, addrs: addrs}
}

// ClaimableOperatorRewards returns the total amount currently claimable by the operator.
func (r *RewardContracts) ClaimableOperatorRewards(ctx context.Context, operator common.Address) (*big.Int, error) {
	values, err := r.call(ctx, r.addrs.Distributor, DistributorABI, "claimableOperatorRewards", operator)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// LastClaimedEpoch returns the claimed watermark for the operator.
func (r *RewardContracts) LastClaimedEpoch(ctx context.Context, operator common.Address) (uint64, error) {
	values, err := r.call(ctx, r.addrs.Distributor, DistributorABI, "lastClaimedOperatorRewardsEpoch", operator)
	if err != nil {
		return 0, err
	}
	return asUint64(values[0])
}

// CurrentEpoch returns the epoch that is currently accruing.
func (r *RewardContracts) CurrentEpoch(ctx context.Context) (uint64, error) {
	values, err := r.call(ctx, r.addrs.EpochFeeder, EpochFeederABI, "epoch")
	if err != nil {
		return 0, err
	}
	return asUint64(values[0])
}

// ContributionAvailable reports whether contribution data for epoch is finalized.
func (r *RewardContracts) ContributionAvailable(ctx context.Context, epoch uint64) (bool, error) {
	values, err := r.call(ctx, r.addrs.ContributionFeed, ContributionFeedABI, "available", new(big.Int).SetUint64(epoch))
	if err != nil {
		return false, err
	}
	available, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("available: unsupported bool type %T", values[0])
	}
	return available, nil
}

// EpochInputs gathers the figures needed to compute the operator's reward for epoch.
func (r *RewardContracts) EpochInputs(ctx context.Context, epoch uint64, operator common.Address) (model.EpochInputs, error) {
	epochArg := new(big.Int).SetUint64(epoch)
	inputs := model.EpochInputs{Epoch: epoch}

	values, err := r.call(ctx, r.addrs.ContributionFeed, ContributionFeedABI, "summary", epochArg)
	if err != nil {
		return inputs, err
	}
	if inputs.TotalWeight, err = asBigInt(values[0]); err != nil {
		return inputs, fmt.Errorf("summary total weight: %w", err)
	}

	values, err = r.call(ctx, r.addrs.ContributionFeed, ContributionFeedABI, "weightOf", epochArg, operator)
	if err != nil {
		return inputs, err
	}
	if len(values) < 4 {
		return inputs, fmt.Errorf("weightOf: expected 4 values, got %d", len(values))
	}
	exists, _ := values[3].(bool)
	if exists {
		if inputs.OperatorWeight, err = asBigInt(values[0]); err != nil {
			return inputs, fmt.Errorf("weightOf weight: %w", err)
		}
		if inputs.CollateralShare, err = asBigInt(values[1]); err != nil {
			return inputs, fmt.Errorf("weightOf collateral share: %w", err)
		}
		if inputs.DelegationShare, err = asBigInt(values[2]); err != nil {
			return inputs, fmt.Errorf("weightOf delegation share: %w", err)
		}
	} else {
		inputs.OperatorWeight = new(big.Int)
		inputs.CollateralShare = new(big.Int)
		inputs.DelegationShare = new(big.Int)
	}

	values, err = r.call(ctx, r.addrs.ValidatorManager, ValidatorManagerABI, "commissionRateAt", operator, epochArg)
	if err != nil {
		return inputs, err
	}
	if inputs.CommissionRate, err = asBigInt(values[0]); err != nil {
		return inputs, fmt.Errorf("commission rate: %w", err)
	}

	values, err = r.call(ctx, r.addrs.Emission, EmissionABI, "validatorReward", epochArg)
	if err != nil {
		return inputs, err
	}
	if inputs.ValidatorEmission, err = asBigInt(values[0]); err != nil {
		return inputs, fmt.Errorf("validator emission: %w", err)
	}

	return inputs, nil
}

func (r *RewardContracts) call(ctx context.Context, to common.Address, load func() (abi.ABI, error), method string, args ...interface{}) ([]interface{}, error) {
	if r.caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if to == (common.Address{}) {
		return nil, fmt.Errorf("call %s: contract address not configured", method)
	}
	parsed, err := load()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint64(value interface{}) (uint64, error) {
	v, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("uint64 overflow: %s", v.String())
	}
	return v.Uint64(), nil
}
