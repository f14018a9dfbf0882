package chain

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCaller struct {
	t       *testing.T
	results map[string][]interface{}
}

func (s *scriptedCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	for _, load := range []func() (abi.ABI, error){DistributorABI, EpochFeederABI, ContributionFeedABI, ValidatorManagerABI, EmissionABI} {
		parsed, err := load()
		require.NoError(s.t, err)
		method, err := parsed.MethodById(msg.Data[:4])
		if err != nil {
			continue
		}
		out, ok := s.results[method.Name]
		if !ok {
			return nil, fmt.Errorf("unexpected call %s", method.Name)
		}
		return method.Outputs.Pack(out...)
	}
	return nil, fmt.Errorf("unknown selector %x", msg.Data[:4])
}

func testAddresses() ContractAddresses {
	return ContractAddresses{
		Distributor:      common.HexToAddress("0x0000000000000000000000000000000000000001"),
		EpochFeeder:      common.HexToAddress("0x0000000000000000000000000000000000000002"),
		ContributionFeed: common.HexToAddress("0x0000000000000000000000000000000000000003"),
		ValidatorManager: common.HexToAddress("0x0000000000000000000000000000000000000004"),
		Emission:         common.HexToAddress("0x0000000000000000000000000000000000000005"),
	}
}

func TestRewardContractsDistributor(t *testing.T) {
	claimable, _ := new(big.Int).SetString("500000000000000000000", 10)
	caller := &scriptedCaller{t: t, results: map[string][]interface{}{
		"claimableOperatorRewards":        {claimable, big.NewInt(9)},
		"lastClaimedOperatorRewardsEpoch": {big.NewInt(3)},
	}}
	contracts := NewRewardContracts(caller, testAddresses())
	operator := common.HexToAddress("0x2222222222222222222222222222222222222222")

	got, err := contracts.ClaimableOperatorRewards(context.Background(), operator)
	require.NoError(t, err)
	assert.Equal(t, claimable.String(), got.String())

	watermark, err := contracts.LastClaimedEpoch(context.Background(), operator)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), watermark)
}

func TestRewardContractsEpochInputs(t *testing.T) {
	caller := &scriptedCaller{t: t, results: map[string][]interface{}{
		"epoch":            {big.NewInt(12)},
		"available":        {true},
		"summary":          {big.NewInt(100), big.NewInt(4)},
		"weightOf":         {big.NewInt(30), big.NewInt(20), big.NewInt(80), true},
		"commissionRateAt": {big.NewInt(500)},
		"validatorReward":  {big.NewInt(1000)},
	}}
	contracts := NewRewardContracts(caller, testAddresses())
	operator := common.HexToAddress("0x2222222222222222222222222222222222222222")

	current, err := contracts.CurrentEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(12), current)

	available, err := contracts.ContributionAvailable(context.Background(), 11)
	require.NoError(t, err)
	assert.True(t, available)

	inputs, err := contracts.EpochInputs(context.Background(), 11, operator)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), inputs.Epoch)
	assert.Equal(t, "1000", inputs.ValidatorEmission.String())
	assert.Equal(t, "30", inputs.OperatorWeight.String())
	assert.Equal(t, "100", inputs.TotalWeight.String())
	assert.Equal(t, "20", inputs.CollateralShare.String())
	assert.Equal(t, "80", inputs.DelegationShare.String())
	assert.Equal(t, "500", inputs.CommissionRate.String())
}

func TestRewardContractsMissingWeight(t *testing.T) {
	caller := &scriptedCaller{t: t, results: map[string][]interface{}{
		"summary":          {big.NewInt(100), big.NewInt(4)},
		"weightOf":         {big.NewInt(0), big.NewInt(0), big.NewInt(0), false},
		"commissionRateAt": {big.NewInt(500)},
		"validatorReward":  {big.NewInt(1000)},
	}}
	contracts := NewRewardContracts(caller, testAddresses())

	inputs, err := contracts.EpochInputs(context.Background(), 2, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, 0, inputs.OperatorWeight.Sign())
	assert.Equal(t, 0, inputs.DelegationShare.Sign())
}

func TestRewardContractsUnconfiguredAddress(t *testing.T) {
	contracts := NewRewardContracts(&scriptedCaller{t: t}, ContractAddresses{})
	_, err := contracts.CurrentEpoch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract address not configured")
}
