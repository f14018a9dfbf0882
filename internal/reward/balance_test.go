package reward

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardLedger/internal/model"
)

func TestComputeBalance(t *testing.T) {
	rewards := []model.ValidatorReward{
		{Epoch: 1, Amount: big.NewInt(100), Claimed: true},
		{Epoch: 2, Amount: big.NewInt(250), Claimed: true},
		{Epoch: 3, Amount: big.NewInt(40)},
		{Epoch: 4},
	}
	actions := []model.RewardAction{
		{Type: model.RewardActionRestaking, Amount: big.NewInt(120)},
		{Type: model.RewardActionSell, Amount: big.NewInt(30)},
		{Type: model.RewardActionSell, Amount: big.NewInt(50)},
	}

	b := ComputeBalance(rewards, actions)
	require.Equal(t, "350", b.Claimed.String())
	require.Equal(t, "40", b.Unclaimed.String())
	require.Equal(t, "120", b.Restaked.String())
	require.Equal(t, "80", b.Sold.String())
	require.Equal(t, "150", b.Available.String())

	data, err := json.Marshal(b)
	require.NoError(t, err)
	require.JSONEq(t, `{"claimed":"350","unclaimed":"40","restaked":"120","sold":"80","available":"150"}`, string(data))
}

func TestComputeBalanceEmpty(t *testing.T) {
	b := ComputeBalance(nil, nil)
	require.Zero(t, b.Available.Sign())
}
