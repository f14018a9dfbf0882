package memory

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewardLedger/internal/model"
	"rewardLedger/internal/storage"
)

const operator = "0xAbCdEf0000000000000000000000000000000001"

func fiveLogs() []model.ContractEvent {
	events := make([]model.ContractEvent, 0, 5)
	for i := 0; i < 5; i++ {
		events = append(events, model.ContractEvent{
			Address:     "0x1111111111111111111111111111111111111111",
			BlockNumber: uint64(100 + i),
			TxHash:      fmt.Sprintf("0x%064x", i),
			LogIndex:    uint64(i),
			Topics:      []string{"0xtopic"},
		})
	}
	return events
}

func TestCommitRangeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.EnsureCursor(ctx, model.EventSyncerCursor, 99)
	require.NoError(t, err)

	inserted, err := s.CommitRange(ctx, model.EventSyncerCursor, fiveLogs(), 104)
	require.NoError(t, err)
	assert.Equal(t, int64(5), inserted)

	inserted, err = s.CommitRange(ctx, model.EventSyncerCursor, fiveLogs(), 104)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	_, total, err := s.ListEvents(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestCommitRangeRejectsRegression(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.EnsureCursor(ctx, model.EventSyncerCursor, 200)
	require.NoError(t, err)

	_, err = s.CommitRange(ctx, model.EventSyncerCursor, fiveLogs(), 150)
	require.ErrorIs(t, err, storage.ErrCursorRegression)

	_, total, err := s.ListEvents(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total, "no events may be written on regression")

	last, ok, err := s.LoadCursor(ctx, model.EventSyncerCursor)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(200), last)
}

func TestCommitRangeMissingCursor(t *testing.T) {
	_, err := NewStore().CommitRange(context.Background(), "nope", nil, 1)
	require.ErrorIs(t, err, storage.ErrCursorMissing)
}

func TestEnsureCursorKeepsExistingValue(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first, err := s.EnsureCursor(ctx, model.EventSyncerCursor, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), first)

	second, err := s.EnsureCursor(ctx, model.EventSyncerCursor, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), second)
}

func TestListEventsPaginatesByBlockDesc(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.EnsureCursor(ctx, model.EventSyncerCursor, 0)
	_, err := s.CommitRange(ctx, model.EventSyncerCursor, fiveLogs(), 104)
	require.NoError(t, err)

	page, total, err := s.ListEvents(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(102), page[0].BlockNumber)
	assert.Equal(t, uint64(101), page[1].BlockNumber)

	latest, err := s.LatestEvent(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(104), latest.BlockNumber)
}

func TestMarkClaimedIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for epoch := uint64(1); epoch <= 4; epoch++ {
		require.NoError(t, s.UpsertReward(ctx, model.ValidatorReward{
			OperatorAddress: operator,
			Epoch:           epoch,
			Amount:          big.NewInt(int64(epoch * 10)),
		}))
	}

	updated, err := s.MarkClaimed(ctx, operator, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	updated, err = s.MarkClaimed(ctx, operator, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated, "same watermark changes nothing")

	// an unclaimed upsert must not revert the flag
	require.NoError(t, s.UpsertReward(ctx, model.ValidatorReward{OperatorAddress: operator, Epoch: 1, Amount: big.NewInt(10)}))

	rewards, err := s.ListRewards(ctx, operator)
	require.NoError(t, err)
	for _, r := range rewards {
		assert.Equal(t, r.Epoch <= 2, r.Claimed, "epoch %d", r.Epoch)
	}

	sum, err := s.SumUnclaimed(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, "70", sum.String())
}

func TestUpsertRewardCorrectsUnknownAmount(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.UpsertReward(ctx, model.ValidatorReward{OperatorAddress: operator, Epoch: 1, Amount: big.NewInt(0)}))
	require.NoError(t, s.UpsertReward(ctx, model.ValidatorReward{OperatorAddress: operator, Epoch: 1, Amount: big.NewInt(42)}))
	require.NoError(t, s.UpsertReward(ctx, model.ValidatorReward{OperatorAddress: operator, Epoch: 1, Amount: big.NewInt(7)}))

	latest, err := s.LatestReward(ctx, operator)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "42", latest.Amount.String())

	count, err := s.CountRewards(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLockStrategyKeepsFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	got, err := s.LockStrategy(ctx, operator, "epoch")
	require.NoError(t, err)
	assert.Equal(t, "epoch", got)

	got, err = s.LockStrategy(ctx, operator, "diff")
	require.NoError(t, err)
	assert.Equal(t, "epoch", got)
}
