package storage

import (
	"context"
	"errors"
	"math/big"

	"rewardLedger/internal/model"
)

var (
	// ErrCursorRegression is returned when a commit would move a cursor backwards.
	ErrCursorRegression = errors.New("cursor regression")
	// ErrCursorMissing is returned when committing against a cursor that was never created.
	ErrCursorMissing = errors.New("cursor missing")
)

// CursorStore persists polling cursors together with the events of their range.
type CursorStore interface {
	// EnsureCursor creates the cursor with initial if it does not exist and
	// returns its current value.
	EnsureCursor(ctx context.Context, name string, initial uint64) (uint64, error)
	LoadCursor(ctx context.Context, name string) (uint64, bool, error)
	// CommitRange upserts events (conflicts are ignored) and advances the
	// cursor to toBlock in one unit. It returns the number of new rows.
	CommitRange(ctx context.Context, name string, events []model.ContractEvent, toBlock uint64) (int64, error)
}

// EventStore exposes stored contract events for listing.
type EventStore interface {
	ListEvents(ctx context.Context, offset, limit int) ([]model.ContractEvent, int64, error)
	LatestEvent(ctx context.Context) (*model.ContractEvent, error)
}

// RewardStore persists validator rewards.
type RewardStore interface {
	// LockStrategy records strategy for operator if none is recorded and
	// returns the recorded one.
	LockStrategy(ctx context.Context, operator, strategy string) (string, error)
	// MarkClaimed flips claimed to true for rows with epoch <= watermark.
	MarkClaimed(ctx context.Context, operator string, watermark uint64) (int64, error)
	SumUnclaimed(ctx context.Context, operator string) (*big.Int, error)
	// LatestReward returns the highest-epoch row, or nil when none exist.
	LatestReward(ctx context.Context, operator string) (*model.ValidatorReward, error)
	CountRewards(ctx context.Context, operator string) (int64, error)
	// UpsertReward inserts the row or merges it into the existing one: claimed
	// never reverts and a stored zero amount may be corrected.
	UpsertReward(ctx context.Context, reward model.ValidatorReward) error
	ListRewards(ctx context.Context, operator string) ([]model.ValidatorReward, error)
	ListRewardActions(ctx context.Context) ([]model.RewardAction, error)
}

// Store is the full storage surface used by the service.
type Store interface {
	CursorStore
	EventStore
	RewardStore
	Close()
}
