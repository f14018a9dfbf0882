package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewardLedger/internal/model"
	"rewardLedger/internal/storage"
)

// Store provides Postgres persistence for cursors, events and rewards.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureCursor creates the cursor row if absent and returns its value.
func (s *Store) EnsureCursor(ctx context.Context, name string, initial uint64) (uint64, error) {
	if name == "" {
		return 0, fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO polling_state (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO NOTHING
	`, name, int64(initial))
	if err != nil {
		return 0, fmt.Errorf("ensure cursor: %w", err)
	}
	last, ok, err := s.LoadCursor(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", storage.ErrCursorMissing, name)
	}
	return last, nil
}

// LoadCursor returns last_block for a name.
func (s *Store) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM polling_state WHERE name=$1`, name)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if last < 0 {
		return 0, false, fmt.Errorf("corrupt cursor %s: %d", name, last)
	}
	return uint64(last), true, nil
}

// CommitRange writes events and advances the cursor in one transaction.
func (s *Store) CommitRange(ctx context.Context, name string, events []model.ContractEvent, toBlock uint64) (int64, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var inserted int64
	if len(events) > 0 {
		batch := &pgx.Batch{}
		for _, event := range events {
			topics := event.Topics
			if topics == nil {
				topics = []string{}
			}
			batch.Queue(`
				INSERT INTO contract_events (
					address, block_number, block_hash, transaction_hash, log_index, data, topics, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
				ON CONFLICT (transaction_hash, log_index) DO NOTHING
			`,
				event.Address,
				int64(event.BlockNumber),
				event.BlockHash,
				event.TxHash,
				int64(event.LogIndex),
				event.Data,
				topics,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range events {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return 0, fmt.Errorf("insert event: %w", err)
			}
			inserted += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("close batch: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE polling_state
		SET last_block = $2, updated_at = now()
		WHERE name = $1 AND last_block <= $2
	`, name, int64(toBlock))
	if err != nil {
		return 0, fmt.Errorf("advance cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_, ok, err := s.loadCursorTx(ctx, tx, name)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("%w: %s", storage.ErrCursorMissing, name)
		}
		return 0, fmt.Errorf("%w: %s commit to %d", storage.ErrCursorRegression, name, toBlock)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *Store) loadCursorTx(ctx context.Context, tx pgx.Tx, name string) (uint64, bool, error) {
	var last int64
	if err := tx.QueryRow(ctx, `SELECT last_block FROM polling_state WHERE name=$1`, name).Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(last), true, nil
}

// ListEvents returns events ordered by block number descending.
func (s *Store) ListEvents(ctx context.Context, offset, limit int) ([]model.ContractEvent, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM contract_events`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT address, block_number, block_hash, transaction_hash, log_index, data, topics, created_at
		FROM contract_events
		ORDER BY block_number DESC, transaction_hash DESC, log_index DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]model.ContractEvent, 0, limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	return events, total, rows.Err()
}

// LatestEvent returns the event with the highest block number, or nil.
func (s *Store) LatestEvent(ctx context.Context) (*model.ContractEvent, error) {
	events, _, err := s.ListEvents(ctx, 0, 1)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

func scanEvent(row pgx.Row) (model.ContractEvent, error) {
	var (
		event       model.ContractEvent
		blockNumber int64
		logIndex    int64
	)
	if err := row.Scan(
		&event.Address,
		&blockNumber,
		&event.BlockHash,
		&event.TxHash,
		&logIndex,
		&event.Data,
		&event.Topics,
		&event.CreatedAt,
	); err != nil {
		return event, fmt.Errorf("scan event: %w", err)
	}
	event.BlockNumber = uint64(blockNumber)
	event.LogIndex = uint64(logIndex)
	return event, nil
}

// LockStrategy records the reward strategy for an operator once.
func (s *Store) LockStrategy(ctx context.Context, operator, strategy string) (string, error) {
	op := normalize(operator)
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO reward_strategy_locks (operator_address, strategy, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (operator_address) DO NOTHING
	`, op, strategy); err != nil {
		return "", fmt.Errorf("lock strategy: %w", err)
	}
	var existing string
	if err := s.pool.QueryRow(ctx, `SELECT strategy FROM reward_strategy_locks WHERE operator_address=$1`, op).Scan(&existing); err != nil {
		return "", fmt.Errorf("read strategy lock: %w", err)
	}
	return existing, nil
}

// MarkClaimed flips claimed for every unclaimed row at or below watermark.
func (s *Store) MarkClaimed(ctx context.Context, operator string, watermark uint64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE validator_rewards
		SET claimed = true, updated_at = now()
		WHERE operator_address = $1 AND epoch <= $2 AND claimed = false
	`, normalize(operator), int64(watermark))
	if err != nil {
		return 0, fmt.Errorf("mark claimed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SumUnclaimed returns the sum of unclaimed reward amounts.
func (s *Store) SumUnclaimed(ctx context.Context, operator string) (*big.Int, error) {
	var sum string
	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(reward_amount), 0)::text
		FROM validator_rewards
		WHERE operator_address = $1 AND claimed = false
	`, normalize(operator)).Scan(&sum); err != nil {
		return nil, fmt.Errorf("sum unclaimed: %w", err)
	}
	return model.ParseAmount(sum)
}

// LatestReward returns the highest-epoch reward row for an operator.
func (s *Store) LatestReward(ctx context.Context, operator string) (*model.ValidatorReward, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT operator_address, epoch, reward_amount::text, claimed, created_at, updated_at
		FROM validator_rewards
		WHERE operator_address = $1
		ORDER BY epoch DESC
		LIMIT 1
	`, normalize(operator))
	reward, err := scanReward(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &reward, nil
}

// CountRewards returns the number of reward rows for an operator.
func (s *Store) CountRewards(ctx context.Context, operator string) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM validator_rewards WHERE operator_address = $1`, normalize(operator)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rewards: %w", err)
	}
	return count, nil
}

// UpsertReward inserts a reward row or merges it into the existing one.
func (s *Store) UpsertReward(ctx context.Context, reward model.ValidatorReward) error {
	amount := reward.AmountOrZero()
	if amount.Sign() < 0 {
		return fmt.Errorf("negative reward amount for epoch %d", reward.Epoch)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO validator_rewards (
			operator_address, epoch, reward_amount, claimed, created_at, updated_at
		) VALUES ($1, $2, $3::numeric, $4, now(), now())
		ON CONFLICT (operator_address, epoch)
		DO UPDATE SET
			claimed = validator_rewards.claimed OR EXCLUDED.claimed,
			reward_amount = CASE
				WHEN validator_rewards.reward_amount = 0 THEN EXCLUDED.reward_amount
				ELSE validator_rewards.reward_amount
			END,
			updated_at = now()
		WHERE (EXCLUDED.claimed AND NOT validator_rewards.claimed)
			OR (validator_rewards.reward_amount = 0 AND EXCLUDED.reward_amount > 0)
	`,
		normalize(reward.OperatorAddress),
		int64(reward.Epoch),
		amount.String(),
		reward.Claimed,
	)
	if err != nil {
		return fmt.Errorf("upsert reward: %w", err)
	}
	return nil
}

// ListRewards returns every reward row for an operator, newest epoch first.
func (s *Store) ListRewards(ctx context.Context, operator string) ([]model.ValidatorReward, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT operator_address, epoch, reward_amount::text, claimed, created_at, updated_at
		FROM validator_rewards
		WHERE operator_address = $1
		ORDER BY epoch DESC
	`, normalize(operator))
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	rewards := make([]model.ValidatorReward, 0)
	for rows.Next() {
		reward, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		rewards = append(rewards, reward)
	}
	return rewards, rows.Err()
}

func scanReward(row pgx.Row) (model.ValidatorReward, error) {
	var (
		reward model.ValidatorReward
		epoch  int64
		amount string
	)
	if err := row.Scan(&reward.OperatorAddress, &epoch, &amount, &reward.Claimed, &reward.CreatedAt, &reward.UpdatedAt); err != nil {
		return reward, err
	}
	parsed, err := model.ParseAmount(amount)
	if err != nil {
		return reward, fmt.Errorf("parse reward amount: %w", err)
	}
	reward.Epoch = uint64(epoch)
	reward.Amount = parsed
	return reward, nil
}

// ListRewardActions returns the manually recorded reward actions.
func (s *Store) ListRewardActions(ctx context.Context) ([]model.RewardAction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, action_type, amount::text, created_at
		FROM reward_actions
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list reward actions: %w", err)
	}
	defer rows.Close()

	actions := make([]model.RewardAction, 0)
	for rows.Next() {
		var (
			action     model.RewardAction
			actionType string
			amount     string
		)
		if err := rows.Scan(&action.ID, &actionType, &amount, &action.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward action: %w", err)
		}
		parsed, err := model.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("parse action amount: %w", err)
		}
		action.Type = model.RewardActionType(actionType)
		action.Amount = parsed
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func normalize(address string) string {
	return strings.ToLower(address)
}
