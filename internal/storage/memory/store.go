package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"rewardLedger/internal/model"
	"rewardLedger/internal/storage"
)

type rewardKey struct {
	operator string
	epoch    uint64
}

// Store is an in-process implementation of storage.Store. It keeps the same
// conflict and monotonicity rules as the Postgres store.
type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	cursors    map[string]model.PollingCursor
	events     map[model.EventKey]model.ContractEvent
	rewards    map[rewardKey]model.ValidatorReward
	strategies map[string]model.StrategyLock
	actions    []model.RewardAction
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		now:        func() time.Time { return time.Now().UTC() },
		cursors:    make(map[string]model.PollingCursor),
		events:     make(map[model.EventKey]model.ContractEvent),
		rewards:    make(map[rewardKey]model.ValidatorReward),
		strategies: make(map[string]model.StrategyLock),
	}
}

func (s *Store) Close() {}

func (s *Store) EnsureCursor(_ context.Context, name string, initial uint64) (uint64, error) {
	if name == "" {
		return 0, fmt.Errorf("cursor name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cursors[name]
	if !ok {
		cur = model.PollingCursor{Name: name, LastBlock: initial, UpdatedAt: s.now()}
		s.cursors[name] = cur
	}
	return cur.LastBlock, nil
}

func (s *Store) LoadCursor(_ context.Context, name string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cursors[name]
	return cur.LastBlock, ok, nil
}

func (s *Store) CommitRange(_ context.Context, name string, events []model.ContractEvent, toBlock uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.cursors[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", storage.ErrCursorMissing, name)
	}
	if toBlock < cur.LastBlock {
		return 0, fmt.Errorf("%w: %s at %d, commit to %d", storage.ErrCursorRegression, name, cur.LastBlock, toBlock)
	}

	now := s.now()
	var inserted int64
	for _, event := range events {
		key := event.Key()
		if _, exists := s.events[key]; exists {
			continue
		}
		event.Topics = append([]string(nil), event.Topics...)
		if event.CreatedAt.IsZero() {
			event.CreatedAt = now
		}
		s.events[key] = event
		inserted++
	}

	cur.LastBlock = toBlock
	cur.UpdatedAt = now
	s.cursors[name] = cur
	return inserted, nil
}

func (s *Store) ListEvents(_ context.Context, offset, limit int) ([]model.ContractEvent, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.ContractEvent, 0, len(s.events))
	for _, event := range s.events {
		all = append(all, event)
	}
	sortEventsDesc(all)

	total := int64(len(all))
	if offset >= len(all) {
		return []model.ContractEvent{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *Store) LatestEvent(ctx context.Context) (*model.ContractEvent, error) {
	events, _, err := s.ListEvents(ctx, 0, 1)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

func sortEventsDesc(events []model.ContractEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber > events[j].BlockNumber
		}
		if events[i].TxHash != events[j].TxHash {
			return events[i].TxHash > events[j].TxHash
		}
		return events[i].LogIndex > events[j].LogIndex
	})
}

func (s *Store) LockStrategy(_ context.Context, operator, strategy string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalize(operator)
	if existing, ok := s.strategies[key]; ok {
		return existing.Strategy, nil
	}
	s.strategies[key] = model.StrategyLock{OperatorAddress: key, Strategy: strategy}
	return strategy, nil
}

func (s *Store) MarkClaimed(_ context.Context, operator string, watermark uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := normalize(operator)
	now := s.now()
	var count int64
	for key, reward := range s.rewards {
		if key.operator != op || key.epoch > watermark || reward.Claimed {
			continue
		}
		reward.Claimed = true
		reward.UpdatedAt = now
		s.rewards[key] = reward
		count++
	}
	return count, nil
}

func (s *Store) SumUnclaimed(_ context.Context, operator string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := normalize(operator)
	sum := new(big.Int)
	for key, reward := range s.rewards {
		if key.operator == op && !reward.Claimed {
			sum.Add(sum, reward.AmountOrZero())
		}
	}
	return sum, nil
}

func (s *Store) LatestReward(_ context.Context, operator string) (*model.ValidatorReward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := normalize(operator)
	var latest *model.ValidatorReward
	for key, reward := range s.rewards {
		if key.operator != op {
			continue
		}
		if latest == nil || reward.Epoch > latest.Epoch {
			r := copyReward(reward)
			latest = &r
		}
	}
	return latest, nil
}

func (s *Store) CountRewards(_ context.Context, operator string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := normalize(operator)
	var count int64
	for key := range s.rewards {
		if key.operator == op {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpsertReward(_ context.Context, reward model.ValidatorReward) error {
	if reward.Amount != nil && reward.Amount.Sign() < 0 {
		return fmt.Errorf("negative reward amount for epoch %d", reward.Epoch)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rewardKey{operator: normalize(reward.OperatorAddress), epoch: reward.Epoch}
	now := s.now()
	existing, ok := s.rewards[key]
	if !ok {
		reward = copyReward(reward)
		reward.OperatorAddress = key.operator
		reward.Amount = new(big.Int).Set(reward.AmountOrZero())
		reward.CreatedAt = now
		reward.UpdatedAt = now
		s.rewards[key] = reward
		return nil
	}

	changed := false
	if reward.Claimed && !existing.Claimed {
		existing.Claimed = true
		changed = true
	}
	if existing.AmountOrZero().Sign() == 0 && reward.AmountOrZero().Sign() > 0 {
		existing.Amount = new(big.Int).Set(reward.Amount)
		changed = true
	}
	if changed {
		existing.UpdatedAt = now
		s.rewards[key] = existing
	}
	return nil
}

func (s *Store) ListRewards(_ context.Context, operator string) ([]model.ValidatorReward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := normalize(operator)
	out := make([]model.ValidatorReward, 0)
	for key, reward := range s.rewards {
		if key.operator == op {
			out = append(out, copyReward(reward))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch > out[j].Epoch })
	return out, nil
}

func (s *Store) ListRewardActions(_ context.Context) ([]model.RewardAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.RewardAction(nil), s.actions...), nil
}

// AddRewardAction seeds a manual action for tests. The service itself never
// writes actions.
func (s *Store) AddRewardAction(action model.RewardAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.now()
	}
	s.actions = append(s.actions, action)
}

func copyReward(r model.ValidatorReward) model.ValidatorReward {
	if r.Amount != nil {
		r.Amount = new(big.Int).Set(r.Amount)
	}
	return r
}

func normalize(address string) string {
	return strings.ToLower(address)
}
