package reward

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rewardLedger/internal/model"
	"rewardLedger/internal/scheduler"
	"rewardLedger/internal/storage"
)

// ErrStrategyMismatch is returned when the ledger of an operator was built
// with a different strategy than the one configured.
var ErrStrategyMismatch = errors.New("reward strategy mismatch")

type Strategy string

const (
	// StrategyEpoch computes each finalized epoch from the contribution feed.
	StrategyEpoch Strategy = "epoch"
	// StrategyDiff books the growth of the claimable total as one synthetic epoch.
	StrategyDiff Strategy = "diff"
)

// ParseStrategy maps a config value to a Strategy. Empty selects StrategyEpoch.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case "", StrategyEpoch:
		return StrategyEpoch, nil
	case StrategyDiff:
		return StrategyDiff, nil
	default:
		return "", fmt.Errorf("unknown reward strategy %q", value)
	}
}

// Chain is the set of read-only contract calls used by the reconciler.
// *chain.RewardContracts implements it.
type Chain interface {
	ClaimableOperatorRewards(ctx context.Context, operator common.Address) (*big.Int, error)
	LastClaimedEpoch(ctx context.Context, operator common.Address) (uint64, error)
	CurrentEpoch(ctx context.Context) (uint64, error)
	ContributionAvailable(ctx context.Context, epoch uint64) (bool, error)
	EpochInputs(ctx context.Context, epoch uint64, operator common.Address) (model.EpochInputs, error)
}

// EpochGauge receives the latest persisted epoch.
type EpochGauge interface {
	SetLatestEpoch(operator string, epoch uint64)
}

const defaultMaxEpochsPerPass = 100

type Config struct {
	Operator         common.Address
	Strategy         Strategy
	StartEpoch       uint64
	MaxEpochsPerPass int
}

// Reconciler keeps the validator_rewards ledger of one operator in line with
// the chain.
type Reconciler struct {
	cfg      Config
	operator string
	chain    Chain
	store    storage.RewardStore
	gauge    EpochGauge
	logger   *zap.Logger
	now      func() time.Time
}

var _ scheduler.Task[Result] = (*Reconciler)(nil)

// NewReconciler builds a Reconciler. gauge may be nil.
func NewReconciler(cfg Config, chain Chain, store storage.RewardStore, gauge EpochGauge, logger *zap.Logger) (*Reconciler, error) {
	if chain == nil {
		return nil, fmt.Errorf("chain is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("reward store is nil")
	}
	if cfg.Operator == (common.Address{}) {
		return nil, fmt.Errorf("operator address is required")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyEpoch
	}
	if cfg.Strategy != StrategyEpoch && cfg.Strategy != StrategyDiff {
		return nil, fmt.Errorf("unknown reward strategy %q", cfg.Strategy)
	}
	if cfg.MaxEpochsPerPass <= 0 {
		cfg.MaxEpochsPerPass = defaultMaxEpochsPerPass
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	operator := strings.ToLower(cfg.Operator.Hex())
	return &Reconciler{
		cfg:      cfg,
		operator: operator,
		chain:    chain,
		store:    store,
		gauge:    gauge,
		logger:   logger.With(zap.String("operator", operator), zap.String("strategy", string(cfg.Strategy))),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *Reconciler) Name() string { return "reward-reconciler" }

func (r *Reconciler) Skipped(at time.Time) Result {
	return Result{Status: StatusSkipped, Timestamp: at}
}

// Operator returns the lowercased operator address the ledger is keyed by.
func (r *Reconciler) Operator() string { return r.operator }

// Run executes one reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	locked, err := r.store.LockStrategy(ctx, r.operator, string(r.cfg.Strategy))
	if err != nil {
		return Result{}, fmt.Errorf("lock strategy: %w", err)
	}
	if locked != string(r.cfg.Strategy) {
		return Result{}, fmt.Errorf("%w: ledger uses %q, configured %q", ErrStrategyMismatch, locked, r.cfg.Strategy)
	}

	watermark, err := r.chain.LastClaimedEpoch(ctx, r.cfg.Operator)
	if err != nil {
		return Result{}, fmt.Errorf("last claimed epoch: %w", err)
	}
	var claimedUpdated int64
	if watermark > 0 {
		claimedUpdated, err = r.store.MarkClaimed(ctx, r.operator, watermark)
		if err != nil {
			return Result{}, fmt.Errorf("mark claimed up to %d: %w", watermark, err)
		}
		if claimedUpdated > 0 {
			r.logger.Info("rewards marked claimed", zap.Uint64("watermark", watermark), zap.Int64("rows", claimedUpdated))
		}
	}

	var result Result
	switch r.cfg.Strategy {
	case StrategyDiff:
		result, err = r.runDiff(ctx, watermark)
	default:
		result, err = r.runEpochs(ctx, watermark)
	}
	if err != nil {
		return Result{}, err
	}

	result.ClaimedUpdated = claimedUpdated
	result.Timestamp = r.now()
	if r.gauge != nil && (result.Status == StatusNewReward || result.Status == StatusInitialized) {
		r.gauge.SetLatestEpoch(r.operator, result.Epoch)
	}
	return result, nil
}

// runDiff books claimable minus locally unclaimed as the next epoch.
func (r *Reconciler) runDiff(ctx context.Context, watermark uint64) (Result, error) {
	count, err := r.store.CountRewards(ctx, r.operator)
	if err != nil {
		return Result{}, fmt.Errorf("count rewards: %w", err)
	}
	if count == 0 {
		return r.bootstrap(ctx, watermark)
	}

	claimable, err := r.chain.ClaimableOperatorRewards(ctx, r.cfg.Operator)
	if err != nil {
		return Result{}, fmt.Errorf("claimable rewards: %w", err)
	}
	unclaimed, err := r.store.SumUnclaimed(ctx, r.operator)
	if err != nil {
		return Result{}, fmt.Errorf("sum unclaimed: %w", err)
	}
	diff := new(big.Int).Sub(claimable, unclaimed)
	if diff.Sign() <= 0 {
		return Result{Status: StatusNoChange}, nil
	}

	latest, err := r.store.LatestReward(ctx, r.operator)
	if err != nil {
		return Result{}, fmt.Errorf("latest reward: %w", err)
	}
	var epoch uint64 = 1
	if latest != nil {
		epoch = latest.Epoch + 1
	}
	if err := r.store.UpsertReward(ctx, model.ValidatorReward{
		OperatorAddress: r.operator,
		Epoch:           epoch,
		Amount:          diff,
	}); err != nil {
		return Result{}, fmt.Errorf("store reward epoch %d: %w", epoch, err)
	}

	r.logger.Info("new reward", zap.Uint64("epoch", epoch), zap.String("amount", diff.String()))
	return Result{Status: StatusNewReward, Epoch: epoch, Amount: diff, EpochsAppended: 1}, nil
}

// runEpochs appends every finalized epoch after the last stored one, in order,
// stopping at the first epoch whose contribution data is not available yet.
func (r *Reconciler) runEpochs(ctx context.Context, watermark uint64) (Result, error) {
	latest, err := r.store.LatestReward(ctx, r.operator)
	if err != nil {
		return Result{}, fmt.Errorf("latest reward: %w", err)
	}
	// the start epoch only positions an empty ledger; afterwards epochs stay contiguous
	next := r.cfg.StartEpoch
	if latest != nil {
		next = latest.Epoch + 1
	}
	if next == 0 {
		next = 1
	}

	current, err := r.chain.CurrentEpoch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("current epoch: %w", err)
	}

	result := Result{Status: StatusNoChange}
	for epoch := next; epoch < current && result.EpochsAppended < r.cfg.MaxEpochsPerPass; epoch++ {
		available, err := r.chain.ContributionAvailable(ctx, epoch)
		if err != nil {
			return Result{}, fmt.Errorf("contribution available %d: %w", epoch, err)
		}
		if !available {
			r.logger.Debug("contribution not finalized", zap.Uint64("epoch", epoch))
			break
		}

		inputs, err := r.chain.EpochInputs(ctx, epoch, r.cfg.Operator)
		if err != nil {
			return Result{}, fmt.Errorf("epoch inputs %d: %w", epoch, err)
		}
		breakdown, err := Calculate(inputs)
		if err != nil {
			return Result{}, err
		}

		if err := r.store.UpsertReward(ctx, model.ValidatorReward{
			OperatorAddress: r.operator,
			Epoch:           epoch,
			Amount:          breakdown.OperatorReward,
			Claimed:         epoch <= watermark,
		}); err != nil {
			return Result{}, fmt.Errorf("store reward epoch %d: %w", epoch, err)
		}

		r.logger.Info("epoch reward",
			zap.Uint64("epoch", epoch),
			zap.String("total", breakdown.TotalReward.String()),
			zap.String("operator_reward", breakdown.OperatorReward.String()),
		)
		result = Result{
			Status:         StatusNewReward,
			Epoch:          epoch,
			Amount:         breakdown.OperatorReward,
			EpochsAppended: result.EpochsAppended + 1,
		}
	}

	if result.Status == StatusNoChange && latest == nil {
		return r.bootstrap(ctx, watermark)
	}
	return result, nil
}

// bootstrap seeds an empty ledger from the raw claimable total so the first
// accrual is not lost when it predates the service.
func (r *Reconciler) bootstrap(ctx context.Context, watermark uint64) (Result, error) {
	claimable, err := r.chain.ClaimableOperatorRewards(ctx, r.cfg.Operator)
	if err != nil {
		return Result{}, fmt.Errorf("claimable rewards: %w", err)
	}
	if claimable.Sign() <= 0 {
		return Result{Status: StatusNoChange}, nil
	}

	epoch := watermark + 1
	if err := r.store.UpsertReward(ctx, model.ValidatorReward{
		OperatorAddress: r.operator,
		Epoch:           epoch,
		Amount:          claimable,
	}); err != nil {
		return Result{}, fmt.Errorf("store initial reward: %w", err)
	}

	r.logger.Info("ledger initialized", zap.Uint64("epoch", epoch), zap.String("amount", claimable.String()))
	return Result{Status: StatusInitialized, Epoch: epoch, Amount: claimable, EpochsAppended: 1}, nil
}
