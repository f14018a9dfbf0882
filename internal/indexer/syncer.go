package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"rewardLedger/internal/model"
	"rewardLedger/internal/scheduler"
	"rewardLedger/internal/storage"
)

// LogSource is the slice of the chain client the syncer needs.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 *common.Hash) ([]types.Log, error)
}

// CursorGauge receives the committed cursor position.
type CursorGauge interface {
	SetCursorBlock(block uint64)
}

// SyncConfig holds runtime settings for the event syncer.
type SyncConfig struct {
	CursorName string
	Address    common.Address
	Topic0     *common.Hash
	StartBlock uint64
	// MaxBlockRange caps a single eth_getLogs query; zero scans the whole
	// pending range at once.
	MaxBlockRange uint64
	Retry         RetryPolicy
}

type SyncStatus string

const (
	SyncSkipped  SyncStatus = scheduler.StatusSkipped
	SyncNoChange SyncStatus = "no-change"
	SyncSynced   SyncStatus = "synced"
)

// SyncResult describes the outcome of one syncer pass.
type SyncResult struct {
	Status    SyncStatus `json:"status"`
	From      uint64     `json:"fromBlock,omitempty"`
	To        uint64     `json:"toBlock,omitempty"`
	Logs      int        `json:"logs"`
	Inserted  int64      `json:"inserted"`
	Timestamp time.Time  `json:"timestamp"`
}

func (r SyncResult) Label() string { return string(r.Status) }

// Syncer copies logs of one contract into the store, advancing a persistent
// cursor in the same transaction as the rows of each range.
type Syncer struct {
	cfg    SyncConfig
	source LogSource
	store  storage.CursorStore
	gauge  CursorGauge
	logger *zap.Logger
	now    func() time.Time
}

var _ scheduler.Task[SyncResult] = (*Syncer)(nil)

// NewSyncer builds a Syncer with its dependencies. gauge may be nil.
func NewSyncer(cfg SyncConfig, source LogSource, store storage.CursorStore, gauge CursorGauge, logger *zap.Logger) (*Syncer, error) {
	if source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("cursor store is nil")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("contract address is required")
	}
	if cfg.CursorName == "" {
		cfg.CursorName = model.EventSyncerCursor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		cfg:    cfg,
		source: source,
		store:  store,
		gauge:  gauge,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Syncer) Name() string { return "event-syncer" }

func (s *Syncer) Skipped(at time.Time) SyncResult {
	return SyncResult{Status: SyncSkipped, Timestamp: at}
}

// Run executes one pass over [cursor+1, head].
func (s *Syncer) Run(ctx context.Context) (SyncResult, error) {
	last, err := s.store.EnsureCursor(ctx, s.cfg.CursorName, model.InitialCursorBlock(s.cfg.StartBlock))
	if err != nil {
		return SyncResult{}, fmt.Errorf("ensure cursor: %w", err)
	}

	head, err := s.latestBlockWithRetry(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("get latest block: %w", err)
	}

	from := last + 1
	if from > head {
		s.logger.Debug("nothing to sync", zap.Uint64("from", from), zap.Uint64("head", head))
		return SyncResult{Status: SyncNoChange, Timestamp: s.now()}, nil
	}

	ranges := planRanges(from, head, s.cfg.MaxBlockRange)
	if len(ranges) > 1 {
		s.logger.Debug("range split",
			zap.Uint64("from", from),
			zap.Uint64("head", head),
			zap.Int("queries", len(ranges)),
		)
	}

	result := SyncResult{Status: SyncSynced, From: from, To: head}
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return SyncResult{}, ctx.Err()
		default:
		}

		logs, err := s.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return SyncResult{}, fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}

		events := make([]model.ContractEvent, 0, len(logs))
		for _, log := range logs {
			if log.Removed {
				continue
			}
			events = append(events, buildContractEvent(log))
		}

		inserted, err := s.store.CommitRange(ctx, s.cfg.CursorName, events, blockRange.To)
		if err != nil {
			return SyncResult{}, fmt.Errorf("commit range %d-%d: %w", blockRange.From, blockRange.To, err)
		}
		if s.gauge != nil {
			s.gauge.SetCursorBlock(blockRange.To)
		}

		result.Logs += len(events)
		result.Inserted += inserted
		s.logger.Info("range committed",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Uint64("blocks", blockRange.Blocks()),
			zap.Int("logs", len(events)),
			zap.Int64("inserted", inserted),
		)
	}

	result.Timestamp = s.now()
	return result, nil
}

func (s *Syncer) latestBlockWithRetry(ctx context.Context) (uint64, error) {
	var head uint64
	err := withRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var err error
		head, err = s.source.LatestBlockNumber(ctx)
		if err != nil {
			s.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return head, err
}

func (s *Syncer) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var err error
		logs, err = s.source.FilterLogs(ctx, fromBlock, toBlock, s.cfg.Address, s.cfg.Topic0)
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}
