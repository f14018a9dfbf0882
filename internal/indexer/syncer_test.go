package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"rewardLedger/internal/model"
	"rewardLedger/internal/storage"
	"rewardLedger/internal/storage/memory"
)

var contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fakeSource struct {
	mu       sync.Mutex
	head     uint64
	headErr  error
	logsErr  error
	logs     []types.Log
	queries  []BlockRange
	failures int
}

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, address common.Address, _ *common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, BlockRange{From: from, To: to})
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("transient")
	}
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	var out []types.Log
	for _, log := range f.logs {
		if log.Address == address && log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

type gaugeRecorder struct{ last uint64 }

func (g *gaugeRecorder) SetCursorBlock(block uint64) { g.last = block }

func testLog(block uint64, tx byte, index uint) types.Log {
	return types.Log{
		Address:     contractAddr,
		BlockNumber: block,
		BlockHash:   common.BytesToHash([]byte{byte(block)}),
		TxHash:      common.BytesToHash([]byte{tx}),
		Index:       index,
		Topics:      []common.Hash{common.HexToHash("0x01")},
		Data:        []byte{0xde, 0xad},
	}
}

func newTestSyncer(t *testing.T, cfg SyncConfig, source LogSource, store storage.CursorStore) *Syncer {
	t.Helper()
	cfg.Address = contractAddr
	cfg.Retry = RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}
	syncer, err := NewSyncer(cfg, source, store, nil, nil)
	require.NoError(t, err)
	return syncer
}

func cursor(t *testing.T, store *memory.Store) uint64 {
	t.Helper()
	value, ok, err := store.LoadCursor(context.Background(), model.EventSyncerCursor)
	require.NoError(t, err)
	require.True(t, ok)
	return value
}

func TestSyncerInitializesCursorFromStartBlock(t *testing.T) {
	store := memory.NewStore()
	source := &fakeSource{head: 99}
	syncer := newTestSyncer(t, SyncConfig{StartBlock: 100}, source, store)

	res, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncNoChange, res.Status)
	require.Equal(t, uint64(99), cursor(t, store))
	require.Empty(t, source.queries)
}

func TestSyncerIngestsAndAdvances(t *testing.T) {
	store := memory.NewStore()
	source := &fakeSource{head: 110, logs: []types.Log{
		testLog(100, 1, 0),
		testLog(100, 1, 1),
		testLog(105, 2, 0),
		testLog(108, 3, 4),
		testLog(110, 4, 0),
	}}
	syncer := newTestSyncer(t, SyncConfig{StartBlock: 100}, source, store)

	res, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncSynced, res.Status)
	require.Equal(t, uint64(100), res.From)
	require.Equal(t, uint64(110), res.To)
	require.Equal(t, 5, res.Logs)
	require.Equal(t, int64(5), res.Inserted)
	require.Equal(t, uint64(110), cursor(t, store))

	events, total, err := store.ListEvents(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Equal(t, uint64(110), events[0].BlockNumber)
	require.Equal(t, "0x00000000000000000000000000000000000000aa", events[0].Address)
	require.Equal(t, "0xdead", events[0].Data)

	res, err = syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncNoChange, res.Status)
	require.Len(t, source.queries, 1)
}

func TestSyncerIsIdempotentOnReplay(t *testing.T) {
	store := memory.NewStore()
	logs := []types.Log{testLog(10, 1, 0), testLog(11, 1, 1), testLog(12, 2, 0), testLog(13, 3, 0), testLog(14, 4, 0)}
	source := &fakeSource{head: 14, logs: logs}
	syncer := newTestSyncer(t, SyncConfig{StartBlock: 10}, source, store)

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)

	// replay the same range as if the cursor commit had been lost
	inserted, err := store.CommitRange(context.Background(), model.EventSyncerCursor, []model.ContractEvent{
		buildContractEvent(logs[0]), buildContractEvent(logs[3]),
	}, 14)
	require.NoError(t, err)
	require.Zero(t, inserted)

	_, total, err := store.ListEvents(context.Background(), 0, 100)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
}

func TestSyncerAdvancesOverEmptyRange(t *testing.T) {
	store := memory.NewStore()
	source := &fakeSource{head: 50}
	gauge := &gaugeRecorder{}
	syncer, err := NewSyncer(SyncConfig{Address: contractAddr, StartBlock: 1}, source, store, gauge, nil)
	require.NoError(t, err)

	res, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncSynced, res.Status)
	require.Zero(t, res.Logs)
	require.Equal(t, uint64(50), cursor(t, store))
	require.Equal(t, uint64(50), gauge.last)
}

func TestSyncerSplitsLargeRanges(t *testing.T) {
	store := memory.NewStore()
	source := &fakeSource{head: 25, logs: []types.Log{testLog(3, 1, 0), testLog(21, 2, 0)}}
	syncer := newTestSyncer(t, SyncConfig{StartBlock: 1, MaxBlockRange: 10}, source, store)

	res, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Inserted)
	require.Equal(t, []BlockRange{{1, 10}, {11, 20}, {21, 25}}, source.queries)
	require.Equal(t, uint64(25), cursor(t, store))
}

func TestSyncerRPCErrorLeavesCursor(t *testing.T) {
	store := memory.NewStore()
	source := &fakeSource{head: 20, logsErr: errors.New("rpc unavailable")}
	syncer := newTestSyncer(t, SyncConfig{StartBlock: 5}, source, store)

	_, err := syncer.Run(context.Background())
	require.ErrorContains(t, err, "rpc unavailable")
	require.Equal(t, uint64(4), cursor(t, store))
	require.Len(t, source.queries, 3)
}

func TestSyncerRetriesTransientFailures(t *testing.T) {
	store := memory.NewStore()
	source := &fakeSource{head: 20, failures: 2, logs: []types.Log{testLog(20, 9, 0)}}
	syncer := newTestSyncer(t, SyncConfig{StartBlock: 20}, source, store)

	res, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Inserted)
}

func TestSyncerSkipsRemovedLogs(t *testing.T) {
	store := memory.NewStore()
	removed := testLog(7, 5, 0)
	removed.Removed = true
	source := &fakeSource{head: 8, logs: []types.Log{removed, testLog(8, 6, 0)}}
	syncer := newTestSyncer(t, SyncConfig{StartBlock: 7}, source, store)

	res, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Logs)
}

func TestSyncerCursorNeverRegresses(t *testing.T) {
	store := memory.NewStore()
	source := &fakeSource{head: 30}
	syncer := newTestSyncer(t, SyncConfig{StartBlock: 1}, source, store)

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)

	// a head behind the cursor is a no-op, not a rewind
	source.mu.Lock()
	source.head = 12
	source.mu.Unlock()
	res, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncNoChange, res.Status)
	require.Equal(t, uint64(30), cursor(t, store))

	_, err = store.CommitRange(context.Background(), model.EventSyncerCursor, nil, 12)
	require.ErrorIs(t, err, storage.ErrCursorRegression)
}

func TestNewSyncerValidates(t *testing.T) {
	_, err := NewSyncer(SyncConfig{}, &fakeSource{}, memory.NewStore(), nil, nil)
	require.Error(t, err)
	_, err = NewSyncer(SyncConfig{Address: contractAddr}, nil, memory.NewStore(), nil, nil)
	require.Error(t, err)
}
