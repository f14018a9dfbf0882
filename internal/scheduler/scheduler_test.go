package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type passResult struct {
	status string
	at     time.Time
}

func (r passResult) Label() string { return r.status }

type fakeTask struct {
	runs    *atomic.Int64
	mu      sync.Mutex
	err     error
	panics  bool
	release chan struct{}
	entered chan struct{}
}

func newFakeTask() *fakeTask {
	return &fakeTask{runs: atomic.NewInt64(0)}
}

func (t *fakeTask) Name() string { return "fake" }

func (t *fakeTask) Skipped(at time.Time) passResult {
	return passResult{status: StatusSkipped, at: at}
}

func (t *fakeTask) setErr(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

func (t *fakeTask) Run(ctx context.Context) (passResult, error) {
	t.runs.Inc()
	if t.entered != nil {
		t.entered <- struct{}{}
	}
	if t.release != nil {
		<-t.release
	}
	t.mu.Lock()
	err, panics := t.err, t.panics
	t.mu.Unlock()
	if panics {
		panic("boom")
	}
	if err != nil {
		return passResult{}, err
	}
	return passResult{status: "synced"}, nil
}

func TestStartIsIdempotent(t *testing.T) {
	task := newFakeTask()
	s := New[passResult](task, Config{Interval: time.Hour}, zap.NewNop(), nil)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.True(t, s.Running())
	require.Equal(t, int64(1), task.runs.Load())

	s.Stop()
	s.Stop()
	require.False(t, s.Running())
	require.NoError(t, s.Wait(context.Background()))
}

func TestStopBeforeStart(t *testing.T) {
	s := New[passResult](newFakeTask(), Config{Interval: time.Second}, nil, nil)
	s.Stop()
	require.False(t, s.Running())
	require.NoError(t, s.Wait(context.Background()))
}

func TestStartPropagatesInitialError(t *testing.T) {
	task := newFakeTask()
	task.setErr(errors.New("rpc down"))
	s := New[passResult](task, Config{Interval: time.Hour}, nil, nil)

	err := s.Start(context.Background())
	require.ErrorContains(t, err, "rpc down")
	require.False(t, s.Running())

	task.setErr(nil)
	require.NoError(t, s.Start(context.Background()))
	require.True(t, s.Running())
	s.Stop()
}

func TestStartFailsWhenRefreshInFlight(t *testing.T) {
	task := newFakeTask()
	task.release = make(chan struct{})
	task.entered = make(chan struct{}, 1)
	s := New[passResult](task, Config{Interval: time.Hour}, nil, nil)

	refreshed := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		refreshed <- err
	}()
	<-task.entered

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrPassInFlight)
	require.False(t, s.Running())

	close(task.release)
	require.NoError(t, <-refreshed)

	task.release = nil
	task.entered = nil
	require.NoError(t, s.Start(context.Background()))
	require.True(t, s.Running())
	require.Equal(t, int64(2), task.runs.Load())
	s.Stop()
	require.NoError(t, s.Wait(context.Background()))
}

func TestStartRejectsZeroInterval(t *testing.T) {
	s := New[passResult](newFakeTask(), Config{}, nil, nil)
	require.Error(t, s.Start(context.Background()))
}

func TestRefreshSkipsWhileInFlight(t *testing.T) {
	task := newFakeTask()
	task.release = make(chan struct{})
	task.entered = make(chan struct{}, 1)
	s := New[passResult](task, Config{Interval: time.Hour}, nil, nil)

	first := make(chan passResult, 1)
	go func() {
		res, err := s.Refresh(context.Background())
		require.NoError(t, err)
		first <- res
	}()
	<-task.entered

	for i := 0; i < 3; i++ {
		res, err := s.Refresh(context.Background())
		require.NoError(t, err)
		require.Equal(t, StatusSkipped, res.Label())
		require.False(t, res.at.IsZero())
	}

	close(task.release)
	require.Equal(t, "synced", (<-first).Label())
	require.Equal(t, int64(1), task.runs.Load())

	task.release = nil
	task.entered = nil
	res, err := s.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "synced", res.Label())
}

func TestRefreshPropagatesError(t *testing.T) {
	task := newFakeTask()
	task.setErr(errors.New("store unavailable"))
	s := New[passResult](task, Config{Interval: time.Hour}, nil, nil)

	_, err := s.Refresh(context.Background())
	require.ErrorContains(t, err, "store unavailable")

	// the guard is released after a failed pass
	task.setErr(nil)
	res, err := s.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "synced", res.Label())
}

func TestTickErrorsAreLoggedAndLoopSurvives(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	task := newFakeTask()
	s := New[passResult](task, Config{Interval: 5 * time.Millisecond}, zap.New(core), nil)

	require.NoError(t, s.Start(context.Background()))
	task.setErr(errors.New("flaky"))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("scheduled pass failed").Len() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	require.True(t, s.Running())

	entry := logs.FilterMessage("scheduled pass failed").All()[0]
	require.Equal(t, "fake", entry.ContextMap()["loop"])

	s.Stop()
	require.NoError(t, s.Wait(context.Background()))
}

func TestTickPanicIsRecovered(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	task := newFakeTask()
	s := New[passResult](task, Config{Interval: 5 * time.Millisecond}, zap.New(core), nil)

	require.NoError(t, s.Start(context.Background()))
	task.mu.Lock()
	task.panics = true
	task.mu.Unlock()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("scheduled pass failed").Len() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	require.NoError(t, s.Wait(context.Background()))
}

func TestStopHaltsTicks(t *testing.T) {
	task := newFakeTask()
	s := New[passResult](task, Config{Interval: 5 * time.Millisecond}, nil, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return task.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	require.NoError(t, s.Wait(context.Background()))
	after := task.runs.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, task.runs.Load())
}

type countingObserver struct {
	mu     sync.Mutex
	passes map[string]int
	errors int
}

func (o *countingObserver) ObservePass(_ string, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.passes == nil {
		o.passes = map[string]int{}
	}
	o.passes[status]++
}

func (o *countingObserver) IncTickError(string) {
	o.mu.Lock()
	o.errors++
	o.mu.Unlock()
}

func TestObserverSeesPasses(t *testing.T) {
	obs := &countingObserver{}
	s := New[passResult](newFakeTask(), Config{Interval: time.Hour}, nil, obs)

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, 1, obs.passes["synced"])
	require.Zero(t, obs.errors)
}
