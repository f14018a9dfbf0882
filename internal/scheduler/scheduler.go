package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// StatusSkipped is the label every task uses for a single-flight collision.
const StatusSkipped = "skipped"

// ErrPassInFlight is returned by Start when its initial pass collides with a
// Refresh that is still running.
var ErrPassInFlight = errors.New("pass already in flight")

// Result is implemented by every pass result so it can be labelled in logs
// and metrics.
type Result interface {
	Label() string
}

// Task is one reconciliation pass driven by a Scheduler.
type Task[R Result] interface {
	Name() string
	Run(ctx context.Context) (R, error)
	// Skipped builds the result returned when a pass is already in flight.
	Skipped(at time.Time) R
}

// Observer receives pass outcomes. *metrics.Recorder satisfies it.
type Observer interface {
	ObservePass(loop, status string, took time.Duration)
	IncTickError(loop string)
}

type nopObserver struct{}

func (nopObserver) ObservePass(string, string, time.Duration) {}
func (nopObserver) IncTickError(string)                       {}

// Config controls the recurring trigger.
type Config struct {
	Interval time.Duration
}

type state int

const (
	stateStopped state = iota
	stateRunning
)

// running is owned by the Running state; releasing it cancels the ticker.
type running struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler runs a Task on a fixed interval with a manual Refresh path. At
// most one pass executes at a time; overlapping requests get a skipped result.
type Scheduler[R Result] struct {
	task     Task[R]
	cfg      Config
	logger   *zap.Logger
	observer Observer
	now      func() time.Time

	inFlight *atomic.Bool
	passMu   sync.Mutex

	mu       sync.Mutex
	state    state
	run      *running
	lastDone chan struct{}
}

func New[R Result](task Task[R], cfg Config, logger *zap.Logger, observer Observer) *Scheduler[R] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Scheduler[R]{
		task:     task,
		cfg:      cfg,
		logger:   logger.With(zap.String("loop", task.Name())),
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
		inFlight: atomic.NewBool(false),
	}
}

// Start runs one pass synchronously and, if it succeeds, arms the recurring
// trigger. Calling Start while running is a no-op. A skipped initial pass
// counts as a failure.
func (s *Scheduler[R]) Start(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", s.task.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateRunning {
		return nil
	}

	s.logger.Info("starting", zap.Duration("interval", s.cfg.Interval))

	res, err := s.execute(ctx)
	if err != nil {
		return fmt.Errorf("initial %s pass: %w", s.task.Name(), err)
	}
	if res.Label() == StatusSkipped {
		return fmt.Errorf("initial %s pass: %w", s.task.Name(), ErrPassInFlight)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r := &running{cancel: cancel, done: make(chan struct{})}
	s.run = r
	s.state = stateRunning

	go s.loop(loopCtx, context.WithoutCancel(ctx), r.done)
	return nil
}

// Stop cancels the recurring trigger. A pass already in flight runs to
// completion; use Wait to block on it. Safe to call at any time.
func (s *Scheduler[R]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateRunning {
		return
	}
	s.run.cancel()
	s.lastDone = s.run.done
	s.run = nil
	s.state = stateStopped
	s.logger.Info("stopped")
}

// Running reports whether the recurring trigger is armed.
func (s *Scheduler[R]) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

// Wait blocks until the ticker goroutine has exited and no pass is in flight.
func (s *Scheduler[R]) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.lastDone
	if s.run != nil {
		done = s.run.done
	}
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	drained := make(chan struct{})
	go func() {
		s.passMu.Lock()
		s.passMu.Unlock()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh runs a pass now and returns its result. It never waits for an
// in-flight pass: a collision returns the task's skipped result.
func (s *Scheduler[R]) Refresh(ctx context.Context) (R, error) {
	return s.execute(ctx)
}

func (s *Scheduler[R]) loop(ctx context.Context, passCtx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(passCtx)
		}
	}
}

func (s *Scheduler[R]) tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logTickError(fmt.Errorf("panic: %v", rec))
		}
	}()
	if _, err := s.execute(ctx); err != nil {
		s.logTickError(err)
	}
}

// logTickError is the only place scheduled-pass errors are reported.
func (s *Scheduler[R]) logTickError(err error) {
	s.observer.IncTickError(s.task.Name())
	s.logger.Error("scheduled pass failed", zap.Error(err))
}

func (s *Scheduler[R]) execute(ctx context.Context) (R, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		result := s.task.Skipped(s.now())
		s.observer.ObservePass(s.task.Name(), result.Label(), 0)
		s.logger.Debug("pass already in flight, skipping")
		return result, nil
	}
	s.passMu.Lock()
	defer func() {
		s.passMu.Unlock()
		s.inFlight.Store(false)
	}()

	started := s.now()
	result, err := s.task.Run(ctx)
	if err != nil {
		return result, err
	}
	took := s.now().Sub(started)
	s.observer.ObservePass(s.task.Name(), result.Label(), took)
	s.logger.Debug("pass complete", zap.String("status", result.Label()), zap.Duration("took", took))
	return result, nil
}
