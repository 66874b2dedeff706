package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"crono-backend/internal/activity/scanner"
	"crono-backend/pkg/logger"

	"go.uber.org/zap"
)

// ErrCycleInProgress is returned by RunOnce when another cycle holds the flag
var ErrCycleInProgress = errors.New("scan cycle already in progress")

// CycleRunner executes one scan cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (scanner.CycleReport, error)
}

// ScanScheduler runs the overdue scan on a fixed cadence and on demand.
// Cycles never overlap: a call arriving while one runs is skipped.
type ScanScheduler struct {
	runner   CycleRunner
	interval time.Duration
	logger   *zap.Logger

	running  atomic.Bool
	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewScanScheduler creates a scheduler; interval <= 0 means one minute
func NewScanScheduler(runner CycleRunner, interval time.Duration, l *zap.Logger) *ScanScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ScanScheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.OrNop(l).Named("scheduler"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one cycle immediately, then one per interval. Calling Start
// twice has no effect.
func (s *ScanScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.logger.Info("starting overdue scan scheduler", zap.Duration("interval", s.interval))

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopChan:
				s.logger.Info("scheduler stopped")
				return
			}
		}
	}()
}

// Stop prevents further cycles and waits for a running one to finish
func (s *ScanScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.mu.Unlock()
	<-s.done
}

// Shutdown adapts Stop to a lifecycle hook, giving up when ctx expires
func (s *ScanScheduler) Shutdown(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a cycle is executing right now
func (s *ScanScheduler) Running() bool {
	return s.running.Load()
}

// RunOnce runs a cycle synchronously, or returns ErrCycleInProgress
// without running anything when a cycle is already executing.
func (s *ScanScheduler) RunOnce(ctx context.Context) (scanner.CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("scan cycle skipped, previous cycle still running")
		return scanner.CycleReport{}, ErrCycleInProgress
	}
	defer s.running.Store(false)
	return s.runner.RunCycle(ctx)
}

func (s *ScanScheduler) tick() {
	_, err := s.RunOnce(context.Background())
	switch {
	case errors.Is(err, ErrCycleInProgress):
	case err != nil:
		s.logger.Error("scan cycle failed", zap.Error(err))
	}
}
