package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crono-backend/internal/activity/domain"
	"crono-backend/internal/activity/repository"
	"crono-backend/internal/notification"
	"crono-backend/pkg/clock"
	"crono-backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config tunes one Scanner
type Config struct {
	Grace            time.Duration
	Workers          int
	OperationTimeout time.Duration
	Dispatch         DispatchPolicy
	Location         *time.Location
	Policy           Policy
}

func DefaultConfig() Config {
	return Config{
		Grace:            domain.DueGrace,
		Workers:          4,
		OperationTimeout: 10 * time.Second,
		Dispatch:         DispatchCommit,
		Location:         time.UTC,
		Policy:           DefaultPolicy(),
	}
}

// CycleReport summarises one scan cycle
type CycleReport struct {
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Candidates     int             `json:"candidates"`
	Outcomes       map[Outcome]int `json:"outcomes"`
	DispatchErrors int             `json:"dispatch_errors"`
	Items          []ItemResult    `json:"-"`
}

// Count returns how many candidates ended with o
func (r CycleReport) Count(o Outcome) int {
	return r.Outcomes[o]
}

// Scanner runs the select, gate and process pipeline once per call
type Scanner struct {
	selector  *Selector
	processor *Processor
	workers   int
	clock     clock.Clock
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(
	cfg Config,
	activities repository.ActivityRepository,
	owners repository.OwnerRepository,
	snapshots repository.SnapshotRepository,
	notifier notification.Notifier,
	clk clock.Clock,
	l *zap.Logger,
) *Scanner {
	def := DefaultConfig()
	if cfg.Grace <= 0 {
		cfg.Grace = def.Grace
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = def.OperationTimeout
	}
	if cfg.Dispatch == "" {
		cfg.Dispatch = def.Dispatch
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Policy.MaxSends <= 0 {
		cfg.Policy = def.Policy
	}
	if clk == nil {
		clk = clock.System{}
	}
	l = logger.OrNop(l).Named("scanner")

	return &Scanner{
		selector: &Selector{
			activities: activities,
			grace:      cfg.Grace,
			opTimeout:  cfg.OperationTimeout,
			logger:     l,
		},
		processor: &Processor{
			activities: activities,
			owners:     owners,
			snapshots:  snapshots,
			cards:      repository.NewCardResolver(activities),
			composer:   notification.NewComposer(cfg.Location),
			notifier:   notifier,
			policy:     cfg.Policy,
			planner:    Planner{MaxSends: cfg.Policy.MaxSends, Location: cfg.Location},
			dispatch:   cfg.Dispatch,
			opTimeout:  cfg.OperationTimeout,
			logger:     l,
		},
		workers:  cfg.Workers,
		clock:    clk,
		logger:   l,
		inFlight: make(map[string]struct{}),
	}
}

// RunCycle executes one full scan. The returned error is set only when
// candidate selection fails; per-item failures are in the report.
func (s *Scanner) RunCycle(ctx context.Context) (CycleReport, error) {
	now := s.clock.Now()
	report := CycleReport{StartedAt: now, Outcomes: make(map[Outcome]int)}

	candidates, err := s.selector.Select(ctx, now)
	if err != nil {
		report.FinishedAt = s.clock.Now()
		return report, fmt.Errorf("select candidates: %w", err)
	}
	report.Candidates = len(candidates)

	results := make([]ItemResult, len(candidates))
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i, a := range candidates {
		g.Go(func() error {
			results[i] = s.processOne(ctx, a, now)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		report.Outcomes[res.Outcome]++
		if res.DispatchErr != nil {
			report.DispatchErrors++
		}
		s.logResult(res)
	}
	report.Items = results
	report.FinishedAt = s.clock.Now()

	s.logger.Info("scan cycle finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("archived", report.Count(OutcomeArchived)),
		zap.Int("abandoned", report.Count(OutcomeAbandoned)),
		zap.Int("rolled_over", report.Count(OutcomeRolledOver)),
		zap.Int("notified", report.Count(OutcomeNotified)),
		zap.Int("failed", report.Count(OutcomeFailed)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (s *Scanner) processOne(ctx context.Context, a *domain.Activity, now time.Time) ItemResult {
	if !s.acquire(a.ID) {
		return ItemResult{Ref: a.Ref(), Outcome: OutcomeInFlight}
	}
	defer s.release(a.ID)
	// cycle-level stop: items not yet started are skipped
	if err := ctx.Err(); err != nil {
		return ItemResult{Ref: a.Ref(), Outcome: OutcomeFailed, Err: fmt.Errorf("cycle cancelled: %w", err)}
	}
	return s.processor.Process(ctx, a, now)
}

// acquire claims the logical activity id; both shapes share one key
func (s *Scanner) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scanner) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

func (s *Scanner) logResult(res ItemResult) {
	fields := []zap.Field{
		zap.String("activity_id", res.Ref.ID),
		zap.String("owner_id", res.Ref.OwnerID),
		zap.String("shape", string(res.Ref.Shape)),
		zap.String("outcome", string(res.Outcome)),
	}
	switch {
	case res.Outcome == OutcomeFailed:
		s.logger.Error("activity processing failed", append(fields, zap.Error(res.Err))...)
	case res.DispatchErr != nil:
		s.logger.Warn("activity processed with dispatch error", append(fields, zap.NamedError("dispatch_error", res.DispatchErr))...)
	case res.Outcome == OutcomeIneligible:
		s.logger.Debug("activity skipped", fields...)
	default:
		s.logger.Info("activity processed", append(fields, zap.Bool("simulated", res.Delivery.Simulated))...)
	}
}
