// Package scheduler drives recurring analytics runs from the schedules table.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mutsynchub/poslens/internal/pipeline"
	"github.com/mutsynchub/poslens/internal/storage"
)

// DefaultTick is the cadence check interval.
const DefaultTick = time.Minute

// ScheduleStore provides due-schedule lookup and cadence advancement.
type ScheduleStore interface {
	DueSchedules(now time.Time) ([]storage.Schedule, error)
	AdvanceSchedule(id string, nextRun time.Time) error
}

// AnalyticsRunner executes one analytics cycle for a tenant.
type AnalyticsRunner interface {
	Run(ctx context.Context, tenantID, analytic string) (pipeline.Result, error)
}

// Scheduler polls for due schedules and dispatches runs concurrently, with at
// most one outstanding run per (tenant, analytic). A schedule that comes due
// while its run is still in flight is skipped and logged, never queued.
type Scheduler struct {
	store  ScheduleStore
	runner AnalyticsRunner
	tick   time.Duration
	limit  int
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a Scheduler. tick <= 0 defaults to 1 minute; limit <= 0 to 4
// concurrent runs.
func New(store ScheduleStore, runner AnalyticsRunner, tick time.Duration, limit int) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	if limit <= 0 {
		limit = 4
	}
	return &Scheduler{
		store:    store,
		runner:   runner,
		tick:     tick,
		limit:    limit,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
		inFlight: make(map[string]struct{}),
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Dispatch(ctx)
		}
	}
}

// Dispatch runs every due schedule once, waiting for the batch to finish.
// The cadence is advanced whether or not the run succeeds, so a tenant with
// no data or a transient failure retries next cycle instead of every tick.
func (s *Scheduler) Dispatch(ctx context.Context) {
	now := s.now()
	due, err := s.store.DueSchedules(now)
	if err != nil {
		s.logger.Error("listing due schedules", "error", err)
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, sch := range due {
		sch := sch
		if !s.claim(sch.TenantID, sch.Analytic) {
			s.logger.Warn("skipping schedule, previous run still in flight",
				"tenant", sch.TenantID, "analytic", sch.Analytic, "schedule", sch.ID)
			continue
		}
		g.Go(func() error {
			defer s.release(sch.TenantID, sch.Analytic)
			s.runOne(ctx, sch)
			return nil
		})
	}
	g.Wait()
}

func (s *Scheduler) runOne(ctx context.Context, sch storage.Schedule) {
	started := s.now()
	_, err := s.runner.Run(ctx, sch.TenantID, sch.Analytic)
	switch {
	case err == nil:
		s.logger.Info("scheduled run completed",
			"tenant", sch.TenantID, "analytic", sch.Analytic, "took", s.now().Sub(started))
	case errors.Is(err, storage.ErrNoData):
		s.logger.Info("scheduled run skipped, no data",
			"tenant", sch.TenantID, "analytic", sch.Analytic)
	default:
		s.logger.Error("scheduled run failed",
			"tenant", sch.TenantID, "analytic", sch.Analytic, "error", err)
	}

	next := sch.NextAfter(s.now())
	if err := s.store.AdvanceSchedule(sch.ID, next); err != nil {
		s.logger.Error("advancing schedule", "schedule", sch.ID, "error", err)
	}
}

func (s *Scheduler) claim(tenantID, analytic string) bool {
	key := tenantID + "/" + analytic
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *Scheduler) release(tenantID, analytic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, tenantID+"/"+analytic)
}
