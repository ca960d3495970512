// Package scheduling fires scheduled queries on their cron or interval
// schedules and records each execution.
package scheduling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"query-scheduler/internal/domain"
	"query-scheduler/internal/estimate"
)

// Scheduler manages cron-based execution of scheduled queries.
type Scheduler struct {
	cron    *cron.Cron
	queries domain.ScheduledQueryRepository
	runner  domain.QueryRunner
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	entries  map[string]cron.EntryID // query ID → cron entry
	inflight map[string]bool
	stopped  bool
	wg       sync.WaitGroup // one per claimed run
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock used to stamp executions.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a new scheduler. Call Start to begin firing.
func NewScheduler(queries domain.ScheduledQueryRepository, runner domain.QueryRunner, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		queries:  queries,
		runner:   runner,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]cron.EntryID),
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads all scheduled queries and starts the cron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("query scheduler started")
	return nil
}

// Stop stops firing and waits for running executions to finish or ctx to
// be done. RunNow is refused afterwards.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("query scheduler stop timed out", "error", ctx.Err())
	}
	s.logger.Info("query scheduler stopped")
}

// Reload clears all cron entries and rebuilds them from the repository.
func (s *Scheduler) Reload(ctx context.Context) error {
	queries, err := s.queries.ListAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[string]cron.EntryID, len(queries))

	now := s.now()
	for _, q := range queries {
		sched, err := estimate.Compile(q.Schedule)
		if err != nil {
			s.logger.Warn("invalid schedule", "query", q.ID, "schedule", q.Schedule.String(), "error", err)
			continue
		}
		id := q.ID
		s.entries[id] = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id) }))
		s.updateNext(ctx, q, now)
	}
	s.logger.Debug("schedules loaded", "count", len(s.entries))
	return nil
}

// Scheduled reports whether the query has a live cron entry.
func (s *Scheduler) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// RunNow queues an execution outside the schedule and returns once it is
// recorded as QUEUED. The execution itself continues in the background.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	q, err := s.queries.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.claim(id); err != nil {
		return err
	}

	queued := domain.Execution{Status: domain.ExecutionStatusQueued, StartedAt: s.now()}
	if err := s.queries.RecordExecutionResult(ctx, id, queued); err != nil {
		s.release(id)
		return err
	}

	go func() {
		defer s.release(id)
		s.execute(context.WithoutCancel(ctx), q)
	}()
	return nil
}

func (s *Scheduler) fire(id string) {
	ctx := context.Background()
	if err := s.claim(id); err != nil {
		s.logger.Info("skipping run", "query", id, "reason", err)
		return
	}
	defer s.release(id)

	q, err := s.queries.Get(ctx, id)
	if err != nil {
		s.logger.Warn("scheduled trigger failed", "query", id, "error", err)
		return
	}
	s.execute(ctx, q)
}

// execute runs q and records RUNNING then SUCCEEDED or FAILED.
func (s *Scheduler) execute(ctx context.Context, q *domain.ScheduledQuery) {
	started := s.now()
	if err := s.queries.RecordExecutionStart(ctx, q.ID, started); err != nil {
		s.logger.Warn("record execution start", "query", q.ID, "error", err)
		return
	}

	res, runErr := s.runner.Run(ctx, q.ConnectionID, q.SQLText)
	completed := s.now()
	exec := domain.Execution{
		Status:      domain.ExecutionStatusSucceeded,
		StartedAt:   started,
		CompletedAt: &completed,
		Duration:    completed.Sub(started),
	}
	if res != nil {
		exec.RowCount = res.RowCount
		if res.Duration > 0 {
			exec.Duration = res.Duration
		}
	}
	if runErr != nil {
		msg := runErr.Error()
		exec.Status = domain.ExecutionStatusFailed
		exec.ErrorMessage = &msg
		s.logger.Warn("scheduled query failed", "query", q.ID, "error", runErr)
	} else {
		s.logger.Info("scheduled query succeeded", "query", q.ID, "rows", exec.RowCount, "duration", exec.Duration)
	}

	if err := s.queries.RecordExecutionResult(ctx, q.ID, exec); err != nil {
		s.logger.Warn("record execution result", "query", q.ID, "error", err)
	}
	s.updateNext(ctx, *q, completed)
}

func (s *Scheduler) updateNext(ctx context.Context, q domain.ScheduledQuery, after time.Time) {
	var next *time.Time
	if t, err := estimate.NextRun(q.Schedule, after); err == nil {
		next = &t
	}
	if err := s.queries.SetNextScheduledAt(ctx, q.ID, next); err != nil {
		s.logger.Warn("record next run", "query", q.ID, "error", err)
	}
}

// claim marks id in flight and registers it with the wait group. Both
// happen under mu so no run is added once Stop has begun waiting.
func (s *Scheduler) claim(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return domain.ErrConflict("scheduler is stopped")
	}
	if s.inflight[id] {
		return domain.ErrConflict("scheduled query %q is already running", id)
	}
	s.inflight[id] = true
	s.wg.Add(1)
	return nil
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
	s.wg.Done()
}

var _ domain.QueryScheduler = (*Scheduler)(nil)
