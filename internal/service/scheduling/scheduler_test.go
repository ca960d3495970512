package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-scheduler/internal/db"
	"query-scheduler/internal/db/repository"
	"query-scheduler/internal/domain"
	"query-scheduler/internal/testutil"
)

var fixedNow = time.Date(2025, 6, 2, 10, 15, 0, 0, time.UTC)

func setup(t *testing.T, runner domain.QueryRunner) (*Scheduler, *repository.ScheduledQueryRepo) {
	t.Helper()
	repo := repository.NewScheduledQueryRepo(db.OpenTestSQLite(t).Write)
	s := NewScheduler(repo, runner, slog.New(slog.DiscardHandler), WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s, repo
}

func insert(t *testing.T, repo *repository.ScheduledQueryRepo, id string, sched domain.Schedule) {
	t.Helper()
	_, err := repo.Upsert(context.Background(), &domain.ScheduledQuery{
		ID: id, Owner: "alice", ConnectionID: "warehouse", SQLText: "SELECT 1", Schedule: sched,
	})
	require.NoError(t, err)
}

func stop(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestScheduler_ReloadRegistersValidSchedules(t *testing.T) {
	t.Parallel()
	s, repo := setup(t, &testutil.MockQueryRunner{})
	ctx := context.Background()

	insert(t, repo, "hourly", domain.CronSchedule("0 * * * *"))
	insert(t, repo, "interval", domain.FixedIntervalSchedule(1800))
	insert(t, repo, "broken", domain.CronSchedule("not a cron"))

	require.NoError(t, s.Reload(ctx))
	assert.True(t, s.Scheduled("hourly"))
	assert.True(t, s.Scheduled("interval"))
	assert.False(t, s.Scheduled("broken"))

	hourly, err := repo.Get(ctx, "hourly")
	require.NoError(t, err)
	require.NotNil(t, hourly.NextScheduledAt)
	assert.True(t, hourly.NextScheduledAt.Equal(time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)))

	interval, err := repo.Get(ctx, "interval")
	require.NoError(t, err)
	require.NotNil(t, interval.NextScheduledAt)
	assert.True(t, interval.NextScheduledAt.Equal(fixedNow.Add(30*time.Minute)))

	broken, err := repo.Get(ctx, "broken")
	require.NoError(t, err)
	assert.Nil(t, broken.NextScheduledAt)

	// Deleted queries drop out on the next reload.
	require.NoError(t, repo.Delete(ctx, "hourly"))
	require.NoError(t, s.Reload(ctx))
	assert.False(t, s.Scheduled("hourly"))
	assert.True(t, s.Scheduled("interval"))
}

func TestScheduler_RunNowRecordsLifecycle(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	runner := &testutil.MockQueryRunner{
		RunFn: func(_ context.Context, connectionID, sqlText string) (*domain.QueryResult, error) {
			assert.Equal(t, "warehouse", connectionID)
			assert.Equal(t, "SELECT 1", sqlText)
			close(started)
			<-release
			return &domain.QueryResult{RowCount: 7, Duration: 250 * time.Millisecond}, nil
		},
	}
	s, repo := setup(t, runner)
	ctx := context.Background()
	insert(t, repo, "q1", domain.CronSchedule("0 * * * *"))

	require.NoError(t, s.RunNow(ctx, "q1"))
	<-started

	q, err := repo.Get(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, q.IsRunning())

	err = s.RunNow(ctx, "q1")
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	close(release)
	stop(t, s)

	q, err = repo.Get(ctx, "q1")
	require.NoError(t, err)
	require.NotNil(t, q.LastExecution)
	assert.Equal(t, domain.ExecutionStatusSucceeded, q.LastExecution.Status)
	assert.Equal(t, int64(7), q.LastExecution.RowCount)
	assert.Equal(t, 250*time.Millisecond, q.LastExecution.Duration)
	assert.Nil(t, q.LastExecution.ErrorMessage)
	require.NotNil(t, q.NextScheduledAt)
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	t.Parallel()
	runner := &testutil.MockQueryRunner{
		RunFn: func(context.Context, string, string) (*domain.QueryResult, error) {
			return nil, errors.New("Catalog Error: Table with name orders does not exist")
		},
	}
	s, repo := setup(t, runner)
	ctx := context.Background()
	insert(t, repo, "q1", domain.FixedIntervalSchedule(60))

	require.NoError(t, s.RunNow(ctx, "q1"))
	stop(t, s)

	q, err := repo.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusFailed, q.LastExecution.Status)
	require.NotNil(t, q.LastExecution.ErrorMessage)
	assert.Contains(t, *q.LastExecution.ErrorMessage, "orders does not exist")
}

func TestScheduler_RunNowAfterStop(t *testing.T) {
	t.Parallel()
	runner := &testutil.MockQueryRunner{
		RunFn: func(context.Context, string, string) (*domain.QueryResult, error) {
			t.Error("no run may start after Stop")
			return nil, nil
		},
	}
	s, repo := setup(t, runner)
	ctx := context.Background()
	insert(t, repo, "q1", domain.CronSchedule("0 * * * *"))

	stop(t, s)

	var conflict *domain.ConflictError
	require.ErrorAs(t, s.RunNow(ctx, "q1"), &conflict)
	assert.Contains(t, conflict.Error(), "stopped")

	q, err := repo.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Nil(t, q.LastExecution)
}

func TestScheduler_RunNowUnknownQuery(t *testing.T) {
	t.Parallel()
	s, _ := setup(t, &testutil.MockQueryRunner{})

	var nf *domain.NotFoundError
	require.ErrorAs(t, s.RunNow(context.Background(), "missing"), &nf)
}

func TestScheduler_ReloadPropagatesListError(t *testing.T) {
	t.Parallel()
	repo := &testutil.MockScheduledQueryRepo{
		ListAllFn: func(context.Context) ([]domain.ScheduledQuery, error) {
			return nil, errors.New("disk I/O error")
		},
	}
	s := NewScheduler(repo, &testutil.MockQueryRunner{}, slog.New(slog.DiscardHandler))

	require.Error(t, s.Start(context.Background()))
}
