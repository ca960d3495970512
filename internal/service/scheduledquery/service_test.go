package scheduledquery

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-scheduler/internal/domain"
	"query-scheduler/internal/testutil"
)

type fixture struct {
	svc       *Service
	queries   *testutil.MockScheduledQueryRepo
	tags      *testutil.MockTagRepo
	audit     *testutil.MockAuditRepo
	scheduler *testutil.MockQueryScheduler
	stored    map[string]*domain.ScheduledQuery
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{stored: map[string]*domain.ScheduledQuery{}}
	f.queries = &testutil.MockScheduledQueryRepo{
		GetFn: func(_ context.Context, id string) (*domain.ScheduledQuery, error) {
			q, ok := f.stored[id]
			if !ok {
				return nil, domain.ErrNotFound("scheduled query %q not found", id)
			}
			cp := *q
			return &cp, nil
		},
		UpsertFn: func(_ context.Context, q *domain.ScheduledQuery) (*domain.ScheduledQuery, error) {
			cp := *q
			f.stored[q.ID] = &cp
			return &cp, nil
		},
		DeleteFn: func(_ context.Context, id string) error {
			delete(f.stored, id)
			return nil
		},
		ListAllFn: func(context.Context) ([]domain.ScheduledQuery, error) {
			out := make([]domain.ScheduledQuery, 0, len(f.stored))
			for _, q := range f.stored {
				out = append(out, *q)
			}
			return out, nil
		},
	}
	f.tags = &testutil.MockTagRepo{
		GetByIDsFn: func(_ context.Context, ids []string) ([]domain.Tag, error) {
			var out []domain.Tag
			for _, id := range ids {
				if id == "finance" || id == "ops" {
					out = append(out, domain.Tag{ID: id, Name: id})
				}
			}
			return out, nil
		},
	}
	f.audit = &testutil.MockAuditRepo{}
	f.scheduler = &testutil.MockQueryScheduler{}
	f.svc = NewService(f.queries, f.tags, f.audit, slog.New(slog.DiscardHandler))
	f.svc.SetScheduler(f.scheduler)
	return f
}

func validRequest() domain.SaveRequest {
	return domain.SaveRequest{
		ID:           "q1",
		ConnectionID: "warehouse",
		Owner:        "alice",
		SQLText:      "SELECT 1",
		Name:         "  daily revenue  ",
		Schedule:     domain.CronSchedule("0 * * * *"),
		Tags:         []string{"finance", "finance", "ops"},
	}
}

func TestService_SaveCreatesAndRuns(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	saved, err := f.svc.Save(context.Background(), "alice", validRequest())
	require.NoError(t, err)
	assert.Equal(t, "daily revenue", saved.Name)
	assert.Equal(t, "alice", saved.Owner)
	assert.Equal(t, []string{"finance", "ops"}, saved.Tags)

	assert.Equal(t, 1, f.scheduler.Reloads())
	assert.Equal(t, []string{"q1"}, f.scheduler.Runs())
	assert.True(t, f.audit.HasAction(domain.AuditActionSave))
	assert.Equal(t, domain.AuditActionRun, f.audit.LastEntry().Action)
}

func TestService_SaveRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal string
		mutate    func(*domain.SaveRequest)
		seed      *domain.ScheduledQuery
		check     func(t *testing.T, err error)
	}{
		{
			name:      "missing sql",
			principal: "alice",
			mutate:    func(r *domain.SaveRequest) { r.SQLText = "  " },
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
			},
		},
		{
			name:      "malformed cron",
			principal: "alice",
			mutate:    func(r *domain.SaveRequest) { r.Schedule = domain.CronSchedule("61 * * * *") },
			check: func(t *testing.T, err error) {
				var ise *domain.InvalidScheduleError
				require.ErrorAs(t, err, &ise)
			},
		},
		{
			name:      "unknown tag",
			principal: "alice",
			mutate:    func(r *domain.SaveRequest) { r.Tags = []string{"nope"} },
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, err.Error(), "nope")
			},
		},
		{
			name:      "not the owner",
			principal: "bob",
			seed:      &domain.ScheduledQuery{ID: "q1", Owner: "alice", SQLText: "SELECT 1"},
			check: func(t *testing.T, err error) {
				var denied *domain.AccessDeniedError
				require.ErrorAs(t, err, &denied)
			},
		},
		{
			name:      "creating for someone else",
			principal: "bob",
			check: func(t *testing.T, err error) {
				var denied *domain.AccessDeniedError
				require.ErrorAs(t, err, &denied)
			},
		},
		{
			name:      "currently running",
			principal: "alice",
			seed: &domain.ScheduledQuery{ID: "q1", Owner: "alice", SQLText: "SELECT 1",
				LastExecution: &domain.Execution{Status: domain.ExecutionStatusRunning}},
			check: func(t *testing.T, err error) {
				var conflict *domain.ConflictError
				require.ErrorAs(t, err, &conflict)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			if tt.seed != nil {
				f.stored[tt.seed.ID] = tt.seed
			}
			req := validRequest()
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			_, err := f.svc.Save(context.Background(), tt.principal, req)
			tt.check(t, err)
			assert.Empty(t, f.scheduler.Runs())
		})
	}
}

func TestService_SaveKeepsOriginalOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stored["q1"] = &domain.ScheduledQuery{ID: "q1", Owner: "alice", SQLText: "SELECT 0"}

	req := validRequest()
	req.Owner = ""
	saved, err := f.svc.Save(context.Background(), "alice", req)
	require.NoError(t, err)
	assert.Equal(t, "alice", saved.Owner)
	assert.Equal(t, "SELECT 1", saved.SQLText)
}

func TestService_SaveKeepsRecordWhenRunRefused(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		runErr error
	}{
		{"runner offline", errors.New("runner offline")},
		{"run still being claimed", domain.ErrConflict("scheduled query %q is already running", "q1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.stored["q1"] = &domain.ScheduledQuery{ID: "q1", Owner: "alice", SQLText: "SELECT 0"}
			f.scheduler.RunNowFn = func(context.Context, string) error { return tt.runErr }

			req := validRequest()
			req.SQLText = "SELECT 2"
			saved, err := f.svc.Save(context.Background(), "alice", req)
			require.NoError(t, err)
			assert.Equal(t, "SELECT 2", saved.SQLText)
			assert.Equal(t, "SELECT 2", f.stored["q1"].SQLText)
			assert.True(t, f.audit.HasAction(domain.AuditActionSave))

			last := f.audit.LastEntry()
			require.NotNil(t, last)
			assert.Equal(t, domain.AuditActionRun, last.Action)
			assert.Equal(t, "error", last.Status)
			require.NotNil(t, last.ErrorMessage)
			assert.Contains(t, *last.ErrorMessage, tt.runErr.Error())
		})
	}
}

func TestService_Delete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stored["q1"] = &domain.ScheduledQuery{ID: "q1", Owner: "alice"}

	var denied *domain.AccessDeniedError
	require.ErrorAs(t, f.svc.Delete(context.Background(), "bob", "q1"), &denied)
	assert.Contains(t, f.stored, "q1")

	require.NoError(t, f.svc.Delete(context.Background(), "alice", "q1"))
	assert.NotContains(t, f.stored, "q1")
	assert.Equal(t, 1, f.scheduler.Reloads())
	assert.Equal(t, domain.AuditActionDelete, f.audit.LastEntry().Action)

	var nf *domain.NotFoundError
	require.ErrorAs(t, f.svc.Delete(context.Background(), "alice", "q1"), &nf)
}

func TestService_TotalDailyCalls(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stored["a"] = &domain.ScheduledQuery{ID: "a", Schedule: domain.CronSchedule("0 * * * *")}
	f.stored["b"] = &domain.ScheduledQuery{ID: "b", Schedule: domain.FixedIntervalSchedule(1800)}
	f.stored["c"] = &domain.ScheduledQuery{ID: "c", Schedule: domain.CronSchedule("garbage")}

	total, err := f.svc.TotalDailyCalls(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 24+48, total)
}

func TestService_CreateTag(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.tags.CreateFn = func(_ context.Context, tag *domain.Tag) (*domain.Tag, error) {
		tag.ID = "generated"
		return tag, nil
	}

	_, err := f.svc.CreateTag(context.Background(), "alice", domain.CreateTagRequest{})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	tag, err := f.svc.CreateTag(context.Background(), "alice", domain.CreateTagRequest{Name: "finance", Color: "#fff"})
	require.NoError(t, err)
	assert.Equal(t, "alice", tag.CreatedBy)
	assert.Equal(t, "generated", tag.ID)
}

func TestService_RunNow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stored["q1"] = &domain.ScheduledQuery{ID: "q1", Owner: "alice", SQLText: "SELECT 1"}

	var denied *domain.AccessDeniedError
	_, err := f.svc.RunNow(context.Background(), "bob", "q1")
	require.ErrorAs(t, err, &denied)
	assert.Empty(t, f.scheduler.Runs())

	got, err := f.svc.RunNow(context.Background(), "alice", "q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", got.ID)
	assert.Equal(t, []string{"q1"}, f.scheduler.Runs())
	assert.Zero(t, f.scheduler.Reloads())
	assert.Equal(t, domain.AuditActionRun, f.audit.LastEntry().Action)

	f.stored["q1"].LastExecution = &domain.Execution{Status: domain.ExecutionStatusRunning}
	var conflict *domain.ConflictError
	_, err = f.svc.RunNow(context.Background(), "alice", "q1")
	require.ErrorAs(t, err, &conflict)
}
