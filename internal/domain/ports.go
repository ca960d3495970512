package domain

import (
	"context"
	"time"
)

// ScheduledQueryRepository provides persistence for scheduled queries.
type ScheduledQueryRepository interface {
	Get(ctx context.Context, id string) (*ScheduledQuery, error)
	List(ctx context.Context, filter ScheduledQueryFilter) ([]ScheduledQuery, int64, error)
	ListAll(ctx context.Context) ([]ScheduledQuery, error)
	Upsert(ctx context.Context, q *ScheduledQuery) (*ScheduledQuery, error)
	Delete(ctx context.Context, id string) error
	RecordExecutionStart(ctx context.Context, id string, startedAt time.Time) error
	RecordExecutionResult(ctx context.Context, id string, exec Execution) error
	SetNextScheduledAt(ctx context.Context, id string, next *time.Time) error
}

// TagRepository provides persistence for the tag catalog.
type TagRepository interface {
	List(ctx context.Context) ([]Tag, error)
	GetByIDs(ctx context.Context, ids []string) ([]Tag, error)
	Create(ctx context.Context, tag *Tag) (*Tag, error)
	Delete(ctx context.Context, id string) error
}

// AuditRepository provides persistence for audit log entries.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, int64, error)
}

// QueryResult summarises one execution of a scheduled query's SQL.
type QueryResult struct {
	RowCount int64
	Duration time.Duration
}

// QueryRunner executes SQL against a named connection.
type QueryRunner interface {
	Run(ctx context.Context, connectionID, sqlText string) (*QueryResult, error)
}

// QueryScheduler triggers scheduled executions.
type QueryScheduler interface {
	// Reload rebuilds the trigger table from the repository.
	Reload(ctx context.Context) error
	// RunNow starts an execution of the query outside its schedule.
	RunNow(ctx context.Context, id string) error
}
