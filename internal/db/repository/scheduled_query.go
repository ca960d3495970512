package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"query-scheduler/internal/domain"
)

var _ domain.ScheduledQueryRepository = (*ScheduledQueryRepo)(nil)

const scheduledQueryColumns = `
	id, owner, connection_id, sql_text, name, cron_expr, interval_seconds,
	last_status, last_started_at, last_completed_at, last_duration_ms, last_row_count, last_error,
	next_scheduled_at, created_at, updated_at`

// ScheduledQueryRepo stores scheduled queries, their tag links and the
// outcome of their most recent execution.
type ScheduledQueryRepo struct {
	db *sql.DB
}

// NewScheduledQueryRepo creates a new ScheduledQueryRepo.
func NewScheduledQueryRepo(db *sql.DB) *ScheduledQueryRepo {
	return &ScheduledQueryRepo{db: db}
}

// Get returns a scheduled query by ID.
func (r *ScheduledQueryRepo) Get(ctx context.Context, id string) (*domain.ScheduledQuery, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduledQueryColumns+` FROM scheduled_queries WHERE id = ?`, id)
	q, err := scanScheduledQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("scheduled query %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachTags(ctx, []*domain.ScheduledQuery{q}); err != nil {
		return nil, err
	}
	return q, nil
}

// List returns a page of scheduled queries ordered by creation time.
func (r *ScheduledQueryRepo) List(ctx context.Context, filter domain.ScheduledQueryFilter) ([]domain.ScheduledQuery, int64, error) {
	where := `WHERE (? IS NULL OR owner = ?)
		AND (? IS NULL OR EXISTS (SELECT 1 FROM query_tags qt WHERE qt.query_id = scheduled_queries.id AND qt.tag_id = ?))`
	owner := nullStr(filter.Owner)
	tag := nullStr(filter.TagID)
	args := []interface{}{owner, owner, tag, tag}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM scheduled_queries `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scheduledQueryColumns+` FROM scheduled_queries `+where+` ORDER BY created_at, id LIMIT ? OFFSET ?`,
		append(args, filter.Page.Limit(), filter.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	queries, err := r.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return queries, total, nil
}

// ListAll returns every scheduled query. The scheduler uses it to rebuild
// its entries.
func (r *ScheduledQueryRepo) ListAll(ctx context.Context) ([]domain.ScheduledQuery, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+scheduledQueryColumns+` FROM scheduled_queries ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

// Upsert inserts or replaces the editable fields of a scheduled query and
// its tag list. Owner and execution state are kept on update.
func (r *ScheduledQueryRepo) Upsert(ctx context.Context, q *domain.ScheduledQuery) (*domain.ScheduledQuery, error) {
	if q == nil {
		return nil, domain.ErrValidation("scheduled query is required")
	}
	s := q.Schedule.Normalize()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scheduled_queries (id, owner, connection_id, sql_text, name, cron_expr, interval_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			connection_id = excluded.connection_id,
			sql_text = excluded.sql_text,
			name = excluded.name,
			cron_expr = excluded.cron_expr,
			interval_seconds = excluded.interval_seconds,
			updated_at = CURRENT_TIMESTAMP
	`, q.ID, q.Owner, q.ConnectionID, q.SQLText, q.Name, s.Cron, s.IntervalSeconds)
	if err != nil {
		return nil, mapDBError(err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM query_tags WHERE query_id = ?`, q.ID); err != nil {
		return nil, mapDBError(err)
	}
	for i, tagID := range q.Tags {
		_, err := tx.ExecContext(ctx, `INSERT INTO query_tags (query_id, tag_id, position) VALUES (?, ?, ?)`, q.ID, tagID, i)
		if err != nil {
			return nil, mapDBError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return r.Get(ctx, q.ID)
}

// Delete removes a scheduled query and its tag links.
func (r *ScheduledQueryRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_queries WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	return requireAffected(res, "scheduled query %q not found", id)
}

// RecordExecutionStart marks the query as running and clears the outcome
// of the previous run.
func (r *ScheduledQueryRepo) RecordExecutionStart(ctx context.Context, id string, startedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_queries
		SET last_status = ?, last_started_at = ?, last_completed_at = NULL,
		    last_duration_ms = NULL, last_row_count = NULL, last_error = NULL
		WHERE id = ?
	`, string(domain.ExecutionStatusRunning), startedAt.UTC(), id)
	if err != nil {
		return mapDBError(err)
	}
	return requireAffected(res, "scheduled query %q not found", id)
}

// RecordExecutionResult stores the outcome of a run.
func (r *ScheduledQueryRepo) RecordExecutionResult(ctx context.Context, id string, exec domain.Execution) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_queries
		SET last_status = ?, last_started_at = ?, last_completed_at = ?,
		    last_duration_ms = ?, last_row_count = ?, last_error = ?
		WHERE id = ?
	`, string(exec.Status), exec.StartedAt.UTC(), nullTime(exec.CompletedAt),
		exec.Duration.Milliseconds(), exec.RowCount, nullStr(exec.ErrorMessage), id)
	if err != nil {
		return mapDBError(err)
	}
	return requireAffected(res, "scheduled query %q not found", id)
}

// SetNextScheduledAt records when the scheduler will next fire the query.
func (r *ScheduledQueryRepo) SetNextScheduledAt(ctx context.Context, id string, next *time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE scheduled_queries SET next_scheduled_at = ? WHERE id = ?`, nullTime(next), id)
	return mapDBError(err)
}

func (r *ScheduledQueryRepo) collect(ctx context.Context, rows *sql.Rows) ([]domain.ScheduledQuery, error) {
	defer rows.Close() //nolint:errcheck

	var ptrs []*domain.ScheduledQuery
	for rows.Next() {
		q, err := scanScheduledQuery(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachTags(ctx, ptrs); err != nil {
		return nil, err
	}

	out := make([]domain.ScheduledQuery, len(ptrs))
	for i, q := range ptrs {
		out[i] = *q
	}
	return out, nil
}

func (r *ScheduledQueryRepo) attachTags(ctx context.Context, queries []*domain.ScheduledQuery) error {
	if len(queries) == 0 {
		return nil
	}
	byID := make(map[string]*domain.ScheduledQuery, len(queries))
	ids := make([]string, len(queries))
	for i, q := range queries {
		byID[q.ID] = q
		ids[i] = q.ID
		q.Tags = []string{}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT query_id, tag_id FROM query_tags WHERE query_id IN (`+placeholders(len(ids))+`) ORDER BY query_id, position`,
		stringArgs(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var queryID, tagID string
		if err := rows.Scan(&queryID, &tagID); err != nil {
			return err
		}
		q := byID[queryID]
		q.Tags = append(q.Tags, tagID)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScheduledQuery(row rowScanner) (*domain.ScheduledQuery, error) {
	var (
		q                    domain.ScheduledQuery
		cronExpr             string
		intervalSeconds      int
		lastStatus           sql.NullString
		startedAt, completed sql.NullTime
		durationMs, rowCount sql.NullInt64
		lastError            sql.NullString
		nextAt               sql.NullTime
	)
	err := row.Scan(
		&q.ID, &q.Owner, &q.ConnectionID, &q.SQLText, &q.Name, &cronExpr, &intervalSeconds,
		&lastStatus, &startedAt, &completed, &durationMs, &rowCount, &lastError,
		&nextAt, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.Schedule = domain.Schedule{Cron: cronExpr, IntervalSeconds: intervalSeconds}
	q.NextScheduledAt = timePtr(nextAt)
	if lastStatus.Valid {
		exec := &domain.Execution{
			Status:       domain.ExecutionStatus(lastStatus.String),
			CompletedAt:  timePtr(completed),
			Duration:     time.Duration(durationMs.Int64) * time.Millisecond,
			RowCount:     rowCount.Int64,
			ErrorMessage: strPtr(lastError),
		}
		if startedAt.Valid {
			exec.StartedAt = startedAt.Time.UTC()
		}
		q.LastExecution = exec
	}
	return &q, nil
}

func requireAffected(res sql.Result, format string, args ...interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound(format, args...)
	}
	return nil
}
