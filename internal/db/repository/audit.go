package repository

import (
	"context"
	"database/sql"

	"query-scheduler/internal/domain"
)

var _ domain.AuditRepository = (*AuditRepo)(nil)

// AuditRepo stores the audit trail of scheduled query mutations.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert appends an entry.
func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = domain.NewID()
	}
	created := e.CreatedAt
	if created.IsZero() {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO audit_log (id, principal_name, action, query_id, status, error_message)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ID, e.PrincipalName, e.Action, e.QueryID, e.Status, nullStr(e.ErrorMessage))
		return mapDBError(err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, principal_name, action, query_id, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.PrincipalName, e.Action, e.QueryID, e.Status, nullStr(e.ErrorMessage), created.UTC())
	return mapDBError(err)
}

// List returns a page of entries, newest first.
func (r *AuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	where := `WHERE (? IS NULL OR query_id = ?) AND (? IS NULL OR action = ?)`
	queryID := nullStr(filter.QueryID)
	action := nullStr(filter.Action)
	args := []interface{}{queryID, queryID, action, action}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM audit_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, principal_name, action, query_id, status, error_message, created_at
		FROM audit_log `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, append(args, filter.Page.Limit(), filter.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e      domain.AuditEntry
			errMsg sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.PrincipalName, &e.Action, &e.QueryID, &e.Status, &errMsg, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.ErrorMessage = strPtr(errMsg)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
