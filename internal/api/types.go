package api

import (
	"time"

	"query-scheduler/internal/domain"
)

// Execution is the wire form of domain.Execution.
type Execution struct {
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	RowCount     int64      `json:"row_count"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// ScheduledQuery is the wire form of domain.ScheduledQuery.
type ScheduledQuery struct {
	ID              string          `json:"id"`
	Owner           string          `json:"owner"`
	ConnectionID    string          `json:"connection_id"`
	SQL             string          `json:"sql"`
	Name            string          `json:"name,omitempty"`
	Schedule        domain.Schedule `json:"schedule"`
	Tags            []string        `json:"tags"`
	LastExecution   *Execution      `json:"last_execution,omitempty"`
	NextScheduledAt *time.Time      `json:"next_scheduled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PaginatedScheduledQueries is one page of GET /v1/queries.
type PaginatedScheduledQueries struct {
	Data          []ScheduledQuery `json:"data"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// Tag is the wire form of domain.Tag.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTagRequest is the body of POST /v1/tags.
type CreateTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// AuditEntry is the wire form of domain.AuditEntry.
type AuditEntry struct {
	ID            string    `json:"id"`
	PrincipalName string    `json:"principal_name"`
	Action        string    `json:"action"`
	QueryID       string    `json:"query_id"`
	Status        string    `json:"status"`
	ErrorMessage  *string   `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PaginatedAuditEntries is one page of GET /v1/queries/{id}/audit.
type PaginatedAuditEntries struct {
	Data          []AuditEntry `json:"data"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

// DailyCalls is the body of GET /v1/stats/daily-calls.
type DailyCalls struct {
	Total int `json:"total"`
}

// === Mapping helpers ===

// ScheduledQueryToAPI converts a domain query into its wire form.
func ScheduledQueryToAPI(q domain.ScheduledQuery) ScheduledQuery {
	out := ScheduledQuery{
		ID:              q.ID,
		Owner:           q.Owner,
		ConnectionID:    q.ConnectionID,
		SQL:             q.SQLText,
		Name:            q.Name,
		Schedule:        q.Schedule,
		Tags:            q.Tags,
		NextScheduledAt: q.NextScheduledAt,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if e := q.LastExecution; e != nil {
		out.LastExecution = &Execution{
			Status:       string(e.Status),
			StartedAt:    e.StartedAt,
			CompletedAt:  e.CompletedAt,
			DurationMs:   e.Duration.Milliseconds(),
			RowCount:     e.RowCount,
			ErrorMessage: e.ErrorMessage,
		}
	}
	return out
}

// ToDomain converts the wire form back into a domain.ScheduledQuery.
func (q ScheduledQuery) ToDomain() *domain.ScheduledQuery {
	out := &domain.ScheduledQuery{
		ID:              q.ID,
		Owner:           q.Owner,
		ConnectionID:    q.ConnectionID,
		SQLText:         q.SQL,
		Name:            q.Name,
		Schedule:        q.Schedule,
		Tags:            q.Tags,
		NextScheduledAt: q.NextScheduledAt,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
	if e := q.LastExecution; e != nil {
		out.LastExecution = &domain.Execution{
			Status:       domain.ExecutionStatus(e.Status),
			StartedAt:    e.StartedAt,
			CompletedAt:  e.CompletedAt,
			Duration:     time.Duration(e.DurationMs) * time.Millisecond,
			RowCount:     e.RowCount,
			ErrorMessage: e.ErrorMessage,
		}
	}
	return out
}

// TagToAPI converts a domain tag into its wire form.
func TagToAPI(t domain.Tag) Tag {
	return Tag{ID: t.ID, Name: t.Name, Color: t.Color, CreatedBy: t.CreatedBy, CreatedAt: t.CreatedAt}
}

// ToDomain converts the wire form back into a domain.Tag.
func (t Tag) ToDomain() domain.Tag {
	return domain.Tag{ID: t.ID, Name: t.Name, Color: t.Color, CreatedBy: t.CreatedBy, CreatedAt: t.CreatedAt}
}

func auditEntryToAPI(e domain.AuditEntry) AuditEntry {
	return AuditEntry{
		ID:            e.ID,
		PrincipalName: e.PrincipalName,
		Action:        e.Action,
		QueryID:       e.QueryID,
		Status:        e.Status,
		ErrorMessage:  e.ErrorMessage,
		CreatedAt:     e.CreatedAt,
	}
}
