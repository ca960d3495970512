package domain

import (
	"strings"
	"time"
)

// ExecutionStatus represents the lifecycle state of a scheduled query run.
type ExecutionStatus string

// Execution statuses.
const (
	ExecutionStatusQueued    ExecutionStatus = "QUEUED"
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusSucceeded ExecutionStatus = "SUCCEEDED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
)

// Execution is the outcome of the most recent run of a scheduled query.
type Execution struct {
	Status       ExecutionStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	Duration     time.Duration
	RowCount     int64
	ErrorMessage *string
}

// ScheduledQuery is a persisted job definition together with its most recent
// execution outcome.
type ScheduledQuery struct {
	ID              string
	Owner           string
	ConnectionID    string
	SQLText         string
	Name            string
	Schedule        Schedule
	Tags            []string
	LastExecution   *Execution
	NextScheduledAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsRunning reports whether the last execution is still in flight.
func (q *ScheduledQuery) IsRunning() bool {
	return q != nil && q.LastExecution != nil && q.LastExecution.Status == ExecutionStatusRunning
}

// CanEdit reports whether requestor owns the query. An empty requestor
// (not logged in) never can.
func (q *ScheduledQuery) CanEdit(requestor string) bool {
	return q != nil && requestor != "" && requestor == q.Owner
}

// Title is the display heading: the name when present, otherwise the SQL.
func (q *ScheduledQuery) Title() string {
	if q.Name != "" {
		return q.Name
	}
	return q.SQLText
}

// SaveRequest is the record handed to the backing store when a scheduled
// query is saved (edited or re-run).
type SaveRequest struct {
	ID           string   `json:"id"`
	ConnectionID string   `json:"connection_id"`
	Owner        string   `json:"owner"`
	SQLText      string   `json:"sql"`
	Name         string   `json:"name,omitempty"`
	Schedule     Schedule `json:"schedule"`
	Tags         []string `json:"tags"`
}

// NormalizeName trims a display name; all-whitespace names become empty.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Validate checks that the request is well-formed. Schedule syntax is
// checked separately by the estimator.
func (r *SaveRequest) Validate() error {
	if r.ID == "" {
		return ErrValidation("id is required")
	}
	if strings.TrimSpace(r.SQLText) == "" {
		return ErrValidation("sql is required")
	}
	if r.ConnectionID == "" {
		return ErrValidation("connection_id is required")
	}
	if r.Schedule.IsZero() {
		return ErrValidation("schedule is required")
	}
	return nil
}

// ScheduledQueryFilter holds filter parameters for listing scheduled queries.
type ScheduledQueryFilter struct {
	Owner *string
	TagID *string
	Page  PageRequest
}
