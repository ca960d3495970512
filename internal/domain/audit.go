package domain

import "time"

// Audit actions recorded for scheduled query mutations.
const (
	AuditActionSave   = "scheduled_query.save"
	AuditActionDelete = "scheduled_query.delete"
	AuditActionRun    = "scheduled_query.run"
)

// AuditEntry represents a single audit log record.
type AuditEntry struct {
	ID            string
	PrincipalName string
	Action        string
	QueryID       string
	Status        string // "success", "denied", "error"
	ErrorMessage  *string
	CreatedAt     time.Time
}

// AuditFilter holds filter parameters for listing audit entries.
type AuditFilter struct {
	QueryID *string
	Action  *string
	Page    PageRequest
}
