// Package scheduledquery is the backing store behind the preview
// lifecycle: it validates, persists, audits and triggers scheduled queries.
package scheduledquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"query-scheduler/internal/domain"
	"query-scheduler/internal/estimate"
)

// Service provides business logic for scheduled query management.
type Service struct {
	queries   domain.ScheduledQueryRepository
	tags      domain.TagRepository
	audit     domain.AuditRepository
	scheduler domain.QueryScheduler
	logger    *slog.Logger
}

// NewService creates a new Service. scheduler may be nil until
// SetScheduler is called; saves then persist without triggering a run.
func NewService(
	queries domain.ScheduledQueryRepository,
	tags domain.TagRepository,
	audit domain.AuditRepository,
	logger *slog.Logger,
) *Service {
	return &Service{queries: queries, tags: tags, audit: audit, logger: logger}
}

// SetScheduler sets the scheduler (breaks the construction cycle between
// the service and the scheduler's repository).
func (s *Service) SetScheduler(sched domain.QueryScheduler) {
	s.scheduler = sched
}

// === Queries ===

// Get returns a scheduled query by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.ScheduledQuery, error) {
	return s.queries.Get(ctx, id)
}

// List returns a page of scheduled queries.
func (s *Service) List(ctx context.Context, filter domain.ScheduledQueryFilter) ([]domain.ScheduledQuery, int64, error) {
	return s.queries.List(ctx, filter)
}

// Save creates or updates a scheduled query on behalf of principal and
// runs it immediately. Saving an unchanged record is how a run-now is
// requested.
func (s *Service) Save(ctx context.Context, principal string, req domain.SaveRequest) (*domain.ScheduledQuery, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := estimate.Validate(req.Schedule); err != nil {
		return nil, err
	}

	existing, err := s.queries.Get(ctx, req.ID)
	var nf *domain.NotFoundError
	switch {
	case errors.As(err, &nf):
		existing = nil
	case err != nil:
		return nil, err
	}

	owner := principal
	if existing != nil {
		if !existing.CanEdit(principal) {
			s.logAudit(ctx, principal, domain.AuditActionSave, req.ID, "denied", nil)
			return nil, domain.ErrAccessDenied("scheduled query %q is owned by another user", req.ID)
		}
		if existing.IsRunning() {
			return nil, domain.ErrConflict("scheduled query %q is currently running", req.ID)
		}
		owner = existing.Owner
	} else if req.Owner != "" && req.Owner != principal {
		return nil, domain.ErrAccessDenied("cannot create a scheduled query owned by %q", req.Owner)
	}

	tagIDs := dedupe(req.Tags)
	if err := s.checkTags(ctx, tagIDs); err != nil {
		return nil, err
	}

	saved, err := s.queries.Upsert(ctx, &domain.ScheduledQuery{
		ID:           req.ID,
		Owner:        owner,
		ConnectionID: req.ConnectionID,
		SQLText:      req.SQLText,
		Name:         domain.NormalizeName(req.Name),
		Schedule:     req.Schedule.Normalize(),
		Tags:         tagIDs,
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, principal, domain.AuditActionSave, saved.ID, "success", nil)

	if s.scheduler == nil {
		return saved, nil
	}
	if err := s.scheduler.Reload(ctx); err != nil {
		s.logger.Warn("reload schedules after save", "query", saved.ID, "error", err)
	}
	// The record is already stored, so a refused run does not fail the save.
	if err := s.scheduler.RunNow(ctx, saved.ID); err != nil {
		msg := err.Error()
		s.logAudit(ctx, principal, domain.AuditActionRun, saved.ID, "error", &msg)
		s.logger.Warn("run after save refused", "query", saved.ID, "error", err)
		return saved, nil
	}
	s.logAudit(ctx, principal, domain.AuditActionRun, saved.ID, "success", nil)

	// Pick up the QUEUED execution record written by RunNow.
	return s.queries.Get(ctx, saved.ID)
}

// Delete removes a scheduled query owned by principal.
func (s *Service) Delete(ctx context.Context, principal, id string) error {
	existing, err := s.queries.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.CanEdit(principal) {
		s.logAudit(ctx, principal, domain.AuditActionDelete, id, "denied", nil)
		return domain.ErrAccessDenied("scheduled query %q is owned by another user", id)
	}
	if err := s.queries.Delete(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, principal, domain.AuditActionDelete, id, "success", nil)

	if s.scheduler != nil {
		if err := s.scheduler.Reload(ctx); err != nil {
			s.logger.Warn("reload schedules after delete", "query", id, "error", err)
		}
	}
	return nil
}

// RunNow executes a query owned by principal outside its schedule without
// changing the stored record.
func (s *Service) RunNow(ctx context.Context, principal, id string) (*domain.ScheduledQuery, error) {
	existing, err := s.queries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.CanEdit(principal) {
		s.logAudit(ctx, principal, domain.AuditActionRun, id, "denied", nil)
		return nil, domain.ErrAccessDenied("scheduled query %q is owned by another user", id)
	}
	if existing.IsRunning() {
		return nil, domain.ErrConflict("scheduled query %q is currently running", id)
	}
	if s.scheduler == nil {
		return nil, domain.ErrConflict("scheduler is not running")
	}
	if err := s.scheduler.RunNow(ctx, id); err != nil {
		msg := err.Error()
		s.logAudit(ctx, principal, domain.AuditActionRun, id, "error", &msg)
		return nil, fmt.Errorf("run scheduled query: %w", err)
	}
	s.logAudit(ctx, principal, domain.AuditActionRun, id, "success", nil)
	return s.queries.Get(ctx, id)
}

// TotalDailyCalls sums the estimated daily executions of every scheduled
// query. Queries with unusable schedules contribute nothing.
func (s *Service) TotalDailyCalls(ctx context.Context) (int, error) {
	all, err := s.queries.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, q := range all {
		n, err := estimate.EstimateDailyCalls(q.Schedule)
		if err != nil {
			s.logger.Debug("skipping query with invalid schedule", "query", q.ID, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

// === Tags ===

// ListTags returns the tag catalog.
func (s *Service) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return s.tags.List(ctx)
}

// CreateTag adds a tag to the catalog.
func (s *Service) CreateTag(ctx context.Context, principal string, req domain.CreateTagRequest) (*domain.Tag, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.tags.Create(ctx, &domain.Tag{Name: req.Name, Color: req.Color, CreatedBy: principal})
}

// === Audit ===

// ListAudit returns the audit trail of one query.
func (s *Service) ListAudit(ctx context.Context, queryID string, page domain.PageRequest) ([]domain.AuditEntry, int64, error) {
	return s.audit.List(ctx, domain.AuditFilter{QueryID: &queryID, Page: page})
}

// === Helpers ===

func (s *Service) checkTags(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.tags.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(found))
	for _, t := range found {
		known[t.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return domain.ErrValidation("unknown tag %q", id)
		}
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, principal, action, queryID, status string, errMsg *string) {
	if err := s.audit.Insert(ctx, &domain.AuditEntry{
		PrincipalName: principal,
		Action:        action,
		QueryID:       queryID,
		Status:        status,
		ErrorMessage:  errMsg,
	}); err != nil {
		s.logger.Warn("audit insert failed", "action", action, "query", queryID, "error", err)
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
