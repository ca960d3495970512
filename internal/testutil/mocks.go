// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"sync"
	"time"

	"query-scheduler/internal/domain"
)

// === Audit Repository Mock ===

// MockAuditRepo implements domain.AuditRepository for testing.
type MockAuditRepo struct {
	InsertFn func(ctx context.Context, e *domain.AuditEntry) error
	ListFn   func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error)

	mu      sync.Mutex
	entries []*domain.AuditEntry
}

// Insert implements the interface method for testing.
func (m *MockAuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(ctx, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

// List implements the interface method for testing.
func (m *MockAuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	panic("unexpected call to MockAuditRepo.List")
}

// Entries returns the collected entries.
func (m *MockAuditRepo) Entries() []*domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.AuditEntry(nil), m.entries...)
}

// LastEntry returns the last collected audit entry, or nil if none.
func (m *MockAuditRepo) LastEntry() *domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
}

// HasAction returns true if any collected entry has the given action.
func (m *MockAuditRepo) HasAction(action string) bool {
	for _, e := range m.Entries() {
		if e.Action == action {
			return true
		}
	}
	return false
}

var _ domain.AuditRepository = (*MockAuditRepo)(nil)

// === Tag Repository Mock ===

// MockTagRepo implements domain.TagRepository for testing.
type MockTagRepo struct {
	ListFn     func(ctx context.Context) ([]domain.Tag, error)
	GetByIDsFn func(ctx context.Context, ids []string) ([]domain.Tag, error)
	CreateFn   func(ctx context.Context, tag *domain.Tag) (*domain.Tag, error)
	DeleteFn   func(ctx context.Context, id string) error
}

// List implements the interface method for testing.
func (m *MockTagRepo) List(ctx context.Context) ([]domain.Tag, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	panic("unexpected call to MockTagRepo.List")
}

// GetByIDs implements the interface method for testing.
func (m *MockTagRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Tag, error) {
	if m.GetByIDsFn != nil {
		return m.GetByIDsFn(ctx, ids)
	}
	panic("unexpected call to MockTagRepo.GetByIDs")
}

// Create implements the interface method for testing.
func (m *MockTagRepo) Create(ctx context.Context, tag *domain.Tag) (*domain.Tag, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, tag)
	}
	panic("unexpected call to MockTagRepo.Create")
}

// Delete implements the interface method for testing.
func (m *MockTagRepo) Delete(ctx context.Context, id string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	panic("unexpected call to MockTagRepo.Delete")
}

var _ domain.TagRepository = (*MockTagRepo)(nil)

// === Scheduled Query Repository Mock ===

// MockScheduledQueryRepo implements domain.ScheduledQueryRepository for testing.
type MockScheduledQueryRepo struct {
	GetFn                   func(ctx context.Context, id string) (*domain.ScheduledQuery, error)
	ListFn                  func(ctx context.Context, filter domain.ScheduledQueryFilter) ([]domain.ScheduledQuery, int64, error)
	ListAllFn               func(ctx context.Context) ([]domain.ScheduledQuery, error)
	UpsertFn                func(ctx context.Context, q *domain.ScheduledQuery) (*domain.ScheduledQuery, error)
	DeleteFn                func(ctx context.Context, id string) error
	RecordExecutionStartFn  func(ctx context.Context, id string, startedAt time.Time) error
	RecordExecutionResultFn func(ctx context.Context, id string, exec domain.Execution) error
	SetNextScheduledAtFn    func(ctx context.Context, id string, next *time.Time) error
}

// Get implements the interface method for testing.
func (m *MockScheduledQueryRepo) Get(ctx context.Context, id string) (*domain.ScheduledQuery, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	panic("unexpected call to MockScheduledQueryRepo.Get")
}

// List implements the interface method for testing.
func (m *MockScheduledQueryRepo) List(ctx context.Context, filter domain.ScheduledQueryFilter) ([]domain.ScheduledQuery, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	panic("unexpected call to MockScheduledQueryRepo.List")
}

// ListAll implements the interface method for testing.
func (m *MockScheduledQueryRepo) ListAll(ctx context.Context) ([]domain.ScheduledQuery, error) {
	if m.ListAllFn != nil {
		return m.ListAllFn(ctx)
	}
	panic("unexpected call to MockScheduledQueryRepo.ListAll")
}

// Upsert implements the interface method for testing.
func (m *MockScheduledQueryRepo) Upsert(ctx context.Context, q *domain.ScheduledQuery) (*domain.ScheduledQuery, error) {
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, q)
	}
	panic("unexpected call to MockScheduledQueryRepo.Upsert")
}

// Delete implements the interface method for testing.
func (m *MockScheduledQueryRepo) Delete(ctx context.Context, id string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	panic("unexpected call to MockScheduledQueryRepo.Delete")
}

// RecordExecutionStart implements the interface method for testing.
func (m *MockScheduledQueryRepo) RecordExecutionStart(ctx context.Context, id string, startedAt time.Time) error {
	if m.RecordExecutionStartFn != nil {
		return m.RecordExecutionStartFn(ctx, id, startedAt)
	}
	panic("unexpected call to MockScheduledQueryRepo.RecordExecutionStart")
}

// RecordExecutionResult implements the interface method for testing.
func (m *MockScheduledQueryRepo) RecordExecutionResult(ctx context.Context, id string, exec domain.Execution) error {
	if m.RecordExecutionResultFn != nil {
		return m.RecordExecutionResultFn(ctx, id, exec)
	}
	panic("unexpected call to MockScheduledQueryRepo.RecordExecutionResult")
}

// SetNextScheduledAt implements the interface method for testing.
func (m *MockScheduledQueryRepo) SetNextScheduledAt(ctx context.Context, id string, next *time.Time) error {
	if m.SetNextScheduledAtFn != nil {
		return m.SetNextScheduledAtFn(ctx, id, next)
	}
	panic("unexpected call to MockScheduledQueryRepo.SetNextScheduledAt")
}

var _ domain.ScheduledQueryRepository = (*MockScheduledQueryRepo)(nil)

// === Query Runner Mock ===

// MockQueryRunner implements domain.QueryRunner for testing.
type MockQueryRunner struct {
	RunFn func(ctx context.Context, connectionID, sqlText string) (*domain.QueryResult, error)
}

// Run implements the interface method for testing.
func (m *MockQueryRunner) Run(ctx context.Context, connectionID, sqlText string) (*domain.QueryResult, error) {
	if m.RunFn != nil {
		return m.RunFn(ctx, connectionID, sqlText)
	}
	panic("unexpected call to MockQueryRunner.Run")
}

var _ domain.QueryRunner = (*MockQueryRunner)(nil)

// === Query Scheduler Mock ===

// MockQueryScheduler implements domain.QueryScheduler for testing.
type MockQueryScheduler struct {
	ReloadFn func(ctx context.Context) error
	RunNowFn func(ctx context.Context, id string) error

	mu      sync.Mutex
	reloads int
	runs    []string
}

// Reload implements the interface method for testing.
func (m *MockQueryScheduler) Reload(ctx context.Context) error {
	m.mu.Lock()
	m.reloads++
	m.mu.Unlock()
	if m.ReloadFn != nil {
		return m.ReloadFn(ctx)
	}
	return nil
}

// RunNow implements the interface method for testing.
func (m *MockQueryScheduler) RunNow(ctx context.Context, id string) error {
	m.mu.Lock()
	m.runs = append(m.runs, id)
	m.mu.Unlock()
	if m.RunNowFn != nil {
		return m.RunNowFn(ctx, id)
	}
	return nil
}

// Reloads returns how many times Reload was called.
func (m *MockQueryScheduler) Reloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}

// Runs returns the IDs passed to RunNow, in order.
func (m *MockQueryScheduler) Runs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.runs...)
}

var _ domain.QueryScheduler = (*MockQueryScheduler)(nil)
