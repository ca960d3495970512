package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver
	"golang.org/x/sync/semaphore"

	"query-scheduler/internal/domain"
)

// DuckDBRunner implements domain.QueryRunner. Each connection ID maps to one
// lazily opened DuckDB pool; the number of concurrent runs across all
// connections is bounded.
type DuckDBRunner struct {
	conns  map[string]Connection
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewDuckDBRunner creates a runner over conns. maxConcurrent <= 0 means one
// run at a time.
func NewDuckDBRunner(conns map[string]Connection, maxConcurrent int64, logger *slog.Logger) *DuckDBRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &DuckDBRunner{
		conns:  conns,
		sem:    semaphore.NewWeighted(maxConcurrent),
		logger: logger,
		dbs:    make(map[string]*sql.DB),
	}
}

// Run executes sqlText on the named connection and counts the rows it
// returns. It blocks while the concurrency limit is reached.
func (r *DuckDBRunner) Run(ctx context.Context, connectionID, sqlText string) (*domain.QueryResult, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for run slot: %w", err)
	}
	defer r.sem.Release(1)

	db, err := r.open(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var n int64
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}

	res := &domain.QueryResult{RowCount: n, Duration: time.Since(start)}
	r.logger.Debug("query executed", "connection", connectionID, "rows", n, "duration", res.Duration)
	return res, nil
}

// Close closes every opened pool.
func (r *DuckDBRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for id, db := range r.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	r.dbs = make(map[string]*sql.DB)
	return errors.Join(errs...)
}

func (r *DuckDBRunner) open(ctx context.Context, id string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.dbs[id]; ok {
		return db, nil
	}
	conn, ok := r.conns[id]
	if !ok {
		return nil, domain.ErrNotFound("connection %q is not configured", id)
	}

	db, err := sql.Open("duckdb", conn.DSN)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", id, err)
	}
	for _, stmt := range conn.Init {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init duckdb %q: %w", id, err)
		}
	}
	r.dbs[id] = db
	r.logger.Info("opened duckdb connection", "connection", id)
	return db, nil
}

var _ domain.QueryRunner = (*DuckDBRunner)(nil)
