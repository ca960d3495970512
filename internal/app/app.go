// Package app wires repositories, the query runner, the scheduler and the
// HTTP router into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"query-scheduler/internal/api"
	"query-scheduler/internal/config"
	"query-scheduler/internal/db"
	"query-scheduler/internal/db/repository"
	"query-scheduler/internal/engine"
	"query-scheduler/internal/middleware"
	"query-scheduler/internal/service/scheduledquery"
	"query-scheduler/internal/service/scheduling"
)

// DefaultConnectionID names the in-memory DuckDB connection used when no
// connection catalog is configured.
const DefaultConnectionID = "memory"

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg    *config.Config
	Pools  *db.Pools
	Logger *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Queries     *scheduledquery.Service
	Scheduler   *scheduling.Scheduler
	Runner      *engine.DuckDBRunner
	RateLimiter *middleware.RateLimiter
	Handler     http.Handler

	logger *slog.Logger
}

// New wires the application from deps. Nothing is started; call Start.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger

	conns := map[string]engine.Connection{DefaultConnectionID: {}}
	if cfg.ConnectionsFile != "" {
		loaded, err := engine.LoadConnections(cfg.ConnectionsFile)
		if err != nil {
			return nil, err
		}
		conns = loaded
	}
	logger.Info("connections loaded", "ids", engine.ConnectionIDs(conns))

	// === Repositories ===
	queryRepo := repository.NewScheduledQueryRepo(deps.Pools.Write)
	tagRepo := repository.NewTagRepo(deps.Pools.Write)
	auditRepo := repository.NewAuditRepo(deps.Pools.Write)

	// === Runner and scheduler ===
	runner := engine.NewDuckDBRunner(conns, cfg.MaxConcurrentRuns, logger.With("component", "runner"))
	sched := scheduling.NewScheduler(queryRepo, runner, logger.With("component", "scheduler"))

	// === Services ===
	svc := scheduledquery.NewService(queryRepo, tagRepo, auditRepo, logger.With("component", "scheduled-queries"))
	svc.SetScheduler(sched)

	// === HTTP ===
	validators, err := buildValidators(ctx, cfg.Auth)
	if err != nil {
		_ = runner.Close()
		return nil, err
	}
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})
	handler := api.NewRouter(api.NewHandler(svc, logger.With("component", "api")), api.RouterConfig{
		Validators:         validators,
		NameClaim:          cfg.Auth.NameClaim,
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	})

	return &App{
		Queries:     svc,
		Scheduler:   sched,
		Runner:      runner,
		RateLimiter: limiter,
		Handler:     handler,
		logger:      logger,
	}, nil
}

// Start registers every stored schedule and starts the cron loop and the
// rate limiter's eviction loop. Both stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	go a.RateLimiter.Run(ctx)
	return nil
}

// Shutdown waits for in-flight runs, bounded by ctx, then closes the
// DuckDB connections.
func (a *App) Shutdown(ctx context.Context) error {
	a.Scheduler.Stop(ctx)
	if err := a.Runner.Close(); err != nil {
		return fmt.Errorf("close runner: %w", err)
	}
	return nil
}

func buildValidators(ctx context.Context, auth config.AuthConfig) ([]middleware.TokenValidator, error) {
	var validators []middleware.TokenValidator
	if auth.JWTSecret != "" {
		v, err := middleware.NewHS256Validator(auth.JWTSecret)
		if err != nil {
			return nil, err
		}
		validators = append(validators, v)
	}
	if auth.IssuerURL != "" {
		v, err := middleware.NewOIDCValidator(ctx, auth.IssuerURL, auth.Audience, auth.AllowedIssuers)
		if err != nil {
			return nil, errors.Join(errors.New("configure OIDC validator"), err)
		}
		validators = append(validators, v)
	}
	return validators, nil
}
