package rankqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"
)

// QueueService defines the contract for reconcile job scheduling.
type QueueService interface {
	// EnqueueReconcile inserts one job per user and returns how many were inserted.
	// Jobs are not deduplicated: a job already running may have read history
	// before the change that triggered the new one.
	EnqueueReconcile(ctx context.Context, userIDs []string) (int, error)
	// Bind sets the reconciler the worker dispatches to.
	Bind(r Reconciler)
	// HealthCheck verifies the queue service is healthy
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Ensure Service implements QueueService
var _ QueueService = (*Service)(nil)

// Config holds the queue's tunables.
type Config struct {
	MaxWorkers    int
	MaxAttempts   int
	JobTimeout    time.Duration
	SweepInterval time.Duration
}

// Service handles reconcile scheduling using River.
type Service struct {
	client      *river.Client[pgx.Tx]
	pool        *pgxpool.Pool
	worker      *ReconcileWorker
	logger      *slog.Logger
	db          *bun.DB
	metrics     observability.OperationMetrics
	maxAttempts int
}

// NewService creates a River-based queue service for rank reconciles.
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, cfg Config, metrics observability.OperationMetrics) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_rank_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", "river")

	ctxLogger.Info("Initializing rank queue service")

	// River requires pgx, not database/sql
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		ctxLogger.Error("Failed to parse DSN for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		ctxLogger.Error("Failed to create pgx pool for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to ping database for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	workers := river.NewWorkers()
	worker := NewReconcileWorker(ctxLogger, cfg.JobTimeout)
	river.AddWorker(workers, worker)
	river.AddWorker(workers, &SweepWorker{binding: worker.binding, logger: ctxLogger})

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueName: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.SweepInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return SweepPendingArgs{}, &river.InsertOpts{Queue: QueueName, MaxAttempts: 1}
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
		Logger: logger,
	})
	if err != nil {
		pool.Close()
		ctxLogger.Error("Failed to create River client", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	service := &Service{
		client:      riverClient,
		pool:        pool,
		worker:      worker,
		logger:      ctxLogger,
		db:          bunDB,
		metrics:     metrics,
		maxAttempts: cfg.MaxAttempts,
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", "river")
	metrics.RecordOperationDuration(ctx, "initialize_service", "river", time.Since(start))

	ctxLogger.Info("Rank queue service initialized successfully")
	return service, nil
}

// Bind sets the reconciler. Call before Start.
func (s *Service) Bind(r Reconciler) { s.worker.Bind(r) }

// Start starts the River queue service
func (s *Service) Start(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "start_service", "river")

	s.logger.Info("Starting rank queue service")

	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service", "river")
		return fmt.Errorf("failed to start River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "start_service", "river")
	s.metrics.RecordOperationDuration(ctx, "start_service", "river", time.Since(start))

	s.logger.Info("Rank queue service started successfully")
	return nil
}

// Stop stops the River queue service and releases its pool.
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "stop_service", "river")

	s.logger.Info("Stopping rank queue service")
	defer s.pool.Close()

	if err := s.client.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_service", "river")
		return fmt.Errorf("failed to stop River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "stop_service", "river")
	s.metrics.RecordOperationDuration(ctx, "stop_service", "river", time.Since(start))

	s.logger.Info("Rank queue service stopped successfully")
	return nil
}

// EnqueueReconcile inserts reconcile jobs in one batch.
func (s *Service) EnqueueReconcile(ctx context.Context, userIDs []string) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "enqueue_reconcile", "river")

	params := make([]river.InsertManyParams, 0, len(userIDs))
	for _, id := range userIDs {
		params = append(params, river.InsertManyParams{
			Args: ReconcileRanksArgs{UserID: id},
			InsertOpts: &river.InsertOpts{
				Queue:       QueueName,
				MaxAttempts: s.maxAttempts,
			},
		})
	}

	inserted, err := s.client.InsertMany(ctx, params)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue reconcile jobs",
			attr.ExtractCorrelationID(ctx),
			attr.Int("users", len(userIDs)),
			attr.Error(err),
		)
		s.metrics.RecordOperationFailure(ctx, "enqueue_reconcile", "river")
		return 0, fmt.Errorf("failed to enqueue reconcile jobs: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "enqueue_reconcile", "river")
	s.metrics.RecordOperationDuration(ctx, "enqueue_reconcile", "river", time.Since(start))

	s.logger.InfoContext(ctx, "Reconcile jobs enqueued",
		attr.ExtractCorrelationID(ctx),
		attr.Int("inserted", len(inserted)),
	)
	return len(inserted), nil
}

// HealthCheck verifies the queue service is healthy
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}

	var count int
	err := s.db.NewSelect().
		Table("river_job").
		ColumnExpr("COUNT(*)").
		Where("queue = ?", QueueName).
		Where("state IN (?, ?)", "available", "retryable").
		Scan(ctx, &count)
	if err != nil {
		s.logger.Error("Queue service health check failed", attr.Error(err))
		return fmt.Errorf("queue service health check failed: %w", err)
	}

	s.logger.Debug("Queue service health check passed", attr.Int("pending_jobs", count))
	return nil
}
