package mapservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mapdb "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/difficulty"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MapService implements the Service interface.
type MapService struct {
	repo      mapdb.Repository
	scheduler ReconcileScheduler
	logger    *slog.Logger
	metrics   observability.OperationMetrics
	tracer    trace.Tracer
	db        *bun.DB
}

// NewMapService creates a new MapService.
func NewMapService(
	repo mapdb.Repository,
	scheduler ReconcileScheduler,
	logger *slog.Logger,
	metrics observability.OperationMetrics,
	tracer trace.Tracer,
	db *bun.DB,
) *MapService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MapService{
		repo:      repo,
		scheduler: scheduler,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
	}
}

// GetMap loads a map with its rating summary.
func (s *MapService) GetMap(ctx context.Context, code string) (*MapView, error) {
	if code == "" {
		return nil, ErrInvalidMapCode
	}
	m, err := s.repo.GetMap(ctx, nil, code)
	if err != nil {
		if errors.Is(err, mapdb.ErrNotFound) {
			return nil, ErrMapNotFound
		}
		return nil, fmt.Errorf("failed to load map: %w", err)
	}
	ratings, err := s.repo.ListRatings(ctx, nil, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	view := toView(m)
	view.RatingCount = len(ratings)
	if len(ratings) > 0 {
		var sum float64
		for _, r := range ratings {
			sum += r.Value
		}
		view.MeanRating = sum / float64(len(ratings))
	}
	return &view, nil
}

// EditDifficulty updates the map then schedules reconciles after commit.
func (s *MapService) EditDifficulty(ctx context.Context, code, gradeName, requestedBy string) (results.OperationResult[MapUpdate, error], error) {
	return withTelemetry(s, ctx, "EditDifficulty", code, func(ctx context.Context) (results.OperationResult[MapUpdate, error], error) {
		if code == "" {
			return results.FailureResult[MapUpdate, error](ErrInvalidMapCode), nil
		}
		grade, err := difficulty.ParseGrade(gradeName)
		if err != nil {
			return results.FailureResult[MapUpdate, error](err), nil
		}
		return s.updateAndSchedule(ctx, code, requestedBy, func(ctx context.Context, db bun.IDB) (*mapdb.Map, error) {
			return s.repo.UpdateDifficulty(ctx, db, code, grade.Midpoint())
		})
	})
}

// SetArchived toggles the archived flag then schedules reconciles after commit.
func (s *MapService) SetArchived(ctx context.Context, code string, archived bool, requestedBy string) (results.OperationResult[MapUpdate, error], error) {
	return withTelemetry(s, ctx, "SetArchived", code, func(ctx context.Context) (results.OperationResult[MapUpdate, error], error) {
		if code == "" {
			return results.FailureResult[MapUpdate, error](ErrInvalidMapCode), nil
		}
		return s.updateAndSchedule(ctx, code, requestedBy, func(ctx context.Context, db bun.IDB) (*mapdb.Map, error) {
			return s.repo.SetArchived(ctx, db, code, archived)
		})
	})
}

func (s *MapService) updateAndSchedule(
	ctx context.Context,
	code, requestedBy string,
	update func(ctx context.Context, db bun.IDB) (*mapdb.Map, error),
) (results.OperationResult[MapUpdate, error], error) {
	result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[MapUpdate, error], error) {
		m, err := update(ctx, db)
		switch {
		case errors.Is(err, mapdb.ErrNotFound):
			return results.FailureResult[MapUpdate, error](ErrMapNotFound), nil
		case errors.Is(err, mapdb.ErrNotOfficial):
			return results.FailureResult[MapUpdate, error](ErrMapInPlaytest), nil
		case err != nil:
			return results.OperationResult[MapUpdate, error]{}, err
		}
		return results.SuccessResult[MapUpdate, error](MapUpdate{Map: toView(m)}), nil
	})
	if err != nil || result.IsFailure() {
		return result, err
	}

	// Scheduling failures surface as errors so the request is redelivered;
	// the update above is idempotent.
	affected, err := s.scheduler.ReconcileMapCompleters(ctx, code)
	if err != nil {
		return results.OperationResult[MapUpdate, error]{}, fmt.Errorf("failed to schedule reconciles: %w", err)
	}
	result.Success.Affected = affected

	s.logger.InfoContext(ctx, "Map updated by moderator",
		attr.ExtractCorrelationID(ctx),
		attr.MapCode(code),
		attr.String("requested_by", requestedBy),
		attr.Float64("difficulty", result.Success.Map.Difficulty),
		attr.Bool("archived", result.Success.Map.Archived),
		attr.Int("affected_users", affected),
	)
	return result, nil
}

func toView(m *mapdb.Map) MapView {
	view := MapView{
		Code:       m.Code,
		Name:       m.Name,
		AuthorID:   m.AuthorID,
		Difficulty: m.Difficulty,
		Official:   m.Official,
		Archived:   m.Archived,
	}
	if g, err := difficulty.GradeForValue(m.Difficulty); err == nil {
		view.Grade = g.String()
	}
	return view
}

type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *MapService,
	ctx context.Context,
	operationName string,
	mapCode string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("map_code", mapCode),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, "MapService")
	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "MapService", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.MapCode(mapCode),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "MapService")
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.Operation(operationName),
			attr.MapCode(mapCode),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, "MapService")
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.Operation(operationName),
			attr.MapCode(mapCode),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, "MapService")
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *MapService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})
	return result, err
}
