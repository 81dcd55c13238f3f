package userservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserService implements the Service interface.
type UserService struct {
	repo    userdb.Repository
	logger  *slog.Logger
	metrics observability.OperationMetrics
	tracer  trace.Tracer
	db      *bun.DB
}

// NewUserService creates a new UserService.
func NewUserService(
	repo userdb.Repository,
	logger *slog.Logger,
	metrics observability.OperationMetrics,
	tracer trace.Tracer,
	db *bun.DB,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		db:      db,
	}
}

// GetStanding reads the persisted snapshot.
func (s *UserService) GetStanding(ctx context.Context, userID string) (userdb.Standing, error) {
	user, err := s.repo.GetUser(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, userdb.ErrNotFound) {
			return userdb.Standing{}, nil
		}
		return userdb.Standing{}, fmt.Errorf("failed to load standing: %w", err)
	}
	return userdb.Standing{
		RankCount:  user.RankCount,
		GoldPlus:   user.GoldPlus,
		SilverPlus: user.SilverPlus,
		BronzePlus: user.BronzePlus,
	}, nil
}

// NotificationsEnabled checks the opt-out mask.
func (s *UserService) NotificationsEnabled(ctx context.Context, userID string, kind notification.Kind) (bool, error) {
	mask, err := s.repo.GetOptOut(ctx, nil, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load notification settings: %w", err)
	}
	return mask&kind.Flag() == 0, nil
}

// SetNotificationPreference updates one opt-out bit.
func (s *UserService) SetNotificationPreference(ctx context.Context, userID string, kind notification.Kind, enabled bool) (results.OperationResult[int64, error], error) {
	return withTelemetry(s, ctx, "SetNotificationPreference", userID, func(ctx context.Context) (results.OperationResult[int64, error], error) {
		if userID == "" {
			return results.FailureResult[int64, error](ErrInvalidUserID), nil
		}
		if kind.String() == "unknown" {
			return results.FailureResult[int64, error](ErrUnknownKind), nil
		}
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[int64, error], error) {
			mask, err := s.repo.SetOptOut(ctx, db, userID, kind.Flag(), !enabled)
			if err != nil {
				return results.OperationResult[int64, error]{}, err
			}
			return results.SuccessResult[int64, error](mask), nil
		})
	})
}

type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *UserService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("identifier", identifier),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, "UserService")
	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "UserService", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "UserService")
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
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, "UserService")
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.Operation(operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, "UserService")
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *UserService,
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
