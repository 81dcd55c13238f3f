package rankservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	rankdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/domain"
	rankdb "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/repositories"
	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// sweepBatch bounds how many pending maps one sweep settles.
const sweepBatch = 100

// RankService implements the Service interface.
type RankService struct {
	repo      rankdb.Repository
	users     userdb.Repository
	roles     RoleSink
	notifier  notification.Sink
	queue     JobQueue
	publisher handlerwrapper.Publisher
	table     rankdomain.RoleTable
	newsfeed  string
	logger    *slog.Logger
	metrics   observability.OperationMetrics
	tracer    trace.Tracer
	db        *bun.DB
}

// Deps groups RankService collaborators.
type Deps struct {
	Repo              rankdb.Repository
	Users             userdb.Repository
	Roles             RoleSink
	Notifier          notification.Sink
	Queue             JobQueue
	Publisher         handlerwrapper.Publisher
	RoleTable         rankdomain.RoleTable
	NewsfeedChannelID string
	Logger            *slog.Logger
	Metrics           observability.OperationMetrics
	Tracer            trace.Tracer
	DB                *bun.DB
}

// NewRankService creates a new RankService.
func NewRankService(d Deps) *RankService {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &RankService{
		repo:      d.Repo,
		users:     d.Users,
		roles:     d.Roles,
		notifier:  d.Notifier,
		queue:     d.Queue,
		publisher: d.Publisher,
		table:     d.RoleTable,
		newsfeed:  d.NewsfeedChannelID,
		logger:    d.Logger,
		metrics:   d.Metrics,
		tracer:    d.Tracer,
		db:        d.DB,
	}
}

// ReconcileUser runs one reconcile pass under the user's advisory lock.
// Role replacement happens inside the transaction so a concurrent pass for
// the same user reads the roles this one wrote. A user who left the guild
// still has their standing persisted; only the role call is skipped.
func (s *RankService) ReconcileUser(ctx context.Context, userID string) (results.OperationResult[ReconcileOutcome, error], error) {
	result, err := withTelemetry(s, ctx, "ReconcileUser", userID, func(ctx context.Context) (results.OperationResult[ReconcileOutcome, error], error) {
		if userID == "" {
			return results.FailureResult[ReconcileOutcome, error](ErrInvalidUserID), nil
		}
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[ReconcileOutcome, error], error) {
			if err := s.repo.LockUser(ctx, db, userID); err != nil {
				return results.OperationResult[ReconcileOutcome, error]{}, err
			}

			history, err := s.repo.ListCompletions(ctx, db, userID)
			if err != nil {
				return results.OperationResult[ReconcileOutcome, error]{}, err
			}
			out := ReconcileOutcome{
				UserID:      userID,
				Progression: rankdomain.ComputeProgression(history),
			}

			previous, err := s.previousStanding(ctx, db, userID)
			if err != nil {
				return results.OperationResult[ReconcileOutcome, error]{}, err
			}
			out.Previous = previous

			current, err := s.roles.CurrentRoles(ctx, userID)
			switch {
			case errors.Is(err, ErrMemberNotFound):
				out.Departed = true
			case err != nil:
				return results.OperationResult[ReconcileOutcome, error]{}, fmt.Errorf("failed to read roles: %w", err)
			default:
				out.Delta = rankdomain.Diff(current, s.table.TargetRoles(out.Progression), s.table.Managed())
				if !out.Delta.Empty() {
					if err := s.roles.ReplaceRoles(ctx, userID, out.Delta.Apply(current)); err != nil {
						return results.OperationResult[ReconcileOutcome, error]{}, fmt.Errorf("failed to replace roles: %w", err)
					}
				}
			}

			if err := s.users.SaveStanding(ctx, db, userID, userdb.Standing{
				RankCount:  out.Progression.RankCount,
				GoldPlus:   out.Progression.GoldPlus,
				SilverPlus: out.Progression.SilverPlus,
				BronzePlus: out.Progression.BronzePlus,
			}); err != nil {
				return results.OperationResult[ReconcileOutcome, error]{}, err
			}

			return results.SuccessResult[ReconcileOutcome, error](out), nil
		})
	})
	if err != nil || !result.IsSuccess() {
		return result, err
	}

	if result.Success.Departed {
		s.logger.InfoContext(ctx, "Skipped role reconcile for departed member",
			attr.ExtractCorrelationID(ctx),
			attr.UserID(userID),
		)
		return result, nil
	}
	s.notify(ctx, *result.Success)
	return result, nil
}

func (s *RankService) previousStanding(ctx context.Context, db bun.IDB, userID string) (rankdomain.Progression, error) {
	user, err := s.users.GetUser(ctx, db, userID)
	if errors.Is(err, userdb.ErrNotFound) {
		return rankdomain.Progression{}, nil
	}
	if err != nil {
		return rankdomain.Progression{}, fmt.Errorf("failed to load standing: %w", err)
	}
	return rankdomain.Progression{
		RankCount:  user.RankCount,
		GoldPlus:   user.GoldPlus,
		SilverPlus: user.SilverPlus,
		BronzePlus: user.BronzePlus,
	}, nil
}

// notify sends one notice per pass. Promotions go to the user and the
// newsfeed; any other change, including a medal swap alongside a lower rank,
// is a private recalculation notice. Delivery failures are logged; a retried
// reconcile would find an empty delta and send nothing.
func (s *RankService) notify(ctx context.Context, out ReconcileOutcome) {
	if out.Delta.Empty() {
		return
	}
	if !out.Promoted() {
		s.send(ctx, func() error {
			return s.notifier.NotifyUser(ctx, out.UserID, notification.KindDemotion,
				fmt.Sprintf("Your rank was recalculated after a map change and is now %s.", describe(out.Progression)))
		})
		return
	}

	s.send(ctx, func() error {
		return s.notifier.NotifyUser(ctx, out.UserID, notification.KindPromotion,
			fmt.Sprintf("Congratulations! Your rank is now %s.", describe(out.Progression)))
	})
	if s.newsfeed != "" {
		s.send(ctx, func() error {
			return s.notifier.NotifyChannel(ctx, s.newsfeed, notification.KindPromotion,
				fmt.Sprintf("<@%s> has been promoted to %s!", out.UserID, out.Progression.RankName()))
		})
	}
}

func (s *RankService) send(ctx context.Context, fn func() error) {
	if err := fn(); err != nil {
		s.logger.WarnContext(ctx, "Failed to deliver rank notification",
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
	}
}

func describe(p rankdomain.Progression) string {
	out := p.RankName()
	for _, m := range rankdomain.PlusMedals {
		if n := p.PlusCount(m); n > 0 {
			out += fmt.Sprintf(", %d %s plus", n, m)
		}
	}
	return out
}

// ReconcileUserJob is the queue worker entry point. Validation failures are
// dropped; anything else is returned for River to retry.
func (s *RankService) ReconcileUserJob(ctx context.Context, userID string) error {
	result, err := s.ReconcileUser(ctx, userID)
	if err != nil {
		return err
	}
	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Dropping reconcile job", attr.UserID(userID), attr.Error(*result.Failure))
		return nil
	}
	if s.publisher == nil {
		return nil
	}

	out := result.Success
	msg, err := handlerwrapper.NewMessage(ctx, handlerwrapper.Result{
		Topic: events.RankReconciledV1,
		Payload: &events.RankReconciledPayloadV1{
			UserID:     out.UserID,
			RankCount:  out.Progression.RankCount,
			GoldPlus:   out.Progression.GoldPlus,
			SilverPlus: out.Progression.SilverPlus,
			BronzePlus: out.Progression.BronzePlus,
			Added:      out.Delta.ToAdd,
			Removed:    out.Delta.ToRemove,
		},
	})
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(events.RankReconciledV1, msg); err != nil {
		// Roles are already applied; a retry would be a no-op apart from this event.
		s.logger.WarnContext(ctx, "Failed to publish rank reconciled event", attr.UserID(userID), attr.Error(err))
	}
	return nil
}

// CurrentRank reads the persisted standing. Unknown users are rank 1.
func (s *RankService) CurrentRank(ctx context.Context, userID string) (int, error) {
	user, err := s.users.GetUser(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, userdb.ErrNotFound) {
			return rankdomain.Progression{}.Rank(), nil
		}
		return 0, fmt.Errorf("failed to load rank: %w", err)
	}
	return rankdomain.Progression{RankCount: user.RankCount}.Rank(), nil
}

// GetProgression computes progression from the authoritative history.
func (s *RankService) GetProgression(ctx context.Context, userID string) (*ProgressionView, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	history, err := s.repo.ListCompletions(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	p := rankdomain.ComputeProgression(history)
	return &ProgressionView{
		UserID:     userID,
		Rank:       p.Rank(),
		RankName:   p.RankName(),
		RankCount:  p.RankCount,
		GoldPlus:   p.GoldPlus,
		SilverPlus: p.SilverPlus,
		BronzePlus: p.BronzePlus,
	}, nil
}

// ReconcileUsers enqueues reconcile jobs, skipping blanks and duplicates.
func (s *RankService) ReconcileUsers(ctx context.Context, userIDs ...string) (int, error) {
	seen := make(map[string]struct{}, len(userIDs))
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return s.queue.EnqueueReconcile(ctx, ids)
}

// ReconcileMapCompleters enqueues reconciles for every completer of mapCode
// and then clears the map's pending marker.
func (s *RankService) ReconcileMapCompleters(ctx context.Context, mapCode string) (int, error) {
	if mapCode == "" {
		return 0, ErrInvalidMap
	}
	ids, err := s.repo.ListCompleters(ctx, nil, mapCode)
	if err != nil {
		return 0, err
	}
	n, err := s.ReconcileUsers(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if err := s.repo.ClearMapPending(ctx, nil, mapCode); err != nil {
		// The next sweep enqueues the same users again, which is harmless.
		s.logger.WarnContext(ctx, "Failed to clear pending map marker",
			attr.ExtractCorrelationID(ctx),
			attr.MapCode(mapCode),
			attr.Error(err),
		)
	}
	return n, nil
}

// MarkMapPending records the reconcile debt in the caller's transaction.
func (s *RankService) MarkMapPending(ctx context.Context, db bun.IDB, mapCode string) error {
	if mapCode == "" {
		return ErrInvalidMap
	}
	return s.repo.MarkMapPending(ctx, db, mapCode)
}

// SweepPendingReconciles settles up to sweepBatch pending maps. A map that
// fails keeps its marker for the next sweep.
func (s *RankService) SweepPendingReconciles(ctx context.Context) (int, error) {
	codes, err := s.repo.ListPendingMaps(ctx, nil, sweepBatch)
	if err != nil {
		return 0, err
	}

	total := 0
	var errs []error
	for _, code := range codes {
		n, err := s.ReconcileMapCompleters(ctx, code)
		if err != nil {
			errs = append(errs, fmt.Errorf("map %s: %w", code, err))
			continue
		}
		total += n
	}
	if len(codes) > 0 {
		s.logger.InfoContext(ctx, "Swept pending map reconciles",
			attr.Int("maps", len(codes)),
			attr.Int("enqueued", total),
		)
	}
	return total, errors.Join(errs...)
}

type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *RankService,
	ctx context.Context,
	operationName string,
	userID string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("user_id", userID),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, "RankService")
	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "RankService", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.UserID(userID),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "RankService")
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
			attr.UserID(userID),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, "RankService")
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.Operation(operationName),
			attr.UserID(userID),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, "RankService")
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *RankService,
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
