package playtestservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mapdb "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/repositories"
	playtestdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/domain"
	playtestdb "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/infrastructure/repositories"
	rankdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/domain"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/difficulty"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PlaytestService implements the Service interface.
type PlaytestService struct {
	repo      playtestdb.Repository
	maps      mapdb.Repository
	ranks     RankLookup
	scheduler ReconcileScheduler
	notifier  notification.Sink
	newsfeed  string
	logger    *slog.Logger
	metrics   observability.OperationMetrics
	tracer    trace.Tracer
	db        *bun.DB
	now       func() time.Time
}

// Deps groups PlaytestService collaborators.
type Deps struct {
	Repo              playtestdb.Repository
	Maps              mapdb.Repository
	Ranks             RankLookup
	Scheduler         ReconcileScheduler
	Notifier          notification.Sink
	NewsfeedChannelID string
	Logger            *slog.Logger
	Metrics           observability.OperationMetrics
	Tracer            trace.Tracer
	DB                *bun.DB
}

// NewPlaytestService creates a new PlaytestService.
func NewPlaytestService(d Deps) *PlaytestService {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &PlaytestService{
		repo:      d.Repo,
		maps:      d.Maps,
		ranks:     d.Ranks,
		scheduler: d.Scheduler,
		notifier:  d.Notifier,
		newsfeed:  d.NewsfeedChannelID,
		logger:    d.Logger,
		metrics:   d.Metrics,
		tracer:    d.Tracer,
		db:        d.DB,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OpenSession creates the unofficial map, the open session and the author's
// seed vote together.
func (s *PlaytestService) OpenSession(ctx context.Context, req OpenRequest) (results.OperationResult[SessionView, error], error) {
	result, err := withTelemetry(s, ctx, "OpenSession", req.MapCode, func(ctx context.Context) (results.OperationResult[SessionView, error], error) {
		if req.MapCode == "" {
			return results.FailureResult[SessionView, error](ErrInvalidMapCode), nil
		}
		if req.AuthorID == "" {
			return results.FailureResult[SessionView, error](ErrInvalidUserID), nil
		}
		grade, err := difficulty.ParseGrade(req.Grade)
		if err != nil {
			return results.FailureResult[SessionView, error](err), nil
		}

		rank, err := s.ranks.CurrentRank(ctx, req.AuthorID)
		if err != nil {
			return results.OperationResult[SessionView, error]{}, fmt.Errorf("failed to resolve author rank: %w", err)
		}
		if !rankdomain.CanSubmit(rank, grade.Tier()) {
			return results.FailureResult[SessionView, error](playtestdomain.ErrTierNotAllowed), nil
		}

		base := playtestdomain.VoteValue(grade)
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[SessionView, error], error) {
			err := s.maps.InsertPlaytestMap(ctx, db, &mapdb.Map{
				Code:       req.MapCode,
				Name:       req.MapName,
				AuthorID:   req.AuthorID,
				Difficulty: base,
			})
			if errors.Is(err, mapdb.ErrAlreadyExists) {
				return results.FailureResult[SessionView, error](ErrMapExists), nil
			}
			if err != nil {
				return results.OperationResult[SessionView, error]{}, err
			}

			err = s.repo.CreateSession(ctx, db, &playtestdb.Playtest{
				MapCode:   req.MapCode,
				AuthorID:  req.AuthorID,
				BaseValue: base,
			})
			if errors.Is(err, playtestdb.ErrAlreadyExists) {
				return results.FailureResult[SessionView, error](ErrMapExists), nil
			}
			if err != nil {
				return results.OperationResult[SessionView, error]{}, err
			}

			if err := s.repo.UpsertVote(ctx, db, &playtestdb.PlaytestVote{
				MapCode: req.MapCode,
				VoterID: req.AuthorID,
				Value:   base,
			}); err != nil {
				return results.OperationResult[SessionView, error]{}, fmt.Errorf("failed to seed author vote: %w", err)
			}

			return results.SuccessResult[SessionView, error](s.view(&playtestdb.Playtest{
				MapCode:   req.MapCode,
				AuthorID:  req.AuthorID,
				BaseValue: base,
				State:     string(playtestdomain.StateOpen),
			}, 0, 0)), nil
		})
	})
	if err != nil || !result.IsSuccess() {
		return result, err
	}

	if s.newsfeed != "" {
		s.send(ctx, func() error {
			return s.notifier.NotifyChannel(ctx, s.newsfeed, notification.KindNewMap,
				fmt.Sprintf("New playtest: %s (%s) by <@%s>. Vote on its difficulty!", req.MapCode, result.Success.BaseGrade, req.AuthorID))
		})
	}
	return result, nil
}

// CastVote upserts the vote and evaluates the quorums. Arrivals for a
// missing or closed session fail with ErrSessionClosed.
func (s *PlaytestService) CastVote(ctx context.Context, mapCode, voterID, gradeName string) (results.OperationResult[VoteOutcome, error], error) {
	return withTelemetry(s, ctx, "CastVote", mapCode, func(ctx context.Context) (results.OperationResult[VoteOutcome, error], error) {
		if mapCode == "" {
			return results.FailureResult[VoteOutcome, error](ErrInvalidMapCode), nil
		}
		if voterID == "" {
			return results.FailureResult[VoteOutcome, error](ErrInvalidUserID), nil
		}
		grade, err := difficulty.ParseGrade(gradeName)
		if err != nil {
			return results.FailureResult[VoteOutcome, error](err), nil
		}

		session, err := s.openSession(ctx, mapCode)
		if err != nil {
			if errors.Is(err, playtestdomain.ErrSessionClosed) {
				return results.FailureResult[VoteOutcome, error](err), nil
			}
			return results.OperationResult[VoteOutcome, error]{}, err
		}

		rank := 0
		if session.BaseTier() == difficulty.Hell && voterID != session.AuthorID {
			if rank, err = s.ranks.CurrentRank(ctx, voterID); err != nil {
				return results.OperationResult[VoteOutcome, error]{}, fmt.Errorf("failed to resolve voter rank: %w", err)
			}
		}
		if err := playtestdomain.CheckVoter(session, voterID, rank); err != nil {
			return results.FailureResult[VoteOutcome, error](err), nil
		}

		value := playtestdomain.VoteValue(grade)
		err = s.repo.UpsertVote(ctx, nil, &playtestdb.PlaytestVote{MapCode: mapCode, VoterID: voterID, Value: value})
		if errors.Is(err, playtestdb.ErrSessionNotOpen) {
			return results.FailureResult[VoteOutcome, error](playtestdomain.ErrSessionClosed), nil
		}
		if err != nil {
			return results.OperationResult[VoteOutcome, error]{}, err
		}

		progress, err := s.evaluate(ctx, session)
		if err != nil {
			return results.OperationResult[VoteOutcome, error]{}, err
		}
		return results.SuccessResult[VoteOutcome, error](VoteOutcome{
			Progress: progress,
			VoterID:  voterID,
			Value:    value,
		}), nil
	})
}

// RecordCompletion re-evaluates an open session after a completion arrives.
func (s *PlaytestService) RecordCompletion(ctx context.Context, mapCode, userID string) (results.OperationResult[Progress, error], error) {
	return withTelemetry(s, ctx, "RecordCompletion", mapCode, func(ctx context.Context) (results.OperationResult[Progress, error], error) {
		if mapCode == "" {
			return results.FailureResult[Progress, error](ErrInvalidMapCode), nil
		}
		session, err := s.openSession(ctx, mapCode)
		if err != nil {
			if errors.Is(err, playtestdomain.ErrSessionClosed) {
				return results.FailureResult[Progress, error](err), nil
			}
			return results.OperationResult[Progress, error]{}, err
		}
		progress, err := s.evaluate(ctx, session)
		if err != nil {
			return results.OperationResult[Progress, error]{}, err
		}
		return results.SuccessResult[Progress, error](progress), nil
	})
}

// Finalize decides the session regardless of quorum. Losing the claim is a
// ErrFinalizeLost failure.
func (s *PlaytestService) Finalize(ctx context.Context, mapCode string) (results.OperationResult[FinalizeOutcome, error], error) {
	return withTelemetry(s, ctx, "Finalize", mapCode, func(ctx context.Context) (results.OperationResult[FinalizeOutcome, error], error) {
		if mapCode == "" {
			return results.FailureResult[FinalizeOutcome, error](ErrInvalidMapCode), nil
		}
		return s.finalize(ctx, mapCode)
	})
}

// GetSession returns the session with live quorum counts.
func (s *PlaytestService) GetSession(ctx context.Context, mapCode string) (*SessionView, error) {
	if mapCode == "" {
		return nil, ErrInvalidMapCode
	}
	p, err := s.repo.GetSession(ctx, nil, mapCode)
	if err != nil {
		if errors.Is(err, playtestdb.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load playtest: %w", err)
	}
	votes, err := s.repo.ListVotes(ctx, nil, mapCode)
	if err != nil {
		return nil, err
	}
	completions, err := s.repo.CountCompleters(ctx, nil, mapCode, p.AuthorID)
	if err != nil {
		return nil, err
	}
	view := s.view(p, playtestdomain.CountVoters(votes, p.AuthorID), completions)
	return &view, nil
}

func (s *PlaytestService) openSession(ctx context.Context, mapCode string) (playtestdomain.Session, error) {
	p, err := s.repo.GetSession(ctx, nil, mapCode)
	if err != nil {
		if errors.Is(err, playtestdb.ErrNotFound) {
			return playtestdomain.Session{}, playtestdomain.ErrSessionClosed
		}
		return playtestdomain.Session{}, fmt.Errorf("failed to load playtest: %w", err)
	}
	session := toSession(p)
	if session.State != playtestdomain.StateOpen {
		return playtestdomain.Session{}, playtestdomain.ErrSessionClosed
	}
	return session, nil
}

// evaluate counts both quorums and finalizes once they are met. A lost claim
// means another arrival is finalizing and is not an error here.
func (s *PlaytestService) evaluate(ctx context.Context, session playtestdomain.Session) (Progress, error) {
	votes, err := s.repo.ListVotes(ctx, nil, session.MapCode)
	if err != nil {
		return Progress{}, err
	}
	completions, err := s.repo.CountCompleters(ctx, nil, session.MapCode, session.AuthorID)
	if err != nil {
		return Progress{}, err
	}

	tier := session.BaseTier()
	progress := Progress{
		MapCode:     session.MapCode,
		Voters:      playtestdomain.CountVoters(votes, session.AuthorID),
		Completions: completions,
		Required:    playtestdomain.RequiredVotes(tier),
	}
	if !playtestdomain.Eligible(tier, progress.Voters, progress.Completions) {
		return progress, nil
	}

	result, err := s.finalize(ctx, session.MapCode)
	if err != nil {
		return Progress{}, err
	}
	if result.IsSuccess() {
		progress.Finalized = result.Success
	}
	return progress, nil
}

// finalize claims the session and decides it in one transaction. An approval
// also records the completers' reconcile debt in that transaction. Side
// effects outside the database run only for the claim winner after commit.
func (s *PlaytestService) finalize(ctx context.Context, mapCode string) (results.OperationResult[FinalizeOutcome, error], error) {
	result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[FinalizeOutcome, error], error) {
		won, err := s.repo.ClaimFinalize(ctx, db, mapCode)
		if err != nil {
			return results.OperationResult[FinalizeOutcome, error]{}, err
		}
		if !won {
			return results.FailureResult[FinalizeOutcome, error](playtestdomain.ErrFinalizeLost), nil
		}

		p, err := s.repo.GetSession(ctx, db, mapCode)
		if err != nil {
			return results.OperationResult[FinalizeOutcome, error]{}, err
		}
		votes, err := s.repo.ListVotes(ctx, db, mapCode)
		if err != nil {
			return results.OperationResult[FinalizeOutcome, error]{}, err
		}
		// An empty vote set rolls the claim back; the seed vote should make this unreachable.
		consensus, err := playtestdomain.ConsensusValue(votes)
		if err != nil {
			return results.OperationResult[FinalizeOutcome, error]{}, fmt.Errorf("playtest %s: %w", mapCode, err)
		}
		grade, err := difficulty.GradeForValue(consensus)
		if err != nil {
			return results.OperationResult[FinalizeOutcome, error]{}, err
		}
		authorRank, err := s.ranks.CurrentRank(ctx, p.AuthorID)
		if err != nil {
			return results.OperationResult[FinalizeOutcome, error]{}, fmt.Errorf("failed to resolve author rank: %w", err)
		}

		out := FinalizeOutcome{
			MapCode:        mapCode,
			AuthorID:       p.AuthorID,
			Approved:       rankdomain.CanSubmit(authorRank, grade.Tier()),
			ConsensusValue: consensus,
			ConsensusGrade: grade.String(),
			FinalizedAt:    s.now(),
		}
		if out.Approved {
			err = s.approve(ctx, db, p, votes, grade)
		} else {
			err = s.reject(ctx, db, mapCode)
		}
		if err != nil {
			return results.OperationResult[FinalizeOutcome, error]{}, err
		}

		state := playtestdomain.StateRejected
		if out.Approved {
			state = playtestdomain.StateApproved
		}
		if err := s.repo.CompleteSession(ctx, db, mapCode, state, consensus); err != nil {
			return results.OperationResult[FinalizeOutcome, error]{}, err
		}
		if out.Approved {
			if err := s.scheduler.MarkMapPending(ctx, db, mapCode); err != nil {
				return results.OperationResult[FinalizeOutcome, error]{}, err
			}
		}
		return results.SuccessResult[FinalizeOutcome, error](out), nil
	})
	if err != nil || !result.IsSuccess() {
		return result, err
	}

	out := result.Success
	s.logger.InfoContext(ctx, "Playtest finalized",
		attr.ExtractCorrelationID(ctx),
		attr.MapCode(mapCode),
		attr.Bool("approved", out.Approved),
		attr.Grade(out.ConsensusGrade),
	)
	s.announce(ctx, *out)

	if out.Approved {
		// The pending marker committed with the approval; the sweep retries on failure.
		affected, err := s.scheduler.ReconcileMapCompleters(ctx, mapCode)
		if err != nil {
			s.logger.WarnContext(ctx, "Reconciles left pending after approval",
				attr.ExtractCorrelationID(ctx),
				attr.MapCode(mapCode),
				attr.Error(err),
			)
		}
		out.Affected = affected
	}
	return result, nil
}

func (s *PlaytestService) approve(ctx context.Context, db bun.IDB, p *playtestdb.Playtest, votes []playtestdomain.Vote, grade difficulty.Grade) error {
	if err := s.maps.MarkOfficial(ctx, db, p.MapCode, grade.Midpoint()); err != nil {
		return err
	}
	ratings := make([]mapdb.Rating, 0, len(votes))
	for _, v := range votes {
		if v.VoterID == p.AuthorID {
			continue
		}
		ratings = append(ratings, mapdb.Rating{MapCode: p.MapCode, UserID: v.VoterID, Value: v.Value})
	}
	if err := s.maps.UpsertRatings(ctx, db, ratings); err != nil {
		return err
	}
	return s.repo.DeleteVotes(ctx, db, p.MapCode)
}

func (s *PlaytestService) reject(ctx context.Context, db bun.IDB, mapCode string) error {
	if err := s.repo.DeleteVotes(ctx, db, mapCode); err != nil {
		return err
	}
	return s.maps.DeleteMap(ctx, db, mapCode)
}

func (s *PlaytestService) announce(ctx context.Context, out FinalizeOutcome) {
	if !out.Approved {
		s.send(ctx, func() error {
			return s.notifier.NotifyUser(ctx, out.AuthorID, notification.KindMapRejected,
				fmt.Sprintf("Your map %s was rejected: playtesters rated it %s, which your rank does not allow.", out.MapCode, out.ConsensusGrade))
		})
		return
	}
	s.send(ctx, func() error {
		return s.notifier.NotifyUser(ctx, out.AuthorID, notification.KindMapApproved,
			fmt.Sprintf("Your map %s was approved at %s.", out.MapCode, out.ConsensusGrade))
	})
	if s.newsfeed != "" {
		s.send(ctx, func() error {
			return s.notifier.NotifyChannel(ctx, s.newsfeed, notification.KindNewMap,
				fmt.Sprintf("New official map %s (%s) by <@%s>!", out.MapCode, out.ConsensusGrade, out.AuthorID))
		})
	}
}

func (s *PlaytestService) send(ctx context.Context, fn func() error) {
	if s.notifier == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.WarnContext(ctx, "Failed to deliver playtest notification",
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
	}
}

func (s *PlaytestService) view(p *playtestdb.Playtest, voters, completions int) SessionView {
	session := toSession(p)
	tier := session.BaseTier()
	grade := "unknown"
	if g, err := difficulty.GradeForValue(p.BaseValue); err == nil {
		grade = g.String()
	}
	return SessionView{
		MapCode:             p.MapCode,
		AuthorID:            p.AuthorID,
		State:               p.State,
		BaseGrade:           grade,
		BaseValue:           p.BaseValue,
		Voters:              voters,
		Completions:         completions,
		RequiredVotes:       playtestdomain.RequiredVotes(tier),
		RequiredCompletions: playtestdomain.RequiredCompletions(tier),
		ListingVotes:        playtestdomain.RequiredVotesForListing(p.BaseValue),
		ConsensusValue:      p.ConsensusValue,
	}
}

func toSession(p *playtestdb.Playtest) playtestdomain.Session {
	return playtestdomain.Session{
		MapCode:   p.MapCode,
		AuthorID:  p.AuthorID,
		BaseValue: p.BaseValue,
		State:     playtestdomain.State(p.State),
	}
}

type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *PlaytestService,
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

	s.metrics.RecordOperationAttempt(ctx, operationName, "PlaytestService")
	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "PlaytestService", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.MapCode(mapCode),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "PlaytestService")
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
		s.metrics.RecordOperationFailure(ctx, operationName, "PlaytestService")
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

	s.metrics.RecordOperationSuccess(ctx, operationName, "PlaytestService")
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *PlaytestService,
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
