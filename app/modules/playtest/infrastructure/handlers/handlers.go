package playtesthandlers

import (
	"context"
	"log/slog"

	playtestservice "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/application"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"go.opentelemetry.io/otel/trace"
)

// PlaytestHandlers implements the Handlers interface.
type PlaytestHandlers struct {
	service playtestservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewPlaytestHandlers creates a new PlaytestHandlers instance.
func NewPlaytestHandlers(service playtestservice.Service, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &PlaytestHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleSessionOpenRequested opens a playtest for a submitted map.
func (h *PlaytestHandlers) HandleSessionOpenRequested(ctx context.Context, payload *events.PlaytestSessionOpenRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "PlaytestHandlers.HandleSessionOpenRequested")
	defer span.End()

	result, err := h.service.OpenSession(ctx, playtestservice.OpenRequest{
		MapCode:  payload.MapCode,
		MapName:  payload.MapName,
		AuthorID: payload.AuthorID,
		Grade:    payload.Grade,
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return h.reject(ctx, events.PlaytestSessionOpenRejectedV1, payload.MapCode, payload.AuthorID, *result.Failure), nil
	}

	view := result.Success
	return []handlerwrapper.Result{{
		Topic: events.PlaytestSessionOpenedV1,
		Payload: &events.PlaytestSessionOpenedPayloadV1{
			MapCode:       view.MapCode,
			AuthorID:      view.AuthorID,
			Grade:         view.BaseGrade,
			BaseValue:     view.BaseValue,
			RequiredVotes: view.RequiredVotes,
		},
	}}, nil
}

// HandleVoteCastRequested records a vote. Votes on closed sessions are dropped.
func (h *PlaytestHandlers) HandleVoteCastRequested(ctx context.Context, payload *events.PlaytestVoteCastRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "PlaytestHandlers.HandleVoteCastRequested")
	defer span.End()

	result, err := h.service.CastVote(ctx, payload.MapCode, payload.VoterID, payload.Grade)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return h.reject(ctx, events.PlaytestVoteRejectedV1, payload.MapCode, payload.VoterID, *result.Failure), nil
	}

	vote := result.Success
	out := []handlerwrapper.Result{{
		Topic: events.PlaytestVoteRecordedV1,
		Payload: &events.PlaytestVoteRecordedPayloadV1{
			MapCode:     vote.MapCode,
			VoterID:     vote.VoterID,
			Value:       vote.Value,
			Voters:      vote.Voters,
			Completions: vote.Completions,
			Required:    vote.Required,
		},
	}}
	return append(out, finalized(vote.Finalized)...), nil
}

// HandleCompletionVerified re-evaluates a playtest when one of its maps gets a completion.
func (h *PlaytestHandlers) HandleCompletionVerified(ctx context.Context, payload *events.RecordCompletionVerifiedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "PlaytestHandlers.HandleCompletionVerified")
	defer span.End()

	result, err := h.service.RecordCompletion(ctx, payload.MapCode, payload.UserID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		// Most completions are on official maps with no session.
		return nil, nil
	}
	return finalized(result.Success.Finalized), nil
}

func (h *PlaytestHandlers) reject(ctx context.Context, topic, mapCode, userID string, failure error) []handlerwrapper.Result {
	if !apperr.IsUserFacing(failure) {
		h.logger.InfoContext(ctx, "Playtest request dropped",
			attr.MapCode(mapCode),
			attr.UserID(userID),
			attr.Error(failure),
		)
		return nil
	}
	return []handlerwrapper.Result{{
		Topic: topic,
		Payload: &events.RejectionPayloadV1{
			MapCode: mapCode,
			UserID:  userID,
			Reason:  apperr.Reason(failure),
		},
	}}
}

func finalized(out *playtestservice.FinalizeOutcome) []handlerwrapper.Result {
	if out == nil {
		return nil
	}
	return []handlerwrapper.Result{{
		Topic: events.PlaytestFinalizedV1,
		Payload: &events.PlaytestFinalizedPayloadV1{
			MapCode:        out.MapCode,
			AuthorID:       out.AuthorID,
			Approved:       out.Approved,
			ConsensusValue: out.ConsensusValue,
			ConsensusGrade: out.ConsensusGrade,
			FinalizedAt:    out.FinalizedAt,
		},
	}}
}
