package playtesthandlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	playtestservice "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/application"
	playtestdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/domain"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type FakePlaytestService struct {
	OpenSessionFunc      func(ctx context.Context, req playtestservice.OpenRequest) (results.OperationResult[playtestservice.SessionView, error], error)
	CastVoteFunc         func(ctx context.Context, mapCode, voterID, grade string) (results.OperationResult[playtestservice.VoteOutcome, error], error)
	RecordCompletionFunc func(ctx context.Context, mapCode, userID string) (results.OperationResult[playtestservice.Progress, error], error)
}

func (f *FakePlaytestService) OpenSession(ctx context.Context, req playtestservice.OpenRequest) (results.OperationResult[playtestservice.SessionView, error], error) {
	return f.OpenSessionFunc(ctx, req)
}

func (f *FakePlaytestService) CastVote(ctx context.Context, mapCode, voterID, grade string) (results.OperationResult[playtestservice.VoteOutcome, error], error) {
	return f.CastVoteFunc(ctx, mapCode, voterID, grade)
}

func (f *FakePlaytestService) RecordCompletion(ctx context.Context, mapCode, userID string) (results.OperationResult[playtestservice.Progress, error], error) {
	return f.RecordCompletionFunc(ctx, mapCode, userID)
}

func (f *FakePlaytestService) Finalize(context.Context, string) (results.OperationResult[playtestservice.FinalizeOutcome, error], error) {
	return results.FailureResult[playtestservice.FinalizeOutcome, error](playtestdomain.ErrFinalizeLost), nil
}

func (f *FakePlaytestService) GetSession(context.Context, string) (*playtestservice.SessionView, error) {
	return nil, playtestservice.ErrSessionNotFound
}

func newHandlers(svc playtestservice.Service) Handlers {
	return NewPlaytestHandlers(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), noop.NewTracerProvider().Tracer("test"))
}

func TestHandleSessionOpenRequested(t *testing.T) {
	payload := &events.PlaytestSessionOpenRequestedPayloadV1{MapCode: "ABC12", AuthorID: "author", Grade: "Hard"}

	t.Run("opened", func(t *testing.T) {
		h := newHandlers(&FakePlaytestService{
			OpenSessionFunc: func(_ context.Context, req playtestservice.OpenRequest) (results.OperationResult[playtestservice.SessionView, error], error) {
				return results.SuccessResult[playtestservice.SessionView, error](playtestservice.SessionView{
					MapCode: req.MapCode, AuthorID: req.AuthorID, BaseGrade: "Hard", BaseValue: 5.0, RequiredVotes: 5,
				}), nil
			},
		})
		out, err := h.HandleSessionOpenRequested(context.Background(), payload)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, events.PlaytestSessionOpenedV1, out[0].Topic)
		opened := out[0].Payload.(*events.PlaytestSessionOpenedPayloadV1)
		assert.Equal(t, 5, opened.RequiredVotes)
	})

	t.Run("tier not allowed is rejected with reason", func(t *testing.T) {
		h := newHandlers(&FakePlaytestService{
			OpenSessionFunc: func(context.Context, playtestservice.OpenRequest) (results.OperationResult[playtestservice.SessionView, error], error) {
				return results.FailureResult[playtestservice.SessionView, error](playtestdomain.ErrTierNotAllowed), nil
			},
		})
		out, err := h.HandleSessionOpenRequested(context.Background(), payload)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, events.PlaytestSessionOpenRejectedV1, out[0].Topic)
		rejection := out[0].Payload.(*events.RejectionPayloadV1)
		assert.Equal(t, "your rank does not allow submitting maps of this difficulty", rejection.Reason)
	})

	t.Run("infrastructure error nacks", func(t *testing.T) {
		h := newHandlers(&FakePlaytestService{
			OpenSessionFunc: func(context.Context, playtestservice.OpenRequest) (results.OperationResult[playtestservice.SessionView, error], error) {
				return results.OperationResult[playtestservice.SessionView, error]{}, errors.New("db down")
			},
		})
		out, err := h.HandleSessionOpenRequested(context.Background(), payload)
		assert.Error(t, err)
		assert.Nil(t, out)
	})
}

func TestHandleVoteCastRequested(t *testing.T) {
	payload := &events.PlaytestVoteCastRequestedPayloadV1{MapCode: "ABC12", VoterID: "v1", Grade: "Hard"}
	vote := func(finalized *playtestservice.FinalizeOutcome) playtestservice.VoteOutcome {
		return playtestservice.VoteOutcome{
			Progress: playtestservice.Progress{MapCode: "ABC12", Voters: 5, Completions: 5, Required: 5, Finalized: finalized},
			VoterID:  "v1",
			Value:    5.0,
		}
	}

	tests := []struct {
		name       string
		result     results.OperationResult[playtestservice.VoteOutcome, error]
		wantTopics []string
	}{
		{
			name:       "recorded",
			result:     results.SuccessResult[playtestservice.VoteOutcome, error](vote(nil)),
			wantTopics: []string{events.PlaytestVoteRecordedV1},
		},
		{
			name: "recorded and finalized",
			result: results.SuccessResult[playtestservice.VoteOutcome, error](vote(&playtestservice.FinalizeOutcome{
				MapCode: "ABC12", AuthorID: "author", Approved: true, ConsensusValue: 5.0, ConsensusGrade: "Hard", FinalizedAt: time.Now(),
			})),
			wantTopics: []string{events.PlaytestVoteRecordedV1, events.PlaytestFinalizedV1},
		},
		{
			name:       "self vote rejected",
			result:     results.FailureResult[playtestservice.VoteOutcome, error](playtestdomain.ErrSelfVote),
			wantTopics: []string{events.PlaytestVoteRejectedV1},
		},
		{
			name:       "under-ranked hell vote rejected",
			result:     results.FailureResult[playtestservice.VoteOutcome, error](playtestdomain.ErrRankTooLow),
			wantTopics: []string{events.PlaytestVoteRejectedV1},
		},
		{
			name:   "closed session dropped",
			result: results.FailureResult[playtestservice.VoteOutcome, error](playtestdomain.ErrSessionClosed),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandlers(&FakePlaytestService{
				CastVoteFunc: func(context.Context, string, string, string) (results.OperationResult[playtestservice.VoteOutcome, error], error) {
					return tt.result, nil
				},
			})
			out, err := h.HandleVoteCastRequested(context.Background(), payload)
			require.NoError(t, err)
			var topics []string
			for _, r := range out {
				topics = append(topics, r.Topic)
			}
			assert.Equal(t, tt.wantTopics, topics)
		})
	}
}

func TestHandleCompletionVerified(t *testing.T) {
	payload := &events.RecordCompletionVerifiedPayloadV1{MapCode: "ABC12", UserID: "v1", Verified: true}

	t.Run("no session", func(t *testing.T) {
		h := newHandlers(&FakePlaytestService{
			RecordCompletionFunc: func(context.Context, string, string) (results.OperationResult[playtestservice.Progress, error], error) {
				return results.FailureResult[playtestservice.Progress, error](playtestdomain.ErrSessionClosed), nil
			},
		})
		out, err := h.HandleCompletionVerified(context.Background(), payload)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("completion triggers finalize", func(t *testing.T) {
		h := newHandlers(&FakePlaytestService{
			RecordCompletionFunc: func(context.Context, string, string) (results.OperationResult[playtestservice.Progress, error], error) {
				return results.SuccessResult[playtestservice.Progress, error](playtestservice.Progress{
					MapCode:   "ABC12",
					Finalized: &playtestservice.FinalizeOutcome{MapCode: "ABC12", Approved: false, ConsensusGrade: "Extreme"},
				}), nil
			},
		})
		out, err := h.HandleCompletionVerified(context.Background(), payload)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, events.PlaytestFinalizedV1, out[0].Topic)
		assert.False(t, out[0].Payload.(*events.PlaytestFinalizedPayloadV1).Approved)
	})
}
