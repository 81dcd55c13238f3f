package maphandlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	mapservice "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/application"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type FakeMapService struct {
	EditDifficultyFunc func(ctx context.Context, code, grade, requestedBy string) (results.OperationResult[mapservice.MapUpdate, error], error)
	SetArchivedFunc    func(ctx context.Context, code string, archived bool, requestedBy string) (results.OperationResult[mapservice.MapUpdate, error], error)
}

func (f *FakeMapService) GetMap(context.Context, string) (*mapservice.MapView, error) {
	return nil, mapservice.ErrMapNotFound
}

func (f *FakeMapService) EditDifficulty(ctx context.Context, code, grade, requestedBy string) (results.OperationResult[mapservice.MapUpdate, error], error) {
	return f.EditDifficultyFunc(ctx, code, grade, requestedBy)
}

func (f *FakeMapService) SetArchived(ctx context.Context, code string, archived bool, requestedBy string) (results.OperationResult[mapservice.MapUpdate, error], error) {
	return f.SetArchivedFunc(ctx, code, archived, requestedBy)
}

func newHandlers(svc mapservice.Service) Handlers {
	return NewMapHandlers(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), noop.NewTracerProvider().Tracer("test"))
}

func TestHandleDifficultyEditRequested(t *testing.T) {
	tests := []struct {
		name       string
		svc        func(context.Context, string, string, string) (results.OperationResult[mapservice.MapUpdate, error], error)
		wantErr    bool
		wantTopic  string
		wantReason string
	}{
		{
			name: "success publishes map updated",
			svc: func(_ context.Context, code, _, _ string) (results.OperationResult[mapservice.MapUpdate, error], error) {
				return results.SuccessResult[mapservice.MapUpdate, error](mapservice.MapUpdate{
					Map:      mapservice.MapView{Code: code, Difficulty: 5.0, Grade: "Hard", Official: true},
					Affected: 3,
				}), nil
			},
			wantTopic: events.MapUpdatedV1,
		},
		{
			name: "validation failure publishes rejection with reason",
			svc: func(context.Context, string, string, string) (results.OperationResult[mapservice.MapUpdate, error], error) {
				return results.FailureResult[mapservice.MapUpdate, error](mapservice.ErrMapInPlaytest), nil
			},
			wantTopic:  events.MapUpdateRejectedV1,
			wantReason: "map is still in playtest",
		},
		{
			name: "infrastructure error nacks",
			svc: func(context.Context, string, string, string) (results.OperationResult[mapservice.MapUpdate, error], error) {
				return results.OperationResult[mapservice.MapUpdate, error]{}, errors.New("db down")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandlers(&FakeMapService{EditDifficultyFunc: tt.svc})
			out, err := h.HandleDifficultyEditRequested(context.Background(), &events.MapDifficultyEditRequestedPayloadV1{
				MapCode: "ABCDE", Grade: "Hard", RequestedBy: "mod1",
			})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, out)
				return
			}
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, tt.wantTopic, out[0].Topic)

			switch p := out[0].Payload.(type) {
			case *events.MapUpdatedPayloadV1:
				assert.Equal(t, "Hard", p.Grade)
				assert.Equal(t, 3, p.Affected)
			case *events.RejectionPayloadV1:
				assert.Equal(t, tt.wantReason, p.Reason)
				assert.Equal(t, "mod1", p.UserID)
			default:
				t.Fatalf("unexpected payload %T", p)
			}
		})
	}
}

func TestHandleArchiveRequested(t *testing.T) {
	h := newHandlers(&FakeMapService{
		SetArchivedFunc: func(_ context.Context, code string, archived bool, _ string) (results.OperationResult[mapservice.MapUpdate, error], error) {
			return results.SuccessResult[mapservice.MapUpdate, error](mapservice.MapUpdate{
				Map: mapservice.MapView{Code: code, Archived: archived},
			}), nil
		},
	})

	out, err := h.HandleArchiveRequested(context.Background(), &events.MapArchiveRequestedPayloadV1{MapCode: "ABCDE", Archived: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	payload, ok := out[0].Payload.(*events.MapUpdatedPayloadV1)
	require.True(t, ok)
	assert.True(t, payload.Archived)
}
