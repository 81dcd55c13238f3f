// Package handlerwrapper adapts typed handlers to watermill messages.
package handlerwrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MetadataTopic names the metadata key holding an outgoing message's topic.
const MetadataTopic = "topic"

// Result is one message a handler wants published.
type Result struct {
	Topic    string
	Payload  any
	Metadata map[string]string
}

// Metrics is satisfied by anything counting handler outcomes.
type Metrics interface {
	RecordHandlerAttempt(ctx context.Context, handlerName string)
	RecordHandlerSuccess(ctx context.Context, handlerName string)
	RecordHandlerFailure(ctx context.Context, handlerName string)
	RecordHandlerDuration(ctx context.Context, handlerName string, duration time.Duration)
}

// WrapTransformingTyped decodes the JSON payload into T, runs handler and
// encodes its results as outgoing messages carrying the inbound correlation ID.
// Undecodable payloads are logged and acked; handler errors nack the message.
func WrapTransformingTyped[T any](
	handlerName string,
	logger *slog.Logger,
	tracer trace.Tracer,
	metrics Metrics,
	handler func(context.Context, *T) ([]Result, error),
) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		correlationID := middleware.MessageCorrelationID(msg)
		ctx := attr.WithCorrelationID(msg.Context(), correlationID)

		ctx, span := tracer.Start(ctx, handlerName, trace.WithAttributes(
			attribute.String("message.uuid", msg.UUID),
			attribute.String("correlation_id", correlationID),
		))
		defer span.End()

		start := time.Now()
		if metrics != nil {
			metrics.RecordHandlerAttempt(ctx, handlerName)
			defer func() { metrics.RecordHandlerDuration(ctx, handlerName, time.Since(start)) }()
		}

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			logger.ErrorContext(ctx, "Dropping message with undecodable payload",
				attr.String("handler", handlerName),
				attr.String("message_id", msg.UUID),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			if metrics != nil {
				metrics.RecordHandlerFailure(ctx, handlerName)
			}
			return nil, nil
		}

		res, err := handler(ctx, payload)
		if err != nil {
			span.RecordError(err)
			if metrics != nil {
				metrics.RecordHandlerFailure(ctx, handlerName)
			}
			return nil, err
		}

		out := make([]*message.Message, 0, len(res))
		for _, r := range res {
			m, err := NewMessage(ctx, r)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("%s: %w", handlerName, err)
			}
			out = append(out, m)
		}

		if metrics != nil {
			metrics.RecordHandlerSuccess(ctx, handlerName)
		}
		return out, nil
	}
}

// NewMessage encodes a Result, stamping the topic and the context's correlation ID.
func NewMessage(ctx context.Context, r Result) (*message.Message, error) {
	if r.Topic == "" {
		return nil, fmt.Errorf("result has no topic")
	}
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for %s: %w", r.Topic, err)
	}

	m := message.NewMessage(uuid.NewString(), body)
	for k, v := range r.Metadata {
		m.Metadata.Set(k, v)
	}
	m.Metadata.Set(MetadataTopic, r.Topic)

	correlationID := attr.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	middleware.SetCorrelationID(correlationID, m)
	return m, nil
}

// Publisher is the subset of message.Publisher Publishing needs.
type Publisher interface {
	Publish(topic string, messages ...*message.Message) error
}

// Publishing runs fn and publishes every produced message to the topic in its metadata.
func Publishing(publisher Publisher, fn message.HandlerFunc) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		out, err := fn(msg)
		if err != nil {
			return err
		}
		for _, m := range out {
			topic := m.Metadata.Get(MetadataTopic)
			if err := publisher.Publish(topic, m); err != nil {
				return fmt.Errorf("failed to publish to %s: %w", topic, err)
			}
		}
		return nil
	}
}
