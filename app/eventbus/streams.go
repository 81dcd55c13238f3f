package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// StreamConfig returns the JetStream configuration for a named stream.
func StreamConfig(name string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{name + ".>"},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    7 * 24 * time.Hour,
	}
}

// InitializeStreams creates missing streams and leaves existing ones untouched.
func InitializeStreams(ctx context.Context, js jetstream.JetStream, names []string, logger *slog.Logger) error {
	for _, name := range names {
		_, err := js.Stream(ctx, name)
		if err == nil {
			logger.Debug("JetStream stream exists", slog.String("stream", name))
			continue
		}
		if !errors.Is(err, jetstream.ErrStreamNotFound) {
			return fmt.Errorf("failed to check stream %s: %w", name, err)
		}
		if _, err := js.CreateStream(ctx, StreamConfig(name)); err != nil {
			logger.Error("Failed to create JetStream stream", slog.String("stream", name), slog.Any("error", err))
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}
		logger.Info("Created JetStream stream", slog.String("stream", name))
	}
	return nil
}
